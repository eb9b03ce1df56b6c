package app

import "live-quiz-service/internal/domain"

// QuestionSelection picks the questions a game is played with: every question whose id lies in
// [MinID, MaxID]. When the range is unset, or matches nothing, the whole bank is used.
type QuestionSelection struct {
	MinID int
	MaxID int
}

func (s QuestionSelection) enabled() bool {
	return s.MinID != 0 || s.MaxID != 0
}

// Select returns indexes into bank, in load order.
func (s QuestionSelection) Select(bank []domain.Question) []int {
	order := make([]int, 0, len(bank))
	if s.enabled() {
		for i, q := range bank {
			if q.ID >= s.MinID && q.ID <= s.MaxID {
				order = append(order, i)
			}
		}
		if len(order) > 0 {
			return order
		}
	}
	for i := range bank {
		order = append(order, i)
	}
	return order
}
