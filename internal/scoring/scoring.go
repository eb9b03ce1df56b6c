// Package scoring computes round outcomes. It holds no state: callers pass in the roster and the
// answers collected during the round and apply the returned player records themselves.
package scoring

import (
	"sort"
	"time"

	"live-quiz-service/internal/domain"
)

// Rules are the score deltas applied per round.
type Rules struct {
	Correct      int
	Wrong        int
	SpeedBonuses []int // by rank among timed correct answers; ranks past the end get 0
}

// DefaultRules mirrors the classic room settings: +5 / -5 with a 10/5/2 podium bonus.
func DefaultRules() Rules {
	return Rules{Correct: 5, Wrong: -5, SpeedBonuses: []int{10, 5, 2}}
}

// Bonus returns the speed bonus for a 1-based rank.
func (r Rules) Bonus(rank int) int {
	if rank < 1 || rank > len(r.SpeedBonuses) {
		return 0
	}
	return r.SpeedBonuses[rank-1]
}

// Round is everything the engine needs to score one question.
type Round struct {
	Question       domain.Question
	QuestionIndex  int
	TotalQuestions int
	Players        []domain.Player // roster order, used as the ranking tie-break
	Answers        map[string]int  // player id -> answer index
	AnsweredAt     map[string]time.Time
	StartedAt      time.Time
}

type rankedAnswer struct {
	pos          int
	responseTime float64
}

// Score evaluates a round. The returned result carries the updated cumulative record for every
// player in RoundResult.Players, in roster order.
func Score(rules Rules, round Round) domain.RoundResult {
	updated := make([]domain.Player, len(round.Players))
	results := make([]domain.PlayerResult, len(round.Players))
	ranked := make([]rankedAnswer, 0, len(round.Players))
	totalAnswered := 0
	correctCount := 0

	for i, p := range round.Players {
		answer, answered := round.Answers[p.ID]
		if answered {
			totalAnswered++
		}

		var responseTime *float64
		if at, ok := round.AnsweredAt[p.ID]; ok && answered && answer != domain.SkipAnswer && !round.StartedAt.IsZero() {
			secs := at.Sub(round.StartedAt).Seconds()
			responseTime = &secs
		}

		res := domain.PlayerResult{ResponseTime: responseTime}
		if answered {
			a := answer
			res.Answer = &a
		}

		switch {
		case !answered || answer == domain.SkipAnswer:
			p.SkippedAnswers++
			res.IsSkipped = true
		case answer == round.Question.Correct:
			p.Score += rules.Correct
			p.CorrectAnswers++
			res.IsCorrect = true
			correctCount++
			if responseTime != nil {
				p.TotalResponseTime += *responseTime
				p.QuestionsAnswered++
				ranked = append(ranked, rankedAnswer{pos: i, responseTime: *responseTime})
			}
		default:
			p.Score += rules.Wrong
			p.IncorrectAnswers++
		}

		updated[i] = p
		results[i] = res
	}

	sort.SliceStable(ranked, func(a, b int) bool {
		return ranked[a].responseTime < ranked[b].responseTime
	})

	var fastest *domain.FastestCorrect
	sum := 0.0
	for idx, r := range ranked {
		rank := idx + 1
		bonus := rules.Bonus(rank)
		updated[r.pos].Score += bonus
		results[r.pos].Rank = &rank
		results[r.pos].SpeedBonus = &bonus
		sum += r.responseTime
		if rank == 1 {
			fastest = &domain.FastestCorrect{Name: updated[r.pos].Name, ResponseTime: r.responseTime}
		}
	}

	for i := range results {
		results[i].Player = updated[i]
	}

	avg := 0.0
	if len(ranked) > 0 {
		avg = sum / float64(len(ranked))
	}

	return domain.RoundResult{
		QuestionIndex:  round.QuestionIndex,
		TotalQuestions: round.TotalQuestions,
		CorrectIndex:   round.Question.Correct,
		Players:        updated,
		PlayerResults:  results,
		FastestCorrect: fastest,
		RoundStats: domain.RoundStats{
			TotalPlayers:        len(round.Players),
			TotalAnswered:       totalAnswered,
			CorrectAnswers:      correctCount,
			AverageResponseTime: avg,
		},
	}
}
