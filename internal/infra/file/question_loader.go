// Package file loads a question bank from a YAML or JSON document on disk.
package file

import (
	"context"
	"fmt"
	"os"

	"live-quiz-service/internal/domain"

	"gopkg.in/yaml.v3"
)

// QuestionLoader reads the bank from path on every call; wrap it in a cache for hot paths.
type QuestionLoader struct {
	path string
}

func NewQuestionLoader(path string) *QuestionLoader {
	return &QuestionLoader{path: path}
}

func (l *QuestionLoader) LoadQuestions(_ context.Context) ([]domain.Question, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("read question bank: %w", err)
	}
	return Parse(data)
}

// Parse decodes a top-level list of questions. JSON input works as well since it is valid YAML.
func Parse(data []byte) ([]domain.Question, error) {
	var questions []domain.Question
	if err := yaml.Unmarshal(data, &questions); err != nil {
		return nil, fmt.Errorf("parse question bank: %w", err)
	}
	if len(questions) == 0 {
		return nil, domain.ErrNoQuestions
	}

	seen := make(map[int]bool, len(questions))
	for _, q := range questions {
		if err := q.Validate(); err != nil {
			return nil, err
		}
		if seen[q.ID] {
			return nil, fmt.Errorf("question %d: duplicate id", q.ID)
		}
		seen[q.ID] = true
	}
	return questions, nil
}
