// Package question holds the trivia question model and the read-only bank
// questions are drawn from.
package question

import (
	"errors"
	"fmt"
	"strings"
)

// OptionCount is the number of answer options every question carries.
const OptionCount = 4

// Question is one immutable trivia question.
type Question struct {
	// ID is the storage identifier; zero for questions not yet persisted.
	ID int64
	// Prompt is the question text.
	Prompt string
	// Options are the four answer choices in display order.
	Options [OptionCount]string
	// Answer is the index of the correct option, compared verbatim with the
	// client's AnswerIndex.
	Answer int32
}

// Validate checks that the question is displayable and answerable.
//
// Postcondition: Returns nil if the prompt and every option are non-empty and
// Answer is in [0, OptionCount).
func (q Question) Validate() error {
	var errs []string
	if strings.TrimSpace(q.Prompt) == "" {
		errs = append(errs, "prompt must not be empty")
	}
	for i, opt := range q.Options {
		if strings.TrimSpace(opt) == "" {
			errs = append(errs, fmt.Sprintf("option %d must not be empty", i+1))
		}
	}
	if q.Answer < 0 || q.Answer >= OptionCount {
		errs = append(errs, fmt.Sprintf("answer must be in [0, %d), got %d", OptionCount, q.Answer))
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// Bank is the read-only question set loaded at startup.
type Bank struct {
	questions []Question
}

// NewBank wraps questions in a Bank. The slice is copied.
func NewBank(questions []Question) *Bank {
	qs := make([]Question, len(questions))
	copy(qs, questions)
	return &Bank{questions: qs}
}

// Len returns the number of questions in the bank.
func (b *Bank) Len() int {
	return len(b.questions)
}

// At returns the question at index i.
//
// Precondition: 0 <= i < Len().
func (b *Bank) At(i int) Question {
	return b.questions[i]
}

// Pick draws an index uniformly at random from those not in used.
//
// Postcondition: Returns (index, true) with index not in used, or (0, false)
// when every question has been used.
func (b *Bank) Pick(src Source, used map[int]struct{}) (int, bool) {
	remaining := len(b.questions) - len(used)
	if remaining <= 0 {
		return 0, false
	}
	candidates := make([]int, 0, remaining)
	for i := range b.questions {
		if _, seen := used[i]; !seen {
			candidates = append(candidates, i)
		}
	}
	if len(candidates) == 0 {
		return 0, false
	}
	return candidates[src.Intn(len(candidates))], true
}
