// Package quiz implements answering and self-grading of a single quiz.
package quiz

import (
	"errors"
	"fmt"

	"github.com/aliskhannn/wiki-quiz-bot/internal/domain/entities"
)

var (
	ErrGraded             = errors.New("quiz already graded")
	ErrNotGraded          = errors.New("quiz not graded yet")
	ErrIncomplete         = errors.New("not every question is answered")
	ErrQuestionOutOfRange = errors.New("question index out of range")
	ErrUnknownOption      = errors.New("option is not offered for this question")
)

// State is the grading state of a Session.
type State int

const (
	StateAnswering State = iota
	StateGraded
)

func (s State) String() string {
	switch s {
	case StateAnswering:
		return "answering"
	case StateGraded:
		return "graded"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Mark is how an option is rendered.
type Mark int

const (
	MarkNeutral  Mark = iota
	MarkSelected      // chosen by the user, quiz not graded yet
	MarkCorrect       // the correct option of a graded question
	MarkWrong         // chosen by the user and not correct
)

// Result is the outcome of grading.
type Result struct {
	Score   int
	Total   int
	Percent int
}

// Session holds the answers a user gives to one quiz. It is not safe for concurrent use;
// the owning view serializes access.
type Session struct {
	id      int64
	quiz    *entities.Quiz
	answers map[int]string
	state   State
}

// NewSession starts answering quiz. The quiz is only read.
func NewSession(id int64, quiz *entities.Quiz) *Session {
	return &Session{
		id:      id,
		quiz:    quiz,
		answers: make(map[int]string),
		state:   StateAnswering,
	}
}

func (s *Session) ID() int64 { return s.id }
func (s *Session) Quiz() *entities.Quiz { return s.quiz }
func (s *Session) State() State { return s.state }
func (s *Session) Graded() bool { return s.state == StateGraded }
func (s *Session) Total() int { return len(s.quiz.Questions) }
func (s *Session) Answered() int { return len(s.answers) }

// Answer returns the option chosen for question i.
func (s *Session) Answer(i int) (string, bool) {
	a, ok := s.answers[i]
	return a, ok
}

// Select records option as the answer to question i, replacing any earlier choice.
func (s *Session) Select(i int, option string) error {
	if s.state == StateGraded {
		return ErrGraded
	}
	if i < 0 || i >= len(s.quiz.Questions) {
		return fmt.Errorf("select question %d: %w", i, ErrQuestionOutOfRange)
	}
	if !contains(s.quiz.Questions[i].Options, option) {
		return fmt.Errorf("select question %d: %w", i, ErrUnknownOption)
	}

	s.answers[i] = option
	return nil
}

// SelectIndex selects the option at position j of question i.
func (s *Session) SelectIndex(i, j int) error {
	if i < 0 || i >= len(s.quiz.Questions) {
		return fmt.Errorf("select question %d: %w", i, ErrQuestionOutOfRange)
	}
	options := s.quiz.Questions[i].Options
	if j < 0 || j >= len(options) {
		return fmt.Errorf("select question %d option %d: %w", i, j, ErrUnknownOption)
	}
	return s.Select(i, options[j])
}

// CanSubmit reports whether every question has an answer.
func (s *Session) CanSubmit() bool {
	if s.state != StateAnswering {
		return false
	}
	for i := range s.quiz.Questions {
		if _, ok := s.answers[i]; !ok {
			return false
		}
	}
	return true
}

// Submit grades the quiz.
func (s *Session) Submit() error {
	if s.state == StateGraded {
		return ErrGraded
	}
	if !s.CanSubmit() {
		return ErrIncomplete
	}
	s.state = StateGraded
	return nil
}

// Reset drops all answers and returns to answering.
func (s *Session) Reset() {
	s.answers = make(map[int]string)
	s.state = StateAnswering
}

// Result counts the correctly answered questions.
func (s *Session) Result() (Result, error) {
	if s.state != StateGraded {
		return Result{}, ErrNotGraded
	}

	r := Result{Total: len(s.quiz.Questions)}
	for i, q := range s.quiz.Questions {
		if a, ok := s.answers[i]; ok && a == q.CorrectAnswer {
			r.Score++
		}
	}
	r.Percent = Percent(r.Score, r.Total)
	return r, nil
}

// Percent returns score/total as a percentage rounded half up. A zero total yields 0.
func Percent(score, total int) int {
	if total <= 0 {
		return 0
	}
	return (score*200 + total) / (2 * total)
}

// OptionMark tells how option j of question i should be shown.
func (s *Session) OptionMark(i, j int) Mark {
	if i < 0 || i >= len(s.quiz.Questions) {
		return MarkNeutral
	}
	q := s.quiz.Questions[i]
	if j < 0 || j >= len(q.Options) {
		return MarkNeutral
	}

	option := q.Options[j]
	selected, answered := s.answers[i]
	isSelected := answered && selected == option

	if s.state == StateAnswering {
		if isSelected {
			return MarkSelected
		}
		return MarkNeutral
	}

	switch {
	case option == q.CorrectAnswer:
		return MarkCorrect
	case isSelected:
		return MarkWrong
	default:
		return MarkNeutral
	}
}

// IsCorrect reports whether question i was answered correctly.
func (s *Session) IsCorrect(i int) bool {
	if i < 0 || i >= len(s.quiz.Questions) {
		return false
	}
	a, ok := s.answers[i]
	return ok && a == s.quiz.Questions[i].CorrectAnswer
}

// ShowExplanation reports whether the explanation of question i is visible: only after
// grading, and only for questions the user answered.
func (s *Session) ShowExplanation(i int) bool {
	if s.state != StateGraded || i < 0 || i >= len(s.quiz.Questions) {
		return false
	}
	if s.quiz.Questions[i].Explanation == "" {
		return false
	}
	_, ok := s.answers[i]
	return ok
}

func contains(options []string, option string) bool {
	for _, o := range options {
		if o == option {
			return true
		}
	}
	return false
}
