// Package views holds the per-chat view state of the bot: the history list with its
// detail overlay, and the quiz generated from a submitted URL. Views perform backend calls
// without holding their lock, so a slow request never blocks rendering of other state.
package views

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/aliskhannn/wiki-quiz-bot/internal/domain/entities"
	"github.com/aliskhannn/wiki-quiz-bot/internal/quiz"
)

var (
	ErrBusy      = errors.New("request already in progress")
	ErrClosed    = errors.New("view closed")
	ErrStale     = errors.New("result arrived for a view that moved on")
	ErrNoSession = errors.New("quiz session not found")
)

// QuizClient is the part of the quiz backend client the views need.
type QuizClient interface {
	GenerateQuiz(ctx context.Context, url string) (*entities.Quiz, error)
	ListHistory(ctx context.Context) ([]entities.HistoryEntry, error)
	GetQuiz(ctx context.Context, id int64) (*entities.Quiz, error)
}

var sessionSeq atomic.Int64

// nextSessionID returns a process-wide unique quiz session id.
func nextSessionID() int64 {
	return sessionSeq.Add(1)
}

// withSession runs fn on s when its id matches.
func withSession(s *quiz.Session, id int64, fn func(*quiz.Session) error) error {
	if s == nil || s.ID() != id {
		return ErrNoSession
	}
	return fn(s)
}
