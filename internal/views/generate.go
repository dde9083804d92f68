package views

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/aliskhannn/wiki-quiz-bot/internal/domain/entities"
	"github.com/aliskhannn/wiki-quiz-bot/internal/quiz"
)

var ErrInvalidURL = errors.New("not a Wikipedia article URL")

// GenerateSnapshot is a consistent copy of the generate view state.
type GenerateSnapshot struct {
	URL     string
	Loading bool
	Err     error
	Quiz    *entities.Quiz
}

// GenerateView requests a quiz for a URL and owns the session of the generated quiz.
type GenerateView struct {
	client QuizClient

	mu      sync.Mutex
	url     string
	loading bool
	err     error
	session *quiz.Session
	closed  bool
}

func NewGenerateView(client QuizClient) *GenerateView {
	return &GenerateView{client: client}
}

// Generate asks the backend for a quiz about rawURL. A successful call replaces the
// previous quiz of the view.
func (v *GenerateView) Generate(ctx context.Context, rawURL string) (*quiz.Session, error) {
	articleURL, err := NormalizeArticleURL(rawURL)
	if err != nil {
		return nil, err
	}

	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return nil, ErrClosed
	}
	if v.loading {
		v.mu.Unlock()
		return nil, ErrBusy
	}
	v.loading = true
	v.err = nil
	v.url = articleURL
	v.mu.Unlock()

	q, err := v.client.GenerateQuiz(ctx, articleURL)

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return nil, ErrClosed
	}
	v.loading = false
	if err != nil {
		v.err = err
		return nil, fmt.Errorf("generate quiz: %w", err)
	}

	v.session = quiz.NewSession(nextSessionID(), q)
	return v.session, nil
}

// WithSession runs fn on the generated quiz session if it has the given id.
func (v *GenerateView) WithSession(id int64, fn func(*quiz.Session) error) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return ErrClosed
	}
	return withSession(v.session, id, fn)
}

// SessionID returns the id of the current session, or zero.
func (v *GenerateView) SessionID() int64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.session == nil {
		return 0
	}
	return v.session.ID()
}

func (v *GenerateView) Snapshot() GenerateSnapshot {
	v.mu.Lock()
	defer v.mu.Unlock()

	s := GenerateSnapshot{URL: v.url, Loading: v.loading, Err: v.err}
	if v.session != nil {
		s.Quiz = v.session.Quiz()
	}
	return s
}

// Close tears the view down; a pending generate result is dropped.
func (v *GenerateView) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.closed = true
	v.session = nil
}

// NormalizeArticleURL trims raw and checks that it points to a Wikipedia article.
func NormalizeArticleURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrInvalidURL
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", ErrInvalidURL
	}

	host := strings.ToLower(u.Hostname())
	if host != "wikipedia.org" && !strings.HasSuffix(host, ".wikipedia.org") {
		return "", ErrInvalidURL
	}
	if !strings.HasPrefix(u.Path, "/wiki/") || len(u.Path) == len("/wiki/") {
		return "", ErrInvalidURL
	}

	return u.String(), nil
}
