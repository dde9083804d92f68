package views

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/aliskhannn/wiki-quiz-bot/internal/domain/entities"
	"github.com/aliskhannn/wiki-quiz-bot/internal/quiz"
)

const dateLayout = "Jan 2, 2006, 03:04 PM"

// HistorySnapshot is a consistent copy of the history view state used for rendering.
type HistorySnapshot struct {
	Entries     []entities.HistoryEntry
	Loaded      bool
	Loading     bool
	LoadingQuiz bool
	Err         error
	Overlay     *entities.Quiz
}

// IsEmpty reports whether a successful load returned no entries.
func (s HistorySnapshot) IsEmpty() bool {
	return s.Loaded && s.Err == nil && len(s.Entries) == 0
}

// HistoryView lists previously generated quizzes and shows one of them in an overlay.
type HistoryView struct {
	client QuizClient

	mu          sync.Mutex
	entries     []entities.HistoryEntry
	loaded      bool
	loading     bool
	loadingQuiz bool
	err         error
	overlay     *quiz.Session
	generation  uint64 // bumped whenever the overlay is closed or replaced
	closed      bool
}

func NewHistoryView(client QuizClient) *HistoryView {
	return &HistoryView{client: client}
}

// Load fetches the history list. Calling it again retries.
func (v *HistoryView) Load(ctx context.Context) error {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return ErrClosed
	}
	if v.loading {
		v.mu.Unlock()
		return ErrBusy
	}
	v.loading = true
	v.err = nil
	v.mu.Unlock()

	entries, err := v.client.ListHistory(ctx)

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return ErrClosed
	}
	v.loading = false
	if err != nil {
		v.err = err
		return fmt.Errorf("load history: %w", err)
	}
	v.entries = entries
	v.loaded = true
	return nil
}

// OpenDetails fetches quiz id and opens it in the overlay with a fresh session.
// Only one detail fetch runs at a time.
func (v *HistoryView) OpenDetails(ctx context.Context, id int64) (*quiz.Session, error) {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return nil, ErrClosed
	}
	if v.loadingQuiz {
		v.mu.Unlock()
		return nil, ErrBusy
	}
	v.loadingQuiz = true
	v.err = nil
	gen := v.generation
	v.mu.Unlock()

	q, err := v.client.GetQuiz(ctx, id)

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return nil, ErrClosed
	}
	v.loadingQuiz = false
	if gen != v.generation {
		return nil, ErrStale
	}
	if err != nil {
		v.err = err
		return nil, fmt.Errorf("open quiz %d: %w", id, err)
	}

	v.generation++
	v.overlay = quiz.NewSession(nextSessionID(), q)
	return v.overlay, nil
}

// CloseDetails discards the overlay quiz. It returns the id of the discarded session, or
// zero when nothing was open.
func (v *HistoryView) CloseDetails() int64 {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.generation++
	if v.overlay == nil {
		return 0
	}
	id := v.overlay.ID()
	v.overlay = nil
	return id
}

// WithOverlay runs fn on the overlay session if it has the given id.
func (v *HistoryView) WithOverlay(id int64, fn func(*quiz.Session) error) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return ErrClosed
	}
	return withSession(v.overlay, id, fn)
}

// OverlayID returns the id of the open overlay session, or zero.
func (v *HistoryView) OverlayID() int64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.overlay == nil {
		return 0
	}
	return v.overlay.ID()
}

func (v *HistoryView) Snapshot() HistorySnapshot {
	v.mu.Lock()
	defer v.mu.Unlock()

	s := HistorySnapshot{
		Entries:     append([]entities.HistoryEntry(nil), v.entries...),
		Loaded:      v.loaded,
		Loading:     v.loading,
		LoadingQuiz: v.loadingQuiz,
		Err:         v.err,
	}
	if v.overlay != nil {
		s.Overlay = v.overlay.Quiz()
	}
	return s
}

// Close tears the view down. Requests still in flight finish but their results are dropped.
func (v *HistoryView) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.closed = true
	v.overlay = nil
	v.entries = nil
	v.generation++
}

// FormatDate renders t in loc with a relative hint, e.g. "May 1, 2024, 12:34 PM (2 days ago)".
func FormatDate(t, now time.Time, loc *time.Location) string {
	if t.IsZero() {
		return "unknown date"
	}
	if loc == nil {
		loc = time.UTC
	}
	return fmt.Sprintf("%s (%s)", t.In(loc).Format(dateLayout), humanize.RelTime(t, now, "ago", "from now"))
}
