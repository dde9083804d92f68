package storage

import (
	"sync"
	"time"

	"github.com/aliskhannn/wiki-quiz-bot/internal/views"
)

// QuizMessages are the Telegram messages one quiz session is rendered into.
type QuizMessages struct {
	ChatID    int64
	Header    int
	Questions []int
	Control   int
}

// All returns every message id of the rendering.
func (m *QuizMessages) All() []int {
	ids := make([]int, 0, len(m.Questions)+2)
	if m.Header != 0 {
		ids = append(ids, m.Header)
	}
	for _, id := range m.Questions {
		if id != 0 {
			ids = append(ids, id)
		}
	}
	if m.Control != 0 {
		ids = append(ids, m.Control)
	}
	return ids
}

// ChatState is everything the bot keeps for one chat.
type ChatState struct {
	ChatID   int64
	Generate *views.GenerateView
	History  *views.HistoryView

	mu               sync.Mutex
	lastSeen         time.Time
	historyMessageID int
	rendered         map[int64]*QuizMessages // by quiz session id
}

// SetHistoryMessage remembers the message the history list is rendered into.
func (c *ChatState) SetHistoryMessage(id int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.historyMessageID = id
}

func (c *ChatState) HistoryMessage() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.historyMessageID
}

// SetRendered stores the messages of a quiz session.
func (c *ChatState) SetRendered(sessionID int64, m *QuizMessages) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rendered[sessionID] = m
}

// Rendered returns the messages of a quiz session.
func (c *ChatState) Rendered(sessionID int64) (*QuizMessages, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.rendered[sessionID]
	return m, ok
}

// TakeRendered removes and returns the messages of a quiz session.
func (c *ChatState) TakeRendered(sessionID int64) (*QuizMessages, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.rendered[sessionID]
	delete(c.rendered, sessionID)
	return m, ok
}

func (c *ChatState) touch(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastSeen = now
}

func (c *ChatState) idleSince(now time.Time) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return now.Sub(c.lastSeen)
}

func (c *ChatState) close() {
	c.Generate.Close()
	c.History.Close()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.rendered = map[int64]*QuizMessages{}
}

// ChatViews provides in-memory storage of chat state by chat ID.
type ChatViews struct {
	client views.QuizClient
	now    func() time.Time

	mu    sync.RWMutex
	chats map[int64]*ChatState
}

// NewChatViews creates a new ChatViews whose views talk to client.
func NewChatViews(client views.QuizClient) *ChatViews {
	return &ChatViews{
		client: client,
		now:    time.Now,
		chats:  make(map[int64]*ChatState),
	}
}

// Get returns the state of chatID, creating it on first use.
func (s *ChatViews) Get(chatID int64) *ChatState {
	now := s.now()

	s.mu.RLock()
	c, ok := s.chats[chatID]
	s.mu.RUnlock()
	if ok {
		c.touch(now)
		return c
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok = s.chats[chatID]; ok {
		c.touch(now)
		return c
	}

	c = &ChatState{
		ChatID:   chatID,
		Generate: views.NewGenerateView(s.client),
		History:  views.NewHistoryView(s.client),
		lastSeen: now,
		rendered: make(map[int64]*QuizMessages),
	}
	s.chats[chatID] = c
	return c
}

// Sweep tears down and forgets chats idle for longer than idle. It returns how many
// chats were removed.
func (s *ChatViews) Sweep(idle time.Duration) int {
	now := s.now()

	s.mu.Lock()
	var stale []*ChatState
	for id, c := range s.chats {
		if c.idleSince(now) > idle {
			stale = append(stale, c)
			delete(s.chats, id)
		}
	}
	s.mu.Unlock()

	for _, c := range stale {
		c.close()
	}
	return len(stale)
}

// Len returns the number of tracked chats.
func (s *ChatViews) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chats)
}
