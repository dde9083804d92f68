package telegram

import (
	"errors"

	"go.uber.org/zap"

	"github.com/aliskhannn/wiki-quiz-bot/internal/quiz"
	"github.com/aliskhannn/wiki-quiz-bot/internal/storage"
	"github.com/aliskhannn/wiki-quiz-bot/internal/views"
)

// withSession runs fn on the quiz session id of chat, wherever it lives. overlay is true
// for quizzes opened from history.
func withSession(chat *storage.ChatState, id int64, fn func(s *quiz.Session, overlay bool) error) error {
	err := chat.Generate.WithSession(id, func(s *quiz.Session) error { return fn(s, false) })
	if !errors.Is(err, views.ErrNoSession) {
		return err
	}
	return chat.History.WithOverlay(id, func(s *quiz.Session) error { return fn(s, true) })
}

// showQuiz sends every message of a quiz session and remembers their ids.
func (h *Handler) showQuiz(chat *storage.ChatState, sessionID int64) error {
	var (
		r       quizRendering
		issues  []string
		quizID  int64
		overlay bool
	)
	err := withSession(chat, sessionID, func(s *quiz.Session, ov bool) error {
		r = renderQuiz(s, ov)
		issues = s.Quiz().Validate()
		quizID = s.Quiz().ID
		overlay = ov
		return nil
	})
	if err != nil {
		return err
	}

	if len(issues) > 0 {
		h.logger.Warn("quiz has data problems",
			zap.Int64("chat_id", chat.ChatID),
			zap.Int64("quiz_id", quizID),
			zap.Strings("issues", issues),
		)
	}

	m := &storage.QuizMessages{ChatID: chat.ChatID, Questions: make([]int, len(r.Questions))}

	if m.Header, err = h.sendMessage(newMessage(chat.ChatID, r.Header.Text)); err != nil {
		return err
	}
	for i, q := range r.Questions {
		msg := newMessage(chat.ChatID, q.Text)
		if q.Keyboard != nil {
			msg.ReplyMarkup = *q.Keyboard
		}
		if m.Questions[i], err = h.sendMessage(msg); err != nil {
			chat.SetRendered(sessionID, m)
			return err
		}
	}

	// Answers given while the questions were being sent are not in r yet.
	_ = withSession(chat, sessionID, func(s *quiz.Session, ov bool) error {
		r.Control = renderControl(s, ov)
		return nil
	})

	control := newMessage(chat.ChatID, r.Control.Text)
	if r.Control.Keyboard != nil {
		control.ReplyMarkup = *r.Control.Keyboard
	}
	m.Control, err = h.sendMessage(control)
	chat.SetRendered(sessionID, m)

	if err == nil {
		// Selects from here on find the control message; catch one that slipped in before.
		var latest renderedMessage
		if withSession(chat, sessionID, func(s *quiz.Session, ov bool) error {
			latest = renderControl(s, ov)
			return nil
		}) == nil && latest.Text != r.Control.Text {
			h.edit(chat.ChatID, m.Control, latest)
		}
	}

	h.logger.Info("quiz shown",
		zap.Int64("chat_id", chat.ChatID),
		zap.Int64("session_id", sessionID),
		zap.Int64("quiz_id", quizID),
		zap.Bool("overlay", overlay),
		zap.Int("questions", len(r.Questions)),
	)
	return err
}

// applyRendering edits the already sent messages of a session to match r.
func (h *Handler) applyRendering(chat *storage.ChatState, sessionID int64, r quizRendering) {
	m, ok := chat.Rendered(sessionID)
	if !ok {
		return
	}
	for i, q := range r.Questions {
		if i < len(m.Questions) {
			h.edit(chat.ChatID, m.Questions[i], q)
		}
	}
	h.edit(chat.ChatID, m.Control, r.Control)
}

// removeQuiz deletes every message of a session.
func (h *Handler) removeQuiz(chat *storage.ChatState, sessionID int64) {
	if m, ok := chat.TakeRendered(sessionID); ok {
		h.deleteMessages(chat.ChatID, m.All())
	}
}

// retireQuiz leaves the messages of a replaced session in the chat but removes its controls.
func (h *Handler) retireQuiz(chat *storage.ChatState, sessionID int64) {
	if m, ok := chat.TakeRendered(sessionID); ok {
		h.edit(chat.ChatID, m.Control, renderedMessage{Text: md(msgSessionGone)})
	}
}
