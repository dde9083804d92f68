package telegram

import (
	"context"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/aliskhannn/wiki-quiz-bot/internal/quiz"
	"github.com/aliskhannn/wiki-quiz-bot/internal/storage"
	"github.com/aliskhannn/wiki-quiz-bot/internal/views"
)

// callbackAnswer is the notice shown to the user after pressing a button.
type callbackAnswer struct {
	Text  string
	Alert bool
}

var errUnknownCallback = errors.New("unknown callback")

func (h *Handler) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if cb.Message == nil {
		h.answerCallback(cb.ID, "", false)
		return
	}

	chat := h.chats.Get(cb.Message.Chat.ID)
	data := decodeCallback(cb.Data)

	var (
		answer callbackAnswer
		err    error
	)

	switch data.Action {
	case actionSelect:
		answer, err = h.handleSelectCallback(chat, cb, data)
	case actionSubmit:
		answer, err = h.handleSubmitCallback(chat, data)
	case actionReset:
		answer, err = h.handleResetCallback(chat, data)
	case actionHistory:
		answer, err = h.handleHistoryCallback(ctx, chat, cb, data)
	case actionGenerate:
		answer, err = h.handleGenerateCallback(ctx, chat, cb, data)
	case actionNoop:
	default:
		err = errUnknownCallback
	}

	if err != nil {
		answer = callbackErrorAnswer(err)
		if answer.Text == msgInternalError {
			h.logger.Error("callback failed",
				zap.Int64("chat_id", chat.ChatID),
				zap.String("data", cb.Data),
				zap.Error(err),
			)
		} else {
			h.logger.Debug("callback rejected",
				zap.Int64("chat_id", chat.ChatID),
				zap.String("data", cb.Data),
				zap.Error(err),
			)
		}
	}

	h.answerCallback(cb.ID, answer.Text, answer.Alert)
}

func callbackErrorAnswer(err error) callbackAnswer {
	switch {
	case errors.Is(err, views.ErrNoSession), errors.Is(err, views.ErrClosed):
		return callbackAnswer{Text: msgSessionGone, Alert: true}
	case errors.Is(err, quiz.ErrGraded):
		return callbackAnswer{Text: msgAlreadyGraded, Alert: true}
	case errors.Is(err, views.ErrBusy):
		return callbackAnswer{Text: msgGenerateBusy, Alert: true}
	default:
		return callbackAnswer{Text: msgInternalError}
	}
}

// handleSelectCallback records an answer and edits only the messages whose content changed.
func (h *Handler) handleSelectCallback(chat *storage.ChatState, cb *tgbotapi.CallbackQuery, data callbackData) (callbackAnswer, error) {
	sessionID, err := data.int64Param(0)
	if err != nil {
		return callbackAnswer{}, err
	}
	question, err := data.intParam(1)
	if err != nil {
		return callbackAnswer{}, err
	}
	option, err := data.intParam(2)
	if err != nil {
		return callbackAnswer{}, err
	}

	var questionMsg, controlMsg *renderedMessage
	err = withSession(chat, sessionID, func(s *quiz.Session, overlay bool) error {
		if s.Graded() {
			return quiz.ErrGraded
		}

		prevAnswer, _ := s.Answer(question)
		prevAnswered, prevCanSubmit := s.Answered(), s.CanSubmit()

		if err := s.SelectIndex(question, option); err != nil {
			return err
		}

		if answer, _ := s.Answer(question); answer != prevAnswer {
			r := renderQuestion(s, question)
			questionMsg = &r
		}
		if s.Answered() != prevAnswered || s.CanSubmit() != prevCanSubmit {
			r := renderControl(s, overlay)
			controlMsg = &r
		}
		return nil
	})
	if err != nil {
		return callbackAnswer{}, err
	}

	if questionMsg != nil {
		h.edit(chat.ChatID, cb.Message.MessageID, *questionMsg)
	}
	if controlMsg != nil {
		if m, ok := chat.Rendered(sessionID); ok {
			h.edit(chat.ChatID, m.Control, *controlMsg)
		}
	}
	return callbackAnswer{}, nil
}

// handleSubmitCallback grades a session once every question is answered.
func (h *Handler) handleSubmitCallback(chat *storage.ChatState, data callbackData) (callbackAnswer, error) {
	sessionID, err := data.int64Param(0)
	if err != nil {
		return callbackAnswer{}, err
	}

	var (
		r       quizRendering
		result  quiz.Result
		blocked *callbackAnswer
	)
	err = withSession(chat, sessionID, func(s *quiz.Session, overlay bool) error {
		if !s.Graded() && !s.CanSubmit() {
			blocked = &callbackAnswer{
				Text:  fmt.Sprintf("%s (%d/%d).", msgAnswerAllPrefix, s.Answered(), s.Total()),
				Alert: true,
			}
			return nil
		}
		if err := s.Submit(); err != nil {
			return err
		}
		r = renderQuiz(s, overlay)
		result, err = s.Result()
		return err
	})
	if err != nil {
		return callbackAnswer{}, err
	}
	if blocked != nil {
		return *blocked, nil
	}

	h.applyRendering(chat, sessionID, r)

	h.logger.Info("quiz graded",
		zap.Int64("chat_id", chat.ChatID),
		zap.Int64("session_id", sessionID),
		zap.Int("score", result.Score),
		zap.Int("total", result.Total),
	)
	return callbackAnswer{Text: fmt.Sprintf("Score: %d / %d (%d%%)", result.Score, result.Total, result.Percent)}, nil
}

// handleResetCallback clears the answers of a session.
func (h *Handler) handleResetCallback(chat *storage.ChatState, data callbackData) (callbackAnswer, error) {
	sessionID, err := data.int64Param(0)
	if err != nil {
		return callbackAnswer{}, err
	}

	var r quizRendering
	err = withSession(chat, sessionID, func(s *quiz.Session, overlay bool) error {
		s.Reset()
		r = renderQuiz(s, overlay)
		return nil
	})
	if err != nil {
		return callbackAnswer{}, err
	}

	h.applyRendering(chat, sessionID, r)
	return callbackAnswer{}, nil
}

func (h *Handler) handleHistoryCallback(ctx context.Context, chat *storage.ChatState, cb *tgbotapi.CallbackQuery, data callbackData) (callbackAnswer, error) {
	switch data.param(0) {
	case historyDetails:
		id, err := data.int64Param(1)
		if err != nil {
			return callbackAnswer{}, err
		}
		if chat.History.Snapshot().LoadingQuiz {
			return callbackAnswer{Text: msgDetailsBusy, Alert: true}, nil
		}
		h.moveHistory(chat, cb.Message.MessageID)
		if !h.openDetails(ctx, chat, id, 0) {
			return callbackAnswer{Text: msgDetailsBusy, Alert: true}, nil
		}
		return callbackAnswer{Text: msgLoadingQuiz}, nil

	case historyClose:
		overlayID := chat.History.OverlayID()
		m, ok := chat.Rendered(overlayID)
		if overlayID == 0 || !ok || m.Control != cb.Message.MessageID {
			return callbackAnswer{}, views.ErrNoSession
		}
		if id := chat.History.CloseDetails(); id != 0 {
			h.removeQuiz(chat, id)
		}
		return callbackAnswer{}, nil

	case historyRefresh:
		h.moveHistory(chat, cb.Message.MessageID)
		if snap := chat.History.Snapshot(); !snap.Loaded {
			snap.Loading = true
			snap.Err = nil
			h.refreshFrom(chat, snap)
		}
		h.async(ctx, func(ctx context.Context) {
			h.loadHistory(ctx, chat)
		})
		return callbackAnswer{Text: msgLoadingHistory}, nil

	default:
		return callbackAnswer{}, errUnknownCallback
	}
}

// openDetails starts fetching quiz id for the overlay. statusID, when set, is a message
// that reports the outcome. It returns false when another quiz is still loading.
func (h *Handler) openDetails(ctx context.Context, chat *storage.ChatState, id int64, statusID int) bool {
	snap := chat.History.Snapshot()
	if snap.LoadingQuiz {
		return false
	}

	snap.LoadingQuiz = true
	snap.Err = nil
	h.refreshFrom(chat, snap)

	h.async(ctx, func(ctx context.Context) {
		dropStatus := func() {
			if statusID != 0 {
				h.deleteMessages(chat.ChatID, []int{statusID})
			}
		}

		previous := chat.History.OverlayID()

		s, err := chat.History.OpenDetails(ctx, id)
		switch {
		case errors.Is(err, views.ErrClosed):
			return
		case errors.Is(err, views.ErrBusy):
			h.edit(chat.ChatID, statusID, renderedMessage{Text: md(msgDetailsBusy)})
			return
		case errors.Is(err, views.ErrStale):
			h.refreshHistory(chat)
			dropStatus()
			return
		case err != nil:
			h.refreshHistory(chat)
			h.edit(chat.ChatID, statusID, renderedMessage{Text: errorBanner(userErrorText(err))})
			h.logger.Info("quiz details failed",
				zap.Int64("chat_id", chat.ChatID),
				zap.Int64("quiz_id", id),
				zap.Error(err),
			)
			return
		}

		h.refreshHistory(chat)
		dropStatus()
		if previous != 0 {
			h.removeQuiz(chat, previous)
		}
		if err := h.showQuiz(chat, s.ID()); err != nil && !errors.Is(err, views.ErrClosed) {
			h.logger.Error("failed to show quiz",
				zap.Int64("chat_id", chat.ChatID),
				zap.Int64("quiz_id", id),
				zap.Error(err),
			)
		}
	})

	return true
}

// refreshFrom renders snap into the history message of chat.
func (h *Handler) refreshFrom(chat *storage.ChatState, snap views.HistorySnapshot) {
	h.edit(chat.ChatID, chat.HistoryMessage(), renderHistory(snap, h.now(), h.location))
}

// handleGenerateCallback retries the last failed generate request in place.
func (h *Handler) handleGenerateCallback(ctx context.Context, chat *storage.ChatState, cb *tgbotapi.CallbackQuery, data callbackData) (callbackAnswer, error) {
	if data.param(0) != generateRetry {
		return callbackAnswer{}, errUnknownCallback
	}

	snap := chat.Generate.Snapshot()
	if snap.URL == "" {
		return callbackAnswer{}, views.ErrNoSession
	}
	if snap.Loading {
		return callbackAnswer{}, views.ErrBusy
	}

	statusID := cb.Message.MessageID
	h.edit(chat.ChatID, statusID, renderedMessage{Text: md(msgGenerating)})

	h.async(ctx, func(ctx context.Context) {
		h.runGenerate(ctx, chat, snap.URL, statusID)
	})
	return callbackAnswer{}, nil
}
