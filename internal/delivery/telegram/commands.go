package telegram

import (
	"context"
	"errors"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/aliskhannn/wiki-quiz-bot/internal/quizapi"
	"github.com/aliskhannn/wiki-quiz-bot/internal/storage"
	"github.com/aliskhannn/wiki-quiz-bot/internal/views"
)

// handleGenerate asks the backend for a quiz about rawURL and shows it when ready.
func (h *Handler) handleGenerate(rawURL string) HandlerFunc {
	return func(ctx context.Context, chatID int64) error {
		if strings.TrimSpace(rawURL) == "" {
			h.send(newPlainMessage(chatID, msgUseQuiz))
			return nil
		}

		articleURL, err := views.NormalizeArticleURL(rawURL)
		if err != nil {
			return err
		}

		chat := h.chats.Get(chatID)
		if chat.Generate.Snapshot().Loading {
			return views.ErrBusy
		}

		statusID, err := h.sendMessage(newPlainMessage(chatID, msgGenerating))
		if err != nil {
			return err
		}

		h.async(ctx, func(ctx context.Context) {
			h.runGenerate(ctx, chat, articleURL, statusID)
		})
		return nil
	}
}

// runGenerate performs the backend call and reports the outcome in the status message.
func (h *Handler) runGenerate(ctx context.Context, chat *storage.ChatState, articleURL string, statusID int) {
	previous := chat.Generate.SessionID()

	s, err := chat.Generate.Generate(ctx, articleURL)
	if err != nil {
		if errors.Is(err, views.ErrClosed) {
			return
		}

		h.logger.Info("quiz generation failed",
			zap.Int64("chat_id", chat.ChatID),
			zap.String("url", articleURL),
			zap.Error(err),
		)

		var kb *tgbotapi.InlineKeyboardMarkup
		var reqErr *quizapi.RequestError
		if errors.As(err, &reqErr) {
			retry := buildRetryKeyboard(buildGenerateRetryCallback())
			kb = &retry
		}
		h.edit(chat.ChatID, statusID, renderedMessage{Text: errorBanner(userErrorText(err)), Keyboard: kb})
		return
	}

	h.deleteMessages(chat.ChatID, []int{statusID})
	if previous != 0 {
		h.retireQuiz(chat, previous)
	}

	if err := h.showQuiz(chat, s.ID()); err != nil && !errors.Is(err, views.ErrClosed) {
		h.logger.Error("failed to show quiz",
			zap.Int64("chat_id", chat.ChatID),
			zap.Error(err),
		)
	}
}

// handleHistory shows the list of generated quizzes.
func (h *Handler) handleHistory() HandlerFunc {
	return func(ctx context.Context, chatID int64) error {
		chat := h.chats.Get(chatID)

		msgID, err := h.sendMessage(newPlainMessage(chatID, msgLoadingHistory))
		if err != nil {
			return err
		}
		h.moveHistory(chat, msgID)

		h.async(ctx, func(ctx context.Context) {
			h.loadHistory(ctx, chat)
		})
		return nil
	}
}

// moveHistory points the history list of chat at msgID. A previous list still waiting on a
// running load is deleted, because that load now renders into msgID.
func (h *Handler) moveHistory(chat *storage.ChatState, msgID int) {
	prev := chat.HistoryMessage()
	chat.SetHistoryMessage(msgID)
	if prev != 0 && prev != msgID && chat.History.Snapshot().Loading {
		h.deleteMessages(chat.ChatID, []int{prev})
	}
}

// handleOpen opens a history quiz by id. It reaches quizzes that did not get a button in
// the history list.
func (h *Handler) handleOpen(arg string) HandlerFunc {
	return func(ctx context.Context, chatID int64) error {
		id, err := strconv.ParseInt(strings.TrimPrefix(strings.TrimSpace(arg), "#"), 10, 64)
		if err != nil || id <= 0 {
			h.send(newPlainMessage(chatID, msgUseOpen))
			return nil
		}

		chat := h.chats.Get(chatID)
		if chat.History.Snapshot().LoadingQuiz {
			h.send(newPlainMessage(chatID, msgDetailsBusy))
			return nil
		}

		statusID, err := h.sendMessage(newPlainMessage(chatID, "⏳ "+msgLoadingQuiz))
		if err != nil {
			return err
		}
		if !h.openDetails(ctx, chat, id, statusID) {
			h.edit(chatID, statusID, renderedMessage{Text: md(msgDetailsBusy)})
		}
		return nil
	}
}

func (h *Handler) loadHistory(ctx context.Context, chat *storage.ChatState) {
	err := chat.History.Load(ctx)
	switch {
	case errors.Is(err, views.ErrClosed), errors.Is(err, views.ErrBusy):
		// Nothing to render: the chat is gone or the running load will render.
		return
	case err != nil:
		h.logger.Info("history load failed",
			zap.Int64("chat_id", chat.ChatID),
			zap.Error(err),
		)
	}
	h.refreshHistory(chat)
}

// refreshHistory re-renders the history message from the current view state.
func (h *Handler) refreshHistory(chat *storage.ChatState) {
	h.edit(chat.ChatID, chat.HistoryMessage(), renderHistory(chat.History.Snapshot(), h.now(), h.location))
}
