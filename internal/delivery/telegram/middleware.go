package telegram

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/aliskhannn/wiki-quiz-bot/internal/quizapi"
	"github.com/aliskhannn/wiki-quiz-bot/internal/views"
)

type HandlerFunc func(ctx context.Context, chatID int64) error

// withErrorHandling reports errors of fn inline in the chat. Backend failures show the
// backend's message; anything unexpected is logged.
func (h *Handler) withErrorHandling(fn HandlerFunc) HandlerFunc {
	return func(ctx context.Context, chatID int64) error {
		if err := fn(ctx, chatID); err != nil {
			if isExpected(err) {
				h.logger.Debug("request rejected",
					zap.Int64("chat_id", chatID),
					zap.Error(err),
				)
			} else {
				h.logger.Error("handle error",
					zap.Int64("chat_id", chatID),
					zap.Error(err),
				)
			}
			h.sendError(chatID, userErrorText(err))
		}
		return nil
	}
}

// userErrorText maps err to the text shown to the user.
func userErrorText(err error) string {
	var reqErr *quizapi.RequestError
	switch {
	case errors.As(err, &reqErr):
		return reqErr.Message
	case errors.Is(err, views.ErrInvalidURL):
		return msgInvalidURL
	case errors.Is(err, views.ErrBusy):
		return msgGenerateBusy
	case errors.Is(err, views.ErrNoSession), errors.Is(err, views.ErrClosed):
		return msgSessionGone
	default:
		return msgInternalError
	}
}

func isExpected(err error) bool {
	var reqErr *quizapi.RequestError
	return errors.As(err, &reqErr) ||
		errors.Is(err, views.ErrInvalidURL) ||
		errors.Is(err, views.ErrBusy) ||
		errors.Is(err, views.ErrNoSession) ||
		errors.Is(err, views.ErrClosed) ||
		errors.Is(err, views.ErrStale)
}
