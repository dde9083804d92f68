package telegram

import (
	"context"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

type Handler struct {
	bot         Bot
	logger      *zap.Logger
	userService UserService
	chats       ChatStore
	location    *time.Location
	now         func() time.Time

	// inflight tracks goroutines waiting on the quiz backend.
	inflight sync.WaitGroup
}

func NewHandler(
	bot Bot,
	logger *zap.Logger,
	userService UserService,
	chats ChatStore,
	location *time.Location,
) *Handler {
	if location == nil {
		location = time.UTC
	}
	return &Handler{
		bot:         bot,
		logger:      logger,
		userService: userService,
		chats:       chats,
		location:    location,
		now:         time.Now,
	}
}

// Run consumes updates until ctx is done, then waits for pending backend calls.
func (h *Handler) Run(ctx context.Context) error {
	h.logger.Info("telegram handler started")
	defer h.logger.Info("telegram handler stopped")

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := h.bot.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			h.bot.StopReceivingUpdates()
			h.inflight.Wait()
			return nil
		case update, ok := <-updates:
			if !ok {
				h.inflight.Wait()
				return nil
			}
			h.handleUpdate(ctx, update)
		}
	}
}

func (h *Handler) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.CallbackQuery != nil {
		h.logger.Debug("callback received",
			zap.Int64("user_id", update.CallbackQuery.From.ID),
			zap.String("data", update.CallbackQuery.Data),
		)
		h.handleCallback(ctx, update.CallbackQuery)
		return
	}

	if update.Message == nil {
		h.logger.Debug("update without message and callback")
		return
	}

	h.logger.Debug("update received",
		zap.Int64("chat_id", update.Message.Chat.ID),
		zap.String("text", update.Message.Text),
	)

	chatID := update.Message.Chat.ID
	if from := update.Message.From; from != nil {
		if err := h.userService.EnsureUser(ctx, from.ID, chatID, from.UserName); err != nil {
			h.logger.Error("failed to ensure user",
				zap.Int64("user_id", from.ID),
				zap.Error(err),
			)
		}
	}

	if update.Message.IsCommand() {
		switch update.Message.Command() {
		case "start":
			h.send(newPlainMessage(chatID, msgWelcome))

		case "help":
			h.send(newPlainMessage(chatID, msgHelp))

		case "quiz":
			_ = h.withErrorHandling(h.handleGenerate(update.Message.CommandArguments()))(ctx, chatID)

		case "history":
			_ = h.withErrorHandling(h.handleHistory())(ctx, chatID)

		case "open":
			_ = h.withErrorHandling(h.handleOpen(update.Message.CommandArguments()))(ctx, chatID)

		default:
			h.send(newPlainMessage(chatID, msgUnknownCommand))
		}

		return
	}

	if link := findLink(update.Message.Text); link != "" {
		_ = h.withErrorHandling(h.handleGenerate(link))(ctx, chatID)
		return
	}

	h.send(newPlainMessage(chatID, msgUnknownInput))
}

// async runs fn in its own goroutine so the update loop keeps serving other chats.
func (h *Handler) async(ctx context.Context, fn func(ctx context.Context)) {
	h.inflight.Add(1)
	go func() {
		defer h.inflight.Done()
		fn(ctx)
	}()
}

func (h *Handler) sendError(chatID int64, text string) {
	h.send(newMessage(chatID, errorBanner(text)))
}

func (h *Handler) send(c tgbotapi.Chattable) {
	if _, err := h.bot.Send(c); err != nil {
		h.logger.Error("failed to send telegram message",
			zap.Error(err),
		)
	}
}

// sendMessage sends msg and returns the id of the new message.
func (h *Handler) sendMessage(msg tgbotapi.MessageConfig) (int, error) {
	sent, err := h.bot.Send(msg)
	if err != nil {
		h.logger.Error("failed to send telegram message",
			zap.Int64("chat_id", msg.ChatID),
			zap.Error(err),
		)
		return 0, err
	}
	return sent.MessageID, nil
}

func (h *Handler) edit(chatID int64, msgID int, m renderedMessage) {
	if msgID == 0 {
		return
	}
	h.send(newEdit(chatID, msgID, m.Text, m.Keyboard))
}

func (h *Handler) deleteMessages(chatID int64, ids []int) {
	for _, id := range ids {
		if _, err := h.bot.Request(tgbotapi.NewDeleteMessage(chatID, id)); err != nil {
			h.logger.Debug("failed to delete message",
				zap.Int64("chat_id", chatID),
				zap.Int("message_id", id),
				zap.Error(err),
			)
		}
	}
}

// answerCallback removes the user's "clock", optionally with a notice.
func (h *Handler) answerCallback(id, text string, alert bool) {
	answer := tgbotapi.NewCallback(id, text)
	if alert {
		answer = tgbotapi.NewCallbackWithAlert(id, text)
	}
	if _, err := h.bot.Request(answer); err != nil {
		h.logger.Debug("callback answer error", zap.Error(err))
	}
}

// findLink returns the first http(s) link in text.
func findLink(text string) string {
	for _, field := range strings.Fields(text) {
		if strings.HasPrefix(field, "http://") || strings.HasPrefix(field, "https://") {
			return field
		}
	}
	return ""
}
