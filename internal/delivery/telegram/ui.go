package telegram

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/aliskhannn/wiki-quiz-bot/internal/domain/entities"
	"github.com/aliskhannn/wiki-quiz-bot/internal/quiz"
)

var markPrefix = map[quiz.Mark]string{
	quiz.MarkNeutral:  "",
	quiz.MarkSelected: "🔘 ",
	quiz.MarkCorrect:  "✅ ",
	quiz.MarkWrong:    "❌ ",
}

// buildQuestionKeyboard builds one button per option. Once the session is graded the
// buttons only carry marks and do nothing.
func buildQuestionKeyboard(s *quiz.Session, i int) tgbotapi.InlineKeyboardMarkup {
	q := s.Quiz().Questions[i]

	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(q.Options))
	for j, option := range q.Options {
		data := buildSelectCallback(s.ID(), i, j)
		if s.Graded() {
			data = buildNoopCallback()
		}
		label := markPrefix[s.OptionMark(i, j)] + truncate(option, maxButtonRunes)
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(label, data)))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// buildControlKeyboard builds submit / try again controls of a session.
func buildControlKeyboard(s *quiz.Session, overlay bool) tgbotapi.InlineKeyboardMarkup {
	var action tgbotapi.InlineKeyboardButton
	switch {
	case s.Graded():
		action = tgbotapi.NewInlineKeyboardButtonData("🔄 Try again", buildResetCallback(s.ID()))
	case s.CanSubmit():
		action = tgbotapi.NewInlineKeyboardButtonData("✅ Submit answers", buildSubmitCallback(s.ID()))
	default:
		label := fmt.Sprintf("🔒 Submit (%d/%d answered)", s.Answered(), s.Total())
		action = tgbotapi.NewInlineKeyboardButtonData(label, buildSubmitCallback(s.ID()))
	}

	rows := [][]tgbotapi.InlineKeyboardButton{tgbotapi.NewInlineKeyboardRow(action)}
	if overlay {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✖️ Close", buildHistoryCloseCallback()),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// buildHistoryKeyboard builds one details button per entry, up to maxHistoryButtons, plus a
// refresh row.
func buildHistoryKeyboard(entries []entities.HistoryEntry, loadingQuiz bool) tgbotapi.InlineKeyboardMarkup {
	if len(entries) > maxHistoryButtons {
		entries = entries[:maxHistoryButtons]
	}

	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(entries)+1)
	for _, e := range entries {
		label := fmt.Sprintf("📖 #%d %s", e.ID, truncate(e.Title, maxButtonRunes))
		data := buildHistoryDetailsCallback(e.ID)
		if loadingQuiz {
			label = "⏳ " + msgLoadingQuiz
			data = buildNoopCallback()
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(label, data)))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("🔄 Refresh", buildHistoryRefreshCallback()),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// buildRetryKeyboard builds a single retry button.
func buildRetryKeyboard(data string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔄 Retry", data),
		),
	)
}
