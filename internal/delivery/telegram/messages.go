// messages.go contains message templates and formatting helpers for Telegram.

package telegram

import (
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Error and status messages.
const (
	msgInvalidURL       = "Please send a Wikipedia article link, for example:\nhttps://en.wikipedia.org/wiki/Alan_Turing"
	msgUseQuiz          = "Usage: /quiz https://en.wikipedia.org/wiki/Alan_Turing"
	msgGenerating       = "⏳ Generating a quiz for this article. This can take a little while..."
	msgGenerateBusy     = "⏳ A quiz is already being generated. Please wait for it to finish."
	msgLoadingHistory   = "⏳ Loading history..."
	msgLoadingQuiz      = "Loading quiz..."
	msgDetailsBusy      = "Another quiz is still loading."
	msgSessionGone      = "This quiz is no longer active."
	msgAlreadyGraded    = "This quiz is already graded. Press “Try again” to answer again."
	msgInternalError    = "Something went wrong. Please try again."
	msgHistoryEmpty     = "No quiz history found. Generate your first quiz to see it here!"
	msgUnknownCommand   = "Unknown command. Available commands:\n\n/quiz URL - generate a quiz from a Wikipedia article\n/history - previously generated quizzes\n/open ID - open a quiz from history\n/help - help"
	msgUnknownInput     = "Send me a Wikipedia article link and I will turn it into a quiz.\nUse /history to replay earlier quizzes."
	msgAnswerAllPrefix  = "Answer every question first"
	msgDefaultQuizTitle = "Quiz Details"
	msgUseOpen          = "Usage: /open 12, where 12 is the quiz number from /history"
)

const (
	msgWelcome = "👋 Welcome to Wiki Quiz Bot!\n\n" +
		"Send me a link to a Wikipedia article and I will generate a multiple-choice quiz about it. " +
		"Answer the questions with the buttons, then submit to see your score.\n\n" +
		"/quiz URL - generate a quiz\n/history - replay previously generated quizzes\n/help - help"

	msgHelp = "ℹ️ How it works\n\n" +
		"1. Send a Wikipedia link (or /quiz followed by the link).\n" +
		"2. Pick one option for every question.\n" +
		"3. Press “Submit answers” to grade yourself. Correct options are marked ✅, wrong picks ❌.\n" +
		"4. Press “Try again” to clear your answers.\n\n" +
		"/history lists every quiz generated so far; press a row to open it, or use /open <id>."
)

const (
	maxSummaryRunes = 1500
	maxButtonRunes  = 60

	// Telegram rejects inline keyboards with about a hundred buttons.
	maxHistoryButtons = 90
)

// md escapes plain text for MarkdownV2.
func md(s string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeMarkdownV2, s)
}

func bold(s string) string {
	return "*" + md(s) + "*"
}

func italic(s string) string {
	return "_" + md(s) + "_"
}

// errorBanner renders a user-facing error line.
func errorBanner(text string) string {
	return "⚠️ " + md(text)
}

// truncate shortens s to at most n runes, appending an ellipsis when cut.
func truncate(s string, n int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= n {
		return string(r)
	}
	return strings.TrimSpace(string(r[:n-1])) + "…"
}

// newMessage creates a message with MarkdownV2 parse mode.
func newMessage(chatID int64, text string) tgbotapi.MessageConfig {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	msg.DisableWebPagePreview = true
	return msg
}

// newPlainMessage creates a plain message without MarkdownV2 parse mode.
func newPlainMessage(chatID int64, text string) tgbotapi.MessageConfig {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	return msg
}

// newEdit creates an edit with MarkdownV2 parse mode.
func newEdit(chatID int64, msgID int, text string, kb *tgbotapi.InlineKeyboardMarkup) tgbotapi.EditMessageTextConfig {
	edit := tgbotapi.NewEditMessageText(chatID, msgID, text)
	edit.ParseMode = tgbotapi.ModeMarkdownV2
	edit.DisableWebPagePreview = true
	if kb != nil {
		edit.ReplyMarkup = kb
	}
	return edit
}
