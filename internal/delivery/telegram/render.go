package telegram

import (
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/aliskhannn/wiki-quiz-bot/internal/domain/entities"
	"github.com/aliskhannn/wiki-quiz-bot/internal/quiz"
	"github.com/aliskhannn/wiki-quiz-bot/internal/views"
)

const maxHistoryTextLen = 3500

// renderedMessage is the text and keyboard of one Telegram message.
type renderedMessage struct {
	Text     string
	Keyboard *tgbotapi.InlineKeyboardMarkup
}

// quizRendering is a quiz session laid out as Telegram messages.
type quizRendering struct {
	Header    renderedMessage
	Questions []renderedMessage
	Control   renderedMessage
}

// renderQuiz lays out every message of s. overlay adds the close control used for
// quizzes opened from history.
func renderQuiz(s *quiz.Session, overlay bool) quizRendering {
	r := quizRendering{
		Header:    renderedMessage{Text: renderHeader(s.Quiz(), overlay)},
		Questions: make([]renderedMessage, 0, s.Total()),
		Control:   renderControl(s, overlay),
	}
	for i := range s.Quiz().Questions {
		r.Questions = append(r.Questions, renderQuestion(s, i))
	}
	return r
}

func renderHeader(q *entities.Quiz, overlay bool) string {
	var sb strings.Builder

	title := strings.TrimSpace(q.Title)
	if title == "" {
		title = msgDefaultQuizTitle
	}
	sb.WriteString(bold("🧠 " + title))

	if overlay && q.ID != 0 {
		sb.WriteString("\n")
		sb.WriteString(italic(fmt.Sprintf("From history, quiz #%d", q.ID)))
	}

	if summary := truncate(q.Summary, maxSummaryRunes); summary != "" {
		sb.WriteString("\n\n")
		sb.WriteString(md(summary))
	}
	if len(q.KeyEntities) > 0 {
		sb.WriteString("\n\n")
		sb.WriteString(bold("Key entities: "))
		sb.WriteString(md(strings.Join(q.KeyEntities, ", ")))
	}
	if len(q.RelatedTopics) > 0 {
		sb.WriteString("\n\n")
		sb.WriteString(bold("Related topics: "))
		sb.WriteString(md(strings.Join(q.RelatedTopics, ", ")))
	}
	return sb.String()
}

func renderQuestion(s *quiz.Session, i int) renderedMessage {
	q := s.Quiz().Questions[i]

	var sb strings.Builder
	sb.WriteString(bold(fmt.Sprintf("%d. %s", i+1, q.Question)))

	if s.Graded() {
		answer, answered := s.Answer(i)
		sb.WriteString("\n\n")
		switch {
		case !answered:
			sb.WriteString(md("⚪ Not answered"))
		case s.IsCorrect(i):
			sb.WriteString(md("✅ Correct"))
		default:
			sb.WriteString(md("❌ Wrong, your answer: " + answer))
		}

		if s.ShowExplanation(i) {
			sb.WriteString("\n\n")
			sb.WriteString(italic("Explanation:"))
			sb.WriteString(" ")
			sb.WriteString(md(q.Explanation))
		}
	}

	kb := buildQuestionKeyboard(s, i)
	return renderedMessage{Text: sb.String(), Keyboard: &kb}
}

func renderControl(s *quiz.Session, overlay bool) renderedMessage {
	var text string
	switch {
	case s.Graded():
		r, _ := s.Result()
		text = bold(fmt.Sprintf("🏁 Score: %d / %d", r.Score, r.Total)) + "\n" + md(fmt.Sprintf("%d%% correct", r.Percent))
	case s.Total() == 0:
		text = md("This quiz has no questions.")
	default:
		text = md(fmt.Sprintf("📝 Answered %d of %d questions.", s.Answered(), s.Total()))
	}

	kb := buildControlKeyboard(s, overlay)
	return renderedMessage{Text: text, Keyboard: &kb}
}

// renderHistory renders the history list in its current state.
func renderHistory(snap views.HistorySnapshot, now time.Time, loc *time.Location) renderedMessage {
	var sb strings.Builder
	sb.WriteString(bold("📚 Quiz history"))

	if snap.Err != nil {
		sb.WriteString("\n\n")
		sb.WriteString(errorBanner(userErrorText(snap.Err)))
	}

	switch {
	case snap.Loading && !snap.Loaded:
		sb.WriteString("\n\n")
		sb.WriteString(md(msgLoadingHistory))
		return renderedMessage{Text: sb.String()}

	case !snap.Loaded:
		kb := buildRetryKeyboard(buildHistoryRefreshCallback())
		return renderedMessage{Text: sb.String(), Keyboard: &kb}

	case snap.IsEmpty():
		sb.WriteString("\n\n")
		sb.WriteString(md(msgHistoryEmpty))
		kb := buildHistoryKeyboard(nil, false)
		return renderedMessage{Text: sb.String(), Keyboard: &kb}
	}

	listed := len(snap.Entries)
	for n, e := range snap.Entries {
		entry := fmt.Sprintf("\n\n%s\n%s\n%s",
			bold(fmt.Sprintf("#%d %s", e.ID, e.Title)),
			md(e.URL),
			md("🕒 "+views.FormatDate(e.DateGenerated.Time, now, loc)),
		)
		if sb.Len()+len(entry) > maxHistoryTextLen {
			listed = n
			break
		}
		sb.WriteString(entry)
	}

	if hidden := len(snap.Entries) - listed; hidden > 0 {
		more := fmt.Sprintf("…and %d more, use the buttons below.", hidden)
		if len(snap.Entries) > maxHistoryButtons {
			more = fmt.Sprintf("…and %d more. Older quizzes have no button, open them with /open <id>.", hidden)
		}
		sb.WriteString("\n\n")
		sb.WriteString(md(more))
	}

	kb := buildHistoryKeyboard(snap.Entries, snap.LoadingQuiz)
	return renderedMessage{Text: sb.String(), Keyboard: &kb}
}
