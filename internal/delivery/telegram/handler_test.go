package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/aliskhannn/wiki-quiz-bot/internal/domain/entities"
	"github.com/aliskhannn/wiki-quiz-bot/internal/quizapi"
	"github.com/aliskhannn/wiki-quiz-bot/internal/storage"
)

const testChatID int64 = 42

type fakeBot struct {
	mu      sync.Mutex
	nextID  int
	sent    []tgbotapi.MessageConfig
	edits   []tgbotapi.EditMessageTextConfig
	deleted []int
	answers []tgbotapi.CallbackConfig

	// onSend, when set, is called after a new message is recorded.
	onSend func(id int, m tgbotapi.MessageConfig)
}

func (b *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	b.mu.Lock()
	switch m := c.(type) {
	case tgbotapi.MessageConfig:
		b.nextID++
		id := b.nextID
		b.sent = append(b.sent, m)
		hook := b.onSend
		b.mu.Unlock()

		if hook != nil {
			hook(id, m)
		}
		return tgbotapi.Message{MessageID: id, Chat: &tgbotapi.Chat{ID: m.ChatID}}, nil
	case tgbotapi.EditMessageTextConfig:
		b.edits = append(b.edits, m)
	}
	b.mu.Unlock()
	return tgbotapi.Message{}, nil
}

// textOf returns the text a message was first sent with.
func (b *fakeBot) textOf(msgID int) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if msgID < 1 || msgID > len(b.sent) {
		return ""
	}
	return b.sent[msgID-1].Text
}

func (b *fakeBot) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch m := c.(type) {
	case tgbotapi.DeleteMessageConfig:
		b.deleted = append(b.deleted, m.MessageID)
	case tgbotapi.CallbackConfig:
		b.answers = append(b.answers, m)
	}
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (b *fakeBot) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return make(chan tgbotapi.Update)
}

func (b *fakeBot) StopReceivingUpdates() {}

// sentWith returns the id of the last sent message containing text.
func (b *fakeBot) sentWith(text string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := len(b.sent) - 1; i >= 0; i-- {
		if strings.Contains(b.sent[i].Text, text) {
			return i + 1
		}
	}
	return 0
}

func (b *fakeBot) lastEditOf(msgID int) (tgbotapi.EditMessageTextConfig, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := len(b.edits) - 1; i >= 0; i-- {
		if b.edits[i].MessageID == msgID {
			return b.edits[i], true
		}
	}
	return tgbotapi.EditMessageTextConfig{}, false
}

func (b *fakeBot) lastAnswer() tgbotapi.CallbackConfig {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.answers) == 0 {
		return tgbotapi.CallbackConfig{}
	}
	return b.answers[len(b.answers)-1]
}

func (b *fakeBot) isDeleted(msgID int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, id := range b.deleted {
		if id == msgID {
			return true
		}
	}
	return false
}

type fakeQuizClient struct {
	quiz        *entities.Quiz
	history     []entities.HistoryEntry
	generateErr error
	quizErr     error

	// historyBlock, when set, holds ListHistory until closed. historyStarted is signalled
	// when ListHistory begins.
	historyBlock   chan struct{}
	historyStarted chan struct{}
}

func (f *fakeQuizClient) GenerateQuiz(context.Context, string) (*entities.Quiz, error) {
	if f.generateErr != nil {
		return nil, f.generateErr
	}
	return f.quiz, nil
}

func (f *fakeQuizClient) ListHistory(context.Context) ([]entities.HistoryEntry, error) {
	if f.historyStarted != nil {
		f.historyStarted <- struct{}{}
	}
	if f.historyBlock != nil {
		<-f.historyBlock
	}
	return f.history, nil
}

func (f *fakeQuizClient) GetQuiz(_ context.Context, id int64) (*entities.Quiz, error) {
	if f.quizErr != nil {
		return nil, f.quizErr
	}
	q := *f.quiz
	q.ID = id
	return &q, nil
}

type fakeUserService struct{}

func (fakeUserService) EnsureUser(context.Context, int64, int64, string) error { return nil }

func sampleQuiz() *entities.Quiz {
	return &entities.Quiz{
		Title:   "Alan Turing",
		Summary: "English mathematician.",
		Questions: []entities.Question{
			{Question: "Born in?", Options: []string{"1912", "1920"}, CorrectAnswer: "1912", Explanation: "June 1912."},
			{Question: "Field?", Options: []string{"Biology", "Computer science"}, CorrectAnswer: "Computer science"},
		},
	}
}

func newTestHandler(client *fakeQuizClient) (*Handler, *fakeBot, *storage.ChatViews) {
	bot := &fakeBot{}
	chats := storage.NewChatViews(client)
	h := NewHandler(bot, zap.NewNop(), fakeUserService{}, chats, time.UTC)
	h.now = func() time.Time { return time.Date(2024, 5, 3, 12, 0, 0, 0, time.UTC) }
	return h, bot, chats
}

func commandUpdate(text string) tgbotapi.Update {
	cmd := strings.Fields(text)[0]
	return tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 1000,
		Text:      text,
		Chat:      &tgbotapi.Chat{ID: testChatID},
		From:      &tgbotapi.User{ID: 7, UserName: "ada"},
		Entities:  []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(cmd)}},
	}}
}

func textUpdate(text string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 1000,
		Text:      text,
		Chat:      &tgbotapi.Chat{ID: testChatID},
		From:      &tgbotapi.User{ID: 7, UserName: "ada"},
	}}
}

func callbackUpdate(msgID int, data string) tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:   "cb",
		From: &tgbotapi.User{ID: 7},
		Data: data,
		Message: &tgbotapi.Message{
			MessageID: msgID,
			Chat:      &tgbotapi.Chat{ID: testChatID},
		},
	}}
}

func TestGenerateSelectSubmitReset(t *testing.T) {
	h, bot, chats := newTestHandler(&fakeQuizClient{quiz: sampleQuiz()})
	ctx := context.Background()

	h.handleUpdate(ctx, commandUpdate("/quiz https://en.wikipedia.org/wiki/Alan_Turing"))
	h.inflight.Wait()

	status := bot.sentWith("Generating")
	if status == 0 || !bot.isDeleted(status) {
		t.Fatalf("expected status message %d to be sent and deleted", status)
	}

	chat := chats.Get(testChatID)
	sid := chat.Generate.SessionID()
	if sid == 0 {
		t.Fatalf("expected a bound session")
	}
	m, ok := chat.Rendered(sid)
	if !ok || len(m.Questions) != 2 {
		t.Fatalf("expected two rendered questions, got %+v", m)
	}

	h.handleUpdate(ctx, callbackUpdate(m.Questions[0], buildSelectCallback(sid, 0, 0)))
	if _, ok := bot.lastEditOf(m.Questions[0]); !ok {
		t.Fatalf("expected question message to be edited after select")
	}

	h.handleUpdate(ctx, callbackUpdate(m.Control, buildSubmitCallback(sid)))
	if a := bot.lastAnswer(); !a.ShowAlert || !strings.Contains(a.Text, msgAnswerAllPrefix+" (1/2)") {
		t.Fatalf("expected incomplete alert, got %+v", a)
	}

	h.handleUpdate(ctx, callbackUpdate(m.Questions[1], buildSelectCallback(sid, 1, 1)))
	h.handleUpdate(ctx, callbackUpdate(m.Control, buildSubmitCallback(sid)))

	edit, ok := bot.lastEditOf(m.Control)
	if !ok || !strings.Contains(edit.Text, "Score: 2 / 2") {
		t.Fatalf("expected score in control message, got %q", edit.Text)
	}
	if a := bot.lastAnswer(); !strings.Contains(a.Text, "100%") {
		t.Fatalf("expected score notice, got %q", a.Text)
	}

	h.handleUpdate(ctx, callbackUpdate(m.Questions[0], buildSelectCallback(sid, 0, 1)))
	if a := bot.lastAnswer(); a.Text != msgAlreadyGraded {
		t.Fatalf("expected graded alert, got %q", a.Text)
	}

	h.handleUpdate(ctx, callbackUpdate(m.Control, buildResetCallback(sid)))
	edit, _ = bot.lastEditOf(m.Control)
	if !strings.Contains(edit.Text, "Answered 0 of 2") {
		t.Fatalf("expected reset control, got %q", edit.Text)
	}
}

func TestGenerateFromBareLink(t *testing.T) {
	h, _, chats := newTestHandler(&fakeQuizClient{quiz: sampleQuiz()})

	h.handleUpdate(context.Background(), textUpdate("look at https://en.wikipedia.org/wiki/Alan_Turing please"))
	h.inflight.Wait()

	if chats.Get(testChatID).Generate.SessionID() == 0 {
		t.Fatalf("expected a bare link to generate a quiz")
	}
}

func TestGenerateRejectsNonWikipediaLink(t *testing.T) {
	h, bot, chats := newTestHandler(&fakeQuizClient{quiz: sampleQuiz()})

	h.handleUpdate(context.Background(), commandUpdate("/quiz https://example.com/wiki/Go"))
	h.inflight.Wait()

	if bot.sentWith("Wikipedia article link") == 0 {
		t.Fatalf("expected invalid URL message")
	}
	if chats.Get(testChatID).Generate.SessionID() != 0 {
		t.Fatalf("expected no session")
	}
}

func TestGenerateFailureShowsServerMessageWithRetry(t *testing.T) {
	client := &fakeQuizClient{
		quiz:        sampleQuiz(),
		generateErr: &quizapi.RequestError{StatusCode: 422, Message: "article too short"},
	}
	h, bot, chats := newTestHandler(client)
	ctx := context.Background()

	h.handleUpdate(ctx, commandUpdate("/quiz https://en.wikipedia.org/wiki/Stub"))
	h.inflight.Wait()

	status := bot.sentWith("Generating")
	edit, ok := bot.lastEditOf(status)
	if !ok || !strings.Contains(edit.Text, "article too short") {
		t.Fatalf("expected server message in status, got %q", edit.Text)
	}
	kb := edit.ReplyMarkup
	if kb == nil || *kb.InlineKeyboard[0][0].CallbackData != buildGenerateRetryCallback() {
		t.Fatalf("expected retry keyboard")
	}

	client.generateErr = nil
	h.handleUpdate(ctx, callbackUpdate(status, buildGenerateRetryCallback()))
	h.inflight.Wait()

	if chats.Get(testChatID).Generate.SessionID() == 0 {
		t.Fatalf("expected retry to generate a quiz")
	}
}

func TestHistoryDetailsAndClose(t *testing.T) {
	client := &fakeQuizClient{
		quiz: sampleQuiz(),
		history: []entities.HistoryEntry{
			{ID: 5, Title: "Alan Turing", URL: "https://en.wikipedia.org/wiki/Alan_Turing",
				DateGenerated: entities.Timestamp{Time: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}},
		},
	}
	h, bot, chats := newTestHandler(client)
	ctx := context.Background()

	h.handleUpdate(ctx, commandUpdate("/history"))
	h.inflight.Wait()

	chat := chats.Get(testChatID)
	historyID := chat.HistoryMessage()
	edit, ok := bot.lastEditOf(historyID)
	if !ok || !strings.Contains(edit.Text, "2 days ago") {
		t.Fatalf("expected rendered history, got %q", edit.Text)
	}

	h.handleUpdate(ctx, callbackUpdate(historyID, buildHistoryDetailsCallback(5)))
	h.inflight.Wait()

	sid := chat.History.OverlayID()
	if sid == 0 {
		t.Fatalf("expected overlay session")
	}
	m, ok := chat.Rendered(sid)
	if !ok {
		t.Fatalf("expected overlay messages")
	}
	if bot.sentWith("quiz \\#5") == 0 {
		t.Fatalf("expected overlay header to name the quiz id")
	}

	h.handleUpdate(ctx, callbackUpdate(m.Control, buildHistoryCloseCallback()))
	if chat.History.OverlayID() != 0 {
		t.Fatalf("expected overlay closed")
	}
	for _, id := range m.All() {
		if !bot.isDeleted(id) {
			t.Fatalf("expected message %d deleted", id)
		}
	}

	h.handleUpdate(ctx, callbackUpdate(m.Control, buildSubmitCallback(sid)))
	if a := bot.lastAnswer(); a.Text != msgSessionGone {
		t.Fatalf("expected stale session notice, got %q", a.Text)
	}
}

func TestHistoryDetailsFailureKeepsOverlayClosed(t *testing.T) {
	client := &fakeQuizClient{
		quiz:    sampleQuiz(),
		history: []entities.HistoryEntry{{ID: 5, Title: "Gone"}},
		quizErr: &quizapi.RequestError{StatusCode: 404, Message: "not found"},
	}
	h, bot, chats := newTestHandler(client)
	ctx := context.Background()

	h.handleUpdate(ctx, commandUpdate("/history"))
	h.inflight.Wait()

	chat := chats.Get(testChatID)
	h.handleUpdate(ctx, callbackUpdate(chat.HistoryMessage(), buildHistoryDetailsCallback(5)))
	h.inflight.Wait()

	if chat.History.OverlayID() != 0 {
		t.Fatalf("expected no overlay")
	}
	edit, _ := bot.lastEditOf(chat.HistoryMessage())
	if !strings.Contains(edit.Text, "not found") {
		t.Fatalf("expected error banner, got %q", edit.Text)
	}
}

func TestHistoryEmptyState(t *testing.T) {
	h, bot, chats := newTestHandler(&fakeQuizClient{quiz: sampleQuiz()})

	h.handleUpdate(context.Background(), commandUpdate("/history"))
	h.inflight.Wait()

	edit, _ := bot.lastEditOf(chats.Get(testChatID).HistoryMessage())
	if !strings.Contains(edit.Text, "No quiz history found") {
		t.Fatalf("expected empty state, got %q", edit.Text)
	}
}

func TestUserErrorText(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"request error", &quizapi.RequestError{Message: "not found"}, "not found"},
		{"wrapped request error", errors.Join(errors.New("ctx"), &quizapi.RequestError{Message: "boom"}), "boom"},
		{"unexpected", errors.New("db down"), msgInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := userErrorText(tt.err); got != tt.want {
				t.Fatalf("userErrorText() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCallbackDataFitsTelegramLimit(t *testing.T) {
	const maxID = int64(1<<63 - 1)
	data := buildSelectCallback(maxID, 99, 99)
	if len(data) > 64 {
		t.Fatalf("callback data too long: %d bytes", len(data))
	}

	cd := decodeCallback(data)
	if cd.Action != actionSelect {
		t.Fatalf("action = %q", cd.Action)
	}
	sid, err := cd.int64Param(0)
	if err != nil || sid != maxID {
		t.Fatalf("session id = %d, %v", sid, err)
	}
	if _, err := decodeCallback("q:x").int64Param(0); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestFindLink(t *testing.T) {
	if got := findLink("see https://en.wikipedia.org/wiki/Go now"); got != "https://en.wikipedia.org/wiki/Go" {
		t.Fatalf("findLink() = %q", got)
	}
	if got := findLink("no links here"); got != "" {
		t.Fatalf("findLink() = %q, want empty", got)
	}
}

func TestControlCountsAnswersGivenWhileQuizIsSent(t *testing.T) {
	h, bot, chats := newTestHandler(&fakeQuizClient{quiz: sampleQuiz()})
	ctx := context.Background()

	answered := false
	bot.onSend = func(id int, m tgbotapi.MessageConfig) {
		if answered || !strings.Contains(m.Text, "Born in") {
			return
		}
		answered = true
		sid := chats.Get(testChatID).Generate.SessionID()
		h.handleUpdate(ctx, callbackUpdate(id, buildSelectCallback(sid, 0, 0)))
	}

	h.handleUpdate(ctx, commandUpdate("/quiz https://en.wikipedia.org/wiki/Alan_Turing"))
	h.inflight.Wait()

	if !answered {
		t.Fatalf("expected the first question to be answered while sending")
	}
	chat := chats.Get(testChatID)
	m, ok := chat.Rendered(chat.Generate.SessionID())
	if !ok {
		t.Fatalf("expected rendered quiz")
	}
	if text := bot.textOf(m.Control); !strings.Contains(text, "Answered 1 of 2") {
		t.Fatalf("expected control to count the early answer, got %q", text)
	}
}

func TestHistoryKeyboardStaysWithinTelegramLimit(t *testing.T) {
	client := &fakeQuizClient{quiz: sampleQuiz()}
	for i := 1; i <= 250; i++ {
		client.history = append(client.history, entities.HistoryEntry{
			ID:    int64(i),
			Title: fmt.Sprintf("Article %d", i),
			URL:   fmt.Sprintf("https://en.wikipedia.org/wiki/Article_%d", i),
		})
	}
	h, bot, chats := newTestHandler(client)
	ctx := context.Background()

	h.handleUpdate(ctx, commandUpdate("/history"))
	h.inflight.Wait()

	chat := chats.Get(testChatID)
	edit, ok := bot.lastEditOf(chat.HistoryMessage())
	if !ok || edit.ReplyMarkup == nil {
		t.Fatalf("expected rendered history with keyboard")
	}
	buttons := 0
	for _, row := range edit.ReplyMarkup.InlineKeyboard {
		buttons += len(row)
	}
	if buttons != maxHistoryButtons+1 || buttons >= 100 {
		t.Fatalf("expected %d buttons, got %d", maxHistoryButtons+1, buttons)
	}
	if !strings.Contains(edit.Text, "/open <id>") {
		t.Fatalf("expected a hint for quizzes without a button, got %q", edit.Text)
	}

	h.handleUpdate(ctx, commandUpdate("/open 250"))
	h.inflight.Wait()

	snap := chat.History.Snapshot()
	if snap.Overlay == nil || snap.Overlay.ID != 250 {
		t.Fatalf("expected quiz 250 in the overlay, got %+v", snap.Overlay)
	}
	if status := bot.sentWith("Loading quiz"); status == 0 || !bot.isDeleted(status) {
		t.Fatalf("expected status message %d to be deleted", status)
	}
}

func TestOpenRejectsMissingID(t *testing.T) {
	h, bot, chats := newTestHandler(&fakeQuizClient{quiz: sampleQuiz()})

	h.handleUpdate(context.Background(), commandUpdate("/open first"))
	h.inflight.Wait()

	if bot.sentWith("Usage: /open") == 0 {
		t.Fatalf("expected usage message")
	}
	if chats.Get(testChatID).History.OverlayID() != 0 {
		t.Fatalf("expected no overlay")
	}
}

func TestOpenFailureReportedOnStatus(t *testing.T) {
	client := &fakeQuizClient{
		quiz:    sampleQuiz(),
		quizErr: &quizapi.RequestError{StatusCode: 404, Message: "not found"},
	}
	h, bot, _ := newTestHandler(client)

	h.handleUpdate(context.Background(), commandUpdate("/open 5"))
	h.inflight.Wait()

	status := bot.sentWith("Loading quiz")
	edit, ok := bot.lastEditOf(status)
	if !ok || !strings.Contains(edit.Text, "not found") {
		t.Fatalf("expected server message on status, got %q", edit.Text)
	}
}

func TestRepeatedHistoryReplacesPendingList(t *testing.T) {
	client := &fakeQuizClient{
		quiz:           sampleQuiz(),
		history:        []entities.HistoryEntry{{ID: 1, Title: "Alan Turing"}},
		historyBlock:   make(chan struct{}),
		historyStarted: make(chan struct{}, 1),
	}
	h, bot, chats := newTestHandler(client)
	ctx := context.Background()

	h.handleUpdate(ctx, commandUpdate("/history"))
	<-client.historyStarted
	first := chats.Get(testChatID).HistoryMessage()

	h.handleUpdate(ctx, commandUpdate("/history"))
	second := chats.Get(testChatID).HistoryMessage()

	close(client.historyBlock)
	h.inflight.Wait()

	if first == second {
		t.Fatalf("expected a new history message")
	}
	if !bot.isDeleted(first) {
		t.Fatalf("expected superseded history message %d to be deleted", first)
	}
	edit, ok := bot.lastEditOf(second)
	if !ok || !strings.Contains(edit.Text, "Alan Turing") {
		t.Fatalf("expected history rendered into the new message, got %q", edit.Text)
	}
}
