package entities

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Quiz is a generated quiz for one source article. It is never modified after it has been
// decoded from the backend response.
type Quiz struct {
	ID            int64      `json:"id,omitempty"` // zero when the backend did not report one
	Title         string     `json:"title"`
	Summary       string     `json:"summary"`
	KeyEntities   []string   `json:"key_entities"`
	RelatedTopics []string   `json:"related_topics"`
	Questions     []Question `json:"questions"`
}

// Question is a single multiple-choice question.
type Question struct {
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correct_answer"`
	Explanation   string   `json:"explanation,omitempty"`
}

// HasCorrectOption reports whether CorrectAnswer is one of the options.
func (q Question) HasCorrectOption() bool {
	for _, o := range q.Options {
		if o == q.CorrectAnswer {
			return true
		}
	}
	return false
}

// Validate returns a description of every data-integrity problem in the quiz.
// The quiz stays usable; problems are only reported.
func (q *Quiz) Validate() []string {
	var issues []string
	for i, question := range q.Questions {
		if len(question.Options) == 0 {
			issues = append(issues, fmt.Sprintf("question %d has no options", i+1))
			continue
		}
		if !question.HasCorrectOption() {
			issues = append(issues, fmt.Sprintf("question %d: correct answer %q is not among its options", i+1, question.CorrectAnswer))
		}
	}
	return issues
}

// HistoryEntry is a summary of a previously generated quiz.
type HistoryEntry struct {
	ID            int64     `json:"id"`
	Title         string    `json:"title"`
	URL           string    `json:"url"`
	DateGenerated Timestamp `json:"date_generated"`
}

// Timestamp decodes both RFC 3339 and naive ISO 8601 timestamps. Naive values are UTC.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		t.Time = time.Time{}
		return nil
	}

	for _, layout := range timestampLayouts {
		parsed, err := time.ParseInLocation(layout, s, time.UTC)
		if err == nil {
			t.Time = parsed
			return nil
		}
	}

	return fmt.Errorf("timestamp: unsupported format %q", s)
}
