package quizapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aliskhannn/wiki-quiz-bot/internal/domain/entities"
)

const maxBodyBytes = 4 << 20

type Options struct {
	BaseURL string

	// Timeout bounds a whole call. Zero leaves timing to the transport.
	Timeout time.Duration

	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client talks to the quiz backend. It keeps no state between calls and is safe for
// concurrent use.
type Client struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
	logger     *zap.Logger
}

func New(opts Options) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("quizapi: base url required")
	}

	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		baseURL:    baseURL,
		timeout:    opts.Timeout,
		httpClient: hc,
		logger:     logger,
	}, nil
}

func (c *Client) BaseURL() string { return c.baseURL }

// GenerateQuiz asks the backend to build a quiz from the article at url.
func (c *Client) GenerateQuiz(ctx context.Context, url string) (*entities.Quiz, error) {
	req := struct {
		URL string `json:"url"`
	}{URL: url}

	var quiz entities.Quiz
	if err := c.doJSON(ctx, http.MethodPost, "/generate_quiz", req, &quiz, msgGenerateFailed); err != nil {
		return nil, err
	}
	return &quiz, nil
}

// ListHistory returns summaries of all previously generated quizzes.
func (c *Client) ListHistory(ctx context.Context) ([]entities.HistoryEntry, error) {
	var entries []entities.HistoryEntry
	if err := c.doJSON(ctx, http.MethodGet, "/history", nil, &entries, msgHistoryFailed); err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []entities.HistoryEntry{}
	}
	return entries, nil
}

// GetQuiz fetches a stored quiz. The backend omits the id from the body, so it is set from
// the request.
func (c *Client) GetQuiz(ctx context.Context, id int64) (*entities.Quiz, error) {
	var quiz entities.Quiz
	path := "/quiz/" + strconv.FormatInt(id, 10)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &quiz, msgQuizFailed); err != nil {
		return nil, err
	}
	quiz.ID = id
	return &quiz, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any, fallback string) error {
	var payload io.Reader
	if body != nil {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return &RequestError{Message: fallback, Err: fmt.Errorf("encode request: %w", err)}
		}
		payload = &buf
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, payload)
	if err != nil {
		return &RequestError{Message: fallback, Err: err}
	}
	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("quiz api request failed",
			zap.String("request_id", requestID),
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return &RequestError{Message: fallback, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))

	c.logger.Debug("quiz api request",
		zap.String("request_id", requestID),
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(started)),
	)

	if err != nil {
		return &RequestError{StatusCode: resp.StatusCode, Message: fallback, Err: fmt.Errorf("read body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return parseRequestError(resp.StatusCode, raw, fallback)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &RequestError{StatusCode: resp.StatusCode, Message: fallback, Err: fmt.Errorf("decode body: %w", err)}
	}
	return nil
}
