// Package trivia imports multiple-choice questions from the Open Trivia
// Database (https://opentdb.com).
package trivia

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-ems/internal/model"
)

// MaxAmount is the largest batch the API serves in one call.
const MaxAmount = 50

// APIError is returned when the API answers with a non-zero response code.
type APIError struct {
	Code int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("trivia api: response code %d", e.Code)
}

// Config for New.
type Config struct {
	BaseURL    string
	Difficulty string
	Timeout    time.Duration
}

// Client fetches questions over HTTP.
type Client struct {
	http       *http.Client
	baseURL    string
	difficulty string
	log        zerolog.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// New creates a Client.
func New(cfg Config, log zerolog.Logger) *Client {
	h := &http.Client{}
	if cfg.Timeout > 0 {
		h.Timeout = cfg.Timeout
	}
	return &Client{
		http:       h,
		baseURL:    cfg.BaseURL,
		difficulty: cfg.Difficulty,
		log:        log.With().Str("component", "trivia").Logger(),
		rng:        rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x9e3779b97f4a7c15)),
	}
}

// WithRand swaps the option shuffler. Used by tests for deterministic output.
func (c *Client) WithRand(r *rand.Rand) *Client {
	c.mu.Lock()
	c.rng = r
	c.mu.Unlock()
	return c
}

type apiResponse struct {
	ResponseCode int       `json:"response_code"`
	Results      []apiItem `json:"results"`
}

type apiItem struct {
	Category         string   `json:"category"`
	Question         string   `json:"question"`
	CorrectAnswer    string   `json:"correct_answer"`
	IncorrectAnswers []string `json:"incorrect_answers"`
}

// Fetch asks for amount multiple-choice questions, optionally restricted to
// an API category number. Returned questions carry fresh IDs and are not
// stored.
func (c *Client) Fetch(ctx context.Context, amount int, category string) ([]model.Question, error) {
	if amount < 1 || amount > MaxAmount {
		return nil, fmt.Errorf("trivia: amount must be between 1 and %d", MaxAmount)
	}

	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("trivia: parse base url: %w", err)
	}
	q := u.Query()
	q.Set("amount", strconv.Itoa(amount))
	q.Set("type", "multiple")
	if c.difficulty != "" {
		q.Set("difficulty", c.difficulty)
	}
	if category != "" {
		q.Set("category", category)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("trivia: request: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode/100 != 2 {
		return nil, fmt.Errorf("trivia: %s", res.Status)
	}

	var body apiResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("trivia: decode: %w", err)
	}
	if body.ResponseCode != 0 {
		return nil, &APIError{Code: body.ResponseCode}
	}

	out := make([]model.Question, 0, len(body.Results))
	for _, it := range body.Results {
		options, correct := c.arrange(it.CorrectAnswer, it.IncorrectAnswers)
		out = append(out, model.NewQuestion(
			html.UnescapeString(it.Question),
			options,
			correct,
			html.UnescapeString(it.Category),
		))
	}
	c.log.Debug().Int("requested", amount).Int("received", len(out)).Msg("Fetched trivia questions")
	return out, nil
}

// arrange places the correct answer at a random position among the
// incorrect ones and returns the options with its index.
func (c *Client) arrange(correct string, incorrect []string) ([]string, int) {
	n := len(incorrect)
	if n > model.OptionCount-1 {
		n = model.OptionCount - 1
	}

	c.mu.Lock()
	pos := c.rng.IntN(n + 1)
	c.mu.Unlock()

	options := make([]string, 0, n+1)
	for i := 0; i < n; i++ {
		if i == pos {
			options = append(options, html.UnescapeString(correct))
		}
		options = append(options, html.UnescapeString(incorrect[i]))
	}
	if pos == n {
		options = append(options, html.UnescapeString(correct))
	}
	return options, pos
}
