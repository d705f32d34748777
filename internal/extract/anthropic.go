// Package extract derives structured article records from page markdown with
// an LLM.
package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	"github.com/JakeFAU/newscrawler/internal/crawler"
	"github.com/JakeFAU/newscrawler/internal/metrics"
	"github.com/JakeFAU/newscrawler/internal/policy/ratelimit"
)

const (
	defaultModel       = "claude-3-5-haiku-latest"
	defaultMaxTokens   = 1000
	defaultInstruction = "Extract the news data from the markdown content"
	limiterKey         = "llm"
)

// ErrNoRecord is returned when the model reply holds no JSON object.
var ErrNoRecord = errors.New("no record in model reply")

// recordSchema is the JSON schema the model must follow.
const recordSchema = `{
  "type": "object",
  "properties": {
    "title":   {"type": "string"},
    "content": {"type": "string"},
    "url":     {"type": "string"},
    "date":    {"type": "string"}
  },
  "required": ["title", "content", "url", "date"]
}`

// Config controls the extractor.
type Config struct {
	APIKey            string  `mapstructure:"api_key"`
	Model             string  `mapstructure:"model"`
	MaxTokens         int64   `mapstructure:"max_tokens"`
	RequestsPerMinute float64 `mapstructure:"requests_per_minute"`
	Instruction       string  `mapstructure:"instruction"`
	// BaseURL overrides the API endpoint.
	BaseURL string `mapstructure:"base_url"`
	// MaxRetries is passed to the SDK; negative keeps the SDK default.
	MaxRetries int `mapstructure:"max_retries"`
}

// Extractor implements crawler.Extractor with the Anthropic Messages API.
type Extractor struct {
	client  anthropic.Client
	cfg     Config
	limiter *ratelimit.Limiter
	logger  *zap.Logger
}

var _ crawler.Extractor = (*Extractor)(nil)

// New builds an Extractor. An API key is required.
func New(cfg Config, logger *zap.Logger) (*Extractor, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("llm api key is required for structured mode")
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	if cfg.Instruction == "" {
		cfg.Instruction = defaultInstruction
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.MaxRetries >= 0 {
		opts = append(opts, option.WithMaxRetries(cfg.MaxRetries))
	}

	return &Extractor{
		client:  anthropic.NewClient(opts...),
		cfg:     cfg,
		limiter: ratelimit.New(ratelimit.Config{PerMinute: cfg.RequestsPerMinute, Burst: 1}),
		logger:  logger.Named("extract"),
	}, nil
}

// Extract asks the model for the article record in markdown. A missing url
// in the reply is filled with pageURL.
func (e *Extractor) Extract(ctx context.Context, pageURL, markdown string) (crawler.Article, error) {
	if err := e.limiter.Wait(ctx, limiterKey); err != nil {
		metrics.ObserveExtraction("rate_limited")
		return crawler.Article{}, err
	}

	msg, err := e.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(e.cfg.Model),
		MaxTokens: e.cfg.MaxTokens,
		System: []anthropic.TextBlockParam{
			{Text: "You extract structured data from web pages. Reply with a single JSON object matching this schema and nothing else:\n" + recordSchema},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(buildPrompt(e.cfg.Instruction, pageURL, markdown))),
		},
	})
	if err != nil {
		metrics.ObserveExtraction("error")
		return crawler.Article{}, fmt.Errorf("llm request: %w", err)
	}

	var reply strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			reply.WriteString(block.Text)
		}
	}

	article, err := ParseRecord(reply.String())
	if err != nil {
		metrics.ObserveExtraction("unparseable")
		e.logger.Debug("unparseable model reply", zap.String("url", pageURL), zap.String("reply", reply.String()))
		return crawler.Article{}, err
	}
	if article.URL == "" {
		article.URL = pageURL
	}
	metrics.ObserveExtraction("ok")
	return article, nil
}

func buildPrompt(instruction, pageURL, markdown string) string {
	var sb strings.Builder
	sb.WriteString(instruction)
	sb.WriteString("\n\nURL: ")
	sb.WriteString(pageURL)
	sb.WriteString("\n\n<content>\n")
	sb.WriteString(markdown)
	sb.WriteString("\n</content>")
	return sb.String()
}

// ParseRecord decodes the first JSON object or array of objects in reply,
// ignoring surrounding prose and code fences.
func ParseRecord(reply string) (crawler.Article, error) {
	start := strings.IndexAny(reply, "{[")
	if start == -1 {
		return crawler.Article{}, ErrNoRecord
	}
	dec := json.NewDecoder(strings.NewReader(reply[start:]))
	var raw json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		return crawler.Article{}, fmt.Errorf("%w: %w", ErrNoRecord, err)
	}

	if raw[0] == '[' {
		var list []crawler.Article
		if err := json.Unmarshal(raw, &list); err != nil {
			return crawler.Article{}, fmt.Errorf("%w: %w", ErrNoRecord, err)
		}
		if len(list) == 0 {
			return crawler.Article{}, ErrNoRecord
		}
		return list[0], nil
	}

	var article crawler.Article
	if err := json.Unmarshal(raw, &article); err != nil {
		return crawler.Article{}, fmt.Errorf("%w: %w", ErrNoRecord, err)
	}
	return article, nil
}
