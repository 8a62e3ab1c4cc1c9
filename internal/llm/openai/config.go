package openai

import (
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/joseph-ayodele/contracts-tracker/internal/common"
)

// Config for the OpenAI-compatible client.
type Config struct {
	APIKey      string        // if empty, falls back to env OPENAI_API_KEY
	BaseURL     string        // default https://api.openai.com/v1
	Model       string        // e.g., "gpt-4o-mini"
	Temperature float32       // 0..2
	MaxTokens   int           // completion budget, default 4000
	Timeout     time.Duration // http client timeout
	// MaxPromptChars caps the contract text placed in the prompt; 0 = no cap.
	MaxPromptChars int
	Retry          RetryConfig
}

// ConfigFrom maps the application config onto a client config.
func ConfigFrom(c common.LLMConfig) Config {
	return Config{
		APIKey:         c.APIKey,
		BaseURL:        c.BaseURL,
		Model:          c.Model,
		Temperature:    c.Temperature,
		MaxTokens:      c.MaxTokens,
		Timeout:        c.Timeout,
		MaxPromptChars: c.MaxPromptChars,
		Retry:          RetryConfig{MaxRetries: c.MaxRetries},
	}
}

type Client struct {
	cfg        Config
	httpClient *http.Client
	log        *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4000
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 90 * time.Second
	}
	cfg.Retry = cfg.Retry.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        logger,
	}
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.cfg.Model }
