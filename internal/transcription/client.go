package transcription

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
)

const (
	// DefaultTimeout bounds a single submission
	DefaultTimeout = 300 * time.Second

	formField   = "audio"
	formFile    = "recording.wav"
	formContent = "audio/wav"
)

// Client posts WAV recordings to the transcription endpoint
type Client struct {
	config Config
	http   *resty.Client
	parser *Parser
	logger *slog.Logger

	// Statistics
	totalRequests   uint64
	successRequests uint64
	failedRequests  uint64
	totalResponse   time.Duration
	activeRequests  int

	mu sync.RWMutex
}

// Config contains transcription client configuration
type Config struct {
	URL         string
	Timeout     time.Duration
	LogRequests bool
	UserAgent   string
}

// ClientStats represents client statistics
type ClientStats struct {
	TotalRequests   uint64        `json:"total_requests"`
	SuccessRequests uint64        `json:"success_requests"`
	FailedRequests  uint64        `json:"failed_requests"`
	SuccessRate     float64       `json:"success_rate"`
	AvgResponseTime time.Duration `json:"avg_response_time"`
	ActiveRequests  int           `json:"active_requests"`
}

// NewClient creates a new transcription HTTP client
func NewClient(config Config, logger *slog.Logger) (*Client, error) {
	if config.URL == "" {
		return nil, fmt.Errorf("transcription URL cannot be empty")
	}

	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}

	if config.UserAgent == "" {
		config.UserAgent = "voice-transcriber/1.0"
	}

	if logger == nil {
		logger = slog.Default()
	}

	httpClient := resty.New().
		SetTimeout(config.Timeout).
		SetHeader("User-Agent", config.UserAgent).
		SetLogger(restyLogger{logger})

	return &Client{
		config: config,
		http:   httpClient,
		parser: NewParser().WithLogger(logger),
		logger: logger,
	}, nil
}

// Transcribe uploads one WAV container and returns the extracted transcript.
// Failures are *Error values of kind KindTransport or KindEmptyTranscript.
func (c *Client) Transcribe(ctx context.Context, wav []byte) (string, error) {
	requestID := uuid.New().String()
	startTime := time.Now()
	c.beginRequest()

	if c.config.LogRequests {
		c.logger.Info("POST transcription request",
			slog.String("url", c.config.URL),
			slog.String("request_id", requestID),
			slog.Int("bytes", len(wav)))
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("X-Request-ID", requestID).
		SetMultipartField(formField, formFile, formContent, bytes.NewReader(wav)).
		Post(c.config.URL)
	if err != nil {
		c.endRequest(false, time.Since(startTime))
		return "", Wrap(KindTransport, err, "HTTP error")
	}

	if !resp.IsSuccess() {
		c.endRequest(false, time.Since(startTime))
		return "", Errorf(KindTransport, "HTTP error: %s", resp.Status())
	}

	body := string(resp.Body())
	if c.config.LogRequests {
		c.logger.Info("Transcription response",
			slog.String("request_id", requestID),
			slog.Int("status", resp.StatusCode()),
			slog.String("body", body))
	}

	text, err := c.parser.Extract(body)

	if c.config.LogRequests {
		c.logger.Info("Parsed transcript",
			slog.String("request_id", requestID),
			slog.String("transcript", text))
	}

	c.endRequest(err == nil, time.Since(startTime))
	return text, err
}

// URL returns the configured endpoint
func (c *Client) URL() string {
	return c.config.URL
}

// Statistics methods
func (c *Client) beginRequest() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totalRequests++
	c.activeRequests++
}

func (c *Client) endRequest(success bool, responseTime time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.activeRequests--
	c.totalResponse += responseTime
	if success {
		c.successRequests++
	} else {
		c.failedRequests++
	}
}

// GetStats returns current client statistics
func (c *Client) GetStats() ClientStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	successRate := float64(0)
	if c.totalRequests > 0 {
		successRate = float64(c.successRequests) / float64(c.totalRequests) * 100
	}

	var avgResponseTime time.Duration
	if done := c.successRequests + c.failedRequests; done > 0 {
		avgResponseTime = c.totalResponse / time.Duration(done)
	}

	return ClientStats{
		TotalRequests:   c.totalRequests,
		SuccessRequests: c.successRequests,
		FailedRequests:  c.failedRequests,
		SuccessRate:     successRate,
		AvgResponseTime: avgResponseTime,
		ActiveRequests:  c.activeRequests,
	}
}

// restyLogger routes resty's internal messages through slog
type restyLogger struct {
	logger *slog.Logger
}

func (l restyLogger) Errorf(format string, v ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, v...), slog.String("component", "http_client"))
}

func (l restyLogger) Warnf(format string, v ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, v...), slog.String("component", "http_client"))
}

func (l restyLogger) Debugf(format string, v ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, v...), slog.String("component", "http_client"))
}
