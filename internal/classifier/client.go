package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/emperorhan/revision-indexer/internal/circuitbreaker"
	"github.com/emperorhan/revision-indexer/internal/domain/model"
	"github.com/emperorhan/revision-indexer/internal/metrics"
	"github.com/emperorhan/revision-indexer/internal/pipeline/retry"
	"github.com/emperorhan/revision-indexer/internal/ratelimit"
	"github.com/google/uuid"
)

const (
	DefaultContext   = "enwiki"
	DefaultTimeout   = 10 * time.Second
	DefaultUserAgent = "revision-indexer"

	maxErrorBody = 512
)

type Config struct {
	BaseURL   string
	Context   string
	UserAgent string
	Timeout   time.Duration
	RPS       float64
	Burst     int

	Retry   retry.Policy
	Breaker circuitbreaker.Config

	// HTTPClient overrides the default client. Its own Timeout is left alone;
	// Config.Timeout bounds each attempt through the request context.
	HTTPClient *http.Client
}

// Client talks to an ORES-style scoring service over HTTP.
type Client struct {
	httpClient *http.Client
	baseURL    string
	wiki       string
	userAgent  string
	timeout    time.Duration
	retry      retry.Policy
	breaker    *circuitbreaker.Breaker
	limiters   map[string]*ratelimit.Limiter
	logger     *slog.Logger
}

var (
	_ Scorer        = (*Client)(nil)
	_ QualityScorer = (*Client)(nil)
)

func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("classifier base url is required")
	}
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, fmt.Errorf("parse classifier base url: %w", err)
	}
	if cfg.Context == "" {
		cfg.Context = DefaultContext
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "classifier")
	if cfg.Retry.Logger == nil {
		cfg.Retry.Logger = logger
	}

	if cfg.Breaker.Name == "" {
		cfg.Breaker.Name = "classifier"
	}
	if cfg.Breaker.IsFailure == nil {
		cfg.Breaker.IsFailure = tripsBreaker
	}
	onChange := cfg.Breaker.OnStateChange
	cfg.Breaker.OnStateChange = func(name string, from, to circuitbreaker.State) {
		metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
		logger.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		if onChange != nil {
			onChange(name, from, to)
		}
	}

	// Models share the service but are limited separately so a quality run
	// does not starve revert scoring.
	limiters := map[string]*ratelimit.Limiter{
		ModelReverted: ratelimit.NewLimiter(cfg.RPS, cfg.Burst, ModelReverted),
		ModelWP10:     ratelimit.NewLimiter(cfg.RPS, cfg.Burst, ModelWP10),
	}

	return &Client{
		httpClient: cfg.HTTPClient,
		baseURL:    base,
		wiki:       cfg.Context,
		userAgent:  cfg.UserAgent,
		timeout:    cfg.Timeout,
		retry:      cfg.Retry,
		breaker:    circuitbreaker.New(cfg.Breaker),
		limiters:   limiters,
		logger:     logger,
	}, nil
}

// tripsBreaker counts only failures that suggest the service itself is
// unhealthy. A deleted revision or a bad request says nothing about it.
func tripsBreaker(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	return retry.Classify(err).IsTransient()
}

// ScoreReverted returns P(reverted = true) for revID.
func (c *Client) ScoreReverted(ctx context.Context, revID int64) (float64, error) {
	doc, err := c.score(ctx, ModelReverted, revID)
	if err != nil {
		return 0, err
	}
	p, ok := doc.Probability["true"]
	if !ok {
		return 0, unavailable(fmt.Errorf("score revision %d: response has no probability for \"true\"", revID))
	}
	return p, nil
}

// ScoreQuality returns the wp10 prediction and class probabilities for revID.
func (c *Client) ScoreQuality(ctx context.Context, revID int64) (model.QualityScore, error) {
	doc, err := c.score(ctx, ModelWP10, revID)
	if err != nil {
		return model.QualityScore{}, err
	}

	var prediction string
	if err := json.Unmarshal(doc.Prediction, &prediction); err != nil {
		return model.QualityScore{}, unavailable(fmt.Errorf("decode wp10 prediction for revision %d: %w", revID, err))
	}
	return model.QualityScore{Prediction: prediction, Probabilities: doc.Probability}, nil
}

type scoreDoc struct {
	Prediction  json.RawMessage    `json:"prediction"`
	Probability map[string]float64 `json:"probability"`
	Error       *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) score(ctx context.Context, modelName string, revID int64) (scoreDoc, error) {
	var doc scoreDoc
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.retry.Do(ctx, "classifier."+modelName, func(ctx context.Context) error {
			var err error
			doc, err = c.fetch(ctx, modelName, revID)
			return err
		})
	})
	metrics.ClassifierCallsTotal.WithLabelValues(modelName, ratelimit.CallStatus(err)).Inc()
	if err != nil {
		return scoreDoc{}, unavailable(err)
	}
	return doc, nil
}

func (c *Client) fetch(ctx context.Context, modelName string, revID int64) (scoreDoc, error) {
	if err := c.limiters[modelName].Wait(ctx); err != nil {
		return scoreDoc{}, fmt.Errorf("rate limit wait: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	rev := strconv.FormatInt(revID, 10)
	endpoint := c.baseURL + "/scores/" + url.PathEscape(c.wiki) + "/" + modelName + "/" + rev + "/"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return scoreDoc{}, retry.Terminal(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-Request-Id", uuid.NewString())

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.ClassifierLatency.WithLabelValues(modelName).Observe(time.Since(start).Seconds())
	if err != nil {
		return scoreDoc{}, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return scoreDoc{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		return scoreDoc{}, &StatusError{Code: resp.StatusCode, Body: string(body)}
	}

	var docs map[string]scoreDoc
	if err := json.Unmarshal(body, &docs); err != nil {
		return scoreDoc{}, retry.Terminal(fmt.Errorf("unmarshal response: %w", err))
	}
	doc, ok := docs[rev]
	if !ok {
		return scoreDoc{}, retry.Terminal(fmt.Errorf("response has no score for revision %d", revID))
	}
	if doc.Error != nil {
		return scoreDoc{}, retry.Terminal(&ScoreError{RevID: revID, Type: doc.Error.Type, Message: doc.Error.Message})
	}
	return doc, nil
}
