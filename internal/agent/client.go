// Package agent talks to the hosted image-captioning models that describe
// uploaded X-ray images.
package agent

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"xray-analyzer/internal/analysis"
)

const (
	primaryDefaultConfidence = 0.85
	backupDefaultConfidence  = 0.75
	minServiceConfidence     = 0.5
	maxServiceConfidence     = 1.0
)

type Config struct {
	APIKey       string
	BaseURL      string
	PrimaryModel string
	BackupModel  string
	Timeout      time.Duration
	MaxAttempts  int
	LoadingWait  time.Duration
	RetryBackoff time.Duration
	// RateLimit is the number of requests per second; zero or less is unlimited.
	RateLimit float64
}

type model struct {
	name              string
	defaultConfidence float64
	breaker           *gobreaker.CircuitBreaker
}

// Client describes images with a primary model and falls back to a backup
// model when the primary fails for any reason.
type Client struct {
	cfg        Config
	httpClient *http.Client
	limiter    *rate.Limiter
	models     []model
	log        *logrus.Logger
	sleep      func(ctx context.Context, d time.Duration) error
}

func NewClient(cfg Config, log *logrus.Logger) *Client {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}

	c := &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		limiter: rate.NewLimiter(limit, 1),
		log:     log,
		sleep:   sleepContext,
	}

	if cfg.PrimaryModel != "" {
		c.models = append(c.models, c.newModel(cfg.PrimaryModel, primaryDefaultConfidence))
	}
	if cfg.BackupModel != "" && cfg.BackupModel != cfg.PrimaryModel {
		c.models = append(c.models, c.newModel(cfg.BackupModel, backupDefaultConfidence))
	}
	return c
}

func (c *Client) newModel(name string, defaultConfidence float64) model {
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && ratio >= 0.6
		},
		IsSuccessful: func(err error) bool {
			// a cancelled request says nothing about the model
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			c.log.WithFields(logrus.Fields{
				"circuit_breaker": name,
				"from_state":      from.String(),
				"to_state":        to.String(),
			}).Warn("Circuit breaker state changed")
		},
	}
	return model{
		name:              name,
		defaultConfidence: defaultConfidence,
		breaker:           gobreaker.NewCircuitBreaker(settings),
	}
}

// Enabled reports whether an API key is configured.
func (c *Client) Enabled() bool {
	return c.cfg.APIKey != ""
}

// Describe returns a caption for the image from the first model that
// succeeds. Without an API key it fails immediately with
// analysis.ErrMissingCredentials.
func (c *Client) Describe(ctx context.Context, image []byte) (analysis.Vision, error) {
	if !c.Enabled() {
		return analysis.Vision{}, analysis.ErrMissingCredentials
	}

	if len(c.models) == 0 {
		return analysis.Vision{}, fmt.Errorf("%w: no models configured", analysis.ErrVisionUnavailable)
	}

	var errs []error
	for _, m := range c.models {
		v, err := c.describeWith(ctx, m, image)
		if err == nil {
			return v, nil
		}
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
		c.log.WithError(err).WithField("model", m.name).Warn("Model failed")
	}

	return analysis.Vision{}, fmt.Errorf("%w: %w", analysis.ErrVisionUnavailable, errors.Join(errs...))
}

func (c *Client) describeWith(ctx context.Context, m model, image []byte) (analysis.Vision, error) {
	res, err := m.breaker.Execute(func() (interface{}, error) {
		return c.retry(ctx, m, image)
	})
	if err != nil {
		return analysis.Vision{}, fmt.Errorf("model %s: %w", m.name, err)
	}
	return res.(analysis.Vision), nil
}

// retry runs the attempt loop for one model.
func (c *Client) retry(ctx context.Context, m model, image []byte) (analysis.Vision, error) {
	for attempt := 1; ; attempt++ {
		log := c.log.WithFields(logrus.Fields{
			"model":   m.name,
			"attempt": attempt,
			"max":     c.cfg.MaxAttempts,
		})

		res := c.attempt(ctx, m.name, image, m.defaultConfidence)
		next := nextStep(res.outcome, attempt, c.cfg.MaxAttempts)
		log.WithFields(logrus.Fields{"outcome": res.outcome, "next": next}).Debug("Inference attempt finished")

		switch next {
		case stepDone:
			log.Info("Image described")
			return res.vision, nil
		case stepWaitLoading:
			log.WithError(res.err).Info("Model is loading, waiting")
			if err := c.sleep(ctx, c.cfg.LoadingWait); err != nil {
				return analysis.Vision{}, err
			}
		case stepBackoff:
			log.WithError(res.err).Warn("Inference attempt failed, backing off")
			if err := c.sleep(ctx, c.cfg.RetryBackoff); err != nil {
				return analysis.Vision{}, err
			}
		case stepAbandon:
			return analysis.Vision{}, fmt.Errorf("request rejected: %w", res.err)
		default:
			return analysis.Vision{}, fmt.Errorf("all %d attempts failed: %w", c.cfg.MaxAttempts, res.err)
		}
	}
}
