package resilience

import (
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
)

// HTTPClientConfig shapes a retrying HTTP client.
type HTTPClientConfig struct {
	Retries int
	Timeout time.Duration
	WaitMin time.Duration
	WaitMax time.Duration
}

// NewHTTPClient returns a retryablehttp client that logs through zap.
// Retries <= 0 disables retrying.
func NewHTTPClient(cfg HTTPClientConfig) *retryablehttp.Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = cfg.Retries
	if cfg.Retries < 0 {
		rc.RetryMax = 0
	}
	rc.RetryWaitMin = 100 * time.Millisecond
	if cfg.WaitMin > 0 {
		rc.RetryWaitMin = cfg.WaitMin
	}
	rc.RetryWaitMax = 2 * time.Second
	if cfg.WaitMax > 0 {
		rc.RetryWaitMax = cfg.WaitMax
	}
	rc.HTTPClient.Timeout = 10 * time.Second
	if cfg.Timeout > 0 {
		rc.HTTPClient.Timeout = cfg.Timeout
	}
	rc.Logger = zapLeveled{zap.L().Sugar()}
	// Hand the last response back so callers can inspect the status.
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	return rc
}

// zapLeveled adapts a sugared zap logger to retryablehttp.LeveledLogger.
type zapLeveled struct {
	s *zap.SugaredLogger
}

func (z zapLeveled) Error(msg string, kv ...interface{}) { z.s.Errorw(msg, kv...) }
func (z zapLeveled) Info(msg string, kv ...interface{})  { z.s.Debugw(msg, kv...) }
func (z zapLeveled) Debug(msg string, kv ...interface{}) { z.s.Debugw(msg, kv...) }
func (z zapLeveled) Warn(msg string, kv ...interface{})  { z.s.Warnw(msg, kv...) }

var _ retryablehttp.LeveledLogger = zapLeveled{}
