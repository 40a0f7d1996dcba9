package invoicepay

import (
	"net/http"
	"time"

	"github.com/vitwit/invoicepay/clock"
	"github.com/vitwit/invoicepay/logger"
	"github.com/vitwit/invoicepay/metrics"
	"github.com/vitwit/invoicepay/tokens"
)

type Option func(*Client)

func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

func WithMetrics(r metrics.Recorder) Option {
	return func(c *Client) {
		c.metrics = r
	}
}

func WithTimeout(t time.Duration) Option {
	return func(c *Client) {
		if t > 0 {
			c.config.RequestTimeout = t
		}
	}
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		c.httpClient = h
	}
}

// WithHeaders adds headers to every backend request
func WithHeaders(h map[string]string) Option {
	return func(c *Client) {
		c.headers = h
	}
}

func WithClock(clk clock.Clock) Option {
	return func(c *Client) {
		if clk != nil {
			c.clock = clk
		}
	}
}

// WithRegistry replaces the built-in token registry
func WithRegistry(r *tokens.Registry) Option {
	return func(c *Client) {
		c.registry = r
	}
}
