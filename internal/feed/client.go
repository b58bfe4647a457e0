// Package feed reads the external sales spreadsheet that lists sold units.
// The feed is read-only and eventually consistent; it is authoritative
// only for the fact that a unit is sold.
package feed

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/iliyamo/unit-inventory/internal/model"
)

// ErrNotConfigured is wrapped in an UnavailableError when no feed URL is
// set.
var ErrNotConfigured = errors.New("sales feed url not configured")

// UnavailableError reports that the sold-unit feed could not be read.
// Callers degrade to "no feed-sold units" rather than failing.
type UnavailableError struct {
	StatusCode int
	Err        error
}

func (e *UnavailableError) Error() string {
	switch {
	case e.Err != nil && e.StatusCode != 0:
		return fmt.Sprintf("sales feed unavailable (status %d): %v", e.StatusCode, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("sales feed unavailable: %v", e.Err)
	default:
		return fmt.Sprintf("sales feed unavailable (status %d)", e.StatusCode)
	}
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// Options configures the HTTP client.
type Options struct {
	URL          string
	Timeout      time.Duration
	Attempts     int // total tries, first call included
	RetryWait    time.Duration
	RetryMaxWait time.Duration
}

// Client fetches the sold-unit feed over HTTP.
type Client struct {
	url  string
	http *resty.Client
	log  *zap.Logger
}

// NewClient builds a Client.  Failed calls and 5xx responses are retried
// with exponential backoff until Attempts is exhausted.
func NewClient(opts Options, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Attempts < 1 {
		opts.Attempts = 3
	}
	if opts.RetryWait <= 0 {
		opts.RetryWait = 250 * time.Millisecond
	}
	if opts.RetryMaxWait < opts.RetryWait {
		opts.RetryMaxWait = 4 * opts.RetryWait
	}
	hc := resty.New().
		SetTimeout(opts.Timeout).
		SetRetryCount(opts.Attempts-1).
		SetRetryWaitTime(opts.RetryWait).
		SetRetryMaxWaitTime(opts.RetryMaxWait).
		SetHeader("Accept", "application/json").
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= http.StatusInternalServerError
		})
	return &Client{url: opts.URL, http: hc, log: log}
}

// FetchSoldUnits downloads and parses the feed.  On any failure it
// returns an empty map together with an *UnavailableError.
func (c *Client) FetchSoldUnits(ctx context.Context) (map[string]model.SoldUnitInfo, error) {
	empty := map[string]model.SoldUnitInfo{}
	if c.url == "" {
		return empty, &UnavailableError{Err: ErrNotConfigured}
	}
	resp, err := c.http.R().SetContext(ctx).Get(c.url)
	if err != nil {
		c.log.Warn("sales feed request failed", zap.Error(err))
		return empty, &UnavailableError{Err: err}
	}
	if resp.IsError() {
		c.log.Warn("sales feed returned error status", zap.Int("status", resp.StatusCode()))
		return empty, &UnavailableError{StatusCode: resp.StatusCode()}
	}
	rows, err := decodeRows(resp.Body())
	if err != nil {
		c.log.Warn("sales feed payload rejected", zap.Error(err))
		return empty, &UnavailableError{StatusCode: resp.StatusCode(), Err: err}
	}
	sold := ParseRows(rows)
	c.log.Debug("sales feed fetched", zap.Int("rows", len(rows)), zap.Int("sold_units", len(sold)))
	return sold, nil
}
