// Package fetch performs single network round trips for scrapers. It never
// retries; callers decide what to do with a transient failure.
package fetch

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/kapu/roster-aggregator-go/internal/constants"
	"github.com/kapu/roster-aggregator-go/internal/domain"
	"github.com/kapu/roster-aggregator-go/pkg/errors"
)

type Options struct {
	Timeout        time.Duration
	UserAgent      string
	AcceptLanguage string
	MaxBodyBytes   int64
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = constants.TimeoutDefaults.Request
	}
	if o.UserAgent == "" {
		o.UserAgent = constants.ScraperConfig.UserAgent
	}
	if o.AcceptLanguage == "" {
		o.AcceptLanguage = constants.ScraperConfig.AcceptLanguage
	}
	if o.MaxBodyBytes <= 0 {
		o.MaxBodyBytes = constants.ScraperConfig.MaxBodyBytes
	}
	return o
}

// Client owns one HTTP client. It is created per scraper attempt and closed
// when that attempt finishes.
type Client struct {
	http         *resty.Client
	maxBodyBytes int64
}

func New(opts Options) *Client {
	opts = opts.withDefaults()

	client := resty.New()
	client.SetHeader("user-agent", opts.UserAgent)
	client.SetHeader("accept-language", opts.AcceptLanguage)
	client.SetHeader("accept", "text/html,application/xhtml+xml")
	client.SetTimeout(opts.Timeout)
	client.SetRedirectPolicy(resty.FlexibleRedirectPolicy(5))

	return &Client{http: client, maxBodyBytes: opts.MaxBodyBytes}
}

// Fetch performs exactly one GET against locator.
func (c *Client) Fetch(ctx context.Context, locator string) domain.FetchOutcome {
	if err := validateLocator(locator); err != nil {
		return domain.FetchFailure(locator, 0, errors.KindPermanent, "malformed locator", err)
	}

	res, err := c.http.R().SetContext(ctx).SetDoNotParseResponse(true).Get(locator)
	if err != nil {
		kind := errors.KindTransient
		if stderrors.Is(err, context.Canceled) {
			kind = errors.KindPermanent
		}
		return domain.FetchFailure(locator, 0, kind, "request failed", err)
	}
	raw := res.RawBody()
	if raw == nil {
		raw = http.NoBody
	}
	defer raw.Close()

	status := res.StatusCode()
	if status >= 400 {
		return domain.FetchFailure(locator, status, errors.KindForStatus(status), fmt.Sprintf("unexpected status %d", status), nil)
	}
	if !res.IsSuccess() {
		return domain.FetchFailure(locator, status, errors.KindPermanent, fmt.Sprintf("unexpected status %d", status), nil)
	}

	// read one byte past the limit to tell "exactly at" from "over"
	body, err := io.ReadAll(io.LimitReader(raw, c.maxBodyBytes+1))
	if err != nil {
		kind := errors.KindTransient
		if stderrors.Is(err, context.Canceled) {
			kind = errors.KindPermanent
		}
		return domain.FetchFailure(locator, status, kind, "reading response body failed", err)
	}
	if int64(len(body)) > c.maxBodyBytes {
		return domain.FetchFailure(locator, status, errors.KindPermanent, fmt.Sprintf("response body exceeds %d bytes", c.maxBodyBytes), nil)
	}
	return domain.FetchSuccess(locator, status, body)
}

// Close releases idle connections held by the client.
func (c *Client) Close() {
	c.http.GetClient().CloseIdleConnections()
}

func validateLocator(locator string) error {
	u, err := url.Parse(locator)
	if err != nil {
		return err
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("locator %q is not an absolute http(s) URL", locator)
	}
	return nil
}
