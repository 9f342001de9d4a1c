// Package ledger reads simple hash events from the ledger REST API.
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"simplehash/anchor"
)

const (
	DefaultFQDN     = "app.rkvst.io"
	DefaultPageSize = 10

	EventsPath = "/archivist/v2/assets/-/events"
	TokenPath  = "/archivist/iam/v1/appidp/token"

	proofMechanism = "SIMPLE_HASH"
	orderBy        = "SIMPLEHASHV1"

	maxErrorBody = 512
)

// Config controls where and how fast events are fetched.
type Config struct {
	FQDN string
	// BaseURL overrides the https://FQDN default, e.g. for a local proxy.
	BaseURL        string
	PageSize       int
	RequestTimeout time.Duration
	// RequestsPerSecond paces page fetches. Zero means unlimited.
	RequestsPerSecond float64
	Burst             int
}

// Endpoint returns the scheme and host every ledger request is sent to.
func (c Config) Endpoint() string {
	if c.BaseURL != "" {
		return strings.TrimRight(c.BaseURL, "/")
	}
	fqdn := c.FQDN
	if fqdn == "" {
		fqdn = DefaultFQDN
	}
	return "https://" + fqdn
}

// Client lists events of a time window, page by page, in ledger order.
type Client struct {
	endpoint   string
	pageSize   int
	timeout    time.Duration
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.SugaredLogger
}

var _ anchor.EventLister = (*Client)(nil)

// NewClient returns a client authenticating every request with tokens from ts.
func NewClient(cfg Config, ts oauth2.TokenSource, logger *zap.SugaredLogger) (*Client, error) {
	if ts == nil {
		return nil, fmt.Errorf("ledger: token source is required")
	}
	if cfg.PageSize < 0 {
		return nil, fmt.Errorf("ledger: page size must not be negative, got %d", cfg.PageSize)
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	pageSize := cfg.PageSize
	if pageSize == 0 {
		pageSize = DefaultPageSize
	}

	limit := rate.Inf
	burst := cfg.Burst
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
		if burst <= 0 {
			burst = 1
		}
	}

	return &Client{
		endpoint:   cfg.Endpoint(),
		pageSize:   pageSize,
		timeout:    cfg.RequestTimeout,
		httpClient: oauth2.NewClient(context.Background(), ts),
		limiter:    rate.NewLimiter(limit, burst),
		logger:     logger,
	}, nil
}

// ListEvents implements anchor.EventLister. Nothing is fetched until the
// first call to Next.
func (c *Client) ListEvents(start, end time.Time) anchor.EventIterator {
	return &pageIterator{client: c, start: start, end: end}
}

type page struct {
	Events        *[]anchor.RawEvent `json:"events"`
	NextPageToken string             `json:"next_page_token"`
}

type pageIterator struct {
	client     *Client
	start, end time.Time

	buf       []anchor.RawEvent
	pageToken string
	fetched   int
	err       error
}

func (it *pageIterator) Next(ctx context.Context) (anchor.RawEvent, error) {
	for {
		if len(it.buf) > 0 {
			ev := it.buf[0]
			it.buf = it.buf[1:]
			return ev, nil
		}
		if it.err != nil {
			return nil, it.err
		}
		if it.fetched > 0 && it.pageToken == "" {
			it.err = anchor.Done
			return nil, it.err
		}

		p, err := it.client.fetchPage(ctx, it.query())
		if err != nil {
			it.err = &anchor.SourceError{Err: err}
			return nil, it.err
		}
		it.fetched++
		it.buf = *p.Events
		it.pageToken = p.NextPageToken
	}
}

// query builds the first page filter; later pages only carry the page token.
func (it *pageIterator) query() url.Values {
	q := url.Values{}
	if it.fetched > 0 {
		q.Set("page_token", it.pageToken)
		return q
	}
	q.Set("proof_mechanism", proofMechanism)
	q.Set("timestamp_accepted_since", it.start.Format(time.RFC3339Nano))
	q.Set("timestamp_accepted_before", it.end.Format(time.RFC3339Nano))
	q.Set("page_size", strconv.Itoa(it.client.pageSize))
	q.Set("order_by", orderBy)
	return q
}

func (c *Client) fetchPage(ctx context.Context, q url.Values) (*page, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("wait for rate limiter: %w", err)
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	u := c.endpoint + EventsPath + "?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build events request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read events response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		return nil, fmt.Errorf("list events: unexpected status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	var p page
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("decode events page: %w", err)
	}
	if p.Events == nil {
		return nil, fmt.Errorf("decode events page: no events found")
	}
	for i, ev := range *p.Events {
		if ev == nil {
			return nil, fmt.Errorf("decode events page: entry %d is not an object", i)
		}
	}

	c.logger.Debugf("Fetched %d events (next page: %t)", len(*p.Events), p.NextPageToken != "")
	return &p, nil
}
