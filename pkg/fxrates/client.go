package fxrates

// FX RATE PROVIDER CLIENT

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

var ErrNoRates = errors.New("fxrates: provider returned no usable rates")

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	maxElapsed time.Duration
	logger     *zap.Logger
}

// latestResponse matches the frankfurter.app /latest payload.
type latestResponse struct {
	Amount float64            `json:"amount"`
	Base   string             `json:"base"`
	Date   string             `json:"date"`
	Rates  map[string]float64 `json:"rates"`
}

// Quote holds local-currency value per one unit of each foreign currency.
type Quote struct {
	Local string
	Date  string
	Rates map[string]float64
}

func NewClient(baseURL, token string, timeout, maxElapsed time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if maxElapsed <= 0 {
		maxElapsed = time.Minute
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		maxElapsed: maxElapsed,
		logger:     logger,
	}
}

// Latest fetches today's rates for symbols expressed in the local currency.
// The provider quotes foreign units per local unit; the result is inverted.
func (c *Client) Latest(ctx context.Context, local string, symbols []string) (Quote, error) {
	local = strings.ToUpper(strings.TrimSpace(local))
	wanted := make([]string, 0, len(symbols))
	for _, s := range symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s != "" && s != local {
			wanted = append(wanted, s)
		}
	}
	if len(wanted) == 0 {
		return Quote{}, fmt.Errorf("fxrates: no foreign currencies requested")
	}

	q := url.Values{}
	q.Set("from", local)
	q.Set("to", strings.Join(wanted, ","))
	endpoint := fmt.Sprintf("%s/latest?%s", c.baseURL, q.Encode())

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = c.maxElapsed
	policy.MaxInterval = 10 * time.Second

	var resp latestResponse
	err := backoff.RetryNotify(
		func() error {
			var err error
			resp, err = c.fetch(ctx, endpoint)
			return err
		},
		backoff.WithContext(policy, ctx),
		func(err error, next time.Duration) {
			c.logger.Warn("FX rate request failed, retrying...",
				zap.Error(err),
				zap.Duration("next_attempt_in", next))
		},
	)
	if err != nil {
		return Quote{}, fmt.Errorf("fxrates: latest: %w", err)
	}

	out := Quote{Local: local, Date: resp.Date, Rates: make(map[string]float64, len(wanted))}
	for _, code := range wanted {
		perLocal, ok := resp.Rates[code]
		if !ok || perLocal <= 0 {
			continue
		}
		out.Rates[code] = 1 / perLocal
	}
	if len(out.Rates) == 0 {
		return Quote{}, ErrNoRates
	}
	return out, nil
}

func (c *Client) fetch(ctx context.Context, endpoint string) (latestResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return latestResponse{}, backoff.Permanent(fmt.Errorf("create request: %w", err))
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return latestResponse{}, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return latestResponse{}, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return latestResponse{}, backoff.Permanent(fmt.Errorf("unexpected status: %d", resp.StatusCode))
	}

	var out latestResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return latestResponse{}, backoff.Permanent(fmt.Errorf("decode response: %w", err))
	}
	return out, nil
}
