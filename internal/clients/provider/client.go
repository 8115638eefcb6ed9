// Package provider implements the aggregation provider pull client.
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"golang.org/x/time/rate"

	"github.com/mbaxter/finsync/internal/common"
	"github.com/mbaxter/finsync/internal/interfaces"
	"github.com/mbaxter/finsync/internal/models"
)

const (
	DefaultTimeout   = 30 * time.Second
	DefaultRateLimit = 5 // requests per second
)

// Client implements the ProviderClient interface over the provider's
// paginated snapshot API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *common.Logger
	limiter    *rate.Limiter
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithBaseURL sets the base URL
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit sets the rate limit
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
	}
}

// WithTimeout sets the per-page HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// NewClient creates a new provider client
func NewClient(baseURL, apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		logger:  common.NewSilentLogger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

type snapshotResponse struct {
	Accounts []struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		Type     string `json:"type"`
		Balance  int64  `json:"balance"`
		Currency string `json:"currency"`
	} `json:"accounts"`
	Transactions []struct {
		ID          string `json:"id"`
		AccountID   string `json:"account_id"`
		Amount      int64  `json:"amount"`
		Date        string `json:"date"`
		Description string `json:"description"`
		Category    string `json:"category"`
		Pending     bool   `json:"pending"`
	} `json:"transactions"`
	AsOf       string `json:"as_of"`
	NextCursor string `json:"next_cursor"`
	HasMore    bool   `json:"has_more"`
}

// Pull fetches one snapshot page for the account, resuming from cursor.
// Transient failures (5xx, timeouts) map to *models.ProviderUnavailableError;
// 401 and invalid-item responses map to *models.AccountRelinkRequiredError.
func (c *Client) Pull(ctx context.Context, accountID, cursor string) (*models.Snapshot, string, bool, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, "", false, fmt.Errorf("rate limit wait: %w", err)
	}

	reqURL := fmt.Sprintf("%s/v1/accounts/%s/snapshot", c.baseURL, url.PathEscape(accountID))
	if cursor != "" {
		reqURL += "?cursor=" + url.QueryEscape(cursor)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, "", false, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	c.logger.Debug().Str("account", accountID).Bool("resuming", cursor != "").Msg("Provider pull request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, "", false, err
		}
		// Timeouts and connection faults are transient.
		var netErr interface{ Timeout() bool }
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, "", false, &models.ProviderUnavailableError{Cause: err}
		}
		if errors.Is(err, os.ErrDeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
			return nil, "", false, &models.ProviderUnavailableError{Cause: err}
		}
		return nil, "", false, &models.ProviderUnavailableError{Cause: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		// fall through to decode
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		io.Copy(io.Discard, resp.Body)
		return nil, "", false, &models.AccountRelinkRequiredError{AccountID: accountID}
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		body, _ := io.ReadAll(resp.Body)
		return nil, "", false, &models.ProviderUnavailableError{
			Cause: fmt.Errorf("provider returned %d: %s", resp.StatusCode, string(body)),
		}
	default:
		body, _ := io.ReadAll(resp.Body)
		return nil, "", false, fmt.Errorf("provider returned %d: %s", resp.StatusCode, string(body))
	}

	var decoded snapshotResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, "", false, &models.ProviderUnavailableError{
			Cause: fmt.Errorf("failed to decode snapshot: %w", err),
		}
	}

	snapshot, err := toSnapshot(&decoded)
	if err != nil {
		return nil, "", false, fmt.Errorf("invalid snapshot payload: %w", err)
	}

	return snapshot, decoded.NextCursor, decoded.HasMore, nil
}

func toSnapshot(resp *snapshotResponse) (*models.Snapshot, error) {
	snapshot := &models.Snapshot{}

	if resp.AsOf != "" {
		asOf, err := time.Parse(time.RFC3339, resp.AsOf)
		if err != nil {
			return nil, fmt.Errorf("bad as_of timestamp %q: %w", resp.AsOf, err)
		}
		snapshot.Baseline = asOf
	}

	for _, a := range resp.Accounts {
		snapshot.Accounts = append(snapshot.Accounts, models.ProviderAccount{
			ID:       a.ID,
			Name:     a.Name,
			Type:     a.Type,
			Balance:  models.Money(a.Balance),
			Currency: a.Currency,
		})
	}

	for _, t := range resp.Transactions {
		date, err := time.Parse("2006-01-02", t.Date)
		if err != nil {
			// Some provider endpoints return full timestamps.
			date, err = time.Parse(time.RFC3339, t.Date)
			if err != nil {
				return nil, fmt.Errorf("bad transaction date %q: %w", t.Date, err)
			}
		}
		snapshot.Transactions = append(snapshot.Transactions, models.ProviderTransaction{
			ID:          t.ID,
			AccountID:   t.AccountID,
			Amount:      models.Money(t.Amount),
			Date:        date,
			Description: t.Description,
			Category:    t.Category,
			Pending:     t.Pending,
		})
	}

	return snapshot, nil
}

// Ensure Client implements ProviderClient
var _ interfaces.ProviderClient = (*Client)(nil)
