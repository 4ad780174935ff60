package offline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Outcome classifies a delivery attempt
type Outcome int

const (
	// Delivered means the server recorded the sale, now or on an earlier attempt
	Delivered Outcome = iota
	// Rejected means the server refused the payload and will keep refusing it
	Rejected
	// Retry means the sale must stay queued for the next cycle
	Retry
)

func (o Outcome) String() string {
	switch o {
	case Delivered:
		return "delivered"
	case Rejected:
		return "rejected"
	default:
		return "retry"
	}
}

// DeliveryResult is what the server answered to one delivery
type DeliveryResult struct {
	Outcome    Outcome
	StatusCode int
	Message    string
	SaleID     uuid.UUID
	// Replayed is true when the server already had the offline id
	Replayed bool
}

// Deliverer sends sales to the API
type Deliverer interface {
	Deliver(ctx context.Context, payload SalePayload) DeliveryResult
	Ping(ctx context.Context) error
}

// Client delivers queued sales to POST /api/sales
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the API at baseURL
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type errorEnvelope struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Deliver posts the sale. Transport failures come back as Retry.
func (c *Client) Deliver(ctx context.Context, payload SalePayload) DeliveryResult {
	body, err := json.Marshal(payload)
	if err != nil {
		return DeliveryResult{Outcome: Rejected, Message: fmt.Sprintf("failed to encode sale: %v", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/sales", bytes.NewReader(body))
	if err != nil {
		return DeliveryResult{Outcome: Rejected, Message: fmt.Sprintf("failed to build request: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return DeliveryResult{Outcome: Retry, Message: err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return DeliveryResult{Outcome: Retry, StatusCode: resp.StatusCode, Message: fmt.Sprintf("failed to read response: %v", err)}
	}

	result := DeliveryResult{StatusCode: resp.StatusCode, Outcome: classify(resp.StatusCode)}
	if result.Outcome == Delivered {
		var sale struct {
			ID uuid.UUID `json:"id"`
		}
		result.Replayed = resp.StatusCode == http.StatusOK
		if err := json.Unmarshal(raw, &sale); err == nil {
			result.SaleID = sale.ID
		}
		return result
	}

	var envelope errorEnvelope
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Error.Message != "" {
		result.Message = envelope.Error.Message
	} else {
		result.Message = http.StatusText(resp.StatusCode)
	}
	return result
}

// classify maps a response status to an outcome. Timeouts and throttling are
// transient; any other 4xx is permanent.
func classify(status int) Outcome {
	switch {
	case status >= 200 && status < 300:
		return Delivered
	case status == http.StatusRequestTimeout, status == http.StatusTooManyRequests:
		return Retry
	case status >= 400 && status < 500:
		return Rejected
	default:
		return Retry
	}
}

// Ping probes GET /health; any 2xx answer means the API is reachable
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("health check answered %d", resp.StatusCode)
	}
	return nil
}
