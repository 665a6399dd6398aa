package infra

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrSheetsUnreachable covers every delivery failure to the spreadsheet
// webhook. It is logged by the worker and never reaches the cashier flow.
var ErrSheetsUnreachable = errors.New("sheets: webhook unreachable")

// SheetsTransaction is the per-decision row appended to the sheet.
// Time is "03:04 PM", no seconds.
type SheetsTransaction struct {
	Action    string `json:"action"`
	Day       string `json:"day"`
	Time      string `json:"time"`
	StudentID string `json:"student_id"`
	MealType  string `json:"meal_type"`
	Status    string `json:"status"`
}

// SheetsSummary is the once-per-day count of approved meals.
type SheetsSummary struct {
	Action    string `json:"action"`
	Date      string `json:"date"`
	Breakfast int    `json:"breakfast"`
	Lunch     int    `json:"lunch"`
	Snacks    int    `json:"snacks"`
	Total     int    `json:"total"`
}

const (
	SheetsActionTransaction = "log_transaction"
	SheetsActionSummary     = "daily_summary"
)

type sheetsReply struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// SheetsClient posts JSON to a spreadsheet web-app endpoint.
type SheetsClient struct {
	url        string
	httpClient *http.Client
}

func NewSheetsClient(url string, timeout time.Duration) *SheetsClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &SheetsClient{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// LogTransaction appends one transaction row.
func (c *SheetsClient) LogTransaction(ctx context.Context, p SheetsTransaction) error {
	p.Action = SheetsActionTransaction
	return c.post(ctx, p)
}

// LogSummary appends the daily summary row.
func (c *SheetsClient) LogSummary(ctx context.Context, p SheetsSummary) error {
	p.Action = SheetsActionSummary
	return c.post(ctx, p)
}

// Ping reports whether the endpoint answers at all. Used by the health check.
func (c *SheetsClient) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSheetsUnreachable, err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSheetsUnreachable, err)
	}
	resp.Body.Close()
	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: status %d", ErrSheetsUnreachable, resp.StatusCode)
	}
	return nil
}

func (c *SheetsClient) post(ctx context.Context, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("sheets: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("sheets: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSheetsUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrSheetsUnreachable, resp.StatusCode)
	}

	var reply sheetsReply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return fmt.Errorf("%w: decode reply: %v", ErrSheetsUnreachable, err)
	}
	if reply.Status != "success" {
		return fmt.Errorf("%w: %s", ErrSheetsUnreachable, reply.Message)
	}
	return nil
}
