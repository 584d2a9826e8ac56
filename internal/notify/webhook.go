// ABOUTME: Webhook notifier that POSTs new tickets as JSON
// ABOUTME: The payload carries a Markdown brief and its HTML rendering

package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/2389/helpdesk/internal/escalation"
)

// WebhookPayload is the JSON body sent for each ticket.
type WebhookPayload struct {
	TicketID        string    `json:"ticket_id"`
	SessionID       string    `json:"session_id"`
	Priority        string    `json:"priority"`
	Status          string    `json:"status"`
	Reason          string    `json:"reason"`
	CustomerIssue   string    `json:"customer_issue"`
	ETASeconds      int64     `json:"eta_seconds"`
	CreatedAt       time.Time `json:"created_at"`
	AttemptedSteps  []string  `json:"attempted_steps,omitempty"`
	KeyUserMessages []string  `json:"key_user_messages,omitempty"`
	BriefMarkdown   string    `json:"brief_markdown"`
	BriefHTML       string    `json:"brief_html"`
}

// Webhook POSTs tickets to an HTTP endpoint.
type Webhook struct {
	url    string
	client *http.Client
}

// NewWebhook creates a Webhook. A nil client uses http.DefaultClient.
func NewWebhook(url string, client *http.Client) *Webhook {
	if client == nil {
		client = http.DefaultClient
	}
	return &Webhook{url: url, client: client}
}

// Notify sends the ticket. Any non-2xx response is an error.
func (w *Webhook) Notify(ctx context.Context, t escalation.Ticket) error {
	brief := Brief(t)
	html, err := RenderBrief(brief)
	if err != nil {
		return err
	}

	body, err := json.Marshal(WebhookPayload{
		TicketID:        t.ID,
		SessionID:       t.SessionID,
		Priority:        string(t.Priority),
		Status:          string(t.Status),
		Reason:          t.Reason,
		CustomerIssue:   t.CustomerIssue,
		ETASeconds:      int64(t.EstimatedResponseTime / time.Second),
		CreatedAt:       t.CreatedAt.UTC(),
		AttemptedSteps:  t.Summary.AttemptedSteps,
		KeyUserMessages: t.Summary.KeyUserMessages,
		BriefMarkdown:   brief,
		BriefHTML:       html,
	})
	if err != nil {
		return fmt.Errorf("encoding webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("posting webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook returned %s", resp.Status)
	}
	return nil
}
