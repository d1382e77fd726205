package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ignite/portal-mailer/internal/pkg/logger"
)

// SparkPostMailer sends through the SparkPost transmissions API.
type SparkPostMailer struct {
	apiKey   string
	baseURL  string
	client   *http.Client
	throttle *Throttle
}

// NewSparkPostMailer creates a SparkPost mailer. throttle may be nil when no
// Redis-backed rate limit is configured.
func NewSparkPostMailer(apiKey, baseURL string, timeout time.Duration, throttle *Throttle) *SparkPostMailer {
	if baseURL == "" {
		baseURL = "https://api.sparkpost.com/api/v1"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &SparkPostMailer{
		apiKey:   apiKey,
		baseURL:  baseURL,
		client:   &http.Client{Timeout: timeout},
		throttle: throttle,
	}
}

// Send submits one transmission.
func (m *SparkPostMailer) Send(ctx context.Context, msg *Message) (*Result, error) {
	if m.throttle != nil && !m.throttle.Allow(ctx, "sparkpost") {
		return &Result{Accepted: false, Reason: "provider rate limit exceeded"}, nil
	}

	metadata := map[string]interface{}{}
	for k, v := range msg.Metadata {
		metadata[k] = v
	}

	transmission := map[string]interface{}{
		"recipients": []map[string]interface{}{
			{
				"address": map[string]string{
					"email": msg.To,
					"name":  msg.ToName,
				},
			},
		},
		"content": map[string]interface{}{
			"from": map[string]string{
				"email": msg.FromEmail,
				"name":  msg.FromName,
			},
			"subject": msg.Subject,
			"html":    msg.HTMLBody,
			"text":    msg.TextBody,
		},
		"metadata": metadata,
	}

	body, err := json.Marshal(transmission)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", m.baseURL+"/transmissions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", m.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sparkpost request: %w", err)
	}
	defer resp.Body.Close()

	var spResp struct {
		Results struct {
			TotalAcceptedRecipients int    `json:"total_accepted_recipients"`
			ID                      string `json:"id"`
		} `json:"results"`
		Errors []struct {
			Message string `json:"message"`
			Code    string `json:"code"`
		} `json:"errors"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&spResp)

	if resp.StatusCode != http.StatusOK || len(spResp.Errors) > 0 {
		reason := fmt.Sprintf("sparkpost rejected with status %d", resp.StatusCode)
		if len(spResp.Errors) > 0 {
			reason = spResp.Errors[0].Message
		}
		logger.Warn("sparkpost rejection", "recipient", msg.To, "reason", reason)
		return &Result{Accepted: false, Reason: reason}, nil
	}

	return &Result{Accepted: true, MessageID: spResp.Results.ID}, nil
}
