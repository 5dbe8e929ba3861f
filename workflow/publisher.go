package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/vocari/reports_backend/config"
	"github.com/vocari/reports_backend/models"
)

// JobPublisher hands a generation job to whatever runs the generator.
// The returned id is stored as the job's message id.
type JobPublisher interface {
	Publish(ctx context.Context, msg models.GenerationJobMessage) (string, error)
}

// PubSubPublisher publishes jobs to a topic consumed by the push worker.
type PubSubPublisher struct {
	Topic string
}

func (p PubSubPublisher) Publish(ctx context.Context, msg models.GenerationJobMessage) (string, error) {
	attrs := map[string]string{
		"report_id": msg.ReportId,
		"job_id":    msg.JobId,
	}
	if msg.CorrelationId != "" {
		attrs["correlation_id"] = msg.CorrelationId
	}
	return config.PublishJSONWithResult(ctx, p.Topic, attrs, msg)
}

// HTTPPublisher calls the generation endpoint directly. Used when no Pub/Sub
// project is configured.
type HTTPPublisher struct {
	URL   string
	Token string
	HTTP  *http.Client
}

func NewHTTPPublisher(url, token string, timeout time.Duration) *HTTPPublisher {
	return &HTTPPublisher{URL: url, Token: token, HTTP: &http.Client{Timeout: timeout}}
}

func (p *HTTPPublisher) Publish(ctx context.Context, msg models.GenerationJobMessage) (string, error) {
	if p.URL == "" {
		return "", errors.New("report generation url is not configured")
	}
	body, err := json.Marshal(map[string]string{"reportId": msg.ReportId})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.URL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if p.Token != "" {
		req.Header.Set("Authorization", "Bearer "+p.Token)
	}
	if msg.CorrelationId != "" {
		req.Header.Set("x-correlation-id", msg.CorrelationId)
	}

	client := p.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("report generation request: %w", err)
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("report generation returned %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	return "http:" + msg.JobId, nil
}

// NewJobPublisher picks Pub/Sub when a project and topic are configured.
func NewJobPublisher(settings config.DispatchSettings, timeout time.Duration) JobPublisher {
	if settings.UsePubSub() {
		return PubSubPublisher{Topic: settings.Topic}
	}
	return NewHTTPPublisher(settings.GenerationURL, settings.InternalToken, timeout)
}
