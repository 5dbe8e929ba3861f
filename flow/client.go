package flow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/vocari/reports_backend/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("vocari/flow")

const maxBodyBytes = 1 << 20

// Client talks to the Flow payment API.
type Client struct {
	apiKey    string
	secretKey string
	baseURL   string
	http      *http.Client
}

func NewClient(settings config.FlowSettings) (*Client, error) {
	if strings.TrimSpace(settings.APIKey) == "" || strings.TrimSpace(settings.SecretKey) == "" {
		return nil, errors.New("flow api key and secret are required")
	}
	if strings.TrimSpace(settings.APIURL) == "" {
		return nil, errors.New("flow api url is required")
	}
	timeout := settings.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Client{
		apiKey:    settings.APIKey,
		secretKey: settings.SecretKey,
		baseURL:   strings.TrimRight(settings.APIURL, "/"),
		http:      &http.Client{Timeout: timeout},
	}, nil
}

// CreateOrder registers a payment order and returns the checkout url and token.
func (c *Client) CreateOrder(ctx context.Context, req OrderRequest) (*OrderResponse, error) {
	ctx, span := tracer.Start(ctx, "flow.CreateOrder", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(attribute.String("flow.commerce_order", req.CommerceOrder))

	params := map[string]string{
		"apiKey":          c.apiKey,
		"commerceOrder":   req.CommerceOrder,
		"subject":         req.Subject,
		"currency":        CurrencyCLP,
		"amount":          req.Amount,
		"email":           req.Email,
		"paymentMethod":   PaymentMethodAll,
		"urlConfirmation": req.URLConfirmation,
		"urlReturn":       req.URLReturn,
	}
	form := SignedValues(params, c.secretKey)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/payment/create", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("Accept", "application/json")

	body, err := c.do(httpReq, "payment/create")
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}

	var out OrderResponse
	if err := json.Unmarshal(body, &out); err != nil {
		err = fmt.Errorf("%w: decode payment/create: %v", ErrMalformedResponse, err)
		recordSpanError(span, err)
		return nil, err
	}
	if out.URL == "" || out.Token == "" {
		err = fmt.Errorf("%w: payment/create missing url or token", ErrMalformedResponse)
		recordSpanError(span, err)
		return nil, err
	}
	return &out, nil
}

// GetStatus queries the authoritative payment status for token.
func (c *Client) GetStatus(ctx context.Context, token string) (*PaymentStatus, error) {
	ctx, span := tracer.Start(ctx, "flow.GetStatus", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	query := SignedValues(map[string]string{
		"apiKey": c.apiKey,
		"token":  token,
	}, c.secretKey)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/payment/getStatus?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "application/json")

	body, err := c.do(httpReq, "payment/getStatus")
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}

	var out PaymentStatus
	if err := json.Unmarshal(body, &out); err != nil {
		err = fmt.Errorf("%w: decode payment/getStatus: %v", ErrMalformedResponse, err)
		recordSpanError(span, err)
		return nil, err
	}
	out.Raw = json.RawMessage(body)
	span.SetAttributes(
		attribute.Int("flow.status", out.Status),
		attribute.String("flow.commerce_order", out.CommerceOrder),
	)
	return &out, nil
}

func (c *Client) do(req *http.Request, operation string) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("flow %s request: %w", operation, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("flow %s read body: %w", operation, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{Operation: operation, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return body, nil
}

func recordSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
