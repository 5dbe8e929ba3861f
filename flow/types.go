package flow

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Gateway payment statuses returned by payment/getStatus.
const (
	StatusPending  = 1
	StatusPaid     = 2
	StatusRejected = 3
	StatusVoided   = 4
)

const (
	CurrencyCLP = "CLP"
	// PaymentMethodAll lets the payer pick any method enabled for the merchant.
	PaymentMethodAll = "9"
)

var ErrMalformedResponse = errors.New("flow: malformed response")

// APIError is a non-2xx answer from the gateway.
type APIError struct {
	Operation  string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("flow %s error %d: %s", e.Operation, e.StatusCode, e.Body)
}

type OrderRequest struct {
	CommerceOrder   string
	Subject         string
	Amount          string
	Email           string
	URLConfirmation string
	URLReturn       string
}

type OrderResponse struct {
	URL       string      `json:"url"`
	Token     string      `json:"token"`
	FlowOrder json.Number `json:"flowOrder"`
}

// CheckoutURL is where the payer is redirected.
func (o OrderResponse) CheckoutURL() string {
	return o.URL + "?token=" + o.Token
}

type PaymentStatus struct {
	FlowOrder     json.Number `json:"flowOrder"`
	CommerceOrder string      `json:"commerceOrder"`
	RequestDate   string      `json:"requestDate"`
	Status        int         `json:"status"`
	Subject       string      `json:"subject"`
	Currency      string      `json:"currency"`
	Amount        json.Number `json:"amount"`
	Payer         string      `json:"payer"`

	// Raw is the response body as received, kept for audit.
	Raw json.RawMessage `json:"-"`
}
