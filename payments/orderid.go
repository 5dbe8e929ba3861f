package payments

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	commerceOrderPrefix = "vocari"
	orderSuffixLen      = 6
	orderSuffixAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
)

// NewCommerceOrder builds vocari-<unix millis>-<6 alnum>. It only needs to be
// unique in practice; the unique index on flow_order backs it up.
func NewCommerceOrder(now time.Time) string {
	return fmt.Sprintf("%s-%d-%s", commerceOrderPrefix, now.UnixMilli(), orderSuffix())
}

func orderSuffix() string {
	// bytes 0..5 of a v4 uuid are fully random
	id := uuid.New()
	out := make([]byte, orderSuffixLen)
	for i := 0; i < orderSuffixLen; i++ {
		out[i] = orderSuffixAlphabet[int(id[i])%len(orderSuffixAlphabet)]
	}
	return string(out)
}
