package payments

import "errors"

var (
	errMissingDatabase = errors.New("database is not configured")
	errMissingGateway  = errors.New("payment gateway is not configured")
)
