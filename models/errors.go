package models

import (
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidOperation  = errors.New("invalid operation")
	ErrBusinessIdMissing = errors.New("business id is required")
)

// invalidTransitionError wraps ErrInvalidOperation so handlers can map a
// disallowed status change to a client-correctable response.
func invalidTransitionError(entity string, from, to string) error {
	return fmt.Errorf("%w: cannot transition %s from %s to %s", ErrInvalidOperation, entity, from, to)
}

// InsufficientInventoryError is returned when a reserve or deduct would take
// available stock below zero. Callers map it to HTTP 409.
type InsufficientInventoryError struct {
	ItemCode  string
	Requested decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientInventoryError) Error() string {
	return fmt.Sprintf("insufficient stock for item %s: requested %s, available %s",
		e.ItemCode, e.Requested.String(), e.Available.String())
}

// OrderCreationFailedError wraps any failure inside the order fulfillment
// transaction after all writes have been rolled back.
type OrderCreationFailedError struct {
	CorrelationId string
	Err           error
}

func (e *OrderCreationFailedError) Error() string {
	return fmt.Sprintf("order creation failed (correlation %s): %v", e.CorrelationId, e.Err)
}

func (e *OrderCreationFailedError) Unwrap() error {
	return e.Err
}

// IsDuplicateKeyError detects MySQL error 1062 so unique-constraint races can
// be translated into domain errors instead of surfacing driver errors.
func IsDuplicateKeyError(err error) bool {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return false
}
