package config

import (
	"os"
	"strings"
)

// StrictQuotationReservation flips the reservation policy on quotation
// creation from best-effort (a line item that cannot be reserved is skipped
// and recorded as unreserved) to strict (the whole quotation creation fails).
//
// The best-effort default mirrors how the sales team actually works: a
// quotation is a proposal, not a commitment, so missing stock must not block
// sending it. Fulfillment is always strict regardless of this flag.
//
// Set via env:
// - QUOTATION_STRICT_RESERVE=true
func StrictQuotationReservation() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("QUOTATION_STRICT_RESERVE")))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

// OutboxDirectProcessing controls the local-delivery fallback for status
// transition events when Pub/Sub is not configured or misbehaving.
//
// Set via env:
// - OUTBOX_DIRECT_PROCESSING=true|false (default: run as a safety net)
func OutboxDirectProcessing() bool {
	val := strings.ToLower(strings.TrimSpace(os.Getenv("OUTBOX_DIRECT_PROCESSING")))
	if val == "true" {
		return true
	}
	if val == "false" {
		return false
	}
	return true
}
