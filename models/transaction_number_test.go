package models

import (
	"testing"
	"time"
)

func TestFormatTransactionNumber(t *testing.T) {
	cases := []struct {
		prefix string
		period string
		value  int64
		want   string
	}{
		{"QT", "202608", 1, "QT-202608-0001"},
		{"ORD", "202608", 42, "ORD-202608-0042"},
		{"PAY", "202612", 9999, "PAY-202612-9999"},
		// past four digits the number keeps growing, no wrap
		{"TKT", "202701", 10001, "TKT-202701-10001"},
	}
	for _, c := range cases {
		got := formatTransactionNumber(c.prefix, c.period, c.value)
		if got != c.want {
			t.Errorf("formatTransactionNumber(%q, %q, %d) = %q, want %q", c.prefix, c.period, c.value, got, c.want)
		}
	}
}

func TestTransactionPeriod(t *testing.T) {
	date := time.Date(2026, time.August, 30, 23, 59, 0, 0, time.UTC)
	if got := transactionPeriod(date); got != "202608" {
		t.Fatalf("got %q", got)
	}
	jan := time.Date(2027, time.January, 1, 0, 0, 0, 0, time.UTC)
	if got := transactionPeriod(jan); got != "202701" {
		t.Fatalf("got %q", got)
	}
}

func TestDefaultTransactionPrefixes(t *testing.T) {
	want := map[TransactionModule]string{
		ModuleQuotation: "QT",
		ModuleOrder:     "ORD",
		ModulePayment:   "PAY",
		ModuleTicket:    "TKT",
	}
	for module, prefix := range want {
		if got := defaultTransactionPrefixes[module]; got != prefix {
			t.Errorf("prefix for %s: got %q, want %q", module, got, prefix)
		}
	}
}
