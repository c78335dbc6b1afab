package workflow

import (
	"context"
	"errors"
	"testing"
	"time"

	mysqlDriver "github.com/go-sql-driver/mysql"
)

func TestNextBackoffDoublesAndCaps(t *testing.T) {
	d := &OutboxDispatcher{InitialBackoff: 5 * time.Second}

	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 5 * time.Second},
		{2, 10 * time.Second},
		{3, 20 * time.Second},
		{6, 160 * time.Second},
		{9, 10 * time.Minute},
		{20, 10 * time.Minute},
	}
	for _, tc := range cases {
		if got := d.nextBackoff(tc.attempt); got != tc.want {
			t.Errorf("attempt %d: got %s want %s", tc.attempt, got, tc.want)
		}
	}
}

func TestDispatcherDefaults(t *testing.T) {
	d := NewOutboxDispatcher(nil, nil)
	if d.DispatcherID == "" {
		t.Fatal("dispatcher id must be set so stale locks are attributable")
	}
	if d.MaxAttempts <= 0 {
		t.Fatal("max attempts must be bounded or poison events retry forever")
	}
	if d.BatchSize <= 0 || d.PollInterval <= 0 || d.LockTimeout <= 0 {
		t.Fatalf("defaults not initialised: %+v", d)
	}
	if d.InitialBackoff >= d.LockTimeout {
		t.Fatal("first retry must land before a crashed claim is reclaimed")
	}
}

func TestIsDuplicateKeyErr(t *testing.T) {
	dup := &mysqlDriver.MySQLError{Number: 1062, Message: "Duplicate entry"}
	if !isDuplicateKeyErr(dup) {
		t.Fatal("1062 should be recognised as duplicate key")
	}
	if !isDuplicateKeyErr(errors.Join(errors.New("wrapped"), dup)) {
		t.Fatal("wrapped 1062 should be recognised")
	}
	if isDuplicateKeyErr(&mysqlDriver.MySQLError{Number: 1213}) {
		t.Fatal("deadlock is not a duplicate key")
	}
	if isDuplicateKeyErr(errors.New("plain")) {
		t.Fatal("plain error is not a duplicate key")
	}
}

func TestDispatchOnceToleratesMissingDB(t *testing.T) {
	d := NewOutboxDispatcher(nil, nil)
	// Must be a no-op before the database connection is established.
	d.dispatchOnce(context.Background())
}
