package eventlog

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func openTestSQLite(t *testing.T) *SQLite {
	t.Helper()
	path := filepath.Join(t.TempDir(), "access_log.db")
	log, err := OpenSQLite(context.Background(), path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() {
		if err := log.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return log
}

func TestSQLiteAppendRecent(t *testing.T) {
	log := openTestSQLite(t)
	ctx := context.Background()

	ts := time.Date(2026, 8, 29, 14, 30, 0, 0, time.Local)
	events := []Event{
		{Timestamp: ts, IdentityID: strPtr("u1"), Status: "Granted", Confidence: floatPtr(0.91)},
		{Timestamp: ts.Add(time.Second), Status: "Denied", Confidence: floatPtr(0.33)},
	}
	for _, ev := range events {
		if err := log.Append(ctx, ev); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	got, err := log.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 events, got %d", len(got))
	}

	// Newest first: the denial came second.
	if got[0].Status != "Denied" || got[0].IdentityID != nil {
		t.Errorf("unexpected newest event: %+v", got[0])
	}
	if got[1].Status != "Granted" || got[1].IdentityID == nil || *got[1].IdentityID != "u1" {
		t.Errorf("unexpected oldest event: %+v", got[1])
	}
	if *got[1].Confidence != 0.91 {
		t.Errorf("confidence not preserved: %v", *got[1].Confidence)
	}
	if !got[1].Timestamp.Equal(ts) {
		t.Errorf("timestamp not preserved: got %v, want %v", got[1].Timestamp, ts)
	}
	if got[0].ID <= got[1].ID {
		t.Errorf("auto-increment IDs must decrease newest-first: %d, %d", got[0].ID, got[1].ID)
	}
}

func TestSQLiteRecentOnEmptyLog(t *testing.T) {
	log := openTestSQLite(t)

	got, err := log.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("Recent on empty log: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no events, got %d", len(got))
	}
}

func TestSQLiteConcurrentAppends(t *testing.T) {
	testConcurrentAppends(t, openTestSQLite(t))
}

func TestSQLiteAppendAfterClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "access_log.db")
	ctx := context.Background()

	log, err := OpenSQLite(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	if err := log.Close(); err != nil {
		t.Fatal(err)
	}

	// A handler finishing after shutdown must get an error, not a panic.
	if err := log.Append(ctx, grantedEvent("u1", 0.8)); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func TestSQLitePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "access_log.db")
	ctx := context.Background()

	log, err := OpenSQLite(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	if err := log.Append(ctx, grantedEvent("u1", 0.8)); err != nil {
		t.Fatal(err)
	}
	if err := log.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := OpenSQLite(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()

	got, err := reopened.Recent(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || *got[0].IdentityID != "u1" {
		t.Errorf("events lost across reopen: %+v", got)
	}
}
