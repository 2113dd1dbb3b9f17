package db

import (
	"compress/gzip"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/dougalf/lolat/internal/testutil"
	"github.com/dougalf/lolat/internal/timeutil"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(testutil.TempPath(t, "lolat.db"))
	testutil.AssertNoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRecordReading(t *testing.T) {
	db := newTestDB(t)
	clock := timeutil.NewMockClock(testutil.Epoch)
	db.SetClock(clock)
	ctx := context.Background()

	if err := db.RecordReading(ctx, 1050, 0); err != nil {
		t.Fatalf("RecordReading: %v", err)
	}
	clock.Advance(15 * time.Minute)
	if err := db.RecordReading(ctx, 0, 0); err != nil {
		t.Fatalf("RecordReading: %v", err)
	}

	got, err := db.RecentReadings(ctx, 10)
	if err != nil {
		t.Fatalf("RecentReadings: %v", err)
	}
	want := []Reading{
		{RunID: db.RunID(), Reading: 0, Volume: 0, RecordedAt: testutil.Epoch.Add(15 * time.Minute)},
		{RunID: db.RunID(), Reading: 1050, Volume: 0, RecordedAt: testutil.Epoch},
	}
	if diff := cmp.Diff(want, got, cmpopts.IgnoreFields(Reading{}, "ID")); diff != "" {
		t.Errorf("RecentReadings mismatch (-want +got):\n%s", diff)
	}
}

func TestRecentReadings_Limit(t *testing.T) {
	db := newTestDB(t)
	clock := timeutil.NewMockClock(testutil.Epoch)
	db.SetClock(clock)
	ctx := context.Background()

	for i := int64(1); i <= 5; i++ {
		clock.Advance(time.Minute)
		if err := db.RecordReading(ctx, 100*i, i); err != nil {
			t.Fatalf("RecordReading: %v", err)
		}
	}

	got, err := db.RecentReadings(ctx, 2)
	if err != nil {
		t.Fatalf("RecentReadings: %v", err)
	}
	if len(got) != 2 || got[0].Reading != 500 || got[1].Reading != 400 {
		t.Errorf("RecentReadings(2) = %+v, want readings 500 then 400", got)
	}

	none, err := db.RecentReadings(ctx, 0)
	if err != nil {
		t.Fatalf("RecentReadings(0): %v", err)
	}
	if len(none) != 0 {
		t.Errorf("RecentReadings(0) returned %d rows", len(none))
	}
}

func TestLatestReading(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if _, err := db.LatestReading(ctx); !errors.Is(err, ErrNoReadings) {
		t.Fatalf("LatestReading on empty log error = %v, want ErrNoReadings", err)
	}

	clock := timeutil.NewMockClock(testutil.Epoch)
	db.SetClock(clock)
	if err := db.RecordReading(ctx, 1000, 100); err != nil {
		t.Fatalf("RecordReading: %v", err)
	}
	clock.Advance(time.Second)
	if err := db.RecordReading(ctx, 1010, -1); err != nil {
		t.Fatalf("RecordReading: %v", err)
	}

	got, err := db.LatestReading(ctx)
	if err != nil {
		t.Fatalf("LatestReading: %v", err)
	}
	if got.Reading != 1010 || got.Volume != -1 || !got.RecordedAt.Equal(testutil.Epoch.Add(time.Second)) {
		t.Errorf("LatestReading = %+v", got)
	}
}

func TestRunIDsDifferPerOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lolat.db")
	a, err := NewDB(path)
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	defer a.Close()
	b, err := OpenDB(path)
	if err != nil {
		t.Fatalf("OpenDB: %v", err)
	}
	defer b.Close()

	if a.RunID() == "" || a.RunID() == b.RunID() {
		t.Errorf("run ids %q and %q should be distinct and non-empty", a.RunID(), b.RunID())
	}
}

func TestAttachAdminRoutes_Backup(t *testing.T) {
	db := newTestDB(t)
	if err := db.RecordReading(context.Background(), 1200, 42); err != nil {
		t.Fatalf("RecordReading: %v", err)
	}

	mux := http.NewServeMux()
	if err := db.AttachAdminRoutes(mux); err != nil {
		t.Fatalf("AttachAdminRoutes: %v", err)
	}

	// tsweb only serves /debug/ to loopback callers.
	req := httptest.NewRequest(http.MethodGet, "/debug/backup", nil)
	req.RemoteAddr = "127.0.0.1:12345"
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("backup status = %d, body %q", rec.Code, rec.Body.String())
	}
	gz, err := gzip.NewReader(rec.Body)
	if err != nil {
		t.Fatalf("backup is not gzip: %v", err)
	}
	data, err := io.ReadAll(gz)
	if err != nil {
		t.Fatalf("read backup: %v", err)
	}
	if len(data) < 16 || string(data[:15]) != "SQLite format 3" {
		t.Errorf("backup does not look like a SQLite database (%d bytes)", len(data))
	}
}
