package ledger

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"transcoderctl/internal/api"
	"transcoderctl/internal/config"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSaveJobsReplacesSnapshot(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return fixed }

	if _, ok, err := store.CachedJobs(ctx); err != nil || ok {
		t.Fatalf("expected empty cache, ok=%v err=%v", ok, err)
	}

	first := []api.Job{
		{JobID: "a", State: api.StateQueued, InputS3Path: "a_in.mp4"},
		{JobID: "b", State: api.StateInProgress, Playlists: []api.PlaylistRef{{ID: "pl", Name: "season"}}},
	}
	if err := store.SaveJobs(ctx, 1, 10, first); err != nil {
		t.Fatalf("SaveJobs: %v", err)
	}
	if err := store.SaveJobs(ctx, 2, 25, first[1:]); err != nil {
		t.Fatalf("SaveJobs: %v", err)
	}

	snap, ok, err := store.CachedJobs(ctx)
	if err != nil || !ok {
		t.Fatalf("CachedJobs: ok=%v err=%v", ok, err)
	}
	if snap.Page != 2 || snap.PageSize != 25 || !snap.FetchedAt.Equal(fixed) {
		t.Fatalf("unexpected snapshot header %+v", snap)
	}
	if len(snap.Jobs) != 1 || snap.Jobs[0].JobID != "b" || snap.Jobs[0].Playlists[0].Name != "season" {
		t.Fatalf("unexpected jobs %+v", snap.Jobs)
	}
}

func TestSubmissionsNewestFirst(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	if _, err := store.RecordSubmission(ctx, Submission{
		Kind: KindJob, Name: "clip", InputS3Path: "clip_in.mp4", OutputS3Path: "clip_out.mp4",
		PresetID: "p1", SubmittedAt: base,
	}); err != nil {
		t.Fatalf("RecordSubmission: %v", err)
	}
	if _, err := store.RecordSubmission(ctx, Submission{
		Kind: KindPlaylist, Name: "season", InputS3Path: "season_in.mp4",
		JobIDs: []string{"season-0", "season-1"}, SubmittedAt: base.Add(time.Hour),
	}); err != nil {
		t.Fatalf("RecordSubmission: %v", err)
	}

	subs, err := store.Submissions(ctx, 0)
	if err != nil {
		t.Fatalf("Submissions: %v", err)
	}
	if len(subs) != 2 {
		t.Fatalf("expected 2 submissions, got %d", len(subs))
	}
	if subs[0].Kind != KindPlaylist || len(subs[0].JobIDs) != 2 || subs[0].JobIDs[1] != "season-1" {
		t.Fatalf("unexpected newest submission %+v", subs[0])
	}
	if subs[1].PresetID != "p1" || subs[1].Pipeline != "" || subs[1].JobIDs != nil {
		t.Fatalf("unexpected oldest submission %+v", subs[1])
	}

	limited, err := store.Submissions(ctx, 1)
	if err != nil || len(limited) != 1 {
		t.Fatalf("expected 1 limited submission, got %d (%v)", len(limited), err)
	}
}

func TestRecordSubmissionValidates(t *testing.T) {
	store := openTestStore(t)
	if _, err := store.RecordSubmission(context.Background(), Submission{Kind: "batch", Name: "x"}); err == nil {
		t.Fatal("expected error for unknown kind")
	}
	if _, err := store.RecordSubmission(context.Background(), Submission{Kind: KindJob}); err == nil {
		t.Fatal("expected error for missing name")
	}
}

func TestOpenRejectsOtherSchemaVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := store.db.Exec("UPDATE schema_version SET version = 99"); err != nil {
		t.Fatalf("update version: %v", err)
	}
	_ = store.Close()

	if _, err := Open(path); !errors.Is(err, ErrSchemaMismatch) {
		t.Fatalf("expected schema mismatch, got %v", err)
	}
}

func TestOpenConfigDisabled(t *testing.T) {
	cfg := config.Default()
	cfg.Ledger.Enabled = false
	if _, err := OpenConfig(&cfg); !errors.Is(err, ErrDisabled) {
		t.Fatalf("expected ErrDisabled, got %v", err)
	}
}

func TestRetryOnBusyStopsOnOtherErrors(t *testing.T) {
	calls := 0
	boom := errors.New("boom")
	err := retryOnBusy(context.Background(), func() error {
		calls++
		return boom
	})
	if !errors.Is(err, boom) || calls != 1 {
		t.Fatalf("expected single call with boom, got %d calls err=%v", calls, err)
	}

	calls = 0
	err = retryOnBusy(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("database is locked")
		}
		return nil
	})
	if err != nil || calls != 3 {
		t.Fatalf("expected success after 3 calls, got %d err=%v", calls, err)
	}
}
