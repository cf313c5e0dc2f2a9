package api

import (
	"encoding/json"
	"testing"
	"time"
)

func TestTimestampRoundTripNull(t *testing.T) {
	var ts Timestamp
	if err := json.Unmarshal([]byte("null"), &ts); err != nil {
		t.Fatalf("unmarshal null: %v", err)
	}
	if !ts.IsZero() {
		t.Fatalf("expected zero timestamp, got %v", ts)
	}
	out, err := json.Marshal(ts)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != "null" {
		t.Fatalf("expected null, got %s", out)
	}
}

func TestTimestampRejectsGarbage(t *testing.T) {
	var ts Timestamp
	if err := json.Unmarshal([]byte(`"yesterday"`), &ts); err == nil {
		t.Fatal("expected error for unparseable timestamp")
	}
	if err := json.Unmarshal([]byte(`12`), &ts); err == nil {
		t.Fatal("expected error for numeric timestamp")
	}
}

func TestLatestPlaylistPrefersNewest(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	job := Job{Playlists: []PlaylistRef{
		{ID: "old", UpdatedAt: NewTimestamp(base)},
		{ID: "new", UpdatedAt: NewTimestamp(base.Add(time.Hour))},
	}}
	ref, ok := job.LatestPlaylist()
	if !ok || ref.ID != "new" {
		t.Fatalf("expected newest playlist, got %+v", ref)
	}
	if _, ok := (Job{}).LatestPlaylist(); ok {
		t.Fatal("expected no playlist for empty job")
	}
}

func TestJobDurationAndStates(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	job := Job{
		State:                StateCompleted,
		TranscodeStartedAt:   NewTimestamp(start),
		TranscodeCompletedAt: NewTimestamp(start.Add(90 * time.Second)),
	}
	if job.Duration() != 90*time.Second {
		t.Fatalf("unexpected duration %v", job.Duration())
	}
	if !job.Terminal() || job.Active() || job.Cancellable() {
		t.Fatalf("unexpected state helpers for %s", job.State)
	}
	if (Job{State: StateStalled}).Terminal() {
		t.Fatal("stalled is not terminal")
	}
	if (Job{Pipeline: "gst"}).PresetName() != "custom" {
		t.Fatal("expected custom label for pipeline jobs")
	}
}
