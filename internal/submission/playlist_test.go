package submission

import (
	"context"
	"errors"
	"io"
	"testing"

	"transcoderctl/internal/api"
)

type fakePlaylistBackend struct {
	existing map[string]bool
	created  []api.PlaylistSubmission
}

func (b *fakePlaylistBackend) PlaylistExists(_ context.Context, name string) (bool, error) {
	return b.existing[name], nil
}

func (b *fakePlaylistBackend) Upload(_ context.Context, name string, r io.Reader, _ api.ProgressFunc) (api.UploadResult, error) {
	_, _ = io.Copy(io.Discard, r)
	return api.UploadResult{Filename: name}, nil
}

func (b *fakePlaylistBackend) CreatePlaylist(_ context.Context, in api.PlaylistSubmission) (api.PlaylistCreated, error) {
	b.created = append(b.created, in)
	jobs := make([]string, len(in.Presets))
	for i := range in.Presets {
		jobs[i] = in.Name + "-" + string(rune('0'+i))
	}
	return api.PlaylistCreated{PlaylistID: "pl-1", InputS3Path: in.InputS3Path, Jobs: jobs}, nil
}

func TestPlaylistDraftFlow(t *testing.T) {
	backend := &fakePlaylistBackend{existing: map[string]bool{"taken": true}}
	sched := &deferredScheduler{}
	d := NewPlaylistDraft(backend, Options{Schedule: sched.schedule})
	ctx := context.Background()

	if _, err := d.ValidateName(ctx, "taken"); !errors.Is(err, ErrIDTaken) {
		t.Fatalf("expected ErrIDTaken, got %v", err)
	}
	if state, err := d.ValidateName(ctx, "season-1"); err != nil || state != StateIDValid {
		t.Fatalf("ValidateName = %s, %v", state, err)
	}
	if _, err := d.Submit(ctx); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation before upload, got %v", err)
	}
	if _, err := d.Upload(ctx, source("ep1.mkv"), nil); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if _, err := d.Submit(ctx); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation without presets, got %v", err)
	}

	d.AddPreset("p1")
	d.AddPreset("p2")
	d.AddPreset("p1")
	d.AddPreset("p3")
	if !d.RemovePreset(2) || d.RemovePreset(5) {
		t.Fatal("unexpected RemovePreset result")
	}

	created, err := d.Submit(ctx)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if len(created.Jobs) != 2 || created.Jobs[0] != "season-1-0" {
		t.Fatalf("unexpected created playlist %+v", created)
	}
	got := backend.created[0]
	if got.Name != "season-1" || got.InputS3Path != "season-1_in.mkv" || len(got.Presets) != 2 || got.Presets[1] != "p2" {
		t.Fatalf("unexpected payload %+v", got)
	}

	sched.runAll()
	if v := d.View(); v.State != StateIdle || len(v.Presets) != 0 {
		t.Fatalf("expected reset playlist draft, got %+v", v)
	}
}
