package submission

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"transcoderctl/internal/alerts"
	"transcoderctl/internal/api"
)

type fakeBackend struct {
	existing   map[string]bool
	existsErr  error
	uploads    []string
	uploadErr  error
	submitted  []api.JobSubmission
	submitErr  error
	existCalls int
}

func (b *fakeBackend) JobExists(_ context.Context, id string) (bool, error) {
	b.existCalls++
	if b.existsErr != nil {
		return false, b.existsErr
	}
	return b.existing[id], nil
}

func (b *fakeBackend) Upload(_ context.Context, name string, r io.Reader, onProgress api.ProgressFunc) (api.UploadResult, error) {
	if b.uploadErr != nil {
		return api.UploadResult{}, b.uploadErr
	}
	data, _ := io.ReadAll(r)
	if onProgress != nil {
		onProgress(int64(len(data)))
	}
	b.uploads = append(b.uploads, name)
	return api.UploadResult{Filename: name}, nil
}

func (b *fakeBackend) SubmitJob(_ context.Context, job api.JobSubmission) (api.SubmitResponse, error) {
	if b.submitErr != nil {
		return api.SubmitResponse{}, b.submitErr
	}
	b.submitted = append(b.submitted, job)
	return api.SubmitResponse{JobID: job.JobID}, nil
}

type deferredScheduler struct {
	delays []time.Duration
	fns    []func()
}

func (s *deferredScheduler) schedule(d time.Duration, fn func()) func() bool {
	s.delays = append(s.delays, d)
	s.fns = append(s.fns, fn)
	idx := len(s.fns) - 1
	return func() bool {
		stopped := s.fns[idx] != nil
		s.fns[idx] = nil
		return stopped
	}
}

func (s *deferredScheduler) runAll() {
	for i, fn := range s.fns {
		if fn != nil {
			s.fns[i] = nil
			fn()
		}
	}
}

var mkvPreset = api.Preset{PresetID: "p1", Name: "1080p", InputType: "mkv", OutputType: "mp4"}

func source(name string) UploadSource {
	return UploadSource{Name: name, Reader: strings.NewReader("frames"), Size: 6}
}

func TestJobDraftHappyPath(t *testing.T) {
	backend := &fakeBackend{}
	sched := &deferredScheduler{}
	board := alerts.NewBoard(0)
	var resets int
	d := NewJobDraft(backend, Options{
		Alerts:     board,
		ResetDelay: 2500 * time.Millisecond,
		Schedule:   sched.schedule,
		OnReset:    func() { resets++ },
	})
	ctx := context.Background()

	state, err := d.ValidateID(ctx, " abc123 ")
	if err != nil || state != StateIDValid {
		t.Fatalf("ValidateID = %s, %v", state, err)
	}
	path, err := d.Upload(ctx, source("holiday.mkv"), nil)
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if path != "abc123_in.mkv" || d.State() != StateUploaded {
		t.Fatalf("unexpected upload result %q state %s", path, d.State())
	}

	d.SelectPreset(mkvPreset)
	if got := d.View().OutputPath; got != "abc123_out.mp4" {
		t.Fatalf("expected derived output path, got %q", got)
	}

	resp, err := d.Submit(ctx)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if resp.JobID != "abc123" || d.State() != StateSubmitted {
		t.Fatalf("unexpected submit result %+v state %s", resp, d.State())
	}
	want := api.JobSubmission{JobID: "abc123", InputS3Path: "abc123_in.mkv", OutputS3Path: "abc123_out.mp4", PresetID: "p1"}
	if len(backend.submitted) != 1 || backend.submitted[0] != want {
		t.Fatalf("unexpected payload %+v", backend.submitted)
	}
	if a, ok := board.Current(); !ok || a.Kind != alerts.KindSuccess {
		t.Fatalf("expected success alert, got %+v", a)
	}
	if len(sched.delays) != 1 || sched.delays[0] != 2500*time.Millisecond {
		t.Fatalf("expected reset scheduled after 2.5s, got %v", sched.delays)
	}

	sched.runAll()
	if v := d.View(); v.State != StateIdle || v.JobID != "" || v.InputPath != "" || v.Preset != nil {
		t.Fatalf("expected draft reset, got %+v", v)
	}
	if resets != 1 {
		t.Fatalf("expected OnReset once, got %d", resets)
	}
}

func TestValidateIDTakenAndErrors(t *testing.T) {
	backend := &fakeBackend{existing: map[string]bool{"dup": true}}
	d := NewJobDraft(backend, Options{})

	state, err := d.ValidateID(context.Background(), "dup")
	if !errors.Is(err, ErrIDTaken) || state != StateIDInvalid {
		t.Fatalf("expected taken id, got %s %v", state, err)
	}
	if msg := d.View().Error; msg != "A Job with ID (dup) already exists, please use a different Job ID." {
		t.Fatalf("unexpected message %q", msg)
	}

	backend.existsErr = &api.HTTPError{StatusCode: http.StatusInternalServerError, Body: "db down"}
	state, err = d.ValidateID(context.Background(), "other")
	if err == nil || state != StateIDInvalid {
		t.Fatalf("expected invalid on backend error, got %s %v", state, err)
	}
	if msg := d.View().Error; msg != "Failed to validate Job ID: db down" {
		t.Fatalf("unexpected message %q", msg)
	}
}

func TestValidateIDEmptyIsIdleWithoutRequest(t *testing.T) {
	backend := &fakeBackend{}
	d := NewJobDraft(backend, Options{})
	state, err := d.ValidateID(context.Background(), "   ")
	if err != nil || state != StateIdle {
		t.Fatalf("expected idle, got %s %v", state, err)
	}
	if backend.existCalls != 0 {
		t.Fatal("empty id must not hit the backend")
	}
}

func TestUploadGatedOnValidID(t *testing.T) {
	backend := &fakeBackend{existing: map[string]bool{"dup": true}}
	d := NewJobDraft(backend, Options{})
	if _, err := d.Upload(context.Background(), source("a.mkv"), nil); !errors.Is(err, ErrNotValidated) {
		t.Fatalf("expected ErrNotValidated from idle, got %v", err)
	}
	_, _ = d.ValidateID(context.Background(), "dup")
	if _, err := d.Upload(context.Background(), source("a.mkv"), nil); !errors.Is(err, ErrNotValidated) {
		t.Fatalf("expected ErrNotValidated from id-invalid, got %v", err)
	}
	if len(backend.uploads) != 0 {
		t.Fatal("no upload should have been attempted")
	}
}

func TestSubmitValidationBlocksRequest(t *testing.T) {
	backend := &fakeBackend{}
	d := NewJobDraft(backend, Options{})
	ctx := context.Background()

	if _, err := d.Submit(ctx); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation on empty draft, got %v", err)
	}
	_, _ = d.ValidateID(ctx, "abc")
	_, _ = d.Upload(ctx, source("a.mkv"), nil)
	if _, err := d.Submit(ctx); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation without preset or pipeline, got %v", err)
	}
	d.UsePipeline("filesrc ! fakesink")
	if _, err := d.Submit(ctx); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation without output path, got %v", err)
	}
	if len(backend.submitted) != 0 {
		t.Fatal("validation failures must not submit")
	}
	if d.View().Error != "All fields are required" {
		t.Fatalf("unexpected inline error %q", d.View().Error)
	}

	d.SetOutputPath("abc_out.mp4")
	if _, err := d.Submit(ctx); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if backend.submitted[0].Pipeline != "filesrc ! fakesink" || backend.submitted[0].PresetID != "" {
		t.Fatalf("unexpected payload %+v", backend.submitted[0])
	}
}

func TestSubmitFailurePreservesDraft(t *testing.T) {
	backend := &fakeBackend{submitErr: &api.HTTPError{StatusCode: http.StatusNotFound, Body: `{"detail":"Preset not found"}`}}
	sched := &deferredScheduler{}
	d := NewJobDraft(backend, Options{Schedule: sched.schedule})
	ctx := context.Background()
	_, _ = d.ValidateID(ctx, "abc")
	_, _ = d.Upload(ctx, source("a.mkv"), nil)
	d.SelectPreset(mkvPreset)

	if _, err := d.Submit(ctx); err == nil {
		t.Fatal("expected submit error")
	}
	v := d.View()
	if v.State != StateUploaded || v.JobID != "abc" || v.Preset == nil || v.Error != "Preset not found" {
		t.Fatalf("draft not preserved: %+v", v)
	}
	if len(sched.fns) != 0 {
		t.Fatal("failed submit must not schedule a reset")
	}

	backend.submitErr = nil
	if _, err := d.Submit(ctx); err != nil {
		t.Fatalf("retry Submit: %v", err)
	}
}

func TestPresetAndPipelineAreExclusive(t *testing.T) {
	d := NewJobDraft(&fakeBackend{}, Options{})
	d.UsePipeline("x")
	d.SelectPreset(mkvPreset)
	if v := d.View(); v.Pipeline != "" || v.Preset == nil {
		t.Fatalf("selecting a preset should clear the pipeline: %+v", v)
	}
	d.UsePipeline("y")
	if v := d.View(); v.Preset != nil || v.Pipeline != "y" {
		t.Fatalf("using a pipeline should clear the preset: %+v", v)
	}
}

func TestPresetSelectedBeforeUploadDerivesOutput(t *testing.T) {
	d := NewJobDraft(&fakeBackend{}, Options{})
	ctx := context.Background()
	_, _ = d.ValidateID(ctx, "abc123")
	d.SelectPreset(mkvPreset)
	if _, err := d.Upload(ctx, source("x.mkv"), nil); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if got := d.View().OutputPath; got != "abc123_out.mp4" {
		t.Fatalf("expected output derived after upload, got %q", got)
	}
}

func TestUploadFailureReturnsToValid(t *testing.T) {
	backend := &fakeBackend{uploadErr: errors.New("connection reset")}
	d := NewJobDraft(backend, Options{})
	_, _ = d.ValidateID(context.Background(), "abc")
	if _, err := d.Upload(context.Background(), source("a.mkv"), nil); err == nil {
		t.Fatal("expected upload error")
	}
	if d.State() != StateIDValid {
		t.Fatalf("expected id-valid after failed upload, got %s", d.State())
	}
}
