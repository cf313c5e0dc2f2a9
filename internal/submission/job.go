package submission

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"transcoderctl/internal/alerts"
	"transcoderctl/internal/api"
	"transcoderctl/internal/logging"
)

// State is a step of a submission draft.
type State string

const (
	StateIdle         State = "idle"
	StateIDValidating State = "id-validating"
	StateIDValid      State = "id-valid"
	StateIDInvalid    State = "id-invalid"
	StateUploading    State = "uploading"
	StateUploaded     State = "uploaded"
	StateSubmitting   State = "submitting"
	StateSubmitted    State = "submitted"
)

var (
	// ErrValidation rejects an incomplete draft before any request.
	ErrValidation = errors.New("all fields are required")
	// ErrIDTaken reports that the requested identifier already exists.
	ErrIDTaken = errors.New("identifier already exists")
	// ErrNotValidated gates uploads behind a validated identifier.
	ErrNotValidated = errors.New("identifier has not been validated")
	// ErrBusy rejects a step while another is in flight.
	ErrBusy = errors.New("draft is busy")
)

// Backend is the subset of the API client used by JobDraft.
type Backend interface {
	JobExists(ctx context.Context, id string) (bool, error)
	Upload(ctx context.Context, filename string, r io.Reader, onProgress api.ProgressFunc) (api.UploadResult, error)
	SubmitJob(ctx context.Context, job api.JobSubmission) (api.SubmitResponse, error)
}

// UploadSource is a file chosen for upload.
type UploadSource struct {
	Name   string
	Reader io.Reader
	Size   int64
}

// Options configures a draft.
type Options struct {
	Alerts     *alerts.Board
	ResetDelay time.Duration
	Schedule   alerts.Scheduler
	// OnReset fires when a submitted draft resets.
	OnReset func()
	Logger  *slog.Logger
}

// JobView is a point-in-time copy of a JobDraft.
type JobView struct {
	State      State
	JobID      string
	InputPath  string
	OutputPath string
	Preset     *api.Preset
	Pipeline   string
	Error      string
}

// JobDraft holds one job submission in progress.
type JobDraft struct {
	backend Backend
	opts    Options
	logger  *slog.Logger

	mu         sync.Mutex
	state      State
	jobID      string
	inputPath  string
	outputPath string
	preset     *api.Preset
	pipeline   string
	lastErr    string
	stopReset  func() bool
}

// NewJobDraft returns an idle draft.
func NewJobDraft(backend Backend, opts Options) *JobDraft {
	if opts.Schedule == nil {
		opts.Schedule = alerts.TimerScheduler
	}
	return &JobDraft{
		backend: backend,
		opts:    opts,
		logger:  logging.NewComponentLogger(opts.Logger, "submission"),
		state:   StateIdle,
	}
}

// State returns the current step.
func (d *JobDraft) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// View copies the draft.
func (d *JobDraft) View() JobView {
	d.mu.Lock()
	defer d.mu.Unlock()
	v := JobView{
		State:      d.state,
		JobID:      d.jobID,
		InputPath:  d.inputPath,
		OutputPath: d.outputPath,
		Pipeline:   d.pipeline,
		Error:      d.lastErr,
	}
	if d.preset != nil {
		p := *d.preset
		v.Preset = &p
	}
	return v
}

// ValidateID probes id. An empty id returns the draft to idle without a
// request; 404 claims the id; anything else marks it invalid.
func (d *JobDraft) ValidateID(ctx context.Context, id string) (State, error) {
	id = strings.TrimSpace(id)

	d.mu.Lock()
	if d.state == StateUploading || d.state == StateSubmitting {
		d.mu.Unlock()
		return d.State(), ErrBusy
	}
	if id == "" {
		d.clearLocked()
		d.mu.Unlock()
		return StateIdle, nil
	}
	d.state = StateIDValidating
	d.lastErr = ""
	d.mu.Unlock()

	exists, err := d.backend.JobExists(ctx, id)

	d.mu.Lock()
	defer d.mu.Unlock()
	switch {
	case err != nil:
		d.state = StateIDInvalid
		d.lastErr = "Failed to validate Job ID: " + api.Message(err)
		d.alert(alerts.Error(d.lastErr, true))
		return d.state, fmt.Errorf("validate job id %s: %w", id, err)
	case exists:
		d.state = StateIDInvalid
		d.lastErr = fmt.Sprintf("A Job with ID (%s) already exists, please use a different Job ID.", id)
		d.alert(alerts.Error(d.lastErr, true))
		return d.state, fmt.Errorf("job %s: %w", id, ErrIDTaken)
	}

	if id != d.jobID {
		d.inputPath = ""
		d.outputPath = ""
	}
	d.jobID = id
	d.state = StateIDValid
	if d.inputPath != "" {
		d.state = StateUploaded
	}
	return d.state, nil
}

// Upload sends src under the job's upload name and records the storage path.
func (d *JobDraft) Upload(ctx context.Context, src UploadSource, onProgress api.ProgressFunc) (string, error) {
	d.mu.Lock()
	if d.state != StateIDValid && d.state != StateUploaded {
		state := d.state
		d.mu.Unlock()
		if state == StateUploading || state == StateSubmitting {
			return "", ErrBusy
		}
		return "", ErrNotValidated
	}
	if src.Reader == nil {
		d.lastErr = "No file selected"
		d.mu.Unlock()
		return "", errors.New("no file selected")
	}
	prev := d.state
	jobID := d.jobID
	d.state = StateUploading
	d.lastErr = ""
	d.mu.Unlock()

	name := UploadName(jobID, src.Name)
	ctx = logging.WithJobID(ctx, jobID)
	logging.WithContext(ctx, d.logger).Info("uploading source",
		logging.String("file", name),
		logging.Int64("bytes", src.Size),
	)
	result, err := d.backend.Upload(ctx, name, src.Reader, onProgress)

	d.mu.Lock()
	defer d.mu.Unlock()
	if err != nil {
		d.state = prev
		d.lastErr = api.Message(err)
		return "", fmt.Errorf("upload %s: %w", name, err)
	}
	d.inputPath = result.Filename
	d.state = StateUploaded
	if d.preset != nil {
		d.outputPath = OutputPath(d.inputPath, d.preset.InputType, d.preset.OutputType)
	}
	return d.inputPath, nil
}

// SelectPreset chooses preset, derives the output path and clears any
// literal pipeline.
func (d *JobDraft) SelectPreset(preset api.Preset) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.preset = &preset
	d.pipeline = ""
	if d.inputPath != "" {
		d.outputPath = OutputPath(d.inputPath, preset.InputType, preset.OutputType)
	}
}

// UsePipeline switches to a literal pipeline and clears the preset.
func (d *JobDraft) UsePipeline(pipeline string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.preset = nil
	d.pipeline = pipeline
}

// SetOutputPath overrides the derived output path.
func (d *JobDraft) SetOutputPath(p string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.outputPath = strings.TrimSpace(p)
}

// Submit sends the draft. Incomplete drafts fail with ErrValidation and no
// request; backend failures keep the draft and surface the response text.
func (d *JobDraft) Submit(ctx context.Context) (api.SubmitResponse, error) {
	d.mu.Lock()
	if d.state == StateSubmitting {
		d.mu.Unlock()
		return api.SubmitResponse{}, ErrBusy
	}
	hasRecipe := d.preset != nil || strings.TrimSpace(d.pipeline) != ""
	if d.state != StateUploaded || d.jobID == "" || d.inputPath == "" || d.outputPath == "" || !hasRecipe {
		d.lastErr = "All fields are required"
		d.mu.Unlock()
		return api.SubmitResponse{}, ErrValidation
	}
	payload := api.JobSubmission{
		JobID:        d.jobID,
		InputS3Path:  d.inputPath,
		OutputS3Path: d.outputPath,
	}
	if d.preset != nil {
		payload.PresetID = d.preset.PresetID
	} else {
		payload.Pipeline = d.pipeline
	}
	d.state = StateSubmitting
	d.lastErr = ""
	d.mu.Unlock()

	ctx = logging.WithJobID(ctx, payload.JobID)
	resp, err := d.backend.SubmitJob(ctx, payload)

	d.mu.Lock()
	defer d.mu.Unlock()
	if err != nil {
		d.state = StateUploaded
		d.lastErr = api.Message(err)
		logging.WarnWithContext(logging.WithContext(ctx, d.logger), "job submission rejected", "submit_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "fix the draft and submit again"),
		)
		return api.SubmitResponse{}, fmt.Errorf("submit job %s: %w", payload.JobID, err)
	}
	if resp.JobID == "" {
		resp.JobID = payload.JobID
	}
	d.state = StateSubmitted
	logging.WithContext(ctx, d.logger).Info("job submitted", logging.String("output", payload.OutputS3Path))
	d.alert(alerts.Success("Job submitted successfully!"))
	d.scheduleResetLocked()
	return resp, nil
}

// Reset clears the draft and cancels a pending post-submit reset.
func (d *JobDraft) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.clearLocked()
}

func (d *JobDraft) clearLocked() {
	if d.stopReset != nil {
		d.stopReset()
		d.stopReset = nil
	}
	d.state = StateIdle
	d.jobID = ""
	d.inputPath = ""
	d.outputPath = ""
	d.preset = nil
	d.pipeline = ""
	d.lastErr = ""
}

func (d *JobDraft) scheduleResetLocked() {
	if d.stopReset != nil {
		d.stopReset()
	}
	d.stopReset = d.opts.Schedule(d.opts.ResetDelay, func() {
		d.mu.Lock()
		if d.state != StateSubmitted {
			d.mu.Unlock()
			return
		}
		d.stopReset = nil
		d.clearLocked()
		d.mu.Unlock()
		if d.opts.OnReset != nil {
			d.opts.OnReset()
		}
	})
}

func (d *JobDraft) alert(a alerts.Alert) {
	if d.opts.Alerts != nil {
		d.opts.Alerts.Show(a)
	}
}
