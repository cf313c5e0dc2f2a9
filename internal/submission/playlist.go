package submission

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"transcoderctl/internal/alerts"
	"transcoderctl/internal/api"
	"transcoderctl/internal/logging"
)

// PlaylistBackend is the subset of the API client used by PlaylistDraft.
type PlaylistBackend interface {
	PlaylistExists(ctx context.Context, name string) (bool, error)
	Upload(ctx context.Context, filename string, r io.Reader, onProgress api.ProgressFunc) (api.UploadResult, error)
	CreatePlaylist(ctx context.Context, in api.PlaylistSubmission) (api.PlaylistCreated, error)
}

// PlaylistView is a point-in-time copy of a PlaylistDraft.
type PlaylistView struct {
	State     State
	Name      string
	InputPath string
	Presets   []string
	Error     string
}

// PlaylistDraft holds one playlist submission in progress. The playlist name
// plays the role of the job id in the state machine.
type PlaylistDraft struct {
	backend PlaylistBackend
	opts    Options
	logger  *slog.Logger

	mu        sync.Mutex
	state     State
	name      string
	inputPath string
	presets   []string
	lastErr   string
	stopReset func() bool
}

// NewPlaylistDraft returns an idle playlist draft.
func NewPlaylistDraft(backend PlaylistBackend, opts Options) *PlaylistDraft {
	if opts.Schedule == nil {
		opts.Schedule = alerts.TimerScheduler
	}
	return &PlaylistDraft{
		backend: backend,
		opts:    opts,
		logger:  logging.NewComponentLogger(opts.Logger, "playlist-submission"),
		state:   StateIdle,
	}
}

func (d *PlaylistDraft) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

func (d *PlaylistDraft) View() PlaylistView {
	d.mu.Lock()
	defer d.mu.Unlock()
	return PlaylistView{
		State:     d.state,
		Name:      d.name,
		InputPath: d.inputPath,
		Presets:   append([]string(nil), d.presets...),
		Error:     d.lastErr,
	}
}

// ValidateName probes name; a 404 from the playlist lookup means it is free.
func (d *PlaylistDraft) ValidateName(ctx context.Context, name string) (State, error) {
	name = strings.TrimSpace(name)

	d.mu.Lock()
	if d.state == StateUploading || d.state == StateSubmitting {
		d.mu.Unlock()
		return d.State(), ErrBusy
	}
	if name == "" {
		d.clearLocked()
		d.mu.Unlock()
		return StateIdle, nil
	}
	d.state = StateIDValidating
	d.lastErr = ""
	d.mu.Unlock()

	exists, err := d.backend.PlaylistExists(ctx, name)

	d.mu.Lock()
	defer d.mu.Unlock()
	switch {
	case err != nil:
		d.state = StateIDInvalid
		d.lastErr = "Failed to validate Playlist Name: " + api.Message(err)
		d.alert(alerts.Error(d.lastErr, true))
		return d.state, fmt.Errorf("validate playlist name %s: %w", name, err)
	case exists:
		d.state = StateIDInvalid
		d.lastErr = fmt.Sprintf("A Playlist with Name (%s) already exists, please use a different Playlist Name.", name)
		d.alert(alerts.Error(d.lastErr, true))
		return d.state, fmt.Errorf("playlist %s: %w", name, ErrIDTaken)
	}

	if name != d.name {
		d.inputPath = ""
	}
	d.name = name
	d.state = StateIDValid
	if d.inputPath != "" {
		d.state = StateUploaded
	}
	return d.state, nil
}

// Upload sends the shared source file for every job in the playlist.
func (d *PlaylistDraft) Upload(ctx context.Context, src UploadSource, onProgress api.ProgressFunc) (string, error) {
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
	name := UploadName(d.name, src.Name)
	d.state = StateUploading
	d.lastErr = ""
	d.mu.Unlock()

	d.logger.Info("uploading playlist source", logging.String("file", name), logging.Int64("bytes", src.Size))
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
	return d.inputPath, nil
}

// AddPreset appends a preset id. Duplicates are ignored.
func (d *PlaylistDraft) AddPreset(presetID string) {
	presetID = strings.TrimSpace(presetID)
	if presetID == "" {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, id := range d.presets {
		if id == presetID {
			return
		}
	}
	d.presets = append(d.presets, presetID)
}

// RemovePreset drops the preset at index i.
func (d *PlaylistDraft) RemovePreset(i int) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i < 0 || i >= len(d.presets) {
		return false
	}
	d.presets = append(d.presets[:i], d.presets[i+1:]...)
	return true
}

// Submit creates the playlist. Incomplete drafts fail with ErrValidation.
func (d *PlaylistDraft) Submit(ctx context.Context) (api.PlaylistCreated, error) {
	d.mu.Lock()
	if d.state == StateSubmitting {
		d.mu.Unlock()
		return api.PlaylistCreated{}, ErrBusy
	}
	if d.state != StateUploaded || d.name == "" || d.inputPath == "" || len(d.presets) == 0 {
		d.lastErr = "All fields are required"
		d.mu.Unlock()
		return api.PlaylistCreated{}, ErrValidation
	}
	payload := api.PlaylistSubmission{
		Name:        d.name,
		InputS3Path: d.inputPath,
		Presets:     append([]string(nil), d.presets...),
	}
	d.state = StateSubmitting
	d.lastErr = ""
	d.mu.Unlock()

	created, err := d.backend.CreatePlaylist(ctx, payload)

	d.mu.Lock()
	defer d.mu.Unlock()
	if err != nil {
		d.state = StateUploaded
		d.lastErr = api.Message(err)
		return api.PlaylistCreated{}, fmt.Errorf("create playlist %s: %w", payload.Name, err)
	}
	d.state = StateSubmitted
	d.logger.Info("playlist submitted",
		logging.String("playlist", payload.Name),
		logging.Int("jobs", len(created.Jobs)),
	)
	d.alert(alerts.Success("Playlist submitted successfully!"))
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
	return created, nil
}

func (d *PlaylistDraft) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.clearLocked()
}

func (d *PlaylistDraft) clearLocked() {
	if d.stopReset != nil {
		d.stopReset()
		d.stopReset = nil
	}
	d.state = StateIdle
	d.name = ""
	d.inputPath = ""
	d.presets = nil
	d.lastErr = ""
}

func (d *PlaylistDraft) alert(a alerts.Alert) {
	if d.opts.Alerts != nil {
		d.opts.Alerts.Show(a)
	}
}
