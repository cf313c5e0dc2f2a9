package api

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Job states emitted by the backend.
const (
	StateQueued     = "queued"
	StateInProgress = "in-progress"
	StateCompleted  = "completed"
	StateFailed     = "failed"
	StateCancelled  = "cancelled"
	StateStalled    = "stalled"
)

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

// Timestamp wraps time.Time to accept the backend's ISO-8601 variants.
// Naive values are interpreted as UTC.
type Timestamp struct {
	time.Time
}

// NewTimestamp wraps t.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t}
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return fmt.Errorf("timestamp: expected string, got %s", data)
	}
	raw := strings.TrimSpace(string(data[1 : len(data)-1]))
	if raw == "" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("timestamp: unrecognized value %q", raw)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + t.UTC().Format(time.RFC3339Nano) + `"`), nil
}

// PlaylistRef is the playlist membership embedded in a job.
type PlaylistRef struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt Timestamp `json:"created_at,omitzero"`
	UpdatedAt Timestamp `json:"updated_at,omitzero"`
}

// Job is a transcoding job as reported by GET /jobs.
type Job struct {
	JobID                string        `json:"job_id"`
	InputS3Path          string        `json:"input_s3_path"`
	OutputS3Path         string        `json:"output_s3_path"`
	Pipeline             string        `json:"pipeline,omitempty"`
	Preset               *Preset       `json:"preset,omitempty"`
	PresetID             string        `json:"preset_id,omitempty"`
	State                string        `json:"state"`
	Error                string        `json:"error,omitempty"`
	ErrorType            string        `json:"error_type,omitempty"`
	CreatedAt            Timestamp     `json:"created_at,omitzero"`
	UpdatedAt            Timestamp     `json:"updated_at,omitzero"`
	TranscodeStartedAt   Timestamp     `json:"transcode_started_at,omitzero"`
	TranscodeCompletedAt Timestamp     `json:"transcode_completed_at,omitzero"`
	Playlists            []PlaylistRef `json:"playlists,omitempty"`
}

// Active reports whether the job is currently transcoding.
func (j Job) Active() bool {
	return j.State == StateInProgress
}

// Terminal reports whether the job has reached a final state.
func (j Job) Terminal() bool {
	switch j.State {
	case StateCompleted, StateFailed, StateCancelled:
		return true
	default:
		return false
	}
}

// Cancellable reports whether the backend accepts a cancel for this job.
func (j Job) Cancellable() bool {
	return j.State == StateQueued
}

// PresetName returns the preset label for display, or "custom" for jobs
// submitted with a literal pipeline.
func (j Job) PresetName() string {
	if j.Preset != nil && j.Preset.Name != "" {
		return j.Preset.Name
	}
	if j.PresetID != "" {
		return j.PresetID
	}
	if strings.TrimSpace(j.Pipeline) != "" {
		return "custom"
	}
	return ""
}

// LatestPlaylist returns the most recently updated playlist the job belongs
// to. Ties resolve to the lowest playlist id.
func (j Job) LatestPlaylist() (PlaylistRef, bool) {
	if len(j.Playlists) == 0 {
		return PlaylistRef{}, false
	}
	refs := append([]PlaylistRef(nil), j.Playlists...)
	sort.SliceStable(refs, func(a, b int) bool {
		if !refs[a].UpdatedAt.Equal(refs[b].UpdatedAt.Time) {
			return refs[a].UpdatedAt.After(refs[b].UpdatedAt.Time)
		}
		return refs[a].ID < refs[b].ID
	})
	return refs[0], true
}

// Duration is the transcode wall time, zero until both bounds are known.
func (j Job) Duration() time.Duration {
	if j.TranscodeStartedAt.IsZero() || j.TranscodeCompletedAt.IsZero() {
		return 0
	}
	d := j.TranscodeCompletedAt.Sub(j.TranscodeStartedAt.Time)
	if d < 0 {
		return 0
	}
	return d
}

// JobUpdate carries the optional fields accepted by PUT /jobs/{id}.
type JobUpdate struct {
	InputS3Path  *string `json:"input_s3_path,omitempty"`
	OutputS3Path *string `json:"output_s3_path,omitempty"`
	Pipeline     *string `json:"pipeline,omitempty"`
	PresetID     *string `json:"preset_id,omitempty"`
	State        *string `json:"state,omitempty"`
	Error        *string `json:"error,omitempty"`
	ErrorType    *string `json:"error_type,omitempty"`
}

// JobSubmission is the POST /submit_job payload. Exactly one of PresetID or
// Pipeline is expected to be set.
type JobSubmission struct {
	JobID        string `json:"job_id"`
	InputS3Path  string `json:"input_s3_path"`
	OutputS3Path string `json:"output_s3_path"`
	Pipeline     string `json:"pipeline,omitempty"`
	PresetID     string `json:"preset_id,omitempty"`
}

// SubmitResponse is returned by POST /submit_job.
type SubmitResponse struct {
	JobID string `json:"job_id"`
}

// Preset is a named encoding recipe.
type Preset struct {
	PresetID      string    `json:"preset_id"`
	Name          string    `json:"name"`
	InputType     string    `json:"input_type"`
	OutputType    string    `json:"output_type"`
	Resolution    string    `json:"resolution"`
	VideoEncoding string    `json:"video_encoding"`
	VideoBitrate  string    `json:"video_bitrate"`
	AudioEncoding string    `json:"audio_encoding"`
	AudioBitrate  string    `json:"audio_bitrate"`
	Pipeline      string    `json:"pipeline"`
	CreatedAt     Timestamp `json:"created_at,omitzero"`
	UpdatedAt     Timestamp `json:"updated_at,omitzero"`
}

// PresetInput is the POST /presets payload.
type PresetInput struct {
	Name          string `json:"name"`
	InputType     string `json:"input_type"`
	OutputType    string `json:"output_type"`
	Resolution    string `json:"resolution"`
	VideoEncoding string `json:"video_encoding"`
	VideoBitrate  string `json:"video_bitrate"`
	AudioEncoding string `json:"audio_encoding"`
	AudioBitrate  string `json:"audio_bitrate"`
	Pipeline      string `json:"pipeline"`
}

// PresetUpdate carries the optional fields accepted by PUT /presets/{id}.
type PresetUpdate struct {
	Name          *string `json:"name,omitempty"`
	InputType     *string `json:"input_type,omitempty"`
	OutputType    *string `json:"output_type,omitempty"`
	Resolution    *string `json:"resolution,omitempty"`
	VideoEncoding *string `json:"video_encoding,omitempty"`
	VideoBitrate  *string `json:"video_bitrate,omitempty"`
	AudioEncoding *string `json:"audio_encoding,omitempty"`
	AudioBitrate  *string `json:"audio_bitrate,omitempty"`
	Pipeline      *string `json:"pipeline,omitempty"`
}

// PresetQuery filters GET /presets.
type PresetQuery struct {
	InputType  string
	OutputType string
	Skip       int
	Limit      int
}

// PlaylistSummary is the shallow playlist listing entry.
type PlaylistSummary struct {
	PlaylistID string    `json:"playlist_id"`
	Name       string    `json:"name"`
	Jobs       []string  `json:"jobs"`
	CreatedAt  Timestamp `json:"created_at,omitzero"`
	UpdatedAt  Timestamp `json:"updated_at,omitzero"`
}

// PlaylistQuery filters GET /playlists.
type PlaylistQuery struct {
	Name  string
	Skip  int
	Limit int
}

// PlaylistSubmission is the POST /playlists payload.
type PlaylistSubmission struct {
	Name        string   `json:"name"`
	InputS3Path string   `json:"input_s3_path"`
	Presets     []string `json:"presets"`
}

// PlaylistCreated is returned by POST /playlists.
type PlaylistCreated struct {
	PlaylistID  string   `json:"playlist_id"`
	InputS3Path string   `json:"input_s3_path"`
	Jobs        []string `json:"jobs"`
}

// UploadResult is returned by POST /upload.
type UploadResult struct {
	Filename string `json:"filename"`
}

// SignedURL is returned by GET /signed_download/{path}.
type SignedURL struct {
	URL string `json:"url"`
}

// ProgressFunc receives the running byte count of a transfer.
type ProgressFunc func(transferred int64)
