// Package presets validates and submits preset definitions.
package presets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"transcoderctl/internal/api"
)

// Pipeline placeholders substituted by the worker.
const (
	PlaceholderInput    = "{{input_file}}"
	PlaceholderOutput   = "{{output_file}}"
	PlaceholderProgress = "{{progress}}"
)

// DefaultPipeline seeds new forms: MKV in, H.264/AAC MP4 out at 1080p.
const DefaultPipeline = "filesrc location={{input_file}} ! matroskademux name=d mp4mux name=mux ! filesink location={{output_file}} d.audio_0 ! queue max-size-buffers=0 max-size-bytes=0 max-size-time=0 ! decodebin ! audioconvert ! avenc_aac ! mux.audio_0 d.video_0 ! queue max-size-buffers=0 max-size-bytes=0 max-size-time=0 ! decodebin ! videoscale ! video/x-raw,width=1920, height=1080 ! x264enc bitrate=1024 ! {{progress}} ! h264parse ! mux.video_0"

var (
	// ErrMissingFields rejects a form with any empty field.
	ErrMissingFields = errors.New("all fields are required")
	// ErrPipelinePlaceholders rejects a pipeline lacking a placeholder.
	ErrPipelinePlaceholders = errors.New("pipeline must contain {{input_file}}, {{output_file}} and {{progress}}")
)

// Form is a preset being authored.
type Form struct {
	Name          string `toml:"name"`
	InputType     string `toml:"input_type"`
	OutputType    string `toml:"output_type"`
	Resolution    string `toml:"resolution"`
	VideoEncoding string `toml:"video_encoding"`
	VideoBitrate  string `toml:"video_bitrate"`
	AudioEncoding string `toml:"audio_encoding"`
	AudioBitrate  string `toml:"audio_bitrate"`
	Pipeline      string `toml:"pipeline"`
}

// NewForm returns an empty form seeded with DefaultPipeline.
func NewForm() Form {
	return Form{Pipeline: DefaultPipeline}
}

// LoadForm reads a preset definition from a TOML file. Fields the file
// omits keep their NewForm values.
func LoadForm(path string) (Form, error) {
	form := NewForm()
	data, err := os.ReadFile(path)
	if err != nil {
		return Form{}, fmt.Errorf("read preset file: %w", err)
	}
	if err := toml.Unmarshal(data, &form); err != nil {
		return Form{}, fmt.Errorf("parse preset file %s: %w", path, err)
	}
	return form, nil
}

// MissingFields lists the TOML names of empty fields in form order.
func (f Form) MissingFields() []string {
	fields := []struct {
		name  string
		value string
	}{
		{"name", f.Name},
		{"input_type", f.InputType},
		{"output_type", f.OutputType},
		{"resolution", f.Resolution},
		{"video_encoding", f.VideoEncoding},
		{"video_bitrate", f.VideoBitrate},
		{"audio_encoding", f.AudioEncoding},
		{"audio_bitrate", f.AudioBitrate},
		{"pipeline", f.Pipeline},
	}
	var missing []string
	for _, field := range fields {
		if strings.TrimSpace(field.value) == "" {
			missing = append(missing, field.name)
		}
	}
	return missing
}

// MissingPlaceholders lists required placeholders absent from the pipeline.
// Presence is checked, not cardinality.
func (f Form) MissingPlaceholders() []string {
	var missing []string
	for _, token := range []string{PlaceholderInput, PlaceholderOutput, PlaceholderProgress} {
		if !strings.Contains(f.Pipeline, token) {
			missing = append(missing, token)
		}
	}
	return missing
}

// Validate checks the form without touching the network.
func (f Form) Validate() error {
	if missing := f.MissingFields(); len(missing) > 0 {
		return fmt.Errorf("%w (missing: %s)", ErrMissingFields, strings.Join(missing, ", "))
	}
	if missing := f.MissingPlaceholders(); len(missing) > 0 {
		return fmt.Errorf("%w (missing: %s)", ErrPipelinePlaceholders, strings.Join(missing, ", "))
	}
	return nil
}

// Input converts the form to the API payload.
func (f Form) Input() api.PresetInput {
	return api.PresetInput{
		Name:          strings.TrimSpace(f.Name),
		InputType:     strings.TrimSpace(f.InputType),
		OutputType:    strings.TrimSpace(f.OutputType),
		Resolution:    strings.TrimSpace(f.Resolution),
		VideoEncoding: strings.TrimSpace(f.VideoEncoding),
		VideoBitrate:  strings.TrimSpace(f.VideoBitrate),
		AudioEncoding: strings.TrimSpace(f.AudioEncoding),
		AudioBitrate:  strings.TrimSpace(f.AudioBitrate),
		Pipeline:      f.Pipeline,
	}
}

// Creator is the subset of the API client that stores presets.
type Creator interface {
	CreatePreset(ctx context.Context, in api.PresetInput) (api.Preset, error)
}

// Submit validates the form and creates the preset. Invalid forms never
// reach the creator. On success the form is reset to NewForm.
func (f *Form) Submit(ctx context.Context, creator Creator) (api.Preset, error) {
	if err := f.Validate(); err != nil {
		return api.Preset{}, err
	}
	preset, err := creator.CreatePreset(ctx, f.Input())
	if err != nil {
		return api.Preset{}, fmt.Errorf("save preset: %s: %w", api.Message(err), err)
	}
	*f = NewForm()
	return preset, nil
}
