package sandbox

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"transcoderctl/internal/api"
	"transcoderctl/internal/logging"
)

// ErrUnknownJob is returned by the progress hooks for ids that were never submitted.
var ErrUnknownJob = errors.New("unknown job")

type playlist struct {
	ID          string
	Name        string
	InputS3Path string
	Jobs        []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Server is the in-memory backend. The zero value is not usable; call New.
type Server struct {
	mu sync.Mutex

	jobs          map[string]*api.Job
	jobOrder      []string
	presets       map[string]*api.Preset
	presetOrder   []string
	playlists     map[string]*playlist
	playlistOrder []string
	objects       map[string][]byte
	lastProgress  map[string]progressEvent
	watchers      map[string]map[*watcher]struct{}

	storageHost string
	logger      *slog.Logger
	now         func() time.Time
	upgrader    websocket.Upgrader
	router      chi.Router
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request and event logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithStorageHost makes signed download URLs point at host instead of the
// host the request arrived on. The request port is kept.
func WithStorageHost(host string) Option {
	return func(s *Server) {
		s.storageHost = host
	}
}

// WithClock overrides the time source used for job timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		if now != nil {
			s.now = now
		}
	}
}

// WithSeedPresets preloads the stock presets.
func WithSeedPresets() Option {
	return func(s *Server) {
		for _, in := range seedPresets {
			s.addPreset(in)
		}
	}
}

// New builds an empty backend.
func New(opts ...Option) *Server {
	s := &Server{
		jobs:         make(map[string]*api.Job),
		presets:      make(map[string]*api.Preset),
		playlists:    make(map[string]*playlist),
		objects:      make(map[string][]byte),
		lastProgress: make(map[string]progressEvent),
		watchers:     make(map[string]map[*watcher]struct{}),
		logger:       logging.NewNop(),
		now:          time.Now,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.NewComponentLogger(s.logger, "sandbox")
	s.router = s.routes()
	return s
}

// ServeHTTP dispatches to the backend routes.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// PutObject stores data at path as if it had been uploaded.
func (s *Server) PutObject(path string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[path] = append([]byte(nil), data...)
}

// Object returns the stored bytes at path.
func (s *Server) Object(path string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[path]
	return data, ok
}

// AddPreset registers a preset and returns it with its assigned id.
func (s *Server) AddPreset(in api.PresetInput) api.Preset {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.addPreset(in)
}

// Job returns the stored job.
func (s *Server) Job(id string) (api.Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return api.Job{}, false
	}
	return s.jobViewLocked(job), true
}

// Watchers reports how many progress sockets are open for id.
func (s *Server) Watchers(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.watchers[id])
}

func (s *Server) addPreset(in api.PresetInput) *api.Preset {
	now := api.NewTimestamp(s.now())
	preset := &api.Preset{
		PresetID:      newID(),
		Name:          in.Name,
		InputType:     in.InputType,
		OutputType:    in.OutputType,
		Resolution:    in.Resolution,
		VideoEncoding: in.VideoEncoding,
		VideoBitrate:  in.VideoBitrate,
		AudioEncoding: in.AudioEncoding,
		AudioBitrate:  in.AudioBitrate,
		Pipeline:      in.Pipeline,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	s.presets[preset.PresetID] = preset
	s.presetOrder = append(s.presetOrder, preset.PresetID)
	return preset
}

func (s *Server) createJobLocked(sub api.JobSubmission) (*api.Job, error) {
	if _, exists := s.jobs[sub.JobID]; exists {
		return nil, fmt.Errorf("duplicate key value violates unique constraint: job_id %q already exists", sub.JobID)
	}
	now := api.NewTimestamp(s.now())
	job := &api.Job{
		JobID:        sub.JobID,
		InputS3Path:  sub.InputS3Path,
		OutputS3Path: sub.OutputS3Path,
		Pipeline:     sub.Pipeline,
		PresetID:     sub.PresetID,
		State:        api.StateQueued,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.jobs[job.JobID] = job
	s.jobOrder = append(s.jobOrder, job.JobID)
	return job, nil
}

// jobViewLocked renders job as the backend reports it, with its preset and
// playlist memberships resolved.
func (s *Server) jobViewLocked(job *api.Job) api.Job {
	out := *job
	out.Playlists = nil
	if job.PresetID != "" {
		if preset, ok := s.presets[job.PresetID]; ok {
			p := *preset
			out.Preset = &p
		}
	}
	for _, id := range s.playlistOrder {
		pl := s.playlists[id]
		for _, jobID := range pl.Jobs {
			if jobID == job.JobID {
				out.Playlists = append(out.Playlists, api.PlaylistRef{
					ID:        pl.ID,
					Name:      pl.Name,
					CreatedAt: api.NewTimestamp(pl.CreatedAt),
					UpdatedAt: api.NewTimestamp(pl.UpdatedAt),
				})
				break
			}
		}
	}
	return out
}

func (s *Server) activeJobIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for _, id := range s.jobOrder {
		switch s.jobs[id].State {
		case api.StateQueued, api.StateInProgress:
			ids = append(ids, id)
		}
	}
	return ids
}
