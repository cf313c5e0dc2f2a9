package sandbox

import (
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"transcoderctl/internal/api"
	"transcoderctl/internal/logging"
)

const (
	defaultLimit = 10
	maxLimit     = api.MaxPageLimit
)

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Post("/upload", s.handleUpload)
	r.Post("/submit_job", s.handleSubmitJob)

	r.Get("/jobs", s.handleListJobs)
	r.Get("/jobs/{jobID}", s.handleGetJob)
	r.Put("/jobs/{jobID}", s.handleUpdateJob)

	r.Get("/presets", s.handleListPresets)
	r.Post("/presets", s.handleCreatePreset)
	r.Get("/presets/{presetID}", s.handleGetPreset)
	r.Put("/presets/{presetID}", s.handleUpdatePreset)
	r.Delete("/presets/{presetID}", s.handleDeletePreset)

	r.Get("/playlists", s.handleListPlaylists)
	r.Post("/playlists", s.handleCreatePlaylist)

	r.Get("/signed_download/*", s.handleSignedDownload)
	r.Get("/download/*", s.handleDownload)

	r.Get("/progress/{jobID}", s.handleProgress)
	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.logger.Debug("request",
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.Int("status", status),
			logging.Duration("duration", time.Since(start)),
			logging.String("request_id", r.Header.Get("X-Request-ID")),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeDetail mirrors the backend's {"detail": "..."} error body.
func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

type validationItem struct {
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
}

func writeValidation(w http.ResponseWriter, msg, kind string) {
	writeJSON(w, http.StatusUnprocessableEntity, map[string][]validationItem{
		"detail": {{Loc: []string{}, Msg: msg, Type: kind}},
	})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeValidation(w, fmt.Sprintf("invalid request body: %v", err), "value_error.jsondecode")
		return false
	}
	return true
}

// pageParams parses skip and limit with the backend's bounds.
func pageParams(w http.ResponseWriter, r *http.Request) (skip, limit int, ok bool) {
	skip, limit = 0, defaultLimit
	q := r.URL.Query()
	if raw := q.Get("skip"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			writeValidation(w, "skip must be an integer >= 0", "value_error.number.not_ge")
			return 0, 0, false
		}
		skip = v
	}
	if raw := q.Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 || v > maxLimit {
			writeValidation(w, fmt.Sprintf("limit must be between 1 and %d", maxLimit), "value_error.number.not_le")
			return 0, 0, false
		}
		limit = v
	}
	return skip, limit, true
}

func window(n, skip, limit int) (int, int) {
	if skip >= n {
		return n, n
	}
	end := skip + limit
	if end > n {
		end = n
	}
	return skip, end
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	skip, limit, ok := pageParams(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	start, end := window(len(s.jobOrder), skip, limit)
	jobs := make([]api.Job, 0, end-start)
	for _, id := range s.jobOrder[start:end] {
		jobs = append(jobs, s.jobViewLocked(s.jobs[id]))
	}
	s.mu.Unlock()

	if len(jobs) == 0 {
		writeDetail(w, http.StatusNotFound, "No jobs found")
		return
	}
	writeJSON(w, http.StatusOK, jobs)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "jobID")
	s.mu.Lock()
	job, ok := s.jobs[id]
	var out api.Job
	if ok {
		out = s.jobViewLocked(job)
	}
	s.mu.Unlock()
	if !ok {
		writeDetail(w, http.StatusNotFound, "Job not found")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleUpdateJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "jobID")
	var update api.JobUpdate
	if !decodeBody(w, r, &update) {
		return
	}

	s.mu.Lock()
	job, ok := s.jobs[id]
	if !ok {
		s.mu.Unlock()
		writeDetail(w, http.StatusNotFound, "Job not found")
		return
	}
	applyJobUpdate(job, update)
	job.UpdatedAt = api.NewTimestamp(s.now())
	out := s.jobViewLocked(job)
	terminal := job.Terminal()
	s.mu.Unlock()

	if terminal {
		s.finishWatchers(out)
	}
	writeJSON(w, http.StatusOK, out)
}

func applyJobUpdate(job *api.Job, u api.JobUpdate) {
	set := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	set(&job.InputS3Path, u.InputS3Path)
	set(&job.OutputS3Path, u.OutputS3Path)
	set(&job.Pipeline, u.Pipeline)
	set(&job.PresetID, u.PresetID)
	set(&job.State, u.State)
	set(&job.Error, u.Error)
	set(&job.ErrorType, u.ErrorType)
}

func (s *Server) handleSubmitJob(w http.ResponseWriter, r *http.Request) {
	var sub api.JobSubmission
	if !decodeBody(w, r, &sub) {
		return
	}
	if strings.TrimSpace(sub.JobID) == "" || strings.TrimSpace(sub.InputS3Path) == "" || strings.TrimSpace(sub.OutputS3Path) == "" {
		writeValidation(w, "job_id, input_s3_path and output_s3_path are required", "value_error.missing")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sub.PresetID != "" {
		preset, ok := s.presets[sub.PresetID]
		if !ok {
			writeDetail(w, http.StatusNotFound, "Preset not found")
			return
		}
		sub.Pipeline = preset.Pipeline
	} else if sub.Pipeline == "" {
		writeDetail(w, http.StatusBadRequest, "Either preset_id or pipeline must be provided")
		return
	}
	job, err := s.createJobLocked(sub)
	if err != nil {
		writeValidation(w, err.Error(), "IntegrityError")
		return
	}
	s.logger.Info("job submitted", logging.JobID(job.JobID))
	writeJSON(w, http.StatusOK, api.SubmitResponse{JobID: job.JobID})
}

func (s *Server) handleListPresets(w http.ResponseWriter, r *http.Request) {
	skip, limit, ok := pageParams(w, r)
	if !ok {
		return
	}
	inputType := r.URL.Query().Get("input_type")
	outputType := r.URL.Query().Get("output_type")

	s.mu.Lock()
	var matched []api.Preset
	for _, id := range s.presetOrder {
		p := s.presets[id]
		if inputType != "" && p.InputType != inputType {
			continue
		}
		if outputType != "" && p.OutputType != outputType {
			continue
		}
		matched = append(matched, *p)
	}
	s.mu.Unlock()

	start, end := window(len(matched), skip, limit)
	if start == end {
		writeDetail(w, http.StatusNotFound, "No presets found")
		return
	}
	writeJSON(w, http.StatusOK, matched[start:end])
}

func (s *Server) handleCreatePreset(w http.ResponseWriter, r *http.Request) {
	var in api.PresetInput
	if !decodeBody(w, r, &in) {
		return
	}
	if strings.TrimSpace(in.Name) == "" || strings.TrimSpace(in.Pipeline) == "" {
		writeValidation(w, "name and pipeline are required", "value_error.missing")
		return
	}
	writeJSON(w, http.StatusOK, s.AddPreset(in))
}

func (s *Server) handleGetPreset(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	preset, ok := s.presets[chi.URLParam(r, "presetID")]
	var out api.Preset
	if ok {
		out = *preset
	}
	s.mu.Unlock()
	if !ok {
		writeDetail(w, http.StatusNotFound, "Preset not found")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleUpdatePreset(w http.ResponseWriter, r *http.Request) {
	var u api.PresetUpdate
	if !decodeBody(w, r, &u) {
		return
	}
	s.mu.Lock()
	preset, ok := s.presets[chi.URLParam(r, "presetID")]
	if !ok {
		s.mu.Unlock()
		writeDetail(w, http.StatusNotFound, "Preset not found")
		return
	}
	set := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	set(&preset.Name, u.Name)
	set(&preset.InputType, u.InputType)
	set(&preset.OutputType, u.OutputType)
	set(&preset.Resolution, u.Resolution)
	set(&preset.VideoEncoding, u.VideoEncoding)
	set(&preset.VideoBitrate, u.VideoBitrate)
	set(&preset.AudioEncoding, u.AudioEncoding)
	set(&preset.AudioBitrate, u.AudioBitrate)
	set(&preset.Pipeline, u.Pipeline)
	preset.UpdatedAt = api.NewTimestamp(s.now())
	out := *preset
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDeletePreset(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "presetID")
	s.mu.Lock()
	preset, ok := s.presets[id]
	if ok {
		delete(s.presets, id)
		for i, existing := range s.presetOrder {
			if existing == id {
				s.presetOrder = append(s.presetOrder[:i], s.presetOrder[i+1:]...)
				break
			}
		}
	}
	s.mu.Unlock()
	if !ok {
		writeDetail(w, http.StatusNotFound, "Preset not found")
		return
	}
	writeJSON(w, http.StatusOK, *preset)
}

func (s *Server) handleListPlaylists(w http.ResponseWriter, r *http.Request) {
	skip, limit, ok := pageParams(w, r)
	if !ok {
		return
	}
	name := r.URL.Query().Get("name")

	s.mu.Lock()
	var matched []api.PlaylistSummary
	for _, id := range s.playlistOrder {
		pl := s.playlists[id]
		if name != "" && pl.Name != name {
			continue
		}
		matched = append(matched, api.PlaylistSummary{
			PlaylistID: pl.ID,
			Name:       pl.Name,
			Jobs:       append([]string{}, pl.Jobs...),
			CreatedAt:  api.NewTimestamp(pl.CreatedAt),
			UpdatedAt:  api.NewTimestamp(pl.UpdatedAt),
		})
	}
	s.mu.Unlock()

	start, end := window(len(matched), skip, limit)
	if start == end {
		writeDetail(w, http.StatusNotFound, "No playlists found")
		return
	}
	writeJSON(w, http.StatusOK, matched[start:end])
}

func (s *Server) handleCreatePlaylist(w http.ResponseWriter, r *http.Request) {
	var in api.PlaylistSubmission
	if !decodeBody(w, r, &in) {
		return
	}
	if strings.TrimSpace(in.Name) == "" || strings.TrimSpace(in.InputS3Path) == "" {
		writeValidation(w, "name and input_s3_path are required", "value_error.missing")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for idx, presetID := range in.Presets {
		if _, ok := s.presets[presetID]; !ok {
			writeDetail(w, http.StatusNotFound, "Preset not found")
			return
		}
		jobID := fmt.Sprintf("%s-%d", in.Name, idx)
		if _, exists := s.jobs[jobID]; exists {
			writeValidation(w, fmt.Sprintf("job_id %q already exists", jobID), "IntegrityError")
			return
		}
	}

	now := s.now()
	pl := &playlist{
		ID:          newID(),
		Name:        in.Name,
		InputS3Path: in.InputS3Path,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	for idx, presetID := range in.Presets {
		jobID := fmt.Sprintf("%s-%d", in.Name, idx)
		job, err := s.createJobLocked(api.JobSubmission{
			JobID:        jobID,
			InputS3Path:  in.InputS3Path,
			OutputS3Path: fmt.Sprintf("%s/%s/%s.mp4", pl.ID, presetID, jobID),
			Pipeline:     s.presets[presetID].Pipeline,
			PresetID:     presetID,
		})
		if err != nil {
			writeValidation(w, err.Error(), "IntegrityError")
			return
		}
		pl.Jobs = append(pl.Jobs, job.JobID)
	}
	s.playlists[pl.ID] = pl
	s.playlistOrder = append(s.playlistOrder, pl.ID)
	s.logger.Info("playlist created", logging.String("playlist", pl.Name), logging.Int("jobs", len(pl.Jobs)))

	writeJSON(w, http.StatusOK, api.PlaylistCreated{
		PlaylistID:  pl.ID,
		InputS3Path: pl.InputS3Path,
		Jobs:        append([]string{}, pl.Jobs...),
	})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	reader, err := r.MultipartReader()
	if err != nil {
		writeValidation(w, "multipart body required", "value_error.missing")
		return
	}
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			writeDetail(w, http.StatusBadRequest, err.Error())
			return
		}
		if part.FormName() != "file" {
			_ = part.Close()
			continue
		}
		name := part.FileName()
		data, err := io.ReadAll(part)
		_ = part.Close()
		if err != nil {
			writeDetail(w, http.StatusBadRequest, err.Error())
			return
		}
		if name == "" {
			writeValidation(w, "file name is required", "value_error.missing")
			return
		}
		s.PutObject(name, data)
		s.logger.Info("object uploaded", logging.String("filename", name), logging.Int("bytes", len(data)))
		writeJSON(w, http.StatusOK, api.UploadResult{Filename: name})
		return
	}
	writeValidation(w, "field file is required", "value_error.missing")
}

func (s *Server) handleSignedDownload(w http.ResponseWriter, r *http.Request) {
	key := wildcardKey(r)
	if _, ok := s.Object(key); !ok {
		writeDetail(w, http.StatusNotFound, "File not found")
		return
	}

	host := r.Host
	if s.storageHost != "" {
		if _, port, err := net.SplitHostPort(r.Host); err == nil {
			host = net.JoinHostPort(s.storageHost, port)
		} else {
			host = s.storageHost
		}
	}
	signed := url.URL{
		Scheme:   "http",
		Host:     host,
		Path:     "/download/" + key,
		RawQuery: url.Values{"X-Amz-Expires": {"3600"}, "X-Amz-Signature": {uuid.NewString()}}.Encode(),
	}
	writeJSON(w, http.StatusOK, api.SignedURL{URL: signed.String()})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	data, ok := s.Object(wildcardKey(r))
	if !ok {
		writeDetail(w, http.StatusNotFound, "File not found")
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// wildcardKey returns the object key matched by a trailing wildcard route.
func wildcardKey(r *http.Request) string {
	raw := chi.URLParam(r, "*")
	if key, err := url.PathUnescape(raw); err == nil {
		return key
	}
	return raw
}

func newID() string {
	return uuid.NewString()
}
