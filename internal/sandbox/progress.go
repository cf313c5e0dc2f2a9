package sandbox

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"transcoderctl/internal/api"
	"transcoderctl/internal/logging"
)

const (
	writeWait = 5 * time.Second
	workerID  = "sandbox-worker"
)

type progressEvent struct {
	JobID     string  `json:"job_id"`
	WorkerID  string  `json:"worker_id"`
	Timestamp float64 `json:"timestamp"`
	Progress  float64 `json:"progress"`
}

// resultEvent is sent with explicit nulls, as the backend does for jobs that
// finished before the socket opened.
type resultEvent struct {
	JobID        string   `json:"job_id"`
	Status       string   `json:"status"`
	WorkerID     *string  `json:"worker_id"`
	Timestamp    *float64 `json:"timestamp"`
	OutputS3Path string   `json:"output_s3_path"`
	Error        *string  `json:"error"`
	ErrorType    *string  `json:"error_type"`
}

type errorEvent struct {
	Error string `json:"error"`
}

type watcher struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *watcher) send(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.sendLocked(v)
}

func (w *watcher) sendLocked(v any) error {
	_ = w.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return w.conn.WriteJSON(v)
}

func (w *watcher) finish(v any) {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.sendLocked(v)
	_ = w.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
	_ = w.conn.Close()
}

// watchable reports whether a job can still emit progress. Anything other than
// queued or in-progress is treated as finished.
func watchable(job *api.Job) bool {
	return job.State == api.StateQueued || job.State == api.StateInProgress
}

func nullable(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func resultFor(job api.Job, live bool) resultEvent {
	ev := resultEvent{
		JobID:        job.JobID,
		Status:       job.State,
		OutputS3Path: job.OutputS3Path,
		Error:        nullable(job.Error),
		ErrorType:    nullable(job.ErrorType),
	}
	if live {
		id := workerID
		ts := float64(job.UpdatedAt.UnixNano()) / 1e9
		ev.WorkerID = &id
		ev.Timestamp = &ts
	}
	return ev
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "jobID")
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("progress upgrade failed", logging.JobID(id), logging.Error(err))
		return
	}
	logger := s.logger.With(logging.JobID(id))

	s.mu.Lock()
	job, ok := s.jobs[id]
	if !ok {
		s.mu.Unlock()
		(&watcher{conn: conn}).finish(errorEvent{Error: "Job not yet submitted"})
		return
	}
	if !watchable(job) {
		view := s.jobViewLocked(job)
		s.mu.Unlock()
		(&watcher{conn: conn}).finish(resultFor(view, false))
		return
	}

	wt := &watcher{conn: conn}
	wt.mu.Lock()
	set, ok := s.watchers[id]
	if !ok {
		set = make(map[*watcher]struct{})
		s.watchers[id] = set
	}
	set[wt] = struct{}{}
	last, hasLast := s.lastProgress[id]
	s.mu.Unlock()

	if hasLast {
		_ = wt.sendLocked(last)
	}
	wt.mu.Unlock()
	logger.Debug("progress watcher connected")

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	s.mu.Lock()
	if set, ok := s.watchers[id]; ok {
		delete(set, wt)
		if len(set) == 0 {
			delete(s.watchers, id)
		}
	}
	s.mu.Unlock()
	_ = conn.Close()
	logger.Debug("progress watcher disconnected")
}

// PublishProgress records progress for a queued or running job and pushes it
// to every open progress socket. A queued job moves to in-progress.
func (s *Server) PublishProgress(jobID string, progress float64) error {
	s.mu.Lock()
	job, ok := s.jobs[jobID]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownJob, jobID)
	}
	if !watchable(job) {
		s.mu.Unlock()
		return fmt.Errorf("job %s is already %s", jobID, job.State)
	}
	now := s.now()
	if job.State != api.StateInProgress {
		job.State = api.StateInProgress
		job.TranscodeStartedAt = api.NewTimestamp(now)
	}
	job.UpdatedAt = api.NewTimestamp(now)
	ev := progressEvent{
		JobID:     jobID,
		WorkerID:  workerID,
		Timestamp: float64(now.UnixNano()) / 1e9,
		Progress:  progress,
	}
	s.lastProgress[jobID] = ev
	targets := s.watchersLocked(jobID)
	s.mu.Unlock()

	for _, wt := range targets {
		if err := wt.send(ev); err != nil {
			s.logger.Debug("progress send failed", logging.JobID(jobID), logging.Error(err))
		}
	}
	return nil
}

// CompleteJob moves a job to a terminal state and sends the result to every
// open progress socket before closing it. A completed job whose output was
// never written gets a copy of its input.
func (s *Server) CompleteJob(jobID, state, errMsg, errType string) error {
	switch state {
	case api.StateCompleted, api.StateFailed, api.StateCancelled:
	default:
		return fmt.Errorf("state %q is not terminal", state)
	}

	s.mu.Lock()
	job, ok := s.jobs[jobID]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownJob, jobID)
	}
	now := api.NewTimestamp(s.now())
	job.State = state
	job.Error = errMsg
	job.ErrorType = errType
	job.UpdatedAt = now
	job.TranscodeCompletedAt = now
	if state == api.StateCompleted {
		if _, exists := s.objects[job.OutputS3Path]; !exists {
			if input, ok := s.objects[job.InputS3Path]; ok {
				s.objects[job.OutputS3Path] = append([]byte(nil), input...)
			}
		}
	}
	view := s.jobViewLocked(job)
	s.mu.Unlock()

	s.logger.Info("job finished", logging.JobID(jobID), logging.String("state", state))
	s.finishWatchers(view)
	return nil
}

func (s *Server) finishWatchers(job api.Job) {
	s.mu.Lock()
	targets := s.watchersLocked(job.JobID)
	delete(s.watchers, job.JobID)
	delete(s.lastProgress, job.JobID)
	s.mu.Unlock()

	ev := resultFor(job, true)
	for _, wt := range targets {
		wt.finish(ev)
	}
}

func (s *Server) watchersLocked(jobID string) []*watcher {
	set := s.watchers[jobID]
	out := make([]*watcher, 0, len(set))
	for wt := range set {
		out = append(out, wt)
	}
	return out
}
