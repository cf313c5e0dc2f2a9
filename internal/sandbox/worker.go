package sandbox

import (
	"context"
	"time"

	"transcoderctl/internal/api"
	"transcoderctl/internal/logging"
)

// RunWorker advances every queued or running job by step percent on each
// tick and completes it once it reaches 100. It returns when ctx is done.
func (s *Server) RunWorker(ctx context.Context, tick time.Duration, step float64) {
	if tick <= 0 || step <= 0 {
		return
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.advance(step)
		}
	}
}

func (s *Server) advance(step float64) {
	for _, id := range s.activeJobIDs() {
		s.mu.Lock()
		current := s.lastProgress[id].Progress
		s.mu.Unlock()

		next := current + step
		if next >= 100 {
			if err := s.CompleteJob(id, api.StateCompleted, "", ""); err != nil {
				s.logger.Debug("worker completion skipped", logging.JobID(id), logging.Error(err))
			}
			continue
		}
		if err := s.PublishProgress(id, next); err != nil {
			s.logger.Debug("worker progress skipped", logging.JobID(id), logging.Error(err))
		}
	}
}
