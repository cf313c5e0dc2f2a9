package sandbox

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"transcoderctl/internal/logging"
)

const shutdownTimeout = 5 * time.Second

// Serve listens on addr until ctx is cancelled. ready, when non-nil, receives
// the bound address once the listener is open.
func (s *Server) Serve(ctx context.Context, addr string, ready func(net.Addr)) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	s.logger.Info("sandbox backend listening", logging.String("addr", ln.Addr().String()))
	if ready != nil {
		ready(ln.Addr())
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.closeWatchers()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		_ = srv.Close()
		return err
	}
	return nil
}

func (s *Server) closeWatchers() {
	s.mu.Lock()
	var all []*watcher
	for id := range s.watchers {
		all = append(all, s.watchersLocked(id)...)
	}
	s.mu.Unlock()
	for _, wt := range all {
		wt.mu.Lock()
		_ = wt.conn.Close()
		wt.mu.Unlock()
	}
}
