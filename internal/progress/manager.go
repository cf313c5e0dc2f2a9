package progress

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"transcoderctl/internal/logging"
)

// ErrClosed is returned by Subscribe after Close.
var ErrClosed = errors.New("progress manager closed")

// Conn is one open progress socket. ReadMessage returns io.EOF once the
// server closes the socket normally.
type Conn interface {
	ReadMessage() (messageType int, data []byte, err error)
	Close() error
}

// Dialer opens the progress socket for a job.
type Dialer interface {
	Dial(ctx context.Context, jobID string) (Conn, error)
}

// DialerFunc adapts a function to Dialer.
type DialerFunc func(ctx context.Context, jobID string) (Conn, error)

func (f DialerFunc) Dial(ctx context.Context, jobID string) (Conn, error) {
	return f(ctx, jobID)
}

// Options configures a Manager. Callbacks run on the socket reader
// goroutine; they must not block for long.
type Options struct {
	Dialer     Dialer
	Logger     *slog.Logger
	OnProgress func(jobID string, percent float64)
	OnResult   func(result ResultMessage)
	OnError    func(jobID string, err error)
}

type subscription struct {
	jobID   string
	conn    Conn
	stopped atomic.Bool
}

// Manager tracks at most one socket per job id.
type Manager struct {
	opts   Options
	logger *slog.Logger

	mu       sync.Mutex
	subs     map[string]*subscription
	progress map[string]float64
	closed   bool

	wg sync.WaitGroup
}

// NewManager constructs a Manager. A Dialer is required.
func NewManager(opts Options) (*Manager, error) {
	if opts.Dialer == nil {
		return nil, errors.New("progress dialer is required")
	}
	return &Manager{
		opts:     opts,
		logger:   logging.NewComponentLogger(opts.Logger, "progress"),
		subs:     make(map[string]*subscription),
		progress: make(map[string]float64),
	}, nil
}

// Subscribe opens the progress socket for jobID. It reports false without
// dialing when the job is already tracked.
func (m *Manager) Subscribe(ctx context.Context, jobID string) (bool, error) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return false, errors.New("job id is required")
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return false, ErrClosed
	}
	if _, ok := m.subs[jobID]; ok {
		m.mu.Unlock()
		return false, nil
	}
	sub := &subscription{jobID: jobID}
	m.subs[jobID] = sub
	m.mu.Unlock()

	conn, err := m.opts.Dialer.Dial(ctx, jobID)
	if err != nil {
		m.release(sub)
		logging.WarnWithContext(m.logger, "progress socket dial failed", "progress_dial_failed",
			logging.JobID(jobID),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check api.base_url and that the backend is running"),
		)
		m.notifyError(jobID, err)
		return false, fmt.Errorf("subscribe %s: %w", jobID, err)
	}

	m.mu.Lock()
	if m.closed || m.subs[jobID] != sub {
		m.mu.Unlock()
		_ = conn.Close()
		return false, nil
	}
	sub.conn = conn
	m.wg.Add(1)
	m.mu.Unlock()

	m.logger.Debug("progress socket opened", logging.JobID(jobID))
	go m.read(sub)
	return true, nil
}

// Unsubscribe closes the socket for jobID and drops its progress entry.
func (m *Manager) Unsubscribe(jobID string) bool {
	m.mu.Lock()
	sub, ok := m.subs[jobID]
	if ok {
		delete(m.subs, jobID)
		delete(m.progress, jobID)
		sub.stopped.Store(true)
	}
	var conn Conn
	if ok {
		conn = sub.conn
	}
	m.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	return ok
}

// Sync reconciles subscriptions with the active job set: departed jobs are
// unsubscribed and new ones subscribed. Dial failures are joined.
func (m *Manager) Sync(ctx context.Context, activeIDs []string) error {
	want := make(map[string]struct{}, len(activeIDs))
	for _, id := range activeIDs {
		if id = strings.TrimSpace(id); id != "" {
			want[id] = struct{}{}
		}
	}
	for _, id := range m.Tracked() {
		if _, ok := want[id]; !ok {
			m.Unsubscribe(id)
		}
	}

	ordered := make([]string, 0, len(want))
	for id := range want {
		ordered = append(ordered, id)
	}
	sort.Strings(ordered)

	var errs []error
	for _, id := range ordered {
		if _, err := m.Subscribe(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close shuts every socket and waits for the readers to exit.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	conns := make([]Conn, 0, len(m.subs))
	for id, sub := range m.subs {
		sub.stopped.Store(true)
		if sub.conn != nil {
			conns = append(conns, sub.conn)
		}
		delete(m.subs, id)
	}
	clear(m.progress)
	m.mu.Unlock()

	for _, conn := range conns {
		_ = conn.Close()
	}
	m.wg.Wait()
	return nil
}

// Progress returns the last reported percent for jobID.
func (m *Manager) Progress(jobID string) (float64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.progress[jobID]
	return p, ok
}

// Snapshot copies the progress map.
func (m *Manager) Snapshot() map[string]float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]float64, len(m.progress))
	for id, p := range m.progress {
		out[id] = p
	}
	return out
}

// Connected reports whether jobID has an open socket.
func (m *Manager) Connected(jobID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub, ok := m.subs[jobID]
	return ok && sub.conn != nil
}

// Tracked lists job ids with a socket open or being dialed.
func (m *Manager) Tracked() []string {
	m.mu.Lock()
	ids := make([]string, 0, len(m.subs))
	for id := range m.subs {
		ids = append(ids, id)
	}
	m.mu.Unlock()
	sort.Strings(ids)
	return ids
}

func (m *Manager) release(sub *subscription) {
	m.mu.Lock()
	if m.subs[sub.jobID] == sub {
		delete(m.subs, sub.jobID)
	}
	m.mu.Unlock()
}

func (m *Manager) read(sub *subscription) {
	defer m.wg.Done()
	defer func() {
		m.release(sub)
		_ = sub.conn.Close()
		m.logger.Debug("progress socket closed", logging.JobID(sub.jobID))
	}()

	for {
		_, data, err := sub.conn.ReadMessage()
		if err != nil {
			if sub.stopped.Load() || errors.Is(err, io.EOF) {
				return
			}
			logging.WarnWithContext(m.logger, "progress socket error", "progress_socket_error",
				logging.JobID(sub.jobID),
				logging.Error(err),
			)
			m.notifyError(sub.jobID, err)
			return
		}

		msg, err := Decode(data)
		if err != nil {
			logging.WarnWithContext(m.logger, "discarding progress payload", "progress_decode_failed",
				logging.JobID(sub.jobID),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "backend sent a payload matching no single message shape"),
			)
			m.notifyError(sub.jobID, err)
			continue
		}

		switch msg.Kind {
		case KindProgress:
			if !m.recordProgress(sub, msg.Progress.Progress) {
				return
			}
			if m.opts.OnProgress != nil {
				m.opts.OnProgress(sub.jobID, msg.Progress.Progress)
			}
		case KindResult:
			result := msg.Result
			if result.JobID == "" {
				result.JobID = sub.jobID
			}
			m.mu.Lock()
			delete(m.progress, sub.jobID)
			m.mu.Unlock()
			m.logger.Info("job finished",
				logging.JobID(sub.jobID),
				logging.String("status", result.Status),
			)
			if m.opts.OnResult != nil && !sub.stopped.Load() {
				m.opts.OnResult(result)
			}
			return
		case KindError:
			remote := &RemoteError{JobID: sub.jobID, Message: msg.Error.Error}
			logging.WarnWithContext(m.logger, "progress server reported error", "progress_remote_error",
				logging.JobID(sub.jobID),
				logging.String("detail", msg.Error.Error),
			)
			m.notifyError(sub.jobID, remote)
		}
	}
}

// recordProgress stores percent unless the subscription was replaced or
// stopped meanwhile.
func (m *Manager) recordProgress(sub *subscription, percent float64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sub.stopped.Load() || m.subs[sub.jobID] != sub {
		return false
	}
	m.progress[sub.jobID] = percent
	return true
}

func (m *Manager) notifyError(jobID string, err error) {
	if m.opts.OnError != nil {
		m.opts.OnError(jobID, err)
	}
}
