package joblist

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"transcoderctl/internal/alerts"
	"transcoderctl/internal/api"
	"transcoderctl/internal/progress"
)

type fakeSource struct {
	mu        sync.Mutex
	jobs      []api.Job
	listCalls int
	cancelled []string
	cancelErr error
}

func (s *fakeSource) ListJobs(_ context.Context, skip, limit int) ([]api.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listCalls++
	if skip >= len(s.jobs) {
		return nil, &api.HTTPError{StatusCode: http.StatusNotFound, Body: `{"detail":"No jobs found"}`}
	}
	end := skip + limit
	if end > len(s.jobs) {
		end = len(s.jobs)
	}
	return append([]api.Job(nil), s.jobs[skip:end]...), nil
}

func (s *fakeSource) CancelJob(_ context.Context, id string) (api.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelErr != nil {
		return api.Job{}, s.cancelErr
	}
	s.cancelled = append(s.cancelled, id)
	for i := range s.jobs {
		if s.jobs[i].JobID == id {
			s.jobs[i].State = api.StateCancelled
			return s.jobs[i], nil
		}
	}
	return api.Job{}, &api.HTTPError{StatusCode: http.StatusNotFound}
}

func (s *fakeSource) setState(id, state string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.jobs {
		if s.jobs[i].JobID == id {
			s.jobs[i].State = state
		}
	}
}

func (s *fakeSource) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listCalls
}

type stubConn struct {
	messages chan []byte
	closed   chan struct{}
	once     sync.Once
}

func (c *stubConn) ReadMessage() (int, []byte, error) {
	select {
	case data := <-c.messages:
		return 1, data, nil
	case <-c.closed:
		return 0, nil, errors.New("closed")
	}
}

func (c *stubConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

type stubDialer struct {
	mu    sync.Mutex
	conns map[string][]*stubConn
}

func (d *stubDialer) Dial(_ context.Context, jobID string) (progress.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.conns == nil {
		d.conns = map[string][]*stubConn{}
	}
	c := &stubConn{messages: make(chan []byte, 8), closed: make(chan struct{})}
	d.conns[jobID] = append(d.conns[jobID], c)
	return c, nil
}

func (d *stubDialer) count(jobID string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.conns[jobID])
}

func (d *stubDialer) conn(jobID string) *stubConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	list := d.conns[jobID]
	return list[len(list)-1]
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func newView(t *testing.T, src *fakeSource, dialer *stubDialer, board *alerts.Board) *View {
	t.Helper()
	v, err := NewView(Options{Source: src, Dialer: dialer, PageSize: 10, Alerts: board})
	if err != nil {
		t.Fatalf("NewView: %v", err)
	}
	t.Cleanup(func() { _ = v.Close() })
	return v
}

func TestRefreshSubscribesActiveJobsOnce(t *testing.T) {
	src := &fakeSource{jobs: []api.Job{
		{JobID: "a", State: api.StateInProgress},
		{JobID: "b", State: api.StateQueued},
		{JobID: "c", State: api.StateInProgress},
	}}
	dialer := &stubDialer{}
	v := newView(t, src, dialer, nil)

	for range 3 {
		if err := v.Refresh(context.Background()); err != nil {
			t.Fatalf("Refresh: %v", err)
		}
	}
	if dialer.count("a") != 1 || dialer.count("c") != 1 || dialer.count("b") != 0 {
		t.Fatalf("unexpected dials a=%d b=%d c=%d", dialer.count("a"), dialer.count("b"), dialer.count("c"))
	}
	tracked := v.Progress().Tracked()
	if len(tracked) != 2 {
		t.Fatalf("expected 2 tracked sockets, got %v", tracked)
	}
}

func TestRowsMergeProgress(t *testing.T) {
	src := &fakeSource{jobs: []api.Job{{JobID: "a", State: api.StateInProgress}, {JobID: "b", State: api.StateQueued}}}
	dialer := &stubDialer{}
	v := newView(t, src, dialer, nil)
	if err := v.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	dialer.conn("a").messages <- []byte(`{"job_id":"a","progress":37.5}`)
	eventually(t, func() bool {
		for _, row := range v.Rows() {
			if row.Job.JobID == "a" && row.HasProgress && row.Progress == 37.5 {
				return true
			}
		}
		return false
	})
	for _, row := range v.Rows() {
		if row.Job.JobID == "b" && (row.HasProgress || row.Live) {
			t.Fatalf("queued job should have no progress, got %+v", row)
		}
	}
}

func TestResultTriggersSingleRefetch(t *testing.T) {
	src := &fakeSource{jobs: []api.Job{{JobID: "a", State: api.StateInProgress}}}
	dialer := &stubDialer{}
	results := make(chan progress.ResultMessage, 2)
	v, err := NewView(Options{
		Source:   src,
		Dialer:   dialer,
		OnResult: func(r progress.ResultMessage) { results <- r },
	})
	if err != nil {
		t.Fatalf("NewView: %v", err)
	}
	defer v.Close()

	if err := v.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	before := src.calls()

	src.setState("a", api.StateCompleted)
	conn := dialer.conn("a")
	conn.messages <- []byte(`{"job_id":"a","progress":99}`)
	conn.messages <- []byte(`{"job_id":"a","status":"completed"}`)

	select {
	case <-results:
	case <-time.After(2 * time.Second):
		t.Fatal("expected result")
	}
	eventually(t, func() bool { return src.calls() == before+1 && len(v.Progress().Tracked()) == 0 })
	time.Sleep(50 * time.Millisecond)
	if got := src.calls(); got != before+1 {
		t.Fatalf("expected exactly one refetch, got %d", got-before)
	}
	if _, ok := v.Progress().Progress("a"); ok {
		t.Fatal("expected progress entry removed")
	}
	if rows := v.Rows(); len(rows) != 1 || rows[0].Job.State != api.StateCompleted {
		t.Fatalf("expected authoritative completed state, got %+v", rows)
	}
}

func TestPageStepBackOnEmptyPage(t *testing.T) {
	jobs := make([]api.Job, 15)
	for i := range jobs {
		jobs[i] = api.Job{JobID: string(rune('a' + i)), State: api.StateCompleted}
	}
	src := &fakeSource{jobs: jobs}
	board := alerts.NewBoard(0)
	v := newView(t, src, &stubDialer{}, board)

	_ = v.Pager().SetPage(3)
	if err := v.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if v.Pager().Page() != 2 {
		t.Fatalf("expected page 2, got %d", v.Pager().Page())
	}
	if len(v.Rows()) != 5 {
		t.Fatalf("expected 5 rows on page 2, got %d", len(v.Rows()))
	}
	if a, ok := board.Current(); !ok || a.Message != "No jobs found" {
		t.Fatalf("expected not-found notice, got %+v %v", a, ok)
	}
}

func TestOnLoadReportsPageAfterStepBack(t *testing.T) {
	jobs := make([]api.Job, 15)
	for i := range jobs {
		jobs[i] = api.Job{JobID: string(rune('a' + i)), State: api.StateCompleted}
	}
	src := &fakeSource{jobs: jobs}
	var gotPage, gotSize, gotLen int
	v, err := NewView(Options{
		Source:   src,
		Dialer:   &stubDialer{},
		PageSize: 10,
		OnLoad: func(page, pageSize int, loaded []api.Job) {
			gotPage, gotSize, gotLen = page, pageSize, len(loaded)
		},
	})
	if err != nil {
		t.Fatalf("NewView: %v", err)
	}
	defer v.Close()

	_ = v.Pager().SetPage(3)
	if err := v.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if gotPage != 2 || gotSize != 10 || gotLen != 5 {
		t.Fatalf("expected page 2 size 10 with 5 jobs, got page %d size %d with %d jobs", gotPage, gotSize, gotLen)
	}
}

func TestCancelRefreshesAndAlerts(t *testing.T) {
	src := &fakeSource{jobs: []api.Job{{JobID: "a", State: api.StateQueued}}}
	board := alerts.NewBoard(0)
	v := newView(t, src, &stubDialer{}, board)

	if err := v.Cancel(context.Background(), "a"); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if rows := v.Rows(); len(rows) != 1 || rows[0].Job.State != api.StateCancelled {
		t.Fatalf("expected cancelled row, got %+v", rows)
	}
	if a, _ := board.Current(); a.Kind != alerts.KindSuccess {
		t.Fatalf("expected success alert, got %+v", a)
	}

	src.cancelErr = &api.HTTPError{StatusCode: 500, Body: `{"detail":"cannot cancel"}`}
	if err := v.Cancel(context.Background(), "a"); err == nil {
		t.Fatal("expected cancel error")
	}
	if a, _ := board.Current(); a.Kind != alerts.KindError || a.Message != "cannot cancel" {
		t.Fatalf("expected error alert, got %+v", a)
	}
}

func TestCloseReleasesSockets(t *testing.T) {
	src := &fakeSource{jobs: []api.Job{{JobID: "a", State: api.StateInProgress}}}
	dialer := &stubDialer{}
	v, err := NewView(Options{Source: src, Dialer: dialer})
	if err != nil {
		t.Fatalf("NewView: %v", err)
	}
	if err := v.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if err := v.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	select {
	case <-dialer.conn("a").closed:
	default:
		t.Fatal("expected socket closed")
	}
	if len(v.Progress().Tracked()) != 0 {
		t.Fatal("expected no tracked sockets after Close")
	}
}
