// Package pager fetches one page of a server-side collection at a time.
//
// Pages are 1-based. A load computes skip=(page-1)*size and limit=size,
// replaces the held items wholesale on success, and treats a 404 as an
// empty page: it raises a notice and, past the first page, steps back one
// page and loads again. Every load runs under the pager's lifetime context;
// a newer load cancels and supersedes any older one still in flight.
package pager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"transcoderctl/internal/alerts"
	"transcoderctl/internal/api"
	"transcoderctl/internal/config"
	"transcoderctl/internal/logging"
)

var (
	// ErrSuperseded is returned by a load whose result was discarded because
	// a newer load started.
	ErrSuperseded = errors.New("page load superseded")
	// ErrClosed is returned by loads after Close.
	ErrClosed = errors.New("pager closed")
)

// DefaultNotFoundMessage is the notice raised for an empty page.
const DefaultNotFoundMessage = "No items found"

// FetchFunc retrieves limit items starting at skip.
type FetchFunc[T any] func(ctx context.Context, skip, limit int) ([]T, error)

// Options configures a Pager.
type Options[T any] struct {
	Fetch           FetchFunc[T]
	PageSize        int
	Arrange         func([]T) []T
	Notify          func(alerts.Alert)
	NotFoundMessage string
	IsNotFound      func(error) bool
	Logger          *slog.Logger
}

// Pager holds the current page of a collection.
type Pager[T any] struct {
	fetch      FetchFunc[T]
	arrange    func([]T) []T
	notify     func(alerts.Alert)
	notFound   string
	isNotFound func(error) bool
	logger     *slog.Logger

	lifetime context.Context
	stop     context.CancelFunc

	mu       sync.Mutex
	page     int
	pageSize int
	items    []T
	loading  bool
	gen      uint64
	inflight context.CancelFunc
	closed   bool
}

// New builds a Pager starting on page 1.
func New[T any](opts Options[T]) (*Pager[T], error) {
	if opts.Fetch == nil {
		return nil, errors.New("pager fetch function is required")
	}
	size := opts.PageSize
	if size == 0 {
		size = config.PageSizes[0]
	}
	if !config.ValidPageSize(size) {
		return nil, fmt.Errorf("page size %d: must be one of %v", size, config.PageSizes)
	}
	p := &Pager[T]{
		fetch:      opts.Fetch,
		arrange:    opts.Arrange,
		notify:     opts.Notify,
		notFound:   opts.NotFoundMessage,
		isNotFound: opts.IsNotFound,
		logger:     logging.NewComponentLogger(opts.Logger, "pager"),
		page:       1,
		pageSize:   size,
	}
	if p.notFound == "" {
		p.notFound = DefaultNotFoundMessage
	}
	if p.isNotFound == nil {
		p.isNotFound = api.IsNotFound
	}
	p.lifetime, p.stop = context.WithCancel(context.Background())
	return p, nil
}

// Load fetches the current page. It returns ErrSuperseded when a newer load
// replaced this one, and the fetch error otherwise. A 404 is not an error.
func (p *Pager[T]) Load(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	if p.inflight != nil {
		p.inflight()
	}
	p.gen++
	gen := p.gen
	page, size := p.page, p.pageSize
	loadCtx, cancel := context.WithCancel(ctx)
	detach := context.AfterFunc(p.lifetime, cancel)
	p.inflight = cancel
	p.loading = true
	p.mu.Unlock()

	items, err := p.fetch(loadCtx, (page-1)*size, size)
	detach()
	cancel()

	p.mu.Lock()
	if gen != p.gen || p.closed {
		p.mu.Unlock()
		p.logger.Debug("discarding stale page", logging.Int("page", page))
		return ErrSuperseded
	}
	p.loading = false
	p.inflight = nil

	if err != nil {
		if p.isNotFound(err) {
			stepBack := page > 1
			if stepBack {
				p.page = page - 1
			} else {
				p.items = nil
			}
			p.mu.Unlock()
			p.logger.Debug("page empty", logging.Int("page", page), logging.Bool("step_back", stepBack))
			p.raise(alerts.Error(p.notFound, true))
			if stepBack {
				return p.Load(ctx)
			}
			return nil
		}
		p.mu.Unlock()
		if errors.Is(err, context.Canceled) {
			return err
		}
		logging.WarnWithContext(p.logger, "page load failed", "page_load_failed",
			logging.Int("page", page),
			logging.Int("page_size", size),
			logging.Error(err),
		)
		p.raise(alerts.Error(api.Message(err), true))
		return err
	}

	if p.arrange != nil {
		items = p.arrange(items)
	}
	p.items = items
	p.mu.Unlock()
	return nil
}

func (p *Pager[T]) raise(a alerts.Alert) {
	if p.notify != nil {
		p.notify(a)
	}
}

// Items returns a copy of the current page.
func (p *Pager[T]) Items() []T {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]T(nil), p.items...)
}

// Loading reports whether the latest load is in flight.
func (p *Pager[T]) Loading() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loading
}

func (p *Pager[T]) Page() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.page
}

func (p *Pager[T]) PageSize() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pageSize
}

// SetPage moves to page n (1-based). The caller loads it.
func (p *Pager[T]) SetPage(n int) error {
	if n < 1 {
		return fmt.Errorf("page %d: must be at least 1", n)
	}
	p.mu.Lock()
	p.page = n
	p.mu.Unlock()
	return nil
}

// SetPageSize changes the page size and returns to page 1.
func (p *Pager[T]) SetPageSize(size int) error {
	if !config.ValidPageSize(size) {
		return fmt.Errorf("page size %d: must be one of %v", size, config.PageSizes)
	}
	p.mu.Lock()
	p.pageSize = size
	p.page = 1
	p.mu.Unlock()
	return nil
}

// Next advances one page.
func (p *Pager[T]) Next() {
	p.mu.Lock()
	p.page++
	p.mu.Unlock()
}

// Prev goes back one page. It reports false on page 1.
func (p *Pager[T]) Prev() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.page <= 1 {
		return false
	}
	p.page--
	return true
}

// Close cancels in-flight loads and rejects new ones.
func (p *Pager[T]) Close() {
	p.mu.Lock()
	p.closed = true
	p.loading = false
	p.mu.Unlock()
	p.stop()
}
