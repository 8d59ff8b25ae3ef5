package service

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// PollConfig bounds the status convergence loop for one conversation.
type PollConfig struct {
	InitialInterval  time.Duration
	MaxInterval      time.Duration
	BackoffFactor    float64
	StalenessCeiling time.Duration
}

// stopReason says why a poll chain ended.
type stopReason int

const (
	stopTerminal stopReason = iota // conversation reached a terminal status
	stopStale                      // updated_at too old, host likely stuck
	stopFetchErr                   // a background fetch failed
	stopCancelled
)

// pollFetch fetches one conversation by id from the host.
type pollFetch func(ctx context.Context, id int64) error

// shouldContinue decides whether another round is warranted, given the last
// merged state of the conversation. It returns stopTerminal/stopStale when
// polling must end.
type shouldContinue func(id int64, now time.Time) (bool, stopReason)

// Poller converges conversations with host truth by refetching on a bounded
// exponential backoff. At most one live chain exists per conversation id;
// starting a new chain supersedes the old one.
type Poller struct {
	cfg     PollConfig
	fetch   pollFetch
	cont    shouldContinue
	onStop  func(id int64, reason stopReason)
	logger  *slog.Logger
	nowFunc func() time.Time

	mu    sync.Mutex
	tasks map[int64]*pollTask
}

type pollTask struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func NewPoller(cfg PollConfig, fetch pollFetch, cont shouldContinue, onStop func(int64, stopReason), logger *slog.Logger) *Poller {
	return &Poller{
		cfg:     cfg,
		fetch:   fetch,
		cont:    cont,
		onStop:  onStop,
		logger:  logger,
		nowFunc: time.Now,
		tasks:   make(map[int64]*pollTask),
	}
}

// Poll performs the first fetch synchronously (errors surface to the caller)
// and, if the conversation is still in flight, schedules background rounds.
// Any previous chain for the same id is superseded.
func (p *Poller) Poll(ctx context.Context, id int64) error {
	if err := p.fetch(ctx, id); err != nil {
		return err
	}

	ok, reason := p.cont(id, p.nowFunc())
	if !ok {
		p.finish(id, reason)
		return nil
	}

	taskCtx, cancel := context.WithCancel(context.Background())
	task := &pollTask{cancel: cancel, done: make(chan struct{})}

	p.mu.Lock()
	if prev, exists := p.tasks[id]; exists {
		prev.cancel()
	}
	p.tasks[id] = task
	p.mu.Unlock()

	go p.run(taskCtx, id, task)
	return nil
}

func (p *Poller) run(ctx context.Context, id int64, task *pollTask) {
	defer close(task.done)
	defer func() {
		p.mu.Lock()
		if p.tasks[id] == task {
			delete(p.tasks, id)
		}
		p.mu.Unlock()
	}()

	interval := p.cfg.InitialInterval
	if interval > p.cfg.MaxInterval {
		interval = p.cfg.MaxInterval
	}

	for {
		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			p.finish(id, stopCancelled)
			return
		case <-timer.C:
		}

		if err := p.fetch(ctx, id); err != nil {
			// Background rounds are best-effort: log and stop, the UI keeps
			// the last merged state.
			if ctx.Err() != nil {
				p.finish(id, stopCancelled)
				return
			}
			p.logger.Warn("background conversation fetch failed", "id", id, "error", err)
			p.finish(id, stopFetchErr)
			return
		}

		ok, reason := p.cont(id, p.nowFunc())
		if !ok {
			p.finish(id, reason)
			return
		}

		interval = p.nextInterval(interval)
	}
}

// nextInterval grows the backoff by the configured factor, saturating at
// MaxInterval. The float multiply can overflow int64 for very long chains;
// an overflowed (negative) product also lands on the cap.
func (p *Poller) nextInterval(cur time.Duration) time.Duration {
	next := time.Duration(float64(cur) * p.cfg.BackoffFactor)
	if next <= 0 || next > p.cfg.MaxInterval {
		return p.cfg.MaxInterval
	}
	return next
}

func (p *Poller) finish(id int64, reason stopReason) {
	if p.onStop != nil {
		p.onStop(id, reason)
	}
}

// Cancel stops the chain for one conversation, if any, and waits for it to
// wind down.
func (p *Poller) Cancel(id int64) {
	p.mu.Lock()
	task := p.tasks[id]
	p.mu.Unlock()

	if task != nil {
		task.cancel()
		<-task.done
	}
}

// CancelAll stops every live chain. Called on identity reset.
func (p *Poller) CancelAll() {
	p.mu.Lock()
	tasks := make([]*pollTask, 0, len(p.tasks))
	for _, t := range p.tasks {
		tasks = append(tasks, t)
	}
	p.mu.Unlock()

	for _, t := range tasks {
		t.cancel()
		<-t.done
	}
}

// Active reports whether a chain is live for the given id.
func (p *Poller) Active(id int64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.tasks[id]
	return ok
}
