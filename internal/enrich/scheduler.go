// Package enrich drains batches of items lacking details against the remote
// analysis service, one request at a time, with a fixed cooldown between
// requests and linear backoff on rate-limit rejections.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"issuecompass/internal/ai"
	"issuecompass/internal/model"
)

var (
	ErrBusy       = errors.New("enrichment run already active")
	ErrEmptyBatch = errors.New("enrichment batch is empty")
)

type DetailFetcher interface {
	RequestItemDetail(ctx context.Context, req ai.DetailRequest) (*ai.DetailResponse, error)
}

// Patcher applies finished details to whatever holds the documents.
type Patcher interface {
	// NeedsDetail reports whether the item still lacks details in the latest
	// known version of document docID.
	NeedsDetail(docID, itemID string) bool
	// ApplyDetail patches docID by identity. A superseded or unknown document
	// is a no-op.
	ApplyDetail(docID, itemID string, details *model.ItemDetails) bool
}

type Recorder interface {
	Append(kind model.LogKind, message, details string) model.LogEntry
}

type Batch struct {
	DocumentID string
	Query      string
	Language   string
	Items      []model.SuggestionItem
}

type RunResult struct {
	DocumentID string
	Total      int
	Requests   int
	Succeeded  []string
	Abandoned  []string
	Skipped    []string
}

func (r RunResult) Completed() int {
	return len(r.Succeeded) + len(r.Abandoned) + len(r.Skipped)
}

type Config struct {
	Cooldown time.Duration
	Retry    RetryPolicy
	// RequestTimeout bounds one detail request; exceeding it abandons the
	// item like any other non-rate-limit failure. Zero disables it.
	RequestTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{Cooldown: DefaultCooldown, Retry: DefaultRetryPolicy()}
}

type Option func(*Scheduler)

func WithClock(clock Clock) Option {
	return func(s *Scheduler) { s.clock = clock }
}

func WithConfig(cfg Config) Option {
	return func(s *Scheduler) { s.cfg = cfg }
}

func WithInFlight(inflight *InFlight) Option {
	return func(s *Scheduler) { s.inflight = inflight }
}

// WithOnDrained registers fn to run after every run that ends without its
// context being cancelled. The slot is already free when fn runs.
func WithOnDrained(fn func(RunResult)) Option {
	return func(s *Scheduler) { s.onDrained = fn }
}

type Scheduler struct {
	fetcher   DetailFetcher
	patcher   Patcher
	log       Recorder
	clock     Clock
	cfg       Config
	inflight  *InFlight
	onDrained func(RunResult)
	progress  *broadcaster

	mu     sync.Mutex
	active bool
	state  State
	last   Progress

	wg sync.WaitGroup
}

func New(fetcher DetailFetcher, patcher Patcher, log Recorder, opts ...Option) *Scheduler {
	s := &Scheduler{
		fetcher:  fetcher,
		patcher:  patcher,
		log:      log,
		clock:    RealClock(),
		cfg:      DefaultConfig(),
		inflight: NewInFlight(),
		progress: newBroadcaster(),
		state:    StateIdle,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Scheduler) InFlight() *InFlight {
	return s.inflight
}

func (s *Scheduler) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastProgress is the most recent progress event of the current or last run.
func (s *Scheduler) LastProgress() Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func (s *Scheduler) Subscribe(buffer int) (<-chan Progress, func()) {
	return s.progress.subscribe(buffer)
}

// Submit starts a background run for batch. It returns false, without
// queueing anything, when a run is already active or the batch is empty.
func (s *Scheduler) Submit(ctx context.Context, batch Batch) bool {
	if len(batch.Items) == 0 || ctx.Err() != nil {
		return false
	}
	if !s.acquire() {
		return false
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.drain(ctx, batch)
	}()
	return true
}

// Run drains batch on the calling goroutine.
func (s *Scheduler) Run(ctx context.Context, batch Batch) (RunResult, error) {
	if len(batch.Items) == 0 {
		return RunResult{DocumentID: batch.DocumentID}, ErrEmptyBatch
	}
	if !s.acquire() {
		return RunResult{DocumentID: batch.DocumentID}, ErrBusy
	}
	return s.drain(ctx, batch)
}

// Wait blocks until every run started by Submit has returned.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) acquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active {
		return false
	}
	s.active = true
	return true
}

func (s *Scheduler) drain(ctx context.Context, batch Batch) (RunResult, error) {
	items := append([]model.SuggestionItem(nil), batch.Items...)
	res := RunResult{DocumentID: batch.DocumentID, Total: len(items)}

	s.log.Append(model.LogSystem, fmt.Sprintf("enrichment started for %d items", len(items)), "document "+batch.DocumentID)
	s.report(batch.DocumentID, StateDraining, res, "starting")

	err := s.drainItems(ctx, batch, items, &res)

	if err != nil {
		s.log.Append(model.LogSystem, "enrichment stopped", err.Error())
	} else {
		s.log.Append(model.LogInfo,
			fmt.Sprintf("enrichment finished: %d detailed, %d abandoned, %d skipped", len(res.Succeeded), len(res.Abandoned), len(res.Skipped)),
			"document "+batch.DocumentID)
	}
	s.report(batch.DocumentID, StateDrained, res, "done")

	s.mu.Lock()
	s.active = false
	s.mu.Unlock()

	if err == nil && s.onDrained != nil {
		s.onDrained(res)
	}
	return res, err
}

func (s *Scheduler) drainItems(ctx context.Context, batch Batch, items []model.SuggestionItem, res *RunResult) error {
	skip := func(item model.SuggestionItem) {
		res.Skipped = append(res.Skipped, item.ID)
		s.report(batch.DocumentID, StateDraining, *res, fmt.Sprintf("skipped %q", item.Title))
	}
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !s.patcher.NeedsDetail(batch.DocumentID, item.ID) || s.inflight.Contains(item.ID) {
			skip(item)
			continue
		}

		if res.Requests > 0 {
			s.report(batch.DocumentID, StateCooling, *res, "cooling down")
			if err := s.clock.Sleep(ctx, s.cfg.Cooldown); err != nil {
				return err
			}
		}
		// The marker is taken only once the request is about to go out, so an
		// on-demand fetch can claim the item during the cooldown.
		if !s.patcher.NeedsDetail(batch.DocumentID, item.ID) || !s.inflight.Acquire(item.ID) {
			skip(item)
			continue
		}

		out, err := s.processItem(ctx, batch, item, res)
		s.inflight.Release(item.ID)
		if err != nil {
			return err
		}
		switch out {
		case itemDetailed:
			res.Succeeded = append(res.Succeeded, item.ID)
		case itemAbandoned:
			res.Abandoned = append(res.Abandoned, item.ID)
		case itemSuperseded:
			skip(item)
			continue
		}
		s.report(batch.DocumentID, StateDraining, *res, fmt.Sprintf("processed %d/%d", res.Completed(), res.Total))
	}
	return nil
}

type itemOutcome int

const (
	itemDetailed itemOutcome = iota
	itemAbandoned
	// itemSuperseded means the item stopped needing details while it waited
	// for a retry.
	itemSuperseded
)

// processItem returns a non-nil error only when ctx is cancelled.
func (s *Scheduler) processItem(ctx context.Context, batch Batch, item model.SuggestionItem, res *RunResult) (itemOutcome, error) {
	backoff := s.cfg.Retry.Backoff()
	retries := 0
	for {
		s.report(batch.DocumentID, StateDraining, *res, fmt.Sprintf("fetching details for %q", item.Title))
		res.Requests++
		resp, err := s.fetch(ctx, batch, item)
		if err == nil && resp == nil {
			err = &ai.MalformedResponseError{Err: errors.New("empty detail response")}
		}
		if err == nil {
			if !s.patcher.ApplyDetail(batch.DocumentID, item.ID, resp.ToDetails()) && s.patcher.NeedsDetail(batch.DocumentID, item.ID) {
				s.log.Append(model.LogError, fmt.Sprintf("details for %q were incomplete, item abandoned", item.Title), "")
				return itemAbandoned, nil
			}
			return itemDetailed, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return itemAbandoned, ctxErr
		}

		if !ai.IsRateLimited(err) {
			s.log.Append(model.LogError, fmt.Sprintf("details for %q failed, item abandoned", item.Title), err.Error())
			return itemAbandoned, nil
		}

		delay, stop := backoff.Next()
		if stop {
			s.log.Append(model.LogError,
				fmt.Sprintf("details for %q abandoned after %d retries", item.Title, retries), err.Error())
			return itemAbandoned, nil
		}
		if !s.patcher.NeedsDetail(batch.DocumentID, item.ID) {
			return itemSuperseded, nil
		}
		retries++
		status := fmt.Sprintf("rate limit hit, retry %d/%d", retries, s.cfg.Retry.MaxRetries)
		s.log.Append(model.LogWarning, status, fmt.Sprintf("item %q, waiting %s", item.Title, delay))
		s.report(batch.DocumentID, StateRetrying, *res, status)
		if err := s.clock.Sleep(ctx, delay); err != nil {
			return itemAbandoned, err
		}
		if !s.patcher.NeedsDetail(batch.DocumentID, item.ID) {
			s.log.Append(model.LogInfo, fmt.Sprintf("retry for %q dropped, item no longer pending", item.Title), "")
			return itemSuperseded, nil
		}
	}
}

func (s *Scheduler) fetch(ctx context.Context, batch Batch, item model.SuggestionItem) (*ai.DetailResponse, error) {
	if s.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.RequestTimeout)
		defer cancel()
	}
	return s.fetcher.RequestItemDetail(ctx, ai.DetailRequest{
		ItemTitle:   item.Title,
		ParentQuery: batch.Query,
		Language:    batch.Language,
	})
}

func (s *Scheduler) report(docID string, state State, res RunResult, status string) {
	p := Progress{
		DocumentID: docID,
		State:      state,
		Completed:  res.Completed(),
		Total:      res.Total,
		Status:     status,
	}
	s.mu.Lock()
	s.state = state
	s.last = p
	s.mu.Unlock()
	s.progress.publish(p)
}
