package batch

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"sync"
	"time"

	"squish/logger"
	"squish/models"
	"squish/pool"
	"squish/transform"

	"github.com/google/uuid"
)

var (
	// ErrEmptyBatch is returned when Submit is called with no items.
	ErrEmptyBatch = errors.New("empty batch")

	// ErrBatchRunning is returned when Submit is called while a batch
	// is still in flight.
	ErrBatchRunning = errors.New("batch already running")
)

// Listener receives the per-item status stream plus the batch-level
// progress signal after every state change.
type Listener func(models.ItemUpdate, models.BatchUpdate)

// runTransform decodes and compresses one item's source bytes. Package
// variable so scheduler tests can substitute a controllable stand-in.
var runTransform = func(ctx context.Context, data []byte, opts *models.Options, report func(int)) (*models.Result, error) {
	img, err := transform.Decode(data)
	if err != nil {
		return nil, err
	}
	report(60)
	return transform.Compress(img, len(data), opts)
}

// Scheduler owns the pending-item queue, feeds idle workers from the
// execution pool, aggregates progress and exposes whole-batch
// cancellation. All worker messages funnel through a single event loop;
// callers interact through Submit, Cancel and the read-only accessors.
type Scheduler struct {
	mu         sync.RWMutex
	capWorkers int
	events     chan event
	stop       chan struct{}
	closeOnce  sync.Once

	// batch state, all guarded by mu
	pool     *pool.Pool
	epoch    uint64
	running  bool
	batchID  string
	opts     *models.Options
	items    map[string]*models.Item
	order    []string
	queue    []string
	sources  map[string]models.Submission
	assigned map[string]*pool.Worker
	total    int
	done     chan struct{}
	subs     []Listener

	readSource func(models.Submission) ([]byte, error)
}

// NewScheduler creates a scheduler whose execution pool holds capWorkers
// workers per batch, and starts its event loop.
func NewScheduler(capWorkers int) *Scheduler {
	if capWorkers < 1 {
		capWorkers = 1
	}
	done := make(chan struct{})
	close(done) // no batch yet; Wait returns immediately
	s := &Scheduler{
		capWorkers: capWorkers,
		events:     make(chan event, 256),
		stop:       make(chan struct{}),
		items:      make(map[string]*models.Item),
		done:       done,
		readSource: readSubmission,
	}
	go s.loop()
	return s
}

func readSubmission(sub models.Submission) ([]byte, error) {
	if sub.Data != nil {
		return sub.Data, nil
	}
	data, err := os.ReadFile(sub.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read source %s: %w", sub.Path, err)
	}
	return data, nil
}

// Subscribe registers a listener for status updates. Listeners are
// invoked outside the scheduler's lock, in registration order.
func (s *Scheduler) Subscribe(fn Listener) {
	s.mu.Lock()
	s.subs = append(s.subs, fn)
	s.mu.Unlock()
}

// Submit starts a new batch over the given items with one shared options
// record. Items whose id already completed in the previous batch are
// filtered out. Returns ErrEmptyBatch or ErrBatchRunning synchronously;
// everything else is reported through the status stream.
func (s *Scheduler) Submit(subs []models.Submission, opts *models.Options) error {
	if len(subs) == 0 {
		return ErrEmptyBatch
	}
	transform.RegisterDefaults()

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrBatchRunning
	}

	// Shared by every item in the batch: normalized exactly once.
	shared := *opts
	shared.Normalize()

	completed := make(map[string]bool, len(s.items))
	for id, it := range s.items {
		if it.Status == models.StatusComplete {
			completed[id] = true
		}
	}

	items := make(map[string]*models.Item)
	sources := make(map[string]models.Submission)
	var order, queue []string
	for _, sub := range subs {
		if completed[sub.ID] || items[sub.ID] != nil {
			continue
		}
		items[sub.ID] = &models.Item{
			ID:     sub.ID,
			Name:   sub.Name,
			Status: models.StatusQueued,
		}
		sources[sub.ID] = sub
		order = append(order, sub.ID)
		queue = append(queue, sub.ID)
	}

	if len(order) == 0 {
		// Everything already done; the batch is trivially complete.
		s.mu.Unlock()
		return nil
	}

	if s.pool != nil {
		s.pool.TerminateAll()
	}
	s.pool = pool.New(s.capWorkers)
	s.epoch++
	s.batchID = uuid.NewString()
	s.opts = &shared
	s.items = items
	s.order = order
	s.queue = queue
	s.sources = sources
	s.assigned = make(map[string]*pool.Worker)
	s.total = len(order)
	s.running = true
	s.done = make(chan struct{})

	logger.Infof("batch %s: submitted %d items (format=%s quality=%d workers=%d)",
		s.batchID, s.total, shared.Format, shared.Quality, s.capWorkers)

	updates := s.fillLocked()
	s.notifyLocked(updates)
	return nil
}

// fillLocked assigns queued items to idle workers, FIFO, until the queue
// drains or the pool saturates. Caller holds s.mu.
func (s *Scheduler) fillLocked() []models.ItemUpdate {
	var updates []models.ItemUpdate
	for len(s.queue) > 0 {
		id := s.queue[0]
		w := s.pool.AcquireIdle(id)
		if w == nil {
			break
		}
		s.queue = s.queue[1:]

		item := s.items[id]
		item.Status = models.StatusProcessing
		item.StartedAt = time.Now()
		s.assigned[id] = w
		updates = append(updates, models.ItemUpdate{ID: id, Progress: item.Progress, Status: item.Status})

		// Source bytes are read before handoff; the read is async and
		// its completion is discarded if the epoch moved on.
		go s.readItem(s.epoch, s.sources[id])
	}
	return updates
}

func (s *Scheduler) readItem(epoch uint64, sub models.Submission) {
	data, err := s.readSource(sub)
	s.send(readDoneEvent{epoch: epoch, id: sub.ID, data: data, err: err})
}

func (s *Scheduler) send(ev event) {
	select {
	case s.events <- ev:
	case <-s.stop:
	}
}

func (s *Scheduler) loop() {
	for {
		select {
		case <-s.stop:
			return
		case ev := <-s.events:
			s.handle(ev)
		}
	}
}

func (s *Scheduler) handle(ev event) {
	switch e := ev.(type) {
	case readDoneEvent:
		s.handleReadDone(e)
	case progressEvent:
		s.handleProgress(e)
	case completeEvent:
		s.handleComplete(e)
	case errorEvent:
		s.handleError(e)
	}
}

func (s *Scheduler) handleReadDone(e readDoneEvent) {
	s.mu.Lock()
	if e.epoch != s.epoch || !s.running {
		s.mu.Unlock()
		return
	}
	item := s.items[e.id]
	w := s.assigned[e.id]
	if item == nil || w == nil || item.Status.Terminal() {
		s.mu.Unlock()
		return
	}

	if e.err != nil {
		updates := s.finishLocked(item, models.StatusError, e.err.Error())
		s.notifyLocked(updates)
		return
	}

	item.Progress = 10
	updates := []models.ItemUpdate{{ID: e.id, Progress: 10, Status: item.Status}}

	epoch, id, data, opts := s.epoch, e.id, e.data, s.opts
	w.Dispatch(func(ctx context.Context) {
		res, err := runTransform(ctx, data, opts, func(p int) {
			s.send(progressEvent{epoch: epoch, id: id, progress: p})
		})
		if err != nil {
			s.send(errorEvent{epoch: epoch, id: id, message: err.Error()})
			return
		}
		s.send(completeEvent{epoch: epoch, id: id, result: res})
	})
	s.notifyLocked(updates)
}

func (s *Scheduler) handleProgress(e progressEvent) {
	s.mu.Lock()
	item := s.items[e.id]
	if e.epoch != s.epoch || !s.running || item == nil || item.Status.Terminal() {
		s.mu.Unlock()
		return
	}
	p := e.progress
	if p < 0 {
		p = 0
	}
	if p > 100 {
		p = 100
	}
	item.Progress = p
	s.notifyLocked([]models.ItemUpdate{{ID: e.id, Progress: p, Status: item.Status}})
}

func (s *Scheduler) handleComplete(e completeEvent) {
	s.mu.Lock()
	item := s.items[e.id]
	if e.epoch != s.epoch || !s.running || item == nil || item.Status.Terminal() {
		s.mu.Unlock()
		return
	}
	item.Result = e.result
	updates := s.finishLocked(item, models.StatusComplete, "")
	s.notifyLocked(updates)
}

func (s *Scheduler) handleError(e errorEvent) {
	s.mu.Lock()
	item := s.items[e.id]
	if e.epoch != s.epoch || !s.running || item == nil || item.Status.Terminal() {
		s.mu.Unlock()
		return
	}
	logger.Warnf("batch %s: item %s failed: %s", s.batchID, e.id, e.message)
	updates := s.finishLocked(item, models.StatusError, e.message)
	s.notifyLocked(updates)
}

// finishLocked moves an item to a terminal state, releases its worker,
// assigns the next queued item to the now-idle worker, and checks batch
// completion. Caller holds s.mu.
func (s *Scheduler) finishLocked(item *models.Item, status models.ItemStatus, errMsg string) []models.ItemUpdate {
	item.Status = status
	item.Err = errMsg
	item.EndedAt = time.Now()
	if status == models.StatusComplete {
		item.Progress = 100
	}

	if w := s.assigned[item.ID]; w != nil {
		delete(s.assigned, item.ID)
		s.pool.Release(w)
	}

	updates := []models.ItemUpdate{{ID: item.ID, Progress: item.Progress, Status: status}}
	updates = append(updates, s.fillLocked()...)

	if len(s.queue) == 0 && s.pool.BusyCount() == 0 {
		s.running = false
		close(s.done)
		logger.Infof("batch %s: %s", s.batchID, s.summaryLocked())
	}
	return updates
}

// Cancel aborts the current batch: the pending queue is emptied, every
// worker is force-terminated, and in-flight results are discarded.
// Queued and processing items end in the cancelled state. Idempotent;
// a no-op when no batch is running.
func (s *Scheduler) Cancel() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}

	s.epoch++ // invalidates every in-flight read and worker message
	s.running = false
	s.queue = nil

	var updates []models.ItemUpdate
	for _, id := range s.order {
		item := s.items[id]
		if item.Status.Terminal() {
			continue
		}
		item.Status = models.StatusCancelled
		item.EndedAt = time.Now()
		updates = append(updates, models.ItemUpdate{ID: id, Progress: item.Progress, Status: item.Status})
	}
	s.assigned = make(map[string]*pool.Worker)
	s.pool.TerminateAll()
	close(s.done)
	logger.Infof("batch %s: cancelled", s.batchID)
	s.notifyLocked(updates)
}

// Close cancels any running batch, terminates the worker pool and stops
// the event loop. Cancel alone skips the pool when the batch already
// finished, so the workers are torn down here unconditionally.
func (s *Scheduler) Close() {
	s.Cancel()
	s.mu.Lock()
	if s.pool != nil {
		s.pool.TerminateAll()
	}
	s.mu.Unlock()
	s.closeOnce.Do(func() { close(s.stop) })
}

// Wait blocks until the current batch completes or is cancelled.
func (s *Scheduler) Wait() {
	s.mu.RLock()
	done := s.done
	s.mu.RUnlock()
	<-done
}

// Running reports whether a batch is in flight.
func (s *Scheduler) Running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Snapshot returns the per-item state in submission order plus the
// batch-level progress signal.
func (s *Scheduler) Snapshot() ([]models.Item, models.BatchUpdate) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]models.Item, 0, len(s.order))
	for _, id := range s.order {
		items = append(items, *s.items[id])
	}
	return items, s.batchUpdateLocked()
}

// Results returns the final Result per completed item id.
func (s *Scheduler) Results() map[string]*models.Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]*models.Result)
	for id, item := range s.items {
		if item.Result != nil {
			out[id] = item.Result
		}
	}
	return out
}

// Summary reports the batch outcome counts.
func (s *Scheduler) Summary() models.Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.summaryLocked()
}

func (s *Scheduler) summaryLocked() models.Summary {
	sum := models.Summary{Total: s.total}
	for _, item := range s.items {
		switch item.Status {
		case models.StatusComplete:
			sum.Succeeded++
		case models.StatusError:
			sum.Failed++
		case models.StatusCancelled:
			sum.Cancelled++
		}
	}
	return sum
}

// batchUpdateLocked recomputes the overall progress from the per-item
// values; the per-item records are the single source of truth.
func (s *Scheduler) batchUpdateLocked() models.BatchUpdate {
	b := models.BatchUpdate{Total: s.total}
	if s.total == 0 {
		return b
	}
	sum := 0
	for _, id := range s.order {
		item := s.items[id]
		sum += item.Progress
		if item.Status == models.StatusComplete {
			b.Completed++
		}
	}
	b.Overall = int(math.Round(float64(sum) / float64(s.total)))
	return b
}

// notifyLocked releases s.mu and delivers updates to the listeners.
// Always called as the final statement of a locked section.
func (s *Scheduler) notifyLocked(updates []models.ItemUpdate) {
	subs := make([]Listener, len(s.subs))
	copy(subs, s.subs)
	b := s.batchUpdateLocked()
	s.mu.Unlock()

	for _, u := range updates {
		for _, fn := range subs {
			fn(u, b)
		}
	}
}
