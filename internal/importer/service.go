package importer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/certwise/importer/internal/config"
	"github.com/certwise/importer/internal/csvkit"
	"github.com/google/uuid"
)

// Phase indicates the current stage of an import run.
type Phase string

const (
	PhaseStarting    Phase = "starting"
	PhaseReconciling Phase = "reconciling"
	PhaseComplete    Phase = "complete"
	PhaseFailed      Phase = "failed"
	PhaseCancelled   Phase = "cancelled"
)

// Progress is a snapshot of a run's state.
type Progress struct {
	RunID      string `json:"run_id"`
	Phase      Phase  `json:"phase"`
	TotalRows  int    `json:"total_rows"`
	CurrentRow int    `json:"current_row"`
	Imported   int    `json:"imported"`
	Updated    int    `json:"updated"`
	Skipped    int    `json:"skipped"`
	Errored    int    `json:"errored"`
	Error      string `json:"error,omitempty"` // Non-empty if Phase is PhaseFailed
}

// RunResult is the terminal artifact of a completed run.
type RunResult struct {
	RunID      string        `json:"run_id"`
	Result     Result        `json:"result"`
	Outcomes   []Outcome     `json:"outcomes"`
	Candidates []Candidate   `json:"-"`
	Duration   time.Duration `json:"duration"`
	Err        string        `json:"error,omitempty"`
}

// PreviewResult is what the operator sees before committing a run:
// the parsed headers, the inferred (advisory) mapping, and every row
// normalized with it, issues attached.
type PreviewResult struct {
	Headers    []string     `json:"headers"`
	Inferred   FieldMapping `json:"inferred_mapping"`
	Candidates []Candidate  `json:"candidates"`
}

// ImportRequest describes one import invocation.
type ImportRequest struct {
	CSV string

	// Mapping overrides the inferred mapping when non-nil. The final
	// mapping must pass Validate against the file's headers.
	Mapping *FieldMapping

	// ExcludedRows lists row indexes (file line numbers, header = 1)
	// the operator opted out of.
	ExcludedRows []int
}

// Service orchestrates import runs: tokenize, map, normalize, reconcile.
// Runs execute asynchronously; progress is broadcast to subscribers and
// results stay queryable for Config.Import.CleanupAge after completion.
type Service struct {
	store   RecordStore
	cfg     *config.Config
	limiter *RunLimiter

	mu   sync.RWMutex
	runs map[string]*activeRun
}

type activeRun struct {
	ID     string
	Cancel context.CancelFunc
	Result *RunResult
	Done   chan struct{}

	// ListenerMu guards Progress, Listeners, and closed. The run
	// goroutine writes Progress while handlers read it concurrently.
	ListenerMu sync.Mutex
	Progress   Progress
	Listeners  []chan Progress
	closed     bool
}

// NewService creates a Service backed by the given record store.
func NewService(store RecordStore, cfg *config.Config) *Service {
	return &Service{
		store:   store,
		cfg:     cfg,
		limiter: NewRunLimiter(cfg.Import.MaxConcurrent, cfg.Import.MaxWaitTime),
		runs:    make(map[string]*activeRun),
	}
}

// Preview tokenizes the CSV, infers a field mapping, and normalizes
// every row with it. No store access happens; structural errors
// (empty headers, no data rows) are fatal.
func (s *Service) Preview(csvText string) (*PreviewResult, error) {
	parsed, err := csvkit.Parse(csvText)
	if err != nil {
		return nil, err
	}

	inferred := InferMapping(parsed.Headers)

	candidates := make([]Candidate, 0, len(parsed.Rows))
	for _, row := range parsed.Rows {
		candidates = append(candidates, MapRow(row, inferred))
	}

	return &PreviewResult{
		Headers:    parsed.Headers,
		Inferred:   inferred,
		Candidates: candidates,
	}, nil
}

// StartImport validates the request, acquires a run slot, and kicks off
// reconciliation in the background. It returns the run ID immediately;
// use SubscribeProgress or Result to follow the run.
//
// Structural failures (unparseable file, unmapped email, mapping that
// references unknown columns) are returned here, before any row
// processing, and produce no run.
func (s *Service) StartImport(ctx context.Context, req ImportRequest) (string, error) {
	parsed, err := csvkit.Parse(req.CSV)
	if err != nil {
		return "", err
	}

	mapping := InferMapping(parsed.Headers)
	if req.Mapping != nil {
		mapping = *req.Mapping
	}
	if err := mapping.Validate(parsed.Headers); err != nil {
		return "", err
	}

	excluded := make(map[int]bool, len(req.ExcludedRows))
	for _, idx := range req.ExcludedRows {
		excluded[idx] = true
	}

	candidates := make([]Candidate, 0, len(parsed.Rows))
	for _, row := range parsed.Rows {
		c := MapRow(row, mapping)
		c.Excluded = excluded[c.RowIndex]
		candidates = append(candidates, c)
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return "", err
	}

	runID := uuid.New().String()
	runCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Import.RunTimeout)

	run := &activeRun{
		ID:     runID,
		Cancel: cancel,
		Progress: Progress{
			RunID:     runID,
			Phase:     PhaseStarting,
			TotalRows: len(candidates),
		},
		Done: make(chan struct{}),
	}

	s.mu.Lock()
	s.runs[runID] = run
	s.mu.Unlock()

	go s.process(runCtx, run, candidates)

	return runID, nil
}

// process drives one run to completion. Runs on its own goroutine.
// Panic recovery ensures a misbehaving store cannot take the server
// down with it: the run fails, the limiter slot is released, and
// subscribers still see a terminal phase.
func (s *Service) process(ctx context.Context, run *activeRun, candidates []Candidate) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic in import run",
				"run_id", run.ID,
				"panic", r,
			)
			errMsg := fmt.Sprintf("internal error: %v", r)
			run.Result = &RunResult{
				RunID:    run.ID,
				Duration: time.Since(start),
				Err:      errMsg,
			}
			run.updateProgress(func(p *Progress) {
				p.Phase = PhaseFailed
				p.Error = errMsg
			})
			run.notifyProgress()
		}
		s.limiter.Release()
		run.closeListeners()
		close(run.Done)
		s.cleanup(run.ID, s.cfg.Import.CleanupAge)
	}()

	run.updateProgress(func(p *Progress) { p.Phase = PhaseReconciling })
	run.notifyProgress()

	outcomes, result := reconcile(ctx, candidates, s.store, func(o Outcome) {
		snapshot := run.updateProgress(func(p *Progress) {
			p.CurrentRow++
			switch o.Action {
			case ActionInserted:
				p.Imported++
			case ActionUpdated:
				p.Updated++
			case ActionSkipped:
				p.Skipped++
			case ActionErrored:
				p.Errored++
			}
		})
		if snapshot.CurrentRow%progressNotifyInterval == 0 {
			run.notifyProgress()
		}
	})

	run.Result = &RunResult{
		RunID:      run.ID,
		Result:     result,
		Outcomes:   outcomes,
		Candidates: candidates,
		Duration:   time.Since(start),
	}

	if err := ctx.Err(); err != nil {
		run.updateProgress(func(p *Progress) { p.Phase = PhaseCancelled })
		run.Result.Err = err.Error()
	} else {
		run.updateProgress(func(p *Progress) { p.Phase = PhaseComplete })
	}
	run.notifyProgress()
}

// progressNotifyInterval is how many rows pass between progress
// broadcasts. Every row would flood subscribers on large files.
var progressNotifyInterval = 25

// SubscribeProgress returns a channel that receives progress updates.
// The channel is closed when the run completes.
func (s *Service) SubscribeProgress(runID string) (<-chan Progress, error) {
	run, err := s.get(runID)
	if err != nil {
		return nil, err
	}

	ch := make(chan Progress, 10)

	run.ListenerMu.Lock()
	if run.closed {
		// Already finished: deliver the terminal snapshot and close, so
		// late subscribers don't wait on a channel nobody will signal.
		final := run.Progress
		run.ListenerMu.Unlock()
		ch <- final
		close(ch)
		return ch, nil
	}
	run.Listeners = append(run.Listeners, ch)
	// Send current progress immediately
	select {
	case ch <- run.Progress:
	default:
	}
	run.ListenerMu.Unlock()

	return ch, nil
}

// Progress returns the current run state without blocking.
func (s *Service) Progress(runID string) (Progress, error) {
	run, err := s.get(runID)
	if err != nil {
		return Progress{}, err
	}
	return run.snapshot(), nil
}

// Result returns the final result of a run, blocking until it completes.
func (s *Service) Result(runID string) (*RunResult, error) {
	run, err := s.get(runID)
	if err != nil {
		return nil, err
	}

	<-run.Done

	return run.Result, nil
}

// Cancel cancels an in-progress run. Rows already persisted stay
// persisted; the run's result reports what was attempted.
func (s *Service) Cancel(runID string) error {
	run, err := s.get(runID)
	if err != nil {
		return err
	}
	run.Cancel()
	return nil
}

// WaitForDrain blocks until all active runs complete or the context is
// cancelled. Used during graceful shutdown.
func (s *Service) WaitForDrain(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

func (s *Service) get(runID string) (*activeRun, error) {
	s.mu.RLock()
	run, ok := s.runs[runID]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("import run not found: %s", runID)
	}
	return run, nil
}

// cleanup removes a finished run from the map after age has passed, so
// results stay queryable for a while without growing forever.
func (s *Service) cleanup(runID string, age time.Duration) {
	time.AfterFunc(age, func() {
		s.mu.Lock()
		delete(s.runs, runID)
		s.mu.Unlock()
	})
}

// updateProgress applies a mutation under the lock and returns the
// resulting snapshot.
func (r *activeRun) updateProgress(fn func(*Progress)) Progress {
	r.ListenerMu.Lock()
	defer r.ListenerMu.Unlock()
	fn(&r.Progress)
	return r.Progress
}

// snapshot returns a copy of the current progress.
func (r *activeRun) snapshot() Progress {
	r.ListenerMu.Lock()
	defer r.ListenerMu.Unlock()
	return r.Progress
}

func (r *activeRun) notifyProgress() {
	r.ListenerMu.Lock()
	defer r.ListenerMu.Unlock()

	for _, ch := range r.Listeners {
		select {
		case ch <- r.Progress:
		default: // Slow listener, drop the update
		}
	}
}

func (r *activeRun) closeListeners() {
	r.ListenerMu.Lock()
	defer r.ListenerMu.Unlock()

	for _, ch := range r.Listeners {
		close(ch)
	}
	r.Listeners = nil
	r.closed = true
}
