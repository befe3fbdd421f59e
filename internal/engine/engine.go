package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/meshweave/engine/internal/config"
	"github.com/meshweave/engine/internal/substrate"
	"github.com/meshweave/engine/pkg/api"
	"github.com/meshweave/engine/pkg/log"
)

type (
	// Engine drives one participant's side of every joined session: it
	// evaluates step readiness against merged peer progress, runs modules,
	// shares outputs, and publishes its own progress. No state is shared
	// across participant processes; the sync substrate is the only medium
	Engine struct {
		cfg      *config.Config
		sub      substrate.Interface
		syncer   substrate.Syncer
		waiter   *substrate.Waiter
		runner   ModuleRunner
		pool     *Pool
		identity api.Identity
		role     api.Role
		ctx      context.Context
		cancel   context.CancelFunc
		wg       sync.WaitGroup
		sessions sync.Map // map[api.SessionID]*sessionState
	}

	// sessionState is the engine's local record of one joined session. The
	// per-step mutexes prevent the same participant from running one step
	// twice concurrently while leaving unrelated steps fully parallel
	sessionState struct {
		session *api.Session
		mu      sync.Mutex
		pubMu   sync.Mutex
		steps   map[api.StepID]*api.StepState
		locks   map[api.StepID]*sync.Mutex
		logged  []api.ProgressEvent
	}
)

var ErrShutdownTimeout = errors.New("shutdown timeout exceeded")

// New creates an engine for the local participant over the given substrate
func New(
	cfg *config.Config, sub substrate.Interface, syncer substrate.Syncer,
	runner ModuleRunner,
) *Engine {
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		cfg:      cfg,
		sub:      sub,
		syncer:   syncer,
		waiter: substrate.NewWaiter(
			sub, syncer, cfg.SyncInterval, cfg.SyncAttempts,
		),
		runner:   runner,
		pool:     NewPool(cfg.Workers),
		identity: api.Identity(cfg.Identity),
		role:     api.Role(cfg.Role),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Identity returns the local participant identity
func (e *Engine) Identity() api.Identity {
	return e.identity
}

// Start launches the worker pool and the background poll loop that
// re-evaluates readiness and submits auto-run steps
func (e *Engine) Start() {
	slog.Info("Engine starting", log.Participant(e.identity))
	e.pool.Start(e.ctx)
	e.wg.Add(1)
	go e.pollLoop()
}

// Stop cancels pending run/share/wait tasks and shuts the engine down.
// Because artifact and manifest writes are atomic, cancellation never
// leaves a half-written object visible to peers
func (e *Engine) Stop() error {
	e.cancel()
	e.pool.Stop()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("Engine stopped", log.Participant(e.identity))
		return nil
	case <-time.After(e.cfg.ShutdownTimeout):
		return ErrShutdownTimeout
	}
}

// TriggerSync requests a replication pass from the external substrate
func (e *Engine) TriggerSync(ctx context.Context) error {
	return e.syncer.TriggerSync(ctx)
}

func (e *Engine) pollLoop() {
	defer e.wg.Done()
	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.ctx.Done():
			return
		case <-ticker.C:
			e.pollOnce()
		}
	}
}

func (e *Engine) pollOnce() {
	e.sessions.Range(func(_, value any) bool {
		ss := value.(*sessionState)
		if err := e.Evaluate(e.ctx, ss.session.ID); err != nil {
			slog.Warn("Readiness evaluation failed",
				log.SessionID(ss.session.ID),
				log.Error(err))
			return true
		}
		e.submitAutoRuns(ss)
		return true
	})
}

func (e *Engine) submitAutoRuns(ss *sessionState) {
	ss.mu.Lock()
	var ready []api.StepID
	for id, st := range ss.steps {
		step := ss.session.Spec.FindStep(id)
		if step != nil && step.AutoRun && st.Status == api.StepReady {
			ready = append(ready, id)
		}
	}
	ss.mu.Unlock()

	for _, id := range ready {
		sessionID, stepID := ss.session.ID, id
		e.pool.Submit(func(ctx context.Context) {
			if err := e.RunStep(ctx, sessionID, stepID); err != nil &&
				!errors.Is(err, ErrNotReady) &&
				!errors.Is(err, ErrStepAlreadyActive) {
				slog.Error("Auto-run failed",
					log.SessionID(sessionID),
					log.StepID(stepID),
					log.Error(err))
			}
		})
	}
}

// RunStepAsync submits a run action to the worker pool
func (e *Engine) RunStepAsync(sessionID api.SessionID, stepID api.StepID) {
	e.pool.Submit(func(ctx context.Context) {
		if err := e.RunStep(ctx, sessionID, stepID); err != nil {
			slog.Error("Step run failed",
				log.SessionID(sessionID),
				log.StepID(stepID),
				log.Error(err))
		}
	})
}

// ShareStepAsync submits a share action to the worker pool
func (e *Engine) ShareStepAsync(sessionID api.SessionID, stepID api.StepID) {
	e.pool.Submit(func(ctx context.Context) {
		if err := e.ShareStep(ctx, sessionID, stepID); err != nil {
			slog.Error("Step share failed",
				log.SessionID(sessionID),
				log.StepID(stepID),
				log.Error(err))
		}
	})
}

func (e *Engine) getSession(id api.SessionID) (*sessionState, error) {
	value, ok := e.sessions.Load(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return value.(*sessionState), nil
}

// stepLock returns the per-(session, step) mutex
func (ss *sessionState) stepLock(id api.StepID) *sync.Mutex {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	lock, ok := ss.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		ss.locks[id] = lock
	}
	return lock
}

// transition advances a step's status, enforcing the state machine, and
// appends the matching event to the progress log. Callers hold ss.mu
func (ss *sessionState) transition(
	st *api.StepState, to api.StepStatus, event string, role api.Role,
) error {
	if !stepTransitions.CanTransition(st.Status, to) {
		return fmt.Errorf(
			"%w: %s -> %s", ErrInvalidTransition, st.Status, to,
		)
	}
	now := time.Now().UTC()
	st.Advance(to, now)
	ss.logged = append(ss.logged, api.ProgressEvent{
		Event:     event,
		StepID:    st.StepID,
		Role:      role,
		Timestamp: now,
	})
	return nil
}
