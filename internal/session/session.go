// Package session owns one coordinator per session and tracks turn-scoped
// injection budgets. Budget values are policy supplied by configuration; the
// session only counts and reports.
package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kingrea/loom/internal/coordinator"
	"github.com/kingrea/loom/internal/hook"
	"github.com/kingrea/loom/internal/module"
	"github.com/kingrea/loom/internal/plan"
)

// ErrInjectionSizeExceeded is wrapped by RecordInjection when a single
// injected unit exceeds the hard size limit.
var ErrInjectionSizeExceeded = errors.New("injected content exceeds size limit")

// Logger records session diagnostics. It matches logging.Logger's signature.
type Logger interface {
	Printf(format string, args ...any)
}

// Config carries session identity and policy values.
type Config struct {
	ID       string
	ParentID string

	// InjectionSizeLimit caps one injected unit (hard limit, 0 = unset).
	InjectionSizeLimit int
	// InjectionBudgetPerTurn caps cumulative injection per turn (soft limit:
	// exceeding it is logged as a warning but never blocks, 0 = unset).
	InjectionBudgetPerTurn int

	// ApprovalTimeout bounds approval capability invocations.
	ApprovalTimeout time.Duration
	// ApprovalTimeoutContinue makes a timed-out approval resolve to continue
	// instead of the deny default.
	ApprovalTimeoutContinue bool

	// Settings is opaque configuration context handed through to modules.
	Settings module.Config
}

// Session is the top-level owner of one coordinator. Its lifetime strictly
// bounds the coordinator's.
type Session struct {
	id       string
	parentID string
	settings module.Config
	coord    *coordinator.Coordinator
	logger   Logger

	mu           sync.Mutex
	turn         int
	turnInjected int
	sizeLimit    int
	turnBudget   int
	closed       bool
}

// New constructs a session and its coordinator. A missing ID is generated.
func New(cfg Config, logger Logger) *Session {
	id := cfg.ID
	if id == "" {
		id = uuid.NewString()
	}
	s := &Session{
		id:         id,
		parentID:   cfg.ParentID,
		settings:   cfg.Settings,
		logger:     logger,
		sizeLimit:  cfg.InjectionSizeLimit,
		turnBudget: cfg.InjectionBudgetPerTurn,
	}
	opts := []coordinator.Option{
		coordinator.WithLogger(logger),
		coordinator.WithBudget(s),
		coordinator.WithApprovalTimeout(cfg.ApprovalTimeout),
	}
	if cfg.ApprovalTimeoutContinue {
		opts = append(opts, coordinator.WithApprovalTimeoutAction(hook.KindContinue))
	}
	s.coord = coordinator.New(id, cfg.ParentID, opts...)
	s.coord.Emit("session:start", map[string]any{"settings": len(cfg.Settings)})
	return s
}

// NewFromPlan constructs a session, mounts the resolver (when it is itself a
// module), and applies the mount plan. Individual module failures are
// collected and reported together; the session is still returned so the
// modules that did load remain usable.
func NewFromPlan(p plan.Plan, resolver module.SourceResolver, cfg Config, logger Logger) (*Session, error) {
	if cfg.InjectionSizeLimit == 0 {
		cfg.InjectionSizeLimit = p.Session.InjectionSizeLimit
	}
	if cfg.InjectionBudgetPerTurn == 0 {
		cfg.InjectionBudgetPerTurn = p.Session.InjectionBudgetPerTurn
	}
	s := New(cfg, logger)
	err := s.ApplyPlan(p, resolver)
	return s, err
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// ParentID returns the parent session identifier, empty for top-level sessions.
func (s *Session) ParentID() string {
	return s.parentID
}

// Setting returns one opaque configuration value.
func (s *Session) Setting(key string) (any, bool) {
	value, ok := s.settings[key]
	return value, ok
}

// Coordinator exposes the session's coordinator facade.
func (s *Session) Coordinator() *coordinator.Coordinator {
	return s.coord
}

// ApplyPlan resolves and mounts every module the plan declares. A resolver
// that is itself a module is mounted first at module-source-resolver so other
// modules can discover it. Failures do not abort the batch; they are joined
// into the returned error.
func (s *Session) ApplyPlan(p plan.Plan, resolver module.SourceResolver) error {
	if resolver == nil {
		return fmt.Errorf("session: a source resolver is required to apply a plan")
	}
	var errs []error
	if m, ok := resolver.(module.Module); ok {
		if mounted := s.coord.Mounted(module.MountResolver); len(mounted) == 0 {
			if err := s.coord.Mount(m, ""); err != nil {
				return fmt.Errorf("session: mount resolver: %w", err)
			}
		}
	}
	for _, desc := range p.Descriptors() {
		m, err := resolver.Resolve(desc)
		if err != nil {
			errs = append(errs, fmt.Errorf("session: resolve %s: %w", desc.ID, err))
			continue
		}
		if err := s.coord.Mount(m, ""); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// BeginTurn resets turn-scoped counters and announces the new turn.
func (s *Session) BeginTurn() int {
	s.mu.Lock()
	s.turn++
	s.turnInjected = 0
	turn := s.turn
	s.mu.Unlock()
	s.coord.Emit("turn:start", map[string]any{"turn": turn})
	return turn
}

// Turn returns the current turn number, zero before the first BeginTurn.
func (s *Session) Turn() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.turn
}

// InjectedThisTurn returns the cumulative injected size for the current turn.
func (s *Session) InjectedThisTurn() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.turnInjected
}

// RecordInjection counts one injected content unit. Exceeding the per-unit
// size limit fails hard with the observed size and the limit. Exceeding the
// per-turn budget is warn-only: the injection proceeds and the overrun is
// logged. The asymmetry is deliberate; the budget is advisory.
func (s *Session) RecordInjection(source string, size int) error {
	if size < 0 {
		return fmt.Errorf("session: injection size from %s is negative (%d)", source, size)
	}
	s.mu.Lock()
	if s.sizeLimit > 0 && size > s.sizeLimit {
		limit := s.sizeLimit
		s.mu.Unlock()
		return fmt.Errorf("session: %w: %s injected %d bytes, limit is %d; split the content or raise injection_size_limit", ErrInjectionSizeExceeded, source, size, limit)
	}
	s.turnInjected += size
	total, budget, turn := s.turnInjected, s.turnBudget, s.turn
	s.mu.Unlock()
	if budget > 0 && total > budget {
		s.logf("session: warning: turn %d injection budget exceeded by %s: %d of %d bytes used", turn, source, total, budget)
	}
	return nil
}

// Close tears the session down: announces the end, then unmounts every
// module in reverse mount order. Close is idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	turn := s.turn
	s.mu.Unlock()
	s.coord.Emit("session:end", map[string]any{"turns": turn})
	s.coord.UnmountAll()
	return nil
}

func (s *Session) logf(format string, args ...any) {
	if s.logger != nil {
		s.logger.Printf(format, args...)
	}
}
