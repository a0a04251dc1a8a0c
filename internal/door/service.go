package door

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nerrad567/doorkeeper-core/internal/audit"
	"github.com/nerrad567/doorkeeper-core/internal/auth"
)

// UserLookup resolves the acting user from their token email.
type UserLookup interface {
	GetByEmail(ctx context.Context, email string) (*auth.User, error)
}

// Notifier schedules a push message to every registered device.
type Notifier interface {
	Go(message string)
}

// Listener is informed of each completed transition. Listeners run after
// the toggle lock is released and must not block for long.
type Listener func(Transition)

// Deps holds the collaborators of a Service.
type Deps struct {
	Repo     Repository
	Users    UserLookup
	Actuator Actuator
	Audit    audit.Repository
	Notifier Notifier
	Logger   *slog.Logger
}

// Service performs door toggles.
type Service struct {
	repo     Repository
	users    UserLookup
	actuator Actuator
	audit    audit.Repository
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time

	mu sync.Mutex // serialises toggles

	listenersMu sync.RWMutex
	listeners   []Listener
}

// NewService creates a door service. Repo and Users are required; a nil
// actuator is replaced by NopActuator.
func NewService(deps Deps) *Service {
	s := &Service{
		repo:     deps.Repo,
		users:    deps.Users,
		actuator: deps.Actuator,
		audit:    deps.Audit,
		notifier: deps.Notifier,
		logger:   deps.Logger,
		now:      time.Now,
	}
	if s.actuator == nil {
		s.actuator = NopActuator{}
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	return s
}

// OnChange registers a listener for completed transitions.
func (s *Service) OnChange(fn Listener) {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Ensure creates the door row in the open state if it is missing.
func (s *Service) Ensure(ctx context.Context) error {
	created, err := s.repo.Ensure(ctx)
	if err != nil {
		return err
	}
	if created {
		s.logger.Info("door created", "state", Open)
	}
	return nil
}

// State returns the persisted door state.
func (s *Service) State(ctx context.Context) (State, error) {
	return s.repo.Get(ctx)
}

// Toggle flips the door on behalf of the token holder.
//
// Returns auth.ErrUserNotFound if the caller no longer exists, ErrActuator
// if the servo rejected the command, and ErrPersistence (wrapping
// ErrConflict for a lost compare-and-swap) if the new state could not be
// stored. On ErrPersistence the servo has been driven back.
func (s *Service) Toggle(ctx context.Context, claims *auth.Claims) (Transition, error) {
	if claims == nil {
		return Transition{}, auth.ErrTokenInvalid
	}

	user, err := s.users.GetByEmail(ctx, claims.Email)
	if err != nil {
		return Transition{}, err
	}

	t, err := s.toggleLocked(ctx, user)
	if err != nil {
		return Transition{}, err
	}

	s.emit(t)
	if s.notifier != nil {
		s.notifier.Go(t.Message())
	}
	return t, nil
}

func (s *Service) toggleLocked(ctx context.Context, user *auth.User) (Transition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, err := s.repo.Get(ctx)
	if err != nil {
		return Transition{}, err
	}
	next, verb := Toggle(prev)

	if err := s.actuator.Drive(ctx, next); err != nil {
		s.logger.Error("driving door failed", "target", next, "error", err)
		return Transition{}, fmt.Errorf("%w: %w", ErrActuator, err)
	}

	if err := s.repo.CompareAndSwap(ctx, prev, next); err != nil {
		s.revert(prev)
		s.logger.Error("persisting door state failed",
			"previous", prev,
			"target", next,
			"error", err,
		)
		return Transition{}, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	t := Transition{
		Previous:  prev,
		State:     next,
		Verb:      verb,
		Actor:     user.Email,
		ActorName: user.Name,
		At:        s.now().UTC(),
	}

	if s.audit != nil {
		entry := audit.Entry{Email: user.Email, Timestamp: t.At, PreviousState: string(prev)}
		if err := s.audit.Append(ctx, entry); err != nil {
			s.logger.Warn("audit append failed", "email", user.Email, "error", err)
		}
	}

	s.logger.Info("door toggled",
		"previous", prev,
		"state", next,
		"email", user.Email,
	)
	return t, nil
}

// revert drives the servo back after a failed write. The request context
// may already be cancelled, so a fresh one is used.
func (s *Service) revert(prev State) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.actuator.Drive(ctx, prev); err != nil {
		s.logger.Error("reverting door failed", "target", prev, "error", err)
	}
}

func (s *Service) emit(t Transition) {
	s.listenersMu.RLock()
	listeners := append([]Listener(nil), s.listeners...)
	s.listenersMu.RUnlock()

	for _, fn := range listeners {
		func() {
			defer func() {
				if r := recover(); r != nil {
					s.logger.Error("door listener panicked", "panic", r)
				}
			}()
			fn(t)
		}()
	}
}
