// Package banking implements the operations offered to customers, employees,
// managers and administrators on top of the bank repositories.
//
// Every operation that writes more than one record runs inside a journal
// operation. Balance changes always go through AccountRepository.Modify, so
// the read, the check and the write of a balance happen under one record
// lock. A transfer never holds two account locks at the same time: it debits,
// then credits, and relies on the journal to undo the debit when the credit
// fails. Undo moves a balance back by the amount the operation changed it,
// so concurrent deposits to the same account survive a rollback.
package banking

import (
	"context"
	"time"

	"github.com/marmos91/bankd/internal/logger"
	"github.com/marmos91/bankd/internal/telemetry"
	"github.com/marmos91/bankd/pkg/events"
	"github.com/marmos91/bankd/pkg/models"
	"github.com/marmos91/bankd/pkg/repository"
	"github.com/marmos91/bankd/pkg/store/errors"
	"github.com/marmos91/bankd/pkg/store/journal"
)

// Metrics observes banking operations. A nil Metrics disables collection.
type Metrics interface {
	// ObserveOperation records one operation and its outcome
	// ("ok", "rejected" or "error").
	ObserveOperation(operation string, duration time.Duration, outcome string)

	// AddVolume adds a committed money movement.
	AddVolume(operation string, amount models.Money)
}

// Service is the bank's business layer. It is safe for concurrent use.
type Service struct {
	store      *repository.Store
	journal    *journal.Journal
	publisher  events.Publisher
	metrics    Metrics
	bcryptCost int
}

// Option configures a Service.
type Option func(*Service)

// WithPublisher sends committed operations to p.
func WithPublisher(p events.Publisher) Option {
	return func(s *Service) {
		if p != nil {
			s.publisher = p
		}
	}
}

// WithMetrics records operation metrics.
func WithMetrics(m Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithBcryptCost sets the cost used for new password hashes.
func WithBcryptCost(cost int) Option {
	return func(s *Service) {
		s.bcryptCost = cost
	}
}

// New creates a service over store. A nil journal disables durable
// journaling; runtime rollback of failed multi-record operations still works.
func New(store *repository.Store, j *journal.Journal, opts ...Option) *Service {
	if j == nil {
		j = journal.New(nil, store.RawTables()...)
	}
	s := &Service{
		store:      store,
		journal:    j,
		publisher:  events.NopPublisher{},
		bcryptCost: models.DefaultBcryptCost,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store returns the underlying repositories.
func (s *Service) Store() *repository.Store {
	return s.store
}

// journaled runs fn against repositories bound to a new journal operation.
// A failing fn rolls back every write it made.
func (s *Service) journaled(ctx context.Context, operation string, fn func(repository.Journaled) error) (string, error) {
	op, err := s.journal.Begin(ctx, operation)
	if err != nil {
		return "", err
	}

	if err := fn(s.store.WithRecorder(op)); err != nil {
		if rbErr := op.Rollback(ctx); rbErr != nil {
			return op.ID(), rbErr
		}
		return op.ID(), err
	}

	if err := op.Commit(); err != nil {
		return op.ID(), err
	}
	return op.ID(), nil
}

// publish delivers e. Failures are logged and otherwise ignored.
func (s *Service) publish(ctx context.Context, e events.Event) {
	if err := s.publisher.Publish(ctx, e); err != nil {
		logger.WarnCtx(ctx, "Failed to publish event",
			"event_type", string(e.Type), logger.KeyOpID, e.OpID, logger.KeyError, err)
	}
}

// observe finishes an operation: metrics, span status and, for real
// failures, a log line.
func (s *Service) observe(ctx context.Context, operation string, start time.Time, err error) {
	result := outcome(err)
	if s.metrics != nil {
		s.metrics.ObserveOperation(operation, time.Since(start), result)
	}
	if result == "error" {
		telemetry.RecordError(ctx, err)
		logger.WarnCtx(ctx, "Banking operation failed",
			logger.KeyOperation, operation,
			logger.KeyErrorCode, errors.CodeOf(err).String(),
			logger.KeyError, err)
	}
}

func (s *Service) addVolume(operation string, amount models.Money) {
	if s.metrics != nil {
		s.metrics.AddVolume(operation, amount)
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case IsRejection(err), IsValidationError(err):
		return "rejected"
	default:
		return "error"
	}
}

// requireRole rejects actors whose role is not one of roles.
func requireRole(actor models.User, roles ...models.Role) error {
	for _, r := range roles {
		if actor.Role == r {
			return nil
		}
	}
	return ErrPermissionDenied
}

// notFound maps a repository NotFound to the given rejection and passes
// every other error through.
func notFound(err error, rejection error) error {
	if errors.IsNotFoundError(err) {
		return rejection
	}
	return err
}
