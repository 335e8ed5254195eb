package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "github.com/Kamal-Moha/blnk-Ledger-Test/internal/domain"

// TransactionService handles creation and resolution of transactions.
// It coordinates locks, the ledger store, the inflight registry and the
// transaction repository so that every operation is atomic.
type TransactionService struct {
	store     LedgerStore
	registry  InflightRegistry
	txnRepo   TransactionRepository
	txManager TransactionManager
	locker    Locker
	// Optional event publisher; nil disables lifecycle events
	eventPublisher EventPublisher
	logger         *zap.Logger
	tracer         trace.Tracer
	now            func() time.Time
}

// NewTransactionService creates a new instance of TransactionService.
// Pass nil for eventPublisher if no events should be emitted.
func NewTransactionService(
	store LedgerStore,
	registry InflightRegistry,
	txnRepo TransactionRepository,
	txManager TransactionManager,
	locker Locker,
	eventPublisher EventPublisher,
	logger *zap.Logger,
) *TransactionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TransactionService{
		store:          store,
		registry:       registry,
		txnRepo:        txnRepo,
		txManager:      txManager,
		locker:         locker,
		eventPublisher: eventPublisher,
		logger:         logger,
		tracer:         otel.Tracer(tracerName),
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// Create records a new transaction.
//
// The operation is idempotent on req.Reference: a replay returns the stored
// transaction and created=false without touching any balance.
//
// Otherwise, within one unit of work:
// 1. Open both balances in a deterministic order
// 2. Inflight: reserve the amount on the source and register the reservation
// 3. Not inflight: post the amount from source to destination
// 4. Create the transaction record
func (s *TransactionService) Create(ctx context.Context, req CreateTransactionRequest) (txn *Transaction, created bool, err error) {
	ctx, span := s.tracer.Start(ctx, "TransactionService.Create",
		trace.WithAttributes(
			attribute.String("ledger.reference", req.Reference),
			attribute.Bool("ledger.inflight", req.Inflight),
		))
	defer func() {
		endSpan(span, err)
	}()

	if err := ValidateCreateRequest(req); err != nil {
		return nil, false, err
	}

	err = s.locker.WithLock(ctx, referenceLockKey(req.Reference), func(ctx context.Context) error {
		existing, err := s.txnRepo.GetByReference(ctx, req.Reference)
		if err != nil {
			return fmt.Errorf("failed to check idempotency: %w", err)
		}
		if existing != nil {
			txn = existing
			return nil
		}

		keys := balanceLockKeys(req.Source, req.Destination, req.Currency)
		err = withLocks(ctx, s.locker, keys, func(ctx context.Context) error {
			return s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
				t := NewTransaction(req, s.now())
				if err := s.apply(txCtx, t); err != nil {
					return err
				}
				if err := s.txnRepo.Create(txCtx, t); err != nil {
					return fmt.Errorf("failed to create transaction record: %w", err)
				}
				txn = t
				created = true
				return nil
			})
		})
		if !errors.Is(err, ErrDuplicateReference) {
			return err
		}

		// another instance stored the reference after our lookup; the unit
		// of work rolled back, so answer with its transaction
		stored, getErr := s.txnRepo.GetByReference(ctx, req.Reference)
		if getErr != nil {
			return fmt.Errorf("failed to reload transaction %s: %w", req.Reference, getErr)
		}
		if stored == nil {
			return err
		}
		txn = stored
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	span.SetAttributes(attribute.String("ledger.transaction_id", txn.ID))
	if created {
		s.logger.Info("transaction created",
			zap.String("transaction_id", txn.ID),
			zap.String("reference", txn.Reference),
			zap.String("status", string(txn.Status)),
		)
		s.publish(txn)
	} else {
		s.logger.Debug("idempotent replay", zap.String("reference", req.Reference), zap.String("transaction_id", txn.ID))
	}
	return txn, created, nil
}

// apply performs the ledger side of a new transaction inside a unit of work.
func (s *TransactionService) apply(ctx context.Context, t *Transaction) error {
	first, second := sortedAccounts(t.Source, t.Destination)
	for _, account := range []string{first, second} {
		if _, err := s.store.OpenBalance(ctx, account, t.Currency, t.Precision); err != nil {
			return fmt.Errorf("failed to open balance %s: %w", account, err)
		}
	}

	if !t.Inflight {
		if err := s.store.Post(ctx, t.Posting()); err != nil {
			return fmt.Errorf("failed to post transaction: %w", err)
		}
		return nil
	}

	if _, err := s.store.Reserve(ctx, t.Source, t.Currency, t.Amount, t.Precision, t.AllowOverdraft); err != nil {
		return fmt.Errorf("failed to reserve funds: %w", err)
	}
	if err := s.registry.Insert(ctx, t.Reservation()); err != nil {
		return fmt.Errorf("failed to register reservation: %w", err)
	}
	return nil
}

// Resolve commits or voids a pending transaction. Exactly one of any number
// of concurrent calls for the same id succeeds; the rest observe a resolved
// transaction and fail with an InvalidStateError.
func (s *TransactionService) Resolve(ctx context.Context, id string, decision Decision) (txn *Transaction, err error) {
	ctx, span := s.tracer.Start(ctx, "TransactionService.Resolve",
		trace.WithAttributes(
			attribute.String("ledger.transaction_id", id),
			attribute.String("ledger.decision", decision.String()),
		))
	defer func() {
		endSpan(span, err)
	}()

	if id == "" {
		return nil, NewValidationError("transaction_id", "is required")
	}
	if decision.IsZero() {
		return nil, NewValidationError("status", "must be one of commit, void")
	}

	err = s.locker.WithLock(ctx, transactionLockKey(id), func(ctx context.Context) error {
		current, err := s.txnRepo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if _, _, err := Transition(id, current.Status, decision); err != nil {
			return err
		}

		keys := balanceLockKeys(current.Source, current.Destination, current.Currency)
		return withLocks(ctx, s.locker, keys, func(ctx context.Context) error {
			return s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
				t, err := s.resolve(txCtx, id, decision)
				if err != nil {
					return err
				}
				txn = t
				return nil
			})
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("transaction resolved",
		zap.String("transaction_id", txn.ID),
		zap.String("decision", decision.String()),
		zap.String("status", string(txn.Status)),
	)
	s.publish(txn)
	return txn, nil
}

func (s *TransactionService) resolve(ctx context.Context, id string, decision Decision) (*Transaction, error) {
	t, err := s.txnRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	next, effect, err := Transition(id, t.Status, decision)
	if err != nil {
		return nil, err
	}

	reservation, err := s.registry.Remove(ctx, id)
	if err != nil {
		if errors.Is(err, ErrReservationNotFound) {
			s.logger.Error("pending transaction has no reservation", zap.String("transaction_id", id))
			return nil, &InvalidStateError{TransactionID: id, Status: t.Status}
		}
		return nil, fmt.Errorf("failed to remove reservation: %w", err)
	}

	if _, err := s.store.Release(ctx, reservation.Account, reservation.Currency, reservation.Amount); err != nil {
		return nil, fmt.Errorf("failed to release reservation: %w", err)
	}

	if effect == EffectPost {
		p := t.Posting()
		p.Amount = reservation.Amount
		// funds were checked when the reservation was placed
		p.AllowOverdraft = true
		if err := s.store.Post(ctx, p); err != nil {
			return nil, fmt.Errorf("failed to post transaction: %w", err)
		}
	}

	now := s.now()
	if err := s.txnRepo.UpdateStatus(ctx, id, StatusPending, next, now); err != nil {
		return nil, fmt.Errorf("failed to update transaction status: %w", err)
	}
	t.markResolved(next, now)
	return t, nil
}

// GetTransaction retrieves a transaction by id.
func (s *TransactionService) GetTransaction(ctx context.Context, id string) (*Transaction, error) {
	if id == "" {
		return nil, NewValidationError("transaction_id", "is required")
	}
	return s.txnRepo.GetByID(ctx, id)
}

// GetBalance retrieves the balance of account in currency.
func (s *TransactionService) GetBalance(ctx context.Context, account, currency string) (*Balance, error) {
	if err := ValidateAccount("account", account); err != nil {
		return nil, err
	}
	if err := ValidateCurrencyCode(currency); err != nil {
		return nil, err
	}
	return s.store.GetBalance(ctx, account, currency)
}

// ListReservations returns the open reservations held against a balance.
func (s *TransactionService) ListReservations(ctx context.Context, account, currency string) ([]*Reservation, error) {
	if err := ValidateAccount("account", account); err != nil {
		return nil, err
	}
	if err := ValidateCurrencyCode(currency); err != nil {
		return nil, err
	}
	return s.registry.ListByAccount(ctx, account, currency)
}

// Ping reports whether the ledger store is reachable.
func (s *TransactionService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// publish emits a lifecycle event after the unit of work committed.
// Publishing is best effort: the transaction is already durable, so a
// broker failure is logged and not returned.
func (s *TransactionService) publish(txn *Transaction) {
	if s.eventPublisher == nil {
		return
	}
	go func(t *Transaction) {
		if err := s.eventPublisher.PublishTransactionEvent(context.Background(), t); err != nil {
			s.logger.Warn("failed to publish transaction event",
				zap.String("transaction_id", t.ID),
				zap.String("status", string(t.Status)),
				zap.Error(err),
			)
		}
	}(txn.Clone())
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
	}
	span.End()
}
