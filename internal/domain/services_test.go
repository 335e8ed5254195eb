package domain_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kamal-Moha/blnk-Ledger-Test/internal/domain"
	"github.com/Kamal-Moha/blnk-Ledger-Test/internal/lock"
	"github.com/Kamal-Moha/blnk-Ledger-Test/internal/memory"
)

type testEnv struct {
	service  *domain.TransactionService
	store    *memory.Store
	registry *memory.Registry
	txns     *memory.TransactionRepository
}

func newTestEnv(t *testing.T, opts ...func(*envDeps)) *testEnv {
	t.Helper()

	deps := &envDeps{
		store:    memory.NewStore(),
		registry: memory.NewRegistry(),
		txns:     memory.NewTransactionRepository(),
	}
	deps.reg = deps.registry
	for _, opt := range opts {
		opt(deps)
	}

	service := domain.NewTransactionService(
		deps.store,
		deps.reg,
		deps.txns,
		memory.NewTransactionManager(),
		lock.NewLocalLocker(),
		deps.publisher,
		nil,
	)
	return &testEnv{
		service:  service,
		store:    deps.store,
		registry: deps.registry,
		txns:     deps.txns,
	}
}

type envDeps struct {
	store     *memory.Store
	registry  *memory.Registry
	reg       domain.InflightRegistry
	txns      *memory.TransactionRepository
	publisher domain.EventPublisher
}

func inflightRequest(reference, source, destination string, amount int64) domain.CreateTransactionRequest {
	return domain.CreateTransactionRequest{
		Reference:      reference,
		Source:         source,
		Destination:    destination,
		Currency:       "USD",
		Amount:         amount,
		Precision:      100,
		AllowOverdraft: true,
		Inflight:       true,
		Description:    "test",
	}
}

func (e *testEnv) balance(t *testing.T, account string) *domain.Balance {
	t.Helper()
	b, err := e.store.GetBalance(context.Background(), account, "USD")
	require.NoError(t, err)
	return b
}

func (e *testEnv) fund(t *testing.T, account string, amount int64) {
	t.Helper()
	req := inflightRequest("fund-"+account, domain.WorldAccount, account, amount)
	req.Inflight = false
	_, _, err := e.service.Create(context.Background(), req)
	require.NoError(t, err)
}

func TestCreate_InflightReservesSource(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	txn, created, err := env.service.Create(ctx, inflightRequest("r1", domain.WorldAccount, "@A", 500))
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, domain.StatusPending, txn.Status)
	assert.Contains(t, txn.ID, "txn_")
	assert.Nil(t, txn.ResolvedAt)

	world := env.balance(t, domain.WorldAccount)
	assert.Equal(t, int64(0), world.Balance)
	assert.Equal(t, int64(500), world.Inflight)
	assert.Equal(t, int64(-500), world.Available())

	dest := env.balance(t, "@A")
	assert.Equal(t, int64(0), dest.Balance)
	assert.Equal(t, int64(0), dest.Inflight)

	res, err := env.registry.Get(ctx, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.WorldAccount, res.Account)
	assert.Equal(t, int64(500), res.Amount)
}

func TestResolve_CommitThenVoid(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	txn, _, err := env.service.Create(ctx, inflightRequest("r1", domain.WorldAccount, "@A", 500))
	require.NoError(t, err)

	committed, err := env.service.Resolve(ctx, txn.ID, domain.Commit)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCommitted, committed.Status)
	require.NotNil(t, committed.ResolvedAt)

	dest := env.balance(t, "@A")
	assert.Equal(t, int64(500), dest.Balance)
	assert.Equal(t, "5.00", domain.FormatAmount(dest.Balance, dest.Precision))

	world := env.balance(t, domain.WorldAccount)
	assert.Equal(t, int64(-500), world.Balance)
	assert.Equal(t, int64(0), world.Inflight)
	assert.Equal(t, 0, env.registry.Len())

	_, err = env.service.Resolve(ctx, txn.ID, domain.Void)
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	stored, err := env.service.GetTransaction(ctx, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCommitted, stored.Status)
}

func TestResolve_Void(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.fund(t, "@A", 1000)

	req := inflightRequest("r-void", "@A", "@B", 300)
	req.AllowOverdraft = false
	txn, _, err := env.service.Create(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, int64(700), env.balance(t, "@A").Available())

	voided, err := env.service.Resolve(ctx, txn.ID, domain.Void)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusVoided, voided.Status)

	a := env.balance(t, "@A")
	assert.Equal(t, int64(1000), a.Balance)
	assert.Equal(t, int64(0), a.Inflight)
	assert.Equal(t, int64(1000), a.Available())
	assert.Equal(t, int64(0), env.balance(t, "@B").Balance)
	assert.Equal(t, 0, env.registry.Len())

	_, err = env.service.Resolve(ctx, txn.ID, domain.Commit)
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestResolve_UnknownTransaction(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.service.Resolve(context.Background(), "txn_missing", domain.Commit)
	assert.ErrorIs(t, err, domain.ErrTransactionNotFound)
}

func TestResolve_ZeroDecision(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.service.Resolve(context.Background(), "txn_1", domain.Decision{})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestResolve_AppliedTransaction(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	req := inflightRequest("r-applied", domain.WorldAccount, "@A", 100)
	req.Inflight = false
	txn, _, err := env.service.Create(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApplied, txn.Status)
	assert.Equal(t, int64(100), env.balance(t, "@A").Balance)

	_, err = env.service.Resolve(ctx, txn.ID, domain.Commit)
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestResolve_MissingReservation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	txn, _, err := env.service.Create(ctx, inflightRequest("r1", domain.WorldAccount, "@A", 500))
	require.NoError(t, err)
	_, err = env.registry.Remove(ctx, txn.ID)
	require.NoError(t, err)

	_, err = env.service.Resolve(ctx, txn.ID, domain.Commit)
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	stored, err := env.service.GetTransaction(ctx, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, stored.Status)
	assert.Equal(t, int64(0), env.balance(t, "@A").Balance)
}

func TestCreate_Idempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first, created, err := env.service.Create(ctx, inflightRequest("same-ref", domain.WorldAccount, "@A", 500))
	require.NoError(t, err)
	require.True(t, created)

	second, created, err := env.service.Create(ctx, inflightRequest("same-ref", domain.WorldAccount, "@A", 500))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	assert.Equal(t, int64(500), env.balance(t, domain.WorldAccount).Inflight)
	assert.Equal(t, 1, env.registry.Len())
}

func TestCreate_IdempotentAfterResolve(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	txn, _, err := env.service.Create(ctx, inflightRequest("ref", domain.WorldAccount, "@A", 500))
	require.NoError(t, err)
	_, err = env.service.Resolve(ctx, txn.ID, domain.Commit)
	require.NoError(t, err)

	replay, created, err := env.service.Create(ctx, inflightRequest("ref", domain.WorldAccount, "@A", 500))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, domain.StatusCommitted, replay.Status)
	assert.Equal(t, int64(500), env.balance(t, "@A").Balance)
}

func TestCreate_InsufficientFundsLeavesNoTrace(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	req := inflightRequest("r-poor", "@A", "@B", 100)
	req.AllowOverdraft = false

	_, _, err := env.service.Create(ctx, req)
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)

	existing, err := env.txns.GetByReference(ctx, "r-poor")
	require.NoError(t, err)
	assert.Nil(t, existing)
	assert.Equal(t, 0, env.registry.Len())

	_, err = env.store.GetBalance(ctx, "@A", "USD")
	assert.ErrorIs(t, err, domain.ErrBalanceNotFound)
	_, err = env.store.GetBalance(ctx, "@B", "USD")
	assert.ErrorIs(t, err, domain.ErrBalanceNotFound)
}

func TestCreate_NonInflightInsufficientFunds(t *testing.T) {
	env := newTestEnv(t)
	env.fund(t, "@A", 50)

	req := inflightRequest("r-poor", "@A", "@B", 100)
	req.AllowOverdraft = false
	req.Inflight = false

	_, _, err := env.service.Create(context.Background(), req)
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)
	assert.Equal(t, int64(50), env.balance(t, "@A").Balance)
}

func TestCreate_ReservedFundsAreUnavailable(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.fund(t, "@A", 100)

	req := inflightRequest("hold-1", "@A", "@B", 80)
	req.AllowOverdraft = false
	_, _, err := env.service.Create(ctx, req)
	require.NoError(t, err)

	req = inflightRequest("hold-2", "@A", "@C", 30)
	req.AllowOverdraft = false
	_, _, err = env.service.Create(ctx, req)
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)

	req.AllowOverdraft = true
	_, _, err = env.service.Create(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, int64(-10), env.balance(t, "@A").Available())
}

func TestCreate_ValidationError(t *testing.T) {
	env := newTestEnv(t)

	req := inflightRequest("r1", domain.WorldAccount, "@A", 0)
	_, _, err := env.service.Create(context.Background(), req)

	var vErr *domain.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "amount", vErr.Field)
}

func TestCreate_PrecisionMismatch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, _, err := env.service.Create(ctx, inflightRequest("r1", domain.WorldAccount, "@A", 500))
	require.NoError(t, err)

	req := inflightRequest("r2", domain.WorldAccount, "@A", 500)
	req.Precision = 1000
	_, _, err = env.service.Create(ctx, req)
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Equal(t, int64(500), env.balance(t, domain.WorldAccount).Inflight)
}

type failingRegistry struct {
	*memory.Registry
}

func (f failingRegistry) Insert(ctx context.Context, r *domain.Reservation) error {
	return domain.NewStoreError("insert reservation", errors.New("disk full"))
}

func TestCreate_RollsBackOnStoreFailure(t *testing.T) {
	env := newTestEnv(t, func(d *envDeps) {
		d.reg = failingRegistry{d.registry}
	})
	ctx := context.Background()

	_, _, err := env.service.Create(ctx, inflightRequest("r1", domain.WorldAccount, "@A", 500))
	require.ErrorIs(t, err, domain.ErrStore)

	_, err = env.store.GetBalance(ctx, domain.WorldAccount, "USD")
	assert.ErrorIs(t, err, domain.ErrBalanceNotFound)

	existing, err := env.txns.GetByReference(ctx, "r1")
	require.NoError(t, err)
	assert.Nil(t, existing)
}

func TestResolve_ConcurrentExactlyOneWins(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	txn, _, err := env.service.Create(ctx, inflightRequest("r1", domain.WorldAccount, "@A", 500))
	require.NoError(t, err)

	const workers = 20
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		decision := domain.Commit
		if i%2 == 1 {
			decision = domain.Void
		}
		wg.Add(1)
		go func(d domain.Decision) {
			defer wg.Done()
			_, err := env.service.Resolve(ctx, txn.ID, d)
			errs <- err
		}(decision)
	}
	wg.Wait()
	close(errs)

	var successes int
	for err := range errs {
		if err == nil {
			successes++
			continue
		}
		assert.ErrorIs(t, err, domain.ErrInvalidState)
	}
	assert.Equal(t, 1, successes)

	stored, err := env.service.GetTransaction(ctx, txn.ID)
	require.NoError(t, err)
	world := env.balance(t, domain.WorldAccount)
	assert.Equal(t, int64(0), world.Inflight)
	switch stored.Status {
	case domain.StatusCommitted:
		assert.Equal(t, int64(500), env.balance(t, "@A").Balance)
	case domain.StatusVoided:
		assert.Equal(t, int64(0), env.balance(t, "@A").Balance)
	default:
		t.Fatalf("unexpected status %s", stored.Status)
	}
}

func TestCreate_ConcurrentSameReference(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	const workers = 20
	var wg sync.WaitGroup
	ids := make(chan string, workers)
	var mu sync.Mutex
	created := 0
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			txn, isNew, err := env.service.Create(ctx, inflightRequest("dup", domain.WorldAccount, "@A", 500))
			if !assert.NoError(t, err) {
				return
			}
			if isNew {
				mu.Lock()
				created++
				mu.Unlock()
			}
			ids <- txn.ID
		}()
	}
	wg.Wait()
	close(ids)

	assert.Equal(t, 1, created)
	var first string
	for id := range ids {
		if first == "" {
			first = id
		}
		assert.Equal(t, first, id)
	}
	assert.Equal(t, int64(500), env.balance(t, domain.WorldAccount).Inflight)
}

func TestConservation_ConcurrentCreateAndResolve(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.fund(t, "@A", 10000)

	destinations := []string{"@B", "@C", "@D"}
	const workers = 60
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := inflightRequest(fmt.Sprintf("ref-%d", i), "@A", destinations[i%len(destinations)], 100)
			req.AllowOverdraft = false
			txn, _, err := env.service.Create(ctx, req)
			if err != nil {
				assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
				return
			}
			switch i % 3 {
			case 0:
				_, err = env.service.Resolve(ctx, txn.ID, domain.Commit)
			case 1:
				_, err = env.service.Resolve(ctx, txn.ID, domain.Void)
			default:
				return
			}
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	var sum int64
	for _, b := range env.store.Balances("USD") {
		sum += b.Balance

		reservations, err := env.service.ListReservations(ctx, b.Account, "USD")
		require.NoError(t, err)
		var held int64
		for _, r := range reservations {
			held += r.Amount
		}
		assert.Equal(t, held, b.Inflight, "inflight of %s", b.Account)
	}
	assert.Equal(t, int64(0), sum)

	a := env.balance(t, "@A")
	assert.GreaterOrEqual(t, a.Available(), int64(0))
	assert.Equal(t, int64(10000-20*100), a.Balance)
	assert.Equal(t, int64(20*100), a.Inflight)
}

type recordingPublisher struct {
	events chan *domain.Transaction
}

func (p *recordingPublisher) PublishTransactionEvent(ctx context.Context, txn *domain.Transaction) error {
	p.events <- txn
	return nil
}

func TestService_PublishesLifecycleEvents(t *testing.T) {
	pub := &recordingPublisher{events: make(chan *domain.Transaction, 4)}
	env := newTestEnv(t, func(d *envDeps) {
		d.publisher = pub
	})
	ctx := context.Background()

	txn, _, err := env.service.Create(ctx, inflightRequest("r1", domain.WorldAccount, "@A", 500))
	require.NoError(t, err)
	_, err = env.service.Resolve(ctx, txn.ID, domain.Commit)
	require.NoError(t, err)

	var statuses []domain.TransactionStatus
	for len(statuses) < 2 {
		select {
		case e := <-pub.events:
			assert.Equal(t, txn.ID, e.ID)
			statuses = append(statuses, e.Status)
		case <-time.After(2 * time.Second):
			t.Fatal("timeout waiting for events")
		}
	}
	assert.ElementsMatch(t, []domain.TransactionStatus{domain.StatusPending, domain.StatusCommitted}, statuses)

	_, _, err = env.service.Create(ctx, inflightRequest("r1", domain.WorldAccount, "@A", 500))
	require.NoError(t, err)
	select {
	case e := <-pub.events:
		t.Fatalf("unexpected event for replay: %s", e.Status)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestGetBalance(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.service.GetBalance(ctx, "@nobody", "USD")
	assert.ErrorIs(t, err, domain.ErrBalanceNotFound)

	_, err = env.service.GetBalance(ctx, "nobody", "USD")
	assert.ErrorIs(t, err, domain.ErrValidation)

	env.fund(t, "@A", 250)
	b, err := env.service.GetBalance(ctx, "@A", "USD")
	require.NoError(t, err)
	assert.Equal(t, int64(250), b.Balance)
}

func TestCreate_ReservationOverflowIsRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, _, err := env.service.Create(ctx, inflightRequest("big-1", "@A", "@B", math.MaxInt64))
	require.NoError(t, err)

	_, _, err = env.service.Create(ctx, inflightRequest("big-2", "@A", "@B", math.MaxInt64))
	var vErr *domain.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "amount", vErr.Field)

	a := env.balance(t, "@A")
	assert.Equal(t, int64(math.MaxInt64), a.Inflight)
	assert.Equal(t, int64(-math.MaxInt64), a.Available())
	assert.Equal(t, 1, env.registry.Len())

	req := inflightRequest("small", "@A", "@C", 2)
	req.AllowOverdraft = false
	_, _, err = env.service.Create(ctx, req)
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
}

func TestCreate_PostingOverflowIsRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	req := inflightRequest("max", "@A", "@B", math.MaxInt64)
	req.Inflight = false
	_, _, err := env.service.Create(ctx, req)
	require.NoError(t, err)

	req = inflightRequest("one-more", "@C", "@B", 1)
	req.Inflight = false
	_, _, err = env.service.Create(ctx, req)
	require.ErrorIs(t, err, domain.ErrValidation)

	assert.Equal(t, int64(math.MaxInt64), env.balance(t, "@B").Balance)
	_, err = env.store.GetBalance(ctx, "@C", "USD")
	assert.ErrorIs(t, err, domain.ErrBalanceNotFound)

	var sum int64
	for _, b := range env.store.Balances("USD") {
		sum += b.Balance
	}
	assert.Equal(t, int64(0), sum)
}

// staleReferenceRepository hides the first reference lookup, as when
// another instance inserts the same reference between check and insert.
type staleReferenceRepository struct {
	*memory.TransactionRepository
	mu     sync.Mutex
	hidden bool
}

func (r *staleReferenceRepository) GetByReference(ctx context.Context, reference string) (*domain.Transaction, error) {
	r.mu.Lock()
	hide := !r.hidden
	r.hidden = true
	r.mu.Unlock()
	if hide {
		return nil, nil
	}
	return r.TransactionRepository.GetByReference(ctx, reference)
}

func TestCreate_DuplicateReferenceFromAnotherInstance(t *testing.T) {
	ctx := context.Background()
	inner := memory.NewTransactionRepository()
	stored := domain.NewTransaction(inflightRequest("shared", domain.WorldAccount, "@A", 500), time.Now().UTC())
	require.NoError(t, inner.Create(ctx, stored))

	registry := memory.NewRegistry()
	store := memory.NewStore()
	service := domain.NewTransactionService(
		store,
		registry,
		&staleReferenceRepository{TransactionRepository: inner},
		memory.NewTransactionManager(),
		lock.NewLocalLocker(),
		nil,
		nil,
	)

	txn, created, err := service.Create(ctx, inflightRequest("shared", domain.WorldAccount, "@A", 500))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, stored.ID, txn.ID)

	// the losing unit of work left nothing behind
	assert.Equal(t, 0, registry.Len())
	_, err = store.GetBalance(ctx, domain.WorldAccount, "USD")
	assert.ErrorIs(t, err, domain.ErrBalanceNotFound)
}
