package domain

import (
	"context"
	"sort"
)

func referenceLockKey(reference string) string {
	return "lock:ref:" + reference
}

func transactionLockKey(id string) string {
	return "lock:txn:" + id
}

func balanceLockKey(account, currency string) string {
	return "lock:balance:" + account + ":" + currency
}

// balanceLockKeys returns the balance keys touched by a transaction in the
// order they must be acquired.
func balanceLockKeys(source, destination, currency string) []string {
	keys := []string{
		balanceLockKey(source, currency),
		balanceLockKey(destination, currency),
	}
	sort.Strings(keys)
	return keys
}

// withLocks acquires keys in order, runs fn, and releases them in reverse.
func withLocks(ctx context.Context, locker Locker, keys []string, fn func(ctx context.Context) error) error {
	if len(keys) == 0 {
		return fn(ctx)
	}
	return locker.WithLock(ctx, keys[0], func(ctx context.Context) error {
		return withLocks(ctx, locker, keys[1:], fn)
	})
}

// sortedAccounts returns the two accounts in lock order.
func sortedAccounts(a, b string) (string, string) {
	if a < b {
		return a, b
	}
	return b, a
}
