package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Kamal-Moha/blnk-Ledger-Test/internal/audit"
	"github.com/Kamal-Moha/blnk-Ledger-Test/internal/handlers"
)

type fakeJournal struct {
	entries map[string][]*audit.Entry
	listErr error
	pingErr error
}

func (f *fakeJournal) ListByTransaction(ctx context.Context, id string) ([]*audit.Entry, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.entries[id], nil
}

func (f *fakeJournal) Ping(ctx context.Context) error {
	return f.pingErr
}

func serveJournal(j *fakeJournal, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	router := handlers.NewJournalRouter(handlers.NewJournalHandler(j), zap.NewNop())
	router.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestJournal_ListEntries(t *testing.T) {
	at := time.Date(2025, 5, 1, 9, 30, 0, 0, time.UTC)
	j := &fakeJournal{entries: map[string][]*audit.Entry{
		"txn_1": {
			{EventID: "e1", EventType: "transaction.pending", TransactionID: "txn_1", Status: "pending", Amount: 500, AmountValue: "5.00", OccurredAt: at},
			{EventID: "e2", EventType: "transaction.committed", TransactionID: "txn_1", Status: "committed", Amount: 500, AmountValue: "5.00", OccurredAt: at.Add(time.Minute)},
		},
	}}

	rec := serveJournal(j, http.MethodGet, "/journal/txn_1")
	require.Equal(t, http.StatusOK, rec.Code)

	var got []map[string]interface{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	require.Len(t, got, 2)
	assert.Equal(t, "transaction.pending", got[0]["event_type"])
	assert.Equal(t, "committed", got[1]["status"])
	assert.Equal(t, "5.00", got[1]["amount_string"])

	rec = serveJournal(j, http.MethodGet, "/journal/txn_unknown")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "NOT_FOUND")

	j.listErr = errors.New("clickhouse down")
	rec = serveJournal(j, http.MethodGet, "/journal/txn_1")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestJournal_Health(t *testing.T) {
	j := &fakeJournal{}

	rec := serveJournal(j, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)

	j.pingErr = errors.New("connection refused")
	rec = serveJournal(j, http.MethodGet, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
