package accounting

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDB struct {
	mu            sync.Mutex
	costRows      []CostRecord
	logRows       []RequestLog
	costCalls     int
	logCalls      int
	failCostOnce  bool
	failLogOnce   bool
}

func (f *fakeDB) InsertCostRecords(ctx context.Context, rows []CostRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.costCalls++
	if f.failCostOnce {
		f.failCostOnce = false
		return assertError("cost insert failed")
	}
	f.costRows = append(f.costRows, rows...)
	return nil
}

func (f *fakeDB) InsertRequestLogs(ctx context.Context, rows []RequestLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logCalls++
	if f.failLogOnce {
		f.failLogOnce = false
		return assertError("log insert failed")
	}
	f.logRows = append(f.logRows, rows...)
	return nil
}

func (f *fakeDB) snapshot() ([]CostRecord, []RequestLog) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]CostRecord(nil), f.costRows...), append([]RequestLog(nil), f.logRows...)
}

type assertError string

func (e assertError) Error() string { return string(e) }

func TestSinkHappyPathAccounting(t *testing.T) {
	// S6: one cost_records row + one request_logs row, status=success,
	// provider_used=openai.
	db := &fakeDB{}
	sink := New(context.Background(), db, slog.Default())

	tenant := uuid.New()
	reqID := uuid.NewString()

	sink.RecordCost(CostRecord{
		ID: uuid.New(), TenantID: tenant, RequestID: reqID,
		Provider: "openai", Model: "gpt-3.5-turbo",
		InputTokens: 1000, OutputTokens: 500, CostUSD: decimal.NewFromFloat(0.0025),
		LatencyMs: 120, CreatedAt: time.Now(),
	})
	sink.RecordRequestLog(RequestLog{
		ID: uuid.New(), RequestID: reqID, TenantID: tenant,
		Task: "chat", Budget: "standard", LatencySensitive: false,
		ProviderUsed: "openai", FallbackUsed: false, Status: "success",
		CreatedAt: time.Now(),
	})

	require.NoError(t, sink.Close())

	costRows, logRows := db.snapshot()
	require.Len(t, costRows, 1)
	require.Len(t, logRows, 1)
	assert.Equal(t, "openai", costRows[0].Provider)
	assert.Equal(t, "success", logRows[0].Status)
	assert.False(t, logRows[0].FallbackUsed)
}

func TestSinkBatchesByFlushInterval(t *testing.T) {
	db := &fakeDB{}
	sink := New(context.Background(), db, slog.Default())
	defer sink.Close()

	for i := 0; i < 5; i++ {
		sink.RecordCost(CostRecord{ID: uuid.New(), CostUSD: decimal.Zero, CreatedAt: time.Now()})
	}

	assert.Eventually(t, func() bool {
		rows, _ := db.snapshot()
		return len(rows) == 5
	}, 3*time.Second, 10*time.Millisecond)
}

func TestSinkConcurrentRecordCostDropsNothing(t *testing.T) {
	// Filling the 10k-entry channel past capacity is not practical in a
	// unit test, so this checks that 200 concurrent RecordCost calls are
	// all persisted and the dropped counter stays at zero.
	db := &fakeDB{}
	sink := New(context.Background(), db, slog.Default())

	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sink.RecordCost(CostRecord{ID: uuid.New(), CostUSD: decimal.Zero, CreatedAt: time.Now()})
		}()
	}
	wg.Wait()
	require.NoError(t, sink.Close())

	assert.Equal(t, int64(0), sink.DroppedCost())
	rows, _ := db.snapshot()
	assert.Len(t, rows, 200)
}

func TestSinkRequestLogFailureDoesNotAffectCostRecords(t *testing.T) {
	// §4.8: independent transactions. A failing request_logs insert must
	// not prevent cost_records from landing.
	db := &fakeDB{failLogOnce: true}
	sink := New(context.Background(), db, slog.Default())

	sink.RecordCost(CostRecord{ID: uuid.New(), Provider: "openai", CostUSD: decimal.Zero, CreatedAt: time.Now()})
	sink.RecordRequestLog(RequestLog{ID: uuid.New(), Status: "success", CreatedAt: time.Now()})

	require.NoError(t, sink.Close())

	costRows, _ := db.snapshot()
	assert.Len(t, costRows, 1)
}

func TestSinkCloseDrainsQueuedEntries(t *testing.T) {
	db := &fakeDB{}
	sink := New(context.Background(), db, slog.Default())

	for i := 0; i < 3; i++ {
		sink.RecordCost(CostRecord{ID: uuid.New(), CostUSD: decimal.Zero, CreatedAt: time.Now()})
		sink.RecordRequestLog(RequestLog{ID: uuid.New(), Status: "success", CreatedAt: time.Now()})
	}

	require.NoError(t, sink.Close())

	costRows, logRows := db.snapshot()
	assert.Len(t, costRows, 3)
	assert.Len(t, logRows, 3)
}
