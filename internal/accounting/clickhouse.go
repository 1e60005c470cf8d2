package accounting

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// ClickHouseDB is the production DB, backed by the teacher's already
//-declared clickhouse-go/v2 dependency (see internal/app/init.go's
// comment naming ClickHouse as the managed build's analytics store).
type ClickHouseDB struct {
	conn driver.Conn
}

// Open connects to ClickHouse and verifies the connection with a ping.
func Open(ctx context.Context, addr, database, username, password string) (*ClickHouseDB, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: database,
			Username: username,
			Password: password,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("accounting: open clickhouse: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("accounting: ping clickhouse: %w", err)
	}
	return &ClickHouseDB{conn: conn}, nil
}

// Close releases the underlying connection pool.
func (c *ClickHouseDB) Close() error {
	return c.conn.Close()
}

// InsertCostRecords appends rows into cost_records in one batch/transaction
// (§4.8, §6 table "cost_records"). In the Schema DDL the table is ordered
// by (tenant_id, created_at); it declares no (provider, model) index.
func (c *ClickHouseDB) InsertCostRecords(ctx context.Context, rows []CostRecord) error {
	if len(rows) == 0 {
		return nil
	}

	batch, err := c.conn.PrepareBatch(ctx, "INSERT INTO cost_records "+
		"(id, tenant_id, request_id, provider, model, input_tokens, output_tokens, cost_usd, latency_ms, created_at)")
	if err != nil {
		return fmt.Errorf("accounting: prepare cost_records batch: %w", err)
	}

	for _, r := range rows {
		// cost_usd is a Decimal(10, 6) column; clickhouse-go/v2 accepts
		// decimal.Decimal directly, so the exact value travels all the way
		// from C2's pricing computation into storage with no float
		// conversion (§4.2/§9: float only at the response boundary, and
		// the DB is not that boundary).
		if err := batch.Append(
			r.ID, r.TenantID, r.RequestID, r.Provider, r.Model,
			uint32(r.InputTokens), uint32(r.OutputTokens), r.CostUSD.Round(6),
			uint32(r.LatencyMs), r.CreatedAt,
		); err != nil {
			return fmt.Errorf("accounting: append cost record: %w", err)
		}
	}

	return batch.Send()
}

// InsertRequestLogs appends rows into request_logs in its own batch,
// independent of InsertCostRecords (§4.8).
func (c *ClickHouseDB) InsertRequestLogs(ctx context.Context, rows []RequestLog) error {
	if len(rows) == 0 {
		return nil
	}

	batch, err := c.conn.PrepareBatch(ctx, "INSERT INTO request_logs "+
		"(id, request_id, tenant_id, task, budget, latency_sensitive, provider_used, fallback_used, status, created_at)")
	if err != nil {
		return fmt.Errorf("accounting: prepare request_logs batch: %w", err)
	}

	for _, r := range rows {
		if err := batch.Append(
			r.ID, r.RequestID, r.TenantID, r.Task, r.Budget,
			r.LatencySensitive, r.ProviderUsed, r.FallbackUsed, r.Status, r.CreatedAt,
		); err != nil {
			return fmt.Errorf("accounting: append request log: %w", err)
		}
	}

	return batch.Send()
}

// Schema returns the DDL for the three persisted tables (§6), used by
// operators bootstrapping a fresh ClickHouse instance. api_keys is
// included for completeness; no code in the gateway queries it, since
// tenants reach the Credential Validator through an auth.Store (tenant
// records are created out-of-band, §3).
const Schema = `
CREATE TABLE IF NOT EXISTS api_keys (
    id UUID,
    name String,
    key_hash String,
    rate_limit_per_minute UInt32 DEFAULT 60,
    is_active UInt8 DEFAULT 1,
    created_at DateTime DEFAULT now()
) ENGINE = MergeTree ORDER BY id;

CREATE TABLE IF NOT EXISTS cost_records (
    id UUID,
    tenant_id UUID,
    request_id String,
    provider String,
    model String,
    input_tokens UInt32,
    output_tokens UInt32,
    cost_usd Decimal(10, 6),
    latency_ms UInt32,
    created_at DateTime DEFAULT now()
) ENGINE = MergeTree ORDER BY (tenant_id, created_at);

CREATE TABLE IF NOT EXISTS request_logs (
    id UUID,
    request_id String,
    tenant_id UUID,
    task String,
    budget String,
    latency_sensitive UInt8,
    provider_used String,
    fallback_used UInt8,
    status String,
    created_at DateTime DEFAULT now()
) ENGINE = MergeTree ORDER BY request_id;
`
