package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	defaultMaxConns        = 10
	defaultMinConns        = 2
	defaultConnectTimeout  = 5 * time.Second
	defaultInsertBatchSize = 500
)

// Postgres is a registry replica backed by a pgx connection pool. It serves
// the read Store interface and the loader operations used by the uploader.
type Postgres struct {
	log  *slog.Logger
	pool *pgxpool.Pool
	name string
}

// NewPostgres connects a pool to dsn and verifies it with a ping. name is a
// label for logs ("blue"/"green").
func NewPostgres(ctx context.Context, log *slog.Logger, name, dsn string) (*Postgres, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres config for %s: %w", name, err)
	}
	poolConfig.MaxConns = defaultMaxConns
	poolConfig.MinConns = defaultMinConns

	ctx, cancel := context.WithTimeout(ctx, defaultConnectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool for %s: %w", name, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres %s: %w", name, err)
	}

	return &Postgres{log: log, pool: pool, name: name}, nil
}

// Migrate creates the registry table and index if they do not exist.
func (p *Postgres) Migrate(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS pda_registry (
			pda BYTEA PRIMARY KEY,
			program_id BYTEA NOT NULL,
			seed_count INTEGER NOT NULL,
			seed_bytes BYTEA NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create pda_registry table: %w", err)
	}

	_, err = p.pool.Exec(ctx, `
		CREATE INDEX IF NOT EXISTS idx_pda_registry_program
		ON pda_registry (program_id, pda)
	`)
	if err != nil {
		return fmt.Errorf("failed to create pda_registry index: %w", err)
	}
	return nil
}

func (p *Postgres) Name() string {
	return p.name
}

func (p *Postgres) Close() {
	p.pool.Close()
}

func (p *Postgres) GetByPDA(ctx context.Context, pda solana.PublicKey) (Row, bool, error) {
	var row Row
	var pdaBytes, programBytes []byte
	err := p.pool.QueryRow(ctx, `
		SELECT pda, program_id, seed_bytes FROM pda_registry WHERE pda = $1
	`, pda[:]).Scan(&pdaBytes, &programBytes, &row.SeedBytes)
	if errors.Is(err, pgx.ErrNoRows) {
		return Row{}, false, nil
	}
	if err != nil {
		return Row{}, false, fmt.Errorf("failed to get row by pda: %w", err)
	}
	row.PDA = solana.PublicKeyFromBytes(pdaBytes)
	row.ProgramID = solana.PublicKeyFromBytes(programBytes)
	return row, true, nil
}

func (p *Postgres) List(ctx context.Context, q ListQuery) ([]Row, error) {
	sql, args := buildListQuery(q)
	rows, err := p.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list rows: %w", err)
	}
	defer rows.Close()

	out := make([]Row, 0, q.Limit)
	for rows.Next() {
		var pdaBytes, programBytes, seedBytes []byte
		if err := rows.Scan(&pdaBytes, &programBytes, &seedBytes); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		out = append(out, Row{
			PDA:       solana.PublicKeyFromBytes(pdaBytes),
			ProgramID: solana.PublicKeyFromBytes(programBytes),
			SeedBytes: seedBytes,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}
	return out, nil
}

// buildListQuery renders a ListQuery as parameterized SQL. BYTEA comparison
// in Postgres is bytewise, which matches the registry's key order.
func buildListQuery(q ListQuery) (string, []any) {
	var b strings.Builder
	b.WriteString("SELECT pda, program_id, seed_bytes FROM pda_registry")

	var conds []string
	var args []any
	if q.ProgramID != nil {
		args = append(args, (*q.ProgramID)[:])
		conds = append(conds, "program_id = $"+strconv.Itoa(len(args)))
	}
	if q.After != nil {
		args = append(args, (*q.After)[:])
		conds = append(conds, "pda > $"+strconv.Itoa(len(args)))
	}
	if len(conds) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(conds, " AND "))
	}

	b.WriteString(" ORDER BY pda ASC")

	args = append(args, q.Limit)
	b.WriteString(" LIMIT $" + strconv.Itoa(len(args)))

	// Keyset queries replace the offset with the After bound.
	if q.After == nil && q.Offset > 0 {
		args = append(args, q.Offset)
		b.WriteString(" OFFSET $" + strconv.Itoa(len(args)))
	}

	return b.String(), args
}

// InsertRows bulk-inserts rows in batches, ignoring duplicates on the PDA
// primary key. Returns the number of rows actually inserted. Loader-side
// only; never called by the read path.
func (p *Postgres) InsertRows(ctx context.Context, rows []Row) (int64, error) {
	const insertSQL = `
		INSERT INTO pda_registry (pda, program_id, seed_count, seed_bytes)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (pda) DO NOTHING
	`

	var inserted int64
	for start := 0; start < len(rows); start += defaultInsertBatchSize {
		end := min(start+defaultInsertBatchSize, len(rows))

		batch := &pgx.Batch{}
		for _, row := range rows[start:end] {
			seedCount, err := declaredSeedCount(row.SeedBytes)
			if err != nil {
				return inserted, err
			}
			batch.Queue(insertSQL, row.PDA[:], row.ProgramID[:], seedCount, row.SeedBytes)
		}

		results := p.pool.SendBatch(ctx, batch)
		for i := start; i < end; i++ {
			tag, err := results.Exec()
			if err != nil {
				_ = results.Close()
				return inserted, fmt.Errorf("failed to insert row %d: %w", i, err)
			}
			inserted += tag.RowsAffected()
		}
		if err := results.Close(); err != nil {
			return inserted, fmt.Errorf("failed to close insert batch: %w", err)
		}
	}
	return inserted, nil
}

// declaredSeedCount reads the count prefix of a seed blob for the
// denormalized seed_count column.
func declaredSeedCount(seedBytes []byte) (int32, error) {
	if len(seedBytes) < 4 {
		return 0, fmt.Errorf("seed blob shorter than count prefix: %d bytes", len(seedBytes))
	}
	return int32(uint32(seedBytes[0]) | uint32(seedBytes[1])<<8 | uint32(seedBytes[2])<<16 | uint32(seedBytes[3])<<24), nil
}

// Truncate empties the replica ahead of a bulk reload.
func (p *Postgres) Truncate(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, `TRUNCATE pda_registry`); err != nil {
		return fmt.Errorf("failed to truncate pda_registry: %w", err)
	}
	return nil
}

// Count returns the total number of rows in the replica.
func (p *Postgres) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := p.pool.QueryRow(ctx, `SELECT COUNT(*) FROM pda_registry`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count pda_registry rows: %w", err)
	}
	return n, nil
}
