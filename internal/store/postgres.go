package store

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/recimport/internal/core"
)

//go:embed schema.sql
var schemaSQL string

// DBTX is the interface for database operations.
// Satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

// Migrate creates the records table if it does not exist.
func Migrate(ctx context.Context, db DBTX) error {
	if _, err := db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

const (
	lockKeySQL = `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`

	recordColumns = `id, id_type, id_value, product, is_active, valid_from, valid_to, descriptive, version, author`

	latestSQL = `SELECT ` + recordColumns + ` FROM records
WHERE id_type = $1 AND id_value = $2 AND product = $3
  AND version = (SELECT max(version) FROM records WHERE id_type = $1 AND id_value = $2 AND product = $3)`

	historySQL = `SELECT ` + recordColumns + ` FROM records
WHERE id_type = $1 AND id_value = $2 AND product = $3
ORDER BY version ASC, id ASC`

	insertSQL = `INSERT INTO records (` + recordColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
)

// Postgres is a version store over a pgx pool.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres wraps pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Apply implements core.VersionStore. The advisory lock is held until the
// transaction ends, so lookup and insert for one key never interleave.
func (p *Postgres) Apply(ctx context.Context, key core.BusinessKey, build func(*core.CanonicalRecord) (core.CanonicalRecord, error)) (core.CanonicalRecord, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return core.CanonicalRecord{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, lockKeySQL, key.String()); err != nil {
		return core.CanonicalRecord{}, fmt.Errorf("lock %s: %w", key, err)
	}

	var latest *core.CanonicalRecord
	rec, ok, err := findLatest(ctx, tx, key)
	if err != nil {
		return core.CanonicalRecord{}, err
	}
	if ok {
		latest = &rec
	}

	out, err := build(latest)
	if err != nil {
		return core.CanonicalRecord{}, err
	}
	if err := insertRecord(ctx, tx, out); err != nil {
		return core.CanonicalRecord{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return core.CanonicalRecord{}, fmt.Errorf("commit: %w", err)
	}
	return out, nil
}

// FindLatest implements core.VersionStore.
func (p *Postgres) FindLatest(ctx context.Context, key core.BusinessKey) (core.CanonicalRecord, bool, error) {
	return findLatest(ctx, p.pool, key)
}

// History implements core.VersionStore.
func (p *Postgres) History(ctx context.Context, key core.BusinessKey) ([]core.CanonicalRecord, error) {
	rows, err := p.pool.Query(ctx, historySQL, key.IDType, key.IDValue, key.Product)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	return collectRecords(rows)
}

func findLatest(ctx context.Context, db DBTX, key core.BusinessKey) (core.CanonicalRecord, bool, error) {
	rows, err := db.Query(ctx, latestSQL, key.IDType, key.IDValue, key.Product)
	if err != nil {
		return core.CanonicalRecord{}, false, fmt.Errorf("query latest: %w", err)
	}
	records, err := collectRecords(rows)
	if err != nil {
		return core.CanonicalRecord{}, false, err
	}
	rec, ok := core.PickLatest(records)
	return rec, ok, nil
}

func insertRecord(ctx context.Context, db DBTX, r core.CanonicalRecord) error {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return fmt.Errorf("record id %q: %w", r.ID, err)
	}
	desc, err := encodeDescriptive(r.Descriptive)
	if err != nil {
		return err
	}
	_, err = db.Exec(ctx, insertSQL,
		pgtype.UUID{Bytes: id, Valid: true},
		r.IDType,
		r.IDValue,
		r.Product,
		r.IsActive,
		pgtype.Date{Time: r.ValidFrom, Valid: true},
		pgtype.Date{Time: r.ValidTo, Valid: true},
		desc,
		pgtype.Timestamptz{Time: r.Version, Valid: true},
		r.Author,
	)
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}

func collectRecords(rows pgx.Rows) ([]core.CanonicalRecord, error) {
	defer rows.Close()
	var out []core.CanonicalRecord
	for rows.Next() {
		var (
			id        pgtype.UUID
			r         core.CanonicalRecord
			validFrom pgtype.Date
			validTo   pgtype.Date
			desc      []byte
			version   pgtype.Timestamptz
		)
		if err := rows.Scan(&id, &r.IDType, &r.IDValue, &r.Product, &r.IsActive,
			&validFrom, &validTo, &desc, &version, &r.Author); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		d, err := decodeDescriptive(desc)
		if err != nil {
			return nil, err
		}
		r.ID = uuid.UUID(id.Bytes).String()
		r.ValidFrom = validFrom.Time
		r.ValidTo = validTo.Time
		r.Descriptive = d
		r.Version = version.Time.UTC()
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read records: %w", err)
	}
	return out, nil
}
