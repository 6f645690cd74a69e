// Package store provides the persistence implementations of
// referral.Repository: Postgres for production, an in-memory store for
// tests, plus a redis read-cache decorator.
package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/refhound/refhound/internal/referral"
)

const uniqueViolation = "23505"

const defaultListLimit = 50

const maxListLimit = 200

// PostgresStore is a PostgreSQL implementation of referral.Repository.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a Postgres-backed record store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const recordColumns = `id, brand, code, link, tags, post_date, expiration_date,
	is_valid, last_validated, source_id, source_permalink, created_at`

func (p *PostgresStore) Insert(ctx context.Context, record *referral.Record) error {
	query := `
		INSERT INTO referral_records (` + recordColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := p.pool.Exec(ctx, query,
		record.ID,
		record.Brand,
		nullableString(record.Code),
		nullableString(record.Link),
		record.Tags,
		record.PostDate,
		record.ExpirationDate,
		record.IsValid,
		record.LastValidated,
		nullableString(record.SourceID),
		nullableString(record.SourcePermalink),
		record.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return referral.ErrDuplicate
		}

		return err
	}

	return nil
}

func (p *PostgresStore) FindDuplicate(ctx context.Context, brand, code, link string) (*referral.Record, error) {
	query := `
		SELECT ` + recordColumns + `
		FROM referral_records
		WHERE brand = $1
		  AND (($2 <> '' AND code = $2) OR ($3 <> '' AND link = $3))
		LIMIT 1
	`

	return p.queryOne(ctx, query, brand, code, link)
}

func (p *PostgresStore) Get(ctx context.Context, id string) (*referral.Record, error) {
	query := `
		SELECT ` + recordColumns + `
		FROM referral_records
		WHERE id = $1
	`

	return p.queryOne(ctx, query, id)
}

func (p *PostgresStore) List(ctx context.Context, filter referral.Filter) ([]*referral.Record, error) {
	var (
		conditions []string
		args       []any
	)

	arg := func(v any) string {
		args = append(args, v)

		return "$" + strconv.Itoa(len(args))
	}

	if filter.Query != "" {
		pattern := arg("%" + filter.Query + "%")
		conditions = append(conditions, fmt.Sprintf(
			"(brand ILIKE %s OR code ILIKE %s OR link ILIKE %s)", pattern, pattern, pattern))
	}

	if filter.Brand != "" {
		conditions = append(conditions, "brand = "+arg(filter.Brand))
	}

	if filter.Tag != "" {
		conditions = append(conditions, arg(filter.Tag)+" = ANY(tags)")
	}

	if filter.Valid != nil {
		conditions = append(conditions, "is_valid = "+arg(*filter.Valid))
	}

	query := "SELECT " + recordColumns + " FROM referral_records"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	query += " ORDER BY post_date DESC, created_at DESC LIMIT " + arg(clampLimit(filter.Limit))

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanRecords(rows)
}

func (p *PostgresStore) Update(ctx context.Context, record *referral.Record) error {
	query := `
		UPDATE referral_records
		SET brand = $2, code = $3, link = $4, tags = $5, post_date = $6,
		    expiration_date = $7, is_valid = $8, last_validated = $9
		WHERE id = $1
	`

	tag, err := p.pool.Exec(ctx, query,
		record.ID,
		record.Brand,
		nullableString(record.Code),
		nullableString(record.Link),
		record.Tags,
		record.PostDate,
		record.ExpirationDate,
		record.IsValid,
		record.LastValidated,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return referral.ErrDuplicate
		}

		return err
	}

	if tag.RowsAffected() == 0 {
		return referral.ErrNotFound
	}

	return nil
}

func (p *PostgresStore) Delete(ctx context.Context, id string) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM referral_records WHERE id = $1`, id)
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return referral.ErrNotFound
	}

	return nil
}

func (p *PostgresStore) ListExpired(ctx context.Context, asOf time.Time) ([]*referral.Record, error) {
	query := `
		SELECT ` + recordColumns + `
		FROM referral_records
		WHERE is_valid AND expiration_date < $1
		ORDER BY expiration_date
	`

	rows, err := p.pool.Query(ctx, query, asOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanRecords(rows)
}

func (p *PostgresStore) Invalidate(ctx context.Context, id string, at time.Time) error {
	tag, err := p.pool.Exec(ctx,
		`UPDATE referral_records SET is_valid = FALSE, last_validated = $2 WHERE id = $1`,
		id, at,
	)
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return referral.ErrNotFound
	}

	return nil
}

func (p *PostgresStore) queryOne(ctx context.Context, query string, args ...any) (*referral.Record, error) {
	record, err := scanRecord(p.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, referral.ErrNotFound
		}

		return nil, err
	}

	return record, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*referral.Record, error) {
	var (
		record referral.Record

		code, link, sourceID, sourcePermalink *string
	)

	err := row.Scan(
		&record.ID,
		&record.Brand,
		&code,
		&link,
		&record.Tags,
		&record.PostDate,
		&record.ExpirationDate,
		&record.IsValid,
		&record.LastValidated,
		&sourceID,
		&sourcePermalink,
		&record.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	record.Code = deref(code)
	record.Link = deref(link)
	record.SourceID = deref(sourceID)
	record.SourcePermalink = deref(sourcePermalink)

	return &record, nil
}

func scanRecords(rows pgx.Rows) ([]*referral.Record, error) {
	var records []*referral.Record

	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}

		records = append(records, record)
	}

	return records, rows.Err()
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultListLimit
	case limit > maxListLimit:
		return maxListLimit
	default:
		return limit
	}
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}

	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}

	return *s
}

// Compile-time check.
var _ referral.Repository = (*PostgresStore)(nil)
