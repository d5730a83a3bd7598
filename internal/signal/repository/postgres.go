package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"signalgateway/internal/metrics"
	"signalgateway/internal/signal"
)

const postgresBackend = "postgres"

var (
	recordColumns = "id, created_at, " + strings.Join(signal.Columns, ", ")
	insertQuery   = `INSERT INTO %s (` + strings.Join(signal.Columns, ", ") + `)
		VALUES (:` + strings.Join(signal.Columns, ", :") + `)
		RETURNING ` + recordColumns
)

// PostgresRepository reads and writes the signals table over a direct
// Postgres connection.
type PostgresRepository struct {
	DB    *sqlx.DB
	table string
}

func NewPostgresRepository(db *sqlx.DB, table string) *PostgresRepository {
	if table == "" {
		table = "signals"
	}
	return &PostgresRepository{DB: db, table: table}
}

// Insert writes all signals in one statement and returns the stored rows.
func (r *PostgresRepository) Insert(ctx context.Context, signals ...signal.Signal) (recs []signal.Record, err error) {
	defer func(start time.Time) { metrics.ObserveStore(postgresBackend, "insert", start, err) }(time.Now())

	if len(signals) == 0 {
		return nil, nil
	}
	rows, err := r.DB.NamedQueryContext(ctx, fmt.Sprintf(insertQuery, r.table), signals)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var rec signal.Record
		if err := rows.StructScan(&rec); err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// Select returns signals matching q, newest first.
func (r *PostgresRepository) Select(ctx context.Context, q signal.Query) (recs []signal.Record, err error) {
	defer func(start time.Time) { metrics.ObserveStore(postgresBackend, "select", start, err) }(time.Now())

	query, args := buildSelect(r.table, q)
	if err := r.DB.SelectContext(ctx, &recs, query, args...); err != nil {
		return nil, err
	}
	return recs, nil
}

// DeleteByID removes the signal with the given id. Deleting a missing id
// returns no rows and no error.
func (r *PostgresRepository) DeleteByID(ctx context.Context, id int64) (recs []signal.Record, err error) {
	defer func(start time.Time) { metrics.ObserveStore(postgresBackend, "delete_by_id", start, err) }(time.Now())

	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1 RETURNING %s`, r.table, recordColumns)
	if err := r.DB.SelectContext(ctx, &recs, query, id); err != nil {
		return nil, err
	}
	return recs, nil
}

// DeleteOlderThan removes signals created strictly before cutoff.
func (r *PostgresRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (recs []signal.Record, err error) {
	defer func(start time.Time) { metrics.ObserveStore(postgresBackend, "delete_older_than", start, err) }(time.Now())

	query := fmt.Sprintf(`DELETE FROM %s WHERE created_at < $1 RETURNING %s`, r.table, recordColumns)
	if err := r.DB.SelectContext(ctx, &recs, query, cutoff); err != nil {
		return nil, err
	}
	return recs, nil
}

func buildSelect(table string, q signal.Query) (string, []any) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if q.Style != nil {
		add("style = $%d", string(*q.Style))
	}
	if q.Rating != nil {
		add("rating = $%d", string(*q.Rating))
	}
	if q.MinScore != nil {
		add("score >= $%d", *q.MinScore)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s", recordColumns, table)
	if len(where) > 0 {
		b.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	b.WriteString(" ORDER BY created_at DESC")
	if q.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", q.Limit)
	}
	return b.String(), args
}
