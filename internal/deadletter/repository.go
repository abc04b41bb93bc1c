package deadletter

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"cardassist/internal/constants"
	"cardassist/pkg/errors"
	"cardassist/pkg/metrics"
)

type Repository interface {
	// Insert stores rec unless the same dead-letter event is already
	// archived; inserted reports which.
	Insert(ctx context.Context, rec *Record) (inserted bool, err error)
	Get(ctx context.Context, id string) (*Record, error)
	List(ctx context.Context, filter ListFilter) ([]Record, error)
	// MarkReplayed fails with a conflict when the record was already replayed.
	MarkReplayed(ctx context.Context, id, actor string, at time.Time) error
	UnmarkReplayed(ctx context.Context, id string) error
}

type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func observe(op string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.IncDatabaseQuery(constants.ServiceNameAdmin, "postgres", op, status)
	metrics.ObserveDatabaseQueryDuration(constants.ServiceNameAdmin, "postgres", op, time.Since(start))
}

func (r *PostgresRepository) Insert(ctx context.Context, rec *Record) (inserted bool, err error) {
	defer func(start time.Time) { observe("insert", start, err) }(time.Now())

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.ArchivedAt.IsZero() {
		rec.ArchivedAt = time.Now().UTC()
	}
	payload, err := json.Marshal(rec.Payload)
	if err != nil {
		return false, fmt.Errorf("failed to encode payload: %w", err)
	}

	query := `
		INSERT INTO dead_letters (id, message_id, routing_key, source_queue, reason, attempts, payload, dead_lettered_at, archived_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (message_id, dead_lettered_at) DO NOTHING
	`
	res, err := r.db.ExecContext(ctx, query,
		rec.ID, rec.MessageID, rec.RoutingKey, rec.SourceQueue, rec.Reason,
		rec.Attempts, payload, rec.DeadLetteredAt, rec.ArchivedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if stderrors.As(err, &pqErr) && pqErr.Code == "23505" {
			return false, nil
		}
		return false, fmt.Errorf("failed to archive dead letter: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to archive dead letter: %w", err)
	}
	return n > 0, nil
}

const selectColumns = `id, message_id, routing_key, source_queue, reason, attempts, payload, dead_lettered_at, archived_at, replayed_at, replayed_by`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(s scanner) (*Record, error) {
	var (
		rec        Record
		payload    []byte
		replayedAt sql.NullTime
		replayedBy sql.NullString
	)
	if err := s.Scan(
		&rec.ID, &rec.MessageID, &rec.RoutingKey, &rec.SourceQueue, &rec.Reason, &rec.Attempts,
		&payload, &rec.DeadLetteredAt, &rec.ArchivedAt, &replayedAt, &replayedBy,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(payload, &rec.Payload); err != nil {
		return nil, fmt.Errorf("failed to decode payload of %s: %w", rec.ID, err)
	}
	if replayedAt.Valid {
		t := replayedAt.Time
		rec.ReplayedAt = &t
	}
	rec.ReplayedBy = replayedBy.String
	return &rec, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (rec *Record, err error) {
	defer func(start time.Time) { observe("get", start, err) }(time.Now())

	if _, perr := uuid.Parse(id); perr != nil {
		return nil, notFound(id)
	}

	row := r.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM dead_letters WHERE id = $1`, id)
	rec, err = scanRecord(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get dead letter: %w", err)
	}
	return rec, nil
}

func (r *PostgresRepository) List(ctx context.Context, filter ListFilter) (records []Record, err error) {
	defer func(start time.Time) { observe("list", start, err) }(time.Now())

	query := `SELECT ` + selectColumns + ` FROM dead_letters`
	if filter.PendingOnly {
		query += ` WHERE replayed_at IS NULL`
	}
	query += ` ORDER BY dead_lettered_at DESC LIMIT $1 OFFSET $2`

	rows, err := r.db.QueryContext(ctx, query, filter.Limit, filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list dead letters: %w", err)
	}
	defer rows.Close()

	records = make([]Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan dead letter: %w", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list dead letters: %w", err)
	}
	return records, nil
}

func (r *PostgresRepository) MarkReplayed(ctx context.Context, id, actor string, at time.Time) (err error) {
	defer func(start time.Time) { observe("mark_replayed", start, err) }(time.Now())

	res, err := r.db.ExecContext(ctx,
		`UPDATE dead_letters SET replayed_at = $2, replayed_by = $3 WHERE id = $1 AND replayed_at IS NULL`,
		id, at, actor,
	)
	if err != nil {
		return fmt.Errorf("failed to mark dead letter replayed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to mark dead letter replayed: %w", err)
	}
	if n == 0 {
		if _, err := r.Get(ctx, id); err != nil {
			return err
		}
		return alreadyReplayed(id)
	}
	return nil
}

func (r *PostgresRepository) UnmarkReplayed(ctx context.Context, id string) (err error) {
	defer func(start time.Time) { observe("unmark_replayed", start, err) }(time.Now())

	if _, err := r.db.ExecContext(ctx, `UPDATE dead_letters SET replayed_at = NULL, replayed_by = NULL WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to reset dead letter replay: %w", err)
	}
	return nil
}

func notFound(id string) error {
	return errors.ErrNotFound.WithDetail("message", fmt.Sprintf("dead letter %s not found", id))
}

func alreadyReplayed(id string) error {
	return errors.ErrConflict.WithDetail("message", fmt.Sprintf("dead letter %s was already replayed", id))
}
