package booking

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists bookings and their audit logs.
type Repository interface {
	Create(ctx context.Context, b *Booking) error
	// GetByID returns the booking with its full log, oldest entry first.
	GetByID(ctx context.Context, id string) (*Booking, error)
	List(ctx context.Context, filter Filter) ([]*Booking, int, error)
	// ListActiveForLab returns bookings on labID that still hold their slot
	// at now, ordered by start time then id.
	ListActiveForLab(ctx context.Context, labID, excludeID string, now time.Time) ([]*Booking, error)
	Update(ctx context.Context, id string, f Fields) error
	AppendLog(ctx context.Context, entry *LogEntry) error

	// RunInTx runs fn while holding an exclusive lock on each lab in labIDs.
	// Writes made through the repository passed to fn commit together.
	RunInTx(ctx context.Context, labIDs []string, fn func(repo Repository) error) error
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type pgxRepository struct {
	pool *pgxpool.Pool
	q    querier
	inTx bool
}

func NewPgxRepository(pool *pgxpool.Pool) Repository {
	return &pgxRepository{pool: pool, q: pool}
}

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

var bookingColumns = []string{
	"id", "lab_id", "requester_id", "requester_name", "requester_role", "subject",
	"start_time", "end_time", "system_count", "status", "override", "created_at", "updated_at",
}

func scanBooking(row pgx.Row, extra ...any) (*Booking, error) {
	var b Booking
	dest := []any{
		&b.ID, &b.LabID, &b.Requester.ID, &b.Requester.Name, &b.Requester.Role, &b.Subject,
		&b.StartTime, &b.EndTime, &b.SystemCount, &b.Status, &b.Override, &b.CreatedAt, &b.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	return &b, nil
}

// mapWriteError turns a violation of the no-overlap exclusion constraint
// into a scheduling conflict.
func mapWriteError(err error, op string) error {
	var e *pgconn.PgError
	if errors.As(err, &e) && e.Code == pgerrcode.ExclusionViolation {
		return conflictError(nil, "the requested slot was taken by a concurrent booking")
	}
	return fmt.Errorf("%s booking failed: %w", op, err)
}

func (r *pgxRepository) Create(ctx context.Context, b *Booking) error {
	query, args, err := psql.Insert("public.bookings").
		Columns(
			"lab_id", "requester_id", "requester_name", "requester_role", "subject",
			"start_time", "end_time", "system_count", "status", "override",
		).
		Values(
			b.LabID, b.Requester.ID, b.Requester.Name, b.Requester.Role, b.Subject,
			b.StartTime, b.EndTime, b.SystemCount, b.Status, b.Override,
		).
		Suffix("RETURNING id, created_at, updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build create booking query failed: %w", err)
	}

	if err := r.q.QueryRow(ctx, query, args...).Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return mapWriteError(err, "create")
	}
	return nil
}

func (r *pgxRepository) GetByID(ctx context.Context, id string) (*Booking, error) {
	q := psql.Select(bookingColumns...).
		From("public.bookings").
		Where(squirrel.Eq{"id": id})
	// Inside a transaction the row stays locked until commit, so two
	// concurrent transitions on one booking cannot both read PENDING.
	if r.inTx {
		q = q.Suffix("FOR UPDATE")
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get booking query failed: %w", err)
	}

	b, err := scanBooking(r.q.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFoundError()
		}
		return nil, fmt.Errorf("get booking failed: %w", err)
	}

	logs, err := r.listLogs(ctx, b.ID)
	if err != nil {
		return nil, err
	}
	b.Logs = logs
	return b, nil
}

func (r *pgxRepository) listLogs(ctx context.Context, bookingID string) ([]LogEntry, error) {
	query, args, err := psql.Select("id", "booking_id", "action", "actor_id", "actor_name", "COALESCE(detail, '')", "created_at").
		From("public.booking_logs").
		Where(squirrel.Eq{"booking_id": bookingID}).
		OrderBy("id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list booking logs query failed: %w", err)
	}

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list booking logs failed: %w", err)
	}
	defer rows.Close()

	var logs []LogEntry
	for rows.Next() {
		var e LogEntry
		if err := rows.Scan(&e.ID, &e.BookingID, &e.Action, &e.ActorID, &e.ActorName, &e.Detail, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan booking log failed: %w", err)
		}
		logs = append(logs, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate booking logs failed: %w", err)
	}
	return logs, nil
}

// statusPredicate translates an effective status into stored columns.
func statusPredicate(status Status, now time.Time) squirrel.Sqlizer {
	switch status {
	case StatusApproved:
		return squirrel.And{
			squirrel.Eq{"status": StatusApproved},
			squirrel.GtOrEq{"end_time": now},
		}
	case StatusCompleted:
		return squirrel.Or{
			squirrel.Eq{"status": StatusCompleted},
			squirrel.And{
				squirrel.Eq{"status": StatusApproved},
				squirrel.Lt{"end_time": now},
			},
		}
	default:
		return squirrel.Eq{"status": status}
	}
}

func (r *pgxRepository) List(ctx context.Context, filter Filter) ([]*Booking, int, error) {
	cols := append(append([]string{}, bookingColumns...), "count(*) OVER() AS total_count")
	q := psql.Select(cols...).From("public.bookings")

	if filter.RequesterID != "" {
		q = q.Where(squirrel.Eq{"requester_id": filter.RequesterID})
	}
	if filter.LabID != "" {
		q = q.Where(squirrel.Eq{"lab_id": filter.LabID})
	}
	if filter.Status != "" {
		q = q.Where(statusPredicate(filter.Status, filter.Now))
	}
	// Date range filtering (intersection logic)
	if filter.From != nil {
		q = q.Where(squirrel.Gt{"end_time": *filter.From})
	}
	if filter.To != nil {
		q = q.Where(squirrel.Lt{"start_time": *filter.To})
	}

	orderDir := "DESC"
	if filter.SortOrder == "ASC" {
		orderDir = "ASC"
	}
	q = q.OrderBy("start_time "+orderDir, "id "+orderDir)

	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = 20
	}
	offset := (filter.Page - 1) * filter.PageSize
	q = q.Limit(uint64(filter.PageSize)).Offset(uint64(offset))

	query, args, err := q.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build list bookings query failed: %w", err)
	}

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list bookings failed: %w", err)
	}
	defer rows.Close()

	var bookings []*Booking
	var total int
	for rows.Next() {
		b, err := scanBooking(rows, &total)
		if err != nil {
			return nil, 0, fmt.Errorf("scan booking failed: %w", err)
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate bookings failed: %w", err)
	}

	return bookings, total, nil
}

func (r *pgxRepository) ListActiveForLab(ctx context.Context, labID, excludeID string, now time.Time) ([]*Booking, error) {
	q := psql.Select(bookingColumns...).
		From("public.bookings").
		Where(squirrel.Eq{"lab_id": labID}).
		Where(squirrel.Or{
			squirrel.Eq{"status": StatusPending},
			squirrel.And{
				squirrel.Eq{"status": StatusApproved},
				squirrel.GtOrEq{"end_time": now},
			},
		}).
		OrderBy("start_time ASC", "id ASC")
	if excludeID != "" {
		q = q.Where(squirrel.NotEq{"id": excludeID})
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list active bookings query failed: %w", err)
	}

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list active bookings failed: %w", err)
	}
	defer rows.Close()

	var bookings []*Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking failed: %w", err)
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate active bookings failed: %w", err)
	}
	return bookings, nil
}

func (r *pgxRepository) Update(ctx context.Context, id string, f Fields) error {
	q := psql.Update("public.bookings").
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": id})

	if f.LabID != nil {
		q = q.Set("lab_id", *f.LabID)
	}
	if f.Subject != nil {
		q = q.Set("subject", *f.Subject)
	}
	if f.StartTime != nil {
		q = q.Set("start_time", *f.StartTime)
	}
	if f.EndTime != nil {
		q = q.Set("end_time", *f.EndTime)
	}
	if f.SystemCount != nil {
		q = q.Set("system_count", *f.SystemCount)
	}
	if f.Status != nil {
		q = q.Set("status", *f.Status)
	}
	if f.Override != nil {
		q = q.Set("override", *f.Override)
	}

	query, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update booking query failed: %w", err)
	}

	ct, err := r.q.Exec(ctx, query, args...)
	if err != nil {
		return mapWriteError(err, "update")
	}
	if ct.RowsAffected() == 0 {
		return notFoundError()
	}
	return nil
}

func (r *pgxRepository) AppendLog(ctx context.Context, entry *LogEntry) error {
	query, args, err := psql.Insert("public.booking_logs").
		Columns("booking_id", "action", "actor_id", "actor_name", "detail", "created_at").
		Values(entry.BookingID, entry.Action, entry.ActorID, entry.ActorName, entry.Detail, entry.CreatedAt).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return fmt.Errorf("build append booking log query failed: %w", err)
	}

	if err := r.q.QueryRow(ctx, query, args...).Scan(&entry.ID); err != nil {
		return fmt.Errorf("append booking log failed: %w", err)
	}
	return nil
}

func (r *pgxRepository) RunInTx(ctx context.Context, labIDs []string, fn func(repo Repository) error) error {
	if r.inTx {
		return fn(r)
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin booking transaction failed: %w", err)
	}
	// Rollback after Commit is a no-op.
	defer func() { _ = tx.Rollback(ctx) }()

	// Locks are taken in sorted order so two transactions spanning the same
	// labs cannot deadlock.
	for _, id := range sortedUnique(labIDs) {
		if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock(hashtextextended($1, 0))", id); err != nil {
			return fmt.Errorf("lock lab %s failed: %w", id, err)
		}
	}

	if err := fn(&pgxRepository{pool: r.pool, q: tx, inTx: true}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return mapWriteError(err, "commit")
	}
	return nil
}

func sortedUnique(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
