package lab

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Registry is the read side of the lab catalogue used by bookings.
type Registry interface {
	GetByID(ctx context.Context, id string) (*Lab, error)
	List(ctx context.Context, filter Filter) ([]*Lab, int, error)
}

// Repository is the full lab store.
type Repository interface {
	Registry
	Create(ctx context.Context, l *Lab) error
	Update(ctx context.Context, l *Lab) error
}

type pgxRepository struct {
	pool *pgxpool.Pool
}

func NewPgxRepository(pool *pgxpool.Pool) Repository {
	return &pgxRepository{pool: pool}
}

func (r *pgxRepository) Create(ctx context.Context, l *Lab) error {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	cols := []string{"name", "capacity", "status", "maintenance_until"}
	vals := []any{l.Name, l.Capacity, l.Status, l.MaintenanceUntil}
	if l.ID != "" {
		cols = append(cols, "id")
		vals = append(vals, l.ID)
	}

	query, args, err := psql.Insert("public.labs").
		Columns(cols...).
		Values(vals...).
		Suffix("RETURNING id, created_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build create lab query failed: %w", err)
	}

	if err := r.pool.QueryRow(ctx, query, args...).Scan(&l.ID, &l.CreatedAt); err != nil {
		return fmt.Errorf("create lab failed: %w", err)
	}
	return nil
}

func (r *pgxRepository) GetByID(ctx context.Context, id string) (*Lab, error) {
	const query = `
		SELECT id, name, capacity, status, maintenance_until, created_at
		FROM public.labs
		WHERE id = $1
	`
	row := r.pool.QueryRow(ctx, query, id)

	var l Lab
	if err := row.Scan(&l.ID, &l.Name, &l.Capacity, &l.Status, &l.MaintenanceUntil, &l.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get lab failed: %w", err)
	}
	return &l, nil
}

func (r *pgxRepository) List(ctx context.Context, filter Filter) ([]*Lab, int, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	q := psql.Select("id", "name", "capacity", "status", "maintenance_until", "created_at", "count(*) OVER() AS total_count").
		From("public.labs")

	if filter.Status != "" {
		q = q.Where(squirrel.Eq{"status": filter.Status})
	}

	order := "ASC"
	if filter.SortOrder == "DESC" {
		order = "DESC"
	}
	q = q.OrderBy("name "+order, "id "+order)

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
		return nil, 0, fmt.Errorf("build list labs query failed: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list labs failed: %w", err)
	}
	defer rows.Close()

	var result []*Lab
	var total int

	for rows.Next() {
		var l Lab
		if err := rows.Scan(
			&l.ID, &l.Name, &l.Capacity, &l.Status, &l.MaintenanceUntil, &l.CreatedAt, &total,
		); err != nil {
			return nil, 0, fmt.Errorf("scan lab failed: %w", err)
		}
		result = append(result, &l)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate labs failed: %w", err)
	}

	return result, total, nil
}

func (r *pgxRepository) Update(ctx context.Context, l *Lab) error {
	const query = `
		UPDATE public.labs
		SET name = $1, capacity = $2, status = $3, maintenance_until = $4
		WHERE id = $5
	`
	ct, err := r.pool.Exec(ctx, query, l.Name, l.Capacity, l.Status, l.MaintenanceUntil, l.ID)
	if err != nil {
		return fmt.Errorf("update lab failed: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
