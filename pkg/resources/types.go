package resources

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var _ DBInstance = (*pgxpool.Pool)(nil)

// DBInstance is the part of a pgx pool the repositories use.
type DBInstance interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

type Closable interface {
	Close()
}

// StopFn releases a resource, giving up after timeout.
type StopFn func(ctx context.Context, timeout time.Duration)

func noopStop(context.Context, time.Duration) {}
