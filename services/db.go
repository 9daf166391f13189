package services

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"friendZoneAPI/internal/types/notification"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx so helpers can run
// inside or outside a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ChangeNotifier is told which owners' views changed after a write commits.
type ChangeNotifier interface {
	OwnersChanged(ctx context.Context, ownerIDs ...string)
}

// PushQueue accepts pushes for asynchronous delivery.
type PushQueue interface {
	Enqueue(push notification.Push) bool
}

type noopNotifier struct{}

func (noopNotifier) OwnersChanged(context.Context, ...string) {}

func orNoop(n ChangeNotifier) ChangeNotifier {
	if n == nil {
		return noopNotifier{}
	}
	return n
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
