// Package storage implements the kernel's Storage interface on top of
// PostgreSQL via bun, mirroring the teacher's BunStore shape one table per
// domain entity.
package storage

import (
	"context"
	"database/sql"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/agentmesh/kernel/internal/domain"
)

// BunStore implements domain.Storage against a single PostgreSQL database.
type BunStore struct {
	db *bun.DB
}

var _ domain.Storage = (*BunStore)(nil)

// NewBunStore opens a connection pool against dsn and wraps it with bun's
// Postgres dialect.
func NewBunStore(dsn string) *BunStore {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	return &BunStore{db: db}
}

// InitSchema creates every table the kernel needs if it does not already
// exist.
func (s *BunStore) InitSchema(ctx context.Context) error {
	models := []interface{}{
		(*agentModel)(nil),
		(*hierarchyEdgeModel)(nil),
		(*budgetAccountModel)(nil),
		(*messageModel)(nil),
		(*workspaceModel)(nil),
		(*workflowGraphModel)(nil),
		(*workflowNodeModel)(nil),
	}
	for _, model := range models {
		if _, err := s.db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}

// txKey is an unexported type so the transaction stashed in a context by
// BeginTransaction can never collide with a key from another package.
type txKey struct{}

// conn returns the *bun.Tx stashed in ctx by BeginTransaction, or the plain
// *bun.DB if no transaction is active. Every repository method goes through
// this so it transparently participates in a caller's transaction.
func (s *BunStore) conn(ctx context.Context) bun.IDB {
	if tx, ok := ctx.Value(txKey{}).(bun.Tx); ok {
		return tx
	}
	return s.db
}

// BeginTransaction starts a transaction and returns a context carrying it;
// every repository call made with the returned context runs inside it.
func (s *BunStore) BeginTransaction(ctx context.Context) (context.Context, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ctx, err
	}
	return context.WithValue(ctx, txKey{}, tx), nil
}

// CommitTransaction commits the transaction carried by ctx, a no-op if none
// is present.
func (s *BunStore) CommitTransaction(ctx context.Context) error {
	tx, ok := ctx.Value(txKey{}).(bun.Tx)
	if !ok {
		return nil
	}
	return tx.Commit()
}

// RollbackTransaction rolls back the transaction carried by ctx, a no-op if
// none is present.
func (s *BunStore) RollbackTransaction(ctx context.Context) error {
	tx, ok := ctx.Value(txKey{}).(bun.Tx)
	if !ok {
		return nil
	}
	return tx.Rollback()
}

// Ping verifies the database connection is reachable.
func (s *BunStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the underlying connection pool.
func (s *BunStore) Close() error {
	return s.db.Close()
}
