package database

import (
	"context"
	"database/sql"
	"fmt"
)

// Gateway executes units of work against the pool. Reads go straight to DB;
// writes go through WithTx so a failure at any step rolls back the whole
// operation.
type Gateway struct {
	DB *sql.DB
}

func NewGateway(db *sql.DB) *Gateway { return &Gateway{DB: db} }

// WithTx begins a transaction, runs fn, and commits when fn returns nil.
// Any error from fn, or a panic, rolls the transaction back.
func (g *Gateway) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := g.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	committed = true
	return nil
}
