package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// Identifier prefixes. Each prefix is also the namespace of its row in
// id_sequences.
const (
	PrefixGuest       = "G"
	PrefixDesignation = "GDS"
	PrefixInOut       = "GIO"
	PrefixRoom        = "R"
	PrefixGuestRoom   = "GR"
	PrefixStaff       = "S"
	PrefixUser        = "U"
	PrefixRole        = "ROLE"
	PrefixActivity    = "ACT"
)

const (
	defaultIDWidth  = 3
	activityIDWidth = 5

	sequenceUpsertSQL  = `INSERT INTO id_sequences (namespace, last_value) VALUES (?, LAST_INSERT_ID(1)) ON DUPLICATE KEY UPDATE last_value = LAST_INSERT_ID(last_value + 1)`
	sequenceCurrentSQL = `SELECT LAST_INSERT_ID()`
)

// SequenceRepo hands out human-readable identifiers. The counter row is
// incremented inside the caller's transaction, so the id and the insert
// that uses it commit or roll back together and concurrent callers are
// serialized on the counter row lock.
type SequenceRepo struct{}

func NewSequenceRepo() *SequenceRepo { return &SequenceRepo{} }

// NextTx returns the next identifier for prefix, zero padded to the
// namespace's width.
func (r *SequenceRepo) NextTx(ctx context.Context, tx *sql.Tx, prefix string) (string, error) {
	if _, err := tx.ExecContext(ctx, sequenceUpsertSQL, prefix); err != nil {
		return "", fmt.Errorf("advance sequence %s: %w", prefix, err)
	}
	var n int64
	if err := tx.QueryRowContext(ctx, sequenceCurrentSQL).Scan(&n); err != nil {
		return "", fmt.Errorf("read sequence %s: %w", prefix, err)
	}
	return FormatID(prefix, n), nil
}

// FormatID renders prefix followed by n padded to the namespace width.
// Numbers wider than the width are printed in full.
func FormatID(prefix string, n int64) string {
	width := defaultIDWidth
	if prefix == PrefixActivity {
		width = activityIDWidth
	}
	return fmt.Sprintf("%s%0*d", prefix, width, n)
}
