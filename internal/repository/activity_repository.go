package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/guesthouse-admin/internal/model"
)

// ActivityRepo appends to t_activity_log.
type ActivityRepo struct {
	seq *SequenceRepo
}

func NewActivityRepo(seq *SequenceRepo) *ActivityRepo { return &ActivityRepo{seq: seq} }

// AppendTx writes one audit entry inside the caller's transaction.
func (r *ActivityRepo) AppendTx(ctx context.Context, tx *sql.Tx, module, action, refID, message string, a model.Actor) error {
	id, err := r.seq.NextTx(ctx, tx, PrefixActivity)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO t_activity_log
		(activity_id, module, action, reference_id, message, performed_by, ip)
		VALUES (?, ?, ?, ?, ?, ?, ?)`, id, module, action, refID, message, a.UserID, a.IP)
	return err
}
