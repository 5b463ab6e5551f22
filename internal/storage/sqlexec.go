package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// ExecSQL submits st through a database/sql handle. A composite literal is
// sent as one ExecContext call; bound queries run inside a single
// transaction so a batch lands (or fails) as one unit, like its literal
// counterpart.
func ExecSQL(ctx context.Context, db *sql.DB, st Statement) error {
	if !st.Bound() {
		if st.SQL == "" {
			return nil
		}
		_, err := db.ExecContext(ctx, st.SQL)
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	for i, q := range st.Queries {
		if _, err := tx.ExecContext(ctx, q.SQL, q.Args...); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("row %d: %w", i+1, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
