package migrations

import (
	"context"
	"database/sql"
)

// AddIndexAmounts records each document's amount as it was before a
// percentage indexation, so reversing the entry restores it exactly.
func AddIndexAmounts(ctx context.Context, tx *sql.Tx) error {
	return execAll(ctx, tx, []string{
		`CREATE TABLE IF NOT EXISTS index_amounts (
			index_id TEXT NOT NULL REFERENCES index_history(id) ON DELETE CASCADE,
			document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
			amount_cents BIGINT NOT NULL,
			PRIMARY KEY (index_id, document_id)
		)`,
	})
}
