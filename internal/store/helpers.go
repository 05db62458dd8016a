package store

import (
	"database/sql"
	"fmt"
)

// checkAffectedRows turns an update that touched nothing into sql.ErrNoRows.
func checkAffectedRows(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if rowsAffected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
