package repository

import (
	"fmt"

	"gorm.io/gorm"
)

const nextSequenceSQL = `
INSERT INTO document_sequences (scope, value, created_at, updated_at)
VALUES (?, 1, NOW(), NOW())
ON CONFLICT (scope) DO UPDATE
SET value = document_sequences.value + 1, updated_at = NOW()
RETURNING value`

// nextSequence bumps the counter of scope and returns the new value.
// Inside a transaction the row stays locked until commit, and a rollback
// returns the number to the pool.
func nextSequence(tx *gorm.DB, scope string) (int64, error) {
	var value int64
	if err := tx.Raw(nextSequenceSQL, scope).Scan(&value).Error; err != nil {
		return 0, fmt.Errorf("failed to allocate number in %s: %w", scope, err)
	}
	return value, nil
}
