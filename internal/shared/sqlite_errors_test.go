package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsSQLiteConflictError(t *testing.T) {
	assert.False(t, IsSQLiteConflictError(nil))
	assert.False(t, IsSQLiteConflictError(errors.New("no such table: exchanges")))

	busy := fmt.Errorf("insert exchange: %w", errors.New("database is locked (5) (SQLITE_BUSY)"))
	assert.True(t, IsSQLiteBusyError(busy))
	assert.True(t, IsSQLiteLockedError(busy))
	assert.True(t, IsSQLiteConflictError(busy))

	assert.True(t, IsSQLiteConflictError(errors.New("database is locked")))
}
