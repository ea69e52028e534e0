package migrations

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestGetMigrator tests that the migrator singleton is created once
func TestGetMigrator(t *testing.T) {
	m, err := getMigrator()
	require.NoError(t, err, "Should create migrator instance")
	require.NotNil(t, m, "Should create migrator instance")

	m2, err2 := getMigrator()
	require.NoError(t, err2)
	assert.Equal(t, m, m2, "Should return same migrator instance (singleton)")
}
