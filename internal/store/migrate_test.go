package store

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"
)

func TestParseMigrations_OrderAndFilter(t *testing.T) {
	fsys := fstest.MapFS{
		"migrations/0002_indexes.sql": {Data: []byte("CREATE INDEX x ON t(a);")},
		"migrations/0001_init.sql":    {Data: []byte("CREATE TABLE t(a INT);")},
		"migrations/README.md":        {Data: []byte("ignored")},
	}
	m := NewMigrator(fsys, "migrations")

	migs, err := m.ParseMigrations()
	require.NoError(t, err)
	require.Len(t, migs, 2)
	require.Equal(t, 1, migs[0].Version)
	require.Equal(t, "init", migs[0].Name)
	require.Equal(t, 2, migs[1].Version)
	require.Contains(t, migs[1].SQL, "CREATE INDEX")
}

func TestParseMigrations_DuplicateVersion(t *testing.T) {
	fsys := fstest.MapFS{
		"migrations/0001_a.sql": {Data: []byte("SELECT 1;")},
		"migrations/1_b.sql":    {Data: []byte("SELECT 2;")},
	}
	_, err := NewMigrator(fsys, "migrations").ParseMigrations()
	require.Error(t, err)
}
