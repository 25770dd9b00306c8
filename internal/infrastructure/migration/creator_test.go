package migration

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"create interview sessions", "create_interview_sessions"},
		{"Create-Interview-Sessions", "create_interview_sessions"},
		{"ADD_ABANDON_REASON", "add_abandon_reason"},
		{"add__knowledge__chunks", "add_knowledge_chunks"},
		{"Add Column 42", "add_column_42"},
		{"   spaces   ", "spaces"},
		{"special!@#$chars", "specialchars"},
		{"trailing_", "trailing"},
		{"_leading", "leading"},
		{"", ""},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.expected, sanitizeName(tc.input), "input %q", tc.input)
	}
}

func TestCreateMigration(t *testing.T) {
	dir := t.TempDir()

	mf, err := CreateMigration(dir, "add intake channel", "Add intake channel column")
	require.NoError(t, err)

	assert.Len(t, mf.Version, 14)
	assert.Equal(t, "add intake channel", mf.Name)
	assert.Contains(t, mf.UpPath, "_add_intake_channel.up.sql")
	assert.Contains(t, mf.DownPath, "_add_intake_channel.down.sql")

	up, err := os.ReadFile(mf.UpPath)
	require.NoError(t, err)
	assert.Contains(t, string(up), "-- Migration: add intake channel")
	assert.Contains(t, string(up), "-- Description: Add intake channel column")
	assert.Contains(t, string(up), "UP migration")

	down, err := os.ReadFile(mf.DownPath)
	require.NoError(t, err)
	assert.Contains(t, string(down), "(rollback)")
	assert.Contains(t, string(down), "Rollback for Add intake channel column")
}

func TestCreateMigration_CreatesDirectory(t *testing.T) {
	dir := t.TempDir() + "/not/yet/there"

	mf, err := CreateMigration(dir, "first", "")
	require.NoError(t, err)

	_, err = os.Stat(mf.UpPath)
	assert.NoError(t, err)
}

func TestListMigrations(t *testing.T) {
	t.Run("missing directory is an empty list", func(t *testing.T) {
		migrations, err := ListMigrations(t.TempDir() + "/absent")
		require.NoError(t, err)
		assert.Empty(t, migrations)
	})

	t.Run("returns up/down pairs once, sorted by version", func(t *testing.T) {
		dir := t.TempDir()
		for _, name := range []string{
			"20250101000000_create_interview_sessions.up.sql",
			"20250101000000_create_interview_sessions.down.sql",
			"20250201000000_add_knowledge_chunks.up.sql",
			"20250201000000_add_knowledge_chunks.down.sql",
			"notes.txt",
		} {
			require.NoError(t, os.WriteFile(dir+"/"+name, []byte("-- sql"), 0o644))
		}

		migrations, err := ListMigrations(dir)
		require.NoError(t, err)
		require.Len(t, migrations, 2)
		assert.Equal(t, "20250101000000_create_interview_sessions", migrations[0])
		assert.Equal(t, "20250201000000_add_knowledge_chunks", migrations[1])
		for _, m := range migrations {
			assert.False(t, strings.HasSuffix(m, ".sql"))
		}
	})
}
