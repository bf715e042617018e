package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedSQLite(t *testing.T, s *SQLiteSource) {
	t.Helper()

	queries := []string{
		`CREATE TABLE email_table (
			email_id INTEGER,
			email_text TEXT,
			email_version TEXT,
			hour INTEGER,
			weekday TEXT,
			user_country TEXT,
			user_past_purchases INTEGER
		)`,
		`CREATE TABLE email_opened_table (email_id INTEGER)`,
		`CREATE TABLE link_clicked_table (email_id INTEGER)`,
		`INSERT INTO email_table VALUES
			(85120, 'short_email', 'personalized', 2, 'Sunday', 'US', 5),
			(966622, 'long_email', 'personalized', 12, 'Sunday', 'UK', 2),
			(777221, 'long_email', 'personalized', 11, 'Wednesday', 'US', 2)`,
		`INSERT INTO email_opened_table VALUES (966622), (777221)`,
		`INSERT INTO link_clicked_table VALUES (966622)`,
	}

	for _, q := range queries {
		_, err := s.db.Exec(q)
		require.NoError(t, err)
	}
}

func TestSQLiteSource_LoadTables(t *testing.T) {
	ctx := context.Background()
	store, err := NewSQLiteSource(":memory:")
	require.NoError(t, err)
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			t.Logf("Failed to close store: %v", closeErr)
		}
	}()
	seedSQLite(t, store)

	ds, err := store.LoadTables(ctx)
	require.NoError(t, err)

	assert.Equal(t, 3, ds.Emails.Len())
	assert.Equal(t, 2, ds.Opened.Len())
	assert.Equal(t, 1, ds.Clicked.Len())

	// Same tables as the CSV fixture.
	fromCSV, err := ReadCSV("email_table", strings.NewReader(sampleEmails))
	require.NoError(t, err)
	assert.Equal(t, fromCSV.Columns, ds.Emails.Columns)
	assert.Equal(t, fromCSV.Rows, ds.Emails.Rows)
}

func TestSQLiteSource_NullCells(t *testing.T) {
	store, err := NewSQLiteSource(":memory:")
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	_, err = store.db.Exec(`CREATE TABLE email_table (email_id INTEGER, weekday TEXT)`)
	require.NoError(t, err)
	_, err = store.db.Exec(`INSERT INTO email_table VALUES (1, NULL)`)
	require.NoError(t, err)

	table, err := store.ReadTable(context.Background(), "email_table")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"1", ""}}, table.Rows)
}

func TestSQLiteSource_Errors(t *testing.T) {
	t.Run("missing database file", func(t *testing.T) {
		_, err := NewSQLiteSource(filepath.Join(t.TempDir(), "absent.db"))
		require.Error(t, err)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("empty path", func(t *testing.T) {
		_, err := NewSQLiteSource("  ")
		assert.ErrorIs(t, err, ErrEmptyString)
	})

	t.Run("invalid table name", func(t *testing.T) {
		store, err := NewSQLiteSource(":memory:")
		require.NoError(t, err)
		defer func() { _ = store.Close() }()

		_, err = store.ReadTable(context.Background(), `email_table"; DROP TABLE x; --`)
		assert.ErrorIs(t, err, ErrInvalidTable)
	})

	t.Run("missing table", func(t *testing.T) {
		store, err := NewSQLiteSource(":memory:")
		require.NoError(t, err)
		defer func() { _ = store.Close() }()

		_, err = store.LoadTables(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "email_table")
	})
}
