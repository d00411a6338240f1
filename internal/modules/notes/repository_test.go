package notes

import (
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS stock_notes (
			user_id TEXT NOT NULL,
			ticker TEXT NOT NULL,
			note_text TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (user_id, ticker)
		);
	`)
	require.NoError(t, err)

	return db
}

func newTestRepo(t *testing.T) (*Repository, *sql.DB) {
	t.Helper()
	db := setupTestDB(t)
	return NewRepository(db, zerolog.New(nil).Level(zerolog.Disabled)), db
}

func TestNotes_GetWithoutNote(t *testing.T) {
	repo, db := newTestRepo(t)
	defer db.Close()

	note, err := repo.Get("user-1", "petr4")
	require.NoError(t, err)
	require.NotNil(t, note)
	assert.Equal(t, "PETR4", note.Ticker)
	assert.Empty(t, note.NoteText)
	assert.Nil(t, note.UpdatedAt, "never-saved note carries no timestamp")
}

func TestNotes_SaveAndGet(t *testing.T) {
	repo, db := newTestRepo(t)
	defer db.Close()

	saved, err := repo.Save("user-1", "petr4", "comprar abaixo de 30")
	require.NoError(t, err)
	assert.Equal(t, "PETR4", saved.Ticker)
	require.NotNil(t, saved.UpdatedAt)

	note, err := repo.Get("user-1", "PETR4")
	require.NoError(t, err)
	assert.Equal(t, "comprar abaixo de 30", note.NoteText)
	assert.Equal(t, *saved.UpdatedAt, *note.UpdatedAt)
}

func TestNotes_SaveReplacesExisting(t *testing.T) {
	repo, db := newTestRepo(t)
	defer db.Close()

	first := time.Date(2024, 10, 21, 10, 0, 0, 0, time.UTC)
	second := time.Date(2024, 10, 23, 10, 0, 0, 0, time.UTC)

	repo.now = func() time.Time { return first }
	_, err := repo.Save("user-1", "PETR4", "primeira")
	require.NoError(t, err)

	repo.now = func() time.Time { return second }
	_, err = repo.Save("user-1", "PETR4", "segunda")
	require.NoError(t, err)

	note, err := repo.Get("user-1", "PETR4")
	require.NoError(t, err)
	assert.Equal(t, "segunda", note.NoteText)
	require.NotNil(t, note.UpdatedAt)
	assert.Equal(t, second.Format(time.RFC3339), *note.UpdatedAt)

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM stock_notes").Scan(&count))
	assert.Equal(t, 1, count, "replace, not duplicate")
}

func TestNotes_SaveEmptyTextClears(t *testing.T) {
	repo, db := newTestRepo(t)
	defer db.Close()

	_, err := repo.Save("user-1", "PETR4", "algo")
	require.NoError(t, err)

	_, err = repo.Save("user-1", "PETR4", "")
	require.NoError(t, err)

	note, err := repo.Get("user-1", "PETR4")
	require.NoError(t, err)
	assert.Empty(t, note.NoteText)
	assert.NotNil(t, note.UpdatedAt, "cleared note keeps its row")
}

func TestNotes_PerUserIsolation(t *testing.T) {
	repo, db := newTestRepo(t)
	defer db.Close()

	_, err := repo.Save("user-1", "PETR4", "minha nota")
	require.NoError(t, err)

	note, err := repo.Get("user-2", "PETR4")
	require.NoError(t, err)
	assert.Empty(t, note.NoteText)
	assert.Nil(t, note.UpdatedAt)
}

func TestNotes_RequiredFields(t *testing.T) {
	repo, db := newTestRepo(t)
	defer db.Close()

	_, err := repo.Get("", "PETR4")
	require.Error(t, err)

	_, err = repo.Save("user-1", "  ", "texto")
	require.Error(t, err)
}
