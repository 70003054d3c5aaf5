package storage

import (
	"context"
	"database/sql"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
)

func newMockRepo(t *testing.T, dollar bool) (*SQLRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewSQLRepository(db, dollar), mock
}

func TestRebind(t *testing.T) {
	repo := &SQLRepository{dollar: true}
	got := repo.rebind(`SELECT a FROM t WHERE x = ? AND y = ?`)
	want := `SELECT a FROM t WHERE x = $1 AND y = $2`
	if got != want {
		t.Errorf("rebind = %q, want %q", got, want)
	}

	plain := &SQLRepository{dollar: false}
	q := `SELECT a FROM t WHERE x = ?`
	if plain.rebind(q) != q {
		t.Error("sqlite rebind must be identity")
	}
}

func TestGetUserMissReturnsNil(t *testing.T) {
	repo, mock := newMockRepo(t, true)
	mock.ExpectQuery(`SELECT id, username, encryption_key, temperature, created_at FROM users`).
		WithArgs(int64(42)).
		WillReturnError(sql.ErrNoRows)

	user, err := repo.GetUser(context.Background(), 42)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if user != nil {
		t.Errorf("miss should be nil, got %+v", user)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestGetEncryptedMemoryMiss(t *testing.T) {
	repo, mock := newMockRepo(t, true)
	mock.ExpectQuery(`SELECT encrypted_memory FROM users`).
		WithArgs(int64(7)).
		WillReturnError(sql.ErrNoRows)

	blob, err := repo.GetEncryptedMemory(context.Background(), 7)
	if err != nil || blob != "" {
		t.Errorf("miss: got %q, %v, want empty, nil", blob, err)
	}
}

func TestSetPreferenceUpsert(t *testing.T) {
	repo, mock := newMockRepo(t, true)
	mock.ExpectExec(`INSERT INTO preferences .*ON CONFLICT`).
		WithArgs(int64(1), "communication", "preferred_language", `"German"`, 0.95, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.SetPreference(context.Background(), 1, "communication", "preferred_language", "German", 0.95)
	if err != nil {
		t.Fatalf("SetPreference: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestEnsureEncryptionKeyRace(t *testing.T) {
	repo, mock := newMockRepo(t, true)

	// First read finds no key, the conditional update loses the race, and the
	// winning writer's key is reloaded.
	mock.ExpectQuery(`SELECT encryption_key FROM users`).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"encryption_key"}).AddRow(""))
	mock.ExpectExec(`UPDATE users SET encryption_key`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT encryption_key FROM users`).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"encryption_key"}).AddRow("winner-key"))

	key, err := repo.EnsureEncryptionKey(context.Background(), 3)
	if err != nil {
		t.Fatalf("EnsureEncryptionKey: %v", err)
	}
	if key != "winner-key" {
		t.Errorf("key = %q, want winner-key", key)
	}
}

func TestGetLegacyMessages(t *testing.T) {
	repo, mock := newMockRepo(t, true)
	raw := `[{"role":"user","content":"hi","type":"ai","timestamp":"2025-01-02T03:04:05Z"}]`
	mock.ExpectQuery(`SELECT messages_json FROM users`).
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"messages_json"}).AddRow(raw))

	msgs, err := repo.GetLegacyMessages(context.Background(), 5)
	if err != nil {
		t.Fatalf("GetLegacyMessages: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Content != "hi" {
		t.Errorf("msgs = %+v", msgs)
	}
	if msgs[0].Timestamp.Year() != 2025 {
		t.Errorf("timestamp = %v", msgs[0].Timestamp)
	}
}
