package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func TestNewSQLite(t *testing.T) {
	ctx := context.Background()
	url := "sqlite://" + filepath.Join(t.TempDir(), "test.db")

	db, err := New(ctx, url)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer db.Close()

	if !db.IsSQLite() {
		t.Error("expected sqlite dialect")
	}
	if db.IsPostgres() {
		t.Error("did not expect postgres dialect")
	}
	if db.Dialect() != DialectSQLite {
		t.Errorf("Dialect() = %q, want %q", db.Dialect(), DialectSQLite)
	}
}

func TestNewEmptyURL(t *testing.T) {
	_, err := New(context.Background(), "")
	if !errors.Is(err, ErrEmptyURL) {
		t.Errorf("New(\"\") error = %v, want ErrEmptyURL", err)
	}
}

func TestNewUnsupportedScheme(t *testing.T) {
	_, err := New(context.Background(), "mysql://localhost/quiz")
	if !errors.Is(err, ErrUnsupportedScheme) {
		t.Errorf("error = %v, want ErrUnsupportedScheme", err)
	}
}

func TestPing(t *testing.T) {
	ctx := context.Background()
	url := "sqlite://" + filepath.Join(t.TempDir(), "test.db")

	db, err := New(ctx, url)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer db.Close()

	if err := db.Ping(ctx); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
}

func TestPingAfterClose(t *testing.T) {
	ctx := context.Background()
	url := "sqlite://" + filepath.Join(t.TempDir(), "test.db")

	db, err := New(ctx, url)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if err := db.Ping(ctx); err == nil {
		t.Error("expected Ping() to fail after Close()")
	}
}

func TestSessionUsable(t *testing.T) {
	ctx := context.Background()
	url := "sqlite://" + filepath.Join(t.TempDir(), "test.db")

	db, err := New(ctx, url)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer db.Close()

	if err := db.Session(ctx).Exec("CREATE TABLE probe (id TEXT)").Error; err != nil {
		t.Errorf("Exec() error = %v", err)
	}
}

func TestTruncateQuery(t *testing.T) {
	short := "SELECT 1"
	if got := truncateQuery(short); got != short {
		t.Errorf("truncateQuery(short) = %q", got)
	}

	long := ""
	for len(long) <= maxQueryLength {
		long += "SELECT username, question FROM answer_history "
	}
	got := truncateQuery(long)
	if len(got) > maxQueryLength {
		t.Errorf("truncated length = %d, want <= %d", len(got), maxQueryLength)
	}
}
