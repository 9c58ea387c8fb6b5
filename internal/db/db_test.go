package db

import (
	"path/filepath"
	"testing"
)

func TestMigrateUpDown(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "rms.db")
	d, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer d.Close()

	if err := d.MigrateUp(); err != nil {
		t.Fatalf("MigrateUp: %v", err)
	}
	version, dirty, err := d.MigrateVersion()
	if err != nil {
		t.Fatalf("MigrateVersion: %v", err)
	}
	if dirty {
		t.Error("expected clean migration state")
	}
	if version != 1 {
		t.Errorf("got version %d, want 1", version)
	}

	// Repeated up is a no-op, not an error.
	if err := d.MigrateUp(); err != nil {
		t.Fatalf("second MigrateUp: %v", err)
	}

	var count int
	if err := d.QueryRow("SELECT COUNT(*) FROM orders").Scan(&count); err != nil {
		t.Fatalf("query orders after migrate: %v", err)
	}
	if count != 0 {
		t.Errorf("expected empty orders table, got %d rows", count)
	}

	if err := d.MigrateDown(); err != nil {
		t.Fatalf("MigrateDown: %v", err)
	}
	if err := d.QueryRow("SELECT COUNT(*) FROM orders").Scan(&count); err == nil {
		t.Error("expected orders table to be gone after down migration")
	}
}

func TestOpenReadOnlyRejectsWrites(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "rms.db")
	rw, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := rw.MigrateUp(); err != nil {
		t.Fatalf("MigrateUp: %v", err)
	}
	rw.Close()

	ro, err := OpenReadOnly(path)
	if err != nil {
		t.Fatalf("OpenReadOnly: %v", err)
	}
	defer ro.Close()

	if !ro.ReadOnly() {
		t.Error("ReadOnly() = false for read-only handle")
	}
	if _, err := ro.Exec("INSERT INTO restaurants (id, name, created_at) VALUES (1, 'x', '2025-01-01')"); err == nil {
		t.Error("expected write through read-only handle to fail")
	}
	var count int
	if err := ro.QueryRow("SELECT COUNT(*) FROM restaurants").Scan(&count); err != nil {
		t.Errorf("read through read-only handle failed: %v", err)
	}
}
