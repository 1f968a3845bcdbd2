package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	logx "rotabot/pkg/logx"
)

func openDriver(t *testing.T, driver, path string) Store {
	t.Helper()
	st, err := Open(Config{Driver: driver, Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open(%s): %v", driver, err)
	}
	if st == nil {
		t.Fatalf("Open(%s) returned nil store", driver)
	}
	return st
}

func TestOpenDisabled(t *testing.T) {
	t.Parallel()
	for _, driver := range []string{"", "none", " NONE "} {
		st, err := Open(Config{Driver: driver}, logx.Logger{})
		if err != nil || st != nil {
			t.Fatalf("Open(%q) = %v, %v, want nil, nil", driver, st, err)
		}
	}
	if _, err := Open(Config{Driver: "postgres"}, logx.Nop()); err == nil {
		t.Fatalf("Open(postgres) succeeded, want error")
	}
}

func TestStoresPersistAcrossReopen(t *testing.T) {
	t.Parallel()
	for _, driver := range []string{"file", "sqlite"} {
		t.Run(driver, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			path := filepath.Join(t.TempDir(), "nested", "rotabot.db")

			st := openDriver(t, driver, path)
			if _, err := st.GetState(ctx, "weekly_activity.last_week"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("GetState on empty store err = %v, want ErrNotFound", err)
			}
			if err := st.PutState(ctx, "weekly_activity.last_week", "1700000000"); err != nil {
				t.Fatalf("PutState: %v", err)
			}
			if err := st.PutState(ctx, "weekly_activity.last_week", "1700604800"); err != nil {
				t.Fatalf("PutState overwrite: %v", err)
			}
			until := time.Now().Add(time.Hour).Truncate(time.Millisecond)
			if err := st.PutDedup(ctx, "k1", until); err != nil {
				t.Fatalf("PutDedup: %v", err)
			}
			if err := st.AppendAudit(ctx, AuditEntry{JobID: "j1", Action: "status", Text: "hello", OK: true, Attempts: 1}); err != nil {
				t.Fatalf("AppendAudit: %v", err)
			}
			if err := st.Close(); err != nil {
				t.Fatalf("Close: %v", err)
			}

			st = openDriver(t, driver, path)
			defer st.Close()
			v, err := st.GetState(ctx, "weekly_activity.last_week")
			if err != nil || v != "1700604800" {
				t.Fatalf("GetState after reopen = %q, %v, want 1700604800", v, err)
			}
			got, ok, err := st.GetDedup(ctx, "k1")
			if err != nil || !ok || !got.Equal(until) {
				t.Fatalf("GetDedup = %v, %v, %v, want %v", got, ok, err, until)
			}
			if _, ok, _ := st.GetDedup(ctx, "missing"); ok {
				t.Fatalf("GetDedup(missing) ok = true")
			}
		})
	}
}

func TestFileStoreAuditIsJSONLines(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()
	st := openDriver(t, "file", filepath.Join(dir, "bot.json"))
	for _, id := range []string{"a", "b"} {
		if err := st.AppendAudit(ctx, AuditEntry{JobID: id, Action: "status"}); err != nil {
			t.Fatalf("AppendAudit: %v", err)
		}
	}
	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	f, err := os.Open(filepath.Join(dir, "bot.audit.jsonl"))
	if err != nil {
		t.Fatalf("open audit: %v", err)
	}
	defer f.Close()
	var ids []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var e AuditEntry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			t.Fatalf("decode audit line: %v", err)
		}
		if e.At.IsZero() {
			t.Fatalf("audit entry without timestamp")
		}
		ids = append(ids, e.JobID)
	}
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Fatalf("audit ids = %v, want [a b]", ids)
	}
}

func TestFileStoreDropsExpiredDedup(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "bot.db")
	st := openDriver(t, "file", path)
	if err := st.PutDedup(ctx, "old", time.Now().Add(-time.Minute)); err != nil {
		t.Fatalf("PutDedup: %v", err)
	}
	_ = st.Close()

	st = openDriver(t, "file", path)
	defer st.Close()
	if _, ok, _ := st.GetDedup(ctx, "old"); ok {
		t.Fatalf("expired dedup key survived reopen")
	}
}

func TestMemory(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := NewMemory()
	if _, err := m.GetState(ctx, "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetState err = %v, want ErrNotFound", err)
	}
	_ = m.PutState(ctx, "x", "1")
	if v, _ := m.GetState(ctx, " x "); v != "1" {
		t.Fatalf("GetState = %q, want 1", v)
	}
	_ = m.AppendAudit(ctx, AuditEntry{JobID: "j"})
	if a := m.Audit(); len(a) != 1 || a[0].JobID != "j" {
		t.Fatalf("Audit = %v", a)
	}
}
