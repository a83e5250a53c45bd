package sqlite

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mesh-intelligence/fieldforms/pkg/types"
)

func attachDir(t *testing.T, dir string, sc *types.SQLiteConfig) *Backend {
	t.Helper()
	b := NewBackend()
	if err := b.Attach(types.Config{Backend: types.BackendSQLite, DataDir: dir, SQLiteConfig: sc}); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	return b
}

func mustTable(t *testing.T, b *Backend, name string) types.Table {
	t.Helper()
	tbl, err := b.GetTable(name)
	if err != nil {
		t.Fatalf("GetTable(%q) failed: %v", name, err)
	}
	return tbl
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

func TestBackend_Lifecycle(t *testing.T) {
	dir := t.TempDir()
	b := NewBackend()

	if _, err := b.GetTable(types.TableForms); err != types.ErrCupboardDetached {
		t.Errorf("expected ErrCupboardDetached before attach, got %v", err)
	}
	if err := b.Attach(types.Config{Backend: types.BackendSQLite, DataDir: dir}); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	if err := b.Attach(types.Config{Backend: types.BackendSQLite, DataDir: dir}); err != types.ErrAlreadyAttached {
		t.Errorf("expected ErrAlreadyAttached, got %v", err)
	}
	for _, name := range types.StandardTableNames {
		if _, err := os.Stat(filepath.Join(dir, jsonlFile(name))); err != nil {
			t.Errorf("expected %s to exist: %v", jsonlFile(name), err)
		}
	}
	if _, err := b.GetTable("nosuch"); err != types.ErrTableNotFound {
		t.Errorf("expected ErrTableNotFound, got %v", err)
	}

	tbl := mustTable(t, b, types.TableForms)
	if err := b.Detach(); err != nil {
		t.Fatalf("Detach failed: %v", err)
	}
	if err := b.Detach(); err != nil {
		t.Errorf("second Detach should not error, got %v", err)
	}
	if _, err := tbl.Get(context.Background(), "x"); err != types.ErrCupboardDetached {
		t.Errorf("expected ErrCupboardDetached after detach, got %v", err)
	}
}

func TestBackend_InvalidConfig(t *testing.T) {
	b := NewBackend()
	err := b.Attach(types.Config{Backend: types.BackendSQLite, SQLiteConfig: &types.SQLiteConfig{SyncStrategy: "sometimes"}})
	if !errors.Is(err, types.ErrSyncStrategyUnknown) {
		t.Errorf("expected ErrSyncStrategyUnknown, got %v", err)
	}
}

func TestTable_CRUD(t *testing.T) {
	ctx := context.Background()
	b := attachDir(t, t.TempDir(), nil)
	defer b.Detach()
	tbl := mustTable(t, b, types.TableFields)

	node := &types.FieldNode{Name: "North", OwnerID: "t1"}
	id, err := tbl.Set(ctx, "", node)
	if err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if id == "" || node.FieldID != id {
		t.Errorf("expected generated id written back, got %q / %q", id, node.FieldID)
	}

	got, err := tbl.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.(*types.FieldNode).Name != "North" {
		t.Errorf("expected North, got %q", got.(*types.FieldNode).Name)
	}

	node.Name = "North Ridge"
	if _, err := tbl.Set(ctx, id, node); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	got, _ = tbl.Get(ctx, id)
	if got.(*types.FieldNode).Name != "North Ridge" {
		t.Errorf("update not visible, got %q", got.(*types.FieldNode).Name)
	}

	if _, err := tbl.Set(ctx, "", &types.Form{}); !errors.Is(err, types.ErrInvalidData) {
		t.Errorf("expected ErrInvalidData for wrong entity type, got %v", err)
	}
	if _, err := tbl.Get(ctx, ""); err != types.ErrInvalidID {
		t.Errorf("expected ErrInvalidID, got %v", err)
	}

	if err := tbl.Delete(ctx, id); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := tbl.Get(ctx, id); err != types.ErrNotFound {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if err := tbl.Delete(ctx, id); err != types.ErrNotFound {
		t.Errorf("expected ErrNotFound deleting twice, got %v", err)
	}
}

func TestTable_Fetch(t *testing.T) {
	ctx := context.Background()
	b := attachDir(t, t.TempDir(), nil)
	defer b.Detach()
	tbl := mustTable(t, b, types.TableForms)

	for _, f := range []*types.Form{
		{FormID: "f1", Name: "A", FieldID: "north", OwnerID: "t1"},
		{FormID: "f2", Name: "B", FieldID: "south", OwnerID: "t1"},
		{FormID: "f3", Name: "C", FieldID: "north", OwnerID: "t2"},
		{FormID: "f4", Name: "D", FieldID: "north", OwnerID: "t1"},
	} {
		if _, err := tbl.Set(ctx, "", f); err != nil {
			t.Fatalf("Set %s failed: %v", f.FormID, err)
		}
	}
	// Updating keeps the original position.
	if _, err := tbl.Set(ctx, "f1", &types.Form{Name: "A2", FieldID: "north", OwnerID: "t1"}); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	tests := []struct {
		name   string
		filter types.Filter
		want   []string
	}{
		{"all", nil, []string{"f1", "f2", "f3", "f4"}},
		{"tenant", types.Filter{"owner_id": "t1"}, []string{"f1", "f2", "f4"}},
		{"tenant and field", types.Filter{"owner_id": "t1", "field_id": "north"}, []string{"f1", "f4"}},
		{"no match", types.Filter{"field_id": "west"}, []string{}},
		{"unknown attribute", types.Filter{"colour": "red"}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := tbl.Fetch(ctx, tt.filter)
			if err != nil {
				t.Fatalf("Fetch failed: %v", err)
			}
			got := []string{}
			for _, r := range res {
				got = append(got, r.(*types.Form).FormID)
			}
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}

	if _, err := tbl.Fetch(ctx, types.Filter{"Bad Key": "x"}); !errors.Is(err, types.ErrInvalidFilter) {
		t.Errorf("expected ErrInvalidFilter, got %v", err)
	}
}

func TestPersistenceAcrossAttach(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	b := attachDir(t, dir, nil)
	tbl := mustTable(t, b, types.TableSubmissions)
	sub := &types.Submission{FormID: "f1", OwnerID: "t1", Status: types.StatusSubmitted,
		Data: map[string]any{"crops": []any{"maize"}, "ok": "true"}}
	id, err := tbl.Set(ctx, "", sub)
	if err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if !strings.Contains(readFile(t, filepath.Join(dir, "submissions.jsonl")), id) {
		t.Errorf("immediate strategy should write the record to JSONL")
	}
	if err := b.Detach(); err != nil {
		t.Fatalf("Detach failed: %v", err)
	}

	b2 := attachDir(t, dir, nil)
	defer b2.Detach()
	got, err := mustTable(t, b2, types.TableSubmissions).Get(ctx, id)
	if err != nil {
		t.Fatalf("Get after reattach failed: %v", err)
	}
	if v, _ := got.(*types.Submission).Value("crops"); types.ValueString(v) != "maize" {
		t.Errorf("expected crops maize after reload, got %v", v)
	}
}

func TestSyncStrategies(t *testing.T) {
	ctx := context.Background()

	t.Run("on_close defers until detach", func(t *testing.T) {
		dir := t.TempDir()
		b := attachDir(t, dir, &types.SQLiteConfig{SyncStrategy: types.SyncOnClose})
		tbl := mustTable(t, b, types.TableAgents)
		id, err := tbl.Set(ctx, "", &types.Agent{Name: "Ada", OwnerID: "t1"})
		if err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		path := filepath.Join(dir, "agents.jsonl")
		if strings.Contains(readFile(t, path), id) {
			t.Errorf("on_close should not write before detach")
		}
		if err := b.Detach(); err != nil {
			t.Fatalf("Detach failed: %v", err)
		}
		if !strings.Contains(readFile(t, path), id) {
			t.Errorf("detach should flush pending writes")
		}
	})

	t.Run("batch flushes at batch size", func(t *testing.T) {
		dir := t.TempDir()
		b := attachDir(t, dir, &types.SQLiteConfig{SyncStrategy: types.SyncBatch, BatchSize: 2, BatchInterval: 3600})
		defer b.Detach()
		tbl := mustTable(t, b, types.TableAgents)
		path := filepath.Join(dir, "agents.jsonl")

		first, _ := tbl.Set(ctx, "", &types.Agent{Name: "Ada", OwnerID: "t1"})
		if strings.Contains(readFile(t, path), first) {
			t.Errorf("batch should not write before batch size")
		}
		second, _ := tbl.Set(ctx, "", &types.Agent{Name: "Bo", OwnerID: "t1"})
		content := readFile(t, path)
		if !strings.Contains(content, first) || !strings.Contains(content, second) {
			t.Errorf("batch size reached, expected both records written")
		}
	})

	t.Run("batch flushes on interval", func(t *testing.T) {
		dir := t.TempDir()
		b := attachDir(t, dir, &types.SQLiteConfig{SyncStrategy: types.SyncBatch, BatchSize: 100, BatchInterval: 1})
		defer b.Detach()
		id, _ := mustTable(t, b, types.TableAgents).Set(ctx, "", &types.Agent{Name: "Ada", OwnerID: "t1"})
		path := filepath.Join(dir, "agents.jsonl")

		deadline := time.Now().Add(3 * time.Second)
		for time.Now().Before(deadline) {
			if strings.Contains(readFile(t, path), id) {
				return
			}
			time.Sleep(50 * time.Millisecond)
		}
		t.Errorf("interval flush did not write the record")
	})
}
