package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rcliao/prosepolisher/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dir := t.TempDir()
	s, err := NewSQLiteStore(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveAndGetSnapshot(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	rec, err := s.SaveSnapshot(ctx, SaveSnapshotParams{
		ChatID: "chat-1", Messages: 12, Data: []byte(`{"version":1}`),
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if rec.Version != 1 {
		t.Errorf("expected version 1, got %d", rec.Version)
	}
	if rec.ID == "" {
		t.Error("expected non-empty ID")
	}

	got, err := s.GetSnapshot(ctx, GetSnapshotParams{ChatID: "chat-1"})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 result, got %d", len(got))
	}
	if string(got[0].Data) != `{"version":1}` || got[0].Messages != 12 {
		t.Errorf("unexpected snapshot %+v", got[0])
	}
}

func TestSaveSnapshotRequiresChatID(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.SaveSnapshot(context.Background(), SaveSnapshotParams{Data: []byte("{}")}); err == nil {
		t.Error("expected error for empty chat id")
	}
}

func TestSnapshotVersioning(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.SaveSnapshot(ctx, SaveSnapshotParams{ChatID: "c", Messages: 10, Data: []byte(`"v1"`)})
	r2, _ := s.SaveSnapshot(ctx, SaveSnapshotParams{ChatID: "c", Messages: 20, Data: []byte(`"v2"`)})

	if r2.Version != 2 {
		t.Errorf("expected version 2, got %d", r2.Version)
	}
	if r2.Supersedes == "" {
		t.Error("expected supersedes to be set")
	}

	// Get latest
	got, _ := s.GetSnapshot(ctx, GetSnapshotParams{ChatID: "c"})
	if string(got[0].Data) != `"v2"` {
		t.Errorf("expected v2, got %s", got[0].Data)
	}

	// Get history
	hist, _ := s.GetSnapshot(ctx, GetSnapshotParams{ChatID: "c", History: true})
	if len(hist) != 2 {
		t.Fatalf("expected 2 versions, got %d", len(hist))
	}
	if hist[0].Version != 2 {
		t.Errorf("history should be newest first, got version %d", hist[0].Version)
	}

	// Get specific version
	v1, _ := s.GetSnapshot(ctx, GetSnapshotParams{ChatID: "c", Version: 1})
	if string(v1[0].Data) != `"v1"` {
		t.Errorf("expected v1, got %s", v1[0].Data)
	}
}

func TestListChatsShowsLatestVersion(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.SaveSnapshot(ctx, SaveSnapshotParams{ChatID: "a", Messages: 1, Data: []byte(`1`)})
	s.SaveSnapshot(ctx, SaveSnapshotParams{ChatID: "a", Messages: 2, Data: []byte(`2`)})
	s.SaveSnapshot(ctx, SaveSnapshotParams{ChatID: "b", Messages: 5, Data: []byte(`5`)})

	list, err := s.ListChats(ctx, ListChatsParams{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 chats, got %d", len(list))
	}
	for _, r := range list {
		if r.ChatID == "a" && r.Version != 2 {
			t.Errorf("expected latest version of a, got %d", r.Version)
		}
		if r.Data != nil {
			t.Error("data should be omitted without WithData")
		}
	}
}

func TestSoftDeleteSnapshot(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.SaveSnapshot(ctx, SaveSnapshotParams{ChatID: "c", Data: []byte(`"v1"`)})
	s.SaveSnapshot(ctx, SaveSnapshotParams{ChatID: "c", Data: []byte(`"v2"`)})
	if err := s.RmSnapshot(ctx, RmSnapshotParams{ChatID: "c"}); err != nil {
		t.Fatalf("rm: %v", err)
	}

	got, err := s.GetSnapshot(ctx, GetSnapshotParams{ChatID: "c"})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got[0].Version != 1 {
		t.Errorf("expected version 1 after removing latest, got %d", got[0].Version)
	}
}

func TestHardDeleteAllVersions(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.SaveSnapshot(ctx, SaveSnapshotParams{ChatID: "c", Data: []byte(`1`)})
	s.SaveSnapshot(ctx, SaveSnapshotParams{ChatID: "c", Data: []byte(`2`)})
	if err := s.RmSnapshot(ctx, RmSnapshotParams{ChatID: "c", Hard: true, AllVersions: true}); err != nil {
		t.Fatalf("rm hard: %v", err)
	}

	_, err := s.GetSnapshot(ctx, GetSnapshotParams{ChatID: "c", History: true})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := s.RmSnapshot(ctx, RmSnapshotParams{ChatID: "c", AllVersions: true}); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for missing chat, got %v", err)
	}
}

func TestSaveAndLoadRules(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	rules := []model.Rule{
		{ID: "DYN_1", ScriptName: "one", FindRegex: "a", ReplaceString: "b", Placement: []int{2}},
		{ID: "STATIC_x", ScriptName: "x", FindRegex: "x", IsStatic: true, Disabled: true},
		{ID: "DYN_2", ScriptName: "two", FindRegex: "c", ReplaceString: "d"},
	}
	if err := s.SaveRules(ctx, rules); err != nil {
		t.Fatalf("save rules: %v", err)
	}

	got, err := s.LoadRules(ctx)
	if err != nil {
		t.Fatalf("load rules: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 rules, got %d", len(got))
	}
	if got[0].ID != "STATIC_x" || !got[0].Disabled {
		t.Errorf("static override should come first, got %+v", got[0])
	}
	if got[1].ID != "DYN_1" || got[2].ID != "DYN_2" {
		t.Errorf("dynamic order not kept: %s, %s", got[1].ID, got[2].ID)
	}
	if len(got[1].Placement) != 1 || got[1].Placement[0] != 2 {
		t.Errorf("placement not round-tripped: %v", got[1].Placement)
	}

	// Replacing drops rules that are no longer present.
	if err := s.SaveRules(ctx, rules[:1]); err != nil {
		t.Fatalf("save rules: %v", err)
	}
	got, _ = s.LoadRules(ctx)
	if len(got) != 1 {
		t.Errorf("expected 1 rule after replace, got %d", len(got))
	}
}

func TestExportImportRules(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.SaveRules(ctx, []model.Rule{
		{ID: "STATIC_x", ScriptName: "x", FindRegex: "x", IsStatic: true},
		{ID: "DYN_1", ScriptName: "one", FindRegex: "a"},
	})
	exported, err := s.ExportRules(ctx)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if len(exported) != 1 || exported[0].ID != "DYN_1" {
		t.Fatalf("expected only dynamic rules, got %+v", exported)
	}

	n, err := s.ImportRules(ctx, []model.Rule{
		{ID: "DYN_1", ScriptName: "dup", FindRegex: "a"},
		{ScriptName: "fresh", FindRegex: "b"},
	})
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 imported (duplicate skipped), got %d", n)
	}
	exported, _ = s.ExportRules(ctx)
	if len(exported) != 2 {
		t.Fatalf("expected 2 dynamic rules, got %d", len(exported))
	}
	if exported[1].ID == "" || exported[1].ID[:4] != model.DynamicIDPrefix {
		t.Errorf("imported rule should get a dynamic id, got %q", exported[1].ID)
	}
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "stats.db")
	s, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	defer s.Close()

	s.SaveSnapshot(ctx, SaveSnapshotParams{ChatID: "a", Messages: 3, Data: []byte(`1`)})
	s.SaveSnapshot(ctx, SaveSnapshotParams{ChatID: "a", Messages: 6, Data: []byte(`2`)})
	s.SaveRules(ctx, []model.Rule{{ID: "DYN_1", ScriptName: "one", FindRegex: "a", Disabled: true}})

	st, err := s.Stats(ctx, dbPath)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.ActiveSnapshots != 2 || st.DynamicRules != 1 || st.DisabledRules != 1 {
		t.Errorf("unexpected stats %+v", st)
	}
	if len(st.Chats) != 1 || st.Chats[0].Versions != 2 || st.Chats[0].Messages != 6 {
		t.Errorf("unexpected chat stats %+v", st.Chats)
	}
}

func TestDBPathCreation(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "sub", "dir", "test.db")
	s, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	s.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("expected db file to be created")
	}
}
