package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/OnslaughtSnail/agenthost/kernel/history"
	"github.com/OnslaughtSnail/agenthost/kernel/model"
)

func TestStore_AppendListAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "history.db")
	s, err := Open(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	in := []history.Message{
		{TaskID: "t1", TurnID: "u1", Role: model.RoleUser, Text: "list files", Time: base},
		{TaskID: "t1", TurnID: "u1", Role: model.RoleAssistant, Text: "Sure.", Time: base.Add(time.Second),
			ToolCalls: []model.ToolCall{{ID: "c1", Name: "list_files", Args: map[string]any{"path": "."}}}},
		{TaskID: "t1", TurnID: "u1", Role: model.RoleTool, Text: "a.go", ToolCallID: "c1", ToolName: "list_files", IsError: true, Time: base.Add(2 * time.Second)},
		{TaskID: "t2", Role: model.RoleUser, Text: "other", Time: base.Add(time.Minute)},
	}
	for _, m := range in {
		if _, err := s.Append(ctx, m); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := s.Append(ctx, history.Message{Role: model.RoleUser}); err == nil {
		t.Fatal("expected missing task id error")
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s, err = Open(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	got, err := s.List(ctx, "t1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(got))
	}
	if got[0].ID == "" || !got[0].Time.Equal(base) {
		t.Fatalf("unexpected first message %#v", got[0])
	}
	if len(got[1].ToolCalls) != 1 || got[1].ToolCalls[0].Args["path"] != "." {
		t.Fatalf("expected tool calls to round-trip, got %#v", got[1].ToolCalls)
	}
	if !got[2].IsError || got[2].ToolCallID != "c1" {
		t.Fatalf("unexpected tool message %#v", got[2])
	}

	tasks, err := s.Tasks(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 2 || tasks[0].TaskID != "t2" || tasks[1].Messages != 3 {
		t.Fatalf("unexpected tasks %#v", tasks)
	}
}

func TestOpen_RequiresPath(t *testing.T) {
	if _, err := Open(context.Background(), " "); err == nil {
		t.Fatal("expected path error")
	}
}
