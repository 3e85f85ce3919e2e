package inmemory

import (
	"context"
	"testing"
	"time"

	"github.com/OnslaughtSnail/agenthost/kernel/history"
	"github.com/OnslaughtSnail/agenthost/kernel/model"
)

func TestStore_ListIsCopy(t *testing.T) {
	ctx := context.Background()
	s := New()
	_, err := s.Append(ctx, history.Message{
		TaskID:    "t",
		Role:      model.RoleAssistant,
		ToolCalls: []model.ToolCall{{ID: "c1", Name: "read_file"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	got, _ := s.List(ctx, "t")
	got[0].ToolCalls[0].Name = "changed"
	again, _ := s.List(ctx, "t")
	if again[0].ToolCalls[0].Name != "read_file" {
		t.Fatal("expected List to return copies")
	}
	if missing, _ := s.List(ctx, "nope"); len(missing) != 0 {
		t.Fatalf("expected empty list for unknown task, got %#v", missing)
	}
}

func TestStore_TasksNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := New()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	s.Append(ctx, history.Message{TaskID: "old", Role: model.RoleUser, Time: base})
	s.Append(ctx, history.Message{TaskID: "new", Role: model.RoleUser, Time: base.Add(time.Hour)})
	s.Append(ctx, history.Message{TaskID: "old", Role: model.RoleUser, Time: base.Add(time.Minute)})

	tasks, err := s.Tasks(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 2 || tasks[0].TaskID != "new" || tasks[1].Messages != 2 {
		t.Fatalf("unexpected tasks %#v", tasks)
	}
}
