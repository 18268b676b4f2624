// SPDX-License-Identifier: Apache-2.0

package repository

import (
	"context"
	"testing"

	"github.com/kordes/flowstudio/internal/domain"
)

func testRecord(id, workflowID string) domain.ExecutionRecord {
	return domain.ExecutionRecord{
		ID:           id,
		WorkflowID:   workflowID,
		WorkflowName: "Workflow " + workflowID,
		Status:       domain.ExecutionSuccess,
		Steps: []domain.ExecutionStepResult{
			{StepRef: "s1", AppName: "Gmail", ActionName: "Fetch Email", Status: domain.ExecutionSuccess},
		},
	}
}

func TestRecentMostRecentFirst(t *testing.T) {
	store := NewExecutionLogStore(discardLogger())
	ctx := context.Background()

	for _, id := range []string{"r1", "r2", "r3"} {
		if err := store.Record(ctx, testRecord(id, "1")); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	got, err := store.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d", len(got))
	}
	if got[0].ID != "r3" || got[1].ID != "r2" {
		t.Fatalf("expected [r3 r2], got [%s %s]", got[0].ID, got[1].ID)
	}
}

func TestRecentBounds(t *testing.T) {
	store := NewExecutionLogStore(discardLogger())
	ctx := context.Background()

	_ = store.Record(ctx, testRecord("r1", "1"))

	got, err := store.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 record, got %d", len(got))
	}

	got, err = store.Recent(ctx, -1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no records, got %d", len(got))
	}
}

func TestListForFiltersAndOrders(t *testing.T) {
	store := NewExecutionLogStore(discardLogger())
	ctx := context.Background()

	_ = store.Record(ctx, testRecord("r1", "1"))
	_ = store.Record(ctx, testRecord("r2", "2"))
	_ = store.Record(ctx, testRecord("r3", "1"))

	got, err := store.ListFor(ctx, "1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d", len(got))
	}
	if got[0].ID != "r3" || got[1].ID != "r1" {
		t.Fatalf("expected [r3 r1], got [%s %s]", got[0].ID, got[1].ID)
	}

	got, err = store.ListFor(ctx, "missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no records for unknown workflow, got %d", len(got))
	}
}

func TestRecordKeepsStepsUnmodified(t *testing.T) {
	store := NewExecutionLogStore(discardLogger())
	ctx := context.Background()

	rec := testRecord("r1", "1")
	rec.Steps[0].Output = map[string]any{"message_id": "msg-0001"}
	_ = store.Record(ctx, rec)

	// Mutating the caller's copy afterwards must not leak into the store.
	rec.Steps[0].Output["message_id"] = "tampered"

	got, _ := store.ListFor(ctx, "1")
	if got[0].Steps[0].Output["message_id"] != "msg-0001" {
		t.Fatal("expected stored step output to be isolated")
	}
}
