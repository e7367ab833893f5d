package batch

import (
	"fmt"
	"testing"
)

func TestHistoryCapsAtMax(t *testing.T) {
	h := NewHistory(DefaultHistorySize)
	for i := 0; i < 15; i++ {
		h.Append(Batch{ID: fmt.Sprintf("b%d", i)})
	}
	all := h.All()
	if len(all) != DefaultHistorySize {
		t.Fatalf("expected %d batches, got %d", DefaultHistorySize, len(all))
	}
	if all[0].ID != "b5" || all[len(all)-1].ID != "b14" {
		t.Fatalf("expected b5..b14, got %s..%s", all[0].ID, all[len(all)-1].ID)
	}
}

func TestHistoryNextUnanalyzed(t *testing.T) {
	h := NewHistory(0)
	if _, ok := h.NextUnanalyzed(); ok {
		t.Fatal("empty history has nothing to analyze")
	}
	h.Append(Batch{ID: "a"})
	h.Append(Batch{ID: "b"})

	b, ok := h.NextUnanalyzed()
	if !ok || b.ID != "b" {
		t.Fatalf("expected b, got %+v ok=%v", b, ok)
	}
	h.MarkAnalyzed("b")
	if _, ok := h.NextUnanalyzed(); ok {
		t.Fatal("expected nothing after marking latest analyzed")
	}
}

func TestHistoryAnalyzed(t *testing.T) {
	h := NewHistory(DefaultHistorySize)
	h.Append(Batch{ID: "b1"})
	if h.Analyzed("b1") {
		t.Fatal("new batch reported analyzed")
	}
	h.MarkAnalyzed("b1")
	if !h.Analyzed("b1") {
		t.Fatal("expected b1 analyzed")
	}
}
