package catalogue

import (
	"context"
	"testing"
)

type nopSearcher struct{}

func (nopSearcher) Search(context.Context, []float32, int) ([]Hit, error) { return nil, nil }

type nopExtractor struct{}

func (nopExtractor) Extract(context.Context, string, ExtractOptions) ([]Keyword, error) {
	return nil, nil
}

func mustIndex(t *testing.T, name string, entries ...Entry) *Index {
	t.Helper()
	idx, err := NewIndex(Config{Name: name, Searcher: nopSearcher{}, Extractor: nopExtractor{}, Entries: entries})
	if err != nil {
		t.Fatalf("NewIndex: %v", err)
	}
	return idx
}

func TestNewIndex_Validation(t *testing.T) {
	tests := map[string]Config{
		"no name":      {Searcher: nopSearcher{}, Extractor: nopExtractor{}},
		"no searcher":  {Name: "a", Extractor: nopExtractor{}},
		"no extractor": {Name: "a", Searcher: nopSearcher{}},
		"bad metric":   {Name: "a", Searcher: nopSearcher{}, Extractor: nopExtractor{}, Metric: "manhattan"},
	}
	for name, cfg := range tests {
		if _, err := NewIndex(cfg); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestNewIndex_DefaultsAndCopies(t *testing.T) {
	entries := []Entry{{Text: "t", ID: "a.txt"}}
	idx, err := NewIndex(Config{Name: "health", Searcher: nopSearcher{}, Extractor: nopExtractor{}, Entries: entries})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if idx.Metric() != MetricCosine {
		t.Errorf("expected cosine default, got %q", idx.Metric())
	}

	entries[0].ID = "mutated"
	if e, _ := idx.Entry(0); e.ID != "a.txt" {
		t.Errorf("index must not alias caller entries, got %q", e.ID)
	}
}

func TestIndex_EntryBounds(t *testing.T) {
	idx := mustIndex(t, "health", Entry{ID: "a"}, Entry{ID: "b"})
	for _, pos := range []int{-1, 2, 100} {
		if _, ok := idx.Entry(pos); ok {
			t.Errorf("Entry(%d) should be out of range", pos)
		}
	}
	if e, ok := idx.Entry(1); !ok || e.ID != "b" {
		t.Errorf("Entry(1) = %+v, %v", e, ok)
	}
}

func TestMetric_Similarity(t *testing.T) {
	if got := MetricCosine.Similarity(0.8); got != 0.8 {
		t.Errorf("cosine passthrough: %v", got)
	}
	if got := MetricL2.Similarity(0); got != 1 {
		t.Errorf("l2 zero distance: %v", got)
	}
	if got := MetricL2.Similarity(1); got != 0.5 {
		t.Errorf("l2 unit distance: %v", got)
	}
	if MetricL2.Similarity(3) >= MetricL2.Similarity(1) {
		t.Error("l2 similarity must decrease with distance")
	}
}

func TestRegistry(t *testing.T) {
	r, err := NewRegistry(mustIndex(t, "health"), mustIndex(t, "car"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := r.Lookup("health"); !ok {
		t.Error("expected health index")
	}
	if _, ok := r.Lookup("unknown_cat"); ok {
		t.Error("unexpected unknown_cat index")
	}
	if got := r.Categories(); len(got) != 2 || got[0] != "car" || got[1] != "health" {
		t.Errorf("unexpected categories: %v", got)
	}

	if _, err := NewRegistry(mustIndex(t, "a"), mustIndex(t, "a")); err == nil {
		t.Error("expected duplicate error")
	}
}

func TestHolder_SwapsWholeRegistry(t *testing.T) {
	first, _ := NewRegistry(mustIndex(t, "health"))
	second, _ := NewRegistry(mustIndex(t, "car"))

	h := NewHolder(first)
	held := h.Load()
	h.Store(second)

	if _, ok := held.Lookup("health"); !ok {
		t.Error("reader holding the old registry must keep seeing it")
	}
	if _, ok := h.Load().Lookup("car"); !ok {
		t.Error("new readers must see the replacement")
	}
}

func TestHolder_CategoryCount(t *testing.T) {
	r, _ := NewRegistry(mustIndex(t, "health"), mustIndex(t, "car"))
	if got := NewHolder(r).CategoryCount(); got != 2 {
		t.Errorf("CategoryCount() = %d, want 2", got)
	}
	if got := NewHolder(nil).CategoryCount(); got != 0 {
		t.Errorf("CategoryCount() on empty holder = %d, want 0", got)
	}
}
