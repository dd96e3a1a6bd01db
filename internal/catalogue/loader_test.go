package catalogue

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kailas-cloud/suggest/internal/domain"
	domcat "github.com/kailas-cloud/suggest/internal/domain/catalogue"
	"github.com/kailas-cloud/suggest/internal/repository/knn"
)

// vowelEmbedder maps a text to its vowel counts, so texts dominated by one vowel point that way.
type vowelEmbedder struct {
	batches int
	inputs  int
	err     error
}

func (v *vowelEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	if v.err != nil {
		return domain.EmbeddingResult{}, v.err
	}
	vec := make([]float32, 5)
	for _, r := range strings.ToLower(text) {
		if i := strings.IndexRune("aeiou", r); i >= 0 {
			vec[i]++
		}
	}
	return domain.EmbeddingResult{Embedding: vec, TotalTokens: 1}, nil
}

func (v *vowelEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	v.batches++
	v.inputs += len(texts)
	return domain.BatchFallback(ctx, v, texts)
}

type fakePublisher struct {
	got []knn.Publication
	err error
}

func (f *fakePublisher) Publish(_ context.Context, p knn.Publication) (*knn.Searcher, error) {
	f.got = append(f.got, p)
	if f.err != nil {
		return nil, f.err
	}
	ids := make([]string, len(p.Entries))
	for i, e := range p.Entries {
		ids[i] = e.ID
	}
	return knn.NewSearcher(nil, "idx", p.Metric, ids), nil
}

func writeDocs(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return dir
}

func TestReadDocuments_SortedTxtOnly(t *testing.T) {
	dir := writeDocs(t, map[string]string{
		"b_plan.txt": "  Second plan.\n",
		"a_plan.txt": "First plan.",
		"notes.md":   "ignored",
	})
	if err := os.Mkdir(filepath.Join(dir, "sub.txt"), 0o700); err != nil {
		t.Fatal(err)
	}

	entries, err := ReadDocuments(dir)
	if err != nil {
		t.Fatalf("ReadDocuments: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].ID != "a_plan.txt" || entries[1].ID != "b_plan.txt" {
		t.Errorf("unexpected order: %s, %s", entries[0].ID, entries[1].ID)
	}
	if entries[1].Text != "Second plan." {
		t.Errorf("text not trimmed: %q", entries[1].Text)
	}
}

func TestReadDocuments_MissingDir(t *testing.T) {
	if _, err := ReadDocuments(filepath.Join(t.TempDir(), "absent")); err == nil {
		t.Fatal("expected error for missing directory")
	}
}

func TestLoad_MemoryBackend(t *testing.T) {
	dir := writeDocs(t, map[string]string{
		"aaa.txt": "Banana. Papaya. Cassava.",
		"ooo.txt": "Tomato cocoa. Boot loop.",
	})
	emb := &vowelEmbedder{}
	reg, err := NewLoader(emb, nil, nil).Load(context.Background(), []Category{
		{Name: "food", Dir: dir, ChunkMaxLength: 10},
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	idx, ok := reg.Lookup("food")
	if !ok {
		t.Fatal("category not registered")
	}
	if idx.Len() != 2 || idx.Metric() != domcat.MetricCosine {
		t.Errorf("len=%d metric=%s", idx.Len(), idx.Metric())
	}
	if len(idx.Stopwords()) == 0 {
		t.Error("default stopwords expected")
	}
	if emb.batches != 1 || emb.inputs < 4 {
		t.Errorf("expected one batch over all chunks, got %d batches of %d inputs", emb.batches, emb.inputs)
	}

	hits, err := idx.Searcher().Search(context.Background(), []float32{0, 0, 0, 1, 0}, 1)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	entry, _ := idx.Entry(hits[0].Position)
	if entry.ID != "ooo.txt" {
		t.Errorf("nearest to 'o' = %s, want ooo.txt", entry.ID)
	}
	if math.Abs(hits[0].Score) > 1.0000001 {
		t.Errorf("cosine score out of range: %v", hits[0].Score)
	}
}

func TestLoad_RedisBackendPublishes(t *testing.T) {
	dir := writeDocs(t, map[string]string{"one.txt": "Apple.", "two.txt": "Orange."})
	pub := &fakePublisher{}
	reg, err := NewLoader(&vowelEmbedder{}, pub, nil).Load(context.Background(), []Category{
		{Name: "fruit", Dir: dir, Backend: BackendRedis, IndexName: "custom:idx", Metric: domcat.MetricL2,
			Stopwords: []string{"apple"}},
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(pub.got) != 1 {
		t.Fatalf("expected one publication, got %d", len(pub.got))
	}
	p := pub.got[0]
	if p.Category != "fruit" || p.IndexName != "custom:idx" || p.Metric != domcat.MetricL2 {
		t.Errorf("unexpected publication %+v", p)
	}
	if len(p.Vectors) != 2 || len(p.Entries) != 2 || p.Entries[0].ID != "one.txt" {
		t.Errorf("publication not aligned: %d vectors, entries %+v", len(p.Vectors), p.Entries)
	}
	idx, _ := reg.Lookup("fruit")
	if got := idx.Stopwords(); len(got) != 1 || got[0] != "apple" {
		t.Errorf("configured stopwords not kept: %v", got)
	}
}

func TestLoad_Errors(t *testing.T) {
	docs := map[string]string{"a.txt": "Apple."}
	tests := []struct {
		name string
		emb  *vowelEmbedder
		pub  Publisher
		cat  func(dir string) Category
		is   error
	}{
		{"empty directory", &vowelEmbedder{}, nil, func(string) Category {
			return Category{Name: "x", Dir: t.TempDir()}
		}, ErrNoDocuments},
		{"redis without publisher", &vowelEmbedder{}, nil, func(dir string) Category {
			return Category{Name: "x", Dir: dir, Backend: BackendRedis}
		}, nil},
		{"unknown backend", &vowelEmbedder{}, nil, func(dir string) Category {
			return Category{Name: "x", Dir: dir, Backend: "faiss"}
		}, nil},
		{"embedder failure", &vowelEmbedder{err: domain.ErrEmbeddingProviderError}, nil, func(dir string) Category {
			return Category{Name: "x", Dir: dir}
		}, domain.ErrEmbeddingProviderError},
		{"publish failure", &vowelEmbedder{}, &fakePublisher{err: errors.New("down")}, func(dir string) Category {
			return Category{Name: "x", Dir: dir, Backend: BackendRedis}
		}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := writeDocs(t, docs)
			_, err := NewLoader(tt.emb, tt.pub, nil).Load(context.Background(), []Category{tt.cat(dir)})
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.is != nil && !errors.Is(err, tt.is) {
				t.Errorf("expected %v, got %v", tt.is, err)
			}
			if !strings.Contains(err.Error(), `"x"`) {
				t.Errorf("error should name the category: %v", err)
			}
		})
	}
}

func TestLoad_DuplicateCategory(t *testing.T) {
	dir := writeDocs(t, map[string]string{"a.txt": "Apple."})
	cats := []Category{{Name: "x", Dir: dir}, {Name: "x", Dir: dir}}
	if _, err := NewLoader(&vowelEmbedder{}, nil, nil).Load(context.Background(), cats); err == nil {
		t.Fatal("expected duplicate category error")
	}
}
