package rag

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"askdocs/internal/chunker"
	"askdocs/internal/embedding"
	"askdocs/internal/llmservice"
	"askdocs/internal/models"
	"askdocs/internal/parser"
	"askdocs/internal/vectorindex"
)

type fakeSearcher struct {
	hits  []models.SearchHit
	err   error
	gotK  int
	calls int
}

func (f *fakeSearcher) Search(ctx context.Context, query string, k int) ([]models.SearchHit, error) {
	f.calls++
	f.gotK = k
	if f.err != nil {
		return nil, f.err
	}
	if len(f.hits) > k {
		return f.hits[:k], nil
	}
	return f.hits, nil
}

type fakeGenerator struct {
	answer string
	err    error
	delay  time.Duration
	calls  atomic.Int32
	prompt string
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	f.calls.Add(1)
	f.prompt = prompt
	if f.delay > 0 {
		// Ignores ctx on purpose so the orchestrator has to enforce the timeout.
		time.Sleep(f.delay)
	}
	return f.answer, f.err
}

func sampleHits() []models.SearchHit {
	return []models.SearchHit{
		{EntryID: 4, Score: 0.9, Text: "Dolphins swim in warm ocean waters.", SourceID: "sea.txt"},
		{EntryID: 2, Score: 0.4, Text: "Whales are mammals.", SourceID: "sea.txt", SequenceIndex: 1},
	}
}

func TestRetrieverRejectsBlankQuestion(t *testing.T) {
	s := &fakeSearcher{}
	_, err := NewRetriever(s).Retrieve(context.Background(), "  \n", 3)
	if !errors.Is(err, models.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	if s.calls != 0 {
		t.Fatal("searcher should not be called for a blank question")
	}
}

func TestRetrieverClampsTopK(t *testing.T) {
	s := &fakeSearcher{hits: sampleHits()}
	hits, err := NewRetriever(s).Retrieve(context.Background(), "dolphins", 0)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if s.gotK != 1 || len(hits) != 1 {
		t.Fatalf("expected k clamped to 1, searched with %d and got %d hits", s.gotK, len(hits))
	}
}

func TestRetrieverMinScoreKeepsOrder(t *testing.T) {
	s := &fakeSearcher{hits: []models.SearchHit{
		{EntryID: 1, Score: 0.8},
		{EntryID: 2, Score: 0.2},
		{EntryID: 3, Score: 0.5},
	}}
	hits, err := NewRetriever(s, WithMinScore(0.5)).Retrieve(context.Background(), "q", 3)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(hits) != 2 || hits[0].EntryID != 1 || hits[1].EntryID != 3 {
		t.Fatalf("unexpected hits %+v", hits)
	}
	if len(s.hits) != 3 || s.hits[1].EntryID != 2 {
		t.Fatal("filtering must not modify the searcher's slice")
	}
}

func TestParseCitations(t *testing.T) {
	tests := []struct {
		name           string
		text           string
		n              int
		cited, unknown []int
	}{
		{"none", "no markers here", 2, nil, nil},
		{"single", "Dolphins swim [1].", 2, []int{1}, nil},
		{"grouped and repeated", "A [2, 1]. B [1]. C [2]", 2, []int{1, 2}, nil},
		{"out of range", "See [3] and [0] and [1]", 2, []int{1}, []int{0, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cited, unknown := ParseCitations(tt.text, tt.n)
			if !equalInts(cited, tt.cited) || !equalInts(unknown, tt.unknown) {
				t.Fatalf("got cited %v unknown %v, want %v %v", cited, unknown, tt.cited, tt.unknown)
			}
		})
	}
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestAnswerWithoutHitsSkipsGenerator(t *testing.T) {
	gen := &fakeGenerator{answer: "should not be used"}
	ans, err := NewOrchestrator(gen).Answer(context.Background(), "anything?", nil)
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if gen.calls.Load() != 0 {
		t.Fatal("generator called without evidence")
	}
	if ans.Text != models.InsufficientEvidenceMessage || ans.Outcome != models.OutcomeNoEvidence {
		t.Fatalf("unexpected answer %+v", ans)
	}
	if ans.Evidence == nil || len(ans.Evidence) != 0 {
		t.Fatalf("expected empty evidence, got %v", ans.Evidence)
	}
}

func TestAnswerCustomNoEvidenceMessage(t *testing.T) {
	ans, err := NewOrchestrator(&fakeGenerator{}, WithInsufficientEvidenceMessage("nothing found")).
		Answer(context.Background(), "q", nil)
	if err != nil || ans.Text != "nothing found" {
		t.Fatalf("got %q, %v", ans.Text, err)
	}
}

func TestAnswerNumbersEvidenceInRankOrder(t *testing.T) {
	gen := &fakeGenerator{answer: "They swim [1] and breathe air [2, 5]."}
	ans, err := NewOrchestrator(gen).Answer(context.Background(), "What do dolphins do?", sampleHits())
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if gen.calls.Load() != 1 {
		t.Fatalf("expected one generator call, got %d", gen.calls.Load())
	}

	first := strings.Index(gen.prompt, "[1] Dolphins swim in warm ocean waters.")
	second := strings.Index(gen.prompt, "[2] Whales are mammals.")
	if first < 0 || second < 0 || first > second {
		t.Fatalf("evidence not numbered in order:\n%s", gen.prompt)
	}
	if !strings.Contains(gen.prompt, "What do dolphins do?") || !strings.Contains(gen.prompt, models.InsufficientEvidenceSignal) {
		t.Fatalf("prompt missing question or signal:\n%s", gen.prompt)
	}

	if ans.Outcome != models.OutcomeGrounded || ans.Text != gen.answer {
		t.Fatalf("unexpected answer %+v", ans)
	}
	if len(ans.Evidence) != 2 || ans.Evidence[0].Rank != 1 || ans.Evidence[0].EntryID != 4 || ans.Evidence[1].Rank != 2 {
		t.Fatalf("unexpected evidence %+v", ans.Evidence)
	}
	if !equalInts(ans.Citations, []int{1, 2}) || !equalInts(ans.UnknownCitations, []int{5}) {
		t.Fatalf("unexpected citations %v / %v", ans.Citations, ans.UnknownCitations)
	}
}

func TestAnswerGenerationFailure(t *testing.T) {
	tests := []struct {
		name string
		gen  *fakeGenerator
	}{
		{"error", &fakeGenerator{err: errors.New("model offline")}},
		{"empty", &fakeGenerator{answer: "   "}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ans, err := NewOrchestrator(tt.gen).Answer(context.Background(), "q", sampleHits())
			if !errors.Is(err, models.ErrGeneration) {
				t.Fatalf("expected ErrGeneration, got %v", err)
			}
			if ans.Outcome != models.OutcomeFailed || ans.Text != "" || len(ans.Evidence) != 0 {
				t.Fatalf("failed answer should carry nothing, got %+v", ans)
			}
		})
	}
}

func TestAnswerGenerationTimeout(t *testing.T) {
	gen := &fakeGenerator{answer: "late", delay: 500 * time.Millisecond}
	start := time.Now()
	_, err := NewOrchestrator(gen, WithGenerateTimeout(20*time.Millisecond)).Answer(context.Background(), "q", sampleHits())
	if !errors.Is(err, models.ErrGeneration) || !errors.Is(err, models.ErrTimeout) {
		t.Fatalf("expected generation timeout, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 300*time.Millisecond {
		t.Fatalf("timeout not enforced, took %v", elapsed)
	}
}

func TestAnswerCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	gen := &fakeGenerator{answer: "x"}
	_, err := NewOrchestrator(gen).Answer(ctx, "q", sampleHits())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if gen.calls.Load() != 0 {
		t.Fatal("generator called after cancellation")
	}
}

func TestAnswerExpiredDeadlineIsTimeout(t *testing.T) {
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()
	gen := &fakeGenerator{answer: "x"}
	_, err := NewOrchestrator(gen).Answer(ctx, "q", sampleHits())
	if !errors.Is(err, context.DeadlineExceeded) || models.KindOf(err) != "timeout" {
		t.Fatalf("expected timeout kind, got %v (%s)", err, models.KindOf(err))
	}
	if gen.calls.Load() != 0 {
		t.Fatal("generator called after the deadline passed")
	}
}

func newTestService(t *testing.T, gen llmservice.Generator) *Service {
	t.Helper()
	c, err := chunker.New(50, 0, 0)
	if err != nil {
		t.Fatalf("chunker.New: %v", err)
	}
	emb, err := embedding.NewHashEmbedder(512)
	if err != nil {
		t.Fatalf("NewHashEmbedder: %v", err)
	}
	idx := vectorindex.New(emb)
	return NewService(parser.New(), c, idx, NewRetriever(idx), NewOrchestrator(gen), 2)
}

func TestServiceEndToEnd(t *testing.T) {
	svc := newTestService(t, llmservice.NewMockGenerator())
	ctx := context.Background()

	text := "Apples grow on trees in the orchard.\n\nDolphins swim in warm ocean waters.\n\nMountains rise above the quiet valley."
	res, err := svc.Ingest(ctx, models.Document{ID: "nature", Name: "nature.txt", Content: []byte(text)})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if res.AcceptedChunkCount != 3 || res.FailedChunkCount != 0 || res.SourceID != "nature" {
		t.Fatalf("unexpected ingest result %+v", res)
	}

	ans, err := svc.Ask(ctx, "dolphins swim", 1)
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if len(ans.Evidence) != 1 || ans.Evidence[0].Snippet != "Dolphins swim in warm ocean waters." {
		t.Fatalf("unexpected evidence %+v", ans.Evidence)
	}
	if !strings.HasPrefix(ans.Text, "(MOCK ANSWER)") || !strings.Contains(ans.Text, "[1]") {
		t.Fatalf("unexpected answer %q", ans.Text)
	}
	if ans.Outcome != models.OutcomeGrounded {
		t.Fatalf("unexpected outcome %s", ans.Outcome)
	}

	if st := svc.Stats(); st.Entries != 3 || st.Dimension != 512 {
		t.Fatalf("unexpected stats %+v", st)
	}
}

func TestServiceAskOnEmptyIndex(t *testing.T) {
	gen := &fakeGenerator{answer: "x"}
	svc := newTestService(t, gen)
	ans, err := svc.Ask(context.Background(), "anything", 3)
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if ans.Outcome != models.OutcomeNoEvidence || gen.calls.Load() != 0 {
		t.Fatalf("expected no evidence without generation, got %+v", ans)
	}
}

func TestServiceIngestAssignsSourceID(t *testing.T) {
	svc := newTestService(t, &fakeGenerator{})
	res, err := svc.Ingest(context.Background(), models.Document{Name: "notes.md", Content: []byte("# Notes\n\nSome text.")})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if !strings.HasSuffix(res.SourceID, "_notes.md") || len(res.SourceID) <= len("_notes.md") {
		t.Fatalf("unexpected source id %q", res.SourceID)
	}
}

func TestServiceIngestAllIsolatesFailures(t *testing.T) {
	svc := newTestService(t, &fakeGenerator{})
	outcomes := svc.IngestAll(context.Background(), []models.Document{
		{ID: "good", Name: "good.txt", Content: []byte("Dolphins swim.")},
		{ID: "bad", Name: "bad.pdf", Content: []byte("not really a pdf")},
		{ID: "odd", Name: "odd.exe", Format: "exe", Content: []byte{0x00}},
	})
	if len(outcomes) != 3 {
		t.Fatalf("expected 3 outcomes, got %d", len(outcomes))
	}
	if outcomes[0].Err != nil || outcomes[0].Result.AcceptedChunkCount != 1 {
		t.Fatalf("good document failed: %+v", outcomes[0])
	}
	for _, o := range outcomes[1:] {
		if !errors.Is(o.Err, models.ErrExtraction) {
			t.Fatalf("expected ErrExtraction for %s, got %v", o.Result.Name, o.Err)
		}
		if o.Result.AcceptedChunkCount != 0 {
			t.Fatalf("rejected document indexed chunks: %+v", o.Result)
		}
	}
	if svc.Stats().Entries != 1 {
		t.Fatalf("expected only the good document indexed, got %d", svc.Stats().Entries)
	}
}

func TestServiceRemove(t *testing.T) {
	svc := newTestService(t, &fakeGenerator{})
	ctx := context.Background()
	res, err := svc.Ingest(ctx, models.Document{ID: "d", Name: "d.txt", Content: []byte("Dolphins swim.")})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if err := svc.Remove(ctx, res.EntryIDs[0]); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := svc.Remove(ctx, res.EntryIDs[0]); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second remove, got %v", err)
	}
	if svc.Stats().Entries != 0 {
		t.Fatal("entry still indexed")
	}
}
