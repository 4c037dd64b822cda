package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"mnemo/src/internal/index/memindex"
	"mnemo/src/internal/memory"
)

var (
	alice = memory.Scope{UserID: "alice"}
	bob   = memory.Scope{UserID: "bob"}
)

// testClock is a controllable time source for the facade.
type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func newTestService(start time.Time) (*memory.Service, *testClock) {
	clock := &testClock{now: start}
	svc := memory.NewService(
		memindex.New(),
		memory.NewStaticEmbedder(64, nil),
		time.UTC,
		memory.WithClock(clock.Now),
	)
	return svc, clock
}

// saturdayNoon is 2025-03-15 12:00 UTC.
var saturdayNoon = time.Date(2025, time.March, 15, 12, 0, 0, 0, time.UTC)

func TestService_AddValidation(t *testing.T) {
	svc, _ := newTestService(saturdayNoon)
	ctx := context.Background()

	if _, err := svc.Add(ctx, alice, "   ", nil, nil, "", nil); !errors.Is(err, memory.ErrEmptyContent) {
		t.Errorf("expected ErrEmptyContent, got %v", err)
	}

	halfScope := memory.Scope{UserID: "alice", ProjectID: "p1"}
	if _, err := svc.Add(ctx, halfScope, "content", nil, nil, "", nil); !errors.Is(err, memory.ErrInvalidFilter) {
		t.Errorf("expected ErrInvalidFilter for half scope, got %v", err)
	}
	if _, err := svc.Add(ctx, memory.Scope{}, "content", nil, nil, "", nil); !errors.Is(err, memory.ErrInvalidFilter) {
		t.Errorf("expected ErrInvalidFilter for empty scope, got %v", err)
	}
}

func TestService_EndToEnd(t *testing.T) {
	svc, _ := newTestService(saturdayNoon)
	ctx := context.Background()

	id, err := svc.Add(ctx, alice, "Had lunch with Bob at noon on Saturday",
		[]string{"food,social"}, []string{"Bob"}, "", nil)
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	// Semantic search under the owning scope finds it with a real score.
	results, err := svc.Search(ctx, alice, memory.SearchQuery{SemanticText: "lunch"})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 1 || results[0].ID != id {
		t.Fatalf("expected the added memory, got %+v", results)
	}
	if results[0].Score <= 0 {
		t.Errorf("expected a positive similarity score, got %v", results[0].Score)
	}

	// The same query under a different tenant finds nothing.
	other, err := svc.Search(ctx, bob, memory.SearchQuery{SemanticText: "lunch"})
	if err != nil {
		t.Fatalf("Search under bob failed: %v", err)
	}
	if len(other) != 0 {
		t.Fatalf("tenant isolation violated: %+v", other)
	}

	// Temporal filters: the record was created on a Saturday.
	weekend, err := svc.Search(ctx, alice, memory.SearchQuery{SemanticText: "lunch", TemporalExpression: "weekends"})
	if err != nil {
		t.Fatal(err)
	}
	if len(weekend) != 1 {
		t.Errorf("weekends filter should match, got %d results", len(weekend))
	}
	weekday, err := svc.Search(ctx, alice, memory.SearchQuery{SemanticText: "lunch", TemporalExpression: "weekdays"})
	if err != nil {
		t.Fatal(err)
	}
	if len(weekday) != 0 {
		t.Errorf("weekdays filter should not match, got %d results", len(weekday))
	}

	// Deletion is ownership-checked.
	if err := svc.Delete(ctx, bob, id); !errors.Is(err, memory.ErrAccessDenied) {
		t.Errorf("expected ErrAccessDenied for foreign delete, got %v", err)
	}
	if err := svc.Delete(ctx, alice, id); err != nil {
		t.Fatalf("owner delete failed: %v", err)
	}

	remaining, err := svc.GetAll(ctx, alice, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(remaining) != 0 {
		t.Errorf("expected no memories after delete, got %d", len(remaining))
	}
}

func TestService_TagAnyVsAll(t *testing.T) {
	svc, _ := newTestService(saturdayNoon)
	ctx := context.Background()

	for _, m := range []struct {
		content string
		tags    []string
	}{
		{"standup notes", []string{"work"}},
		{"grocery list", []string{"home"}},
		{"remote office setup", []string{"work", "home"}},
	} {
		if _, err := svc.Add(ctx, alice, m.content, m.tags, nil, "", nil); err != nil {
			t.Fatal(err)
		}
	}

	any, err := svc.Search(ctx, alice, memory.SearchQuery{Tags: []string{"work", "home"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(any) != 3 {
		t.Errorf("any-tag search should return all three records, got %d", len(any))
	}

	all, err := svc.Search(ctx, alice, memory.SearchQuery{Tags: []string{"work", "home"}, MatchAllTags: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 || all[0].Content != "remote office setup" {
		t.Errorf("all-tags search should return only the dual-tagged record, got %+v", all)
	}
}

func TestService_TagNormalizationIdempotent(t *testing.T) {
	svc, _ := newTestService(saturdayNoon)
	ctx := context.Background()

	if _, err := svc.Add(ctx, alice, "Trip planning", []string{"Food, Travel", "travel"}, nil, "", nil); err != nil {
		t.Fatal(err)
	}

	results, err := svc.Search(ctx, alice, memory.SearchQuery{Tags: []string{"food"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("lowercase tag search should find the record, got %d results", len(results))
	}
	if len(results[0].Tags) != 2 {
		t.Errorf("tags should form a set, got %v", results[0].Tags)
	}
}

func TestService_ThresholdIgnoredOnListing(t *testing.T) {
	svc, _ := newTestService(saturdayNoon)
	ctx := context.Background()

	if _, err := svc.Add(ctx, alice, "a note", nil, nil, "", nil); err != nil {
		t.Fatal(err)
	}

	strict := 0.99
	results, err := svc.Search(ctx, alice, memory.SearchQuery{ScoreThreshold: &strict})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("listing must ignore the score threshold, got %d results", len(results))
	}
	if results[0].Score != 1.0 {
		t.Errorf("listing results score 1.0, got %v", results[0].Score)
	}
}

func TestService_GetAllOffsetSlicing(t *testing.T) {
	svc, clock := newTestService(saturdayNoon)
	ctx := context.Background()

	contents := []string{"one", "two", "three", "four", "five"}
	for _, c := range contents {
		if _, err := svc.Add(ctx, alice, c, nil, nil, "", nil); err != nil {
			t.Fatal(err)
		}
		clock.now = clock.now.Add(time.Minute)
	}

	page, err := svc.GetAll(ctx, alice, 2, 1)
	if err != nil {
		t.Fatal(err)
	}
	// Listing order is newest first: five, four, three, two, one.
	if len(page) != 2 || page[0].Content != "four" || page[1].Content != "three" {
		t.Errorf("unexpected page %+v", page)
	}

	past, err := svc.GetAll(ctx, alice, 10, 99)
	if err != nil {
		t.Fatal(err)
	}
	if len(past) != 0 {
		t.Errorf("offset past the end should return nothing, got %d", len(past))
	}
}

func TestService_SortByTimestamp(t *testing.T) {
	svc, clock := newTestService(saturdayNoon)
	ctx := context.Background()

	if _, err := svc.Add(ctx, alice, "older coffee note", nil, nil, "", nil); err != nil {
		t.Fatal(err)
	}
	clock.now = clock.now.Add(time.Hour)
	if _, err := svc.Add(ctx, alice, "newer coffee note", nil, nil, "", nil); err != nil {
		t.Fatal(err)
	}

	results, err := svc.Search(ctx, alice, memory.SearchQuery{
		SemanticText: "coffee",
		SortBy:       memory.SortByTimestamp,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 || results[0].Content != "newer coffee note" {
		t.Errorf("timestamp sort should put the newest first, got %+v", results)
	}
}

func TestService_DeleteMissing(t *testing.T) {
	svc, _ := newTestService(saturdayNoon)
	if err := svc.Delete(context.Background(), alice, "no-such-id"); !errors.Is(err, memory.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestService_DeleteAllScoped(t *testing.T) {
	svc, _ := newTestService(saturdayNoon)
	ctx := context.Background()

	for _, c := range []string{"a", "b", "c"} {
		if _, err := svc.Add(ctx, alice, c, nil, nil, "", nil); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := svc.Add(ctx, bob, "bob's note", nil, nil, "", nil); err != nil {
		t.Fatal(err)
	}

	result, err := svc.DeleteAll(ctx, alice)
	if err != nil {
		t.Fatal(err)
	}
	if result.Deleted != 3 || result.Attempted != 3 {
		t.Errorf("expected 3/3 deleted, got %+v", result)
	}

	bobs, err := svc.GetAll(ctx, bob, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(bobs) != 1 {
		t.Errorf("bob's memories must survive alice's DeleteAll, got %d", len(bobs))
	}
}

func TestService_ReservedMetadataKeys(t *testing.T) {
	svc, _ := newTestService(saturdayNoon)
	ctx := context.Background()

	extra := map[string]string{
		"data":       "overwritten",
		"created_at": "1999-01-01T00:00:00Z",
		"user_id":    "mallory",
		"mood":       "happy",
	}
	if _, err := svc.Add(ctx, alice, "original content", nil, nil, "", extra); err != nil {
		t.Fatal(err)
	}

	results, err := svc.GetAll(ctx, alice, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 record, got %d", len(results))
	}
	rec := results[0]
	if rec.Content != "original content" {
		t.Errorf("reserved data key was overwritten: %q", rec.Content)
	}
	if rec.Metadata["mood"] != "happy" {
		t.Errorf("caller metadata lost: %v", rec.Metadata)
	}

	// A record claiming another user id in extra metadata must not leak
	// across tenants.
	mallory := memory.Scope{UserID: "mallory"}
	leaked, err := svc.GetAll(ctx, mallory, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(leaked) != 0 {
		t.Error("extra metadata must not override tenant scope")
	}
}

func TestService_InvalidTemporalExpression(t *testing.T) {
	svc, _ := newTestService(saturdayNoon)
	_, err := svc.Search(context.Background(), alice, memory.SearchQuery{TemporalExpression: "fortnight"})
	if !errors.Is(err, memory.ErrInvalidFilter) {
		t.Errorf("expected ErrInvalidFilter, got %v", err)
	}
}

// flakyIndex delegates to a real index but fails Delete for chosen ids.
type flakyIndex struct {
	*memindex.Index
	failIDs map[string]bool
}

func (ix *flakyIndex) Delete(ctx context.Context, id string) (bool, error) {
	if ix.failIDs[id] {
		return false, errors.New("disk offline")
	}
	return ix.Index.Delete(ctx, id)
}

func TestService_DeleteAllPartialFailure(t *testing.T) {
	index := &flakyIndex{Index: memindex.New(), failIDs: map[string]bool{}}
	clock := &testClock{now: saturdayNoon}
	svc := memory.NewService(index, memory.NewStaticEmbedder(64, nil), time.UTC,
		memory.WithClock(clock.Now))
	ctx := context.Background()

	var ids []string
	for _, c := range []string{"a", "b", "c"} {
		id, err := svc.Add(ctx, alice, c, nil, nil, "", nil)
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, id)
	}
	index.failIDs[ids[1]] = true

	// The batch completes despite the failure; the failed record is counted
	// as attempted but not deleted.
	result, err := svc.DeleteAll(ctx, alice)
	if err != nil {
		t.Fatalf("DeleteAll must not abort on per-record failures: %v", err)
	}
	if result.Attempted != 3 {
		t.Errorf("expected 3 attempted, got %d", result.Attempted)
	}
	if result.Deleted != 2 {
		t.Errorf("expected 2 deleted, got %d", result.Deleted)
	}

	remaining, err := svc.GetAll(ctx, alice, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(remaining) != 1 || remaining[0].ID != ids[1] {
		t.Errorf("only the failed record should survive, got %+v", remaining)
	}
}

func TestService_DeleteIndexFailure(t *testing.T) {
	index := &flakyIndex{Index: memindex.New(), failIDs: map[string]bool{}}
	svc := memory.NewService(index, memory.NewStaticEmbedder(64, nil), time.UTC)
	ctx := context.Background()

	id, err := svc.Add(ctx, alice, "content", nil, nil, "", nil)
	if err != nil {
		t.Fatal(err)
	}
	index.failIDs[id] = true

	if err := svc.Delete(ctx, alice, id); !errors.Is(err, memory.ErrIndexUnavailable) {
		t.Errorf("expected ErrIndexUnavailable, got %v", err)
	}
}

// failingEmbedder simulates an unavailable embedding provider.
type failingEmbedder struct{}

func (failingEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, errors.New("connection refused")
}

func (failingEmbedder) Dimensions() int { return 0 }

func TestService_EmbedderFailure(t *testing.T) {
	svc := memory.NewService(memindex.New(), failingEmbedder{}, time.UTC)
	ctx := context.Background()

	if _, err := svc.Add(ctx, alice, "content", nil, nil, "", nil); !errors.Is(err, memory.ErrEmbeddingUnavailable) {
		t.Errorf("expected ErrEmbeddingUnavailable on add, got %v", err)
	}
	if _, err := svc.Search(ctx, alice, memory.SearchQuery{SemanticText: "q"}); !errors.Is(err, memory.ErrEmbeddingUnavailable) {
		t.Errorf("expected ErrEmbeddingUnavailable on search, got %v", err)
	}

	// Listing does not need the embedder at all.
	if _, err := svc.GetAll(ctx, alice, 0, 0); err != nil {
		t.Errorf("listing should not touch the embedder, got %v", err)
	}
}
