package memory

import (
	"errors"
	"testing"
	"time"
)

func mustBuild(t *testing.T, scope Scope, q SearchQuery) Predicate {
	t.Helper()
	pred, err := BuildFilter(scope, q, testNow)
	if err != nil {
		t.Fatalf("BuildFilter failed: %v", err)
	}
	return pred
}

func TestBuildFilter_ScopeAlwaysApplied(t *testing.T) {
	pred := mustBuild(t, Scope{UserID: "alice"}, SearchQuery{})

	mine := buildPayload(Scope{UserID: "alice"}, "content", nil, nil, "", testNow, nil)
	if !Matches(pred, mine) {
		t.Error("own record should match")
	}

	other := buildPayload(Scope{UserID: "bob"}, "content", nil, nil, "", testNow, nil)
	if Matches(pred, other) {
		t.Error("another tenant's record must never match")
	}
}

func TestBuildFilter_ProjectAndOrgLeaves(t *testing.T) {
	scope := Scope{UserID: "alice", ProjectID: "p1", OrganizationID: "o1"}
	pred := mustBuild(t, scope, SearchQuery{})

	scoped := buildPayload(scope, "content", nil, nil, "", testNow, nil)
	if !Matches(pred, scoped) {
		t.Error("fully scoped record should match")
	}

	// Same user, different project.
	otherProject := buildPayload(Scope{UserID: "alice", ProjectID: "p2", OrganizationID: "o1"}, "content", nil, nil, "", testNow, nil)
	if Matches(pred, otherProject) {
		t.Error("record from another project must not match")
	}
}

func TestBuildFilter_TagsAnyVsAll(t *testing.T) {
	scope := Scope{UserID: "alice"}
	work := buildPayload(scope, "a", []string{"work"}, nil, "", testNow, nil)
	home := buildPayload(scope, "b", []string{"home"}, nil, "", testNow, nil)
	both := buildPayload(scope, "c", []string{"work", "home"}, nil, "", testNow, nil)

	any := mustBuild(t, scope, SearchQuery{Tags: []string{"work", "home"}})
	for name, payload := range map[string]map[string]string{"work": work, "home": home, "both": both} {
		if !Matches(any, payload) {
			t.Errorf("any-tag filter should match %s record", name)
		}
	}

	all := mustBuild(t, scope, SearchQuery{Tags: []string{"work", "home"}, MatchAllTags: true})
	if Matches(all, work) || Matches(all, home) {
		t.Error("all-tags filter must not match single-tag records")
	}
	if !Matches(all, both) {
		t.Error("all-tags filter should match the record carrying both tags")
	}
}

func TestBuildFilter_PeopleUnion(t *testing.T) {
	scope := Scope{UserID: "alice"}
	pred := mustBuild(t, scope, SearchQuery{People: []string{"Bob", "Carol"}})

	withBob := buildPayload(scope, "a", nil, []string{"Bob"}, "", testNow, nil)
	withDave := buildPayload(scope, "b", nil, []string{"Dave"}, "", testNow, nil)

	if !Matches(pred, withBob) {
		t.Error("record mentioning any requested person should match")
	}
	if Matches(pred, withDave) {
		t.Error("record mentioning none of the requested people must not match")
	}
}

func TestBuildFilter_TopicCaseInsensitive(t *testing.T) {
	scope := Scope{UserID: "alice"}
	stored := buildPayload(scope, "a", nil, nil, "Food", testNow, nil)

	pred := mustBuild(t, scope, SearchQuery{TopicCategory: "FOOD"})
	if !Matches(pred, stored) {
		t.Error("topic comparison should be case-insensitive")
	}
}

func TestBuildFilter_TemporalLeavesNarrow(t *testing.T) {
	scope := Scope{UserID: "alice"}
	pred := mustBuild(t, scope, SearchQuery{TemporalExpression: "weekends"})

	saturday := buildPayload(scope, "a", nil, nil, "", time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC), nil)
	wednesday := buildPayload(scope, "b", nil, nil, "", testNow, nil)

	if !Matches(pred, saturday) {
		t.Error("Saturday record should match weekends filter")
	}
	if Matches(pred, wednesday) {
		t.Error("Wednesday record should not match weekends filter")
	}
}

func TestBuildFilter_InvalidTemporal(t *testing.T) {
	_, err := BuildFilter(Scope{UserID: "alice"}, SearchQuery{TemporalExpression: "fortnight"}, testNow)
	if !errors.Is(err, ErrInvalidFilter) {
		t.Fatalf("expected ErrInvalidFilter, got %v", err)
	}
}

func TestBuildFilter_ContradictionIsBuiltNotRejected(t *testing.T) {
	// Contradiction detection is deliberately not performed; the predicate
	// is built and simply matches nothing.
	scope := Scope{UserID: "alice"}
	pred := mustBuild(t, scope, SearchQuery{Tags: []string{"travel"}, TopicCategory: "work"})

	stored := buildPayload(scope, "a", []string{"travel"}, nil, "food", testNow, nil)
	if Matches(pred, stored) {
		t.Error("record with non-matching topic should not match")
	}
}
