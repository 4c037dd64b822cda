package memory

import (
	"fmt"
	"strings"
	"time"
)

// BuildFilter composes the caller's scope and a query's structured fields
// into one predicate tree. Composition rules:
//
//   - scope: one AND-ed equality leaf per non-empty scope field, always
//   - tags: MatchAllTags AND-s one leaf per tag (intersection); otherwise
//     all tags form a single OR group (union)
//   - people: always an OR group (any named person qualifies)
//   - topic: single equality leaf against the normalized stored value
//   - temporal: leaves from ParseTemporal, AND-ed in
//
// Contradictory combinations (a tag excluding the only matching topic) are
// built as-is; the index simply returns nothing. An unrecognized temporal
// expression aborts the build with ErrInvalidFilter rather than silently
// dropping the time constraint.
func BuildFilter(scope Scope, q SearchQuery, now time.Time) (Predicate, error) {
	pred := And{}
	for _, leaf := range scopeLeaves(scope) {
		pred = append(pred, leaf)
	}

	tags := NormalizeTags(q.Tags)
	if q.MatchAllTags {
		for _, tag := range tags {
			pred = append(pred, Equals{Field: FieldTags, Value: tag})
		}
	} else if len(tags) > 0 {
		group := Or{}
		for _, tag := range tags {
			group = append(group, Equals{Field: FieldTags, Value: tag})
		}
		pred = append(pred, group)
	}

	if people := NormalizePeople(q.People); len(people) > 0 {
		group := Or{}
		for _, person := range people {
			group = append(group, Equals{Field: FieldPeople, Value: person})
		}
		pred = append(pred, group)
	}

	if topic := NormalizeTopic(q.TopicCategory); topic != "" {
		pred = append(pred, Equals{Field: FieldTopic, Value: topic})
	}

	if expr := strings.TrimSpace(q.TemporalExpression); expr != "" {
		leaves := ParseTemporal(expr, now)
		if len(leaves) == 0 {
			return nil, fmt.Errorf("unrecognized temporal expression %q: %w", expr, ErrInvalidFilter)
		}
		pred = append(pred, leaves...)
	}

	return pred, nil
}

// scopeLeaves returns one equality leaf per non-empty scope field. Every
// predicate built by this package carries these, so no unscoped query can
// reach an index.
func scopeLeaves(scope Scope) []Predicate {
	leaves := []Predicate{Equals{Field: FieldUserID, Value: scope.UserID}}
	if scope.ProjectID != "" {
		leaves = append(leaves, Equals{Field: FieldProjectID, Value: scope.ProjectID})
	}
	if scope.OrganizationID != "" {
		leaves = append(leaves, Equals{Field: FieldOrganizationID, Value: scope.OrganizationID})
	}
	return leaves
}

// NormalizeTags splits comma-joined inputs, trims, lowercases and
// deduplicates while preserving first-seen order. Normalization happens at
// write time so read-time comparisons are case-insensitive for free.
func NormalizeTags(tags []string) []string {
	return normalizeList(tags, true)
}

// NormalizePeople splits comma-joined inputs, trims and deduplicates. Case
// is preserved.
func NormalizePeople(people []string) []string {
	return normalizeList(people, false)
}

// NormalizeTopic trims and lowercases a topic category.
func NormalizeTopic(topic string) string {
	return strings.ToLower(strings.TrimSpace(topic))
}

func normalizeList(values []string, lower bool) []string {
	seen := make(map[string]bool)
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if lower {
				part = strings.ToLower(part)
			}
			if part == "" || seen[part] {
				continue
			}
			seen[part] = true
			out = append(out, part)
		}
	}
	return out
}
