package memory

import (
	"fmt"
	"strings"
	"time"
)

// Payload field names shared by the facade, the filter builder and the
// index adapters. Every record stored in an index carries these keys in
// its flat string payload.
const (
	FieldUserID         = "user_id"
	FieldProjectID      = "project_id"
	FieldOrganizationID = "organization_id"
	FieldData           = "data"
	FieldCreatedAt      = "created_at"
	FieldCreatedAtUnix  = "created_at_unix"
	FieldTags           = "tags"
	FieldPeople         = "people_mentioned"
	FieldTopic          = "topic_category"
	FieldDayOfWeek      = "day_of_week"
	FieldQuarter        = "quarter"
	FieldYear           = "year"
	FieldHour           = "hour"
	FieldIsWeekend      = "is_weekend"
)

// Scope is the tenant identity tuple that partitions all data and queries.
// ProjectID and OrganizationID are set together or not at all.
type Scope struct {
	UserID         string
	ProjectID      string
	OrganizationID string
}

// Validate rejects malformed scope tuples before any external call is made.
func (s Scope) Validate() error {
	if strings.TrimSpace(s.UserID) == "" {
		return fmt.Errorf("scope requires a user id: %w", ErrInvalidFilter)
	}
	if (s.ProjectID == "") != (s.OrganizationID == "") {
		return fmt.Errorf("scope requires project and organization ids together: %w", ErrInvalidFilter)
	}
	return nil
}

// Equal reports whether two scopes identify the same tenant.
func (s Scope) Equal(other Scope) bool {
	return s.UserID == other.UserID &&
		s.ProjectID == other.ProjectID &&
		s.OrganizationID == other.OrganizationID
}

// SortBy selects the final ordering of search results.
type SortBy string

const (
	// SortByRelevance keeps the index order (the default).
	SortByRelevance SortBy = "relevance"
	// SortByTimestamp orders by descending creation time.
	SortByTimestamp SortBy = "timestamp"
	// SortByScore orders by descending similarity score.
	SortByScore SortBy = "score"
)

// SearchQuery describes one search or listing request. It is ephemeral and
// never persisted; the caller's scope is passed alongside it.
type SearchQuery struct {
	SemanticText       string
	Tags               []string
	MatchAllTags       bool
	People             []string
	TopicCategory      string
	TemporalExpression string
	Limit              int
	ScoreThreshold     *float64
	SortBy             SortBy
}

// RankedRecord is the canonical read shape returned by the facade.
// CreatedAt is always UTC; temporal filtering happens against the derived
// payload fields, which carry the configured timezone.
type RankedRecord struct {
	ID           string
	Content      string
	Tags         []string
	People       []string
	Topic        string
	TemporalData map[string]string
	Score        float64
	CreatedAt    time.Time
	Metadata     map[string]string
}
