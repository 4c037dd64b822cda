package memory

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const defaultSearchLimit = 10

// deleteAllParallelism bounds concurrent per-record deletes in DeleteAll.
const deleteAllParallelism = 4

// Service is the tenant-scoped memory facade. It is stateless between
// calls and safe for concurrent use; all record state lives in the index.
type Service struct {
	index        Index
	embedder     Embedder
	loc          *time.Location
	now          func() time.Time
	defaultLimit int
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source. Temporal predicates and created_at
// stamps derive from it.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithDefaultLimit sets the result limit used when a query does not carry
// one.
func WithDefaultLimit(limit int) Option {
	return func(s *Service) { s.defaultLimit = limit }
}

// NewService wires the facade to its two collaborators. loc is the timezone
// all temporal fields and predicates are computed in; nil means time.Local.
func NewService(index Index, embedder Embedder, loc *time.Location, opts ...Option) *Service {
	if loc == nil {
		loc = time.Local
	}
	s := &Service{
		index:        index,
		embedder:     embedder,
		loc:          loc,
		now:          time.Now,
		defaultLimit: defaultSearchLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add stores one memory under the caller's scope and returns its id.
// Content is embedded synchronously; tags and topic are normalized at write
// time; extra metadata is merged without overwriting system keys.
func (s *Service) Add(ctx context.Context, scope Scope, content string, tags, people []string, topic string, extra map[string]string) (string, error) {
	if err := scope.Validate(); err != nil {
		return "", err
	}
	if strings.TrimSpace(content) == "" {
		return "", ErrEmptyContent
	}

	vector, err := s.embedder.Embed(ctx, content)
	if err != nil {
		return "", fmt.Errorf("embed content: %w: %v", ErrEmbeddingUnavailable, err)
	}

	id := uuid.New().String()
	createdAt := s.now().In(s.loc)
	payload := buildPayload(scope, content, tags, people, topic, createdAt, extra)

	if err := s.index.Insert(ctx, id, vector, payload); err != nil {
		return "", fmt.Errorf("insert memory: %w: %v", ErrIndexUnavailable, err)
	}
	slog.Debug("added memory", "id", id, "user", scope.UserID, "tags", payload[FieldTags])
	return id, nil
}

// Search runs a scoped semantic search, or a scoped listing when the query
// carries no semantic text. The score threshold applies only on the
// semantic path; the final sort order is always applied last.
func (s *Service) Search(ctx context.Context, scope Scope, q SearchQuery) ([]RankedRecord, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	pred, err := BuildFilter(scope, q, s.now().In(s.loc))
	if err != nil {
		return nil, err
	}

	limit := q.Limit
	if limit <= 0 {
		limit = s.defaultLimit
	}

	var hits []Hit
	semantic := strings.TrimSpace(q.SemanticText) != ""
	if semantic {
		vector, err := s.embedder.Embed(ctx, q.SemanticText)
		if err != nil {
			return nil, fmt.Errorf("embed query: %w: %v", ErrEmbeddingUnavailable, err)
		}
		hits, err = s.index.Search(ctx, vector, pred, limit)
		if err != nil {
			return nil, fmt.Errorf("search index: %w: %v", ErrIndexUnavailable, err)
		}
	} else {
		hits, err = s.index.List(ctx, pred, limit)
		if err != nil {
			return nil, fmt.Errorf("list index: %w: %v", ErrIndexUnavailable, err)
		}
	}

	return FormatHits(hits, semantic, q.ScoreThreshold, q.SortBy), nil
}

// GetAll lists the caller's memories with client-side offset slicing. The
// index has no offset primitive, so limit+offset records are requested and
// the prefix discarded. limit <= 0 means everything.
func (s *Service) GetAll(ctx context.Context, scope Scope, limit, offset int) ([]RankedRecord, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	pred, err := BuildFilter(scope, SearchQuery{}, s.now().In(s.loc))
	if err != nil {
		return nil, err
	}

	fetch := 0
	if limit > 0 {
		fetch = limit + offset
	}
	hits, err := s.index.List(ctx, pred, fetch)
	if err != nil {
		return nil, fmt.Errorf("list index: %w: %v", ErrIndexUnavailable, err)
	}

	records := FormatHits(hits, false, nil, SortByRelevance)
	if offset >= len(records) {
		return nil, nil
	}
	records = records[offset:]
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// Delete removes one memory after an ownership check. A record owned by a
// different scope yields ErrAccessDenied, never ErrNotFound, to preserve
// the audit signal. A concurrent delete of the same id is idempotent and
// surfaces as ErrNotFound.
func (s *Service) Delete(ctx context.Context, scope Scope, id string) error {
	if err := scope.Validate(); err != nil {
		return err
	}
	hit, err := s.index.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("get memory %s: %w: %v", id, ErrIndexUnavailable, err)
	}
	if hit == nil {
		return fmt.Errorf("memory %s: %w", id, ErrNotFound)
	}
	if !scopeOf(hit.Payload).Equal(scope) {
		return fmt.Errorf("memory %s belongs to another scope: %w", id, ErrAccessDenied)
	}

	removed, err := s.index.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("delete memory %s: %w: %v", id, ErrIndexUnavailable, err)
	}
	if !removed {
		return fmt.Errorf("memory %s: %w", id, ErrNotFound)
	}
	return nil
}

// DeleteAllResult reports partial-failure accounting for DeleteAll.
type DeleteAllResult struct {
	Deleted   int
	Attempted int
}

// DeleteAll removes every memory in the caller's scope. Individual delete
// failures are counted, logged and skipped; the batch never aborts.
func (s *Service) DeleteAll(ctx context.Context, scope Scope) (DeleteAllResult, error) {
	records, err := s.GetAll(ctx, scope, 0, 0)
	if err != nil {
		return DeleteAllResult{}, err
	}

	var deleted atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(deleteAllParallelism)
	for _, rec := range records {
		id := rec.ID
		g.Go(func() error {
			if err := s.Delete(gctx, scope, id); err != nil {
				slog.Warn("delete failed during batch", "id", id, "user", scope.UserID, "error", err)
				return nil
			}
			deleted.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	result := DeleteAllResult{Deleted: int(deleted.Load()), Attempted: len(records)}
	slog.Info("deleted scope memories", "user", scope.UserID, "deleted", result.Deleted, "attempted", result.Attempted)
	return result, nil
}

// buildPayload assembles the flat payload stored in the index. Caller
// metadata is merged last and never overwrites system keys.
func buildPayload(scope Scope, content string, tags, people []string, topic string, createdAt time.Time, extra map[string]string) map[string]string {
	payload := map[string]string{
		FieldUserID:        scope.UserID,
		FieldData:          content,
		FieldCreatedAt:     createdAt.Format(time.RFC3339),
		FieldCreatedAtUnix: strconv.FormatInt(createdAt.Unix(), 10),
		FieldDayOfWeek:     strings.ToLower(createdAt.Weekday().String()),
		FieldQuarter:       fmt.Sprintf("q%d", (int(createdAt.Month())-1)/3+1),
		FieldYear:          strconv.Itoa(createdAt.Year()),
		FieldHour:          strconv.Itoa(createdAt.Hour()),
		FieldIsWeekend:     strconv.FormatBool(isWeekend(createdAt.Weekday())),
	}
	if scope.ProjectID != "" {
		payload[FieldProjectID] = scope.ProjectID
	}
	if scope.OrganizationID != "" {
		payload[FieldOrganizationID] = scope.OrganizationID
	}
	if normalized := NormalizeTags(tags); len(normalized) > 0 {
		payload[FieldTags] = strings.Join(normalized, ",")
	}
	if normalized := NormalizePeople(people); len(normalized) > 0 {
		payload[FieldPeople] = strings.Join(normalized, ",")
	}
	if normalized := NormalizeTopic(topic); normalized != "" {
		payload[FieldTopic] = normalized
	}
	for k, v := range extra {
		if _, reserved := payload[k]; reserved || systemFields[k] {
			continue
		}
		payload[k] = v
	}
	return payload
}

func isWeekend(day time.Weekday) bool {
	return day == time.Saturday || day == time.Sunday
}

func scopeOf(payload map[string]string) Scope {
	return Scope{
		UserID:         payload[FieldUserID],
		ProjectID:      payload[FieldProjectID],
		OrganizationID: payload[FieldOrganizationID],
	}
}
