package memory

import (
	"sort"
	"strconv"
	"strings"
	"time"
)

// FormatHits normalizes raw index hits into RankedRecords, applies the
// score threshold and the final sort order.
//
// Listing hits carry no similarity score; they get 1.0 (exact match by
// construction) so a downstream threshold never spuriously rejects them.
// The threshold itself applies only when a semantic query was issued.
// Sorting runs last so limit slicing downstream stays consistent.
func FormatHits(hits []Hit, semantic bool, threshold *float64, sortBy SortBy) []RankedRecord {
	records := make([]RankedRecord, 0, len(hits))
	for _, hit := range hits {
		rec := recordFromHit(hit, semantic)
		if semantic && threshold != nil && rec.Score < *threshold {
			continue
		}
		records = append(records, rec)
	}

	switch sortBy {
	case SortByTimestamp:
		sort.SliceStable(records, func(i, j int) bool {
			return records[i].CreatedAt.After(records[j].CreatedAt)
		})
	case SortByScore:
		sort.SliceStable(records, func(i, j int) bool {
			return records[i].Score > records[j].Score
		})
	default:
		// SortByRelevance: keep index order.
	}
	return records
}

// temporalFields are surfaced in RankedRecord.TemporalData.
var temporalFields = []string{FieldDayOfWeek, FieldQuarter, FieldYear, FieldHour, FieldIsWeekend}

// systemFields never appear in RankedRecord.Metadata.
var systemFields = map[string]bool{
	FieldUserID:         true,
	FieldProjectID:      true,
	FieldOrganizationID: true,
	FieldData:           true,
	FieldCreatedAt:      true,
	FieldCreatedAtUnix:  true,
	FieldTags:           true,
	FieldPeople:         true,
	FieldTopic:          true,
	FieldDayOfWeek:      true,
	FieldQuarter:        true,
	FieldYear:           true,
	FieldHour:           true,
	FieldIsWeekend:      true,
}

func recordFromHit(hit Hit, semantic bool) RankedRecord {
	rec := RankedRecord{
		ID:      hit.ID,
		Content: hit.Payload[FieldData],
		Topic:   hit.Payload[FieldTopic],
		Score:   1.0,
	}
	if semantic {
		rec.Score = hit.Score
	}
	if v := hit.Payload[FieldTags]; v != "" {
		rec.Tags = strings.Split(v, ",")
	}
	if v := hit.Payload[FieldPeople]; v != "" {
		rec.People = strings.Split(v, ",")
	}
	if v := hit.Payload[FieldCreatedAtUnix]; v != "" {
		if unix, err := strconv.ParseInt(v, 10, 64); err == nil {
			rec.CreatedAt = time.Unix(unix, 0).UTC()
		}
	}

	rec.TemporalData = make(map[string]string, len(temporalFields))
	for _, field := range temporalFields {
		if v, ok := hit.Payload[field]; ok {
			rec.TemporalData[field] = v
		}
	}
	for k, v := range hit.Payload {
		if systemFields[k] {
			continue
		}
		if rec.Metadata == nil {
			rec.Metadata = make(map[string]string)
		}
		rec.Metadata[k] = v
	}
	return rec
}
