package memory

import (
	"strconv"
	"strings"
)

// Predicate is a composable boolean expression over record payload fields.
// The variant is closed: And, Or, Equals and Range are the only node kinds,
// so index adapters can match exhaustively.
type Predicate interface {
	isPredicate()
}

// And matches when every child matches. An empty And matches everything.
type And []Predicate

// Or matches when at least one child matches.
type Or []Predicate

// Equals matches a payload field against a value. On the set-valued fields
// (tags, people_mentioned) it is element membership over the comma-joined
// stored form; on every other field it is exact string equality.
type Equals struct {
	Field string
	Value string
}

// Range matches an integer-valued payload field against an inclusive
// [Min, Max] interval. Records missing the field, or carrying a
// non-numeric value, do not match.
type Range struct {
	Field string
	Min   int64
	Max   int64
}

func (And) isPredicate()    {}
func (Or) isPredicate()     {}
func (Equals) isPredicate() {}
func (Range) isPredicate()  {}

// setValuedFields are stored comma-joined; Equals tests membership.
var setValuedFields = map[string]bool{
	FieldTags:   true,
	FieldPeople: true,
}

// Matches evaluates a predicate against a record payload. It is the single
// filtering implementation shared by all index adapters.
func Matches(p Predicate, payload map[string]string) bool {
	switch n := p.(type) {
	case And:
		for _, child := range n {
			if !Matches(child, payload) {
				return false
			}
		}
		return true
	case Or:
		for _, child := range n {
			if Matches(child, payload) {
				return true
			}
		}
		return false
	case Equals:
		v, ok := payload[n.Field]
		if !ok {
			return false
		}
		if setValuedFields[n.Field] {
			for _, elem := range strings.Split(v, ",") {
				if elem == n.Value {
					return true
				}
			}
			return false
		}
		return v == n.Value
	case Range:
		v, ok := payload[n.Field]
		if !ok {
			return false
		}
		i, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return false
		}
		return i >= n.Min && i <= n.Max
	}
	return false
}
