package memory

import "testing"

func TestMatches_Equals(t *testing.T) {
	payload := map[string]string{
		FieldUserID: "alice",
		FieldTags:   "food,social",
		FieldPeople: "Bob,Carol",
	}

	if !Matches(Equals{Field: FieldUserID, Value: "alice"}, payload) {
		t.Error("scalar equality should match")
	}
	if Matches(Equals{Field: FieldUserID, Value: "ali"}, payload) {
		t.Error("scalar equality must not match prefixes")
	}
	if Matches(Equals{Field: FieldTopic, Value: "food"}, payload) {
		t.Error("missing field should not match")
	}

	// Set-valued fields use element membership.
	if !Matches(Equals{Field: FieldTags, Value: "social"}, payload) {
		t.Error("tag membership should match")
	}
	if Matches(Equals{Field: FieldTags, Value: "soc"}, payload) {
		t.Error("tag membership must not match substrings")
	}
	if !Matches(Equals{Field: FieldPeople, Value: "Bob"}, payload) {
		t.Error("people membership should match")
	}
}

func TestMatches_Range(t *testing.T) {
	payload := map[string]string{FieldHour: "11"}

	if !Matches(Range{Field: FieldHour, Min: 6, Max: 11}, payload) {
		t.Error("inclusive upper bound should match")
	}
	if !Matches(Range{Field: FieldHour, Min: 11, Max: 15}, payload) {
		t.Error("inclusive lower bound should match")
	}
	if Matches(Range{Field: FieldHour, Min: 12, Max: 17}, payload) {
		t.Error("out-of-range value should not match")
	}
	if Matches(Range{Field: FieldYear, Min: 0, Max: 9999}, payload) {
		t.Error("missing field should not match")
	}
	if Matches(Range{Field: FieldHour, Min: 0, Max: 23}, map[string]string{FieldHour: "noon"}) {
		t.Error("non-numeric value should not match")
	}
}

func TestMatches_Composition(t *testing.T) {
	payload := map[string]string{
		FieldUserID: "alice",
		FieldTags:   "work",
	}

	both := And{
		Equals{Field: FieldUserID, Value: "alice"},
		Or{
			Equals{Field: FieldTags, Value: "work"},
			Equals{Field: FieldTags, Value: "home"},
		},
	}
	if !Matches(both, payload) {
		t.Error("and-of-or should match")
	}

	if !Matches(And{}, payload) {
		t.Error("empty And matches everything")
	}
	if Matches(Or{}, payload) {
		t.Error("empty Or matches nothing")
	}

	contradiction := And{
		Equals{Field: FieldTags, Value: "work"},
		Equals{Field: FieldTags, Value: "home"},
	}
	if Matches(contradiction, payload) {
		t.Error("record lacking one of two required tags should not match")
	}
}
