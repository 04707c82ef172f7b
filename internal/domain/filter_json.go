package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// FilterExpr wraps a Filter so it can be embedded in JSON request bodies.
// A null or missing expression decodes to a nil Filter.
type FilterExpr struct {
	Filter Filter
}

// UnmarshalJSON implements json.Unmarshaler.
func (e *FilterExpr) UnmarshalJSON(data []byte) error {
	f, err := ParseFilter(data)
	if err != nil {
		return err
	}
	e.Filter = f
	return nil
}

// leafJSON is the wire shape of a Condition.
type leafJSON struct {
	TableName               string          `json:"tableName"`
	Column                  string          `json:"column"`
	Operator                string          `json:"operator"`
	Value                   json.RawMessage `json:"value"`
	TemporalReferenceColumn string          `json:"temporal_reference_column"`
	TemporalReferenceTable  string          `json:"temporal_reference_table"`
}

// ParseFilter decodes the JSON wire form of a filter tree.
//
// Accepted shapes are {"and": [...]}, {"or": [...]}, {"not": {...}} and
// leaf objects carrying column/operator/value. A top-level array is an
// implicit AND. Numbers keep their literal text as json.Number.
func ParseFilter(data []byte) (Filter, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	if trimmed[0] == '[' {
		children, err := parseFilterList(trimmed)
		if err != nil {
			return nil, err
		}
		return &And{Filters: children}, nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return nil, ErrValidation("filter must be a JSON object or array: %v", err)
	}

	andRaw, hasAnd := obj["and"]
	orRaw, hasOr := obj["or"]
	notRaw, hasNot := obj["not"]
	logical := 0
	for _, present := range []bool{hasAnd, hasOr, hasNot} {
		if present {
			logical++
		}
	}
	if logical > 1 {
		return nil, ErrValidation("filter node must carry exactly one of and/or/not")
	}

	switch {
	case hasAnd:
		children, err := parseFilterList(andRaw)
		if err != nil {
			return nil, fmt.Errorf("and: %w", err)
		}
		return &And{Filters: children}, nil
	case hasOr:
		children, err := parseFilterList(orRaw)
		if err != nil {
			return nil, fmt.Errorf("or: %w", err)
		}
		return &Or{Filters: children}, nil
	case hasNot:
		child, err := ParseFilter(notRaw)
		if err != nil {
			return nil, fmt.Errorf("not: %w", err)
		}
		if child == nil {
			return nil, ErrValidation("not: operand is required")
		}
		return &Not{Filter: child}, nil
	}

	_, hasColumn := obj["column"]
	_, hasOperator := obj["operator"]
	if !hasColumn && !hasOperator {
		return nil, ErrValidation("filter node must be a condition (column/operator) or a logical group")
	}

	var leaf leafJSON
	if err := json.Unmarshal(trimmed, &leaf); err != nil {
		return nil, ErrValidation("invalid filter condition: %v", err)
	}
	value, err := decodeFilterValue(leaf.Value)
	if err != nil {
		return nil, err
	}
	return &Condition{
		TableName:               leaf.TableName,
		Column:                  leaf.Column,
		Operator:                Operator(leaf.Operator),
		Value:                   value,
		TemporalReferenceColumn: leaf.TemporalReferenceColumn,
		TemporalReferenceTable:  leaf.TemporalReferenceTable,
	}, nil
}

func parseFilterList(data json.RawMessage) ([]Filter, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, ErrValidation("expected a list of filters: %v", err)
	}
	out := make([]Filter, 0, len(items))
	for i, item := range items {
		f, err := ParseFilter(item)
		if err != nil {
			return nil, fmt.Errorf("filter %d: %w", i, err)
		}
		if f != nil {
			out = append(out, f)
		}
	}
	return out, nil
}

func decodeFilterValue(raw json.RawMessage) (any, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, ErrValidation("invalid filter value: %v", err)
	}
	return v, nil
}
