package domain

// Operator names a leaf comparison.
type Operator string

const (
	OpEq               Operator = "eq"
	OpIn               Operator = "in"
	OpGt               Operator = "gt"
	OpLt               Operator = "lt"
	OpGte              Operator = "gte"
	OpLte              Operator = "lte"
	OpBetween          Operator = "between"
	OpTemporalBefore   Operator = "temporal_before"
	OpTemporalAfter    Operator = "temporal_after"
	OpTemporalDuration Operator = "temporal_duration"
	OpTemporalWithin   Operator = "temporal_within"
	OpTemporalOverlaps Operator = "temporal_overlaps"
)

// Sentinel filter values shared by the filter compiler and the categorical
// aggregation, so a category bucket can be fed straight back as a filter.
const (
	EmptyValue = "(Empty)"
	NAValue    = "(N/A)"
)

// Filter is a node of a filter expression tree.
//
// This is a sealed interface: only *Condition, *And, *Or and *Not implement
// it, so compilers can switch exhaustively over the four variants.
type Filter interface {
	filterNode()
}

// Condition is a leaf comparison against a single column.
//
// TableName is empty when the condition targets the table being aggregated.
// TemporalReferenceColumn/Table name the second operand of the temporal
// operators; for temporal_duration the reference column is the stop column.
type Condition struct {
	TableName               string
	Column                  string
	Operator                Operator
	Value                   any
	TemporalReferenceColumn string
	TemporalReferenceTable  string
}

func (*Condition) filterNode() {}

// And matches when every child matches. An empty list contributes nothing.
type And struct {
	Filters []Filter
}

func (*And) filterNode() {}

// Or matches when any child matches. An empty list contributes nothing.
type Or struct {
	Filters []Filter
}

func (*Or) filterNode() {}

// Not negates its child.
type Not struct {
	Filter Filter
}

func (*Not) filterNode() {}

// Leaves returns every Condition in the tree in depth-first order.
func Leaves(f Filter) []*Condition {
	var out []*Condition
	var walk func(Filter)
	walk = func(n Filter) {
		switch node := n.(type) {
		case *Condition:
			out = append(out, node)
		case *And:
			for _, c := range node.Filters {
				walk(c)
			}
		case *Or:
			for _, c := range node.Filters {
				walk(c)
			}
		case *Not:
			walk(node.Filter)
		}
	}
	if f != nil {
		walk(f)
	}
	return out
}
