// Package relgraph resolves relationship paths between the tables of a
// dataset. Each declared foreign key is a forward edge from the owning table
// to the referenced table, and a backward edge the other way round.
package relgraph

import (
	"cohortlens/internal/domain"
)

// Direction of an edge relative to the declared foreign key.
type Direction string

const (
	// Forward follows a foreign key to the table it references.
	Forward Direction = "forward"
	// Backward goes from a referenced table to a table that references it.
	Backward Direction = "backward"
)

// Edge is one hop of a path. ForeignKeyColumn always lives on the table that
// declares the relationship and ReferencedColumn on the referenced table,
// whichever way the hop is traversed.
type Edge struct {
	From             string
	To               string
	ForeignKeyColumn string
	ReferencedColumn string
	Direction        Direction
	Type             string
}

// FromColumn is the column on From that joins this hop.
func (e Edge) FromColumn() string {
	if e.Direction == Forward {
		return e.ForeignKeyColumn
	}
	return e.ReferencedColumn
}

// ToColumn is the column on To that joins this hop.
func (e Edge) ToColumn() string {
	if e.Direction == Forward {
		return e.ReferencedColumn
	}
	return e.ForeignKeyColumn
}

// Graph is an adjacency-list view of a dataset's relationships. It is built
// once per request and is safe for concurrent reads.
type Graph struct {
	tables   map[string]domain.TableMetadata
	order    []string
	forward  map[string][]Edge
	backward map[string][]Edge
}

// New builds the graph from table metadata. Relationships that reference a
// table outside the listing are kept; they simply lead nowhere useful.
func New(tables []domain.TableMetadata) *Graph {
	g := &Graph{
		tables:   make(map[string]domain.TableMetadata, len(tables)),
		order:    make([]string, 0, len(tables)),
		forward:  make(map[string][]Edge),
		backward: make(map[string][]Edge),
	}
	for _, t := range tables {
		if _, dup := g.tables[t.TableName]; !dup {
			g.order = append(g.order, t.TableName)
		}
		g.tables[t.TableName] = t
	}
	for _, name := range g.order {
		for _, rel := range g.tables[name].Relationships {
			g.forward[name] = append(g.forward[name], Edge{
				From:             name,
				To:               rel.ReferencedTable,
				ForeignKeyColumn: rel.ForeignKey,
				ReferencedColumn: rel.ReferencedColumn,
				Direction:        Forward,
				Type:             rel.Type,
			})
			g.backward[rel.ReferencedTable] = append(g.backward[rel.ReferencedTable], Edge{
				From:             rel.ReferencedTable,
				To:               name,
				ForeignKeyColumn: rel.ForeignKey,
				ReferencedColumn: rel.ReferencedColumn,
				Direction:        Backward,
				Type:             rel.Type,
			})
		}
	}
	return g
}

// Table returns the metadata of a table in the graph.
func (g *Graph) Table(name string) (domain.TableMetadata, bool) {
	t, ok := g.tables[name]
	return t, ok
}

// Tables returns every table name in declaration order.
func (g *Graph) Tables() []string {
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}

// FindPath returns the shortest path from one table to another, expanding
// forward edges before backward edges at each node so that ownership
// directions win ties. It returns nil when to is unreachable or equal to from.
func (g *Graph) FindPath(from, to string) []Edge {
	if from == to {
		return nil
	}

	parent := map[string]Edge{}
	visited := map[string]bool{from: true}
	queue := []string{from}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		next := make([]Edge, 0, len(g.forward[cur])+len(g.backward[cur]))
		next = append(next, g.forward[cur]...)
		next = append(next, g.backward[cur]...)

		for _, e := range next {
			if visited[e.To] {
				continue
			}
			visited[e.To] = true
			parent[e.To] = e
			if e.To == to {
				return unwind(parent, from, to)
			}
			queue = append(queue, e.To)
		}
	}
	return nil
}

func unwind(parent map[string]Edge, from, to string) []Edge {
	var path []Edge
	for cur := to; cur != from; {
		e := parent[cur]
		path = append(path, e)
		cur = e.From
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

// HasBackwardHop reports whether any hop of path runs against a foreign key.
func HasBackwardHop(path []Edge) bool {
	for _, e := range path {
		if e.Direction == Backward {
			return true
		}
	}
	return false
}

// PathTables lists the table names visited by path, starting with the origin.
func PathTables(path []Edge) []string {
	if len(path) == 0 {
		return nil
	}
	out := make([]string, 0, len(path)+1)
	out = append(out, path[0].From)
	for _, e := range path {
		out = append(out, e.To)
	}
	return out
}
