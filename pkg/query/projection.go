// Package query builds parameterized PostgreSQL SELECT statements from a
// projection of view property names onto qualified columns.
package query

import (
	"fmt"
	"strings"
)

// ProjectionMap maps view property names (e.g. "CreatedAt") to qualified
// columns (e.g. "c.created_at") across a base table and its joins. The first
// projected column is the key used to break ordering ties.
type ProjectionMap struct {
	schema  string
	table   string
	base    string
	alias   string
	joins   []string
	columns map[string]string
	folded  map[string]string
	order   []string
}

func NewProjectionMap(schema, table, alias string) *ProjectionMap {
	return &ProjectionMap{
		schema:  schema,
		table:   table,
		base:    alias,
		alias:   alias,
		columns: make(map[string]string),
		folded:  make(map[string]string),
	}
}

// Project maps column on the most recently joined alias to viewName.
func (p *ProjectionMap) Project(column, viewName string) *ProjectionMap {
	qualified := p.alias + "." + column
	p.columns[viewName] = qualified
	p.folded[fold(viewName)] = qualified
	p.order = append(p.order, qualified)
	return p
}

// ProjectExpr maps a raw SQL expression to viewName. The expression is used
// verbatim in SELECT, WHERE and ORDER BY.
func (p *ProjectionMap) ProjectExpr(expr, viewName string) *ProjectionMap {
	p.columns[viewName] = expr
	p.folded[fold(viewName)] = expr
	p.order = append(p.order, expr)
	return p
}

// Join appends a joined relation; later Project calls qualify with its alias.
func (p *ProjectionMap) Join(schema, table, alias, kind, on string) *ProjectionMap {
	p.joins = append(p.joins, fmt.Sprintf("%s %s.%s %s ON %s", kind, schema, table, alias, on))
	p.alias = alias
	return p
}

// Table returns "schema.table alias" for the base relation.
func (p *ProjectionMap) Table() string {
	return fmt.Sprintf("%s.%s %s", p.schema, p.table, p.base)
}

// From returns the base relation followed by its joins.
func (p *ProjectionMap) From() string {
	if len(p.joins) == 0 {
		return p.Table()
	}
	return p.Table() + " " + strings.Join(p.joins, " ")
}

// Column returns the qualified column for viewName. Unmapped names are
// returned unchanged so callers can reference raw expressions.
func (p *ProjectionMap) Column(viewName string) string {
	if col, ok := p.columns[viewName]; ok {
		return col
	}
	return viewName
}

// Lookup resolves client-facing names. It accepts the view name in any case
// as well as its snake_case spelling ("created_at" finds "CreatedAt").
func (p *ProjectionMap) Lookup(name string) (string, bool) {
	if col, ok := p.columns[name]; ok {
		return col, true
	}
	col, ok := p.folded[fold(name)]
	return col, ok
}

// Key returns the first projected column.
func (p *ProjectionMap) Key() string {
	if len(p.order) == 0 {
		return ""
	}
	return p.order[0]
}

func (p *ProjectionMap) Columns() string {
	return strings.Join(p.order, ", ")
}

func fold(name string) string {
	return strings.ToLower(strings.ReplaceAll(name, "_", ""))
}
