package query

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// SortField is one ORDER BY term. Field names a projected view property.
type SortField struct {
	Field      string `json:"field"`
	Descending bool   `json:"descending"`
}

// ParseSortFields splits "filename,-created_at" into sort terms; a leading
// "-" selects descending order. Empty input yields nil.
func ParseSortFields(s string) []SortField {
	var fields []SortField
	for part := range strings.SplitSeq(s, ",") {
		part = strings.TrimSpace(part)
		name, desc := strings.CutPrefix(part, "-")
		if name == "" {
			continue
		}
		fields = append(fields, SortField{Field: name, Descending: desc})
	}
	return fields
}

// predicate is a WHERE fragment whose arguments are marked with "?".
type predicate struct {
	sql  string
	args []any
}

// Builder assembles SELECT statements over a ProjectionMap. Predicates are
// joined with AND and numbered as PostgreSQL positional parameters when built.
type Builder struct {
	projection  *ProjectionMap
	predicates  []predicate
	sort        []SortField
	defaultSort []SortField
}

func NewBuilder(projection *ProjectionMap, defaultSort ...SortField) *Builder {
	return &Builder{
		projection:  projection,
		defaultSort: defaultSort,
	}
}

// OrderByFields replaces the default ordering. Fields the projection does
// not know are dropped so client input never reaches the SQL text.
func (b *Builder) OrderByFields(fields []SortField) *Builder {
	b.sort = b.sort[:0]
	for _, f := range fields {
		if col, ok := b.projection.Lookup(f.Field); ok {
			b.sort = append(b.sort, SortField{Field: col, Descending: f.Descending})
		}
	}
	return b
}

// WhereEquals adds column = value. Nil values and nil pointers are skipped;
// other pointers are dereferenced so the arguments carry plain values.
func (b *Builder) WhereEquals(field string, value any) *Builder {
	if isNil(value) {
		return b
	}
	return b.where(b.projection.Column(field)+" = ?", deref(value))
}

// WhereContains adds a case-insensitive substring match. Empty values are skipped.
func (b *Builder) WhereContains(field string, value *string) *Builder {
	if value == nil || *value == "" {
		return b
	}
	return b.where(b.projection.Column(field)+" ILIKE ?", likePattern(*value))
}

// WhereSearch matches the term against any of fields.
func (b *Builder) WhereSearch(search *string, fields ...string) *Builder {
	if search == nil || *search == "" || len(fields) == 0 {
		return b
	}

	pattern := likePattern(*search)
	terms := make([]string, len(fields))
	args := make([]any, len(fields))
	for i, field := range fields {
		terms[i] = b.projection.Column(field) + " ILIKE ?"
		args[i] = pattern
	}

	return b.where("("+strings.Join(terms, " OR ")+")", args...)
}

func (b *Builder) where(sql string, args ...any) *Builder {
	b.predicates = append(b.predicates, predicate{sql: sql, args: args})
	return b
}

// Build returns the full ordered SELECT.
func (b *Builder) Build() (string, []any) {
	where, args := b.whereClause()
	return b.selectFrom() + where + b.orderClause(), args
}

// BuildCount returns SELECT COUNT(*) under the same predicates.
func (b *Builder) BuildCount() (string, []any) {
	where, args := b.whereClause()
	return "SELECT COUNT(*) FROM " + b.projection.From() + where, args
}

// BuildPage returns the ordered SELECT restricted to one 1-indexed page.
func (b *Builder) BuildPage(page, pageSize int) (string, []any) {
	if page < 1 {
		page = 1
	}
	where, args := b.whereClause()
	sql := fmt.Sprintf("%s%s%s LIMIT %d OFFSET %d",
		b.selectFrom(), where, b.orderClause(), pageSize, (page-1)*pageSize)
	return sql, args
}

// BuildSingle selects the row whose idField equals id. Accumulated
// predicates are ignored.
func (b *Builder) BuildSingle(idField string, id any) (string, []any) {
	return b.selectFrom() + " WHERE " + b.projection.Column(idField) + " = $1", []any{id}
}

// BuildSingleOrNull selects at most one row under the accumulated predicates.
func (b *Builder) BuildSingleOrNull() (string, []any) {
	where, args := b.whereClause()
	return b.selectFrom() + where + " LIMIT 1", args
}

func (b *Builder) selectFrom() string {
	return "SELECT " + b.projection.Columns() + " FROM " + b.projection.From()
}

func (b *Builder) whereClause() (string, []any) {
	if len(b.predicates) == 0 {
		return "", nil
	}

	var sb strings.Builder
	var args []any
	sb.WriteString(" WHERE ")

	for i, p := range b.predicates {
		if i > 0 {
			sb.WriteString(" AND ")
		}
		next := 0
		for _, r := range p.sql {
			if r != '?' {
				sb.WriteRune(r)
				continue
			}
			args = append(args, p.args[next])
			next++
			sb.WriteString("$" + strconv.Itoa(len(args)))
		}
	}

	return sb.String(), args
}

// orderClause renders the active ordering followed by the projection key so
// rows with equal sort values page deterministically.
func (b *Builder) orderClause() string {
	fields := b.sort
	if len(fields) == 0 {
		fields = make([]SortField, 0, len(b.defaultSort))
		for _, f := range b.defaultSort {
			fields = append(fields, SortField{Field: b.projection.Column(f.Field), Descending: f.Descending})
		}
	}

	key := b.projection.Key()
	terms := make([]string, 0, len(fields)+1)
	keyed := false

	for _, f := range fields {
		dir := "ASC"
		if f.Descending {
			dir = "DESC"
		}
		terms = append(terms, f.Field+" "+dir)
		keyed = keyed || f.Field == key
	}
	if !keyed && key != "" {
		terms = append(terms, key+" ASC")
	}

	if len(terms) == 0 {
		return ""
	}
	return " ORDER BY " + strings.Join(terms, ", ")
}

// likePattern wraps s in % wildcards after escaping LIKE metacharacters.
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}

func isNil(value any) bool {
	if value == nil {
		return true
	}

	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func, reflect.Interface:
		return v.IsNil()
	}
	return false
}

func deref(value any) any {
	v := reflect.ValueOf(value)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}
	return v.Interface()
}
