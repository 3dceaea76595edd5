// Package search assembles parameterised SQL for list endpoints: WHERE
// fragments with positional pgx arguments, whitelisted ORDER BY and
// LIMIT/OFFSET paging.
package search

import (
	"fmt"
	"strconv"
	"strings"
)

// Query accumulates filters for a single SELECT over from. Clauses use "?"
// placeholders which are renumbered to $n in the order they are added.
type Query struct {
	from    string
	cols    string
	where   []string
	args    []interface{}
	orderBy string
}

func NewQuery(from, cols string) *Query {
	return &Query{from: from, cols: cols}
}

// Add appends a clause joined with AND. Each "?" consumes one argument.
func (q *Query) Add(clause string, args ...interface{}) *Query {
	if n := strings.Count(clause, "?"); n != len(args) {
		panic(fmt.Sprintf("search: clause %q has %d placeholders but %d args", clause, n, len(args)))
	}
	var b strings.Builder
	for _, r := range clause {
		if r == '?' {
			q.args = append(q.args, args[0])
			args = args[1:]
			b.WriteString("$" + strconv.Itoa(len(q.args)))
			continue
		}
		b.WriteRune(r)
	}
	q.where = append(q.where, b.String())
	return q
}

// Eq adds column = value.
func (q *Query) Eq(column string, value interface{}) *Query {
	return q.Add(column+" = ?", value)
}

// Contains adds a case-insensitive substring match on any of columns. The
// term is escaped so % and _ match literally.
func (q *Query) Contains(term string, columns ...string) *Query {
	if term == "" || len(columns) == 0 {
		return q
	}
	pattern := "%" + EscapeLike(term) + "%"
	parts := make([]string, len(columns))
	args := make([]interface{}, len(columns))
	for i, col := range columns {
		parts[i] = col + " ILIKE ?"
		args[i] = pattern
	}
	clause := strings.Join(parts, " OR ")
	if len(parts) > 1 {
		clause = "(" + clause + ")"
	}
	return q.Add(clause, args...)
}

// comparators maps public operator names onto SQL.
var comparators = map[string]string{
	"eq":  "=",
	"gt":  ">",
	"gte": ">=",
	"lt":  "<",
	"lte": "<=",
}

// ValidComparator reports whether op is accepted by Compare.
func ValidComparator(op string) bool {
	_, ok := comparators[op]
	return ok
}

// Compare adds column <op> value for op in eq, gt, gte, lt, lte. An unknown
// operator falls back to eq.
func (q *Query) Compare(column, op string, value interface{}) *Query {
	sqlOp, ok := comparators[op]
	if !ok {
		sqlOp = "="
	}
	return q.Add(column+" "+sqlOp+" ?", value)
}

// Where returns the combined filter without the WHERE keyword, or "TRUE".
func (q *Query) Where() string {
	if len(q.where) == 0 {
		return "TRUE"
	}
	return strings.Join(q.where, " AND ")
}

func (q *Query) Args() []interface{} {
	return q.args
}

// OrderBy sets the raw ORDER BY expression.
func (q *Query) OrderBy(orderBy string) *Query {
	q.orderBy = orderBy
	return q
}

// Sort orders by the column mapped to field in allowed. Unknown fields fall
// back to defaultOrder. Any order other than "asc" sorts descending.
func (q *Query) Sort(field, order string, allowed map[string]string, defaultOrder string) *Query {
	col, ok := allowed[field]
	if !ok {
		q.orderBy = defaultOrder
		return q
	}
	dir := "DESC"
	if strings.EqualFold(order, "asc") {
		dir = "ASC"
	}
	q.orderBy = col + " " + dir
	return q
}

func (q *Query) CountSQL() string {
	return fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", q.from, q.Where())
}

// DataSQL returns the paged select. Limit and offset are the two arguments
// following the filter arguments, see DataArgs.
func (q *Query) DataSQL() string {
	sql := fmt.Sprintf("SELECT %s FROM %s WHERE %s", q.cols, q.from, q.Where())
	if q.orderBy != "" {
		sql += " ORDER BY " + q.orderBy
	}
	n := len(q.args)
	return sql + fmt.Sprintf(" LIMIT $%d OFFSET $%d", n+1, n+2)
}

func (q *Query) DataArgs(limit, offset int) []interface{} {
	out := make([]interface{}, len(q.args), len(q.args)+2)
	copy(out, q.args)
	return append(out, limit, offset)
}

// EscapeLike escapes LIKE metacharacters using the default backslash escape.
func EscapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
