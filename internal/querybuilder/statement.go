package querybuilder

// StatementKind tags what a PreparedStatement does, so the executor in
// internal/db knows whether to expect rows back or an affected-row count.
type StatementKind string

const (
	StatementReadOne  StatementKind = "read_one"
	StatementReadMany StatementKind = "read_many"
	StatementCreate   StatementKind = "create"
	StatementUpdate   StatementKind = "update"
	StatementDelete   StatementKind = "delete"
)

// PreparedStatement is a fully rendered, parameter-bound SQL statement.
// SQL never contains a value drawn from agent input; every such value lives
// in Args at the position its placeholder names.
type PreparedStatement struct {
	Kind    StatementKind
	Table   string
	SQL     string
	Args    []any
	Columns []string // projected columns, in schema order, for read statements
}
