// Package config holds the parsed-configuration data model shared by every
// core component: the database shape (SchemaModel), tenancy/soft-delete
// rules (Rules), reusable validation patterns (Types), and per-role/group
// policy documents (RoleDefinition, GroupDefinition). Parsing YAML/JSON into
// these structs is an ambient convenience (see LoadBundle in load.go); the core's
// tested contract is the structs themselves, exactly as spec.md §3
// describes.
package config

// ColumnDef describes one column of a table as introspected from the
// database.
type ColumnDef struct {
	Name        string   `yaml:"name" json:"name"`
	SQLType     string   `yaml:"sql_type" json:"sql_type"`
	Nullable    bool     `yaml:"nullable" json:"nullable"`
	DefaultExpr string   `yaml:"default_expr,omitempty" json:"default_expr,omitempty"`
	HasDefault  bool     `yaml:"-" json:"-"`
	EnumValues  []string `yaml:"enum_values,omitempty" json:"enum_values,omitempty"`
}

// ForeignKey describes an outgoing foreign-key edge from one column to a
// parent table's column.
type ForeignKey struct {
	FromColumn    string `yaml:"from_column" json:"from_column"`
	OtherTable    string `yaml:"other_table" json:"other_table"`
	OtherColumn   string `yaml:"other_column" json:"other_column"`
	OnDeleteRule  string `yaml:"on_delete,omitempty" json:"on_delete,omitempty"`
}

// TableSchema is the introspected shape of one table.
type TableSchema struct {
	Name        string       `yaml:"name" json:"name"`
	Columns     []ColumnDef  `yaml:"columns" json:"columns"`
	PrimaryKey  []string     `yaml:"primary_key" json:"primary_key"`
	ForeignKeys []ForeignKey `yaml:"foreign_keys,omitempty" json:"foreign_keys,omitempty"`
}

// Column returns the column definition named name, if any.
func (t TableSchema) Column(name string) (ColumnDef, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return ColumnDef{}, false
}

// HasColumn reports whether the table has a column named name.
func (t TableSchema) HasColumn(name string) bool {
	_, ok := t.Column(name)
	return ok
}

// ForeignKeyOn returns the foreign key declared on fromColumn, if any.
func (t TableSchema) ForeignKeyOn(fromColumn string) (ForeignKey, bool) {
	for _, fk := range t.ForeignKeys {
		if fk.FromColumn == fromColumn {
			return fk, true
		}
	}
	return ForeignKey{}, false
}

// SchemaModel is the database shape as introspected. Table names are
// case-sensitive and unique within the namespace.
type SchemaModel struct {
	Version string                 `yaml:"version" json:"version"`
	Tables  map[string]TableSchema `yaml:"tables" json:"tables"`
}

// Table looks up a table by name.
func (s SchemaModel) Table(name string) (TableSchema, bool) {
	t, ok := s.Tables[name]
	return t, ok
}
