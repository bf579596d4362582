package config

// TenancyKind is the tag of a table's tenancy rule.
type TenancyKind string

const (
	TenancyDirect    TenancyKind = "direct"
	TenancyInherited TenancyKind = "inherited"
	TenancyGlobal    TenancyKind = "global"
)

// TenancyRule is the parsed form of one table's tenancy declaration: one of
// {tenant_direct}, {tenant_inherited}, or {global}.
type TenancyRule struct {
	Kind TenancyKind `yaml:"-" json:"-"`

	// DirectColumn is set when Kind == TenancyDirect.
	DirectColumn string `yaml:"tenant_direct,omitempty" json:"tenant_direct,omitempty"`

	// ViaColumn/ReferencesTable are set when Kind == TenancyInherited.
	ViaColumn       string `yaml:"via,omitempty" json:"via,omitempty"`
	ReferencesTable string `yaml:"references,omitempty" json:"references,omitempty"`

	// Global is true when Kind == TenancyGlobal.
	Global bool `yaml:"global,omitempty" json:"global,omitempty"`
}

// SoftDelete is a table's soft-delete marker declaration.
type SoftDelete struct {
	Column       string `yaml:"column" json:"column"`
	DeletedValue string `yaml:"deleted_value" json:"deleted_value"`
	ActiveValue  string `yaml:"active_value" json:"active_value"`
}

// ColumnRules are the rules-level semantic-type and pattern references for
// one column (distinct from a role's own create/update constraints).
type ColumnRules struct {
	TypeRef string `yaml:"type_ref,omitempty" json:"type_ref,omitempty"`
}

// TableRules is one table's entry in the rules document.
type TableRules struct {
	Tenancy    TenancyRule            `yaml:"tenancy" json:"tenancy"`
	SoftDelete *SoftDelete            `yaml:"soft_delete,omitempty" json:"soft_delete,omitempty"`
	Columns    map[string]ColumnRules `yaml:"columns,omitempty" json:"columns,omitempty"`
}

// Rules is the parsed rules document: tenancy, soft-delete, and
// semantic-type wiring for every table the operator has declared rules for.
type Rules struct {
	Version string                `yaml:"version" json:"version"`
	Tables  map[string]TableRules `yaml:"tables" json:"tables"`
}

func (r Rules) Table(name string) (TableRules, bool) {
	t, ok := r.Tables[name]
	return t, ok
}

// TypeDef is one reusable semantic-type entry: a name, its validation
// regex, and descriptive tags.
type TypeDef struct {
	Name        string   `yaml:"name" json:"name"`
	RegexPattern string  `yaml:"regex_pattern" json:"regex_pattern"`
	Tags        []string `yaml:"tags,omitempty" json:"tags,omitempty"`
}

// Types is the parsed types document.
type Types struct {
	Version string             `yaml:"version" json:"version"`
	Defs    map[string]TypeDef `yaml:"types" json:"types"`
}

func (t Types) Lookup(name string) (TypeDef, bool) {
	d, ok := t.Defs[name]
	return d, ok
}
