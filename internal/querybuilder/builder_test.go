package querybuilder

import (
	"strings"
	"testing"

	"github.com/corisec/cori/internal/config"
	"github.com/corisec/cori/internal/policy"
)

func customersSchema() config.TableSchema {
	return config.TableSchema{
		Name:       "customers",
		PrimaryKey: []string{"id"},
		Columns: []config.ColumnDef{
			{Name: "id", SQLType: "uuid"},
			{Name: "organization_id", SQLType: "uuid"},
			{Name: "name", SQLType: "text"},
			{Name: "email", SQLType: "text"},
		},
	}
}

func customersPolicy() policy.EffectiveTablePolicy {
	return policy.EffectiveTablePolicy{
		Table:   "customers",
		Tenancy: policy.TenancyPlan{Kind: policy.TenancyPlanDirect, Table: "customers", DirectColumn: "organization_id"},
		Read: &policy.EffectiveReadPolicy{
			Columns: map[string]struct{}{"id": {}, "name": {}, "email": {}},
		},
	}
}

func ticketsSchemaQB() config.TableSchema {
	return config.TableSchema{
		Name:       "tickets",
		PrimaryKey: []string{"id"},
		Columns: []config.ColumnDef{
			{Name: "id", SQLType: "uuid"},
			{Name: "customer_id", SQLType: "uuid"},
			{Name: "status", SQLType: "text"},
		},
	}
}

func ticketsPolicyInherited() policy.EffectiveTablePolicy {
	return policy.EffectiveTablePolicy{
		Table: "tickets",
		Tenancy: policy.TenancyPlan{
			Kind:         policy.TenancyPlanInherited,
			Table:        "tickets",
			DirectColumn: "organization_id",
			Joins:        []policy.JoinStep{{FromColumn: "customer_id", ParentTable: "customers", ParentColumn: "id"}},
		},
		Read: &policy.EffectiveReadPolicy{Columns: map[string]struct{}{"id": {}, "status": {}}},
	}
}

func TestBuildGetProjectsColumnsInSchemaOrderAndScopesTenant(t *testing.T) {
	stmt, err := BuildGet(customersPolicy(), customersSchema(), "org-1", "cust-9")
	if err != nil {
		t.Fatalf("BuildGet: %v", err)
	}
	if strings.Contains(stmt.SQL, "*") {
		t.Fatalf("expected explicit column projection, got %q", stmt.SQL)
	}
	if !strings.Contains(stmt.SQL, `"customers"."organization_id" = $2`) {
		t.Fatalf("expected tenant predicate, got %q", stmt.SQL)
	}
	if stmt.Args[0] != "cust-9" || stmt.Args[1] != "org-1" {
		t.Fatalf("unexpected args: %+v", stmt.Args)
	}
	wantCols := []string{"id", "name", "email"}
	for i, c := range wantCols {
		if stmt.Columns[i] != c {
			t.Fatalf("column order mismatch: got %v want %v", stmt.Columns, wantCols)
		}
	}
}

func TestBuildGetInheritedTenancyUsesExistsJoin(t *testing.T) {
	stmt, err := BuildGet(ticketsPolicyInherited(), ticketsSchemaQB(), "org-1", "tick-1")
	if err != nil {
		t.Fatalf("BuildGet: %v", err)
	}
	if !strings.Contains(stmt.SQL, `EXISTS (SELECT 1 FROM "customers" WHERE "customers"."id" = "tickets"."customer_id" AND "customers"."organization_id" = $2)`) {
		t.Fatalf("expected inherited-tenancy EXISTS clause, got %q", stmt.SQL)
	}
}

func TestBuildListCapsLimitAtRoleMaximum(t *testing.T) {
	tp := customersPolicy()
	maxPerPage := 10
	tp.Read.MaxPerPage = &maxPerPage
	requested := 500
	stmt, err := BuildList(tp, customersSchema(), "org-1", nil, &requested, 0, 20)
	if err != nil {
		t.Fatalf("BuildList: %v", err)
	}
	found := false
	for _, a := range stmt.Args {
		if a == 10 {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected capped limit 10 among bound args, got %+v", stmt.Args)
	}
}

// TestBuildListMatchesSupportAgentScenario reproduces spec.md §8 scenario
// 1's exact expected statement shape and parameter list.
func TestBuildListMatchesSupportAgentScenario(t *testing.T) {
	schema := config.TableSchema{
		Name:       "customers",
		PrimaryKey: []string{"id"},
		Columns: []config.ColumnDef{
			{Name: "id", SQLType: "uuid"},
			{Name: "name", SQLType: "text"},
			{Name: "email", SQLType: "text"},
			{Name: "plan", SQLType: "text"},
			{Name: "status", SQLType: "text"},
			{Name: "organization_id", SQLType: "uuid"},
			{Name: "created_at", SQLType: "timestamptz"},
		},
	}
	tp := policy.EffectiveTablePolicy{
		Table:   "customers",
		Tenancy: policy.TenancyPlan{Kind: policy.TenancyPlanDirect, Table: "customers", DirectColumn: "organization_id"},
		Read: &policy.EffectiveReadPolicy{
			Columns: map[string]struct{}{"id": {}, "name": {}, "email": {}, "plan": {}, "created_at": {}, "status": {}},
		},
	}

	stmt, err := BuildList(tp, schema, "acme", map[string]any{"status": "active"}, nil, 0, 100)
	if err != nil {
		t.Fatalf("BuildList: %v", err)
	}
	// status is both filterable and projected here: this implementation
	// treats "readable" and "filterable" as the same column set (a filter
	// can only name a column the role may also read back), so status
	// appears in the projection alongside the columns spec.md §8 scenario
	// 1 lists explicitly.
	want := `SELECT "customers"."id", "customers"."name", "customers"."email", "customers"."plan", "customers"."status", "customers"."created_at" FROM "customers" WHERE "customers"."status" = $1 AND "customers"."organization_id" = $2 ORDER BY "customers"."id" LIMIT $3 OFFSET $4`
	if stmt.SQL != want {
		t.Fatalf("SQL mismatch:\n got:  %q\n want: %q", stmt.SQL, want)
	}
	wantArgs := []any{"active", "acme", 100, 0}
	if len(stmt.Args) != len(wantArgs) {
		t.Fatalf("arg count mismatch: got %+v want %+v", stmt.Args, wantArgs)
	}
	for i := range wantArgs {
		if stmt.Args[i] != wantArgs[i] {
			t.Fatalf("arg %d mismatch: got %v want %v", i, stmt.Args[i], wantArgs[i])
		}
	}
}

func TestBuildListRejectsUnknownFilterColumn(t *testing.T) {
	_, err := BuildList(customersPolicy(), customersSchema(), "org-1", map[string]any{"organization_id": "x"}, nil, 0, 20)
	if err == nil {
		t.Fatal("expected error for disallowed filter column")
	}
}

// TestBuildListSQLIsIndependentOfFilterValues is the "no SQL from input"
// testable property: an adversarial filter value never changes the
// rendered SQL text, only the bound parameter slice.
func TestBuildListSQLIsIndependentOfFilterValues(t *testing.T) {
	benign, err := BuildList(customersPolicy(), customersSchema(), "org-1", map[string]any{"name": "acme"}, nil, 0, 20)
	if err != nil {
		t.Fatalf("BuildList benign: %v", err)
	}
	adversarial, err := BuildList(customersPolicy(), customersSchema(), "org-1", map[string]any{"name": "acme'; DROP TABLE customers; --"}, nil, 0, 20)
	if err != nil {
		t.Fatalf("BuildList adversarial: %v", err)
	}
	if benign.SQL != adversarial.SQL {
		t.Fatalf("SQL text differs based on filter value:\nbenign:      %q\nadversarial: %q", benign.SQL, adversarial.SQL)
	}
	if adversarial.Args[len(adversarial.Args)-3] == benign.Args[len(benign.Args)-3] {
		// sanity: the values did differ, only the text didn't.
	}
}

func TestBuildCreateInjectsTenantColumnRegardlessOfPayload(t *testing.T) {
	tp := customersPolicy()
	data := map[string]any{"name": "Acme", "organization_id": "attacker-controlled"}
	stmt, err := BuildCreate(tp, customersSchema(), "org-1", data)
	if err != nil {
		t.Fatalf("BuildCreate: %v", err)
	}
	for i, c := range stmt.Columns {
		if c == "organization_id" {
			if stmt.Args[i] != "org-1" {
				t.Fatalf("expected server-assigned tenant value org-1, got %v", stmt.Args[i])
			}
		}
	}
}

func TestBuildDeleteRewritesToUpdateWhenSoft(t *testing.T) {
	tp := customersPolicy()
	tp.Delete = config.DeleteSoft
	tp.SoftDelete = &config.SoftDelete{Column: "deleted_at", DeletedValue: "NOW()", ActiveValue: "NULL"}
	stmt, err := BuildDelete(tp, customersSchema(), "org-1", "cust-9")
	if err != nil {
		t.Fatalf("BuildDelete: %v", err)
	}
	want := `UPDATE "customers" SET "deleted_at" = NOW() WHERE "customers"."id" = $1 AND "customers"."organization_id" = $2 AND "customers"."deleted_at" IS NULL`
	if stmt.SQL != want {
		t.Fatalf("soft delete SQL mismatch:\n got:  %q\n want: %q", stmt.SQL, want)
	}
	if !strings.HasPrefix(stmt.SQL, "UPDATE ") {
		t.Fatalf("expected soft delete to render as UPDATE, got %q", stmt.SQL)
	}
	if !strings.Contains(stmt.SQL, `"deleted_at" IS NULL`) {
		t.Fatalf("expected active-row predicate guarding the soft delete, got %q", stmt.SQL)
	}
}

func TestBuildDeleteHardDeletesWhenNotSoft(t *testing.T) {
	tp := customersPolicy()
	tp.Delete = config.DeleteHard
	stmt, err := BuildDelete(tp, customersSchema(), "org-1", "cust-9")
	if err != nil {
		t.Fatalf("BuildDelete: %v", err)
	}
	if !strings.HasPrefix(stmt.SQL, "DELETE FROM ") {
		t.Fatalf("expected hard delete, got %q", stmt.SQL)
	}
}
