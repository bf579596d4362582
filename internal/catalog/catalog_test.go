package catalog

import (
	"testing"

	"github.com/corisec/cori/internal/config"
	"github.com/corisec/cori/internal/policy"
	"github.com/corisec/cori/internal/token"
)

func TestSingularize(t *testing.T) {
	cases := map[string]string{
		"categories": "category",
		"customers":  "customer",
		"data":       "data",
	}
	for in, want := range cases {
		if got := singularize(in); got != want {
			t.Errorf("singularize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestToolNames(t *testing.T) {
	if got := toolNameGet("customers"); got != "getCustomer" {
		t.Errorf("toolNameGet = %q", got)
	}
	if got := toolNameList("customers"); got != "listCustomers" {
		t.Errorf("toolNameList = %q", got)
	}
	if got := toolNameCreate("support_categories"); got != "createSupportCategory" {
		t.Errorf("toolNameCreate = %q", got)
	}
}

func testSchema() config.SchemaModel {
	return config.SchemaModel{
		Tables: map[string]config.TableSchema{
			"customers": {
				Name: "customers",
				Columns: []config.ColumnDef{
					{Name: "id", SQLType: "uuid"},
					{Name: "organization_id", SQLType: "uuid"},
					{Name: "name", SQLType: "text"},
					{Name: "email", SQLType: "text"},
				},
			},
		},
	}
}

func testRole() policy.EffectiveRole {
	return policy.EffectiveRole{
		Name:            "support_agent",
		DefaultPageSize: 100,
		Tables: map[string]policy.EffectiveTablePolicy{
			"customers": {
				Table: "customers",
				Read:  &policy.EffectiveReadPolicy{AllColumns: true},
				Create: map[string]policy.EffectiveCreateConstraint{
					"name":  {Required: true},
					"email": {Required: true},
				},
				Delete: config.DeleteSoft,
			},
		},
	}
}

func TestGenerateProducesExpectedTools(t *testing.T) {
	descs := Generate(testRole(), testSchema(), nil)
	names := map[string]bool{}
	for _, d := range descs {
		names[d.Name] = true
	}
	for _, want := range []string{"getCustomer", "listCustomers", "createCustomer", "deleteCustomer"} {
		if !names[want] {
			t.Errorf("expected tool %q in catalog, got %v", want, names)
		}
	}
	if names["updateCustomer"] {
		t.Error("did not expect updateCustomer: role has no update constraints")
	}
}

func TestGenerateHonorsTableAllowlist(t *testing.T) {
	allow := map[string]token.TableAllow{
		"customers": {Columns: map[string]struct{}{"id": {}, "name": {}}},
	}
	descs := Generate(testRole(), testSchema(), allow)
	for _, d := range descs {
		if d.Name == "listCustomers" {
			filters := d.InputSchema["properties"].(map[string]any)["filters"].(map[string]any)["properties"].(map[string]any)
			if _, ok := filters["email"]; ok {
				t.Error("expected email filter to be excluded by table allowlist")
			}
		}
	}
}

func TestGenerateSkipsTableNotInWhitelist(t *testing.T) {
	allow := map[string]token.TableAllow{
		"tickets": {AllColumns: true},
	}
	descs := Generate(testRole(), testSchema(), allow)
	if len(descs) != 0 {
		t.Fatalf("expected no descriptors for a table absent from the whitelist, got %d", len(descs))
	}
}

func TestFingerprintStableAndSensitiveToWhitelist(t *testing.T) {
	a := Fingerprint("support_agent", "acme", nil)
	b := Fingerprint("support_agent", "acme", nil)
	if a != b {
		t.Fatal("expected deterministic fingerprint for identical inputs")
	}

	withAllow := Fingerprint("support_agent", "acme", map[string]token.TableAllow{
		"customers": {Columns: map[string]struct{}{"id": {}}},
	})
	if a == withAllow {
		t.Fatal("expected fingerprint to change when table allowlist differs")
	}
}
