package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadBundle(t *testing.T) {
	dir := t.TempDir()

	writeFile(t, filepath.Join(dir, "schema.yaml"), `
version: "1"
tables:
  customers:
    name: customers
    primary_key: [id]
    columns:
      - name: id
        sql_type: uuid
        nullable: false
      - name: tenant_id
        sql_type: uuid
        nullable: false
      - name: email
        sql_type: text
        nullable: false
`)
	writeFile(t, filepath.Join(dir, "rules.yaml"), `
version: "1"
tables:
  customers:
    tenancy:
      tenant_direct: tenant_id
`)
	writeFile(t, filepath.Join(dir, "types.yaml"), `
version: "1"
types:
  email:
    name: email
    regex_pattern: "^[^@]+@[^@]+$"
`)
	writeFile(t, filepath.Join(dir, "roles", "support_agent.yaml"), `
version: "1"
name: support_agent
default_page_size: 25
tables:
  customers:
    read:
      all: true
`)
	writeFile(t, filepath.Join(dir, "groups", "billing_leads.yaml"), `
version: "1"
name: billing_leads
approvers: ["alice", "bob"]
`)

	bundle, err := LoadBundle(dir)
	if err != nil {
		t.Fatalf("LoadBundle: %v", err)
	}

	if _, ok := bundle.Schema.Table("customers"); !ok {
		t.Fatal("expected customers table in schema")
	}
	rules, ok := bundle.Rules.Table("customers")
	if !ok || rules.Tenancy.DirectColumn != "tenant_id" {
		t.Fatalf("unexpected rules: %+v", rules)
	}
	if _, ok := bundle.Types.Lookup("email"); !ok {
		t.Fatal("expected email type")
	}
	role, ok := bundle.Roles["support_agent"]
	if !ok || role.DefaultPageSize != 25 {
		t.Fatalf("unexpected role: %+v", role)
	}
	group, ok := bundle.Groups["billing_leads"]
	if !ok || len(group.Approvers) != 2 {
		t.Fatalf("unexpected group: %+v", group)
	}
}

func TestLoadBundleMissingSchemaFails(t *testing.T) {
	dir := t.TempDir()
	if _, err := LoadBundle(dir); err == nil {
		t.Fatal("expected error when schema.yaml is missing")
	}
}

func TestLoadBundleRejectsDuplicateRoleNames(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "schema.yaml"), "version: \"1\"\ntables: {}\n")
	writeFile(t, filepath.Join(dir, "rules.yaml"), "version: \"1\"\ntables: {}\n")
	writeFile(t, filepath.Join(dir, "types.yaml"), "version: \"1\"\ntypes: {}\n")
	writeFile(t, filepath.Join(dir, "roles", "a.yaml"), "version: \"1\"\nname: dup\ntables: {}\n")
	writeFile(t, filepath.Join(dir, "roles", "b.yaml"), "version: \"1\"\nname: dup\ntables: {}\n")

	if _, err := LoadBundle(dir); err == nil {
		t.Fatal("expected duplicate role name error")
	}
}
