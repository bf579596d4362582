package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Bundle is the full set of declarative documents an operator supplies:
// the introspected schema, the tenancy/soft-delete rules, the reusable
// type registry, and one role/group definition per file under roles/ and
// groups/. Compiling a Bundle into an EffectivePolicy is the config
// package's one consumer-facing job (see package policy).
type Bundle struct {
	Schema SchemaModel
	Rules  Rules
	Types  Types
	Roles  map[string]RoleDefinition
	Groups map[string]GroupDefinition
}

// LoadBundle reads schema.yaml, rules.yaml, types.yaml, and every *.yaml
// file under roles/ and groups/ beneath dir. There are no fallbacks or
// partial bundles - a bundle missing schema.yaml, rules.yaml, or
// types.yaml fails to load outright, and the compiler (package policy)
// is the only place defaults are synthesized.
func LoadBundle(dir string) (Bundle, error) {
	var b Bundle

	if err := loadYAMLFile(filepath.Join(dir, "schema.yaml"), &b.Schema); err != nil {
		return Bundle{}, fmt.Errorf("loading schema: %w", err)
	}
	if err := loadYAMLFile(filepath.Join(dir, "rules.yaml"), &b.Rules); err != nil {
		return Bundle{}, fmt.Errorf("loading rules: %w", err)
	}
	for name, tr := range b.Rules.Tables {
		switch {
		case tr.Tenancy.Global:
			tr.Tenancy.Kind = TenancyGlobal
		case tr.Tenancy.DirectColumn != "":
			tr.Tenancy.Kind = TenancyDirect
		case tr.Tenancy.ViaColumn != "":
			tr.Tenancy.Kind = TenancyInherited
		}
		b.Rules.Tables[name] = tr
	}
	if err := loadYAMLFile(filepath.Join(dir, "types.yaml"), &b.Types); err != nil {
		return Bundle{}, fmt.Errorf("loading types: %w", err)
	}

	roles, err := loadDocumentDir[RoleDefinition](filepath.Join(dir, "roles"))
	if err != nil {
		return Bundle{}, fmt.Errorf("loading roles: %w", err)
	}
	b.Roles = roles

	groups, err := loadDocumentDir[GroupDefinition](filepath.Join(dir, "groups"))
	if err != nil {
		return Bundle{}, fmt.Errorf("loading groups: %w", err)
	}
	b.Groups = groups

	return b, nil
}

func loadYAMLFile(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// namedDocument is satisfied by any role/group document that carries its
// own Name field, so loadDocumentDir can key the returned map without a
// second pass over the filesystem.
type namedDocument interface {
	RoleDefinition | GroupDefinition
}

func loadDocumentDir[T namedDocument](dir string) (map[string]T, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return map[string]T{}, nil
	}
	if err != nil {
		return nil, err
	}

	out := make(map[string]T, len(entries))
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".yaml" {
			continue
		}
		path := filepath.Join(dir, e.Name())
		var doc T
		if err := loadYAMLFile(path, &doc); err != nil {
			return nil, err
		}
		name := documentName(doc)
		if name == "" {
			return nil, fmt.Errorf("%s: document has no name", path)
		}
		if _, dup := out[name]; dup {
			return nil, fmt.Errorf("%s: duplicate document name %q", path, name)
		}
		out[name] = doc
	}
	return out, nil
}

func documentName(doc any) string {
	switch d := doc.(type) {
	case RoleDefinition:
		return d.Name
	case GroupDefinition:
		return d.Name
	default:
		return ""
	}
}
