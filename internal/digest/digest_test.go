package digest

import "testing"

func TestOfArgumentsIsStableAcrossKeyOrder(t *testing.T) {
	a := OfArguments(map[string]any{"id": "7", "status": "open"})
	b := OfArguments(map[string]any{"status": "open", "id": "7"})
	if a != b {
		t.Fatalf("expected key-order independence, got %q vs %q", a, b)
	}
}

func TestOfArgumentsDiffersOnValueChange(t *testing.T) {
	a := OfArguments(map[string]any{"status": "open"})
	b := OfArguments(map[string]any{"status": "closed"})
	if a == b {
		t.Fatal("expected different digests for different values")
	}
}

func TestOfStringDeterministic(t *testing.T) {
	sql := `SELECT "id" FROM "customers" WHERE "organization_id" = $1`
	if OfString(sql) != OfString(sql) {
		t.Fatal("expected OfString to be deterministic")
	}
}
