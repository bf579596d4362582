package db

import "testing"

func TestRowFromValuesMapsColumnsPositionally(t *testing.T) {
	row := rowFromValues([]string{"id", "name", "email"}, []any{"c-1", "Acme", "a@example.com"})
	if row["id"] != "c-1" || row["name"] != "Acme" || row["email"] != "a@example.com" {
		t.Fatalf("unexpected row: %+v", row)
	}
}

func TestRowFromValuesIgnoresExtraValues(t *testing.T) {
	row := rowFromValues([]string{"id"}, []any{"c-1", "unexpected"})
	if len(row) != 1 || row["id"] != "c-1" {
		t.Fatalf("expected single-key row, got %+v", row)
	}
}
