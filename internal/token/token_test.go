package token

import (
	"testing"
	"time"
)

func TestMintAndVerifyBaseToken(t *testing.T) {
	kp, err := GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}

	tok, err := MintBaseToken(kp.Private, "support_agent", nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	claims, err := Verify(tok, kp.Public, time.Now())
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Role != "support_agent" {
		t.Fatalf("role = %q, want support_agent", claims.Role)
	}
	if claims.IsAttenuated() {
		t.Fatal("base token should not be attenuated")
	}
}

func TestAttenuateIsMoreRestrictive(t *testing.T) {
	kp, err := GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}

	base, err := MintBaseToken(kp.Private, "agent", nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	future := time.Now().Add(24 * time.Hour)
	agentToken, err := Attenuate(kp.Private, base, "client_a", &future, "cli", nil)
	if err != nil {
		t.Fatal(err)
	}

	claims, err := Verify(agentToken, kp.Public, time.Now())
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Role != "agent" {
		t.Fatalf("role = %q, want agent", claims.Role)
	}
	if claims.Tenant != "client_a" {
		t.Fatalf("tenant = %q, want client_a", claims.Tenant)
	}
	if !claims.IsAttenuated() {
		t.Fatal("expected attenuated claims")
	}
}

func TestVerifyRejectsBadSignature(t *testing.T) {
	kp, err := GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	other, err := GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}

	tok, err := MintBaseToken(kp.Private, "agent", nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := Verify(tok, other.Public, time.Now()); err == nil {
		t.Fatal("expected verification failure against wrong public key")
	} else if tokErr, ok := err.(*Error); !ok || tokErr.Kind != KindInvalidSignature {
		t.Fatalf("expected InvalidSignature, got %v", err)
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	kp, err := GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}

	past := time.Now().Add(-1 * time.Hour)
	base, err := MintBaseToken(kp.Private, "agent", nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	agentToken, err := Attenuate(kp.Private, base, "client_a", &past, "cli", nil)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := Verify(agentToken, kp.Public, time.Now()); err == nil {
		t.Fatal("expected expiry failure")
	} else if tokErr, ok := err.(*Error); !ok || tokErr.Kind != KindExpired {
		t.Fatalf("expected Expired, got %v", err)
	}
}

func TestMintRequiresRole(t *testing.T) {
	kp, err := GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := MintBaseToken(kp.Private, "", nil, nil); err == nil {
		t.Fatal("expected missing role claim error")
	}
}

func TestAttenuationNarrowsTableAllow(t *testing.T) {
	kp, err := GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}

	base, err := MintBaseToken(kp.Private, "agent", nil, []TableWhitelist{
		{Table: "customers", Columns: []string{"id", "name", "email", "plan"}},
	})
	if err != nil {
		t.Fatal(err)
	}

	agentToken, err := Attenuate(kp.Private, base, "client_a", nil, "cli", []TableWhitelist{
		{Table: "customers", Columns: []string{"id", "name"}},
	})
	if err != nil {
		t.Fatal(err)
	}

	claims, err := Verify(agentToken, kp.Public, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	allow, ok := claims.TableAllow["customers"]
	if !ok {
		t.Fatal("expected customers table allow entry")
	}
	if allow.Allows("email") {
		t.Fatal("attenuation should have narrowed out email")
	}
	if !allow.Allows("id") {
		t.Fatal("expected id to remain allowed")
	}
}

func TestInspectDoesNotRequireValidSignature(t *testing.T) {
	kp, err := GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	tok, err := MintBaseToken(kp.Private, "agent", nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	insp, err := Inspect(tok)
	if err != nil {
		t.Fatal(err)
	}
	if insp.Role != "agent" || insp.BlockCount != 1 {
		t.Fatalf("unexpected inspection: %+v", insp)
	}
}
