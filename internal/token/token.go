// Package token implements Cori's attenuable capability token format: an
// Ed25519-signed, append-only chain of blocks that binds {role, tenant,
// expires_at, optional table/column whitelist}. It is modeled on the
// Biscuit token semantics used by the original Cori prototype (authority
// block facts, append-only attenuation blocks, embedded time checks), but
// no Biscuit-format library exists in Go, so the wire format here is a
// small hand-rolled envelope signed with the standard library's
// crypto/ed25519 rather than a fabricated dependency.
package token

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"time"
)

// blockKind distinguishes the authority block (block 0, minted once) from
// attenuation blocks (appended, never removed, strictly narrowing).
type blockKind string

const (
	blockAuthority   blockKind = "authority"
	blockAttenuation blockKind = "attenuation"
)

// wireTableAllow is the wire representation of a per-table column
// whitelist fact.
type wireTableAllow struct {
	AllColumns bool     `json:"all_columns,omitempty"`
	Columns    []string `json:"columns,omitempty"`
}

// block is one signed fact-set in the token chain.
type block struct {
	Kind         blockKind                 `json:"kind"`
	Role         string                    `json:"role,omitempty"`
	TableAllow   map[string]wireTableAllow `json:"table_allow,omitempty"`
	Tenant       string                    `json:"tenant,omitempty"`
	ExpiresAt    *int64                    `json:"expires_at,omitempty"`
	MintedAt     int64                     `json:"minted_at,omitempty"`
	AttenuatedAt int64                     `json:"attenuated_at,omitempty"`
	Source       string                    `json:"source,omitempty"`
}

// envelope is the full signed token as it travels over the wire.
type envelope struct {
	Blocks    []block `json:"blocks"`
	Signature string  `json:"signature"`
}

func canonicalize(blocks []block) ([]byte, error) {
	// encoding/json sorts map keys, so this marshaling is deterministic:
	// the same logical block set always signs to the same bytes.
	return json.Marshal(blocks)
}

func encodeEnvelope(env envelope) (string, error) {
	raw, err := json.Marshal(env)
	if err != nil {
		return "", errMalformed("failed to encode token: " + err.Error())
	}
	return base64.URLEncoding.EncodeToString(raw), nil
}

func decodeEnvelope(s string) (envelope, error) {
	raw, err := base64.URLEncoding.DecodeString(s)
	if err != nil {
		return envelope{}, errMalformed("invalid base64: " + err.Error())
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return envelope{}, errMalformed("invalid token structure: " + err.Error())
	}
	if len(env.Blocks) == 0 {
		return envelope{}, errMalformed("token has no blocks")
	}
	return env, nil
}

// TableWhitelist is the caller-supplied form of a per-table column
// restriction, used when minting or attenuating.
type TableWhitelist struct {
	Table      string
	AllColumns bool
	Columns    []string
}

// MintBaseToken produces a base role token: an authority block asserting
// role and (optionally) a table/column whitelist and expiry, signed with
// priv. A base token has no tenant and is not by itself usable for agent
// requests (§4.6 rejects it at the pipeline).
func MintBaseToken(priv ed25519.PrivateKey, role string, expiresAt *time.Time, tableAllow []TableWhitelist) (string, error) {
	if role == "" {
		return "", errMissingClaim("role")
	}

	b := block{
		Kind:     blockAuthority,
		Role:     role,
		MintedAt: time.Now().Unix(),
	}
	if expiresAt != nil {
		ts := expiresAt.Unix()
		b.ExpiresAt = &ts
	}
	if len(tableAllow) > 0 {
		b.TableAllow = make(map[string]wireTableAllow, len(tableAllow))
		for _, w := range tableAllow {
			b.TableAllow[w.Table] = wireTableAllow{AllColumns: w.AllColumns, Columns: w.Columns}
		}
	}

	blocks := []block{b}
	sig, err := sign(priv, blocks)
	if err != nil {
		return "", err
	}
	return encodeEnvelope(envelope{Blocks: blocks, Signature: sig})
}

// Attenuate appends a tenant-scoping block to base, optionally tightening
// the expiry and narrowing the table whitelist further, re-signing the
// whole chain with priv. The result is strictly more restrictive than
// base: every check base's blocks establish still applies, plus the new
// block's.
func Attenuate(priv ed25519.PrivateKey, baseToken, tenant string, expiresAt *time.Time, source string, tableAllow []TableWhitelist) (string, error) {
	if tenant == "" {
		return "", errMissingClaim("tenant")
	}
	env, err := decodeEnvelope(baseToken)
	if err != nil {
		return "", err
	}

	b := block{
		Kind:         blockAttenuation,
		Tenant:       tenant,
		Source:       source,
		AttenuatedAt: time.Now().Unix(),
	}
	if expiresAt != nil {
		ts := expiresAt.Unix()
		b.ExpiresAt = &ts
	}
	if len(tableAllow) > 0 {
		b.TableAllow = make(map[string]wireTableAllow, len(tableAllow))
		for _, w := range tableAllow {
			b.TableAllow[w.Table] = wireTableAllow{AllColumns: w.AllColumns, Columns: w.Columns}
		}
	}

	blocks := append(append([]block{}, env.Blocks...), b)
	sig, err := sign(priv, blocks)
	if err != nil {
		return "", err
	}
	return encodeEnvelope(envelope{Blocks: blocks, Signature: sig})
}

func sign(priv ed25519.PrivateKey, blocks []block) (string, error) {
	canon, err := canonicalize(blocks)
	if err != nil {
		return "", errMalformed("failed to canonicalize blocks: " + err.Error())
	}
	sig := ed25519.Sign(priv, canon)
	return base64.StdEncoding.EncodeToString(sig), nil
}

// Verify validates the signature chain and all embedded expiry checks
// against pub and now, and extracts a normalized Claims. It does not
// enforce tenant presence — a structurally valid base token verifies
// successfully with an empty Tenant; the pipeline enforces tenant presence
// at request time per §4.6.
func Verify(presented string, pub ed25519.PublicKey, now time.Time) (Claims, error) {
	env, err := decodeEnvelope(presented)
	if err != nil {
		return Claims{}, err
	}

	sig, err := base64.StdEncoding.DecodeString(env.Signature)
	if err != nil {
		return Claims{}, errMalformed("invalid signature encoding: " + err.Error())
	}
	canon, err := canonicalize(env.Blocks)
	if err != nil {
		return Claims{}, errMalformed("failed to canonicalize blocks: " + err.Error())
	}
	if !ed25519.Verify(pub, canon, sig) {
		return Claims{}, errInvalidSignature()
	}

	authority := env.Blocks[0]
	if authority.Kind != blockAuthority {
		return Claims{}, errMalformed("first block is not an authority block")
	}
	if authority.Role == "" {
		return Claims{}, errMissingClaim("role")
	}

	claims := Claims{Role: authority.Role}
	claims.TableAllow = mergeTableAllow(nil, authority.TableAllow)

	var earliestExpiry *time.Time
	if authority.ExpiresAt != nil {
		t := time.Unix(*authority.ExpiresAt, 0)
		earliestExpiry = &t
	}

	for _, b := range env.Blocks[1:] {
		if b.Kind != blockAttenuation {
			return Claims{}, errMalformed("non-attenuation block after the authority block")
		}
		if b.Tenant != "" {
			claims.Tenant = b.Tenant
		}
		if len(b.TableAllow) > 0 {
			claims.TableAllow = mergeTableAllow(claims.TableAllow, b.TableAllow)
		}
		if b.ExpiresAt != nil {
			t := time.Unix(*b.ExpiresAt, 0)
			if earliestExpiry == nil || t.Before(*earliestExpiry) {
				earliestExpiry = &t
			}
		}
	}
	claims.ExpiresAt = earliestExpiry

	if claims.Expired(now) {
		return Claims{}, errExpired()
	}

	return claims, nil
}

// mergeTableAllow narrows an existing whitelist by an additional one. A nil
// existing whitelist is replaced outright; a non-nil existing whitelist is
// intersected per table (attenuation can only narrow, never widen).
func mergeTableAllow(existing map[string]TableAllow, add map[string]wireTableAllow) map[string]TableAllow {
	if len(add) == 0 {
		return existing
	}
	converted := make(map[string]TableAllow, len(add))
	for table, w := range add {
		ta := TableAllow{AllColumns: w.AllColumns}
		if !w.AllColumns {
			ta.Columns = make(map[string]struct{}, len(w.Columns))
			for _, c := range w.Columns {
				ta.Columns[c] = struct{}{}
			}
		}
		converted[table] = ta
	}
	if existing == nil {
		return converted
	}
	merged := make(map[string]TableAllow, len(existing))
	for table, old := range existing {
		nw, ok := converted[table]
		if !ok {
			merged[table] = old
			continue
		}
		merged[table] = intersectTableAllow(old, nw)
	}
	return merged
}

func intersectTableAllow(a, b TableAllow) TableAllow {
	if a.AllColumns {
		return b
	}
	if b.AllColumns {
		return a
	}
	out := TableAllow{Columns: make(map[string]struct{})}
	for c := range a.Columns {
		if _, ok := b.Columns[c]; ok {
			out.Columns[c] = struct{}{}
		}
	}
	return out
}

// Inspection is a structural view of a token's blocks without verifying
// the signature. It is for operator tooling only and must never be used
// in the request path.
type Inspection struct {
	BlockCount int
	Role       string
	Tenant     string
}

// Inspect returns a structural view of a token without verifying it.
func Inspect(presented string) (Inspection, error) {
	env, err := decodeEnvelope(presented)
	if err != nil {
		return Inspection{}, err
	}
	insp := Inspection{BlockCount: len(env.Blocks)}
	if len(env.Blocks) > 0 {
		insp.Role = env.Blocks[0].Role
	}
	for _, b := range env.Blocks {
		if b.Tenant != "" {
			insp.Tenant = b.Tenant
		}
	}
	return insp, nil
}
