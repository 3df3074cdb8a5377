// Copyright 2026 The Meshseal Authors
// SPDX-License-Identifier: Apache-2.0

package envelope

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/meshseal-foundation/meshseal/lib/clock"
	"github.com/meshseal-foundation/meshseal/lib/sign"
)

func testKeystore(t *testing.T, runtimeID string) (*sign.MemoryKeystore, []byte) {
	t.Helper()
	public, private, err := sign.GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}
	store := sign.NewMemoryKeystore()
	store.Add(runtimeID, public)
	return store, private
}

func testParams(payload any) Params {
	return Params{
		Realm:     "prod",
		RuntimeID: "gw-1",
		BusID:     "events",
		Payload:   payload,
		Clock:     clock.Fake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)),
	}
}

func TestSignVerifyRoundTrip(t *testing.T) {
	store, private := testKeystore(t, "gw-1")

	payload := map[string]any{
		"x":      1,
		"nested": map[string]any{"list": []any{1, "two", 3.5}, "ok": true},
	}
	env, err := NewSigned(testParams(payload), private)
	if err != nil {
		t.Fatalf("NewSigned: %v", err)
	}

	verified, err := env.VerifySignature(store)
	if err != nil {
		t.Fatalf("VerifySignature: %v", err)
	}
	if !verified {
		t.Error("valid envelope failed verification")
	}
}

func TestVerifyDetectsPayloadTampering(t *testing.T) {
	store, private := testKeystore(t, "gw-1")

	env, err := NewSigned(testParams(map[string]any{"x": 1}), private)
	if err != nil {
		t.Fatalf("NewSigned: %v", err)
	}

	// Tamper with the payload after signing. The integrity check must
	// catch it before the signature is consulted.
	env.Payload = map[string]any{"x": 2}

	verified, err := env.VerifySignature(store)
	if err != nil {
		t.Fatalf("VerifySignature: %v", err)
	}
	if verified {
		t.Error("tampered payload passed verification")
	}
}

func TestVerifyDetectsMetadataTampering(t *testing.T) {
	store, private := testKeystore(t, "gw-1")

	env, err := NewSigned(testParams(map[string]any{"x": 1}), private)
	if err != nil {
		t.Fatalf("NewSigned: %v", err)
	}

	// Payload hash still matches, so this must be caught by the
	// signature check over the canonical signing content.
	env.BusID = "other-bus"

	verified, err := env.VerifySignature(store)
	if err != nil {
		t.Fatalf("VerifySignature: %v", err)
	}
	if verified {
		t.Error("tampered bus_id passed verification")
	}
}

func TestVerifyFailsClosedOnUnknownKey(t *testing.T) {
	_, private := testKeystore(t, "gw-1")

	env, err := NewSigned(testParams(map[string]any{"x": 1}), private)
	if err != nil {
		t.Fatalf("NewSigned: %v", err)
	}

	// A keystore that has never seen gw-1.
	empty := sign.NewMemoryKeystore()
	_, err = env.VerifySignature(empty)
	if !errors.Is(err, sign.ErrKeyNotFound) {
		t.Errorf("verification with unknown signer: got %v, want ErrKeyNotFound", err)
	}
}

func TestVerifyWrongKey(t *testing.T) {
	_, private := testKeystore(t, "gw-1")

	env, err := NewSigned(testParams(map[string]any{"x": 1}), private)
	if err != nil {
		t.Fatalf("NewSigned: %v", err)
	}

	otherStore, _ := testKeystore(t, "gw-1")
	verified, err := env.VerifySignature(otherStore)
	if err != nil {
		t.Fatalf("VerifySignature: %v", err)
	}
	if verified {
		t.Error("envelope verified under a different runtime key")
	}
}

func TestSignerMismatchFailsConstruction(t *testing.T) {
	_, private := testKeystore(t, "gw-1")

	env, err := NewSigned(testParams(map[string]any{"x": 1}), private)
	if err != nil {
		t.Fatalf("NewSigned: %v", err)
	}

	// Rewrite the signer and push the envelope back through the decode
	// path. Validation must reject it before any verification.
	env.Signature.Signer = "gw-2"
	encoded, err := env.EncodeJSON()
	if err != nil {
		t.Fatalf("EncodeJSON: %v", err)
	}

	_, err = DecodeJSON(encoded)
	var mismatch *IdentityMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("DecodeJSON: got %v, want IdentityMismatchError", err)
	}
	if mismatch.Field != "signature.signer" || mismatch.Want != "gw-1" || mismatch.Got != "gw-2" {
		t.Errorf("mismatch context = %+v", mismatch)
	}
}

func TestEmitterRealmInvariant(t *testing.T) {
	_, private := testKeystore(t, "gw-1")

	params := testParams(map[string]any{"x": 1})
	params.Emitter = &ObservabilityMetadata{Env: "staging", Service: "ingest"}

	_, err := NewSigned(params, private)
	var mismatch *IdentityMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("NewSigned with foreign emitter env: got %v, want IdentityMismatchError", err)
	}
	if mismatch.Field != "emitter.env" || mismatch.Want != "prod" || mismatch.Got != "staging" {
		t.Errorf("mismatch context = %+v", mismatch)
	}

	params.Emitter.Env = "prod"
	if _, err := NewSigned(params, private); err != nil {
		t.Errorf("NewSigned with matching emitter env: %v", err)
	}
}

func TestEmitterExcludedFromSignature(t *testing.T) {
	store, private := testKeystore(t, "gw-1")

	env, err := NewSigned(testParams(map[string]any{"x": 1}), private)
	if err != nil {
		t.Fatalf("NewSigned: %v", err)
	}

	// Attaching or rewriting the untrusted block must not break the
	// signature, as long as it claims the envelope's realm.
	env.Emitter = &ObservabilityMetadata{Env: "prod", Host: "node-7"}

	verified, err := env.VerifySignature(store)
	if err != nil {
		t.Fatalf("VerifySignature: %v", err)
	}
	if !verified {
		t.Error("emitter metadata influenced the signature")
	}
}

func TestDefaultsAndValidation(t *testing.T) {
	_, private := testKeystore(t, "gw-1")

	env, err := NewSigned(testParams(map[string]any{"x": 1}), private)
	if err != nil {
		t.Fatalf("NewSigned: %v", err)
	}

	if _, err := uuid.Parse(env.TraceID); err != nil {
		t.Errorf("default TraceID %q is not a UUID", env.TraceID)
	}
	want := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if !env.EmittedAt.Equal(want) {
		t.Errorf("EmittedAt = %v, want clock time %v", env.EmittedAt, want)
	}

	bad := testParams(map[string]any{"x": 1})
	bad.Realm = ""
	if _, err := NewSigned(bad, private); !errors.Is(err, ErrInvalid) {
		t.Errorf("empty realm: got %v, want ErrInvalid", err)
	}

	bad = testParams(map[string]any{"x": 1})
	bad.CausalityID = "not-a-uuid"
	if _, err := NewSigned(bad, private); !errors.Is(err, ErrInvalid) {
		t.Errorf("malformed causality_id: got %v, want ErrInvalid", err)
	}
}

func TestUnserializablePayload(t *testing.T) {
	_, private := testKeystore(t, "gw-1")

	params := testParams(map[string]any{"f": func() {}})
	_, err := NewSigned(params, private)
	if !errors.Is(err, ErrPayloadSerialization) {
		t.Errorf("unserializable payload: got %v, want ErrPayloadSerialization", err)
	}
}

func TestJSONRoundTripVerifies(t *testing.T) {
	store, private := testKeystore(t, "gw-1")

	params := testParams(map[string]any{
		"count": int64(1) << 60,
		"items": []any{"a", map[string]any{"deep": true}},
	})
	params.TenantID = "tenant-9"
	params.CausalityID = uuid.NewString()

	env, err := NewSigned(params, private)
	if err != nil {
		t.Fatalf("NewSigned: %v", err)
	}

	encoded, err := env.EncodeJSON()
	if err != nil {
		t.Fatalf("EncodeJSON: %v", err)
	}
	decoded, err := DecodeJSON(encoded)
	if err != nil {
		t.Fatalf("DecodeJSON: %v", err)
	}

	verified, err := decoded.VerifySignature(store)
	if err != nil {
		t.Fatalf("VerifySignature after round trip: %v", err)
	}
	if !verified {
		t.Error("envelope failed verification after JSON round trip")
	}
	if decoded.TenantID != "tenant-9" {
		t.Errorf("TenantID = %q after round trip", decoded.TenantID)
	}
}
