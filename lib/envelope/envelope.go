// Copyright 2026 The Meshseal Authors
// SPDX-License-Identifier: Apache-2.0

package envelope

import (
	"bytes"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/meshseal-foundation/meshseal/lib/canonical"
	"github.com/meshseal-foundation/meshseal/lib/clock"
	"github.com/meshseal-foundation/meshseal/lib/digest"
	"github.com/meshseal-foundation/meshseal/lib/sign"
)

// Errors returned by envelope construction and verification.
var (
	// ErrPayloadSerialization indicates the payload could not be
	// canonicalized for hashing. Distinct from a verification failure.
	ErrPayloadSerialization = errors.New("envelope: payload cannot be serialized")

	// ErrSigning indicates the underlying signer failed.
	ErrSigning = errors.New("envelope: signing failed")

	// ErrInvalid indicates a structural field violation (empty realm,
	// malformed trace ID, missing timestamp, bad payload hash).
	ErrInvalid = errors.New("envelope: invalid envelope")
)

// IdentityMismatchError is the structural invariant violation raised
// at construction: the signature's signer does not match the runtime
// identity, or a claimed emitter identity names a different realm.
// It carries both mismatched values for auditability.
type IdentityMismatchError struct {
	// Field names the violated binding ("signature.signer" or
	// "emitter.env").
	Field string
	// Want is the value required by the envelope's identity fields.
	Want string
	// Got is the value actually present.
	Got string
}

func (e *IdentityMismatchError) Error() string {
	return fmt.Sprintf("envelope: identity mismatch on %s: want %q, got %q", e.Field, e.Want, e.Got)
}

// Signature binds a payload hash to a signer identity. Algorithm is
// recorded explicitly for forward compatibility.
type Signature struct {
	// Algorithm is the signature algorithm name ("ed25519").
	Algorithm string `json:"algorithm" cbor:"1,keyasint"`

	// Signer is the runtime ID whose key produced the signature. Must
	// equal the envelope's RuntimeID.
	Signer string `json:"signer" cbor:"2,keyasint"`

	// PayloadHash is the hex BLAKE3 digest of the canonical payload.
	PayloadHash string `json:"payload_hash" cbor:"3,keyasint"`

	// Value is the base64 Ed25519 signature over the canonical
	// signing content.
	Value string `json:"value" cbor:"4,keyasint"`
}

// ObservabilityMetadata is untrusted observer-supplied context. It is
// a separate type from the signed envelope core so it can never be
// included in a signature computation by accident. Its only
// constraint is that Env must equal the envelope's Realm when the
// block is present.
type ObservabilityMetadata struct {
	// Env is the environment the emitter claims to run in. Must match
	// the envelope realm.
	Env string `json:"env" cbor:"1,keyasint"`

	// Service is the emitting service name. Informational only.
	Service string `json:"service,omitempty" cbor:"2,keyasint,omitempty"`

	// Version is the emitting service version. Informational only.
	Version string `json:"version,omitempty" cbor:"3,keyasint,omitempty"`

	// Host is the emitting host. Informational only.
	Host string `json:"host,omitempty" cbor:"4,keyasint,omitempty"`
}

// Envelope is the signed message wrapper. Treat constructed envelopes
// as immutable: every instance that reaches a caller has passed
// invariant validation, and mutating one invalidates its signature.
type Envelope struct {
	// Realm is the routing and trust boundary (e.g., "prod").
	Realm string `json:"realm" cbor:"1,keyasint"`

	// RuntimeID is the signing gateway's identity, cryptographically
	// bound via the signature.
	RuntimeID string `json:"runtime_id" cbor:"2,keyasint"`

	// BusID identifies the bus the message was emitted on.
	BusID string `json:"bus_id" cbor:"3,keyasint"`

	// TraceID is the UUID correlating this message across hops.
	TraceID string `json:"trace_id" cbor:"4,keyasint"`

	// EmittedAt is the signing timestamp, normalized to UTC.
	EmittedAt time.Time `json:"emitted_at" cbor:"5,keyasint"`

	// CausalityID optionally names the UUID of the message that
	// caused this one.
	CausalityID string `json:"causality_id,omitempty" cbor:"6,keyasint,omitempty"`

	// TenantID optionally scopes the message to a tenant.
	TenantID string `json:"tenant_id,omitempty" cbor:"7,keyasint,omitempty"`

	// Emitter is untrusted observability metadata. Excluded from the
	// signed content.
	Emitter *ObservabilityMetadata `json:"emitter,omitempty" cbor:"8,keyasint,omitempty"`

	// Signature binds the payload hash and routing metadata to the
	// runtime's key.
	Signature Signature `json:"signature" cbor:"9,keyasint"`

	// Payload is the wrapped message content.
	Payload any `json:"payload" cbor:"10,keyasint"`
}

// Params are the inputs to NewSigned. Realm, RuntimeID, BusID, and
// Payload are required; the rest are optional.
type Params struct {
	Realm     string
	RuntimeID string
	BusID     string
	Payload   any

	// TraceID is generated (random UUID) when empty.
	TraceID string

	// CausalityID and TenantID are omitted from the envelope and the
	// signed content when empty.
	CausalityID string
	TenantID    string

	// Emitter, when present, must claim the envelope's realm.
	Emitter *ObservabilityMetadata

	// EmittedAt defaults to Clock.Now() when zero.
	EmittedAt time.Time

	// Clock supplies the default EmittedAt. Defaults to Real().
	Clock clock.Clock
}

// NewSigned computes the payload hash, signs the canonical signing
// content with the runtime's private key, and returns a fully
// validated envelope.
//
// Fails with an error wrapping ErrPayloadSerialization when the
// payload cannot be hashed, ErrSigning when the signer errors, and
// *IdentityMismatchError or ErrInvalid when the resulting envelope
// violates its invariants.
func NewSigned(params Params, privateKey ed25519.PrivateKey) (*Envelope, error) {
	clk := params.Clock
	if clk == nil {
		clk = clock.Real()
	}

	traceID := params.TraceID
	if traceID == "" {
		traceID = uuid.NewString()
	}

	emittedAt := params.EmittedAt
	if emittedAt.IsZero() {
		emittedAt = clk.Now()
	}
	emittedAt = emittedAt.UTC()

	payloadHash, err := digest.HashPayload(params.Payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPayloadSerialization, err)
	}

	env := &Envelope{
		Realm:       params.Realm,
		RuntimeID:   params.RuntimeID,
		BusID:       params.BusID,
		TraceID:     traceID,
		EmittedAt:   emittedAt,
		CausalityID: params.CausalityID,
		TenantID:    params.TenantID,
		Emitter:     params.Emitter,
		Signature: Signature{
			Algorithm:   sign.Algorithm,
			Signer:      params.RuntimeID,
			PayloadHash: payloadHash,
		},
		Payload: params.Payload,
	}

	content, err := canonical.Encode(env.signingContent())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPayloadSerialization, err)
	}

	signature, err := sign.Sign(privateKey, content)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSigning, err)
	}
	env.Signature.Value = sign.EncodeSignature(signature)

	if err := env.Validate(); err != nil {
		return nil, err
	}
	return env, nil
}

// Validate checks the envelope's structural fields and identity
// invariants. NewSigned and Decode run it automatically; callers that
// receive envelopes through other channels should run it before
// trusting any field.
func (e *Envelope) Validate() error {
	if e.Realm == "" {
		return fmt.Errorf("%w: realm is empty", ErrInvalid)
	}
	if e.RuntimeID == "" {
		return fmt.Errorf("%w: runtime_id is empty", ErrInvalid)
	}
	if e.EmittedAt.IsZero() {
		return fmt.Errorf("%w: emitted_at is unset", ErrInvalid)
	}
	if _, err := uuid.Parse(e.TraceID); err != nil {
		return fmt.Errorf("%w: trace_id %q is not a UUID", ErrInvalid, e.TraceID)
	}
	if e.CausalityID != "" {
		if _, err := uuid.Parse(e.CausalityID); err != nil {
			return fmt.Errorf("%w: causality_id %q is not a UUID", ErrInvalid, e.CausalityID)
		}
	}
	if e.Signature.Algorithm != sign.Algorithm {
		return fmt.Errorf("%w: unsupported signature algorithm %q", ErrInvalid, e.Signature.Algorithm)
	}
	if _, err := digest.Parse(e.Signature.PayloadHash); err != nil {
		return fmt.Errorf("%w: payload hash: %v", ErrInvalid, err)
	}

	// Identity invariants. These are the trust boundary: the signer
	// named in the signature is the envelope's runtime, and an emitter
	// block cannot claim a foreign realm.
	if e.Signature.Signer != e.RuntimeID {
		return &IdentityMismatchError{
			Field: "signature.signer",
			Want:  e.RuntimeID,
			Got:   e.Signature.Signer,
		}
	}
	if e.Emitter != nil && e.Emitter.Env != e.Realm {
		return &IdentityMismatchError{
			Field: "emitter.env",
			Want:  e.Realm,
			Got:   e.Emitter.Env,
		}
	}

	return nil
}

// VerifySignature checks the envelope against the signer's published
// key. The integrity check runs first: the payload hash is recomputed
// and compared to the stored hash, and any mismatch returns false
// without touching the signature. Only when the content matches is
// the Ed25519 signature verified over the canonical signing bytes.
//
// Key lookup fails closed: an unknown RuntimeID surfaces the
// provider's error (wrapping sign.ErrKeyNotFound), never a false
// result.
func (e *Envelope) VerifySignature(provider sign.KeyProvider) (bool, error) {
	publicKey, err := provider.PublicKey(e.RuntimeID)
	if err != nil {
		return false, fmt.Errorf("looking up key for %q: %w", e.RuntimeID, err)
	}

	recomputed, err := digest.HashPayload(e.Payload)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrPayloadSerialization, err)
	}
	if recomputed != e.Signature.PayloadHash {
		// Integrity failure. The signature is not consulted.
		return false, nil
	}

	content, err := canonical.Encode(e.signingContent())
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrPayloadSerialization, err)
	}

	signature, err := sign.DecodeSignature(e.Signature.Value)
	if err != nil {
		// A malformed signature is a verification failure, not a fault.
		return false, nil
	}

	return sign.Verify(publicKey, content, signature), nil
}

// signingContent builds the canonical signing map. The emitter block
// is deliberately absent: it is untrusted observability metadata and
// must never influence the signature. Optional fields appear only
// when set, so their absence and their empty value are the same
// signed statement.
func (e *Envelope) signingContent() map[string]string {
	content := map[string]string{
		"realm":        e.Realm,
		"runtime_id":   e.RuntimeID,
		"bus_id":       e.BusID,
		"trace_id":     e.TraceID,
		"emitted_at":   e.EmittedAt.UTC().Format(time.RFC3339Nano),
		"payload_hash": e.Signature.PayloadHash,
	}
	if e.CausalityID != "" {
		content["causality_id"] = e.CausalityID
	}
	if e.TenantID != "" {
		content["tenant_id"] = e.TenantID
	}
	return content
}

// EncodeJSON returns the envelope's JSON wire form.
func (e *Envelope) EncodeJSON() ([]byte, error) {
	encoded, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encoding envelope: %w", err)
	}
	return encoded, nil
}

// DecodeJSON parses an envelope from its JSON wire form and validates
// it. An envelope that violates its invariants is never returned:
// decoding a tampered identity fails here, before any verification is
// attempted. Payload numbers are preserved as literals so the payload
// hash survives the round trip for 64-bit integers.
func DecodeJSON(data []byte) (*Envelope, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()

	var env Envelope
	if err := decoder.Decode(&env); err != nil {
		return nil, fmt.Errorf("decoding envelope: %w", err)
	}
	if err := env.Validate(); err != nil {
		return nil, err
	}
	return &env, nil
}
