// Copyright 2026 The Meshseal Authors
// SPDX-License-Identifier: Apache-2.0

package sigchain

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/meshseal-foundation/meshseal/lib/canonical"
	"github.com/meshseal-foundation/meshseal/lib/digest"
)

// Status is a chain's validation state. Transitions happen only in
// ValidateIntegrity (or via the opt-in revalidation in AddSignature),
// never implicitly.
type Status string

const (
	// StatusIncomplete is the initial state: the chain has not passed
	// a full validation yet.
	StatusIncomplete Status = "INCOMPLETE"

	// StatusValid means the last validation passed every check.
	StatusValid Status = "VALID"

	// StatusInvalid means a structural or policy check failed:
	// hop-index discontinuity, illegal operation sequence, or
	// signing-policy violation.
	StatusInvalid Status = "INVALID"

	// StatusTampered means the cryptographic linkage is broken: a
	// hop's previous-signature hash does not match the recorded prior
	// hop. Callers should treat this as a security event, not a mere
	// rejection.
	StatusTampered Status = "TAMPERED"
)

// Operation is the kind of signing action a hop represents.
type Operation string

const (
	// OpSource is the originating hop. Exactly the first hop of every
	// chain.
	OpSource Operation = "SOURCE"

	// OpRoute is a forwarding hop.
	OpRoute Operation = "ROUTE"

	// OpTransform is a hop that rewrote the message body.
	OpTransform Operation = "TRANSFORM"

	// OpDestination is the terminal delivery hop. Nothing may follow.
	OpDestination Operation = "DESTINATION"
)

// knownOperation reports whether op is one of the defined kinds.
func knownOperation(op Operation) bool {
	switch op {
	case OpSource, OpRoute, OpTransform, OpDestination:
		return true
	}
	return false
}

// canFollow reports whether next is a legal operation after previous.
// An empty previous means "no hops yet": only SOURCE may open a
// chain. SOURCE never repeats, and DESTINATION is terminal.
func canFollow(previous, next Operation) bool {
	if !knownOperation(next) {
		return false
	}
	switch previous {
	case "":
		return next == OpSource
	case OpDestination:
		return false
	default:
		return next != OpSource
	}
}

// Hop is one node's signing action in a chain.
type Hop struct {
	// NodeID identifies the signing node. A node signs a chain at
	// most once.
	NodeID string `json:"node_id" cbor:"1,keyasint"`

	// Value is the base64 Ed25519 signature over the hop's canonical
	// signing content.
	Value string `json:"value" cbor:"2,keyasint"`

	// SignedAt is when the node signed.
	SignedAt time.Time `json:"signed_at" cbor:"3,keyasint"`

	// Operation is the signing action kind.
	Operation Operation `json:"operation" cbor:"4,keyasint"`

	// KeyID names the key the node signed with.
	KeyID string `json:"key_id" cbor:"5,keyasint"`

	// HopIndex is the hop's position, assigned on acceptance.
	HopIndex int `json:"hop_index" cbor:"6,keyasint"`

	// EnvelopeStateHash is the envelope content hash the node signed
	// over. Must equal the chain's ContentHash.
	EnvelopeStateHash string `json:"envelope_state_hash" cbor:"7,keyasint"`

	// PreviousSignatureHash is the hop-domain digest of the prior
	// hop's signature value. Empty for hop 0.
	PreviousSignatureHash string `json:"previous_signature_hash,omitempty" cbor:"8,keyasint,omitempty"`
}

// SecurityViolationError wraps an unexpected internal failure during
// chain mutation or validation. These are always logged and re-raised,
// never swallowed.
type SecurityViolationError struct {
	// ChainID identifies the affected chain.
	ChainID string
	// Op names the operation that failed (e.g., "recompute chain hash").
	Op string
	// Err is the underlying failure.
	Err error
}

func (e *SecurityViolationError) Error() string {
	return fmt.Sprintf("sigchain: security violation on chain %s during %s: %v", e.ChainID, e.Op, e.Err)
}

func (e *SecurityViolationError) Unwrap() error { return e.Err }

// Chain is the signature chain aggregate for one envelope.
type Chain struct {
	// ChainID uniquely identifies this chain.
	ChainID string `json:"chain_id" cbor:"1,keyasint"`

	// EnvelopeID is the trace ID of the envelope this chain proves a
	// route for.
	EnvelopeID string `json:"envelope_id" cbor:"2,keyasint"`

	// ContentHash is the envelope's payload hash. Every hop must sign
	// over exactly this value.
	ContentHash string `json:"content_hash" cbor:"3,keyasint"`

	// Hops is the ordered list of per-hop signatures.
	Hops []Hop `json:"hops" cbor:"4,keyasint"`

	// ChainHash is the chain-domain digest over the canonical
	// encoding of Hops, recomputed on every mutation.
	ChainHash string `json:"chain_hash" cbor:"5,keyasint"`

	// Status is the result of the last ValidateIntegrity call.
	Status Status `json:"status" cbor:"6,keyasint"`

	policy Policy
	logger *slog.Logger
}

// Option configures a chain at construction.
type Option func(*Chain)

// WithPolicy sets the signing and anomaly policy.
func WithPolicy(policy Policy) Option {
	return func(c *Chain) { c.policy = policy }
}

// WithLogger sets the logger used for security violations.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Chain) { c.logger = logger }
}

// New creates an empty chain for an envelope. The envelopeID is the
// envelope's trace ID; contentHash is its payload hash.
func New(envelopeID, contentHash string, opts ...Option) *Chain {
	chain := &Chain{
		ChainID:     uuid.NewString(),
		EnvelopeID:  envelopeID,
		ContentHash: contentHash,
		Status:      StatusIncomplete,
		policy:      DefaultPolicy(),
	}
	for _, opt := range opts {
		opt(chain)
	}
	if chain.logger == nil {
		chain.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return chain
}

// SetPolicy replaces the chain's policy. Used when a chain is decoded
// from an archive, where the policy is supplied by configuration
// rather than stored with the chain.
func (c *Chain) SetPolicy(policy Policy) { c.policy = policy }

// SetLogger replaces the chain's logger. Decoded chains start with a
// discard logger.
func (c *Chain) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	c.logger = logger
}

// Policy returns the chain's active policy.
func (c *Chain) Policy() Policy { return c.policy }

// log returns the chain's logger. Chains decoded from an archive have
// none until SetLogger is called.
func (c *Chain) log() *slog.Logger {
	if c.logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return c.logger
}

// AddSignature appends a hop to the chain. Returns false (without
// error) when the hop is rejected: the node already signed this
// chain, the operation does not legally follow the previous hop's
// operation, or the hop's envelope state hash does not match the
// chain's content hash.
//
// On acceptance the hop index is assigned, the previous-signature
// linkage is set, and the chain hash is recomputed. When validate is
// true, a full ValidateIntegrity pass runs after the append.
//
// Unexpected internal failures are logged and re-raised as a
// *SecurityViolationError.
func (c *Chain) AddSignature(hop Hop, validate bool) (bool, error) {
	if c.signedBy(hop.NodeID) {
		return false, nil
	}
	if !canFollow(c.lastOperation(), hop.Operation) {
		return false, nil
	}
	if hop.EnvelopeStateHash != c.ContentHash {
		return false, nil
	}

	hop.HopIndex = len(c.Hops)
	if hop.HopIndex == 0 {
		hop.PreviousSignatureHash = ""
	} else {
		previous := c.Hops[hop.HopIndex-1]
		hop.PreviousSignatureHash = digest.Format(digest.HashHop([]byte(previous.Value)))
	}

	c.Hops = append(c.Hops, hop)

	if err := c.recomputeChainHash(); err != nil {
		// Roll back the append: a chain whose hash cannot be computed
		// must not keep the hop.
		c.Hops = c.Hops[:len(c.Hops)-1]
		return false, c.violation("recompute chain hash", err)
	}

	if validate {
		if _, err := c.ValidateIntegrity(); err != nil {
			return false, err
		}
	}

	return true, nil
}

// ValidateIntegrity walks the hops in order and re-derives the
// chain's status. Checks run per hop in severity order: hop-index
// continuity (INVALID), previous-hash linkage (TAMPERED), operation
// sequencing (INVALID); then signing-policy compliance (INVALID).
// The first failing check short-circuits. All checks passing sets
// VALID and returns true. An empty chain stays INCOMPLETE.
func (c *Chain) ValidateIntegrity() (bool, error) {
	if len(c.Hops) == 0 {
		c.Status = StatusIncomplete
		return false, nil
	}

	previousOp := Operation("")
	for index, hop := range c.Hops {
		if hop.HopIndex != index {
			c.Status = StatusInvalid
			return false, nil
		}

		if index == 0 {
			if hop.PreviousSignatureHash != "" {
				c.Status = StatusTampered
				return false, nil
			}
		} else {
			want := digest.Format(digest.HashHop([]byte(c.Hops[index-1].Value)))
			if hop.PreviousSignatureHash != want {
				c.Status = StatusTampered
				return false, nil
			}
		}

		if !canFollow(previousOp, hop.Operation) {
			c.Status = StatusInvalid
			return false, nil
		}
		previousOp = hop.Operation
	}

	if problem := c.policy.check(c); problem != "" {
		c.log().Debug("chain failed policy check",
			"chain_id", c.ChainID, "problem", problem)
		c.Status = StatusInvalid
		return false, nil
	}

	c.Status = StatusValid
	return true, nil
}

// TrustScore returns the fraction of hops signed by trusted nodes:
// 0.0 for an empty chain, 1.0 when every hop's signer is trusted.
// Never mutates status.
func (c *Chain) TrustScore(trustedNodes []string) float64 {
	if len(c.Hops) == 0 {
		return 0.0
	}

	trusted := make(map[string]bool, len(trustedNodes))
	for _, node := range trustedNodes {
		trusted[node] = true
	}

	count := 0
	for _, hop := range c.Hops {
		if trusted[hop.NodeID] {
			count++
		}
	}
	return float64(count) / float64(len(c.Hops))
}

// HasCompleteRoute reports whether the chain records both a SOURCE
// and a DESTINATION operation. Never mutates status.
func (c *Chain) HasCompleteRoute() bool {
	var hasSource, hasDestination bool
	for _, hop := range c.Hops {
		switch hop.Operation {
		case OpSource:
			hasSource = true
		case OpDestination:
			hasDestination = true
		}
	}
	return hasSource && hasDestination
}

// signedBy reports whether nodeID already signed this chain.
func (c *Chain) signedBy(nodeID string) bool {
	for _, hop := range c.Hops {
		if hop.NodeID == nodeID {
			return true
		}
	}
	return false
}

// lastOperation returns the most recent hop's operation, or "" for an
// empty chain.
func (c *Chain) lastOperation() Operation {
	if len(c.Hops) == 0 {
		return ""
	}
	return c.Hops[len(c.Hops)-1].Operation
}

// recomputeChainHash re-derives ChainHash from the ordered hop list.
func (c *Chain) recomputeChainHash() error {
	encoded, err := canonical.Encode(c.Hops)
	if err != nil {
		return err
	}
	c.ChainHash = digest.Format(digest.HashChain(encoded))
	return nil
}

// violation logs an unexpected internal failure with its chain
// context and wraps it for re-raising.
func (c *Chain) violation(op string, err error) error {
	c.log().Error("chain security violation",
		"chain_id", c.ChainID,
		"envelope_id", c.EnvelopeID,
		"op", op,
		"error", err)
	return &SecurityViolationError{ChainID: c.ChainID, Op: op, Err: err}
}
