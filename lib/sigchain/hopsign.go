// Copyright 2026 The Meshseal Authors
// SPDX-License-Identifier: Apache-2.0

package sigchain

import (
	"crypto/ed25519"
	"fmt"
	"time"

	"github.com/meshseal-foundation/meshseal/lib/canonical"
	"github.com/meshseal-foundation/meshseal/lib/clock"
	"github.com/meshseal-foundation/meshseal/lib/sign"
)

// SignHop builds and signs a hop for a node. The signed content
// covers the node's identity, key, operation, the envelope state
// hash, and the timestamp: everything except the chain linkage
// fields, which are assigned by AddSignature on acceptance.
func SignHop(privateKey ed25519.PrivateKey, nodeID, keyID string, op Operation, envelopeStateHash string, clk clock.Clock) (Hop, error) {
	if clk == nil {
		clk = clock.Real()
	}

	hop := Hop{
		NodeID:            nodeID,
		SignedAt:          clk.Now().UTC(),
		Operation:         op,
		KeyID:             keyID,
		EnvelopeStateHash: envelopeStateHash,
	}

	content, err := canonical.Encode(hopSigningContent(hop))
	if err != nil {
		return Hop{}, fmt.Errorf("encoding hop signing content: %w", err)
	}

	signature, err := sign.Sign(privateKey, content)
	if err != nil {
		return Hop{}, fmt.Errorf("signing hop for node %q: %w", nodeID, err)
	}
	hop.Value = sign.EncodeSignature(signature)

	return hop, nil
}

// VerifyHopSignatures cryptographically verifies every hop signature
// in the chain using the node keys from the provider. This is a
// deeper check than ValidateIntegrity, which only verifies linkage;
// auditors run it when the chain's signers' keys are available.
//
// Fails closed on unknown nodes (the provider's sign.ErrKeyNotFound
// is surfaced) and returns an error naming the first hop whose
// signature does not verify. Never mutates status.
func (c *Chain) VerifyHopSignatures(provider sign.KeyProvider) error {
	for _, hop := range c.Hops {
		publicKey, err := provider.PublicKey(hop.NodeID)
		if err != nil {
			return fmt.Errorf("hop %d: looking up key for node %q: %w",
				hop.HopIndex, hop.NodeID, err)
		}

		content, err := canonical.Encode(hopSigningContent(hop))
		if err != nil {
			return fmt.Errorf("hop %d: encoding signing content: %w", hop.HopIndex, err)
		}

		signature, err := sign.DecodeSignature(hop.Value)
		if err != nil {
			return fmt.Errorf("hop %d: malformed signature: %w", hop.HopIndex, err)
		}

		if !sign.Verify(publicKey, content, signature) {
			return fmt.Errorf("hop %d: signature by node %q does not verify",
				hop.HopIndex, hop.NodeID)
		}
	}
	return nil
}

// hopSigningContent builds the canonical signing map for a hop. The
// linkage fields (hop index, previous signature hash) are excluded:
// they are assigned by the chain, not asserted by the signer.
func hopSigningContent(hop Hop) map[string]string {
	return map[string]string{
		"node_id":             hop.NodeID,
		"key_id":              hop.KeyID,
		"operation":           string(hop.Operation),
		"envelope_state_hash": hop.EnvelopeStateHash,
		"signed_at":           hop.SignedAt.UTC().Format(time.RFC3339Nano),
	}
}
