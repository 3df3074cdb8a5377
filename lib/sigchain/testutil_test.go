// Copyright 2026 The Meshseal Authors
// SPDX-License-Identifier: Apache-2.0

package sigchain

import (
	"crypto/ed25519"
	"testing"

	"github.com/meshseal-foundation/meshseal/lib/sign"
)

// testNodeKeys holds per-node keypairs and a provider exposing the
// public halves, for hop signing tests.
type testNodeKeys struct {
	private  map[string]ed25519.PrivateKey
	provider *sign.MemoryKeystore
}

func newTestNodeKeys(t *testing.T, nodeIDs ...string) *testNodeKeys {
	t.Helper()
	keys := &testNodeKeys{
		private:  make(map[string]ed25519.PrivateKey, len(nodeIDs)),
		provider: sign.NewMemoryKeystore(),
	}
	for _, nodeID := range nodeIDs {
		public, private, err := sign.GenerateKeypair()
		if err != nil {
			t.Fatalf("GenerateKeypair(%s): %v", nodeID, err)
		}
		keys.private[nodeID] = private
		keys.provider.Add(nodeID, public)
	}
	return keys
}
