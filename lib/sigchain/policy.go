// Copyright 2026 The Meshseal Authors
// SPDX-License-Identifier: Apache-2.0

package sigchain

import (
	"fmt"
	"time"
)

// Default policy values. The skew allowance and hop ceiling are
// operational tuning knobs, not protocol constants; deployments
// override them in configuration.
const (
	// DefaultClockSkew is the allowance for timestamp regression
	// between consecutive hops signed by different machines.
	DefaultClockSkew = 5 * time.Second

	// DefaultMaxHops is the hop count above which a route is flagged
	// as anomalous.
	DefaultMaxHops = 20
)

// Policy is the signing and anomaly policy a chain is validated
// against.
type Policy struct {
	// MinSignatures is the minimum number of hops a valid chain must
	// carry. Zero disables the check.
	MinSignatures int

	// RequiredOperations lists operation kinds that must appear in a
	// valid chain (typically SOURCE and DESTINATION).
	RequiredOperations []Operation

	// MinTrustedSigners is the minimum number of hops that must be
	// signed by nodes in TrustedNodes. Zero disables the check.
	MinTrustedSigners int

	// TrustedNodes lists node IDs considered trusted for policy and
	// trust-score purposes.
	TrustedNodes []string

	// ClockSkew is the tolerated timestamp regression between
	// consecutive hops before anomaly detection flags them.
	ClockSkew time.Duration

	// MaxHops is the hop count above which anomaly detection flags
	// the route as excessive.
	MaxHops int
}

// DefaultPolicy returns a policy with no signing requirements and the
// default anomaly thresholds.
func DefaultPolicy() Policy {
	return Policy{
		ClockSkew: DefaultClockSkew,
		MaxHops:   DefaultMaxHops,
	}
}

// check evaluates the signing-policy requirements against a chain and
// returns a description of the first violation, or "" when compliant.
func (p Policy) check(chain *Chain) string {
	if p.MinSignatures > 0 && len(chain.Hops) < p.MinSignatures {
		return fmt.Sprintf("chain has %d signatures, policy requires %d",
			len(chain.Hops), p.MinSignatures)
	}

	for _, required := range p.RequiredOperations {
		found := false
		for _, hop := range chain.Hops {
			if hop.Operation == required {
				found = true
				break
			}
		}
		if !found {
			return fmt.Sprintf("required operation %s is missing", required)
		}
	}

	if p.MinTrustedSigners > 0 {
		trusted := make(map[string]bool, len(p.TrustedNodes))
		for _, node := range p.TrustedNodes {
			trusted[node] = true
		}
		count := 0
		for _, hop := range chain.Hops {
			if trusted[hop.NodeID] {
				count++
			}
		}
		if count < p.MinTrustedSigners {
			return fmt.Sprintf("chain has %d trusted signers, policy requires %d",
				count, p.MinTrustedSigners)
		}
	}

	return ""
}
