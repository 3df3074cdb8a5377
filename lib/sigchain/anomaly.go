// Copyright 2026 The Meshseal Authors
// SPDX-License-Identifier: Apache-2.0

package sigchain

import "fmt"

// DetectAnomalies inspects the chain for suspicious patterns and
// returns human-readable findings. It never raises and never mutates
// the chain's status. Anomalies are advisory, for routing to
// security review, and remain queryable after a route completes.
//
// Checks: duplicate signers, timestamp regressions beyond the policy
// clock-skew allowance, hop counts above the policy maximum, a
// missing SOURCE hop, and hop-index gaps.
func (c *Chain) DetectAnomalies() []string {
	var findings []string

	// Duplicate signers. AddSignature rejects them, so a duplicate in
	// a stored chain means it was assembled by other means.
	seen := make(map[string]bool, len(c.Hops))
	for _, hop := range c.Hops {
		if seen[hop.NodeID] {
			findings = append(findings,
				fmt.Sprintf("node %s signed more than once", hop.NodeID))
		}
		seen[hop.NodeID] = true
	}

	// Timestamp sequence: hops must be non-decreasing, allowing the
	// configured skew between node clocks.
	for index := 1; index < len(c.Hops); index++ {
		previous := c.Hops[index-1].SignedAt
		current := c.Hops[index].SignedAt
		if current.Before(previous.Add(-c.policy.ClockSkew)) {
			findings = append(findings,
				fmt.Sprintf("hop %d timestamp %s precedes hop %d timestamp %s beyond the %s skew allowance",
					index, current.Format("2006-01-02T15:04:05.000Z07:00"),
					index-1, previous.Format("2006-01-02T15:04:05.000Z07:00"),
					c.policy.ClockSkew))
		}
	}

	// Excessive route length.
	if c.policy.MaxHops > 0 && len(c.Hops) > c.policy.MaxHops {
		findings = append(findings,
			fmt.Sprintf("chain has %d hops, exceeding the %d hop limit",
				len(c.Hops), c.policy.MaxHops))
	}

	// A chain without a SOURCE hop has no provable origin.
	hasSource := false
	for _, hop := range c.Hops {
		if hop.Operation == OpSource {
			hasSource = true
			break
		}
	}
	if len(c.Hops) > 0 && !hasSource {
		findings = append(findings, "chain has no SOURCE hop")
	}

	// Hop-index gaps.
	for index, hop := range c.Hops {
		if hop.HopIndex != index {
			findings = append(findings,
				fmt.Sprintf("hop at position %d carries index %d", index, hop.HopIndex))
		}
	}

	return findings
}
