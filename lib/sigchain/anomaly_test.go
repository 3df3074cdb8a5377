// Copyright 2026 The Meshseal Authors
// SPDX-License-Identifier: Apache-2.0

package sigchain

import (
	"fmt"
	"strings"
	"testing"
	"time"
)

func findingsContain(findings []string, fragment string) bool {
	for _, finding := range findings {
		if strings.Contains(finding, fragment) {
			return true
		}
	}
	return false
}

func TestDetectAnomaliesCleanChain(t *testing.T) {
	chain := testChain(t)
	addHop(t, chain, "source-1", OpSource, baseTime())
	addHop(t, chain, "router-1", OpRoute, baseTime().Add(time.Second))
	addHop(t, chain, "dest-1", OpDestination, baseTime().Add(2*time.Second))

	if findings := chain.DetectAnomalies(); len(findings) != 0 {
		t.Errorf("clean chain has findings: %v", findings)
	}
}

func TestDetectAnomaliesTimestampRegression(t *testing.T) {
	chain := testChain(t)
	addHop(t, chain, "source-1", OpSource, baseTime())
	// 3 seconds backwards: inside the default 5s allowance.
	addHop(t, chain, "router-1", OpRoute, baseTime().Add(-3*time.Second))

	if findings := chain.DetectAnomalies(); len(findings) != 0 {
		t.Errorf("regression within skew allowance flagged: %v", findings)
	}

	// 10 seconds backwards: beyond the allowance.
	addHop(t, chain, "router-2", OpRoute, baseTime().Add(-13*time.Second))
	findings := chain.DetectAnomalies()
	if !findingsContain(findings, "skew allowance") {
		t.Errorf("regression beyond skew allowance not flagged: %v", findings)
	}
}

func TestDetectAnomaliesConfigurableSkew(t *testing.T) {
	policy := DefaultPolicy()
	policy.ClockSkew = time.Minute
	chain := testChain(t, WithPolicy(policy))
	addHop(t, chain, "source-1", OpSource, baseTime())
	addHop(t, chain, "router-1", OpRoute, baseTime().Add(-30*time.Second))

	if findings := chain.DetectAnomalies(); len(findings) != 0 {
		t.Errorf("regression within widened allowance flagged: %v", findings)
	}
}

func TestDetectAnomaliesExcessiveHops(t *testing.T) {
	policy := DefaultPolicy()
	policy.MaxHops = 3
	chain := testChain(t, WithPolicy(policy))

	addHop(t, chain, "source-1", OpSource, baseTime())
	for index := 0; index < 3; index++ {
		addHop(t, chain, fmt.Sprintf("router-%d", index), OpRoute,
			baseTime().Add(time.Duration(index+1)*time.Second))
	}

	findings := chain.DetectAnomalies()
	if !findingsContain(findings, "hop limit") {
		t.Errorf("excessive hop count not flagged: %v", findings)
	}
}

func TestDetectAnomaliesMissingSource(t *testing.T) {
	chain := testChain(t)
	chain.Hops = []Hop{
		{NodeID: "router-1", Value: "r", Operation: OpRoute, HopIndex: 0,
			SignedAt: baseTime(), EnvelopeStateHash: testContentHash},
	}

	findings := chain.DetectAnomalies()
	if !findingsContain(findings, "no SOURCE hop") {
		t.Errorf("missing SOURCE not flagged: %v", findings)
	}
}

func TestDetectAnomaliesDuplicateSignerAndIndexGap(t *testing.T) {
	chain := testChain(t)
	chain.Hops = []Hop{
		{NodeID: "gw-1", Value: "a", Operation: OpSource, HopIndex: 0,
			SignedAt: baseTime(), EnvelopeStateHash: testContentHash},
		{NodeID: "gw-1", Value: "b", Operation: OpRoute, HopIndex: 3,
			SignedAt: baseTime().Add(time.Second), EnvelopeStateHash: testContentHash},
	}

	findings := chain.DetectAnomalies()
	if !findingsContain(findings, "signed more than once") {
		t.Errorf("duplicate signer not flagged: %v", findings)
	}
	if !findingsContain(findings, "carries index 3") {
		t.Errorf("index gap not flagged: %v", findings)
	}
}

func TestDetectAnomaliesDoesNotMutateStatus(t *testing.T) {
	chain := testChain(t)
	addHop(t, chain, "source-1", OpSource, baseTime())
	addHop(t, chain, "router-1", OpRoute, baseTime().Add(-time.Hour))

	before := chain.Status
	chain.DetectAnomalies()
	if chain.Status != before {
		t.Errorf("DetectAnomalies changed status from %s to %s", before, chain.Status)
	}
}
