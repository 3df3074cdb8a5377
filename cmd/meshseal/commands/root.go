// Copyright 2026 The Meshseal Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands defines the meshseal command tree.
package commands

import (
	"github.com/meshseal-foundation/meshseal/cmd/meshseal/cli"
)

// Root returns the root of the meshseal command tree.
func Root() *cli.Command {
	return &cli.Command{
		Name:    "meshseal",
		Summary: "Envelope signing and signature chain verification",
		Description: "meshseal signs message envelopes, accumulates per-hop signature\n" +
			"chains, and verifies both from audit archives.",
		Subcommands: []*cli.Command{
			keygenCommand(),
			envelopeCommand(),
			chainCommand(),
			archiveCommand(),
		},
	}
}
