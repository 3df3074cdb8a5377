// Copyright 2026 The Meshseal Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
)

// ReadPassphrase prompts for a passphrase with echo disabled. When
// confirm is true the passphrase is requested twice and both entries
// must match. When stdin is not a terminal (piped input), a single
// line is read without prompting, so scripts can supply the
// passphrase on stdin.
func ReadPassphrase(confirm bool) (string, error) {
	stdinFd := int(os.Stdin.Fd())

	if !term.IsTerminal(stdinFd) {
		reader := bufio.NewReader(os.Stdin)
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return "", fmt.Errorf("reading passphrase from stdin: %w", err)
		}
		passphrase := strings.TrimRight(line, "\r\n")
		if passphrase == "" {
			return "", fmt.Errorf("empty passphrase")
		}
		return passphrase, nil
	}

	fmt.Fprint(os.Stderr, "Passphrase: ")
	first, err := term.ReadPassword(stdinFd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	if len(first) == 0 {
		return "", fmt.Errorf("empty passphrase")
	}

	if confirm {
		fmt.Fprint(os.Stderr, "Confirm passphrase: ")
		second, err := term.ReadPassword(stdinFd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("reading passphrase confirmation: %w", err)
		}
		if string(first) != string(second) {
			return "", fmt.Errorf("passphrases do not match")
		}
	}

	return string(first), nil
}
