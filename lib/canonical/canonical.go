// Copyright 2026 The Meshseal Authors
// SPDX-License-Identifier: Apache-2.0

package canonical

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnencodable is returned (wrapped) when a value cannot be
// represented as JSON: cyclic structures, channels, functions, or
// types whose MarshalJSON fails.
var ErrUnencodable = errors.New("canonical: value cannot be encoded as JSON")

// Encode returns the canonical JSON bytes for v. The result is
// deterministic: map keys are sorted recursively, separators are
// compact, HTML characters are not escaped, and there is no trailing
// newline. Struct values are normalized into map form first, so a
// struct and the equivalent map encode to the same bytes.
//
// Encode is a pure function with no side effects.
func Encode(v any) ([]byte, error) {
	tree, err := Normalize(v)
	if err != nil {
		return nil, err
	}

	var buffer bytes.Buffer
	encoder := json.NewEncoder(&buffer)
	// The signing format is raw JSON, not HTML-embedded JSON. Escaping
	// <, >, and & would change the signed bytes for payloads containing
	// those characters.
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(tree); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnencodable, err)
	}

	// json.Encoder appends a newline after every value. The newline is
	// not part of the canonical form.
	return bytes.TrimSuffix(buffer.Bytes(), []byte("\n")), nil
}

// Normalize round-trips v through JSON so that structs collapse into
// map form and all numbers become json.Number values preserving their
// literal text. Encoding the normalized tree is then independent of
// Go type and map insertion order: encoding/json sorts map keys
// recursively and json.Number marshals back as its original literal,
// so no precision is lost for 64-bit integers.
func Normalize(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnencodable, err)
	}

	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()

	var tree any
	if err := decoder.Decode(&tree); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnencodable, err)
	}
	return tree, nil
}
