// Copyright 2026 The Meshseal Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the CBOR encoding used by the audit archive.
// Encoding is Core Deterministic (RFC 8949 §4.2): sorted map keys,
// smallest integer encoding, no indefinite-length items. The same
// record always produces identical bytes, so archives diff cleanly
// and hash stably.
package codec

import (
	"io"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// encMode is the deterministic CBOR encoder. Timestamps are encoded
// as RFC 3339 strings with nanosecond precision: hop signing content
// is reconstructed from decoded timestamps, so sub-second precision
// must survive the archive round trip.
var encMode cbor.EncMode

// decMode is the CBOR decoder. Unknown fields are ignored for forward
// compatibility with newer archive writers.
var decMode cbor.DecMode

func init() {
	var err error

	encOptions := cbor.CoreDetEncOptions()
	encOptions.Time = cbor.TimeRFC3339Nano
	encMode, err = encOptions.EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		// Envelope payloads decode into any-typed trees. CBOR's default
		// map type for any targets is map[interface{}]interface{}, which
		// the rest of meshseal (and encoding/json) cannot consume;
		// string-keyed maps are the only shape envelopes carry.
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
}

// Marshal encodes v to deterministic CBOR.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes CBOR data into v.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// Encoder is a CBOR stream encoder. Type alias so consumers import
// only lib/codec, not fxamacker/cbor directly.
type Encoder = cbor.Encoder

// Decoder is a CBOR stream decoder. Type alias so consumers import
// only lib/codec, not fxamacker/cbor directly.
type Decoder = cbor.Decoder

// NewEncoder returns a CBOR encoder writing deterministic records
// to w.
func NewEncoder(w io.Writer) *Encoder {
	return encMode.NewEncoder(w)
}

// NewDecoder returns a CBOR decoder reading records from r.
func NewDecoder(r io.Reader) *Decoder {
	return decMode.NewDecoder(r)
}
