// Copyright 2026 The Meshseal Authors
// SPDX-License-Identifier: Apache-2.0

// Package archive reads and writes the audit archive format: a
// compressed (optionally sealed) container of envelopes and their
// signature chains, written by relays and consumed by offline
// verification tooling.
//
// The on-disk layout is a fixed 16-byte header followed by the body:
//
//	[Magic: 4 bytes "MSAR"] [Version: 1] [Compression: 1] [Flags: 1]
//	[Reserved: 1] [Uncompressed body size: 8, big endian]
//	[Body: compressed CBOR, or nonce + ciphertext when sealed]
//
// The body is the deterministic CBOR encoding of an Archive record.
// When the sealed flag is set, the compressed body is encrypted with
// XChaCha20-Poly1305 and the header is bound as additional
// authenticated data, so a flipped compression tag or size fails
// authentication instead of producing garbage.
package archive

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/meshseal-foundation/meshseal/lib/codec"
	"github.com/meshseal-foundation/meshseal/lib/envelope"
	"github.com/meshseal-foundation/meshseal/lib/sigchain"
)

// FormatVersion is the archive format version written by this
// package. Readers reject any other version.
const FormatVersion byte = 1

// magic identifies a meshseal archive. First bytes of every file.
var magic = [4]byte{'M', 'S', 'A', 'R'}

// headerSize is the fixed length of the archive header.
const headerSize = 4 + 1 + 1 + 1 + 1 + 8

// flagSealed marks an encrypted body.
const flagSealed byte = 0x01

// maxBodySize caps the uncompressed body size a reader will accept.
// The size field in a plaintext archive is unauthenticated, so it is
// bounds-checked before any allocation.
const maxBodySize = 1 << 30

// Errors returned by archive readers.
var (
	// ErrBadMagic indicates the input is not a meshseal archive.
	ErrBadMagic = errors.New("archive: bad magic")

	// ErrUnsupportedVersion indicates an archive written by a newer
	// format revision.
	ErrUnsupportedVersion = errors.New("archive: unsupported format version")

	// ErrSealed indicates Read was called on a sealed archive. Use
	// ReadSealed with the archive key.
	ErrSealed = errors.New("archive: archive is sealed, key required")

	// ErrNotSealed indicates ReadSealed was called on a plaintext
	// archive.
	ErrNotSealed = errors.New("archive: archive is not sealed")

	// ErrBodyTooLarge indicates the header claims a body size beyond
	// what readers will allocate.
	ErrBodyTooLarge = errors.New("archive: claimed body size exceeds limit")
)

// Record pairs an envelope with its signature chain. The chain is
// optional: an envelope archived before any hop signed it has none.
type Record struct {
	// Envelope is the signed message.
	Envelope envelope.Envelope

	// Chain is the signature chain accumulated for the envelope, if
	// any.
	Chain *sigchain.Chain
}

// recordWire is the CBOR shape of a Record. The envelope travels as
// its JSON wire form rather than as a CBOR struct: envelope payloads
// are any-typed trees whose numbers must stay literal for the payload
// hash to recompute after decode, and JSON is the envelope's native
// encoding. Re-encoding the payload tree in CBOR would turn
// json.Number values into text strings and break verification.
type recordWire struct {
	Envelope []byte          `cbor:"1,keyasint"`
	Chain    *sigchain.Chain `cbor:"2,keyasint,omitempty"`
}

// MarshalCBOR encodes the record with the envelope in its JSON wire
// form.
func (r Record) MarshalCBOR() ([]byte, error) {
	encoded, err := r.Envelope.EncodeJSON()
	if err != nil {
		return nil, err
	}
	return codec.Marshal(recordWire{Envelope: encoded, Chain: r.Chain})
}

// UnmarshalCBOR decodes a record, re-validating the embedded envelope.
// A record whose envelope violates its invariants fails here, before
// it reaches any caller.
func (r *Record) UnmarshalCBOR(data []byte) error {
	var wire recordWire
	if err := codec.Unmarshal(data, &wire); err != nil {
		return err
	}
	env, err := envelope.DecodeJSON(wire.Envelope)
	if err != nil {
		return err
	}
	r.Envelope = *env
	r.Chain = wire.Chain
	return nil
}

// Archive is the decoded content of an archive file.
type Archive struct {
	// CreatedAt is when the archive was written.
	CreatedAt time.Time `cbor:"1,keyasint"`

	// Realm is the trust boundary the archived envelopes belong to.
	Realm string `cbor:"2,keyasint"`

	// Records are the archived envelope and chain pairs, in write
	// order.
	Records []Record `cbor:"3,keyasint"`
}

// Info is the header metadata of an archive, readable without
// decompressing or decrypting the body.
type Info struct {
	// Version is the archive format version.
	Version byte

	// Compression is the body compression algorithm.
	Compression CompressionTag

	// Sealed reports whether the body is encrypted.
	Sealed bool

	// UncompressedSize is the CBOR body length before compression.
	UncompressedSize uint64
}

// header is the parsed fixed-size file header.
type header struct {
	version          byte
	compression      CompressionTag
	flags            byte
	uncompressedSize uint64
}

// encode returns the header's wire bytes.
func (h header) encode() []byte {
	buffer := make([]byte, headerSize)
	copy(buffer, magic[:])
	buffer[4] = h.version
	buffer[5] = byte(h.compression)
	buffer[6] = h.flags
	// buffer[7] is reserved, always zero.
	binary.BigEndian.PutUint64(buffer[8:], h.uncompressedSize)
	return buffer
}

// readHeader reads and validates the fixed header from r, returning
// the parsed header alongside its raw bytes (needed as AAD when the
// body is sealed).
func readHeader(r io.Reader) (header, []byte, error) {
	raw := make([]byte, headerSize)
	if _, err := io.ReadFull(r, raw); err != nil {
		return header{}, nil, fmt.Errorf("archive: reading header: %w", err)
	}
	if [4]byte(raw[:4]) != magic {
		return header{}, nil, ErrBadMagic
	}

	h := header{
		version:          raw[4],
		compression:      CompressionTag(raw[5]),
		flags:            raw[6],
		uncompressedSize: binary.BigEndian.Uint64(raw[8:]),
	}
	if h.version != FormatVersion {
		return header{}, nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, h.version)
	}
	return h, raw, nil
}

// Write encodes the archive as deterministic CBOR, compresses the
// body with the requested algorithm, and writes the complete file to
// w. When the body turns out to be incompressible the archive is
// written uncompressed; the header records whichever tag was actually
// used.
func Write(w io.Writer, archive *Archive, tag CompressionTag) error {
	body, h, err := prepareBody(archive, tag)
	if err != nil {
		return err
	}

	if _, err := w.Write(h.encode()); err != nil {
		return fmt.Errorf("archive: writing header: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("archive: writing body: %w", err)
	}
	return nil
}

// Read parses a plaintext archive from r. Returns ErrSealed for
// sealed archives.
func Read(r io.Reader) (*Archive, error) {
	h, _, err := readHeader(r)
	if err != nil {
		return nil, err
	}
	if h.flags&flagSealed != 0 {
		return nil, ErrSealed
	}

	compressed, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("archive: reading body: %w", err)
	}
	return decodeBody(compressed, h)
}

// Inspect reads only the header from r and returns the archive's
// format metadata.
func Inspect(r io.Reader) (*Info, error) {
	h, _, err := readHeader(r)
	if err != nil {
		return nil, err
	}
	return &Info{
		Version:          h.version,
		Compression:      h.compression,
		Sealed:           h.flags&flagSealed != 0,
		UncompressedSize: h.uncompressedSize,
	}, nil
}

// prepareBody encodes and compresses the archive body and builds the
// matching header. Incompressible bodies fall back to
// CompressionNone.
func prepareBody(archive *Archive, tag CompressionTag) ([]byte, header, error) {
	encoded, err := codec.Marshal(archive)
	if err != nil {
		return nil, header{}, fmt.Errorf("archive: encoding body: %w", err)
	}

	body, err := compress(encoded, tag)
	if err != nil {
		if !errors.Is(err, errIncompressible) {
			return nil, header{}, fmt.Errorf("archive: compressing body: %w", err)
		}
		body = encoded
		tag = CompressionNone
	}

	return body, header{
		version:          FormatVersion,
		compression:      tag,
		uncompressedSize: uint64(len(encoded)),
	}, nil
}

// decodeBody decompresses and decodes an archive body.
func decodeBody(compressed []byte, h header) (*Archive, error) {
	if h.uncompressedSize > maxBodySize {
		return nil, fmt.Errorf("%w: header claims %d bytes, limit is %d",
			ErrBodyTooLarge, h.uncompressedSize, maxBodySize)
	}

	encoded, err := decompress(compressed, h.compression, int(h.uncompressedSize))
	if err != nil {
		return nil, fmt.Errorf("archive: %w", err)
	}

	var archive Archive
	if err := codec.Unmarshal(encoded, &archive); err != nil {
		return nil, fmt.Errorf("archive: decoding body: %w", err)
	}
	return &archive, nil
}
