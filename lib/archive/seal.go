// Copyright 2026 The Meshseal Authors
// SPDX-License-Identifier: Apache-2.0

package archive

import (
	"crypto/rand"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
)

// KeySize is the size in bytes of an archive sealing key.
const KeySize = chacha20poly1305.KeySize

// sealedOverhead is the per-archive byte cost of sealing:
// 24 (XChaCha20-Poly1305 nonce) + 16 (Poly1305 tag).
const sealedOverhead = chacha20poly1305.NonceSizeX + chacha20poly1305.Overhead

// NewKey generates a random archive sealing key.
func NewKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("archive: generating key: %w", err)
	}
	return key, nil
}

// WriteSealed writes an encrypted archive to w. The body is encoded
// and compressed exactly as Write does, then sealed with
// XChaCha20-Poly1305 under key. The header (with the sealed flag set)
// is the additional authenticated data, binding the compression tag
// and size to the ciphertext.
//
// The key must be exactly KeySize bytes.
func WriteSealed(w io.Writer, archive *Archive, tag CompressionTag, key []byte) error {
	body, h, err := prepareBody(archive, tag)
	if err != nil {
		return err
	}
	h.flags |= flagSealed
	headerBytes := h.encode()

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return fmt.Errorf("archive: creating cipher: %w", err)
	}

	var nonce [chacha20poly1305.NonceSizeX]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return fmt.Errorf("archive: generating nonce: %w", err)
	}

	sealed := make([]byte, chacha20poly1305.NonceSizeX, chacha20poly1305.NonceSizeX+len(body)+aead.Overhead())
	copy(sealed, nonce[:])
	sealed = aead.Seal(sealed, nonce[:], body, headerBytes)

	if _, err := w.Write(headerBytes); err != nil {
		return fmt.Errorf("archive: writing header: %w", err)
	}
	if _, err := w.Write(sealed); err != nil {
		return fmt.Errorf("archive: writing sealed body: %w", err)
	}
	return nil
}

// ReadSealed parses a sealed archive from r, authenticating the
// header and decrypting the body with key. Returns ErrNotSealed for
// plaintext archives (use Read). Authentication failure means a wrong
// key or a tampered header or body.
func ReadSealed(r io.Reader, key []byte) (*Archive, error) {
	h, headerBytes, err := readHeader(r)
	if err != nil {
		return nil, err
	}
	if h.flags&flagSealed == 0 {
		return nil, ErrNotSealed
	}

	sealed, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("archive: reading sealed body: %w", err)
	}
	if len(sealed) < sealedOverhead {
		return nil, fmt.Errorf("archive: sealed body is %d bytes, minimum is %d (nonce + tag)",
			len(sealed), sealedOverhead)
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("archive: creating cipher: %w", err)
	}

	nonce := sealed[:chacha20poly1305.NonceSizeX]
	ciphertext := sealed[chacha20poly1305.NonceSizeX:]

	body, err := aead.Open(nil, nonce, ciphertext, headerBytes)
	if err != nil {
		return nil, fmt.Errorf("archive: decryption failed (wrong key or tampered archive): %w", err)
	}

	return decodeBody(body, h)
}
