// Copyright 2026 The Meshseal Authors
// SPDX-License-Identifier: Apache-2.0

package archive

import (
	"bytes"
	"crypto/rand"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/meshseal-foundation/meshseal/lib/clock"
	"github.com/meshseal-foundation/meshseal/lib/envelope"
	"github.com/meshseal-foundation/meshseal/lib/sigchain"
	"github.com/meshseal-foundation/meshseal/lib/sign"
)

// testArchive builds an archive holding one signed envelope with a
// two-hop chain, plus the keystore needed to verify both.
func testArchive(t *testing.T) (*Archive, *sign.MemoryKeystore) {
	t.Helper()

	keystore := sign.NewMemoryKeystore()
	clk := clock.Fake(time.Date(2026, 3, 1, 12, 0, 0, 123456789, time.UTC))

	gatewayPublic, gatewayPrivate, err := sign.GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}
	keystore.Add("gateway-1", gatewayPublic)

	env, err := envelope.NewSigned(envelope.Params{
		Realm:     "prod",
		RuntimeID: "gateway-1",
		BusID:     "orders",
		Payload:   map[string]any{"order_id": "A-100", "quantity": 3},
		Clock:     clk,
	}, gatewayPrivate)
	if err != nil {
		t.Fatalf("NewSigned: %v", err)
	}

	chain := sigchain.New(env.TraceID, env.Signature.PayloadHash)
	for _, node := range []struct {
		id string
		op sigchain.Operation
	}{
		{"gateway-1", sigchain.OpSource},
		{"dest-1", sigchain.OpDestination},
	} {
		public, private, err := sign.GenerateKeypair()
		if err != nil {
			t.Fatalf("GenerateKeypair(%s): %v", node.id, err)
		}
		if node.id == "gateway-1" {
			private = gatewayPrivate
		} else {
			keystore.Add(node.id, public)
		}
		clk.Advance(time.Second)
		hop, err := sigchain.SignHop(private, node.id, node.id+"-key", node.op, env.Signature.PayloadHash, clk)
		if err != nil {
			t.Fatalf("SignHop(%s): %v", node.id, err)
		}
		if accepted, err := chain.AddSignature(hop, false); err != nil || !accepted {
			t.Fatalf("AddSignature(%s) = %v, %v", node.id, accepted, err)
		}
	}

	return &Archive{
		CreatedAt: clk.Now(),
		Realm:     "prod",
		Records:   []Record{{Envelope: *env, Chain: chain}},
	}, keystore
}

func TestRoundTripEachCompression(t *testing.T) {
	for _, tag := range []CompressionTag{CompressionNone, CompressionLZ4, CompressionZstd} {
		t.Run(tag.String(), func(t *testing.T) {
			original, keystore := testArchive(t)

			var buffer bytes.Buffer
			if err := Write(&buffer, original, tag); err != nil {
				t.Fatalf("Write: %v", err)
			}

			decoded, err := Read(bytes.NewReader(buffer.Bytes()))
			if err != nil {
				t.Fatalf("Read: %v", err)
			}

			if decoded.Realm != "prod" || len(decoded.Records) != 1 {
				t.Fatalf("decoded archive: realm %q, %d records", decoded.Realm, len(decoded.Records))
			}

			record := decoded.Records[0]
			verified, err := record.Envelope.VerifySignature(keystore)
			if err != nil || !verified {
				t.Errorf("envelope signature after round trip = %v, %v", verified, err)
			}
			if err := record.Chain.VerifyHopSignatures(keystore); err != nil {
				t.Errorf("hop signatures after round trip: %v", err)
			}
			if valid, err := record.Chain.ValidateIntegrity(); err != nil || !valid {
				t.Errorf("chain integrity after round trip = %v, %v (status %s)",
					valid, err, record.Chain.Status)
			}
		})
	}
}

func TestRoundTripPreservesDecodedPayloadNumbers(t *testing.T) {
	keystore := sign.NewMemoryKeystore()
	public, private, err := sign.GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}
	keystore.Add("gateway-1", public)

	signed, err := envelope.NewSigned(envelope.Params{
		Realm:     "prod",
		RuntimeID: "gateway-1",
		BusID:     "orders",
		Payload:   map[string]any{"x": 1, "big": int64(1) << 60},
	}, private)
	if err != nil {
		t.Fatalf("NewSigned: %v", err)
	}

	// Envelopes arriving off the wire carry json.Number payload values.
	wire, err := signed.EncodeJSON()
	if err != nil {
		t.Fatalf("EncodeJSON: %v", err)
	}
	received, err := envelope.DecodeJSON(wire)
	if err != nil {
		t.Fatalf("DecodeJSON: %v", err)
	}
	if verified, err := received.VerifySignature(keystore); err != nil || !verified {
		t.Fatalf("signature before archiving = %v, %v", verified, err)
	}

	original := &Archive{
		CreatedAt: time.Now().UTC(),
		Realm:     "prod",
		Records:   []Record{{Envelope: *received}},
	}

	var buffer bytes.Buffer
	if err := Write(&buffer, original, CompressionNone); err != nil {
		t.Fatalf("Write: %v", err)
	}
	decoded, err := Read(bytes.NewReader(buffer.Bytes()))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	verified, err := decoded.Records[0].Envelope.VerifySignature(keystore)
	if err != nil {
		t.Fatalf("VerifySignature after round trip: %v", err)
	}
	if !verified {
		t.Error("envelope failed verification after archive round trip")
	}
}

func TestReadRejectsOversizedBodyClaim(t *testing.T) {
	original, _ := testArchive(t)

	var buffer bytes.Buffer
	if err := Write(&buffer, original, CompressionNone); err != nil {
		t.Fatalf("Write: %v", err)
	}

	// Forge the unauthenticated size field to claim a huge body.
	data := buffer.Bytes()
	binary.BigEndian.PutUint64(data[8:], 1<<40)

	if _, err := Read(bytes.NewReader(data)); !errors.Is(err, ErrBodyTooLarge) {
		t.Errorf("Read = %v, want ErrBodyTooLarge", err)
	}
}

func TestIncompressibleBodyFallsBackToNone(t *testing.T) {
	noise := make([]byte, 512)
	if _, err := rand.Read(noise); err != nil {
		t.Fatalf("rand.Read: %v", err)
	}
	original := &Archive{
		CreatedAt: time.Now().UTC(),
		// Random base64 in the realm field has no repeated sequences
		// for LZ4 to find, so the body is incompressible.
		Realm: base64.RawStdEncoding.EncodeToString(noise),
	}

	var buffer bytes.Buffer
	if err := Write(&buffer, original, CompressionLZ4); err != nil {
		t.Fatalf("Write: %v", err)
	}

	info, err := Inspect(bytes.NewReader(buffer.Bytes()))
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if info.Compression != CompressionNone {
		t.Errorf("compression tag = %s, want none", info.Compression)
	}

	decoded, err := Read(bytes.NewReader(buffer.Bytes()))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if decoded.Realm != original.Realm {
		t.Error("realm did not survive uncompressed round trip")
	}
}

func TestSealedRoundTrip(t *testing.T) {
	original, keystore := testArchive(t)

	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		t.Fatalf("rand.Read: %v", err)
	}

	var buffer bytes.Buffer
	if err := WriteSealed(&buffer, original, CompressionZstd, key); err != nil {
		t.Fatalf("WriteSealed: %v", err)
	}

	decoded, err := ReadSealed(bytes.NewReader(buffer.Bytes()), key)
	if err != nil {
		t.Fatalf("ReadSealed: %v", err)
	}
	if len(decoded.Records) != 1 {
		t.Fatalf("decoded %d records, want 1", len(decoded.Records))
	}
	verified, err := decoded.Records[0].Envelope.VerifySignature(keystore)
	if err != nil || !verified {
		t.Errorf("envelope signature after sealed round trip = %v, %v", verified, err)
	}
}

func TestSealedRejectsWrongKey(t *testing.T) {
	original, _ := testArchive(t)

	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		t.Fatalf("rand.Read: %v", err)
	}

	var buffer bytes.Buffer
	if err := WriteSealed(&buffer, original, CompressionZstd, key); err != nil {
		t.Fatalf("WriteSealed: %v", err)
	}

	wrongKey := make([]byte, KeySize)
	if _, err := ReadSealed(bytes.NewReader(buffer.Bytes()), wrongKey); err == nil {
		t.Error("ReadSealed with wrong key succeeded")
	}
}

func TestSealedRejectsHeaderTampering(t *testing.T) {
	original, _ := testArchive(t)

	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		t.Fatalf("rand.Read: %v", err)
	}

	var buffer bytes.Buffer
	if err := WriteSealed(&buffer, original, CompressionZstd, key); err != nil {
		t.Fatalf("WriteSealed: %v", err)
	}

	// Flip the compression tag in the header. The header is AAD, so
	// decryption must fail.
	tampered := buffer.Bytes()
	tampered[5] = byte(CompressionLZ4)

	if _, err := ReadSealed(bytes.NewReader(tampered), key); err == nil {
		t.Error("ReadSealed with tampered header succeeded")
	}
}

func TestReadRejectsSealedArchive(t *testing.T) {
	original, _ := testArchive(t)

	key := make([]byte, KeySize)
	var buffer bytes.Buffer
	if err := WriteSealed(&buffer, original, CompressionNone, key); err != nil {
		t.Fatalf("WriteSealed: %v", err)
	}

	if _, err := Read(bytes.NewReader(buffer.Bytes())); !errors.Is(err, ErrSealed) {
		t.Errorf("Read on sealed archive = %v, want ErrSealed", err)
	}
}

func TestReadSealedRejectsPlaintextArchive(t *testing.T) {
	original, _ := testArchive(t)

	var buffer bytes.Buffer
	if err := Write(&buffer, original, CompressionNone); err != nil {
		t.Fatalf("Write: %v", err)
	}

	key := make([]byte, KeySize)
	if _, err := ReadSealed(bytes.NewReader(buffer.Bytes()), key); !errors.Is(err, ErrNotSealed) {
		t.Errorf("ReadSealed on plaintext archive = %v, want ErrNotSealed", err)
	}
}

func TestReadRejectsBadMagic(t *testing.T) {
	data := append([]byte("NOPE"), make([]byte, 32)...)
	if _, err := Read(bytes.NewReader(data)); !errors.Is(err, ErrBadMagic) {
		t.Errorf("Read = %v, want ErrBadMagic", err)
	}
}

func TestReadRejectsFutureVersion(t *testing.T) {
	original, _ := testArchive(t)

	var buffer bytes.Buffer
	if err := Write(&buffer, original, CompressionNone); err != nil {
		t.Fatalf("Write: %v", err)
	}

	data := buffer.Bytes()
	data[4] = FormatVersion + 1

	if _, err := Read(bytes.NewReader(data)); !errors.Is(err, ErrUnsupportedVersion) {
		t.Errorf("Read = %v, want ErrUnsupportedVersion", err)
	}
}

func TestParseCompression(t *testing.T) {
	for name, want := range map[string]CompressionTag{
		"none": CompressionNone,
		"lz4":  CompressionLZ4,
		"zstd": CompressionZstd,
	} {
		got, err := ParseCompression(name)
		if err != nil || got != want {
			t.Errorf("ParseCompression(%q) = %v, %v, want %v", name, got, err, want)
		}
	}

	if _, err := ParseCompression("gzip"); err == nil || !strings.Contains(err.Error(), "gzip") {
		t.Errorf("ParseCompression(gzip) error = %v", err)
	}
}

func TestInspectReportsSealedFlag(t *testing.T) {
	original, _ := testArchive(t)

	key := make([]byte, KeySize)
	var buffer bytes.Buffer
	if err := WriteSealed(&buffer, original, CompressionZstd, key); err != nil {
		t.Fatalf("WriteSealed: %v", err)
	}

	info, err := Inspect(bytes.NewReader(buffer.Bytes()))
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if !info.Sealed {
		t.Error("Inspect did not report the archive as sealed")
	}
	if info.Version != FormatVersion {
		t.Errorf("Inspect version = %d, want %d", info.Version, FormatVersion)
	}
}
