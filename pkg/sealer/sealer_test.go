package sealer

import (
	"bytes"
	"errors"
	"testing"
)

// testParams keeps argon2 cheap in tests.
var testParams = Params{Time: 1, MemoryKiB: 1024, Threads: 1}

func TestSealOpenRoundTrip(t *testing.T) {
	plaintext := []byte("id,date,amount\nabc,2025-03-17,-2350\n")

	blob, err := Seal(plaintext, []byte("hunter2"), testParams)
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}

	got, err := Open(blob, []byte("hunter2"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Errorf("round trip mismatch:\nwant %q\ngot  %q", plaintext, got)
	}
}

func TestOpenWrongPassphrase(t *testing.T) {
	blob, err := Seal([]byte("secret"), []byte("correct"), testParams)
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}

	_, err = Open(blob, []byte("wrong"))
	var cryptoErr *CryptoError
	if !errors.As(err, &cryptoErr) {
		t.Fatalf("expected CryptoError for wrong passphrase, got %v", err)
	}
	var integrityErr *IntegrityError
	if errors.As(err, &integrityErr) {
		t.Error("wrong passphrase must not look like corruption")
	}
}

func TestOpenTamperedCiphertext(t *testing.T) {
	blob, err := Seal([]byte("secret"), []byte("hunter2"), testParams)
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}

	blob.Ciphertext[0] ^= 0xff

	_, err = Open(blob, []byte("hunter2"))
	var integrityErr *IntegrityError
	if !errors.As(err, &integrityErr) {
		t.Fatalf("expected IntegrityError for tampered ciphertext, got %v", err)
	}
	var cryptoErr *CryptoError
	if errors.As(err, &cryptoErr) {
		t.Error("corruption must not look like a wrong passphrase")
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	blob, err := Seal([]byte("secret"), []byte("hunter2"), testParams)
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}

	decoded, err := Decode(blob.Encode())
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	plaintext, err := Open(decoded, []byte("hunter2"))
	if err != nil {
		t.Fatalf("Open after decode failed: %v", err)
	}
	if string(plaintext) != "secret" {
		t.Errorf("got %q after encode/decode", plaintext)
	}
}

func TestDecodeRejectsDamage(t *testing.T) {
	cases := map[string][]byte{
		"empty":     {},
		"short":     []byte("KASA"),
		"bad magic": bytes.Repeat([]byte{0x41}, headerSize+4),
	}

	for name, data := range cases {
		_, err := Decode(data)
		var integrityErr *IntegrityError
		if !errors.As(err, &integrityErr) {
			t.Errorf("%s: expected IntegrityError, got %v", name, err)
		}
	}
}

func TestSealRejectsBadParams(t *testing.T) {
	_, err := Seal([]byte("x"), []byte("p"), Params{})
	var cryptoErr *CryptoError
	if !errors.As(err, &cryptoErr) {
		t.Fatalf("expected CryptoError for zero params, got %v", err)
	}
}
