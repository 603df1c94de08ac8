// Package sealer provides authenticated encryption for ledger state at rest.
// Keys are derived from the user's passphrase with argon2id; the salt and
// KDF parameters travel inside the blob, the derived key never does.
package sealer

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/binary"
	"io"

	"golang.org/x/crypto/argon2"
)

const (
	magic      = "KASA"
	version    = 1
	algAESGCM  = 1
	saltSize   = 16
	nonceSize  = 12
	checkSize  = 8
	keySize    = 32
	headerSize = len(magic) + 2 + 4 + 4 + 1 + checkSize + saltSize + nonceSize
)

// Params are the argon2id cost parameters baked into each blob so old blobs
// stay readable after defaults change.
type Params struct {
	Time      uint32
	MemoryKiB uint32
	Threads   uint8
}

// DefaultParams is a deliberate slowdown for interactive use.
func DefaultParams() Params {
	return Params{Time: 3, MemoryKiB: 64 * 1024, Threads: 4}
}

// CryptoError means key derivation failed or the passphrase is wrong.
// It is distinct from IntegrityError so callers can tell "wrong password"
// from "corrupted remote state".
type CryptoError struct {
	Msg string
}

func (e *CryptoError) Error() string { return "crypto: " + e.Msg }

// IntegrityError means the blob itself is damaged or has been tampered with.
type IntegrityError struct {
	Msg string
}

func (e *IntegrityError) Error() string { return "integrity: " + e.Msg }

// Blob is ciphertext plus everything needed to open it again except the
// passphrase.
type Blob struct {
	Params     Params
	KeyCheck   [checkSize]byte
	Salt       [saltSize]byte
	Nonce      [nonceSize]byte
	Ciphertext []byte
}

func deriveKey(passphrase []byte, salt []byte, p Params) ([]byte, error) {
	if p.Time == 0 || p.MemoryKiB == 0 || p.Threads == 0 {
		return nil, &CryptoError{Msg: "invalid key derivation parameters"}
	}
	return argon2.IDKey(passphrase, salt, p.Time, p.MemoryKiB, p.Threads, keySize), nil
}

// keyCheck is a short commitment to the derived key so Open can distinguish
// a wrong passphrase from a damaged ciphertext.
func keyCheck(key, salt []byte) [checkSize]byte {
	h := sha256.New()
	h.Write([]byte("kasa/keycheck"))
	h.Write(salt)
	h.Write(key)
	var out [checkSize]byte
	copy(out[:], h.Sum(nil))
	return out
}

// Seal encrypts plaintext under a passphrase-derived key with AES-256-GCM.
func Seal(plaintext, passphrase []byte, params Params) (*Blob, error) {
	blob := &Blob{Params: params}

	if _, err := io.ReadFull(rand.Reader, blob.Salt[:]); err != nil {
		return nil, &CryptoError{Msg: "salt generation: " + err.Error()}
	}
	if _, err := io.ReadFull(rand.Reader, blob.Nonce[:]); err != nil {
		return nil, &CryptoError{Msg: "nonce generation: " + err.Error()}
	}

	key, err := deriveKey(passphrase, blob.Salt[:], params)
	if err != nil {
		return nil, err
	}
	blob.KeyCheck = keyCheck(key, blob.Salt[:])

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, &CryptoError{Msg: err.Error()}
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, &CryptoError{Msg: err.Error()}
	}

	blob.Ciphertext = gcm.Seal(nil, blob.Nonce[:], plaintext, nil)
	return blob, nil
}

// Open decrypts a blob. Wrong passphrase yields CryptoError; a blob that
// fails authentication with the right key yields IntegrityError.
func Open(blob *Blob, passphrase []byte) ([]byte, error) {
	key, err := deriveKey(passphrase, blob.Salt[:], blob.Params)
	if err != nil {
		return nil, err
	}

	check := keyCheck(key, blob.Salt[:])
	if subtle.ConstantTimeCompare(check[:], blob.KeyCheck[:]) != 1 {
		return nil, &CryptoError{Msg: "wrong passphrase"}
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, &CryptoError{Msg: err.Error()}
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, &CryptoError{Msg: err.Error()}
	}

	plaintext, err := gcm.Open(nil, blob.Nonce[:], blob.Ciphertext, nil)
	if err != nil {
		return nil, &IntegrityError{Msg: "ciphertext failed authentication"}
	}
	return plaintext, nil
}

// Encode serializes a blob: magic, version, algorithm id, KDF parameters,
// key check, salt, nonce, ciphertext.
func (b *Blob) Encode() []byte {
	out := make([]byte, 0, headerSize+len(b.Ciphertext))
	out = append(out, magic...)
	out = append(out, version, algAESGCM)
	out = binary.BigEndian.AppendUint32(out, b.Params.Time)
	out = binary.BigEndian.AppendUint32(out, b.Params.MemoryKiB)
	out = append(out, b.Params.Threads)
	out = append(out, b.KeyCheck[:]...)
	out = append(out, b.Salt[:]...)
	out = append(out, b.Nonce[:]...)
	out = append(out, b.Ciphertext...)
	return out
}

// Decode parses a serialized blob. Structural damage surfaces as
// IntegrityError.
func Decode(data []byte) (*Blob, error) {
	if len(data) < headerSize {
		return nil, &IntegrityError{Msg: "blob too short"}
	}
	if string(data[:len(magic)]) != magic {
		return nil, &IntegrityError{Msg: "bad magic"}
	}
	if data[4] != version {
		return nil, &IntegrityError{Msg: "unsupported blob version"}
	}
	if data[5] != algAESGCM {
		return nil, &IntegrityError{Msg: "unsupported algorithm"}
	}

	blob := &Blob{
		Params: Params{
			Time:      binary.BigEndian.Uint32(data[6:10]),
			MemoryKiB: binary.BigEndian.Uint32(data[10:14]),
			Threads:   data[14],
		},
	}
	offset := 15
	copy(blob.KeyCheck[:], data[offset:offset+checkSize])
	offset += checkSize
	copy(blob.Salt[:], data[offset:offset+saltSize])
	offset += saltSize
	copy(blob.Nonce[:], data[offset:offset+nonceSize])
	offset += nonceSize
	blob.Ciphertext = append([]byte(nil), data[offset:]...)
	return blob, nil
}
