// Package crypto backs the `key`, `key_hash`, `signature`, and `address`
// ground types (spec.md §3's typed constants) and the CLI's
// --private-key/--signature/--source flags (§6): constructing and
// verifying the key material a forged operation needs. It is not a node
// client — internal/deploy owns the actual RPC collaborator — only the
// pure cryptographic operations a batch compiler can do without one.
package crypto

import (
	"crypto/ed25519"
	"encoding/hex"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"filippo.io/edwards25519"
	"golang.org/x/crypto/blake2b"

	"stackc/internal/diag"
)

// Curve selects the signing scheme backing a key, mirroring Tezos's own
// tz1 (ed25519) / tz2 (secp256k1) key prefixes.
type Curve int

const (
	Ed25519 Curve = iota
	Secp256k1
)

// KeyPair is a parsed private/public key pair ready to sign forged
// operation bytes or verify an externally supplied --signature.
type KeyPair struct {
	Curve      Curve
	PrivateKey []byte
	PublicKey  []byte
}

// ParsePrivateKey decodes a hex-encoded private key (the --private-key
// flag's payload) under the given curve and derives its public key.
func ParsePrivateKey(hexKey string, curve Curve) (*KeyPair, error) {
	raw, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, diag.New(diag.External, "", diag.Loc{}, "invalid private key hex: %v", err)
	}
	switch curve {
	case Ed25519:
		var seed []byte
		switch len(raw) {
		case ed25519.SeedSize:
			seed = raw
		case ed25519.PrivateKeySize:
			seed = raw[:ed25519.SeedSize]
		default:
			return nil, diag.New(diag.External, "", diag.Loc{}, "ed25519 private key must be %d or %d bytes, got %d",
				ed25519.SeedSize, ed25519.PrivateKeySize, len(raw))
		}
		// Round-trip through edwards25519.Scalar to validate the seed
		// produces a valid curve scalar before committing to it, the way
		// filippo.io/edwards25519 callers are expected to check.
		priv := ed25519.NewKeyFromSeed(seed)
		if _, err := (&edwards25519.Scalar{}).SetBytesWithClamping(priv[:32]); err != nil {
			return nil, diag.New(diag.External, "", diag.Loc{}, "invalid ed25519 seed: %v", err)
		}
		pub := priv.Public().(ed25519.PublicKey)
		return &KeyPair{Curve: Ed25519, PrivateKey: priv, PublicKey: pub}, nil

	case Secp256k1:
		priv := secp256k1.PrivKeyFromBytes(raw)
		return &KeyPair{Curve: Secp256k1, PrivateKey: priv.Serialize(), PublicKey: priv.PubKey().SerializeCompressed()}, nil
	}
	return nil, diag.New(diag.External, "", diag.Loc{}, "unknown curve")
}

// Sign produces the raw signature bytes over msg. Ed25519 signs msg as
// given; secp256k1 signs its 32-byte blake2b digest. No watermark prefix
// is added, and the CLI passes the forged operation bytes unchanged.
func (k *KeyPair) Sign(msg []byte) ([]byte, error) {
	switch k.Curve {
	case Ed25519:
		return ed25519.Sign(ed25519.PrivateKey(k.PrivateKey), msg), nil
	case Secp256k1:
		priv := secp256k1.PrivKeyFromBytes(k.PrivateKey)
		digest := blake2bSum(msg, 32)
		sig := ecdsa.Sign(priv, digest)
		return sig.Serialize(), nil
	}
	return nil, diag.New(diag.External, "", diag.Loc{}, "unknown curve")
}

// Verify reports whether sig is a valid signature of msg under pub. No
// code in this module calls it: the CLI's --signature value is passed
// through unchecked, and internal/eval has no CHECK_SIGNATURE case.
func Verify(pub []byte, curve Curve, msg, sig []byte) bool {
	switch curve {
	case Ed25519:
		if len(pub) != ed25519.PublicKeySize {
			return false
		}
		return ed25519.Verify(ed25519.PublicKey(pub), msg, sig)
	case Secp256k1:
		key, err := secp256k1.ParsePubKey(pub)
		if err != nil {
			return false
		}
		parsed, err := ecdsa.ParseDERSignature(sig)
		if err != nil {
			return false
		}
		digest := blake2bSum(msg, 32)
		return parsed.Verify(digest, key)
	}
	return false
}

// PublicKeyHash derives a key_hash: Tezos hashes the raw public key with
// BLAKE2b to 20 bytes (tz1/tz2's payload before base58 encoding, which is
// out of scope here — internal/deploy's forged bytes carry the raw hash).
func PublicKeyHash(pub []byte) []byte {
	return blake2bSum(pub, 20)
}

// Address derives the implicit-account address for a public key, the
// `address` ground type's value for a `key_hash`-backed account.
func Address(pub []byte) []byte {
	return PublicKeyHash(pub)
}

func blake2bSum(data []byte, size int) []byte {
	h, err := blake2b.New(size, nil)
	if err != nil {
		// size is always one of 20/32 here, both valid for blake2b.New.
		panic(err)
	}
	h.Write(data)
	return h.Sum(nil)
}
