// Package keystore manages the locally encrypted Ed25519 signing key used
// to sign chain records. The key is machine-bound: its wrapping key is
// derived from hostname, username, and a fixed label via PBKDF2, so the
// keystore file only decrypts on the machine (and for the user) that
// created it.
package keystore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/crypto/pbkdf2"
)

const (
	pbkdf2Iterations = 100_000
	keyLength        = 32
	saltLength       = 32
	pemBlockType     = "PRIVATE KEY"
)

// ErrLocked is returned by Open when the stored ciphertext cannot be
// authenticated under the machine-derived key; callers should fall back to
// unsigned operation rather than treat this as fatal.
var ErrLocked = errors.New("keystore: cannot decrypt with this machine's identity")

// File is the on-disk JSON representation of a keystore.
type File struct {
	PublicKeyPEM        string `json:"public_key_pem"`
	EncryptedPrivateKey string `json:"encrypted_private_key"`
	IV                  string `json:"iv"`
	Tag                 string `json:"tag"`
	Salt                string `json:"salt"`
	CreatedAt           string `json:"created_at"`
}

// KeyStore holds a live, decrypted signing key.
type KeyStore struct {
	Private ed25519.PrivateKey
	Public  ed25519.PublicKey
}

// Sign satisfies chain.Signer.
func (k *KeyStore) Sign(message []byte) []byte {
	if k == nil || k.Private == nil {
		return nil
	}
	return ed25519.Sign(k.Private, message)
}

func deriveKey(salt []byte) []byte {
	hostname, _ := os.Hostname()
	username := currentUsername()
	passphrase := hostname + ":" + username + ":useai-keystore"
	return pbkdf2.Key([]byte(passphrase), salt, pbkdf2Iterations, keyLength, sha256.New)
}

func currentUsername() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	if u := os.Getenv("USERNAME"); u != "" {
		return u
	}
	return "unknown"
}

// Generate creates a fresh Ed25519 key pair and seals it into a File using
// a key derived for this machine/user.
func Generate() (*KeyStore, File, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, File{}, fmt.Errorf("generate ed25519 key: %w", err)
	}

	pkcs8, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return nil, File{}, fmt.Errorf("marshal pkcs8: %w", err)
	}
	privPEM := pem.EncodeToMemory(&pem.Block{Type: pemBlockType, Bytes: pkcs8})

	pubPKIX, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return nil, File{}, fmt.Errorf("marshal public key: %w", err)
	}
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubPKIX})

	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, File{}, fmt.Errorf("generate salt: %w", err)
	}
	derived := deriveKey(salt)

	block, err := aes.NewCipher(derived)
	if err != nil {
		return nil, File{}, fmt.Errorf("new cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, File{}, fmt.Errorf("new gcm: %w", err)
	}
	iv := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(iv); err != nil {
		return nil, File{}, fmt.Errorf("generate iv: %w", err)
	}

	sealed := gcm.Seal(nil, iv, privPEM, nil)
	ciphertext := sealed[:len(sealed)-gcm.Overhead()]
	tag := sealed[len(sealed)-gcm.Overhead():]

	f := File{
		PublicKeyPEM:        string(pubPEM),
		EncryptedPrivateKey: hex.EncodeToString(ciphertext),
		IV:                  hex.EncodeToString(iv),
		Tag:                 hex.EncodeToString(tag),
		Salt:                hex.EncodeToString(salt),
		CreatedAt:           time.Now().UTC().Format(time.RFC3339Nano),
	}

	return &KeyStore{Private: priv, Public: pub}, f, nil
}

// Open decrypts a previously persisted keystore File. Returns ErrLocked
// (not a fatal error) if the authenticated decryption fails — this happens
// whenever the file was created on a different machine or for a different
// user, and the session engine is expected to fall back to unsigned mode.
func Open(f File) (*KeyStore, error) {
	salt, err := hex.DecodeString(f.Salt)
	if err != nil {
		return nil, fmt.Errorf("decode salt: %w", err)
	}
	iv, err := hex.DecodeString(f.IV)
	if err != nil {
		return nil, fmt.Errorf("decode iv: %w", err)
	}
	tag, err := hex.DecodeString(f.Tag)
	if err != nil {
		return nil, fmt.Errorf("decode tag: %w", err)
	}
	ciphertext, err := hex.DecodeString(f.EncryptedPrivateKey)
	if err != nil {
		return nil, fmt.Errorf("decode ciphertext: %w", err)
	}

	derived := deriveKey(salt)
	block, err := aes.NewCipher(derived)
	if err != nil {
		return nil, fmt.Errorf("new cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("new gcm: %w", err)
	}

	sealed := append(append([]byte{}, ciphertext...), tag...)
	privPEM, err := gcm.Open(nil, iv, sealed, nil)
	if err != nil {
		return nil, ErrLocked
	}

	block2, _ := pem.Decode(privPEM)
	if block2 == nil {
		return nil, ErrLocked
	}
	key, err := x509.ParsePKCS8PrivateKey(block2.Bytes)
	if err != nil {
		return nil, ErrLocked
	}
	priv, ok := key.(ed25519.PrivateKey)
	if !ok {
		return nil, ErrLocked
	}

	pubBlock, _ := pem.Decode([]byte(f.PublicKeyPEM))
	var pub ed25519.PublicKey
	if pubBlock != nil {
		if parsed, err := x509.ParsePKIXPublicKey(pubBlock.Bytes); err == nil {
			if p, ok := parsed.(ed25519.PublicKey); ok {
				pub = p
			}
		}
	}
	if pub == nil {
		pub = priv.Public().(ed25519.PublicKey)
	}

	return &KeyStore{Private: priv, Public: pub}, nil
}
