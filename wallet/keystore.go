// Package wallet provides key management and transaction signing helpers.
package wallet

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/crypto/pbkdf2"

	"github.com/tolelom/purgegame/crypto"
)

// ErrBadPassword is returned when a keystore cannot be opened.
var ErrBadPassword = errors.New("wrong password or corrupted keystore")

const defaultIterations = 210_000

type keystoreFile struct {
	PubKey     string `json:"pub_key"`
	Iterations int    `json:"iterations"`
	Salt       string `json:"salt"`
	Nonce      string `json:"nonce"`
	CipherText string `json:"cipher_text"`
}

// SaveKey encrypts priv with password (AES-GCM, PBKDF2-SHA256 key) and
// writes it to path with owner-only permissions.
func SaveKey(path, password string, priv crypto.PrivateKey) error {
	salt := make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return err
	}
	gcm, err := newGCM(password, salt, defaultIterations)
	if err != nil {
		return err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return err
	}

	ks := keystoreFile{
		PubKey:     priv.Public().Hex(),
		Iterations: defaultIterations,
		Salt:       hex.EncodeToString(salt),
		Nonce:      hex.EncodeToString(nonce),
		CipherText: hex.EncodeToString(gcm.Seal(nil, nonce, priv, nil)),
	}
	data, err := json.MarshalIndent(ks, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// LoadKey decrypts the keystore at path using password.
func LoadKey(path, password string) (crypto.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var ks keystoreFile
	if err := json.Unmarshal(data, &ks); err != nil {
		return nil, fmt.Errorf("parse keystore: %w", err)
	}
	if ks.Iterations == 0 {
		ks.Iterations = defaultIterations
	}
	var raw [3][]byte
	for i, s := range []string{ks.Salt, ks.Nonce, ks.CipherText} {
		if raw[i], err = hex.DecodeString(s); err != nil {
			return nil, fmt.Errorf("keystore field %d: %w", i, err)
		}
	}
	gcm, err := newGCM(password, raw[0], ks.Iterations)
	if err != nil {
		return nil, err
	}
	privBytes, err := gcm.Open(nil, raw[1], raw[2], nil)
	if err != nil {
		return nil, ErrBadPassword
	}
	priv := crypto.PrivateKey(privBytes)
	if ks.PubKey != "" && priv.Public().Hex() != ks.PubKey {
		return nil, ErrBadPassword
	}
	return priv, nil
}

// LoadOrCreate opens the keystore at path, generating and saving a new key
// when the file does not exist yet.
func LoadOrCreate(path, password string) (*Wallet, error) {
	priv, err := LoadKey(path, password)
	if err == nil {
		return New(priv), nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	w, err := Generate()
	if err != nil {
		return nil, err
	}
	if err := SaveKey(path, password, w.PrivKey()); err != nil {
		return nil, err
	}
	return w, nil
}

func newGCM(password string, salt []byte, iterations int) (cipher.AEAD, error) {
	key := pbkdf2.Key([]byte(password), salt, iterations, 32, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
