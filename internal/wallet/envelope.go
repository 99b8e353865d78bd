package wallet

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/scrypt"
)

const envelopeVersion = 1

// scrypt cost parameters for the password key.
var (
	scryptN = 1 << 15
	scryptR = 8
	scryptP = 1
)

var errOpen = errors.New("envelope: authentication failed")

// envelope is the at-rest form of a wallet record. The record is sealed
// under a random data key, and the data key is wrapped twice: once under a
// key derived from the password and once under the device key, so either
// can open it.
type envelope struct {
	Version     int    `json:"v"`
	Salt        []byte `json:"salt"`
	PasswordKey []byte `json:"pk"`
	DeviceKey   []byte `json:"dk"`
	Ciphertext  []byte `json:"ct"`
}

func seal(plaintext []byte, password string, deviceKey []byte) ([]byte, error) {
	dataKey := make([]byte, chacha20poly1305.KeySize)
	if _, err := rand.Read(dataKey); err != nil {
		return nil, err
	}
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	pwKey, err := passwordKey(password, salt)
	if err != nil {
		return nil, err
	}

	env := envelope{Version: envelopeVersion, Salt: salt}
	if env.PasswordKey, err = aeadSeal(pwKey, dataKey); err != nil {
		return nil, err
	}
	if env.DeviceKey, err = aeadSeal(deviceKey, dataKey); err != nil {
		return nil, err
	}
	if env.Ciphertext, err = aeadSeal(dataKey, plaintext); err != nil {
		return nil, err
	}
	return json.Marshal(env)
}

func parseEnvelope(blob []byte) (*envelope, error) {
	var env envelope
	if err := json.Unmarshal(blob, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptWallet, err)
	}
	if env.Version != envelopeVersion {
		return nil, fmt.Errorf("%w: unknown envelope version %d", ErrCorruptWallet, env.Version)
	}
	return &env, nil
}

func openWithPassword(blob []byte, password string) ([]byte, error) {
	env, err := parseEnvelope(blob)
	if err != nil {
		return nil, err
	}
	pwKey, err := passwordKey(password, env.Salt)
	if err != nil {
		return nil, err
	}
	dataKey, err := aeadOpen(pwKey, env.PasswordKey)
	if err != nil {
		return nil, ErrWrongPassword
	}
	return openData(dataKey, env)
}

func openWithDeviceKey(blob []byte, deviceKey []byte) ([]byte, error) {
	env, err := parseEnvelope(blob)
	if err != nil {
		return nil, err
	}
	dataKey, err := aeadOpen(deviceKey, env.DeviceKey)
	if err != nil {
		return nil, fmt.Errorf("%w: device key does not match", ErrCorruptWallet)
	}
	return openData(dataKey, env)
}

func openData(dataKey []byte, env *envelope) ([]byte, error) {
	plaintext, err := aeadOpen(dataKey, env.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptWallet, err)
	}
	return plaintext, nil
}

func passwordKey(password string, salt []byte) ([]byte, error) {
	return scrypt.Key([]byte(password), salt, scryptN, scryptR, scryptP, chacha20poly1305.KeySize)
}

// aeadSeal returns nonce || ciphertext.
func aeadSeal(key, plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

func aeadOpen(key, sealed []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	if len(sealed) < aead.NonceSize() {
		return nil, errOpen
	}
	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, errOpen
	}
	return plaintext, nil
}
