package wallet

import (
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/tyler-smith/go-bip39"
)

const recordVersion = "1.1"

// Record is the plaintext wallet kept sealed in the secret store.
type Record struct {
	Address    string `json:"address"`
	Mnemonic   string `json:"mnemonic"`
	PrivateKey string `json:"privateKey"`
	Timestamp  int64  `json:"timestamp,omitempty"`
	Version    string `json:"version,omitempty"`
}

func (r *Record) complete() bool {
	return r != nil && r.Address != "" && r.Mnemonic != "" && r.PrivateKey != ""
}

// newMnemonic returns 12 words from 128 bits of entropy.
func newMnemonic() (string, error) {
	entropy, err := bip39.NewEntropy(128)
	if err != nil {
		return "", err
	}
	return bip39.NewMnemonic(entropy)
}

// deriveKey follows m/44'/60'/0'/0/0 from the BIP-39 seed (empty passphrase).
func deriveKey(mnemonic string) (*ecdsa.PrivateKey, error) {
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, ErrInvalidMnemonic
	}
	seed := bip39.NewSeed(mnemonic, "")

	// Network params only affect serialization, not the derived key.
	key, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		return nil, fmt.Errorf("master key: %w", err)
	}
	for _, idx := range accounts.DefaultBaseDerivationPath {
		if key, err = key.Derive(idx); err != nil {
			return nil, fmt.Errorf("derive %s: %w", accounts.DefaultBaseDerivationPath, err)
		}
	}
	priv, err := key.ECPrivKey()
	if err != nil {
		return nil, err
	}
	return priv.ToECDSA(), nil
}

func recordFromMnemonic(mnemonic string) (*Record, *ecdsa.PrivateKey, error) {
	mnemonic = normalizeMnemonic(mnemonic)
	key, err := deriveKey(mnemonic)
	if err != nil {
		return nil, nil, err
	}
	return &Record{
		Address:    crypto.PubkeyToAddress(key.PublicKey).Hex(),
		Mnemonic:   mnemonic,
		PrivateKey: hexutil.Encode(crypto.FromECDSA(key)),
	}, key, nil
}

func normalizeMnemonic(m string) string {
	return strings.Join(strings.Fields(m), " ")
}

// signerFromRecord re-derives the key and checks it against the stored address.
func signerFromRecord(rec *Record) (*ecdsa.PrivateKey, error) {
	if !rec.complete() {
		return nil, ErrCorruptWallet
	}
	key, err := deriveKey(rec.Mnemonic)
	if err != nil {
		return nil, err
	}
	if crypto.PubkeyToAddress(key.PublicKey) != common.HexToAddress(rec.Address) {
		return nil, fmt.Errorf("%w: address mismatch", ErrCorruptWallet)
	}
	return key, nil
}
