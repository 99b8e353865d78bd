package wallet

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/params"
)

const nativeTransferGas = 21000

// Gas price used on every chain except Ethereum mainnet.
var fixedGasPrice = big.NewInt(params.GWei)

// ensureSigner makes sure a signer is active, auto-restoring it from the
// secret store up to restoreAttempts times.
func (m *Manager) ensureSigner(ctx context.Context) (*ecdsa.PrivateKey, error) {
	for i := 0; i < restoreAttempts; i++ {
		if key := m.currentSigner(); key != nil {
			return key, nil
		}
		err := m.AutoRestoreWallet(ctx)
		if err == nil {
			continue
		}
		m.logger.Warn().Err(err).Int("attempt", i+1).Msg("wallet restore failed")
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			break
		}
		if i < restoreAttempts-1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(m.backoff):
			}
		}
	}
	if key := m.currentSigner(); key != nil {
		return key, nil
	}
	return nil, ErrWalletUnavailable
}

// SendTransaction transfers amount of the network's native coin to `to` and
// returns the transaction hash.
func (m *Manager) SendTransaction(ctx context.Context, to, amount, networkID string) (string, error) {
	key, err := m.ensureSigner(ctx)
	if err != nil {
		return "", err
	}
	if !common.IsHexAddress(to) {
		return "", ErrInvalidAddress
	}
	value, err := ToBaseUnits(amount, 18)
	if err != nil {
		return "", err
	}
	n, err := m.network(networkID)
	if err != nil {
		return "", err
	}
	b, err := m.backend(ctx, n)
	if err != nil {
		return "", err
	}

	from := crypto.PubkeyToAddress(key.PublicKey)
	gasPrice, err := b.SuggestGasPrice(ctx)
	if err != nil {
		return "", transactionFailed(err)
	}
	balance, err := b.BalanceAt(ctx, from, nil)
	if err != nil {
		return "", transactionFailed(err)
	}
	cost := new(big.Int).Mul(gasPrice, big.NewInt(nativeTransferGas))
	cost.Add(cost, value)
	if balance.Cmp(cost) < 0 {
		return "", ErrInsufficientBalance
	}

	toAddr := common.HexToAddress(to)
	hash, err := m.signAndSend(ctx, b, n, key, &types.LegacyTx{
		To:       &toAddr,
		Value:    value,
		Gas:      nativeTransferGas,
		GasPrice: gasPrice,
	})
	if err != nil {
		if isInsufficientFunds(err) {
			return "", ErrInsufficientBalance
		}
		return "", transactionFailed(err)
	}
	m.logger.Info().Str("network", n.ID).Str("tx", hash).Msg("native transfer sent")
	return hash, nil
}

// SendTokenTransaction transfers amount of token to `to`. The token balance
// is checked before anything is submitted.
func (m *Manager) SendTokenTransaction(ctx context.Context, to, amount string, token Token, networkID string) (string, error) {
	key, err := m.ensureSigner(ctx)
	if err != nil {
		return "", err
	}
	if token.IsNative() {
		return m.SendTransaction(ctx, to, amount, networkID)
	}
	if !common.IsHexAddress(to) {
		return "", ErrInvalidAddress
	}
	value, err := ToBaseUnits(amount, token.Decimals)
	if err != nil {
		return "", err
	}
	n, err := m.network(networkID)
	if err != nil {
		return "", err
	}
	b, err := m.backend(ctx, n)
	if err != nil {
		return "", err
	}

	from := crypto.PubkeyToAddress(key.PublicKey)
	tokenAddr := common.HexToAddress(token.Address)
	balance, err := tokenBalanceOf(ctx, b, tokenAddr, from)
	if err != nil {
		return "", tokenTransferFailed(token, err)
	}
	if balance.Cmp(value) < 0 {
		return "", &TokenBalanceError{Symbol: token.Symbol}
	}

	data, err := erc20ABI.Pack("transfer", common.HexToAddress(to), value)
	if err != nil {
		return "", err
	}
	estimated, err := b.EstimateGas(ctx, ethereum.CallMsg{From: from, To: &tokenAddr, Data: data})
	if err != nil {
		return "", tokenTransferFailed(token, err)
	}
	// 20% headroom over the estimate
	gasLimit := estimated + estimated*20/100

	gasPrice := fixedGasPrice
	if n.ID == "ethereum" {
		if gasPrice, err = b.SuggestGasPrice(ctx); err != nil {
			return "", tokenTransferFailed(token, err)
		}
	}

	hash, err := m.signAndSend(ctx, b, n, key, &types.LegacyTx{
		To:       &tokenAddr,
		Value:    big.NewInt(0),
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})
	if err != nil {
		return "", tokenTransferFailed(token, err)
	}
	m.logger.Info().Str("network", n.ID).Str("token", token.Symbol).Str("tx", hash).Msg("token transfer sent")
	return hash, nil
}

func (m *Manager) signAndSend(ctx context.Context, b Backend, n Network, key *ecdsa.PrivateKey, tx *types.LegacyTx) (string, error) {
	nonce, err := b.PendingNonceAt(ctx, crypto.PubkeyToAddress(key.PublicKey))
	if err != nil {
		return "", err
	}
	tx.Nonce = nonce
	signed, err := types.SignTx(types.NewTx(tx), types.LatestSignerForChainID(big.NewInt(n.ChainID)), key)
	if err != nil {
		return "", err
	}
	if err := b.SendTransaction(ctx, signed); err != nil {
		return "", err
	}
	return signed.Hash().Hex(), nil
}

func isInsufficientFunds(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "insufficient funds")
}

func transactionFailed(err error) error {
	return fmt.Errorf("transaction failed: %w", err)
}

func tokenTransferFailed(token Token, err error) error {
	if strings.Contains(strings.ToLower(err.Error()), "insufficient") {
		return &TokenBalanceError{Symbol: token.Symbol}
	}
	return fmt.Errorf("%s transaction failed: %w", token.Symbol, err)
}
