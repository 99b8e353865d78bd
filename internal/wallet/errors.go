package wallet

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidMnemonic     = errors.New("invalid 12 words, please enter the correct words")
	ErrWrongPassword       = errors.New("wrong password")
	ErrNoStoredWallet      = errors.New("no stored wallet")
	ErrWalletUnavailable   = errors.New("unable to access wallet for transfer, please refresh and try again")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrUnsupportedNetwork  = errors.New("unsupported network")
	ErrInvalidAddress      = errors.New("invalid recipient address")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrCorruptWallet       = errors.New("stored wallet data is corrupt")
)

// TokenBalanceError reports an ERC-20 transfer larger than the holder's
// balance. It matches ErrInsufficientBalance with errors.Is.
type TokenBalanceError struct {
	Symbol string
}

func (e *TokenBalanceError) Error() string {
	return fmt.Sprintf("insufficient %s balance", e.Symbol)
}

func (e *TokenBalanceError) Is(target error) bool {
	return target == ErrInsufficientBalance
}
