package wallet

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/params"
	"github.com/rs/zerolog"
)

const recipient = "0x000000000000000000000000000000000000dEaD"

func mustUnits(t *testing.T, amount string, decimals int32) *big.Int {
	t.Helper()
	v, err := ToBaseUnits(amount, decimals)
	if err != nil {
		t.Fatal(err)
	}
	return v
}

func signerManager(t *testing.T, backends map[string]*fakeBackend) *Manager {
	t.Helper()
	m, _ := newTestManager(t, WithDialer(backendsDialer(backends)))
	if _, err := m.ImportWallet(testMnemonic); err != nil {
		t.Fatal(err)
	}
	return m
}

func offcToken() Token {
	for _, tok := range SupportedTokens("bsc") {
		if tok.Symbol == OFFCSymbol {
			return tok
		}
	}
	panic("OFFC not configured")
}

func TestTokenTransferExceedingBalanceSubmitsNothing(t *testing.T) {
	bsc := newFakeBackend()
	bsc.tokens[common.HexToAddress(OFFCAddress)] = mustUnits(t, "5", 18)
	m := signerManager(t, map[string]*fakeBackend{"bsc": bsc})

	_, err := m.SendTokenTransaction(context.Background(), recipient, "10", offcToken(), "bsc")
	if err == nil {
		t.Fatal("Expected an error")
	}
	if err.Error() != "insufficient OFFC balance" {
		t.Errorf("Unexpected error message %q", err)
	}
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Errorf("Expected errors.Is ErrInsufficientBalance")
	}
	if bsc.sentCount() != 0 {
		t.Errorf("Nothing should have been submitted, got %d transactions", bsc.sentCount())
	}
}

func TestTokenTransferOnBSC(t *testing.T) {
	bsc := newFakeBackend()
	bsc.tokens[common.HexToAddress(OFFCAddress)] = mustUnits(t, "100", 18)
	m := signerManager(t, map[string]*fakeBackend{"bsc": bsc})

	hash, err := m.SendTokenTransaction(context.Background(), recipient, "12.5", offcToken(), "bsc")
	if err != nil {
		t.Fatalf("SendTokenTransaction: %v", err)
	}
	if bsc.sentCount() != 1 {
		t.Fatalf("Expected one transaction, got %d", bsc.sentCount())
	}
	tx := bsc.sent[0]
	if tx.Hash().Hex() != hash {
		t.Errorf("Returned hash does not match the submitted transaction")
	}
	if *tx.To() != common.HexToAddress(OFFCAddress) {
		t.Errorf("Token transfer must target the token contract, got %s", tx.To())
	}
	if tx.Gas() != 60_000 {
		t.Errorf("Expected estimate plus 20%% (60000), got %d", tx.Gas())
	}
	if tx.GasPrice().Cmp(big.NewInt(params.GWei)) != 0 {
		t.Errorf("Expected fixed 1 gwei on bsc, got %s", tx.GasPrice())
	}
	if tx.ChainId().Int64() != 56 {
		t.Errorf("Expected chain id 56, got %s", tx.ChainId())
	}
	from, err := types.Sender(types.LatestSignerForChainID(tx.ChainId()), tx)
	if err != nil || from != common.HexToAddress(testAddress) {
		t.Errorf("Unexpected sender %s (%v)", from.Hex(), err)
	}

	args, err := erc20ABI.Methods["transfer"].Inputs.Unpack(tx.Data()[4:])
	if err != nil {
		t.Fatal(err)
	}
	if args[0].(common.Address) != common.HexToAddress(recipient) || args[1].(*big.Int).Cmp(mustUnits(t, "12.5", 18)) != 0 {
		t.Errorf("Unexpected transfer arguments %v", args)
	}
}

func TestTokenTransferOnMainnetUsesSuggestedGasPrice(t *testing.T) {
	eth := newFakeBackend()
	usdt := ScannableTokens("ethereum")[0]
	eth.tokens[common.HexToAddress(usdt.Address)] = mustUnits(t, "50", usdt.Decimals)
	m := signerManager(t, map[string]*fakeBackend{"ethereum": eth})

	if _, err := m.SendTokenTransaction(context.Background(), recipient, "1", usdt, "ethereum"); err != nil {
		t.Fatal(err)
	}
	if got := eth.sent[0].GasPrice(); got.Cmp(eth.gasPrice) != 0 {
		t.Errorf("Expected suggested gas price %s, got %s", eth.gasPrice, got)
	}
}

func TestNativeTransfer(t *testing.T) {
	eth := newFakeBackend()
	eth.native = mustUnits(t, "1", 18)
	m := signerManager(t, map[string]*fakeBackend{"ethereum": eth})

	if _, err := m.SendTransaction(context.Background(), recipient, "0.5", "ethereum"); err != nil {
		t.Fatalf("SendTransaction: %v", err)
	}
	tx := eth.sent[0]
	if tx.Gas() != nativeTransferGas || tx.Value().Cmp(mustUnits(t, "0.5", 18)) != 0 || tx.ChainId().Int64() != 1 {
		t.Errorf("Unexpected transaction gas=%d value=%s chain=%s", tx.Gas(), tx.Value(), tx.ChainId())
	}

	// Native tokens passed to SendTokenTransaction are delegated.
	if _, err := m.SendTokenTransaction(context.Background(), recipient, "0.1", SupportedTokens("ethereum")[0], ""); err != nil {
		t.Fatal(err)
	}
	if eth.sentCount() != 2 {
		t.Errorf("Expected delegated native transfer")
	}
}

func TestNativeTransferErrors(t *testing.T) {
	eth := newFakeBackend()
	eth.native = mustUnits(t, "0.1", 18)
	m := signerManager(t, map[string]*fakeBackend{"ethereum": eth})
	ctx := context.Background()

	if _, err := m.SendTransaction(ctx, recipient, "1", "ethereum"); !errors.Is(err, ErrInsufficientBalance) {
		t.Errorf("Expected ErrInsufficientBalance, got %v", err)
	}
	if _, err := m.SendTransaction(ctx, "not-an-address", "0.01", "ethereum"); !errors.Is(err, ErrInvalidAddress) {
		t.Errorf("Expected ErrInvalidAddress, got %v", err)
	}

	eth.sendErr = errors.New("insufficient funds for gas * price + value")
	if _, err := m.SendTransaction(ctx, recipient, "0.01", "ethereum"); !errors.Is(err, ErrInsufficientBalance) {
		t.Errorf("Expected node rejection to map to ErrInsufficientBalance, got %v", err)
	}
	eth.sendErr = errors.New("nonce too low")
	_, err := m.SendTransaction(ctx, recipient, "0.01", "ethereum")
	if err == nil || err.Error() != "transaction failed: nonce too low" {
		t.Errorf("Unexpected error %v", err)
	}
	if eth.sentCount() != 0 {
		t.Errorf("No transaction should have been accepted")
	}
}

func TestTransferRestoresSignerFromStore(t *testing.T) {
	eth := newFakeBackend()
	eth.native = mustUnits(t, "1", 18)
	_, store, _ := savedManager(t, "pw")

	m := NewManager(store,
		WithLogger(zerolog.Nop()),
		WithDialer(backendsDialer(map[string]*fakeBackend{"ethereum": eth})),
		WithRestoreBackoff(0),
	)
	if _, err := m.SendTransaction(context.Background(), recipient, "0.1", "ethereum"); err != nil {
		t.Fatalf("Expected the signer to be restored, got %v", err)
	}
	if addr, _ := m.GetConnectedAddress(); addr != testAddress {
		t.Errorf("Unexpected restored address %s", addr)
	}
}

func TestTransferWithoutWallet(t *testing.T) {
	m, _ := newTestManager(t)
	if _, err := m.SendTransaction(context.Background(), recipient, "0.1", "ethereum"); !errors.Is(err, ErrWalletUnavailable) {
		t.Errorf("Expected ErrWalletUnavailable, got %v", err)
	}
}
