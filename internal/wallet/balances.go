package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// Backend is the part of an Ethereum JSON-RPC client the wallet uses.
// *ethclient.Client satisfies it.
type Backend interface {
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

// Dialer connects to the RPC endpoint of a network.
type Dialer func(ctx context.Context, n Network) (Backend, error)

func DialEthClient(ctx context.Context, n Network) (Backend, error) {
	return ethclient.DialContext(ctx, n.RPCURL)
}

const erc20ABIJSON = `[
	{"constant":true,"inputs":[{"name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"constant":false,"inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"name":"transfer","outputs":[{"name":"","type":"bool"}],"stateMutability":"nonpayable","type":"function"},
	{"constant":true,"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"stateMutability":"view","type":"function"}
]`

var erc20ABI = mustParseABI(erc20ABIJSON)

func mustParseABI(s string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic(err)
	}
	return parsed
}

// NetworkBalance is the native balance of an address on one network.
type NetworkBalance struct {
	NetworkID  string `json:"networkId"`
	Balance    string `json:"balance"`
	BalanceUSD string `json:"balanceUSD"`
	Symbol     string `json:"symbol"`
}

type TokenBalance struct {
	Token   Token           `json:"token"`
	Balance decimal.Decimal `json:"balance"`
}

func (m *Manager) backend(ctx context.Context, n Network) (Backend, error) {
	m.backendsMu.Lock()
	defer m.backendsMu.Unlock()
	if b, ok := m.backends[n.ID]; ok {
		return b, nil
	}
	b, err := m.dial(ctx, n)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", n.ID, err)
	}
	m.backends[n.ID] = b
	return b, nil
}

// GetBalance returns the native balance of address in whole coins.
func (m *Manager) GetBalance(ctx context.Context, address, networkID string) (decimal.Decimal, error) {
	n, err := m.network(networkID)
	if err != nil {
		return decimal.Zero, err
	}
	b, err := m.backend(ctx, n)
	if err != nil {
		return decimal.Zero, err
	}
	wei, err := b.BalanceAt(ctx, common.HexToAddress(address), nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s balance: %w", n.ID, err)
	}
	return FromBaseUnits(wei, 18), nil
}

// GetTokenBalance returns the balance of token held by address. Native
// tokens are delegated to GetBalance.
func (m *Manager) GetTokenBalance(ctx context.Context, address string, token Token, networkID string) (decimal.Decimal, error) {
	if token.IsNative() {
		return m.GetBalance(ctx, address, networkID)
	}
	n, err := m.network(networkID)
	if err != nil {
		return decimal.Zero, err
	}
	b, err := m.backend(ctx, n)
	if err != nil {
		return decimal.Zero, err
	}
	raw, err := tokenBalanceOf(ctx, b, common.HexToAddress(token.Address), common.HexToAddress(address))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s balance: %w", token.Symbol, err)
	}
	return FromBaseUnits(raw, token.Decimals), nil
}

func tokenBalanceOf(ctx context.Context, b Backend, tokenAddr, owner common.Address) (*big.Int, error) {
	data, err := erc20ABI.Pack("balanceOf", owner)
	if err != nil {
		return nil, err
	}
	out, err := b.CallContract(ctx, ethereum.CallMsg{To: &tokenAddr, Data: data}, nil)
	if err != nil {
		return nil, err
	}
	values, err := erc20ABI.Unpack("balanceOf", out)
	if err != nil {
		return nil, err
	}
	balance, ok := values[0].(*big.Int)
	if !ok {
		return nil, errors.New("unexpected balanceOf result")
	}
	return balance, nil
}

func tokenDecimals(ctx context.Context, b Backend, tokenAddr common.Address) (int32, error) {
	data, err := erc20ABI.Pack("decimals")
	if err != nil {
		return 0, err
	}
	out, err := b.CallContract(ctx, ethereum.CallMsg{To: &tokenAddr, Data: data}, nil)
	if err != nil {
		return 0, err
	}
	values, err := erc20ABI.Unpack("decimals", out)
	if err != nil {
		return 0, err
	}
	decimals, ok := values[0].(uint8)
	if !ok {
		return 0, errors.New("unexpected decimals result")
	}
	return int32(decimals), nil
}

// GetMultiNetworkBalance fetches the native balance and USD value of address
// on every network in parallel. A network that fails reports zero.
func (m *Manager) GetMultiNetworkBalance(ctx context.Context, address string) []NetworkBalance {
	networks := m.Networks()
	results := make([]NetworkBalance, len(networks))

	var g errgroup.Group
	for i, n := range networks {
		g.Go(func() error {
			results[i] = NetworkBalance{NetworkID: n.ID, Balance: "0.0000", BalanceUSD: "0.00", Symbol: n.Symbol}

			balance, err := m.GetBalance(ctx, address, n.ID)
			if err != nil {
				m.logger.Warn().Err(err).Str("network", n.ID).Msg("balance lookup failed")
				return nil
			}
			price := m.prices.Price(ctx, n.Symbol)
			results[i].Balance = balance.StringFixed(4)
			results[i].BalanceUSD = balance.Mul(price).StringFixed(2)
			return nil
		})
	}
	g.Wait()
	return results
}

// GetAllTokenBalances queries supported, custom and well-known tokens on a
// network and returns the non-zero ones. Newly discovered tokens are saved
// as custom tokens.
func (m *Manager) GetAllTokenBalances(ctx context.Context, address, networkID string) ([]TokenBalance, error) {
	n, err := m.network(networkID)
	if err != nil {
		return nil, err
	}
	base := SupportedTokens(n.ID)
	custom, err := m.CustomTokens(n.ID)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var merged []Token
	for _, list := range [][]Token{base, custom, ScannableTokens(n.ID)} {
		for _, t := range list {
			if seen[t.key()] {
				continue
			}
			seen[t.key()] = true
			merged = append(merged, t)
		}
	}

	balances := make([]decimal.Decimal, len(merged))
	var g errgroup.Group
	g.SetLimit(8)
	for i, t := range merged {
		g.Go(func() error {
			bal, err := m.GetTokenBalance(ctx, address, t, n.ID)
			if err != nil {
				m.logger.Debug().Err(err).Str("token", t.Symbol).Str("network", n.ID).Msg("token balance lookup failed")
				bal = decimal.Zero
			}
			balances[i] = bal
			return nil
		})
	}
	g.Wait()

	baseSet := make(map[string]bool, len(base))
	for _, t := range base {
		baseSet[t.key()] = true
	}
	var nonZero []TokenBalance
	for i, t := range merged {
		if !balances[i].IsPositive() {
			continue
		}
		nonZero = append(nonZero, TokenBalance{Token: t, Balance: balances[i]})
		if !t.IsNative() && !baseSet[t.key()] {
			if err := m.AddCustomToken(ctx, n.ID, t); err != nil {
				m.logger.Warn().Err(err).Str("token", t.Symbol).Msg("save discovered token")
			}
		}
	}
	return nonZero, nil
}

// AddCustomToken remembers token for networkID. Duplicates are ignored. When
// token.Decimals is zero the contract is asked for its decimals.
func (m *Manager) AddCustomToken(ctx context.Context, networkID string, token Token) error {
	n, err := m.network(networkID)
	if err != nil {
		return err
	}
	if token.Decimals == 0 && !token.IsNative() {
		b, err := m.backend(ctx, n)
		if err != nil {
			return err
		}
		decimals, err := tokenDecimals(ctx, b, common.HexToAddress(token.Address))
		if err != nil {
			return fmt.Errorf("%s decimals: %w", token.Symbol, err)
		}
		token.Decimals = decimals
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	all, err := m.loadCustomTokens()
	if err != nil {
		return err
	}
	for _, t := range all[n.ID] {
		if t.key() == token.key() {
			return nil
		}
	}
	all[n.ID] = append(all[n.ID], token)
	data, err := json.Marshal(all)
	if err != nil {
		return err
	}
	return m.store.Put(slotCustomTokens, data)
}

func (m *Manager) CustomTokens(networkID string) ([]Token, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	all, err := m.loadCustomTokens()
	if err != nil {
		return nil, err
	}
	return all[networkID], nil
}

func (m *Manager) loadCustomTokens() (map[string][]Token, error) {
	all := make(map[string][]Token)
	data, err := m.store.Get(slotCustomTokens)
	if errors.Is(err, ErrSecretNotFound) {
		return all, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &all); err != nil {
		// An unreadable list is treated as empty, as a fresh install would be.
		return make(map[string][]Token), nil
	}
	return all, nil
}
