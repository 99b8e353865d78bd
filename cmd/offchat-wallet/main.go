// Command offchat-wallet manages the local OFFC wallet: key generation,
// sealed storage, balances and transfers.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pliu/offchat/internal/wallet"
	"github.com/rs/zerolog"
)

const usage = `usage: offchat-wallet [flags] <command> [args]

commands:
  generate                      create a wallet and seal it with the password
  import <mnemonic...>          restore from a mnemonic and seal it
  load                          unlock with the password
  validate                      check integrity, recovering from backup if needed
  address                       print the stored address (no password needed)
  balance                       native balance on every network
  tokens                        non-zero token balances on -network
  add-token <address> <symbol> <decimals>   (0 reads decimals from the contract)
  send <to> <amount>            native transfer on -network
  send-token <symbol> <to> <amount>
  maintenance                   refresh the backup copy when it is stale
  clear                         remove the stored wallet
`

type options struct {
	dataDir  string
	network  string
	password string
	verbose  bool
}

func main() {
	_ = godotenv.Load()

	var opts options
	fs := flag.NewFlagSet("offchat-wallet", flag.ExitOnError)
	fs.StringVar(&opts.dataDir, "data", defaultDataDir(), "wallet data directory")
	fs.StringVar(&opts.network, "network", "ethereum", "network id")
	fs.StringVar(&opts.password, "password", os.Getenv("OFFCHAT_WALLET_PASSWORD"), "wallet password")
	fs.BoolVar(&opts.verbose, "v", false, "debug logging")
	fs.Usage = func() { fmt.Fprint(os.Stderr, usage); fs.PrintDefaults() }
	fs.Parse(os.Args[1:])

	level := zerolog.InfoLevel
	if opts.verbose {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		Level(level).
		With().
		Timestamp().
		Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, opts, fs.Args(), os.Stdout, logger); err != nil {
		if errors.Is(err, errUsage) {
			fs.Usage()
			os.Exit(2)
		}
		logger.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

var errUsage = errors.New("usage")

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return dir + "/offchat/wallet"
	}
	return ".offchat-wallet"
}

const rpcEnvPrefix = "OFFCHAT_RPC_"

// rpcOverrides maps OFFCHAT_RPC_<NETWORK>=url to network ids. Unknown
// networks are ignored by the manager.
func rpcOverrides(environ []string) map[string]string {
	urls := make(map[string]string)
	for _, kv := range environ {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || value == "" || !strings.HasPrefix(key, rpcEnvPrefix) {
			continue
		}
		urls[strings.ToLower(strings.TrimPrefix(key, rpcEnvPrefix))] = value
	}
	return urls
}

func run(ctx context.Context, opts options, args []string, out io.Writer, logger zerolog.Logger, extra ...wallet.Option) error {
	if len(args) == 0 {
		return errUsage
	}

	store, err := wallet.OpenPebbleStore(opts.dataDir)
	if err != nil {
		return fmt.Errorf("open wallet store: %w", err)
	}
	defer store.Close()

	mopts := append([]wallet.Option{
		wallet.WithLogger(logger),
		wallet.WithRPCURLs(rpcOverrides(os.Environ())),
	}, extra...)
	m := wallet.NewManager(store, mopts...)
	if err := m.SwitchNetwork(opts.network); err != nil {
		return err
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "generate", "import":
		if opts.password == "" {
			return errors.New("a password is required (-password or OFFCHAT_WALLET_PASSWORD)")
		}
		var rec *wallet.Record
		if cmd == "generate" {
			rec, err = m.GenerateWallet()
		} else {
			if len(rest) == 0 {
				return errUsage
			}
			rec, err = m.ImportWallet(strings.Join(rest, " "))
		}
		if err != nil {
			return err
		}
		if err := m.SaveWallet(rec, opts.password); err != nil {
			return err
		}
		result := map[string]string{"address": rec.Address}
		if cmd == "generate" {
			result["mnemonic"] = rec.Mnemonic
		}
		return printJSON(out, result)

	case "load":
		rec, err := m.LoadWallet(opts.password)
		if err != nil {
			return err
		}
		return printJSON(out, map[string]string{"address": rec.Address})

	case "validate":
		ok, err := m.ValidateWalletData()
		if err != nil {
			return err
		}
		return printJSON(out, map[string]bool{"valid": ok})

	case "address":
		addr, err := restoredAddress(ctx, m)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, addr)
		return nil

	case "balance":
		addr, err := restoredAddress(ctx, m)
		if err != nil {
			return err
		}
		return printJSON(out, m.GetMultiNetworkBalance(ctx, addr))

	case "tokens":
		addr, err := restoredAddress(ctx, m)
		if err != nil {
			return err
		}
		balances, err := m.GetAllTokenBalances(ctx, addr, opts.network)
		if err != nil {
			return err
		}
		return printJSON(out, balances)

	case "add-token":
		if len(rest) != 3 {
			return errUsage
		}
		var decimals int32
		if _, err := fmt.Sscan(rest[2], &decimals); err != nil {
			return fmt.Errorf("decimals: %w", err)
		}
		return m.AddCustomToken(ctx, opts.network, wallet.Token{Address: rest[0], Symbol: rest[1], Name: rest[1], Decimals: decimals})

	case "send":
		if len(rest) != 2 {
			return errUsage
		}
		hash, err := m.SendTransaction(ctx, rest[0], rest[1], opts.network)
		if err != nil {
			return err
		}
		return printJSON(out, map[string]string{"hash": hash})

	case "send-token":
		if len(rest) != 3 {
			return errUsage
		}
		token, err := findToken(m, opts.network, rest[0])
		if err != nil {
			return err
		}
		hash, err := m.SendTokenTransaction(ctx, rest[1], rest[2], token, opts.network)
		if err != nil {
			return err
		}
		return printJSON(out, map[string]string{"hash": hash})

	case "maintenance":
		refreshed, err := m.PerformMaintenanceCheck()
		if err != nil {
			return err
		}
		return printJSON(out, map[string]bool{"backupRefreshed": refreshed})

	case "clear":
		return m.ClearWallet()
	}
	return errUsage
}

func restoredAddress(ctx context.Context, m *wallet.Manager) (string, error) {
	if err := m.AutoRestoreWallet(ctx); err != nil {
		return "", err
	}
	addr, ok := m.GetConnectedAddress()
	if !ok {
		return "", wallet.ErrWalletUnavailable
	}
	return addr, nil
}

func findToken(m *wallet.Manager, networkID, symbol string) (wallet.Token, error) {
	custom, err := m.CustomTokens(networkID)
	if err != nil {
		return wallet.Token{}, err
	}
	candidates := append(wallet.SupportedTokens(networkID), wallet.ScannableTokens(networkID)...)
	for _, t := range append(candidates, custom...) {
		if strings.EqualFold(t.Symbol, symbol) {
			return t, nil
		}
	}
	return wallet.Token{}, fmt.Errorf("unknown token %s on %s", symbol, networkID)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
