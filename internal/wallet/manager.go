package wallet

import (
	"context"
	"crypto/ecdsa"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	backupMaxAge    = 24 * time.Hour
	restoreAttempts = 3
)

// Manager owns the local wallet: key material, its sealed copies in the
// secret store, and the RPC backends used for balances and transfers.
type Manager struct {
	store    SecretStore
	networks map[string]Network
	dial     Dialer
	prices   *PriceOracle
	logger   zerolog.Logger
	now      func() time.Time
	backoff  time.Duration

	mu      sync.RWMutex
	current string
	signer  *ecdsa.PrivateKey

	backendsMu sync.Mutex
	backends   map[string]Backend
}

type Option func(*Manager)

func WithLogger(l zerolog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithDialer replaces the RPC dialer (ethclient by default).
func WithDialer(d Dialer) Option {
	return func(m *Manager) { m.dial = d }
}

func WithPriceOracle(p *PriceOracle) Option {
	return func(m *Manager) { m.prices = p }
}

// WithRPCURLs overrides the RPC endpoint of the given network ids.
func WithRPCURLs(urls map[string]string) Option {
	return func(m *Manager) {
		for id, url := range urls {
			if n, ok := m.networks[id]; ok && url != "" {
				n.RPCURL = url
				m.networks[id] = n
			}
		}
	}
}

// WithRestoreBackoff sets the pause between signer restore attempts.
func WithRestoreBackoff(d time.Duration) Option {
	return func(m *Manager) { m.backoff = d }
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func NewManager(store SecretStore, opts ...Option) *Manager {
	m := &Manager{
		store:    store,
		networks: defaultNetworks(),
		dial:     DialEthClient,
		logger:   zerolog.Nop(),
		now:      time.Now,
		backoff:  500 * time.Millisecond,
		current:  "ethereum",
		backends: make(map[string]Backend),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.prices == nil {
		m.prices = NewPriceOracle(DefaultPriceEndpoints(), m.logger)
	}
	m.logger = m.logger.With().Str("component", "wallet").Logger()
	return m
}

// GenerateWallet creates a fresh 12-word wallet and makes it the active signer.
func (m *Manager) GenerateWallet() (*Record, error) {
	mnemonic, err := newMnemonic()
	if err != nil {
		return nil, err
	}
	return m.ImportWallet(mnemonic)
}

// ImportWallet restores a wallet from its mnemonic and makes it the active signer.
func (m *Manager) ImportWallet(mnemonic string) (*Record, error) {
	rec, key, err := recordFromMnemonic(mnemonic)
	if err != nil {
		return nil, err
	}
	m.setSigner(key)
	m.logger.Info().Str("address", rec.Address).Msg("wallet loaded")
	return rec, nil
}

func (m *Manager) setSigner(key *ecdsa.PrivateKey) {
	m.mu.Lock()
	m.signer = key
	m.mu.Unlock()
}

func (m *Manager) currentSigner() *ecdsa.PrivateKey {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.signer
}

// GetConnectedAddress returns the active signer's address.
func (m *Manager) GetConnectedAddress() (string, bool) {
	key := m.currentSigner()
	if key == nil {
		return "", false
	}
	return crypto.PubkeyToAddress(key.PublicKey).Hex(), true
}

// SaveWallet seals rec with password and writes the primary slot, its backup,
// the password hash, the backup timestamp and the integrity hash.
func (m *Manager) SaveWallet(rec *Record, password string) error {
	if !rec.complete() {
		return fmt.Errorf("%w: record is incomplete", ErrCorruptWallet)
	}
	if password == "" {
		return errors.New("password is required")
	}
	deviceKey, err := m.deviceKey(true)
	if err != nil {
		return fmt.Errorf("device key: %w", err)
	}

	plain := *rec
	plain.Timestamp = m.now().UnixMilli()
	plain.Version = recordVersion
	data, err := json.Marshal(plain)
	if err != nil {
		return err
	}
	blob, err := seal(data, password, deviceKey)
	if err != nil {
		return fmt.Errorf("seal wallet: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	err = m.store.PutAll(map[string][]byte{
		slotPrimary:    blob,
		slotPassword:   hash,
		slotBackup:     blob,
		slotLastBackup: m.timestamp(),
		slotIntegrity:  integrityHash(blob, rec.Address),
	})
	if err != nil {
		return fmt.Errorf("wallet could not be saved: %w", err)
	}
	m.logger.Info().Str("address", rec.Address).Msg("wallet saved with backup")
	return nil
}

// LoadWallet opens the primary slot with password and activates the signer.
// An unreadable primary is restored from the backup slot before giving up.
func (m *Manager) LoadWallet(password string) (*Record, error) {
	hash, err := m.get(slotPassword)
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword(hash, []byte(password)) != nil {
		return nil, ErrWrongPassword
	}

	rec, key, err := m.openSlot(slotPrimary, password)
	if err != nil {
		// The password matched, so a primary that will not open is damaged.
		m.logger.Warn().Err(err).Msg("primary wallet storage unreadable, trying backup")
		restored, rerr := m.recoverFromBackup()
		if rerr != nil {
			m.logger.Error().Err(rerr).Msg("restore wallet from backup")
		}
		if !restored {
			return nil, err
		}
		if rec, key, err = m.openSlot(slotPrimary, password); err != nil {
			return nil, err
		}
	}
	m.setSigner(key)
	return rec, nil
}

func (m *Manager) openSlot(slot, password string) (*Record, *ecdsa.PrivateKey, error) {
	blob, err := m.get(slot)
	if err != nil {
		return nil, nil, err
	}
	data, err := openWithPassword(blob, password)
	if err != nil {
		return nil, nil, err
	}
	return decodeRecord(data)
}

// HasStoredWallet reports whether the primary slot is populated. Store
// failures are logged and reported as no wallet.
func (m *Manager) HasStoredWallet() bool {
	ok, err := m.storedWallet()
	if err != nil {
		m.logger.Error().Err(err).Msg("read wallet storage")
	}
	return ok
}

func (m *Manager) storedWallet() (bool, error) {
	_, err := m.store.Get(slotPrimary)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrSecretNotFound):
		return false, nil
	}
	return false, err
}

// ValidateWalletData checks the primary slot and its integrity hash. When
// either is bad, the backup is validated and copied over the primary.
func (m *Manager) ValidateWalletData() (bool, error) {
	rec, _, err := m.validateSlot(slotPrimary)
	if err != nil {
		m.logger.Warn().Err(err).Msg("primary wallet storage invalid, trying backup")
		return m.recoverFromBackup()
	}

	expected, err := m.store.Get(slotIntegrity)
	switch {
	case errors.Is(err, ErrSecretNotFound):
		return true, nil
	case err != nil:
		return false, err
	}
	blob, err := m.store.Get(slotPrimary)
	if err != nil {
		return false, err
	}
	if string(integrityHash(blob, rec.Address)) != string(expected) {
		m.logger.Warn().Msg("primary wallet integrity check failed, trying backup")
		return m.recoverFromBackup()
	}
	return true, nil
}

// validateSlot opens the blob in slot with the device key and checks that the
// record is complete and self-consistent.
func (m *Manager) validateSlot(slot string) (*Record, *ecdsa.PrivateKey, error) {
	blob, err := m.store.Get(slot)
	if err != nil {
		return nil, nil, err
	}
	if _, err := m.store.Get(slotPassword); err != nil {
		return nil, nil, err
	}
	deviceKey, err := m.deviceKey(false)
	if err != nil {
		return nil, nil, err
	}
	data, err := openWithDeviceKey(blob, deviceKey)
	if err != nil {
		return nil, nil, err
	}
	return decodeRecord(data)
}

func (m *Manager) recoverFromBackup() (bool, error) {
	rec, _, err := m.validateSlot(slotBackup)
	if err != nil {
		m.logger.Error().Err(err).Msg("backup wallet storage invalid")
		return false, nil
	}
	blob, err := m.store.Get(slotBackup)
	if err != nil {
		return false, err
	}
	err = m.store.PutAll(map[string][]byte{
		slotPrimary:   blob,
		slotIntegrity: integrityHash(blob, rec.Address),
	})
	if err != nil {
		return false, err
	}
	m.logger.Info().Str("address", rec.Address).Msg("primary wallet storage restored from backup")
	return true, nil
}

// AutoRestoreWallet activates the stored wallet without the password.
func (m *Manager) AutoRestoreWallet(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	stored, err := m.storedWallet()
	if err != nil {
		return fmt.Errorf("read wallet storage: %w", err)
	}
	if !stored {
		return ErrNoStoredWallet
	}
	rec, key, err := m.validateSlot(slotPrimary)
	if err != nil {
		if ok, _ := m.recoverFromBackup(); !ok {
			return err
		}
		if rec, key, err = m.validateSlot(slotPrimary); err != nil {
			return err
		}
	}
	m.setSigner(key)
	m.logger.Info().Str("address", rec.Address).Msg("wallet auto-restored")
	return nil
}

// ClearWallet removes every wallet slot and forgets the active signer.
// Custom tokens are kept.
func (m *Manager) ClearWallet() error {
	for _, slot := range []string{slotPrimary, slotPassword, slotBackup, slotLastBackup, slotIntegrity, slotDeviceKey} {
		if err := m.store.Delete(slot); err != nil {
			return err
		}
	}
	m.setSigner(nil)
	m.logger.Info().Msg("wallet data cleared")
	return nil
}

// PerformMaintenanceCheck refreshes the backup slot from a valid primary when
// the last backup is missing or older than a day. It reports whether the
// backup was refreshed.
func (m *Manager) PerformMaintenanceCheck() (bool, error) {
	if raw, err := m.store.Get(slotLastBackup); err == nil {
		if ms, err := strconv.ParseInt(string(raw), 10, 64); err == nil {
			if m.now().Sub(time.UnixMilli(ms)) <= backupMaxAge {
				return false, nil
			}
		}
	} else if !errors.Is(err, ErrSecretNotFound) {
		return false, err
	}

	if _, _, err := m.validateSlot(slotPrimary); err != nil {
		return false, nil
	}
	blob, err := m.store.Get(slotPrimary)
	if err != nil {
		return false, err
	}
	if err := m.store.PutAll(map[string][]byte{slotBackup: blob, slotLastBackup: m.timestamp()}); err != nil {
		return false, err
	}
	m.logger.Info().Msg("wallet backup refreshed")
	return true, nil
}

// SwitchNetwork changes the default network for calls that omit one.
func (m *Manager) SwitchNetwork(id string) error {
	if _, ok := m.networks[id]; !ok {
		return unsupportedNetwork(id)
	}
	m.mu.Lock()
	m.current = id
	m.mu.Unlock()
	return nil
}

func (m *Manager) CurrentNetwork() Network {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.networks[m.current]
}

// Networks lists the configured networks in display order.
func (m *Manager) Networks() []Network {
	out := make([]Network, 0, len(networkOrder))
	for _, id := range networkOrder {
		out = append(out, m.networks[id])
	}
	return out
}

// network resolves id, falling back to the current network when empty.
func (m *Manager) network(id string) (Network, error) {
	if id == "" {
		return m.CurrentNetwork(), nil
	}
	n, ok := m.networks[id]
	if !ok {
		return Network{}, unsupportedNetwork(id)
	}
	return n, nil
}

func (m *Manager) get(slot string) ([]byte, error) {
	v, err := m.store.Get(slot)
	if errors.Is(err, ErrSecretNotFound) {
		return nil, ErrNoStoredWallet
	}
	return v, err
}

// deviceKey returns the key that lets this installation open its own wallet
// without the password, creating it when create is set.
func (m *Manager) deviceKey(create bool) ([]byte, error) {
	key, err := m.store.Get(slotDeviceKey)
	if err == nil {
		return key, nil
	}
	if !errors.Is(err, ErrSecretNotFound) || !create {
		return nil, err
	}
	key = make([]byte, chacha20poly1305.KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	if err := m.store.Put(slotDeviceKey, key); err != nil {
		return nil, err
	}
	return key, nil
}

func (m *Manager) timestamp() []byte {
	return []byte(strconv.FormatInt(m.now().UnixMilli(), 10))
}

// integrityHash binds a sealed blob to the address it claims to hold.
func integrityHash(blob []byte, address string) []byte {
	sum := crypto.Keccak256(blob, []byte(common.HexToAddress(address).Hex()))
	return []byte(hexutil.Encode(sum))
}

func decodeRecord(data []byte) (*Record, *ecdsa.PrivateKey, error) {
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrCorruptWallet, err)
	}
	key, err := signerFromRecord(&rec)
	if err != nil {
		return nil, nil, err
	}
	return &rec, key, nil
}
