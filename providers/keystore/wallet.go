// Package keystore implements a wallet provider around a local ECDSA key. It
// signs EIP-1559 transactions itself and submits them through an RPC node of
// the active chain.
package keystore

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/event"
	"github.com/sirupsen/logrus"

	medchain "github.com/medchain-labs/medchain/go"
)

// Backend is the subset of ethclient.Client the wallet needs.
type Backend interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Dialer connects to the RPC node at url.
type Dialer func(ctx context.Context, url string) (Backend, error)

// DialEthClient is the default Dialer.
func DialEthClient(ctx context.Context, url string) (Backend, error) {
	client, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// Option configures a Wallet
type Option func(*Wallet)

// WithDialer replaces the RPC dialer
func WithDialer(dial Dialer) Option {
	return func(w *Wallet) {
		w.dial = dial
	}
}

// WithLogger sets the wallet logger
func WithLogger(log *logrus.Entry) Option {
	return func(w *Wallet) {
		w.log = log.WithField("component", "keystore")
	}
}

// Wallet is a medchain.WalletProvider holding one private key. It knows a set
// of networks and has one of them active, like a browser wallet would.
type Wallet struct {
	dial Dialer
	log  *logrus.Entry

	mu       sync.Mutex
	key      *ecdsa.PrivateKey
	address  common.Address
	locked   bool
	networks map[string]medchain.NetworkDescriptor
	active   *big.Int
	backends map[string]Backend

	accountsFeed event.Feed
	chainFeed    event.Feed
}

// New creates a wallet from a hex-encoded private key (with or without "0x").
// The first network is active initially.
func New(privateKeyHex string, networks []medchain.NetworkDescriptor, opts ...Option) (*Wallet, error) {
	key, err := parseKey(privateKeyHex)
	if err != nil {
		return nil, err
	}
	if len(networks) == 0 {
		return nil, errors.New("keystore wallet needs at least one network")
	}

	w := &Wallet{
		dial:     DialEthClient,
		log:      logrus.NewEntry(logrus.StandardLogger()).WithField("component", "keystore"),
		key:      key,
		address:  crypto.PubkeyToAddress(key.PublicKey),
		networks: make(map[string]medchain.NetworkDescriptor),
		backends: make(map[string]Backend),
	}
	for _, network := range networks {
		if err := validateNetwork(network); err != nil {
			return nil, err
		}
		w.networks[network.ChainID.String()] = network
	}
	w.active = new(big.Int).Set(networks[0].ChainID)

	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

func parseKey(privateKeyHex string) (*ecdsa.PrivateKey, error) {
	privateKeyHex = strings.TrimPrefix(strings.TrimSpace(privateKeyHex), "0x")
	key, err := crypto.HexToECDSA(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return key, nil
}

func validateNetwork(network medchain.NetworkDescriptor) error {
	if network.ChainID == nil || network.ChainID.Sign() <= 0 {
		return medchain.NewProviderError(medchain.ProviderCodeInvalidParams, "chain id must be positive")
	}
	if strings.TrimSpace(network.ChainName) == "" {
		return medchain.NewProviderError(medchain.ProviderCodeInvalidParams, "chain name is required")
	}
	if len(network.RPCURLs) == 0 {
		return medchain.NewProviderError(medchain.ProviderCodeInvalidParams, "at least one rpc url is required")
	}
	return nil
}

// Address returns the wallet account.
func (w *Wallet) Address() common.Address {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.address
}

// Lock hides the account from the application. Subscribers see an empty
// account list.
func (w *Wallet) Lock() {
	w.mu.Lock()
	w.locked = true
	w.mu.Unlock()

	w.accountsFeed.Send([]common.Address{})
}

// Unlock exposes the account again.
func (w *Wallet) Unlock() {
	w.mu.Lock()
	w.locked = false
	address := w.address
	w.mu.Unlock()

	w.accountsFeed.Send([]common.Address{address})
}

// ImportKey replaces the wallet key. Subscribers see the new account.
func (w *Wallet) ImportKey(privateKeyHex string) (common.Address, error) {
	key, err := parseKey(privateKeyHex)
	if err != nil {
		return common.Address{}, err
	}

	w.mu.Lock()
	w.key = key
	w.address = crypto.PubkeyToAddress(key.PublicKey)
	address := w.address
	locked := w.locked
	w.mu.Unlock()

	if !locked {
		w.accountsFeed.Send([]common.Address{address})
	}
	return address, nil
}

// ============================================================================
// medchain.WalletProvider
// ============================================================================

// RequestAccounts returns the wallet account unless the wallet is locked.
func (w *Wallet) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.locked {
		return nil, medchain.NewProviderError(medchain.ProviderCodeUnauthorized, "wallet is locked")
	}
	return []common.Address{w.address}, nil
}

// ChainID returns the active chain.
func (w *Wallet) ChainID(ctx context.Context) (*big.Int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return new(big.Int).Set(w.active), nil
}

// SwitchChain makes a known chain active.
func (w *Wallet) SwitchChain(ctx context.Context, chainID *big.Int) error {
	if chainID == nil {
		return medchain.NewProviderError(medchain.ProviderCodeInvalidParams, "chain id is required")
	}

	w.mu.Lock()
	if _, ok := w.networks[chainID.String()]; !ok {
		w.mu.Unlock()
		return medchain.NewProviderError(medchain.ProviderCodeUnrecognizedChain, fmt.Sprintf("Unrecognized chain ID %#x", chainID))
	}
	if w.active.Cmp(chainID) == 0 {
		w.mu.Unlock()
		return nil
	}
	w.active = new(big.Int).Set(chainID)
	w.mu.Unlock()

	w.log.WithField("chain_id", fmt.Sprintf("%#x", chainID)).Info("switched chain")
	w.chainFeed.Send(new(big.Int).Set(chainID))
	return nil
}

// AddChain registers network and makes it active.
func (w *Wallet) AddChain(ctx context.Context, network medchain.NetworkDescriptor) error {
	if err := validateNetwork(network); err != nil {
		return err
	}

	w.mu.Lock()
	key := network.ChainID.String()
	w.networks[key] = network
	delete(w.backends, key)
	w.mu.Unlock()

	w.log.WithField("chain", network.ChainName).Info("added chain")
	return w.SwitchChain(ctx, network.ChainID)
}

// SendTransaction signs req as an EIP-1559 transaction and submits it to
// the active chain.
func (w *Wallet) SendTransaction(ctx context.Context, req medchain.TxRequest) (common.Hash, error) {
	key, chainID, err := w.signer(req.From)
	if err != nil {
		return common.Hash{}, err
	}
	backend, err := w.backend(ctx, chainID)
	if err != nil {
		return common.Hash{}, err
	}

	nonce, err := backend.PendingNonceAt(ctx, req.From)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to get nonce: %w", err)
	}
	tip, err := backend.SuggestGasTipCap(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to suggest gas tip: %w", err)
	}
	head, err := backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to get latest header: %w", err)
	}
	feeCap := new(big.Int).Set(tip)
	if head.BaseFee != nil {
		feeCap.Add(feeCap, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))
	}

	to := req.To
	gas, err := backend.EstimateGas(ctx, ethereum.CallMsg{
		From:      req.From,
		To:        &to,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Data:      req.Data,
	})
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to estimate gas: %w", err)
	}

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       gas,
		To:        &to,
		Value:     big.NewInt(0),
		Data:      req.Data,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to sign transaction: %w", err)
	}

	if err := backend.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("failed to send transaction: %w", err)
	}

	w.log.WithFields(logrus.Fields{
		"tx":    signed.Hash().Hex(),
		"nonce": nonce,
	}).Info("transaction submitted")
	return signed.Hash(), nil
}

// Call runs a read-only call on the active chain.
func (w *Wallet) Call(ctx context.Context, req medchain.CallRequest) ([]byte, error) {
	w.mu.Lock()
	chainID := new(big.Int).Set(w.active)
	w.mu.Unlock()

	backend, err := w.backend(ctx, chainID)
	if err != nil {
		return nil, err
	}
	to := req.To
	return backend.CallContract(ctx, ethereum.CallMsg{From: req.From, To: &to, Data: req.Data}, nil)
}

// SubscribeAccountsChanged delivers account list changes to ch.
func (w *Wallet) SubscribeAccountsChanged(ch chan<- []common.Address) event.Subscription {
	return w.accountsFeed.Subscribe(ch)
}

// SubscribeChainChanged delivers active chain changes to ch.
func (w *Wallet) SubscribeChainChanged(ch chan<- *big.Int) event.Subscription {
	return w.chainFeed.Subscribe(ch)
}

// signer returns the key and active chain if from may sign.
func (w *Wallet) signer(from common.Address) (*ecdsa.PrivateKey, *big.Int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.locked {
		return nil, nil, medchain.NewProviderError(medchain.ProviderCodeUnauthorized, "wallet is locked")
	}
	if from != w.address {
		return nil, nil, medchain.NewProviderError(medchain.ProviderCodeUnauthorized, "account "+from.Hex()+" is not managed by this wallet")
	}
	return w.key, new(big.Int).Set(w.active), nil
}

func (w *Wallet) backend(ctx context.Context, chainID *big.Int) (Backend, error) {
	key := chainID.String()

	w.mu.Lock()
	if backend, ok := w.backends[key]; ok {
		w.mu.Unlock()
		return backend, nil
	}
	network, ok := w.networks[key]
	w.mu.Unlock()
	if !ok {
		return nil, medchain.NewProviderError(medchain.ProviderCodeChainDisconnected, fmt.Sprintf("no network for chain %#x", chainID))
	}

	var lastErr error
	for _, url := range network.RPCURLs {
		backend, err := w.dial(ctx, url)
		if err != nil {
			lastErr = err
			w.log.WithError(err).WithField("chain", network.ChainName).Warn("rpc dial failed")
			continue
		}
		w.mu.Lock()
		w.backends[key] = backend
		w.mu.Unlock()
		return backend, nil
	}
	return nil, medchain.NewProviderError(medchain.ProviderCodeChainDisconnected, fmt.Sprintf("no reachable rpc for %s: %v", network.ChainName, lastErr))
}
