// Package rpc implements a wallet provider that speaks EIP-1193 methods over a
// JSON-RPC endpoint exposed by a wallet bridge.
package rpc

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/event"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
	"github.com/sirupsen/logrus"

	medchain "github.com/medchain-labs/medchain/go"
)

// JSON-RPC methods used by the provider
const (
	MethodRequestAccounts = "eth_requestAccounts"
	MethodChainID         = "eth_chainId"
	MethodSwitchChain     = "wallet_switchEthereumChain"
	MethodAddChain        = "wallet_addEthereumChain"
	MethodSendTransaction = "eth_sendTransaction"
	MethodCall            = "eth_call"

	NotificationAccountsChanged = "accountsChanged"
	NotificationChainChanged    = "chainChanged"
)

const defaultSubscribeTimeout = 10 * time.Second

// Option configures a Provider
type Option func(*Provider)

// WithLogger sets the provider logger
func WithLogger(log *logrus.Entry) Option {
	return func(p *Provider) {
		p.log = log.WithField("component", "rpc-provider")
	}
}

// WithSubscribeTimeout bounds the eth_subscribe handshake
func WithSubscribeTimeout(d time.Duration) Option {
	return func(p *Provider) {
		p.subscribeTimeout = d
	}
}

// Provider is a medchain.WalletProvider backed by a go-ethereum rpc.Client.
// The connection is dialed on first use.
type Provider struct {
	endpoint         string
	subscribeTimeout time.Duration
	log              *logrus.Entry

	mu     sync.Mutex
	client *gethrpc.Client
}

// New creates a provider for endpoint (http, ws or ipc). No connection is made
// until the first request.
func New(endpoint string, opts ...Option) (*Provider, error) {
	if endpoint == "" {
		return nil, errors.New("wallet endpoint is required")
	}
	p := &Provider{
		endpoint:         endpoint,
		subscribeTimeout: defaultSubscribeTimeout,
		log:              logrus.NewEntry(logrus.StandardLogger()).WithField("component", "rpc-provider"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// NewWithClient creates a provider over an already connected client.
func NewWithClient(client *gethrpc.Client, opts ...Option) *Provider {
	p := &Provider{
		client:           client,
		subscribeTimeout: defaultSubscribeTimeout,
		log:              logrus.NewEntry(logrus.StandardLogger()).WithField("component", "rpc-provider"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Close closes the underlying connection, if any.
func (p *Provider) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client != nil {
		p.client.Close()
		p.client = nil
	}
}

func (p *Provider) dial(ctx context.Context) (*gethrpc.Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client != nil {
		return p.client, nil
	}
	if p.endpoint == "" {
		return nil, errors.New("provider has no endpoint")
	}

	client, err := gethrpc.DialContext(ctx, p.endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to dial wallet endpoint: %w", err)
	}
	p.log.WithField("endpoint", p.endpoint).Debug("dialed wallet endpoint")
	p.client = client
	return client, nil
}

func (p *Provider) call(ctx context.Context, result interface{}, method string, args ...interface{}) error {
	client, err := p.dial(ctx)
	if err != nil {
		return err
	}
	if err := client.CallContext(ctx, result, method, args...); err != nil {
		return normalizeError(method, err)
	}
	return nil
}

// normalizeError turns JSON-RPC error objects into provider errors so their
// EIP-1193 code survives.
func normalizeError(method string, err error) error {
	var rpcErr gethrpc.Error
	if errors.As(err, &rpcErr) {
		return medchain.NewProviderError(rpcErr.ErrorCode(), rpcErr.Error())
	}
	return fmt.Errorf("%s failed: %w", method, err)
}

// ============================================================================
// Request params
// ============================================================================

type switchChainParams struct {
	ChainID string `json:"chainId"`
}

type addChainParams struct {
	ChainID           string                  `json:"chainId"`
	ChainName         string                  `json:"chainName"`
	RPCURLs           []string                `json:"rpcUrls"`
	NativeCurrency    medchain.NativeCurrency `json:"nativeCurrency"`
	BlockExplorerURLs []string                `json:"blockExplorerUrls,omitempty"`
}

type txArgs struct {
	From common.Address `json:"from"`
	To   common.Address `json:"to"`
	Data hexutil.Bytes  `json:"data"`
}

// ============================================================================
// medchain.WalletProvider
// ============================================================================

// RequestAccounts asks the wallet for account access via eth_requestAccounts.
func (p *Provider) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	var accounts []common.Address
	if err := p.call(ctx, &accounts, MethodRequestAccounts); err != nil {
		return nil, err
	}
	return accounts, nil
}

// ChainID returns the chain the wallet is on.
func (p *Provider) ChainID(ctx context.Context) (*big.Int, error) {
	var id hexutil.Big
	if err := p.call(ctx, &id, MethodChainID); err != nil {
		return nil, err
	}
	return (*big.Int)(&id), nil
}

// SwitchChain asks the wallet to switch to chainID.
func (p *Provider) SwitchChain(ctx context.Context, chainID *big.Int) error {
	if chainID == nil {
		return medchain.NewProviderError(medchain.ProviderCodeInvalidParams, "chain id is required")
	}
	return p.call(ctx, nil, MethodSwitchChain, switchChainParams{ChainID: hexutil.EncodeBig(chainID)})
}

// AddChain asks the wallet to add network.
func (p *Provider) AddChain(ctx context.Context, network medchain.NetworkDescriptor) error {
	if network.ChainID == nil {
		return medchain.NewProviderError(medchain.ProviderCodeInvalidParams, "chain id is required")
	}
	return p.call(ctx, nil, MethodAddChain, addChainParams{
		ChainID:           network.ChainIDHex(),
		ChainName:         network.ChainName,
		RPCURLs:           network.RPCURLs,
		NativeCurrency:    network.NativeCurrency,
		BlockExplorerURLs: network.BlockExplorerURLs,
	})
}

// SendTransaction has the wallet sign and submit tx, returning its hash.
func (p *Provider) SendTransaction(ctx context.Context, tx medchain.TxRequest) (common.Hash, error) {
	var hash common.Hash
	err := p.call(ctx, &hash, MethodSendTransaction, txArgs{From: tx.From, To: tx.To, Data: tx.Data})
	if err != nil {
		return common.Hash{}, err
	}
	return hash, nil
}

// Call runs a read-only call against the latest block.
func (p *Provider) Call(ctx context.Context, call medchain.CallRequest) ([]byte, error) {
	var out hexutil.Bytes
	err := p.call(ctx, &out, MethodCall, txArgs{From: call.From, To: call.To, Data: call.Data}, "latest")
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SubscribeAccountsChanged streams accountsChanged notifications into ch.
func (p *Provider) SubscribeAccountsChanged(ch chan<- []common.Address) event.Subscription {
	return event.NewSubscription(func(quit <-chan struct{}) error {
		in := make(chan []common.Address)
		sub, err := p.subscribe(in, NotificationAccountsChanged)
		if err != nil {
			return err
		}
		defer sub.Unsubscribe()

		for {
			select {
			case accounts := <-in:
				select {
				case ch <- accounts:
				case <-quit:
					return nil
				}
			case err := <-sub.Err():
				return err
			case <-quit:
				return nil
			}
		}
	})
}

// SubscribeChainChanged streams chainChanged notifications into ch.
func (p *Provider) SubscribeChainChanged(ch chan<- *big.Int) event.Subscription {
	return event.NewSubscription(func(quit <-chan struct{}) error {
		in := make(chan hexutil.Big)
		sub, err := p.subscribe(in, NotificationChainChanged)
		if err != nil {
			return err
		}
		defer sub.Unsubscribe()

		for {
			select {
			case id := <-in:
				chainID := new(big.Int).Set((*big.Int)(&id))
				select {
				case ch <- chainID:
				case <-quit:
					return nil
				}
			case err := <-sub.Err():
				return err
			case <-quit:
				return nil
			}
		}
	})
}

func (p *Provider) subscribe(channel interface{}, name string) (*gethrpc.ClientSubscription, error) {
	ctx, cancel := context.WithTimeout(context.Background(), p.subscribeTimeout)
	defer cancel()

	client, err := p.dial(ctx)
	if err != nil {
		return nil, err
	}
	sub, err := client.EthSubscribe(ctx, channel, name)
	if err != nil {
		return nil, normalizeError("eth_subscribe "+name, err)
	}
	return sub, nil
}
