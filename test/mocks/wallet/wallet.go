// Package wallet provides an in-memory wallet provider for tests. It keeps a
// simulated medicine registry so gateway calls round-trip through the real
// ABI encoding.
package wallet

import (
	"context"
	"encoding/binary"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/event"

	medchain "github.com/medchain-labs/medchain/go"
	"github.com/medchain-labs/medchain/go/evm"
)

// RevertCode is the JSON-RPC code the mock uses for contract reverts
const RevertCode = -32000

// Counters records how often each provider method was invoked
type Counters struct {
	RequestAccounts int
	ChainID         int
	SwitchChain     int
	AddChain        int
	SendTransaction int
	Call            int
}

type medicine struct {
	name         string
	manufacturer string
	holder       common.Address
	delivered    bool
}

// Wallet is a scriptable medchain.WalletProvider
type Wallet struct {
	mu       sync.Mutex
	accounts []common.Address
	chainID  *big.Int
	known    map[string]bool
	added    []medchain.NetworkDescriptor
	registry abi.ABI
	records  map[uint64]*medicine
	calls    Counters
	nonce    uint64
	subs     int

	// Scripted failures, returned verbatim when set
	ChainIDErr error
	SwitchErr  error
	AddErr     error
	RequestErr error
	SendErr    error
	CallErr    error

	// CallGate, when set, blocks Call until it is closed
	CallGate chan struct{}

	accountsFeed event.Feed
	chainFeed    event.Feed
}

// New creates a wallet on chainID exposing accounts
func New(chainID *big.Int, accounts ...common.Address) *Wallet {
	registry, err := evm.ParseRegistryABI()
	if err != nil {
		panic(err)
	}
	w := &Wallet{
		accounts: append([]common.Address(nil), accounts...),
		chainID:  new(big.Int).Set(chainID),
		known:    map[string]bool{chainID.String(): true},
		registry: registry,
		records:  make(map[uint64]*medicine),
	}
	return w
}

// Know marks chainID as a network the wallet can switch to
func (w *Wallet) Know(chainID *big.Int) *Wallet {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.known[chainID.String()] = true
	return w
}

// Calls returns a copy of the invocation counters
func (w *Wallet) Calls() Counters {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.calls
}

// Added returns the networks registered through AddChain
func (w *Wallet) Added() []medchain.NetworkDescriptor {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]medchain.NetworkDescriptor(nil), w.added...)
}

// ActiveSubscriptions returns the number of event subscriptions not yet
// unsubscribed
func (w *Wallet) ActiveSubscriptions() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.subs
}

// SetAccounts replaces the account set and notifies subscribers
func (w *Wallet) SetAccounts(accounts ...common.Address) {
	w.mu.Lock()
	w.accounts = append([]common.Address(nil), accounts...)
	w.mu.Unlock()

	w.accountsFeed.Send(append([]common.Address{}, accounts...))
}

// SetChain changes the active chain and notifies subscribers
func (w *Wallet) SetChain(chainID *big.Int) {
	w.mu.Lock()
	w.chainID = new(big.Int).Set(chainID)
	w.known[chainID.String()] = true
	w.mu.Unlock()

	w.chainFeed.Send(new(big.Int).Set(chainID))
}

// ============================================================================
// medchain.WalletProvider
// ============================================================================

func (w *Wallet) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls.RequestAccounts++
	if w.RequestErr != nil {
		return nil, w.RequestErr
	}
	return append([]common.Address(nil), w.accounts...), nil
}

func (w *Wallet) ChainID(ctx context.Context) (*big.Int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls.ChainID++
	if w.ChainIDErr != nil {
		return nil, w.ChainIDErr
	}
	return new(big.Int).Set(w.chainID), nil
}

func (w *Wallet) SwitchChain(ctx context.Context, chainID *big.Int) error {
	w.mu.Lock()
	w.calls.SwitchChain++
	if w.SwitchErr != nil {
		err := w.SwitchErr
		w.mu.Unlock()
		return err
	}
	if !w.known[chainID.String()] {
		w.mu.Unlock()
		return medchain.NewProviderError(medchain.ProviderCodeUnrecognizedChain, fmt.Sprintf("Unrecognized chain ID %#x", chainID))
	}
	w.chainID = new(big.Int).Set(chainID)
	w.mu.Unlock()

	w.chainFeed.Send(new(big.Int).Set(chainID))
	return nil
}

func (w *Wallet) AddChain(ctx context.Context, network medchain.NetworkDescriptor) error {
	w.mu.Lock()
	w.calls.AddChain++
	if w.AddErr != nil {
		err := w.AddErr
		w.mu.Unlock()
		return err
	}
	w.added = append(w.added, network)
	w.known[network.ChainID.String()] = true
	w.chainID = new(big.Int).Set(network.ChainID)
	w.mu.Unlock()

	w.chainFeed.Send(new(big.Int).Set(network.ChainID))
	return nil
}

func (w *Wallet) SendTransaction(ctx context.Context, tx medchain.TxRequest) (common.Hash, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls.SendTransaction++
	if w.SendErr != nil {
		return common.Hash{}, w.SendErr
	}

	method, args, err := w.decode(tx.Data)
	if err != nil {
		return common.Hash{}, err
	}

	switch method.Name {
	case evm.FunctionCreateMedicine:
		n := args[1].(*big.Int).Uint64()
		if _, exists := w.records[n]; exists {
			return common.Hash{}, revert("Medicine already exists")
		}
		w.records[n] = &medicine{
			name:         args[0].(string),
			manufacturer: args[2].(string),
			holder:       tx.From,
		}
	case evm.FunctionTransferMedicine:
		rec, err := w.lookup(args[0].(*big.Int))
		if err != nil {
			return common.Hash{}, err
		}
		rec.holder = args[1].(common.Address)
	case evm.FunctionConfirmDelivery:
		rec, err := w.lookup(args[0].(*big.Int))
		if err != nil {
			return common.Hash{}, err
		}
		rec.delivered = true
	default:
		return common.Hash{}, revert("function is not state-changing")
	}

	w.nonce++
	var nonce [8]byte
	binary.BigEndian.PutUint64(nonce[:], w.nonce)
	return crypto.Keccak256Hash(tx.From.Bytes(), nonce[:], tx.Data), nil
}

func (w *Wallet) Call(ctx context.Context, call medchain.CallRequest) ([]byte, error) {
	w.mu.Lock()
	gate := w.CallGate
	w.calls.Call++
	w.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.CallErr != nil {
		return nil, w.CallErr
	}

	method, args, err := w.decode(call.Data)
	if err != nil {
		return nil, err
	}
	if method.Name != evm.FunctionGetMedicine {
		return nil, revert("function is not a view")
	}
	rec, err := w.lookup(args[0].(*big.Int))
	if err != nil {
		return nil, err
	}
	return method.Outputs.Pack(rec.name, rec.manufacturer, rec.holder, rec.delivered)
}

func (w *Wallet) SubscribeAccountsChanged(ch chan<- []common.Address) event.Subscription {
	return w.track(w.accountsFeed.Subscribe(ch))
}

func (w *Wallet) SubscribeChainChanged(ch chan<- *big.Int) event.Subscription {
	return w.track(w.chainFeed.Subscribe(ch))
}

// ============================================================================
// helpers
// ============================================================================

func (w *Wallet) decode(data []byte) (*abi.Method, []interface{}, error) {
	if len(data) < 4 {
		return nil, nil, revert("missing selector")
	}
	method, err := w.registry.MethodById(data[:4])
	if err != nil {
		return nil, nil, revert("unknown selector")
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, nil, revert("malformed calldata")
	}
	return method, args, nil
}

// lookup must be called with w.mu held
func (w *Wallet) lookup(batch *big.Int) (*medicine, error) {
	rec, ok := w.records[batch.Uint64()]
	if !ok {
		return nil, revert("Medicine does not exist")
	}
	return rec, nil
}

func (w *Wallet) track(sub event.Subscription) event.Subscription {
	w.mu.Lock()
	w.subs++
	w.mu.Unlock()
	return &trackedSubscription{Subscription: sub, onUnsubscribe: func() {
		w.mu.Lock()
		w.subs--
		w.mu.Unlock()
	}}
}

type trackedSubscription struct {
	event.Subscription
	once          sync.Once
	onUnsubscribe func()
}

func (s *trackedSubscription) Unsubscribe() {
	s.once.Do(func() {
		s.Subscription.Unsubscribe()
		s.onUnsubscribe()
	})
}

func revert(reason string) error {
	return medchain.NewProviderError(RevertCode, "execution reverted: "+reason)
}
