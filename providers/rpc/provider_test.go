package rpc

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	medchain "github.com/medchain-labs/medchain/go"
	"github.com/medchain-labs/medchain/go/evm"
)

type walletError struct {
	code int
	msg  string
}

func (e *walletError) Error() string  { return e.msg }
func (e *walletError) ErrorCode() int { return e.code }

// ethService and walletService emulate a wallet bridge endpoint
type ethService struct {
	mu       sync.Mutex
	accounts []common.Address
	chainID  *big.Int
	reject   bool
	lastTx   txArgs
	callData hexutil.Bytes

	accountsCh chan []common.Address
	chainCh    chan *big.Int
	subscribed chan string
}

func (s *ethService) RequestAccounts() ([]common.Address, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reject {
		return nil, &walletError{code: medchain.ProviderCodeUserRejected, msg: "User rejected the request."}
	}
	return s.accounts, nil
}

func (s *ethService) ChainId() (*hexutil.Big, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (*hexutil.Big)(s.chainID), nil
}

func (s *ethService) SendTransaction(args txArgs) (common.Hash, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reject {
		return common.Hash{}, &walletError{code: medchain.ProviderCodeUserRejected, msg: "User denied transaction signature."}
	}
	s.lastTx = args
	return common.HexToHash("0xabc123"), nil
}

func (s *ethService) Call(args txArgs, block string) (hexutil.Bytes, error) {
	if block != "latest" {
		return nil, &walletError{code: medchain.ProviderCodeInvalidParams, msg: "unexpected block tag"}
	}
	return s.callData, nil
}

func (s *ethService) AccountsChanged(ctx context.Context) (*gethrpc.Subscription, error) {
	notifier, ok := gethrpc.NotifierFromContext(ctx)
	if !ok {
		return nil, gethrpc.ErrNotificationsUnsupported
	}
	sub := notifier.CreateSubscription()
	go func() {
		for {
			select {
			case accounts := <-s.accountsCh:
				_ = notifier.Notify(sub.ID, accounts)
			case <-sub.Err():
				return
			}
		}
	}()
	s.subscribed <- NotificationAccountsChanged
	return sub, nil
}

func (s *ethService) ChainChanged(ctx context.Context) (*gethrpc.Subscription, error) {
	notifier, ok := gethrpc.NotifierFromContext(ctx)
	if !ok {
		return nil, gethrpc.ErrNotificationsUnsupported
	}
	sub := notifier.CreateSubscription()
	go func() {
		for {
			select {
			case id := <-s.chainCh:
				_ = notifier.Notify(sub.ID, (*hexutil.Big)(id))
			case <-sub.Err():
				return
			}
		}
	}()
	s.subscribed <- NotificationChainChanged
	return sub, nil
}

type walletService struct {
	mu      sync.Mutex
	known   map[string]bool
	added   []addChainParams
	switchN int
}

func (s *walletService) SwitchEthereumChain(params switchChainParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.switchN++
	if !s.known[params.ChainID] {
		return &walletError{code: medchain.ProviderCodeUnrecognizedChain, msg: "Unrecognized chain ID " + params.ChainID}
	}
	return nil
}

func (s *walletService) AddEthereumChain(params addChainParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.added = append(s.added, params)
	s.known[params.ChainID] = true
	return nil
}

func newTestProvider(t *testing.T) (*Provider, *ethService, *walletService) {
	t.Helper()

	eth := &ethService{
		accounts:   []common.Address{common.HexToAddress("0x1111111111111111111111111111111111111111")},
		chainID:    big.NewInt(1),
		accountsCh: make(chan []common.Address),
		chainCh:    make(chan *big.Int),
		subscribed: make(chan string, 4),
	}
	wallet := &walletService{known: map[string]bool{"0x1": true}}

	server := gethrpc.NewServer()
	require.NoError(t, server.RegisterName("eth", eth))
	require.NoError(t, server.RegisterName("wallet", wallet))

	client := gethrpc.DialInProc(server)
	provider := NewWithClient(client)
	t.Cleanup(func() {
		provider.Close()
		server.Stop()
	})
	return provider, eth, wallet
}

func TestNewRequiresEndpoint(t *testing.T) {
	_, err := New("")
	assert.Error(t, err)

	p, err := New("http://127.0.0.1:8545")
	require.NoError(t, err)
	assert.NotNil(t, p)
}

func TestProviderAccountsAndChainID(t *testing.T) {
	provider, eth, _ := newTestProvider(t)
	ctx := context.Background()

	accounts, err := provider.RequestAccounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, eth.accounts, accounts)

	chainID, err := provider.ChainID(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), chainID.Int64())
}

func TestProviderUserRejectionKeepsCode(t *testing.T) {
	provider, eth, _ := newTestProvider(t)
	eth.reject = true

	_, err := provider.RequestAccounts(context.Background())
	require.Error(t, err)
	assert.True(t, medchain.IsUserRejection(err))

	code, ok := medchain.ProviderErrorCode(err)
	require.True(t, ok)
	assert.Equal(t, medchain.ProviderCodeUserRejected, code)
}

func TestProviderSwitchAndAddChain(t *testing.T) {
	provider, _, wallet := newTestProvider(t)
	ctx := context.Background()

	err := provider.SwitchChain(ctx, evm.ChainIDSepolia)
	require.Error(t, err)
	assert.True(t, medchain.IsUnrecognizedChain(err))

	require.NoError(t, provider.AddChain(ctx, evm.SepoliaNetwork))
	require.Len(t, wallet.added, 1)
	added := wallet.added[0]
	assert.Equal(t, evm.SepoliaChainIDHex, added.ChainID)
	assert.Equal(t, "Sepolia", added.ChainName)
	assert.Equal(t, "ETH", added.NativeCurrency.Symbol)
	assert.Equal(t, 18, added.NativeCurrency.Decimals)
	assert.Equal(t, evm.SepoliaNetwork.BlockExplorerURLs, added.BlockExplorerURLs)

	require.NoError(t, provider.SwitchChain(ctx, evm.ChainIDSepolia))
	assert.Equal(t, 2, wallet.switchN)
}

func TestProviderSendTransactionAndCall(t *testing.T) {
	provider, eth, _ := newTestProvider(t)
	ctx := context.Background()

	from := common.HexToAddress("0x1111111111111111111111111111111111111111")
	to := common.HexToAddress(evm.RegistryAddress)

	hash, err := provider.SendTransaction(ctx, medchain.TxRequest{From: from, To: to, Data: []byte{0xde, 0xad}})
	require.NoError(t, err)
	assert.Equal(t, common.HexToHash("0xabc123"), hash)
	assert.Equal(t, from, eth.lastTx.From)
	assert.Equal(t, to, eth.lastTx.To)
	assert.Equal(t, hexutil.Bytes{0xde, 0xad}, eth.lastTx.Data)

	eth.callData = hexutil.Bytes{0x01, 0x02}
	out, err := provider.Call(ctx, medchain.CallRequest{From: from, To: to, Data: []byte{0xbe, 0xef}})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x02}, out)
}

func TestProviderSubscriptions(t *testing.T) {
	provider, eth, _ := newTestProvider(t)

	accountsCh := make(chan []common.Address, 1)
	accountsSub := provider.SubscribeAccountsChanged(accountsCh)
	defer accountsSub.Unsubscribe()

	chainCh := make(chan *big.Int, 1)
	chainSub := provider.SubscribeChainChanged(chainCh)
	defer chainSub.Unsubscribe()

	pending := map[string]bool{NotificationAccountsChanged: true, NotificationChainChanged: true}
	for len(pending) > 0 {
		select {
		case name := <-eth.subscribed:
			delete(pending, name)
		case <-time.After(2 * time.Second):
			t.Fatalf("subscriptions never opened: %v", pending)
		}
	}

	next := []common.Address{common.HexToAddress("0x2222222222222222222222222222222222222222")}
	eth.accountsCh <- next
	select {
	case got := <-accountsCh:
		assert.Equal(t, next, got)
	case <-time.After(2 * time.Second):
		t.Fatal("accountsChanged notification not delivered")
	}

	eth.chainCh <- big.NewInt(5)
	select {
	case got := <-chainCh:
		assert.Equal(t, int64(5), got.Int64())
	case <-time.After(2 * time.Second):
		t.Fatal("chainChanged notification not delivered")
	}
}
