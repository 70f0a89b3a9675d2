package medchain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"
)

// WalletProvider is the wallet agent that holds keys and exposes account,
// chain and request primitives (the EIP-1193 surface).
type WalletProvider interface {
	// RequestAccounts asks the wallet for account access
	RequestAccounts(ctx context.Context) ([]common.Address, error)

	// ChainID returns the active chain id
	ChainID(ctx context.Context) (*big.Int, error)

	// SwitchChain asks the wallet to make chainID active. Unknown chains
	// fail with ProviderCodeUnrecognizedChain.
	SwitchChain(ctx context.Context, chainID *big.Int) error

	// AddChain registers a network with the wallet
	AddChain(ctx context.Context, network NetworkDescriptor) error

	// SendTransaction signs and submits a transaction. It returns once the
	// wallet has accepted it for submission.
	SendTransaction(ctx context.Context, tx TxRequest) (common.Hash, error)

	// Call executes a read-only call
	Call(ctx context.Context, call CallRequest) ([]byte, error)

	// SubscribeAccountsChanged delivers the new account set on every change.
	// An empty slice means the wallet revoked or locked all accounts.
	SubscribeAccountsChanged(ch chan<- []common.Address) event.Subscription

	// SubscribeChainChanged delivers the new chain id on every change.
	SubscribeChainChanged(ch chan<- *big.Int) event.Subscription
}

// ContractHandle is a live, typed handle to the medicine registry contract
// bound to one account. There is one method per contract function.
type ContractHandle interface {
	// Account returns the account transactions are signed with
	Account() common.Address

	// CreateMedicine calls createMedicine(string,uint256,string)
	CreateMedicine(ctx context.Context, name string, batchNumber *big.Int, manufacturer string) (common.Hash, error)

	// TransferMedicine calls transferMedicine(uint256,address)
	TransferMedicine(ctx context.Context, batchNumber *big.Int, newHolder common.Address) (common.Hash, error)

	// ConfirmDelivery calls confirmDelivery(uint256)
	ConfirmDelivery(ctx context.Context, batchNumber *big.Int) (common.Hash, error)

	// GetMedicine calls getMedicine(uint256) and decodes the returned tuple
	GetMedicine(ctx context.Context, batchNumber *big.Int) (MedicineRecord, error)
}

// ContractBinder builds contract handles. Binding is local and performs no
// remote call.
type ContractBinder interface {
	Bind(provider WalletProvider, account common.Address) (ContractHandle, error)
}
