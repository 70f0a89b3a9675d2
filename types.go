package medchain

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// ConnectionState is the lifecycle state of a wallet connection.
type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// NativeCurrency describes the gas token of a network.
type NativeCurrency struct {
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
}

// NetworkDescriptor is the static description of the network the client
// requires. It is what gets registered with a provider that does not know the
// chain yet.
type NetworkDescriptor struct {
	ChainID           *big.Int
	ChainName         string
	RPCURLs           []string
	NativeCurrency    NativeCurrency
	BlockExplorerURLs []string
}

// ChainIDHex returns the chain id as a 0x-prefixed hex quantity (e.g. "0xaa36a7").
func (n NetworkDescriptor) ChainIDHex() string {
	if n.ChainID == nil {
		return ""
	}
	return hexutil.EncodeBig(n.ChainID)
}

// Matches reports whether chainID identifies this network.
func (n NetworkDescriptor) Matches(chainID *big.Int) bool {
	if n.ChainID == nil || chainID == nil {
		return false
	}
	return n.ChainID.Cmp(chainID) == 0
}

// MedicineRecord is the last fetched snapshot of a batch held by the contract.
type MedicineRecord struct {
	BatchNumber   uint64 `json:"batchNumber"`
	Name          string `json:"name"`
	Manufacturer  string `json:"manufacturer"`
	CurrentHolder string `json:"currentHolder"`
	IsDelivered   bool   `json:"isDelivered"`
}

// TxReceipt is returned by state-changing gateway calls once the provider has
// accepted the transaction for submission. It carries no mining information.
type TxReceipt struct {
	Hash string `json:"hash"`
}

// TxRequest is a state-changing call the provider signs with From and submits.
type TxRequest struct {
	From common.Address
	To   common.Address
	Data []byte
}

// CallRequest is a read-only call evaluated against the latest block.
type CallRequest struct {
	From common.Address
	To   common.Address
	Data []byte
}

// SessionSnapshot is a read-only copy of the session at one point in time.
//
// Generation changes only when a connection is established or torn down.
// Epoch also changes whenever the handle is rebound within a connection.
type SessionSnapshot struct {
	State      ConnectionState `json:"-"`
	Account    string          `json:"account,omitempty"`
	HasHandle  bool            `json:"-"`
	Generation uint64          `json:"-"`
	Epoch      uint64          `json:"-"`
}

// Connected reports whether the snapshot was taken while connected.
func (s SessionSnapshot) Connected() bool {
	return s.State == StateConnected && s.HasHandle
}

// ShortAddress abbreviates an address for display, e.g. "0x573C...63a6".
func ShortAddress(address string) string {
	address = strings.TrimSpace(address)
	if len(address) <= 10 {
		return address
	}
	return address[:6] + "..." + address[len(address)-4:]
}
