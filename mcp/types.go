package mcp

import (
	"context"

	medchain "github.com/medchain-labs/medchain/go"
)

// Tool names.
const (
	ToolConnectWallet    = "connect_wallet"
	ToolDisconnectWallet = "disconnect_wallet"
	ToolSessionStatus    = "session_status"
	ToolRegisterBatch    = "register_batch"
	ToolTransferBatch    = "transfer_batch"
	ToolConfirmDelivery  = "confirm_delivery"
	ToolLookupBatch      = "lookup_batch"
)

// ToolArguments is the union of arguments accepted by the medchain tools.
type ToolArguments struct {
	Name         string `json:"name,omitempty"`
	BatchNumber  uint64 `json:"batchNumber,omitempty"`
	Manufacturer string `json:"manufacturer,omitempty"`
	NewHolder    string `json:"newHolder,omitempty"`
}

// ToolContext describes the tool call being served.
type ToolContext struct {
	ToolName  string
	Arguments ToolArguments
}

// ToolResult is what a tool handler produces before it is rendered into an
// MCP result. Operation and BatchNumber select the outcome message unless
// Message is set.
type ToolResult struct {
	Operation   medchain.Operation
	BatchNumber uint64
	Message     string
	Data        interface{}
}

// ToolHandler serves one medchain tool.
type ToolHandler func(ctx context.Context, toolContext ToolContext) (ToolResult, error)

// SessionView is the session_status payload.
type SessionView struct {
	State             string `json:"state"`
	Connected         bool   `json:"connected"`
	Account           string `json:"account,omitempty"`
	ShortAccount      string `json:"shortAccount,omitempty"`
	ProviderAvailable bool   `json:"providerAvailable"`
	ChainID           string `json:"chainId"`
	ChainName         string `json:"chainName"`
}

// ErrorView is the structured payload of a failed tool call.
type ErrorView struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}
