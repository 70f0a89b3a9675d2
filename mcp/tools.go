package mcp

import (
	"context"
	"encoding/json"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	medchain "github.com/medchain-labs/medchain/go"
)

var (
	emptySchema = json.RawMessage(`{"type": "object", "properties": {}, "additionalProperties": false}`)

	batchSchema = json.RawMessage(`{
		"type": "object",
		"properties": {
			"batchNumber": {"type": "integer", "minimum": 1, "description": "Batch number of the medicine"}
		},
		"required": ["batchNumber"],
		"additionalProperties": false
	}`)

	registerSchema = json.RawMessage(`{
		"type": "object",
		"properties": {
			"name": {"type": "string", "description": "Medicine name"},
			"batchNumber": {"type": "integer", "minimum": 1, "description": "Batch number to register"},
			"manufacturer": {"type": "string", "description": "Manufacturer name"}
		},
		"required": ["name", "batchNumber", "manufacturer"],
		"additionalProperties": false
	}`)

	transferSchema = json.RawMessage(`{
		"type": "object",
		"properties": {
			"batchNumber": {"type": "integer", "minimum": 1, "description": "Batch number to transfer"},
			"newHolder": {"type": "string", "description": "Address of the new holder"}
		},
		"required": ["batchNumber", "newHolder"],
		"additionalProperties": false
	}`)
)

type toolEntry struct {
	tool    *mcpsdk.Tool
	handler ToolHandler
}

func (s *Server) tools() []toolEntry {
	return []toolEntry{
		{
			tool: &mcpsdk.Tool{
				Name:        ToolConnectWallet,
				Description: "Connect the wallet and make sure it is on the registry network",
				InputSchema: emptySchema,
			},
			handler: s.connectWallet,
		},
		{
			tool: &mcpsdk.Tool{
				Name:        ToolDisconnectWallet,
				Description: "Disconnect the wallet session",
				InputSchema: emptySchema,
			},
			handler: s.disconnectWallet,
		},
		{
			tool: &mcpsdk.Tool{
				Name:        ToolSessionStatus,
				Description: "Report the wallet session state and required network",
				InputSchema: emptySchema,
			},
			handler: s.sessionStatus,
		},
		{
			tool: &mcpsdk.Tool{
				Name:        ToolRegisterBatch,
				Description: "Register a new medicine batch held by the connected account",
				InputSchema: registerSchema,
			},
			handler: s.registerBatch,
		},
		{
			tool: &mcpsdk.Tool{
				Name:        ToolTransferBatch,
				Description: "Transfer custody of a medicine batch to a new holder",
				InputSchema: transferSchema,
			},
			handler: s.transferBatch,
		},
		{
			tool: &mcpsdk.Tool{
				Name:        ToolConfirmDelivery,
				Description: "Mark a medicine batch as delivered",
				InputSchema: batchSchema,
			},
			handler: s.confirmDelivery,
		},
		{
			tool: &mcpsdk.Tool{
				Name:        ToolLookupBatch,
				Description: "Fetch the registry record of a medicine batch",
				InputSchema: batchSchema,
			},
			handler: s.lookupBatch,
		},
	}
}

func operationFor(toolName string) medchain.Operation {
	switch toolName {
	case ToolConnectWallet:
		return medchain.OpConnect
	case ToolDisconnectWallet:
		return medchain.OpDisconnect
	case ToolRegisterBatch:
		return medchain.OpRegisterBatch
	case ToolTransferBatch:
		return medchain.OpTransferBatch
	case ToolConfirmDelivery:
		return medchain.OpConfirmDeliver
	case ToolLookupBatch:
		return medchain.OpLookupBatch
	}
	return ""
}

func (s *Server) sessionView() SessionView {
	snap := s.manager.Snapshot()
	network := s.manager.Network()
	return SessionView{
		State:             snap.State.String(),
		Connected:         snap.Connected(),
		Account:           snap.Account,
		ShortAccount:      medchain.ShortAddress(snap.Account),
		ProviderAvailable: s.manager.IsProviderAvailable(),
		ChainID:           network.ChainIDHex(),
		ChainName:         network.ChainName,
	}
}

func (s *Server) connectWallet(ctx context.Context, _ ToolContext) (ToolResult, error) {
	result := ToolResult{Operation: medchain.OpConnect}
	if err := s.manager.Connect(ctx); err != nil {
		return result, err
	}
	result.Data = s.sessionView()
	return result, nil
}

func (s *Server) disconnectWallet(_ context.Context, _ ToolContext) (ToolResult, error) {
	result := ToolResult{Operation: medchain.OpDisconnect}
	if err := s.manager.Disconnect(); err != nil {
		return result, err
	}
	result.Data = s.sessionView()
	return result, nil
}

func (s *Server) sessionStatus(_ context.Context, _ ToolContext) (ToolResult, error) {
	view := s.sessionView()
	message := "Wallet not connected"
	if view.Connected {
		message = "Connected: " + view.ShortAccount
	}
	return ToolResult{Message: message, Data: view}, nil
}

func (s *Server) registerBatch(ctx context.Context, toolContext ToolContext) (ToolResult, error) {
	args := toolContext.Arguments
	result := ToolResult{Operation: medchain.OpRegisterBatch, BatchNumber: args.BatchNumber}
	receipt, err := s.gateway.RegisterBatch(ctx, args.Name, args.BatchNumber, args.Manufacturer)
	if err != nil {
		return result, err
	}
	result.Data = receipt
	return result, nil
}

func (s *Server) transferBatch(ctx context.Context, toolContext ToolContext) (ToolResult, error) {
	args := toolContext.Arguments
	result := ToolResult{Operation: medchain.OpTransferBatch, BatchNumber: args.BatchNumber}
	receipt, err := s.gateway.TransferBatch(ctx, args.BatchNumber, args.NewHolder)
	if err != nil {
		return result, err
	}
	result.Data = receipt
	return result, nil
}

func (s *Server) confirmDelivery(ctx context.Context, toolContext ToolContext) (ToolResult, error) {
	args := toolContext.Arguments
	result := ToolResult{Operation: medchain.OpConfirmDeliver, BatchNumber: args.BatchNumber}
	receipt, err := s.gateway.ConfirmDelivery(ctx, args.BatchNumber)
	if err != nil {
		return result, err
	}
	result.Data = receipt
	return result, nil
}

func (s *Server) lookupBatch(ctx context.Context, toolContext ToolContext) (ToolResult, error) {
	args := toolContext.Arguments
	result := ToolResult{Operation: medchain.OpLookupBatch, BatchNumber: args.BatchNumber}
	record, err := s.gateway.LookupBatch(ctx, args.BatchNumber)
	if err != nil {
		return result, err
	}
	result.Data = record
	return result, nil
}
