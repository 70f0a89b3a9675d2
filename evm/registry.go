// Package evm binds the medicine registry contract to a wallet provider using
// go-ethereum's ABI codec.
package evm

import (
	"bytes"
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	medchain "github.com/medchain-labs/medchain/go"
)

// ParseRegistryABI parses MedicineRegistryABI.
func ParseRegistryABI() (abi.ABI, error) {
	parsed, err := abi.JSON(bytes.NewReader(MedicineRegistryABI))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("failed to parse registry ABI: %w", err)
	}
	return parsed, nil
}

// Binder builds registry handles for a fixed contract address.
type Binder struct {
	address common.Address
	abi     abi.ABI
}

// NewBinder creates a binder for the registry deployed at address.
// An empty address selects RegistryAddress.
func NewBinder(address string) (*Binder, error) {
	if address == "" {
		address = RegistryAddress
	}
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("invalid registry address: %s", address)
	}
	parsed, err := ParseRegistryABI()
	if err != nil {
		return nil, err
	}
	return &Binder{
		address: common.HexToAddress(address),
		abi:     parsed,
	}, nil
}

// Address returns the registry address.
func (b *Binder) Address() common.Address {
	return b.address
}

// Bind returns a handle dispatching through provider as account.
func (b *Binder) Bind(provider medchain.WalletProvider, account common.Address) (medchain.ContractHandle, error) {
	if provider == nil {
		return nil, fmt.Errorf("bind registry: nil provider")
	}
	if account == (common.Address{}) {
		return nil, fmt.Errorf("bind registry: zero account")
	}
	return &Registry{
		provider: provider,
		address:  b.address,
		account:  account,
		abi:      b.abi,
	}, nil
}

// Registry is a medchain.ContractHandle for the medicine registry.
type Registry struct {
	provider medchain.WalletProvider
	address  common.Address
	account  common.Address
	abi      abi.ABI
}

// Account returns the signing account.
func (r *Registry) Account() common.Address {
	return r.account
}

// CreateMedicine submits createMedicine(name, batchNumber, manufacturer).
func (r *Registry) CreateMedicine(ctx context.Context, name string, batchNumber *big.Int, manufacturer string) (common.Hash, error) {
	return r.transact(ctx, FunctionCreateMedicine, name, batchNumber, manufacturer)
}

// TransferMedicine submits transferMedicine(batchNumber, newHolder).
func (r *Registry) TransferMedicine(ctx context.Context, batchNumber *big.Int, newHolder common.Address) (common.Hash, error) {
	return r.transact(ctx, FunctionTransferMedicine, batchNumber, newHolder)
}

// ConfirmDelivery submits confirmDelivery(batchNumber).
func (r *Registry) ConfirmDelivery(ctx context.Context, batchNumber *big.Int) (common.Hash, error) {
	return r.transact(ctx, FunctionConfirmDelivery, batchNumber)
}

// GetMedicine calls getMedicine(batchNumber) and decodes the result tuple.
func (r *Registry) GetMedicine(ctx context.Context, batchNumber *big.Int) (medchain.MedicineRecord, error) {
	data, err := r.abi.Pack(FunctionGetMedicine, batchNumber)
	if err != nil {
		return medchain.MedicineRecord{}, fmt.Errorf("failed to pack %s: %w", FunctionGetMedicine, err)
	}

	result, err := r.provider.Call(ctx, medchain.CallRequest{
		From: r.account,
		To:   r.address,
		Data: data,
	})
	if err != nil {
		return medchain.MedicineRecord{}, fmt.Errorf("contract call failed: %w", err)
	}
	if len(result) == 0 {
		return medchain.MedicineRecord{}, fmt.Errorf("contract call returned no data")
	}

	record, err := DecodeMedicine(r.abi, result)
	if err != nil {
		return medchain.MedicineRecord{}, err
	}
	if batchNumber != nil && batchNumber.IsUint64() {
		record.BatchNumber = batchNumber.Uint64()
	}
	return record, nil
}

func (r *Registry) transact(ctx context.Context, method string, args ...interface{}) (common.Hash, error) {
	data, err := r.abi.Pack(method, args...)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to pack %s: %w", method, err)
	}
	hash, err := r.provider.SendTransaction(ctx, medchain.TxRequest{
		From: r.account,
		To:   r.address,
		Data: data,
	})
	if err != nil {
		return common.Hash{}, fmt.Errorf("%s transaction failed: %w", method, err)
	}
	return hash, nil
}

// DecodeMedicine unpacks getMedicine return data.
func DecodeMedicine(registryABI abi.ABI, data []byte) (medchain.MedicineRecord, error) {
	outputs, err := registryABI.Unpack(FunctionGetMedicine, data)
	if err != nil {
		return medchain.MedicineRecord{}, fmt.Errorf("failed to unpack result: %w", err)
	}
	if len(outputs) != 4 {
		return medchain.MedicineRecord{}, fmt.Errorf("unexpected output count %d", len(outputs))
	}

	name, ok := outputs[0].(string)
	if !ok {
		return medchain.MedicineRecord{}, fmt.Errorf("invalid name type %T", outputs[0])
	}
	manufacturer, ok := outputs[1].(string)
	if !ok {
		return medchain.MedicineRecord{}, fmt.Errorf("invalid manufacturer type %T", outputs[1])
	}
	holder, ok := outputs[2].(common.Address)
	if !ok {
		return medchain.MedicineRecord{}, fmt.Errorf("invalid currentHolder type %T", outputs[2])
	}
	delivered, ok := outputs[3].(bool)
	if !ok {
		return medchain.MedicineRecord{}, fmt.Errorf("invalid isDelivered type %T", outputs[3])
	}

	return medchain.MedicineRecord{
		Name:          name,
		Manufacturer:  manufacturer,
		CurrentHolder: holder.Hex(),
		IsDelivered:   delivered,
	}, nil
}

// EncodeMedicine packs a record the way getMedicine returns it.
func EncodeMedicine(registryABI abi.ABI, record medchain.MedicineRecord) ([]byte, error) {
	method, ok := registryABI.Methods[FunctionGetMedicine]
	if !ok {
		return nil, fmt.Errorf("registry ABI has no %s", FunctionGetMedicine)
	}
	return method.Outputs.Pack(record.Name, record.Manufacturer, common.HexToAddress(record.CurrentHolder), record.IsDelivered)
}
