package medchain

import (
	"errors"
	"fmt"
)

// Operation names a user-visible action whose outcome gets reported.
type Operation string

const (
	OpConnect        Operation = "connect"
	OpDisconnect     Operation = "disconnect"
	OpAccountChanged Operation = "account_changed"
	OpChainChanged   Operation = "chain_changed"
	OpRegisterBatch  Operation = "register_batch"
	OpTransferBatch  Operation = "transfer_batch"
	OpConfirmDeliver Operation = "confirm_delivery"
	OpLookupBatch    Operation = "lookup_batch"
)

// Outcome is the human-readable result of an operation.
type Outcome struct {
	Message string
	Kind    NotificationKind
}

// DescribeOutcome renders the message shown to the user after op finished
// with err. batchNumber is only used by successful registrations; network
// names the required chain in network-related messages.
func DescribeOutcome(op Operation, err error, batchNumber uint64, network string) Outcome {
	if network == "" {
		network = "Sepolia"
	}
	if err == nil {
		return Outcome{Message: successMessage(op, batchNumber, network), Kind: KindSuccess}
	}
	return Outcome{Message: failureMessage(op, err, network), Kind: KindError}
}

func successMessage(op Operation, batchNumber uint64, network string) string {
	switch op {
	case OpConnect:
		return "Wallet connected successfully!"
	case OpDisconnect:
		return "Wallet disconnected"
	case OpAccountChanged:
		return "Account changed"
	case OpChainChanged:
		return fmt.Sprintf("Back on %s network", network)
	case OpRegisterBatch:
		return fmt.Sprintf("Medicine created! Batch: %d", batchNumber)
	case OpTransferBatch:
		return "Medicine transferred successfully!"
	case OpConfirmDeliver:
		return "Delivery confirmed successfully!"
	case OpLookupBatch:
		return "Medicine verified successfully!"
	}
	return "Done"
}

func failureMessage(op Operation, err error, network string) string {
	var gerr *GatewayError
	code := ErrorCode(err)
	switch code {
	case ErrCodeProviderMissing:
		return "Wallet provider not detected. Install a wallet to use this application."
	case ErrCodeNotConnected:
		return "Please connect wallet first"
	case ErrCodeInvalidInput:
		if op == OpTransferBatch || op == OpRegisterBatch {
			return "Please fill all fields"
		}
		return "Please enter batch number"
	case ErrCodeNetworkError:
		if errors.As(err, &gerr) && gerr.Details["stage"] == NetworkStageAdd {
			return fmt.Sprintf("Failed to add %s network", network)
		}
		if op == OpChainChanged {
			return fmt.Sprintf("Please switch to %s network", network)
		}
		return "Failed to switch network"
	case ErrCodeCallAborted:
		return "Request blocked"
	}

	switch op {
	case OpConnect:
		if code == ErrCodeUserRejected {
			return "Connection rejected"
		}
		return "Failed to connect wallet"
	case OpAccountChanged:
		return "Failed to initialize contract"
	case OpChainChanged:
		return fmt.Sprintf("Please switch to %s network", network)
	case OpLookupBatch:
		return "Medicine not found or invalid batch number"
	}

	if code == ErrCodeUserRejected {
		return "Transaction cancelled"
	}
	switch op {
	case OpTransferBatch:
		return "Transfer failed"
	case OpConfirmDeliver:
		return "Confirmation failed"
	}
	return "Transaction failed"
}
