package medchain

import (
	"context"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
)

// GatewayOption configures the gateway
type GatewayOption func(*Gateway)

// WithGatewayLogger sets the gateway logger
func WithGatewayLogger(log *logrus.Entry) GatewayOption {
	return func(g *Gateway) {
		g.log = log.WithField("component", "gateway")
	}
}

// Gateway is the only path from the presentation layer to the contract. It
// validates input, dispatches through the session's handle and normalises
// failures into gateway error codes.
type Gateway struct {
	manager *Manager
	log     *logrus.Entry

	mu                 sync.Mutex
	found              *MedicineRecord
	beforeCallHooks    []BeforeCallHook
	afterCallHooks     []AfterCallHook
	onCallFailureHooks []OnCallFailureHook
}

// NewGateway creates a gateway reading its session from manager.
func NewGateway(manager *Manager, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		manager: manager,
		log:     logrus.NewEntry(logrus.StandardLogger()).WithField("component", "gateway"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// RegisterBatch creates a medicine record signed by the active account.
func (g *Gateway) RegisterBatch(ctx context.Context, name string, batchNumber uint64, manufacturer string) (TxReceipt, error) {
	var receipt TxReceipt
	err := g.dispatch(ctx, OpRegisterBatch, batchNumber,
		func() error {
			var check fieldCheck
			check.text("name", name)
			check.batch("batchNumber", batchNumber)
			check.text("manufacturer", manufacturer)
			return check.err()
		},
		func(ctx context.Context, handle ContractHandle, result *CallResultContext) error {
			hash, err := handle.CreateMedicine(ctx, name, new(big.Int).SetUint64(batchNumber), manufacturer)
			if err != nil {
				return err
			}
			receipt.Hash = hash.Hex()
			result.TxHash = receipt.Hash
			return nil
		},
	)
	if err != nil {
		return TxReceipt{}, err
	}
	return receipt, nil
}

// TransferBatch hands a batch to newHolder. The address is only checked for
// presence; the contract decides whether it is acceptable.
func (g *Gateway) TransferBatch(ctx context.Context, batchNumber uint64, newHolder string) (TxReceipt, error) {
	newHolder = strings.TrimSpace(newHolder)

	var receipt TxReceipt
	err := g.dispatch(ctx, OpTransferBatch, batchNumber,
		func() error {
			var check fieldCheck
			check.batch("batchNumber", batchNumber)
			check.text("newHolder", newHolder)
			return check.err()
		},
		func(ctx context.Context, handle ContractHandle, result *CallResultContext) error {
			if !common.IsHexAddress(newHolder) {
				return &addressEncodingError{value: newHolder}
			}
			hash, err := handle.TransferMedicine(ctx, new(big.Int).SetUint64(batchNumber), common.HexToAddress(newHolder))
			if err != nil {
				return err
			}
			receipt.Hash = hash.Hex()
			result.TxHash = receipt.Hash
			return nil
		},
	)
	if err != nil {
		return TxReceipt{}, err
	}
	return receipt, nil
}

// ConfirmDelivery marks a batch as delivered.
func (g *Gateway) ConfirmDelivery(ctx context.Context, batchNumber uint64) (TxReceipt, error) {
	var receipt TxReceipt
	err := g.dispatch(ctx, OpConfirmDeliver, batchNumber,
		func() error {
			var check fieldCheck
			check.batch("batchNumber", batchNumber)
			return check.err()
		},
		func(ctx context.Context, handle ContractHandle, result *CallResultContext) error {
			hash, err := handle.ConfirmDelivery(ctx, new(big.Int).SetUint64(batchNumber))
			if err != nil {
				return err
			}
			receipt.Hash = hash.Hex()
			result.TxHash = receipt.Hash
			return nil
		},
	)
	if err != nil {
		return TxReceipt{}, err
	}
	return receipt, nil
}

// LookupBatch fetches a batch record. A successful lookup becomes the found
// record; a failed remote lookup clears it. A batch the contract does not
// know fails with remote_failure.
func (g *Gateway) LookupBatch(ctx context.Context, batchNumber uint64) (MedicineRecord, error) {
	var record MedicineRecord
	err := g.dispatch(ctx, OpLookupBatch, batchNumber,
		func() error {
			var check fieldCheck
			check.batch("batchNumber", batchNumber)
			return check.err()
		},
		func(ctx context.Context, handle ContractHandle, result *CallResultContext) error {
			r, err := handle.GetMedicine(ctx, new(big.Int).SetUint64(batchNumber))
			if err != nil {
				return err
			}
			r.BatchNumber = batchNumber
			record = r
			result.Record = &record
			return nil
		},
	)
	if err != nil {
		return MedicineRecord{}, err
	}
	return record, nil
}

// FoundRecord returns the record of the last successful lookup.
func (g *Gateway) FoundRecord() (MedicineRecord, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.found == nil {
		return MedicineRecord{}, false
	}
	return *g.found, true
}

// ClearFoundRecord forgets the last lookup result.
func (g *Gateway) ClearFoundRecord() {
	g.mu.Lock()
	g.found = nil
	g.mu.Unlock()
}

type remoteCall func(ctx context.Context, handle ContractHandle, result *CallResultContext) error

// dispatch runs the common path of every gateway operation: session check,
// local validation, hooks, remote call, staleness check, error normalisation
// and outcome reporting.
func (g *Gateway) dispatch(ctx context.Context, op Operation, batchNumber uint64, validate func() error, call remoteCall) error {
	log := g.log.WithFields(logrus.Fields{"op": string(op), "batch": batchNumber})

	if !g.manager.IsProviderAvailable() {
		err := providerMissingError()
		g.report(op, batchNumber, err)
		return err
	}

	handle, snap := g.manager.lease()
	if handle == nil || !snap.Connected() {
		err := NewGatewayError(ErrCodeNotConnected, "wallet is not connected", nil)
		g.report(op, batchNumber, err)
		return err
	}

	if err := validate(); err != nil {
		log.WithError(err).Debug("rejected before dispatch")
		g.report(op, batchNumber, err)
		return err
	}

	callCtx := CallContext{
		Ctx:         ctx,
		Operation:   op,
		Account:     snap.Account,
		BatchNumber: batchNumber,
		Timestamp:   time.Now(),
	}

	g.mu.Lock()
	before := append([]BeforeCallHook(nil), g.beforeCallHooks...)
	after := append([]AfterCallHook(nil), g.afterCallHooks...)
	failure := append([]OnCallFailureHook(nil), g.onCallFailureHooks...)
	g.mu.Unlock()

	for _, hook := range before {
		result, err := hook(callCtx)
		if err != nil {
			gerr := wrapGatewayError(ErrCodeCallAborted, "before-call hook failed", err, nil)
			g.report(op, batchNumber, gerr)
			return gerr
		}
		if result != nil && result.Abort {
			gerr := NewGatewayError(ErrCodeCallAborted, result.Reason, nil)
			g.report(op, batchNumber, gerr)
			return gerr
		}
	}

	resultCtx := CallResultContext{CallContext: callCtx}
	start := time.Now()
	callErr := call(ctx, handle, &resultCtx)
	duration := time.Since(start)

	if !g.manager.isCurrent(snap.Generation) {
		log.Info("connection ended during call, discarding result")
		return wrapGatewayError(ErrCodeNotConnected, "session ended before the call completed", ErrStaleSession, nil)
	}

	if callErr != nil {
		gerr := classifyRemoteError(callErr)
		log.WithError(callErr).Warn("remote call failed")
		if op == OpLookupBatch && gerr.Code == ErrCodeRemoteFailure {
			g.ClearFoundRecord()
		}

		failureCtx := CallFailureContext{CallContext: callCtx, Error: gerr, Duration: duration}
		for _, hook := range failure {
			if err := hook(failureCtx); err != nil {
				log.WithError(err).Debug("failure hook returned error")
			}
		}
		g.report(op, batchNumber, gerr)
		return gerr
	}

	if resultCtx.Record != nil {
		record := *resultCtx.Record
		g.mu.Lock()
		g.found = &record
		g.mu.Unlock()
	}

	resultCtx.Duration = duration
	for _, hook := range after {
		if err := hook(resultCtx); err != nil {
			log.WithError(err).Debug("after hook returned error")
		}
	}

	log.WithField("tx", resultCtx.TxHash).Info("call completed")
	g.report(op, batchNumber, nil)
	return nil
}

func (g *Gateway) report(op Operation, batchNumber uint64, err error) {
	notifier := g.manager.Notifier()
	if notifier == nil {
		return
	}
	outcome := DescribeOutcome(op, err, batchNumber, g.manager.Network().ChainName)
	notifier.Push(outcome.Message, outcome.Kind)
}

// classifyRemoteError maps a provider or contract failure to user_rejected or
// remote_failure. Reverts are not decoded.
func classifyRemoteError(err error) *GatewayError {
	if IsUserRejection(err) {
		return wrapGatewayError(ErrCodeUserRejected, "transaction rejected by user", err, nil)
	}
	return wrapGatewayError(ErrCodeRemoteFailure, "remote call failed", err, nil)
}

// addressEncodingError is returned when a holder address cannot be encoded
// for the contract call.
type addressEncodingError struct {
	value string
}

func (e *addressEncodingError) Error() string {
	return "cannot encode address argument " + e.value
}
