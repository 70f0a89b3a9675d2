package medchain_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	medchain "github.com/medchain-labs/medchain/go"
	"github.com/medchain-labs/medchain/go/evm"
)

func TestRegisterThenLookup(t *testing.T) {
	h := connectedHarness(t)
	ctx := context.Background()

	receipt, err := h.gateway.RegisterBatch(ctx, "Aspirin", 1001, "Acme")
	require.NoError(t, err)
	assert.Len(t, receipt.Hash, 66)
	assert.Equal(t, "Medicine created! Batch: 1001", h.latestMessage())

	record, err := h.gateway.LookupBatch(ctx, 1001)
	require.NoError(t, err)
	assert.Equal(t, medchain.MedicineRecord{
		BatchNumber:   1001,
		Name:          "Aspirin",
		Manufacturer:  "Acme",
		CurrentHolder: alice.Hex(),
		IsDelivered:   false,
	}, record)
	assert.Equal(t, "Medicine verified successfully!", h.latestMessage())

	found, ok := h.gateway.FoundRecord()
	require.True(t, ok)
	assert.Equal(t, record, found)
}

func TestTransferAndConfirmDelivery(t *testing.T) {
	h := connectedHarness(t)
	ctx := context.Background()

	_, err := h.gateway.RegisterBatch(ctx, "Aspirin", 1001, "Acme")
	require.NoError(t, err)

	_, err = h.gateway.TransferBatch(ctx, 1001, "  "+bob.Hex()+" ")
	require.NoError(t, err)
	assert.Equal(t, "Medicine transferred successfully!", h.latestMessage())

	record, err := h.gateway.LookupBatch(ctx, 1001)
	require.NoError(t, err)
	assert.Equal(t, bob.Hex(), record.CurrentHolder)

	_, err = h.gateway.ConfirmDelivery(ctx, 1001)
	require.NoError(t, err)
	assert.Equal(t, "Delivery confirmed successfully!", h.latestMessage())

	record, err = h.gateway.LookupBatch(ctx, 1001)
	require.NoError(t, err)
	assert.True(t, record.IsDelivered)
}

func TestGatewayValidatesBeforeDispatch(t *testing.T) {
	h := connectedHarness(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		call    func() error
		fields  []string
		message string
	}{
		{
			name: "empty name",
			call: func() error {
				_, err := h.gateway.RegisterBatch(ctx, "", 1001, "Acme")
				return err
			},
			fields:  []string{"name"},
			message: "Please fill all fields",
		},
		{
			name: "blank manufacturer and zero batch",
			call: func() error {
				_, err := h.gateway.RegisterBatch(ctx, "Aspirin", 0, "   ")
				return err
			},
			fields:  []string{"batchNumber", "manufacturer"},
			message: "Please fill all fields",
		},
		{
			name: "empty holder",
			call: func() error {
				_, err := h.gateway.TransferBatch(ctx, 1001, " ")
				return err
			},
			fields:  []string{"newHolder"},
			message: "Please fill all fields",
		},
		{
			name: "zero batch delivery",
			call: func() error {
				_, err := h.gateway.ConfirmDelivery(ctx, 0)
				return err
			},
			fields:  []string{"batchNumber"},
			message: "Please enter batch number",
		},
		{
			name: "zero batch lookup",
			call: func() error {
				_, err := h.gateway.LookupBatch(ctx, 0)
				return err
			},
			fields:  []string{"batchNumber"},
			message: "Please enter batch number",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			var gerr *medchain.GatewayError
			require.True(t, errors.As(err, &gerr), "got %v", err)
			assert.Equal(t, medchain.ErrCodeInvalidInput, gerr.Code)
			assert.Equal(t, tt.fields, gerr.Details["fields"])
			assert.Equal(t, tt.message, h.latestMessage())
		})
	}

	calls := h.wallet.Calls()
	assert.Equal(t, 0, calls.SendTransaction)
	assert.Equal(t, 0, calls.Call)
}

func TestGatewayRequiresConnection(t *testing.T) {
	h := newHarness(t, nil)
	h2 := connectedHarness(t)
	require.NoError(t, h2.manager.Disconnect())
	ctx := context.Background()

	_, err := h2.gateway.RegisterBatch(ctx, "Aspirin", 1, "Acme")
	assert.True(t, medchain.IsCode(err, medchain.ErrCodeNotConnected), "got %v", err)
	_, err = h2.gateway.TransferBatch(ctx, 1, bob.Hex())
	assert.True(t, medchain.IsCode(err, medchain.ErrCodeNotConnected))
	_, err = h2.gateway.ConfirmDelivery(ctx, 1)
	assert.True(t, medchain.IsCode(err, medchain.ErrCodeNotConnected))
	_, err = h2.gateway.LookupBatch(ctx, 1)
	assert.True(t, medchain.IsCode(err, medchain.ErrCodeNotConnected))
	assert.Equal(t, "Please connect wallet first", h2.latestMessage())

	calls := h2.wallet.Calls()
	assert.Equal(t, 0, calls.SendTransaction)
	assert.Equal(t, 0, calls.Call)

	// Without a provider the missing provider wins over the session check
	_, err = h.gateway.ConfirmDelivery(ctx, 1)
	assert.True(t, medchain.IsCode(err, medchain.ErrCodeProviderMissing))
}

func TestLookupUnknownBatch(t *testing.T) {
	h := connectedHarness(t)
	ctx := context.Background()

	_, err := h.gateway.RegisterBatch(ctx, "Aspirin", 1001, "Acme")
	require.NoError(t, err)
	_, err = h.gateway.LookupBatch(ctx, 1001)
	require.NoError(t, err)
	_, ok := h.gateway.FoundRecord()
	require.True(t, ok)

	_, err = h.gateway.LookupBatch(ctx, 999999)
	assert.True(t, medchain.IsCode(err, medchain.ErrCodeRemoteFailure), "got %v", err)
	assert.Equal(t, "Medicine not found or invalid batch number", h.latestMessage())

	_, ok = h.gateway.FoundRecord()
	assert.False(t, ok)
}

func TestRemoteFailures(t *testing.T) {
	t.Run("user rejects transaction", func(t *testing.T) {
		h := connectedHarness(t)
		h.wallet.SendErr = medchain.NewProviderError(medchain.ProviderCodeUserRejected, "User denied transaction signature.")

		_, err := h.gateway.RegisterBatch(context.Background(), "Aspirin", 1001, "Acme")
		assert.True(t, medchain.IsCode(err, medchain.ErrCodeUserRejected), "got %v", err)
		assert.True(t, medchain.IsUserRejection(err))
		assert.Equal(t, "Transaction cancelled", h.latestMessage())
	})

	t.Run("revert", func(t *testing.T) {
		h := connectedHarness(t)

		_, err := h.gateway.ConfirmDelivery(context.Background(), 42)
		assert.True(t, medchain.IsCode(err, medchain.ErrCodeRemoteFailure), "got %v", err)
		assert.Equal(t, "Confirmation failed", h.latestMessage())
	})

	t.Run("duplicate registration", func(t *testing.T) {
		h := connectedHarness(t)
		ctx := context.Background()

		_, err := h.gateway.RegisterBatch(ctx, "Aspirin", 5, "Acme")
		require.NoError(t, err)
		_, err = h.gateway.RegisterBatch(ctx, "Aspirin", 5, "Acme")
		assert.True(t, medchain.IsCode(err, medchain.ErrCodeRemoteFailure), "got %v", err)
		assert.Equal(t, "Transaction failed", h.latestMessage())
	})

	t.Run("unencodable holder", func(t *testing.T) {
		h := connectedHarness(t)

		_, err := h.gateway.TransferBatch(context.Background(), 1001, "warehouse-7")
		assert.True(t, medchain.IsCode(err, medchain.ErrCodeRemoteFailure), "got %v", err)
		assert.Equal(t, "Transfer failed", h.latestMessage())
		assert.Equal(t, 0, h.wallet.Calls().SendTransaction)
	})
}

func TestGatewayHooks(t *testing.T) {
	t.Run("before hook aborts without remote call", func(t *testing.T) {
		h := connectedHarness(t)
		h.gateway.OnBeforeCall(func(ctx medchain.CallContext) (*medchain.BeforeCallHookResult, error) {
			if ctx.Operation == medchain.OpRegisterBatch {
				return &medchain.BeforeCallHookResult{Abort: true, Reason: "registrations paused"}, nil
			}
			return nil, nil
		})

		_, err := h.gateway.RegisterBatch(context.Background(), "Aspirin", 1, "Acme")
		assert.True(t, medchain.IsCode(err, medchain.ErrCodeCallAborted), "got %v", err)
		assert.Equal(t, 0, h.wallet.Calls().SendTransaction)

		_, err = h.gateway.LookupBatch(context.Background(), 1)
		assert.True(t, medchain.IsCode(err, medchain.ErrCodeRemoteFailure))
		assert.Equal(t, 1, h.wallet.Calls().Call)
	})

	t.Run("after and failure hooks observe results", func(t *testing.T) {
		h := connectedHarness(t)

		var results []medchain.CallResultContext
		var failures []medchain.CallFailureContext
		h.gateway.
			OnAfterCall(func(ctx medchain.CallResultContext) error {
				results = append(results, ctx)
				return nil
			}).
			OnCallFailure(func(ctx medchain.CallFailureContext) error {
				failures = append(failures, ctx)
				return errors.New("ignored")
			})

		receipt, err := h.gateway.RegisterBatch(context.Background(), "Aspirin", 3, "Acme")
		require.NoError(t, err)
		_, err = h.gateway.LookupBatch(context.Background(), 4)
		require.Error(t, err)

		require.Len(t, results, 1)
		assert.Equal(t, medchain.OpRegisterBatch, results[0].Operation)
		assert.Equal(t, receipt.Hash, results[0].TxHash)
		assert.Equal(t, alice.Hex(), results[0].Account)
		assert.Equal(t, uint64(3), results[0].BatchNumber)

		require.Len(t, failures, 1)
		assert.Equal(t, medchain.OpLookupBatch, failures[0].Operation)
		assert.True(t, medchain.IsCode(failures[0].Error, medchain.ErrCodeRemoteFailure))
	})
}

func TestStaleCompletionIsDiscarded(t *testing.T) {
	h := connectedHarness(t)
	ctx := context.Background()

	_, err := h.gateway.RegisterBatch(ctx, "Aspirin", 1001, "Acme")
	require.NoError(t, err)

	gate := make(chan struct{})
	h.wallet.CallGate = gate

	done := make(chan error, 1)
	go func() {
		_, err := h.gateway.LookupBatch(ctx, 1001)
		done <- err
	}()

	require.Eventually(t, func() bool {
		return h.wallet.Calls().Call == 1
	}, eventually, 5*time.Millisecond)

	require.NoError(t, h.manager.Disconnect())
	close(gate)

	select {
	case err := <-done:
		assert.True(t, medchain.IsCode(err, medchain.ErrCodeNotConnected), "got %v", err)
		assert.ErrorIs(t, err, medchain.ErrStaleSession)
	case <-time.After(eventually):
		t.Fatal("lookup never returned")
	}

	_, ok := h.gateway.FoundRecord()
	assert.False(t, ok)
	assert.Equal(t, "Wallet disconnected", h.latestMessage())
}

func TestCallSurvivesHandleRebind(t *testing.T) {
	tests := []struct {
		name   string
		change func(h *harness)
		synced func(h *harness, before medchain.SessionSnapshot) bool
	}{
		{
			name:   "account change",
			change: func(h *harness) { h.wallet.SetAccounts(bob) },
			synced: func(h *harness, _ medchain.SessionSnapshot) bool {
				return h.manager.Account() == bob.Hex()
			},
		},
		{
			name:   "chain change back onto the required network",
			change: func(h *harness) { h.wallet.SetChain(evm.ChainIDSepolia) },
			synced: func(h *harness, before medchain.SessionSnapshot) bool {
				return h.manager.Snapshot().Epoch > before.Epoch
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := connectedHarness(t)
			ctx := context.Background()

			_, err := h.gateway.RegisterBatch(ctx, "Aspirin", 1001, "Acme")
			require.NoError(t, err)

			gate := make(chan struct{})
			h.wallet.CallGate = gate

			type lookup struct {
				record medchain.MedicineRecord
				err    error
			}
			done := make(chan lookup, 1)
			go func() {
				record, err := h.gateway.LookupBatch(ctx, 1001)
				done <- lookup{record: record, err: err}
			}()

			require.Eventually(t, func() bool {
				return h.wallet.Calls().Call == 1
			}, eventually, 5*time.Millisecond)

			before := h.manager.Snapshot()
			tt.change(h)
			require.Eventually(t, func() bool {
				return tt.synced(h, before)
			}, eventually, 5*time.Millisecond)
			assert.Equal(t, before.Generation, h.manager.Snapshot().Generation)
			close(gate)

			select {
			case got := <-done:
				require.NoError(t, got.err)
				assert.Equal(t, "Aspirin", got.record.Name)
			case <-time.After(eventually):
				t.Fatal("lookup never returned")
			}

			record, ok := h.gateway.FoundRecord()
			require.True(t, ok)
			assert.Equal(t, "Aspirin", record.Name)
			assert.True(t, h.manager.IsConnected())
		})
	}
}
