package medchain

import (
	"context"
	"time"
)

// ============================================================================
// Gateway Hook Context Types
// ============================================================================

// CallContext contains information passed to gateway hooks
type CallContext struct {
	Ctx         context.Context
	Operation   Operation
	Account     string
	BatchNumber uint64
	Timestamp   time.Time
}

// CallResultContext contains a successful call and its context
type CallResultContext struct {
	CallContext
	TxHash   string
	Record   *MedicineRecord
	Duration time.Duration
}

// CallFailureContext contains a failed call and its context
type CallFailureContext struct {
	CallContext
	Error    error
	Duration time.Duration
}

// ============================================================================
// Gateway Hook Result Types
// ============================================================================

// BeforeCallHookResult represents the result of a "before" hook
// If Abort is true, the call is not dispatched and fails with Reason
type BeforeCallHookResult struct {
	Abort  bool
	Reason string
}

// ============================================================================
// Gateway Hook Function Types
// ============================================================================

// BeforeCallHook is called after local validation and before the remote call
// If it returns a result with Abort=true, the call fails with call_aborted
type BeforeCallHook func(CallContext) (*BeforeCallHookResult, error)

// AfterCallHook is called after a successful remote call
// Any error returned is logged but does not affect the result
type AfterCallHook func(CallResultContext) error

// OnCallFailureHook is called when a dispatched remote call fails
// Any error returned is logged but does not affect the result
type OnCallFailureHook func(CallFailureContext) error

// ============================================================================
// Hook Registration Methods
// ============================================================================

// OnBeforeCall registers a hook to run before each remote call
func (g *Gateway) OnBeforeCall(hook BeforeCallHook) *Gateway {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.beforeCallHooks = append(g.beforeCallHooks, hook)
	return g
}

// OnAfterCall registers a hook to run after each successful remote call
func (g *Gateway) OnAfterCall(hook AfterCallHook) *Gateway {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.afterCallHooks = append(g.afterCallHooks, hook)
	return g
}

// OnCallFailure registers a hook to run after each failed remote call
func (g *Gateway) OnCallFailure(hook OnCallFailureHook) *Gateway {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onCallFailureHooks = append(g.onCallFailureHooks, hook)
	return g
}
