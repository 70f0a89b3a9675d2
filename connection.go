package medchain

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
)

// ManagerConfig configures a connection manager
type ManagerConfig struct {
	// Provider may be nil; every operation then fails with provider_missing.
	Provider WalletProvider
	Network  NetworkDescriptor
	Binder   ContractBinder
	Notifier *Notifier
	Logger   *logrus.Entry
}

// session is the connection state owned by the manager loop.
type session struct {
	account common.Address
	handle  ContractHandle
}

// sessionView is what readers see: a snapshot plus the handle it belongs to.
type sessionView struct {
	snapshot SessionSnapshot
	handle   ContractHandle
}

type command struct {
	apply func() error
	reply chan error
}

// Manager owns the wallet session. All session writes happen on a single
// goroutine that consumes commands from callers and events from the provider,
// so every write happens together with the state transition it belongs to.
type Manager struct {
	provider WalletProvider
	network  NetworkDescriptor
	binder   ContractBinder
	verifier *NetworkVerifier
	notifier *Notifier
	log      *logrus.Entry

	commands chan command
	events   chan providerEvent
	quit     chan struct{}
	done     chan struct{}
	closing  sync.Once

	// Owned by the loop goroutine
	state      ConnectionState
	session    session
	generation uint64
	epoch      uint64
	bridge     *EventBridge

	viewMu sync.RWMutex
	view   sessionView
}

// NewManager creates a connection manager and starts its loop. The manager is
// meant to live for the whole process; reconnecting reuses it.
func NewManager(cfg ManagerConfig) (*Manager, error) {
	if cfg.Binder == nil {
		return nil, errors.New("manager config: binder is required")
	}
	if cfg.Network.ChainID == nil {
		return nil, errors.New("manager config: network chain id is required")
	}
	log := cfg.Logger
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	m := &Manager{
		provider: cfg.Provider,
		network:  cfg.Network,
		binder:   cfg.Binder,
		notifier: cfg.Notifier,
		log:      log.WithField("component", "connection"),
		verifier: NewNetworkVerifier(cfg.Provider, cfg.Network, log),
		commands: make(chan command),
		events:   make(chan providerEvent),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
		state:    StateDisconnected,
	}
	m.publish()

	go m.run()
	return m, nil
}

// ============================================================================
// Read side
// ============================================================================

// IsProviderAvailable reports whether a wallet provider was detected.
func (m *Manager) IsProviderAvailable() bool {
	return IsProviderAvailable(m.provider)
}

// Network returns the required network.
func (m *Manager) Network() NetworkDescriptor {
	return m.network
}

// Verifier returns the network verifier used by the manager.
func (m *Manager) Verifier() *NetworkVerifier {
	return m.verifier
}

// Notifier returns the notifier outcomes are reported to, or nil.
func (m *Manager) Notifier() *Notifier {
	return m.notifier
}

// Snapshot returns a copy of the current session.
func (m *Manager) Snapshot() SessionSnapshot {
	m.viewMu.RLock()
	defer m.viewMu.RUnlock()
	return m.view.snapshot
}

// State returns the current connection state.
func (m *Manager) State() ConnectionState {
	return m.Snapshot().State
}

// IsConnected reports whether a session is active.
func (m *Manager) IsConnected() bool {
	return m.Snapshot().Connected()
}

// Account returns the connected account, or "" when disconnected.
func (m *Manager) Account() string {
	return m.Snapshot().Account
}

// lease returns the current handle together with the snapshot it belongs to.
func (m *Manager) lease() (ContractHandle, SessionSnapshot) {
	m.viewMu.RLock()
	defer m.viewMu.RUnlock()
	return m.view.handle, m.view.snapshot
}

// isCurrent reports whether generation still identifies the active
// connection. Account and handle swaps within a connection keep it current.
func (m *Manager) isCurrent(generation uint64) bool {
	snap := m.Snapshot()
	return snap.Connected() && snap.Generation == generation
}

// ============================================================================
// Operations
// ============================================================================

// Connect verifies (and if needed switches) the network, requests account
// access and binds the contract handle. It is only valid while disconnected.
func (m *Manager) Connect(ctx context.Context) error {
	err := m.connect(ctx)
	// A refused attempt leaves the existing session untouched
	if !errors.Is(err, ErrSessionBusy) {
		m.report(OpConnect, err)
	}
	return err
}

func (m *Manager) connect(ctx context.Context) error {
	if !m.IsProviderAvailable() {
		m.log.Warn("connect: no wallet provider")
		return providerMissingError()
	}

	if err := m.submit(m.beginConnect); err != nil {
		return err
	}

	account, handle, err := m.establish(ctx)
	if err != nil {
		m.log.WithError(err).Warn("connect failed")
		if abortErr := m.submit(m.abortConnect); abortErr != nil {
			m.log.WithError(abortErr).Debug("abort connect")
		}
		return err
	}

	return m.submit(func() error {
		return m.completeConnect(account, handle)
	})
}

// establish runs the remote part of connect on the caller's goroutine.
func (m *Manager) establish(ctx context.Context) (common.Address, ContractHandle, error) {
	if !m.verifier.IsOnRequiredNetwork(ctx) {
		if err := m.verifier.SwitchToRequiredNetwork(ctx); err != nil {
			return common.Address{}, nil, err
		}
	}

	accounts, err := m.provider.RequestAccounts(ctx)
	if err != nil {
		if IsUserRejection(err) {
			return common.Address{}, nil, wrapGatewayError(ErrCodeUserRejected, "connection rejected by user", err, nil)
		}
		return common.Address{}, nil, wrapGatewayError(ErrCodeConnectionError, "failed to request accounts", err, nil)
	}
	if len(accounts) == 0 {
		return common.Address{}, nil, NewGatewayError(ErrCodeConnectionError, "wallet returned no accounts", nil)
	}

	handle, err := m.binder.Bind(m.provider, accounts[0])
	if err != nil {
		return common.Address{}, nil, wrapGatewayError(ErrCodeConnectionError, "failed to initialize contract", err, nil)
	}
	return accounts[0], handle, nil
}

// Disconnect clears the session locally. The wallet is not asked to revoke
// access. It is only valid while connected.
func (m *Manager) Disconnect() error {
	err := m.submit(func() error {
		if m.state != StateConnected {
			return NewGatewayError(ErrCodeNotConnected, "wallet is not connected", map[string]interface{}{
				"state": m.state.String(),
			})
		}
		m.teardown()
		return nil
	})
	if err == nil {
		m.report(OpDisconnect, nil)
	}
	return err
}

// Close stops the manager loop and any active event subscriptions.
func (m *Manager) Close() {
	m.closing.Do(func() {
		close(m.quit)
		<-m.done
	})
}

// ============================================================================
// Loop
// ============================================================================

func (m *Manager) submit(apply func() error) error {
	cmd := command{apply: apply, reply: make(chan error, 1)}
	select {
	case m.commands <- cmd:
	case <-m.quit:
		return ErrManagerClosed
	}
	return <-cmd.reply
}

func (m *Manager) run() {
	defer close(m.done)

	for {
		select {
		case cmd := <-m.commands:
			cmd.reply <- cmd.apply()
		case ev := <-m.events:
			m.handleEvent(ev)
		case <-m.quit:
			m.stopBridge()
			return
		}
	}
}

func (m *Manager) beginConnect() error {
	switch m.state {
	case StateConnecting:
		return wrapGatewayError(ErrCodeConnectionError, "connection already in progress", ErrSessionBusy, nil)
	case StateConnected:
		return wrapGatewayError(ErrCodeConnectionError, "wallet already connected", ErrSessionBusy, nil)
	}
	m.state = StateConnecting
	m.publish()
	return nil
}

func (m *Manager) abortConnect() error {
	if m.state == StateConnecting {
		m.state = StateDisconnected
		m.publish()
	}
	return nil
}

func (m *Manager) completeConnect(account common.Address, handle ContractHandle) error {
	if m.state != StateConnecting {
		return NewGatewayError(ErrCodeConnectionError, "connection attempt was superseded", nil)
	}
	m.session = session{account: account, handle: handle}
	m.generation++
	m.epoch++
	m.state = StateConnected
	m.publish()

	m.bridge = newEventBridge(m.provider, m.events, m.log)
	m.bridge.start()

	m.log.WithField("account", account.Hex()).Info("wallet connected")
	return nil
}

// teardown ends the session. Must run on the loop goroutine.
func (m *Manager) teardown() {
	m.stopBridge()
	m.session = session{}
	m.generation++
	m.epoch++
	m.state = StateDisconnected
	m.publish()
	m.log.Info("wallet disconnected")
}

func (m *Manager) stopBridge() {
	if m.bridge != nil {
		m.bridge.stop()
		m.bridge = nil
	}
}

// rebind replaces the handle for account, keeping the session connected.
func (m *Manager) rebind(account common.Address) error {
	handle, err := m.binder.Bind(m.provider, account)
	if err != nil {
		return wrapGatewayError(ErrCodeConnectionError, "failed to initialize contract", err, nil)
	}
	m.session = session{account: account, handle: handle}
	m.epoch++
	m.publish()
	return nil
}

func (m *Manager) handleEvent(ev providerEvent) {
	if ev.bridge == nil || ev.bridge != m.bridge || m.state != StateConnected {
		return
	}

	switch ev.kind {
	case eventAccountsChanged:
		if len(ev.accounts) == 0 {
			m.log.Info("wallet reported no accounts")
			m.teardown()
			m.report(OpDisconnect, nil)
			return
		}
		log := m.log.WithField("account", ev.accounts[0].Hex())
		if err := m.rebind(ev.accounts[0]); err != nil {
			log.WithError(err).Error("rebind after account change failed")
			m.teardown()
			m.report(OpAccountChanged, err)
			return
		}
		log.Info("account changed")
		m.report(OpAccountChanged, nil)

	case eventChainChanged:
		log := m.log.WithField("chain_id", fmt.Sprintf("%#x", ev.chainID))
		if !m.network.Matches(ev.chainID) {
			log.Warn("wallet left the required network")
			m.teardown()
			m.report(OpChainChanged, NewGatewayError(ErrCodeNetworkError, "network changed", map[string]interface{}{
				"stage":    "changed",
				"chain_id": fmt.Sprintf("%#x", ev.chainID),
			}))
			return
		}
		if err := m.rebind(m.session.account); err != nil {
			log.WithError(err).Error("rebind after chain change failed")
			m.teardown()
			m.report(OpChainChanged, err)
			return
		}
		log.Info("back on required network")

	case eventBridgeFailed:
		if ev.err != nil {
			m.log.WithError(ev.err).Warn("provider event subscription failed")
		}
		m.bridge.stop()
	}
}

// publish copies the loop-owned session into the read view.
func (m *Manager) publish() {
	snapshot := SessionSnapshot{
		State:      m.state,
		Generation: m.generation,
		Epoch:      m.epoch,
	}
	if m.session.handle != nil {
		snapshot.Account = m.session.account.Hex()
		snapshot.HasHandle = true
	}

	m.viewMu.Lock()
	m.view = sessionView{snapshot: snapshot, handle: m.session.handle}
	m.viewMu.Unlock()
}

func (m *Manager) report(op Operation, err error) {
	if m.notifier == nil {
		return
	}
	outcome := DescribeOutcome(op, err, 0, m.network.ChainName)
	m.notifier.Push(outcome.Message, outcome.Kind)
}
