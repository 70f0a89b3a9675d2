package medchain

import (
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"
	"github.com/sirupsen/logrus"
)

type providerEventKind int

const (
	eventAccountsChanged providerEventKind = iota
	eventChainChanged
	eventBridgeFailed
)

// providerEvent is one provider notification, tagged with the bridge that
// received it so the manager can drop events from a bridge it already stopped.
type providerEvent struct {
	bridge   *EventBridge
	kind     providerEventKind
	accounts []common.Address
	chainID  *big.Int
	err      error
}

// EventBridge forwards a provider's accountsChanged and chainChanged
// notifications into the connection manager while a session is active.
type EventBridge struct {
	provider WalletProvider
	out      chan<- providerEvent
	log      *logrus.Entry

	accountsSub event.Subscription
	chainSub    event.Subscription
	accounts    chan []common.Address
	chains      chan *big.Int

	quit     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func newEventBridge(provider WalletProvider, out chan<- providerEvent, log *logrus.Entry) *EventBridge {
	return &EventBridge{
		provider: provider,
		out:      out,
		log:      log.WithField("component", "bridge"),
		accounts: make(chan []common.Address, 4),
		chains:   make(chan *big.Int, 4),
		quit:     make(chan struct{}),
	}
}

// start subscribes to both provider channels and begins forwarding.
func (b *EventBridge) start() {
	b.accountsSub = b.provider.SubscribeAccountsChanged(b.accounts)
	b.chainSub = b.provider.SubscribeChainChanged(b.chains)

	b.wg.Add(1)
	go b.loop()
	b.log.Debug("subscribed to provider events")
}

func (b *EventBridge) loop() {
	defer b.wg.Done()

	for {
		var ev providerEvent
		select {
		case accounts := <-b.accounts:
			ev = providerEvent{bridge: b, kind: eventAccountsChanged, accounts: accounts}
		case chainID := <-b.chains:
			ev = providerEvent{bridge: b, kind: eventChainChanged, chainID: chainID}
		case err := <-errChan(b.accountsSub):
			ev = providerEvent{bridge: b, kind: eventBridgeFailed, err: err}
		case err := <-errChan(b.chainSub):
			ev = providerEvent{bridge: b, kind: eventBridgeFailed, err: err}
		case <-b.quit:
			return
		}

		select {
		case b.out <- ev:
		case <-b.quit:
			return
		}
		if ev.kind == eventBridgeFailed {
			return
		}
	}
}

// stop unsubscribes from the provider and waits for the forwarding goroutine
// to exit. It is safe to call more than once.
func (b *EventBridge) stop() {
	b.stopOnce.Do(func() {
		close(b.quit)
		if b.accountsSub != nil {
			b.accountsSub.Unsubscribe()
		}
		if b.chainSub != nil {
			b.chainSub.Unsubscribe()
		}
		b.wg.Wait()
		b.log.Debug("unsubscribed from provider events")
	})
}

// errChan returns the subscription's error channel, or nil (never ready) when
// there is no subscription.
func errChan(sub event.Subscription) <-chan error {
	if sub == nil {
		return nil
	}
	return sub.Err()
}
