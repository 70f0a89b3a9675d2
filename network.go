package medchain

import (
	"context"
	"math/big"

	"github.com/sirupsen/logrus"
)

// Stages reported in network_error details
const (
	NetworkStageRead   = "read"
	NetworkStageSwitch = "switch"
	NetworkStageAdd    = "add"
)

// NetworkVerifier checks the provider's active chain against the required
// network and corrects it when asked to.
type NetworkVerifier struct {
	provider WalletProvider
	network  NetworkDescriptor
	log      *logrus.Entry
}

// NewNetworkVerifier creates a verifier for the given required network.
func NewNetworkVerifier(provider WalletProvider, network NetworkDescriptor, log *logrus.Entry) *NetworkVerifier {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &NetworkVerifier{
		provider: provider,
		network:  network,
		log:      log.WithField("component", "network"),
	}
}

// Network returns the required network descriptor.
func (v *NetworkVerifier) Network() NetworkDescriptor {
	return v.network
}

// CurrentChainID asks the provider for its active chain.
func (v *NetworkVerifier) CurrentChainID(ctx context.Context) (*big.Int, error) {
	if !IsProviderAvailable(v.provider) {
		return nil, providerMissingError()
	}
	chainID, err := v.provider.ChainID(ctx)
	if err != nil {
		return nil, wrapGatewayError(ErrCodeNetworkError, "failed to read chain id", err, map[string]interface{}{
			"stage": NetworkStageRead,
		})
	}
	return chainID, nil
}

// IsOnRequiredNetwork reports whether the provider is on the required chain.
// A provider failure counts as not being on it.
func (v *NetworkVerifier) IsOnRequiredNetwork(ctx context.Context) bool {
	chainID, err := v.CurrentChainID(ctx)
	if err != nil {
		v.log.WithError(err).Debug("chain id unavailable")
		return false
	}
	return v.network.Matches(chainID)
}

// SwitchToRequiredNetwork moves the provider to the required chain, adding the
// network first if the provider does not know it. Calling it while already on
// the required chain is a no-op.
func (v *NetworkVerifier) SwitchToRequiredNetwork(ctx context.Context) error {
	if !IsProviderAvailable(v.provider) {
		return providerMissingError()
	}
	if v.IsOnRequiredNetwork(ctx) {
		return nil
	}

	log := v.log.WithField("chain_id", v.network.ChainIDHex())
	err := v.provider.SwitchChain(ctx, v.network.ChainID)
	if err == nil {
		log.Info("switched network")
		return nil
	}

	if IsUnrecognizedChain(err) {
		log.Info("network unknown to wallet, adding it")
		if addErr := v.provider.AddChain(ctx, v.network); addErr != nil {
			log.WithError(addErr).Warn("add network failed")
			return networkError(NetworkStageAdd, v.network, addErr)
		}
		return nil
	}

	log.WithError(err).Warn("switch network failed")
	return networkError(NetworkStageSwitch, v.network, err)
}

func networkError(stage string, network NetworkDescriptor, cause error) *GatewayError {
	details := map[string]interface{}{
		"stage":    stage,
		"network":  network.ChainName,
		"chain_id": network.ChainIDHex(),
		"rejected": IsUserRejection(cause),
	}
	var message string
	switch {
	case stage == NetworkStageAdd && IsUserRejection(cause):
		message = "network add rejected by user"
	case stage == NetworkStageAdd:
		message = "failed to add network"
	case IsUserRejection(cause):
		message = "network switch rejected by user"
	default:
		message = "failed to switch network"
	}
	return wrapGatewayError(ErrCodeNetworkError, message, cause, details)
}
