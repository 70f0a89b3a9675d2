// Package providers resolves the configured wallet provider.
package providers

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	medchain "github.com/medchain-labs/medchain/go"
	"github.com/medchain-labs/medchain/go/providers/keystore"
	"github.com/medchain-labs/medchain/go/providers/rpc"
)

// Provider kinds
const (
	KindNone     = "none"
	KindRPC      = "rpc"
	KindKeystore = "keystore"
)

// Config selects and configures a wallet provider
type Config struct {
	Kind       string
	Endpoint   string
	PrivateKey string

	// Networks the keystore wallet knows; the first is active initially
	Networks []medchain.NetworkDescriptor
}

// Detect builds the configured provider without contacting it. It returns
// nil, nil when no wallet is configured, which the connection manager treats
// as a missing provider.
func Detect(cfg Config, log *logrus.Entry) (medchain.WalletProvider, error) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	kind := strings.ToLower(strings.TrimSpace(cfg.Kind))
	if kind == "" {
		kind = inferKind(cfg)
	}

	switch kind {
	case KindNone:
		log.Info("no wallet provider configured")
		return nil, nil

	case KindRPC:
		if cfg.Endpoint == "" {
			return nil, fmt.Errorf("wallet kind %q requires an endpoint", kind)
		}
		p, err := rpc.New(cfg.Endpoint, rpc.WithLogger(log))
		if err != nil {
			return nil, err
		}
		log.WithField("endpoint", cfg.Endpoint).Info("using rpc wallet provider")
		return p, nil

	case KindKeystore:
		if cfg.PrivateKey == "" {
			return nil, fmt.Errorf("wallet kind %q requires a private key", kind)
		}
		w, err := keystore.New(cfg.PrivateKey, cfg.Networks, keystore.WithLogger(log))
		if err != nil {
			return nil, err
		}
		log.WithField("account", w.Address().Hex()).Info("using keystore wallet provider")
		return w, nil

	default:
		return nil, fmt.Errorf("unknown wallet kind %q", cfg.Kind)
	}
}

func inferKind(cfg Config) string {
	switch {
	case cfg.Endpoint != "":
		return KindRPC
	case cfg.PrivateKey != "":
		return KindKeystore
	default:
		return KindNone
	}
}
