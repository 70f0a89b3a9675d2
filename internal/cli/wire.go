package cli

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	medchain "github.com/medchain-labs/medchain/go"
	"github.com/medchain-labs/medchain/go/evm"
	"github.com/medchain-labs/medchain/go/internal/config"
	"github.com/medchain-labs/medchain/go/internal/logging"
	"github.com/medchain-labs/medchain/go/providers"
)

type deps struct {
	detect func(cfg providers.Config, log *logrus.Entry) (medchain.WalletProvider, error)
}

func defaultDeps() deps {
	return deps{detect: providers.Detect}
}

type wireFunc func(cmd *cobra.Command) (*app, error)

type app struct {
	cfg      *config.Config
	log      *logrus.Entry
	provider medchain.WalletProvider
	manager  *medchain.Manager
	gateway  *medchain.Gateway
}

func wireApp(v *viper.Viper, configFile string, logOut io.Writer, d deps) (*app, error) {
	cfg, err := config.Load(v, configFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, logOut)
	if err != nil {
		return nil, fmt.Errorf("wire logger: %w", err)
	}
	log := logrus.NewEntry(logger).WithField("service", "medchain")

	provider, err := d.detect(cfg.ProviderConfig(), log)
	if err != nil {
		return nil, fmt.Errorf("wire wallet provider: %w", err)
	}

	binder, err := evm.NewBinder(cfg.Contract.Address)
	if err != nil {
		closeProvider(provider)
		return nil, fmt.Errorf("wire registry binder: %w", err)
	}

	manager, err := medchain.NewManager(medchain.ManagerConfig{
		Provider: provider,
		Network:  cfg.RequiredNetwork(),
		Binder:   binder,
		Notifier: medchain.NewNotifier(cfg.Notify.TTL),
		Logger:   log,
	})
	if err != nil {
		closeProvider(provider)
		return nil, fmt.Errorf("wire connection manager: %w", err)
	}

	return &app{
		cfg:      cfg,
		log:      log,
		provider: provider,
		manager:  manager,
		gateway:  medchain.NewGateway(manager, medchain.WithGatewayLogger(log)),
	}, nil
}

func (a *app) Close() {
	a.manager.Close()
	closeProvider(a.provider)
}

func closeProvider(p medchain.WalletProvider) {
	if c, ok := p.(interface{ Close() }); ok && medchain.IsProviderAvailable(p) {
		c.Close()
	}
}
