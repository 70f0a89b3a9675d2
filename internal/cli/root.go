// Package cli implements the medchain command line.
package cli

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/medchain-labs/medchain/go/internal/config"
)

// Version is set at build time.
var Version = "dev"

// NewRootCmd builds the command tree with the default wiring.
func NewRootCmd() *cobra.Command {
	return newRootCmd(defaultDeps())
}

func newRootCmd(d deps) *cobra.Command {
	v := viper.New()
	var configFile string

	rootCmd := &cobra.Command{
		Use:           "medchain",
		Short:         "Track pharmaceutical batches on the Sepolia registry",
		Long:          "medchain connects a wallet to the Sepolia medicine registry and registers, transfers, delivers and looks up medicine batches.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "config file (default $HOME/.config/medchain/medchain.yaml)")
	flags.String("log-level", "info", "log level")
	flags.String("log-format", "text", "log format (text or json)")
	flags.String("wallet", "", "wallet provider: rpc, keystore or none")
	flags.String("endpoint", "", "wallet JSON-RPC endpoint")
	_ = v.BindPFlag(config.KeyLogLevel, flags.Lookup("log-level"))
	_ = v.BindPFlag(config.KeyLogFormat, flags.Lookup("log-format"))
	_ = v.BindPFlag(config.KeyWalletKind, flags.Lookup("wallet"))
	_ = v.BindPFlag(config.KeyWalletEndpoint, flags.Lookup("endpoint"))

	wire := func(cmd *cobra.Command) (*app, error) {
		return wireApp(v, configFile, cmd.ErrOrStderr(), d)
	}

	rootCmd.AddCommand(
		newVersionCmd(),
		newStatusCmd(wire),
		newServeCmd(wire, v),
		newMCPCmd(wire),
		newRegisterCmd(wire),
		newTransferCmd(wire),
		newDeliverCmd(wire),
		newLookupCmd(wire),
	)

	return rootCmd
}
