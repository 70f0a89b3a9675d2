// Package config loads medchain settings from a YAML file and MEDCHAIN_
// environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"

	medchain "github.com/medchain-labs/medchain/go"
	"github.com/medchain-labs/medchain/go/evm"
	"github.com/medchain-labs/medchain/go/providers"
)

const (
	configName = "medchain"
	configType = "yaml"
	envPrefix  = "MEDCHAIN"
)

// Config keys
const (
	KeyWalletKind       = "wallet.kind"
	KeyWalletEndpoint   = "wallet.endpoint"
	KeyWalletPrivateKey = "wallet.private_key"
	KeyNetworkRPCURLs   = "network.rpc_urls"
	KeyNetworkInfuraKey = "network.infura_key"
	KeyContractAddress  = "contract.address"
	KeyHTTPAddr         = "http.addr"
	KeyHTTPReplayTTL    = "http.idempotency_ttl"
	KeyLogLevel         = "log.level"
	KeyLogFormat        = "log.format"
	KeyNotifyTTL        = "notify.ttl"
)

// Config is the resolved process configuration
type Config struct {
	Wallet   WalletConfig
	Network  NetworkConfig
	Contract ContractConfig
	HTTP     HTTPConfig
	Log      LogConfig
	Notify   NotifyConfig
}

type WalletConfig struct {
	Kind       string
	Endpoint   string
	PrivateKey string
}

type NetworkConfig struct {
	RPCURLs   []string
	InfuraKey string
}

type ContractConfig struct {
	Address string
}

type HTTPConfig struct {
	Addr string
	// ReplayTTL is how long Idempotency-Key receipts are replayed.
	ReplayTTL time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

type NotifyConfig struct {
	TTL time.Duration
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyWalletKind, "")
	v.SetDefault(KeyWalletEndpoint, "")
	v.SetDefault(KeyWalletPrivateKey, "")
	v.SetDefault(KeyNetworkRPCURLs, []string{})
	v.SetDefault(KeyNetworkInfuraKey, "")
	v.SetDefault(KeyContractAddress, evm.RegistryAddress)
	v.SetDefault(KeyHTTPAddr, ":8080")
	v.SetDefault(KeyHTTPReplayTTL, 10*time.Minute)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "text")
	v.SetDefault(KeyNotifyTTL, medchain.DefaultNotificationTTL)
}

// Load reads configFile, or medchain.yaml from $HOME/.config/medchain or the
// working directory when configFile is empty. A missing default file is not
// an error. Environment variables override file values.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	if v == nil {
		v = viper.New()
	}
	SetDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(configName)
		v.SetConfigType(configType)
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "medchain"))
		}
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := &Config{
		Wallet: WalletConfig{
			Kind:       strings.ToLower(strings.TrimSpace(v.GetString(KeyWalletKind))),
			Endpoint:   strings.TrimSpace(v.GetString(KeyWalletEndpoint)),
			PrivateKey: strings.TrimSpace(v.GetString(KeyWalletPrivateKey)),
		},
		Network: NetworkConfig{
			RPCURLs:   v.GetStringSlice(KeyNetworkRPCURLs),
			InfuraKey: strings.TrimSpace(v.GetString(KeyNetworkInfuraKey)),
		},
		Contract: ContractConfig{Address: strings.TrimSpace(v.GetString(KeyContractAddress))},
		HTTP: HTTPConfig{
			Addr:      v.GetString(KeyHTTPAddr),
			ReplayTTL: v.GetDuration(KeyHTTPReplayTTL),
		},
		Log: LogConfig{
			Level:  v.GetString(KeyLogLevel),
			Format: v.GetString(KeyLogFormat),
		},
		Notify: NotifyConfig{TTL: v.GetDuration(KeyNotifyTTL)},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail later at wiring time.
func (c *Config) Validate() error {
	switch c.Wallet.Kind {
	case "", providers.KindNone, providers.KindRPC, providers.KindKeystore:
	default:
		return fmt.Errorf("%s: unknown wallet kind %q", KeyWalletKind, c.Wallet.Kind)
	}
	if c.Contract.Address != "" && !common.IsHexAddress(c.Contract.Address) {
		return fmt.Errorf("%s: invalid address %q", KeyContractAddress, c.Contract.Address)
	}
	if strings.TrimSpace(c.HTTP.Addr) == "" {
		return fmt.Errorf("%s is empty", KeyHTTPAddr)
	}
	if c.HTTP.ReplayTTL <= 0 {
		return fmt.Errorf("%s must be positive", KeyHTTPReplayTTL)
	}
	if c.Notify.TTL <= 0 {
		return fmt.Errorf("%s must be positive", KeyNotifyTTL)
	}
	return nil
}

func infuraRPC(chain, key string) string {
	return fmt.Sprintf("https://%s.infura.io/v3/%s", chain, key)
}

// RequiredNetwork returns the Sepolia descriptor with the configured RPC
// endpoints applied. An Infura key fills the first RPC slot.
func (c *Config) RequiredNetwork() medchain.NetworkDescriptor {
	network := evm.NetworkWithRPC(evm.SepoliaNetwork, c.Network.RPCURLs...)
	network.RPCURLs = append([]string(nil), network.RPCURLs...)

	if c.Network.InfuraKey != "" {
		url := infuraRPC("sepolia", c.Network.InfuraKey)
		if len(network.RPCURLs) == 0 {
			network.RPCURLs = []string{url}
		} else {
			network.RPCURLs[0] = url
		}
	}
	return network
}

// ProviderConfig returns the wallet provider selection.
func (c *Config) ProviderConfig() providers.Config {
	return providers.Config{
		Kind:       c.Wallet.Kind,
		Endpoint:   c.Wallet.Endpoint,
		PrivateKey: c.Wallet.PrivateKey,
		Networks:   []medchain.NetworkDescriptor{c.RequiredNetwork()},
	}
}
