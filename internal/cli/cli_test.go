package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	medchain "github.com/medchain-labs/medchain/go"
	"github.com/medchain-labs/medchain/go/evm"
	"github.com/medchain-labs/medchain/go/providers"
	"github.com/medchain-labs/medchain/go/test/mocks/wallet"
)

var alice = common.HexToAddress("0xA11cE00000000000000000000000000000000001")

func mockDeps(w *wallet.Wallet) deps {
	return deps{detect: func(providers.Config, *logrus.Entry) (medchain.WalletProvider, error) {
		if w == nil {
			return nil, nil
		}
		return w, nil
	}}
}

func executeCLI(t *testing.T, d deps, args ...string) (string, string, error) {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Chdir(home)

	root := newRootCmd(d)
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetArgs(append([]string{"--log-level", "error"}, args...))

	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func TestVersion(t *testing.T) {
	stdout, _, err := executeCLI(t, mockDeps(nil), "version")
	require.NoError(t, err)
	assert.Equal(t, Version+"\n", stdout)
}

func TestStatusWithoutProvider(t *testing.T) {
	stdout, _, err := executeCLI(t, mockDeps(nil), "status", "--json")
	require.NoError(t, err)

	var view statusView
	require.NoError(t, json.Unmarshal([]byte(stdout), &view))
	assert.False(t, view.ProviderAvailable)
	assert.Equal(t, "disconnected", view.State)
	assert.Equal(t, evm.SepoliaChainIDHex, view.ChainID)
	assert.Equal(t, evm.RegistryAddress, view.Contract)
}

func TestStatusConnect(t *testing.T) {
	stdout, _, err := executeCLI(t, mockDeps(wallet.New(evm.ChainIDSepolia, alice)), "status", "--connect")
	require.NoError(t, err)
	assert.Contains(t, stdout, "state:    connected")
	assert.Contains(t, stdout, "account:  "+alice.Hex())
}

func TestBatchCommands(t *testing.T) {
	w := wallet.New(evm.ChainIDSepolia, alice)
	d := mockDeps(w)

	stdout, _, err := executeCLI(t, d, "register", "--name", "Aspirin", "--batch", "1001", "--manufacturer", "Acme")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Medicine created! Batch: 1001")
	assert.Contains(t, stdout, "tx: 0x")

	holder := "0xB0b0000000000000000000000000000000000002"
	stdout, _, err = executeCLI(t, d, "transfer", "--batch", "1001", "--to", holder)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Medicine transferred successfully!")

	stdout, _, err = executeCLI(t, d, "deliver", "--batch", "1001")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Delivery confirmed successfully!")

	stdout, _, err = executeCLI(t, d, "lookup", "--batch", "1001", "--json")
	require.NoError(t, err)
	var record medchain.MedicineRecord
	require.NoError(t, json.Unmarshal([]byte(stdout), &record))
	assert.Equal(t, "Aspirin", record.Name)
	assert.Equal(t, common.HexToAddress(holder).Hex(), record.CurrentHolder)
	assert.True(t, record.IsDelivered)

	_, _, err = executeCLI(t, d, "lookup", "--batch", "999999")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Medicine not found or invalid batch number")
	assert.True(t, medchain.IsCode(err, medchain.ErrCodeRemoteFailure))
}

func TestBatchCommandErrors(t *testing.T) {
	t.Run("invalid batch", func(t *testing.T) {
		_, _, err := executeCLI(t, mockDeps(wallet.New(evm.ChainIDSepolia, alice)), "deliver", "--batch", "abc")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Please enter batch number")
		assert.True(t, medchain.IsCode(err, medchain.ErrCodeInvalidInput))
	})

	t.Run("missing fields", func(t *testing.T) {
		_, _, err := executeCLI(t, mockDeps(wallet.New(evm.ChainIDSepolia, alice)), "register", "--batch", "3")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Please fill all fields")
	})

	t.Run("no provider", func(t *testing.T) {
		_, _, err := executeCLI(t, mockDeps(nil), "lookup", "--batch", "1")
		require.Error(t, err)
		assert.True(t, medchain.IsCode(err, medchain.ErrCodeProviderMissing))
	})

	t.Run("user rejects connection", func(t *testing.T) {
		w := wallet.New(evm.ChainIDSepolia, alice)
		w.RequestErr = medchain.NewProviderError(medchain.ProviderCodeUserRejected, "User rejected the request.")
		_, _, err := executeCLI(t, mockDeps(w), "lookup", "--batch", "1")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Connection rejected")
	})
}

func TestConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "medchain.yaml")
	require.NoError(t, os.WriteFile(path, []byte("contract:\n  address: \"0x00000000000000000000000000000000000000aa\"\n"), 0o600))

	stdout, _, err := executeCLI(t, mockDeps(nil), "--config", path, "status", "--json")
	require.NoError(t, err)
	var view statusView
	require.NoError(t, json.Unmarshal([]byte(stdout), &view))
	assert.Equal(t, "0x00000000000000000000000000000000000000aa", view.Contract)

	_, _, err = executeCLI(t, mockDeps(nil), "--config", filepath.Join(dir, "missing.yaml"), "status")
	assert.Error(t, err)
}
