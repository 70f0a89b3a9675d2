package evm

import (
	"math/big"

	medchain "github.com/medchain-labs/medchain/go"
)

const (
	// RegistryAddress is the deployed MedicineRegistry on Sepolia
	RegistryAddress = "0x573C0D90761D099d2bb71813BEe1610A66D063a6"

	// MedicineRegistry function names
	FunctionCreateMedicine   = "createMedicine"
	FunctionTransferMedicine = "transferMedicine"
	FunctionConfirmDelivery  = "confirmDelivery"
	FunctionGetMedicine      = "getMedicine"

	// Sepolia chain id as the wallet reports it
	SepoliaChainIDHex = "0xaa36a7"
)

var (
	// Network chain IDs
	ChainIDSepolia = big.NewInt(11155111)

	// SepoliaNetwork is the network the registry is deployed on. It is what
	// gets registered with wallets that do not know Sepolia yet.
	SepoliaNetwork = medchain.NetworkDescriptor{
		ChainID:   ChainIDSepolia,
		ChainName: "Sepolia",
		RPCURLs:   []string{"https://sepolia.infura.io/v3/"},
		NativeCurrency: medchain.NativeCurrency{
			Name:     "ETH",
			Symbol:   "ETH",
			Decimals: 18,
		},
		BlockExplorerURLs: []string{"https://sepolia.etherscan.io"},
	}

	// MedicineRegistryABI is the call interface of the registry contract
	MedicineRegistryABI = []byte(`[
		{
			"inputs": [
				{"internalType": "string", "name": "_name", "type": "string"},
				{"internalType": "uint256", "name": "_batchNumber", "type": "uint256"},
				{"internalType": "string", "name": "_manufacturer", "type": "string"}
			],
			"name": "createMedicine",
			"outputs": [],
			"stateMutability": "nonpayable",
			"type": "function"
		},
		{
			"inputs": [
				{"internalType": "uint256", "name": "_batchNumber", "type": "uint256"},
				{"internalType": "address", "name": "_newHolder", "type": "address"}
			],
			"name": "transferMedicine",
			"outputs": [],
			"stateMutability": "nonpayable",
			"type": "function"
		},
		{
			"inputs": [
				{"internalType": "uint256", "name": "_batchNumber", "type": "uint256"}
			],
			"name": "confirmDelivery",
			"outputs": [],
			"stateMutability": "nonpayable",
			"type": "function"
		},
		{
			"inputs": [
				{"internalType": "uint256", "name": "_batchNumber", "type": "uint256"}
			],
			"name": "getMedicine",
			"outputs": [
				{"internalType": "string", "name": "name", "type": "string"},
				{"internalType": "string", "name": "manufacturer", "type": "string"},
				{"internalType": "address", "name": "currentHolder", "type": "address"},
				{"internalType": "bool", "name": "isDelivered", "type": "bool"}
			],
			"stateMutability": "view",
			"type": "function"
		}
	]`)
)

// NetworkWithRPC returns a copy of network using rpcURLs instead of the
// default endpoints. Empty input leaves the defaults in place.
func NetworkWithRPC(network medchain.NetworkDescriptor, rpcURLs ...string) medchain.NetworkDescriptor {
	var urls []string
	for _, u := range rpcURLs {
		if u != "" {
			urls = append(urls, u)
		}
	}
	if len(urls) > 0 {
		network.RPCURLs = urls
	}
	return network
}
