package prime

import (
	"fmt"
	"strings"
)

// Network identifies a custody network as Prime names it
type Network struct {
	Id   string
	Type string
}

var networks = map[string]Network{
	"BTC":   {Id: "bitcoin", Type: "mainnet"},
	"ERC20": {Id: "ethereum", Type: "mainnet"},
	"TRC20": {Id: "tron", Type: "mainnet"},
	"BEP20": {Id: "bnb", Type: "mainnet"},
	"XRP":   {Id: "ripple", Type: "mainnet"},
	"SOL":   {Id: "solana", Type: "mainnet"},
}

// NetworkFor maps a platform chain name to its custody network
func NetworkFor(chain string) (Network, error) {
	n, ok := networks[strings.ToUpper(strings.TrimSpace(chain))]
	if !ok {
		return Network{}, fmt.Errorf("chain %q is not supported by custody", chain)
	}
	return n, nil
}

// ChainFor maps a custody network id back to the platform chain name
func ChainFor(networkId string) string {
	id := strings.ToLower(networkId)
	id = strings.TrimSuffix(id, "-mainnet")
	for chain, n := range networks {
		if n.Id == id {
			return chain
		}
	}
	return strings.ToUpper(networkId)
}
