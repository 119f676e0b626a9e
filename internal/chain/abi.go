// Package chain talks to the prediction-market contract over JSON-RPC.
package chain

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

//go:embed ppm.abi.json
var abiJSON string

var contractABI = mustParseABI(abiJSON)

func mustParseABI(s string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic(fmt.Sprintf("chain: parse contract abi: %v", err))
	}
	return parsed
}

// ABI returns the parsed contract ABI.
func ABI() abi.ABI { return contractABI }
