package service

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fbsobreira/gotron-sdk/pkg/address"
)

const (
	NetworkTron = "tron"
	NetworkEVM  = "evm"
)

// ValidAddress reports whether addr is well formed for any of networks.
// Only the format and checksum are checked, never the chain.
func ValidAddress(addr string, networks []string) bool {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return false
	}
	for _, network := range networks {
		switch strings.ToLower(strings.TrimSpace(network)) {
		case NetworkTron:
			if validTronAddress(addr) {
				return true
			}
		case NetworkEVM:
			if strings.HasPrefix(addr, "0x") && common.IsHexAddress(addr) {
				return true
			}
		}
	}
	return false
}

func validTronAddress(addr string) bool {
	if len(addr) != 34 || addr[0] != 'T' {
		return false
	}
	decoded, err := address.Base58ToAddress(addr)
	if err != nil {
		return false
	}
	return len(decoded) == address.AddressLength && decoded[0] == address.TronBytePrefix
}
