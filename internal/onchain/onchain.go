package onchain

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"

	"github.com/josh-kwaku/btc-wallet-core/internal/domain"
)

type Network string

const (
	NetworkMainnet Network = "mainnet"
	NetworkTestnet Network = "testnet"
	NetworkSignet  Network = "signet"
	NetworkRegtest Network = "regtest"
)

func (n Network) Params() (*chaincfg.Params, error) {
	switch n {
	case NetworkMainnet:
		return &chaincfg.MainNetParams, nil
	case NetworkTestnet:
		return &chaincfg.TestNet3Params, nil
	case NetworkSignet:
		return &chaincfg.SigNetParams, nil
	case NetworkRegtest:
		return &chaincfg.RegressionNetParams, nil
	}
	return nil, fmt.Errorf("unsupported bitcoin network %q", string(n))
}

// ValidateAddress parses address for the network and returns it in its
// canonical encoding.
func ValidateAddress(address string, network Network) (string, error) {
	params, err := network.Params()
	if err != nil {
		return "", fmt.Errorf("ValidateAddress: %w", err)
	}
	addr, err := btcutil.DecodeAddress(address, params)
	if err != nil {
		return "", fmt.Errorf("ValidateAddress: %s: %w", err.Error(), domain.ErrInvalidAddress)
	}
	if !addr.IsForNet(params) {
		return "", fmt.Errorf("ValidateAddress: not a %s address: %w", network, domain.ErrInvalidAddress)
	}
	return addr.EncodeAddress(), nil
}

const (
	MinTargetConfirmations = 1
	MaxTargetConfirmations = 1008
)

func CheckedToTargetConfs(n int) (int, error) {
	if n < MinTargetConfirmations || n > MaxTargetConfirmations {
		return 0, fmt.Errorf("CheckedToTargetConfs: %d not in [%d, %d]: %w",
			n, MinTargetConfirmations, MaxTargetConfirmations, domain.ErrInvalidTargetConfirmations)
	}
	return n, nil
}

// TemporaryTxHash stands in for the broadcast hash on a journal until the
// real one is known.
func TemporaryTxHash() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("TemporaryTxHash: %w", err)
	}
	return hex.EncodeToString(b), nil
}

type PayToAddressArgs struct {
	Address             string
	Amount              domain.BtcPaymentAmount
	TargetConfirmations int
	Description         string
}
