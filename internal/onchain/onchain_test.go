package onchain

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/btc-wallet-core/internal/domain"
)

func TestValidateAddress(t *testing.T) {
	tests := []struct {
		name    string
		address string
		network Network
		wantErr error
	}{
		{name: "mainnet p2pkh", address: "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa", network: NetworkMainnet},
		{name: "mainnet p2wpkh", address: "bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4", network: NetworkMainnet},
		{name: "testnet p2wpkh", address: "tb1qw508d6qejxtdg4y5r3zarvary0c5xw7kxpjzsx", network: NetworkTestnet},
		{name: "mainnet address on testnet", address: "bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4", network: NetworkTestnet, wantErr: domain.ErrInvalidAddress},
		{name: "testnet address on mainnet", address: "tb1qw508d6qejxtdg4y5r3zarvary0c5xw7kxpjzsx", network: NetworkMainnet, wantErr: domain.ErrInvalidAddress},
		{name: "bad checksum", address: "bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t5", network: NetworkMainnet, wantErr: domain.ErrInvalidAddress},
		{name: "garbage", address: "not-an-address", network: NetworkMainnet, wantErr: domain.ErrInvalidAddress},
		{name: "empty", address: "", network: NetworkMainnet, wantErr: domain.ErrInvalidAddress},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ValidateAddress(tc.address, tc.network)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.address, got)
		})
	}
}

func TestValidateAddress_UnknownNetwork(t *testing.T) {
	_, err := ValidateAddress("1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa", Network("litecoin"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrInvalidAddress)
}

func TestCheckedToTargetConfs(t *testing.T) {
	tests := []struct {
		in      int
		wantErr bool
	}{
		{in: 0, wantErr: true},
		{in: -3, wantErr: true},
		{in: 1},
		{in: 6},
		{in: 1008},
		{in: 1009, wantErr: true},
	}

	for _, tc := range tests {
		got, err := CheckedToTargetConfs(tc.in)
		if tc.wantErr {
			require.ErrorIs(t, err, domain.ErrInvalidTargetConfirmations, "input %d", tc.in)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tc.in, got)
	}
}

func TestTemporaryTxHash(t *testing.T) {
	a, err := TemporaryTxHash()
	require.NoError(t, err)
	b, err := TemporaryTxHash()
	require.NoError(t, err)

	assert.Len(t, a, 64)
	_, err = hex.DecodeString(a)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}
