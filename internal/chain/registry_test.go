package chain

import (
	"testing"

	"github.com/ayo6706/liquidity-settlement/internal/domain"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	reg := NewRegistry(Network{Blockchain: domain.BlockchainDeFiChain, Client: FuncClient{}})

	_, err := reg.Get(domain.BlockchainDeFiChain)
	require.NoError(t, err)

	_, err = reg.Get(domain.BlockchainBitcoin)
	require.ErrorIs(t, err, ErrUnsupportedBlockchain)
}
