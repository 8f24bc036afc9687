package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/ayo6706/liquidity-settlement/internal/chain"
	"github.com/ayo6706/liquidity-settlement/internal/chain/simulated"
	"github.com/ayo6706/liquidity-settlement/internal/domain"
	"github.com/ayo6706/liquidity-settlement/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func utxoPolicy() UTXOPolicy {
	return UTXOPolicy{
		MinOperateValue: dec("100"),
		MinSplitValue:   dec("20000"),
		MaxCount:        200,
		MergeBatch:      100,
	}
}

func newUTXOFixture(outputs ...string) (*UTXOService, *simulated.Node) {
	client := simulated.NewNode()
	utxos := make([]models.UnspentOutput, 0, len(outputs))
	for i, amount := range outputs {
		utxos = append(utxos, models.UnspentOutput{TxID: fmt.Sprintf("tx-%d", i), Address: payoutAddress, Amount: dec(amount)})
	}
	client.SetUnspentOutputs(payoutAddress, utxos)
	net := chain.Network{Blockchain: domain.BlockchainDeFiChain, Client: client, PayoutAddress: payoutAddress, FeeAsset: "DFI"}
	return NewUTXOService(net, utxoPolicy()), client
}

func repeat(amount string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = amount
	}
	return out
}

func TestUTXOBelowMinimumDoesNothing(t *testing.T) {
	svc, client := newUTXOFixture("20", "30")

	action, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, UTXOActionNone, action)
	assert.Equal(t, 0, client.Calls("GetUnspentOutputs"))
	assert.Equal(t, 0, client.Calls("SplitOutput"))
	assert.Equal(t, 0, client.Calls("MergeOutputs"))
}

func TestUTXOSplit(t *testing.T) {
	cases := []struct {
		name    string
		biggest string
		factor  int
	}{
		{name: "just_above_threshold", biggest: "20001", factor: 2},
		{name: "large_output", biggest: "234575.123", factor: 12},
		{name: "exact_multiple", biggest: "40000", factor: 2},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			svc, client := newUTXOFixture(tc.biggest)

			action, err := svc.Run(context.Background())
			require.NoError(t, err)
			assert.Equal(t, UTXOActionSplit, action)
			assert.Equal(t, 1, client.Calls("SplitOutput"))

			outs, err := client.GetUnspentOutputs(context.Background(), payoutAddress)
			require.NoError(t, err)
			assert.Len(t, outs, tc.factor)
		})
	}
}

func TestUTXOSplitTakesPriorityOverMerge(t *testing.T) {
	svc, client := newUTXOFixture(append(repeat("1", 300), "25000")...)

	action, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, UTXOActionSplit, action)
	assert.Equal(t, 0, client.Calls("MergeOutputs"))
}

func TestUTXOMerge(t *testing.T) {
	svc, client := newUTXOFixture(repeat("1", 400)...)

	action, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, UTXOActionMerge, action)
	assert.Equal(t, 1, client.Calls("MergeOutputs"))

	outs, err := client.GetUnspentOutputs(context.Background(), payoutAddress)
	require.NoError(t, err)
	assert.Len(t, outs, 301)
}

func TestUTXONothingToDo(t *testing.T) {
	svc, client := newUTXOFixture(repeat("10", 150)...)

	action, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, UTXOActionNone, action)
	assert.Equal(t, 0, client.Calls("SplitOutput"))
	assert.Equal(t, 0, client.Calls("MergeOutputs"))
}

func TestUTXOClientFailure(t *testing.T) {
	svc, client := newUTXOFixture("30000")
	client.FailOn("SplitOutput", errors.New("wallet locked"))

	action, err := svc.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, UTXOActionNone, action)
}

func TestSplitFactor(t *testing.T) {
	assert.Equal(t, 2, splitFactor(dec("20001"), dec("20000")))
	assert.Equal(t, 12, splitFactor(dec("234575.123"), dec("20000")))
	assert.Equal(t, 1, splitFactor(dec("20000"), dec("20000")))
}
