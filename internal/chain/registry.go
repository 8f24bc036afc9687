package chain

import (
	"fmt"
	"slices"

	"github.com/ayo6706/liquidity-settlement/internal/domain"
)

// Network binds a chain client to the custodial addresses operated on it.
type Network struct {
	Blockchain       domain.Blockchain
	Client           Client
	LiquidityAddress string
	PayoutAddress    string
	// FeeAsset is the name of the base coin fees are paid in.
	FeeAsset string
}

// Registry resolves the network for a blockchain.
type Registry struct {
	networks map[domain.Blockchain]Network
}

func NewRegistry(networks ...Network) *Registry {
	r := &Registry{networks: make(map[domain.Blockchain]Network, len(networks))}
	for _, n := range networks {
		r.networks[n.Blockchain] = n
	}
	return r
}

func (r *Registry) Get(blockchain domain.Blockchain) (Network, error) {
	n, ok := r.networks[blockchain]
	if !ok {
		return Network{}, fmt.Errorf("%w: %s", ErrUnsupportedBlockchain, blockchain)
	}
	return n, nil
}

// Blockchains lists the registered networks.
func (r *Registry) Blockchains() []domain.Blockchain {
	out := make([]domain.Blockchain, 0, len(r.networks))
	for bc := range r.networks {
		out = append(out, bc)
	}
	slices.Sort(out)
	return out
}
