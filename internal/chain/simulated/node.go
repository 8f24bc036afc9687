package simulated

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/ayo6706/liquidity-settlement/internal/chain"
	"github.com/ayo6706/liquidity-settlement/internal/models"
	"github.com/shopspring/decimal"
)

// Node simulates a chain node in memory. It keeps per-address balances,
// a price table and the UTXO set, and records every broadcast as a
// transaction. Latency and FailureRate make broadcasts behave like a flaky
// node; both default to zero.
type Node struct {
	// FailureRate is the probability (0.0 to 1.0) that a broadcast fails.
	FailureRate float64
	// MaxLatency bounds the random delay added to every broadcast.
	MaxLatency time.Duration
	// AutoConfirm marks broadcasts confirmed immediately.
	AutoConfirm bool
	// Fee is charged on every broadcast transaction.
	Fee decimal.Decimal

	mu       sync.Mutex
	seq      int
	balances map[string]map[string]decimal.Decimal
	prices   map[[2]string]decimal.Decimal
	txs      map[string]chain.Transaction
	utxos    map[string][]models.UnspentOutput
	failures map[string]error
	calls    map[string]int
}

var _ chain.Client = (*Node)(nil)

// NewNode creates a deterministic node: no latency, no random failures,
// broadcasts auto-confirmed with a 0.0001 fee.
func NewNode() *Node {
	return &Node{
		AutoConfirm: true,
		Fee:         decimal.RequireFromString("0.0001"),
		balances:    make(map[string]map[string]decimal.Decimal),
		prices:      make(map[[2]string]decimal.Decimal),
		txs:         make(map[string]chain.Transaction),
		utxos:       make(map[string][]models.UnspentOutput),
		failures:    make(map[string]error),
		calls:       make(map[string]int),
	}
}

// SetBalance sets the balance of asset held by address.
func (m *Node) SetBalance(address, asset string, amount decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setBalance(address, asset, amount)
}

func (m *Node) setBalance(address, asset string, amount decimal.Decimal) {
	if m.balances[address] == nil {
		m.balances[address] = make(map[string]decimal.Decimal)
	}
	m.balances[address][asset] = amount
}

func (m *Node) balance(address, asset string) decimal.Decimal {
	return m.balances[address][asset]
}

// SetPrice sets how many units of source buy one unit of target.
func (m *Node) SetPrice(source, target string, price decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prices[[2]string{source, target}] = price
}

// SetUnspentOutputs replaces the UTXO set of address.
func (m *Node) SetUnspentOutputs(address string, outputs []models.UnspentOutput) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.utxos[address] = append([]models.UnspentOutput(nil), outputs...)
}

// FailOn makes every call of method return err until cleared with a nil err.
func (m *Node) FailOn(method string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failures, method)
		return
	}
	m.failures[method] = err
}

// Calls returns how many times method was invoked.
func (m *Node) Calls(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[method]
}

// Confirm marks a recorded transaction confirmed.
func (m *Node) Confirm(txID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if tx, ok := m.txs[txID]; ok {
		tx.Confirmed = true
		m.txs[txID] = tx
	}
}

// Transactions returns a copy of the recorded transactions.
func (m *Node) Transactions() []chain.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]chain.Transaction, 0, len(m.txs))
	for _, tx := range m.txs {
		out = append(out, tx)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *Node) enter(method string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[method]++
	return m.failures[method]
}

// broadcast simulates node latency and flakiness, then records a transaction.
func (m *Node) broadcast(ctx context.Context, method string, amounts map[string]decimal.Decimal, apply func() error) (string, error) {
	if err := m.enter(method); err != nil {
		return "", err
	}
	if m.MaxLatency > 0 {
		delay := time.Duration(rand.Int63n(int64(m.MaxLatency)))
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", fmt.Errorf("%s canceled: %w", method, ctx.Err())
		}
	}
	if m.FailureRate > 0 && rand.Float64() < m.FailureRate {
		return "", fmt.Errorf("%s: node temporarily unavailable", method)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if apply != nil {
		if err := apply(); err != nil {
			return "", err
		}
	}
	m.seq++
	id := fmt.Sprintf("SIM-%s-%06d", time.Now().Format("20060102"), m.seq)
	m.txs[id] = chain.Transaction{ID: id, Confirmed: m.AutoConfirm, Fee: m.Fee, Amounts: amounts}
	return id, nil
}

func (m *Node) GetBalance(ctx context.Context, address, asset string) (decimal.Decimal, error) {
	if err := m.enter("GetBalance"); err != nil {
		return decimal.Zero, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balance(address, asset), nil
}

func (m *Node) GetUtxoBalance(ctx context.Context, address string) (decimal.Decimal, error) {
	if err := m.enter("GetUtxoBalance"); err != nil {
		return decimal.Zero, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	total := decimal.Zero
	for _, out := range m.utxos[address] {
		total = total.Add(out.Amount)
	}
	return total, nil
}

func (m *Node) price(source, target string) (decimal.Decimal, error) {
	if source == target {
		return decimal.NewFromInt(1), nil
	}
	if p, ok := m.prices[[2]string{source, target}]; ok {
		return p, nil
	}
	if p, ok := m.prices[[2]string{target, source}]; ok && p.IsPositive() {
		return decimal.NewFromInt(1).DivRound(p, 16), nil
	}
	return decimal.Zero, fmt.Errorf("no price for %s/%s", source, target)
}

func (m *Node) TestSwap(ctx context.Context, sourceAsset, targetAsset string, amount decimal.Decimal) (decimal.Decimal, error) {
	if err := m.enter("TestSwap"); err != nil {
		return decimal.Zero, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, err := m.price(sourceAsset, targetAsset)
	if err != nil {
		return decimal.Zero, err
	}
	return amount.DivRound(p, 8), nil
}

func (m *Node) GetReferencePrice(ctx context.Context, sourceAsset, targetAsset string) (decimal.Decimal, error) {
	if err := m.enter("GetReferencePrice"); err != nil {
		return decimal.Zero, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.price(sourceAsset, targetAsset)
}

func (m *Node) GetTransaction(ctx context.Context, txID string) (chain.Transaction, error) {
	if err := m.enter("GetTransaction"); err != nil {
		return chain.Transaction{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.txs[txID]
	if !ok {
		return chain.Transaction{}, fmt.Errorf("%w: %s", chain.ErrTransactionNotFound, txID)
	}
	return tx, nil
}

func (m *Node) GetUnspentOutputs(ctx context.Context, address string) ([]models.UnspentOutput, error) {
	if err := m.enter("GetUnspentOutputs"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.UnspentOutput(nil), m.utxos[address]...), nil
}

func (m *Node) debit(address, asset string, amount decimal.Decimal) error {
	bal := m.balance(address, asset)
	if bal.LessThan(amount) {
		return fmt.Errorf("insufficient %s at %s: have %s, need %s", asset, address, bal, amount)
	}
	m.setBalance(address, asset, bal.Sub(amount))
	return nil
}

func (m *Node) credit(address, asset string, amount decimal.Decimal) {
	m.setBalance(address, asset, m.balance(address, asset).Add(amount))
}

func (m *Node) ExecuteSwap(ctx context.Context, req chain.SwapRequest) (string, error) {
	m.mu.Lock()
	p, err := m.price(req.SourceAsset, req.TargetAsset)
	m.mu.Unlock()
	if err != nil {
		return "", err
	}
	if req.MaxPrice.Valid && p.GreaterThan(req.MaxPrice.Decimal) {
		return "", fmt.Errorf("swap price %s exceeds max price %s", p, req.MaxPrice.Decimal)
	}
	out := req.SourceAmount.DivRound(p, 8)
	return m.broadcast(ctx, "ExecuteSwap", map[string]decimal.Decimal{req.TargetAsset: out}, func() error {
		if err := m.debit(req.Address, req.SourceAsset, req.SourceAmount); err != nil {
			return err
		}
		m.credit(req.Address, req.TargetAsset, out)
		return nil
	})
}

func (m *Node) Transfer(ctx context.Context, from, to, asset string, amount decimal.Decimal) (string, error) {
	if from == to {
		_ = m.enter("Transfer")
		return "", models.ErrTransferNotRequired
	}
	return m.broadcast(ctx, "Transfer", map[string]decimal.Decimal{asset: amount}, func() error {
		if err := m.debit(from, asset, amount); err != nil {
			return err
		}
		m.credit(to, asset, amount)
		return nil
	})
}

func (m *Node) TransferMany(ctx context.Context, from, asset string, outputs []chain.TransferOutput) (string, error) {
	total := decimal.Zero
	for _, out := range outputs {
		total = total.Add(out.Amount)
	}
	return m.broadcast(ctx, "TransferMany", map[string]decimal.Decimal{asset: total}, func() error {
		if err := m.debit(from, asset, total); err != nil {
			return err
		}
		for _, out := range outputs {
			m.credit(out.Address, asset, out.Amount)
		}
		return nil
	})
}

func (m *Node) AddLiquidity(ctx context.Context, req chain.AddLiquidityRequest) (string, error) {
	pair := req.Legs[0].Asset + "-" + req.Legs[1].Asset
	shares := req.Legs[0].Amount
	return m.broadcast(ctx, "AddLiquidity", map[string]decimal.Decimal{pair: shares}, func() error {
		for _, leg := range req.Legs {
			if err := m.debit(req.Address, leg.Asset, leg.Amount); err != nil {
				return err
			}
		}
		m.credit(req.Address, pair, shares)
		return nil
	})
}

func (m *Node) MergeOutputs(ctx context.Context, address string, count int) (string, error) {
	return m.broadcast(ctx, "MergeOutputs", nil, func() error {
		outs := m.utxos[address]
		if count > len(outs) {
			count = len(outs)
		}
		if count < 2 {
			return nil
		}
		sort.Slice(outs, func(i, j int) bool { return outs[i].Amount.LessThan(outs[j].Amount) })
		merged := decimal.Zero
		for _, out := range outs[:count] {
			merged = merged.Add(out.Amount)
		}
		rest := append([]models.UnspentOutput(nil), outs[count:]...)
		m.utxos[address] = append(rest, models.UnspentOutput{TxID: "merged", Address: address, Amount: merged})
		return nil
	})
}

func (m *Node) SplitOutput(ctx context.Context, address string, factor int) (string, error) {
	return m.broadcast(ctx, "SplitOutput", nil, func() error {
		outs := m.utxos[address]
		if len(outs) == 0 || factor < 2 {
			return nil
		}
		sort.Slice(outs, func(i, j int) bool { return outs[i].Amount.GreaterThan(outs[j].Amount) })
		biggest := outs[0]
		part := biggest.Amount.Div(decimal.NewFromInt(int64(factor))).Truncate(8)
		split := append([]models.UnspentOutput(nil), outs[1:]...)
		for i := 0; i < factor; i++ {
			split = append(split, models.UnspentOutput{TxID: "split", Vout: uint32(i), Address: address, Amount: part})
		}
		m.utxos[address] = split
		return nil
	})
}
