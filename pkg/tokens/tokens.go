// Package tokens resolves token symbols and addresses per network and
// converts between display amounts and raw integer units.
package tokens

import (
	"math/big"
	"strings"
	"sync"
)

// Token describes one token on one network. Address is a hex contract
// address on account-nonce networks and a mint address on signature-hash
// networks.
type Token struct {
	Symbol   string
	Address  string
	Decimals uint8
	Native   bool
}

// ToRaw converts a token-unit amount into raw integer units. Amounts are
// floored: the fractional dust below one raw unit is dropped.
func (t Token) ToRaw(amount float64) *big.Int {
	f := new(big.Float).SetFloat64(amount)
	f.Mul(f, pow10(t.Decimals))
	raw, _ := f.Int(nil)
	if raw.Sign() < 0 {
		return big.NewInt(0)
	}
	return raw
}

// FromRaw converts raw integer units into token units.
func (t Token) FromRaw(raw *big.Int) float64 {
	if raw == nil {
		return 0
	}
	f := new(big.Float).SetInt(raw)
	f.Quo(f, pow10(t.Decimals))
	value, _ := f.Float64()
	return value
}

func pow10(decimals uint8) *big.Float {
	return new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
}

// Registry indexes tokens by symbol and by address per network.
type Registry struct {
	mu       sync.RWMutex
	bySymbol map[string]map[string]Token
	byAddr   map[string]map[string]Token
}

// NewRegistry creates an empty token registry.
func NewRegistry() *Registry {
	return &Registry{
		bySymbol: make(map[string]map[string]Token),
		byAddr:   make(map[string]map[string]Token),
	}
}

// Add registers a token on a network, replacing any previous entry with the
// same symbol.
func (r *Registry) Add(network string, t Token) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.bySymbol[network] == nil {
		r.bySymbol[network] = make(map[string]Token)
		r.byAddr[network] = make(map[string]Token)
	}
	r.bySymbol[network][strings.ToUpper(t.Symbol)] = t
	r.byAddr[network][strings.ToLower(t.Address)] = t
}

// Get resolves a token by symbol or address, case-insensitively.
func (r *Registry) Get(network, symbolOrAddress string) (Token, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if t, ok := r.bySymbol[network][strings.ToUpper(symbolOrAddress)]; ok {
		return t, true
	}
	if t, ok := r.byAddr[network][strings.ToLower(symbolOrAddress)]; ok {
		return t, true
	}
	return Token{}, false
}

// Native returns the network's native currency entry, if registered.
func (r *Registry) Native(network string) (Token, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, t := range r.bySymbol[network] {
		if t.Native {
			return t, true
		}
	}
	return Token{}, false
}

// Symbols lists the registered token symbols on a network.
func (r *Registry) Symbols(network string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	symbols := make([]string, 0, len(r.bySymbol[network]))
	for symbol := range r.bySymbol[network] {
		symbols = append(symbols, symbol)
	}
	return symbols
}
