// Package registry maps known exchange-controlled addresses to exchange names
// and stablecoin symbols to their contract metadata.
package registry

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/navid-fn/flowradar/internal/models"
)

// Registry is read-only after construction and safe for concurrent use.
type Registry struct {
	byAddress   map[string]string
	exchanges   map[string][]string
	stablecoins []models.Stablecoin
	bySymbol    map[string]models.Stablecoin
}

// DefaultExchanges holds well-known Ethereum hot wallets per exchange key.
var DefaultExchanges = map[string][]string{
	"binance": {
		"0x28C6c06298d514Db089934071355E5743bf21d60",
		"0x21a31Ee1afC51d94C2eFcCAa2092aD1028285549",
		"0xDFd5293D8e347dFe59E90eFd55b2956a1343963d",
		"0xF977814e90dA44bFA03b6295A0616a897441aceC",
	},
	"coinbase": {
		"0x71660c4005BA85c37ccec55d0C4493E66Fe775d3",
		"0x503828976D22510aad0201ac7EC88293211D23Da",
		"0xA9D1e08C7793af67e9d92fe308d5697FB81d3E43",
	},
	"kraken": {
		"0x2910543Af39abA0Cd09dBb2D50200b3E800A63D2",
		"0x267be1C1D684F78cb4F6a176C4911b741E4Ffdc0",
	},
	"okx": {
		"0x6cC5F688a315f3dC28A7781717a9A798a59fDA7b",
	},
	"bitfinex": {
		"0x876EabF441B2EE5B5b0554Fd502a8E0600950cFa",
	},
}

// DefaultStablecoins are the tracked mainnet contracts.
var DefaultStablecoins = []models.Stablecoin{
	{Symbol: "USDT", Address: "0xdAC17F958D2ee523a2206206994597C13D831ec7", Decimals: 6},
	{Symbol: "USDC", Address: "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", Decimals: 6},
	{Symbol: "DAI", Address: "0x6B175474E89094C44Da98b954EedeAC495271d0F", Decimals: 18},
	{Symbol: "BUSD", Address: "0x4Fabb145d64652a948d72533023f6E7A623C7C53", Decimals: 18},
}

// New builds a registry from an exchange table and a stablecoin list.
func New(exchanges map[string][]string, stablecoins []models.Stablecoin) *Registry {
	r := &Registry{
		byAddress: make(map[string]string),
		exchanges: make(map[string][]string, len(exchanges)),
		bySymbol:  make(map[string]models.Stablecoin, len(stablecoins)),
	}
	for name, addrs := range exchanges {
		key := strings.ToLower(name)
		r.exchanges[key] = append([]string(nil), addrs...)
		for _, a := range addrs {
			r.byAddress[strings.ToLower(a)] = key
		}
	}
	for _, s := range stablecoins {
		s.Symbol = strings.ToUpper(s.Symbol)
		r.stablecoins = append(r.stablecoins, s)
		r.bySymbol[s.Symbol] = s
	}
	return r
}

// Default returns the built-in registry.
func Default() *Registry {
	return New(DefaultExchanges, DefaultStablecoins)
}

// ExchangeForAddress returns the display name of the exchange controlling address.
func (r *Registry) ExchangeForAddress(address string) (string, bool) {
	key, ok := r.byAddress[strings.ToLower(address)]
	if !ok {
		return "", false
	}
	return ExchangeName(key), true
}

// IsExchange reports whether address belongs to any registered exchange.
func (r *Registry) IsExchange(address string) bool {
	_, ok := r.byAddress[strings.ToLower(address)]
	return ok
}

// ExchangeAddresses returns the addresses registered for an exchange key.
func (r *Registry) ExchangeAddresses(key string) []string {
	return r.exchanges[strings.ToLower(key)]
}

// ExchangeKeys returns all exchange keys sorted alphabetically.
func (r *Registry) ExchangeKeys() []string {
	keys := make([]string, 0, len(r.exchanges))
	for k := range r.exchanges {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Stablecoin looks up contract metadata by symbol, case-insensitively.
func (r *Registry) Stablecoin(symbol string) (models.Stablecoin, bool) {
	s, ok := r.bySymbol[strings.ToUpper(symbol)]
	return s, ok
}

// Stablecoins returns the tracked tokens in configuration order.
func (r *Registry) Stablecoins() []models.Stablecoin {
	return append([]models.Stablecoin(nil), r.stablecoins...)
}

// ExchangeName title-cases an exchange key: "binance" -> "Binance".
func ExchangeName(key string) string {
	words := strings.FieldsFunc(key, func(r rune) bool { return r == '_' || r == '-' || r == ' ' })
	for i, w := range words {
		w = strings.ToLower(w)
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// fileConfig is the on-disk layout of a registry override.
type fileConfig struct {
	Exchanges   map[string][]string `yaml:"exchanges"`
	Stablecoins []models.Stablecoin `yaml:"stablecoins"`
}

// LoadFile reads a YAML registry. Sections missing from the file fall back
// to the built-in tables.
func LoadFile(path string) (*Registry, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read registry: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(b, &fc); err != nil {
		return nil, fmt.Errorf("parse registry yaml: %w", err)
	}
	if len(fc.Exchanges) == 0 {
		fc.Exchanges = DefaultExchanges
	}
	if len(fc.Stablecoins) == 0 {
		fc.Stablecoins = DefaultStablecoins
	}
	for _, s := range fc.Stablecoins {
		if s.Symbol == "" || s.Address == "" {
			return nil, fmt.Errorf("stablecoin entry missing symbol or address: %+v", s)
		}
		if s.Decimals < 0 || s.Decimals > 36 {
			return nil, fmt.Errorf("stablecoin %s: invalid decimals %d", s.Symbol, s.Decimals)
		}
	}
	return New(fc.Exchanges, fc.Stablecoins), nil
}
