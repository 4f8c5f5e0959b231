package registry

import (
	"os"
	"path/filepath"
	"testing"
)

func TestExchangeForAddressCaseInsensitive(t *testing.T) {
	r := Default()

	tests := []struct {
		name    string
		address string
		want    string
		found   bool
	}{
		{"Checksummed", "0x28C6c06298d514Db089934071355E5743bf21d60", "Binance", true},
		{"Lowercase", "0x28c6c06298d514db089934071355e5743bf21d60", "Binance", true},
		{"Uppercase hex", "0x71660C4005BA85C37CCEC55D0C4493E66FE775D3", "Coinbase", true},
		{"Unknown", "0x000000000000000000000000000000000000dEaD", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := r.ExchangeForAddress(tt.address)
			if ok != tt.found {
				t.Fatalf("Expected found=%v, got %v", tt.found, ok)
			}
			if got != tt.want {
				t.Errorf("Expected exchange '%s', got '%s'", tt.want, got)
			}
		})
	}
}

func TestExchangeName(t *testing.T) {
	tests := map[string]string{
		"binance":    "Binance",
		"KRAKEN":     "Kraken",
		"crypto_com": "Crypto Com",
		"gate-io":    "Gate Io",
	}
	for in, want := range tests {
		if got := ExchangeName(in); got != want {
			t.Errorf("ExchangeName(%q): expected '%s', got '%s'", in, want, got)
		}
	}
}

func TestStablecoinLookup(t *testing.T) {
	r := Default()

	usdc, ok := r.Stablecoin("usdc")
	if !ok {
		t.Fatal("Expected USDC to be registered")
	}
	if usdc.Decimals != 6 {
		t.Errorf("Expected USDC decimals 6, got %d", usdc.Decimals)
	}

	if _, ok := r.Stablecoin("DOGE"); ok {
		t.Error("DOGE should not be registered")
	}

	coins := r.Stablecoins()
	if len(coins) != len(DefaultStablecoins) {
		t.Errorf("Expected %d stablecoins, got %d", len(DefaultStablecoins), len(coins))
	}
	if coins[0].Symbol != "USDT" {
		t.Errorf("Expected configuration order to be kept, first is %s", coins[0].Symbol)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "registry.yaml")
	content := `
exchanges:
  bybit:
    - "0xf89d7b9c864f589bbF53a82105107622B35EaA40"
stablecoins:
  - symbol: pyusd
    address: "0x6c3ea9036406852006290770BEdFcAbA0e23A0e8"
    decimals: 6
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write registry: %v", err)
	}

	r, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if name, ok := r.ExchangeForAddress("0xF89D7B9C864F589BBF53A82105107622B35EAA40"); !ok || name != "Bybit" {
		t.Errorf("Expected Bybit, got '%s' (found=%v)", name, ok)
	}
	if r.IsExchange("0x28C6c06298d514Db089934071355E5743bf21d60") {
		t.Error("Binance should not be registered when the file overrides exchanges")
	}
	if _, ok := r.Stablecoin("PYUSD"); !ok {
		t.Error("Expected PYUSD to be registered from file")
	}
}

func TestLoadFileRejectsIncompleteStablecoin(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "registry.yaml")
	content := "stablecoins:\n  - symbol: USDX\n    decimals: 6\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write registry: %v", err)
	}

	if _, err := LoadFile(path); err == nil {
		t.Error("Expected error for stablecoin without address")
	}
}
