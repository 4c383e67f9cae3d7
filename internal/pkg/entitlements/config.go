package entitlements

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

type pricingFile struct {
	Costs      map[string]int    `mapstructure:"costs"`
	Allowances map[string]int    `mapstructure:"allowances"`
	Products   map[string]string `mapstructure:"products"`
}

// LoadTables reads an optional YAML pricing file and merges it over the
// defaults. A missing file is not an error.
func LoadTables(path string) (*Tables, error) {
	costs := DefaultCosts()
	allowances := DefaultAllowances()
	products := DefaultProducts()

	path = strings.TrimSpace(path)
	if path == "" {
		return NewTables(costs, allowances, products), nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return NewTables(costs, allowances, products), nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read pricing config %s: %w", path, err)
	}

	var f pricingFile
	if err := v.Unmarshal(&f); err != nil {
		return nil, fmt.Errorf("parse pricing config %s: %w", path, err)
	}

	for name, cost := range f.Costs {
		a, ok := ParseAction(name)
		if !ok {
			return nil, fmt.Errorf("pricing config: unknown action %q", name)
		}
		if cost <= 0 {
			return nil, fmt.Errorf("pricing config: cost for %s must be positive", a)
		}
		costs[a] = cost
	}
	for name, allowance := range f.Allowances {
		t, ok := ParseTier(name)
		if !ok {
			return nil, fmt.Errorf("pricing config: unknown tier %q", name)
		}
		if allowance < 0 && allowance != UnlimitedCredits {
			return nil, fmt.Errorf("pricing config: allowance for %s must be >= 0 or %d", t, UnlimitedCredits)
		}
		allowances[t] = allowance
	}
	for productID, tierName := range f.Products {
		t, ok := ParseTier(tierName)
		if !ok {
			return nil, fmt.Errorf("pricing config: product %s maps to unknown tier %q", productID, tierName)
		}
		products[productID] = t
	}

	return NewTables(costs, allowances, products), nil
}
