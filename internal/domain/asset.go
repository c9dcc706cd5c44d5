package domain

import "github.com/shopspring/decimal"

// Asset is a quantity of an externally issued fungible token,
// identified by the issuing contract account and the symbol code.
type Asset struct {
	Contract Account         `json:"contract"`
	Symbol   string          `json:"symbol"`
	Amount   decimal.Decimal `json:"amount"`
}

// Validate checks the issuer, symbol code and amount sign. Zero and
// negative amounts are rejected for all transfer paths.
func (a Asset) Validate() error {
	if !a.Contract.Valid() {
		return Validationf("invalid asset contract %q", a.Contract)
	}
	if !validSymbol(a.Symbol) {
		return Validationf("invalid asset symbol %q", a.Symbol)
	}
	if !a.Amount.IsPositive() {
		return Policyf("amount must be greater than zero")
	}
	return nil
}

// Key is the composite (issuer, symbol) identity of a balance row.
func (a Asset) Key() string { return string(a.Contract) + "|" + a.Symbol }

func validSymbol(sym string) bool {
	if len(sym) == 0 || len(sym) > 7 {
		return false
	}
	for _, r := range sym {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

// Balance is one ledger row: the holdings of a single asset type
// inside one owner scope.
type Balance struct {
	Contract Account         `json:"contract"`
	Symbol   string          `json:"symbol"`
	Amount   decimal.Decimal `json:"amount"`
}

// Payment is one payroll entry forwarded to the payroll module.
type Payment struct {
	Receiver Account `json:"receiver"`
	Amount   Asset   `json:"amount"`
}
