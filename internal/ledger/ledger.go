// Package ledger keeps the group's internal token balances. Rows are
// scoped per holder, keyed by token contract and symbol, and tracked
// with arbitrary-precision amounts.
package ledger

import (
	"github.com/Daclify/daclifycore/internal/domain"
	"github.com/Daclify/daclifycore/internal/storage"
)

// Credit adds amount to scope's balance row, creating the row when the
// holder had none for this contract and symbol.
func Credit(tx *storage.Tx, scope domain.Account, amount domain.Asset) error {
	row, err := tx.Balance(scope, amount.Key())
	if err == storage.ErrNotFound {
		return tx.PutBalance(scope, amount.Key(), domain.Balance{
			Contract: amount.Contract,
			Symbol:   amount.Symbol,
			Amount:   amount.Amount,
		})
	}
	if err != nil {
		return err
	}
	row.Amount = row.Amount.Add(amount.Amount)
	return tx.PutBalance(scope, amount.Key(), row)
}

// Debit subtracts amount from scope's balance row. Draining a member
// row deletes it; the group's own rows are kept at zero so the token
// listing survives.
func Debit(tx *storage.Tx, group, scope domain.Account, amount domain.Asset) error {
	row, err := tx.Balance(scope, amount.Key())
	if err == storage.ErrNotFound {
		return domain.NotFoundf("%s has no balance with this symbol and contract", scope)
	}
	if err != nil {
		return err
	}
	if amount.Amount.GreaterThan(row.Amount) {
		return domain.Policyf("overdrawn balance, %s has %s %s", scope, row.Amount, row.Symbol)
	}
	if amount.Amount.Equal(row.Amount) && scope != group {
		return tx.DeleteBalance(scope, amount.Key())
	}
	row.Amount = row.Amount.Sub(amount.Amount)
	return tx.PutBalance(scope, amount.Key(), row)
}
