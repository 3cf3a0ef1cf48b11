package services

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"jadbank/internal/models"
	"jadbank/internal/repository"
	"jadbank/internal/store"
)

// legState is what inspecting the store says about one leg.
type legState int

const (
	legPending legState = iota
	legApplied
	legVoided
	legUnknown
)

func (s legState) String() string {
	switch s {
	case legPending:
		return "pending"
	case legApplied:
		return "applied"
	case legVoided:
		return "voided"
	}
	return "unknown"
}

func balanceLeg(acc *models.Account, after decimal.Decimal) models.Leg {
	return models.Leg{
		Kind:    models.LegBalance,
		Table:   repository.TableAccounts,
		Ref:     acc.Ref,
		Account: acc.AccountNumber,
		Column:  "balance",
		Before:  acc.Balance.String(),
		After:   after.String(),
	}
}

func cellLeg(table string, ref int, column, before, after string) models.Leg {
	return models.Leg{
		Kind:   models.LegCell,
		Table:  table,
		Ref:    ref,
		Column: column,
		Before: before,
		After:  after,
	}
}

func appendLeg(table, id string, cells store.Cells, voidColumn, voidValue string) models.Leg {
	return models.Leg{
		Kind:       models.LegAppend,
		Table:      table,
		RowID:      id,
		Cells:      cells,
		VoidColumn: voidColumn,
		VoidValue:  voidValue,
	}
}

// logLeg appends the transaction log entry. It is always the last leg, so
// finding it in the store proves every earlier leg was acknowledged.
func logLeg(tx *models.Transaction) models.Leg {
	return appendLeg(repository.TableTransactions, tx.ID, repository.TransactionCells(tx), "status", string(models.TransactionStatusFailed))
}

func isLogLeg(leg models.Leg) bool {
	return leg.Kind == models.LegAppend && leg.Table == repository.TableTransactions
}

// applyLeg performs the forward write. Balance and cell legs write
// absolute values so repeating them is harmless.
func applyLeg(ctx context.Context, repo *repository.Repository, leg models.Leg) error {
	switch leg.Kind {
	case models.LegBalance, models.LegCell:
		return repo.UpdateCell(ctx, leg.Table, leg.Ref, leg.Column, leg.After)
	case models.LegAppend:
		_, err := repo.AppendRow(ctx, leg.Table, store.Cells(leg.Cells))
		return err
	}
	return fmt.Errorf("unknown leg kind %q", leg.Kind)
}

// revertLeg undoes a leg. Appended rows are voided, never removed.
func revertLeg(ctx context.Context, repo *repository.Repository, leg models.Leg) error {
	switch leg.Kind {
	case models.LegBalance, models.LegCell:
		return repo.UpdateCell(ctx, leg.Table, leg.Ref, leg.Column, leg.Before)
	case models.LegAppend:
		row, found, err := repo.FindRowByID(ctx, leg.Table, leg.RowID)
		if err != nil || !found {
			return err
		}
		return repo.UpdateCell(ctx, leg.Table, row.Ref, leg.VoidColumn, leg.VoidValue)
	}
	return fmt.Errorf("unknown leg kind %q", leg.Kind)
}

// inspectLeg compares the stored state with the leg's expected values.
func inspectLeg(ctx context.Context, repo *repository.Repository, leg models.Leg) (legState, error) {
	switch leg.Kind {
	case models.LegBalance, models.LegCell:
		current, err := repo.ReadCell(ctx, leg.Table, leg.Ref, leg.Column)
		if err != nil {
			return legUnknown, err
		}
		switch {
		case sameValue(leg, current, leg.After):
			return legApplied, nil
		case sameValue(leg, current, leg.Before):
			return legPending, nil
		}
		return legUnknown, nil
	case models.LegAppend:
		row, found, err := repo.FindRowByID(ctx, leg.Table, leg.RowID)
		if err != nil {
			return legUnknown, err
		}
		if !found {
			return legPending, nil
		}
		if leg.VoidColumn != "" && row.Cells.Get(leg.VoidColumn) == leg.VoidValue {
			return legVoided, nil
		}
		return legApplied, nil
	}
	return legUnknown, fmt.Errorf("unknown leg kind %q", leg.Kind)
}

// sameValue compares balances numerically and other cells textually.
func sameValue(leg models.Leg, a, b string) bool {
	if leg.Kind != models.LegBalance {
		return a == b
	}
	da, err := decimal.NewFromString(a)
	if err != nil {
		return false
	}
	db, err := decimal.NewFromString(b)
	if err != nil {
		return false
	}
	return da.Equal(db)
}
