package repository

import (
	"context"
	"strconv"

	"jadbank/internal/models"
	"jadbank/internal/store"
)

func decodeRate(row store.Row) (models.RateEdge, bool, error) {
	rate, err := parseDecimal(row.Cells.Get("rate"))
	if err != nil {
		return models.RateEdge{}, false, err
	}
	return models.RateEdge{
		Base:  row.Cells.Get("base"),
		Quote: row.Cells.Get("quote"),
		Rate:  rate,
	}, true, nil
}

// Rates returns every stored rate edge. Later rows for the same pair
// override earlier ones when loaded into a rate table.
func (r *Repository) Rates(ctx context.Context) ([]models.RateEdge, error) {
	return readAll(ctx, r.store, TableRates, decodeRate)
}

// AppendRate stores a rate edge.
func (r *Repository) AppendRate(ctx context.Context, e models.RateEdge) error {
	_, err := r.store.AppendRow(ctx, TableRates, store.Cells{
		"base":  e.Base,
		"quote": e.Quote,
		"rate":  e.Rate.String(),
	})
	return err
}

func decodeStock(row store.Row) (models.Stock, bool, error) {
	c := row.Cells
	change, err := parseDecimal(c.Get("change_24h"))
	if err != nil {
		return models.Stock{}, false, err
	}
	volume, err := parseInt(c.Get("volume"))
	if err != nil {
		return models.Stock{}, false, err
	}
	updated, err := parseTime(c.Get("last_updated"))
	if err != nil {
		return models.Stock{}, false, err
	}
	return models.Stock{
		ID:          c.Get("id"),
		Symbol:      c.Get("symbol"),
		CompanyName: c.Get("company_name"),
		Change24h:   change,
		Volume:      volume,
		LastUpdated: updated,
	}, true, nil
}

func decodeStockPrice(row store.Row) (models.StockPrice, bool, error) {
	price, err := parseDecimal(row.Cells.Get("price"))
	if err != nil {
		return models.StockPrice{}, false, err
	}
	return models.StockPrice{
		Symbol:   row.Cells.Get("symbol"),
		Currency: row.Cells.Get("currency"),
		Price:    price,
	}, true, nil
}

// Stocks returns the catalog with per-currency prices attached.
func (r *Repository) Stocks(ctx context.Context) ([]models.Stock, error) {
	stocks, err := readAll(ctx, r.store, TableStocks, decodeStock)
	if err != nil {
		return nil, err
	}
	prices, err := readAll(ctx, r.store, TableStockPrices, decodeStockPrice)
	if err != nil {
		return nil, err
	}

	bySymbol := make(map[string][]models.StockPrice)
	for _, p := range prices {
		bySymbol[p.Symbol] = append(bySymbol[p.Symbol], p)
	}
	for i := range stocks {
		stocks[i].Prices = bySymbol[stocks[i].Symbol]
	}
	return stocks, nil
}

// AppendStock stores a catalog entry and its prices.
func (r *Repository) AppendStock(ctx context.Context, s *models.Stock) error {
	_, err := r.store.AppendRow(ctx, TableStocks, store.Cells{
		"id":           s.ID,
		"symbol":       s.Symbol,
		"company_name": s.CompanyName,
		"change_24h":   s.Change24h.String(),
		"volume":       strconv.FormatInt(s.Volume, 10),
		"last_updated": formatTime(s.LastUpdated),
	})
	if err != nil {
		return err
	}
	for _, p := range s.Prices {
		if _, err := r.store.AppendRow(ctx, TableStockPrices, store.Cells{
			"symbol":   s.Symbol,
			"currency": p.Currency,
			"price":    p.Price.String(),
		}); err != nil {
			return err
		}
	}
	return nil
}

// BillCells encodes a bill row.
func BillCells(b *models.Bill) store.Cells {
	return store.Cells{
		"id":             b.ID,
		"user_id":        b.UserID,
		"bill_number":    b.BillNumber,
		"amount":         b.Amount.String(),
		"currency":       b.Currency,
		"due_date":       formatTime(b.DueDate),
		"provider":       b.Provider,
		"status":         string(b.Status),
		"account_number": b.AccountNumber,
	}
}

func decodeBill(row store.Row) (models.Bill, bool, error) {
	c := row.Cells
	amount, err := parseDecimal(c.Get("amount"))
	if err != nil {
		return models.Bill{}, false, err
	}
	due, err := parseTime(c.Get("due_date"))
	if err != nil {
		return models.Bill{}, false, err
	}
	return models.Bill{
		Row:           models.Row{Ref: row.Ref},
		ID:            c.Get("id"),
		UserID:        c.Get("user_id"),
		BillNumber:    c.Get("bill_number"),
		Amount:        amount,
		Currency:      c.Get("currency"),
		DueDate:       due,
		Provider:      c.Get("provider"),
		Status:        models.BillStatus(c.Get("status")),
		AccountNumber: c.Get("account_number"),
	}, true, nil
}

// Bills returns every bill.
func (r *Repository) Bills(ctx context.Context) ([]models.Bill, error) {
	return readAll(ctx, r.store, TableBills, decodeBill)
}

// FindBill returns the bill with the given id.
func (r *Repository) FindBill(ctx context.Context, id string) (*models.Bill, bool, error) {
	bills, err := r.Bills(ctx)
	if err != nil {
		return nil, false, err
	}
	for i := range bills {
		if bills[i].ID == id {
			return &bills[i], true, nil
		}
	}
	return nil, false, nil
}

// AppendBill stores a bill.
func (r *Repository) AppendBill(ctx context.Context, b *models.Bill) error {
	row, err := r.store.AppendRow(ctx, TableBills, BillCells(b))
	if err != nil {
		return err
	}
	b.Ref = row.Ref
	return nil
}
