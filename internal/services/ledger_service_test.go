package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	apperrors "jadbank/internal/errors"
	"jadbank/internal/models"
	"jadbank/internal/repository"
	"jadbank/internal/testutil"
)

func TestTransfer(t *testing.T) {
	t.Run("cross_currency_converts_at_table_rate", func(t *testing.T) {
		h := newHarness(t)
		from := testutil.CreateTestAccount(t, h.repo, "alice", "JDC", "500")
		to := testutil.CreateTestAccount(t, h.repo, "bob", "IO", "0")

		res, err := h.transfer(from.AccountNumber, to.AccountNumber, "100")
		testutil.AssertNoError(t, err)

		if !res.ToAmount.Equal(dec("300")) || !res.Rate.Equal(dec("3")) {
			t.Errorf("expected 300 IO at rate 3, got %s at %s", res.ToAmount, res.Rate)
		}
		if res.FromCurrency != "JDC" || res.ToCurrency != "IO" {
			t.Errorf("unexpected currencies %s -> %s", res.FromCurrency, res.ToCurrency)
		}
		if res.Replayed {
			t.Error("first execution must not be marked replayed")
		}
		testutil.AssertBalance(t, h.repo, from.AccountNumber, "400")
		testutil.AssertBalance(t, h.repo, to.AccountNumber, "300")

		txs := h.transactions(t)
		if len(txs) != 1 {
			t.Fatalf("expected 1 transaction, got %d", len(txs))
		}
		tx := txs[0]
		if tx.ID != res.TransactionID || tx.Kind != models.TransactionKindTransfer || tx.Status != models.TransactionStatusCompleted {
			t.Errorf("unexpected transaction %+v", tx)
		}
		if tx.ToAmount == nil || !tx.ToAmount.Equal(dec("300")) || tx.ToCurrency != "IO" {
			t.Errorf("expected credited side recorded, got %+v", tx)
		}
		if tx.Description != "Transfer between accounts" {
			t.Errorf("unexpected description %q", tx.Description)
		}

		intents := h.intents(t)
		if len(intents) != 1 || intents[0].Status != models.IntentStatusCommitted {
			t.Errorf("expected one committed intent, got %+v", intents)
		}
	})

	t.Run("to_account_of_another_user_is_allowed", func(t *testing.T) {
		h := newHarness(t)
		from := testutil.CreateTestAccount(t, h.repo, "alice", "JDC", "50")
		to := testutil.CreateTestAccount(t, h.repo, "bob", "JDC", "5")

		_, err := h.transfer(from.AccountNumber, to.AccountNumber, "20.5")
		testutil.AssertNoError(t, err)
		testutil.AssertBalance(t, h.repo, from.AccountNumber, "29.5")
		testutil.AssertBalance(t, h.repo, to.AccountNumber, "25.5")
	})

	t.Run("insufficient_funds_changes_nothing", func(t *testing.T) {
		h := newHarness(t)
		from := testutil.CreateTestAccount(t, h.repo, "alice", "JDC", "10")
		to := testutil.CreateTestAccount(t, h.repo, "bob", "JDC", "0")

		_, err := h.transfer(from.AccountNumber, to.AccountNumber, "10.01")
		testutil.AssertAppError(t, err, "INSUFFICIENT_FUNDS")
		testutil.AssertBalance(t, h.repo, from.AccountNumber, "10")
		testutil.AssertBalance(t, h.repo, to.AccountNumber, "0")
		if n := len(h.intents(t)); n != 0 {
			t.Errorf("expected no intent, got %d", n)
		}
		if n := len(h.transactions(t)); n != 0 {
			t.Errorf("expected no transaction, got %d", n)
		}
	})

	t.Run("validation", func(t *testing.T) {
		h := newHarness(t)
		own := testutil.CreateTestAccount(t, h.repo, "alice", "JDC", "100")
		other := testutil.CreateTestAccount(t, h.repo, "bob", "JDC", "100")
		rub := testutil.CreateTestAccount(t, h.repo, "bob", "RUB", "0")

		cases := []struct {
			name     string
			from, to string
			amount   string
			code     string
		}{
			{"zero_amount", own.AccountNumber, other.AccountNumber, "0", "INVALID_INPUT"},
			{"negative_amount", own.AccountNumber, other.AccountNumber, "-5", "INVALID_INPUT"},
			{"too_many_decimals", own.AccountNumber, other.AccountNumber, "0.000000001", "INVALID_INPUT"},
			{"same_account", own.AccountNumber, own.AccountNumber, "1", "SAME_ACCOUNT_TRANSFER"},
			{"not_owner", other.AccountNumber, own.AccountNumber, "1", "FORBIDDEN"},
			{"unknown_source", "ACC-missing", other.AccountNumber, "1", "ACCOUNT_NOT_FOUND"},
			{"unknown_destination", own.AccountNumber, "ACC-missing", "1", "ACCOUNT_NOT_FOUND"},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				_, err := h.transfer(tc.from, tc.to, tc.amount)
				testutil.AssertAppError(t, err, tc.code)
			})
		}

		// JDC->RUB exists, so move the RUB account under a currency with no rate.
		testutil.AssertNoError(t, h.repo.UpdateCell(context.Background(), repository.TableAccounts, rub.Ref, "currency", "XAU"))
		_, err := h.transfer(own.AccountNumber, rub.AccountNumber, "1")
		testutil.AssertAppError(t, err, "RATE_NOT_FOUND")
		testutil.AssertBalance(t, h.repo, own.AccountNumber, "100")
	})

	t.Run("closed_account_is_not_found", func(t *testing.T) {
		h := newHarness(t)
		from := testutil.CreateTestAccount(t, h.repo, "alice", "JDC", "100")
		to := testutil.CreateTestAccount(t, h.repo, "bob", "JDC", "0")
		testutil.AssertNoError(t, h.repo.UpdateCell(context.Background(), repository.TableAccounts, to.Ref, "status", "closed"))

		_, err := h.transfer(from.AccountNumber, to.AccountNumber, "1")
		testutil.AssertAppError(t, err, "ACCOUNT_NOT_FOUND")
	})

	t.Run("credit_rounding_to_zero_is_rejected", func(t *testing.T) {
		h := newHarness(t)
		from := testutil.CreateTestAccount(t, h.repo, "alice", "RUB", "1")
		to := testutil.CreateTestAccount(t, h.repo, "bob", "JDC", "0")

		_, err := h.transfer(from.AccountNumber, to.AccountNumber, "0.00000001")
		testutil.AssertAppError(t, err, "INVALID_INPUT")
		testutil.AssertBalance(t, h.repo, from.AccountNumber, "1")
		testutil.AssertBalance(t, h.repo, to.AccountNumber, "0")
		if n := len(h.intents(t)); n != 0 {
			t.Errorf("expected no intent, got %d", n)
		}
	})

	t.Run("publishes_completion_event", func(t *testing.T) {
		h := newHarness(t)
		from := testutil.CreateTestAccount(t, h.repo, "alice", "JDC", "100")
		to := testutil.CreateTestAccount(t, h.repo, "bob", "JDC", "0")

		res, err := h.transfer(from.AccountNumber, to.AccountNumber, "1")
		testutil.AssertNoError(t, err)

		published := h.events.ByTopic("ledger.operation.completed")
		if len(published) != 1 || published[0].Key != res.TransactionID {
			t.Errorf("expected one completion event for %s, got %+v", res.TransactionID, published)
		}
	})
}

func TestTransferConcurrency(t *testing.T) {
	h := newHarness(t)
	a := testutil.CreateTestAccount(t, h.repo, "alice", "JDC", "100")
	b := testutil.CreateTestAccount(t, h.repo, "alice", "JDC", "0")
	c := testutil.CreateTestAccount(t, h.repo, "bob", "JDC", "0")

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			to := b.AccountNumber
			if i%2 == 0 {
				to = c.AccountNumber
			}
			_, err := h.ledger.Transfer(context.Background(), "alice", fmt.Sprintf("concurrent-%d", i), TransferRequest{
				FromAccount: a.AccountNumber,
				ToAccount:   to,
				Amount:      dec("10"),
			})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				succeeded++
				return
			}
			if !errors.Is(err, apperrors.ErrInsufficientFunds) {
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if succeeded != 10 {
		t.Errorf("expected exactly 10 transfers to succeed, got %d", succeeded)
	}
	total := testutil.Balance(t, h.repo, a.AccountNumber).
		Add(testutil.Balance(t, h.repo, b.AccountNumber)).
		Add(testutil.Balance(t, h.repo, c.AccountNumber))
	if !total.Equal(dec("100")) {
		t.Errorf("money was created or destroyed: total %s", total)
	}
	testutil.AssertBalance(t, h.repo, a.AccountNumber, "0")
}

func TestTransferIdempotency(t *testing.T) {
	h := newHarness(t)
	from := testutil.CreateTestAccount(t, h.repo, "alice", "JDC", "100")
	to := testutil.CreateTestAccount(t, h.repo, "bob", "JDC", "0")
	req := TransferRequest{FromAccount: from.AccountNumber, ToAccount: to.AccountNumber, Amount: dec("25")}

	first, err := h.ledger.Transfer(context.Background(), "alice", "same-key", req)
	testutil.AssertNoError(t, err)
	second, err := h.ledger.Transfer(context.Background(), "alice", "same-key", req)
	testutil.AssertNoError(t, err)

	if !second.Replayed || second.TransactionID != first.TransactionID {
		t.Errorf("expected replay of %s, got %+v", first.TransactionID, second)
	}
	testutil.AssertBalance(t, h.repo, from.AccountNumber, "75")
	if n := len(h.transactions(t)); n != 1 {
		t.Errorf("expected exactly one transaction, got %d", n)
	}

	req.Amount = dec("26")
	_, err = h.ledger.Transfer(context.Background(), "alice", "same-key", req)
	testutil.AssertAppError(t, err, "IDEMPOTENCY_KEY_REUSED")

	_, err = h.ledger.Transfer(context.Background(), "alice", "", req)
	testutil.AssertAppError(t, err, "IDEMPOTENCY_KEY_REQUIRED")
}

func TestExchange(t *testing.T) {
	t.Run("provisions_destination_account", func(t *testing.T) {
		h := newHarness(t)
		rub := testutil.CreateTestAccount(t, h.repo, "alice", "RUB", "100")

		res, err := h.ledger.Exchange(context.Background(), "alice", h.key(), ExchangeRequest{
			FromAccount: rub.AccountNumber,
			ToCurrency:  "jdc",
			Amount:      dec("50"),
		})
		testutil.AssertNoError(t, err)

		if !res.ToAmount.Equal(dec("0.335")) {
			t.Errorf("expected 0.335 JDC, got %s", res.ToAmount)
		}
		if !res.Provisioned || res.Account == nil {
			t.Fatalf("expected a provisioned account, got %+v", res)
		}
		if res.Account.Currency != "JDC" || !strings.HasPrefix(res.Account.AccountNumber, "ACC") {
			t.Errorf("unexpected provisioned account %+v", res.Account)
		}
		testutil.AssertBalance(t, h.repo, rub.AccountNumber, "50")
		testutil.AssertBalance(t, h.repo, res.ToAccount, "0.335")

		txs := h.transactions(t)
		if len(txs) != 1 || txs[0].Description != "Exchange RUB → JDC" || txs[0].Kind != models.TransactionKindExchange {
			t.Errorf("unexpected log %+v", txs)
		}
	})

	t.Run("uses_existing_account", func(t *testing.T) {
		h := newHarness(t)
		jdc := testutil.CreateTestAccount(t, h.repo, "alice", "JDC", "10")
		io := testutil.CreateTestAccount(t, h.repo, "alice", "IO", "1")

		res, err := h.ledger.Exchange(context.Background(), "alice", h.key(), ExchangeRequest{
			FromAccount: jdc.AccountNumber,
			ToCurrency:  "IO",
			Amount:      dec("2"),
		})
		testutil.AssertNoError(t, err)
		if res.Provisioned || res.ToAccount != io.AccountNumber {
			t.Errorf("expected existing account %s, got %+v", io.AccountNumber, res)
		}
		testutil.AssertBalance(t, h.repo, io.AccountNumber, "7")
	})

	t.Run("rejections_do_not_provision", func(t *testing.T) {
		h := newHarness(t)
		jdc := testutil.CreateTestAccount(t, h.repo, "alice", "JDC", "10")

		cases := []struct {
			name     string
			currency string
			amount   string
			code     string
		}{
			{"same_currency", "JDC", "1", "INVALID_INPUT"},
			{"no_rate", "XAU", "1", "RATE_NOT_FOUND"},
			{"missing_currency", "", "1", "INVALID_INPUT"},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				_, err := h.ledger.Exchange(context.Background(), "alice", h.key(), ExchangeRequest{
					FromAccount: jdc.AccountNumber,
					ToCurrency:  tc.currency,
					Amount:      dec(tc.amount),
				})
				testutil.AssertAppError(t, err, tc.code)
			})
		}

		accounts, err := h.repo.AccountsByUser(context.Background(), "alice")
		testutil.AssertNoError(t, err)
		if len(accounts) != 1 {
			t.Errorf("expected no provisioned accounts, got %d", len(accounts))
		}
	})

	t.Run("credit_rounding_to_zero_provisions_nothing", func(t *testing.T) {
		h := newHarness(t)
		rub := testutil.CreateTestAccount(t, h.repo, "alice", "RUB", "1")

		_, err := h.ledger.Exchange(context.Background(), "alice", h.key(), ExchangeRequest{
			FromAccount: rub.AccountNumber,
			ToCurrency:  "JDC",
			Amount:      dec("0.00000001"),
		})
		testutil.AssertAppError(t, err, "INVALID_INPUT")
		testutil.AssertBalance(t, h.repo, rub.AccountNumber, "1")

		accounts, err := h.repo.AccountsByUser(context.Background(), "alice")
		testutil.AssertNoError(t, err)
		if len(accounts) != 1 {
			t.Errorf("expected no provisioned accounts, got %d", len(accounts))
		}
	})

	t.Run("insufficient_funds", func(t *testing.T) {
		h := newHarness(t)
		jdc := testutil.CreateTestAccount(t, h.repo, "alice", "JDC", "1")

		_, err := h.ledger.Exchange(context.Background(), "alice", h.key(), ExchangeRequest{
			FromAccount: jdc.AccountNumber,
			ToCurrency:  "IO",
			Amount:      dec("2"),
		})
		testutil.AssertAppError(t, err, "INSUFFICIENT_FUNDS")
		testutil.AssertBalance(t, h.repo, jdc.AccountNumber, "1")
	})
}

func TestIssueLoan(t *testing.T) {
	t.Run("credits_exactly_the_principal", func(t *testing.T) {
		h := newHarness(t)
		acc := testutil.CreateTestAccount(t, h.repo, "alice", "JDC", "0")

		res, err := h.ledger.IssueLoan(context.Background(), "alice", h.key(), LoanRequest{
			AccountNumber: acc.AccountNumber,
			Amount:        dec("1000"),
			Currency:      "JDC",
			TermMonths:    12,
		})
		testutil.AssertNoError(t, err)

		if !res.NewBalance.Equal(dec("1000")) {
			t.Errorf("expected new balance 1000, got %s", res.NewBalance)
		}
		testutil.AssertBalance(t, h.repo, acc.AccountNumber, "1000")

		loans, err := h.repo.Loans(context.Background())
		testutil.AssertNoError(t, err)
		if len(loans) != 1 {
			t.Fatalf("expected one loan, got %d", len(loans))
		}
		loan := loans[0]
		if !loan.Remaining.Equal(dec("1000")) || !loan.InterestRate.Equal(dec("12.5")) || loan.Status != models.LoanStatusActive {
			t.Errorf("unexpected loan %+v", loan)
		}
		if !loan.NextPaymentDate.Equal(loan.IssuedDate.AddDate(0, 1, 0)) {
			t.Errorf("expected next payment one month after issue, got %s", loan.NextPaymentDate)
		}

		txs := h.transactions(t)
		if len(txs) != 1 || txs[0].FromRef != models.SystemBank || txs[0].Description != "Loan for 12 months" {
			t.Errorf("unexpected log %+v", txs)
		}
	})

	t.Run("validation", func(t *testing.T) {
		h := newHarness(t)
		acc := testutil.CreateTestAccount(t, h.repo, "alice", "JDC", "0")
		other := testutil.CreateTestAccount(t, h.repo, "bob", "JDC", "0")

		cases := []struct {
			name     string
			account  string
			currency string
			term     int
			code     string
		}{
			{"currency_mismatch", acc.AccountNumber, "IO", 12, "CURRENCY_MISMATCH"},
			{"zero_term", acc.AccountNumber, "JDC", 0, "INVALID_INPUT"},
			{"term_too_long", acc.AccountNumber, "JDC", 361, "INVALID_INPUT"},
			{"not_owner", other.AccountNumber, "JDC", 12, "FORBIDDEN"},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				_, err := h.ledger.IssueLoan(context.Background(), "alice", h.key(), LoanRequest{
					AccountNumber: tc.account,
					Amount:        dec("100"),
					Currency:      tc.currency,
					TermMonths:    tc.term,
				})
				testutil.AssertAppError(t, err, tc.code)
			})
		}
		testutil.AssertBalance(t, h.repo, acc.AccountNumber, "0")
	})
}

func TestBuyStock(t *testing.T) {
	t.Run("debits_total_and_records_holding", func(t *testing.T) {
		h := newHarness(t)
		acc := testutil.CreateTestAccount(t, h.repo, "alice", "JDC", "150")
		testutil.CreateTestStock(t, h.repo, "JAD", map[string]string{"JDC": "25", "IO": "75"})

		res, err := h.ledger.BuyStock(context.Background(), "alice", h.key(), StockPurchaseRequest{
			AccountNumber: acc.AccountNumber,
			Symbol:        "jad",
			Quantity:      4,
		})
		testutil.AssertNoError(t, err)

		if !res.Total.Equal(dec("100")) || !res.Price.Equal(dec("25")) || res.Stock != "JAD Corp" {
			t.Errorf("unexpected result %+v", res)
		}
		testutil.AssertBalance(t, h.repo, acc.AccountNumber, "50")

		entries, err := h.repo.PortfolioEntries(context.Background())
		testutil.AssertNoError(t, err)
		if len(entries) != 1 || entries[0].Quantity != 4 || entries[0].Currency != "JDC" {
			t.Errorf("unexpected portfolio %+v", entries)
		}

		txs := h.transactions(t)
		if len(txs) != 1 || txs[0].ToRef != models.SystemStockExchange || txs[0].Description != "Purchase of 4 JAD at J$25.00" {
			t.Errorf("unexpected log %+v", txs)
		}
	})

	t.Run("rejections", func(t *testing.T) {
		h := newHarness(t)
		acc := testutil.CreateTestAccount(t, h.repo, "alice", "RUB", "10")
		testutil.CreateTestStock(t, h.repo, "JAD", map[string]string{"JDC": "25"})
		testutil.CreateTestStock(t, h.repo, "OIL", map[string]string{"RUB": "20"})

		cases := []struct {
			name   string
			symbol string
			qty    int64
			code   string
		}{
			{"unknown_symbol", "NOPE", 1, "STOCK_NOT_FOUND"},
			{"not_priced_in_currency", "JAD", 1, "UNSUPPORTED_CURRENCY"},
			{"zero_quantity", "OIL", 0, "INVALID_INPUT"},
			{"insufficient_funds", "OIL", 1, "INSUFFICIENT_FUNDS"},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				_, err := h.ledger.BuyStock(context.Background(), "alice", h.key(), StockPurchaseRequest{
					AccountNumber: acc.AccountNumber,
					Symbol:        tc.symbol,
					Quantity:      tc.qty,
				})
				testutil.AssertAppError(t, err, tc.code)
			})
		}
	})
}

func TestPayBill(t *testing.T) {
	t.Run("pays_once", func(t *testing.T) {
		h := newHarness(t)
		acc := testutil.CreateTestAccount(t, h.repo, "alice", "JDC", "100")
		bill := testutil.CreateTestBill(t, h.repo, "alice", "JDC", "40")

		res, err := h.ledger.PayBill(context.Background(), "alice", h.key(), BillPaymentRequest{BillID: bill.ID, FromAccount: acc.AccountNumber})
		testutil.AssertNoError(t, err)
		if res.Provider != "CityPower" || !res.Amount.Equal(dec("40")) {
			t.Errorf("unexpected result %+v", res)
		}
		testutil.AssertBalance(t, h.repo, acc.AccountNumber, "60")

		stored, _, err := h.repo.FindBill(context.Background(), bill.ID)
		testutil.AssertNoError(t, err)
		if stored.Status != models.BillStatusPaid {
			t.Errorf("expected bill paid, got %s", stored.Status)
		}

		_, err = h.ledger.PayBill(context.Background(), "alice", h.key(), BillPaymentRequest{BillID: bill.ID, FromAccount: acc.AccountNumber})
		testutil.AssertAppError(t, err, "BILL_ALREADY_PAID")
		testutil.AssertBalance(t, h.repo, acc.AccountNumber, "60")

		txs := h.transactions(t)
		if len(txs) != 1 || txs[0].ToRef != models.BillProviderRef("CityPower") || !strings.HasPrefix(txs[0].Description, "Payment of bill INV-") {
			t.Errorf("unexpected log %+v", txs)
		}
	})

	t.Run("concurrent_payments_settle_once", func(t *testing.T) {
		h := newHarness(t)
		a := testutil.CreateTestAccount(t, h.repo, "alice", "JDC", "100")
		b := testutil.CreateTestAccount(t, h.repo, "alice", "JDC", "100")
		bill := testutil.CreateTestBill(t, h.repo, "alice", "JDC", "40")

		var wg sync.WaitGroup
		errs := make([]error, 2)
		for i, acc := range []*models.Account{a, b} {
			wg.Add(1)
			go func(i int, number string) {
				defer wg.Done()
				_, errs[i] = h.ledger.PayBill(context.Background(), "alice", "pay-"+number, BillPaymentRequest{BillID: bill.ID, FromAccount: number})
			}(i, acc.AccountNumber)
		}
		wg.Wait()

		paid := 0
		for _, err := range errs {
			if err == nil {
				paid++
			} else {
				testutil.AssertAppError(t, err, "BILL_ALREADY_PAID")
			}
		}
		if paid != 1 {
			t.Fatalf("expected exactly one payment, got %d", paid)
		}
		total := testutil.Balance(t, h.repo, a.AccountNumber).Add(testutil.Balance(t, h.repo, b.AccountNumber))
		if !total.Equal(dec("160")) {
			t.Errorf("expected 160 left across both accounts, got %s", total)
		}
	})

	t.Run("rejections", func(t *testing.T) {
		h := newHarness(t)
		acc := testutil.CreateTestAccount(t, h.repo, "alice", "JDC", "10")
		io := testutil.CreateTestAccount(t, h.repo, "alice", "IO", "100")
		bobs := testutil.CreateTestAccount(t, h.repo, "bob", "JDC", "100")
		big := testutil.CreateTestBill(t, h.repo, "alice", "JDC", "40")
		foreign := testutil.CreateTestBill(t, h.repo, "bob", "JDC", "1")

		cases := []struct {
			name    string
			bill    string
			account string
			code    string
		}{
			{"unknown_bill", "bill-missing", acc.AccountNumber, "BILL_NOT_FOUND"},
			{"someone_elses_bill", foreign.ID, acc.AccountNumber, "FORBIDDEN"},
			{"someone_elses_account", big.ID, bobs.AccountNumber, "FORBIDDEN"},
			{"currency_mismatch", big.ID, io.AccountNumber, "CURRENCY_MISMATCH"},
			{"insufficient_funds", big.ID, acc.AccountNumber, "INSUFFICIENT_FUNDS"},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				_, err := h.ledger.PayBill(context.Background(), "alice", h.key(), BillPaymentRequest{BillID: tc.bill, FromAccount: tc.account})
				testutil.AssertAppError(t, err, tc.code)
			})
		}
	})
}

func TestConservationAcrossOperations(t *testing.T) {
	h := newHarness(t)
	a := testutil.CreateTestAccount(t, h.repo, "alice", "JDC", "1000")
	b := testutil.CreateTestAccount(t, h.repo, "bob", "JDC", "0")
	testutil.CreateTestStock(t, h.repo, "JAD", map[string]string{"JDC": "12.5"})
	bill := testutil.CreateTestBill(t, h.repo, "alice", "JDC", "30")
	ctx := context.Background()

	_, err := h.transfer(a.AccountNumber, b.AccountNumber, "100")
	testutil.AssertNoError(t, err)
	_, err = h.ledger.IssueLoan(ctx, "alice", h.key(), LoanRequest{AccountNumber: a.AccountNumber, Amount: dec("200"), Currency: "JDC", TermMonths: 6})
	testutil.AssertNoError(t, err)
	_, err = h.ledger.BuyStock(ctx, "alice", h.key(), StockPurchaseRequest{AccountNumber: a.AccountNumber, Symbol: "JAD", Quantity: 2})
	testutil.AssertNoError(t, err)
	_, err = h.ledger.PayBill(ctx, "alice", h.key(), BillPaymentRequest{BillID: bill.ID, FromAccount: a.AccountNumber})
	testutil.AssertNoError(t, err)

	// Sum of user balances changes only by what crossed a system account.
	inflow, outflow := decimal.Zero, decimal.Zero
	for _, tx := range h.transactions(t) {
		if models.IsSystemRef(tx.FromRef) {
			inflow = inflow.Add(tx.Amount)
		}
		if models.IsSystemRef(tx.ToRef) {
			outflow = outflow.Add(tx.Amount)
		}
	}
	total := testutil.Balance(t, h.repo, a.AccountNumber).Add(testutil.Balance(t, h.repo, b.AccountNumber))
	want := dec("1000").Add(inflow).Sub(outflow)
	if !total.Equal(want) {
		t.Errorf("expected total %s, got %s", want, total)
	}
	testutil.AssertBalance(t, h.repo, a.AccountNumber, "1045")
}
