package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"jadbank/internal/config"
	"jadbank/internal/currency"
	apperrors "jadbank/internal/errors"
	"jadbank/internal/events"
	"jadbank/internal/idempotency"
	"jadbank/internal/logger"
	"jadbank/internal/models"
	"jadbank/internal/ratetable"
	"jadbank/internal/repository"
	"jadbank/internal/uuid"
)

// Operation names, used to scope idempotency fingerprints.
const (
	opTransfer = "transfer"
	opExchange = "exchange"
	opLoan     = "loan"
	opBuyStock = "stock_purchase"
	opPayBill  = "bill_payment"
)

// LedgerOptions configures the ledger engine.
type LedgerOptions struct {
	LoanAnnualRate    decimal.Decimal
	LoanMaxTermMonths int
	AmountScale       int32
	Rates             ratetable.Options
	TopicPrefix       string
}

// LedgerOptionsFromConfig builds LedgerOptions from the application config.
func LedgerOptionsFromConfig(cfg *config.Config) LedgerOptions {
	return LedgerOptions{
		LoanAnnualRate:    cfg.LoanAnnualRate,
		LoanMaxTermMonths: cfg.LoanMaxTermMonths,
		AmountScale:       cfg.AmountScale,
		Rates: ratetable.Options{
			Policy:    ratetable.ParsePolicy(cfg.RateSymmetry),
			Tolerance: cfg.RateSymmetryTolerance,
		},
		TopicPrefix: cfg.KafkaTopicPrefix,
	}
}

// ledgerService executes money movements through the intent protocol.
type ledgerService struct {
	repo  *repository.Repository
	locks *LockTable
	guard *idempotency.Guard
	saga  *saga
	opts  LedgerOptions
	now   func() time.Time
}

// NewLedgerService creates a new LedgerServicer. locks must be the table
// the reconciler uses.
func NewLedgerService(
	repo *repository.Repository,
	locks *LockTable,
	guard *idempotency.Guard,
	reconciler *Reconciler,
	publisher events.Publisher,
	opts LedgerOptions,
) LedgerServicer {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	wake := func() {}
	track := func(*models.Intent) {}
	if reconciler != nil {
		wake = reconciler.Trigger
		track = reconciler.track
	}
	return &ledgerService{
		repo:  repo,
		locks: locks,
		guard: guard,
		saga: &saga{
			repo:      repo,
			locks:     locks,
			publisher: publisher,
			prefix:    opts.TopicPrefix,
			wake:      wake,
			track:     track,
		},
		opts: opts,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Transfer moves money between two accounts, converting across currencies.
func (s *ledgerService) Transfer(ctx context.Context, userID, idempotencyKey string, req TransferRequest) (*TransferResult, error) {
	if req.FromAccount == "" || req.ToAccount == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "from_account and to_account are required")
	}
	if err := s.validAmount(req.Amount, "amount"); err != nil {
		return nil, err
	}
	if req.FromAccount == req.ToAccount {
		return nil, apperrors.ErrSameAccountTransfer
	}

	res, replayed, err := runGuarded(ctx, s.guard, userID, idempotencyKey, opTransfer, req, func(ctx context.Context) (*TransferResult, error) {
		return s.transfer(ctx, userID, idempotencyKey, req)
	})
	if err != nil {
		return nil, err
	}
	res.Replayed = replayed
	return res, nil
}

func (s *ledgerService) transfer(ctx context.Context, userID, key string, req TransferRequest) (*TransferResult, error) {
	keys := []string{accountKey(req.FromAccount), accountKey(req.ToAccount)}
	release, err := s.acquire(ctx, keys...)
	if err != nil {
		return nil, err
	}
	defer release()

	accounts, err := s.loadAccounts(ctx)
	if err != nil {
		return nil, err
	}
	from, err := ownedAccount(accounts, req.FromAccount, userID)
	if err != nil {
		return nil, err
	}
	to, ok := accounts[req.ToAccount]
	if !ok {
		return nil, apperrors.ErrAccountNotFound
	}
	if err := s.checkFlags(ctx, from.AccountNumber, to.AccountNumber); err != nil {
		return nil, err
	}
	if from.Balance.LessThan(req.Amount) {
		return nil, apperrors.ErrInsufficientFunds
	}

	rates, err := s.loadRates(ctx)
	if err != nil {
		return nil, err
	}
	credited, rate, err := rates.Convert(req.Amount, from.Currency, to.Currency, s.opts.AmountScale)
	if err != nil {
		return nil, rateFailure(err)
	}
	if !credited.IsPositive() {
		return nil, errTooSmallToConvert
	}

	description := req.Description
	if description == "" {
		description = "Transfer between accounts"
	}

	intent := s.newIntent(models.TransactionKindTransfer, userID, key, keys)
	tx := s.logEntry(intent, from.AccountNumber, to.AccountNumber, req.Amount, from.Currency, description)
	tx.ToAmount = &credited
	tx.ToCurrency = to.Currency
	tx.Rate = &rate

	debited := from.Balance.Sub(req.Amount)
	intent.Legs = []models.Leg{
		balanceLeg(from, debited),
		balanceLeg(&to, to.Balance.Add(credited)),
		logLeg(tx),
	}

	result := &TransferResult{
		TransactionID: intent.ID,
		FromAccount:   from.AccountNumber,
		ToAccount:     to.AccountNumber,
		Amount:        req.Amount,
		FromCurrency:  from.Currency,
		ToAmount:      credited,
		ToCurrency:    to.Currency,
		Rate:          rate,
		NewBalance:    debited,
	}
	if err := s.commit(ctx, intent, result); err != nil {
		return nil, err
	}
	return result, nil
}

// Exchange converts money into another currency between the caller's own
// accounts, opening the destination account when needed.
func (s *ledgerService) Exchange(ctx context.Context, userID, idempotencyKey string, req ExchangeRequest) (*ExchangeResult, error) {
	req.ToCurrency = strings.ToUpper(strings.TrimSpace(req.ToCurrency))
	if req.FromAccount == "" || req.ToCurrency == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "from_account and to_currency are required")
	}
	if err := s.validAmount(req.Amount, "amount"); err != nil {
		return nil, err
	}

	res, replayed, err := runGuarded(ctx, s.guard, userID, idempotencyKey, opExchange, req, func(ctx context.Context) (*ExchangeResult, error) {
		return s.exchange(ctx, userID, idempotencyKey, req)
	})
	if err != nil {
		return nil, err
	}
	res.Replayed = replayed
	return res, nil
}

func (s *ledgerService) exchange(ctx context.Context, userID, key string, req ExchangeRequest) (*ExchangeResult, error) {
	// Checked without locks first so a doomed request never opens an account.
	accounts, err := s.loadAccounts(ctx)
	if err != nil {
		return nil, err
	}
	from, err := ownedAccount(accounts, req.FromAccount, userID)
	if err != nil {
		return nil, err
	}
	if from.Currency == req.ToCurrency {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "cannot exchange into the account's own currency")
	}
	if from.Balance.LessThan(req.Amount) {
		return nil, apperrors.ErrInsufficientFunds
	}
	rates, err := s.loadRates(ctx)
	if err != nil {
		return nil, err
	}
	if credited, _, err := rates.Convert(req.Amount, from.Currency, req.ToCurrency, s.opts.AmountScale); err != nil {
		return nil, rateFailure(err)
	} else if !credited.IsPositive() {
		return nil, errTooSmallToConvert
	}

	dest, provisioned, err := s.destinationAccount(ctx, userID, req.ToCurrency)
	if err != nil {
		return nil, err
	}

	keys := []string{accountKey(req.FromAccount), accountKey(dest.AccountNumber)}
	release, err := s.acquire(ctx, keys...)
	if err != nil {
		return nil, err
	}
	defer release()

	accounts, err = s.loadAccounts(ctx)
	if err != nil {
		return nil, err
	}
	from, err = ownedAccount(accounts, req.FromAccount, userID)
	if err != nil {
		return nil, err
	}
	to, ok := accounts[dest.AccountNumber]
	if !ok {
		return nil, apperrors.ErrAccountNotFound
	}
	if err := s.checkFlags(ctx, from.AccountNumber, to.AccountNumber); err != nil {
		return nil, err
	}
	if from.Balance.LessThan(req.Amount) {
		return nil, apperrors.ErrInsufficientFunds
	}
	credited, rate, err := rates.Convert(req.Amount, from.Currency, to.Currency, s.opts.AmountScale)
	if err != nil {
		return nil, rateFailure(err)
	}
	if !credited.IsPositive() {
		return nil, errTooSmallToConvert
	}

	intent := s.newIntent(models.TransactionKindExchange, userID, key, keys)
	tx := s.logEntry(intent, from.AccountNumber, to.AccountNumber, req.Amount, from.Currency,
		fmt.Sprintf("Exchange %s → %s", from.Currency, to.Currency))
	tx.ToAmount = &credited
	tx.ToCurrency = to.Currency
	tx.Rate = &rate

	debited := from.Balance.Sub(req.Amount)
	creditedBalance := to.Balance.Add(credited)
	intent.Legs = []models.Leg{
		balanceLeg(from, debited),
		balanceLeg(&to, creditedBalance),
		logLeg(tx),
	}

	result := &ExchangeResult{
		TransactionID: intent.ID,
		FromAccount:   from.AccountNumber,
		ToAccount:     to.AccountNumber,
		FromAmount:    req.Amount,
		FromCurrency:  from.Currency,
		ToAmount:      credited,
		ToCurrency:    to.Currency,
		Rate:          rate,
		NewBalance:    debited,
		Provisioned:   provisioned,
	}
	if provisioned {
		opened := to
		opened.Balance = creditedBalance
		result.Account = &opened
	}
	if err := s.commit(ctx, intent, result); err != nil {
		return nil, err
	}
	return result, nil
}

// destinationAccount returns the caller's active account in currency,
// opening one with a zero balance when none exists.
func (s *ledgerService) destinationAccount(ctx context.Context, userID, cur string) (*models.Account, bool, error) {
	release, err := s.acquire(ctx, provisionKey(userID, cur))
	if err != nil {
		return nil, false, err
	}
	defer release()

	owned, err := s.repo.AccountsByUser(ctx, userID)
	if err != nil {
		return nil, false, storeFailure(err)
	}
	for i := range owned {
		if owned[i].Currency == cur {
			return &owned[i], false, nil
		}
	}

	now := s.now()
	acc := &models.Account{
		ID:            uuid.New(),
		UserID:        userID,
		AccountNumber: uuid.AccountNumber(now),
		Currency:      cur,
		Balance:       decimal.Zero,
		AccountName:   cur + " account",
		CreatedDate:   now,
		Status:        models.AccountStatusActive,
	}
	if err := s.repo.AppendAccount(ctx, acc); err != nil {
		return nil, false, storeFailure(err)
	}
	logger.Get().Infow("account provisioned", "user_id", userID, "account_number", acc.AccountNumber, "currency", cur)
	return acc, true, nil
}

// IssueLoan disburses a loan into one of the caller's accounts.
func (s *ledgerService) IssueLoan(ctx context.Context, userID, idempotencyKey string, req LoanRequest) (*LoanResult, error) {
	req.Currency = strings.ToUpper(strings.TrimSpace(req.Currency))
	if req.AccountNumber == "" || req.Currency == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "account_number and currency are required")
	}
	if err := s.validAmount(req.Amount, "amount"); err != nil {
		return nil, err
	}
	if req.TermMonths <= 0 || req.TermMonths > s.opts.LoanMaxTermMonths {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput,
			fmt.Sprintf("term_months must be between 1 and %d", s.opts.LoanMaxTermMonths))
	}

	res, replayed, err := runGuarded(ctx, s.guard, userID, idempotencyKey, opLoan, req, func(ctx context.Context) (*LoanResult, error) {
		return s.issueLoan(ctx, userID, idempotencyKey, req)
	})
	if err != nil {
		return nil, err
	}
	res.Replayed = replayed
	return res, nil
}

func (s *ledgerService) issueLoan(ctx context.Context, userID, key string, req LoanRequest) (*LoanResult, error) {
	keys := []string{accountKey(req.AccountNumber)}
	release, err := s.acquire(ctx, keys...)
	if err != nil {
		return nil, err
	}
	defer release()

	accounts, err := s.loadAccounts(ctx)
	if err != nil {
		return nil, err
	}
	acc, err := ownedAccount(accounts, req.AccountNumber, userID)
	if err != nil {
		return nil, err
	}
	if err := s.checkFlags(ctx, acc.AccountNumber); err != nil {
		return nil, err
	}
	if acc.Currency != req.Currency {
		return nil, apperrors.ErrCurrencyMismatch
	}

	intent := s.newIntent(models.TransactionKindLoan, userID, key, keys)
	issued := intent.CreatedAt
	loan := models.Loan{
		ID:              uuid.New(),
		UserID:          userID,
		AccountNumber:   acc.AccountNumber,
		Principal:       req.Amount,
		Currency:        req.Currency,
		InterestRate:    s.opts.LoanAnnualRate,
		TermMonths:      req.TermMonths,
		Remaining:       req.Amount,
		IssuedDate:      issued,
		NextPaymentDate: issued.AddDate(0, 1, 0),
		Status:          models.LoanStatusActive,
	}
	tx := s.logEntry(intent, models.SystemBank, acc.AccountNumber, req.Amount, req.Currency,
		fmt.Sprintf("Loan for %d months", req.TermMonths))

	newBalance := acc.Balance.Add(req.Amount)
	intent.Legs = []models.Leg{
		balanceLeg(acc, newBalance),
		appendLeg(repository.TableLoans, loan.ID, repository.LoanCells(&loan), "status", string(models.LoanStatusVoid)),
		logLeg(tx),
	}

	result := &LoanResult{
		TransactionID: intent.ID,
		Loan:          loan,
		NewBalance:    newBalance,
	}
	if err := s.commit(ctx, intent, result); err != nil {
		return nil, err
	}
	return result, nil
}

// BuyStock buys whole shares priced in the account's currency.
func (s *ledgerService) BuyStock(ctx context.Context, userID, idempotencyKey string, req StockPurchaseRequest) (*StockPurchaseResult, error) {
	req.Symbol = strings.ToUpper(strings.TrimSpace(req.Symbol))
	if req.AccountNumber == "" || req.Symbol == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "account_number and stock_symbol are required")
	}
	if req.Quantity <= 0 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "quantity must be greater than zero")
	}

	res, replayed, err := runGuarded(ctx, s.guard, userID, idempotencyKey, opBuyStock, req, func(ctx context.Context) (*StockPurchaseResult, error) {
		return s.buyStock(ctx, userID, idempotencyKey, req)
	})
	if err != nil {
		return nil, err
	}
	res.Replayed = replayed
	return res, nil
}

func (s *ledgerService) buyStock(ctx context.Context, userID, key string, req StockPurchaseRequest) (*StockPurchaseResult, error) {
	keys := []string{accountKey(req.AccountNumber)}
	release, err := s.acquire(ctx, keys...)
	if err != nil {
		return nil, err
	}
	defer release()

	accounts, err := s.loadAccounts(ctx)
	if err != nil {
		return nil, err
	}
	acc, err := ownedAccount(accounts, req.AccountNumber, userID)
	if err != nil {
		return nil, err
	}
	if err := s.checkFlags(ctx, acc.AccountNumber); err != nil {
		return nil, err
	}

	stocks, err := s.repo.Stocks(ctx)
	if err != nil {
		return nil, storeFailure(err)
	}
	stock := findStock(stocks, req.Symbol)
	if stock == nil {
		return nil, apperrors.ErrStockNotFound
	}
	price, ok := stock.PriceIn(acc.Currency)
	if !ok {
		return nil, apperrors.WithMessage(apperrors.ErrUnsupportedCurrency,
			fmt.Sprintf("%s is not priced in %s", stock.Symbol, acc.Currency))
	}
	total := price.Mul(decimal.NewFromInt(req.Quantity)).Round(s.opts.AmountScale)
	if acc.Balance.LessThan(total) {
		return nil, apperrors.ErrInsufficientFunds
	}

	intent := s.newIntent(models.TransactionKindStockPurchase, userID, key, keys)
	entry := models.PortfolioEntry{
		ID:            uuid.New(),
		UserID:        userID,
		Symbol:        stock.Symbol,
		Quantity:      req.Quantity,
		PurchasePrice: price,
		Currency:      acc.Currency,
		PurchaseDate:  intent.CreatedAt,
		AccountNumber: acc.AccountNumber,
		Status:        models.HoldingStatusActive,
	}
	tx := s.logEntry(intent, acc.AccountNumber, models.SystemStockExchange, total, acc.Currency,
		fmt.Sprintf("Purchase of %d %s at %s", req.Quantity, stock.Symbol, currency.Format(price, acc.Currency)))

	newBalance := acc.Balance.Sub(total)
	intent.Legs = []models.Leg{
		balanceLeg(acc, newBalance),
		appendLeg(repository.TablePortfolios, entry.ID, repository.PortfolioCells(&entry), "status", string(models.HoldingStatusVoid)),
		logLeg(tx),
	}

	result := &StockPurchaseResult{
		TransactionID: intent.ID,
		Symbol:        stock.Symbol,
		Stock:         stock.CompanyName,
		Quantity:      req.Quantity,
		Price:         price,
		Total:         total,
		Currency:      acc.Currency,
		NewBalance:    newBalance,
	}
	if err := s.commit(ctx, intent, result); err != nil {
		return nil, err
	}
	return result, nil
}

// PayBill pays a pending bill exactly once.
func (s *ledgerService) PayBill(ctx context.Context, userID, idempotencyKey string, req BillPaymentRequest) (*BillPaymentResult, error) {
	if req.BillID == "" || req.FromAccount == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "bill_id and from_account are required")
	}

	res, replayed, err := runGuarded(ctx, s.guard, userID, idempotencyKey, opPayBill, req, func(ctx context.Context) (*BillPaymentResult, error) {
		return s.payBill(ctx, userID, idempotencyKey, req)
	})
	if err != nil {
		return nil, err
	}
	res.Replayed = replayed
	return res, nil
}

func (s *ledgerService) payBill(ctx context.Context, userID, key string, req BillPaymentRequest) (*BillPaymentResult, error) {
	keys := []string{billKey(req.BillID), accountKey(req.FromAccount)}
	release, err := s.acquire(ctx, keys...)
	if err != nil {
		return nil, err
	}
	defer release()

	bill, found, err := s.repo.FindBill(ctx, req.BillID)
	if err != nil {
		return nil, storeFailure(err)
	}
	if !found {
		return nil, apperrors.ErrBillNotFound
	}
	if bill.UserID != userID {
		return nil, apperrors.ErrForbidden
	}

	accounts, err := s.loadAccounts(ctx)
	if err != nil {
		return nil, err
	}
	acc, err := ownedAccount(accounts, req.FromAccount, userID)
	if err != nil {
		return nil, err
	}
	if err := s.checkFlags(ctx, acc.AccountNumber); err != nil {
		return nil, err
	}
	if bill.Status != models.BillStatusPending {
		return nil, apperrors.ErrBillAlreadyPaid
	}
	if bill.Currency != acc.Currency {
		return nil, apperrors.ErrCurrencyMismatch
	}
	if acc.Balance.LessThan(bill.Amount) {
		return nil, apperrors.ErrInsufficientFunds
	}

	intent := s.newIntent(models.TransactionKindBillPayment, userID, key, keys)
	tx := s.logEntry(intent, acc.AccountNumber, models.BillProviderRef(bill.Provider), bill.Amount, bill.Currency,
		fmt.Sprintf("Payment of bill %s", bill.BillNumber))

	newBalance := acc.Balance.Sub(bill.Amount)
	intent.Legs = []models.Leg{
		balanceLeg(acc, newBalance),
		cellLeg(repository.TableBills, bill.Ref, "status", string(models.BillStatusPending), string(models.BillStatusPaid)),
		logLeg(tx),
	}

	result := &BillPaymentResult{
		TransactionID: intent.ID,
		BillID:        bill.ID,
		BillNumber:    bill.BillNumber,
		Amount:        bill.Amount,
		Currency:      bill.Currency,
		Provider:      bill.Provider,
		NewBalance:    newBalance,
	}
	if err := s.commit(ctx, intent, result); err != nil {
		return nil, err
	}
	return result, nil
}

// --- shared steps ---

// runGuarded runs fn under the caller's idempotency key and decodes the
// stored response, so first runs and replays return identical values.
func runGuarded[T any](
	ctx context.Context,
	guard *idempotency.Guard,
	userID, key, operation string,
	req any,
	fn func(ctx context.Context) (*T, error),
) (*T, bool, error) {
	raw, replayed, err := guard.Do(ctx, userID, key, operation, req, func(ctx context.Context) (any, error) {
		return fn(ctx)
	})
	if err != nil {
		return nil, false, err
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, false, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &out, replayed, nil
}

func (s *ledgerService) validAmount(amount decimal.Decimal, field string) error {
	if !amount.IsPositive() {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, field+" must be greater than zero")
	}
	if !amount.Equal(amount.Round(s.opts.AmountScale)) {
		return apperrors.WithMessage(apperrors.ErrInvalidInput,
			fmt.Sprintf("%s supports at most %d decimal places", field, s.opts.AmountScale))
	}
	return nil
}

// acquire takes the operation's locks and refuses keys fenced by an
// unresolved intent.
func (s *ledgerService) acquire(ctx context.Context, keys ...string) (func(), error) {
	release, err := s.locks.Acquire(ctx, keys...)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStoreUnavailable, err)
	}
	if key, fenced := s.locks.Fenced(keys...); fenced {
		release()
		return nil, apperrors.WithMessage(apperrors.ErrAccountUnderReconciliation,
			fmt.Sprintf("%s has an unresolved operation, retry later", strings.SplitN(key, ":", 2)[0]))
	}
	return release, nil
}

func (s *ledgerService) loadAccounts(ctx context.Context) (map[string]models.Account, error) {
	accounts, err := s.repo.AccountsByNumber(ctx)
	if err != nil {
		return nil, storeFailure(err)
	}
	return accounts, nil
}

func (s *ledgerService) loadRates(ctx context.Context) (*ratetable.Table, error) {
	table, err := ratetable.Load(ctx, s.repo, s.opts.Rates)
	if err != nil {
		return nil, storeFailure(err)
	}
	return table, nil
}

// checkFlags refuses accounts with an open manual-review flag.
func (s *ledgerService) checkFlags(ctx context.Context, numbers ...string) error {
	flags, err := s.repo.OpenFlags(ctx)
	if err != nil {
		return storeFailure(err)
	}
	for _, f := range flags {
		for _, n := range numbers {
			if f.AccountNumber == n {
				return apperrors.WithMessage(apperrors.ErrAccountLocked,
					fmt.Sprintf("Account %s is flagged for manual review", n))
			}
		}
	}
	return nil
}

func (s *ledgerService) newIntent(kind models.TransactionKind, userID, key string, lockKeys []string) *models.Intent {
	now := s.now()
	return &models.Intent{
		ID:             uuid.New(),
		Kind:           kind,
		UserID:         userID,
		IdempotencyKey: key,
		Status:         models.IntentStatusPending,
		LockKeys:       normalizeKeys(lockKeys),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// logEntry builds the transaction log row for intent. It shares the
// intent's id.
func (s *ledgerService) logEntry(intent *models.Intent, from, to string, amount decimal.Decimal, cur, description string) *models.Transaction {
	completed := intent.CreatedAt
	return &models.Transaction{
		ID:             intent.ID,
		Timestamp:      intent.CreatedAt,
		FromRef:        from,
		ToRef:          to,
		Amount:         amount,
		Currency:       cur,
		Kind:           intent.Kind,
		Status:         models.TransactionStatusCompleted,
		Description:    description,
		IdempotencyKey: intent.IdempotencyKey,
		CompletedAt:    &completed,
	}
}

// commit stores the response alongside the intent, so reconciliation can
// answer a retry, and runs the saga.
func (s *ledgerService) commit(ctx context.Context, intent *models.Intent, result any) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	intent.Result = raw
	return s.saga.run(ctx, intent)
}

// ownedAccount resolves number to an active account owned by userID.
func ownedAccount(accounts map[string]models.Account, number, userID string) (*models.Account, error) {
	acc, ok := accounts[number]
	if !ok {
		return nil, apperrors.ErrAccountNotFound
	}
	if acc.UserID != userID {
		return nil, apperrors.ErrForbidden
	}
	return &acc, nil
}

func findStock(stocks []models.Stock, symbol string) *models.Stock {
	for i := range stocks {
		if strings.EqualFold(stocks[i].Symbol, symbol) {
			return &stocks[i]
		}
	}
	return nil
}

// errTooSmallToConvert rejects amounts whose converted value rounds to zero.
var errTooSmallToConvert = apperrors.WithMessage(apperrors.ErrInvalidInput, "amount too small to convert")

// storeFailure maps a failed read or pre-intent write to the caller-facing
// error. Nothing has been changed at that point.
func storeFailure(err error) error {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	if errors.Is(err, repository.ErrCorruptRow) {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return apperrors.Wrap(apperrors.ErrStoreUnavailable, err)
}

func rateFailure(err error) error {
	if errors.Is(err, ratetable.ErrAsymmetric) {
		return apperrors.WithMessage(apperrors.ErrRateNotFound, "Exchange rate for this pair is inconsistent and cannot be used")
	}
	if errors.Is(err, ratetable.ErrRateNotFound) {
		return apperrors.Wrap(apperrors.ErrRateNotFound, err)
	}
	return storeFailure(err)
}

func parseAmount(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

// IntentRef implements idempotency.Identified.
func (r *TransferResult) IntentRef() string { return r.TransactionID }

// IntentRef implements idempotency.Identified.
func (r *ExchangeResult) IntentRef() string { return r.TransactionID }

// IntentRef implements idempotency.Identified.
func (r *LoanResult) IntentRef() string { return r.TransactionID }

// IntentRef implements idempotency.Identified.
func (r *StockPurchaseResult) IntentRef() string { return r.TransactionID }

// IntentRef implements idempotency.Identified.
func (r *BillPaymentResult) IntentRef() string { return r.TransactionID }
