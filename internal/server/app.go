package server

import (
	"context"
	"time"

	"jadbank/internal/config"
	"jadbank/internal/events"
	"jadbank/internal/handlers"
	"jadbank/internal/idempotency"
	"jadbank/internal/repository"
	"jadbank/internal/services"
)

// Deps are the collaborators chosen by the caller: the repository over the
// configured row store, the idempotency store and the event publisher.
type Deps struct {
	Repo        *repository.Repository
	Idempotency idempotency.Store
	Publisher   events.Publisher
	// StorePing backs the health check; nil reads the flags table instead.
	StorePing handlers.HealthCheck
}

// App is the wired service graph.
type App struct {
	Repo       *repository.Repository
	Locks      *services.LockTable
	Reconciler *services.Reconciler
	Ledger     services.LedgerServicer
	Operator   services.OperatorServicer
	Handlers   Handlers
}

// NewApp wires services and handlers from cfg and deps.
func NewApp(cfg *config.Config, deps Deps) *App {
	if deps.Publisher == nil {
		deps.Publisher = events.NopPublisher{}
	}
	if deps.Idempotency == nil {
		deps.Idempotency = idempotency.NewRowStore(deps.Repo)
	}
	ping := deps.StorePing
	if ping == nil {
		ping = func(ctx context.Context) error {
			_, err := deps.Repo.Store().ReadRows(ctx, repository.TableFlags)
			return err
		}
	}

	opts := services.LedgerOptionsFromConfig(cfg)
	locks := services.NewLockTable()
	reconciler := services.NewReconciler(deps.Repo, locks, deps.Idempotency, deps.Publisher, cfg.KafkaTopicPrefix)

	ledgerService := services.NewLedgerService(deps.Repo, locks, idempotency.NewGuard(deps.Idempotency), reconciler, deps.Publisher, opts)
	accountService := services.NewAccountService(deps.Repo, opts.Rates, cfg.ReportCurrency)
	marketService := services.NewMarketService(deps.Repo, opts.Rates, cfg.ReportCurrency)
	loanService := services.NewLoanService(deps.Repo)
	billService := services.NewBillService(deps.Repo)
	operatorService := services.NewOperatorService(deps.Repo, reconciler)
	auditService := services.NewAuditService(deps.Repo)

	return &App{
		Repo:       deps.Repo,
		Locks:      locks,
		Reconciler: reconciler,
		Ledger:     ledgerService,
		Operator:   operatorService,
		Handlers: Handlers{
			Ledger:   handlers.NewLedgerHandler(ledgerService, auditService),
			Account:  handlers.NewAccountHandler(accountService),
			Market:   handlers.NewMarketHandler(marketService),
			Loan:     handlers.NewLoanHandler(loanService, billService),
			Operator: handlers.NewOperatorHandler(operatorService, auditService),
			Health:   handlers.NewHealthHandler(map[string]handlers.HealthCheck{"store": ping}, 2*time.Second),
		},
	}
}
