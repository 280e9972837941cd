// Package billsjob composes the banking session client, the pure
// transaction pipeline and the ledger synchronizer into one end-to-end
// reconciliation run.
package billsjob

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/dvloznov/autobills/internal/config"
	"github.com/dvloznov/autobills/internal/domain"
	"github.com/dvloznov/autobills/internal/ledger"
	"github.com/dvloznov/autobills/internal/logger"
)

// BankSession defines the interface for the authenticated banking portal
// session. This interface enables mocking and testing of the run without a
// live portal.
type BankSession interface {
	// Login performs the login handshake and returns the portal's verdict.
	Login(ctx context.Context, memberNumber, password string) (domain.LoginResult, error)

	// FetchBalances establishes the session cookies the JSON endpoints
	// need and returns the referrer URL for subsequent calls.
	FetchBalances(ctx context.Context) (*url.URL, error)

	// FetchAccounts lists the member's accounts.
	FetchAccounts(ctx context.Context, referrer *url.URL) ([]domain.Account, error)

	// FetchTransactionHistory queries one page of transactions.
	FetchTransactionHistory(ctx context.Context, referrer *url.URL, accountNumber string, beginDate, endDate time.Time) (*domain.TransactionHistory, error)

	// Logout ends the server-side session, best-effort.
	Logout(ctx context.Context, referrer *url.URL) error
}

// LedgerSync defines the interface for the ledger reconciliation step.
type LedgerSync interface {
	Sync(ctx context.Context, txns []domain.Transaction) (ledger.SyncResult, error)
}

// Job is one configured reconciliation run, ready to execute.
type Job struct {
	bank     BankSession
	ledger   LedgerSync
	settings config.Settings

	// nowFn is the clock used to compute the query window; injectable for
	// tests.
	nowFn func() time.Time
}

// New builds a Job over an unauthenticated bank session and a synchronizer.
func New(bank BankSession, ledgerSync LedgerSync, settings config.Settings) *Job {
	return &Job{
		bank:     bank,
		ledger:   ledgerSync,
		settings: settings,
		nowFn:    time.Now,
	}
}

// Run executes one reconciliation pass: login, cookie establishment,
// transaction fetch over roughly the last month, merchant filtering and
// cleanup, then ledger sync. A rejected login is an outcome, not an error:
// it is logged and the run ends cleanly with no ledger access. Transport
// failures propagate and end the run; once a session is established, logout
// is attempted on every exit path except cancellation.
func (j *Job) Run(ctx context.Context) error {
	log := logger.FromContext(ctx)

	log.Info().Msg("Checking for bills...")

	login, err := j.bank.Login(ctx, j.settings.MemberNumber, j.settings.Password)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	if !login.Valid {
		log.Error().
			Str("error_code", login.ErrorCode).
			Msg("Could not login to the internet banking service")
		return nil
	}

	var referrer *url.URL
	defer func() {
		// The session is established from here on. Cancellation skips
		// the logout: the context is already dead.
		if ctx.Err() != nil {
			return
		}
		if err := j.bank.Logout(ctx, referrer); err != nil {
			log.Warn().Err(err).Msg("Logout failed, session will expire server-side")
		}
	}()

	// Load balances purely for the session cookies and the referrer URI.
	referrer, err = j.bank.FetchBalances(ctx)
	if err != nil {
		return fmt.Errorf("fetch balances: %w", err)
	}

	accounts, err := j.bank.FetchAccounts(ctx, referrer)
	if err != nil {
		return fmt.Errorf("fetch accounts: %w", err)
	}
	for _, a := range accounts {
		log.Debug().
			Str("account_number", a.AccountNumber).
			Str("description", a.Description).
			Msg("Account visible to session")
	}

	endDate := j.nowFn()
	beginDate := endDate.AddDate(0, -1, 1)

	history, err := j.bank.FetchTransactionHistory(ctx, referrer, j.settings.AccountNumber, beginDate, endDate)
	if err != nil {
		return fmt.Errorf("fetch transaction history: %w", err)
	}
	if history == nil {
		log.Warn().Msg("Portal returned no transaction data")
		return nil
	}
	if history.MoreTransactionsAreAvailable {
		log.Warn().Msg("More transactions available beyond one page, older entries not examined")
	}

	matching := domain.PrepareForLedger(history.TransactionDetails, j.settings.MerchantNames)

	log.Info().
		Int("fetched", len(history.TransactionDetails)).
		Int("matching", len(matching)).
		Msg("Transactions fetched")

	if len(matching) == 0 {
		return nil
	}

	result, err := j.ledger.Sync(ctx, matching)
	if err != nil {
		return fmt.Errorf("sync ledger: %w", err)
	}

	log.Info().
		Int("appended", result.Appended).
		Int("skipped", result.Skipped).
		Msg("Bills reconciliation completed")

	return nil
}
