package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is one card transaction as reported by the banking portal.
// It is immutable once fetched; description cleanup happens on a copy via
// the filter/normalize pipeline, never in place.
type Transaction struct {
	AccountNumber string
	EffectiveDate time.Time
	CreateDate    time.Time
	DebitAmount   decimal.Decimal
	CreditAmount  decimal.Decimal
	Description   string
}

// TransactionHistory is one page of transaction results. The portal may
// report that more transactions exist beyond this page; callers log that and
// move on, pagination is deliberately not implemented (the query window is
// bounded to roughly one month).
type TransactionHistory struct {
	TransactionDetails           []Transaction
	MoreTransactionsAreAvailable bool
}

// Account is a basic account listing entry from the portal.
type Account struct {
	AccountNumber string
	Description   string
}

// LoginResult is the portal's own verdict on a login attempt. A false Valid
// is a first-class outcome, not an error; ErrorCode carries the portal's
// reason when it supplies one.
type LoginResult struct {
	Valid     bool
	ErrorCode string
}

// SheetDateFormat is how dates are rendered in ledger sheet cells.
const SheetDateFormat = "02/01/2006"

// CandidateEntry is the three-field projection of a transaction used both
// for dedup comparison against existing ledger rows and for building new
// rows. Two entries are the same ledger fact iff all three formatted fields
// are equal.
type CandidateEntry struct {
	Date        string
	Description string
	Amount      string
}

// Candidate projects the transaction into its sheet-formatted form:
// dd/mm/yyyy date and a fixed two-decimal debit amount (no currency symbol;
// the "$" prefix is applied where sheet cells are compared).
func (t Transaction) Candidate() CandidateEntry {
	return CandidateEntry{
		Date:        t.EffectiveDate.Format(SheetDateFormat),
		Description: t.Description,
		Amount:      t.DebitAmount.StringFixed(2),
	}
}
