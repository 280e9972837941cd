package bank

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/autobills/internal/domain"
)

// portalTime tolerates the handful of date renderings the portal has been
// seen to produce (with and without fractional seconds or a zone suffix).
type portalTime struct {
	time.Time
}

var portalTimeLayouts = []string{
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.9999999",
	time.RFC3339,
	"2006-01-02",
}

func (t *portalTime) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range portalTimeLayouts {
		parsed, err := time.Parse(layout, s)
		if err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("unrecognised portal date %q", s)
}

// loginResponse mirrors the portal's login verdict JSON.
type loginResponse struct {
	Valid     bool   `json:"valid"`
	ErrorCode string `json:"errorCode"`
}

func (r loginResponse) toDomain() domain.LoginResult {
	return domain.LoginResult{Valid: r.Valid, ErrorCode: r.ErrorCode}
}

// accountResponse mirrors one entry of the basic account-data listing.
type accountResponse struct {
	AccountNumber string `json:"AccountNumber"`
	Description   string `json:"Description"`
}

// transactionResponse mirrors one transaction line item. Fields the portal
// adds beyond these are ignored; fields it omits decode to zero values.
type transactionResponse struct {
	AccountNumber string          `json:"AccountNumber"`
	EffectiveDate portalTime      `json:"EffectiveDate"`
	CreateDate    portalTime      `json:"CreateDate"`
	DebitAmount   decimal.Decimal `json:"DebitAmount"`
	CreditAmount  decimal.Decimal `json:"CreditAmount"`
	Description   string          `json:"Description"`
}

type transactionHistoryResponse struct {
	TransactionDetails           []transactionResponse `json:"TransactionDetails"`
	MoreTransactionsAreAvailable bool                  `json:"MoreTransactionsAreAvailable"`
}

func (r transactionHistoryResponse) toDomain() *domain.TransactionHistory {
	history := &domain.TransactionHistory{
		MoreTransactionsAreAvailable: r.MoreTransactionsAreAvailable,
	}
	for _, t := range r.TransactionDetails {
		history.TransactionDetails = append(history.TransactionDetails, domain.Transaction{
			AccountNumber: t.AccountNumber,
			EffectiveDate: t.EffectiveDate.Time,
			CreateDate:    t.CreateDate.Time,
			DebitAmount:   t.DebitAmount,
			CreditAmount:  t.CreditAmount,
			Description:   t.Description,
		})
	}
	return history
}

// transactionHistoryRequest is the exact JSON body the history endpoint
// expects; field names (including the lowercase isSearchFiltered) are a
// compatibility contract with the live portal.
type transactionHistoryRequest struct {
	AccountNumber          string `json:"AccountNumber"`
	BeginDate              string `json:"BeginDate"`
	EndDate                string `json:"EndDate"`
	NewestTransactionFirst bool   `json:"NewestTransactionFirst"`
	TransactionTypeID      int    `json:"TransactionTypeId"`
	IsSearchFiltered       bool   `json:"isSearchFiltered"`
}

// accountDataRequest is the body of the basic account-data endpoint.
type accountDataRequest struct {
	ForceFetchData bool `json:"ForceFetchData"`
}
