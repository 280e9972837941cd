package bank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/dvloznov/autobills/internal/domain"
)

const (
	loginPath    = "/api/ajaxlogin/login"
	balancesPath = "/accounts/balances/"
	accountsPath = "/platform.axd?u=account%2FGetAccountsBasicData"
	historyPath  = "/platform.axd?u=transaction%2FGetTransactionHistory"
	logoutPath   = "/logout"

	// The portal's endpoints are fronted by anti-automation heuristics;
	// these header values match what its own browser frontend sends and
	// must be reproduced verbatim.
	browserAccept = "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,image/apng,*/*;q=0.8,application/signed-exchange;v=b3;q=0.9"
	jsonAccept    = "application/json; charset=utf-8"

	historyDateFormat = "2006-01-02T15:04:05.000"
)

// Client owns one authenticated, cookie-carrying session against the banking
// portal. One run gets one Client; it is not safe for concurrent use and is
// discarded after logout.
type Client struct {
	http      *http.Client
	base      *url.URL
	userAgent string
	extractor AttributeExtractor
}

// New builds an unauthenticated session client for the portal at
// baseAddress. Timeouts are left to the transport default.
func New(baseAddress, userAgent string, extractor AttributeExtractor) (*Client, error) {
	base, err := url.Parse(baseAddress)
	if err != nil {
		return nil, fmt.Errorf("parse portal address: %w", err)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	return &Client{
		http:      &http.Client{Jar: jar},
		base:      base,
		userAgent: userAgent,
		extractor: extractor,
	}, nil
}

// Login performs the two-step handshake: fetch the login page, lift the
// anti-forgery token and the five workflow-routing hidden fields out of its
// HTML, then POST them with the credentials. The portal's own verdict is
// returned as-is; a non-2xx response at either step yields an invalid
// result, not an error. Only transport failures are errors.
func (c *Client) Login(ctx context.Context, memberNumber, password string) (domain.LoginResult, error) {
	pageReq, err := c.newRequest(ctx, http.MethodGet, "/", nil)
	if err != nil {
		return domain.LoginResult{}, err
	}

	pageResp, err := c.http.Do(pageReq)
	if err != nil {
		return domain.LoginResult{}, fmt.Errorf("fetch login page: %w", err)
	}
	defer drain(pageResp)

	if !successful(pageResp) {
		return domain.LoginResult{}, nil
	}

	doc, err := goquery.NewDocumentFromReader(pageResp.Body)
	if err != nil {
		return domain.LoginResult{}, fmt.Errorf("parse login page: %w", err)
	}

	form := url.Values{}
	form.Set("__RequestVerificationToken", c.extractor.Extract(doc, "input[name='__RequestVerificationToken']", "value"))
	for _, field := range []string{"DefaultUrl", "Factor2Url", "OtpUrl", "DeniedUrl", "PersonaLandingUrl"} {
		form.Set(field, c.extractor.Extract(doc, "#"+field, "value"))
	}
	form.Set("MemberNumber", memberNumber)
	form.Set("Password", password)

	req, err := c.newRequest(ctx, http.MethodPost, loginPath, strings.NewReader(form.Encode()))
	if err != nil {
		return domain.LoginResult{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	req.Header.Set("sec-fetch-dest", "empty")
	req.Header.Set("sec-fetch-mode", "cors")
	req.Header.Set("sec-fetch-site", "same-origin")
	req.Header.Set("Origin", c.base.String())
	req.Header.Set("Referrer", c.base.String())
	req.Header.Set("Accept", "*/*")

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.LoginResult{}, fmt.Errorf("post login: %w", err)
	}
	defer drain(resp)

	if !successful(resp) {
		return domain.LoginResult{}, nil
	}

	var verdict loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&verdict); err != nil {
		return domain.LoginResult{}, fmt.Errorf("decode login response: %w", err)
	}
	return verdict.toDomain(), nil
}

// FetchBalances loads the account-balances page. The body is irrelevant; the
// call exists to make the portal set the session cookies its JSON endpoints
// require, and to yield the final request URL (post-redirect) used as the
// referrer on those later calls. Must follow a valid login.
func (c *Client) FetchBalances(ctx context.Context) (*url.URL, error) {
	req, err := c.newRequest(ctx, http.MethodGet, balancesPath, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Referrer", c.base.String())
	req.Header.Set("Accept", browserAccept)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch balances: %w", err)
	}
	defer drain(resp)

	return resp.Request.URL, nil
}

// FetchAccounts lists the member's accounts (number and description).
// Non-2xx responses yield a nil slice without error.
func (c *Client) FetchAccounts(ctx context.Context, referrer *url.URL) ([]domain.Account, error) {
	body, err := json.Marshal(accountDataRequest{ForceFetchData: false})
	if err != nil {
		return nil, fmt.Errorf("encode account request: %w", err)
	}

	resp, err := c.postJSON(ctx, accountsPath, referrer, body)
	if err != nil {
		return nil, fmt.Errorf("fetch accounts: %w", err)
	}
	defer drain(resp)

	if !successful(resp) {
		return nil, nil
	}

	var entries []accountResponse
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("decode accounts: %w", err)
	}

	accounts := make([]domain.Account, len(entries))
	for i, e := range entries {
		accounts[i] = domain.Account{AccountNumber: e.AccountNumber, Description: e.Description}
	}
	return accounts, nil
}

// FetchTransactionHistory queries one page of transactions for the account
// over [beginDate, endDate]. Non-2xx responses yield nil without error.
func (c *Client) FetchTransactionHistory(ctx context.Context, referrer *url.URL, accountNumber string, beginDate, endDate time.Time) (*domain.TransactionHistory, error) {
	body, err := json.Marshal(transactionHistoryRequest{
		AccountNumber:          accountNumber,
		BeginDate:              beginDate.Format(historyDateFormat),
		EndDate:                endDate.Format(historyDateFormat),
		NewestTransactionFirst: true,
		TransactionTypeID:      1900,
		IsSearchFiltered:       false,
	})
	if err != nil {
		return nil, fmt.Errorf("encode history request: %w", err)
	}

	resp, err := c.postJSON(ctx, historyPath, referrer, body)
	if err != nil {
		return nil, fmt.Errorf("fetch transaction history: %w", err)
	}
	defer drain(resp)

	if !successful(resp) {
		return nil, nil
	}

	var history transactionHistoryResponse
	if err := json.NewDecoder(resp.Body).Decode(&history); err != nil {
		return nil, fmt.Errorf("decode transaction history: %w", err)
	}
	return history.toDomain(), nil
}

// Logout ends the server-side session. Best-effort: the response is
// discarded and a failure only risks a stale session, which expires
// server-side anyway.
func (c *Client) Logout(ctx context.Context, referrer *url.URL) error {
	req, err := c.newRequest(ctx, http.MethodGet, logoutPath, nil)
	if err != nil {
		return err
	}
	if referrer != nil {
		req.Header.Set("Referrer", referrer.String())
	}
	req.Header.Set("Accept", browserAccept)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	drain(resp)
	return nil
}

func (c *Client) postJSON(ctx context.Context, path string, referrer *url.URL, body []byte) (*http.Response, error) {
	req, err := c.newRequest(ctx, http.MethodPost, path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Origin", c.base.String())
	if referrer != nil {
		req.Header.Set("Referrer", referrer.String())
	}
	req.Header.Set("Accept", jsonAccept)

	return c.http.Do(req)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	endpoint := strings.TrimSuffix(c.base.String(), "/") + path
	if path == "/" {
		endpoint = c.base.String()
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	return req, nil
}

func successful(resp *http.Response) bool {
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}
