package bank

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"
)

// loginPageHTML mirrors the shape of the live portal's login page. The
// PersonaLandingUrl field is deliberately absent to cover the degraded case.
const loginPageHTML = `<!DOCTYPE html>
<html>
<body>
<form action="/api/ajaxlogin/login" method="post">
<input name="__RequestVerificationToken" type="hidden" value="tok-123" />
<input id="DefaultUrl" type="hidden" value="/accounts/" />
<input id="Factor2Url" type="hidden" value="/login/factor2" />
<input id="OtpUrl" type="hidden" value="/login/otp" />
<input id="DeniedUrl" type="hidden" value="/login/denied" />
<input name="MemberNumber" type="text" />
<input name="Password" type="password" />
</form>
</body>
</html>`

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := New(server.URL, "test-agent", GoqueryExtractor{})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return client, server
}

func TestLogin_Success(t *testing.T) {
	var postedForm url.Values
	var postedHeaders http.Header
	var gotCookie bool

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "portal-session", Value: "abc"})
		_, _ = io.WriteString(w, loginPageHTML)
	})
	mux.HandleFunc("/api/ajaxlogin/login", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm() error: %v", err)
		}
		postedForm = r.PostForm
		postedHeaders = r.Header
		if _, err := r.Cookie("portal-session"); err == nil {
			gotCookie = true
		}
		_, _ = io.WriteString(w, `{"valid":true,"errorCode":null}`)
	})

	client, server := newTestClient(t, mux)

	result, err := client.Login(context.Background(), "12345", "hunter2")
	if err != nil {
		t.Fatalf("Login() error: %v", err)
	}
	if !result.Valid {
		t.Error("Login() result not valid")
	}

	wantForm := map[string]string{
		"__RequestVerificationToken": "tok-123",
		"DefaultUrl":                 "/accounts/",
		"Factor2Url":                 "/login/factor2",
		"OtpUrl":                     "/login/otp",
		"DeniedUrl":                  "/login/denied",
		"PersonaLandingUrl":          "", // absent from page, posted empty
		"MemberNumber":               "12345",
		"Password":                   "hunter2",
	}
	for field, want := range wantForm {
		if _, present := postedForm[field]; !present {
			t.Errorf("login form missing field %q", field)
			continue
		}
		if got := postedForm.Get(field); got != want {
			t.Errorf("login form field %q = %q, want %q", field, got, want)
		}
	}

	wantHeaders := map[string]string{
		"X-Requested-With": "XMLHttpRequest",
		"Sec-Fetch-Dest":   "empty",
		"Sec-Fetch-Mode":   "cors",
		"Sec-Fetch-Site":   "same-origin",
		"Origin":           server.URL,
		"Referrer":         server.URL,
		"Accept":           "*/*",
		"User-Agent":       "test-agent",
	}
	for name, want := range wantHeaders {
		if got := postedHeaders.Get(name); got != want {
			t.Errorf("login header %q = %q, want %q", name, got, want)
		}
	}

	if !gotCookie {
		t.Error("login POST did not carry the session cookie from the login page")
	}
}

func TestLogin_PageUnavailable(t *testing.T) {
	var posted bool

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	mux.HandleFunc("/api/ajaxlogin/login", func(w http.ResponseWriter, r *http.Request) {
		posted = true
	})

	client, _ := newTestClient(t, mux)

	result, err := client.Login(context.Background(), "12345", "hunter2")
	if err != nil {
		t.Fatalf("Login() error: %v", err)
	}
	if result.Valid {
		t.Error("Login() valid after unavailable login page")
	}
	if posted {
		t.Error("login POST issued despite failed page fetch")
	}
}

func TestLogin_RejectedCredentials(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, loginPageHTML)
	})
	mux.HandleFunc("/api/ajaxlogin/login", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"valid":false,"errorCode":"bad_credentials"}`)
	})

	client, _ := newTestClient(t, mux)

	result, err := client.Login(context.Background(), "12345", "wrong")
	if err != nil {
		t.Fatalf("Login() error: %v", err)
	}
	if result.Valid {
		t.Error("Login() valid for rejected credentials")
	}
	if result.ErrorCode != "bad_credentials" {
		t.Errorf("Login() error code = %q, want %q", result.ErrorCode, "bad_credentials")
	}
}

func TestLogin_PostFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, loginPageHTML)
	})
	mux.HandleFunc("/api/ajaxlogin/login", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	client, _ := newTestClient(t, mux)

	result, err := client.Login(context.Background(), "12345", "hunter2")
	if err != nil {
		t.Fatalf("Login() error: %v", err)
	}
	if result.Valid {
		t.Error("Login() valid after forbidden login POST")
	}
	if result.ErrorCode != "" {
		t.Errorf("Login() error code = %q, want empty", result.ErrorCode)
	}
}

func TestFetchBalances_ReturnsFinalURL(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/accounts/balances/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/accounts/balances/home", http.StatusFound)
	})
	mux.HandleFunc("/accounts/balances/home", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "<html></html>")
	})

	client, _ := newTestClient(t, mux)

	referrer, err := client.FetchBalances(context.Background())
	if err != nil {
		t.Fatalf("FetchBalances() error: %v", err)
	}
	if referrer.Path != "/accounts/balances/home" {
		t.Errorf("FetchBalances() referrer path = %q, want post-redirect %q", referrer.Path, "/accounts/balances/home")
	}
}

func TestFetchAccounts(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/platform.axd", func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.RawQuery; got != "u=account%2FGetAccountsBasicData" {
			t.Errorf("query = %q", got)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request body: %v", err)
		}
		if v, ok := body["ForceFetchData"]; !ok || v != false {
			t.Errorf("ForceFetchData = %v, want false", v)
		}
		_, _ = io.WriteString(w, `[{"AccountNumber":"100200","Description":"Everyday"},{"AccountNumber":"100201","Description":"Savings"}]`)
	})

	client, _ := newTestClient(t, mux)

	referrer := &url.URL{Scheme: "https", Host: "bank.example", Path: "/accounts/balances/"}
	accounts, err := client.FetchAccounts(context.Background(), referrer)
	if err != nil {
		t.Fatalf("FetchAccounts() error: %v", err)
	}
	if len(accounts) != 2 {
		t.Fatalf("FetchAccounts() returned %d accounts, want 2", len(accounts))
	}
	if accounts[0].AccountNumber != "100200" || accounts[0].Description != "Everyday" {
		t.Errorf("unexpected first account: %+v", accounts[0])
	}
}

func TestFetchTransactionHistory(t *testing.T) {
	var gotBody map[string]any
	var gotHeaders http.Header
	var gotQuery string

	mux := http.NewServeMux()
	mux.HandleFunc("/platform.axd", func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		gotHeaders = r.Header
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request body: %v", err)
		}
		_, _ = io.WriteString(w, `{
			"TransactionDetails": [
				{"AccountNumber":"100200","EffectiveDate":"2024-05-01T00:00:00","CreateDate":"2024-05-02T08:15:00","DebitAmount":12.34,"CreditAmount":0,"Description":"VISA Purchase COFFEE CO 0505"}
			],
			"MoreTransactionsAreAvailable": true
		}`)
	})

	client, _ := newTestClient(t, mux)

	referrer := &url.URL{Scheme: "https", Host: "bank.example", Path: "/accounts/balances/"}
	begin := time.Date(2024, 4, 2, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	history, err := client.FetchTransactionHistory(context.Background(), referrer, "100200", begin, end)
	if err != nil {
		t.Fatalf("FetchTransactionHistory() error: %v", err)
	}

	if gotQuery != "u=transaction%2FGetTransactionHistory" {
		t.Errorf("query = %q", gotQuery)
	}
	if got := gotHeaders.Get("Referrer"); got != referrer.String() {
		t.Errorf("Referrer header = %q, want %q", got, referrer.String())
	}
	if got := gotHeaders.Get("Accept"); got != "application/json; charset=utf-8" {
		t.Errorf("Accept header = %q", got)
	}

	wantBody := map[string]any{
		"AccountNumber":          "100200",
		"BeginDate":              "2024-04-02T00:00:00.000",
		"EndDate":                "2024-05-01T00:00:00.000",
		"NewestTransactionFirst": true,
		"TransactionTypeId":      float64(1900),
		"isSearchFiltered":       false,
	}
	for key, want := range wantBody {
		got, ok := gotBody[key]
		if !ok {
			t.Errorf("request body missing field %q", key)
			continue
		}
		if got != want {
			t.Errorf("request body field %q = %v, want %v", key, got, want)
		}
	}

	if !history.MoreTransactionsAreAvailable {
		t.Error("MoreTransactionsAreAvailable not carried through")
	}
	if len(history.TransactionDetails) != 1 {
		t.Fatalf("got %d transactions, want 1", len(history.TransactionDetails))
	}

	txn := history.TransactionDetails[0]
	if txn.Description != "VISA Purchase COFFEE CO 0505" {
		t.Errorf("description = %q", txn.Description)
	}
	if want := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC); !txn.EffectiveDate.Equal(want) {
		t.Errorf("effective date = %v, want %v", txn.EffectiveDate, want)
	}
	if txn.DebitAmount.StringFixed(2) != "12.34" {
		t.Errorf("debit amount = %s, want 12.34", txn.DebitAmount.StringFixed(2))
	}
}

func TestFetchTransactionHistory_Non2xx(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/platform.axd", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	client, _ := newTestClient(t, mux)

	history, err := client.FetchTransactionHistory(context.Background(), nil, "100200", time.Now().AddDate(0, -1, 1), time.Now())
	if err != nil {
		t.Fatalf("FetchTransactionHistory() error: %v", err)
	}
	if history != nil {
		t.Errorf("FetchTransactionHistory() = %+v, want nil for non-2xx", history)
	}
}

func TestLogout_BestEffort(t *testing.T) {
	var gotReferrer string

	mux := http.NewServeMux()
	mux.HandleFunc("/logout", func(w http.ResponseWriter, r *http.Request) {
		gotReferrer = r.Header.Get("Referrer")
		w.WriteHeader(http.StatusInternalServerError)
	})

	client, _ := newTestClient(t, mux)

	referrer := &url.URL{Scheme: "https", Host: "bank.example", Path: "/accounts/balances/"}
	if err := client.Logout(context.Background(), referrer); err != nil {
		t.Fatalf("Logout() error on non-2xx: %v", err)
	}
	if gotReferrer != referrer.String() {
		t.Errorf("logout Referrer = %q, want %q", gotReferrer, referrer.String())
	}
}

func TestGoqueryExtractor_MissingField(t *testing.T) {
	doc := mustParse(t, loginPageHTML)

	extractor := GoqueryExtractor{}

	if got := extractor.Extract(doc, "#DefaultUrl", "value"); got != "/accounts/" {
		t.Errorf("Extract(DefaultUrl) = %q, want %q", got, "/accounts/")
	}
	if got := extractor.Extract(doc, "#PersonaLandingUrl", "value"); got != "" {
		t.Errorf("Extract(missing element) = %q, want empty", got)
	}
	if got := extractor.Extract(doc, "#DefaultUrl", "nope"); got != "" {
		t.Errorf("Extract(missing attribute) = %q, want empty", got)
	}
}
