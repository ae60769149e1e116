package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/flow-hydraulics/wallet-orchestrator/accounts"
	"github.com/flow-hydraulics/wallet-orchestrator/adapters"
	"github.com/flow-hydraulics/wallet-orchestrator/assets"
	"github.com/flow-hydraulics/wallet-orchestrator/chains"
	"github.com/flow-hydraulics/wallet-orchestrator/internal/test"
	"github.com/flow-hydraulics/wallet-orchestrator/jobs"
	"github.com/flow-hydraulics/wallet-orchestrator/wallets"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
)

const watched = "0x7E5F4552091A69125d5DfCb7b8C2659029395Bdf"

type staticAdapter struct {
	*chains.BalanceTracker
	adapters.ReceiveDefaults
	address string
}

func (a *staticAdapter) Start() error {
	a.SetBalance(adapters.BalanceData{Available: decimal.RequireFromString("1.5"), Locked: decimal.Zero})
	a.SetState(adapters.Synced())
	return nil
}

func (a *staticAdapter) Stop() { a.Close() }

func (a *staticAdapter) Refresh(ctx context.Context) error { return nil }

func (a *staticAdapter) DebugInfo() string { return "static" }

func (a *staticAdapter) ReceiveAddress() string { return a.address }

func (a *staticAdapter) IsMainNet() bool { return true }

func (a *staticAdapter) Capabilities() adapters.Capabilities {
	return adapters.Capabilities{Balance: a, Receive: a}
}

func newRouter(t *testing.T) (*mux.Router, *wallets.Manager, *adapters.Manager) {
	t.Helper()

	cfg := test.LoadConfig(t)
	db := test.GetDatabase(t, cfg)
	logger, _ := test.Logger(t)

	catalog := assets.NewService(assets.NewGormStore(db))
	eth := assets.Token{Query: assets.TokenQuery{BlockchainType: assets.Ethereum, TokenType: assets.NativeToken()}, Name: "Ethereum", Code: "ETH", Decimals: 18}
	if err := catalog.AddToken(eth); err != nil {
		t.Fatal(err)
	}

	am := accounts.NewManager(accounts.NewGormStore(db), accounts.WithLogger(logger))
	t.Cleanup(am.Close)

	wm := wallets.NewManager(am, wallets.NewStorage(wallets.NewGormStore(db), catalog), wallets.WithLogger(logger))
	t.Cleanup(wm.Stop)

	registry := chains.NewRegistry(chains.WithLogger(logger))
	registry.Register(assets.Ethereum, adapters.FactoryFunc(func(ctx context.Context, w wallets.Wallet) (adapters.Adapter, error) {
		address, err := chains.ReceiveAddress(w.Account, w.Blockchain())
		if err != nil {
			return nil, err
		}
		return &staticAdapter{BalanceTracker: chains.NewBalanceTracker(), address: address}, nil
	}))

	pool := jobs.NewWorkerPool(16, 2, jobs.WithLogger(logger))
	t.Cleanup(pool.Stop)

	adm := adapters.NewManager(wm, registry, pool, adapters.WithLogger(logger))
	t.Cleanup(adm.Stop)

	if err := wm.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	adm.Start(context.Background())

	accountHandler := NewAccounts(am)
	walletHandler := NewWallets(wm, catalog, adm)
	adapterHandler := NewAdapters(adm)

	r := mux.NewRouter()
	rv := r.PathPrefix("/{apiVersion}").Subrouter()
	rv.Handle("/health/ready", Ready(adm.Ready)).Methods(http.MethodGet)
	rv.Handle("/accounts", accountHandler.List()).Methods(http.MethodGet)
	rv.Handle("/accounts", accountHandler.Create()).Methods(http.MethodPost)
	rv.Handle("/accounts/active", accountHandler.Active()).Methods(http.MethodGet)
	rv.Handle("/accounts/{id}", accountHandler.Delete()).Methods(http.MethodDelete)
	rv.Handle("/accounts/{id}/activate", accountHandler.Activate()).Methods(http.MethodPost)
	rv.Handle("/wallets", walletHandler.List()).Methods(http.MethodGet)
	rv.Handle("/wallets", walletHandler.Enable()).Methods(http.MethodPost)
	rv.Handle("/wallets", walletHandler.Disable()).Methods(http.MethodDelete)
	rv.Handle("/wallets/{walletId}/state", walletHandler.State()).Methods(http.MethodGet)
	rv.Handle("/wallets/{walletId}/balance", walletHandler.Balance()).Methods(http.MethodGet)
	rv.Handle("/wallets/{walletId}/receive-address", walletHandler.ReceiveAddress()).Methods(http.MethodGet)
	rv.Handle("/wallets/{walletId}/refresh", walletHandler.Refresh()).Methods(http.MethodPost)
	rv.Handle("/adapters/refresh", adapterHandler.Refresh()).Methods(http.MethodPost)
	rv.Handle("/adapters/states", adapterHandler.States()).Methods(http.MethodGet)

	return r, wm, adm
}

func send(router *mux.Router, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	req.Header.Set("content-type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHandlers(t *testing.T) {
	router, wm, adm := newRouter(t)

	var account AccountJSON
	walletPath := func(suffix string) string {
		id := url.PathEscape("ethereum|native@" + account.ID)
		return "/v1/wallets/" + id + suffix
	}

	// NOTE: The order of the steps matters
	steps := []struct {
		name     string
		method   string
		url      func() string
		body     string
		expected string
		status   int
		before   func(t *testing.T)
	}{
		{
			name:     "list accounts db empty",
			method:   http.MethodGet,
			url:      func() string { return "/v1/accounts" },
			expected: `\[\]\n`,
			status:   http.StatusOK,
		},
		{
			name:     "active account missing",
			method:   http.MethodGet,
			url:      func() string { return "/v1/accounts/active" },
			expected: `no active account on level 0\n`,
			status:   http.StatusNotFound,
		},
		{
			name:     "create account empty body",
			method:   http.MethodPost,
			url:      func() string { return "/v1/accounts" },
			expected: `empty body\n`,
			status:   http.StatusBadRequest,
		},
		{
			name:     "create account unknown type",
			method:   http.MethodPost,
			url:      func() string { return "/v1/accounts" },
			body:     `{"name":"x","type":{"code":"nope","data":{}}}`,
			expected: `unknown account type "nope"\n`,
			status:   http.StatusBadRequest,
		},
		{
			name:     "create watch account",
			method:   http.MethodPost,
			url:      func() string { return "/v1/accounts" },
			body:     `{"name":"watch","activate":true,"type":{"code":"address","data":{"blockchain":"ethereum","address":"` + watched + `"}}}`,
			expected: `\{"id":".+","name":"watch","origin":"created","level":0,"isBackedUp":false,"isFileBackedUp":false,"type":"address","isWatch":true\}\n`,
			status:   http.StatusCreated,
		},
		{
			name:     "active account",
			method:   http.MethodGet,
			url:      func() string { return "/v1/accounts/active" },
			expected: `\{"id":".+","name":"watch",.*\}\n`,
			status:   http.StatusOK,
		},
		{
			name:     "enable unknown asset",
			method:   http.MethodPost,
			url:      func() string { return "/v1/wallets" },
			body:     `{"wallets":[{"tokenQueryId":"polygon|native"}]}`,
			expected: `unknown asset "polygon\|native"\n`,
			status:   http.StatusBadRequest,
			before: func(t *testing.T) {
				waitFor(t, "active account", func() bool {
					return wm.ActiveAccount() != nil
				})
			},
		},
		{
			name:     "enable invalid asset",
			method:   http.MethodPost,
			url:      func() string { return "/v1/wallets" },
			body:     `{"wallets":[{"tokenQueryId":"ethereum"}]}`,
			expected: `invalid token query: "ethereum"\n`,
			status:   http.StatusBadRequest,
		},
		{
			name:     "enable wallet",
			method:   http.MethodPost,
			url:      func() string { return "/v1/wallets" },
			body:     `{"wallets":[{"tokenQueryId":"ethereum|native"}]}`,
			expected: `\[\{"id":"ethereum\|native@.+","tokenQueryId":"ethereum\|native","accountId":".+","blockchain":"ethereum","name":"Ethereum","code":"ETH","decimals":18.*\}\]\n`,
			status:   http.StatusCreated,
		},
		{
			name:     "wallet balance",
			method:   http.MethodGet,
			url:      func() string { return walletPath("/balance") },
			expected: `\{"state":\{"kind":"synced"\},"available":"1.5","locked":"0","total":"1.5"\}\n`,
			status:   http.StatusOK,
			before: func(t *testing.T) {
				waitFor(t, "readiness", func() bool {
					st, ok := adm.States()[wallets.Key{TokenQueryID: "ethereum|native", AccountID: account.ID}]
					return ok && st.IsSynced() && adm.Ready()
				})
			},
		},
		{
			name:     "wallet state",
			method:   http.MethodGet,
			url:      func() string { return walletPath("/state") },
			expected: `\{"kind":"synced"\}\n`,
			status:   http.StatusOK,
		},
		{
			name:     "wallet receive address",
			method:   http.MethodGet,
			url:      func() string { return walletPath("/receive-address") },
			expected: `\{"address":"` + watched + `","isMainNet":true\}\n`,
			status:   http.StatusOK,
		},
		{
			name:     "refresh wallet",
			method:   http.MethodPost,
			url:      func() string { return walletPath("/refresh") },
			expected: ``,
			status:   http.StatusAccepted,
		},
		{
			name:     "refresh unknown wallet",
			method:   http.MethodPost,
			url:      func() string { return "/v1/wallets/" + url.PathEscape("bitcoin|native@x") + "/refresh" },
			expected: `wallet bitcoin\|native@x not found\n`,
			status:   http.StatusNotFound,
		},
		{
			name:     "ready",
			method:   http.MethodGet,
			url:      func() string { return "/v1/health/ready" },
			expected: `\{"ready":true\}\n`,
			status:   http.StatusOK,
		},
		{
			name:     "adapter states",
			method:   http.MethodGet,
			url:      func() string { return "/v1/adapters/states" },
			expected: `\{"ready":true,"states":\{"ethereum\|native@.+":\{"kind":"synced"\}\}\}\n`,
			status:   http.StatusOK,
		},
		{
			name:     "refresh adapters",
			method:   http.MethodPost,
			url:      func() string { return "/v1/adapters/refresh" },
			expected: ``,
			status:   http.StatusAccepted,
		},
		{
			name:     "disable wallet",
			method:   http.MethodDelete,
			url:      func() string { return "/v1/wallets" },
			body:     `{"wallets":[{"tokenQueryId":"ethereum|native"}]}`,
			expected: ``,
			status:   http.StatusNoContent,
		},
		{
			name:     "list wallets empty",
			method:   http.MethodGet,
			url:      func() string { return "/v1/wallets" },
			expected: `\[\]\n`,
			status:   http.StatusOK,
		},
		{
			name:     "activate unknown account",
			method:   http.MethodPost,
			url:      func() string { return "/v1/accounts/unknown/activate" },
			expected: `account not found\n`,
			status:   http.StatusNotFound,
		},
		{
			name:     "delete account",
			method:   http.MethodDelete,
			url:      func() string { return "/v1/accounts/" + account.ID },
			expected: ``,
			status:   http.StatusNoContent,
		},
		{
			name:     "enable wallet without active account",
			method:   http.MethodPost,
			url:      func() string { return "/v1/wallets" },
			body:     `{"wallets":[{"tokenQueryId":"ethereum|native"}]}`,
			expected: `no active account\n`,
			status:   http.StatusConflict,
			before: func(t *testing.T) {
				waitFor(t, "active account to be cleared", func() bool {
					return wm.ActiveAccount() == nil
				})
			},
		},
	}

	for _, step := range steps {
		t.Run(step.name, func(t *testing.T) {
			if step.before != nil {
				step.before(t)
			}

			rr := send(router, step.method, step.url(), step.body)

			if rr.Code != step.status {
				t.Fatalf("handler returned wrong status code: got %v want %v, body %q", rr.Code, step.status, rr.Body.String())
			}

			if step.status == http.StatusCreated && strings.HasSuffix(step.url(), "/accounts") {
				if err := json.Unmarshal(rr.Body.Bytes(), &account); err != nil {
					t.Fatal(err)
				}
			}

			re := regexp.MustCompile("^" + step.expected + "$")
			if !re.MatchString(rr.Body.String()) {
				t.Errorf("handler returned unexpected body: got %q want %v", rr.Body.String(), re)
			}
		})
	}
}

func TestReadyIsUnavailableUntilAdaptersSettle(t *testing.T) {
	rr := httptest.NewRecorder()
	Ready(func() bool { return false }).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/health/ready", nil))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rr.Code)
	}
	if rr.Body.String() != "{\"ready\":false}\n" {
		t.Fatalf("unexpected body %q", rr.Body.String())
	}
}

func TestLivenessReportsErrors(t *testing.T) {
	rr := httptest.NewRecorder()
	Liveness(func() (interface{}, error) {
		return nil, jobs.ErrStopped
	}).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/health/liveness", nil))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", rr.Code)
	}
}

func TestAssetHandlers(t *testing.T) {
	cfg := test.LoadConfig(t)
	db := test.GetDatabase(t, cfg)

	h := NewAssets(assets.NewService(assets.NewGormStore(db)))

	r := mux.NewRouter()
	rv := r.PathPrefix("/{apiVersion}").Subrouter()
	rv.Handle("/assets", h.List()).Methods(http.MethodGet)
	rv.Handle("/assets", h.Add()).Methods(http.MethodPost)
	rv.Handle("/assets/{tokenQueryId}", h.Remove()).Methods(http.MethodDelete)

	steps := []struct {
		name     string
		method   string
		url      string
		body     string
		expected string
		status   int
	}{
		{
			name:     "add",
			method:   http.MethodPost,
			url:      "/v1/assets",
			body:     `{"tokenQueryId":"bitcoin|native","name":"Bitcoin","code":"BTC","decimals":8}`,
			expected: `{"tokenQueryId":"bitcoin|native","blockchain":"bitcoin","name":"Bitcoin","code":"BTC","decimals":8}` + "\n",
			status:   http.StatusCreated,
		},
		{
			name:     "add without name",
			method:   http.MethodPost,
			url:      "/v1/assets",
			body:     `{"tokenQueryId":"ethereum|native","code":"ETH","decimals":18}`,
			expected: `not a valid name: ""` + "\n",
			status:   http.StatusBadRequest,
		},
		{
			name:     "list",
			method:   http.MethodGet,
			url:      "/v1/assets",
			expected: `[{"tokenQueryId":"bitcoin|native","blockchain":"bitcoin","name":"Bitcoin","code":"BTC","decimals":8}]` + "\n",
			status:   http.StatusOK,
		},
		{
			name:   "remove",
			method: http.MethodDelete,
			url:    "/v1/assets/" + url.PathEscape("bitcoin|native"),
			status: http.StatusNoContent,
		},
		{
			name:     "remove missing",
			method:   http.MethodDelete,
			url:      "/v1/assets/" + url.PathEscape("bitcoin|native"),
			expected: "asset bitcoin|native not found\n",
			status:   http.StatusNotFound,
		},
		{
			name:     "list empty",
			method:   http.MethodGet,
			url:      "/v1/assets",
			expected: "[]\n",
			status:   http.StatusOK,
		},
	}

	for _, step := range steps {
		t.Run(step.name, func(t *testing.T) {
			rr := send(r, step.method, step.url, step.body)

			if rr.Code != step.status {
				t.Fatalf("handler returned wrong status code: got %v want %v, body %q", rr.Code, step.status, rr.Body.String())
			}
			if rr.Body.String() != step.expected {
				t.Fatalf("handler returned unexpected body: got %q want %q", rr.Body.String(), step.expected)
			}
		})
	}
}

func TestJsonBodiesRequireContentType(t *testing.T) {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/assets", strings.NewReader(`{}`))
	req.Header.Set("content-type", "text/plain")

	NewAssets(nil).Add().ServeHTTP(rr, req)

	if rr.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("expected status 415, got %d", rr.Code)
	}
}
