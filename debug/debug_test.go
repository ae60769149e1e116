package debug

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
)

func TestHandleDebug(t *testing.T) {
	d := &Service{
		RepoUrl:   "https://example.com/repo",
		Sha1ver:   "abc123",
		BuildTime: "today",
		Adapters: func() map[string]string {
			return map[string]string{
				"ethereum|native@b": "state=synced",
				"bitcoin|native@a":  "state=syncing",
			}
		},
	}

	router := mux.NewRouter()
	router.HandleFunc("/{apiVersion}/debug", d.HandleDebug)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/debug", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	body := rr.Body.String()
	for _, want := range []string{
		"ver: https://example.com/repo/commit/abc123",
		"api version called: v1",
		"adapters: 2",
		"  bitcoin|native@a: state=syncing\n  ethereum|native@b: state=synced",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected body to contain %q, got:\n%s", want, body)
		}
	}
}
