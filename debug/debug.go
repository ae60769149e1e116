package debug

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
)

type Service struct {
	RepoUrl   string
	Sha1ver   string
	BuildTime string
	// Adapters returns the debug info of the live adapters keyed by wallet.
	Adapters func() map[string]string
}

// Thanks to:
// https://github.com/kjk/go-cookbook/tree/master/embed-build-number

func servePlainText(w http.ResponseWriter, s string) {
	w.Header().Set("Content-Type", "text/plain")
	w.Header().Set("Content-Length", strconv.Itoa(len(s)))
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(s)) // nolint
}

func (d *Service) HandleDebug(w http.ResponseWriter, r *http.Request) {
	v := mux.Vars(r)
	a := []string{fmt.Sprintf("url: %s %s", r.Method, r.RequestURI)}

	a = append(a, "")
	a = append(a, fmt.Sprintf("ver: %s/commit/%s", d.RepoUrl, d.Sha1ver))
	a = append(a, fmt.Sprintf("built on: %s", d.BuildTime))
	a = append(a, fmt.Sprintf("api version called: %s", v["apiVersion"]))

	if d.Adapters != nil {
		info := d.Adapters()
		keys := make([]string, 0, len(info))
		for k := range info {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		a = append(a, "", fmt.Sprintf("adapters: %d", len(keys)))
		for _, k := range keys {
			a = append(a, fmt.Sprintf("  %s: %s", k, info[k]))
		}
	}

	servePlainText(w, strings.Join(a, "\n"))
}
