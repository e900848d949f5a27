package handlers

import (
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/fulmenhq/gofulmen/crucible"

	"github.com/quotalens/quotalens/internal/appid"
	"github.com/quotalens/quotalens/internal/core/client"
)

type buildInfo struct {
	mu        sync.RWMutex
	version   string
	commit    string
	buildDate string
	identity  *appid.Identity
	baseURL   string
}

var build = &buildInfo{version: "dev", commit: "unknown", buildDate: "unknown"}

// SetVersionInfo records the build stamp injected by main.
func SetVersionInfo(version, commit, buildDate string) {
	build.mu.Lock()
	defer build.mu.Unlock()
	build.version, build.commit, build.buildDate = version, commit, buildDate
}

// SetAppIdentity records the identity reported on /version.
func SetAppIdentity(identity *appid.Identity) {
	build.mu.Lock()
	defer build.mu.Unlock()
	build.identity = identity
}

// SetProviderBaseURL records the data provider the server tracks quota for.
func SetProviderBaseURL(baseURL string) {
	build.mu.Lock()
	defer build.mu.Unlock()
	build.baseURL = baseURL
}

// VersionResponse is the /version payload.
type VersionResponse struct {
	App          AppInfo      `json:"app"`
	Provider     ProviderInfo `json:"provider"`
	Dependencies DepInfo      `json:"dependencies"`
	Runtime      RuntimeInfo  `json:"runtime"`
}

type AppInfo struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Version     string `json:"version"`
	Commit      string `json:"git_commit"`
	BuildDate   string `json:"build_date"`
	GoVersion   string `json:"go_version,omitempty"`
}

// ProviderInfo names the upstream API and its rate-limit endpoint.
type ProviderInfo struct {
	BaseURL           string `json:"base_url,omitempty"`
	RateLimitEndpoint string `json:"rate_limit_endpoint"`
}

type DepInfo struct {
	Gofulmen string `json:"gofulmen"`
	Crucible string `json:"crucible"`
}

type RuntimeInfo struct {
	Platform      string `json:"platform"`
	NumCPU        int    `json:"num_cpu"`
	NumGoroutines int    `json:"num_goroutines"`
}

// VersionHandler reports build, provider and runtime details.
func VersionHandler(w http.ResponseWriter, r *http.Request) {
	build.mu.RLock()
	app := AppInfo{
		Version:   build.version,
		Commit:    build.commit,
		BuildDate: build.buildDate,
		GoVersion: runtime.Version(),
	}
	if build.identity != nil {
		app.Name = build.identity.BinaryName
		app.Description = build.identity.Description
	}
	baseURL := build.baseURL
	build.mu.RUnlock()

	if app.Name == "" {
		app.Name = "unknown"
		if len(os.Args) > 0 && os.Args[0] != "" {
			app.Name = filepath.Base(os.Args[0])
		}
	}

	deps := crucible.GetVersion()
	writeJSON(w, http.StatusOK, VersionResponse{
		App: app,
		Provider: ProviderInfo{
			BaseURL:           baseURL,
			RateLimitEndpoint: client.RateLimitEndpoint,
		},
		Dependencies: DepInfo{Gofulmen: deps.Gofulmen, Crucible: deps.Crucible},
		Runtime: RuntimeInfo{
			Platform:      runtime.GOOS + "/" + runtime.GOARCH,
			NumCPU:        runtime.NumCPU(),
			NumGoroutines: runtime.NumGoroutine(),
		},
	})
}
