package handlers

import (
	"net/http"
	"runtime"
	"sync"

	"github.com/fulmenhq/gofulmen/appidentity"
	"github.com/fulmenhq/gofulmen/crucible"

	"github.com/adrianaguero/chatgate/internal/appid"
)

// BuildInfo is injected from main.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildDate string
}

// ServiceInfo describes the backends the chat endpoint is wired to.
type ServiceInfo struct {
	Provider    string `json:"provider"`
	Model       string `json:"model"`
	QuotaDriver string `json:"quota_driver"`
}

var (
	versionMu   sync.RWMutex
	buildInfo   = BuildInfo{Version: "dev", Commit: "unknown", BuildDate: "unknown"}
	serviceInfo ServiceInfo
	appIdentity *appidentity.Identity
)

// SetVersionInfo sets the version information for the handler
func SetVersionInfo(version, commit, buildDate string) {
	versionMu.Lock()
	defer versionMu.Unlock()
	buildInfo = BuildInfo{Version: version, Commit: commit, BuildDate: buildDate}
}

// AppVersion returns the injected version string.
func AppVersion() string {
	versionMu.RLock()
	defer versionMu.RUnlock()
	return buildInfo.Version
}

// SetAppIdentity sets the app identity for the handler
func SetAppIdentity(identity *appidentity.Identity) {
	versionMu.Lock()
	defer versionMu.Unlock()
	appIdentity = identity
}

// SetServiceInfo records the active provider and quota driver.
func SetServiceInfo(info ServiceInfo) {
	versionMu.Lock()
	defer versionMu.Unlock()
	serviceInfo = info
}

// VersionResponse represents the version information response
type VersionResponse struct {
	App          AppInfo     `json:"app"`
	Service      ServiceInfo `json:"service"`
	Dependencies DepInfo     `json:"dependencies"`
	Runtime      RuntimeInfo `json:"runtime"`
}

// AppInfo contains application version details
type AppInfo struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	Commit    string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version,omitempty"`
}

// DepInfo contains dependency version information
type DepInfo struct {
	Gofulmen string `json:"gofulmen"`
	Crucible string `json:"crucible"`
}

// RuntimeInfo contains runtime environment information
type RuntimeInfo struct {
	Platform      string `json:"platform"`
	NumCPU        int    `json:"num_cpu"`
	NumGoroutines int    `json:"num_goroutines"`
}

// VersionHandler handles version information requests
func VersionHandler(w http.ResponseWriter, r *http.Request) {
	versionMu.RLock()
	build, service, identity := buildInfo, serviceInfo, appIdentity
	versionMu.RUnlock()

	if identity == nil {
		identity = appid.Default()
	}
	deps := crucible.GetVersion()

	writeJSON(w, http.StatusOK, VersionResponse{
		App: AppInfo{
			Name:      identity.BinaryName,
			Version:   build.Version,
			Commit:    build.Commit,
			BuildDate: build.BuildDate,
			GoVersion: runtime.Version(),
		},
		Service: service,
		Dependencies: DepInfo{
			Gofulmen: deps.Gofulmen,
			Crucible: deps.Crucible,
		},
		Runtime: RuntimeInfo{
			Platform:      runtime.GOOS + "/" + runtime.GOARCH,
			NumCPU:        runtime.NumCPU(),
			NumGoroutines: runtime.NumGoroutine(),
		},
	})
}
