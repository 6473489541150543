package web

import "sync"

// VersionInfo is the build identity reported by /health
type VersionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

var (
	verMu sync.RWMutex
	ver   = VersionInfo{Version: "dev", Commit: "unknown", BuildTime: "unknown"}
)

// SetVersionInfo sets the version information to be exposed by the web API
func SetVersionInfo(version, commit, buildTime string) {
	verMu.Lock()
	defer verMu.Unlock()
	ver = VersionInfo{Version: version, Commit: commit, BuildTime: buildTime}
}

// GetVersionInfo returns the currently set version info
func GetVersionInfo() VersionInfo {
	verMu.RLock()
	defer verMu.RUnlock()
	return ver
}
