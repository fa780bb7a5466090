package version

import (
	"fmt"
	"runtime"
)

// Set via ldflags at build time:
//
//	go build -ldflags "-X github.com/soyeahso/vyrtuous/internal/version.Version=1.0.0
//	  -X github.com/soyeahso/vyrtuous/internal/version.Commit=abc123"
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// Name is the product name used in banners, user agents and client info.
const Name = "vyrtuous"

// Info returns a formatted version string.
func Info() string {
	return fmt.Sprintf("%s %s (commit: %s, built: %s, %s/%s)",
		Name, Version, Short(Commit), Date, runtime.GOOS, runtime.GOARCH)
}

// UserAgent is sent on outbound HTTP requests and IRC CTCP VERSION replies.
func UserAgent() string {
	return Name + "/" + Version
}

// Short truncates a commit hash to seven characters.
func Short(s string) string {
	if len(s) > 7 {
		return s[:7]
	}
	return s
}
