// ABOUTME: Version and product identification
// ABOUTME: Reported in logs, the TUI header and the dev server banner
package version

// Version is overridden at build time with -ldflags "-X .../internal/version.Version=..."
var Version = "0.1.0"

const (
	Product      = "voicechat-go"
	Manufacturer = "Resonate"
)
