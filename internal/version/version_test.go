// ABOUTME: Tests for version constants
// ABOUTME: Ensures version information is defined and usable in banners
package version

import (
	"strings"
	"testing"
)

func TestIdentificationDefined(t *testing.T) {
	fields := map[string]string{
		"Version":      Version,
		"Product":      Product,
		"Manufacturer": Manufacturer,
	}

	for name, value := range fields {
		if value == "" {
			t.Errorf("%s should not be empty", name)
		}
		if len(value) > 100 {
			t.Errorf("%s is unreasonably long", name)
		}
	}
}

func TestVersionLooksSemantic(t *testing.T) {
	if Version == "dev" {
		return
	}
	if parts := strings.Split(Version, "."); len(parts) != 3 {
		t.Errorf("expected major.minor.patch, got %q", Version)
	}
}
