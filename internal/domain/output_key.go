package domain

import (
	"crypto/sha256"
	"fmt"
	"regexp"
	"strings"
)

var keySanitizer = regexp.MustCompile(`[^a-z0-9_-]+`)

// OutputKey names the output object for a dataset. Identifiers that are not
// already safe get a short hash suffix so distinct identifiers never share a file.
func OutputKey(identifier string) string {
	safe := strings.ToLower(strings.TrimSpace(identifier))
	safe = keySanitizer.ReplaceAllString(safe, "_")
	safe = strings.Trim(safe, "_-")
	if len(safe) > 80 {
		safe = safe[:80]
	}
	if safe == "" {
		safe = "dataset"
	}

	if safe != identifier {
		sum := sha256.Sum256([]byte(identifier))
		safe = fmt.Sprintf("%s_%x", safe, sum[:4])
	}
	return safe + ".csv"
}
