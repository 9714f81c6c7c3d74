package fileutil

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// SanitizeForFilename sanitizes a string for safe use in export filenames
func SanitizeForFilename(input string) string {
	if input == "" {
		return "dubbed"
	}

	// Replace illegal filename characters with underscores
	// Illegal chars: / \ : * ? " < > |
	illegalChars := regexp.MustCompile(`[\/\\:*?"<>|]`)
	sanitized := illegalChars.ReplaceAllString(input, "_")

	// Replace multiple spaces/underscores with single hyphen
	whitespace := regexp.MustCompile(`[\s_]+`)
	sanitized = whitespace.ReplaceAllString(sanitized, "-")

	// Remove leading/trailing hyphens
	sanitized = strings.Trim(sanitized, "-")

	// Limit length to 50 characters for reasonable filenames
	if len(sanitized) > 50 {
		sanitized = sanitized[:50]
		sanitized = strings.TrimRight(sanitized, "-")
	}

	if sanitized == "" {
		return "dubbed"
	}

	return sanitized
}

// UniquePath returns a path in dir for base+ext that does not collide with
// an existing file, appending _2, _3, ... as needed. Used when saving a
// downloaded export next to an earlier one.
func UniquePath(dir, base, ext string) string {
	path := filepath.Join(dir, base+ext)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return path
	}
	for i := 2; i < 100; i++ {
		try := filepath.Join(dir, fmt.Sprintf("%s_%d%s", base, i, ext))
		if _, err := os.Stat(try); os.IsNotExist(err) {
			return try
		}
	}
	return path
}
