// Package shared provides common utility functions used across multiple
// packages in the hoover codebase.
package shared

import "fmt"

// ShortDigest trims a content digest to the length used in logs and
// reports.
func ShortDigest(digest string) string {
	if len(digest) <= 12 {
		return digest
	}
	return digest[:12]
}

// HTTPStatusErrorWithBody creates a formatted error that includes the
// response body for non-2xx HTTP responses.
func HTTPStatusErrorWithBody(status int, url string, body string) error {
	return fmt.Errorf("status=%d url=%s response=%s", status, url, body)
}
