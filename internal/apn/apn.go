// Package apn canonicalises Assessor Parcel Numbers so recorder feeds and the
// watchlist compare with plain string equality.
package apn

import "strings"

const quoteChars = "\"'`"

var stripper = strings.NewReplacer("-", "", " ", "", "\t", "")

// Normalize converts an APN into its matching key: dashes and spaces are
// removed and surrounding quote characters trimmed. Empty input yields "".
func Normalize(raw string) string {
	if raw == "" {
		return ""
	}
	return strings.Trim(stripper.Replace(raw), quoteChars)
}
