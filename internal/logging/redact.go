// Dealerlink - Car Marketplace Client Telemetry
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dealerlink

package logging

import "strings"

// RedactToken masks a bearer token, keeping the first and last 4 characters.
// "eyJhbGciOiJIUzI1NiJ9.payload.sig" -> "eyJh....sig"
func RedactToken(token string) string {
	return keepEnds(token, 12)
}

// RedactSessionID masks a session id the same way. Session ids are not
// secret but they link a device's whole event stream together.
func RedactSessionID(id string) string {
	return keepEnds(id, 12)
}

// RedactEmail keeps the first two characters of the local part.
func RedactEmail(email string) string {
	at := strings.IndexByte(email, '@')
	if email == "" {
		return ""
	}
	if at <= 0 {
		return "***"
	}
	if at <= 2 {
		return "***" + email[at:]
	}
	return email[:2] + "***" + email[at:]
}

func keepEnds(s string, minLen int) string {
	if s == "" {
		return ""
	}
	if len(s) <= minLen {
		return "***"
	}
	return s[:4] + "..." + s[len(s)-4:]
}
