// Dealerlink - Car Marketplace Client Telemetry
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dealerlink

package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"github.com/tomtom215/dealerlink/internal/logging"
	"github.com/tomtom215/dealerlink/internal/validation"
)

// Response is the envelope every JSON endpoint returns.
type Response struct {
	Status string               `json:"status"`
	Data   any                  `json:"data,omitempty"`
	Error  *validation.APIError `json:"error,omitempty"`
}

var errEmptyBody = errors.New("request body is empty")

// sanitizeLogValue escapes control characters so request data cannot forge
// log lines.
func sanitizeLogValue(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r < 0x20 || r == 0x7F {
			fmt.Fprintf(&b, "\\x%02x", r)
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func respondJSON(w http.ResponseWriter, status int, resp *Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Debug().Err(err).Msg("Failed to write JSON response")
	}
}

func respondOK(w http.ResponseWriter, status int, data any) {
	respondJSON(w, status, &Response{Status: "success", Data: data})
}

func respondError(w http.ResponseWriter, status int, code, message string, err error) {
	if err != nil {
		logging.Warn().Str("code", code).Str("error", sanitizeLogValue(err.Error())).Msg("Agent API error")
	}
	respondJSON(w, status, &Response{
		Status: "error",
		Error:  &validation.APIError{Code: code, Message: message},
	})
}

// decodeAndValidate reads a JSON body of at most limit bytes into dst and
// runs struct validation. It writes the error response itself and reports
// whether the handler should continue.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, limit int64, dst any) bool {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			respondError(w, http.StatusRequestEntityTooLarge, "BODY_TOO_LARGE",
				fmt.Sprintf("request body exceeds %d bytes", limit), nil)
			return false
		}
		respondError(w, http.StatusBadRequest, "INVALID_BODY", "request body could not be read", err)
		return false
	}
	if len(bytes.TrimSpace(data)) == 0 {
		respondError(w, http.StatusBadRequest, "INVALID_JSON", errEmptyBody.Error(), nil)
		return false
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_JSON", "request body is not valid JSON", err)
		return false
	}

	if verr := validation.ValidateStruct(dst); verr != nil {
		respondJSON(w, http.StatusBadRequest, &Response{Status: "error", Error: verr.ToAPIError()})
		return false
	}
	return true
}
