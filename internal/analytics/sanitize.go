// Dealerlink - Car Marketplace Client Telemetry
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dealerlink

package analytics

import (
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// piiFragments are matched case-insensitively against metadata keys.
var piiFragments = []string{"email", "phone", "password", "token", "name", "address"}

// allowedKeys are navigation fields that would otherwise match "name".
var allowedKeys = map[string]struct{}{
	"screenname":     {},
	"previousscreen": {},
	"entryscreen":    {},
	"exitscreen":     {},
}

// SanitizeMetadata returns a copy of meta with personally identifying keys
// removed at every nesting level. Values JSON cannot encode are rewritten or
// dropped: complex numbers become strings, while non-finite floats, channels
// and funcs are removed. A nil or empty map yields nil.
func SanitizeMetadata(meta map[string]any) map[string]any {
	if len(meta) == 0 {
		return nil
	}
	out := make(map[string]any, len(meta))
	for k, v := range meta {
		if isPIIKey(k) {
			continue
		}
		if clean, ok := sanitizeValue(v); ok {
			out[k] = clean
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// sanitizeValue reports ok=false when v has to be dropped.
func sanitizeValue(v any) (any, bool) {
	switch val := v.(type) {
	case nil, string, bool, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64, json.Number:
		return v, true
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return nil, false
		}
		return val, true
	case float32:
		f := float64(val)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, false
		}
		return val, true
	case complex128:
		return strconv.FormatComplex(val, 'g', -1, 128), true
	case complex64:
		return strconv.FormatComplex(complex128(val), 'g', -1, 64), true
	case map[string]any:
		cleaned := SanitizeMetadata(val)
		if cleaned == nil {
			return map[string]any{}, true
		}
		return cleaned, true
	case map[string]string:
		m := make(map[string]any, len(val))
		for k, s := range val {
			m[k] = s
		}
		return sanitizeValue(m)
	case []any:
		out := make([]any, 0, len(val))
		for _, item := range val {
			if clean, ok := sanitizeValue(item); ok {
				out = append(out, clean)
			}
		}
		return out, true
	}
	return sanitizeReflect(v)
}

// sanitizeReflect handles named and composite types the type switch misses.
// Anything left over must survive a trial encode.
func sanitizeReflect(v any) (any, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return nil, false
	case reflect.Float32, reflect.Float64:
		return sanitizeValue(rv.Float())
	case reflect.Complex64, reflect.Complex128:
		return sanitizeValue(rv.Complex())
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil, true
		}
		return sanitizeValue(rv.Elem().Interface())
	case reflect.Slice, reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return v, true
		}
		items := make([]any, rv.Len())
		for i := range items {
			items[i] = rv.Index(i).Interface()
		}
		return sanitizeValue(items)
	case reflect.Map:
		if rv.Type().Key().Kind() == reflect.String {
			m := make(map[string]any, rv.Len())
			iter := rv.MapRange()
			for iter.Next() {
				m[iter.Key().String()] = iter.Value().Interface()
			}
			return sanitizeValue(m)
		}
	}
	if _, err := json.Marshal(v); err != nil {
		return nil, false
	}
	return v, true
}

func isPIIKey(key string) bool {
	k := strings.ToLower(key)
	if _, ok := allowedKeys[k]; ok {
		return false
	}
	for _, frag := range piiFragments {
		if strings.Contains(k, frag) {
			return true
		}
	}
	return false
}
