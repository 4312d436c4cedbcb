// Package httpx holds the JSON response and request helpers shared by the
// HTTP handlers.
package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

const MaxJSONBodyBytes = 1 << 20

var ErrInvalidJSON = errors.New("invalid json body")

func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func WriteMessage(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, map[string]string{"message": message})
}

// DecodeJSON reads a size-limited JSON body into dst, rejecting unknown fields.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxJSONBodyBytes)

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return ErrInvalidJSON
	}
	return nil
}

// ClientIP returns the right-most X-Forwarded-For entry, the one appended by
// the proxy in front of the app. Entries to its left are client supplied.
func ClientIP(r *http.Request) string {
	xForwardedFor := strings.TrimSpace(r.Header.Get("X-Forwarded-For"))
	if xForwardedFor != "" {
		ip := xForwardedFor
		if i := strings.LastIndex(xForwardedFor, ","); i >= 0 {
			ip = xForwardedFor[i+1:]
		}
		if ip = strings.TrimSpace(ip); ip != "" {
			return ip
		}
	}

	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}

	return "unknown"
}
