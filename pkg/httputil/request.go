package httputil

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"strconv"
	"strings"
)

// Values is a flat view over a request body that may arrive either
// form-encoded or as a JSON object. Integration clients of the records
// platform use both encodings interchangeably.
type Values map[string]string

// ParseBody decodes the request body into Values. JSON bodies must be a
// single flat object; numbers and booleans are stringified so both encodings
// present the same surface to the caller.
func ParseBody(r *http.Request) (Values, error) {
	ct := r.Header.Get("Content-Type")
	if ct != "" {
		if parsed, _, err := mime.ParseMediaType(ct); err == nil {
			ct = parsed
		}
	}

	switch ct {
	case "application/json":
		return parseJSONBody(r.Body)
	case "application/x-www-form-urlencoded", "multipart/form-data", "":
		if err := r.ParseForm(); err != nil {
			return nil, fmt.Errorf("invalid form body: %w", err)
		}
		values := make(Values, len(r.PostForm))
		for key := range r.PostForm {
			values[key] = r.PostForm.Get(key)
		}
		return values, nil
	default:
		return nil, fmt.Errorf("unsupported content type %q", ct)
	}
}

func parseJSONBody(body io.Reader) (Values, error) {
	var raw map[string]json.RawMessage
	if err := json.NewDecoder(body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("invalid JSON body: %w", err)
	}

	values := make(Values, len(raw))
	for key, msg := range raw {
		var s string
		if err := json.Unmarshal(msg, &s); err == nil {
			values[key] = s
			continue
		}
		// Non-string scalars (ints, bools) keep their literal form.
		values[key] = strings.Trim(string(msg), " \t\n")
	}
	return values, nil
}

// Get returns the value for key, or "" if absent.
func (v Values) Get(key string) string {
	return v[key]
}

// GetInt parses the value for key as an integer; absent or empty returns 0.
func (v Values) GetInt(key string) (int, error) {
	s := v[key]
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid integer for %s: %q", key, s)
	}
	return n, nil
}

// GetBool parses the value for key as a boolean; absent or empty returns
// false.
func (v Values) GetBool(key string) bool {
	switch strings.ToLower(v[key]) {
	case "true", "1":
		return true
	default:
		return false
	}
}

// RemoteAddr extracts the caller's network address from the request,
// stripping the port when present.
func RemoteAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
