package redact

import (
	"encoding/json"
	"net/url"
	"strings"
)

const mask = "***"

var sensitiveKeys = []string{"authorization", "cookie", "access_token", "id_token", "refresh_token", "session", "apikey", "api_key", "token", "password", "secret"}

// RedactJSON masks sensitive fields in a JSON string best-effort.
func RedactJSON(s string) string {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return s
	}
	redactNode(&v)
	b, err := json.Marshal(v)
	if err != nil {
		return s
	}
	return string(b)
}

// RedactURL masks the values of sensitive query parameters and any userinfo
// password. Unparseable input is returned unchanged.
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	changed := false
	if u.User != nil {
		if _, ok := u.User.Password(); ok {
			u.User = url.UserPassword(u.User.Username(), mask)
			changed = true
		}
	}
	if u.RawQuery != "" {
		q := u.Query()
		for k, vs := range q {
			if !IsSensitiveKey(k) {
				continue
			}
			for i := range vs {
				vs[i] = mask
			}
			changed = true
		}
		if changed {
			u.RawQuery = q.Encode()
		}
	}
	if !changed {
		return raw
	}
	return u.String()
}

func redactNode(n *any) {
	switch t := (*n).(type) {
	case map[string]any:
		for k, v := range t {
			if IsSensitiveKey(k) {
				t[k] = mask
				continue
			}
			vv := any(v)
			redactNode(&vv)
			t[k] = vv
		}
	case []any:
		for i := range t {
			vv := any(t[i])
			redactNode(&vv)
			t[i] = vv
		}
	}
}

// IsSensitiveKey reports whether a header, query or JSON key holds credentials.
func IsSensitiveKey(k string) bool {
	k = strings.ToLower(k)
	for _, s := range sensitiveKeys {
		if k == s {
			return true
		}
	}
	return false
}
