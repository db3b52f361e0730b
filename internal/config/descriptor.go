package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// String returns the string stored under key, or "".
func (d ServerDescriptor) String(key string) string {
	if d.Config == nil {
		return ""
	}
	switch v := d.Config[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case fmt.Stringer:
		return v.String()
	default:
		return ""
	}
}

// Strings returns the string list stored under key. Non-string items are
// formatted with %v.
func (d ServerDescriptor) Strings(key string) []string {
	if d.Config == nil {
		return nil
	}
	switch v := d.Config[key].(type) {
	case []string:
		return append([]string(nil), v...)
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			} else {
				out = append(out, fmt.Sprintf("%v", item))
			}
		}
		return out
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	default:
		return nil
	}
}

// StringMap returns the string map stored under key.
func (d ServerDescriptor) StringMap(key string) map[string]string {
	if d.Config == nil {
		return nil
	}
	switch v := d.Config[key].(type) {
	case map[string]string:
		out := make(map[string]string, len(v))
		for k, val := range v {
			out[k] = val
		}
		return out
	case map[string]interface{}:
		out := make(map[string]string, len(v))
		for k, val := range v {
			out[k] = fmt.Sprintf("%v", val)
		}
		return out
	default:
		return nil
	}
}

// Int returns the integer stored under key, or def. JSON numbers decode as
// float64 and numeric strings are accepted.
func (d ServerDescriptor) Int(key string, def int) int {
	if d.Config == nil {
		return def
	}
	switch v := d.Config[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return def
}

// Bool returns the boolean stored under key, or def.
func (d ServerDescriptor) Bool(key string, def bool) bool {
	if d.Config == nil {
		return def
	}
	switch v := d.Config[key].(type) {
	case bool:
		return v
	case string:
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	}
	return def
}

// Seconds reads an integer number of seconds under key.
func (d ServerDescriptor) Seconds(key string, def time.Duration) time.Duration {
	n := d.Int(key, -1)
	if n <= 0 {
		return def
	}
	return time.Duration(n) * time.Second
}

// Label is a short human readable identifier used in logs and tool server names.
func (d ServerDescriptor) Label() string {
	switch {
	case d.String("name") != "":
		return d.String("name")
	case d.String("command") != "":
		parts := append([]string{d.String("command")}, d.Strings("args")...)
		return strings.Join(parts, " ")
	case d.String("url") != "":
		return d.String("url")
	case d.String("spec_path") != "":
		return d.String("spec_path")
	default:
		return d.Type
	}
}
