// Package sessionid generates the opaque identifiers shared by the
// execution engine and the connection registry.
package sessionid

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// New returns a fresh identifier for the given kind ("cmd", "ssh") and
// target. Ids combine the target identity, a high-resolution timestamp,
// and a random suffix so concurrent creation cannot collide and ids stay
// hard to guess.
func New(kind, target string) string {
	var b strings.Builder
	b.WriteString(kind)
	b.WriteByte('-')
	b.WriteString(sanitize(target))
	b.WriteByte('-')
	b.WriteString(strconv.FormatInt(time.Now().UnixNano(), 36))
	b.WriteByte('-')
	b.WriteString(uuid.NewString()[:8])
	return b.String()
}

// sanitize reduces a target spec to a short hostname-ish token: scheme and
// userinfo stripped, anything outside [a-z0-9.-] replaced.
func sanitize(target string) string {
	if target == "" {
		return "local"
	}
	if i := strings.Index(target, "://"); i >= 0 {
		target = target[i+3:]
	}
	if i := strings.LastIndex(target, "@"); i >= 0 {
		target = target[i+1:]
	}
	if i := strings.IndexAny(target, ":?/"); i >= 0 {
		target = target[:i]
	}

	target = strings.ToLower(target)
	out := make([]byte, 0, len(target))
	for i := 0; i < len(target); i++ {
		c := target[i]
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '.', c == '-':
			out = append(out, c)
		default:
			out = append(out, '-')
		}
	}
	if len(out) == 0 {
		return "local"
	}
	if len(out) > 32 {
		out = out[:32]
	}
	return string(out)
}
