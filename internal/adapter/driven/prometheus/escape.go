package prometheus

import (
	"fmt"
	"strings"
)

// sharedDirectoryName marks a shared (non-personal) home directory; it is
// stored as-is, never escaped.
const sharedDirectoryName = "shared"

// UnescapeUsername reverses the filesystem-safe escaping JupyterHub applies
// to usernames used as directory names: any character outside a safe set is
// stored as '-' followed by two lowercase hex digits.
func UnescapeUsername(escaped string) (string, error) {
	if escaped == sharedDirectoryName {
		return escaped, nil
	}

	var b strings.Builder
	b.Grow(len(escaped))
	for i := 0; i < len(escaped); i++ {
		c := escaped[i]
		if c != '-' {
			b.WriteByte(c)
			continue
		}
		if i+2 >= len(escaped) {
			return "", fmt.Errorf("truncated escape sequence at end of %q", escaped)
		}
		hi, ok1 := hexValue(escaped[i+1])
		lo, ok2 := hexValue(escaped[i+2])
		if !ok1 || !ok2 {
			return "", fmt.Errorf("malformed escape sequence %q in %q", escaped[i:i+3], escaped)
		}
		b.WriteByte(hi<<4 | lo)
		i += 2
	}
	return b.String(), nil
}

func hexValue(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	default:
		return 0, false
	}
}
