package envelope

import (
	"fmt"
	"strconv"
	"strings"
)

// refIDLen is the fixed width of the wire submission reference.
const refIDLen = 8

// FormatRefID renders a sequence number as the eight-character uppercase
// base-36 submission reference carried in the envelope. The encoding is
// order preserving, so lexical order of wire references matches issuance
// order of the underlying sequence.
func FormatRefID(seq int64) string {
	if seq < 0 {
		seq = 0
	}
	s := strings.ToUpper(strconv.FormatInt(seq, 36))
	if len(s) > refIDLen {
		s = s[len(s)-refIDLen:]
	}
	return strings.Repeat("0", refIDLen-len(s)) + s
}

// ParseRefID recovers the sequence number from a wire reference.
func ParseRefID(ref string) (int64, error) {
	n, err := strconv.ParseInt(ref, 36, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed submission reference %q: %w", ref, err)
	}
	return n, nil
}

// MaskSIN redacts a national identifier down to its last four digits. Any
// value that is not a nine-digit SIN masks to the fully redacted form.
func MaskSIN(sin string) string {
	if len(sin) != 9 {
		return "***-***-****"
	}
	for _, r := range sin {
		if r < '0' || r > '9' {
			return "***-***-****"
		}
	}
	return "***-***-" + sin[5:]
}
