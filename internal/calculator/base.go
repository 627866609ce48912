package calculator

import (
	"fmt"
	"math/big"
	"strings"
)

// SupportedBases lists the bases the converter accepts, in display order.
var SupportedBases = []int{2, 8, 10, 16}

func supportedBase(b int) bool {
	for _, s := range SupportedBases {
		if s == b {
			return true
		}
	}
	return false
}

// ConvertBase converts an integer written in base from into base to.
// Digits are case-insensitive, an optional sign and a matching 0b/0o/0x prefix are
// accepted, and underscores or spaces between digits are ignored. Hex output is upper case.
func ConvertBase(value string, from, to int) (string, error) {
	n, err := ParseInBase(value, from)
	if err != nil {
		return "", err
	}
	if !supportedBase(to) {
		return "", fmt.Errorf("%w: %d", ErrUnsupportedBase, to)
	}
	return strings.ToUpper(n.Text(to)), nil
}

// ConvertAll renders the value in every supported base.
func ConvertAll(value string, from int) (map[int]string, error) {
	n, err := ParseInBase(value, from)
	if err != nil {
		return nil, err
	}
	out := make(map[int]string, len(SupportedBases))
	for _, b := range SupportedBases {
		out[b] = strings.ToUpper(n.Text(b))
	}
	return out, nil
}

// ParseInBase parses value as an arbitrary precision integer in the given base.
func ParseInBase(value string, base int) (*big.Int, error) {
	if !supportedBase(base) {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedBase, base)
	}
	s := strings.NewReplacer("_", "", " ", "").Replace(strings.TrimSpace(value))
	neg := false
	switch {
	case strings.HasPrefix(s, "-"):
		neg = true
		s = s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}
	s = trimPrefix(strings.ToLower(s), base)
	// big.Int.SetString would take a second sign.
	if s == "" || strings.ContainsAny(s, "+-") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidNumber, value)
	}
	n, ok := new(big.Int).SetString(s, base)
	if !ok {
		return nil, fmt.Errorf("%w: %q in base %d", ErrInvalidNumber, value, base)
	}
	if neg {
		n.Neg(n)
	}
	return n, nil
}

func trimPrefix(s string, base int) string {
	prefixes := map[int]string{2: "0b", 8: "0o", 16: "0x"}
	if p, ok := prefixes[base]; ok {
		return strings.TrimPrefix(s, p)
	}
	return s
}
