package domain

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var sessionNumberRe = regexp.MustCompile(`(\d+)`)

// SessionKey returns the canonical key for the n-th session.
func SessionKey(n int) string {
	return fmt.Sprintf("session%d", n)
}

// SortSessionKeys orders keys naturally: session2 before session10.
// Keys without a number sort after numbered keys, alphabetically.
func SortSessionKeys(keys []string) {
	sort.SliceStable(keys, func(i, j int) bool {
		ni, oki := sessionNumber(keys[i])
		nj, okj := sessionNumber(keys[j])
		switch {
		case oki && okj && ni != nj:
			return ni < nj
		case oki != okj:
			return oki
		}
		return keys[i] < keys[j]
	})
}

// SortedSessionKeys returns the keys of m in natural session order.
func SortedSessionKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	SortSessionKeys(keys)
	return keys
}

func sessionNumber(key string) (int, bool) {
	m := sessionNumberRe.FindString(strings.ToLower(key))
	if m == "" {
		return 0, false
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	return n, true
}
