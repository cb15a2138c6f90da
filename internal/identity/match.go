package identity

import (
	"strings"

	"rosterlink/internal/names"
)

// DefaultThreshold is the minimum score FindBestMatch accepts unless told otherwise.
const DefaultThreshold = 0.6

const containmentScore = 0.8

// Match is the winning candidate of FindBestMatch.
type Match struct {
	Index int
	Score float64
}

// Similarity scores two free-text names in [0, 1].
func Similarity(a, b string) float64 {
	ta := names.Tokens(a)
	tb := names.Tokens(b)
	if len(ta) == 0 || len(tb) == 0 {
		// names made only of initials or punctuation still match themselves
		ra, rb := strings.TrimSpace(a), strings.TrimSpace(b)
		if ra != "" && strings.EqualFold(ra, rb) {
			return 1
		}
		return 0
	}
	na := strings.Join(ta, " ")
	nb := strings.Join(tb, " ")
	if na == nb {
		return 1
	}
	if strings.Contains(na, nb) || strings.Contains(nb, na) {
		return containmentScore
	}

	shorter, longer := ta, tb
	if len(shorter) > len(longer) {
		shorter, longer = longer, shorter
	}
	matched := 0
	for _, w := range shorter {
		for _, o := range longer {
			if strings.Contains(o, w) || strings.Contains(w, o) {
				matched++
				break
			}
		}
	}
	return float64(matched) / float64(len(longer))
}

// Score is the best similarity over every pair of names of a and b. Equal
// non-empty emails score 1.
func Score(a, b Identity) float64 {
	if a.Email != "" && strings.EqualFold(a.Email, b.Email) {
		return 1
	}
	best := 0.0
	for _, x := range a.Names() {
		for _, y := range b.Names() {
			if s := Similarity(x, y); s > best {
				best = s
				if best == 1 {
					return best
				}
			}
		}
	}
	return best
}

// FindBestMatch returns the candidate scoring highest against target, provided
// the score reaches threshold. Ties keep the earliest candidate. A threshold
// of zero or less means DefaultThreshold.
//
// Every candidate is rescanned per call, so matching N targets against M
// candidates is O(N*M). That is fine for class rosters and nothing larger.
func FindBestMatch(target Identity, candidates []Identity, threshold float64) (Match, bool) {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	best := Match{Index: -1}
	for i, c := range candidates {
		s := Score(target, c)
		if s > best.Score {
			best = Match{Index: i, Score: s}
		}
	}
	if best.Index < 0 || best.Score < threshold {
		return Match{Index: -1}, false
	}
	return best, true
}
