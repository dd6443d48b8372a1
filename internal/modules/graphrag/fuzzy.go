package graphrag

import (
	"errors"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

var ErrNoCandidates = errors.New("graphrag: no candidates to match against")

// Match is the best candidate for a mention. Score is on a 0..100 scale.
type Match struct {
	Name  string
	Score float64
	Index int
}

// MatchOne returns the highest scoring candidate for mention. Ties keep the
// earliest candidate. No minimum score is applied here.
func MatchOne(mention string, names []string) (Match, error) {
	if len(names) == 0 {
		return Match{}, ErrNoCandidates
	}
	q := normalize(mention)
	best := Match{Index: -1, Score: -1}
	for i, name := range names {
		s := weightedRatio(q, normalize(name))
		if s > best.Score {
			best = Match{Name: name, Score: s, Index: i}
		}
	}
	return best, nil
}

// Score compares two strings with the same weighting MatchOne uses.
func Score(a, b string) float64 {
	return weightedRatio(normalize(a), normalize(b))
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// ratio is the normalised edit similarity of a and b.
func ratio(a, b string) float64 {
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	if la == 0 && lb == 0 {
		return 100
	}
	longest := la
	if lb > longest {
		longest = lb
	}
	d := levenshtein.ComputeDistance(a, b)
	return 100 * (1 - float64(d)/float64(longest))
}

// partialRatio slides the shorter string over the longer one and keeps the
// best window.
func partialRatio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	if len(ra) > len(rb) {
		ra, rb = rb, ra
	}
	if len(ra) == 0 {
		return 0
	}
	short := string(ra)
	best := 0.0
	for i := 0; i+len(ra) <= len(rb); i++ {
		s := ratio(short, string(rb[i:i+len(ra)]))
		if s > best {
			best = s
			if best == 100 {
				break
			}
		}
	}
	return best
}

func sortedTokens(s string) []string {
	toks := strings.Fields(s)
	sort.Strings(toks)
	return toks
}

func tokenSortRatio(a, b string) float64 {
	return ratio(strings.Join(sortedTokens(a), " "), strings.Join(sortedTokens(b), " "))
}

func tokenSetRatio(a, b string) float64 {
	setA := map[string]bool{}
	for _, t := range strings.Fields(a) {
		setA[t] = true
	}
	setB := map[string]bool{}
	for _, t := range strings.Fields(b) {
		setB[t] = true
	}
	var common, onlyA, onlyB []string
	for t := range setA {
		if setB[t] {
			common = append(common, t)
		} else {
			onlyA = append(onlyA, t)
		}
	}
	for t := range setB {
		if !setA[t] {
			onlyB = append(onlyB, t)
		}
	}
	sort.Strings(common)
	sort.Strings(onlyA)
	sort.Strings(onlyB)

	sect := strings.Join(common, " ")
	combA := strings.TrimSpace(sect + " " + strings.Join(onlyA, " "))
	combB := strings.TrimSpace(sect + " " + strings.Join(onlyB, " "))
	if sect != "" && (len(onlyA) == 0 || len(onlyB) == 0) {
		return 100
	}
	best := ratio(combA, combB)
	if sect != "" {
		if s := ratio(sect, combA); s > best {
			best = s
		}
		if s := ratio(sect, combB); s > best {
			best = s
		}
	}
	return best
}

// weightedRatio combines the plain, partial and token ratios, discounting
// the partial variants as the length difference grows.
func weightedRatio(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	la, lb := float64(utf8.RuneCountInString(a)), float64(utf8.RuneCountInString(b))
	lenRatio := la / lb
	if lb > la {
		lenRatio = lb / la
	}

	best := ratio(a, b)
	const tokenScale = 0.95
	if lenRatio < 1.5 {
		best = maxf(best, tokenSortRatio(a, b)*tokenScale, tokenSetRatio(a, b)*tokenScale)
		return best
	}
	partialScale := 0.9
	if lenRatio > 8 {
		partialScale = 0.6
	}
	return maxf(best,
		partialRatio(a, b)*partialScale,
		tokenSortRatio(a, b)*tokenScale*partialScale,
		tokenSetRatio(a, b)*tokenScale*partialScale,
	)
}

func maxf(first float64, rest ...float64) float64 {
	m := first
	for _, v := range rest {
		if v > m {
			m = v
		}
	}
	return m
}
