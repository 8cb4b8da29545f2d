package plagiarism

import (
	"context"
	"math"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/RishiKendai/aegis-local/internal/corpus"
	"github.com/RishiKendai/aegis-local/internal/models"
	"github.com/agnivade/levenshtein"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Tokenize splits text into case-folded word tokens. Anything that is not
// a letter, digit or combining mark separates tokens, and a token must hold
// at least one letter or digit.
func Tokenize(text string) []string {
	folded := cases.Fold().String(norm.NFKC.String(text))
	fields := strings.FieldsFunc(folded, isSeparator)

	tokens := fields[:0]
	for _, field := range fields {
		if strings.IndexFunc(field, isWordRune) >= 0 {
			tokens = append(tokens, field)
		}
	}
	return tokens
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func isSeparator(r rune) bool {
	return !isWordRune(r) && !unicode.Is(unicode.Mn, r)
}

// TokenSetRatio scores the overlap of the unique tokens of a and b in [0,100].
//
// Shared tokens are sorted and prefixed to each side's sorted leftovers, and
// the best edit-distance ratio among the three resulting strings wins. When
// one token set contains the other the score is 100. An empty side scores 0.
func TokenSetRatio(a, b string) int {
	return tokenSetRatio(tokenSet(Tokenize(a)), tokenSet(Tokenize(b)))
}

func tokenSetRatio(setA, setB map[string]bool) int {
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	sect := make([]string, 0)
	onlyA := make([]string, 0)
	onlyB := make([]string, 0)
	for token := range setA {
		if setB[token] {
			sect = append(sect, token)
		} else {
			onlyA = append(onlyA, token)
		}
	}
	for token := range setB {
		if !setA[token] {
			onlyB = append(onlyB, token)
		}
	}

	if len(sect) > 0 && (len(onlyA) == 0 || len(onlyB) == 0) {
		return 100
	}

	sort.Strings(sect)
	sort.Strings(onlyA)
	sort.Strings(onlyB)

	base := strings.Join(sect, " ")
	left := joinTokens(base, onlyA)
	right := joinTokens(base, onlyB)

	best := ratio(left, right)
	if len(sect) > 0 {
		best = max(best, ratio(base, left), ratio(base, right))
	}
	return best
}

// ScoreByTokenSet returns the reference with the highest token-set ratio.
// Ties keep the earliest document; an empty corpus yields a zero result.
func ScoreByTokenSet(text string, docs corpus.Corpus) models.SimilarityResult {
	result, _ := scoreByTokenSet(context.Background(), text, docs)
	return result
}

// scoreByTokenSet tokenizes the submission once and stops between
// documents when ctx is done.
func scoreByTokenSet(ctx context.Context, text string, docs corpus.Corpus) (models.SimilarityResult, error) {
	submitted := tokenSet(Tokenize(text))

	result := models.SimilarityResult{}
	for i, doc := range docs {
		if err := ctx.Err(); err != nil {
			return models.SimilarityResult{}, err
		}

		score := tokenSetRatio(submitted, tokenSet(Tokenize(doc.Text)))
		if i == 0 || score > result.Score {
			result.Score = score
			result.Source = doc.ID
		}
	}
	return result, nil
}

// ratio is 1 - levenshtein/maxLen over runes, scaled and rounded to [0,100]
func ratio(a, b string) int {
	maxLen := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if maxLen == 0 {
		return 100
	}

	dist := levenshtein.ComputeDistance(a, b)
	return clampScore(int(math.Round(100 * (1 - float64(dist)/float64(maxLen)))))
}

func tokenSet(tokens []string) map[string]bool {
	set := make(map[string]bool, len(tokens))
	for _, token := range tokens {
		set[token] = true
	}
	return set
}

func joinTokens(prefix string, tokens []string) string {
	rest := strings.Join(tokens, " ")
	if prefix == "" {
		return rest
	}
	if rest == "" {
		return prefix
	}
	return prefix + " " + rest
}
