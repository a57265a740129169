// Package tokenize implements the Tokenizer (C2): splitting chunk text into
// weighted, normalized tokens for BM25Index and TextIndex. The split rules
// are grounded on the teacher's internal/store/tokenizer.go (camelCase/
// snake_case splitting, stop-word filtering) extended with stemming,
// n-grams and per-line importance weighting per spec.md §4.2.
package tokenize

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/blevesearch/snowballstem"
	"github.com/blevesearch/snowballstem/english"
)

// Token is one emitted token: its normalized text, the 1-based number of the
// line it came from, and its importance weight (2.0 on a definition line,
// 1.0 otherwise).
type Token struct {
	Text   string
	Line   int // 1-based line number within the input text
	Weight float64
}

// Options configures a Tokenizer. Zero-value Options is invalid; use
// DefaultOptions or internal/config.Config's bm25_* fields to populate one.
type Options struct {
	MinTermLength int
	MaxTermLength int
	StopWords     map[string]struct{}
	EnableStemming bool
	EnableNgrams   bool
	MaxNgramSize   int
}

// DefaultOptions mirrors internal/config.DefaultConfig's bm25_* defaults.
func DefaultOptions() Options {
	return Options{
		MinTermLength:  2,
		MaxTermLength:  32,
		StopWords:      BuildStopWordMap(defaultStopWords),
		EnableStemming: true,
		EnableNgrams:   false,
		MaxNgramSize:   1,
	}
}

var defaultStopWords = []string{
	"the", "a", "an", "and", "or", "of", "to", "in", "is", "it",
	"for", "on", "with", "as", "at", "by", "this", "that", "be",
}

// BuildStopWordMap converts a slice of stop words to a lower-cased lookup
// set.
func BuildStopWordMap(stopWords []string) map[string]struct{} {
	m := make(map[string]struct{}, len(stopWords))
	for _, w := range stopWords {
		m[strings.ToLower(w)] = struct{}{}
	}
	return m
}

// tokenRegex matches runs of word characters, splitting on whitespace and
// punctuation other than '_' (rule 1).
var tokenRegex = regexp.MustCompile(`[\p{L}\p{N}_]+`)

// definitionPatterns are language-agnostic prefixes that mark a "definition"
// line for importance weighting (§4.2).
var definitionPatterns = []string{
	"fn ", "def ", "class ", "struct ", "func ", "interface ",
	"enum ", "trait ", "type ", "impl ", "public ", "private ",
	"protected ", "module ",
}

// Tokenizer implements the C2 contract.
type Tokenizer struct {
	opts Options
}

// New creates a Tokenizer with the given options.
func New(opts Options) *Tokenizer {
	return &Tokenizer{opts: opts}
}

// Tokenize splits text into a sequence of Token, applying the §4.2 rules in
// order. language is an optional hint; it is currently unused beyond being
// accepted, since the definition-pattern weighting is intentionally
// language-agnostic (multiple languages share "class "/"def " etc).
func (t *Tokenizer) Tokenize(text string, language string) []Token {
	var out []Token

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lineNo := i + 1
		weight := 1.0
		trimmed := strings.TrimLeft(line, " \t")
		for _, pat := range definitionPatterns {
			if strings.HasPrefix(trimmed, pat) {
				weight = 2.0
				break
			}
		}

		for _, raw := range t.tokenizeLine(line) {
			out = append(out, Token{Text: raw, Line: lineNo, Weight: weight})
		}
	}

	return out
}

// tokenizeLine applies rules 1-8 to a single line, returning normalized
// token text only (weight/line are attached by the caller).
func (t *Tokenizer) tokenizeLine(line string) []string {
	var result []string

	words := tokenRegex.FindAllString(line, -1)
	for _, word := range words {
		pieces := t.splitIdentifier(word)
		for _, piece := range pieces {
			result = append(result, t.normalize(piece)...)
		}
		// Rule 2/3: also emit the original token, unless splitting it was a
		// no-op (single piece identical to the word itself), to avoid
		// double-counting a plain token's term frequency.
		if len(pieces) != 1 || pieces[0] != word {
			result = append(result, t.normalize(word)...)
		}
	}

	if t.opts.EnableNgrams && t.opts.MaxNgramSize > 1 {
		result = append(result, buildNgrams(result, t.opts.MaxNgramSize)...)
	}

	return result
}

// splitIdentifier splits on '_' and "::" then recursively splits each part
// on camelCase/PascalCase boundaries (rules 2-3).
func (t *Tokenizer) splitIdentifier(token string) []string {
	parts := []string{token}
	if strings.Contains(token, "::") {
		parts = strings.Split(token, "::")
	}

	var out []string
	for _, p := range parts {
		if strings.Contains(p, "_") {
			for _, sub := range strings.Split(p, "_") {
				if sub != "" {
					out = append(out, splitCamelCase(sub)...)
				}
			}
			continue
		}
		out = append(out, splitCamelCase(p)...)
	}
	return out
}

// splitCamelCase splits camelCase and PascalCase identifiers, keeping runs
// of uppercase letters (acronyms) together.
//
//	"getUserById"     -> ["get", "User", "By", "Id"]
//	"HTTPHandler"     -> ["HTTP", "Handler"]
//	"parseHTTPRequest"-> ["parse", "HTTP", "Request"]
func splitCamelCase(s string) []string {
	if s == "" {
		return []string{}
	}

	var result []string
	var current strings.Builder

	runes := []rune(s)
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prevIsLower := unicode.IsLower(runes[i-1])
			nextIsLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if prevIsLower || nextIsLower {
				if current.Len() > 0 {
					result = append(result, current.String())
					current.Reset()
				}
			}
		}
		current.WriteRune(r)
	}
	if current.Len() > 0 {
		result = append(result, current.String())
	}
	return result
}

// normalize applies rules 4-7 (lowercase, length filter, stop-word filter,
// stemming) to a single raw piece, returning zero or one token.
func (t *Tokenizer) normalize(piece string) []string {
	lower := strings.ToLower(piece)

	if len(lower) < t.opts.MinTermLength || len(lower) > t.opts.MaxTermLength {
		return nil
	}
	if t.opts.StopWords != nil {
		if _, isStop := t.opts.StopWords[lower]; isStop {
			return nil
		}
	}
	if t.opts.EnableStemming {
		lower = stem(lower)
	}
	return []string{lower}
}

// stem applies the Snowball English stemmer.
func stem(word string) string {
	env := snowballstem.NewEnv(word)
	english.Stem(env)
	return env.Current()
}

// buildNgrams emits adjacent token n-grams up to maxN (rule 8), joined by a
// single space, so a bigram "get user" can match a phrase query independent
// of its unigram members.
func buildNgrams(tokens []string, maxN int) []string {
	var ngrams []string
	for n := 2; n <= maxN; n++ {
		if n > len(tokens) {
			break
		}
		for i := 0; i+n <= len(tokens); i++ {
			ngrams = append(ngrams, strings.Join(tokens[i:i+n], " "))
		}
	}
	return ngrams
}
