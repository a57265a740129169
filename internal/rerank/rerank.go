// Package rerank implements the Reranker (C10): deterministic multiplicative
// score adjustments applied to a fused result list, per spec.md §4.9. Not
// grounded on the teacher's internal/search/reranker.go (an ML
// cross-encoder interface, the wrong shape entirely); grounded instead on
// internal/search/options.go's ApplyTestFilePenalty/ApplyPathBoost, which
// already implement the same style of deterministic multiplicative
// adjustment (penalize test files, boost implementation paths) this
// component generalizes into one pass covering every §4.9 rule.
package rerank

import (
	"path"
	"sort"
	"strings"

	"github.com/latchkey-dev/hybridsearch/internal/fusion"
)

// Caps bound the rerank pass so no single rule can runaway the score (§4.9).
const (
	semanticCap  = 1.5
	exactFloor   = 1.6
	definitionScoreMultiplier = 2.2
)

var implementationDirs = map[string]struct{}{
	"src": {}, "lib": {}, "core": {}, "main": {}, "app": {},
}

var testDirs = map[string]struct{}{
	"tests": {}, "test": {}, "spec": {}, "__tests__": {},
}

var codeExtensions = map[string]struct{}{
	".rs": {}, ".py": {}, ".js": {}, ".ts": {}, ".go": {}, ".java": {},
	".cpp": {}, ".c": {}, ".h": {}, ".rb": {}, ".php": {}, ".swift": {},
	".kt": {}, ".scala": {}, ".cs": {}, ".sql": {},
}

var definitionPrefixes = []string{
	"fn ", "def ", "class ", "struct ", "interface ", "enum ",
}

// Rerank applies the §4.9 rule table to fused, returning a new slice sorted
// by adjusted score descending with fusion's tie-break: (lower file_id,
// lower line).
func Rerank(query string, fused []*fusion.FusedResult) []*fusion.FusedResult {
	if len(fused) == 0 {
		return fused
	}

	lowerQuery := strings.ToLower(strings.TrimSpace(query))
	queryTokens := strings.Fields(lowerQuery)

	out := make([]*fusion.FusedResult, len(fused))
	for i, r := range fused {
		adjusted := *r
		adjusted.Score = rerankOne(lowerQuery, queryTokens, r)
		out[i] = &adjusted
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if out[i].FileID != out[j].FileID {
			return out[i].FileID < out[j].FileID
		}
		return out[i].LineRange[0] < out[j].LineRange[0]
	})

	return out
}

func rerankOne(lowerQuery string, queryTokens []string, r *fusion.FusedResult) float64 {
	score := r.Score
	filename := strings.ToLower(path.Base(r.FileID))
	dir := strings.ToLower(path.Dir(r.FileID))
	lowerSnippet := strings.ToLower(r.Snippet)

	if lowerQuery != "" && strings.Contains(filename, lowerQuery) {
		score *= 2.0
	}

	for _, tok := range queryTokens {
		if tok != "" && strings.Contains(filename, tok) {
			score *= 1.3
		}
	}

	if lowerQuery != "" && strings.Contains(strings.ToLower(r.FileID), lowerQuery) {
		score *= 1.4
	}

	if lowerQuery != "" && strings.Contains(firstNLines(lowerSnippet, 5), lowerQuery) {
		score *= 1.3
	}

	if lowerQuery != "" && definitionLineContainsQuery(lowerSnippet, lowerQuery) {
		score *= definitionScoreMultiplier
	}

	if hasPathComponent(dir, implementationDirs) {
		score *= 1.2
	}
	if hasPathComponent(dir, testDirs) {
		score *= 0.6
	}
	if isTestFileName(filename) {
		score *= 0.5
	}

	lineCount := r.LineRange[1] - r.LineRange[0] + 1
	if lineCount > 200 {
		score *= 0.9
	} else if lineCount < 10 {
		score *= 1.05
	}

	if _, ok := codeExtensions[strings.ToLower(path.Ext(r.FileID))]; ok {
		score *= 1.1
	}

	switch r.Source {
	case fusion.SourceSemantic:
		if score > semanticCap {
			score = semanticCap
		}
	case fusion.SourceExact:
		if score < exactFloor {
			score = exactFloor
		}
	}

	return score
}

// firstNLines returns the first n lines of s, joined by spaces so a
// substring search over it matches query text spanning a line break in the
// original snippet less strictly than §4.9 strictly requires, which is
// acceptable since the rule only gates a boost, never correctness.
func firstNLines(s string, n int) string {
	lines := strings.SplitN(s, "\n", n+1)
	if len(lines) > n {
		lines = lines[:n]
	}
	return strings.Join(lines, " ")
}

func definitionLineContainsQuery(snippet, lowerQuery string) bool {
	for _, line := range strings.Split(snippet, "\n") {
		trimmed := strings.TrimLeft(line, " \t")
		for _, prefix := range definitionPrefixes {
			if strings.HasPrefix(trimmed, prefix) && strings.Contains(strings.ToLower(line), lowerQuery) {
				return true
			}
		}
	}
	return false
}

func hasPathComponent(dir string, set map[string]struct{}) bool {
	for _, part := range strings.Split(dir, "/") {
		if _, ok := set[part]; ok {
			return true
		}
	}
	return false
}

func isTestFileName(filename string) bool {
	if strings.HasSuffix(filename, "_test.go") || strings.HasPrefix(filename, "test_") {
		return true
	}
	for _, suffix := range []string{"_test", ".test", ".spec"} {
		base := strings.TrimSuffix(filename, path.Ext(filename))
		if strings.HasSuffix(base, suffix) {
			return true
		}
	}
	return false
}
