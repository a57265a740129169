package searcher_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestScenario_MainFunctionQueryRanksMainFileFirst exercises §8's S1: a
// corpus of two Rust files, a query matching the file containing a
// definition, the definition itself surfacing in the top hit's snippet.
func TestScenario_MainFunctionQueryRanksMainFileFirst(t *testing.T) {
	u := newTestSearcher(t)
	ctx := context.Background()

	mainPath := writeTempFileNamed(t, "main.rs", "fn main() { println!(\"hello world\"); }\n")
	userPath := writeTempFileNamed(t, "user.rs", "struct User { name: String }\n")
	require.NoError(t, u.IndexFile(ctx, mainPath))
	require.NoError(t, u.IndexFile(ctx, userPath))

	results, err := u.Search(ctx, "main function")
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Contains(t, results[0].FileID, "main.rs")
	assert.Contains(t, results[0].Target.Content, "fn main")
}

// TestScenario_SymbolQueryRanksDefiningFileFirst exercises §8's S2: the same
// corpus, a query for a struct name, with a non-zero symbol-source
// contribution to the top result.
func TestScenario_SymbolQueryRanksDefiningFileFirst(t *testing.T) {
	u := newTestSearcher(t)
	ctx := context.Background()

	mainPath := writeTempFileNamed(t, "main.rs", "fn main() { println!(\"hello world\"); }\n")
	userPath := writeTempFileNamed(t, "user.rs", "struct User { name: String }\n")
	require.NoError(t, u.IndexFile(ctx, mainPath))
	require.NoError(t, u.IndexFile(ctx, userPath))

	results, err := u.Search(ctx, "User")
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Contains(t, results[0].FileID, "user.rs")

	symbols, err := u.Stats(ctx)
	require.NoError(t, err)
	assert.Positive(t, symbols.SymbolsIndexed)
}
