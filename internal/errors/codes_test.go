package errors

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeForKind_MapsAllTenKinds(t *testing.T) {
	tests := []struct {
		kind     Kind
		wantCode string
	}{
		{KindFileTooLarge, ErrCodeFileTooLarge},
		{KindUnreadableFile, ErrCodeFileUnreadable},
		{KindDimensionMismatch, ErrCodeDimensionMismatch},
		{KindInvalidEmbedding, ErrCodeInvalidEmbedding},
		{KindInsufficientRecords, ErrCodeInsufficientData},
		{KindCorruptIndex, ErrCodeCorruptIndex},
		{KindBackendUnavailable, ErrCodeBackendUnavailable},
		{KindQueryParseError, ErrCodeInvalidQuery},
		{KindResourceExhausted, ErrCodeResourceExhausted},
		{KindCancelled, ErrCodeCancelled},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			assert.Equal(t, tt.wantCode, CodeForKind(tt.kind))
		})
	}
}

func TestCodeForKind_UnknownKindDefaultsToInternal(t *testing.T) {
	assert.Equal(t, ErrCodeInternal, CodeForKind(Kind("NotARealKind")))
}
