package llm

import (
	"testing"

	"github.com/jinford/chat-rag/internal/core/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCredentialPolicy_Validate(t *testing.T) {
	valid := "sk-" + stringOfLen(48)
	policy := DefaultCredentialPolicy()

	tests := []struct {
		name    string
		key     string
		wantErr bool
	}{
		{"valid", valid, false},
		{"empty", "", true},
		{"wrong prefix", "pk-" + stringOfLen(48), true},
		{"too short", "sk-abc", true},
		{"surrounding whitespace", " " + valid[1:], true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := policy.Validate(tt.key)
			if !tt.wantErr {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, apperr.ErrCredentialInvalid)
			assert.Equal(t, apperr.KindConfiguration, apperr.KindOf(err))
		})
	}
}

func TestCredentialPolicy_NoLengthCheck(t *testing.T) {
	policy := CredentialPolicy{Prefix: "sk"}
	require.NoError(t, policy.Validate("sk-short"))
}

func TestParseProviderNames(t *testing.T) {
	p, err := ParseEmbeddingProvider("")
	require.NoError(t, err)
	assert.Equal(t, EmbeddingHosted, p)

	p, err = ParseEmbeddingProvider("Local")
	require.NoError(t, err)
	assert.Equal(t, EmbeddingLocal, p)

	_, err = ParseEmbeddingProvider("cohere")
	assert.ErrorIs(t, err, apperr.ErrInvalidConfiguration)

	m, err := ParseModelName("gpt4all")
	require.NoError(t, err)
	assert.Equal(t, ModelLocalA, m)

	m, err = ParseModelName("local-variant-b")
	require.NoError(t, err)
	assert.Equal(t, ModelLocalB, m)

	_, err = ParseModelName("claude")
	assert.ErrorIs(t, err, apperr.ErrInvalidConfiguration)
}

func TestRegistry_ModelLookup(t *testing.T) {
	reg := NewRegistry()
	hosted := &Model{Name: ModelHosted, Generator: &stubGenerator{}, Metered: true}
	reg.RegisterModel(hosted)
	reg.DisableModel(ModelLocalA, apperr.ErrModelWeightsNotFound)

	got, err := reg.Model(ModelHosted)
	require.NoError(t, err)
	assert.Same(t, hosted, got)

	_, err = reg.Model(ModelLocalA)
	assert.ErrorIs(t, err, apperr.ErrModelWeightsNotFound)

	_, err = reg.Model(ModelLocalB)
	assert.ErrorIs(t, err, apperr.ErrModelUnavailable)
}

func TestRegistry_EmbedderLookup(t *testing.T) {
	reg := NewRegistry()
	reg.DisableEmbedder(EmbeddingHosted, apperr.ErrCredentialInvalid)

	_, err := reg.Embedder(EmbeddingHosted)
	assert.ErrorIs(t, err, apperr.ErrCredentialInvalid)

	_, err = reg.Embedder(EmbeddingLocal)
	assert.ErrorIs(t, err, apperr.ErrInvalidConfiguration)
}

func stringOfLen(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = 'a' + byte(i%26)
	}
	return string(b)
}
