package commitment

import (
	"errors"
	"strings"
	"testing"

	"github.com/alanyoungcy/ppmclient/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("entropy exhausted") }

func TestGenerateSecret(t *testing.T) {
	a, err := GenerateSecret()
	require.NoError(t, err)
	b, err := GenerateSecret()
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.False(t, a.IsZero())

	s := a.String()
	assert.Len(t, s, 66)
	assert.True(t, strings.HasPrefix(s, "0x"))
	assert.Equal(t, strings.ToLower(s), s)
}

func TestGenerateSecretFailsWithoutEntropy(t *testing.T) {
	orig := randReader
	randReader = failingReader{}
	t.Cleanup(func() { randReader = orig })

	s, err := GenerateSecret()
	require.Error(t, err)
	assert.True(t, s.IsZero())
}

func TestParseSecret(t *testing.T) {
	want, err := GenerateSecret()
	require.NoError(t, err)

	cases := []struct {
		name  string
		input string
		ok    bool
	}{
		{"lowercase", want.String(), true},
		{"uppercase digits", "0x" + strings.ToUpper(want.String()[2:]), true},
		{"uppercase prefix", "0X" + want.String()[2:], true},
		{"surrounding space", "  " + want.String() + "\n", true},
		{"no prefix", want.String()[2:], false},
		{"short", want.String()[:65], false},
		{"long", want.String() + "0", false},
		{"non hex", "0x" + strings.Repeat("zz", 32), false},
		{"empty", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseSecret(tc.input)
			if !tc.ok {
				assert.ErrorIs(t, err, domain.ErrInvalidSecret)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}
