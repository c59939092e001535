package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePhone(t *testing.T) {
	cases := map[string]string{
		"(11) 99999-8888":   "+5511999998888",
		"11 3333-4444":      "+551133334444",
		"+55 11 99999-8888": "+5511999998888",
		"5511999998888":     "+5511999998888",
		"011 99999-8888":    "+5511999998888",
	}
	for in, want := range cases {
		got, err := NormalizePhone(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, bad := range []string{"", "1234", "+1 415 555 0100 22", "4411999998888"} {
		_, err := NormalizePhone(bad)
		assert.ErrorIs(t, err, ErrInvalidPhone, bad)
		assert.ErrorIs(t, err, ErrValidation, bad)
	}
}
