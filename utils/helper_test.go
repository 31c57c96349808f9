package utils

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsValidEmail(t *testing.T) {
	assert.True(t, IsValidEmail("maria.keller@example.com"))
	assert.True(t, IsValidEmail("ops+alerts@sub.domain.co"))
	assert.False(t, IsValidEmail("not-an-email"))
	assert.False(t, IsValidEmail("missing@tld"))
	assert.False(t, IsValidEmail(""))
}

func TestUniqueSlice(t *testing.T) {
	assert.Equal(t, []int{1, 2, 3}, UniqueSlice([]int{1, 2, 2, 3, 1}))
	assert.Equal(t, []string{"a", "b"}, UniqueSlice([]string{"a", "a", "b"}))
	assert.Nil(t, UniqueSlice([]int{}))
}

func TestParseDecimal(t *testing.T) {
	d, err := ParseDecimal(" 33.33 ")
	require.NoError(t, err)
	assert.True(t, d.Equal(decimal.RequireFromString("33.33")))

	_, err = ParseDecimal("")
	assert.Error(t, err)

	_, err = ParseDecimal("abc")
	assert.Error(t, err)
}

func TestGetTypeName(t *testing.T) {
	type DeadlineAlert struct{}
	assert.Equal(t, "DeadlineAlert", GetTypeName[DeadlineAlert]())
}
