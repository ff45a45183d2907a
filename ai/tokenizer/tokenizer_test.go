package tokenizer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCountTokens(t *testing.T) {
	assert.Equal(t, 0, CountTokens(""))

	short := CountTokens("hello")
	long := CountTokens(strings.Repeat("hello world ", 50))
	assert.Greater(t, long, short)
}

func TestCountAll(t *testing.T) {
	a, b := "first message", "second message"
	assert.Equal(t, CountTokens(a)+CountTokens(b), CountAll(a, b))
	assert.Equal(t, 0, CountAll())
}

func TestTruncateKeepsShortText(t *testing.T) {
	text := "short"
	assert.Equal(t, text, Truncate(text, 1000))
}

func TestTruncateCutsLongText(t *testing.T) {
	text := strings.Repeat("memory ", 200)
	got := Truncate(text, 8)
	assert.Less(t, len(got), len(text))
	assert.True(t, strings.HasPrefix(text, got))
}

func TestTruncateZeroBudget(t *testing.T) {
	assert.Equal(t, "", Truncate("anything", 0))
	assert.Equal(t, "", Truncate("anything", -1))
}
