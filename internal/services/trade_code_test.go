package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateTradeCodeFormat(t *testing.T) {
	for i := 0; i < 1000; i++ {
		code := generateTradeCode()
		assert.Len(t, code, tradeCodeLength+1)
		assert.Equal(t, byte('#'), code[0])
		for _, c := range code[1:] {
			assert.True(t, strings.ContainsRune(tradeCodeAlphabet, c), "unexpected character %q in %s", c, code)
		}
	}
}

func TestGenerateTradeCodeVariety(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		seen[generateTradeCode()] = true
	}
	// 200 draws from a 36^5 space should essentially never collide.
	assert.Greater(t, len(seen), 195)
}
