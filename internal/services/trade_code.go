package service

import "math/rand"

// Trade codes look like "#K7Q2M": a hash mark followed by five random
// characters from A-Z0-9. Codes are never reused; uniqueness is enforced
// by the deals.trade_code unique index and collisions re-roll.
const (
	tradeCodeAlphabet    = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	tradeCodeLength      = 5
	maxTradeCodeAttempts = 10
)

func generateTradeCode() string {
	code := make([]byte, tradeCodeLength+1)
	code[0] = '#'
	for i := 1; i < len(code); i++ {
		code[i] = tradeCodeAlphabet[rand.Intn(len(tradeCodeAlphabet))]
	}
	return string(code)
}
