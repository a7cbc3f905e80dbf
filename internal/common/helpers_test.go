package common

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatGP(t *testing.T) {
	cases := map[int64]string{
		0:        "0 GP",
		150:      "150 GP",
		1000:     "1,000 GP",
		12500:    "12,500 GP",
		1234567:  "1,234,567 GP",
		-1000:    "-1,000 GP",
		-999:     "-999 GP",
		10000000: "10,000,000 GP",
	}
	for in, want := range cases {
		assert.Equal(t, want, FormatGP(in), "FormatGP(%d)", in)
	}
}

func TestFormatSignedGP(t *testing.T) {
	assert.Equal(t, "+200 GP", FormatSignedGP(200))
	assert.Equal(t, "-100 GP", FormatSignedGP(-100))
	assert.Equal(t, "0 GP", FormatSignedGP(0))
}

func TestOrdinal(t *testing.T) {
	want := map[int]string{1: "1st", 2: "2nd", 3: "3rd", 4: "4th", 11: "11th", 12: "12th", 13: "13th", 21: "21st", 102: "102nd", 111: "111th"}
	for n, s := range want {
		assert.Equal(t, s, Ordinal(n))
	}
}

func TestChallengeContext(t *testing.T) {
	assert.Equal(t, "", ChallengeContext(""))
	assert.Equal(t, "challenge:abc", ChallengeContext("abc"))
}

func TestNotFoundErrorsMatchBase(t *testing.T) {
	assert.True(t, errors.Is(ErrChallengeNotFound, ErrNotFound))
	assert.True(t, errors.Is(fmt.Errorf("lookup: %w", ErrUserNotFound), ErrNotFound))
	assert.False(t, errors.Is(ErrInsufficientFunds, ErrNotFound))
	assert.False(t, errors.Is(ErrChallengeNotFound, ErrUserNotFound))
}

func TestDiscordTimestamp(t *testing.T) {
	ts := time.Unix(1700000000, 0)
	assert.Equal(t, "<t:1700000000:R>", DiscordTimestamp(ts, "R"))
	assert.Equal(t, "<t:1700000000:f>", DiscordTimestamp(ts, ""))
}
