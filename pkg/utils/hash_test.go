package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashStringStable(t *testing.T) {
	assert.Equal(t, HashString("abb|acs580"), HashString("abb|acs580"))
	assert.NotEqual(t, HashString("abb|acs580"), HashString("abb|acs880"))

	// 32 hex characters regardless of input length.
	assert.Len(t, HashString(""), 32)
	assert.Len(t, HashString("siemens|simatic s7-1500 cpu 1516-3 pn/dp"), 32)
}
