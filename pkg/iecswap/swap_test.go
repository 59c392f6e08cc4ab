package iecswap_test

import (
	"testing"

	"github.com/q191201771/mpeghiec/pkg/iecswap"
	"github.com/q191201771/naza/pkg/assert"
)

func TestSwap16(t *testing.T) {
	b := []byte{0x01, 0x02, 0x03, 0x04}
	iecswap.Swap16(b)
	assert.Equal(t, []byte{0x02, 0x01, 0x04, 0x03}, b)
}

func TestSwap16_OddLengthLeavesTrailingByte(t *testing.T) {
	b := []byte{0x01, 0x02, 0x03}
	iecswap.Swap16(b)
	assert.Equal(t, []byte{0x02, 0x01, 0x03}, b)
}
