package iec61937_test

import (
	"testing"

	. "github.com/q191201771/mpeghiec/pkg/iec61937"
	"github.com/q191201771/naza/pkg/assert"
)

func TestEncoderThenDecoder_PcmOffsetSign(t *testing.T) {
	// 验证pcm_offset跨burst按有符号数传递时不会因为补码截断而出现符号错乱：
	// factor 16下先后写入两枚duration=512的AU，它们攒进同一个burst，第二枚携带pcm_offset=512。
	e, err := NewEncoder(16)
	assert.Equal(t, nil, err)

	out := make([]byte, EncoderWorkBufferSizeBytes)
	au1 := make([]byte, 50)
	au2 := make([]byte, 50)

	res, err := e.Process(au1, 512, out)
	assert.Equal(t, nil, err)
	assert.Equal(t, true, res.InputConsumed)

	res, err = e.Process(au2, 512, out)
	assert.Equal(t, nil, err)
	assert.Equal(t, true, res.InputConsumed)

	if res.OutLen == 0 {
		t.Fatalf("expected burst after accumulating 2x512 >= 1024")
	}

	d := NewDecoder()
	assert.Equal(t, nil, d.Feed(out[:res.OutLen]))

	decodedOut := make([]byte, MaxMpeghFrameSize)
	var sawSecond bool
	for {
		r, err := d.Process(decodedOut)
		if err != nil {
			break
		}
		if r.OutLen == 50 && r.PcmOffset == 512 {
			sawSecond = true
		}
	}
	if !sawSecond {
		t.Fatalf("expected to decode the second 50-byte AU with pcm_offset 512")
	}
}
