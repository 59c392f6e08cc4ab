package iec61937_test

import (
	"testing"

	. "github.com/q191201771/mpeghiec/pkg/iec61937"
	"github.com/q191201771/naza/pkg/assert"
)

// S1 — trivial：一个AU正好填满一个burst里的sub-header+terminator+少量数据，其余为padding
func TestEncoder_S1Trivial(t *testing.T) {
	e, err := NewEncoder(4)
	assert.Equal(t, nil, err)

	au := make([]byte, 100)
	for i := range au {
		au[i] = byte(i)
	}

	out := make([]byte, EncoderWorkBufferSizeBytes)
	// duration正好等于audio_frame_length(1024)，本次调用就写出一个完整burst
	res, err := e.Process(au, 1024, out)
	assert.Equal(t, nil, err)
	assert.Equal(t, true, res.InputConsumed)
	assert.Equal(t, int(uint32(1024*4)<<(1+1)), res.OutLen) // rate_factor=4 -> rate_code=1

	// 再驱动一次：AU已全部写出，不会再产出burst，out里保持上一个burst
	res2, err := e.Process(nil, 0, out)
	assert.Equal(t, nil, err)
	assert.Equal(t, 0, res2.OutLen)

	if res.OutLen == 0 {
		t.Fatalf("expected a burst to be emitted")
	}

	assert.Equal(t, byte(0x72), out[0])
	assert.Equal(t, byte(0xf8), out[1])
	assert.Equal(t, byte(0x1f), out[2])
	assert.Equal(t, byte(0x4e), out[3])

	dataType := out[5] & 0x1f
	assert.Equal(t, byte(25), dataType)
}

// S2 — padded burst：一个很小的AU也会触发burst写出，payload用0补齐
func TestEncoder_S2PaddedBurst(t *testing.T) {
	e, err := NewEncoder(4)
	assert.Equal(t, nil, err)

	au := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	out := make([]byte, EncoderWorkBufferSizeBytes)

	res, err := e.Process(au, 1024, out)
	assert.Equal(t, nil, err)
	assert.Equal(t, true, res.InputConsumed)

	// burst已在上一次调用写出；再驱动一次不会产出新的burst，out保持不变
	res2, err := e.Process(nil, 0, out)
	assert.Equal(t, nil, err)
	assert.Equal(t, 0, res2.OutLen)
	if res.OutLen == 0 {
		t.Fatalf("expected a burst to be emitted")
	}

	burstPeriod := uint32(1024*4) << (1 + 1) // rate_factor=4 -> rate_code=1
	assert.Equal(t, int(burstPeriod), res.OutLen)

	last4 := out[res.OutLen-IecBurstSpacingSizeBytes : res.OutLen]
	for _, b := range last4 {
		assert.Equal(t, byte(0), b)
	}
}

// S3 — accumulation：factor 16下四枚AU攒齐后，第四次Process调用写出一个burst
func TestEncoder_S3Accumulation(t *testing.T) {
	e, err := NewEncoder(16)
	assert.Equal(t, nil, err)

	out := make([]byte, EncoderWorkBufferSizeBytes)
	var lastRes EncodeResult
	for i := 0; i < 4; i++ {
		au := make([]byte, 500)
		for j := range au {
			au[j] = byte(i)
		}
		res, err := e.Process(au, 256, out)
		assert.Equal(t, nil, err)
		assert.Equal(t, true, res.InputConsumed)
		lastRes = res
	}

	if lastRes.OutLen == 0 {
		t.Fatalf("expected a burst after 4 accumulated AUs")
	}
}

func TestEncoder_RejectsBadRateFactor(t *testing.T) {
	_, err := NewEncoder(8)
	if err == nil {
		t.Fatalf("expected error for unsupported rate factor")
	}
}

func TestEncoder_DurationError(t *testing.T) {
	e, err := NewEncoder(4)
	assert.Equal(t, nil, err)

	out := make([]byte, EncoderWorkBufferSizeBytes)
	_, err = e.Process([]byte{1, 2, 3}, MaxMpeghFrameDuration+1, out)
	if err == nil {
		t.Fatalf("expected duration error")
	}
}

func TestEncoder_BufferTooSmall(t *testing.T) {
	e, err := NewEncoder(4)
	assert.Equal(t, nil, err)

	out := make([]byte, 4)
	_, err = e.Process([]byte{1, 2, 3}, 1024, out)
	if err == nil {
		t.Fatalf("expected buffer too small error")
	}
}
