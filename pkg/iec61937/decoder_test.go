package iec61937_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/q191201771/mpeghiec/pkg/base"
	. "github.com/q191201771/mpeghiec/pkg/iec61937"
	"github.com/q191201771/naza/pkg/assert"
)

// encodeOneAu是测试辅助函数：把duration正好等于audio_frame_length(1024)的单个AU喂给
// encoder，这样一次Process调用就足够让它被接受并立即触发burst写出。
func encodeOneAu(t *testing.T, e *Encoder, au []byte, duration uint32) []byte {
	t.Helper()
	out := make([]byte, EncoderWorkBufferSizeBytes)

	res, err := e.Process(au, duration, out)
	assert.Equal(t, nil, err)
	assert.Equal(t, true, res.InputConsumed)
	if res.OutLen == 0 {
		t.Fatalf("expected burst to be emitted immediately for duration==audio_frame_length")
	}
	return append([]byte(nil), out[:res.OutLen]...)
}

func TestDecoder_RoundTripSingleAu(t *testing.T) {
	e, err := NewEncoder(4)
	assert.Equal(t, nil, err)

	au := make([]byte, 100)
	for i := range au {
		au[i] = byte(i + 1)
	}

	wire := encodeOneAu(t, e, au, 1024)
	if len(wire) == 0 {
		t.Fatalf("expected encoder to produce a burst")
	}

	d := NewDecoder()
	assert.Equal(t, nil, d.Feed(wire))

	out := make([]byte, MaxMpeghFrameSize)
	var gotAu []byte
	for {
		res, err := d.Process(out)
		if errors.Is(err, base.ErrFeedMoreData) {
			break
		}
		assert.Equal(t, nil, err)
		if res.OutLen > 0 {
			gotAu = append(gotAu, out[:res.OutLen]...)
		}
	}

	if !bytes.Equal(gotAu, au) {
		t.Fatalf("round trip mismatch: got %v, want %v", gotAu, au)
	}
}

// S5 — 先喂一段垃圾数据，期望decoder一直FeedMoreData，随后喂入一个合法burst能正常解出AU
func TestDecoder_ResyncOnGarbage(t *testing.T) {
	e, err := NewEncoder(4)
	assert.Equal(t, nil, err)

	au := []byte{9, 8, 7, 6, 5}
	wire := encodeOneAu(t, e, au, 1024)

	garbage := make([]byte, 1024)
	for i := range garbage {
		garbage[i] = byte(i % 251)
	}

	d := NewDecoder()
	assert.Equal(t, nil, d.Feed(garbage))

	out := make([]byte, MaxMpeghFrameSize)
	for {
		_, err := d.Process(out)
		if errors.Is(err, base.ErrFeedMoreData) {
			break
		}
		assert.Equal(t, nil, err)
	}

	assert.Equal(t, nil, d.Feed(wire))

	var gotAu []byte
	for {
		res, err := d.Process(out)
		if errors.Is(err, base.ErrFeedMoreData) {
			break
		}
		assert.Equal(t, nil, err)
		if res.OutLen > 0 {
			gotAu = append(gotAu, out[:res.OutLen]...)
		}
	}

	if !bytes.Equal(gotAu, au) {
		t.Fatalf("expected to resync and decode au, got %v", gotAu)
	}
}

// S6 — 候选preamble之后紧跟一个data_type非法的Pc，候选被拒绝，扫描应当继续
func TestDecoder_RejectsBadDataType(t *testing.T) {
	b := make([]byte, IecHeaderSizeBytes+4)
	b[0] = SyncPreamble0
	b[1] = SyncPreamble1
	b[2] = SyncPreamble2
	b[3] = SyncPreamble3
	b[4] = 0
	b[5] = 10 // data_type=10，非法
	b[6] = 0
	b[7] = 0

	d := NewDecoder()
	assert.Equal(t, nil, d.Feed(b))

	out := make([]byte, MaxMpeghFrameSize)
	_, err := d.Process(out)
	if !errors.Is(err, base.ErrFeedMoreData) {
		t.Fatalf("expected FeedMoreData after rejecting bad candidate, got %v", err)
	}
}

// S4 — AU大小超过单个burst能容纳的available payload，encoder必须把它拆成两个
// burst写出；decoder必须通过case α/β的pending续接逻辑，把两个burst里的payload
// 拼回同一枚、大小不变的AU。
func TestDecoder_RoundTripSplitAcrossTwoBursts(t *testing.T) {
	e, err := NewEncoder(4)
	assert.Equal(t, nil, err)

	// rate_factor=4 -> rate_code=1, audio_mode=1(HBR)，sub-header固定8字节。
	const (
		burstPeriod      = Iec61937AudioFrameLength * Iec60958FrameSizeBytes << 2
		hbrSubHeaderSize = 8
		availablePayload = burstPeriod - IecHeaderSizeBytes - IecBurstSpacingSizeBytes - hbrSubHeaderSize
	)
	auLen := availablePayload - 8 + 100
	au := make([]byte, auLen)
	for i := range au {
		au[i] = byte(i*7 + 3)
	}

	out := make([]byte, EncoderWorkBufferSizeBytes)
	var wire []byte

	res, err := e.Process(au, 1024, out)
	assert.Equal(t, nil, err)
	assert.Equal(t, true, res.InputConsumed)
	if res.OutLen == 0 {
		t.Fatalf("expected first burst to be emitted immediately")
	}
	wire = append(wire, out[:res.OutLen]...)

	res, err = e.Process(nil, 0, out)
	assert.Equal(t, nil, err)
	if res.OutLen == 0 {
		t.Fatalf("expected a second burst carrying the split remainder")
	}
	wire = append(wire, out[:res.OutLen]...)

	d := NewDecoder()
	assert.Equal(t, nil, d.Feed(wire))

	decOut := make([]byte, MaxMpeghFrameSize)
	var gotAu []byte
	for {
		r, err := d.Process(decOut)
		if errors.Is(err, base.ErrFeedMoreData) {
			break
		}
		assert.Equal(t, nil, err)
		if r.OutLen > 0 {
			gotAu = append(gotAu, decOut[:r.OutLen]...)
		}
	}

	if !bytes.Equal(gotAu, au) {
		t.Fatalf("split round trip mismatch: got %d bytes, want %d bytes", len(gotAu), len(au))
	}
}

func TestDecoder_NullInput(t *testing.T) {
	d := NewDecoder()
	err := d.Feed(nil)
	if err == nil {
		t.Fatalf("expected ErrNullInput")
	}
}

func TestDecoder_CloseIsIdempotent(t *testing.T) {
	d := NewDecoder()
	d.Close()
	d.Close()

	var zero *Decoder
	zero.Close()
}
