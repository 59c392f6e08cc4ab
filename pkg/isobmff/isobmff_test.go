// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/lal
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package isobmff_test

import (
	"testing"

	"github.com/q191201771/mpeghiec/pkg/isobmff"
	"github.com/q191201771/naza/pkg/assert"
)

func TestWriteThenReadMhm1Track(t *testing.T) {
	params := isobmff.WriteParams{
		SampleRate:   48000,
		ChannelCount: 2,
		TimeScale:    48000,
	}
	samples := []isobmff.Sample{
		{Data: []byte{0x01, 0x02, 0x03}, Duration: 1024},
		{Data: []byte{0x04, 0x05, 0x06, 0x07}, Duration: 1024},
		{Data: []byte{0x08}, Duration: 1024},
	}

	file := isobmff.WriteMhm1File(params, samples)
	assert.Equal(t, true, len(file) > 0)

	track, err := isobmff.ReadMhm1Track(file)
	assert.Equal(t, nil, err)
	assert.Equal(t, uint32(48000), track.SampleRate)
	assert.Equal(t, uint16(2), track.ChannelCount)
	assert.Equal(t, []uint32{3, 4, 1}, track.SampleSizes)
	assert.Equal(t, []uint32{1024, 1024, 1024}, track.SampleDeltas)
	assert.Equal(t, 3, len(track.ChunkOffsets))

	for i, off := range track.ChunkOffsets {
		got := file[off : int(off)+len(samples[i].Data)]
		assert.Equal(t, samples[i].Data, got)
	}
}

func TestReadMhm1Track_RejectsTruncatedBuffer(t *testing.T) {
	_, err := isobmff.ReadMhm1Track([]byte{0x00, 0x00, 0x00})
	if err == nil {
		t.Fatalf("expected error on truncated buffer")
	}
}
