// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/lal
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package isobmff

import (
	"github.com/q191201771/mpeghiec/pkg/base"
	"github.com/q191201771/naza/pkg/bele"
	"github.com/q191201771/naza/pkg/nazaerrors"
)

// Track描述ReadMhm1Track从一个mhm1音轨里取出的、app/mpeghiecenc编码所需的最少信息
type Track struct {
	SampleRate   uint32
	ChannelCount uint16
	SampleSizes  []uint32 // stsz，每个sample（一个AU）的字节数
	ChunkOffsets []uint32 // stco，每个chunk在文件中的绝对offset；这里每个sample各自一个chunk
	SampleDeltas []uint32 // 展开后的stts，每个sample的duration（timescale单位）
}

// ReadMhm1Track解析b中的顶层box，找到第一条mhm1音轨，返回其sample table信息。
// 只认ftyp/moov/trak/mdia/minf/stbl/stsd/mp4a|mhm1/stsz/stco/stts/mdat，
// 其余box一律跳过（sbtl内部未知box、udta等）
func ReadMhm1Track(b []byte) (*Track, error) {
	trak, err := findTrakWithMhm1(b)
	if err != nil {
		return nil, err
	}

	mdia, err := findChild(trak, boxTypeMdia)
	if err != nil {
		return nil, err
	}
	minf, err := findChild(mdia, boxTypeMinf)
	if err != nil {
		return nil, err
	}
	stbl, err := findChild(minf, boxTypeStbl)
	if err != nil {
		return nil, err
	}
	stsd, err := findChild(stbl, boxTypeStsd)
	if err != nil {
		return nil, err
	}

	rate, channels, err := parseStsdForMhm1(stsd)
	if err != nil {
		return nil, err
	}

	stsz, err := findChild(stbl, boxTypeStsz)
	if err != nil {
		return nil, err
	}
	sizes, err := parseStsz(stsz)
	if err != nil {
		return nil, err
	}

	stco, err := findChild(stbl, boxTypeStco)
	if err != nil {
		return nil, err
	}
	offsets, err := parseStco(stco)
	if err != nil {
		return nil, err
	}

	stts, err := findChild(stbl, boxTypeStts)
	if err != nil {
		return nil, err
	}
	deltas, err := parseStts(stts, len(sizes))
	if err != nil {
		return nil, err
	}

	if _, _, err := findTopLevel(b, boxTypeMdat); err != nil {
		return nil, err
	}

	return &Track{
		SampleRate:   rate,
		ChannelCount: channels,
		SampleSizes:  sizes,
		ChunkOffsets: offsets,
		SampleDeltas: deltas,
	}, nil
}

// findTopLevel在b的顶层box序列中查找第一个type==boxType的box
func findTopLevel(b []byte, boxType uint32) (boxHeader, int, error) {
	off := 0
	for off < len(b) {
		h, payloadOff, err := readBoxHeader(b, off)
		if err != nil {
			return boxHeader{}, 0, err
		}
		if h.boxType == boxType {
			return h, payloadOff, nil
		}
		off = h.end()
	}
	return boxHeader{}, 0, nazaerrors.Wrap(base.ErrIsobmff)
}

// findChild在parent（一个box的payload切片）内查找第一个子box，返回其payload切片
func findChild(parent []byte, boxType uint32) ([]byte, error) {
	off := 0
	for off < len(parent) {
		h, payloadOff, err := readBoxHeader(parent, off)
		if err != nil {
			return nil, err
		}
		if h.boxType == boxType {
			return parent[payloadOff:h.end()], nil
		}
		off = h.end()
	}
	return nil, nazaerrors.Wrap(base.ErrIsobmff)
}

// findTrakWithMhm1遍历moov下的所有trak，返回第一条stsd里含mhm1/mp4a采样条目的trak payload
func findTrakWithMhm1(b []byte) ([]byte, error) {
	moovHdr, moovPayloadOff, err := findTopLevel(b, boxTypeMoov)
	if err != nil {
		return nil, err
	}
	moov := b[moovPayloadOff:moovHdr.end()]

	off := 0
	for off < len(moov) {
		h, payloadOff, err := readBoxHeader(moov, off)
		if err != nil {
			return nil, err
		}
		if h.boxType == boxTypeTrak {
			trak := moov[payloadOff:h.end()]
			if isAudioTrak(trak) {
				return trak, nil
			}
		}
		off = h.end()
	}
	return nil, nazaerrors.Wrap(base.ErrIsobmffNoMhm1)
}

func isAudioTrak(trak []byte) bool {
	mdia, err := findChild(trak, boxTypeMdia)
	if err != nil {
		return false
	}
	minf, err := findChild(mdia, boxTypeMinf)
	if err != nil {
		return false
	}
	stbl, err := findChild(minf, boxTypeStbl)
	if err != nil {
		return false
	}
	stsd, err := findChild(stbl, boxTypeStsd)
	if err != nil {
		return false
	}
	_, _, err = parseStsdForMhm1WithErr(stsd)
	return err == nil
}

func parseStsdForMhm1(stsd []byte) (rate uint32, channels uint16, err error) {
	return parseStsdForMhm1WithErr(stsd)
}

// parseStsdForMhm1WithErr解析stsd full box + entry_count，然后在第一个sample entry
// （mp4a或mhm1，版本不同的封装工具写法不同，这里两种都接受）里取声道数和采样率
func parseStsdForMhm1WithErr(stsd []byte) (uint32, uint16, error) {
	if len(stsd) < 8 {
		return 0, 0, nazaerrors.Wrap(base.ErrIsobmffShortBuffer)
	}
	// version(1)+flags(3)+entry_count(4)
	entryOff := 8
	h, payloadOff, err := readBoxHeader(stsd, entryOff)
	if err != nil {
		return 0, 0, nazaerrors.Wrap(err)
	}
	if h.boxType != boxTypeMp4a && h.boxType != boxTypeMhm1 {
		return 0, 0, nazaerrors.Wrap(base.ErrIsobmffNoMhm1)
	}
	entry := stsd[payloadOff:h.end()]
	// AudioSampleEntry: reserved(6)+data_reference_index(2)+reserved(8)
	// +channel_count(2)+sample_size(2)+pre_defined(2)+reserved(2)+sample_rate(4, 16.16)
	const audioSampleEntryFixedLen = 6 + 2 + 8 + 2 + 2 + 2 + 2 + 4
	if len(entry) < audioSampleEntryFixedLen {
		return 0, 0, nazaerrors.Wrap(base.ErrIsobmffShortBuffer)
	}
	channels := bele.BeUint16(entry[16:])
	rateFixed := bele.BeUint32(entry[24:])
	return rateFixed >> 16, channels, nil
}

// parseStsz解析full box + sample_size(跳过，总是0表示变长) + sample_count + entry_size[]
func parseStsz(stsz []byte) ([]uint32, error) {
	if len(stsz) < 12 {
		return nil, nazaerrors.Wrap(base.ErrIsobmffShortBuffer)
	}
	count := bele.BeUint32(stsz[8:])
	sizes := make([]uint32, 0, count)
	off := 12
	for i := uint32(0); i < count; i++ {
		if off+4 > len(stsz) {
			return nil, nazaerrors.Wrap(base.ErrIsobmffShortBuffer)
		}
		sizes = append(sizes, bele.BeUint32(stsz[off:]))
		off += 4
	}
	return sizes, nil
}

// parseStco解析full box + entry_count + chunk_offset[]，只支持32位偏移（不支持co64）
func parseStco(stco []byte) ([]uint32, error) {
	if len(stco) < 8 {
		return nil, nazaerrors.Wrap(base.ErrIsobmffShortBuffer)
	}
	count := bele.BeUint32(stco[4:])
	offsets := make([]uint32, 0, count)
	off := 8
	for i := uint32(0); i < count; i++ {
		if off+4 > len(stco) {
			return nil, nazaerrors.Wrap(base.ErrIsobmffShortBuffer)
		}
		offsets = append(offsets, bele.BeUint32(stco[off:]))
		off += 4
	}
	return offsets, nil
}

// parseStts展开压缩表为每个sample一个delta，expectCount是从stsz得到的sample总数，
// 用来做一次基本的一致性校验
func parseStts(stts []byte, expectCount int) ([]uint32, error) {
	if len(stts) < 8 {
		return nil, nazaerrors.Wrap(base.ErrIsobmffShortBuffer)
	}
	entryCount := bele.BeUint32(stts[4:])
	deltas := make([]uint32, 0, expectCount)
	off := 8
	for i := uint32(0); i < entryCount; i++ {
		if off+8 > len(stts) {
			return nil, nazaerrors.Wrap(base.ErrIsobmffShortBuffer)
		}
		sampleCount := bele.BeUint32(stts[off:])
		sampleDelta := bele.BeUint32(stts[off+4:])
		for j := uint32(0); j < sampleCount; j++ {
			deltas = append(deltas, sampleDelta)
		}
		off += 8
	}
	if len(deltas) != expectCount {
		return nil, nazaerrors.Wrap(base.ErrIsobmff)
	}
	return deltas, nil
}
