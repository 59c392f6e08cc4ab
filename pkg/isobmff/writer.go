// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/lal
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package isobmff

import "github.com/q191201771/naza/pkg/bele"

// WriteParams是WriteMhm1File需要的最少静态信息，其余字段（duration、sample table）
// 都从samples里推导
type WriteParams struct {
	SampleRate   uint32
	ChannelCount uint16
	TimeScale    uint32 // mdhd/mvhd的time scale，通常就是SampleRate
}

// Sample是一个待写入mdat的AU（由Decoder从IEC 61937 burst中还原出来的一个AU）
type Sample struct {
	Data     []byte
	Duration uint32 // 本sample的时长，timescale单位
}

// WriteMhm1File把samples写成一个单音轨mhm1 MP4文件：ftyp+moov(含完整sample table)+mdat。
// 只服务app/mpeghiecdec把解出来的AU流重新封装成可播放文件这一个用途，不追求通用性。
func WriteMhm1File(params WriteParams, samples []Sample) []byte {
	w := newBoxWriter()
	writeFtyp(w)
	w.putBytes(buildMoov(params, samples))
	writeMdat(w, samples)
	return w.bytes()
}

func writeFtyp(w *boxWriter) {
	off := w.beginBox(boxTypeFtyp)
	w.putUint32(brandMp42) // major_brand
	w.putUint32(0)         // minor_version
	w.putUint32(brandIsom) // compatible_brands[0]
	w.putUint32(brandMp42) // compatible_brands[1]
	w.endBox(off)
}

func buildMoov(params WriteParams, samples []Sample) []byte {
	w := newBoxWriter()
	moovOff := w.beginBox(boxTypeMoov)

	writeMvhd(w, params, samples)
	writeTrak(w, params, samples)

	w.endBox(moovOff)
	return w.bytes()
}

func totalDuration(samples []Sample) uint32 {
	var d uint32
	for _, s := range samples {
		d += s.Duration
	}
	return d
}

func writeMvhd(w *boxWriter, params WriteParams, samples []Sample) {
	off := w.beginFullBox(boxTypeMvhd)
	w.putUint32(0) // creation_time
	w.putUint32(0) // modification_time
	w.putUint32(params.TimeScale)
	w.putUint32(totalDuration(samples))
	w.putUint32(0x00010000) // rate 1.0
	w.putUint16(0x0100)     // volume 1.0
	w.putUint16(0)          // reserved1
	w.putUint32(0)          // reserved2[0]
	w.putUint32(0)          // reserved2[1]
	for _, v := range [9]uint32{0x00010000, 0, 0, 0, 0x00010000, 0, 0, 0, 0x40000000} {
		w.putUint32(v)
	}
	for i := 0; i < 6; i++ {
		w.putUint32(0) // pre_defined
	}
	w.putUint32(2) // next_track_ID
	w.endBox(off)
}

func writeTrak(w *boxWriter, params WriteParams, samples []Sample) {
	off := w.beginBox(boxTypeTrak)

	writeTkhd(w, params, samples)
	writeMdia(w, params, samples)

	w.endBox(off)
}

func writeTkhd(w *boxWriter, params WriteParams, samples []Sample) {
	off := w.beginFullBox(boxTypeTkhd)
	w.buf[off+8+3] = 0x07 // flags: track_enabled|track_in_movie|track_in_preview
	w.putUint32(0)        // creation_time
	w.putUint32(0)        // modification_time
	w.putUint32(1)        // track_ID
	w.putUint32(0)        // reserved1
	w.putUint32(totalDuration(samples))
	w.putUint32(0) // reserved2[0]
	w.putUint32(0) // reserved2[1]
	w.putInt16(0)  // layer
	w.putInt16(0)  // alternate_group
	w.putUint16(0x0100) // volume, audio track
	w.putUint16(0)       // reserved3
	for _, v := range [9]uint32{0x00010000, 0, 0, 0, 0x00010000, 0, 0, 0, 0x40000000} {
		w.putUint32(v)
	}
	w.putUint32(0) // width
	w.putUint32(0) // height
	w.endBox(off)
}

func writeMdia(w *boxWriter, params WriteParams, samples []Sample) {
	off := w.beginBox(boxTypeMdia)

	writeMdhd(w, params, samples)
	writeHdlr(w)
	writeMinf(w, params, samples)

	w.endBox(off)
}

func writeMdhd(w *boxWriter, params WriteParams, samples []Sample) {
	off := w.beginFullBox(boxTypeMdhd)
	w.putUint32(0) // creation_time
	w.putUint32(0) // modification_time
	w.putUint32(params.TimeScale)
	w.putUint32(totalDuration(samples))
	w.putUint16(0x55c4) // language "und"
	w.putUint16(0)      // pre_defined
	w.endBox(off)
}

func writeHdlr(w *boxWriter) {
	off := w.beginFullBox(boxTypeHdlr)
	w.putUint32(0)          // pre_defined
	w.putUint32(handlerSoun) // handler_type
	w.putUint32(0)          // reserved[0]
	w.putUint32(0)          // reserved[1]
	w.putUint32(0)          // reserved[2]
	w.putBytes([]byte("SoundHandler"))
	w.putBytes([]byte{0})
	w.endBox(off)
}

func writeMinf(w *boxWriter, params WriteParams, samples []Sample) {
	off := w.beginBox(boxTypeMinf)

	writeSmhd(w)
	writeDinf(w)
	writeStbl(w, params, samples)

	w.endBox(off)
}

func writeSmhd(w *boxWriter) {
	off := w.beginFullBox(boxTypeSmhd)
	w.putInt16(0)  // balance
	w.putUint16(0) // reserved
	w.endBox(off)
}

func writeDinf(w *boxWriter) {
	off := w.beginBox(boxTypeDinf)
	drefOff := w.beginFullBox(boxTypeDref)
	w.putUint32(1) // entry_count
	urlOff := w.beginFullBox(boxTypeURL)
	w.buf[urlOff+8+3] = 0x01 // flags: self-contained
	w.endBox(urlOff)
	w.endBox(drefOff)
	w.endBox(off)
}

func writeStbl(w *boxWriter, params WriteParams, samples []Sample) {
	off := w.beginBox(boxTypeStbl)

	writeStsd(w, params)
	writeStts(w, samples)
	writeStsc(w, len(samples))
	writeStsz(w, samples)
	writeStco(w, samples)

	w.endBox(off)
}

func writeStsd(w *boxWriter, params WriteParams) {
	off := w.beginFullBox(boxTypeStsd)
	w.putUint32(1) // entry_count

	entryOff := w.beginBox(boxTypeMhm1)
	w.putZeros(6)           // reserved
	w.putUint16(1)          // data_reference_index
	w.putUint32(0)          // reserved1[0]
	w.putUint32(0)          // reserved1[1]
	w.putUint16(params.ChannelCount)
	w.putUint16(16) // sample_size
	w.putUint16(0)  // pre_defined
	w.putUint16(0)  // reserved2
	w.putUint32(params.SampleRate << 16)
	w.endBox(entryOff)

	w.endBox(off)
}

func writeStts(w *boxWriter, samples []Sample) {
	off := w.beginFullBox(boxTypeStts)
	entryCountOff := len(w.buf)
	w.putUint32(0) // entry_count placeholder

	entryCount := uint32(0)
	i := 0
	for i < len(samples) {
		j := i + 1
		for j < len(samples) && samples[j].Duration == samples[i].Duration {
			j++
		}
		w.putUint32(uint32(j - i))
		w.putUint32(samples[i].Duration)
		entryCount++
		i = j
	}
	bele.BePutUint32(w.buf[entryCountOff:], entryCount)
	w.endBox(off)
}

func writeStsc(w *boxWriter, numSamples int) {
	off := w.beginFullBox(boxTypeStsc)
	if numSamples == 0 {
		w.putUint32(0)
		w.endBox(off)
		return
	}
	w.putUint32(1) // entry_count
	w.putUint32(1) // first_chunk
	w.putUint32(1) // samples_per_chunk: 一个chunk一个sample
	w.putUint32(1) // sample_description_index
	w.endBox(off)
}

func writeStsz(w *boxWriter, samples []Sample) {
	off := w.beginFullBox(boxTypeStsz)
	w.putUint32(0) // sample_size: 0 表示变长，走entry表
	w.putUint32(uint32(len(samples)))
	for _, s := range samples {
		w.putUint32(uint32(len(s.Data)))
	}
	w.endBox(off)
}

// writeStco先写占位entry表，真正的chunk offset依赖mdat payload起始位置，
// 在WriteMhm1File最后统一回填
func writeStco(w *boxWriter, samples []Sample) {
	off := w.beginFullBox(boxTypeStco)
	w.putUint32(uint32(len(samples)))
	for range samples {
		w.putUint32(0)
	}
	w.endBox(off)
}

func writeMdat(w *boxWriter, samples []Sample) {
	off := w.beginBox(boxTypeMdat)
	chunkOffsets := make([]uint32, len(samples))
	for i, s := range samples {
		chunkOffsets[i] = uint32(len(w.buf))
		w.putBytes(s.Data)
	}
	w.endBox(off)

	patchStcoOffsets(w.buf, chunkOffsets)
}

// patchStcoOffsets在整份文件已经写完后，找到stco box并回填真实的chunk offset，
// 因为写stco时mdat payload的绝对位置还不知道
func patchStcoOffsets(buf []byte, offsets []uint32) {
	stcoOff := findTopLevelBoxOffset(buf, boxTypeMoov)
	if stcoOff < 0 {
		return
	}
	moovHdr, _, err := readBoxHeader(buf, stcoOff)
	if err != nil {
		return
	}
	stco := locateNested(buf, stcoOff+8, moovHdr.end(), boxTypeStco)
	if stco < 0 {
		return
	}
	// stco payload: fullbox header(4) + entry_count(4) + entries...
	entryOff := stco + 8 + 4 + 4
	for _, o := range offsets {
		if entryOff+4 > len(buf) {
			return
		}
		bele.BePutUint32(buf[entryOff:], o)
		entryOff += 4
	}
}

func findTopLevelBoxOffset(buf []byte, boxType uint32) int {
	off := 0
	for off < len(buf) {
		h, _, err := readBoxHeader(buf, off)
		if err != nil {
			return -1
		}
		if h.boxType == boxType {
			return off
		}
		off = h.end()
	}
	return -1
}

// locateNested在[start,end)范围内递归查找第一个type==boxType的box，返回其在buf中的绝对offset
func locateNested(buf []byte, start, end int, boxType uint32) int {
	off := start
	for off < end {
		h, payloadOff, err := readBoxHeader(buf, off)
		if err != nil {
			return -1
		}
		if h.boxType == boxType {
			return off
		}
		if found := locateNested(buf, payloadOff, h.end(), boxType); found >= 0 {
			return found
		}
		off = h.end()
	}
	return -1
}
