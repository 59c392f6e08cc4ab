// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/lal
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package iec61937

import (
	"github.com/q191201771/naza/pkg/bele"
	"github.com/q191201771/naza/pkg/nazabits"
)

// burstHeader 是对burst起始处Pc/Pd两个16bit字段解析后的结果
//
// <IEC 61937 subclause 6.1> Pc字段布局（字节4、字节5）：
//
//	byte4: reserved(3) rate_factor(2) frame_length_code(3)
//	byte5: reserved(1) audio_mode(2)  data_type(5)
//	Pd: payload_length，16bit大端
type burstHeader struct {
	dataType         uint8
	audioMode        uint8
	rateFactor       uint8
	frameLengthCode  uint8
	audioFrameLength uint32
	payloadLength    uint32 // 已经按audio_mode换算为字节
	burstPeriod      uint32 // burst repetition period，字节
	subHeaderSize    uint32
}

// parseBurstHeader 解析work buffer中[off:off+IecHeaderSizeBytes]处的Pc/Pd，
// 按spec.md §4.1 Phase A step 2校验data_type/audio_mode/frame_length_code。
//
// 对应原始实现中的parseIecFrameData：本函数只做字段提取与合法性判断，不修改任何状态。
func parseBurstHeader(b []byte) (burstHeader, bool) {
	var h burstHeader

	br := nazabits.NewBitReader(b[4:6])
	_, _ = br.ReadBits8(3) // reserved
	rateFactor, _ := br.ReadBits8(2)
	frameLengthCode, _ := br.ReadBits8(3)
	_, _ = br.ReadBits8(1) // reserved
	audioMode, _ := br.ReadBits8(2)
	dataType, _ := br.ReadBits8(5)

	if dataType != MpeghDataType {
		return h, false
	}
	if audioMode > 1 {
		return h, false
	}
	audioFrameLength, ok := audioFrameLengthByCode[frameLengthCode]
	if !ok {
		return h, false
	}

	pd := bele.BeUint16(b[6:8])
	payload := uint32(pd)

	burstPeriod := audioFrameLength * Iec60958FrameSizeBytes
	if audioMode == 1 {
		burstPeriod <<= rateFactor + 1
		payload *= 8
	}

	if payload > burstPeriod-IecHeaderSizeBytes-IecBurstSpacingSizeBytes {
		return h, false
	}

	h.dataType = dataType
	h.audioMode = audioMode
	h.rateFactor = rateFactor
	h.frameLengthCode = frameLengthCode
	h.audioFrameLength = audioFrameLength
	h.payloadLength = payload
	h.burstPeriod = burstPeriod
	h.subHeaderSize = payloadHeaderSize(audioMode)
	return h, true
}

// subHeader 是一条payload sub-header解析后的结果
type subHeader struct {
	dataOffset uint32
	dataLength uint32
	pcmOffset  int32
}

// parseSubHeader 按audio_mode解析长度为h.subHeaderSize的一条sub-header。
//
// pcm_offset按spec.md §3固定是2字节，按二进制补码解释为有符号数。
func parseSubHeader(audioMode uint8, b []byte) subHeader {
	var s subHeader
	if audioMode == 0 {
		s.dataOffset = uint32(bele.BeUint16(b[0:2]))
		s.dataLength = uint32(bele.BeUint16(b[2:4]))
		s.pcmOffset = int32(int16(bele.BeUint16(b[4:6])))
	} else {
		s.dataOffset = bele.BeUint24(b[0:3])
		s.dataLength = bele.BeUint24(b[3:6])
		s.pcmOffset = int32(int16(bele.BeUint16(b[6:8])))
	}
	return s
}

// writeSubHeader 把一条sub-header写入b，b长度必须>=subHeaderSize(audioMode)
func writeSubHeader(audioMode uint8, b []byte, dataOffset, dataLength uint32, pcmOffset int32) {
	if audioMode == 0 {
		bele.BePutUint16(b[0:2], uint16(dataOffset))
		bele.BePutUint16(b[2:4], uint16(dataLength))
		bele.BePutUint16(b[4:6], uint16(int16(pcmOffset)))
	} else {
		bele.BePutUint24(b[0:3], dataOffset)
		bele.BePutUint24(b[3:6], dataLength)
		bele.BePutUint16(b[6:8], uint16(int16(pcmOffset)))
	}
}
