// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/lal
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package iec61937

import (
	"github.com/q191201771/mpeghiec/pkg/base"
	"github.com/q191201771/naza/pkg/bele"
	"github.com/q191201771/naza/pkg/nazaerrors"
)

// storedFrame 是encoder frame table里的一条记录：一枚已接收、尚未完全写出的AU
type storedFrame struct {
	length   uint32
	duration uint32
}

// EncodeResult 是Encoder.Process单次调用的返回值
type EncodeResult struct {
	OutLen        int
	InputConsumed bool
}

// Encoder 把(AU, duration)序列攒成IEC 61937-13 burst逐个写出。
//
// 值类型，caller独占持有；Close可重复调用、对零值也安全。
type Encoder struct {
	audioMode        uint8
	rateCode         uint8
	audioFrameLength uint32
	subHeaderSize    uint32
	burstPeriod      uint32

	work      []byte // 等价于原实现的workBuffer，一段连续区间：[readOff:writeOff)是尚未写出的AU字节
	readOff   int
	writeOff  int
	frames    []storedFrame
	auPending bool

	overallDuration uint32
	pcmOffset       int32
}

// NewEncoder 按rate_factor（4或16）初始化一个编码器，对应spec.md §4.2的open()
func NewEncoder(rateFactor uint8) (*Encoder, error) {
	rateCode, audioMode, ok := rateFactorToParams(rateFactor)
	if !ok {
		return nil, nazaerrors.Wrap(base.ErrRateFactor)
	}
	e := &Encoder{
		audioMode:        audioMode,
		rateCode:         rateCode,
		audioFrameLength: Iec61937AudioFrameLength,
		subHeaderSize:    payloadHeaderSize(audioMode),
		work:             make([]byte, EncoderWorkBufferSizeBytes),
	}
	e.burstPeriod = e.audioFrameLength * Iec60958FrameSizeBytes << (rateCode + 1)
	return e, nil
}

// Close 释放内部work buffer；对零值Encoder或重复调用都是no-op
func (e *Encoder) Close() {
	if e == nil {
		return
	}
	e.work = nil
	e.frames = nil
}

// Process 接受一枚AU(auBytes, duration)，在攒够一个burst时写出到out。
//
// InputConsumed==false表示auBytes没有被接受，调用方必须在消费掉本次产出的burst后
// 用同一个auBytes再次调用Process。对应spec.md §4.2的accumulate/plan/emit算法。
func (e *Encoder) Process(auBytes []byte, duration uint32, out []byte) (EncodeResult, error) {
	if e == nil || e.work == nil {
		return EncodeResult{}, nazaerrors.Wrap(base.ErrNullInput)
	}
	if duration > MaxMpeghFrameDuration {
		return EncodeResult{}, nazaerrors.Wrap(base.ErrDurationError)
	}
	if uint32(len(out)) < e.burstPeriod {
		return EncodeResult{}, nazaerrors.Wrap(base.ErrBufferTooSmall)
	}

	var res EncodeResult

	inputBytesLen := len(auBytes)
	if e.overallDuration >= e.audioFrameLength {
		// 已经攒够一个burst的量了，本次先不接受新输入，优先把burst排空
		inputBytesLen = 0
	}

	if inputBytesLen != 0 {
		if len(e.frames) >= MaxNumMpeghFrames {
			return EncodeResult{}, nazaerrors.Wrap(base.ErrBufferFull)
		}
		if e.writeOff+inputBytesLen > len(e.work) {
			return EncodeResult{}, nazaerrors.Wrap(base.ErrBufferFull)
		}
		copy(e.work[e.writeOff:], auBytes)
		e.writeOff += inputBytesLen
		e.frames = append(e.frames, storedFrame{length: uint32(inputBytesLen), duration: duration})
		e.overallDuration += duration
		res.InputConsumed = true

		if e.overallDuration < e.audioFrameLength {
			return res, nil
		}
	}

	numBuffersToWrite := e.numBuffersToWrite()
	// frame table为空：drain调用(auBytes为空)直接返回；若是输入因已攒够一个burst的量而被拒绝，
	// 则继续写出一个不含AU的burst，消耗掉这段audio_frame_length
	if numBuffersToWrite == 0 && (res.InputConsumed || len(auBytes) == 0) {
		return res, nil
	}

	n := e.emitBurst(out, numBuffersToWrite)
	res.OutLen = n
	e.overallDuration -= e.audioFrameLength
	e.pcmOffset -= int32(e.audioFrameLength)
	return res, nil
}

// numBuffersToWrite 实现spec.md §4.2的plan步骤：选出能进入下一个burst的frame table前缀长度k。
//
// 注意duration的判断顺序：是"加入第i个frame之前，已经累计的duration是否<=overallDuration"，
// 而不是加入之后——这个非直观的顺序是原始实现里的真实行为，必须原样保留。
func (e *Encoder) numBuffersToWrite() int {
	availableBytes := e.burstPeriod - IecHeaderSizeBytes - IecBurstSpacingSizeBytes
	if !e.auPending {
		availableBytes -= e.subHeaderSize
	}

	var i int
	var duration uint32
	var writeLength uint32
	for writeLength < availableBytes && duration <= e.overallDuration && i != len(e.frames) {
		writeLength += e.frames[i].length + e.subHeaderSize
		duration += e.frames[i].duration
		i++
	}
	return i
}

// emitBurst 把frame table里的前numBuffersToWrite个frame写成一个IEC burst，返回写出的字节数
func (e *Encoder) emitBurst(out []byte, numBuffersToWrite int) int {
	availableBytes := e.burstPeriod - IecHeaderSizeBytes - IecBurstSpacingSizeBytes
	if !e.auPending {
		availableBytes -= e.subHeaderSize
	}

	var payloadDataLength uint32
	for i := 0; i < numBuffersToWrite; i++ {
		payloadDataLength += e.frames[i].length
		availableBytes -= e.subHeaderSize
	}

	n := writeIecFrame(e, out, numBuffersToWrite, payloadDataLength, availableBytes)

	buffersToDelete := 0
	for i := 0; i < numBuffersToWrite; i++ {
		if i == numBuffersToWrite-1 && payloadDataLength > availableBytes {
			e.auPending = true
			e.frames[i].length = payloadDataLength - availableBytes
			e.frames[i].duration = 0
		} else {
			e.auPending = false
			buffersToDelete++
		}
	}

	if buffersToDelete > 0 {
		e.frames = append(e.frames[:0], e.frames[buffersToDelete:]...)
	}

	payloadDataToDelete := payloadDataLength
	if availableBytes < payloadDataToDelete {
		payloadDataToDelete = availableBytes
	}
	currentWorkBufferBytes := uint32(e.writeOff - e.readOff)
	payloadDataToKeep := currentWorkBufferBytes - payloadDataToDelete
	if payloadDataToKeep > 0 {
		copy(e.work, e.work[e.readOff+int(payloadDataToDelete):e.writeOff])
	}
	e.readOff = 0
	e.writeOff = int(payloadDataToKeep)

	return n
}

// writeIecFrame 按spec.md §4.2"Burst emission"写出一条完整的burst：preamble、Pc/Pd、
// sub-header列表(含terminator)、payload数据、padding、spacing。返回burst_repetition_period。
func writeIecFrame(e *Encoder, out []byte, numBuffersToWrite int, payloadDataLength, availableBytes uint32) int {
	out[0] = SyncPreamble0
	out[1] = SyncPreamble1
	out[2] = SyncPreamble2
	out[3] = SyncPreamble3
	out[4] = e.rateCode << 3
	out[5] = (e.audioMode << 5) | MpeghDataType

	numSubHeaders := numBuffersToWrite
	if e.auPending {
		numSubHeaders--
	}

	payloadDataToWrite := payloadDataLength
	if availableBytes < payloadDataToWrite {
		payloadDataToWrite = availableBytes
	}

	dataBurstLengthBytes := payloadDataToWrite + uint32(numSubHeaders+1)*e.subHeaderSize
	var dataBurstLength uint32
	if e.audioMode == 1 {
		dataBurstLength = (dataBurstLengthBytes + 7) / 8
	} else {
		dataBurstLength = dataBurstLengthBytes
	}
	bele.BePutUint16(out[6:8], uint16(dataBurstLength))

	dataOffset := IecHeaderSizeBytes + uint32(numSubHeaders+1)*e.subHeaderSize
	startIdx := 0
	if e.auPending {
		dataOffset += e.frames[0].length
		startIdx = 1
	}

	cursor := IecHeaderSizeBytes
	for i := startIdx; i < numBuffersToWrite; i++ {
		writeSubHeader(e.audioMode, out[cursor:cursor+int(e.subHeaderSize)], dataOffset, e.frames[i].length, e.pcmOffset)
		cursor += int(e.subHeaderSize)
		e.pcmOffset += int32(e.frames[i].duration)
		dataOffset += e.frames[i].length
	}

	// terminator sub-header：全零
	for i := 0; i < int(e.subHeaderSize); i++ {
		out[cursor+i] = 0
	}
	cursor += int(e.subHeaderSize)

	cursor += copy(out[cursor:], e.work[e.readOff:e.readOff+int(payloadDataToWrite)])

	for cursor < IecHeaderSizeBytes+int(availableBytes)+int(uint32(numSubHeaders+1)*e.subHeaderSize) {
		out[cursor] = 0
		cursor++
	}
	for i := 0; i < IecBurstSpacingSizeBytes; i++ {
		out[cursor+i] = 0
	}
	cursor += IecBurstSpacingSizeBytes

	return cursor
}
