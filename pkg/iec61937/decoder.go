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
	"github.com/q191201771/naza/pkg/nazabytes"
	"github.com/q191201771/naza/pkg/nazaerrors"
	"github.com/q191201771/naza/pkg/nazalog"
)

// syncKind 对应spec.md §9要求的"tagged state variant"重构：把C实现里
// syncFound/syncCandidateFound两个bool标志压缩成一个带状态的枚举。
type syncKind uint8

const (
	syncSearching     syncKind = iota // 尚未找到候选preamble，Phase A
	syncCandidateHeld                 // 候选preamble已找到，burst/payload header还未通过校验，Phase B
	syncHeld                          // burst已完整校验通过，正在逐个吐出sub-header，Phase C/D/E
)

// pending 对应一枚跨burst拆分、尚未拼接完整的AU
type pending struct {
	buf       []byte
	collected uint32
	missing   uint32
	pcmOffset int32
}

func (p *pending) reset() {
	p.buf = p.buf[:0]
	p.collected = 0
	p.missing = 0
	p.pcmOffset = 0
}

// Result 是Decoder.Process单次调用的返回值，对应spec.md §4.1的Ok{...}
type Result struct {
	OutLen            int
	PcmOffset         int32
	IecFrameLength    uint32
	IecFrameProcessed bool
}

// Decoder 是IEC 61937-13流解码器：喂入任意切片的原始字节，逐个吐出其中的MPEG-H AU。
//
// 值类型，caller独占持有；Close可重复调用、对零值也安全，对应spec.md §9把opaque handle
// 替换为"value-typed object with deterministic teardown"的要求。
type Decoder struct {
	buf *nazabytes.Buffer // 累积尚未消费的原始字节，对应原实现的workBuffer

	state          syncKind
	candidateIndex int // state != syncSearching时，候选preamble在buf中的偏移
	header         burstHeader
	subHeaders     []subHeader // state==syncHeld时，Phase B一次性解析出的完整sub-header列表（不含terminator）
	subHeaderIndex int

	pend pending
}

// NewDecoder 返回一个已就绪的解码器，对应spec.md §4.1的open()
func NewDecoder() *Decoder {
	d := &Decoder{
		buf: nazabytes.NewBuffer(DecoderWorkBufferSizeBytes),
	}
	d.pend.buf = make([]byte, 0, MaxMpeghFrameSize)
	return d
}

// Close 释放内部buffer；对零值Decoder或重复调用都是no-op
func (d *Decoder) Close() {
	if d == nil {
		return
	}
	d.buf = nil
	d.pend.buf = nil
	d.subHeaders = nil
}

// Feed 把b追加到内部work buffer。buf已有数据加上len(b)超过work buffer容量时返回ErrBufferFull
func (d *Decoder) Feed(b []byte) error {
	if d == nil || d.buf == nil || b == nil {
		return nazaerrors.Wrap(base.ErrNullInput)
	}
	if d.buf.Len()+len(b) > DecoderWorkBufferSizeBytes {
		return nazaerrors.Wrap(base.ErrBufferFull)
	}
	d.buf.Write(b)
	return nil
}

// Process 尝试从内部work buffer中解出下一个AU，写入out。
//
// 逐状态对应spec.md §4.1 Phase A~E；每次调用至多吐出一个AU（out_len可能为0，表示
// burst被完整消费但本次没有新AU可交付，调用方应当再次调用Process）。
func (d *Decoder) Process(out []byte) (Result, error) {
	if d == nil || d.buf == nil || out == nil {
		return Result{}, nazaerrors.Wrap(base.ErrNullInput)
	}

	for {
		switch d.state {
		case syncSearching:
			if res, err, done := d.searchSync(); done {
				return res, err
			}
		case syncCandidateHeld:
			if res, err, done := d.validateBurst(); done {
				return res, err
			}
		case syncHeld:
			if d.pend.missing > 0 {
				return d.resumePending(out)
			}
			return d.emitNext(out)
		}
	}
}

// searchSync 实现Phase A：在work buffer中扫描4字节preamble，尝试解析Pc/Pd。
//
// 返回done=true时res/err就是Process该次调用的返回值；done=false表示已经找到候选，
// 进入下一阶段（调用方的for循环会按新的d.state继续处理）。
func (d *Decoder) searchSync() (Result, error, bool) {
	b := d.buf.Bytes()
	n := len(b)

	// 按spec.md §9指出的quirk修正：循环边界用 i+IEC_HEADER_SIZE_BYTES<=n，而不是原始实现
	// 里容易误读Pc/Pd越界的 i<n-IEC_HEADER_SIZE_BYTES。
	for i := 0; i+IecHeaderSizeBytes <= n; i++ {
		if b[i] != SyncPreamble0 || b[i+1] != SyncPreamble1 || b[i+2] != SyncPreamble2 || b[i+3] != SyncPreamble3 {
			continue
		}
		h, ok := parseBurstHeader(b[i:])
		if !ok {
			nazalog.Debugf("iec61937: reject sync candidate at %d, bad burst header", i)
			continue
		}
		d.buf.Skip(i)
		d.state = syncCandidateHeld
		d.candidateIndex = 0
		d.header = h
		return Result{}, nil, false
	}

	// 没找到候选：保留末尾IEC_HEADER_SIZE_BYTES-1字节，避免preamble被跨调用切断
	if n > IecHeaderSizeBytes-1 {
		d.buf.Skip(n - (IecHeaderSizeBytes - 1))
	}
	return Result{}, nazaerrors.Wrap(base.ErrFeedMoreData), true
}

// validateBurst 实现Phase B：burst spacing校验 + payload sub-header列表校验。
func (d *Decoder) validateBurst() (Result, error, bool) {
	b := d.buf.Bytes()
	if uint32(len(b)) < d.header.burstPeriod {
		return Result{}, nazaerrors.Wrap(base.ErrFeedMoreData), true
	}

	spacingStart := d.header.burstPeriod - IecBurstSpacingSizeBytes
	for i := spacingStart; i < d.header.burstPeriod; i++ {
		if b[i] != 0 {
			nazalog.Debugf("iec61937: bad burst spacing, resync")
			d.buf.Skip(IecHeaderSizeBytes)
			d.resetSyncOnly()
			return Result{}, nil, false
		}
	}

	subHeaders, ok := d.checkPayloadHeaders(b)
	if !ok {
		nazalog.Debugf("iec61937: bad payload sub-header list, full reset and resync")
		d.buf.Skip(IecHeaderSizeBytes)
		d.resetSyncOnly()
		d.pend.reset()
		return Result{}, nil, false
	}

	d.subHeaders = subHeaders
	d.subHeaderIndex = 0
	d.state = syncHeld
	return Result{}, nil, false
}

// checkPayloadHeaders 走一遍sub-header列表直到terminator(data_length==0)，
// 校验data_offset严格递增且不超过payload_length，以及首个sub-header的最小位置。
func (d *Decoder) checkPayloadHeaders(b []byte) ([]subHeader, bool) {
	var out []subHeader
	off := IecHeaderSizeBytes
	var prevOffset uint32
	for {
		if off+int(d.header.subHeaderSize) > len(b) {
			return nil, false
		}
		sh := parseSubHeader(d.header.audioMode, b[off:off+int(d.header.subHeaderSize)])
		if sh.dataLength == 0 {
			break
		}
		if len(out) > 0 && sh.dataOffset <= prevOffset {
			return nil, false
		}
		if sh.dataOffset > d.header.payloadLength {
			return nil, false
		}
		out = append(out, sh)
		prevOffset = sh.dataOffset
		off += int(d.header.subHeaderSize)
	}

	if len(out) > 0 {
		headersLength := uint32(len(out)+1) * d.header.subHeaderSize
		minOffset := headersLength + IecHeaderSizeBytes + d.pend.missing
		if out[0].dataOffset < minOffset {
			return nil, false
		}
	}
	return out, true
}

// resetSyncOnly 重置同步/解析状态，但保留pending——对应Phase B的burst-spacing分支
func (d *Decoder) resetSyncOnly() {
	d.state = syncSearching
	d.candidateIndex = 0
	d.header = burstHeader{}
	d.subHeaders = nil
	d.subHeaderIndex = 0
}

// resumePending 实现Phase C：处理跨burst拆分AU的续接
func (d *Decoder) resumePending(out []byte) (Result, error) {
	b := d.buf.Bytes()

	if len(d.subHeaders) == 0 {
		// case α：本burst没有宣告任何sub-header，整段payload都是续接数据
		payloadAvailable := d.header.payloadLength - d.header.subHeaderSize
		dataIndex := IecHeaderSizeBytes + int(d.header.subHeaderSize)

		if d.pend.missing > payloadAvailable {
			// 这一整个burst都被续接数据占满，AU还要再跨下一个burst才能拼完；
			// 本burst的sub-header数量为0，没有更多东西可消费了，照常完成burst推进。
			d.pend.buf = append(d.pend.buf, b[dataIndex:dataIndex+int(payloadAvailable)]...)
			d.pend.collected += payloadAvailable
			d.pend.missing -= payloadAvailable
			d.pend.pcmOffset -= int32(d.header.audioFrameLength)
			return d.finishBurst(Result{OutLen: 0})
		}
		if d.pend.missing < payloadAvailable {
			d.fullReset()
			return Result{}, nazaerrors.Wrap(base.ErrPendingDataError)
		}
		// 恰好相等：完成这个AU
		d.pend.buf = append(d.pend.buf, b[dataIndex:dataIndex+int(payloadAvailable)]...)
		n := copy(out, d.pend.buf)
		res := Result{
			OutLen:         n,
			PcmOffset:      d.pend.pcmOffset,
			IecFrameLength: d.header.audioFrameLength,
		}
		d.pend.reset()
		return d.finishBurst(res)
	}

	// case β：本burst至少有一个sub-header，第一个sub-header的data_offset标出续接数据结束位置
	first := d.subHeaders[0]
	if first.dataOffset < d.pend.missing {
		d.fullReset()
		return Result{}, nazaerrors.Wrap(base.ErrPendingDataError)
	}
	dataIndex := int(first.dataOffset - d.pend.missing)
	d.pend.buf = append(d.pend.buf, b[dataIndex:dataIndex+int(d.pend.missing)]...)
	n := copy(out, d.pend.buf)
	res := Result{
		OutLen:         n,
		PcmOffset:      d.pend.pcmOffset,
		IecFrameLength: d.header.audioFrameLength,
	}
	d.pend.reset()
	// 注意：sub-header游标不前进，也不在这里完成burst——续接数据没有自己的sub-header，
	// 第一条sub-header描述的是续接数据之后的下一个完整AU（它的data_offset在这里只用来
	// 定位续接数据的结尾），它和后面的AU都要在后续Process调用里由emitNext继续吐出；
	// burst的完成时机完全由emitNext/maybeFinishBurst决定。
	return res, nil
}

// emitNext 实现Phase D/E：吐出下一个sub-header对应的AU，可能触发拆分
func (d *Decoder) emitNext(out []byte) (Result, error) {
	b := d.buf.Bytes()

	if d.subHeaderIndex == len(d.subHeaders) {
		return d.finishBurst(Result{OutLen: 0, IecFrameProcessed: false})
	}

	sh := d.subHeaders[d.subHeaderIndex]
	d.subHeaderIndex++

	if sh.dataLength > uint32(len(out)) {
		return Result{}, nazaerrors.Wrap(base.ErrBufferTooSmall)
	}

	if sh.dataOffset+sh.dataLength > IecHeaderSizeBytes+d.header.payloadLength {
		// split：只有一部分数据在本burst内
		prefix := IecHeaderSizeBytes + d.header.payloadLength - sh.dataOffset
		d.pend.buf = append(d.pend.buf[:0], b[int(sh.dataOffset):int(sh.dataOffset+prefix)]...)
		d.pend.collected = prefix
		d.pend.missing = sh.dataLength - prefix
		d.pend.pcmOffset = sh.pcmOffset - int32(d.header.audioFrameLength)
		return d.maybeFinishBurst(Result{OutLen: 0, IecFrameLength: d.header.audioFrameLength})
	}

	n := copy(out, b[int(sh.dataOffset):int(sh.dataOffset+sh.dataLength)])
	res := Result{
		OutLen:         n,
		PcmOffset:      sh.pcmOffset,
		IecFrameLength: d.header.audioFrameLength,
	}
	return d.maybeFinishBurst(res)
}

// maybeFinishBurst 若sub-header游标已经走完整个列表，就完成burst（Phase E），否则原样返回res
func (d *Decoder) maybeFinishBurst(res Result) (Result, error) {
	if d.subHeaderIndex == len(d.subHeaders) {
		return d.finishBurst(res)
	}
	return res, nil
}

// finishBurst 实现Phase E：从work buffer移除burst_repetition_period字节，重置sync/parser
// 状态（不动pending），标记iec_frame_processed并带上本burst的audio_frame_length
func (d *Decoder) finishBurst(res Result) (Result, error) {
	d.buf.Skip(int(d.header.burstPeriod))
	res.IecFrameProcessed = true
	res.IecFrameLength = d.header.audioFrameLength
	d.resetSyncOnly()
	return res, nil
}

// fullReset 对应PendingDataError的恢复策略：sync、parser、pending全部清空
func (d *Decoder) fullReset() {
	d.resetSyncOnly()
	d.pend.reset()
}
