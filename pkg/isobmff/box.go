// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/lal
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

// Package isobmff是ISO BMFF（MP4）的一个极简子集实现，只覆盖两个demo CLI
// 需要的部分：单条mhm1音轨的box读取与写入。不是通用的MP4库。
//
// box header固定为32bit size + 32bit fourcc type（不支持64bit largesize，
// 不支持uuid扩展类型），full box的version固定为0，flags默认为0（tkhd、url等box写完header后再回填）。
package isobmff

import (
	"github.com/q191201771/mpeghiec/pkg/base"
	"github.com/q191201771/naza/pkg/bele"
	"github.com/q191201771/naza/pkg/nazaerrors"
)

// 本包认识的box type，数值即fourcc的大端编码，和 panda1986-mp4_parser
// 的SrsMp4BoxTypeXxx常量表是同一种写法
const (
	boxTypeFtyp = 0x66747970 // 'ftyp'
	boxTypeMoov = 0x6d6f6f76 // 'moov'
	boxTypeMvhd = 0x6d766864 // 'mvhd'
	boxTypeTrak = 0x7472616b // 'trak'
	boxTypeTkhd = 0x746b6864 // 'tkhd'
	boxTypeMdia = 0x6d646961 // 'mdia'
	boxTypeMdhd = 0x6d646864 // 'mdhd'
	boxTypeHdlr = 0x68646c72 // 'hdlr'
	boxTypeMinf = 0x6d696e66 // 'minf'
	boxTypeSmhd = 0x736d6864 // 'smhd'
	boxTypeDinf = 0x64696e66 // 'dinf'
	boxTypeDref = 0x64726566 // 'dref'
	boxTypeURL  = 0x75726c20 // 'url '
	boxTypeStbl = 0x7374626c // 'stbl'
	boxTypeStsd = 0x73747364 // 'stsd'
	boxTypeMp4a = 0x6d703461 // 'mp4a', sample entry box type used on-disk
	boxTypeMhm1 = 0x6d686d31 // 'mhm1', MPEG-H audio sample entry, per spec.md's wire naming
	boxTypeEsds = 0x65736473 // 'esds'
	boxTypeStts = 0x73747473 // 'stts'
	boxTypeStsc = 0x73747363 // 'stsc'
	boxTypeStsz = 0x7374737a // 'stsz'
	boxTypeStco = 0x7374636f // 'stco'
	boxTypeStss = 0x73747373 // 'stss'
	boxTypeMdat = 0x6d646174 // 'mdat'
	boxTypeUdta = 0x75647461 // 'udta'

	brandMp42 = 0x6d703432 // 'mp42'
	brandIsom = 0x69736f6d // 'isom'

	handlerSoun = 0x736f756e // 'soun'
)

// boxHeader是每个box公共的8字节前缀：32位size（含本身及所有子内容）+ 32位type
type boxHeader struct {
	size     uint32
	boxType  uint32
	startOff int // box起始偏移，用于校验size
}

// readBoxHeader从b的offset处解析一个box header，返回header和payload起始offset
func readBoxHeader(b []byte, offset int) (boxHeader, int, error) {
	if offset+8 > len(b) {
		return boxHeader{}, 0, nazaerrors.Wrap(base.ErrIsobmffShortBuffer)
	}
	h := boxHeader{
		size:     bele.BeUint32(b[offset:]),
		boxType:  bele.BeUint32(b[offset+4:]),
		startOff: offset,
	}
	if h.size < 8 || offset+int(h.size) > len(b) {
		return boxHeader{}, 0, nazaerrors.Wrap(base.ErrIsobmffShortBuffer)
	}
	return h, offset + 8, nil
}

// end返回该box（含header）在缓冲区中的结束offset
func (h boxHeader) end() int {
	return h.startOff + int(h.size)
}

// boxWriter是写box时的小工具，先占位写size再回填，和标准mp4muxer的常见写法一致
type boxWriter struct {
	buf []byte
}

func newBoxWriter() *boxWriter {
	return &boxWriter{buf: make([]byte, 0, 256)}
}

func (w *boxWriter) bytes() []byte {
	return w.buf
}

func (w *boxWriter) putUint16(v uint16) {
	var b [2]byte
	bele.BePutUint16(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *boxWriter) putUint32(v uint32) {
	var b [4]byte
	bele.BePutUint32(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *boxWriter) putInt16(v int16) {
	w.putUint16(uint16(v))
}

func (w *boxWriter) putBytes(b []byte) {
	w.buf = append(w.buf, b...)
}

func (w *boxWriter) putZeros(n int) {
	w.buf = append(w.buf, make([]byte, n)...)
}

// beginBox写入一个占位size(0)+type，返回size字段在buf中的offset，供endBox回填
func (w *boxWriter) beginBox(boxType uint32) int {
	sizeOff := len(w.buf)
	w.putUint32(0)
	w.putUint32(boxType)
	return sizeOff
}

// endBox用当前buf长度回填sizeOff处的size
func (w *boxWriter) endBox(sizeOff int) {
	bele.BePutUint32(w.buf[sizeOff:], uint32(len(w.buf)-sizeOff))
}

// beginFullBox在beginBox之后追加full box的version(0)+flags(0,0,0)
func (w *boxWriter) beginFullBox(boxType uint32) int {
	sizeOff := w.beginBox(boxType)
	w.putUint32(0) // version(8) + flags(24)，全部置0
	return sizeOff
}
