// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/lal
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

// Package iec61937 实现IEC 61937-13协议对MPEG-H 3D Audio access unit(AU)的打包与解包。
//
// 协议把变长的MPEG-H压缩音频帧(AU)打包进固定长度的"data burst"中，通过类S/PDIF的IEC 60958
// 帧承载。Encoder负责把AU+duration序列攒成burst写出，Decoder负责从任意字节流中定位burst边界、
// 解析burst/payload头，把其中的AU逐个还原出来（包括跨burst拆分的AU）。
package iec61937

const (
	// SyncPreamble0 ~ SyncPreamble3 IEC 61937 Pa/Pb同步前导字节，协议规定的固定值，不可更改
	SyncPreamble0 = 0x72
	SyncPreamble1 = 0xf8
	SyncPreamble2 = 0x1f
	SyncPreamble3 = 0x4e

	// IecHeaderSizeBytes 前导(4字节) + Pc(2字节) + Pd(2字节)
	IecHeaderSizeBytes = 8

	// IecBurstSpacingSizeBytes burst结尾必须全0的间隔区域大小。
	//
	// 参考代码中该常量定义在未提供的iec61937_common.h中，这里取与IEC60958FrameSizeBytes
	// 相同的一个子帧大小，满足spec.md §3"MUST be nonzero"的唯一约束，具体见DESIGN.md的Open
	// Questions一节。
	IecBurstSpacingSizeBytes = 4

	// Iec60958FrameSizeBytes 一个IEC 60958帧（left+right各16bit）的字节数
	Iec60958FrameSizeBytes = 4

	// MpeghDataType IEC 61937 data_type字段中代表MPEG-H 3D Audio的取值
	MpeghDataType = 25

	// MaxMpeghFrameSize 单个MPEG-H AU（一串MHAS package）的最大字节数
	MaxMpeghFrameSize = 65536

	// Iec61937AudioFrameLength encoder固定使用的audio_frame_length取值
	Iec61937AudioFrameLength = 1024

	// MaxAudioFrameLength decoder能接受的audio_frame_length上限
	MaxAudioFrameLength = 4096

	// MaxMpeghFrameDuration AU的duration上限
	MaxMpeghFrameDuration = 4096

	// iec61937MaxSampleRateFactor audio_mode=1时rate_factor对应的最大过采样倍数
	iec61937MaxSampleRateFactor = 16

	// MaxIec61937FrameSizeBytes 单个IEC burst的最大理论字节数
	MaxIec61937FrameSizeBytes = MaxAudioFrameLength * iec61937MaxSampleRateFactor * Iec60958FrameSizeBytes

	// DecoderWorkBufferSizeBytes decoder内部work buffer大小
	DecoderWorkBufferSizeBytes = 3 * MaxIec61937FrameSizeBytes

	// MaxNumMpeghFrames encoder内部frame table能同时缓存的AU个数上限
	MaxNumMpeghFrames = 5

	// EncoderWorkBufferSizeBytes encoder内部work buffer大小
	EncoderWorkBufferSizeBytes = MaxNumMpeghFrames * MaxMpeghFrameSize

	// payloadHeaderSizeStandard audio_mode=0时payload sub-header的字节数
	payloadHeaderSizeStandard = 6

	// payloadHeaderSizeHbr audio_mode=1(HBR)时payload sub-header的字节数
	payloadHeaderSizeHbr = 8
)

// audioFrameLengthByCode 对应spec.md §3的frame_length_code表
var audioFrameLengthByCode = map[uint8]uint32{
	0: 1024,
	1: 2048,
	2: 4096,
	3: 768,
	4: 1536,
	5: 3072,
}

// rateFactorToParams 把NewEncoder的rate_factor参数(4或16)转换为rate_code/audio_mode
func rateFactorToParams(rateFactor uint8) (rateCode uint8, audioMode uint8, ok bool) {
	switch rateFactor {
	case 4:
		return 1, 1, true
	case 16:
		return 3, 1, true
	default:
		return 0, 0, false
	}
}

func payloadHeaderSize(audioMode uint8) uint32 {
	if audioMode == 0 {
		return payloadHeaderSizeStandard
	}
	return payloadHeaderSizeHbr
}
