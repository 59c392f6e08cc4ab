// Copyright 2019, Chef.  All rights reserved.
// https://github.com/q191201771/lal
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package base

import (
	"errors"
)

// ----- pkg/iec61937 ---------------------------------------------------------------------------------------------------

var (
	// ErrNullInput 缺少必要的句柄或buffer参数
	ErrNullInput = errors.New("mpeghiec.iec61937: null input")

	// ErrBufferFull 内部work buffer放不下新数据
	ErrBufferFull = errors.New("mpeghiec.iec61937: work buffer full")

	// ErrBufferTooSmall 调用方提供的输出buffer装不下即将写入的数据
	ErrBufferTooSmall = errors.New("mpeghiec.iec61937: output buffer too small")

	// ErrFeedMoreData 当前work buffer中的数据还不足以取得一个burst/AU，需要调用方继续Feed
	ErrFeedMoreData = errors.New("mpeghiec.iec61937: feed more data")

	// ErrPendingDataError pending AU与新burst之间的不变式被违反，decoder已整体重置并从下一个preamble重新同步
	ErrPendingDataError = errors.New("mpeghiec.iec61937: pending data error")

	// ErrDurationError AU的duration超过了MAX_MPEGH_FRAME_DURATION
	ErrDurationError = errors.New("mpeghiec.iec61937: duration error")

	// ErrRateFactor open时传入了不支持的rate factor，只支持4和16
	ErrRateFactor = errors.New("mpeghiec.iec61937: unsupported rate factor")
)

// ----- pkg/mhas --------------------------------------------------------------------------------------------------------

var ErrMhas = errors.New("mpeghiec.mhas: malformed package list")

// ----- pkg/isobmff ------------------------------------------------------------------------------------------------------

var (
	ErrIsobmff           = errors.New("mpeghiec.isobmff: malformed box")
	ErrIsobmffNoMhm1     = errors.New("mpeghiec.isobmff: no mhm1 track found")
	ErrIsobmffShortBuffer = errors.New("mpeghiec.isobmff: buffer too short")
)
