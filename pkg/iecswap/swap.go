// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/lal
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

// Package iecswap实现IEC 61937-13 I/O边界处可选的16bit字按对互换，
// 用于适配大端/小端不一致的S/PDIF发送/接收硬件。
package iecswap

// Swap16 原地按2字节为单位互换b中每一对相邻字节；b长度为奇数时最后一个字节保持不变。
func Swap16(b []byte) {
	for i := 0; i+1 < len(b); i += 2 {
		b[i], b[i+1] = b[i+1], b[i]
	}
}
