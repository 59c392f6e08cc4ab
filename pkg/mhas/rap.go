// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/lal
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

// Package mhas 从一枚MPEG-H AU的MHAS package列表中判断它是否为随机访问点(RAP)。
package mhas

import (
	"github.com/q191201771/mpeghiec/pkg/base"
	"github.com/q191201771/naza/pkg/nazabits"
	"github.com/q191201771/naza/pkg/nazaerrors"
)

const mhasPackTypeRap = 1

// FindRandomAccessPoint walks the MHAS package list at the start of au and
// reports whether it contains a pack_type==1 (RAP) package.
func FindRandomAccessPoint(au []byte) (bool, error) {
	br := nazabits.NewBitReader(au)
	for {
		packType, err := escapedValue(&br, 3, 8, 8)
		if err != nil {
			// 读到流尾，没有更多package了
			return false, nil
		}
		if packType == mhasPackTypeRap {
			return true, nil
		}

		if _, err := escapedValue(&br, 2, 8, 32); err != nil {
			return false, nazaerrors.Wrap(base.ErrMhas)
		}
		packLength, err := escapedValue(&br, 11, 24, 24)
		if err != nil {
			return false, nazaerrors.Wrap(base.ErrMhas)
		}
		if err := br.SkipBits(uint(packLength) * 8); err != nil {
			return false, nazaerrors.Wrap(base.ErrMhas)
		}
	}
}

// escapedValue 实现MHAS的escaped value编码：先读n1位作为v；若v==2^n1-1，再读n2位累加；
// 若那次累加值也等于2^n2-1，再读n3位累加一次。
func escapedValue(br *nazabits.BitReader, n1, n2, n3 int) (uint32, error) {
	v, err := br.ReadBits32(uint(n1))
	if err != nil {
		return 0, err
	}
	if v != (uint32(1)<<uint(n1) - 1) {
		return v, nil
	}

	valueAdd, err := br.ReadBits32(uint(n2))
	if err != nil {
		return 0, err
	}
	v += valueAdd
	if valueAdd != (uint32(1)<<uint(n2) - 1) {
		return v, nil
	}

	valueAdd, err = br.ReadBits32(uint(n3))
	if err != nil {
		return 0, err
	}
	v += valueAdd
	return v, nil
}
