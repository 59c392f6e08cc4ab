// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/lal
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

// mpeghiecenc把一个单音轨mhm1 MP4文件的AU流编码成IEC 61937-13原始流。
//
// 用法：mpeghiecenc <input.mp4> <output.raw> <factor:4|16> <swap_flag>
package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/q191201771/mpeghiec/pkg/iec61937"
	"github.com/q191201771/mpeghiec/pkg/iecswap"
	"github.com/q191201771/mpeghiec/pkg/isobmff"
	"github.com/q191201771/mpeghiec/pkg/mpeghconf"
	"github.com/q191201771/naza/pkg/nazalog"
)

const usage = "Usage: mpeghiecenc <input.mp4> <output.raw> <factor:4|16> <swap_flag>\n"

func main() {
	if len(os.Args) != 5 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(0)
	}

	inputPath := os.Args[1]
	outputPath := os.Args[2]
	factor, ferr := strconv.Atoi(os.Args[3])
	swap := os.Args[4] == "1" || os.Args[4] == "true"

	conf := mpeghconf.GetConfigWithDefaults()
	_ = nazalog.Init(func(option *nazalog.Option) {
		option.Level = logLevelFromString(conf.Logging.Level)
	})
	defer nazalog.Sync()

	if ferr != nil || (factor != 4 && factor != 16) {
		nazalog.Errorf("mpeghiecenc failed. unsupported rate factor=%s", os.Args[3])
		os.Exit(1)
	}

	if err := run(inputPath, outputPath, uint8(factor), swap); err != nil {
		nazalog.Errorf("mpeghiecenc failed. err=%+v", err)
		os.Exit(1)
	}
}

func logLevelFromString(level string) nazalog.Level {
	switch level {
	case "debug":
		return nazalog.LevelDebug
	case "warn":
		return nazalog.LevelWarn
	case "error":
		return nazalog.LevelError
	default:
		return nazalog.LevelInfo
	}
}

func run(inputPath, outputPath string, factor uint8, swap bool) error {
	mp4, err := os.ReadFile(inputPath)
	if err != nil {
		return err
	}

	track, err := isobmff.ReadMhm1Track(mp4)
	if err != nil {
		return err
	}

	enc, err := iec61937.NewEncoder(factor)
	if err != nil {
		return err
	}
	defer enc.Close()

	var outBytes []byte
	burstBuf := make([]byte, iec61937.MaxIec61937FrameSizeBytes)

	sampleIndex := 0
	for sampleIndex < len(track.SampleSizes) {
		au, duration := sampleAt(mp4, track, sampleIndex)

		res, err := enc.Process(au, duration, burstBuf)
		if err != nil {
			return err
		}
		if res.OutLen > 0 {
			outBytes = append(outBytes, burstBuf[:res.OutLen]...)
		}
		if res.InputConsumed {
			sampleIndex++
		}
	}

	// 所有AU都已喂入，drain剩余work buffer里还未被打包进burst的数据
	for {
		res, err := enc.Process(nil, 0, burstBuf)
		if err != nil {
			break
		}
		if res.OutLen == 0 {
			break
		}
		outBytes = append(outBytes, burstBuf[:res.OutLen]...)
	}

	if swap {
		iecswap.Swap16(outBytes)
	}

	return os.WriteFile(outputPath, outBytes, 0644)
}

func sampleAt(mp4 []byte, track *isobmff.Track, i int) ([]byte, uint32) {
	off := track.ChunkOffsets[i]
	size := track.SampleSizes[i]
	return mp4[off : off+size], track.SampleDeltas[i]
}
