// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/lal
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

// mpeghiecdec把一段IEC 61937-13原始流解码成一个单音轨mhm1 MP4文件。
//
// 用法：mpeghiecdec <input> <output> <swap_flag>
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/q191201771/mpeghiec/pkg/base"
	"github.com/q191201771/mpeghiec/pkg/iec61937"
	"github.com/q191201771/mpeghiec/pkg/iecswap"
	"github.com/q191201771/mpeghiec/pkg/isobmff"
	"github.com/q191201771/mpeghiec/pkg/mpeghconf"
	"github.com/q191201771/naza/pkg/nazalog"
)

const usage = "Usage: mpeghiecdec <input> <output> <swap_flag>\n"

func main() {
	if len(os.Args) != 4 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(0)
	}

	inputPath := os.Args[1]
	outputPath := os.Args[2]
	swap := os.Args[3] == "1" || os.Args[3] == "true"

	conf := mpeghconf.GetConfigWithDefaults()
	_ = nazalog.Init(func(option *nazalog.Option) {
		option.Level = logLevelFromString(conf.Logging.Level)
	})
	defer nazalog.Sync()

	if err := run(inputPath, outputPath, swap, conf); err != nil {
		nazalog.Errorf("mpeghiecdec failed. err=%+v", err)
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

type sample struct {
	data     []byte
	duration uint32
}

func run(inputPath, outputPath string, swap bool, conf *mpeghconf.Config) error {
	raw, err := os.ReadFile(inputPath)
	if err != nil {
		return err
	}
	if swap {
		iecswap.Swap16(raw)
	}

	samples, sampleRate, err := decodeAll(raw, conf.Decoder.OutputBufferSize)
	if err != nil {
		return err
	}
	if len(samples) == 0 {
		return errors.New("mpeghiecdec: no AU decoded from input")
	}

	isobmffSamples := make([]isobmff.Sample, len(samples))
	for i, s := range samples {
		isobmffSamples[i] = isobmff.Sample{Data: s.data, Duration: s.duration}
	}

	file := isobmff.WriteMhm1File(isobmff.WriteParams{
		SampleRate:   sampleRate,
		ChannelCount: 2,
		TimeScale:    sampleRate,
	}, isobmffSamples)

	return os.WriteFile(outputPath, file, 0644)
}

// decodeAll把raw整段喂给Decoder，按spec.md §6的PTS重建公式
// pts_i = cumulative_iec_frame_length + pcm_offset_i 推出每个AU的duration。
//
// 最后一个AU的duration没有下一个pts可减，直接取它自己burst的audio_frame_length，
// 对应spec.md §6"The last sample's duration defaults to the last burst's audio_frame_length"
func decodeAll(raw []byte, outBufSize int) ([]sample, uint32, error) {
	dec := iec61937.NewDecoder()
	defer dec.Close()

	out := make([]byte, outBufSize)
	var ptses []int64
	var bufs [][]byte
	var lastFrameLength uint32
	var cumulative int64

	// 按chunk喂数据，每次喂完都把Process drain到FeedMoreData为止，这样raw即使
	// 远大于decoder内部work buffer容量也能正常工作，对应spec.md §5的backpressure模型
	const feedChunkBytes = iec61937.MaxIec61937FrameSizeBytes
	for off := 0; off < len(raw); off += feedChunkBytes {
		end := off + feedChunkBytes
		if end > len(raw) {
			end = len(raw)
		}
		if err := dec.Feed(raw[off:end]); err != nil {
			return nil, 0, err
		}

		for {
			res, err := dec.Process(out)
			if err != nil {
				if errors.Is(err, base.ErrFeedMoreData) {
					break
				}
				return nil, 0, err
			}
			if res.OutLen > 0 {
				au := make([]byte, res.OutLen)
				copy(au, out[:res.OutLen])
				bufs = append(bufs, au)
				ptses = append(ptses, cumulative+int64(res.PcmOffset))
			}
			// cumulative只在burst真正处理完成时推进一次：一个burst可能携带多枚AU
			// （累积场景），它们都必须相对同一个cumulative基准计算pts。
			if res.IecFrameProcessed {
				lastFrameLength = res.IecFrameLength
				cumulative += int64(res.IecFrameLength)
			}
		}
	}

	if len(bufs) == 0 {
		return nil, 0, nil
	}

	samples := make([]sample, len(bufs))
	for i := range bufs {
		var duration uint32
		if i+1 < len(ptses) {
			duration = uint32(ptses[i+1] - ptses[i])
		} else {
			duration = lastFrameLength
		}
		samples[i] = sample{data: bufs[i], duration: duration}
	}

	return samples, 48000, nil
}
