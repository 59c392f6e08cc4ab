// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/lal
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

// Package mpeghconf持有mpeghiecdec/mpeghiecenc两个CLI的次要配置项：必填的位置参数
// （输入/输出路径、swap标记、rate factor）始终来自命令行，这里只管日志级别和缓冲相关的
// 默认值，可以用一份可选的yaml文件覆盖。
package mpeghconf

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config 是CLI的次要配置，命令行未覆盖的字段取这里的默认值
type Config struct {
	Logging LoggingConfig `yaml:"logging"`
	Decoder DecoderConfig `yaml:"decoder"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

type DecoderConfig struct {
	// OutputBufferSize是喂给Decoder.Process的单次输出buffer大小，必须能装下
	// 最大的单个AU(MaxMpeghFrameSize)
	OutputBufferSize int `yaml:"output_buffer_size"`
}

// GetConfigWithDefaults返回一份带缺省值的Config
func GetConfigWithDefaults() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level: "info",
		},
		Decoder: DecoderConfig{
			OutputBufferSize: 65536,
		},
	}
}

// LoadConfig从path读取yaml配置并覆盖到默认值之上；path为空时直接返回默认配置
func LoadConfig(path string) (*Config, error) {
	config := GetConfigWithDefaults()
	if path == "" {
		return config, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("mpeghconf: read config file failed. %w", err)
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("mpeghconf: parse config file failed. %w", err)
	}
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("mpeghconf: invalid config. %w", err)
	}
	return config, nil
}

func (c *Config) validate() error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}
	if c.Decoder.OutputBufferSize <= 0 {
		return fmt.Errorf("invalid decoder.output_buffer_size: %d", c.Decoder.OutputBufferSize)
	}
	return nil
}
