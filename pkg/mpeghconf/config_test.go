package mpeghconf_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/q191201771/mpeghiec/pkg/mpeghconf"
	"github.com/q191201771/naza/pkg/assert"
)

func TestGetConfigWithDefaults(t *testing.T) {
	c := mpeghconf.GetConfigWithDefaults()
	assert.Equal(t, "info", c.Logging.Level)
	assert.Equal(t, 65536, c.Decoder.OutputBufferSize)
}

func TestLoadConfig_EmptyPathReturnsDefaults(t *testing.T) {
	c, err := mpeghconf.LoadConfig("")
	assert.Equal(t, nil, err)
	assert.Equal(t, mpeghconf.GetConfigWithDefaults(), c)
}

func TestLoadConfig_OverridesFromFile(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "mpeghiec.yaml")
	content := "logging:\n  level: debug\ndecoder:\n  output_buffer_size: 131072\n"
	assert.Equal(t, nil, os.WriteFile(p, []byte(content), 0644))

	c, err := mpeghconf.LoadConfig(p)
	assert.Equal(t, nil, err)
	assert.Equal(t, "debug", c.Logging.Level)
	assert.Equal(t, 131072, c.Decoder.OutputBufferSize)
}

func TestLoadConfig_RejectsBadLogLevel(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "bad.yaml")
	content := "logging:\n  level: verbose\n"
	assert.Equal(t, nil, os.WriteFile(p, []byte(content), 0644))

	_, err := mpeghconf.LoadConfig(p)
	if err == nil {
		t.Fatalf("expected validation error")
	}
}
