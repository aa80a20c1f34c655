package common

import (
	"bytes"
	"log"
	"testing"

	"github.com/lni/dragonboat/v4/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLogLevel(t *testing.T) {
	for in, want := range map[string]logger.LogLevel{
		"debug":   logger.DEBUG,
		"INFO":    logger.INFO,
		"":        logger.INFO,
		"warn":    logger.WARNING,
		"warning": logger.WARNING,
		"error":   logger.ERROR,
	} {
		got, err := ParseLogLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLogLevel("verbose")
	assert.Error(t, err)
}

func TestLoggerFormatAndLevel(t *testing.T) {
	var buf bytes.Buffer
	l := &eKVLogger{name: "persist", level: logger.WARNING, logger: log.New(&buf, "", 0)}

	l.Infof("hidden %d", 1)
	l.Debugf("hidden %d", 2)
	assert.Empty(t, buf.String())

	l.Warningf("cycle %d failed", 3)
	assert.Equal(t, "WARN  | persist  | cycle 3 failed\n", buf.String())

	buf.Reset()
	l.SetLevel(logger.DEBUG)
	l.Debugf("visible")
	assert.Equal(t, "DEBUG | persist  | visible\n", buf.String())

	assert.Panics(t, func() { l.Panicf("fatal %s", "error") })
}

func TestCreateLoggerUsesOutput(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(nil)

	l := CreateLogger("db")
	l.Errorf("disk full")
	assert.Contains(t, buf.String(), "ERROR | db       | disk full")
}

func TestInitLoggers(t *testing.T) {
	assert.Error(t, InitLoggers("loud"))
	assert.NoError(t, InitLoggers("error"))
}
