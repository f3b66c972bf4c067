package logger_test

import (
	"testing"
	"time"

	"talent-match-go/internal/logger"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

// TestInit_LevelParsing 配置级别生效，未知级别回退到info
func TestInit_LevelParsing(t *testing.T) {
	logger.Init(logger.Config{Level: "debug", Format: "json"})
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel(), "配置的日志级别应生效")
	assert.Equal(t, zerolog.DebugLevel, logger.Logger.GetLevel())

	logger.Init(logger.Config{Level: "verbose", Format: "json"})
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel(), "未知级别应回退到info")
}

// TestInit_TimeFormat 时间格式跟随配置，缺省为RFC3339
func TestInit_TimeFormat(t *testing.T) {
	logger.Init(logger.Config{Level: "info", Format: "json", TimeFormat: time.RFC1123})
	assert.Equal(t, time.RFC1123, zerolog.TimeFieldFormat)

	logger.Init(logger.Config{Level: "info", Format: "json"})
	assert.Equal(t, time.RFC3339, zerolog.TimeFieldFormat, "未指定时间格式时使用RFC3339")
}
