package logger

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

type LoggerTestSuite struct {
	suite.Suite
}

func TestLoggerSuite(t *testing.T) {
	suite.Run(t, new(LoggerTestSuite))
}

func (suite *LoggerTestSuite) TestNewLogger() {
	logger, err := NewLogger()
	suite.NoError(err)
	suite.NotNil(logger)
	suite.NotNil(logger.Logger)
}

func (suite *LoggerTestSuite) TestNewLoggerWithLevel() {
	for _, level := range []string{"debug", "info", "warn", "error"} {
		logger, err := NewLoggerWithLevel(level)
		suite.NoError(err, level)
		suite.NotNil(logger)
	}
}

func (suite *LoggerTestSuite) TestNewLoggerWithInvalidLevel() {
	logger, err := NewLoggerWithLevel("loud")
	suite.Error(err)
	suite.Nil(logger)
}

func (suite *LoggerTestSuite) TestLoggerSyncNilLogger() {
	logger := &Logger{Logger: nil}

	// Sync should not panic and should return nil for a nil inner logger
	err := logger.Sync()
	suite.NoError(err)
}

func (suite *LoggerTestSuite) TestNamed() {
	logger := NewNopLogger().Named("dispatcher")
	suite.NotNil(logger.Logger)

	// These should not panic
	logger.Info("test info message")
	logger.Warn("test warn message")
}
