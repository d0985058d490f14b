package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// logger 是一个全局 logger 实例，Init 之前为空操作 logger
	logger = zap.NewNop()
	once   sync.Once
)

// ParseLevel 解析日志级别，未知级别按 info 处理
func ParseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Init 初始化日志系统
func Init(level string, outputPath string) error {
	var initErr error
	once.Do(func() {
		logLevel := ParseLevel(level)

		// 创建日志目录
		if outputPath != "" {
			if err := os.MkdirAll(outputPath, 0755); err != nil {
				initErr = fmt.Errorf("无法创建日志目录: %w", err)
				return
			}
		}

		encoderConfig := zap.NewProductionEncoderConfig()
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder

		cores := []zapcore.Core{
			zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), zapcore.AddSync(os.Stdout), logLevel),
		}

		if outputPath != "" {
			fileEncoder := zapcore.NewJSONEncoder(encoderConfig)
			for name, minLevel := range map[string]zapcore.Level{
				"app.log":   logLevel,
				"error.log": zapcore.ErrorLevel, // 错误文件只记录错误及以上级别
			} {
				f, err := os.OpenFile(filepath.Join(outputPath, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
				if err != nil {
					initErr = fmt.Errorf("无法打开日志文件 %s: %w", name, err)
					return
				}
				cores = append(cores, zapcore.NewCore(fileEncoder, zapcore.AddSync(f), minLevel))
			}
		}

		logger = zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddCallerSkip(1), zap.AddStacktrace(zapcore.ErrorLevel))
	})
	return initErr
}

// Set 替换全局 logger，主要用于测试
func Set(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	logger = l
}

// L 返回全局 logger
func L() *zap.Logger {
	return logger
}

// Named 返回带名称的子 logger
func Named(name string) *zap.Logger {
	return logger.WithOptions(zap.AddCallerSkip(-1)).Named(name)
}

// Debug 记录调试信息
func Debug(msg string, fields ...zap.Field) {
	logger.Debug(msg, fields...)
}

// Info 记录一般信息
func Info(msg string, fields ...zap.Field) {
	logger.Info(msg, fields...)
}

// Warn 记录警告信息
func Warn(msg string, fields ...zap.Field) {
	logger.Warn(msg, fields...)
}

// Error 记录错误信息
func Error(msg string, fields ...zap.Field) {
	logger.Error(msg, fields...)
}

// Fatal 记录致命错误并退出程序
func Fatal(msg string, fields ...zap.Field) {
	logger.Fatal(msg, fields...)
}

// WithFields 返回带有字段的日志接口
func WithFields(fields ...zap.Field) *zap.Logger {
	return logger.WithOptions(zap.AddCallerSkip(-1)).With(fields...)
}

// Sync 刷新日志缓冲
func Sync() {
	_ = logger.Sync()
}
