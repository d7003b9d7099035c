// Package log 封装了全局的 zap SugaredLogger。
package log

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// 未调用 Init 之前（单元测试、CLI 子命令）使用 Nop logger。
var sugar = zap.NewNop().Sugar()

// StderrOutput 让日志只写 stderr，命令行工具的 stdout 留给命令输出。
const StderrOutput = "stderr"

// outputPaths 决定日志输出位置：默认 stdout，指定目录时额外写入 <dir>/app.log。
func outputPaths(outputPath string) []string {
	switch outputPath {
	case "":
		return []string{"stdout"}
	case StderrOutput:
		return []string{"stderr"}
	default:
		return []string{"stdout", filepath.Join(outputPath, "app.log")}
	}
}

// newConfig 按格式选择编码器：console 为带颜色的开发格式，其余为 JSON。
func newConfig(level, format string) zap.Config {
	var cfg zap.Config
	if format == "console" {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
		cfg.Encoding = "json"
	}

	lvl := zap.NewAtomicLevel()
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl.SetLevel(zap.InfoLevel)
	}
	cfg.Level = lvl
	return cfg
}

// Init 初始化全局 logger，构建失败时 panic。
func Init(level, format, outputPath string) {
	cfg := newConfig(level, format)
	cfg.OutputPaths = outputPaths(outputPath)
	if outputPath != "" && outputPath != StderrOutput {
		_ = os.MkdirAll(outputPath, os.ModePerm)
	}

	logger, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	sugar = logger.Sugar()
}

func Debugf(template string, args ...interface{}) {
	sugar.Debugf(template, args...)
}

func Info(msg string) {
	sugar.Info(msg)
}

func Infof(template string, args ...interface{}) {
	sugar.Infof(template, args...)
}

// Infow 记录一条结构化的 info 日志，keysAndValues 为交替的键值。
func Infow(msg string, keysAndValues ...interface{}) {
	sugar.Infow(msg, keysAndValues...)
}

func Warnf(template string, args ...interface{}) {
	sugar.Warnf(template, args...)
}

// Error 记录一条 error 日志并附带 err 字段。
func Error(msg string, err error) {
	sugar.Errorw(msg, "error", err)
}

func Errorf(template string, args ...interface{}) {
	sugar.Errorf(template, args...)
}

// Fatal 记录日志后退出进程。
func Fatal(msg string, err error) {
	sugar.Fatalw(msg, "error", err)
}

func Fatalf(template string, args ...interface{}) {
	sugar.Fatalf(template, args...)
}

// Sync 刷新缓冲区，程序退出前调用。
func Sync() {
	_ = sugar.Sync()
}
