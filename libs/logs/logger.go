package logs

import (
	"encoding/json"
	"os"
	"sync"

	"github.com/stardustagi/ScriptPilot/utils"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	Log     *zap.Logger
	initMu  sync.Mutex
	closers []func() error
)

type LoggerConfig struct {
	Filename   string `json:"filename" toml:"filename"`
	MaxSize    int    `json:"maxsize" toml:"maxsize"`
	MaxAge     int    `json:"maxage" toml:"maxage"`
	MaxBackups int    `json:"maxbackups" toml:"maxbackups"`
	LocalTime  bool   `json:"localtime" toml:"localtime"`
	Compress   bool   `json:"compress" toml:"compress"`
	Level      int    `json:"level" toml:"level"`
	// GcpProject 非空时额外把日志写入 Cloud Logging
	GcpProject string `json:"gcp_project" toml:"gcp_project"`
	GcpLogID   string `json:"gcp_log_id" toml:"gcp_log_id"`
}

func Init(logConfigJson []byte) {
	var logConfig LoggerConfig
	var err error
	if logConfig, err = utils.Bytes2Struct[LoggerConfig](logConfigJson); err != nil {
		panic("Failed to parse log configuration: " + err.Error())
	}
	InitWithConfig(logConfig)
}

func InitWithConfig(logConfig LoggerConfig) {
	initMu.Lock()
	defer initMu.Unlock()

	// 日志级别
	level := zapcore.Level(logConfig.Level)
	if level < zapcore.DebugLevel || level > zapcore.FatalLevel {
		level = zapcore.InfoLevel
	}

	// 编码器配置
	encoderCfg := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	var zapCore []zapcore.Core
	encoder := zapcore.NewJSONEncoder(encoderCfg)
	// 控制台输出
	zapCore = append(zapCore, zapcore.NewCore(
		encoder,
		zapcore.Lock(os.Stdout),
		level,
	))
	// 文件输出配置
	if logConfig.Filename != "" {
		fileWriter := zapcore.AddSync(&lumberjack.Logger{
			Filename:   logConfig.Filename,
			MaxSize:    logConfig.MaxSize,    // megabytes
			MaxBackups: logConfig.MaxBackups, // 日志文件保留的最大个数
			MaxAge:     logConfig.MaxAge,     // days
			LocalTime:  logConfig.LocalTime,
			Compress:   logConfig.Compress,
		})
		zapCore = append(zapCore, zapcore.NewCore(
			encoder,
			fileWriter,
			level,
		))
	}
	if logConfig.GcpProject != "" {
		cloudCore, closeFn, err := NewCloudCore(logConfig.GcpProject, logConfig.GcpLogID, level)
		if err != nil {
			os.Stderr.WriteString("cloud logging disabled: " + err.Error() + "\n")
		} else {
			zapCore = append(zapCore, cloudCore)
			closers = append(closers, closeFn)
		}
	}

	// 合并输出目标
	core := zapcore.NewTee(zapCore...)

	Log = zap.New(core, zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
	)
}

// Sync 刷新缓冲并关闭远程输出
func Sync() {
	initMu.Lock()
	defer initMu.Unlock()
	if Log != nil {
		_ = Log.Sync()
	}
	for _, c := range closers {
		_ = c()
	}
	closers = nil
}

func Infof(format string, args ...interface{}) {
	if Log != nil {
		Log.Sugar().Infof(format, args...)
	}
}

func Info(msg string, fields ...zap.Field) {
	if Log != nil {
		Log.Info(msg, fields...)
	}
}

func Warnf(format string, args ...interface{}) {
	if Log != nil {
		Log.Sugar().Warnf(format, args...)
	}
}

func Warn(msg string, fields ...zap.Field) {
	if Log != nil {
		Log.Warn(msg, fields...)
	}
}

func Errorf(format string, args ...interface{}) {
	if Log != nil {
		Log.Sugar().Errorf(format, args...)
	}
}

func Error(msg string, fields ...zap.Field) {
	if Log != nil {
		Log.Error(msg, fields...)
	}
}

func Debug(msg string, fields ...zap.Field) {
	if Log != nil {
		Log.Debug(msg, fields...)
	}
}

func Debugf(format string, args ...interface{}) {
	if Log != nil {
		Log.Sugar().Debugf(format, args...)
	}
}

func GetLogger(m string) *zap.Logger {
	if Log == nil {
		// 默认配置
		loggerConf := map[string]any{
			"filename":   "logs/app.log",
			"maxsize":    60,
			"maxbackups": 5,
			"maxage":     7,
			"compress":   true,
			"level":      -1,
		}
		jsonBytes, err := json.Marshal(loggerConf)
		if err != nil {
			panic("Failed to marshal logger configuration: " + err.Error())
		}
		Init(jsonBytes)
	}
	return Log.With(zap.String("module", m))
}
