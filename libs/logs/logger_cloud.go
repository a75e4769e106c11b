package logs

import (
	"context"

	"cloud.google.com/go/logging"
	"go.uber.org/zap/zapcore"
)

type entryLogger interface {
	Log(e logging.Entry)
	Flush() error
}

// cloudCore 把 zap 日志转发到 Google Cloud Logging
type cloudCore struct {
	zapcore.LevelEnabler
	logger entryLogger
	fields []zapcore.Field
}

// NewCloudCore 创建一个写入 Cloud Logging 的 core, 返回的关闭函数负责 flush 和释放客户端
func NewCloudCore(project, logID string, level zapcore.LevelEnabler) (zapcore.Core, func() error, error) {
	if logID == "" {
		logID = "script-pilot"
	}
	client, err := logging.NewClient(context.Background(), project)
	if err != nil {
		return nil, nil, err
	}
	lg := client.Logger(logID)
	closeFn := func() error {
		_ = lg.Flush()
		return client.Close()
	}
	return newCloudCore(lg, level), closeFn, nil
}

func newCloudCore(l entryLogger, level zapcore.LevelEnabler) *cloudCore {
	return &cloudCore{LevelEnabler: level, logger: l}
}

func (c *cloudCore) With(fields []zapcore.Field) zapcore.Core {
	clone := *c
	clone.fields = append(append([]zapcore.Field{}, c.fields...), fields...)
	return &clone
}

func (c *cloudCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *cloudCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	enc := zapcore.NewMapObjectEncoder()
	for _, f := range c.fields {
		f.AddTo(enc)
	}
	for _, f := range fields {
		f.AddTo(enc)
	}
	payload := enc.Fields
	payload["msg"] = ent.Message
	if ent.LoggerName != "" {
		payload["logger"] = ent.LoggerName
	}
	if ent.Caller.Defined {
		payload["caller"] = ent.Caller.TrimmedPath()
	}
	c.logger.Log(logging.Entry{
		Timestamp: ent.Time,
		Severity:  severityOf(ent.Level),
		Payload:   payload,
	})
	return nil
}

func (c *cloudCore) Sync() error {
	return c.logger.Flush()
}

func severityOf(l zapcore.Level) logging.Severity {
	switch l {
	case zapcore.DebugLevel:
		return logging.Debug
	case zapcore.InfoLevel:
		return logging.Info
	case zapcore.WarnLevel:
		return logging.Warning
	case zapcore.ErrorLevel:
		return logging.Error
	case zapcore.DPanicLevel, zapcore.PanicLevel:
		return logging.Critical
	case zapcore.FatalLevel:
		return logging.Emergency
	default:
		return logging.Default
	}
}
