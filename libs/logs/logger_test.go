package logs

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"cloud.google.com/go/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestLogger(t *testing.T) {
	configMap := map[string]interface{}{
		"filename": filepath.Join(t.TempDir(), "app.log"),
		"maxsize":  1,
		"level":    int(zapcore.InfoLevel),
	}
	conf, err := json.Marshal(configMap)
	if err != nil {
		t.Fatalf("Failed to marshal config: %v", err)
	}
	Init(conf)

	Log.Info("This is an info message")
	Log.Warn("This is a warning message")
	GetLogger("test").Error("This is an error message", ErrorInfo(nil))
	assert.True(t, Log.Core().Enabled(zapcore.InfoLevel))
	assert.False(t, Log.Core().Enabled(zapcore.DebugLevel))
}

type fakeEntryLogger struct {
	entries []logging.Entry
	flushed int
}

func (f *fakeEntryLogger) Log(e logging.Entry) { f.entries = append(f.entries, e) }
func (f *fakeEntryLogger) Flush() error       { f.flushed++; return nil }

func TestCloudCore(t *testing.T) {
	fake := &fakeEntryLogger{}
	core := newCloudCore(fake, zapcore.InfoLevel)
	logger := zap.New(core).With(zap.String("module", "proxy"))

	logger.Debug("dropped")
	logger.Warn("upstream slow", zap.Int("status", 503))
	require.NoError(t, logger.Sync())

	require.Len(t, fake.entries, 1)
	entry := fake.entries[0]
	assert.Equal(t, logging.Warning, entry.Severity)
	payload, ok := entry.Payload.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "upstream slow", payload["msg"])
	assert.Equal(t, "proxy", payload["module"])
	assert.EqualValues(t, 503, payload["status"])
	assert.Equal(t, 1, fake.flushed)
}
