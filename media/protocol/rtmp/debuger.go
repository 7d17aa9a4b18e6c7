package rtmp

import (
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// Debuger debug对象，记录连接的chunk级别信息
type Debuger struct {
	taskID  string
	enabled atomic.Bool // debug模式开关, 为true时开启
	logger  zerolog.Logger
}

// NewDebuger 创建debuger, 只有debug2及以上级别才会打开
func NewDebuger(taskID string, level LogLevel, logger zerolog.Logger) *Debuger {
	d := &Debuger{
		taskID: taskID,
		logger: logger,
	}
	d.enabled.Store(level >= LogDebug2)
	return d
}

// Enabled debug开关是否打开
func (t *Debuger) Enabled() bool {
	if t == nil {
		return false
	}
	return t.enabled.Load()
}

// Debug 写入debug信息
func (t *Debuger) Debug(format string, args ...interface{}) {
	if !t.Enabled() {
		return
	}
	t.logger.Trace().Str("task", t.taskID).Msg(fmt.Sprintf(format, args...))
}
