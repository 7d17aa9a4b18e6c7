package sink

import (
	"os"
	"time"

	"github.com/bugVanisher/rtmpsink/common/errs"
	"github.com/bugVanisher/rtmpsink/media/protocol/rtmp"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	DefaultReconnectionDelay = 10 * time.Second
	DefaultTCPTimeout        = 3000 * time.Second
)

// Config 对应configure的参数, 可以从yaml文件加载
type Config struct {
	Location          string        `yaml:"location"`
	ReconnectionDelay time.Duration `yaml:"reconnection_delay"` // 0: 断线直接报错
	TCPTimeout        time.Duration `yaml:"tcp_timeout"`
	LogLevel          string        `yaml:"log_level"` // rtmp传输层日志级别
	HookURL           string        `yaml:"hook_url"`
}

func DefaultConfig() Config {
	return Config{
		ReconnectionDelay: DefaultReconnectionDelay,
		TCPTimeout:        DefaultTCPTimeout,
		LogLevel:          rtmp.LogError.String(),
	}
}

// LoadConfig 读取yaml配置, 未填写的字段使用默认值
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrapf(err, "read config %s", path)
	}
	if err = yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "parse config %s", path)
	}
	return cfg, nil
}

// ValidateLocation 只检查协议、host和playpath, 其余交给传输层
func ValidateLocation(location string) error {
	if _, err := rtmp.ParseURL(location); err != nil {
		return errs.Wrapf(errs.ErrInvalidLocator, "%v", err)
	}
	return nil
}
