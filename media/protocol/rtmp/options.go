package rtmp

import "time"

const defaultFlashVer = "FMLE/3.0 (compatible; FMSc/1.0)"

var DefaultOptions = NewOptions()

// rtmp连接的参数选项
type Options struct {
	DialTimeout      time.Duration // 0: 由Connect的timeout决定
	ReadWriteTimeout time.Duration // 0: 沿用Connect的timeout, 仍为0则阻塞
	ReadBufferSize   int           // 单位: 字节
	WriteBufferSize  int           // 单位: 字节
	ChunkSize        int           // 单位：字节
	RoleID           string
	FlashVer         string
	LogLevel         LogLevel
}

// rtmp连接的参数选项设置函数
type Option func(*Options)

// NewOptions 创建rtmp连接选项
func NewOptions() Options {
	return Options{
		ReadBufferSize:  4 * 1024,
		WriteBufferSize: 64 * 1024,
		ChunkSize:       9 * 1024 * 1024,
		FlashVer:        defaultFlashVer,
		LogLevel:        LogError,
	}
}

// WithDialTimeout 建立连接的超时时间
func WithDialTimeout(dialTimeout time.Duration) Option {
	return func(opts *Options) {
		opts.DialTimeout = dialTimeout
	}
}

// WithReadWriteTimeout 设置rtmp连接的读写超时时间
func WithReadWriteTimeout(timeout time.Duration) Option {
	return func(opts *Options) {
		opts.ReadWriteTimeout = timeout
	}
}

// WithReadBufferSize 设置rtmp连接读缓存的大小
func WithReadBufferSize(size int) Option {
	return func(opts *Options) {
		opts.ReadBufferSize = size
	}
}

// WithWriteBufferSize 设置rtmp连接写缓存的大小
func WithWriteBufferSize(size int) Option {
	return func(opts *Options) {
		opts.WriteBufferSize = size
	}
}

// WithChunkSize 设置rtmp的ChunkSize
func WithChunkSize(size int) Option {
	return func(opts *Options) {
		opts.ChunkSize = size
	}
}

// WithRoleID 设置RoleID, 用于日志区分连接
func WithRoleID(role string) Option {
	return func(opts *Options) {
		opts.RoleID = role
	}
}

// WithFlashVer 设置connect命令中的flashVer
func WithFlashVer(ver string) Option {
	return func(opts *Options) {
		opts.FlashVer = ver
	}
}

// WithLogLevel 设置传输层诊断日志级别
func WithLogLevel(level LogLevel) Option {
	return func(opts *Options) {
		opts.LogLevel = level
	}
}
