package sink

import (
	"time"

	"github.com/bugVanisher/rtmpsink/media/protocol/rtmp"
	"github.com/bugVanisher/rtmpsink/statistics"
)

type Options struct {
	Location          string
	ReconnectionDelay time.Duration
	TCPTimeout        time.Duration
	LogLevel          rtmp.LogLevel
	Poster            Poster
	NewClient         ClientFactory
	Flow              *statistics.Flow
}

type Option func(*Options)

func newOptions() Options {
	return Options{
		ReconnectionDelay: DefaultReconnectionDelay,
		TCPTimeout:        DefaultTCPTimeout,
		LogLevel:          rtmp.LogError,
		Poster:            nopPoster{},
		NewClient:         NewRTMPClient,
	}
}

// WithLocation 推流地址, 如 rtmp://host/app/stream
func WithLocation(location string) Option {
	return func(opts *Options) {
		opts.Location = location
	}
}

// WithReconnectionDelay 两次重连之间的最小间隔(媒体时间), 0表示断线即失败
func WithReconnectionDelay(delay time.Duration) Option {
	return func(opts *Options) {
		opts.ReconnectionDelay = delay
	}
}

func WithTCPTimeout(timeout time.Duration) Option {
	return func(opts *Options) {
		opts.TCPTimeout = timeout
	}
}

func WithLogLevel(level rtmp.LogLevel) Option {
	return func(opts *Options) {
		opts.LogLevel = level
	}
}

func WithPoster(poster Poster) Option {
	return func(opts *Options) {
		opts.Poster = poster
	}
}

func WithClientFactory(factory ClientFactory) Option {
	return func(opts *Options) {
		opts.NewClient = factory
	}
}

func WithFlow(flow *statistics.Flow) Option {
	return func(opts *Options) {
		opts.Flow = flow
	}
}
