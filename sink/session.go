package sink

import (
	"time"

	"github.com/bugVanisher/rtmpsink/common/errs"
	"github.com/bugVanisher/rtmpsink/media/protocol/rtmp"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

//go:generate mockgen -source=session.go -destination=mock_client_test.go -package=sink Client

// Client 是sink对协议客户端的最小依赖: setup, connect, is-connected, write, close
type Client interface {
	SetupURL(uri string) error
	Connect(timeout time.Duration) error
	IsConnected() bool
	Write(b []byte) (int, error)
	Close() error
}

// ClientFactory 为每个session创建新的客户端
type ClientFactory func(level rtmp.LogLevel) Client

// NewRTMPClient 默认的客户端工厂
func NewRTMPClient(level rtmp.LogLevel) Client {
	return rtmp.NewPublisher(rtmp.WithLogLevel(level), rtmp.WithRoleID("sink"))
}

type writeOutcome int

const (
	writeOK       writeOutcome = iota
	writeRejected              // 数据不足一个tag头等, 不可重试
	writeFailed                // 传输错误, 连接已断开
)

func (o writeOutcome) status() Status {
	if o == writeOK {
		return StatusOK
	}
	return StatusFailed
}

// session 持有一个协议连接, client只在start成功到stop之间存在
type session struct {
	location  string
	uri       string
	client    Client
	id        string
	logLevel  rtmp.LogLevel
	newClient ClientFactory

	pending joiner
}

func (s *session) started() bool {
	return s.client != nil
}

func (s *session) start() error {
	if s.location == "" {
		log.Error().Msg("[sink] no location set before starting")
		return errs.ErrNoLocator
	}

	s.uri = s.location
	client := s.newClient(s.logLevel)
	if err := client.SetupURL(s.uri); err != nil {
		log.Error().Err(err).Str("location", s.location).Msg("[sink] failed to setup url")
		client.Close()
		s.uri = ""
		return errs.Wrapf(errs.ErrSetupURL, "location %q: %v", s.location, err)
	}
	s.client = client
	s.id = uuid.NewString()
	log.Debug().Str("session", s.id).Str("location", s.location).Msg("[sink] created client")
	return nil
}

// stop 释放待拼接的缓存和客户端, 可重复调用
func (s *session) stop() {
	s.pending.reset()
	if s.client != nil {
		if err := s.client.Close(); err != nil {
			log.Debug().Err(err).Str("session", s.id).Msg("[sink] close client")
		}
		s.client = nil
	}
	s.uri = ""
}

// release 连接失败时丢弃客户端, 不做close
func (s *session) release() {
	s.client = nil
	s.uri = ""
}

func (s *session) isConnected() bool {
	return s.client != nil && s.client.IsConnected()
}

func (s *session) connect(timeout time.Duration) error {
	if s.client == nil {
		return errors.Wrap(rtmp.ErrNotConnected, "session not started")
	}
	return s.client.Connect(timeout)
}

func (s *session) write(b []byte) writeOutcome {
	if s.client == nil {
		return writeFailed
	}
	n, err := s.client.Write(b)
	switch {
	case err == nil && n > 0:
		return writeOK
	case err == nil, errors.Is(err, rtmp.ErrPacketTooSmall), errors.Is(err, rtmp.ErrInvalidTag):
		log.Error().Err(err).Str("session", s.id).Int("size", len(b)).Msg("[sink] write rejected")
		return writeRejected
	default:
		log.Warn().Err(err).Str("session", s.id).Int("size", len(b)).Msg("[sink] write failed")
		return writeFailed
	}
}
