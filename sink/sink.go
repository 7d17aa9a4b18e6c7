package sink

import (
	"time"

	"github.com/bugVanisher/rtmpsink/common/errs"
	"github.com/bugVanisher/rtmpsink/media/av"
	"github.com/bugVanisher/rtmpsink/media/protocol/rtmp"
	"github.com/rs/zerolog/log"
)

// Status 连接或最近一次写的结果
type Status int

const (
	StatusNever Status = iota
	StatusOK
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusNever:
		return "never"
	case StatusOK:
		return "ok"
	case StatusFailed:
		return "failed"
	}
	return "unknown"
}

// Sink 把flv packet推到rtmp服务器, 断线后按媒体时间间隔自动重连.
// 非并发安全: Start, Consume, Stop 需要由同一个调用方顺序调用.
type Sink struct {
	opts Options

	session session
	meta    metadataCache

	connectionStatus      Status
	sentStatus            Status
	reconnectionRequired  bool
	disconnectionNotified bool
	tryNowConnection      bool
	beginTimeDisc         time.Duration
	endTimeDisc           time.Duration
	sendErrorCount        int
}

func New(opt ...Option) *Sink {
	opts := newOptions()
	for _, o := range opt {
		o(&opts)
	}
	if opts.Poster == nil {
		opts.Poster = nopPoster{}
	}
	if opts.NewClient == nil {
		opts.NewClient = NewRTMPClient
	}

	s := &Sink{
		opts:                  opts,
		disconnectionNotified: true,
		tryNowConnection:      true,
	}
	s.session.location = opts.Location
	s.session.logLevel = opts.LogLevel
	s.session.newClient = opts.NewClient
	return s
}

// Configure 设置推流参数, 地址不合法时返回错误并清空原地址.
// 未设置的时长按0处理, 一般以DefaultConfig为基础修改.
func (s *Sink) Configure(cfg Config) error {
	s.opts.ReconnectionDelay = cfg.ReconnectionDelay
	s.opts.TCPTimeout = cfg.TCPTimeout
	if cfg.LogLevel != "" {
		level, err := rtmp.ParseLogLevel(cfg.LogLevel)
		if err != nil {
			return err
		}
		s.opts.LogLevel = level
		s.session.logLevel = level
	}

	s.opts.Location = ""
	s.session.location = ""
	if cfg.Location == "" {
		return nil
	}
	if err := ValidateLocation(cfg.Location); err != nil {
		log.Error().Err(err).Str("location", cfg.Location).Msg("[sink] invalid location")
		return err
	}
	s.opts.Location = cfg.Location
	s.session.location = cfg.Location
	return nil
}

func (s *Sink) Location() string {
	return s.opts.Location
}

// Start 创建客户端, 第一个packet到来时立即建连
func (s *Sink) Start() error {
	if err := s.session.start(); err != nil {
		return err
	}
	s.reconnectionRequired = true
	s.tryNowConnection = true
	log.Info().Str("location", s.opts.Location).Str("session", s.session.id).Msg("[sink] started")
	return nil
}

// Stop 断开连接, 丢弃待合并的packet, 保留metadata. 可重复调用
func (s *Sink) Stop() error {
	if s.session.started() {
		log.Info().Str("location", s.opts.Location).Str("session", s.session.id).Msg("[sink] stopped")
	}
	s.session.stop()
	return nil
}

// Close 停止并清空已保存的metadata
func (s *Sink) Close() error {
	err := s.Stop()
	s.meta.reset()
	return err
}

func (s *Sink) WritePacket(pkt av.Packet) error {
	return s.Consume(pkt)
}

func (s *Sink) ConnectionStatus() Status {
	return s.connectionStatus
}

func (s *Sink) post(kind EventKind, ts time.Duration) {
	ev := newEvent(kind, ts, s.opts.Location, s.session.id)
	log.Debug().Str("event", string(kind)).Dur("ts", ts).Str("session", s.session.id).Msg("[sink] emitting event")
	s.opts.Flow.Event(string(kind))
	s.opts.Poster.Post(ev)
}

// Consume 处理一个packet. 只有配置错误, 不可重试的连接失败和写入错误会返回error,
// 其余断线都在内部重连, 期间的packet被丢弃.
func (s *Sink) Consume(pkt av.Packet) error {
	if s.connectionStatus != StatusNever {
		if kind, ok := s.meta.observe(pkt); ok {
			log.Debug().Str("kind", kind.String()).Int("size", len(pkt.Data)).Msg("[sink] saved metadata")
		}
	}

	if s.reconnectionRequired {
		return s.reconnect(pkt)
	}

	if s.session.pending.holding() {
		log.Trace().Int("size", len(pkt.Data)).Msg("[sink] joining packet to cached packet")
		pkt = s.session.pending.join(pkt)
	}

	if s.connectionStatus == StatusOK {
		out := s.session.write(pkt.Data)
		if out == writeRejected {
			return errs.Wrapf(errs.ErrWrite, "%d bytes at %s", len(pkt.Data), pkt.Time)
		}
		s.sentStatus = out.status()
		if out == writeOK {
			s.opts.Flow.Sent(pkt)
		} else {
			s.opts.Flow.Dropped(pkt)
		}
	} else {
		s.opts.Flow.Dropped(pkt)
	}

	if s.sentStatus == StatusFailed {
		log.Debug().Str("session", s.session.id).Int("errors", s.sendErrorCount+1).Msg("[sink] send error")
		s.sendErrorCount++
		s.reconnectionRequired = true
		s.beginTimeDisc = pkt.Time
		s.tryNowConnection = true
	}
	return nil
}

func (s *Sink) reconnect(pkt av.Packet) error {
	failed := s.sentStatus == StatusFailed || s.connectionStatus == StatusFailed
	if failed {
		s.endTimeDisc = pkt.Time
	}
	if !s.tryNowConnection && s.endTimeDisc-s.beginTimeDisc <= s.opts.ReconnectionDelay {
		s.opts.Flow.Dropped(pkt)
		return nil
	}

	log.Debug().Str("location", s.opts.Location).Msg("[sink] maybe disconnected from server, reconnecting to be sure")
	if failed {
		log.Debug().Str("session", s.session.id).Msg("[sink] reinitializing client")
		s.session.stop()
		if err := s.session.start(); err != nil {
			return err
		}
		s.beginTimeDisc = s.endTimeDisc
	}

	if !s.session.isConnected() {
		if err := s.session.connect(s.opts.TCPTimeout); err != nil {
			log.Warn().Err(err).Str("location", s.opts.Location).Msg("[sink] connection failed")
			s.session.release()
			s.tryNowConnection = false
			s.connectionStatus = StatusFailed
			s.sendErrorCount = 0
			if s.opts.ReconnectionDelay <= 0 {
				return errs.Wrapf(errs.ErrConnect, "%s: %v", s.opts.Location, err)
			}
			s.beginTimeDisc = pkt.Time
			if s.disconnectionNotified {
				s.post(EventDisconnected, s.beginTimeDisc)
				s.sentStatus = StatusNever
				s.disconnectionNotified = false
			}
			s.opts.Flow.Dropped(pkt)
			return nil
		}
		log.Info().Str("location", s.opts.Location).Str("session", s.session.id).Msg("[sink] opened connection")
	}

	s.session.pending.hold(pkt)
	s.reconnectionRequired = false
	if !s.disconnectionNotified {
		s.post(EventReconnected, s.beginTimeDisc)
		s.disconnectionNotified = true
	} else if s.sentStatus == StatusFailed && s.sendErrorCount >= 2 {
		log.Warn().Str("location", s.opts.Location).Int("errors", s.sendErrorCount).Msg("[sink] insufficient bandwidth")
		s.post(EventBandwidth, pkt.Time)
		s.sendErrorCount = 0
	}

	s.connectionStatus = StatusOK
	if out, wrote := s.meta.replay(s.session.write); wrote {
		log.Debug().Str("session", s.session.id).Msg("[sink] sent back stream metadata to the server")
		if out == writeRejected {
			return errs.Wrapf(errs.ErrWrite, "replay metadata")
		}
		s.connectionStatus = out.status()
		s.sentStatus = out.status()
	}
	return nil
}
