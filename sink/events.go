package sink

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type EventKind string

const (
	EventDisconnected EventKind = "disconnected"
	EventReconnected  EventKind = "reconnected"
	EventBandwidth    EventKind = "bandwidth" // 带宽不足
)

// Event 连接状态事件, Timestamp是媒体时间
type Event struct {
	ID        string        `json:"id"`
	Kind      EventKind     `json:"kind"`
	Timestamp time.Duration `json:"timestamp"`
	Location  string        `json:"location"`
	Session   string        `json:"session"`
	PostedAt  time.Time     `json:"posted_at"`
}

func newEvent(kind EventKind, ts time.Duration, location, session string) Event {
	return Event{
		ID:        uuid.NewString(),
		Kind:      kind,
		Timestamp: ts,
		Location:  location,
		Session:   session,
		PostedAt:  time.Now(),
	}
}

// Poster 接收sink发出的事件, 不能阻塞调用方
type Poster interface {
	Post(ev Event)
}

type PosterFunc func(ev Event)

func (f PosterFunc) Post(ev Event) {
	f(ev)
}

// ChanPoster 投递到带缓冲的channel, 满了就丢弃
type ChanPoster chan Event

func NewChanPoster(size int) ChanPoster {
	return make(ChanPoster, size)
}

func (c ChanPoster) Post(ev Event) {
	select {
	case c <- ev:
	default:
	}
}

type MultiPoster []Poster

func (m MultiPoster) Post(ev Event) {
	for _, p := range m {
		if p != nil {
			p.Post(ev)
		}
	}
}

// LogPoster 把事件写到日志
type LogPoster struct {
	Logger zerolog.Logger
}

func (l LogPoster) Post(ev Event) {
	e := l.Logger.Warn()
	if ev.Kind == EventReconnected {
		e = l.Logger.Info()
	}
	e.Str("event", string(ev.Kind)).
		Dur("ts", ev.Timestamp).
		Str("location", ev.Location).
		Str("session", ev.Session).
		Msg("[sink] connection event")
}

type nopPoster struct{}

func (nopPoster) Post(Event) {}
