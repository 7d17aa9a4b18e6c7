package pusher

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/bugVanisher/rtmpsink/common/errs"
	"github.com/bugVanisher/rtmpsink/media/av"
	"github.com/bugVanisher/rtmpsink/media/container/flv"
	"github.com/bugVanisher/rtmpsink/utils"
	"github.com/nareix/joy4/utils/bits/pio"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Sink 是FlvPusher驱动的输出端
type Sink interface {
	Start() error
	WritePacket(pkt av.Packet) error
	Stop() error
}

type Options struct {
	Rounds   int           // 循环次数, 0为无限循环
	Realtime bool          // 按媒体时间匀速发送
	FrameGap time.Duration // 两轮之间的时间间隔
}

type Option func(*Options)

func WithRounds(n int) Option {
	return func(opts *Options) {
		opts.Rounds = n
	}
}

func WithRealtime(realtime bool) Option {
	return func(opts *Options) {
		opts.Realtime = realtime
	}
}

func WithFrameGap(gap time.Duration) Option {
	return func(opts *Options) {
		opts.FrameGap = gap
	}
}

// FlvPusher 循环读取flv文件推给sink, 每轮的时间戳接着上一轮递增
type FlvPusher struct {
	sink     Sink
	filename string
	opts     Options
}

func NewFlvPusher(sink Sink, filename string, opt ...Option) *FlvPusher {
	opts := Options{
		Realtime: true,
		FrameGap: 40 * time.Millisecond,
	}
	for _, o := range opt {
		o(&opts)
	}
	return &FlvPusher{
		sink:     sink,
		filename: filename,
		opts:     opts,
	}
}

func (p *FlvPusher) Publish(ctx context.Context) (err error) {
	if !utils.FileExists(p.filename) {
		return errs.Wrapf(errs.ErrFileNotExist, "flv file %s", p.filename)
	}
	if err = p.sink.Start(); err != nil {
		log.Error().Err(err).Msg("sink start error")
		return
	}
	defer p.sink.Stop()

	var base, last time.Duration
	tags, sent := 0, 0
	clock := &wallClock{ctx: ctx, enabled: p.opts.Realtime}
	t := av.NewTransport(
		av.WithAfterReadPacket(func(pkt *av.Packet) error {
			pkt.Time += base
			if pkt.Time > last {
				last = pkt.Time
			}
			if rewriteTagTime(pkt) {
				tags++
			}
			return clock.wait(pkt.Time)
		}),
		av.WithAfterWritePacket(func(pkt *av.Packet) error {
			sent++
			if sent%1000 == 0 {
				log.Debug().Msgf("send packet count %d", sent)
			}
			return nil
		}),
	)

	for round := 1; p.opts.Rounds <= 0 || round <= p.opts.Rounds; round++ {
		before := tags
		err = p.pushFile(ctx, t)
		if utils.ContextDone(ctx) {
			return nil
		}
		if err != io.EOF {
			log.Error().Err(err).Int("round", round).Msg("push flv error")
			return
		}
		if tags == before {
			return errors.Errorf("flv file %s has no tag", p.filename)
		}
		log.Debug().Msgf("has read %d round", round)
		base = last + p.opts.FrameGap
	}
	return nil
}

func (p *FlvPusher) pushFile(ctx context.Context, t *av.Transport) error {
	file, err := os.Open(p.filename)
	if err != nil {
		return errors.Wrap(err, "open file error")
	}
	defer file.Close()
	return t.CopyPackets(ctx, p.sink, flv.NewReader(file))
}

// rewriteTagTime 把packet时间写回tag头, 非tag返回false
func rewriteTagTime(pkt *av.Packet) bool {
	if len(pkt.Data) < 11 || !(pkt.IsAudio() || pkt.IsVideo() || pkt.IsScriptData()) {
		return false
	}
	ts := uint32(utils.TimeToTs(pkt.Time))
	pio.PutU24BE(pkt.Data[4:7], ts&0xffffff)
	pkt.Data[7] = byte(ts >> 24)
	return true
}

// wallClock 让发送速度跟随媒体时间
type wallClock struct {
	ctx     context.Context
	enabled bool
	started bool
	start   time.Time
	first   time.Duration
}

func (c *wallClock) wait(ts time.Duration) error {
	if !c.enabled {
		return nil
	}
	if !c.started {
		c.started = true
		c.start = time.Now()
		c.first = ts
		return nil
	}
	d := time.Until(c.start.Add(ts - c.first))
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-c.ctx.Done():
		return c.ctx.Err()
	case <-timer.C:
		return nil
	}
}
