package av

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/bugVanisher/rtmpsink/utils"
)

type Options struct {
	AfterReadPacket  func(*Packet) error
	AfterWritePacket func(*Packet) error
}

type Option func(*Options)

func WithAfterReadPacket(f func(*Packet) error) Option {
	return func(opts *Options) {
		opts.AfterReadPacket = f
	}
}

func WithAfterWritePacket(f func(*Packet) error) Option {
	return func(opts *Options) {
		opts.AfterWritePacket = f
	}
}

// Transport 从高层次封装了packet传输
type Transport struct {
	opts       *Options
	pktCount   int64
	lastSendTs time.Time
}

// NewTransport 创建Transport实例
func NewTransport(opt ...Option) *Transport {
	t := &Transport{}
	opts := &Options{}
	for _, o := range opt {
		o(opts)
	}
	t.opts = opts
	t.lastSendTs = time.Now()
	return t
}

// PacketCount returns how many packets were written to dst so far.
func (t *Transport) PacketCount() int64 {
	return t.pktCount
}

// CopyPackets copies until src returns io.EOF, which is passed through so the
// caller can tell the end of a source from a failure.
func (t *Transport) CopyPackets(ctx context.Context, dst PacketWriter, src PacketReader) (err error) {
	for {
		t.lastSendTs = time.Now()
		if utils.ContextDone(ctx) {
			return fmt.Errorf("transport is canceled")
		}
		var pkt Packet
		if pkt, err = src.ReadPacket(); err != nil {
			if err == io.EOF {
				return io.EOF
			}
			return
		}
		if t.opts.AfterReadPacket != nil {
			if err = t.opts.AfterReadPacket(&pkt); err != nil {
				return err
			}
		}
		if err = dst.WritePacket(pkt); err != nil {
			return
		}
		t.pktCount++
		if t.opts.AfterWritePacket != nil {
			if err = t.opts.AfterWritePacket(&pkt); err != nil {
				return err
			}
		}
	}
}
