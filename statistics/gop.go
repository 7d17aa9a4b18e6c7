package statistics

import (
	"fmt"
	"time"

	"github.com/bugVanisher/rtmpsink/media/av"
)

// Gop 两个关键帧之间的媒体时长
type Gop struct {
	gop          time.Duration
	lastKeyPktTS time.Duration
	seen         bool
}

// NewGop ...
func NewGop() *Gop {
	return &Gop{}
}

// Add ...
func (g *Gop) Add(pkt av.Packet) {
	if !pkt.IsKeyFrame() {
		return
	}
	if g.seen {
		g.gop = pkt.Time - g.lastKeyPktTS
	}
	g.seen = true
	g.lastKeyPktTS = pkt.Time
}

// GetGop 单位秒
func (g *Gop) GetGop() float64 {
	return g.gop.Seconds()
}

func (g *Gop) String() string {
	return fmt.Sprintf("%.2f s", g.GetGop())
}
