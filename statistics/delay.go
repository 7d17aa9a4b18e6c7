package statistics

import (
	"fmt"
	"time"
)

const (
	DelayInterval = time.Second * 5
)

// Delay 墙上时间与媒体时间的差值, 正数表示发送落后于媒体时间
type Delay struct {
	delay    time.Duration
	interval time.Duration

	begin      time.Time
	firstPktTS time.Duration
}

func NewDelay() *Delay {
	return &Delay{
		interval: DelayInterval,
	}
}

func (d *Delay) Add(pktTS time.Duration) {
	d.AddAt(time.Now(), pktTS)
}

func (d *Delay) AddAt(now time.Time, pktTS time.Duration) {
	if d.begin.IsZero() {
		d.begin = now
		d.firstPktTS = pktTS
	}

	wnd := now.Sub(d.begin)
	if wnd > d.interval {
		d.delay = wnd - (pktTS - d.firstPktTS)
		d.begin = now
		d.firstPktTS = pktTS
	}
}

// GetDelay return ms
func (d *Delay) GetDelay() int64 {
	return d.delay.Milliseconds()
}

func (d *Delay) String() string {
	return fmt.Sprintf("%d ms", d.delay.Milliseconds())
}
