package statistics

import "time"

// Duration 累计发送的媒体时长, 单包间隔超过maxPacketDuration按上限计
type Duration struct {
	duration          time.Duration
	lastPktTs         time.Duration
	started           bool
	maxPacketDuration time.Duration
}

func NewDuration() *Duration {
	return &Duration{
		maxPacketDuration: 100 * time.Millisecond,
	}
}

func (d *Duration) Add(pktTS time.Duration) {
	if !d.started {
		d.started = true
		d.lastPktTs = pktTS
		return
	}
	switch {
	case pktTS <= d.lastPktTs:
	case pktTS-d.lastPktTs > d.maxPacketDuration:
		d.duration += d.maxPacketDuration
	default:
		d.duration += pktTS - d.lastPktTs
	}
	d.lastPktTs = pktTS
}

// GetDuration only call by stat once every period
func (d *Duration) GetDuration() time.Duration {
	tmp := d.duration
	d.duration = 0
	return tmp
}
