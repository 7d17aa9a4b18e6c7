package statistics

import (
	"fmt"
)

// Bitrate 码率统计对象, 单位bit
type Bitrate struct {
	statistic *PeriodicStatistic
}

// NewBitrate ...
func NewBitrate() *Bitrate {
	return &Bitrate{
		statistic: NewPeriodicStatistic(DefaultStatGridNum, 1),
	}
}

// AddBytes 按字节数累加
func (b *Bitrate) AddBytes(n int) {
	b.statistic.Stat(int64(n) * 8)
}

// GetBitrate 周期内平均码率, bit/s
func (b *Bitrate) GetBitrate() uint64 {
	return uint64(b.statistic.Avg())
}

// GetBitTotal ...
func (b *Bitrate) GetBitTotal() uint64 {
	return uint64(b.statistic.Sum())
}

func (b *Bitrate) String() string {
	return fmt.Sprintf("%dkb/s", b.statistic.Avg()/1024)
}
