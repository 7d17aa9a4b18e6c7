package statistics

import (
	"time"
)

/*
周期统计工具,滚动统计周期内的数值,统计周期精确到秒

TODO 在统计初期，没有完整周期数据的时候，统计的平均值会偏小，待优化
*/

// PeriodicStatistic 周期统计工具,滚动统计周期内数据的最大、最小、平均值.
// 本身不加锁, 由调用方(Flow)保证并发安全
type PeriodicStatistic struct {
	gridNum    int64
	gridPeriod int64
	dataGrid   []int64

	avg int64
	max int64
	min int64
	sum int64

	lastIdx      int64
	lastStatTime int64

	now func() int64 // 秒级时间, 测试时可替换
}

const (
	DefaultStatGridNum = int64(5)
)

func unixNow() int64 {
	return time.Now().Unix()
}

// NewPeriodicStatistic 创建周期统计对象, gridNum统计格子数量, gridPeriod格子时间长度,单位秒
func NewPeriodicStatistic(gridNum, gridPeriod int64) *PeriodicStatistic {
	return &PeriodicStatistic{
		gridNum:    gridNum + 1,
		gridPeriod: gridPeriod,
		dataGrid:   make([]int64, gridNum+1),
		now:        unixNow,
	}
}

func (p *PeriodicStatistic) window() int64 {
	return p.gridNum * p.gridPeriod
}

func (p *PeriodicStatistic) expired() bool {
	return p.now() > p.lastStatTime+p.window()
}

func (p *PeriodicStatistic) record(val int64) {
	if val > p.max {
		p.max = val
	}
	if val < p.min {
		p.min = val
	}
}

// Stat 添加统计值
func (p *PeriodicStatistic) Stat(val int64) {
	now := p.now()
	idx := now % p.window() / p.gridPeriod

	switch {
	case now >= p.lastStatTime+p.window():
		//1 本次统计距上次已经超时 清空所有数据
		for i := range p.dataGrid {
			p.dataGrid[i] = 0
		}
		p.dataGrid[idx] = val
		p.sum = val
		p.max = val
		p.min = val

	case idx == p.lastIdx && now-p.lastStatTime <= p.gridPeriod:
		//2 跟上次统计落在同个格子
		p.dataGrid[idx] += val
		p.sum += val
		p.record(val)

	default:
		//3 当前格子跟上一次不同，中间可能跳过若干个格子
		virtualPos := idx
		if virtualPos <= p.lastIdx {
			virtualPos += p.gridNum
		}
		for i := p.lastIdx + 1; i <= virtualPos; i++ {
			actualPos := i % p.gridNum
			p.sum -= p.dataGrid[actualPos]
			p.dataGrid[actualPos] = 0
		}
		p.dataGrid[idx] += val
		p.sum += val
		p.record(val)
	}

	p.lastIdx = idx
	p.avg = p.calcAvg()
	p.lastStatTime = now
}

func (p *PeriodicStatistic) calcAvg() int64 {
	//计算平均值时，去掉未写完的格子
	return (p.sum - p.dataGrid[p.lastIdx]) / (p.gridNum - 1)
}

// Avg 统计平均值
func (p *PeriodicStatistic) Avg() int64 {
	if p.expired() {
		return 0
	}
	return p.avg
}

// Max 统计最大值
func (p *PeriodicStatistic) Max() int64 {
	if p.expired() {
		return 0
	}
	return p.max
}

// Min 统计最小值
func (p *PeriodicStatistic) Min() int64 {
	if p.expired() {
		return 0
	}
	return p.min
}

// Sum 统计总数
func (p *PeriodicStatistic) Sum() int64 {
	if p.expired() {
		return 0
	}
	return p.sum
}
