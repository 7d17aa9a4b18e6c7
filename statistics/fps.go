package statistics

import (
	"fmt"
	"time"
)

// FPS 包速率统计, 每秒的tag数
type FPS struct {
	fps      uint32
	interval time.Duration

	frameCount int64
	beginTS    time.Time
}

// NewFPS 创建FPS实例
func NewFPS() *FPS {
	return &FPS{
		interval: time.Second,
	}
}

// Add ...
func (f *FPS) Add() {
	f.AddAt(time.Now())
}

// AddAt 以指定时间累加一帧
func (f *FPS) AddAt(now time.Time) {
	if f.beginTS.IsZero() {
		f.beginTS = now
	}
	f.frameCount++
	d := now.Sub(f.beginTS)
	if d >= f.interval {
		f.fps = uint32(f.frameCount * int64(time.Second) / int64(d))
		f.frameCount = 0
		f.beginTS = now
	}
}

// GetFPS ...
func (f *FPS) GetFPS() uint32 {
	return f.fps
}

func (f *FPS) String() string {
	return fmt.Sprintf("%d", f.fps)
}
