package pusher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bugVanisher/rtmpsink/common/errs"
	"github.com/rs/zerolog/log"
)

type upStreamerManager struct {
	streams sync.Map
}

type upStreamInfo struct {
	pusher   Pusher
	duration time.Duration
	cancel   context.CancelFunc
}

var UpStreamerManager = &upStreamerManager{streams: sync.Map{}}

// Launch 以name注册并阻塞推流, duration后自动结束, duration<=0时不限时长
func Launch(name string, pusher Pusher, duration time.Duration) error {
	var ctx context.Context
	var ctxCancel context.CancelFunc
	if duration > 0 {
		ctx, ctxCancel = context.WithTimeout(context.Background(), duration)
	} else {
		ctx, ctxCancel = context.WithCancel(context.Background())
	}
	defer ctxCancel()

	info := upStreamInfo{
		pusher:   pusher,
		duration: duration,
		cancel:   ctxCancel,
	}
	if _, loaded := UpStreamerManager.streams.LoadOrStore(name, info); loaded {
		return errs.ErrDuplicateStream
	}
	defer UpStreamerManager.streams.Delete(name)

	log.Info().Str("name", name).Dur("duration", duration).Msg("[pusher] launch")
	// publish will block
	return pusher.Publish(ctx)
}

func Stop(name string) error {
	info, ok := UpStreamerManager.streams.Load(name)
	if !ok {
		return errs.ErrStreamNotExist
	}
	info.(upStreamInfo).cancel()
	return nil
}

func StopAll() {
	UpStreamerManager.streams.Range(func(key, value interface{}) bool {
		pushInfo := value.(upStreamInfo)
		pushInfo.cancel()
		return true
	})
}

func GetAllStreamInfos() (infos []string) {
	UpStreamerManager.streams.Range(func(key, value interface{}) bool {
		name := key.(string)
		pushInfo := value.(upStreamInfo)
		infos = append(infos, fmt.Sprintf("%s-%s", name, pushInfo.duration))
		return true
	})
	return infos
}
