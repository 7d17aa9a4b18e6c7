package pusher

import "context"

// Pusher 阻塞推流直到结束或ctx取消
type Pusher interface {
	Publish(ctx context.Context) error
}
