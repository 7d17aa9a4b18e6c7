package rtmp

import (
	"time"

	"github.com/bugVanisher/rtmpsink/protocol/common"
)

// Publisher 包装了rtmp推流的基础接口
type Publisher interface {
	SetupURL(uri string) error
	Connect(timeout time.Duration) error // 建连, 握手, 执行connect/createStream/publish命令
	IsConnected() bool
	Write(b []byte) (int, error) // 写入flv字节流
	Close() error

	Info() common.Info
	RemoteAddr() string
	TxBytes() uint64
}
