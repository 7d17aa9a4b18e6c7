package hook

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/bugVanisher/rtmpsink/media/protocol/rtmp"
	"github.com/bugVanisher/rtmpsink/sink"
	"github.com/bugVanisher/rtmpsink/utils"
	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog/log"
)

const (
	HookEventQueueLen  = 1000
	HookEventWorkerNum = 4
)

// HookData 回调的请求体
type HookData struct {
	Action    string `json:"action"`
	ID        string `json:"id"`
	Timestamp int64  `json:"timestamp"` // 媒体时间, 毫秒
	Domain    string `json:"domain"`
	App       string `json:"app"`
	Stream    string `json:"stream"`
	URL       string `json:"url"`
	Session   string `json:"session"`
	PostedAt  int64  `json:"posted_at"` // unix毫秒
}

// Poster 把sink事件异步POST到http回调地址, 队列满时丢弃
type Poster struct {
	url    string
	ctx    context.Context
	queue  chan sink.Event
	client *http.Client
	wg     sync.WaitGroup
}

type Option func(*Poster)

func WithHTTPClient(cli *http.Client) Option {
	return func(p *Poster) {
		p.client = cli
	}
}

func WithQueueLen(n int) Option {
	return func(p *Poster) {
		p.queue = make(chan sink.Event, n)
	}
}

// NewPoster 启动回调协程, ctx结束后协程退出
func NewPoster(ctx context.Context, url string, opt ...Option) *Poster {
	p := &Poster{
		url:   url,
		ctx:   ctx,
		queue: make(chan sink.Event, HookEventQueueLen),
	}
	for _, o := range opt {
		o(p)
	}
	if p.client == nil {
		p.client = createHTTPClient()
	}
	for i := 0; i < HookEventWorkerNum; i++ {
		p.wg.Add(1)
		go p.run()
	}
	return p
}

func (p *Poster) Post(ev sink.Event) {
	if utils.ContextDone(p.ctx) {
		return
	}
	select {
	case p.queue <- ev:
	default:
		log.Warn().Str("url", p.url).Str("event", string(ev.Kind)).Msg("[hook] queue full, drop event")
	}
}

// Wait 等待所有回调协程退出
func (p *Poster) Wait() {
	p.wg.Wait()
}

func (p *Poster) run() {
	defer p.wg.Done()
	defer utils.PanicRecover()
	for {
		select {
		case <-p.ctx.Done():
			return
		case ev := <-p.queue:
			if err := p.handleHook(ev); err != nil {
				log.Error().Err(err).Str("url", p.url).Msg("[hook] handleHook fail")
			}
		}
	}
}

func (p *Poster) handleHook(ev sink.Event) error {
	data, err := jsoniter.Marshal(newHookData(ev))
	if err != nil {
		return err
	}

	log.Info().Str("url", p.url).Str("data", string(data)).Msg("[hook] handleHook")
	_, err = utils.HTTPPost(p.client, p.url, string(data))
	return err
}

func newHookData(ev sink.Event) HookData {
	d := HookData{
		Action:    "on_" + string(ev.Kind),
		ID:        ev.ID,
		Timestamp: ev.Timestamp.Milliseconds(),
		URL:       ev.Location,
		Session:   ev.Session,
		PostedAt:  ev.PostedAt.UnixMilli(),
	}
	if u, err := rtmp.ParseURL(ev.Location); err == nil {
		info := u.Info()
		d.Domain = info.Domain
		d.App = info.App
		d.Stream = info.StreamName
	}
	return d
}

func createHTTPClient() *http.Client {
	client := &http.Client{
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   3 * time.Second, // 连接超时时间
				KeepAlive: 3 * time.Second, // 发送keepalive报文的间隔时间
			}).DialContext,
			MaxIdleConns:          10,                      // 最大空闲连接数
			MaxIdleConnsPerHost:   10,                      // 每个host保持的空闲连接数
			MaxConnsPerHost:       10,                      // 每个host最大连接数
			IdleConnTimeout:       90 * time.Second,        // 空闲连接的超时时间, 超时自动关闭连接
			ExpectContinueTimeout: 1000 * time.Millisecond, // 等待服务第一个响应的超时时间
		},
		Timeout: 1000 * time.Millisecond,
	}
	return client
}
