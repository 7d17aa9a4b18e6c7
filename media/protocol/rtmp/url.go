package rtmp

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/bugVanisher/rtmpsink/protocol/common"
	"github.com/bugVanisher/rtmpsink/utils"
)

// Protocols lists every scheme accepted as a destination.
var Protocols = []string{"rtmp", "rtmpt", "rtmps", "rtmpe", "rtmfp", "rtmpte", "rtmpts"}

// supportedProtocols are the schemes this client can actually publish to.
var supportedProtocols = map[string]bool{
	"rtmp":  true,
	"rtmps": true,
}

var defaultPorts = map[string]int{
	"rtmp":   1935,
	"rtmpe":  1935,
	"rtmfp":  1935,
	"rtmps":  443,
	"rtmpts": 443,
	"rtmpt":  80,
	"rtmpte": 80,
}

// IsProtocol reports whether scheme is one of Protocols.
func IsProtocol(scheme string) bool {
	scheme = strings.ToLower(scheme)
	for _, p := range Protocols {
		if p == scheme {
			return true
		}
	}
	return false
}

// IsSupported reports whether this client can publish to scheme.
func IsSupported(scheme string) bool {
	return supportedProtocols[strings.ToLower(scheme)]
}

// URL is a parsed locator: "scheme://host[:port]/app[/instance]/playpath"
// optionally followed by space separated key=value session options.
type URL struct {
	Protocol string
	Host     string // host:port
	App      string
	PlayPath string
	TcURL    string
	FlashVer string
	Live     bool
	Raw      string
	Extras   map[string]string
}

// ParseURL parses a locator. Host and playpath are mandatory.
func ParseURL(locator string) (u *URL, err error) {
	locator = strings.TrimSpace(locator)
	if locator == "" {
		err = fmt.Errorf("rtmp: empty url")
		return
	}

	fields := strings.Fields(locator)
	base := fields[0]

	var pu *url.URL
	if pu, err = url.Parse(base); err != nil {
		err = fmt.Errorf("rtmp: parse url %q: %s", base, err.Error())
		return
	}
	scheme := strings.ToLower(pu.Scheme)
	if !IsProtocol(scheme) {
		err = fmt.Errorf("rtmp: unknown protocol %q", pu.Scheme)
		return
	}
	if pu.Hostname() == "" {
		err = fmt.Errorf("rtmp: no hostname in url %q", base)
		return
	}

	u = &URL{
		Protocol: scheme,
		Host:     utils.RepairHostWithPort(pu.Host, defaultPorts[scheme]),
		Raw:      locator,
		Extras:   map[string]string{},
	}
	u.App, u.PlayPath = splitAppPlayPath(pu)

	for _, f := range fields[1:] {
		kv := strings.SplitN(f, "=", 2)
		if len(kv) != 2 {
			err = fmt.Errorf("rtmp: invalid option %q", f)
			return
		}
		key, val := strings.ToLower(kv[0]), kv[1]
		switch key {
		case "app":
			u.App = val
		case "playpath":
			u.PlayPath = val
		case "tcurl":
			u.TcURL = val
		case "flashver":
			u.FlashVer = val
		case "live":
			u.Live = val == "1" || strings.EqualFold(val, "true")
		default:
			u.Extras[key] = val
		}
	}

	if u.PlayPath == "" {
		err = fmt.Errorf("rtmp: no playpath in url %q", base)
		return
	}
	if u.TcURL == "" {
		tc := url.URL{Scheme: scheme, Host: pu.Host, Path: "/" + u.App}
		u.TcURL = tc.String()
	}
	return
}

// splitAppPlayPath keeps up to three leading path segments as the
// application ("app[/instance]") and the remainder as the playpath.
func splitAppPlayPath(pu *url.URL) (app, playpath string) {
	var segs []string
	for _, s := range strings.Split(pu.Path, "/") {
		if s != "" {
			segs = append(segs, s)
		}
	}
	if len(segs) == 0 {
		return
	}
	appSegs := len(segs) - 1
	if appSegs == 0 {
		appSegs = 1
	}
	if appSegs > 3 {
		appSegs = 3
	}
	app = strings.Join(segs[:appSegs], "/")
	playpath = strings.Join(segs[appSegs:], "/")
	playpath = strings.TrimSuffix(playpath, ".flv")
	if pu.RawQuery != "" && playpath != "" {
		playpath += "?" + pu.RawQuery
	}
	return
}

// Info describes the destination for logging and hooks.
func (u *URL) Info() common.Info {
	_, port, _ := net.SplitHostPort(u.Host)
	p, _ := strconv.Atoi(port)
	stream := strings.SplitN(u.PlayPath, "?", 2)[0]
	return common.Info{
		Protocol:   u.Protocol,
		Domain:     utils.PeelOffPort1935(u.Host),
		Port:       p,
		App:        u.App,
		StreamName: stream,
		ID:         utils.ExtractStreamID(stream),
		RawURL:     u.Raw,
	}
}
