package utils

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	txPrefix = "33872_"
)

// TimeToTs duration to timestamp
func TimeToTs(tm time.Duration) int32 {
	return int32(tm / time.Millisecond)
}

// TsToTime flv timestamp(millisecond) to duration
func TsToTime(ts int32) time.Duration {
	return time.Duration(ts) * time.Millisecond
}

// RepairHostWithPort 补全host的默认端口
func RepairHostWithPort(host string, port int) string {
	if _, _, err := net.SplitHostPort(host); err != nil {
		host = net.JoinHostPort(strings.Trim(host, "[]"), strconv.Itoa(port))
	}
	return host
}

// PeelOffPort1935 截取IP:1935为IP
func PeelOffPort1935(host string) string {
	if h, port, err := net.SplitHostPort(host); err == nil {
		if port == "1935" {
			return h
		}
	}
	return host
}

// ContextDone 判断一个context是否已经结束/取消/超时
func ContextDone(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

// PanicRecover panic恢复处理
func PanicRecover() {
	if r := recover(); r != nil {
		const size = 64 << 10
		buf := make([]byte, size)
		buf = buf[:runtime.Stack(buf, false)]
		log.Error().Str("stack", string(buf)).Any("error", r).Msg("panic recover")
	}
}

// ExtractStreamID 从streamName抽取streamID
func ExtractStreamID(streamName string) string {
	if strings.HasPrefix(streamName, txPrefix) {
		return streamName[len(txPrefix):]
	}
	return streamName
}

// HTTPPost 对http post请求的包装
func HTTPPost(cli *http.Client, url, data string) (string, error) {
	req, err := http.NewRequest(http.MethodPost, url, strings.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	response, err := cli.Do(req)
	if err != nil {
		return "", err
	}
	defer response.Body.Close()

	content, err := io.ReadAll(response.Body)
	if err != nil {
		return "", err
	}

	if response.StatusCode != http.StatusOK {
		return string(content), fmt.Errorf("http post %s: status %d", url, response.StatusCode)
	}

	return string(content), nil
}

func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
