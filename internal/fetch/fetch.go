// 包 fetch 封装 HTTP 客户端（代理/超时/重试），供远端 API 与素材下载共用。
// 重试只针对瞬时故障：网络错误、429、5xx；其它 4xx 立即返回。
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/sethvargo/go-retry"
)

const defaultUA = "swan-sync/1.0 (+https://github.com/go-swan)"

// Client 为带重试的 HTTP 客户端，可并发使用。
type Client struct {
	http    *http.Client
	retry   int
	backoff time.Duration
	ua      string
}

// Options 为客户端构造参数。
type Options struct {
	ProxyHTTP  string
	ProxyHTTPS string
	Timeout    time.Duration
	Retry      int
	// Backoff 为指数退避的初始间隔，默认 300ms
	Backoff   time.Duration
	UserAgent string
}

// StatusError 表示非 2xx 响应，Body 已读出（最多 64KB）以便上层解析错误体。
type StatusError struct {
	StatusCode int
	Status     string
	Body       []byte
}

func (e *StatusError) Error() string { return "http status: " + e.Status }

// Transient 判断该状态码是否值得重试。
func (e *StatusError) Transient() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// New 创建客户端，支持 http/https 代理与基础超时配置。
func New(opts Options) (*Client, error) {
	transport := &http.Transport{
		Proxy: func(req *http.Request) (*url.URL, error) {
			if req.URL.Scheme == "https" && opts.ProxyHTTPS != "" {
				return url.Parse(opts.ProxyHTTPS)
			}
			if req.URL.Scheme == "http" && opts.ProxyHTTP != "" {
				return url.Parse(opts.ProxyHTTP)
			}
			return http.ProxyFromEnvironment(req)
		},
		DialContext:           (&net.Dialer{Timeout: 10 * time.Second}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 20 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConnsPerHost:   8,
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Retry < 0 {
		opts.Retry = 0
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 300 * time.Millisecond
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = os.Getenv("SWAN_UA")
	}
	if ua == "" {
		ua = defaultUA
	}
	cl := &http.Client{Transport: transport, Timeout: opts.Timeout}
	return &Client{http: cl, retry: opts.Retry, backoff: opts.Backoff, ua: ua}, nil
}

// Do 发送请求并按指数退避重试瞬时故障。
// newReq 每次尝试都会被调用，以便请求体可重放；成功时由调用方关闭 resp.Body。
func (c *Client) Do(ctx context.Context, newReq func(ctx context.Context) (*http.Request, error)) (*http.Response, error) {
	b := retry.NewExponential(c.backoff)
	b = retry.WithCappedDuration(10*time.Second, b)
	b = retry.WithMaxRetries(uint64(c.retry), b)

	var out *http.Response
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		req, err := newReq(ctx)
		if err != nil {
			return fmt.Errorf("new request: %w", err)
		}
		if req.Header.Get("User-Agent") == "" {
			req.Header.Set("User-Agent", c.ua)
		}
		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return retry.RetryableError(err)
		}
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			out = resp
			return nil
		}
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		resp.Body.Close()
		se := &StatusError{StatusCode: resp.StatusCode, Status: resp.Status, Body: body}
		if se.Transient() {
			return retry.RetryableError(se)
		}
		return se
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Get 为 GET 请求的便捷封装。
func (c *Client) Get(ctx context.Context, rawURL string) (*http.Response, error) {
	return c.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	})
}

// IsStatus 判断 err 是否为指定状态码的 StatusError。
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}
