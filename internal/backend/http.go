package backend

import (
	"context"
	"io"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/proxy"

	"github.com/August26/proxytest-go/internal/model"
)

// MaxBodyBytes caps how much of a response body is kept.
const MaxBodyBytes = 1 << 20

// HTTPBackend fetches with net/http. The pooled variant ("http") caches one
// transport per proxy so repetitions reuse connections; the unpooled variant
// ("simple") builds a throwaway transport for every fetch.
type HTTPBackend struct {
	name   string
	pooled bool

	mu         sync.Mutex
	transports map[string]*http.Transport
}

func NewHTTP() *HTTPBackend {
	return &HTTPBackend{name: "http", pooled: true, transports: make(map[string]*http.Transport)}
}

func NewSimple() *HTTPBackend {
	return &HTTPBackend{name: "simple"}
}

func (b *HTTPBackend) Name() string { return b.name }

func (b *HTTPBackend) Fetch(ctx context.Context, req Request) model.FetchResult {
	tr, err := b.transport(req.Proxy)
	if err != nil {
		return model.Failed(model.ErrOther, "client_build_error: %v", err)
	}
	if !b.pooled {
		defer tr.CloseIdleConnections()
	}

	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	hreq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return model.Failed(model.ErrOther, "build request: %v", err)
	}
	if req.UserAgent != "" {
		hreq.Header.Set("User-Agent", req.UserAgent)
	}

	// We don't set Client.Timeout because the request context carries the deadline.
	client := &http.Client{Transport: tr}
	resp, err := client.Do(hreq)
	if err != nil {
		return failure(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return statusFailure(resp)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodyBytes))
	if err != nil {
		return failure(err)
	}
	return model.Succeeded(resp.StatusCode, resp.Header.Clone(), body)
}

// Close drops idle pooled connections.
func (b *HTTPBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, tr := range b.transports {
		tr.CloseIdleConnections()
	}
	return nil
}

func (b *HTTPBackend) transport(target *model.ProxyTarget) (*http.Transport, error) {
	if !b.pooled {
		return newTransport(target, false)
	}
	key := model.NoProxy
	if target != nil && !target.Direct {
		key = target.URL().String()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if tr, ok := b.transports[key]; ok {
		return tr, nil
	}
	tr, err := newTransport(target, true)
	if err != nil {
		return nil, err
	}
	b.transports[key] = tr
	return tr, nil
}

// newTransport builds a transport that tunnels through target: HTTP(S)
// proxies via CONNECT / absolute-form requests, SOCKS5 via a proxy dialer.
func newTransport(target *model.ProxyTarget, keepAlive bool) (*http.Transport, error) {
	base := &net.Dialer{
		Timeout:   5 * time.Second, // final timeout enforced by ctx too
		KeepAlive: 30 * time.Second,
	}
	tr := &http.Transport{
		DialContext:           base.DialContext,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		DisableKeepAlives:     !keepAlive,
		MaxIdleConnsPerHost:   4,
	}

	if target != nil && !target.Direct {
		switch target.Scheme {
		case "socks5":
			dial, err := socks5DialContext(target, base)
			if err != nil {
				return nil, err
			}
			tr.DialContext = dial
		default:
			tr.Proxy = http.ProxyURL(target.URL())
		}
	}

	if keepAlive {
		if err := http2.ConfigureTransport(tr); err != nil {
			return nil, err
		}
	}
	return tr, nil
}

func socks5DialContext(target *model.ProxyTarget, forward *net.Dialer) (func(ctx context.Context, network, addr string) (net.Conn, error), error) {
	var auth *proxy.Auth
	if target.Username != "" || target.Password != "" {
		auth = &proxy.Auth{User: target.Username, Password: target.Password}
	}
	addr := net.JoinHostPort(target.Host, strconv.Itoa(target.Port))
	dialer, err := proxy.SOCKS5("tcp", addr, auth, forward)
	if err != nil {
		return nil, err
	}
	if cd, ok := dialer.(proxy.ContextDialer); ok {
		return cd.DialContext, nil
	}
	// Older dialers only implement Dial; the request context still bounds the fetch.
	return func(_ context.Context, network, addr string) (net.Conn, error) {
		return dialer.Dial(network, addr)
	}, nil
}
