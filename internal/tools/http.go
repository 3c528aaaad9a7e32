package tools

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/dnscache"

	"github.com/hostbridge/hostbridge/internal/cache"
	"github.com/hostbridge/hostbridge/internal/config"
	"github.com/hostbridge/hostbridge/internal/errs"
)

// cachedGET is what the GET response cache stores.
type cachedGET struct {
	StatusCode int
	Body       string
	Headers    map[string]string
}

// HTTP implements outbound HTTP egress with a DNS-rebinding-resistant
// dialer (dnscache pins the resolved address used for the TCP connection
// to the address the SSRF guard actually inspected), domain allow/block
// lists, and a small response cache for repeated GETs.
type HTTP struct {
	cfg      config.HTTPConfig
	resolver *dnscache.Resolver
	client   *http.Client
	getCache *cache.Cache[string, cachedGET]
}

// NewHTTP creates an HTTP handler set governed by cfg.
func NewHTTP(cfg config.HTTPConfig) *HTTP {
	h := &HTTP{
		cfg:      cfg,
		resolver: &dnscache.Resolver{},
		getCache: cache.New[string, cachedGET](256, 30*time.Second),
	}

	dialer := &net.Dialer{Timeout: 10 * time.Second}
	transport := &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			host, port, err := net.SplitHostPort(addr)
			if err != nil {
				return nil, err
			}
			ips, err := h.resolver.LookupHost(ctx, host)
			if err != nil {
				return nil, err
			}
			if len(ips) == 0 {
				return nil, errs.Newf(errs.KindSecurity, "no addresses resolved for %q", host)
			}
			for _, ip := range ips {
				if blocked, reason := h.blockedIP(net.ParseIP(ip)); blocked {
					return nil, errs.New(errs.KindSecurity, reason)
				}
			}
			return dialer.DialContext(ctx, network, net.JoinHostPort(ips[0], port))
		},
	}
	h.client = &http.Client{Transport: transport}

	go h.resolver.Refresh(false)
	return h
}

func (h *HTTP) blockedIP(ip net.IP) (bool, string) {
	if ip == nil {
		return true, "address did not parse as an IP"
	}
	if h.cfg.BlockMetadataEndpoints && ip.Equal(net.ParseIP("169.254.169.254")) {
		return true, "request targets the cloud metadata endpoint"
	}
	if h.cfg.BlockPrivateIPs && (ip.IsPrivate() || ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast()) {
		return true, "request targets a private, loopback, or link-local address"
	}
	return false, ""
}

func (h *HTTP) checkDomain(host string) error {
	if len(h.cfg.AllowDomains) > 0 {
		allowed := false
		for _, pat := range h.cfg.AllowDomains {
			if domainMatch(pat, host) {
				allowed = true
				break
			}
		}
		if !allowed {
			return errs.Newf(errs.KindBlocked, "domain %q is not in the allowlist", host)
		}
	}
	for _, pat := range h.cfg.BlockDomains {
		if domainMatch(pat, host) {
			return errs.Newf(errs.KindBlocked, "domain %q is denylisted", host)
		}
	}
	return nil
}

func domainMatch(pattern, host string) bool {
	ok, err := filepath.Match(pattern, host)
	return err == nil && (ok || pattern == host)
}

func (h *HTTP) timeoutFor(params map[string]any) time.Duration {
	secs := h.cfg.DefaultTimeoutSec
	if v, ok := params["timeout_seconds"].(float64); ok && v > 0 {
		secs = int(v)
	}
	if secs > h.cfg.MaxTimeoutSec {
		secs = h.cfg.MaxTimeoutSec
	}
	if secs <= 0 {
		secs = 10
	}
	return time.Duration(secs) * time.Second
}

func (h *HTTP) maxResponseBytes() int64 {
	kb := h.cfg.MaxResponseSizeKB
	if kb <= 0 {
		kb = 512
	}
	return int64(kb) * 1024
}

// Get issues a cached GET request. Identical urls within the cache TTL
// return the stored response without a network round trip.
func (h *HTTP) Get(ctx context.Context, params map[string]any) (any, error) {
	raw, err := stringParam(params, "url")
	if err != nil {
		return nil, err
	}
	if cached, ok := h.getCache.Get(raw); ok {
		return map[string]any{"status_code": cached.StatusCode, "body": cached.Body, "headers": cached.Headers, "cached": true}, nil
	}

	result, err := h.do(ctx, "GET", raw, "", nil, h.timeoutFor(params))
	if err != nil {
		return nil, err
	}
	h.getCache.Set(raw, cachedGET{StatusCode: result.StatusCode, Body: result.Body, Headers: result.Headers})
	return map[string]any{"status_code": result.StatusCode, "body": result.Body, "headers": result.Headers, "cached": false}, nil
}

// Request issues an arbitrary-method HTTP request; never cached.
func (h *HTTP) Request(ctx context.Context, params map[string]any) (any, error) {
	raw, err := stringParam(params, "url")
	if err != nil {
		return nil, err
	}
	method, _ := params["method"].(string)
	if method == "" {
		method = "GET"
	}
	body, _ := params["body"].(string)
	headers, _ := params["headers"].(map[string]any)

	result, err := h.do(ctx, strings.ToUpper(method), raw, body, headers, h.timeoutFor(params))
	if err != nil {
		return nil, err
	}
	return map[string]any{"status_code": result.StatusCode, "body": result.Body, "headers": result.Headers}, nil
}

type httpResult struct {
	StatusCode int
	Body       string
	Headers    map[string]string
}

func (h *HTTP) do(ctx context.Context, method, raw, body string, headers map[string]any, timeout time.Duration) (*httpResult, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, errs.Newf(errs.KindInvalidParam, "invalid url: %v", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errs.Newf(errs.KindInvalidParam, "unsupported url scheme %q", u.Scheme)
	}
	if err := h.checkDomain(u.Hostname()); err != nil {
		return nil, err
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var bodyReader io.Reader
	if body != "" {
		bodyReader = bytes.NewBufferString(body)
	}
	req, err := http.NewRequestWithContext(reqCtx, method, raw, bodyReader)
	if err != nil {
		return nil, errs.Newf(errs.KindInvalidParam, "build request: %v", err)
	}
	for k, v := range headers {
		if s, ok := v.(string); ok {
			req.Header.Set(k, s)
		}
	}

	resp, err := h.client.Do(req)
	if err != nil {
		var ce *errs.Error
		if errors.As(err, &ce) {
			return nil, ce
		}
		if reqCtx.Err() == context.DeadlineExceeded {
			return nil, errs.Newf(errs.KindTimeout, "request to %q timed out", raw)
		}
		return nil, errs.Newf(errs.KindInternal, "request failed: %v", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, h.maxResponseBytes()))
	if err != nil {
		return nil, errs.Newf(errs.KindInternal, "read response: %v", err)
	}

	hdrs := make(map[string]string, len(resp.Header))
	for k := range resp.Header {
		hdrs[k] = resp.Header.Get(k)
	}
	return &httpResult{StatusCode: resp.StatusCode, Body: string(data), Headers: hdrs}, nil
}
