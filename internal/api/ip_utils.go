package api

import (
	"net"
	"net/http"
	"strings"
)

// 文档注释：获取访问者 IP（用于地名搜索的国家范围）
// 背景：多层代理环境下，优先常见反向代理头，最后回退远端地址。
// 约束：头部可被伪造，仅用于默认搜索范围这类非安全用途。
func getClientIP(r *http.Request) string {
	h := r.Header
	if x := h.Get("x-forwarded-for"); x != "" {
		return strings.TrimSpace(strings.Split(x, ",")[0])
	}
	if x := h.Get("cf-connecting-ip"); x != "" {
		return x
	}
	if x := h.Get("x-real-ip"); x != "" {
		return x
	}
	if x := h.Get("forwarded"); x != "" {
		if ip := forwardedFor(x); ip != "" {
			return ip
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// forwardedFor：取 RFC 7239 Forwarded 头中第一个 for= 节点；先按 ; , 截断再去引号，去掉 [v6]:port 与 v4:port 的端口
func forwardedFor(v string) string {
	i := strings.Index(strings.ToLower(v), "for=")
	if i < 0 {
		return ""
	}
	node := v[i+4:]
	if p := strings.IndexAny(node, ";,"); p >= 0 {
		node = node[:p]
	}
	node = strings.Trim(strings.TrimSpace(node), `"`)
	if strings.HasPrefix(node, "[") {
		if p := strings.IndexByte(node, ']'); p > 0 {
			return node[1:p]
		}
		return ""
	}
	if strings.Count(node, ":") == 1 {
		if host, _, err := net.SplitHostPort(node); err == nil {
			return host
		}
	}
	return node
}
