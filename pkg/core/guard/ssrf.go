// Package guard 提供统一的SSRF防护
// HTTP动作节点、集成探测与沙箱抓取共用同一份实现
package guard

import (
	"fmt"
	"net"
	"net/netip"
	"net/url"
	"strings"

	"github.com/aliciakaith/flowgrid/pkg/apperr"
)

// 拒绝的网段：回环、RFC1918私网、链路本地
var blockedPrefixes = []netip.Prefix{
	netip.MustParsePrefix("127.0.0.0/8"),
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("192.168.0.0/16"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("169.254.0.0/16"),
	netip.MustParsePrefix("::1/128"),
}

// Guard SSRF防护（对外导出）
// AllowPrivate 仅供测试环境放行本地地址，生产配置保持false
type Guard struct {
	AllowPrivate bool
}

// CheckURL 校验目标URL（对外导出）
// DNS解析前先查host字面量，解析后再逐IP复查
func (g *Guard) CheckURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return apperr.Wrap(apperr.Validation, "invalid_url", "URL解析失败", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return apperr.E(apperr.Validation, "invalid_scheme", fmt.Sprintf("不允许的scheme: %s", u.Scheme))
	}

	host := u.Hostname()
	if host == "" {
		return apperr.E(apperr.Validation, "invalid_url", "URL缺少host")
	}

	if g.AllowPrivate {
		return nil
	}

	// 解析前检查：host字面量
	if strings.EqualFold(host, "localhost") {
		return apperr.E(apperr.Forbidden, "blocked_host", "目标地址被拒绝: localhost")
	}
	if addr, err := netip.ParseAddr(host); err == nil {
		if isBlocked(addr) {
			return apperr.E(apperr.Forbidden, "blocked_host", fmt.Sprintf("目标地址被拒绝: %s", host))
		}
		return nil
	}

	// 解析后检查：逐IP复查，任一命中即拒绝
	ips, err := net.LookupIP(host)
	if err != nil {
		// 解析失败交由调用方的HTTP客户端报告，不在此处拦截
		return nil
	}
	for _, ip := range ips {
		addr, ok := netip.AddrFromSlice(ip)
		if !ok {
			continue
		}
		if isBlocked(addr.Unmap()) {
			return apperr.E(apperr.Forbidden, "blocked_host", fmt.Sprintf("目标地址解析到被拒绝的网段: %s -> %s", host, ip))
		}
	}

	return nil
}

// isBlocked 判断地址是否命中拒绝网段
func isBlocked(addr netip.Addr) bool {
	addr = addr.Unmap()
	for _, p := range blockedPrefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return addr.IsLoopback() || addr.IsLinkLocalUnicast()
}
