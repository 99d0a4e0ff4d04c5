package ingest

import (
	"context"
	"net"
	"net/netip"
	"net/url"
	"strings"

	"recipe-assistant/internal/pkg/common"

	"go.uber.org/zap"
)

// Verdict URL 檢查結果；拒絕是正常的否定結果，不是例外
type Verdict struct {
	Allowed bool
	Reason  string
}

// 允許抓取的 scheme
var allowedSchemes = map[string]bool{
	"http":  true,
	"https": true,
}

// 內部網段：命中任何一段即拒絕
var deniedPrefixes = []netip.Prefix{
	netip.MustParsePrefix("127.0.0.0/8"),    // loopback
	netip.MustParsePrefix("10.0.0.0/8"),     // RFC1918
	netip.MustParsePrefix("172.16.0.0/12"),  // RFC1918
	netip.MustParsePrefix("192.168.0.0/16"), // RFC1918
	netip.MustParsePrefix("169.254.0.0/16"), // link-local
	netip.MustParsePrefix("::1/128"),        // IPv6 loopback
	netip.MustParsePrefix("fe80::/10"),      // IPv6 link-local
	netip.MustParsePrefix("fc00::/7"),       // IPv6 unique-local
}

// LookupFunc 主機名解析函式，測試時可替換
type LookupFunc func(ctx context.Context, host string) ([]net.IPAddr, error)

// Guard 抓取目標防護：每次抓取（含每一個轉址跳點）都重新判定，不快取結論
type Guard struct {
	maxURLLength int
	lookup       LookupFunc
}

// NewGuard 創建 URL 防護
func NewGuard(maxURLLength int) *Guard {
	return &Guard{
		maxURLLength: maxURLLength,
		lookup: func(ctx context.Context, host string) ([]net.IPAddr, error) {
			return net.DefaultResolver.LookupIPAddr(ctx, host)
		},
	}
}

// NewGuardWithLookup 以自訂解析函式創建防護（測試用）
func NewGuardWithLookup(maxURLLength int, lookup LookupFunc) *Guard {
	return &Guard{maxURLLength: maxURLLength, lookup: lookup}
}

// Check 依序套用拒絕規則：scheme → 主機網段 → URL 長度
// 任一命中即拒絕；結果只對這一次呼叫有效
func (g *Guard) Check(ctx context.Context, rawURL string) Verdict {
	u, err := url.Parse(rawURL)
	if err != nil {
		return deny(rawURL, "網址格式不正確")
	}

	// 規則 1：scheme
	if !allowedSchemes[strings.ToLower(u.Scheme)] {
		return deny(rawURL, "只接受 http 與 https 網址")
	}

	// 規則 2：主機網段
	host := u.Hostname()
	if host == "" {
		return deny(rawURL, "網址缺少主機名稱")
	}
	if isLocalhostName(host) {
		return deny(rawURL, "不允許存取本機位址")
	}

	if addr, err := netip.ParseAddr(host); err == nil {
		// 主機是 IP 字面值
		if isDeniedAddr(addr) {
			return deny(rawURL, "不允許存取內部網段")
		}
	} else {
		// 主機是名稱：解析後檢查每一個位址；解析失敗視同拒絕
		ipAddrs, err := g.lookup(ctx, host)
		if err != nil || len(ipAddrs) == 0 {
			return deny(rawURL, "無法解析這個主機名稱")
		}
		for _, ia := range ipAddrs {
			addr, ok := netip.AddrFromSlice(ia.IP)
			if !ok || isDeniedAddr(addr) {
				return deny(rawURL, "不允許存取內部網段")
			}
		}
	}

	// 規則 3：URL 長度
	if len(rawURL) > g.maxURLLength {
		return deny(rawURL, "網址長度超過上限")
	}

	return Verdict{Allowed: true}
}

// isDeniedAddr 檢查位址是否落在任何拒絕網段
func isDeniedAddr(addr netip.Addr) bool {
	addr = addr.Unmap() // IPv4-mapped IPv6 視同 IPv4
	for _, prefix := range deniedPrefixes {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// isLocalhostName 檢查是否為 localhost 及其子網域
func isLocalhostName(host string) bool {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	return host == "localhost" || strings.HasSuffix(host, ".localhost")
}

func deny(rawURL string, reason string) Verdict {
	common.LogWarn("抓取目標遭拒",
		zap.String("url", common.Truncate(rawURL, 120)),
		zap.String("reason", reason),
	)
	return Verdict{Allowed: false, Reason: reason}
}
