package ingest

import (
	"context"
	"net"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// publicLookup 固定解析到公有位址
func publicLookup(ips ...string) LookupFunc {
	return func(ctx context.Context, host string) ([]net.IPAddr, error) {
		var addrs []net.IPAddr
		for _, ip := range ips {
			addrs = append(addrs, net.IPAddr{IP: net.ParseIP(ip)})
		}
		return addrs, nil
	}
}

func TestGuardAllowsPublicHost(t *testing.T) {
	g := NewGuardWithLookup(2048, publicLookup("93.184.216.34"))

	v := g.Check(context.Background(), "https://example.com/recipe")
	assert.True(t, v.Allowed)
	assert.Empty(t, v.Reason)
}

func TestGuardRejectsSchemes(t *testing.T) {
	g := NewGuardWithLookup(2048, publicLookup("93.184.216.34"))

	for _, raw := range []string{
		"ftp://example.com/recipe",
		"file:///etc/passwd",
		"gopher://example.com/",
		"javascript:alert(1)",
	} {
		v := g.Check(context.Background(), raw)
		assert.False(t, v.Allowed, raw)
	}
}

func TestGuardRejectsInternalLiterals(t *testing.T) {
	g := NewGuard(2048)

	for _, raw := range []string{
		"http://127.0.0.1/admin",
		"http://10.0.0.5/",
		"http://172.16.1.1/",
		"http://192.168.0.10/router",
		"http://169.254.169.254/latest/meta-data/", // 雲端中繼資料端點
		"http://[::1]/",
		"http://[fe80::1]/",
		"http://[fd00::1]/",
		"http://[::ffff:127.0.0.1]/", // IPv4-mapped IPv6
	} {
		v := g.Check(context.Background(), raw)
		assert.False(t, v.Allowed, raw)
	}
}

func TestGuardRejectsLocalhostNames(t *testing.T) {
	g := NewGuardWithLookup(2048, publicLookup("93.184.216.34"))

	for _, raw := range []string{
		"http://localhost/recipe",
		"http://localhost:8080/recipe",
		"http://foo.localhost/recipe",
	} {
		v := g.Check(context.Background(), raw)
		assert.False(t, v.Allowed, raw)
	}
}

func TestGuardRejectsHostResolvingToInternal(t *testing.T) {
	// DNS rebinding：名稱看似公開，解析卻指向內網
	g := NewGuardWithLookup(2048, publicLookup("93.184.216.34", "10.0.0.8"))

	v := g.Check(context.Background(), "https://evil.example.com/recipe")
	assert.False(t, v.Allowed)
}

func TestGuardRejectsUnresolvableHost(t *testing.T) {
	g := NewGuardWithLookup(2048, func(ctx context.Context, host string) ([]net.IPAddr, error) {
		return nil, &net.DNSError{Err: "no such host", Name: host}
	})

	v := g.Check(context.Background(), "https://does-not-exist.example/")
	assert.False(t, v.Allowed)
}

func TestGuardRejectsOverlongURL(t *testing.T) {
	g := NewGuardWithLookup(64, publicLookup("93.184.216.34"))

	raw := "https://example.com/" + strings.Repeat("a", 100)
	v := g.Check(context.Background(), raw)
	assert.False(t, v.Allowed)
}

func TestGuardRuleOrderSchemeBeforeLength(t *testing.T) {
	// 超長但 scheme 也不合法的網址，應先因 scheme 被拒
	g := NewGuardWithLookup(16, publicLookup("93.184.216.34"))

	raw := "ftp://example.com/" + strings.Repeat("a", 100)
	v := g.Check(context.Background(), raw)
	assert.False(t, v.Allowed)
	assert.Equal(t, "只接受 http 與 https 網址", v.Reason)
}
