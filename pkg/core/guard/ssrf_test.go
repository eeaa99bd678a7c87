package guard

import (
	"testing"

	"github.com/aliciakaith/flowgrid/pkg/apperr"
)

func TestCheckURL_BlockedHosts(t *testing.T) {
	g := &Guard{}

	blocked := []string{
		"http://localhost/admin",
		"http://127.0.0.1:8080/",
		"https://10.1.2.3/internal",
		"http://192.168.1.1/",
		"http://172.16.0.9/",
		"http://169.254.169.254/latest/meta-data/",
		"http://[::1]/",
	}
	for _, raw := range blocked {
		if err := g.CheckURL(raw); err == nil {
			t.Fatalf("%s 应当被拒绝", raw)
		}
	}
}

func TestCheckURL_SchemeRejected(t *testing.T) {
	g := &Guard{}
	for _, raw := range []string{"ftp://example.test/x", "file:///etc/passwd", "gopher://x"} {
		err := g.CheckURL(raw)
		if err == nil {
			t.Fatalf("%s 应当被拒绝", raw)
		}
		if apperr.KindOf(err) != apperr.Validation {
			t.Fatalf("scheme拒绝应为Validation，实际 %v", apperr.KindOf(err))
		}
	}
}

func TestCheckURL_PublicAllowed(t *testing.T) {
	g := &Guard{}
	// 公网IP字面量不触发DNS，可稳定断言
	if err := g.CheckURL("https://93.184.216.34/"); err != nil {
		t.Fatalf("公网地址不应被拒绝: %v", err)
	}
}

func TestCheckURL_AllowPrivate(t *testing.T) {
	g := &Guard{AllowPrivate: true}
	if err := g.CheckURL("http://127.0.0.1:9999/"); err != nil {
		t.Fatalf("AllowPrivate下本地地址应放行: %v", err)
	}
	// scheme检查不受AllowPrivate影响
	if err := g.CheckURL("ftp://127.0.0.1/"); err == nil {
		t.Fatal("非法scheme仍应被拒绝")
	}
}

func TestCheckURL_MappedIPv4(t *testing.T) {
	g := &Guard{}
	if err := g.CheckURL("http://[::ffff:127.0.0.1]/"); err == nil {
		t.Fatal("IPv6映射的回环地址应当被拒绝")
	}
}
