package vault

import (
	"bytes"
	"testing"
)

type testCreds struct {
	SecretKey string `json:"secret_key"`
	Env       string `json:"env"`
}

func TestVault_RoundTrip(t *testing.T) {
	v, err := New(bytes.Repeat([]byte{0x42}, 32))
	if err != nil {
		t.Fatalf("创建Vault失败: %v", err)
	}

	in := testCreds{SecretKey: "sk_test_abc", Env: "sandbox"}
	ct, err := v.Encrypt(in)
	if err != nil {
		t.Fatalf("加密失败: %v", err)
	}

	var out testCreds
	if err := v.Decrypt(ct, &out); err != nil {
		t.Fatalf("解密失败: %v", err)
	}
	if out != in {
		t.Fatalf("往返不一致: %+v != %+v", out, in)
	}
}

func TestVault_CiphertextNotPlaintext(t *testing.T) {
	v, _ := New(bytes.Repeat([]byte{0x01}, 32))
	ct, err := v.Encrypt(testCreds{SecretKey: "sk_live_secret"})
	if err != nil {
		t.Fatalf("加密失败: %v", err)
	}
	if bytes.Contains(ct, []byte("sk_live_secret")) {
		t.Fatal("密文中不应出现明文密钥")
	}
}

func TestVault_BadKeyLength(t *testing.T) {
	if _, err := New([]byte("short")); err == nil {
		t.Fatal("非32字节密钥应报错")
	}
}

func TestVault_NilFailsClosed(t *testing.T) {
	var v *Vault
	if _, err := v.Encrypt(testCreds{}); err == nil {
		t.Fatal("密钥缺失时加密应失败关闭")
	}
	if err := v.Decrypt([]byte("x"), &testCreds{}); err == nil {
		t.Fatal("密钥缺失时解密应失败")
	}
}

func TestVault_TamperDetected(t *testing.T) {
	v, _ := New(bytes.Repeat([]byte{0x07}, 32))
	ct, _ := v.Encrypt(testCreds{SecretKey: "sk_x"})

	ct[len(ct)-1] ^= 0xFF

	var out testCreds
	if err := v.Decrypt(ct, &out); err == nil {
		t.Fatal("被篡改的密文应解密失败")
	}
}
