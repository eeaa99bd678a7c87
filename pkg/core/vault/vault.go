// Package vault 提供凭证的对称加解密
// 进程级AES-256-GCM密钥在启动时载入；密钥缺失时所有写入按失败关闭处理
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"fmt"

	"github.com/aliciakaith/flowgrid/pkg/apperr"
)

// Vault 密文保管库（对外导出）
type Vault struct {
	gcm cipher.AEAD
}

// New 创建Vault实例；key必须为32字节（AES-256）
func New(key []byte) (*Vault, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("密钥长度必须为32字节（AES-256），实际 %d 字节", len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("创建AES密码失败: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("创建GCM失败: %w", err)
	}

	return &Vault{gcm: gcm}, nil
}

// Encrypt 序列化并加密任意结构（对外导出）
// 密文格式: nonce || ciphertext；存储层只见不透明字节
func (v *Vault) Encrypt(val any) ([]byte, error) {
	if v == nil || v.gcm == nil {
		return nil, apperr.E(apperr.Internal, "vault_unavailable", "加密密钥未配置，拒绝写入")
	}

	plaintext, err := json.Marshal(val)
	if err != nil {
		return nil, fmt.Errorf("序列化失败: %w", err)
	}

	nonce := make([]byte, v.gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("生成nonce失败: %w", err)
	}

	return v.gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt 解密并反序列化到out（对外导出）
func (v *Vault) Decrypt(ciphertext []byte, out any) error {
	if v == nil || v.gcm == nil {
		return apperr.E(apperr.Internal, "vault_unavailable", "加密密钥未配置")
	}

	nonceSize := v.gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return fmt.Errorf("密文过短")
	}

	nonce, data := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := v.gcm.Open(nil, nonce, data, nil)
	if err != nil {
		return fmt.Errorf("解密失败: %w", err)
	}

	if err := json.Unmarshal(plaintext, out); err != nil {
		return fmt.Errorf("反序列化失败: %w", err)
	}
	return nil
}
