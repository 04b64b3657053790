package storage

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrObjectTooLarge 对象超出大小限制
	ErrObjectTooLarge = errors.New("storage: object too large")
	// ErrInvalidKey 非法对象键
	ErrInvalidKey = errors.New("storage: invalid object key")
	// ErrSignatureInvalid 签名校验失败或已过期
	ErrSignatureInvalid = errors.New("storage: signature invalid or expired")
)

// LocalStorage 本地磁盘存储实现。访问地址带 HMAC 签名和过期时间，
// 由文件下载接口校验后回源磁盘。
type LocalStorage struct {
	basePath    string
	maxFileSize int64
	signSecret  []byte
	urlPrefix   string
}

// NewLocalStorage 创建本地磁盘存储
func NewLocalStorage(basePath string, maxFileSize int64, signSecret, urlPrefix string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create base path: %w", err)
	}
	return &LocalStorage{
		basePath:    basePath,
		maxFileSize: maxFileSize,
		signSecret:  []byte(signSecret),
		urlPrefix:   strings.TrimRight(urlPrefix, "/"),
	}, nil
}

// safePath 拒绝路径穿越，对象键只允许落在 basePath 之下
func (s *LocalStorage) safePath(key string) (string, error) {
	if key == "" || strings.Contains(key, "..") || strings.HasPrefix(key, "/") {
		return "", ErrInvalidKey
	}
	return filepath.Join(s.basePath, filepath.FromSlash(key)), nil
}

// Put 写入对象到磁盘
func (s *LocalStorage) Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (string, error) {
	if s.maxFileSize > 0 && size > s.maxFileSize {
		return "", ErrObjectTooLarge
	}
	path, err := s.safePath(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return "", err
	}
	limit := io.Reader(reader)
	if s.maxFileSize > 0 {
		limit = io.LimitReader(reader, s.maxFileSize+1)
	}
	written, err := io.Copy(f, limit)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		return "", err
	}
	if s.maxFileSize > 0 && written > s.maxFileSize {
		os.Remove(tmp)
		return "", ErrObjectTooLarge
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", err
	}
	return key, nil
}

// SignedURL 生成签名访问地址
func (s *LocalStorage) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if _, err := s.safePath(key); err != nil {
		return "", err
	}
	expires := time.Now().Add(ttl).Unix()
	sig := s.sign(key, expires)
	return fmt.Sprintf("%s/%s?expires=%d&sig=%s", s.urlPrefix, key, expires, sig), nil
}

// Delete 删除对象
func (s *LocalStorage) Delete(ctx context.Context, key string) error {
	path, err := s.safePath(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Open 校验签名后打开对象，供下载接口使用
func (s *LocalStorage) Open(key, expiresStr, sig string) (*os.File, error) {
	expires, err := strconv.ParseInt(expiresStr, 10, 64)
	if err != nil || time.Now().Unix() > expires {
		return nil, ErrSignatureInvalid
	}
	expected := s.sign(key, expires)
	if !hmac.Equal([]byte(expected), []byte(sig)) {
		return nil, ErrSignatureInvalid
	}
	path, err := s.safePath(key)
	if err != nil {
		return nil, err
	}
	return os.Open(path)
}

func (s *LocalStorage) sign(key string, expires int64) string {
	mac := hmac.New(sha256.New, s.signSecret)
	fmt.Fprintf(mac, "%s:%d", key, expires)
	return hex.EncodeToString(mac.Sum(nil))
}
