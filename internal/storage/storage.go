package storage

import (
	"context"
	"io"
	"time"
)

// Storage 对象存储接口，商品图片等二进制内容经由它读写
type Storage interface {
	// Put 写入对象，返回持久化的对象键
	Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (string, error)
	// SignedURL 生成带过期时间的访问地址
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
	// Delete 删除对象，对象不存在时不报错
	Delete(ctx context.Context, key string) error
}
