// Package storage 提供附件的本地磁盘存储
package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// FileStorage 附件存储，key 形如 "chat-images/<uuid>-name.png"
type FileStorage interface {
	// Save 写入内容并返回对外访问地址
	Save(ctx context.Context, key string, src io.Reader) (string, error)
}

// LocalStorage 将附件写入本地目录，由 https_server 以静态文件方式对外提供
type LocalStorage struct {
	root      string
	urlPrefix string
}

// NewLocalStorage 创建本地存储，root 不存在时自动创建
func NewLocalStorage(root, urlPrefix string) (*LocalStorage, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir %s: %w", root, err)
	}
	return &LocalStorage{root: root, urlPrefix: strings.TrimRight(urlPrefix, "/")}, nil
}

// Root 本地根目录
func (s *LocalStorage) Root() string {
	return s.root
}

// Save 写入文件，写入失败时删除残留文件
func (s *LocalStorage) Save(ctx context.Context, key string, src io.Reader) (string, error) {
	dst, err := s.pathOf(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", err
	}
	out, err := os.Create(dst)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		_ = os.Remove(dst)
		return "", err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(dst)
		return "", err
	}
	return s.URLOf(key), nil
}

// URLOf key 对外访问地址，逐段转义保留字符
func (s *LocalStorage) URLOf(key string) string {
	segments := strings.Split(strings.TrimPrefix(path.Clean("/"+key), "/"), "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return s.urlPrefix + "/" + strings.Join(segments, "/")
}

// pathOf 拒绝跳出根目录的 key
func (s *LocalStorage) pathOf(key string) (string, error) {
	clean := path.Clean("/" + key)
	if clean == "/" {
		return "", fmt.Errorf("invalid storage key %q", key)
	}
	return filepath.Join(s.root, filepath.FromSlash(clean)), nil
}
