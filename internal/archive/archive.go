// Package archive keeps a copy of every uploaded voice note.
package archive

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"voicecrm/api/internal/util"
)

// Driver identifies an archive backend.
type Driver string

const (
	DriverNone       Driver = "none"
	DriverFilesystem Driver = "fs"
	DriverMinIO      Driver = "minio"
)

// Store is the interface for archive backends.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

type Config struct {
	Driver    Driver
	Root      string
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// Open selects a Store for the configured driver. DriverNone returns nil.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Driver {
	case "", DriverNone:
		return nil, nil
	case DriverFilesystem:
		return NewFilesystem(cfg.Root)
	case DriverMinIO:
		return NewMinIO(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown archive driver %s", cfg.Driver)
	}
}

// NewKey returns a date-partitioned object key for an upload.
func NewKey(now time.Time, filename string) string {
	ext := strings.ToLower(path.Ext(path.Base(strings.ReplaceAll(filename, "\\", "/"))))
	if ext == "" || len(ext) > 8 {
		ext = ".webm"
	}
	return path.Join("voice", now.UTC().Format("2006/01/02"), util.NewID("")+ext)
}
