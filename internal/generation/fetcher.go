package generation

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/kiranshivaraju/pixgen/internal/pixai"
)

const (
	// DefaultServiceName is the <service> part of written file names.
	DefaultServiceName = "PixAI"

	timestampLayout = "20060102_150405"

	// maxCollisions caps the suffix search when several files land in the same second.
	maxCollisions = 1000
)

// Fetcher downloads artifacts and writes them to disk.
type Fetcher struct {
	client      pixai.Client
	serviceName string
	now         func() time.Time
	logger      *slog.Logger
}

// NewFetcher creates a Fetcher. An empty serviceName means DefaultServiceName.
func NewFetcher(client pixai.Client, serviceName string, logger *slog.Logger) *Fetcher {
	if serviceName == "" {
		serviceName = DefaultServiceName
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{client: client, serviceName: serviceName, now: time.Now, logger: logger}
}

// FileName returns picture_<service>_<YYYYMMDD_HHMMSS>.png for t.
func FileName(service string, t time.Time) string {
	return fmt.Sprintf("picture_%s_%s.png", service, t.Format(timestampLayout))
}

// Fetch downloads url and writes the bytes to a new file in outputDir,
// creating the directory if needed. It returns the path written.
//
// The file is never overwritten: if the timestamped name is taken, _1, _2
// and so on are appended before the extension.
func (f *Fetcher) Fetch(ctx context.Context, url, outputDir string) (string, error) {
	data, err := f.client.Download(ctx, url)
	if err != nil {
		return "", wrapCall(ErrDownloadFailed, err)
	}

	if outputDir == "" {
		outputDir = "."
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", fmt.Errorf("%w: creating %s: %w", ErrWriteFailed, outputDir, err)
	}

	path, err := f.writeNew(outputDir, data)
	if err != nil {
		return "", err
	}
	f.logger.Info("artifact saved", "path", path, "bytes", len(data))
	return path, nil
}

func (f *Fetcher) writeNew(dir string, data []byte) (string, error) {
	base := FileName(f.serviceName, f.now())
	stem := base[:len(base)-len(filepath.Ext(base))]

	for i := 0; i < maxCollisions; i++ {
		name := base
		if i > 0 {
			name = fmt.Sprintf("%s_%d.png", stem, i)
		}
		path := filepath.Join(dir, name)

		file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrWriteFailed, err)
		}

		_, werr := file.Write(data)
		cerr := file.Close()
		if werr == nil {
			werr = cerr
		}
		if werr != nil {
			os.Remove(path)
			return "", fmt.Errorf("%w: %s: %w", ErrWriteFailed, path, werr)
		}
		return path, nil
	}
	return "", fmt.Errorf("%w: no free file name for %s in %s", ErrWriteFailed, base, dir)
}
