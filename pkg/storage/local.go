package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	maxNameLength   = 120
	timestampLayout = "20060102_150405.000000000"
)

// LocalGateway stores files as flat entries inside a single directory.
type LocalGateway struct {
	baseDir string
	now     func() time.Time
}

var _ Gateway = (*LocalGateway)(nil)

// NewLocalGateway creates the base directory if needed.
func NewLocalGateway(baseDir string) (*LocalGateway, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	return &LocalGateway{
		baseDir: baseDir,
		now:     time.Now,
	}, nil
}

// BaseDir returns the directory files are written to.
func (g *LocalGateway) BaseDir() string {
	return g.baseDir
}

// Store writes r to a temp file inside the base directory and renames it
// into place once fully written, so readers never observe partial files.
func (g *LocalGateway) Store(ctx context.Context, r io.Reader, suggestedName string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	id := g.newID(suggestedName)

	tmpFile, err := os.CreateTemp(g.baseDir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmpFile.Name()
	defer os.Remove(tmpName)

	if _, err := io.Copy(tmpFile, &contextReader{ctx: ctx, r: r}); err != nil {
		tmpFile.Close()
		return "", fmt.Errorf("failed to write file data: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return "", fmt.Errorf("failed to flush file data: %w", err)
	}

	path := filepath.Join(g.baseDir, id)
	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("stored file '%s' already exists", id)
	}

	if err := os.Rename(tmpName, path); err != nil {
		return "", fmt.Errorf("failed to move file to storage: %w", err)
	}

	return id, nil
}

func (g *LocalGateway) Retrieve(ctx context.Context, id string) (io.ReadCloser, error) {
	path, err := g.path(ctx, id)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return file, nil
}

func (g *LocalGateway) Delete(ctx context.Context, id string) error {
	path, err := g.path(ctx, id)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

func (g *LocalGateway) Exists(ctx context.Context, id string) (bool, error) {
	path, err := g.path(ctx, id)
	if err != nil {
		return false, err
	}

	_, err = os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}

func (g *LocalGateway) path(ctx context.Context, id string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := ValidateID(id); err != nil {
		return "", err
	}
	return filepath.Join(g.baseDir, id), nil
}

// newID prefixes the sanitized name with a nanosecond timestamp and a random
// fragment, so equal names uploaded in the same instant never collide.
func (g *LocalGateway) newID(suggestedName string) string {
	fragment := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s_%s_%s", g.now().UTC().Format(timestampLayout), fragment, SanitizeName(suggestedName))
}

// ValidateID rejects identifiers that are empty, hidden or contain path elements.
func ValidateID(id string) error {
	if id == "" || id == "." || id == ".." {
		return ErrInvalidID
	}
	if strings.HasPrefix(id, ".") || strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}

// SanitizeName reduces name to its base and keeps only [A-Za-z0-9._-].
// Other runes become underscores and leading dots are stripped.
func SanitizeName(name string) string {
	name = strings.ReplaceAll(name, `\`, "/")
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}

	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}

	sanitized := strings.TrimLeft(b.String(), ".")
	for strings.Contains(sanitized, "..") {
		sanitized = strings.ReplaceAll(sanitized, "..", ".")
	}

	if len(sanitized) > maxNameLength {
		ext := filepath.Ext(sanitized)
		if len(ext) > 16 {
			ext = ""
		}
		sanitized = sanitized[:maxNameLength-len(ext)] + ext
	}

	if sanitized == "" {
		return "file"
	}
	return sanitized
}

// contextReader stops copying once ctx is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (cr *contextReader) Read(p []byte) (int, error) {
	if err := cr.ctx.Err(); err != nil {
		return 0, err
	}
	return cr.r.Read(p)
}
