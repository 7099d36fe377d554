package imagestore

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/nanobanana/supermarket/internal/imaging"
	"github.com/nanobanana/supermarket/internal/models"
)

var allowedExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
}

// SavedImage is one history entry reconstructed from a stored filename.
type SavedImage struct {
	Filename  string `json:"filename"`
	ImageURL  string `json:"imageUrl"`
	Type      string `json:"type"`
	Title     string `json:"title"`
	Timestamp int64  `json:"timestamp"`
}

// Store persists generated images as flat files in one directory. An optional
// S3 mirror receives a copy of every save; mirror failures are logged, never
// fatal.
type Store struct {
	dir        string
	log        *slog.Logger
	mirror     *Mirror
	httpClient *http.Client
	now        func() time.Time
}

func New(dir string, log *slog.Logger, mirror *Mirror) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create image dir: %w", err)
	}
	return &Store{
		dir:    dir,
		log:    log,
		mirror: mirror,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		now: time.Now,
	}, nil
}

// Fetch materializes an image reference into bytes: data URLs are decoded,
// http(s) URLs are downloaded. Anything else is rejected.
func (s *Store) Fetch(ctx context.Context, imageURL string) ([]byte, string, error) {
	switch {
	case strings.HasPrefix(imageURL, "data:image"):
		mimeType, data, err := imaging.DecodeDataURL(imageURL)
		if err != nil {
			return nil, "", err
		}
		return data, mimeType, nil
	case strings.HasPrefix(imageURL, "http://"), strings.HasPrefix(imageURL, "https://"):
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
		if err != nil {
			return nil, "", fmt.Errorf("new download request: %w", err)
		}
		resp, err := s.httpClient.Do(req)
		if err != nil {
			return nil, "", fmt.Errorf("download image: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 300 {
			return nil, "", fmt.Errorf("download image: HTTP %d", resp.StatusCode)
		}
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, "", fmt.Errorf("read downloaded image: %w", err)
		}
		mimeType := resp.Header.Get("Content-Type")
		if mimeType == "" || !strings.HasPrefix(mimeType, "image/") {
			mimeType = "image/png"
		}
		return data, mimeType, nil
	default:
		return nil, "", fmt.Errorf("invalid image format: expected data URL or http(s) URL")
	}
}

// Save fetches the image and writes it under the canonical filename. A
// caller-supplied filename wins over the generated one.
func (s *Store) Save(ctx context.Context, phone string, step models.Step, title, imageURL, filename string) (string, error) {
	data, mimeType, err := s.Fetch(ctx, imageURL)
	if err != nil {
		return "", err
	}

	if filename == "" {
		filename = BuildFilename(phone, step, title, s.now(), imaging.ExtensionForMime(mimeType))
	} else {
		filename = filepath.Base(filename)
	}

	path := filepath.Join(s.dir, filename)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write image file: %w", err)
	}
	s.log.Info("image saved", "filename", filename, "bytes", len(data))

	if s.mirror != nil {
		if _, err := s.mirror.Upload(ctx, data, mimeType); err != nil {
			s.log.Error("mirror upload failed", "filename", filename, "err", err)
		}
	}

	return filename, nil
}

// ListForPhone returns the stored history for one account, newest first.
func (s *Store) ListForPhone(phone string) ([]SavedImage, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read image dir: %w", err)
	}

	images := make([]SavedImage, 0)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !allowedExtensions[strings.ToLower(filepath.Ext(name))] {
			continue
		}
		rec, ok := ParseFilename(name)
		if !ok || rec.Phone != phone {
			continue
		}
		images = append(images, SavedImage{
			Filename:  name,
			ImageURL:  "/api/images/" + name,
			Type:      string(rec.Step),
			Title:     rec.Title,
			Timestamp: rec.Timestamp,
		})
	}

	sort.Slice(images, func(i, j int) bool {
		return images[i].Timestamp > images[j].Timestamp
	})
	return images, nil
}

// Path resolves a stored filename to its on-disk path, rejecting traversal
// attempts and non-image extensions.
func (s *Store) Path(filename string) (string, error) {
	if filename == "" || filename != filepath.Base(filename) {
		return "", fmt.Errorf("invalid filename")
	}
	if !allowedExtensions[strings.ToLower(filepath.Ext(filename))] {
		return "", fmt.Errorf("unsupported file extension")
	}
	path := filepath.Join(s.dir, filename)
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("stat image: %w", err)
	}
	return path, nil
}
