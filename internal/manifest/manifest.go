package manifest

import (
	"archive/zip"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

const hashChunkSize = 64 * 1024

// Manifest maps every file of the client distribution to its SHA-256
// digest, so a client can download only what changed since its last sync.
type Manifest struct {
	Version     string            `json:"version"`
	DownloadURL string            `json:"download_url"`
	Files       map[string]string `json:"files"`
}

type internalConfig struct {
	Version     string `json:"version"`
	DownloadURL string `json:"download_url"`
}

// Service owns the manifest cache for one client directory. All state lives
// on the service and is guarded by its own lock; GetOrRebuild is the sole
// mutating entry point.
type Service struct {
	clientDir  string
	configFile string
	cacheFile  string
	zipPath    string

	mu       sync.Mutex
	cache    *Manifest
	lastMod  time.Time
	rebuilds atomic.Int64
}

// NewService watches clientDir and reads version metadata from configFile.
// The cache file and the distributable archive are written next to the
// client directory.
func NewService(clientDir, configFile string) *Service {
	parent := filepath.Dir(filepath.Clean(clientDir))
	return &Service{
		clientDir:  clientDir,
		configFile: configFile,
		cacheFile:  filepath.Join(parent, "manifest_cache.json"),
		zipPath:    filepath.Join(parent, "CRMClient.zip"),
	}
}

// GetOrRebuild returns the cached manifest, rebuilding it first when the
// cache is empty or any file under the client directory has been modified
// since the last build. The lock is held across the whole check-and-rebuild
// so concurrent callers never build twice; the second caller observes the
// fresh cache.
func (s *Service) GetOrRebuild() (*Manifest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	latest, err := s.latestModTime()
	if err != nil {
		return nil, err
	}
	if s.cache != nil && !latest.After(s.lastMod) {
		return s.cache, nil
	}

	m, err := s.generate()
	if err != nil {
		return nil, err
	}
	if err := s.ensureArchive(latest); err != nil {
		return nil, err
	}

	// Only a fully successful build moves the staleness marker, so a failed
	// scan is retried on the next call.
	s.cache = m
	s.lastMod = latest
	s.rebuilds.Add(1)
	return m, nil
}

// Rebuilds reports how many times the manifest has actually been rebuilt.
func (s *Service) Rebuilds() int64 {
	return s.rebuilds.Load()
}

func (s *Service) generate() (*Manifest, error) {
	cfg, err := s.readInternalConfig()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(s.clientDir, 0o755); err != nil {
		return nil, err
	}

	paths, err := s.listFiles()
	if err != nil {
		return nil, err
	}

	files := make(map[string]string, len(paths))
	for _, rel := range paths {
		sum, err := hashFile(filepath.Join(s.clientDir, filepath.FromSlash(rel)))
		if err != nil {
			return nil, fmt.Errorf("hash %s: %w", rel, err)
		}
		files[rel] = sum
	}

	m := &Manifest{
		Version:     cfg.Version,
		DownloadURL: cfg.DownloadURL,
		Files:       files,
	}

	data, err := json.MarshalIndent(m, "", "    ")
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(s.cacheFile, data, 0o644); err != nil {
		return nil, fmt.Errorf("write manifest cache: %w", err)
	}
	return m, nil
}

// readInternalConfig loads the version metadata. A missing file or missing
// keys is fatal to generation.
func (s *Service) readInternalConfig() (*internalConfig, error) {
	data, err := os.ReadFile(s.configFile)
	if err != nil {
		return nil, fmt.Errorf("internal config %s: %w", s.configFile, err)
	}
	var cfg internalConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("internal config %s: %w", s.configFile, err)
	}
	if cfg.Version == "" || cfg.DownloadURL == "" {
		return nil, fmt.Errorf("internal config %s must contain 'version' and 'download_url'", s.configFile)
	}
	return &cfg, nil
}

// listFiles enumerates every regular file under the client directory as
// sorted root-relative slash paths.
func (s *Service) listFiles() ([]string, error) {
	var paths []string
	err := filepath.WalkDir(s.clientDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(s.clientDir, path)
		if err != nil {
			return err
		}
		paths = append(paths, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}

func (s *Service) latestModTime() (time.Time, error) {
	var latest time.Time
	err := filepath.WalkDir(s.clientDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.ModTime().After(latest) {
			latest = info.ModTime()
		}
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return time.Time{}, nil
		}
		return time.Time{}, err
	}
	return latest, nil
}

// ensureArchive rebuilds the distributable zip when it is missing or older
// than the newest file under the client directory.
func (s *Service) ensureArchive(latest time.Time) error {
	info, err := os.Stat(s.zipPath)
	if err == nil && !info.ModTime().Before(latest) {
		return nil
	}
	if err != nil && !os.IsNotExist(err) {
		return err
	}

	paths, err := s.listFiles()
	if err != nil {
		return err
	}

	f, err := os.Create(s.zipPath)
	if err != nil {
		return fmt.Errorf("create archive: %w", err)
	}
	zw := zip.NewWriter(f)
	for _, rel := range paths {
		if err := addToArchive(zw, filepath.Join(s.clientDir, filepath.FromSlash(rel)), rel); err != nil {
			zw.Close()
			f.Close()
			return fmt.Errorf("archive %s: %w", rel, err)
		}
	}
	if err := zw.Close(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func addToArchive(zw *zip.Writer, path, name string) error {
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate})
	if err != nil {
		return err
	}
	_, err = io.Copy(w, src)
	return err
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	buf := make([]byte, hashChunkSize)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
