package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/zeebo/blake3"
	"gopkg.in/yaml.v3"
)

// ChecksumFile is the manifest name written next to config.yaml.
const ChecksumFile = ".checksums"

// ErrNoChecksums is returned when the config directory has no manifest.
var ErrNoChecksums = errors.New("no .checksums manifest")

// ChecksumManifest records BLAKE3 hashes for the config file and every
// word list it references, keyed by path relative to the config directory.
type ChecksumManifest struct {
	Version     int               `yaml:"version"`
	GeneratedAt string            `yaml:"generated_at"`
	Hashes      map[string]string `yaml:"hashes"`
}

// LockFileResult captures the hash computed for one locked file.
type LockFileResult struct {
	Name string
	Hash string
}

// LockReport summarizes a Lock run.
type LockReport struct {
	ChecksumPath string
	Written      bool
	Files        []LockFileResult
}

// ComputeBlake3Hash computes the BLAKE3 hash of a file.
func ComputeBlake3Hash(filePath string) (string, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}
	hash := blake3.Sum256(data)
	return hex.EncodeToString(hash[:]), nil
}

// lockedFiles lists the files covered by the manifest, relative to Dir().
func (c *Config) lockedFiles() []string {
	files := []string{filepath.Base(c.SourcePath)}
	seen := map[string]bool{files[0]: true}
	for _, cc := range c.Commands {
		if cc.WordsFile == "" {
			continue
		}
		rel := cc.WordsFile
		if filepath.IsAbs(rel) {
			if r, err := filepath.Rel(c.Dir(), rel); err == nil {
				rel = r
			}
		}
		rel = filepath.Clean(rel)
		if !seen[rel] {
			seen[rel] = true
			files = append(files, rel)
		}
	}
	sort.Strings(files[1:])
	return files
}

// Lock hashes the config file and its word lists and writes the manifest.
// With dryRun set the hashes are computed but nothing is written.
func Lock(cfg *Config, dryRun bool) (*LockReport, error) {
	if cfg.SourcePath == "" {
		return nil, fmt.Errorf("cannot lock a configuration that was not loaded from a file")
	}

	report := &LockReport{ChecksumPath: filepath.Join(cfg.Dir(), ChecksumFile)}
	manifest := ChecksumManifest{
		Version:     1,
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Hashes:      make(map[string]string),
	}

	for _, name := range cfg.lockedFiles() {
		hash, err := ComputeBlake3Hash(filepath.Join(cfg.Dir(), name))
		if err != nil {
			return nil, fmt.Errorf("failed to hash %s: %w", name, err)
		}
		manifest.Hashes[name] = hash
		report.Files = append(report.Files, LockFileResult{Name: name, Hash: hash})
	}

	if dryRun {
		return report, nil
	}

	data, err := yaml.Marshal(&manifest)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal checksums: %w", err)
	}
	if err := os.WriteFile(report.ChecksumPath, data, 0600); err != nil {
		return nil, fmt.Errorf("failed to write checksums: %w", err)
	}
	report.Written = true
	return report, nil
}

// LoadChecksums reads the manifest from a config directory.
func LoadChecksums(configDir string) (*ChecksumManifest, error) {
	data, err := os.ReadFile(filepath.Join(configDir, ChecksumFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoChecksums
		}
		return nil, fmt.Errorf("failed to read checksums: %w", err)
	}

	var manifest ChecksumManifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse checksums: %w", err)
	}
	if manifest.Version != 1 {
		return nil, fmt.Errorf("unsupported checksums version: %d", manifest.Version)
	}
	return &manifest, nil
}

// VerifyChecksums checks the config file and word lists against the
// manifest. It returns ErrNoChecksums when the directory is unlocked.
func VerifyChecksums(cfg *Config) error {
	if cfg.SourcePath == "" {
		return ErrNoChecksums
	}
	manifest, err := LoadChecksums(cfg.Dir())
	if err != nil {
		return err
	}

	for _, name := range cfg.lockedFiles() {
		expected, ok := manifest.Hashes[name]
		if !ok {
			return fmt.Errorf("file %s has no hash in .checksums (run 'wordbot config lock')", name)
		}
		actual, err := ComputeBlake3Hash(filepath.Join(cfg.Dir(), name))
		if err != nil {
			return fmt.Errorf("failed to compute hash: %w", err)
		}
		if actual != expected {
			return fmt.Errorf("hash mismatch for %s: expected %s, got %s\n"+
				"If you edited this file intentionally, run: wordbot config lock", name, expected, actual)
		}
	}
	return nil
}
