package vision

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// DecodeConfig reads a JSON camera config.
func DecodeConfig(r io.Reader) (*CameraConfig, error) {
	var cfg CameraConfig
	if err := json.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode camera config: %w", err)
	}
	return &cfg, nil
}

// EncodeConfig writes cfg as indented JSON.
func EncodeConfig(w io.Writer, cfg *CameraConfig) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(cfg)
}

// LoadConfig reads a camera config file.
func LoadConfig(path string) (*CameraConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cfg, err := DecodeConfig(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// SaveConfig writes cfg to path, replacing the file atomically.
func SaveConfig(path string, cfg *CameraConfig) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := EncodeConfig(tmp, cfg); err != nil {
		tmp.Close()
		return fmt.Errorf("encode camera config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
