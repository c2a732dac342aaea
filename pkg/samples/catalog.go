package samples

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/teslashibe/go-stdvis/pkg/vision"
)

// Record describes one captured image.
type Record struct {
	Index    int                  `json:"index"`
	Label    string               `json:"label"`
	Config   *vision.CameraConfig `json:"config"`
	Exposure int32                `json:"exposure"`

	// File is the image name relative to the output directory.
	File string `json:"file,omitempty"`

	// Session identifies the run that captured the image.
	Session string `json:"session,omitempty"`
}

// Catalog stores the records of an output directory. Indexes continue
// across runs: the next index is always Len.
type Catalog interface {
	Len() (int, error)
	Append(recs ...Record) error
	Records() ([]Record, error)
	Close() error
}

// Catalog formats.
const (
	FormatJSON   = "json"
	FormatSQLite = "sqlite"
)

// Catalog file names inside an output directory.
const (
	MetadataJSON   = "metadata.json"
	MetadataSQLite = "metadata.db"
)

// OpenCatalog opens the catalog of dir in the given format.
func OpenCatalog(dir, format string) (Catalog, error) {
	switch format {
	case "", FormatJSON:
		return OpenJSONCatalog(filepath.Join(dir, MetadataJSON))
	case FormatSQLite:
		return OpenSQLiteCatalog(filepath.Join(dir, MetadataSQLite))
	}
	return nil, fmt.Errorf("samples: unknown catalog format %q", format)
}

type metadataFile struct {
	Images []Record `json:"images"`
}

// JSONCatalog keeps records in a metadata.json file of the form
// {"images": [...]}. The file is rewritten atomically on every Append.
type JSONCatalog struct {
	mu   sync.Mutex
	path string
	meta metadataFile
}

// OpenJSONCatalog loads path, or starts an empty catalog if it does not
// exist. A malformed file is an error rather than being overwritten.
func OpenJSONCatalog(path string) (*JSONCatalog, error) {
	c := &JSONCatalog{path: path, meta: metadataFile{Images: []Record{}}}

	b, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return c, nil
	case err != nil:
		return nil, err
	case len(b) == 0:
		return c, nil
	}

	if err := json.Unmarshal(b, &c.meta); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if c.meta.Images == nil {
		c.meta.Images = []Record{}
	}
	return c, nil
}

// Len implements Catalog.
func (c *JSONCatalog) Len() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.meta.Images), nil
}

// Append implements Catalog.
func (c *JSONCatalog) Append(recs ...Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := metadataFile{Images: append(c.meta.Images[:len(c.meta.Images):len(c.meta.Images)], recs...)}
	if err := writeJSON(c.path, &next); err != nil {
		return err
	}
	c.meta = next
	return nil
}

// Records implements Catalog.
func (c *JSONCatalog) Records() ([]Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Record(nil), c.meta.Images...), nil
}

// Close implements Catalog.
func (c *JSONCatalog) Close() error { return nil }

func writeJSON(path string, v any) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
