package licensing

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/msto63/mdwterm/pkg/core/logging"
	terrors "github.com/msto63/mdwterm/pkg/terminal/errors"
)

var licenseLogger = logging.New("license")

// StaticExtractor always returns the same license
type StaticExtractor struct {
	License *License
}

// Extract implements Extractor
func (s StaticExtractor) Extract(ctx context.Context) (*License, error) {
	if s.License == nil {
		return nil, terrors.New(terrors.CodeUnauthorizedAccess, "the license is missing")
	}
	return s.License, nil
}

// FileExtractor reads the license from a JSON, TOML or YAML document chosen
// by file extension
type FileExtractor struct {
	Path string
}

// Extract implements Extractor
func (f FileExtractor) Extract(ctx context.Context) (*License, error) {
	if err := ctx.Err(); err != nil {
		return nil, terrors.FromContext(err)
	}
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, terrors.Wrap(err, terrors.CodeUnauthorizedAccess, "failed to read license file. path=%s", f.Path)
	}
	lic, err := Decode(data, filepath.Ext(f.Path))
	if err != nil {
		return nil, err
	}
	return lic, nil
}

// Decode parses a license document. ext selects the format: ".json",
// ".toml", ".yaml" or ".yml".
func Decode(data []byte, ext string) (*License, error) {
	var lic License
	var err error

	switch strings.ToLower(ext) {
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		err = dec.Decode(&lic)
	case ".toml":
		_, err = toml.Decode(string(data), &lic)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &lic)
	default:
		return nil, terrors.New(terrors.CodeInvalidConfiguration, "unsupported license format. extension=%s", ext)
	}
	if err != nil {
		return nil, terrors.Wrap(err, terrors.CodeInvalidConfiguration, "failed to decode license")
	}

	if lic.Plan == "" {
		return nil, terrors.New(terrors.CodeInvalidConfiguration, "the license plan is missing")
	}
	if lic.Limits.RootCommandLimit < 0 || lic.Limits.GroupedCommandLimit < 0 || lic.Limits.SubCommandLimit < 0 ||
		lic.Limits.OptionLimit < 0 || lic.Limits.ArgumentLimit < 0 {
		return nil, terrors.New(terrors.CodeInvalidConfiguration, "the license limits cannot be negative")
	}
	return &lic, nil
}

// Holder caches the license for the lifetime of the process. Readers see
// either the old or the new snapshot, never a partial update.
type Holder struct {
	extractor Extractor
	current   atomic.Pointer[License]
	mu        sync.Mutex
}

// NewHolder creates a holder around an extractor
func NewHolder(extractor Extractor) *Holder {
	return &Holder{extractor: extractor}
}

// Extract returns the cached license, extracting it on first use
func (h *Holder) Extract(ctx context.Context) (*License, error) {
	if lic := h.current.Load(); lic != nil {
		return lic, nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if lic := h.current.Load(); lic != nil {
		return lic, nil
	}
	lic, err := h.extractor.Extract(ctx)
	if err != nil {
		return nil, err
	}
	h.current.Store(lic)
	licenseLogger.Info("License extracted", "plan", lic.Plan, "tenant", lic.Claims.TenantID)
	return lic, nil
}

// Refresh extracts the license again and swaps the snapshot. On failure the
// previous license stays in place.
func (h *Holder) Refresh(ctx context.Context) (*License, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	lic, err := h.extractor.Extract(ctx)
	if err != nil {
		return nil, err
	}
	h.current.Store(lic)
	licenseLogger.Info("License refreshed", "plan", lic.Plan, "tenant", lic.Claims.TenantID)
	return lic, nil
}

// Current returns the cached license or nil
func (h *Holder) Current() *License {
	return h.current.Load()
}
