// Package backup renders a lossless YAML snapshot of a package and parses it
// back.
//
// Decimal amounts are written through their text form, so no precision is
// lost; Parse(Render(pkg)) yields a package equal to pkg.
package backup

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/gigledger/gigtax/internal/render"
	"github.com/gigledger/gigtax/internal/types"
	"gopkg.in/yaml.v3"
)

// FormatVersion is written into every snapshot. Parse rejects other versions.
const FormatVersion = 1

// ErrUnsupportedVersion is returned by Parse for snapshots of another version.
var ErrUnsupportedVersion = errors.New("unsupported backup format version")

type snapshot struct {
	FormatVersion int                     `yaml:"format_version"`
	Package       *types.TaxExportPackage `yaml:"package"`
}

// Renderer renders the backup snapshot.
type Renderer struct{}

// New creates a backup renderer.
func New() *Renderer { return &Renderer{} }

// Format implements render.Renderer.
func (r *Renderer) Format() render.Format { return render.FormatBackup }

// Render implements render.Renderer.
func (r *Renderer) Render(_ context.Context, pkg *types.TaxExportPackage) ([]render.Artifact, error) {
	if err := render.CheckPackage(render.FormatBackup, pkg); err != nil {
		return nil, err
	}
	data, err := Marshal(pkg)
	if err != nil {
		return nil, err
	}
	return []render.Artifact{{
		Name:        render.BaseName(pkg) + "_backup.yaml",
		ContentType: render.ContentTypeYAML,
		Data:        data,
	}}, nil
}

// Marshal serializes pkg.
func Marshal(pkg *types.TaxExportPackage) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(snapshot{FormatVersion: FormatVersion, Package: pkg}); err != nil {
		return nil, fmt.Errorf("failed to encode backup: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode backup: %w", err)
	}
	return buf.Bytes(), nil
}

// Parse restores a package from a snapshot.
func Parse(data []byte) (*types.TaxExportPackage, error) {
	var snap snapshot
	if err := yaml.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to parse backup: %w", err)
	}
	if snap.FormatVersion != FormatVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, snap.FormatVersion)
	}
	if snap.Package == nil {
		return nil, errors.New("backup has no package")
	}
	return snap.Package, nil
}
