// Package export writes ROI crops, their masks and JSON metadata to disk as a
// small training or inspection dataset.
package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/MeKo-Tech/roikit/internal/crop"
	"github.com/MeKo-Tech/roikit/internal/roi"
	"github.com/MeKo-Tech/roikit/internal/utils"
)

// ManifestSuffix is appended to the source base name for the metadata file.
const ManifestSuffix = "_rois.json"

// Options controls what Export writes.
type Options struct {
	Dir        string
	WriteMasks bool
	Overlay    bool
}

// Rect is an integer pixel rectangle in the source image.
type Rect struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

func fromRectangle(r image.Rectangle) Rect {
	return Rect{X: r.Min.X, Y: r.Min.Y, W: r.Dx(), H: r.Dy()}
}

// Entry describes one exported ROI.
type Entry struct {
	Source   string     `json:"source"`
	ROI      roi.Record `json:"roi"`
	CropRect Rect       `json:"crop_rect"`
	Crop     crop.Info  `json:"crop"`
	CropFile string     `json:"crop_file"`
	MaskFile string     `json:"mask_file,omitempty"`
}

// Manifest is the per-source metadata file.
type Manifest struct {
	Source  string  `json:"source"`
	Width   int     `json:"width"`
	Height  int     `json:"height"`
	Overlay string  `json:"overlay,omitempty"`
	Entries []Entry `json:"entries"`
}

// Export writes every ROI of rois cut from img into opts.Dir and a manifest
// next to them. ROIs that cannot be cropped are logged and skipped; the
// error is only non-nil for I/O failures or when nothing could be written.
func Export(img image.Image, source string, rois []roi.Model, opts Options) (*Manifest, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, &utils.ImageProcessingError{Operation: "export", Err: crop.ErrEmptyImage}
	}
	if opts.Dir == "" {
		return nil, errors.New("export: no output directory")
	}
	if err := os.MkdirAll(opts.Dir, 0o750); err != nil {
		return nil, fmt.Errorf("create export dir: %w", err)
	}

	base := baseName(source)
	b := img.Bounds()
	man := &Manifest{Source: source, Width: b.Dx(), Height: b.Dy()}
	for i, m := range rois {
		e, err := exportROI(img, base, i, m, opts)
		if errors.Is(err, crop.ErrEmptyCrop) || errors.Is(err, crop.ErrInvalidGeometry) {
			slog.Warn("Skipping roi outside image", "source", source, "roi", m.String(), "error", err)
			continue
		}
		if err != nil {
			return nil, err
		}
		e.Source = source
		man.Entries = append(man.Entries, e)
	}
	if len(rois) > 0 && len(man.Entries) == 0 {
		return nil, fmt.Errorf("export %s: %w", source, crop.ErrEmptyCrop)
	}

	if opts.Overlay {
		name := base + "_overlay.png"
		if err := utils.SaveImage(filepath.Join(opts.Dir, name), RenderOverlay(img, rois, nil)); err != nil {
			return nil, err
		}
		man.Overlay = name
	}
	if err := WriteManifest(filepath.Join(opts.Dir, base+ManifestSuffix), man); err != nil {
		return nil, err
	}
	slog.Debug("Exported rois", "source", source, "count", len(man.Entries), "dir", opts.Dir)
	return man, nil
}

func exportROI(img image.Image, base string, idx int, m roi.Model, opts Options) (Entry, error) {
	info, err := crop.BuildInfo(m)
	if err != nil {
		return Entry{}, err
	}
	pix, rect, err := crop.Rotated(img, info, m.AngleDeg())
	if err != nil {
		return Entry{}, err
	}

	stem := fmt.Sprintf("%s_%02d_%s", base, idx, roleName(m.Role))
	e := Entry{
		ROI:      m.Record(),
		CropRect: fromRectangle(rect),
		Crop:     info,
		CropFile: stem + ".png",
	}
	if err := utils.SaveImage(filepath.Join(opts.Dir, e.CropFile), pix); err != nil {
		return Entry{}, err
	}
	if opts.WriteMasks {
		e.MaskFile = stem + "_mask.png"
		if err := utils.SaveImage(filepath.Join(opts.Dir, e.MaskFile), crop.BuildMask(info, rect)); err != nil {
			return Entry{}, err
		}
	}
	return e, nil
}

// WriteManifest writes man as indented JSON.
func WriteManifest(path string, man *Manifest) error {
	data, err := json.MarshalIndent(man, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// ReadManifest loads a manifest written by WriteManifest.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: manifest path comes from the caller
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var man Manifest
	if err := json.Unmarshal(data, &man); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	return &man, nil
}

func baseName(source string) string {
	if source == "" {
		return "image"
	}
	b := filepath.Base(source)
	return strings.TrimSuffix(b, filepath.Ext(b))
}

func roleName(r roi.Role) string {
	if r == "" {
		return "roi"
	}
	return strings.ReplaceAll(string(r), string(filepath.Separator), "_")
}
