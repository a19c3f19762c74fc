package infra

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/natefinch/atomic"
)

const (
	// iconAlphaThreshold is the minimum alpha of a pixel that counts as content.
	iconAlphaThreshold = 20
	// minIconSide is the smallest side of a stored icon.
	minIconSide = 32
)

// PNGIconStore implements domain.IconStore. PNG icons are cropped to their
// visible content and squared; other formats are referenced in place.
type PNGIconStore struct {
	dir string
}

// NewPNGIconStore stores icons in dir.
func NewPNGIconStore(dir string) *PNGIconStore {
	return &PNGIconStore{dir: dir}
}

// Save normalizes the icon at srcPath and returns a file URI for it.
func (s *PNGIconStore) Save(name, srcPath string) (string, error) {
	if !strings.EqualFold(filepath.Ext(srcPath), ".png") {
		return fileURI(srcPath), nil
	}

	f, err := os.Open(srcPath)
	if err != nil {
		return "", fmt.Errorf("open icon: %w", err)
	}
	src, err := png.Decode(f)
	f.Close()
	if err != nil {
		return "", fmt.Errorf("decode icon %s: %w", srcPath, err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, CropIcon(src)); err != nil {
		return "", fmt.Errorf("encode icon: %w", err)
	}

	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return "", fmt.Errorf("create icon directory: %w", err)
	}
	dst := filepath.Join(s.dir, iconFileName(name))
	if err := atomic.WriteFile(dst, &buf); err != nil {
		return "", fmt.Errorf("write icon: %w", err)
	}
	return fileURI(dst), nil
}

// CropIcon trims transparent borders and pads the result to a centered
// square of at least minIconSide pixels.
func CropIcon(src image.Image) image.Image {
	box := opaqueBounds(src)
	side := box.Dx()
	if box.Dy() > side {
		side = box.Dy()
	}
	if side < minIconSide {
		side = minIconSide
	}

	dst := image.NewNRGBA(image.Rect(0, 0, side, side))
	offset := image.Pt((side-box.Dx())/2, (side-box.Dy())/2)
	draw.Draw(dst, image.Rectangle{Min: offset, Max: offset.Add(box.Size())}, src, box.Min, draw.Src)
	return dst
}

// opaqueBounds returns the smallest rectangle holding every pixel whose
// alpha reaches the threshold, or the full bounds if none does.
func opaqueBounds(img image.Image) image.Rectangle {
	b := img.Bounds()
	minX, minY, maxX, maxY := b.Max.X, b.Max.Y, b.Min.X-1, b.Min.Y-1
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			_, _, _, a := img.At(x, y).RGBA()
			if a>>8 < iconAlphaThreshold {
				continue
			}
			if x < minX {
				minX = x
			}
			if x > maxX {
				maxX = x
			}
			if y < minY {
				minY = y
			}
			if y > maxY {
				maxY = y
			}
		}
	}
	if maxX < minX {
		return b
	}
	return image.Rect(minX, minY, maxX+1, maxY+1)
}

func iconFileName(name string) string {
	r := strings.NewReplacer("/", "_", "\\", "_", "..", "_")
	return r.Replace(name) + ".png"
}

func fileURI(path string) string {
	return (&url.URL{Scheme: "file", Path: path}).String()
}
