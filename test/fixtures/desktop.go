// Package fixtures provides test helpers for integration tests.
package fixtures

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
)

// FakeDesktop lays out freedesktop application and icon directories
// under a temporary root.
type FakeDesktop struct {
	Root string
}

// NewFakeDesktop creates a new fake desktop rooted at root.
func NewFakeDesktop(root string) *FakeDesktop {
	return &FakeDesktop{Root: root}
}

// AppDir is where desktop entries are written.
func (f *FakeDesktop) AppDir() string {
	return filepath.Join(f.Root, "applications")
}

// DataDir is the XDG data directory holding the icon theme.
func (f *FakeDesktop) DataDir() string {
	return filepath.Join(f.Root, "share")
}

// Install writes a desktop entry for binary and, when icon is not empty,
// a 64x64 PNG icon in the hicolor theme with a 16x16 opaque center.
func (f *FakeDesktop) Install(binary, name, icon string) error {
	if err := os.MkdirAll(f.AppDir(), 0755); err != nil {
		return err
	}
	entry := fmt.Sprintf("[Desktop Entry]\nType=Application\nName=%s\nExec=/usr/bin/%s %%U\n", name, binary)
	if icon != "" {
		entry += "Icon=" + icon + "\n"
		if err := f.writeIcon(icon); err != nil {
			return err
		}
	}
	return os.WriteFile(filepath.Join(f.AppDir(), binary+".desktop"), []byte(entry), 0644)
}

func (f *FakeDesktop) writeIcon(icon string) error {
	dir := filepath.Join(f.DataDir(), "icons", "hicolor", "64x64", "apps")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	img := image.NewNRGBA(image.Rect(0, 0, 64, 64))
	for y := 24; y < 40; y++ {
		for x := 24; x < 40; x++ {
			img.Set(x, y, color.NRGBA{B: 255, A: 255})
		}
	}

	out, err := os.Create(filepath.Join(dir, icon+".png"))
	if err != nil {
		return err
	}
	defer out.Close()
	return png.Encode(out, img)
}
