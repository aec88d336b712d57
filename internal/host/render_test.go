package host

import (
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	_ "image/jpeg"
)

func TestWriteImage_TransparentPNG(t *testing.T) {
	m := NewMemoryHost().model
	path := filepath.Join(t.TempDir(), "out.png")

	err := m.View().WriteImage(path, ImageOptions{Width: 64, Height: 48, Transparent: true})
	if err != nil {
		t.Fatalf("WriteImage() error = %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open rendered image: %v", err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("decode rendered image: %v", err)
	}
	if img.Bounds().Dx() != 64 || img.Bounds().Dy() != 48 {
		t.Errorf("size = %dx%d, want 64x48", img.Bounds().Dx(), img.Bounds().Dy())
	}
	if _, _, _, a := img.At(0, 0).RGBA(); a != 0 {
		t.Errorf("empty scene on transparent background: corner alpha = %d, want 0", a)
	}
}

func TestWriteImage_JPEGOpaque(t *testing.T) {
	m := NewMemoryHost().model
	m.AddBox(KindGroup, "Slab", [3]float64{0, 0, 0}, [3]float64{100, 100, 10})
	path := filepath.Join(t.TempDir(), "out.jpg")

	err := m.View().WriteImage(path, ImageOptions{Width: 32, Height: 32, Antialias: true})
	if err != nil {
		t.Fatalf("WriteImage() error = %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open rendered image: %v", err)
	}
	defer f.Close()
	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		t.Fatalf("decode rendered image: %v", err)
	}
	if format != "jpeg" {
		t.Errorf("format = %q, want jpeg", format)
	}
	if cfg.Width != 32 || cfg.Height != 32 {
		t.Errorf("size = %dx%d, want 32x32", cfg.Width, cfg.Height)
	}
}

func TestWriteImage_DrawsGeometry(t *testing.T) {
	m := NewMemoryHost().model
	m.AddBox(KindGroup, "Slab", [3]float64{0, 0, 0}, [3]float64{100, 100, 10})
	path := filepath.Join(t.TempDir(), "out.png")

	if err := m.View().WriteImage(path, ImageOptions{Width: 40, Height: 40}); err != nil {
		t.Fatalf("WriteImage() error = %v", err)
	}

	f, _ := os.Open(path)
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("decode rendered image: %v", err)
	}
	// Center pixel should carry the group fill, not the white background.
	r, g, b, _ := img.At(20, 20).RGBA()
	if r>>8 == 255 && g>>8 == 255 && b>>8 == 255 {
		t.Error("center pixel is background; geometry was not drawn")
	}
}

func TestWriteImage_InvalidSize(t *testing.T) {
	m := NewMemoryHost().model
	path := filepath.Join(t.TempDir(), "out.png")
	if err := m.View().WriteImage(path, ImageOptions{Width: 0, Height: 10}); err == nil {
		t.Fatal("expected error for zero width")
	}
}

func TestWriteImage_UnknownExtension(t *testing.T) {
	m := NewMemoryHost().model
	path := filepath.Join(t.TempDir(), "out.gif")
	if err := m.View().WriteImage(path, ImageOptions{Width: 10, Height: 10}); err == nil {
		t.Fatal("expected error for unsupported extension")
	}
}
