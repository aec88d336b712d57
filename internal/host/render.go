package host

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
)

const jpegQuality = 90

// memoryView rasterizes an orthographic top-down projection of the scene.
type memoryView struct {
	model *MemoryModel
}

var kindFill = map[Kind]color.RGBA{
	KindGroup:     {176, 141, 87, 255},
	KindComponent: {110, 139, 181, 255},
	KindFace:      {205, 205, 205, 255},
	KindEdge:      {60, 60, 60, 255},
}

// WriteImage implements View. The encoder is chosen from the file
// extension; alpha is preserved only by PNG.
func (v *memoryView) WriteImage(path string, opts ImageOptions) error {
	if opts.Width < 1 || opts.Height < 1 {
		return fmt.Errorf("invalid image size %dx%d", opts.Width, opts.Height)
	}

	// Antialiasing is done by rendering at double resolution and
	// averaging back down.
	scale := 1
	if opts.Antialias {
		scale = 2
	}
	w, h := opts.Width*scale, opts.Height*scale

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	bg := color.RGBA{255, 255, 255, 255}
	if opts.Transparent {
		bg = color.RGBA{}
	}
	draw.Draw(img, img.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)

	v.project(img, w, h)

	if scale > 1 {
		img = downsample(img, opts.Width, opts.Height)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create image file: %w", err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		err = png.Encode(f, img)
	case ".jpg", ".jpeg":
		err = jpeg.Encode(f, img, &jpeg.Options{Quality: jpegQuality})
	default:
		return fmt.Errorf("unsupported image extension %q", filepath.Ext(path))
	}
	if err != nil {
		return fmt.Errorf("failed to encode image: %w", err)
	}
	return nil
}

// project draws each entity's footprint (X across, Y up) fitted to the
// canvas with a margin. An empty scene leaves the background untouched.
func (v *memoryView) project(img *image.RGBA, w, h int) {
	mb := v.model.Bounds()
	if mb.Empty() || mb.Width() == 0 && mb.Height() == 0 {
		return
	}

	margin := 0.05
	sx := float64(w) * (1 - 2*margin) / nonZero(mb.Width())
	sy := float64(h) * (1 - 2*margin) / nonZero(mb.Height())
	s := sx
	if sy < s {
		s = sy
	}
	ox := float64(w)*margin - mb.Min[0]*s
	oy := float64(h)*margin - mb.Min[1]*s

	for _, e := range v.model.entities {
		if e.Bounds.Empty() {
			continue
		}
		x0 := int(e.Bounds.Min[0]*s + ox)
		x1 := int(e.Bounds.Max[0]*s + ox)
		// Flip Y so larger coordinates draw toward the top.
		y0 := h - int(e.Bounds.Max[1]*s+oy)
		y1 := h - int(e.Bounds.Min[1]*s+oy)
		fillRect(img, image.Rect(x0, y0, x1+1, y1+1), kindFill[e.Kind])
	}
}

func nonZero(v float64) float64 {
	if v <= 0 {
		return 1
	}
	return v
}

func fillRect(img *image.RGBA, r image.Rectangle, c color.RGBA) {
	draw.Draw(img, r.Intersect(img.Bounds()), image.NewUniform(c), image.Point{}, draw.Src)
}

// downsample box-filters a 2x render back to the requested size.
func downsample(src *image.RGBA, w, h int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var r, g, b, a uint32
			for dy := 0; dy < 2; dy++ {
				for dx := 0; dx < 2; dx++ {
					pr, pg, pb, pa := src.At(x*2+dx, y*2+dy).RGBA()
					r += pr >> 8
					g += pg >> 8
					b += pb >> 8
					a += pa >> 8
				}
			}
			dst.SetRGBA(x, y, color.RGBA{uint8(r / 4), uint8(g / 4), uint8(b / 4), uint8(a / 4)})
		}
	}
	return dst
}
