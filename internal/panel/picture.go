package panel

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/draw"
)

// RenderError is a failure confined to one panel.
type RenderError struct {
	Panel string
	Err   error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render %s: %v", e.Panel, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// FitCells returns the largest cell grid, within maxCols x maxRows, that
// shows a srcW x srcH image undistorted. Each cell is two pixels tall.
func FitCells(srcW, srcH, maxCols, maxRows int) (cols, rows int) {
	if srcW <= 0 || srcH <= 0 {
		srcW, srcH = DefaultSourceW, DefaultSourceH
	}
	maxCols, maxRows = max(maxCols, 1), max(maxRows, 1)
	cols = maxCols
	rows = int(math.Round(float64(cols) * float64(srcH) / float64(srcW) / 2))
	if rows > maxRows {
		rows = maxRows
		cols = int(math.Round(float64(rows) * 2 * float64(srcW) / float64(srcH)))
	}
	return max(cols, 1), max(rows, 1)
}

// Picture is a frame image down-sampled to a cell grid. Each cell shows two
// stacked pixels through the upper half block glyph.
type Picture struct {
	cols, rows  int
	top, bottom []colorful.Color
}

// DecodePicture decodes a base64 JPEG or PNG and scales it to cols x rows
// cells. Failures are *RenderError for the video panel.
func DecodePicture(b64 string, cols, rows int) (*Picture, error) {
	if b64 == "" {
		return nil, &RenderError{Panel: "video", Err: fmt.Errorf("empty frame")}
	}
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, &RenderError{Panel: "video", Err: fmt.Errorf("base64: %w", err)}
	}
	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, &RenderError{Panel: "video", Err: fmt.Errorf("decode image: %w", err)}
	}
	return NewPicture(src, cols, rows), nil
}

// NewPicture scales img to cols x rows cells.
func NewPicture(img image.Image, cols, rows int) *Picture {
	cols, rows = max(cols, 1), max(rows, 1)
	dst := image.NewRGBA(image.Rect(0, 0, cols, rows*2))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)

	p := &Picture{
		cols:   cols,
		rows:   rows,
		top:    make([]colorful.Color, cols*rows),
		bottom: make([]colorful.Color, cols*rows),
	}
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			i := row*cols + col
			p.top[i], _ = colorful.MakeColor(dst.RGBAAt(col, row*2))
			p.bottom[i], _ = colorful.MakeColor(dst.RGBAAt(col, row*2+1))
		}
	}
	return p
}

// Cells returns the picture size in cells.
func (p *Picture) Cells() (int, int) { return p.cols, p.rows }

// Render draws the picture with overlay composited on top: cells where the
// overlay has dots show the braille glyph over the cell's mean colour.
// overlay may be nil and must otherwise match the picture's cell size.
func (p *Picture) Render(overlay *Canvas) string {
	styles := styleCache{}
	var b strings.Builder
	for row := 0; row < p.rows; row++ {
		if row > 0 {
			b.WriteRune('\n')
		}
		for col := 0; col < p.cols; col++ {
			i := row*p.cols + col
			if overlay != nil {
				if r, clr, ok := overlay.Cell(col, row); ok {
					bg := p.top[i].BlendRgb(p.bottom[i], 0.5)
					b.WriteString(styles.fgbg(clr, bg).Render(string(r)))
					continue
				}
			}
			b.WriteString(styles.fgbg(p.top[i], p.bottom[i]).Render("▀"))
		}
	}
	return b.String()
}
