// Package render draws the day's schedule as a PNG card.
package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"strings"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"remindbot/internal/activity"
)

// noEndWindow is how long an occurrence without an end counts as active.
const noEndWindow = 5 * time.Minute

type Config struct {
	FontPath  string
	FontSize  float64
	Watermark string
	Width     int
}

// Request is one render call. The "now" marker is Now shifted by Offset.
type Request struct {
	Events []activity.Occurrence
	Now    time.Time
	Offset time.Duration
}

type Renderer struct {
	cfg        Config
	titleFace  font.Face
	bodyFace   font.Face
	lineHeight int
}

var (
	colBackground = color.RGBA{0xf5, 0xf6, 0xfa, 0xff}
	colHeader     = color.RGBA{0x2f, 0x36, 0x40, 0xff}
	colCard       = color.RGBA{0xff, 0xff, 0xff, 0xff}
	colCardBorder = color.RGBA{0xdc, 0xdf, 0xe6, 0xff}
	colHighlight  = color.RGBA{0xff, 0xe8, 0xa3, 0xff}
	colHighBorder = color.RGBA{0xf0, 0xa5, 0x00, 0xff}
	colText       = color.RGBA{0x22, 0x22, 0x22, 0xff}
	colMuted      = color.RGBA{0x77, 0x7c, 0x85, 0xff}
	colLast       = color.RGBA{0xff, 0x4d, 0x4d, 0xff}
	colWatermark  = color.RGBA{0xb0, 0xb4, 0xbc, 0xff}
)

// New builds a renderer. Without FontPath the built-in 7x13 bitmap face is used.
func New(cfg Config) (*Renderer, error) {
	if cfg.Width <= 0 {
		cfg.Width = 800
	}
	if cfg.FontSize <= 0 {
		cfg.FontSize = 18
	}
	r := &Renderer{cfg: cfg}
	if strings.TrimSpace(cfg.FontPath) == "" {
		r.titleFace, r.bodyFace = basicfont.Face7x13, basicfont.Face7x13
		r.lineHeight = 13
		return r, nil
	}

	b, err := os.ReadFile(cfg.FontPath)
	if err != nil {
		return nil, fmt.Errorf("render font: %w", err)
	}
	f, err := opentype.Parse(b)
	if err != nil {
		return nil, fmt.Errorf("render font: %w", err)
	}
	body, err := opentype.NewFace(f, &opentype.FaceOptions{Size: cfg.FontSize, DPI: 72, Hinting: font.HintingFull})
	if err != nil {
		return nil, err
	}
	title, err := opentype.NewFace(f, &opentype.FaceOptions{Size: cfg.FontSize * 1.4, DPI: 72, Hinting: font.HintingFull})
	if err != nil {
		return nil, err
	}
	r.titleFace, r.bodyFace = title, body
	r.lineHeight = body.Metrics().Height.Ceil()
	return r, nil
}

// Render returns the PNG bytes of the schedule card.
func (r *Renderer) Render(ctx context.Context, req Request) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	img := r.draw(req)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *Renderer) draw(req Request) *image.RGBA {
	const (
		pad    = 24
		gap    = 16
		header = 72
	)
	cardH := 2*r.lineHeight + 28

	left, right := Columns(req.Events)
	rows := len(left)
	width := r.cfg.Width
	height := header + pad + rows*(cardH+gap) + pad
	if r.cfg.Watermark != "" {
		height += r.lineHeight + gap
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(colBackground), image.Point{}, draw.Src)
	fill(img, image.Rect(0, 0, width, header), colHeader)

	now := req.Now.Add(req.Offset)
	title := fmt.Sprintf("Today's activities  %s  %s", req.Now.Format("2006-01-02"), req.Now.Weekday())
	r.text(img, r.titleFace, pad, header/2+r.lineHeight/2, title, color.White)

	last := LastSessions(req.Events)
	colW := (width - 2*pad - gap) / 2
	for col, events := range [][]activity.Occurrence{left, right} {
		x := pad + col*(colW+gap)
		for i, ev := range events {
			y := header + pad + i*(cardH+gap)
			rect := image.Rect(x, y, x+colW, y+cardH)
			bg, border := colCard, colCardBorder
			if Active(ev, now) {
				bg, border = colHighlight, colHighBorder
			}
			fill(img, rect, border)
			fill(img, rect.Inset(2), bg)

			r.text(img, r.bodyFace, x+14, y+10+r.lineHeight, TimeLabel(ev), colMuted)
			nameCol := color.Color(colText)
			if last[ev] {
				nameCol = colLast
			}
			r.text(img, r.bodyFace, x+14, y+18+2*r.lineHeight, ev.Name, nameCol)
		}
	}

	if r.cfg.Watermark != "" {
		d := &font.Drawer{Face: r.bodyFace}
		w := d.MeasureString(r.cfg.Watermark).Ceil()
		r.text(img, r.bodyFace, width-pad-w, height-pad/2, r.cfg.Watermark, colWatermark)
	}
	return img
}

func (r *Renderer) text(dst draw.Image, face font.Face, x, y int, s string, c color.Color) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

func fill(dst draw.Image, r image.Rectangle, c color.Color) {
	draw.Draw(dst, r, image.NewUniform(c), image.Point{}, draw.Src)
}
