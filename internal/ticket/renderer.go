package ticket

import (
	"bytes"
	"context"
	"fmt"
	"hash/fnv"
	"image"
	"image/color"
	"strconv"
	"strings"
	"unicode"

	"ambient-quiz-service/internal/domain"
	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/goregular"
)

const (
	// BaseWidth and BaseHeight are the 1.91:1 card size before scaling.
	BaseWidth    = 600
	BaseHeight   = 314
	DefaultScale = 3

	ContentTypePNG = "image/png"

	padding      = 24.0
	avatarRadius = 56.0
)

var (
	backgroundDark = color.RGBA{R: 0x0a, G: 0x0a, B: 0x0f, A: 0xff}
	backgroundMid  = color.RGBA{R: 0x1a, G: 0x1a, B: 0x2e, A: 0xff}

	placeholderPalette = []color.RGBA{
		{R: 0x3b, G: 0x82, B: 0xf6, A: 0xff},
		{R: 0x8b, G: 0x5c, B: 0xf6, A: 0xff},
		{R: 0x10, G: 0xb9, B: 0x81, A: 0xff},
		{R: 0xf5, G: 0x9e, B: 0x0b, A: 0xff},
		{R: 0xef, G: 0x44, B: 0x44, A: 0xff},
		{R: 0x06, G: 0xb6, B: 0xd4, A: 0xff},
		{R: 0xec, G: 0x48, B: 0x99, A: 0xff},
		{R: 0x64, G: 0x74, B: 0x8b, A: 0xff},
	}
)

// Input is everything drawn on one ticket.
type Input struct {
	Username string
	Score    int
	Total    int
	Tier     domain.Tier
	Avatar   image.Image
}

// Renderer draws result cards. Fonts are parsed once in NewRenderer, so a
// constructed Renderer is always ready to draw.
type Renderer struct {
	scale   float64
	regular *truetype.Font
	bold    *truetype.Font
	mono    *truetype.Font
}

func NewRenderer(scale float64) (*Renderer, error) {
	if scale <= 0 {
		scale = DefaultScale
	}
	r := &Renderer{scale: scale}
	var err error
	if r.regular, err = truetype.Parse(goregular.TTF); err != nil {
		return nil, &domain.RenderError{Stage: "font", Err: err}
	}
	if r.bold, err = truetype.Parse(gobold.TTF); err != nil {
		return nil, &domain.RenderError{Stage: "font", Err: err}
	}
	if r.mono, err = truetype.Parse(gomono.TTF); err != nil {
		return nil, &domain.RenderError{Stage: "font", Err: err}
	}
	return r, nil
}

// Size reports the pixel dimensions of rendered tickets.
func (r *Renderer) Size() (int, int) {
	return int(BaseWidth * r.scale), int(BaseHeight * r.scale)
}

// Render rasterizes in into a PNG.
func (r *Renderer) Render(ctx context.Context, in Input) (out []byte, err error) {
	defer func() {
		if p := recover(); p != nil {
			out, err = nil, &domain.RenderError{Stage: "raster", Err: fmt.Errorf("panic: %v", p)}
		}
	}()

	if err := ctx.Err(); err != nil {
		return nil, &domain.RenderError{Stage: "setup", Err: err}
	}
	if in.Total <= 0 || in.Score < 0 || in.Score > in.Total {
		return nil, &domain.RenderError{Stage: "setup", Err: fmt.Errorf("score %d/%d out of range", in.Score, in.Total)}
	}

	w, h := r.Size()
	dc := gg.NewContext(w, h)
	s := r.scale
	tierColor := parseHexColor(in.Tier.Color, color.White)

	bg := gg.NewLinearGradient(0, 0, float64(w), float64(h))
	bg.AddColorStop(0, backgroundDark)
	bg.AddColorStop(0.5, backgroundMid)
	bg.AddColorStop(1, backgroundDark)
	dc.SetFillStyle(bg)
	dc.DrawRectangle(0, 0, float64(w), float64(h))
	dc.Fill()

	dc.SetRGBA(1, 1, 1, 0.05)
	dc.SetLineWidth(1 * s)
	dc.DrawRoundedRectangle(0.5*s, 0.5*s, float64(w)-s, float64(h)-s, 16*s)
	dc.Stroke()

	// Brand mark.
	dc.SetColor(backgroundMid)
	dc.DrawRoundedRectangle(padding*s, padding*s, 48*s, 48*s, 12*s)
	dc.Fill()
	dc.SetColor(tierColor)
	dc.SetLineWidth(2 * s)
	dc.DrawRoundedRectangle(padding*s, padding*s, 48*s, 48*s, 12*s)
	dc.Stroke()
	dc.SetFontFace(r.face(r.bold, 26))
	dc.SetRGB(1, 1, 1)
	dc.DrawStringAnchored("A", (padding+24)*s, (padding+24)*s, 0.5, 0.4)

	dc.SetFontFace(r.face(r.bold, 18))
	dc.DrawStringAnchored("AMBIENT", 84*s, 44*s, 0, 0)
	dc.SetFontFace(r.face(r.regular, 11))
	dc.SetRGBA(1, 1, 1, 0.4)
	dc.DrawStringAnchored("KNOWLEDGE QUIZ", 84*s, 62*s, 0, 0)

	if in.Avatar != nil {
		r.drawAvatar(dc, in.Avatar, tierColor)
	}

	label := r.face(r.regular, 11)

	dc.SetFontFace(label)
	dc.SetRGBA(1, 1, 1, 0.35)
	dc.DrawStringAnchored("PARTICIPANT", padding*s, 156*s, 0, 0)
	dc.SetFontFace(r.face(r.bold, 24))
	dc.SetRGB(1, 1, 1)
	dc.DrawStringAnchored("@"+in.Username, padding*s, 186*s, 0, 0)

	dc.SetFontFace(label)
	dc.SetRGBA(1, 1, 1, 0.35)
	dc.DrawStringAnchored("SCORE", padding*s, 212*s, 0, 0)
	dc.SetFontFace(r.face(r.bold, 36))
	dc.SetRGB(1, 1, 1)
	scoreText := strconv.Itoa(in.Score)
	scoreWidth, _ := dc.MeasureString(scoreText)
	dc.DrawStringAnchored(scoreText, padding*s, 250*s, 0, 0)
	dc.SetFontFace(r.face(r.regular, 20))
	dc.SetRGBA(1, 1, 1, 0.3)
	totalText := "/" + strconv.Itoa(in.Total)
	totalWidth, _ := dc.MeasureString(totalText)
	dc.DrawStringAnchored(totalText, padding*s+scoreWidth+4*s, 250*s, 0, 0)

	levelX := padding*s + scoreWidth + 4*s + totalWidth + 32*s
	dc.SetFontFace(label)
	dc.SetRGBA(1, 1, 1, 0.5)
	dc.DrawStringAnchored("LEVEL", levelX, 212*s, 0, 0)
	dc.SetFontFace(r.face(r.bold, 24))
	dc.SetColor(tierColor)
	dc.DrawStringAnchored(in.Tier.Name, levelX, 246*s, 0, 0)

	dc.SetRGBA(1, 1, 1, 0.08)
	dc.SetLineWidth(1 * s)
	dc.DrawLine(padding*s, 266*s, float64(w)-padding*s, 266*s)
	dc.Stroke()

	dc.SetRGBA(1, 1, 1, 0.25)
	dc.SetFontFace(label)
	dc.DrawStringAnchored("Machine Intelligence as Currency", padding*s, 284*s, 0, 0.5)
	dc.SetFontFace(r.face(r.mono, 11))
	dc.DrawStringAnchored("ambient.xyz", float64(w)-padding*s, 284*s, 1, 0.5)

	if err := ctx.Err(); err != nil {
		return nil, &domain.RenderError{Stage: "encode", Err: err}
	}
	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, &domain.RenderError{Stage: "encode", Err: err}
	}
	return buf.Bytes(), nil
}

func (r *Renderer) drawAvatar(dc *gg.Context, avatar image.Image, glow color.Color) {
	s := r.scale
	radius := avatarRadius * s
	cx := float64(dc.Width()) - padding*s - radius
	cy := padding*s + radius

	cr, cg, cb, _ := glow.RGBA()
	dc.SetRGBA(float64(cr)/0xffff, float64(cg)/0xffff, float64(cb)/0xffff, 0.27)
	dc.DrawCircle(cx, cy, radius+6*s)
	dc.Fill()

	size := int(2 * radius)
	dc.DrawCircle(cx, cy, radius)
	dc.Clip()
	dc.DrawImageAnchored(coverSquare(avatar, size), int(cx), int(cy), 0.5, 0.5)
	dc.ResetClip()

	dc.SetRGBA(1, 1, 1, 0.12)
	dc.SetLineWidth(3 * s)
	dc.DrawCircle(cx, cy, radius)
	dc.Stroke()
}

// Placeholder draws a deterministic initials avatar for username.
func (r *Renderer) Placeholder(username string, size int) image.Image {
	if size <= 0 {
		size = int(2 * avatarRadius * r.scale)
	}
	dc := gg.NewContext(size, size)
	half := float64(size) / 2
	dc.SetColor(placeholderColor(username))
	dc.DrawCircle(half, half, half)
	dc.Fill()
	dc.SetFontFace(r.face(r.bold, float64(size)*0.4/r.scale))
	dc.SetRGB(1, 1, 1)
	dc.DrawStringAnchored(initials(username), half, half, 0.5, 0.35)
	return dc.Image()
}

// face builds a face at size points on the base grid. Faces hold glyph
// caches and are not shared between renders.
func (r *Renderer) face(f *truetype.Font, size float64) font.Face {
	return truetype.NewFace(f, &truetype.Options{Size: size * r.scale, DPI: 72, Hinting: font.HintingFull})
}

// coverSquare center-crops src to a square and scales it to size×size.
func coverSquare(src image.Image, size int) image.Image {
	b := src.Bounds()
	side := b.Dx()
	if b.Dy() < side {
		side = b.Dy()
	}
	x0 := b.Min.X + (b.Dx()-side)/2
	y0 := b.Min.Y + (b.Dy()-side)/2
	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, image.Rect(x0, y0, x0+side, y0+side), draw.Over, nil)
	return dst
}

func placeholderColor(username string) color.RGBA {
	h := fnv.New32a()
	_, _ = h.Write([]byte(strings.ToLower(username)))
	return placeholderPalette[h.Sum32()%uint32(len(placeholderPalette))]
}

func initials(username string) string {
	var out []rune
	for _, c := range username {
		if unicode.IsLetter(c) || unicode.IsDigit(c) {
			out = append(out, unicode.ToUpper(c))
		}
		if len(out) == 2 {
			break
		}
	}
	if len(out) == 0 {
		return "?"
	}
	return string(out)
}

func parseHexColor(hex string, fallback color.Color) color.Color {
	hex = strings.TrimPrefix(hex, "#")
	if len(hex) != 6 {
		return fallback
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return fallback
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}
}
