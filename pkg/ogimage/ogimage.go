package ogimage

import (
	"bytes"
	"context"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/sortinghat/pkg/utils/logging"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
	_ "golang.org/x/image/webp"
)

const (
	Width  = 600
	Height = 400

	DefaultHouse       = "Your House"
	DefaultDisplayName = "Anonymous User"

	borderWidth       = 20
	avatarSize        = 100
	avatarBorder      = 4
	avatarTop         = 50
	maxAvatarBytes    = 5 << 20
	maxTextRunes      = 128
	defaultFetchLimit = 5 * time.Second
)

var (
	colorBackground  = color.RGBA{0xf0, 0xf0, 0xf0, 0xff}
	colorBorder      = color.RGBA{0x4a, 0x90, 0xe2, 0xff}
	colorPlaceholder = color.RGBA{0xcc, 0xcc, 0xcc, 0xff}
	colorName        = color.RGBA{0x33, 0x33, 0x33, 0xff}
	colorHouse       = color.RGBA{0xd9, 0x5f, 0x24, 0xff}
	colorFooter      = color.RGBA{0x55, 0x55, 0x55, 0xff}
)

// Params are the texts and avatar of a share image. Empty fields fall back to
// defaults.
type Params struct {
	House       string
	DisplayName string
	PfpURL      string
}

// Renderer draws 600x400 share images
type Renderer struct {
	httpClient *http.Client
	bold       *opentype.Font
	regular    *opentype.Font
}

type Option func(*Renderer)

// WithHTTPClient sets the client used to fetch avatars. It replaces the
// default client, which refuses to connect to non public addresses.
func WithHTTPClient(client *http.Client) Option {
	return func(r *Renderer) {
		r.httpClient = client
	}
}

func New(opts ...Option) (*Renderer, error) {
	bold, err := opentype.Parse(gobold.TTF)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to parse bold font")
	}
	regular, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to parse regular font")
	}

	r := &Renderer{
		httpClient: newPublicHTTPClient(defaultFetchLimit),
		bold:       bold,
		regular:    regular,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Render returns the PNG encoded share image
func (r *Renderer) Render(ctx context.Context, p Params) ([]byte, error) {
	if p.House == "" {
		p.House = DefaultHouse
	}
	if p.DisplayName == "" {
		p.DisplayName = DefaultDisplayName
	}

	canvas := image.NewRGBA(image.Rect(0, 0, Width, Height))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(colorBorder), image.Point{}, draw.Src)
	inner := image.Rect(borderWidth, borderWidth, Width-borderWidth, Height-borderWidth)
	draw.Draw(canvas, inner, image.NewUniform(colorBackground), image.Point{}, draw.Src)

	center := image.Pt(Width/2, avatarTop+avatarSize/2)
	fillCircle(canvas, center, avatarSize/2+avatarBorder, colorBorder)

	avatar := r.fetchAvatar(ctx, p.PfpURL)
	if avatar == nil {
		fillCircle(canvas, center, avatarSize/2, colorPlaceholder)
	} else {
		drawAvatar(canvas, center, avatar)
	}

	texts := []struct {
		font     *opentype.Font
		size     float64
		color    color.Color
		text     string
		baseline int
	}{
		{r.bold, 40, colorName, p.DisplayName, 205},
		{r.bold, 50, colorHouse, "I'm a " + p.House + "!", 270},
		{r.regular, 28, colorFooter, "Find out your type now!", Height - borderWidth - 30},
	}

	for _, t := range texts {
		if err := drawCentered(canvas, t.font, t.size, t.color, t.text, t.baseline); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, canvas); err != nil {
		return nil, goerr.Wrap(err, "failed to encode png")
	}
	return buf.Bytes(), nil
}

// fetchAvatar returns nil when the avatar is absent or unusable. Only http and
// https URLs are fetched.
func (r *Renderer) fetchAvatar(ctx context.Context, rawURL string) image.Image {
	if rawURL == "" {
		return nil
	}
	logger := logging.From(ctx)

	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		logger.Debug("ignore invalid pfp url", "url", rawURL)
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		logger.Warn("failed to create avatar request", "error", err)
		return nil
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		logger.Warn("failed to fetch avatar", "error", err, "url", rawURL)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		logger.Warn("avatar request failed", "status", resp.StatusCode, "url", rawURL)
		return nil
	}

	img, _, err := image.Decode(io.LimitReader(resp.Body, maxAvatarBytes))
	if err != nil {
		logger.Warn("failed to decode avatar", "error", err, "url", rawURL)
		return nil
	}
	return img
}

func drawAvatar(dst draw.Image, center image.Point, src image.Image) {
	r := avatarSize / 2
	rect := image.Rect(center.X-r, center.Y-r, center.X+r, center.Y+r)

	scaled := image.NewRGBA(image.Rect(0, 0, avatarSize, avatarSize))
	draw.CatmullRom.Scale(scaled, scaled.Bounds(), src, src.Bounds(), draw.Src, nil)

	draw.DrawMask(dst, rect, scaled, image.Point{}, &circle{center: image.Pt(r, r), radius: r}, image.Point{}, draw.Over)
}

func fillCircle(dst draw.Image, center image.Point, radius int, c color.Color) {
	rect := image.Rect(center.X-radius, center.Y-radius, center.X+radius, center.Y+radius)
	mask := &circle{center: image.Pt(radius, radius), radius: radius}
	draw.DrawMask(dst, rect, image.NewUniform(c), image.Point{}, mask, image.Point{}, draw.Over)
}

func drawCentered(dst draw.Image, f *opentype.Font, size float64, c color.Color, text string, baseline int) error {
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return goerr.Wrap(err, "failed to create font face", goerr.V("size", size))
	}
	defer face.Close()

	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: face,
	}

	text = fitText(d, text, fixed.I(Width-2*borderWidth-20))
	width := d.MeasureString(text)
	d.Dot = fixed.Point26_6{
		X: fixed.I(Width/2) - width/2,
		Y: fixed.I(baseline),
	}
	d.DrawString(text)
	return nil
}

// fitText trims text with an ellipsis until it is narrower than maxWidth.
// Input beyond maxTextRunes is cut before measuring.
func fitText(d *font.Drawer, text string, maxWidth fixed.Int26_6) string {
	runes := []rune(text)
	truncated := len(runes) > maxTextRunes
	if truncated {
		runes = runes[:maxTextRunes]
	} else if d.MeasureString(text) <= maxWidth {
		return text
	}

	// largest prefix that fits together with the ellipsis
	n := sort.Search(len(runes)+1, func(i int) bool {
		return d.MeasureString(string(runes[:i])+"...") > maxWidth
	}) - 1
	if n <= 0 {
		return "..."
	}
	return string(runes[:n]) + "..."
}

// circle is an alpha mask of a filled circle inside its bounding square
type circle struct {
	center image.Point
	radius int
}

func (c *circle) ColorModel() color.Model {
	return color.AlphaModel
}

func (c *circle) Bounds() image.Rectangle {
	return image.Rect(c.center.X-c.radius, c.center.Y-c.radius, c.center.X+c.radius, c.center.Y+c.radius)
}

func (c *circle) At(x, y int) color.Color {
	dx := float64(x-c.center.X) + 0.5
	dy := float64(y-c.center.Y) + 0.5
	if dx*dx+dy*dy <= float64(c.radius*c.radius) {
		return color.Alpha{A: 0xff}
	}
	return color.Alpha{}
}
