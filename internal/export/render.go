package export

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"image"
	"image/color"
	imagedraw "image/draw"
	"image/png"
	"strings"
	"sync"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

//go:embed assets/badges/*.svg
var badgeFiles embed.FS

type badge string

const (
	badgeValid    badge = "valid"
	badgeInvalid  badge = "invalid"
	badgeModified badge = "modified"
	badgeApproval badge = "approval"
)

type badgeCacheKey struct {
	badge badge
	size  int
}

var (
	badgeCache   = map[badgeCacheKey]image.Image{}
	badgeCacheMu sync.RWMutex
)

type SheetOptions struct {
	Title  string
	Footer string
}

var (
	sheetBackground = color.RGBA{245, 242, 236, 255}
	headerPanel     = color.NRGBA{R: 28, G: 31, B: 46, A: 250}
	headerText      = color.NRGBA{R: 236, G: 239, B: 255, A: 255}
	rowStripe       = color.NRGBA{R: 233, G: 207, B: 163, A: 110}
	rowText         = color.NRGBA{R: 30, G: 30, B: 34, A: 255}
	mutedText       = color.NRGBA{R: 110, G: 110, B: 120, A: 255}
)

// RenderSheetPNG draws rows as a results table with status badges.
func RenderSheetPNG(ctx context.Context, rows []Row, opts SheetOptions) ([]byte, error) {
	const (
		width        = 760
		margin       = 24
		headerHeight = 48
		columnHeight = 24
		rowHeight    = 28
		footerHeight = 28
		badgeSize    = 18
		panelRadius  = 10
	)
	height := margin*2 + headerHeight + columnHeight + rowHeight*len(rows) + footerHeight

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	imagedraw.Draw(img, img.Bounds(), image.NewUniform(sheetBackground), image.Point{}, imagedraw.Src)

	face := basicfont.Face7x13
	drawer := &font.Drawer{Dst: img, Face: face}

	header := image.Rect(margin, margin, width-margin, margin+headerHeight)
	drawRoundedPanel(img, header, panelRadius, headerPanel)
	drawCenteredString(drawer, header, truncateWithEllipsis(face, opts.Title, header.Dx()-2*panelRadius), headerText)

	cols := []struct {
		label string
		x     int
	}{
		{"Bd", margin + 8},
		{"White", margin + 56},
		{"Result", margin + 320},
		{"Black", margin + 410},
		{"", width - margin - 3*(badgeSize+6)},
	}
	y := header.Max.Y + columnHeight - 7
	for _, c := range cols {
		drawText(drawer, c.label, c.x, y, mutedText)
	}

	top := header.Max.Y + columnHeight
	for i, r := range rows {
		if i%16 == 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			default:
			}
		}
		rowRect := image.Rect(margin, top+i*rowHeight, width-margin, top+(i+1)*rowHeight)
		if i%2 == 0 {
			drawRoundedPanel(img, rowRect, 6, rowStripe)
		}
		baseline := rowRect.Min.Y + (rowHeight+face.Metrics().Ascent.Ceil()-face.Metrics().Descent.Ceil())/2
		drawText(drawer, fmt.Sprintf("%d.%d", r.Round, r.Board), cols[0].x, baseline, rowText)
		drawText(drawer, truncateWithEllipsis(face, r.White, cols[2].x-cols[1].x-12), cols[1].x, baseline, rowText)
		drawText(drawer, r.Result, cols[2].x, baseline, rowText)
		drawText(drawer, truncateWithEllipsis(face, r.Black, cols[4].x-cols[3].x-12), cols[3].x, baseline, rowText)

		x := cols[4].x
		by := rowRect.Min.Y + (rowHeight-badgeSize)/2
		for _, b := range rowBadges(r) {
			icon, err := renderBadge(b, badgeSize)
			if err != nil {
				return nil, err
			}
			dst := image.Rect(x, by, x+badgeSize, by+badgeSize)
			imagedraw.Draw(img, dst, icon, image.Point{}, imagedraw.Over)
			x += badgeSize + 6
		}
	}

	if footer := strings.TrimSpace(opts.Footer); footer != "" {
		drawText(drawer, footer, margin, height-margin, mutedText)
	}

	var pngBuf bytes.Buffer
	if err := png.Encode(&pngBuf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return pngBuf.Bytes(), nil
}

func rowBadges(r Row) []badge {
	var out []badge
	if r.Valid != nil {
		if *r.Valid {
			out = append(out, badgeValid)
		} else {
			out = append(out, badgeInvalid)
		}
	}
	if r.Modified {
		out = append(out, badgeModified)
	}
	if r.RequiresApproval {
		out = append(out, badgeApproval)
	}
	return out
}

func renderBadge(b badge, size int) (image.Image, error) {
	key := badgeCacheKey{badge: b, size: size}

	badgeCacheMu.RLock()
	if img, ok := badgeCache[key]; ok {
		badgeCacheMu.RUnlock()
		return img, nil
	}
	badgeCacheMu.RUnlock()

	name := "assets/badges/" + string(b) + ".svg"
	data, err := badgeFiles.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("read badge asset %s: %w", name, err)
	}
	icon, err := oksvg.ReadIconStream(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse badge svg: %w", err)
	}
	icon.SetTarget(0, 0, float64(size), float64(size))

	img := image.NewRGBA(image.Rect(0, 0, size, size))
	scanner := rasterx.NewScannerGV(size, size, img, img.Bounds())
	raster := rasterx.NewDasher(size, size, scanner)
	icon.Draw(raster, 1.0)

	badgeCacheMu.Lock()
	badgeCache[key] = img
	badgeCacheMu.Unlock()
	return img, nil
}

func drawRoundedPanel(img *image.RGBA, rect image.Rectangle, radius int, clr color.Color) {
	if img == nil || rect.Empty() {
		return
	}
	maxRadius := rect.Dx() / 2
	if r := rect.Dy() / 2; r < maxRadius {
		maxRadius = r
	}
	if radius > maxRadius {
		radius = maxRadius
	}
	if radius <= 0 {
		imagedraw.Draw(img, rect, image.NewUniform(clr), image.Point{}, imagedraw.Over)
		return
	}
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	scanner := rasterx.NewScannerGV(w, h, img, img.Bounds())
	filler := rasterx.NewFiller(w, h, scanner)
	filler.SetColor(clr)
	rasterx.AddRoundRect(
		float64(rect.Min.X), float64(rect.Min.Y),
		float64(rect.Max.X), float64(rect.Max.Y),
		float64(radius), float64(radius), 0,
		rasterx.RoundGap, filler,
	)
	filler.Draw()
}

func drawText(drawer *font.Drawer, text string, x, baseline int, clr color.Color) {
	if text == "" {
		return
	}
	drawer.Src = image.NewUniform(clr)
	drawer.Dot = fixed.P(x, baseline)
	drawer.DrawString(text)
}

func drawCenteredString(drawer *font.Drawer, rect image.Rectangle, text string, clr color.Color) {
	text = strings.TrimSpace(text)
	if drawer == nil || text == "" {
		return
	}
	metrics := drawer.Face.Metrics()
	width := drawer.MeasureString(text).Round()
	x := rect.Min.X + (rect.Dx()-width)/2
	if x < rect.Min.X {
		x = rect.Min.X
	}
	baseline := rect.Min.Y + (rect.Dy()+metrics.Ascent.Ceil()-metrics.Descent.Ceil())/2
	drawText(drawer, text, x, baseline, clr)
}

func truncateWithEllipsis(face font.Face, text string, maxWidth int) string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" || maxWidth <= 0 || face == nil {
		return trimmed
	}
	drawer := font.Drawer{Face: face}
	if drawer.MeasureString(trimmed).Round() <= maxWidth {
		return trimmed
	}
	const ellipsis = "..."
	if drawer.MeasureString(ellipsis).Round() > maxWidth {
		return ""
	}
	runes := []rune(trimmed)
	for len(runes) > 0 {
		runes = runes[:len(runes)-1]
		candidate := string(runes) + ellipsis
		if drawer.MeasureString(candidate).Round() <= maxWidth {
			return candidate
		}
	}
	return ellipsis
}
