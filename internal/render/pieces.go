package render

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"sync"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/park285/cheese-chess-hub/internal/chess"
)

type pieceCacheKey struct {
	piece chess.Piece
	size  int
}

var (
	pieceCache   = map[pieceCacheKey]image.Image{}
	pieceCacheMu sync.RWMutex
)

// token radius in a 45x45 viewBox
var pieceRadius = map[chess.Kind]float64{
	chess.King:   18,
	chess.Queen:  17,
	chess.Rook:   15.5,
	chess.Bishop: 15,
	chess.Knight: 15,
	chess.Pawn:   12,
}

func pieceSVG(p chess.Piece) []byte {
	fill, stroke := "#f8f8f8", "#1e1e1e"
	if p.Color == chess.Black {
		fill, stroke = "#303030", "#f0f0f0"
	}
	r := pieceRadius[p.Kind]
	var b bytes.Buffer
	b.WriteString(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 45 45" width="45" height="45">`)
	fmt.Fprintf(&b, `<circle cx="22.5" cy="23.5" r="%.1f" fill="#000000" fill-opacity="0.25"/>`, r)
	fmt.Fprintf(&b, `<circle cx="22.5" cy="22.5" r="%.1f" fill="%s" stroke="%s" stroke-width="1.5"/>`, r, fill, stroke)
	if p.Kind == chess.King || p.Kind == chess.Queen {
		fmt.Fprintf(&b, `<circle cx="22.5" cy="22.5" r="%.1f" fill="none" stroke="%s" stroke-width="1"/>`, r-4, stroke)
	}
	b.WriteString(`</svg>`)
	return b.Bytes()
}

func renderPieceImage(p chess.Piece, size int) (image.Image, error) {
	key := pieceCacheKey{piece: p, size: size}

	pieceCacheMu.RLock()
	if img, ok := pieceCache[key]; ok {
		pieceCacheMu.RUnlock()
		return img, nil
	}
	pieceCacheMu.RUnlock()

	icon, err := oksvg.ReadIconStream(bytes.NewReader(pieceSVG(p)))
	if err != nil {
		return nil, fmt.Errorf("parse piece svg %s: %w", p.Kind, err)
	}
	icon.SetTarget(0, 0, float64(size), float64(size))

	img := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.Transparent), image.Point{}, draw.Src)
	scanner := rasterx.NewScannerGV(size, size, img, img.Bounds())
	icon.Draw(rasterx.NewDasher(size, size, scanner), 1.0)

	drawPieceLetter(img, p, size)

	pieceCacheMu.Lock()
	pieceCache[key] = img
	pieceCacheMu.Unlock()
	return img, nil
}

func drawPieceLetter(img *image.RGBA, p chess.Piece, size int) {
	ink := color.Color(color.NRGBA{R: 30, G: 30, B: 30, A: 255})
	if p.Color == chess.Black {
		ink = color.NRGBA{R: 240, G: 240, B: 240, A: 255}
	}
	face := basicfont.Face7x13
	letter := string(rune(p.Letter()))
	drawer := &font.Drawer{Dst: img, Src: image.NewUniform(ink), Face: face}
	width := drawer.MeasureString(letter).Round()
	m := face.Metrics()
	baseline := (size + m.Ascent.Ceil() - m.Descent.Ceil()) / 2
	drawer.Dot = fixed.P((size-width)/2, baseline)
	drawer.DrawString(letter)
}
