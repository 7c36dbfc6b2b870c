// Package render draws a board position as a PNG image.
package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	imagedraw "image/draw"
	"image/png"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/park285/cheese-chess-hub/internal/chess"
)

type Options struct {
	// LastMove is shaded on its start and end squares.
	LastMove *chess.Move
	Header   string
	Turn     string
	// Flip puts row 1 at the top, for the black seat.
	Flip bool
}

const (
	squareSize   = 64
	boardSize    = squareSize * 8
	sideMargin   = 28
	topMargin    = 64
	bottomMargin = 28
	panelHeight  = 28
	panelRadius  = 8
)

var (
	lightSquare         = color.RGBA{233, 207, 163, 255}
	darkSquare          = color.RGBA{187, 136, 96, 255}
	lastMoveFill        = color.NRGBA{R: 255, G: 228, B: 120, A: 140}
	backgroundColor     = color.RGBA{22, 24, 34, 255}
	hudPanelColor       = color.NRGBA{R: 28, G: 31, B: 46, A: 250}
	hudTextPrimary      = color.NRGBA{R: 236, G: 239, B: 255, A: 255}
	hudTurnTextColor    = color.NRGBA{R: 204, G: 210, B: 236, A: 255}
	coordinateTextColor = color.NRGBA{R: 8, G: 214, B: 120, A: 255}
)

type BoardRenderer struct{}

func NewBoardRenderer() *BoardRenderer { return &BoardRenderer{} }

func (r *BoardRenderer) RenderPNG(ctx context.Context, board chess.Board, opts Options) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	img := image.NewRGBA(image.Rect(0, 0, boardSize+sideMargin*2, boardSize+topMargin+bottomMargin))
	imagedraw.Draw(img, img.Bounds(), image.NewUniform(backgroundColor), image.Point{}, imagedraw.Src)

	l := layout{origin: image.Pt(sideMargin, topMargin), flip: opts.Flip}
	drawHUD(img, opts, l.boardRect())
	l.drawSquares(img)
	if opts.LastMove != nil {
		for _, sq := range []chess.Square{opts.LastMove.Start, opts.LastMove.End} {
			if sq.Valid() {
				imagedraw.Draw(img, l.squareRect(sq), image.NewUniform(lastMoveFill), image.Point{}, imagedraw.Over)
			}
		}
	}

	var pieceErr error
	board.Each(func(sq chess.Square, p chess.Piece) {
		if pieceErr != nil {
			return
		}
		tile, err := renderPieceImage(p, squareSize)
		if err != nil {
			pieceErr = err
			return
		}
		imagedraw.Draw(img, l.squareRect(sq), tile, image.Point{}, imagedraw.Over)
	})
	if pieceErr != nil {
		return nil, pieceErr
	}
	l.drawCoordinates(img)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

type layout struct {
	origin image.Point
	flip   bool
}

func (l layout) boardRect() image.Rectangle {
	return image.Rect(l.origin.X, l.origin.Y, l.origin.X+boardSize, l.origin.Y+boardSize)
}

// cell maps a square to its on-screen column and row, both from the top-left.
func (l layout) cell(sq chess.Square) (x, y int) {
	if l.flip {
		return 8 - sq.Col, sq.Row - 1
	}
	return sq.Col - 1, 8 - sq.Row
}

func (l layout) squareRect(sq chess.Square) image.Rectangle {
	cx, cy := l.cell(sq)
	x := l.origin.X + cx*squareSize
	y := l.origin.Y + cy*squareSize
	return image.Rect(x, y, x+squareSize, y+squareSize)
}

func (l layout) drawSquares(dst *image.RGBA) {
	for row := 1; row <= 8; row++ {
		for col := 1; col <= 8; col++ {
			clr := lightSquare
			if (row+col)%2 == 0 {
				clr = darkSquare
			}
			imagedraw.Draw(dst, l.squareRect(chess.Sq(row, col)), image.NewUniform(clr), image.Point{}, imagedraw.Src)
		}
	}
}

func (l layout) drawCoordinates(dst *image.RGBA) {
	face := basicfont.Face7x13
	drawer := &font.Drawer{Dst: dst, Face: face, Src: image.NewUniform(coordinateTextColor)}
	ascent := face.Metrics().Ascent.Ceil()
	for i := 1; i <= 8; i++ {
		rank := l.squareRect(chess.Sq(i, 1))
		drawCenteredText(drawer, fmt.Sprint(i), l.origin.X-sideMargin/2, rank.Min.Y+squareSize/2+ascent/2)
		file := l.squareRect(chess.Sq(1, i))
		drawCenteredText(drawer, string(rune('a'+i-1)), file.Min.X+squareSize/2, l.origin.Y+boardSize+ascent+4)
	}
}

func drawHUD(img *image.RGBA, opts Options, boardRect image.Rectangle) {
	face := basicfont.Face7x13
	drawer := &font.Drawer{Dst: img, Face: face}

	title := strings.TrimSpace(opts.Header)
	if title == "" {
		title = "Chess"
	}
	turn := strings.TrimSpace(opts.Turn)

	bottom := boardRect.Min.Y - 14
	top := bottom - panelHeight
	half := boardRect.Dx() / 2
	titleRect := image.Rect(boardRect.Min.X, top, boardRect.Min.X+half-8, bottom)
	turnRect := image.Rect(boardRect.Min.X+half+8, top, boardRect.Max.X, bottom)

	drawRoundedPanel(img, titleRect, panelRadius, hudPanelColor)
	drawCenteredString(drawer, titleRect, truncateWithEllipsis(face, title, titleRect.Dx()-24), hudTextPrimary)
	if turn != "" {
		drawRoundedPanel(img, turnRect, panelRadius, hudPanelColor)
		drawCenteredString(drawer, turnRect, truncateWithEllipsis(face, turn, turnRect.Dx()-24), hudTurnTextColor)
	}
}

func truncateWithEllipsis(face font.Face, text string, maxWidth int) string {
	drawer := font.Drawer{Face: face}
	if maxWidth <= 0 || drawer.MeasureString(text).Round() <= maxWidth {
		return text
	}
	runes := []rune(text)
	for len(runes) > 0 {
		runes = runes[:len(runes)-1]
		candidate := string(runes) + "..."
		if drawer.MeasureString(candidate).Round() <= maxWidth {
			return candidate
		}
	}
	return "..."
}

func drawRoundedPanel(img *image.RGBA, rect image.Rectangle, radius int, clr color.Color) {
	if rect.Empty() {
		return
	}
	radius = min(radius, rect.Dx()/2, rect.Dy()/2)
	fill := image.NewUniform(clr)
	imagedraw.Draw(img, image.Rect(rect.Min.X+radius, rect.Min.Y, rect.Max.X-radius, rect.Max.Y), fill, image.Point{}, imagedraw.Over)
	imagedraw.Draw(img, image.Rect(rect.Min.X, rect.Min.Y+radius, rect.Min.X+radius, rect.Max.Y-radius), fill, image.Point{}, imagedraw.Over)
	imagedraw.Draw(img, image.Rect(rect.Max.X-radius, rect.Min.Y+radius, rect.Max.X, rect.Max.Y-radius), fill, image.Point{}, imagedraw.Over)
	corners := []image.Point{
		{rect.Min.X + radius, rect.Min.Y + radius},
		{rect.Max.X - radius - 1, rect.Min.Y + radius},
		{rect.Min.X + radius, rect.Max.Y - radius - 1},
		{rect.Max.X - radius - 1, rect.Max.Y - radius - 1},
	}
	for _, c := range corners {
		drawQuarterDisc(img, c, radius, rect, clr)
	}
}

// drawQuarterDisc fills the part of a disc that lies in the corner region outside the panel's straight bands.
func drawQuarterDisc(img *image.RGBA, center image.Point, radius int, panel image.Rectangle, clr color.Color) {
	inner := image.Rect(panel.Min.X+radius, panel.Min.Y+radius, panel.Max.X-radius, panel.Max.Y-radius)
	bandH := image.Rect(panel.Min.X+radius, panel.Min.Y, panel.Max.X-radius, panel.Max.Y)
	bandV := image.Rect(panel.Min.X, panel.Min.Y+radius, panel.Max.X, panel.Max.Y-radius)
	fill := image.NewUniform(clr)
	for y := -radius; y <= radius; y++ {
		for x := -radius; x <= radius; x++ {
			p := image.Pt(center.X+x, center.Y+y)
			if x*x+y*y > radius*radius || !p.In(panel) || p.In(inner) || p.In(bandH) || p.In(bandV) {
				continue
			}
			imagedraw.Draw(img, image.Rectangle{Min: p, Max: p.Add(image.Pt(1, 1))}, fill, image.Point{}, imagedraw.Over)
		}
	}
}

func drawCenteredString(drawer *font.Drawer, rect image.Rectangle, text string, clr color.Color) {
	if text == "" {
		return
	}
	m := drawer.Face.Metrics()
	width := drawer.MeasureString(text).Round()
	x := max(rect.Min.X, rect.Min.X+(rect.Dx()-width)/2)
	baseline := rect.Min.Y + (rect.Dy()+m.Ascent.Ceil()-m.Descent.Ceil())/2
	drawer.Src = image.NewUniform(clr)
	drawer.Dot = fixed.P(x, baseline)
	drawer.DrawString(text)
}

func drawCenteredText(drawer *font.Drawer, text string, centerX, baseline int) {
	width := drawer.MeasureString(text).Round()
	drawer.Dot = fixed.P(centerX-width/2, baseline)
	drawer.DrawString(text)
}
