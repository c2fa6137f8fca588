package decode

import (
	"errors"
	"fmt"
)

const (
	NumRows = 80
	NumCols = 52

	// AnalogWords is the number of words per analog pixel hit: five
	// address levels followed by the pulse height.
	AnalogWords = 6
)

var (
	ErrPixelLength  = errors.New("wrong number of data words for a pixel")
	ErrPixelAddress = errors.New("invalid pixel address")
)

type Pixel struct {
	Column int
	Row    int
	Value  int
}

// Levels are the reference levels an analog ROC header carries.
type Levels struct {
	Black      int
	UltraBlack int
}

// unit is the spacing between two address levels.
func (l Levels) unit() int {
	return (l.Black - l.UltraBlack) / 4
}

// translateLevel maps one address word to its digit 0..5. Go integer
// division truncates toward zero, which the half-unit offset relies on.
func (l Levels) translateLevel(w uint16) int {
	unit := l.unit()
	if unit == 0 {
		return 0
	}
	y := Decode(w) - l.Black
	if y >= 0 {
		y += unit / 2
	} else {
		y -= unit / 2
	}
	return y/unit + 1
}

// AnalogPixel decodes an analog pixel hit. Column is encoded as two base-6
// digits of the double column, row as three base-6 digits.
func AnalogPixel(words []uint16, l Levels) (Pixel, error) {
	if len(words) != AnalogWords {
		return Pixel{}, fmt.Errorf("%w: %d", ErrPixelLength, len(words))
	}

	c := l.translateLevel(words[0])*6 + l.translateLevel(words[1])
	r := (l.translateLevel(words[2])*6+l.translateLevel(words[3]))*6 + l.translateLevel(words[4])

	px := Pixel{
		Row:    NumRows - r/2,
		Column: 2*c + (r & 1),
		Value:  Decode(words[5]) - l.Black,
	}
	if px.Row < 0 || px.Row >= NumRows || px.Column < 0 || px.Column >= NumCols {
		return px, fmt.Errorf("%w: column %d row %d", ErrPixelAddress, px.Column, px.Row)
	}
	return px, nil
}

// EncodeLevel is the inverse of translateLevel for digit d: the raw word a
// ROC drives for that address level.
func (l Levels) EncodeLevel(d int) uint16 {
	return uint16(l.Black+(d-1)*l.unit()) & wordMask
}

// EncodeAnalogPixel produces the six words AnalogPixel decodes back to px.
func EncodeAnalogPixel(px Pixel, l Levels) []uint16 {
	c := px.Column / 2
	r := 2*(NumRows-px.Row) + px.Column%2
	return []uint16{
		l.EncodeLevel(c / 6),
		l.EncodeLevel(c % 6),
		l.EncodeLevel(r / 36),
		l.EncodeLevel((r / 6) % 6),
		l.EncodeLevel(r % 6),
		uint16(l.Black+px.Value) & wordMask,
	}
}
