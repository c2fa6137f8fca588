package decode

import (
	"errors"
	"fmt"
	"testing"
)

func ExampleDecode() {
	fmt.Println(Decode(0x0900), Decode(0x0123))
	// Output: -1792 291
}

func ExampleConvert() {
	fmt.Println(Convert([]uint16{0x8fff, 0x4800, 0x07ff, 0x0000}))
	// Output: [-1 -2048 2047 0]
}

func TestDecodeAllTwelveBitWords(t *testing.T) {
	for w := 0; w < 4096; w++ {
		expected := w
		if w&0x0800 != 0 {
			expected = w - 4096
		}
		if got := Decode(uint16(w)); got != expected {
			t.Fatalf("Decode(%#04x) = %d, expected %d", w, got, expected)
		}
	}
}

func TestDecodeIgnoresTagBits(t *testing.T) {
	for _, tag := range []uint16{0x1000, 0x4000, 0x8000, 0xf000} {
		if Decode(tag|0x0123) != 291 {
			t.Errorf("tag %#04x leaked into decoded value", tag)
		}
		if Decode(tag|0x0900) != -1792 {
			t.Errorf("tag %#04x changed sign handling", tag)
		}
	}
}

func TestDecodeIsPure(t *testing.T) {
	first := Convert([]uint16{0x0900, 0x0123})
	second := Convert([]uint16{0x0900, 0x0123})
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("position %d: %d != %d", i, first[i], second[i])
		}
	}
}

func TestConvertEmpty(t *testing.T) {
	if ev := Convert(nil); len(ev) != 0 {
		t.Errorf("expected empty event, got %v", ev)
	}
}

func TestAnalogPixelFromEncodedWords(t *testing.T) {
	l := Levels{Black: -100, UltraBlack: -500}
	for _, px := range []Pixel{
		{Column: 0, Row: 0, Value: 40},
		{Column: 12, Row: 34, Value: 120},
		{Column: 51, Row: 79, Value: -30},
	} {
		got, err := AnalogPixel(EncodeAnalogPixel(px, l), l)
		if err != nil {
			t.Fatalf("pixel %+v: %v", px, err)
		}
		if got != px {
			t.Errorf("expected %+v, got %+v", px, got)
		}
	}
}

func TestAnalogPixelErrors(t *testing.T) {
	l := Levels{Black: -100, UltraBlack: -500}
	if _, err := AnalogPixel([]uint16{1, 2, 3}, l); !errors.Is(err, ErrPixelLength) {
		t.Errorf("expected ErrPixelLength, got %v", err)
	}
	// every address digit at 5 puts the row far below zero
	top := l.EncodeLevel(5)
	words := []uint16{top, top, top, top, top, 0}
	if _, err := AnalogPixel(words, l); !errors.Is(err, ErrPixelAddress) {
		t.Errorf("expected ErrPixelAddress, got %v", err)
	}
}
