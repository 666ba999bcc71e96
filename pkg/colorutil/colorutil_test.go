package colorutil

import (
	"image/color"
	"testing"

	"github.com/tdewolff/test"
)

func TestParse(t *testing.T) {
	var tests = []struct {
		in   string
		want color.NRGBA
	}{
		{"#fff", White},
		{"#000000", Black},
		{"#ff000080", color.NRGBA{R: 255, A: 128}},
		{"#1e3a", color.NRGBA{R: 0x11, G: 0xee, B: 0x33, A: 0xaa}},
		{"rgb(10, 20, 30)", color.NRGBA{R: 10, G: 20, B: 30, A: 255}},
		{"rgba(255,0,0,0.5)", color.NRGBA{R: 255, A: 128}},
		{"Transparent", Transparent},
		{"", Transparent},
		{" Red ", color.NRGBA{R: 255, A: 255}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			test.Error(t, err)
			test.T(t, got, tt.want)
		})
	}
}

func TestParseInvalid(t *testing.T) {
	for _, in := range []string{"#12", "rgb(1,2)", "chartreuse-ish", "#zzzzzz", "#ggg", "#12345g"} {
		_, err := Parse(in)
		test.That(t, err != nil, in)
	}
	test.T(t, MustParse("nope", White), White)
}

func TestHex(t *testing.T) {
	test.String(t, Hex(color.NRGBA{R: 0x12, G: 0x34, B: 0x56, A: 255}), "#123456")
	test.String(t, Hex(color.NRGBA{R: 0x12, G: 0x34, B: 0x56, A: 0x80}), "#12345680")
}
