package project

import (
	"bytes"
	"image"
	"image/png"
	"testing"

	"github.com/tdewolff/test"
)

func pngBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	test.Error(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestReadChunksRejectsGarbage(t *testing.T) {
	_, err := readChunks([]byte("GIF89a"))
	test.That(t, err != nil)

	data := pngBytes(t, image.NewGray(image.Rect(0, 0, 1, 1)))
	_, err = readChunks(data[:len(data)-6])
	test.That(t, err != nil)
}

func TestTextChunkAccepted(t *testing.T) {
	data := pngBytes(t, image.NewGray(image.Rect(0, 0, 1, 1)))
	chunks, err := readChunks(data)
	test.Error(t, err)

	var out bytes.Buffer
	out.Write(pngSignature)
	for _, c := range chunks {
		if c.typ == "IEND" {
			writeChunk(&out, "tEXt", []byte(ChunkKeyword+"\x00"+`{"canvasSettings":{"isInfinite":true},"layers":[]}`))
		}
		writeChunk(&out, c.typ, c.data)
	}
	doc, err := ExtractFromPNG(out.Bytes())
	test.Error(t, err)
	test.That(t, doc.CanvasSettings.IsInfinite)
}
