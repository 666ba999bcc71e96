package project

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"image"
	"image/png"
)

// ChunkKeyword identifies the session text chunk inside a PNG.
const ChunkKeyword = "layer-composer"

var pngSignature = []byte("\x89PNG\r\n\x1a\n")

// EmbedInPNG encodes img as PNG with doc stored in an iTXt chunk.
func EmbedInPNG(img image.Image, doc *Document) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return EmbedInPNGData(buf.Bytes(), doc)
}

// EmbedInPNGData inserts doc into already encoded PNG bytes, just before the
// IEND chunk.
func EmbedInPNGData(data []byte, doc *Document) ([]byte, error) {
	var payload bytes.Buffer
	if err := doc.Encode(&payload); err != nil {
		return nil, err
	}
	chunks, err := readChunks(data)
	if err != nil {
		return nil, err
	}

	// keyword NUL, compression flag, method, empty language NUL, empty
	// translated keyword NUL, then UTF-8 text.
	var body bytes.Buffer
	body.WriteString(ChunkKeyword)
	body.Write([]byte{0, 0, 0, 0, 0})
	body.Write(payload.Bytes())

	var out bytes.Buffer
	out.Write(pngSignature)
	for _, c := range chunks {
		if c.typ == "IEND" {
			writeChunk(&out, "iTXt", body.Bytes())
		}
		if isSessionChunk(c) {
			continue
		}
		writeChunk(&out, c.typ, c.data)
	}
	return out.Bytes(), nil
}

// ExtractFromPNG returns the document embedded in PNG bytes. Both iTXt and
// tEXt chunks with the keyword are accepted.
func ExtractFromPNG(data []byte) (*Document, error) {
	chunks, err := readChunks(data)
	if err != nil {
		return nil, err
	}
	for _, c := range chunks {
		if !isSessionChunk(c) {
			continue
		}
		text, err := chunkText(c)
		if err != nil {
			return nil, err
		}
		return Decode(bytes.NewReader(text))
	}
	return nil, ErrNoEmbeddedPreset
}

type chunk struct {
	typ  string
	data []byte
}

func readChunks(data []byte) ([]chunk, error) {
	if !bytes.HasPrefix(data, pngSignature) {
		return nil, errors.New("not a PNG file")
	}
	var chunks []chunk
	rest := data[len(pngSignature):]
	for len(rest) >= 12 {
		n := binary.BigEndian.Uint32(rest[:4])
		if uint64(n)+12 > uint64(len(rest)) {
			return nil, errors.New("truncated PNG chunk")
		}
		c := chunk{typ: string(rest[4:8]), data: rest[8 : 8+n]}
		chunks = append(chunks, c)
		rest = rest[12+n:]
		if c.typ == "IEND" {
			return chunks, nil
		}
	}
	return nil, errors.New("PNG without IEND chunk")
}

func writeChunk(buf *bytes.Buffer, typ string, data []byte) {
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(data)))
	buf.Write(hdr[:])

	crc := crc32.NewIEEE()
	crc.Write([]byte(typ))
	crc.Write(data)
	buf.WriteString(typ)
	buf.Write(data)
	binary.BigEndian.PutUint32(hdr[:], crc.Sum32())
	buf.Write(hdr[:])
}

func isSessionChunk(c chunk) bool {
	if c.typ != "tEXt" && c.typ != "iTXt" {
		return false
	}
	return bytes.HasPrefix(c.data, []byte(ChunkKeyword+"\x00"))
}

func chunkText(c chunk) ([]byte, error) {
	rest := c.data[len(ChunkKeyword)+1:]
	if c.typ == "tEXt" {
		return rest, nil
	}
	if len(rest) < 2 {
		return nil, fmt.Errorf("%w: malformed iTXt chunk", ErrInvalidDocument)
	}
	if rest[0] != 0 {
		return nil, fmt.Errorf("%w: compressed iTXt chunks are not supported", ErrInvalidDocument)
	}
	rest = rest[2:]
	// Skip language tag and translated keyword.
	for i := 0; i < 2; i++ {
		j := bytes.IndexByte(rest, 0)
		if j < 0 {
			return nil, fmt.Errorf("%w: malformed iTXt chunk", ErrInvalidDocument)
		}
		rest = rest[j+1:]
	}
	return rest, nil
}
