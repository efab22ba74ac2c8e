package media

import (
	"bytes"
	"encoding/binary"
	"errors"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"testing"
)

func testImage(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x * 7), G: uint8(y * 5), B: 120, A: 255})
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func encodeJPEG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	return buf.Bytes()
}

// withOrientation inserts a minimal big-endian EXIF APP1 segment right after SOI.
func withOrientation(t *testing.T, jpg []byte, orientation uint16) []byte {
	t.Helper()
	var seg bytes.Buffer
	seg.WriteString("Exif\x00\x00")
	seg.WriteString("MM\x00\x2a")
	_ = binary.Write(&seg, binary.BigEndian, uint32(8)) // IFD0 offset
	_ = binary.Write(&seg, binary.BigEndian, uint16(1)) // entry count
	_ = binary.Write(&seg, binary.BigEndian, uint16(0x0112))
	_ = binary.Write(&seg, binary.BigEndian, uint16(3)) // SHORT
	_ = binary.Write(&seg, binary.BigEndian, uint32(1))
	_ = binary.Write(&seg, binary.BigEndian, orientation)
	_ = binary.Write(&seg, binary.BigEndian, uint16(0))
	_ = binary.Write(&seg, binary.BigEndian, uint32(0)) // next IFD

	var out bytes.Buffer
	out.Write(jpg[:2])
	out.Write([]byte{0xff, 0xe1})
	_ = binary.Write(&out, binary.BigEndian, uint16(seg.Len()+2))
	out.Write(seg.Bytes())
	out.Write(jpg[2:])
	return out.Bytes()
}

func decodeSize(t *testing.T, data []byte) (int, int, string) {
	t.Helper()
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode result: %v", err)
	}
	return cfg.Width, cfg.Height, format
}

func TestNormalizePNGUntouchedIsByteIdentical(t *testing.T) {
	n := NewNormalizer(95, 0)
	src := encodePNG(t, testImage(64, 32))

	res, err := n.Normalize(src, nil)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if !bytes.Equal(res.Data, src) {
		t.Fatal("expected original bytes to be returned verbatim")
	}
	if res.Size != int64(len(src)) {
		t.Fatalf("size = %d, want %d", res.Size, len(src))
	}
	if res.ContentType != "image/png" {
		t.Fatalf("content type = %q", res.ContentType)
	}
}

func TestNormalizeGIFResizeKeepsFormat(t *testing.T) {
	var buf bytes.Buffer
	if err := gif.Encode(&buf, testImage(200, 100), nil); err != nil {
		t.Fatalf("encode gif: %v", err)
	}
	n := NewNormalizer(95, 0)

	res, err := n.Normalize(buf.Bytes(), &Box{Width: 100, Height: 100})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	w, h, format := decodeSize(t, res.Data)
	if w != 100 || h != 50 || format != "gif" {
		t.Fatalf("got %dx%d %s, want 100x50 gif", w, h, format)
	}
	if res.ContentType != "image/gif" || res.Size != int64(len(res.Data)) {
		t.Fatalf("unexpected result metadata: %q %d", res.ContentType, res.Size)
	}
}

func TestNormalizeJPEGAlwaysReencodes(t *testing.T) {
	n := NewNormalizer(95, 0)
	src := withOrientation(t, encodeJPEG(t, testImage(40, 20)), 1)

	res, err := n.Normalize(src, nil)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if bytes.Equal(res.Data, src) {
		t.Fatal("expected JPEG to be re-encoded")
	}
	if bytes.Contains(res.Data, []byte("Exif\x00\x00")) {
		t.Fatal("EXIF segment survived re-encode")
	}

	again, err := n.Normalize(res.Data, nil)
	if err != nil {
		t.Fatalf("second Normalize: %v", err)
	}
	if again.ContentType != "image/jpeg" {
		t.Fatalf("content type = %q", again.ContentType)
	}
	if w, h, _ := decodeSize(t, again.Data); w != 40 || h != 20 {
		t.Fatalf("got %dx%d after second pass, want 40x20", w, h)
	}
}

func TestNormalizeJPEGAppliesOrientation(t *testing.T) {
	n := NewNormalizer(95, 0)
	src := withOrientation(t, encodeJPEG(t, testImage(40, 20)), 6)

	res, err := n.Normalize(src, nil)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if w, h, _ := decodeSize(t, res.Data); w != 20 || h != 40 {
		t.Fatalf("got %dx%d, want rotated 20x40", w, h)
	}
}

func TestNormalizeResizeFitsBox(t *testing.T) {
	n := NewNormalizer(95, 0)
	src := encodePNG(t, testImage(160, 40))

	res, err := n.Normalize(src, &Box{Width: 80, Height: 60})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if w, h, _ := decodeSize(t, res.Data); w != 80 || h != 20 {
		t.Fatalf("got %dx%d, want 80x20", w, h)
	}
}

func TestNormalizeRejectsInvalidInput(t *testing.T) {
	valid := encodePNG(t, testImage(64, 64))
	tests := []struct {
		name      string
		data      []byte
		maxPixels int
	}{
		{"not an image", []byte("definitely not a picture"), 0},
		{"empty", nil, 0},
		{"truncated png", valid[:len(valid)/2], 0},
		{"over pixel limit", valid, 64*64 - 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := NewNormalizer(95, tt.maxPixels)
			_, err := n.Normalize(tt.data, nil)
			if !errors.Is(err, ErrInvalidImage) {
				t.Fatalf("err = %v, want ErrInvalidImage", err)
			}
		})
	}
}
