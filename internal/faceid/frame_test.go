package faceid

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := range w {
		for y := range h {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode() error = %v", err)
	}
	return buf.Bytes()
}

func TestDecodeDataURL(t *testing.T) {
	payload := []byte("hello frame")
	enc := base64.StdEncoding.EncodeToString(payload)

	tests := []struct {
		name    string
		in      string
		wantErr bool
	}{
		{"data url", "data:image/jpeg;base64," + enc, false},
		{"bare base64", enc, false},
		{"unpadded", "data:image/png;base64," + base64.RawStdEncoding.EncodeToString(payload), false},
		{"empty", "", true},
		{"garbage", "data:image/jpeg;base64,@@@", true},
		{"empty payload", "data:image/jpeg;base64,", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeDataURL(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidDataURL) {
					t.Errorf("DecodeDataURL() error = %v, want ErrInvalidDataURL", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeDataURL() error = %v", err)
			}
			if !bytes.Equal(got, payload) {
				t.Errorf("DecodeDataURL() = %q, want %q", got, payload)
			}
		})
	}
}

func TestNormalizeFrame_Downscales(t *testing.T) {
	out, err := NormalizeFrame(pngBytes(t, 200, 100), 50)
	if err != nil {
		t.Fatalf("NormalizeFrame() error = %v", err)
	}
	img, err := jpeg.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("output is not JPEG: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 50 || b.Dy() != 25 {
		t.Errorf("size = %dx%d, want 50x25", b.Dx(), b.Dy())
	}
}

func TestNormalizeFrame_KeepsSmallFrames(t *testing.T) {
	out, err := NormalizeFrame(pngBytes(t, 40, 30), 1280)
	if err != nil {
		t.Fatalf("NormalizeFrame() error = %v", err)
	}
	img, err := jpeg.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("output is not JPEG: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 40 || b.Dy() != 30 {
		t.Errorf("size = %dx%d, want 40x30", b.Dx(), b.Dy())
	}
}

func TestNormalizeFrame_InvalidImage(t *testing.T) {
	if _, err := NormalizeFrame([]byte("not an image"), 100); !errors.Is(err, ErrInvalidImage) {
		t.Errorf("NormalizeFrame() error = %v, want ErrInvalidImage", err)
	}
}

// withDimensions rewrites the IHDR size of a PNG, leaving the pixel data as is.
func withDimensions(t *testing.T, data []byte, w, h uint32) []byte {
	t.Helper()
	out := append([]byte(nil), data...)
	if string(out[12:16]) != "IHDR" {
		t.Fatalf("unexpected first chunk %q", out[12:16])
	}
	binary.BigEndian.PutUint32(out[16:20], w)
	binary.BigEndian.PutUint32(out[20:24], h)
	binary.BigEndian.PutUint32(out[29:33], crc32.ChecksumIEEE(out[12:29]))
	return out
}

func TestNormalizeFrame_RejectsOversizedFrames(t *testing.T) {
	huge := withDimensions(t, pngBytes(t, 1, 1), 12000, 12000)

	if _, err := NormalizeFrame(huge, 1280); !errors.Is(err, ErrInvalidImage) {
		t.Errorf("NormalizeFrame() error = %v, want ErrInvalidImage", err)
	}

	url := "data:image/png;base64," + base64.StdEncoding.EncodeToString(huge)
	if _, err := DecodeCapture(url, 1280); !errors.Is(err, ErrInvalidImage) {
		t.Errorf("DecodeCapture() error = %v, want ErrInvalidImage", err)
	}
}

func TestDecodeCapture(t *testing.T) {
	url := "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngBytes(t, 10, 10))
	if _, err := DecodeCapture(url, 100); err != nil {
		t.Fatalf("DecodeCapture() error = %v", err)
	}
	if _, err := DecodeCapture("", 100); !errors.Is(err, ErrInvalidDataURL) {
		t.Errorf("DecodeCapture(\"\") error = %v", err)
	}
}
