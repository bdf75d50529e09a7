package imaging

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/erazemk/zaloga/internal/docstore/memstore"
)

func createTestJPEG(w, h int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{255, 0, 0, 255})
		}
	}
	var buf bytes.Buffer
	jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90})
	return buf.Bytes()
}

func createTestPNG(w, h int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{0, 0, 255, 255})
		}
	}
	var buf bytes.Buffer
	png.Encode(&buf, img)
	return buf.Bytes()
}

func TestProcessJPEG(t *testing.T) {
	data := createTestJPEG(100, 100)
	result, err := Process(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Process JPEG: %v", err)
	}
	if result.MIME != "image/jpeg" {
		t.Errorf("expected image/jpeg, got %s", result.MIME)
	}
	if len(result.Data) == 0 {
		t.Error("expected non-empty data")
	}
}

func TestProcessPNG(t *testing.T) {
	data := createTestPNG(100, 100)
	result, err := Process(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Process PNG: %v", err)
	}
	if result.MIME != "image/jpeg" {
		t.Errorf("expected image/jpeg (always outputs JPEG), got %s", result.MIME)
	}
}

func TestProcessDownscale(t *testing.T) {
	// Create a 2048x2048 image.
	data := createTestJPEG(2048, 2048)
	result, err := Process(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Process large image: %v", err)
	}

	// Decode the result and check dimensions.
	img, _, err := image.Decode(bytes.NewReader(result.Data))
	if err != nil {
		t.Fatalf("decoding result: %v", err)
	}
	bounds := img.Bounds()
	if bounds.Dx() > MaxDimension || bounds.Dy() > MaxDimension {
		t.Errorf("expected max %dx%d, got %dx%d", MaxDimension, MaxDimension, bounds.Dx(), bounds.Dy())
	}
}

func TestProcessSmallImageNotUpscaled(t *testing.T) {
	data := createTestJPEG(50, 50)
	result, err := Process(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Process small image: %v", err)
	}

	img, _, err := image.Decode(bytes.NewReader(result.Data))
	if err != nil {
		t.Fatalf("decoding result: %v", err)
	}
	bounds := img.Bounds()
	if bounds.Dx() != 50 || bounds.Dy() != 50 {
		t.Errorf("small image should not be resized: got %dx%d", bounds.Dx(), bounds.Dy())
	}
}

func TestProcessWideImageKeepsAspect(t *testing.T) {
	data := createTestPNG(1600, 400)
	result, err := Process(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Process wide image: %v", err)
	}
	if result.Width != MaxDimension || result.Height != 200 {
		t.Errorf("expected %dx200, got %dx%d", MaxDimension, result.Width, result.Height)
	}
}

func TestProcessTooLarge(t *testing.T) {
	data := make([]byte, MaxUploadBytes+10)
	copy(data, createTestJPEG(10, 10))
	_, err := Process(bytes.NewReader(data))
	if !errors.Is(err, ErrTooLarge) {
		t.Errorf("expected ErrTooLarge, got %v", err)
	}
}

func TestPhotoRoundTrip(t *testing.T) {
	st := memstore.New()
	defer st.Close()
	ctx := context.Background()

	missing, err := LoadPhoto(ctx, st, "1")
	if err != nil || missing != nil {
		t.Fatalf("expected no photo, got %v, %v", missing, err)
	}

	first, _ := Process(bytes.NewReader(createTestJPEG(20, 20)))
	if err := SavePhoto(ctx, st, "1", first); err != nil {
		t.Fatalf("SavePhoto: %v", err)
	}
	second, _ := Process(bytes.NewReader(createTestPNG(30, 10)))
	if err := SavePhoto(ctx, st, "1", second); err != nil {
		t.Fatalf("SavePhoto replace: %v", err)
	}

	got, err := LoadPhoto(ctx, st, "1")
	if err != nil {
		t.Fatalf("LoadPhoto: %v", err)
	}
	if !bytes.Equal(got.Data, second.Data) || got.Width != 30 || got.Height != 10 {
		t.Errorf("expected the replacement photo, got %dx%d", got.Width, got.Height)
	}

	if err := DeletePhoto(ctx, st, "1"); err != nil {
		t.Fatalf("DeletePhoto: %v", err)
	}
	if err := DeletePhoto(ctx, st, "1"); err != nil {
		t.Fatalf("DeletePhoto twice: %v", err)
	}
}

func TestProcessInvalidFormat(t *testing.T) {
	_, err := Process(bytes.NewReader([]byte("not an image")))
	if err == nil {
		t.Error("expected error for invalid format")
	}
}

func TestProcessGIFRejected(t *testing.T) {
	// GIF magic bytes.
	_, err := Process(bytes.NewReader([]byte("GIF89a...")))
	if err == nil {
		t.Error("expected error for GIF")
	}
}
