package storage

import (
	"bytes"
	"context"
	"image/color"
	"regexp"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, imaging.New(w, h, color.NRGBA{R: 200, A: 255}), imaging.PNG))
	return buf.Bytes()
}

func TestObjectKey(t *testing.T) {
	key := ObjectKey("holiday photo.JPG")
	assert.Regexp(t, regexp.MustCompile(`^uploads/holiday photo-[0-9a-f]{12}\.jpg$`), key)

	assert.Regexp(t, `^uploads/passwd-[0-9a-f]{12}$`, ObjectKey("../../etc/passwd"))
	assert.Regexp(t, `^uploads/file-[0-9a-f]{12}\.png$`, ObjectKey(".png"))
	assert.NotEqual(t, ObjectKey("a.png"), ObjectKey("a.png"))
}

func TestDownscaleKeepsAspectRatio(t *testing.T) {
	out, resized, err := Downscale(pngBytes(t, 4000, 2000), "big.png", 1000)
	require.NoError(t, err)
	assert.True(t, resized)

	img, err := imaging.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 1000, img.Bounds().Dx())
	assert.Equal(t, 500, img.Bounds().Dy())
}

func TestDownscaleLeavesSmallImages(t *testing.T) {
	in := pngBytes(t, 300, 200)
	out, resized, err := Downscale(in, "small.png", 1000)
	require.NoError(t, err)
	assert.False(t, resized)
	assert.Equal(t, in, out)
}

func TestDownscaleRejectsNonImages(t *testing.T) {
	_, _, err := Downscale([]byte("hello"), "notes.txt", 1000)
	assert.Error(t, err)
	assert.False(t, IsImage("notes.txt"))
	assert.True(t, IsImage("a.jpeg"))
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore("http://localhost/blobs")
	url, err := store.Put(context.Background(), "uploads/a.txt", "text/plain", []byte("hi"))
	require.NoError(t, err)
	assert.Equal(t, "http://localhost/blobs/uploads/a.txt", url)

	obj, ok := store.Get("uploads/a.txt")
	require.True(t, ok)
	assert.Equal(t, "text/plain", obj.ContentType)
	assert.Equal(t, []byte("hi"), obj.Data)
}

func TestPublicBase(t *testing.T) {
	assert.Equal(t, "https://cdn.example.com", publicBase(S3Options{PublicURL: "https://cdn.example.com/"}))
	assert.Equal(t, "http://minio:9000/media", publicBase(S3Options{Endpoint: "http://minio:9000", Bucket: "media"}))
	assert.Equal(t, "https://media.s3.eu-west-1.amazonaws.com", publicBase(S3Options{Bucket: "media", Region: "eu-west-1"}))
}
