package media

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/photocore/photoadmin/internal/config"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 255, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newTestGenerator(t *testing.T) *PreviewGenerator {
	cfg := &config.Config{}
	cfg.Storage.CachePath = t.TempDir()
	cfg.Preview.MaxSize = 100
	cfg.Preview.Quality = 80
	return NewPreviewGenerator(cfg)
}

func TestGenerate_FitsIntoMaxSize(t *testing.T) {
	p := newTestGenerator(t)

	path, err := p.Generate("obj/1", bytes.NewReader(pngBytes(t, 400, 200)))
	require.NoError(t, err)
	assert.True(t, p.Exists("obj/1"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	w, h, err := Dimensions(data)
	require.NoError(t, err)
	assert.Equal(t, 100, w)
	assert.Equal(t, 50, h)
}

func TestGenerate_SmallImageKeepsSize(t *testing.T) {
	p := newTestGenerator(t)

	_, err := p.Generate("a", bytes.NewReader(pngBytes(t, 40, 30)))
	require.NoError(t, err)

	data, err := p.Load("a")
	require.NoError(t, err)
	w, h, err := Dimensions(data)
	require.NoError(t, err)
	assert.Equal(t, 40, w)
	assert.Equal(t, 30, h)
}

func TestGenerate_CachedSkipsSource(t *testing.T) {
	p := newTestGenerator(t)

	_, err := p.Generate("a", bytes.NewReader(pngBytes(t, 10, 10)))
	require.NoError(t, err)

	// повторно источник не читается, даже если он битый
	_, err = p.Generate("a", bytes.NewReader([]byte("garbage")))
	require.NoError(t, err)

	p.Delete("a")
	assert.False(t, p.Exists("a"))
	_, err = p.Generate("a", bytes.NewReader([]byte("garbage")))
	assert.Error(t, err)
}

func TestIsResizable(t *testing.T) {
	assert.True(t, IsResizable("image/jpeg"))
	assert.True(t, IsResizable("image/PNG; charset=binary"))
	assert.False(t, IsResizable("video/mp4"))
	assert.False(t, IsResizable(""))
}
