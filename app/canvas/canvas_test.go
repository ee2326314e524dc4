package canvas

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaults(t *testing.T) {
	c := New(Config{Background: "blue"})
	s := c.Snapshot()
	assert.Equal(t, DefaultWidth, s.Width)
	assert.Equal(t, DefaultHeight, s.Height)
	assert.Empty(t, s.Pixels)
	assert.Equal(t, DefaultBackground, c.background)
}

func TestPlace(t *testing.T) {
	c := New(Config{Width: 4, Height: 3})
	at := time.UnixMilli(1_700_000_000_000)
	c.now = func() time.Time { return at }

	tests := []struct {
		name    string
		x, y    int
		color   string
		wantErr error
	}{
		{"ok", 1, 2, "#ff0000", nil},
		{"negative x", -1, 0, "#000000", ErrInvalidCoordinates},
		{"x past width", 4, 0, "#000000", ErrInvalidCoordinates},
		{"y past height", 0, 3, "#000000", ErrInvalidCoordinates},
		{"short color", 0, 0, "#fff", ErrInvalidColor},
		{"named color", 0, 0, "red", ErrInvalidColor},
		{"not hex", 0, 0, "#GG0000", ErrInvalidColor},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := c.Place(tt.x, tt.y, tt.color)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, Pixel{X: 1, Y: 2, Color: "#FF0000", Timestamp: at.UnixMilli()}, p)
		})
	}

	s := c.Snapshot()
	require.Len(t, s.Pixels, 1)
	assert.Equal(t, "#FF0000", s.Pixels[0].Color)
}

func TestPlaceOverwritesAndClears(t *testing.T) {
	c := New(Config{Width: 3, Height: 3})
	_, err := c.Place(2, 0, "#000000")
	require.NoError(t, err)
	_, err = c.Place(0, 1, "#00ff00")
	require.NoError(t, err)
	_, err = c.Place(2, 0, "#0000ff")
	require.NoError(t, err)

	s := c.Snapshot()
	require.Len(t, s.Pixels, 2)
	assert.Equal(t, Pixel{X: 2, Y: 0, Color: "#0000FF", Timestamp: s.Pixels[0].Timestamp}, s.Pixels[0])
	assert.Equal(t, 1, s.Pixels[1].Y)

	_, err = c.Place(0, 1, "#ffffff")
	require.NoError(t, err)
	assert.Len(t, c.Snapshot().Pixels, 1)
}

func TestConcurrentPlace(t *testing.T) {
	c := New(Config{})
	var wg sync.WaitGroup
	for i := 0; i < DefaultWidth; i++ {
		wg.Add(1)
		go func(x int) {
			defer wg.Done()
			_, _ = c.Place(x, x, "#123456")
			_ = c.Snapshot()
		}(i)
	}
	wg.Wait()
	assert.Len(t, c.Snapshot().Pixels, DefaultWidth)
}
