// Package canvas holds the shared pixel grid players paint on.
package canvas

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	DefaultWidth      = 50
	DefaultHeight     = 50
	DefaultBackground = "#FFFFFF"
)

var (
	ErrInvalidCoordinates = errors.New("invalid coordinates")
	ErrInvalidColor       = errors.New("invalid color")
)

var hexColor = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

type Config struct {
	Width      int    `yaml:"width"`
	Height     int    `yaml:"height"`
	Background string `yaml:"background"`
}

type Pixel struct {
	X         int    `json:"x"`
	Y         int    `json:"y"`
	Color     string `json:"color"`
	Timestamp int64  `json:"timestamp"`
}

type Snapshot struct {
	Pixels []Pixel `json:"pixels"`
	Width  int     `json:"width"`
	Height int     `json:"height"`
}

type Canvas struct {
	mu         sync.RWMutex
	width      int
	height     int
	background string
	pixels     map[int]Pixel
	now        func() time.Time
}

func New(cfg Config) *Canvas {
	if cfg.Width <= 0 {
		cfg.Width = DefaultWidth
	}
	if cfg.Height <= 0 {
		cfg.Height = DefaultHeight
	}
	if !hexColor.MatchString(cfg.Background) {
		cfg.Background = DefaultBackground
	}
	return &Canvas{
		width:      cfg.Width,
		height:     cfg.Height,
		background: strings.ToUpper(cfg.Background),
		pixels:     make(map[int]Pixel),
		now:        time.Now,
	}
}

// Place paints one pixel. Painting the background colour clears it.
func (c *Canvas) Place(x, y int, color string) (Pixel, error) {
	if x < 0 || y < 0 || x >= c.width || y >= c.height {
		return Pixel{}, fmt.Errorf("%w: (%d, %d) outside %dx%d", ErrInvalidCoordinates, x, y, c.width, c.height)
	}
	if !hexColor.MatchString(color) {
		return Pixel{}, fmt.Errorf("%w: %q", ErrInvalidColor, color)
	}
	color = strings.ToUpper(color)

	c.mu.Lock()
	defer c.mu.Unlock()
	p := Pixel{X: x, Y: y, Color: color, Timestamp: c.now().UnixMilli()}
	key := y*c.width + x
	if color == c.background {
		delete(c.pixels, key)
	} else {
		c.pixels[key] = p
	}
	return p, nil
}

// Snapshot lists painted pixels in row-major order.
func (c *Canvas) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	pixels := make([]Pixel, 0, len(c.pixels))
	for _, p := range c.pixels {
		pixels = append(pixels, p)
	}
	sort.Slice(pixels, func(i, j int) bool {
		if pixels[i].Y != pixels[j].Y {
			return pixels[i].Y < pixels[j].Y
		}
		return pixels[i].X < pixels[j].X
	})
	return Snapshot{Pixels: pixels, Width: c.width, Height: c.height}
}
