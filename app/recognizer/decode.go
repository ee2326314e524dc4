package recognizer

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"regexp"
	"strings"

	"golang.org/x/image/draw"
)

var ErrInvalidImage = errors.New("invalid image data")

var dataURLPrefix = regexp.MustCompile(`^data:image/\w+;base64,`)

// Decode turns a base64 PNG or JPEG (optionally a data URL) into a Sample:
// scaled to 28x28, RGB averaged and divided by 255.
func Decode(imageData string) (Sample, error) {
	var s Sample
	payload := dataURLPrefix.ReplaceAllString(strings.TrimSpace(imageData), "")
	if payload == "" {
		return s, fmt.Errorf("%w: empty", ErrInvalidImage)
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return s, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return s, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	dst := image.NewRGBA(image.Rect(0, 0, Side, Side))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)

	for y := 0; y < Side; y++ {
		for x := 0; x < Side; x++ {
			c := dst.RGBAAt(x, y)
			s[y*Side+x] = (float64(c.R) + float64(c.G) + float64(c.B)) / 3 / 255
		}
	}
	return s, nil
}
