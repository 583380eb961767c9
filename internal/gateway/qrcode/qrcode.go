// Package qrcode renders opaque pairing payloads into displayable images.
// The gateway never interprets the payload; it only turns it into something
// a dashboard can put in an <img> tag.
package qrcode

import (
	"encoding/base64"

	qrc "github.com/skip2/go-qrcode"
	"github.com/waygate/waygate/internal/common/apperrors"
)

// ErrEncode is returned when a pairing payload cannot be rendered.
var ErrEncode apperrors.Error = apperrors.New("unable to encode pairing payload")

// Encoder renders a pairing payload into a data URL.
type Encoder interface {
	EncodeDataURL(payload string) (string, apperrors.Error)
}

// PNGEncoder renders payloads as base64-encoded PNG data URLs.
type PNGEncoder struct {
	// Size is the image edge length in pixels. Zero means 256.
	Size int
}

var _ Encoder = &PNGEncoder{}

// EncodeDataURL implements Encoder.
func (e *PNGEncoder) EncodeDataURL(payload string) (string, apperrors.Error) {
	size := e.Size
	if size == 0 {
		size = 256
	}
	png, err := qrc.Encode(payload, qrc.Medium, size)
	if err != nil {
		return "", ErrEncode.Err(err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}

// StaticEncoder returns a deterministic artifact derived from the payload.
// Used in tests where rendering a real image adds nothing.
type StaticEncoder struct{}

var _ Encoder = &StaticEncoder{}

// EncodeDataURL implements Encoder.
func (e *StaticEncoder) EncodeDataURL(payload string) (string, apperrors.Error) {
	return "data:text/plain;base64," + base64.StdEncoding.EncodeToString([]byte(payload)), nil
}
