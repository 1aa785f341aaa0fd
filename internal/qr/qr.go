// ABOUTME: Encodes pairing challenge strings as inline PNG data URIs.
// ABOUTME: The HTTP surface serves these directly for client-side rendering.

package qr

import (
	"encoding/base64"
	"errors"
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

// pngSize is the rendered QR image edge length in pixels.
const pngSize = 256

// dataURIPrefix precedes the base64 PNG bytes in the encoded challenge.
const dataURIPrefix = "data:image/png;base64,"

// ErrEmptyCode indicates an empty challenge string.
var ErrEmptyCode = errors.New("empty challenge code")

// EncodeDataURI renders the challenge string as a QR code PNG and returns it
// as an inline image data URI suitable for an <img> src attribute.
func EncodeDataURI(code string) (string, error) {
	if code == "" {
		return "", ErrEmptyCode
	}
	png, err := qrcode.Encode(code, qrcode.Medium, pngSize)
	if err != nil {
		return "", fmt.Errorf("rendering QR code: %w", err)
	}
	return dataURIPrefix + base64.StdEncoding.EncodeToString(png), nil
}
