package mimetypes

import (
	"chat-relay/errors"
	"encoding/base64"
	"fmt"
	"mime"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

type MIME string

const (
	Unknown   MIME = "unknown"
	TextPlain MIME = "text/plain"

	ImagePNG  MIME = "image/png"
	ImageJPEG MIME = "image/jpeg"
	ImageGIF  MIME = "image/gif"
	ImageWEBP MIME = "image/webp"
)

// Matches compares a media type string, parameters included, with an expected one.
func Matches(detected string, expected MIME) (MIME, bool) {
	mt, _, err := mime.ParseMediaType(detected)
	if err != nil {
		return Unknown, false
	}
	return expected, mt == string(expected)
}

// IsImage reports whether the media type belongs to the image family.
func (m MIME) IsImage() bool {
	return strings.HasPrefix(string(m), "image/")
}

// Declared returns the media type a data URL claims to carry, empty when there is none.
func Declared(dataURL string) string {
	header, _, ok := strings.Cut(strings.TrimPrefix(dataURL, "data:"), ",")
	if !ok || !strings.HasPrefix(dataURL, "data:") {
		return ""
	}
	return strings.TrimSuffix(header, ";base64")
}

// Sniff detects the media type of a base64 data URL ("data:image/png;base64,....")
// from its content, the declared type is ignored.
func Sniff(dataURL string) (MIME, error) {
	if !strings.HasPrefix(dataURL, "data:") {
		return Unknown, fmt.Errorf("not a data url: %w", errors.ErrInvalidInput)
	}
	header, payload, ok := strings.Cut(dataURL, ",")
	if !ok || !strings.HasSuffix(header, ";base64") {
		return Unknown, fmt.Errorf("data url is not base64 encoded: %w", errors.ErrInvalidInput)
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return Unknown, fmt.Errorf("data url payload: %w", errors.ErrInvalidInput)
	}
	mt, _, err := mime.ParseMediaType(mimetype.Detect(raw).String())
	if err != nil {
		return Unknown, nil
	}
	return MIME(mt), nil
}
