package mimetypes

import (
	"mime"

	"github.com/gabriel-vasile/mimetype"
)

type MIME string

const (
	Unknown MIME = "unknown"

	ImagePNG  MIME = "image/png"
	ImageJPEG MIME = "image/jpeg"
	ImageGIF  MIME = "image/gif"
	ImageWEBP MIME = "image/webp"
)

// ChatImages lists the image formats accepted as chat attachments.
var ChatImages = []MIME{ImagePNG, ImageJPEG, ImageGIF, ImageWEBP}

func Matches(detected string, expected MIME) (MIME, bool) {
	mt, _, err := mime.ParseMediaType(detected)
	if err != nil {
		return Unknown, false
	}
	return expected, mt == string(expected)
}

// DetectImage sniffs the content and returns the image MIME type it carries.
// ok is false when the bytes are not one of ChatImages.
func DetectImage(data []byte) (MIME, bool) {
	detected := mimetype.Detect(data).String()
	for _, candidate := range ChatImages {
		if m, ok := Matches(detected, candidate); ok {
			return m, true
		}
	}
	return Unknown, false
}
