package canvas

import (
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"net/url"
	"strings"
)

var (
	ErrInvalidDataURL       = errors.New("invalid data URL")
	ErrUnsupportedMediaType = errors.New("unsupported media type")
	ErrImageTooLarge        = errors.New("image exceeds size limit")
)

// Image is a decoded drawing snapshot.
type Image struct {
	MediaType string
	Data      []byte
}

// ParseDataURL decodes a `data:<mediatype>[;base64],<data>` URL carrying an
// image. maxBytes <= 0 disables the size check.
func ParseDataURL(raw string, maxBytes int) (Image, error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(raw), "data:")
	if !ok {
		return Image{}, fmt.Errorf("%w: missing data: scheme", ErrInvalidDataURL)
	}

	header, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return Image{}, fmt.Errorf("%w: missing ',' separator", ErrInvalidDataURL)
	}

	isBase64 := false
	if h, found := strings.CutSuffix(header, ";base64"); found {
		header, isBase64 = h, true
	}
	if header == "" {
		// RFC 2397 default; never an image.
		header = "text/plain;charset=US-ASCII"
	}

	mediaType, _, err := mime.ParseMediaType(header)
	if err != nil {
		return Image{}, fmt.Errorf("%w: media type: %v", ErrInvalidDataURL, err)
	}
	if !strings.HasPrefix(mediaType, "image/") {
		return Image{}, fmt.Errorf("%w: %s", ErrUnsupportedMediaType, mediaType)
	}

	data, err := decodePayload(payload, isBase64)
	if err != nil {
		return Image{}, fmt.Errorf("%w: %v", ErrInvalidDataURL, err)
	}
	if len(data) == 0 {
		return Image{}, fmt.Errorf("%w: empty payload", ErrInvalidDataURL)
	}
	if maxBytes > 0 && len(data) > maxBytes {
		return Image{}, fmt.Errorf("%w: %d bytes > %d", ErrImageTooLarge, len(data), maxBytes)
	}

	return Image{MediaType: mediaType, Data: data}, nil
}

func decodePayload(payload string, isBase64 bool) ([]byte, error) {
	if !isBase64 {
		s, err := url.PathUnescape(payload)
		if err != nil {
			return nil, err
		}
		return []byte(s), nil
	}

	// Browsers emit padded standard base64; tolerate unpadded input too.
	payload = strings.TrimRight(payload, "=")
	return base64.RawStdEncoding.DecodeString(payload)
}
