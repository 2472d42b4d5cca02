package model

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// DefaultImageType is the content type captured stills are stored with.
const DefaultImageType = "image/webp"

// IsRemote reports whether an image is a reference (URL, relative path, s3://)
// rather than embedded bytes.
func IsRemote(image string) bool {
	return !strings.HasPrefix(image, "data:")
}

// EncodeDataURI embeds image bytes as a base64 data URI.
func EncodeDataURI(contentType string, data []byte) string {
	if contentType == "" {
		contentType = DefaultImageType
	}
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// DecodeDataURI extracts the content type and bytes of a base64 data URI.
func DecodeDataURI(uri string) (string, []byte, error) {
	if !strings.HasPrefix(uri, "data:") {
		return "", nil, fmt.Errorf("not a data uri")
	}
	header, payload, ok := strings.Cut(uri[len("data:"):], ",")
	if !ok {
		return "", nil, fmt.Errorf("data uri has no payload")
	}
	contentType, isBase64 := strings.CutSuffix(header, ";base64")
	if !isBase64 {
		return "", nil, fmt.Errorf("data uri is not base64 encoded")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("decode data uri: %w", err)
	}
	return contentType, data, nil
}
