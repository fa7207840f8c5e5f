package handler

import (
	"encoding/base64"
	"strings"

	dErrors "farmerid/pkg/domain-errors"
)

// decodeImage accepts "data:image/jpeg;base64,<payload>" as produced by
// canvas.toDataURL, or the bare base64 payload.
func decodeImage(image string) ([]byte, error) {
	image = strings.TrimSpace(image)
	if image == "" {
		return nil, dErrors.New(dErrors.CodeInvalidEvidence, "no image data received")
	}

	if rest, ok := strings.CutPrefix(image, "data:"); ok {
		meta, payload, found := strings.Cut(rest, ",")
		if !found || !strings.HasSuffix(meta, ";base64") || !strings.HasPrefix(meta, "image/") {
			return nil, dErrors.New(dErrors.CodeInvalidEvidence, "unsupported image encoding")
		}
		image = payload
	}

	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		if data, err := enc.DecodeString(image); err == nil && len(data) > 0 {
			return data, nil
		}
	}
	return nil, dErrors.New(dErrors.CodeInvalidEvidence, "image is not valid base64")
}
