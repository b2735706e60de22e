package quiz

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"strings"

	"github.com/pavelanni/docquiz/internal/model"
)

// DefaultMaxFileBytes matches the upload limit of the browser client.
const DefaultMaxFileBytes = 5 << 20

// Normalize selects the first descriptor and turns it into a Document.
// Descriptors after the first are ignored. maxBytes <= 0 disables the size check.
func Normalize(files []model.FileDescriptor, maxBytes int) (model.Document, error) {
	if len(files) == 0 {
		return model.Document{}, invalidInput("No files provided")
	}
	f := files[0]

	raw := bytes.TrimSpace(f.Data)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return model.Document{}, invalidInput("Invalid file format - missing data")
	}
	var data string
	if raw[0] != '"' || json.Unmarshal(raw, &data) != nil {
		return model.Document{}, invalidInput("File data must be base64 string")
	}
	if strings.TrimSpace(data) == "" {
		return model.Document{}, invalidInput("Invalid file format - missing data")
	}

	urlMime, payload := splitDataURL(data)
	payload = strings.Join(strings.Fields(payload), "")
	size, ok := decodedSize(payload)
	if !ok {
		return model.Document{}, invalidInput("File data must be base64 string")
	}
	if maxBytes > 0 && size > maxBytes {
		return model.Document{}, invalidInput("File exceeds the %d byte limit", maxBytes)
	}

	return model.Document{
		Name:     f.Name,
		MimeType: firstNonEmpty(f.MimeType, f.Type, urlMime, model.DefaultMimeType),
		Data:     payload,
		Size:     size,
	}, nil
}

// splitDataURL separates "data:<mime>;base64,<payload>" into its media type
// and payload. Bare payloads come back unchanged with an empty media type.
func splitDataURL(s string) (string, string) {
	if !strings.HasPrefix(s, "data:") {
		return "", s
	}
	header, payload, found := strings.Cut(s, ",")
	if !found {
		return "", s
	}
	header = strings.TrimPrefix(header, "data:")
	mime, _, _ := strings.Cut(header, ";")
	return strings.TrimSpace(mime), payload
}

func decodedSize(payload string) (int, bool) {
	if payload == "" {
		return 0, false
	}
	enc := base64.StdEncoding
	if len(payload)%4 != 0 {
		enc = base64.RawStdEncoding
	}
	b, err := enc.DecodeString(payload)
	if err != nil {
		return 0, false
	}
	return len(b), true
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
