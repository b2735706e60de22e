package main

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/pavelanni/docquiz/internal/model"
)

// readFileDescriptor loads a local file into the same descriptor shape the
// browser posts to the generation endpoint.
func readFileDescriptor(path string) (model.FileDescriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.FileDescriptor{}, fmt.Errorf("read %s: %w", path, err)
	}
	encoded, err := json.Marshal(base64.StdEncoding.EncodeToString(data))
	if err != nil {
		return model.FileDescriptor{}, fmt.Errorf("encode %s: %w", path, err)
	}
	mt := detectMimeType(path, data)
	return model.FileDescriptor{
		Name:     filepath.Base(path),
		Type:     mt,
		MimeType: mt,
		Data:     encoded,
	}, nil
}

// detectMimeType prefers the file extension and falls back to content
// sniffing. Parameters such as charset are dropped, since system MIME tables
// disagree on them.
func detectMimeType(path string, data []byte) string {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".md", ".markdown":
		return "text/markdown"
	}
	if mt := bareMediaType(mime.TypeByExtension(ext)); mt != "" {
		return mt
	}
	if len(data) == 0 {
		return model.DefaultMimeType
	}
	return bareMediaType(http.DetectContentType(data))
}

func bareMediaType(v string) string {
	if v == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(v)
	if err != nil {
		return v
	}
	return mt
}
