package main

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pavelanni/docquiz/internal/model"
	"github.com/pavelanni/docquiz/internal/quiz"
	"github.com/pavelanni/docquiz/internal/store"
)

func writeTemp(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func TestReadFileDescriptor(t *testing.T) {
	content := []byte("%PDF-1.4 example")
	path := writeTemp(t, "lecture.pdf", content)

	fd, err := readFileDescriptor(path)
	if err != nil {
		t.Fatalf("readFileDescriptor: %v", err)
	}
	if fd.Name != "lecture.pdf" || fd.MimeType != "application/pdf" {
		t.Errorf("descriptor = %+v", fd)
	}

	doc, err := quiz.Normalize([]model.FileDescriptor{fd}, quiz.DefaultMaxFileBytes)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	decoded, _ := base64.StdEncoding.DecodeString(doc.Data)
	if !bytes.Equal(decoded, content) {
		t.Errorf("round trip mismatch: %q", decoded)
	}

	if _, err := readFileDescriptor(filepath.Join(t.TempDir(), "missing.pdf")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestDetectMimeType(t *testing.T) {
	tests := []struct {
		path string
		data []byte
		want string
	}{
		{"a.pdf", nil, "application/pdf"},
		{"notes.md", []byte("# hi"), "text/markdown"},
		{"notes.MARKDOWN", []byte("# hi"), "text/markdown"},
		{"page.html", nil, "text/html"},
		{"noext", []byte("plain words"), "text/plain"},
		{"noext", []byte("%PDF-1.7\n"), "application/pdf"},
		{"empty", nil, model.DefaultMimeType},
	}
	for _, tt := range tests {
		if got := detectMimeType(tt.path, tt.data); got != tt.want {
			t.Errorf("detectMimeType(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestBodyLimit(t *testing.T) {
	if bodyLimit(0) != 0 {
		t.Error("zero file limit should disable the body limit")
	}
	if got := bodyLimit(3 << 20); got != 4<<20+64<<10 {
		t.Errorf("bodyLimit(3MiB) = %d", got)
	}
}

func TestValidateCommand(t *testing.T) {
	good := `[` + strings.Repeat(`{"question":"q","options":["a","b","c","d"],"answer":"A"},`, 3) +
		`{"question":"q","options":["a","b","c","d"],"answer":"A"}]`
	bad := `{"questions":[{"question":1,"options":["a"],"answer":"Z"}]}`

	run := func(path string) (string, string, error) {
		cmd := rootCmd()
		var out, errOut bytes.Buffer
		cmd.SetOut(&out)
		cmd.SetErr(&errOut)
		cmd.SetArgs([]string{"validate", path, "--log-level", "error"})
		err := cmd.Execute()
		return out.String(), errOut.String(), err
	}

	out, _, err := run(writeTemp(t, "good.json", []byte(good)))
	if err != nil {
		t.Fatalf("validate good: %v", err)
	}
	if !strings.Contains(out, "ok, 4 questions") {
		t.Errorf("output = %q", out)
	}

	_, errOut, err := run(writeTemp(t, "bad.json", []byte(bad)))
	if err == nil {
		t.Fatal("validate bad: expected error")
	}
	if !strings.Contains(errOut, "answer") {
		t.Errorf("violations not printed: %q", errOut)
	}
}

func TestExportCommand(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "docquiz.db")
	db, err := store.New(dbPath)
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	if _, err := db.EnsureModel("test-model"); err != nil {
		t.Fatalf("EnsureModel: %v", err)
	}
	if err := db.RecordGeneration(model.GenerationRecord{Outcome: model.OutcomeInvalidInput, Detail: "No files provided", CreatedAt: time.Now()}); err != nil {
		t.Fatalf("RecordGeneration: %v", err)
	}
	db.Close()

	outPath := filepath.Join(t.TempDir(), "export.json")
	cmd := rootCmd()
	cmd.SetArgs([]string{"export", "--db", dbPath, "--output", outPath, "--log-level", "error"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("export: %v", err)
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	var export model.CacheExport
	if err := json.Unmarshal(data, &export); err != nil {
		t.Fatalf("decode export: %v", err)
	}
	if export.Model != "test-model" || len(export.Generations) != 1 || export.Outcomes[model.OutcomeInvalidInput] != 1 {
		t.Errorf("export = %+v", export)
	}
}
