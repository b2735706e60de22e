package prompts

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"text/template"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

//go:embed quiz.yaml
var quizYAML []byte

const maxNameRunes = 200

var markupRegex = regexp.MustCompile(`(?i)</?\s*(system|instructions?|document)\b[^>]*>`)

// Set holds the prompt texts used to generate a quiz and its title.
type Set struct {
	System   string `yaml:"system"`
	User     string `yaml:"user"`
	Document string `yaml:"document"`
	Title    string `yaml:"title"`
}

// DocumentData holds template data for an inlined text document.
type DocumentData struct {
	Name     string
	MimeType string
	Text     string
}

// TitleData holds template data for the title prompt.
type TitleData struct {
	Name string
}

var (
	loadOnce  sync.Once
	loadErr   error
	loaded    Set
	docTmpl   *template.Template
	titleTmpl *template.Template
)

// Load parses the embedded prompt file.
// It uses sync.Once to ensure the prompts are parsed only once.
func Load() error {
	loadOnce.Do(func() {
		s, err := Parse(quizYAML)
		if err != nil {
			loadErr = err
			return
		}
		docTmpl, err = template.New("document").Parse(s.Document)
		if err != nil {
			loadErr = fmt.Errorf("parse document template: %w", err)
			return
		}
		titleTmpl, err = template.New("title").Parse(s.Title)
		if err != nil {
			loadErr = fmt.Errorf("parse title template: %w", err)
			return
		}
		loaded = s
	})
	return loadErr
}

// Parse decodes a prompt file and checks that every prompt is present.
func Parse(data []byte) (Set, error) {
	var s Set
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Set{}, fmt.Errorf("decode prompts: %w", err)
	}
	var missing []string
	for name, v := range map[string]string{
		"system":   s.System,
		"user":     s.User,
		"document": s.Document,
		"title":    s.Title,
	} {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return Set{}, fmt.Errorf("prompts missing: %s", strings.Join(missing, ", "))
	}
	return s, nil
}

// System returns the system instruction for quiz generation.
func System() (string, error) {
	if err := Load(); err != nil {
		return "", err
	}
	return strings.TrimSpace(loaded.System), nil
}

// User returns the user instruction for quiz generation.
func User() (string, error) {
	if err := Load(); err != nil {
		return "", err
	}
	return strings.TrimSpace(loaded.User), nil
}

// BuildDocument renders a text document for inlining into the request.
func BuildDocument(name, mimeType, text string) (string, error) {
	if err := Load(); err != nil {
		return "", err
	}
	if docTmpl == nil {
		return "", errors.New("document template not initialized")
	}
	var buf bytes.Buffer
	err := docTmpl.Execute(&buf, DocumentData{
		Name:     sanitizeName(name),
		MimeType: mimeType,
		Text:     text,
	})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

// BuildTitle renders the title prompt for a file name.
func BuildTitle(name string) (string, error) {
	if err := Load(); err != nil {
		return "", err
	}
	if titleTmpl == nil {
		return "", errors.New("title template not initialized")
	}
	var buf bytes.Buffer
	if err := titleTmpl.Execute(&buf, TitleData{Name: sanitizeName(name)}); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func sanitizeName(name string) string {
	name = markupRegex.ReplaceAllString(name, "")
	name = strings.Join(strings.Fields(name), " ")
	if name == "" {
		return "[unnamed]"
	}
	if utf8.RuneCountInString(name) > maxNameRunes {
		name = string([]rune(name)[:maxNameRunes])
	}
	return name
}
