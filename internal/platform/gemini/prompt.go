package gemini

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"text/template"
	"time"

	"github.com/phrazzld/capture-api/internal/vision"
)

//go:embed prompt.tmpl
var defaultPromptTemplate string

// promptData represents the data passed to the prompt template
type promptData struct {
	Today    string
	Weekday  string
	Year     int
	NextYear int
}

// loadPromptTemplate parses the template at path, or the embedded default
// when path is empty.
func loadPromptTemplate(path string) (*template.Template, error) {
	content := defaultPromptTemplate
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to read prompt template from %s: %v",
				vision.ErrInvalidConfig, path, err)
		}
		content = string(data)
	}

	tmpl, err := template.New("extraction").Option("missingkey=error").Parse(content)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse prompt template: %v", vision.ErrInvalidConfig, err)
	}
	return tmpl, nil
}

// renderPrompt executes tmpl for the given day.
func renderPrompt(tmpl *template.Template, now time.Time) (string, error) {
	data := promptData{
		Today:    now.Format("2006-01-02"),
		Weekday:  now.Weekday().String(),
		Year:     now.Year(),
		NextYear: now.Year() + 1,
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute prompt template: %w", err)
	}
	return buf.String(), nil
}
