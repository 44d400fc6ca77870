// Package notebook reads and writes single-file markdown notebooks, where
// every page is a level-two section:
//
//	---
//	title: Notebook
//	exported_at: 2026-01-02T15:04:05Z
//	pages: 2
//	---
//	# Notebook
//
//	## First page
//
//	body
//
//	## Second page
//
//	body
//
// The YAML front matter is optional. A heading is "##" and one space or tab;
// everything after it is the title, verbatim. Content lines that would
// otherwise start a new section are escaped with one more backslash when
// rendered, so "## x" becomes "\## x" and "\## x" becomes "\\## x".
package notebook

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Iron-Ham/pagebook/internal/errors"
)

// DefaultTitle is the top-level heading written when Meta.Title is empty.
const DefaultTitle = "Notebook"

const frontMatterFence = "---"

var (
	sectionRe = regexp.MustCompile(`(?m)^##[ \t](.*)$`)
	escapedRe = regexp.MustCompile(`(?m)^\\(\\*##[ \t])`)
	headingRe = regexp.MustCompile(`(?m)^(\\*##[ \t])`)
)

// Meta is the notebook's front matter.
type Meta struct {
	Title      string    `yaml:"title,omitempty"`
	ExportedAt time.Time `yaml:"exported_at,omitempty"`
	Pages      int       `yaml:"pages,omitempty"`
}

// Section is one page of a notebook.
type Section struct {
	Title   string `yaml:"title"`
	Content string `yaml:"content"`
}

// Notebook is a parsed notebook file.
type Notebook struct {
	Meta     Meta
	Sections []Section
}

// Parse reads a notebook. Text before the first section other than the
// title heading is discarded. Duplicate section titles are rejected.
func Parse(r io.Reader) (Notebook, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Notebook{}, fmt.Errorf("read notebook: %w", err)
	}
	text := strings.ReplaceAll(string(data), "\r\n", "\n")

	var nb Notebook
	body, front, err := splitFrontMatter(text)
	if err != nil {
		return Notebook{}, err
	}
	if front != "" {
		if err := yaml.Unmarshal([]byte(front), &nb.Meta); err != nil {
			return Notebook{}, errors.NewValidationError("invalid front matter").WithCause(err)
		}
	}
	if nb.Meta.Title == "" {
		nb.Meta.Title = leadingTitle(body)
	}

	nb.Sections = Split(body)
	seen := make(map[string]bool, len(nb.Sections))
	for _, s := range nb.Sections {
		if seen[s.Title] {
			return Notebook{}, errors.NewValidationError("duplicate section").WithField("title").WithValue(s.Title)
		}
		seen[s.Title] = true
	}
	return nb, nil
}

// Split returns the level-two sections of md in document order. Section
// content is unescaped; the blank line after the heading and the line break
// before the next heading belong to the layout, not to the content.
func Split(md string) []Section {
	matches := sectionRe.FindAllStringSubmatchIndex(md, -1)
	if len(matches) == 0 {
		return nil
	}

	sections := make([]Section, 0, len(matches))
	for i, m := range matches {
		end := len(md)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		block := strings.TrimPrefix(md[m[1]:end], "\n")
		if i+1 < len(matches) {
			block = strings.TrimSuffix(block, "\n")
		}
		block = strings.TrimPrefix(block, "\n")
		block = strings.TrimSuffix(block, "\n")
		sections = append(sections, Section{
			Title:   md[m[2]:m[3]],
			Content: escapedRe.ReplaceAllString(block, "$1"),
		})
	}
	return sections
}

// Render writes nb. When Meta carries an export time or page count the
// front matter is written too.
func Render(w io.Writer, nb Notebook) error {
	bw := bufio.NewWriter(w)

	if !nb.Meta.ExportedAt.IsZero() || nb.Meta.Pages > 0 {
		front, err := yaml.Marshal(nb.Meta)
		if err != nil {
			return fmt.Errorf("marshal front matter: %w", err)
		}
		fmt.Fprintf(bw, "%s\n%s%s\n", frontMatterFence, front, frontMatterFence)
	}

	title := nb.Meta.Title
	if title == "" {
		title = DefaultTitle
	}
	fmt.Fprintf(bw, "# %s\n", title)

	for _, s := range nb.Sections {
		fmt.Fprintf(bw, "\n## %s\n", s.Title)
		if s.Content != "" {
			fmt.Fprintf(bw, "\n%s\n", headingRe.ReplaceAllString(s.Content, `\$1`))
		}
	}
	return bw.Flush()
}

// RenderString is Render into a string.
func RenderString(nb Notebook) (string, error) {
	var buf bytes.Buffer
	if err := Render(&buf, nb); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func splitFrontMatter(text string) (body, front string, err error) {
	if !strings.HasPrefix(text, frontMatterFence+"\n") {
		return text, "", nil
	}
	rest := text[len(frontMatterFence)+1:]
	if strings.HasPrefix(rest, frontMatterFence+"\n") {
		return rest[len(frontMatterFence)+1:], "", nil
	}
	end := strings.Index(rest, "\n"+frontMatterFence+"\n")
	if end < 0 {
		if strings.HasSuffix(rest, "\n"+frontMatterFence) {
			return "", rest[:len(rest)-len(frontMatterFence)-1], nil
		}
		return "", "", errors.NewValidationError("unterminated front matter")
	}
	return rest[end+len(frontMatterFence)+2:], rest[:end], nil
}

// leadingTitle returns the text of a "# " heading that precedes the first
// section, if any.
func leadingTitle(body string) string {
	for _, line := range strings.Split(body, "\n") {
		switch {
		case strings.HasPrefix(line, "# "):
			return strings.TrimSpace(line[2:])
		case sectionRe.MatchString(line):
			return ""
		}
	}
	return ""
}
