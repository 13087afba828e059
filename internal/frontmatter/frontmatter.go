// Package frontmatter parses and emits the Markdown + YAML front-matter
// file format that is the sole on-disk representation of an Item
// (spec §4.B): a `---`-delimited YAML block, a blank line, a single H1
// title line, a blank line, and the body.
package frontmatter

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/centy-io/centy-daemon/internal/centyerr"
)

const delimiter = "---"

// fields mirrors the fixed key order of §4.B: displayNumber, status,
// priority, createdAt, updatedAt, draft, deletedAt, customFields.
// yaml.v3 marshals struct fields in declaration order, which is how
// the fixed ordering is achieved without hand-rolled node construction.
type fields struct {
	DisplayNumber *int           `yaml:"displayNumber,omitempty"`
	Status        *string        `yaml:"status,omitempty"`
	Priority      *int           `yaml:"priority,omitempty"`
	CreatedAt     *string        `yaml:"createdAt,omitempty"`
	UpdatedAt     *string        `yaml:"updatedAt,omitempty"`
	Draft         *bool          `yaml:"draft,omitempty"`
	DeletedAt     *string        `yaml:"deletedAt,omitempty"`
	CustomFields  map[string]any `yaml:"customFields,omitempty"`
}

// Document is the in-memory decomposition of an item file: front-matter
// fields plus the title and body carried in the Markdown section.
type Document struct {
	DisplayNumber *int
	Status        *string
	Priority      *int
	CreatedAt     time.Time
	UpdatedAt     time.Time
	Draft         *bool
	DeletedAt     *time.Time
	CustomFields  map[string]any
	Title         string
	Body          string
}

const timeLayout = time.RFC3339

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// Parse decomposes the bytes of an item file into a Document.
func Parse(data []byte) (*Document, error) {
	text := string(data)
	if !strings.HasPrefix(text, delimiter) {
		return nil, centyerr.New(centyerr.FrontmatterError, "item file missing front-matter delimiter")
	}

	rest := text[len(delimiter):]
	rest = strings.TrimPrefix(rest, "\n")

	end := strings.Index(rest, "\n"+delimiter)
	if end < 0 {
		return nil, centyerr.New(centyerr.FrontmatterError, "item file front-matter not terminated")
	}

	yamlBlock := rest[:end]
	after := rest[end+len("\n"+delimiter):]
	after = strings.TrimPrefix(after, "\n")
	after = strings.TrimPrefix(after, "\n")

	var f fields
	if strings.TrimSpace(yamlBlock) != "" {
		if err := yaml.Unmarshal([]byte(yamlBlock), &f); err != nil {
			return nil, centyerr.Wrap(centyerr.YAMLError, "decode front-matter", err)
		}
	}

	title, body, err := splitHeading(after)
	if err != nil {
		return nil, err
	}

	doc := &Document{
		DisplayNumber: f.DisplayNumber,
		Status:        f.Status,
		Priority:      f.Priority,
		Draft:         f.Draft,
		CustomFields:  f.CustomFields,
		Title:         title,
		Body:          body,
	}

	if f.CreatedAt != nil {
		t, err := parseTime(*f.CreatedAt)
		if err != nil {
			return nil, centyerr.Wrap(centyerr.FrontmatterError, "parse createdAt", err)
		}
		doc.CreatedAt = t
	}
	if f.UpdatedAt != nil {
		t, err := parseTime(*f.UpdatedAt)
		if err != nil {
			return nil, centyerr.Wrap(centyerr.FrontmatterError, "parse updatedAt", err)
		}
		doc.UpdatedAt = t
	}
	if f.DeletedAt != nil {
		t, err := parseTime(*f.DeletedAt)
		if err != nil {
			return nil, centyerr.Wrap(centyerr.FrontmatterError, "parse deletedAt", err)
		}
		doc.DeletedAt = &t
	}

	return doc, nil
}

func splitHeading(body string) (title, rest string, err error) {
	lines := strings.SplitN(body, "\n", 2)
	head := strings.TrimSpace(lines[0])
	if !strings.HasPrefix(head, "# ") {
		return "", "", centyerr.New(centyerr.FrontmatterError, "item file missing H1 title line")
	}
	title = strings.TrimSpace(strings.TrimPrefix(head, "# "))

	if len(lines) == 1 {
		return title, "", nil
	}
	rest = strings.TrimPrefix(lines[1], "\n")
	return title, rest, nil
}

// Emit produces the byte-stable on-disk form of a Document.
func Emit(doc *Document) ([]byte, error) {
	f := fields{
		DisplayNumber: doc.DisplayNumber,
		Status:        doc.Status,
		Priority:      doc.Priority,
		Draft:         doc.Draft,
		CustomFields:  doc.CustomFields,
	}

	if !doc.CreatedAt.IsZero() {
		s := formatTime(doc.CreatedAt)
		f.CreatedAt = &s
	}
	if !doc.UpdatedAt.IsZero() {
		s := formatTime(doc.UpdatedAt)
		f.UpdatedAt = &s
	}
	if doc.DeletedAt != nil {
		s := formatTime(*doc.DeletedAt)
		f.DeletedAt = &s
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&f); err != nil {
		return nil, centyerr.Wrap(centyerr.YAMLError, "encode front-matter", err)
	}
	if err := enc.Close(); err != nil {
		return nil, centyerr.Wrap(centyerr.YAMLError, "close yaml encoder", err)
	}

	var out bytes.Buffer
	out.WriteString(delimiter)
	out.WriteByte('\n')
	out.Write(buf.Bytes())
	out.WriteString(delimiter)
	out.WriteString("\n\n")
	fmt.Fprintf(&out, "# %s\n", doc.Title)
	out.WriteByte('\n')
	out.WriteString(doc.Body)

	return out.Bytes(), nil
}
