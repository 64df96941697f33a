package frontmatter

import (
	"bytes"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mrgoonie/claudekit-cli-sub009/internal/errors"
)

var (
	// ErrMissingFrontmatter is returned by MustParse when the document has no header.
	ErrMissingFrontmatter = errors.New("missing frontmatter")
	// ErrUnterminated is returned when an opening delimiter has no closing one.
	ErrUnterminated = errors.New("missing closing frontmatter delimiter")
)

// Split separates content into its YAML header and body. ok is false when the
// document does not open with a delimiter line.
func Split(content []byte) (header, body []byte, ok bool, err error) {
	rest, found := cutDelimiterLine(content)
	if !found {
		return nil, content, false, nil
	}

	for offset := 0; offset <= len(rest); {
		end := bytes.IndexByte(rest[offset:], '\n')
		var line []byte
		next := len(rest) + 1
		if end < 0 {
			line = rest[offset:]
		} else {
			line = rest[offset : offset+end]
			next = offset + end + 1
		}
		if string(bytes.TrimRight(line, "\r")) == "---" {
			if next > len(rest) {
				return rest[:offset], nil, true, nil
			}
			return rest[:offset], rest[next:], true, nil
		}
		offset = next
	}
	return nil, nil, true, ErrUnterminated
}

func cutDelimiterLine(content []byte) ([]byte, bool) {
	for _, prefix := range []string{"---\n", "---\r\n"} {
		if rest, found := bytes.CutPrefix(content, []byte(prefix)); found {
			return rest, true
		}
	}
	return nil, false
}

// Parse decodes the header of content into matter and returns the body.
// Documents without a header return the full content and leave matter untouched.
func Parse[T any](content []byte, matter *T) ([]byte, error) {
	header, body, ok, err := Split(content)
	if err != nil {
		return nil, err
	}
	if !ok {
		return content, nil
	}
	if err := yaml.Unmarshal(header, matter); err != nil {
		return nil, errors.Wrap(err, "parsing frontmatter")
	}
	return body, nil
}

// MustParse is Parse for documents that require a header, such as SKILL.md.
func MustParse[T any](content []byte, matter *T) ([]byte, error) {
	_, _, ok, err := Split(content)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrMissingFrontmatter
	}
	return Parse(content, matter)
}

// Format serializes matter as a YAML header followed by body.
func Format(matter any, body string) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("---\n")

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(matter); err != nil {
		return nil, errors.Wrap(err, "encoding frontmatter")
	}
	if err := enc.Close(); err != nil {
		return nil, errors.Wrap(err, "encoding frontmatter")
	}

	buf.WriteString("---\n")
	if body != "" {
		buf.WriteString("\n")
		buf.WriteString(body)
		if !strings.HasSuffix(body, "\n") {
			buf.WriteString("\n")
		}
	}
	return buf.Bytes(), nil
}
