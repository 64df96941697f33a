package kit

import (
	"bytes"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/mrgoonie/claudekit-cli-sub009/internal/errors"
	"github.com/mrgoonie/claudekit-cli-sub009/pkg/frontmatter"
)

// Renderer produces the bytes written for an item at a provider target.
// ext is the target's file extension.
type Renderer interface {
	Render(item Item, provider, ext string) ([]byte, error)
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(item Item, provider, ext string) ([]byte, error)

// Render calls f.
func (f RendererFunc) Render(item Item, provider, ext string) ([]byte, error) {
	return f(item, provider, ext)
}

// DefaultRenderer passes markdown through unchanged, converts commands to the
// TOML prompt format for ".toml" targets and rewrites the header of ".mdc"
// rule files.
type DefaultRenderer struct{}

type tomlCommand struct {
	Description string `toml:"description,omitempty"`
	Prompt      string `toml:"prompt,multiline"`
}

type mdcHeader struct {
	Description string   `yaml:"description"`
	Globs       []string `yaml:"globs,omitempty"`
	AlwaysApply bool     `yaml:"alwaysApply"`
}

// Render implements Renderer.
func (DefaultRenderer) Render(item Item, _ string, ext string) ([]byte, error) {
	switch strings.ToLower(ext) {
	case ".toml":
		var meta struct {
			Description string `yaml:"description"`
		}
		body, err := frontmatter.Parse(item.Content, &meta)
		if err != nil {
			return nil, errors.Wrapf(err, "rendering %s", item.SourcePath)
		}
		out, err := toml.Marshal(tomlCommand{
			Description: meta.Description,
			Prompt:      string(bytes.TrimSpace(body)) + "\n",
		})
		if err != nil {
			return nil, errors.Wrapf(err, "encoding %s as toml", item.SourcePath)
		}
		return out, nil
	case ".mdc":
		var meta mdcHeader
		body, err := frontmatter.Parse(item.Content, &meta)
		if err != nil {
			return nil, errors.Wrapf(err, "rendering %s", item.SourcePath)
		}
		if meta.Description == "" {
			meta.Description = item.Description
		}
		if len(meta.Globs) == 0 {
			meta.AlwaysApply = true
		}
		return frontmatter.Format(meta, string(bytes.TrimLeft(body, "\r\n")))
	default:
		return item.Content, nil
	}
}
