// Package frontmatter splits and parses the YAML header of kit markdown files.
//
// A header is delimited by lines containing only "---". The kit scanner reads
// item names and descriptions from it, and renderers that need a different
// target format rebuild documents with [Format].
//
//	var meta struct {
//		Name        string `yaml:"name"`
//		Description string `yaml:"description"`
//	}
//	body, err := frontmatter.Parse(content, &meta)
//
// Both LF and CRLF line endings are accepted.
package frontmatter
