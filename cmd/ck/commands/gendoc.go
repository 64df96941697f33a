package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/cobra/doc"

	"github.com/mrgoonie/claudekit-cli-sub009/cmd"
	"github.com/mrgoonie/claudekit-cli-sub009/internal/errors"
)

func newGenDocCmd() *cobra.Command {
	var dir, format string
	c := &cobra.Command{
		Use:    "gen-doc",
		Short:  "Generate reference documentation for the CLI",
		Hidden: true,
		Args:   cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			if dir == "" {
				return errors.NewUserError(errors.New("output directory is required"), "pass --dir")
			}
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return errors.Wrap(err, "creating output directory")
			}

			root := c.Root()
			root.DisableAutoGenTag = true
			var err error
			switch format {
			case "markdown":
				err = doc.GenMarkdownTreeCustom(root, dir, filePrepender, linkHandler)
			case "man":
				err = doc.GenManTree(root, &doc.GenManHeader{
					Title:   "CK",
					Section: "1",
					Source:  "ck " + cmd.Version,
				}, dir)
			default:
				return errors.NewUserError(errors.Newf("unknown doc format %q", format), "use --format markdown or --format man")
			}
			if err != nil {
				return errors.Wrapf(err, "generating %s", format)
			}

			fmt.Fprintf(c.OutOrStdout(), "Documentation generated in %s\n", dir)
			return nil
		},
	}
	c.Flags().StringVarP(&dir, "dir", "d", "", "output directory for documentation")
	c.Flags().StringVar(&format, "format", "markdown", "markdown or man")
	return c
}

// filePrepender adds front matter to each markdown page.
func filePrepender(filename string) string {
	name := filepath.Base(filename)
	title := strings.ReplaceAll(strings.TrimSuffix(name, filepath.Ext(name)), "_", " ")

	return fmt.Sprintf(`---
title: "%s"
description: "Reference for %s command"
draft: false
---
`, title, title)
}

func linkHandler(name string) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	return "/docs/reference/" + strings.ToLower(base) + "/"
}
