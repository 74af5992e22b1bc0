// SPDX-FileCopyrightText: 2025 The Devapps Authors
// SPDX-License-Identifier: EUPL-1.2

package cli

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"slices"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/janderssonse/devapps/internal/domain"
	"github.com/urfave/cli/v3"
)

//go:embed docs/*.md
var docs embed.FS

const guideWidth = 80

func (app *CLI) createGuideCommand() *cli.Command {
	return &cli.Command{
		Name:      "guide",
		Aliases:   []string{"docs"},
		Usage:     "Read the usage guide",
		ArgsUsage: "[topic]",
		Description: `Shows the built-in documentation. Topics: ` + strings.Join(guideTopics(), ", "),
		Action: func(_ context.Context, cmd *cli.Command) error {
			return app.showGuide(cmd.Args().First())
		},
	}
}

func (app *CLI) showGuide(topic string) error {
	if topic == "" {
		topic = "index"
	}

	content, err := docs.ReadFile("docs/" + topic + ".md")
	if err != nil {
		return domain.NewExitError(ExitNotFoundError,
			fmt.Sprintf("Unknown guide topic '%s'. Available: %s", topic, strings.Join(guideTopics(), ", ")), nil)
	}

	text := string(content)

	if !app.json && app.interactive() {
		renderer, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(guideWidth),
		)
		if err == nil {
			if rendered, err := renderer.Render(text); err == nil {
				text = rendered
			}
		}
	}

	_, err = fmt.Fprint(app.stdout, text)

	return err
}

func guideTopics() []string {
	entries, _ := fs.Glob(docs, "docs/*.md")

	topics := make([]string, 0, len(entries))
	for _, entry := range entries {
		topics = append(topics, strings.TrimSuffix(strings.TrimPrefix(entry, "docs/"), ".md"))
	}

	slices.Sort(topics)

	return topics
}
