// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/seven/internal/router"
)

func classifyCmd(a *app) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "classify PROMPT...",
		Short: "Show how a prompt would be routed",
		Long: `Classify a prompt with the same heuristics the router uses, without calling
any backend or real-time provider.`,
		Example: `  seven classify "What's the weather in Paris?"
  seven classify --json "Write a Python function to sort a list"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClassify(cmd, strings.Join(args, " "), jsonOut)
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print the decision as JSON")
	return cmd
}

func runClassify(cmd *cobra.Command, prompt string, jsonOut bool) error {
	c := router.Classify(prompt)
	data := ClassifyData{
		Prompt: prompt,
		Route:  c.Route,
		Reason: c.Reason,
		Intent: router.DetectIntent(prompt),
	}
	if jsonOut {
		return NewJSONResponse("classify", data).Print(cmd.OutOrStdout())
	}

	w := cmd.OutOrStdout()
	intent := "none"
	if data.Intent != router.IntentNone {
		intent = string(data.Intent)
	}
	fmt.Fprintln(w, RenderLabel("Route:")+InfoStyle.Render(data.Route.String()))
	fmt.Fprintln(w, RenderLabel("Reason:")+ValueStyle.Render(data.Reason))
	fmt.Fprintln(w, RenderLabel("Intent:")+ValueStyle.Render(intent))
	return nil
}
