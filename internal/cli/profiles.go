// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/jeranaias/seven/internal/detect"
	"github.com/jeranaias/seven/internal/energy"
)

// detectHardware is replaced in tests.
var detectHardware = detect.DetectCached

func profilesCmd(a *app) *cobra.Command {
	var (
		jsonOut   bool
		detectOpt bool
	)

	cmd := &cobra.Command{
		Use:   "profiles",
		Short: "List the energy profiles",
		Long: `List the local hardware and cloud model energy profiles. The profiles
selected in [energy] are marked with *.

With --detect, the local accelerator is probed and the matching local
profile is suggested.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data := ProfilesData{
				Local:        energy.ListLocal(),
				Cloud:        energy.ListCloud(),
				LocalDefault: energy.LocalProfile(a.cfg.Energy.LocalProfile).Slug,
				CloudDefault: energy.CloudProfile(a.cfg.Energy.CloudProfile).Slug,
			}
			if detectOpt {
				ctx := cmd.Context()
				if ctx == nil {
					ctx = context.Background()
				}
				hw := detectHardware(ctx)
				s := detect.Suggest(hw)
				data.Hardware, data.Suggested = hw, &s
			}
			if jsonOut {
				return NewJSONResponse("profiles", data).Print(cmd.OutOrStdout())
			}

			w := cmd.OutOrStdout()
			fmt.Fprintln(w, TitleStyle.Render("Local profiles"))
			printProfiles(w, data.Local, data.LocalDefault)
			fmt.Fprintln(w, SectionStyle.Render("Cloud profiles"))
			printProfiles(w, data.Cloud, data.CloudDefault)
			if data.Hardware != nil {
				printDetected(w, data.Hardware, *data.Suggested, data.LocalDefault)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print the profiles as JSON")
	cmd.Flags().BoolVar(&detectOpt, "detect", false, "probe the local accelerator and suggest a profile")
	return cmd
}

func printProfiles(w io.Writer, profiles []energy.Profile, selected string) {
	for _, p := range profiles {
		marker := "  "
		slug := DimStyle.Render(p.Slug)
		if p.Slug == selected {
			marker = HighlightStyle.Render("*") + " "
			slug = HighlightStyle.Render(p.Slug)
		}
		fmt.Fprintf(w, "%s%s\n    %s\n", marker, slug, energy.Describe(p))
	}
}

func printDetected(w io.Writer, hw *detect.Hardware, s detect.Suggestion, selected string) {
	fmt.Fprintln(w, SectionStyle.Render("Detected hardware"))
	fmt.Fprintln(w, RenderLabel("Hardware:"), ValueStyle.Render(hw.String()))
	fmt.Fprintln(w, RenderLabel("Accelerator:"), ValueStyle.Render(hw.Accelerator.String()))
	fmt.Fprintln(w, RenderLabel("Suggested:"), HighlightStyle.Render(s.Slug), DimStyle.Render("("+s.Reason+")"))
	if s.Slug != selected {
		fmt.Fprintln(w, DimStyle.Render(fmt.Sprintf("Set [energy] local_profile = %q to use it.", s.Slug)))
	}
}
