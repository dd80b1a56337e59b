// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// ask.go - One-shot routing command.
//
// Examples:
//   seven ask "What is the capital of France?"
//   seven ask --cloud "Prove the four colour theorem"
//   seven ask --json "What's the weather in Paris?"
//   echo "Summarize this" | seven ask

package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/jeranaias/seven/internal/offline"
	"github.com/jeranaias/seven/internal/router"
	"github.com/jeranaias/seven/internal/telemetry"
)

// statusMessages are the user-facing texts for router status codes.
var statusMessages = map[router.Status]string{
	router.StatusLocalStarting:            "SEVEN Local is working...",
	router.StatusAPIFetching:              "Fetching real-time data...",
	router.StatusLocalUncertainEscalating: "Escalating to cloud due to uncertainty...",
	router.StatusLocalFailedFallingBack:   "SEVEN Local failed, falling back to cloud...",
	router.StatusCloudProcessing:          "SEVEN Cloud is processing...",
}

type askFlags struct {
	cloud        bool
	noAPIs       bool
	noEscalate   bool
	system       string
	temperature  float64
	maxTokens    int
	localProfile string
	cloudProfile string
	json         bool
	markdown     bool
	noLedger     bool
}

func askCmd(a *app) *cobra.Command {
	var f askFlags

	cmd := &cobra.Command{
		Use:   "ask PROMPT...",
		Short: "Route one prompt and print the answer",
		Long: `Route one prompt through the local-first router and print the answer with
its model, latency, token count, routing path and energy figures.

With no arguments the prompt is read from stdin.`,
		Example: `  seven ask "What is the capital of France?"
  seven ask --cloud "Design a distributed consensus protocol"
  seven ask --no-apis "What's the weather in Paris?"
  seven ask --json "Explain recursion"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runAsk(cmd, args, f)
		},
	}

	flags := cmd.Flags()
	flags.BoolVar(&f.cloud, "cloud", false, "skip the local model and ask the cloud directly")
	flags.BoolVar(&f.noAPIs, "no-apis", false, "disable real-time data lookups")
	flags.BoolVar(&f.noEscalate, "no-escalate", false, "never escalate uncertain local answers")
	flags.StringVar(&f.system, "system", "", "system prompt for the answering model")
	flags.Float64Var(&f.temperature, "temperature", router.DefaultTemperature, "sampling temperature (0-2)")
	flags.IntVar(&f.maxTokens, "max-tokens", router.DefaultMaxTokens, "maximum tokens to generate")
	flags.StringVar(&f.localProfile, "local-profile", "", "local energy profile slug")
	flags.StringVar(&f.cloudProfile, "cloud-profile", "", "cloud energy profile slug")
	flags.BoolVar(&f.json, "json", false, "print the outcome as JSON")
	flags.BoolVar(&f.markdown, "markdown", false, "render the response as markdown")
	flags.BoolVar(&f.noLedger, "no-ledger", false, "do not record this query in the ledger")
	return cmd
}

func (a *app) runAsk(cmd *cobra.Command, args []string, f askFlags) error {
	prompt, err := readPrompt(cmd, args)
	if err != nil {
		return err
	}

	opts := routeOptions(a.cfg)
	if err := applyAskFlags(cmd, &opts, f); err != nil {
		return err
	}

	errOut := &syncWriter{w: cmd.ErrOrStderr()}
	if !f.json && isTerminal(cmd.ErrOrStderr()) {
		opts.OnStatus = func(s router.Status) {
			if msg, ok := statusMessages[s]; ok {
				fmt.Fprintln(errOut, DimStyle.Render(msg))
			}
		}
		opts.StatusFlush = statusFlush
	}

	st, err := buildStack(a.cfg)
	if err != nil {
		return &CommandError{Command: "ask", Reason: "wiring router", Err: err}
	}

	out, err := st.router.Route(cmd.Context(), prompt, opts)
	if err != nil {
		if f.json {
			_ = NewJSONErrorResponse("ask", err).Print(cmd.OutOrStdout())
		}
		return fmt.Errorf("routing failed: %w", err)
	}

	if !f.noLedger {
		a.record(cmd.Context(), out, errOut)
	}

	if f.json {
		return NewJSONResponse("ask", out).Print(cmd.OutOrStdout())
	}
	return printOutcome(cmd.OutOrStdout(), out, f.markdown)
}

// readPrompt joins args, or reads stdin when there are none.
func readPrompt(cmd *cobra.Command, args []string) (string, error) {
	prompt := strings.Join(args, " ")
	if len(args) == 0 && !isTerminal(cmd.InOrStdin()) {
		data, err := io.ReadAll(io.LimitReader(cmd.InOrStdin(), 1<<20))
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		prompt = string(data)
	}
	if strings.TrimSpace(prompt) == "" {
		return "", &UsageError{Message: "a prompt is required: seven ask \"your question\""}
	}
	return prompt, nil
}

func applyAskFlags(cmd *cobra.Command, opts *router.Options, f askFlags) error {
	flags := cmd.Flags()
	if flags.Changed("temperature") {
		if f.temperature < 0 || f.temperature > 2 {
			return &UsageError{Message: fmt.Sprintf("--temperature must be between 0 and 2, got %g", f.temperature)}
		}
		opts.Temperature = f.temperature
	}
	if flags.Changed("max-tokens") {
		if f.maxTokens <= 0 {
			return &UsageError{Message: fmt.Sprintf("--max-tokens must be positive, got %d", f.maxTokens)}
		}
		opts.MaxTokens = f.maxTokens
	}

	opts.ForceCloud = f.cloud
	opts.SystemPrompt = f.system
	opts.LocalProfile = f.localProfile
	opts.CloudProfile = f.cloudProfile
	if f.noAPIs {
		opts.EnableRealtime = false
	}
	if f.noEscalate {
		opts.AutoEscalate = false
	}
	return nil
}

// record appends out to the ledger. Failures are reported, not returned:
// the answer has already been produced.
func (a *app) record(ctx context.Context, out *router.Outcome, errOut io.Writer) {
	ledger, err := openLedger(a.cfg)
	if err != nil {
		fmt.Fprintln(errOut, WarningStyle.Render("Warning:"), "ledger unavailable:", err)
		return
	}
	if ledger == nil {
		return
	}
	defer ledger.Close()

	if err := ledger.Record(ctx, telemetry.EntryFromOutcome(out)); err != nil {
		fmt.Fprintln(errOut, WarningStyle.Render("Warning:"), "could not record query:", err)
	}
}

// statusFlush bounds how long ask waits for status lines to reach stderr
// before printing the answer.
const statusFlush = 2 * time.Second

// =============================================================================
// OUTPUT
// =============================================================================

func printOutcome(w io.Writer, out *router.Outcome, markdown bool) error {
	title := TitleStyle.Render("=== SEVEN ===")
	if badge := offline.StatusBadge(); badge != "" {
		title += " " + WarningStyle.Render(badge)
	}
	fmt.Fprintln(w, title)
	fmt.Fprintln(w, RenderLabel("Model:")+ValueStyle.Render(out.Model))
	fmt.Fprintln(w, RenderLabel("Latency:")+ValueStyle.Render(fmt.Sprintf("%.2fs", out.Latency.Seconds())))
	fmt.Fprintln(w, RenderLabel("Tokens:")+ValueStyle.Render(formatTokens(out.TokensUsed)))
	fmt.Fprintln(w, RenderLabel("Path:")+RenderPath(out.Path))

	if out.Energy != nil {
		fmt.Fprintln(w, RenderLabel("Energy:")+ValueStyle.Render(formatWh(out.Energy.WattHours))+" "+DimStyle.Render("("+out.Energy.ProfileLabel+")"))
	}
	if out.BaselineEnergy != nil {
		fmt.Fprintln(w, RenderLabel("Cloud baseline:")+ValueStyle.Render(formatWh(out.BaselineEnergy.WattHours))+" "+DimStyle.Render("("+out.BaselineEnergy.ProfileLabel+")"))
	}
	if out.SavingsWh != nil {
		fmt.Fprintln(w, RenderLabel("Saved:")+HighlightStyle.Render(formatWh(*out.SavingsWh)))
	}
	if out.EscalationFailed {
		fmt.Fprintln(w, WarningStyle.Render("Local answer was uncertain and the cloud could not be reached."))
	}

	text := out.Text
	if markdown {
		text = renderMarkdown(text)
	}
	fmt.Fprintln(w, SectionStyle.Render("Response:"))
	_, err := fmt.Fprintln(w, strings.TrimRight(text, "\n"))
	return err
}

// renderMarkdown renders text with glamour, falling back to the raw text.
func renderMarkdown(text string) string {
	style := glamour.WithAutoStyle()
	if !ColorsEnabled() {
		style = glamour.WithStandardStyle("notty")
	}
	renderer, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(min(GetTerminalWidth(), 100)))
	if err != nil {
		return text
	}
	rendered, err := renderer.Render(text)
	if err != nil {
		return text
	}
	return rendered
}

// syncWriter serializes writes from the status goroutine and the command.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}
