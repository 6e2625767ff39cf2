package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/text-extraction/internal/config"
	"github.com/JakeFAU/text-extraction/internal/extraction"
)

type extractFlags struct {
	unlimited    bool
	headlessOnly bool
	format       string
	lang         string
	preference   string
	timeout      time.Duration
}

// newExtractCmd runs the pipeline once and prints the result as JSON.
func newExtractCmd() *cobra.Command {
	var flags extractFlags
	cmd := &cobra.Command{
		Use:   "extract <url>",
		Short: "Extracts one URL and prints the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExtractCommand(cmd, args[0], flags)
		},
	}
	cmd.Flags().BoolVar(&flags.unlimited, "unlimited", false, "bypass the per-domain rate limiter")
	cmd.Flags().BoolVar(&flags.headlessOnly, "headless-only", false, "skip the direct fetch")
	cmd.Flags().StringVar(&flags.format, "format", "", "output format: txt, markdown or html")
	cmd.Flags().StringVar(&flags.lang, "lang", "", "target language (ISO 639-1) or auto")
	cmd.Flags().StringVar(&flags.preference, "preference", "", "none, recall or precision")
	cmd.Flags().DurationVar(&flags.timeout, "timeout", 0, "overall deadline (default pipeline.default_timeout)")
	return cmd
}

func runExtractCommand(cmd *cobra.Command, rawURL string, flags extractFlags) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	defaults := appInstance.Config().Extraction
	opts := extraction.Options{
		Preference:     extraction.Preference(orDefault(flags.preference, string(defaults.Preference))),
		TargetLanguage: orDefault(flags.lang, defaults.TargetLanguage),
		Format:         extraction.Format(orDefault(flags.format, string(defaults.Format))),
	}
	if err := config.ValidateOptions(opts); err != nil {
		return err
	}
	if flags.timeout < 0 {
		return errors.New("timeout must be >= 0")
	}

	req := extraction.Request{
		URL:       rawURL,
		Unlimited: flags.unlimited,
		Timeout:   flags.timeout,
		Mode:      extraction.ModeAuto,
		Options:   opts.WithDefaults(),
	}
	if flags.headlessOnly {
		req.Mode = extraction.ModeHeadlessOnly
	}

	res, err := appInstance.Service().Extract(cmd.Context(), req)
	if err != nil {
		return fmt.Errorf("extract %s: %w", rawURL, err)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	if !res.OK {
		return fmt.Errorf("no acceptable text for %s", rawURL)
	}
	return nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
