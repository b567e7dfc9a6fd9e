package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tariktz/linkwarden/internal/client"
	"github.com/tariktz/linkwarden/internal/collect"
	"github.com/tariktz/linkwarden/internal/config"
	"github.com/tariktz/linkwarden/internal/pipeline"
	"github.com/tariktz/linkwarden/internal/report"
)

func init() {
	var (
		filesFrom string
		output    string
	)

	checkCmd := &cobra.Command{
		Use:   "check [inputs...]",
		Short: "Check every link discovered in the given inputs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			applyCheckOverrides(cmd, cfg)

			inputs, err := buildInputs(args, filesFrom)
			if err != nil {
				return err
			}

			opts, err := cfg.BuildPipelineOptions()
			if err != nil {
				return err
			}

			spinnerStop := make(chan struct{})
			spinnerDone := make(chan struct{})
			go func() {
				defer close(spinnerDone)
				frames := []rune{'|', '/', '-', '\\'}
				i := 0
				ticker := time.NewTicker(200 * time.Millisecond)
				defer ticker.Stop()
				for {
					select {
					case <-spinnerStop:
						fmt.Fprint(os.Stderr, "\r")
						return
					case <-ticker.C:
						fmt.Fprintf(os.Stderr, "\rChecking... %c", frames[i%len(frames)])
						i++
					}
				}
			}()

			ch, err := pipeline.Run(cmd.Context(), inputs, opts)
			if err != nil {
				close(spinnerStop)
				<-spinnerDone
				return err
			}

			results, counts := collectResults(ch)
			close(spinnerStop)
			<-spinnerDone

			if output != "" {
				if err := report.WriteFile(output, report.MarkdownRenderer{}, results); err != nil {
					return err
				}
				fmt.Printf("Report written to %s\n", output)
			}

			fmt.Printf("\nCheck complete\n")
			fmt.Printf("  Checked:   %d\n", len(results))
			fmt.Printf("  OK:        %d\n", counts.ok)
			fmt.Printf("  Broken:    %d\n", counts.broken)
			fmt.Printf("  Excluded:  %d\n", counts.excluded)
			fmt.Printf("  Errors:    %d\n", counts.errored)

			if counts.broken > 0 || counts.errored > 0 {
				os.Exit(2)
			}
			return nil
		},
	}

	checkCmd.Flags().StringVar(&filesFrom, "files-from", "", "read the input list from a file, one entry per line")
	checkCmd.Flags().StringVarP(&output, "output", "o", "", "write a Markdown report of broken links to this path")
	checkCmd.Flags().Bool("offline", false, "skip every network check")
	checkCmd.Flags().Bool("include-mail", false, "check mailto: links")
	checkCmd.Flags().Bool("include-fragments", false, "validate #fragment anchors against the target document")
	checkCmd.Flags().Duration("timeout", 0, "per-request timeout")
	checkCmd.Flags().Int("max-concurrency", 0, "maximum concurrent checks")
	checkCmd.Flags().String("base-url", "", "base URL relative links are resolved against")
	checkCmd.Flags().String("root-dir", "", "root directory absolute-path links are resolved against")
	checkCmd.Flags().String("cache", "", "path to the persistent cache file")
	checkCmd.Flags().String("user-agent", "", "User-Agent header sent with every request")
	checkCmd.Flags().Bool("insecure", false, "skip TLS certificate verification")

	rootCmd.AddCommand(checkCmd)
}

// applyCheckOverrides layers explicitly-set CLI flags over the loaded
// config; flags the user never typed leave the config file's value alone.
func applyCheckOverrides(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("offline") {
		cfg.Offline, _ = flags.GetBool("offline")
	}
	if flags.Changed("include-mail") {
		cfg.IncludeMail, _ = flags.GetBool("include-mail")
	}
	if flags.Changed("include-fragments") {
		cfg.IncludeFragments, _ = flags.GetBool("include-fragments")
	}
	if flags.Changed("timeout") {
		cfg.Timeout, _ = flags.GetDuration("timeout")
	}
	if flags.Changed("max-concurrency") {
		cfg.MaxConcurrency, _ = flags.GetInt("max-concurrency")
	}
	if flags.Changed("base-url") {
		cfg.BaseURL, _ = flags.GetString("base-url")
	}
	if flags.Changed("root-dir") {
		cfg.RootDir, _ = flags.GetString("root-dir")
	}
	if flags.Changed("cache") {
		cfg.CachePath, _ = flags.GetString("cache")
	}
	if flags.Changed("user-agent") {
		cfg.UserAgent, _ = flags.GetString("user-agent")
	}
	if flags.Changed("insecure") {
		cfg.Insecure, _ = flags.GetBool("insecure")
	}
}

// buildInputs merges positional input arguments with --files-from lines
// and classifies each by source kind.
func buildInputs(args []string, filesFrom string) ([]collect.Input, error) {
	values := append([]string{}, args...)
	if filesFrom != "" {
		data, err := os.ReadFile(filesFrom)
		if err != nil {
			return nil, fmt.Errorf("read --files-from %q: %w", filesFrom, err)
		}
		for _, line := range strings.Split(string(data), "\n") {
			line = strings.TrimSpace(line)
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			values = append(values, line)
		}
	}

	inputs := make([]collect.Input, 0, len(values))
	for _, v := range values {
		inputs = append(inputs, classifyInput(v))
	}
	return inputs, nil
}

func classifyInput(v string) collect.Input {
	switch {
	case v == "-":
		return collect.Input{Kind: collect.Stdin, Value: v}
	case strings.HasPrefix(v, "http://") || strings.HasPrefix(v, "https://"):
		return collect.Input{Kind: collect.RemoteURL, Value: v}
	case strings.ContainsAny(v, "*?["):
		return collect.Input{Kind: collect.FsGlob, Value: v}
	default:
		return collect.Input{Kind: collect.FsPath, Value: v}
	}
}

type resultCounts struct {
	ok, broken, excluded, errored int
}

func collectResults(ch <-chan pipeline.Response) ([]pipeline.Response, resultCounts) {
	var results []pipeline.Response
	var counts resultCounts
	for r := range ch {
		results = append(results, r)
		switch {
		case r.Err != nil:
			counts.errored++
		case r.Excluded:
			counts.excluded++
		case r.Status.Kind == client.StatusOk || r.Status.Kind == client.StatusRedirected:
			counts.ok++
		default:
			counts.broken++
		}
	}
	return results, counts
}
