package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/pablopda/linux-speech-tools/internal/quality"
	"github.com/pablopda/linux-speech-tools/internal/segment"
)

type options struct {
	target   int
	min      int
	max      int
	lang     string
	idealMin int
	idealMax int
	output   string
	json     bool
	verbose  bool
}

func newRootCommand() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:           "chunkeval",
		Short:         "Chunk texts for speech synthesis and score the result",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			if opts.json {
				opts.output = "json"
			}
			switch opts.output {
			case "text", "json", "yaml":
			default:
				return fmt.Errorf("unknown output format %q", opts.output)
			}
			if opts.verbose {
				logrus.SetLevel(logrus.DebugLevel)
			}
			return nil
		},
	}

	f := cmd.PersistentFlags()
	f.IntVar(&opts.target, "target", segment.DefaultTargetSize, "Preferred chunk size in characters")
	f.IntVar(&opts.min, "min", segment.DefaultMinSize, "Minimum chunk size in characters")
	f.IntVar(&opts.max, "max", segment.DefaultMaxSize, "Maximum chunk size in characters")
	f.StringVar(&opts.lang, "lang", "", "Language code (en, es); empty detects")
	f.IntVar(&opts.idealMin, "ideal-min", quality.DefaultIdealMin, "Lower bound of the ideal chunk length band")
	f.IntVar(&opts.idealMax, "ideal-max", quality.DefaultIdealMax, "Upper bound of the ideal chunk length band")
	f.StringVarP(&opts.output, "output", "o", "text", "Output format: text, json or yaml")
	f.BoolVar(&opts.json, "json", false, "Shorthand for --output json")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "Log engine decisions to stderr")

	cmd.AddCommand(newChunkCommand(opts))
	cmd.AddCommand(newScoreCommand(opts))
	cmd.AddCommand(newCompareCommand(opts))
	cmd.AddCommand(newSuiteCommand(opts))
	return cmd
}

func (o *options) engine(lang string) (*segment.Engine, error) {
	if o.lang != "" {
		lang = o.lang
	}
	l, err := segment.ParseLanguage(lang)
	if err != nil {
		return nil, err
	}
	return segment.New(segment.Config{
		TargetSize: o.target,
		MinSize:    o.min,
		MaxSize:    o.max,
		Language:   l,
	}, segment.WithLogger(logrus.StandardLogger()))
}

func (o *options) scoring() quality.Options {
	return quality.Options{IdealMin: o.idealMin, IdealMax: o.idealMax}
}

// readInput reads the named file, or stdin for "-" or no argument.
func readInput(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", fmt.Errorf("read input: %w", err)
	}
	return string(data), nil
}

func (o *options) write(w io.Writer, v interface{}, text func(io.Writer)) error {
	switch o.output {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		data, err := yaml.Marshal(v)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	default:
		text(w)
		return nil
	}
}

func newChunkCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "chunk [file|-]",
		Short: "Print the chunks of a text, one per line",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			engine, err := opts.engine("")
			if err != nil {
				return err
			}
			chunks := engine.Chunks(text)
			if chunks == nil {
				chunks = []segment.Chunk{}
			}
			return opts.write(cmd.OutOrStdout(), chunks, func(w io.Writer) {
				for _, c := range chunks {
					fmt.Fprintln(w, c.Text)
				}
			})
		},
	}
}

func newScoreCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "score [file|-]",
		Short: "Chunk a text and print its quality report",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			engine, err := opts.engine("")
			if err != nil {
				return err
			}
			report := quality.Score(engine.Chunk(text), opts.scoring())
			return opts.write(cmd.OutOrStdout(), report, func(w io.Writer) {
				printReport(w, "", report)
			})
		},
	}
}

func newCompareCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "compare <gold-file>",
		Short: "Compare hand-made chunks (one per line) with the engine's chunks of the same text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read gold chunks: %w", err)
			}
			gold := goldChunks(string(data))
			if len(gold) == 0 {
				return fmt.Errorf("%s has no chunks", args[0])
			}
			engine, err := opts.engine("")
			if err != nil {
				return err
			}
			generated := engine.Chunk(strings.Join(gold, " "))
			cmp := quality.Compare(gold, generated, opts.scoring())
			return opts.write(cmd.OutOrStdout(), cmp, func(w io.Writer) {
				printReport(w, "gold", cmp.Gold)
				printReport(w, "generated", cmp.Generated)
				fmt.Fprintf(w, "recommendation: %s (%s)\n", cmp.Recommendation, cmp.Reasoning)
			})
		},
	}
}

func newSuiteCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "suite <suite.yaml>",
		Short: "Run the engine over a gold suite and compare every case",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			suite, err := quality.LoadSuite(args[0])
			if err != nil {
				return err
			}
			engine, err := opts.engine(suite.Language.String())
			if err != nil {
				return err
			}
			// --lang overrides the language the suite file declares
			suite.Language = engine.Config().Language
			res := quality.EvaluateSuite(engine, suite, opts.scoring())
			logrus.WithFields(logrus.Fields{
				"suite": args[0],
				"cases": len(res.Cases),
			}).Debug("suite evaluated")
			return opts.write(cmd.OutOrStdout(), res, func(w io.Writer) {
				for _, c := range res.Cases {
					mark := " "
					if c.ExactMatch {
						mark = "="
					}
					fmt.Fprintf(w, "%s %3d %-40s gold %.3f  generated %.3f  %s\n",
						mark, c.ID, c.Name, c.Comparison.Gold.Overall, c.Comparison.Generated.Overall, c.Comparison.Recommendation)
				}
				fmt.Fprintf(w, "exact matches: %d/%d\n", res.ExactMatches, len(res.Cases))
				fmt.Fprintf(w, "mean overall: gold %.3f  generated %.3f\n", res.MeanGold, res.MeanGenerated)
			})
		},
	}
}

// goldChunks splits a file into one chunk per non-blank line.
func goldChunks(data string) []string {
	var out []string
	for _, line := range strings.Split(data, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

func printReport(w io.Writer, label string, r quality.Report) {
	if label != "" {
		fmt.Fprintf(w, "[%s]\n", label)
	}
	fmt.Fprintf(w, "chunks: %d  length avg %.1f  min %d  max %d  stddev %.1f\n",
		r.Count, r.AvgLength, r.MinLength, r.MaxLength, r.StdDev)
	fmt.Fprintf(w, "ideal ratio %.3f  naturalness %.3f  readability %.3f  overall %.3f\n",
		r.IdealRatio, r.Naturalness, r.Readability, r.Overall)
}
