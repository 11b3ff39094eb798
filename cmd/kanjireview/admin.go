package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/japaniel/kanjireview/pkg/dictionary"
	"github.com/japaniel/kanjireview/pkg/importer"
	"github.com/japaniel/kanjireview/pkg/reading"
	"github.com/japaniel/kanjireview/pkg/srs"
)

type importOptions struct {
	jmdictPath string
	analyze    bool
	workers    int
}

func newImportCmd(opts *rootOptions) *cobra.Command {
	iopts := &importOptions{}
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import kanji from a JSON file",
		Long: `Import kanji from a JSON file: an array of
{"id", "kanji", "meaning", "examples": [{"word", "reading"}]} objects, or an
object with a "kanjis" array.

Examples without a reading get one from the JMdict file given with --jmdict,
then from the morphological analyzer. Re-importing a kanji refreshes its text
and examples but keeps its review progress. Every entry needs a positive
"id"; a file with a missing id is refused as a whole.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			var sources []importer.ReadingSource
			if iopts.jmdictPath != "" {
				start := time.Now()
				entries, err := dictionary.LoadJMdictSimplified(iopts.jmdictPath)
				if err != nil {
					return fmt.Errorf("load dictionary: %w", err)
				}
				index := dictionary.NewIndex(entries)
				a.log.Info("dictionary loaded",
					zap.Int("entries", len(entries)),
					zap.Int("forms", index.Len()),
					zap.Duration("took", time.Since(start)))
				sources = append(sources, index)
			}
			if iopts.analyze {
				analyzer, err := reading.NewAnalyzer()
				if err != nil {
					return fmt.Errorf("load analyzer: %w", err)
				}
				sources = append(sources, analyzer)
			}

			enricher := importer.NewEnricher(iopts.workers, a.log, sources...)
			res, err := importer.ImportFile(cmd.Context(), args[0], enricher, a.ctrl, a.log)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d of %d kanji (%d readings filled).\n",
				res.Imported, res.Loaded, res.ReadingsFilled)
			return nil
		},
	}
	cmd.Flags().StringVar(&iopts.jmdictPath, "jmdict", "", "jmdict-simplified JSON file for example readings")
	cmd.Flags().BoolVar(&iopts.analyze, "analyze", true, "fall back to the morphological analyzer for readings")
	cmd.Flags().IntVar(&iopts.workers, "workers", 0, "reading lookup workers (default GOMAXPROCS)")
	return cmd
}

func newLearnCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "learn",
		Short: "Introduce the next batch of new kanji",
		Long: `Introduce the next batch of new kanji into the review queue.

Nothing is introduced while the previous batch is still unreviewed or was
introduced today (UTC).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			n, ok := a.ctrl.LearnMoreKanjis(cmd.Context())
			if !ok {
				return fmt.Errorf("failed to introduce kanji, see log")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Introduced %d new kanji.\n", n)
			return nil
		},
	}
}

func newListCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List tracked kanji with their SRS stage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			records := a.ctrl.GetKanjis(cmd.Context())
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tKANJI\tMEANING\tLEVEL\tSTAGE\tNEXT REVIEW")
			for _, r := range records {
				next := r.NextReviewDate.UTC().Format(time.RFC3339)
				if srs.IsBurned(r.Level) {
					next = "-"
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\t%s\n",
					r.ID, r.Kanji, r.Meaning, r.Level, srs.StageName(r.Level), next)
			}
			return w.Flush()
		},
	}
}
