package main

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"selfheal/internal/store"

	"github.com/spf13/cobra"
)

var (
	corpusLimit int
	corpusTop   int
)

// corpusCmd inspects the training corpus
var corpusCmd = &cobra.Command{
	Use:   "corpus",
	Short: "Inspect the training corpus",
}

var corpusListCmd = &cobra.Command{
	Use:   "list",
	Short: "List training records, most recent last",
	Args:  cobra.NoArgs,
	RunE:  corpusList,
}

var corpusStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize the training corpus",
	Args:  cobra.NoArgs,
	RunE:  corpusStats,
}

var corpusWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print training records as sessions append them (file backend)",
	Args:  cobra.NoArgs,
	RunE:  corpusWatch,
}

func init() {
	corpusListCmd.Flags().IntVarP(&corpusLimit, "limit", "n", 20, "Show only the last n records (0 = all)")
	corpusStatsCmd.Flags().IntVar(&corpusTop, "top", 10, "Number of top pairings to show")

	corpusCmd.AddCommand(corpusListCmd)
	corpusCmd.AddCommand(corpusStatsCmd)
	corpusCmd.AddCommand(corpusWatchCmd)
}

func corpusList(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd.Context())
	defer cancel()

	corpus, err := openCorpus(ctx)
	if err != nil {
		return err
	}
	defer corpus.Close()

	records, err := corpus.LoadAll(ctx)
	if err != nil {
		return err
	}
	if corpusLimit > 0 && len(records) > corpusLimit {
		records = records[len(records)-corpusLimit:]
	}

	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{formatTime(r.RecordedAt), r.OriginalLocator, r.HealedLocator})
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Recorded", "Original", "Healed"}, rows))
	return nil
}

// Stats summarizes a training corpus.
type Stats struct {
	Records   int
	Originals int
	Pairs     int
	Top       []PairCount
}

// PairCount is how often one original -> healed pairing was recorded.
type PairCount struct {
	Original string
	Healed   string
	Count    int
}

// summarize counts distinct originals and pairings. Top is ordered by count,
// then by first appearance.
func summarize(records []store.Record, top int) Stats {
	type key struct{ original, healed string }
	counts := make(map[key]int)
	var order []key
	originals := make(map[string]bool)

	for _, r := range records {
		k := key{r.OriginalLocator, r.HealedLocator}
		if _, ok := counts[k]; !ok {
			order = append(order, k)
		}
		counts[k]++
		originals[r.OriginalLocator] = true
	}

	pairs := make([]PairCount, 0, len(order))
	for _, k := range order {
		pairs = append(pairs, PairCount{Original: k.original, Healed: k.healed, Count: counts[k]})
	}
	sort.SliceStable(pairs, func(i, j int) bool { return pairs[i].Count > pairs[j].Count })
	if top >= 0 && len(pairs) > top {
		pairs = pairs[:top]
	}

	return Stats{
		Records:   len(records),
		Originals: len(originals),
		Pairs:     len(order),
		Top:       pairs,
	}
}

func corpusStats(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd.Context())
	defer cancel()

	corpus, err := openCorpus(ctx)
	if err != nil {
		return err
	}
	defer corpus.Close()

	records, err := corpus.LoadAll(ctx)
	if err != nil {
		return err
	}
	printStats(cmd.OutOrStdout(), summarize(records, corpusTop))
	return nil
}

func printStats(w io.Writer, s Stats) {
	fmt.Fprintln(w, titleStyle.Render("Training corpus"))
	fmt.Fprintf(w, "  records:   %d\n", s.Records)
	fmt.Fprintf(w, "  originals: %d\n", s.Originals)
	fmt.Fprintf(w, "  pairings:  %d\n", s.Pairs)
	if len(s.Top) == 0 {
		return
	}
	rows := make([][]string, 0, len(s.Top))
	for _, p := range s.Top {
		rows = append(rows, []string{strconv.Itoa(p.Count), p.Original, p.Healed})
	}
	fmt.Fprintln(w, renderTable([]string{"Count", "Original", "Healed"}, rows))
}

func corpusWatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd.Context())
	defer cancel()

	corpus, err := openCorpus(ctx)
	if err != nil {
		return err
	}
	defer corpus.Close()

	fs, ok := corpus.(*store.FileStore)
	if !ok {
		return errors.New("corpus watch needs the file training backend")
	}
	records, err := fs.Follow(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, mutedStyle.Render("watching "+fs.Path()+" (Ctrl+C to stop)"))
	for r := range records {
		fmt.Fprintf(out, "%s %s -> %s\n", mutedStyle.Render(formatTime(r.RecordedAt)), r.OriginalLocator, successStyle.Render(r.HealedLocator))
	}
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
