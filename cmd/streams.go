package cmd

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"example.com/backstage/services/portal/domain"
	"example.com/backstage/services/portal/eventstore"
)

var (
	includeDeleted bool
	failedLimit    int
)

var streamsCmd = &cobra.Command{
	Use:       "streams <realm|language|field_type|content_type|content>",
	Short:     "List the event streams of an aggregate type",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{domain.RealmAggregateType, domain.LanguageAggregateType, domain.FieldTypeAggregateType, domain.ContentTypeAggregateType, domain.ContentAggregateType},
	RunE:      runStreams,
}

var failedCmd = &cobra.Command{
	Use:   "failed",
	Short: "List events the worker could not project",
	RunE:  runFailed,
}

func init() {
	streamsCmd.Flags().BoolVar(&includeDeleted, "deleted", false, "include deleted aggregates")
	failedCmd.Flags().IntVar(&failedLimit, "limit", 100, "maximum number of events to list")
	rootCmd.AddCommand(streamsCmd, failedCmd)
}

// streamSummary is one line of the streams listing
type streamSummary struct {
	StreamID domain.StreamID
	Version  int
	Deleted  bool
}

func summarize[T domain.Aggregate](ctx context.Context, repo *eventstore.Repository, aggregateType string, factory func(domain.StreamID) T) ([]streamSummary, error) {
	aggregates, err := eventstore.LoadAll(ctx, repo, aggregateType, factory, includeDeleted)
	if err != nil {
		return nil, err
	}
	summaries := make([]streamSummary, 0, len(aggregates))
	for _, aggregate := range aggregates {
		summaries = append(summaries, streamSummary{
			StreamID: aggregate.GetID(),
			Version:  aggregate.GetVersion(),
			Deleted:  aggregate.IsDeleted(),
		})
	}
	return summaries, nil
}

// listStreams loads every aggregate of aggregateType from the event log
func listStreams(ctx context.Context, repo *eventstore.Repository, aggregateType string) ([]streamSummary, error) {
	switch aggregateType {
	case domain.RealmAggregateType:
		return summarize(ctx, repo, aggregateType, func(id domain.StreamID) *domain.Realm {
			return domain.NewRealmAggregate(id.Entity)
		})
	case domain.LanguageAggregateType:
		return summarize(ctx, repo, aggregateType, domain.NewLanguageAggregate)
	case domain.FieldTypeAggregateType:
		return summarize(ctx, repo, aggregateType, domain.NewFieldTypeAggregate)
	case domain.ContentTypeAggregateType:
		return summarize(ctx, repo, aggregateType, domain.NewContentTypeAggregate)
	case domain.ContentAggregateType:
		return summarize(ctx, repo, aggregateType, domain.NewContentAggregate)
	}
	return nil, fmt.Errorf("unknown aggregate type %q", aggregateType)
}

func writeStreams(w io.Writer, summaries []streamSummary) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STREAM\tVERSION\tDELETED")
	for _, s := range summaries {
		fmt.Fprintf(tw, "%s\t%d\t%t\n", s.StreamID, s.Version, s.Deleted)
	}
	return tw.Flush()
}

func runStreams(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
	defer cancel()

	a, err := newApp(cfg, false, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	summaries, err := listStreams(ctx, a.events, args[0])
	if err != nil {
		return err
	}
	return writeStreams(cmd.OutOrStdout(), summaries)
}

func runFailed(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
	defer cancel()

	a, err := newApp(cfg, false, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	failed, err := a.events.Store().GetFailedEvents(ctx, failedLimit)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "EVENT\tSTREAM\tVERSION\tTYPE\tREASON")
	for _, event := range failed {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", event.ID, event.StreamID, event.Version, event.Type, event.Reason)
	}
	return tw.Flush()
}
