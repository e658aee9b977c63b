package main

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	"github.com/luno/jettison/errors"
	"github.com/luno/jettison/j"
	"github.com/spf13/cobra"

	"github.com/luno/repyable"
	"github.com/luno/repyable/filters"
	"github.com/luno/repyable/rbits"
	"github.com/luno/repyable/rgrpc"
	"github.com/luno/repyable/rpatterns"
	"github.com/luno/repyable/rsql"
)

func newTailCommand(cfg *config) *cobra.Command {
	var (
		replay   bool
		consumer string
		matches  []string
	)

	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Print events of a remote session as json",
		Long: `Tail pops events from the remote session queue and prints them as json
lines until the session is closed. Popped events are not delivered to
other poppers.

With --replay the session buffer is streamed instead, resuming after the
consumer's cursor. Cursors are kept in memory unless a mysql cursors dsn
is configured.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cl, err := dial(cmd.Context(), *cfg)
			if err != nil {
				return err
			}
			defer cl.Close()

			filter, err := parseMatches(cl.Schema(), matches)
			if err != nil {
				return err
			}
			handle := printEvent(cmd, filter)

			if !replay {
				return tailQueue(cmd, cl, handle)
			}

			cstore := rpatterns.MemCursorStore()
			if cfg.CursorsDSN != "" {
				dbc, err := sql.Open("mysql", cfg.CursorsDSN)
				if err != nil {
					return errors.Wrap(err, "open cursors db")
				}
				defer dbc.Close()

				table := rsql.NewCursorsTable(cfg.CursorsTable)
				if err := table.CreateTable(cmd.Context(), dbc); err != nil {
					return err
				}
				cstore = table.ToStore(dbc)
			}

			return tailReplay(cmd, cl, cstore, consumer, handle)
		},
	}

	fs := cmd.Flags()
	fs.BoolVar(&replay, "replay", false, "Stream the session buffer instead of popping the queue")
	fs.StringVar(&consumer, "consumer", "repyable_tail", "Consumer name of the replay cursor")
	fs.StringArrayVar(&matches, "match", nil, `Only print events with the field value, ex. "flag=true", repeatable`)
	fs.StringVar(&cfg.CursorsDSN, "cursors-dsn", cfg.CursorsDSN, "MySQL dsn for replay cursors")
	fs.StringVar(&cfg.CursorsTable, "cursors-table", cfg.CursorsTable, "MySQL table for replay cursors")

	return cmd
}

func tailQueue(cmd *cobra.Command, cl *rgrpc.Client, handle rpatterns.QueueHandler) error {
	return rpatterns.ConsumeQueue(cmd.Context(), cl, 1, handle,
		rpatterns.WithPoolName("tail"))
}

// tailReplay prints the remote buffer after the consumer's cursor until the
// session is closed and drained.
func tailReplay(cmd *cobra.Command, cl *rgrpc.Client, cstore repyable.CursorStore, name string,
	handle func(context.Context, *repyable.Event) error,
) error {
	consumer := repyable.NewConsumer(name, handle)

	err := repyable.Run(cmd.Context(), repyable.NewSpec(cl.Stream, cstore, consumer))
	if errors.IsAny(err, repyable.ErrEndOfStream, repyable.ErrHeadReached) {
		return nil
	}
	return err
}

// parseMatches returns a filter passing events matching all the
// "field=value" matches.
func parseMatches(schema rbits.Schema, matches []string) (filters.EventFilter, error) {
	var efs []filters.EventFilter
	for _, m := range matches {
		field, value, ok := strings.Cut(m, "=")
		if !ok {
			return nil, errors.New("invalid match, expected field=value", j.KS("match", m))
		}

		rec, err := parseRecord(schema, []byte(fmt.Sprintf("{%q:%s}", field, value)))
		if err != nil {
			return nil, errors.Wrap(err, "invalid match", j.KS("match", m))
		}

		efs = append(efs, filters.Equals(field, rec[field]))
	}
	return filters.All(efs...), nil
}

func printEvent(cmd *cobra.Command, filter filters.EventFilter) func(context.Context, *repyable.Event) error {
	return func(_ context.Context, e *repyable.Event) error {
		if ok, err := filter(e); err != nil {
			return err
		} else if !ok {
			return nil
		}

		b, err := formatEvent(e)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(b))
		return err
	}
}
