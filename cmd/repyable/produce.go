package main

import (
	"bufio"
	"bytes"
	"context"
	"fmt"

	"github.com/luno/jettison/errors"
	"github.com/luno/jettison/j"
	"github.com/spf13/cobra"

	"github.com/luno/repyable/rgrpc"
)

func newProduceCommand(cfg *config) *cobra.Command {
	return &cobra.Command{
		Use:   "produce",
		Short: "Produce json records read from stdin",
		Long: `Produce reads one json object per line from stdin, ex. {"flag":true,"value":42},
encodes it with the remote session schema and produces it. The index of
each produced event is printed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cl, err := dial(cmd.Context(), *cfg)
			if err != nil {
				return err
			}
			defer cl.Close()

			return produce(cmd, cl)
		},
	}
}

func produce(cmd *cobra.Command, cl *rgrpc.Client) error {
	ctx := cmd.Context()

	scanner := bufio.NewScanner(cmd.InOrStdin())
	var line int
	for scanner.Scan() {
		line++
		data := bytes.TrimSpace(scanner.Bytes())
		if len(data) == 0 {
			continue
		}

		rec, err := parseRecord(cl.Schema(), data)
		if err != nil {
			return errors.Wrap(err, "parse record", j.KV("line", line))
		}

		index, err := cl.Produce(ctx, rec)
		if err != nil {
			return errors.Wrap(err, "produce", j.KV("line", line))
		}

		fmt.Fprintln(cmd.OutOrStdout(), index)
	}
	return scanner.Err()
}

func dial(ctx context.Context, cfg config) (*rgrpc.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	cl, err := rgrpc.Dial(ctx, cfg.Addr)
	if err != nil {
		return nil, errors.Wrap(err, "dial", j.KS("addr", cfg.Addr))
	}

	if err := cl.WaitForHealth(ctx); err != nil {
		_ = cl.Close()
		return nil, err
	}

	return cl, nil
}
