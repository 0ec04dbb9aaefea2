package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/skypro1111/voxsql/internal/dispatch"
	"github.com/skypro1111/voxsql/internal/display"
	"github.com/skypro1111/voxsql/internal/metrics"
)

// runAsk dispatches a typed question the same way a transcript is dispatched
func runAsk(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := initLogger(cfg.Logging)
	term := display.NewTerminal(cmd.OutOrStdout())

	gate, err := newGate(cfg, term, logger, metrics.NewMetrics(prometheus.NewRegistry()))
	if err != nil {
		return err
	}

	question := strings.Join(args, " ")
	outcome := gate.Dispatch(context.Background(), uuid.NewString(), question)

	switch outcome.Status {
	case dispatch.StatusRejected, dispatch.StatusFailed:
		return fmt.Errorf("%s: %s", outcome.Status, outcome.Error)
	}
	return nil
}

// runQuery runs one statement through the read-only gate
func runQuery(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := initLogger(cfg.Logging)
	term := display.NewTerminal(cmd.OutOrStdout())

	gate, err := newGate(cfg, term, logger, metrics.NewMetrics(prometheus.NewRegistry()))
	if err != nil {
		return err
	}

	stmt := args[0]
	term.SQL(stmt)

	result, err := gate.Execute(context.Background(), stmt)
	if err != nil {
		term.Error(err)
		return err
	}

	term.Rows(result)
	return nil
}
