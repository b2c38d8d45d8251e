package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joshu-sajeev/claimqueue/internal/config"
	"github.com/joshu-sajeev/claimqueue/internal/observability"
	"github.com/joshu-sajeev/claimqueue/internal/storage/postgres"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const shutdownTimeout = 30 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type env struct {
	cfg *config.Config
	log *zap.Logger
	db  *gorm.DB
}

func setup(ctx context.Context) (*env, error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, err
	}
	log, err := observability.NewLogger(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}

	dbCfg, err := postgres.LoadConfigFromEnv(ctx)
	if err != nil {
		return nil, err
	}
	db, err := postgres.ConnectDB(ctx, dbCfg, log)
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, log: log, db: db}, nil
}

func (e *env) close() {
	if sqlDB, err := e.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	_ = e.log.Sync()
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "claimqueue-worker",
		Short:         "Durable job processor for claim work",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCommand(), newMigrateCommand(), newProcessCommand())
	return root
}

func newRunCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the scheduled message processor until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			e, err := setup(ctx)
			if err != nil {
				return err
			}
			defer e.close()

			if err := postgres.Migrate(ctx, e.db); err != nil {
				return err
			}

			a, err := buildApp(ctx, e.cfg, e.db, e.log)
			if err != nil {
				return err
			}
			defer a.Close()

			a.scheduler.Start()
			<-ctx.Done()
			e.log.Info("shutting down")

			stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return a.scheduler.Stop(stopCtx)
		},
	}
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer e.close()

			if err := postgres.Migrate(cmd.Context(), e.db); err != nil {
				return err
			}
			e.log.Info("migrations applied")
			return nil
		},
	}
}

func newProcessCommand() *cobra.Command {
	var jobType string

	cmd := &cobra.Command{
		Use:   "process",
		Short: "Process one batch of a job type under its lock and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			t := config.JobType(jobType)
			if !t.Valid() {
				return fmt.Errorf("unknown job type %q, allowed: %v", jobType, config.AllowedJobTypes)
			}

			e, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer e.close()

			a, err := buildApp(cmd.Context(), e.cfg, e.db, e.log)
			if err != nil {
				return err
			}
			defer a.Close()

			res, ran, err := a.scheduler.RunOnce(cmd.Context(), t)
			if err != nil {
				return err
			}
			if !ran {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: lock held by another instance, nothing done\n", t)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: selected=%d completed=%d retried=%d failed=%d\n",
				t, res.Selected, res.Completed, res.Retried, res.Failed)
			return nil
		},
	}
	cmd.Flags().StringVarP(&jobType, "type", "t", "", "job type to process")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}
