package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"entryway/internal/config"
	"entryway/internal/draft"
	"entryway/internal/journal"
	"entryway/internal/logging"
	"entryway/internal/pipeline"
	"entryway/internal/preflight"
	"entryway/internal/quota"
	"entryway/internal/runlock"
	"entryway/internal/services"
	"entryway/internal/services/contestapi"
	"entryway/internal/services/mediahost"
	"entryway/internal/services/objectstore"
	"entryway/internal/services/ticket"
	"entryway/internal/session"
)

func newSubmitCommand(cmdCtx *commandContext) *cobra.Command {
	var draftPath string
	var skipPreflight bool

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Run the submission pipeline for a draft",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			d, err := draft.Load(draftPath)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if !skipPreflight {
				results := preflight.RunAll(ctx, cfg)
				if !preflight.AllPassed(results) {
					fmt.Fprintln(out, renderPreflight(results))
					return errors.New("preflight failed; fix the findings above or pass --skip-preflight")
				}
			}

			lock := runlock.New(cfg)
			if err := lock.Acquire(); err != nil {
				if errors.Is(err, runlock.ErrBusy) {
					return fmt.Errorf("another submission run holds %s; wait for it to finish", lock.Path())
				}
				return err
			}
			defer lock.Release()

			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}

			store, err := journal.Open(cfg)
			if err != nil {
				return fmt.Errorf("open journal: %w", err)
			}
			defer store.Close()

			httpClient := &http.Client{}
			contestClient := contestapi.New(cfg.Services.ContestAPIURL, httpClient)
			provider := session.NewHTTPProvider(
				cfg.Auth.RefreshURL,
				strings.TrimRight(cfg.Services.ContestAPIURL, "/")+"/users/me",
				cfg.Auth.AccessToken,
				cfg.Auth.RefreshToken,
				httpClient,
			)
			guard := session.NewGuard(provider, cfg.Timeouts.SessionRefresh, logger)

			orch := pipeline.New(cfg, logger, pipeline.Dependencies{
				Tickets:  ticket.New(cfg.Services.TicketURL, cfg.Timeouts.TicketRequest, httpClient),
				Media:    mediahost.New(cfg.Timeouts.VideoUpload, httpClient),
				Store:    objectstore.New(cfg.Services.StorageURL, cfg.Services.StoragePublicURL, httpClient),
				Contest:  contestClient,
				Session:  guard,
				Quota:    quota.NewGuard(&submissionCounter{contest: contestClient, session: guard}, logger),
				Journal:  store,
				Observer: newCLIObserver(out),
			})

			result, err := orch.Start(ctx, d)
			if err != nil {
				classified := services.Details(err)
				fmt.Fprintf(out, "\nSubmission failed (%s): %s\n", classified.Category, classified.Message)
				if classified.Recovery != "" {
					fmt.Fprintf(out, "Next step: %s\n", classified.Recovery)
				}
				return fmt.Errorf("submission failed (%s)", classified.Category)
			}

			fmt.Fprintln(out)
			fmt.Fprintln(out, renderRunSummary(result))
			fmt.Fprintf(out, "\nSubmission registered: %s\n", result.SubmissionID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&draftPath, "draft", "d", "", "Path to the draft TOML file")
	cmd.Flags().BoolVar(&skipPreflight, "skip-preflight", false, "Skip service readiness checks")
	_ = cmd.MarkFlagRequired("draft")
	return cmd
}

// submissionCounter feeds the quota guard with authenticated count lookups.
type submissionCounter struct {
	contest *contestapi.Client
	session *session.Guard
}

func (c *submissionCounter) CountSubmissions(ctx context.Context, userID, contestID string) (int, error) {
	token, err := c.session.Token(ctx)
	if err != nil {
		return 0, err
	}
	return c.contest.CountSubmissions(ctx, token, userID, contestID)
}

func renderRunSummary(result *pipeline.Result) string {
	rows := make([][]string, 0, len(result.Run.Stages))
	for _, stage := range result.Run.Stages {
		percent := ""
		if stage.Key.ByteTransport() {
			percent = strconv.Itoa(stage.Percent) + "%"
		}
		detail := stage.FileName
		rows = append(rows, []string{string(stage.Key), string(stage.Status), percent, detail})
	}
	return renderTable([]string{"Stage", "Status", "Progress", "File"}, rows, 3)
}

func newLogger(cfg *config.Config) (*slog.Logger, error) {
	opts := logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	}
	if cfg.Paths.LogDir != "" {
		opts.OutputPaths = []string{filepath.Join(cfg.Paths.LogDir, "entryway.log")}
	} else {
		opts.OutputPaths = []string{"stderr"}
	}
	return logging.New(opts)
}
