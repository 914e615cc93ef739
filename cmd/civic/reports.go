package main

import (
	"context"
	"fmt"
	"mime"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"civicconnect.org/internal/guard"
	"civicconnect.org/internal/report"
	"civicconnect.org/internal/repository"
	"civicconnect.org/internal/screen"
)

func newFeedCmd(v *viper.Viper) *cobra.Command {
	var filter string
	var watch bool
	cmd := &cobra.Command{
		Use:   "feed",
		Short: "Show the community feed",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := report.ParseFilter(filter)
			if err != nil {
				return err
			}
			a, err := newApp(cmd, v)
			if err != nil {
				return err
			}
			repo, err := a.repository()
			if err != nil {
				return err
			}
			if !watch {
				ctx, cancel := a.ctx(cmd.Context())
				defer cancel()
				if err := repo.Fetch(ctx); err != nil {
					return err
				}
				return a.renderFeed(ctx, repo.Reports(), f)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			repo.OnUpdate(func(rows []report.Report) {
				rctx, cancel := a.ctx(ctx)
				defer cancel()
				if err := a.renderFeed(rctx, rows, f); err != nil {
					a.log.Warn().Err(err).Msg("render feed")
				}
			})
			if err := repo.Start(ctx); err != nil {
				return err
			}
			defer repo.Close()
			<-ctx.Done()
			return nil
		},
	}
	cmd.Flags().StringVar(&filter, "filter", "all", "all, today, urgent or resolved")
	cmd.Flags().BoolVar(&watch, "watch", false, "keep the feed open and follow live changes")
	return cmd
}

func (a *app) renderFeed(ctx context.Context, rows []report.Report, f report.Filter) error {
	profiles, err := a.client.Profiles(ctx, screen.AuthorIDs(rows))
	if err != nil {
		a.log.Debug().Err(err).Msg("load author profiles")
	}
	items, err := screen.BuildFeed(rows, profiles, f, time.Now(), a.loc)
	if err != nil {
		return err
	}
	return screen.RenderFeed(a.out, items, f)
}

func newReportCmd(v *viper.Viper) *cobra.Command {
	var (
		draft     report.Draft
		category  string
		priority  string
		lat, lng  float64
		photos    []string
		anonymous bool
	)
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Submit a new report",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, v)
			if err != nil {
				return err
			}
			if ok, err := a.guarded(guard.User(a.state(cmd.Context()))); !ok {
				return err
			}
			if draft.Category, err = report.ParseCategory(category); err != nil {
				return err
			}
			if priority != "" {
				if draft.Priority, err = report.ParsePriority(priority); err != nil {
					return err
				}
			}
			if cmd.Flags().Changed("lat") || cmd.Flags().Changed("lng") {
				draft.Latitude, draft.Longitude = &lat, &lng
			}
			draft.IsAnonymous = anonymous

			files, closeAll, err := openAttachments(photos)
			if err != nil {
				return err
			}
			defer closeAll()

			repo, err := a.repository()
			if err != nil {
				return err
			}
			ctx, cancel := a.ctx(cmd.Context())
			defer cancel()
			created, err := screen.NewReportForm(repo, a.client, a.toaster).Submit(ctx, draft, files)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%s %s (%s)\n", screen.CategoryEmoji(created.Category), created.Title, created.ID)
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&draft.Title, "title", "", "short summary")
	flags.StringVar(&draft.Description, "description", "", "what is wrong")
	flags.StringVar(&category, "category", "", "pothole, streetlight, sanitation, water, traffic, safety, corruption or other")
	flags.StringVar(&priority, "priority", "", "low, medium, high or critical (default medium)")
	flags.StringVar(&draft.LocationAddress, "address", "", "street address")
	flags.Float64Var(&lat, "lat", 0, "latitude")
	flags.Float64Var(&lng, "lng", 0, "longitude")
	flags.StringSliceVar(&photos, "photo", nil, "image or video file to attach (repeatable)")
	flags.BoolVar(&anonymous, "anonymous", false, "hide your name on the feed")
	_ = cmd.MarkFlagRequired("category")
	return cmd
}

func openAttachments(paths []string) ([]screen.Attachment, func(), error) {
	var files []*os.File
	closeAll := func() {
		for _, f := range files {
			_ = f.Close()
		}
	}
	out := make([]screen.Attachment, 0, len(paths))
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		files = append(files, f)
		ct := mime.TypeByExtension(filepath.Ext(p))
		if ct == "" {
			ct = "application/octet-stream"
		}
		out = append(out, screen.Attachment{ContentType: ct, Body: f})
	}
	return out, closeAll, nil
}

func newProfileCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "profile",
		Short: "Show your account and your reports",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, v)
			if err != nil {
				return err
			}
			rows, err := a.fetch(cmd.Context())
			if err != nil {
				return err
			}
			d, view := screen.Profile(a.state(cmd.Context()), rows)
			if ok, err := a.guarded(d); !ok {
				return err
			}
			return screen.RenderProfile(a.out, view, a.loc)
		},
	}
}

// fetch loads the current report list once.
func (a *app) fetch(ctx context.Context) ([]report.Report, error) {
	repo, err := a.repository()
	if err != nil {
		return nil, err
	}
	return a.fetchWith(ctx, repo)
}

func (a *app) fetchWith(ctx context.Context, repo *repository.Repository) ([]report.Report, error) {
	ctx, cancel := a.ctx(ctx)
	defer cancel()
	if err := repo.Fetch(ctx); err != nil {
		return nil, err
	}
	return repo.Reports(), nil
}
