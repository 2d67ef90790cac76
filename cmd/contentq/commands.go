package main

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/bissquit/contentq/internal/app"
	"github.com/bissquit/contentq/internal/config"
	"github.com/bissquit/contentq/internal/contentqueue"
	"github.com/bissquit/contentq/internal/domain"
	"github.com/bissquit/contentq/internal/pkg/httputil"
	"github.com/bissquit/contentq/internal/pkg/postgres"
	"github.com/bissquit/contentq/migrations"
)

const timeLayout = "Mon, Jan 2 2006 3:04 PM MST"

func runAdd(ctx context.Context, c *cli, args []string) error {
	svc, err := c.queue(ctx)
	if err != nil {
		return err
	}

	item, err := svc.QueueEssay(ctx, args[0], args[1], contentqueue.QueueOptions{})
	if err != nil {
		return err
	}

	fmt.Fprintf(c.out, "✅ Queued: %s (%s)\n", item.Title, item.Slug)
	fmt.Fprintf(c.out, "   Scheduled for: %s\n", formatTime(svc.SpacingConfig(ctx).Location(), item.ScheduledAt))
	return nil
}

func runDraft(ctx context.Context, c *cli, args []string) error {
	svc, err := c.queue(ctx)
	if err != nil {
		return err
	}

	item, err := svc.AddDraft(ctx, args[0], args[1], contentqueue.QueueOptions{})
	if err != nil {
		return err
	}

	fmt.Fprintf(c.out, "📝 Draft added: %s (%s)\n", item.Title, item.Slug)
	return nil
}

func runList(ctx context.Context, c *cli, args []string) error {
	svc, err := c.queue(ctx)
	if err != nil {
		return err
	}

	var status *domain.QueueStatus
	if len(args) == 1 {
		s := domain.QueueStatus(args[0])
		status = &s
	}

	items, err := svc.ListQueue(ctx, status)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Fprintln(c.out, "Queue is empty.")
		return nil
	}

	loc := svc.SpacingConfig(ctx).Location()
	tw := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STATUS\tSCHEDULED\tSLUG\tTITLE\tSOCIAL")
	for _, item := range items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			item.Status,
			formatTime(loc, item.ScheduledAt),
			item.Slug,
			item.Title,
			item.SocialStatus,
		)
	}
	return tw.Flush()
}

func runSchedule(ctx context.Context, c *cli, args []string) error {
	svc, err := c.queue(ctx)
	if err != nil {
		return err
	}

	id, err := lookup(ctx, svc, args[0])
	if err != nil {
		return err
	}

	item, err := svc.ScheduleDraft(ctx, id, nil)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.out, "📅 Scheduled: %s\n", item.Slug)
	fmt.Fprintf(c.out, "   Publishes: %s\n", formatTime(svc.SpacingConfig(ctx).Location(), item.ScheduledAt))
	return nil
}

func runReschedule(ctx context.Context, c *cli, args []string) error {
	svc, err := c.queue(ctx)
	if err != nil {
		return err
	}

	id, err := lookup(ctx, svc, args[0])
	if err != nil {
		return err
	}

	at, err := contentqueue.ParseScheduleTime(args[1], time.Now(), svc.SpacingConfig(ctx).Location())
	if err != nil {
		return err
	}

	item, err := svc.Reschedule(ctx, id, at)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.out, "🔁 Rescheduled: %s\n", item.Slug)
	fmt.Fprintf(c.out, "   Publishes: %s\n", formatTime(svc.SpacingConfig(ctx).Location(), item.ScheduledAt))
	return nil
}

func runProcess(ctx context.Context, c *cli, _ []string) error {
	svc, err := c.queue(ctx)
	if err != nil {
		return err
	}

	result, err := svc.ProcessQueue(ctx)
	if err != nil {
		return err
	}

	if len(result.Published) == 0 && len(result.Failed) == 0 {
		fmt.Fprintln(c.out, "Nothing due.")
		return nil
	}

	for _, item := range result.Published {
		fmt.Fprintf(c.out, "✅ Published: %s\n", item.Slug)
	}
	for _, item := range result.Failed {
		msg := ""
		if item.ErrorMessage != nil {
			msg = *item.ErrorMessage
		}
		fmt.Fprintf(c.out, "⚠️  Failed: %s (%s)\n", item.Slug, msg)
	}
	fmt.Fprintf(c.out, "Processed %d item(s): %d published, %d failed\n",
		len(result.Published)+len(result.Failed), len(result.Published), len(result.Failed))
	return nil
}

func runStats(ctx context.Context, c *cli, _ []string) error {
	svc, err := c.queue(ctx)
	if err != nil {
		return err
	}

	stats, err := svc.GetQueueStats(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintln(c.out, "📊 Queue stats")
	fmt.Fprintf(c.out, "   Total:     %d\n", stats.Total)
	fmt.Fprintf(c.out, "   Draft:     %d\n", stats.Draft)
	fmt.Fprintf(c.out, "   Scheduled: %d\n", stats.Scheduled)
	fmt.Fprintf(c.out, "   Published: %d\n", stats.Published)
	fmt.Fprintf(c.out, "   Failed:    %d\n", stats.Failed)
	fmt.Fprintf(c.out, "   Today:     %d scheduled, %d of %d remaining\n",
		stats.TodayScheduled, stats.TodayRemaining, stats.MaxPostsPerDay)
	return nil
}

func runNext(ctx context.Context, c *cli, _ []string) error {
	svc, err := c.queue(ctx)
	if err != nil {
		return err
	}

	slot, err := svc.GetNextSlot(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.out, "⏭  Next available slot: %s\n", formatTime(svc.SpacingConfig(ctx).Location(), &slot))
	return nil
}

func runDelete(ctx context.Context, c *cli, args []string) error {
	svc, err := c.queue(ctx)
	if err != nil {
		return err
	}

	id, err := lookup(ctx, svc, args[0])
	if err != nil {
		return err
	}

	if err := svc.DeleteFromQueue(ctx, id); err != nil {
		return err
	}

	fmt.Fprintf(c.out, "🗑  Deleted: %s\n", args[0])
	return nil
}

func runServe(ctx context.Context, c *cli, _ []string) error {
	application, err := app.New(c.cfg)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- application.Run()
	}()

	select {
	case err := <-errCh:
		shutdownCtx, cancel := context.WithTimeout(context.Background(), c.cfg.Server.ShutdownTimeout)
		defer cancel()
		return errors.Join(err, application.Shutdown(shutdownCtx))
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), c.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := application.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}

func runMigrate(_ context.Context, c *cli, _ []string) error {
	if c.cfg.Database.Driver != config.DriverPostgres {
		fmt.Fprintf(c.out, "Nothing to migrate: the %s store creates its schema on open.\n", c.cfg.Database.Driver)
		return nil
	}

	if err := postgres.Migrate(migrations.FS, c.cfg.Database.URL); err != nil {
		return err
	}

	fmt.Fprintln(c.out, "✅ Migrations applied")
	return nil
}

func runToken(_ context.Context, c *cli, args []string) error {
	if c.cfg.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is not configured")
	}

	role := httputil.RoleOperator
	if len(args) == 2 {
		role = args[1]
	}

	token, err := httputil.IssueOperatorToken(c.cfg.Auth.JWTSecret, args[0], role, c.cfg.Auth.TokenTTL)
	if err != nil {
		return err
	}

	fmt.Fprintln(c.out, token)
	return nil
}

func formatTime(loc *time.Location, t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.In(loc).Format(timeLayout)
}
