// Command seat-client is a terminal customer client: it logs in with a
// ticket, keeps a selection consistent with the live availability feed and
// submits it once it is ready.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/event-seat-reservation/internal/client"
	"github.com/iliyamo/event-seat-reservation/internal/feed"
	"github.com/iliyamo/event-seat-reservation/internal/logger"
	"github.com/iliyamo/event-seat-reservation/internal/model"
	"github.com/iliyamo/event-seat-reservation/internal/seating"
)

// Configuration
type options struct {
	Host    string
	Email   string
	Code    string
	Seats   string
	Level   string
	Watch   time.Duration
	DryRun  bool
	Verbose bool
}

func main() {
	opts := options{}
	flag.StringVar(&opts.Host, "host", "http://localhost:8080", "API host")
	flag.StringVar(&opts.Email, "email", "", "ticket holder email")
	flag.StringVar(&opts.Code, "code", "", "ticket code")
	flag.StringVar(&opts.Seats, "seats", "", "comma separated seat ids to select")
	flag.StringVar(&opts.Level, "level", "", "level shown first")
	flag.DurationVar(&opts.Watch, "watch", 3*time.Second, "time to follow the availability feed before submitting")
	flag.BoolVar(&opts.DryRun, "dry-run", false, "check readiness without submitting")
	flag.BoolVar(&opts.Verbose, "v", false, "debug logging")
	flag.Parse()

	level := "info"
	if opts.Verbose {
		level = "debug"
	}
	log := logger.Must("dev", level)
	defer func() { _ = log.Sync() }()

	if opts.Email == "" || opts.Code == "" || opts.Seats == "" {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, opts, log); err != nil {
		log.Error("seat-client", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options, log *zap.Logger) error {
	api := client.New(opts.Host)
	if err := api.Login(ctx, opts.Email, opts.Code); err != nil {
		return fmt.Errorf("login: %w", err)
	}
	profile, err := api.Profile(ctx)
	if err != nil {
		return fmt.Errorf("profile: %w", err)
	}
	if profile.SeatConfirmed {
		fmt.Printf("ticket %s already holds %s\n", profile.TicketCode, seatNames(profile.Seats))
		return nil
	}

	seats, err := api.Metadata(ctx)
	if err != nil {
		return fmt.Errorf("metadata: %w", err)
	}
	snap, err := api.Availability(ctx)
	if err != nil {
		return fmt.Errorf("availability: %w", err)
	}
	initial := make(map[string]model.SeatState, len(seats))
	for _, s := range seats {
		if avail, ok := snap.Seats[s.ID]; ok && !avail {
			initial[s.ID] = model.SeatState{Taken: true}
		}
	}

	mgr, err := seating.NewManager(seats, initial, seating.Options{
		Quotas:       profile.Quotas,
		DefaultLevel: opts.Level,
	})
	if err != nil {
		return err
	}

	src, err := api.StreamSource()
	if err != nil {
		return err
	}
	adapter := feed.NewAdapter(src, mgr, log)
	adapter.OnWarnings = func(ws []seating.Warning) { printWarnings("update", ws) }
	fctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() { _ = adapter.Run(fctx) }()

	res, err := mgr.SelectSeats(splitIDs(opts.Seats))
	if err != nil {
		return fmt.Errorf("select: %w", err)
	}
	printWarnings("select", res.Warnings)
	fmt.Printf("selected: %s\n", strings.Join(res.Selection, ", "))

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(opts.Watch):
	}

	if err := mgr.CheckReadiness(); err != nil {
		var re *seating.ReadinessError
		if errors.As(err, &re) {
			fmt.Printf("not ready: %s\n", re.Error())
			return nil
		}
		return err
	}
	if opts.DryRun {
		fmt.Printf("ready: %s\n", strings.Join(mgr.Selection(), ", "))
		return nil
	}

	out, err := api.Reserve(ctx, mgr.Selection())
	if err != nil {
		var apiErr *client.APIError
		if errors.As(err, &apiErr) {
			fmt.Printf("rejected (%d): %s\n", apiErr.Status, apiErr.Message)
			return nil
		}
		return fmt.Errorf("reserve: %w", err)
	}
	fmt.Printf("reserved %s at %s\n", seatNames(out.Seats), out.ConfirmedAt.Format(time.RFC3339))
	if !out.Notified {
		fmt.Println("confirmation email is delayed")
	}
	return nil
}

func splitIDs(raw string) []string {
	var ids []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			ids = append(ids, p)
		}
	}
	return ids
}

func seatNames(seats []model.Seat) string {
	names := make([]string, len(seats))
	for i, s := range seats {
		names[i] = s.DisplayName()
	}
	return strings.Join(names, ", ")
}

func printWarnings(stage string, ws []seating.Warning) {
	for _, w := range ws {
		fmt.Printf("[%s] %s: %s\n", stage, w.Kind(), w.Message())
	}
}
