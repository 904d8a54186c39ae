// Command audsync manages hearing scheduling and keeps each hearing
// mirrored as an event in the professional's external calendar.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	calendarapi "google.golang.org/api/calendar/v3"

	"github.com/adv-tools/audsync/internal/auth"
	"github.com/adv-tools/audsync/internal/calendarview"
	"github.com/adv-tools/audsync/internal/config"
	"github.com/adv-tools/audsync/internal/hearing"
	"github.com/adv-tools/audsync/internal/ics"
	"github.com/adv-tools/audsync/internal/remote"
	"github.com/adv-tools/audsync/internal/storage"
	syncer "github.com/adv-tools/audsync/internal/sync"
)

const revokeURL = "https://oauth2.googleapis.com/revoke"

func usage() {
	fmt.Fprintf(os.Stderr, `audsync - hearing scheduling and calendar synchronization

USAGE:
    %s COMMAND [OPTIONS]

COMMANDS:
    connect                   Authorize access to the external calendar
    disconnect                Revoke and erase the stored credential
    case                      Register a case in the lookup directory
    add                       Schedule a hearing
    edit                      Edit a hearing
    rm                        Delete a hearing (remote mirror removed best-effort)
    retry                     Re-sync a hearing that settled in failed/conflict
    month | week | day        Print a calendar view
    list                      Print all hearings grouped by date
    ics                       Write the agenda as an iCalendar feed
    serve                     Run the sync orchestrator until interrupted

Run '%s COMMAND -h' for command options.
`, os.Args[0], os.Args[0])
}

type app struct {
	cfg   *config.Config
	log   *slog.Logger
	loc   *time.Location
	db    *storage.DB
	store *storage.HearingStore
	creds *auth.Manager
	cases *storage.CaseDirectory
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cfg := config.Load()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))

	loc, err := cfg.Location()
	if err != nil {
		logger.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	db, err := storage.Open(cfg.DBPath)
	if err != nil {
		logger.Error("failed to open database", "path", cfg.DBPath, "err", err)
		os.Exit(1)
	}
	defer db.Close()

	a := &app{
		cfg:   cfg,
		log:   logger,
		loc:   loc,
		db:    db,
		store: storage.NewHearingStore(db),
		cases: storage.NewCaseDirectory(db),
		creds: auth.NewManager(&oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{calendarapi.CalendarEventsScope},
			Endpoint:     google.Endpoint,
		}, storage.NewCredentialStore(db), revokeURL),
	}

	if err := a.run(os.Args[1], os.Args[2:]); err != nil {
		logger.Error("command failed", "command", os.Args[1], "err", err)
		os.Exit(1)
	}
}

func (a *app) run(command string, args []string) error {
	switch command {
	case "connect":
		return a.connect()
	case "disconnect":
		return a.creds.Disconnect(context.Background())
	case "case":
		return a.caseAdd(args)
	case "add":
		return a.add(args)
	case "edit":
		return a.edit(args)
	case "rm":
		return a.remove(args)
	case "retry":
		return a.retry(args)
	case "month", "week", "day":
		return a.view(command, args)
	case "list":
		return a.list()
	case "ics":
		return a.exportICS(args)
	case "serve":
		return a.serve()
	case "-h", "--help", "help":
		usage()
		return nil
	default:
		usage()
		return fmt.Errorf("unknown command %q", command)
	}
}

// withOrchestrator wires the sync pipeline around fn and waits for every
// enqueued remote operation to settle before returning.
func (a *app) withOrchestrator(fn func(o *syncer.Orchestrator) error) error {
	ctx := context.Background()

	client, err := remote.NewClient(ctx, oauth2.NewClient(ctx, a.creds), a.creds, a.cases, a.loc)
	if err != nil {
		return err
	}

	o := syncer.New(a.store, client, a.log)
	a.store.Subscribe(o.HandleChange)
	defer o.Close()

	return fn(o)
}

func (a *app) connect() error {
	url, err := a.creds.AuthorizationURL("state-token")
	if err != nil {
		return err
	}

	fmt.Println("Visit the following URL to authorize calendar access:")
	fmt.Println(url)
	fmt.Print("Enter the authorization code: ")

	code, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return fmt.Errorf("failed to read authorization code: %w", err)
	}
	if err := a.creds.ExchangeCode(context.Background(), strings.TrimSpace(code)); err != nil {
		return err
	}
	fmt.Println("Connected.")
	return nil
}

func (a *app) caseAdd(args []string) error {
	fs := flag.NewFlagSet("case", flag.ExitOnError)
	id := fs.String("id", "", "case id")
	number := fs.String("number", "", "case number")
	title := fs.String("title", "", "case title")
	fs.Parse(args)

	if *id == "" || *number == "" {
		return fmt.Errorf("case requires -id and -number")
	}
	return a.cases.Put(context.Background(), *id, *number, *title)
}

func hearingFlags(fs *flag.FlagSet) *hearing.Draft {
	d := &hearing.Draft{}
	fs.StringVar(&d.CaseID, "case", "", "case id")
	fs.StringVar(&d.Date, "date", "", "date (YYYY-MM-DD)")
	fs.StringVar(&d.Time, "time", "", "time of day (HH:MM)")
	fs.StringVar(&d.Kind, "kind", "", "hearing type")
	fs.StringVar((*string)(&d.Mode), "mode", string(hearing.ModeInPerson), "in_person, virtual or hybrid")
	fs.StringVar(&d.Location, "location", "", "location")
	fs.StringVar(&d.Notes, "notes", "", "notes")
	fs.StringVar(&d.MeetingLink, "link", "", "meeting link")
	return d
}

func (a *app) add(args []string) error {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	d := hearingFlags(fs)
	fs.Parse(args)

	return a.withOrchestrator(func(*syncer.Orchestrator) error {
		h, err := a.store.Create(context.Background(), *d)
		if err != nil {
			return err
		}
		fmt.Printf("Scheduled hearing %s on %s %s\n", h.ID, h.Date, h.Time)
		return nil
	})
}

func (a *app) edit(args []string) error {
	fs := flag.NewFlagSet("edit", flag.ExitOnError)
	id := fs.String("id", "", "hearing id")
	d := hearingFlags(fs)
	fs.Parse(args)

	return a.withOrchestrator(func(*syncer.Orchestrator) error {
		h, err := a.store.Update(context.Background(), *id, *d)
		if err != nil {
			return err
		}
		fmt.Printf("Updated hearing %s (%s)\n", h.ID, h.SyncStatus)
		return nil
	})
}

func (a *app) remove(args []string) error {
	fs := flag.NewFlagSet("rm", flag.ExitOnError)
	id := fs.String("id", "", "hearing id")
	fs.Parse(args)

	return a.withOrchestrator(func(*syncer.Orchestrator) error {
		return a.store.Delete(context.Background(), *id)
	})
}

func (a *app) retry(args []string) error {
	fs := flag.NewFlagSet("retry", flag.ExitOnError)
	id := fs.String("id", "", "hearing id")
	fs.Parse(args)

	return a.withOrchestrator(func(o *syncer.Orchestrator) error {
		return o.Retry(context.Background(), *id)
	})
}

func (a *app) view(mode string, args []string) error {
	fs := flag.NewFlagSet(mode, flag.ExitOnError)
	dateFlag := fs.String("date", time.Now().Format(hearing.DateLayout), "reference date (YYYY-MM-DD)")
	fs.Parse(args)

	ref, err := time.Parse(hearing.DateLayout, *dateFlag)
	if err != nil {
		return fmt.Errorf("invalid -date: %w", err)
	}

	hearings, err := a.store.ListAll(context.Background())
	if err != nil {
		return err
	}

	switch mode {
	case "month":
		printMonth(calendarview.Month(hearings, ref))
	case "week":
		printWeek(calendarview.Week(hearings, ref))
	case "day":
		printDay(*dateFlag, calendarview.Day(hearings, ref))
	}
	return nil
}

func (a *app) list() error {
	hearings, err := a.store.ListAll(context.Background())
	if err != nil {
		return err
	}

	groups := calendarview.List(hearings)
	if len(groups) == 0 {
		fmt.Println("No hearings scheduled.")
		return nil
	}
	for _, g := range groups {
		fmt.Println(g.Date)
		for _, h := range g.Hearings {
			printHearing(h)
		}
	}
	return nil
}

func (a *app) exportICS(args []string) error {
	fs := flag.NewFlagSet("ics", flag.ExitOnError)
	out := fs.String("out", "agenda.ics", "output file")
	fs.Parse(args)

	hearings, err := a.store.ListAll(context.Background())
	if err != nil {
		return err
	}
	data, err := ics.Feed(hearings, a.loc)
	if err != nil {
		return err
	}
	if err := os.WriteFile(*out, data, 0644); err != nil {
		return fmt.Errorf("failed to write feed: %w", err)
	}
	fmt.Printf("Wrote %s\n", *out)
	return nil
}

// serve keeps the orchestrator running so edits made by other invocations
// (or a future UI) are synchronized as they happen.
func (a *app) serve() error {
	return a.withOrchestrator(func(o *syncer.Orchestrator) error {
		a.log.Info("sync orchestrator running", "db", a.cfg.DBPath)

		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
		<-stop

		a.log.Info("shutting down")
		return nil
	})
}

func printMonth(grid calendarview.MonthGrid) {
	fmt.Printf("%s %d\n", grid.Month, grid.Year)
	fmt.Println("Mon Tue Wed Thu Fri Sat Sun")
	for i, cell := range grid.Cells {
		if cell.Blank() {
			fmt.Print("    ")
		} else if len(cell.Hearings) > 0 {
			fmt.Printf("%2d* ", cell.Day)
		} else {
			fmt.Printf("%2d  ", cell.Day)
		}
		if (i+1)%7 == 0 {
			fmt.Println()
		}
	}
	for _, cell := range grid.Cells {
		for _, h := range cell.Visible {
			printHearing(h)
		}
		if cell.Overflow > 0 {
			fmt.Printf("    %s: +%d more\n", cell.Date, cell.Overflow)
		}
	}
}

func printWeek(cols [7]calendarview.DayColumn) {
	for _, col := range cols {
		fmt.Println(col.Date)
		if len(col.Hearings) == 0 {
			fmt.Println("    (no hearings)")
			continue
		}
		for _, h := range col.Hearings {
			printHearing(h)
		}
	}
}

func printDay(date string, hearings []hearing.Hearing) {
	fmt.Println(date)
	if len(hearings) == 0 {
		fmt.Println("    (no hearings)")
		return
	}
	for _, h := range hearings {
		printHearing(h)
	}
}

func printHearing(h hearing.Hearing) {
	fmt.Printf("    %s  %-24s [%s] %s\n", h.Time, h.Kind, h.SyncStatus, h.ID)
}
