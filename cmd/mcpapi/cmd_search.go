package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Really-Cool/mcpapi/internal/scroll"
	"github.com/Really-Cool/mcpapi/internal/searchclient"
	"github.com/Really-Cool/mcpapi/pkg/models"
)

// resultsEnd is the sentinel placed after the last printed result.
const resultsEnd scroll.Sentinel = "results-end"

func runSearch(args []string) {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "mcpapi server base URL")
	pageSize := fs.Int("page-size", searchclient.DefaultPageSize, "results per page")
	rows := fs.Int("rows", 24, "terminal rows treated as the viewport")
	all := fs.Bool("all", false, "scroll without waiting for Enter until every result is shown")
	timeout := fs.Duration("timeout", time.Minute, "overall timeout")
	verbose := fs.Bool("v", false, "log client activity to stderr")
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	query := strings.Join(fs.Args(), " ")
	if strings.TrimSpace(query) == "" {
		fmt.Fprintln(os.Stderr, "usage: mcpapi search [flags] <query>")
		os.Exit(2)
	}

	logger := zap.NewNop()
	if *verbose {
		l, err := newLogger("debug", true)
		if err != nil {
			fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
			os.Exit(1)
		}
		logger = l
		defer logger.Sync()
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	var in io.Reader = os.Stdin
	if *all {
		in = nil
	}
	s := &searchSession{
		out:    os.Stdout,
		in:     in,
		rows:   *rows,
		logger: logger,
		api:    searchclient.NewClient(*serverURL, nil),
	}
	if err := s.run(ctx, query, *pageSize); err != nil {
		fmt.Fprintf(os.Stderr, "search failed: %v\n", err)
		os.Exit(1)
	}
}

// searchSession prints results to a terminal and pages through them as the
// viewport scrolls past the end of the list.
type searchSession struct {
	out    io.Writer
	in     io.Reader // nil scrolls automatically
	rows   int
	logger *zap.Logger
	api    searchclient.API

	printed int
	loadErr error
}

func (s *searchSession) run(ctx context.Context, query string, pageSize int) error {
	orch := searchclient.NewOrchestrator(s.api, s.logger.Named("search"), searchclient.WithPageSize(pageSize))
	if err := orch.Search(ctx, query); err != nil {
		return err
	}
	st := orch.State()
	s.printHeader(query, st)
	s.printNew(st.Results)

	load := func(ctx context.Context) error {
		err := orch.LoadMore(ctx)
		s.loadErr = err
		return err
	}
	rows := max(s.rows, 1)
	margin := float64(rows / 2)
	observer := scroll.NewManualObserver()
	trig := scroll.NewTrigger(observer, load, st.HasMore, scroll.Options{
		Threshold: scroll.DefaultThreshold,
		Margin:    margin,
	}, s.logger.Named("scroll"))
	trig.Attach(resultsEnd)
	defer trig.Detach()

	var scanner *bufio.Scanner
	if s.in != nil {
		scanner = bufio.NewScanner(s.in)
	}
	top := 0
	for {
		observer.Emit(sentinelRatio(s.printed, top, rows, margin))
		if s.loadErr != nil {
			return s.loadErr
		}
		st = orch.State()
		s.printNew(st.Results)
		trig.SetHasMore(st.HasMore)
		if !trig.HasMore() {
			break
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if scanner != nil {
			fmt.Fprint(s.out, "-- more (Enter to scroll, Ctrl-D to stop) --")
			if !scanner.Scan() {
				fmt.Fprintln(s.out)
				return nil
			}
		}
		top = min(top+rows, s.printed)
	}
	fmt.Fprintf(s.out, "-- %d of %d shown --\n", s.printed, st.Total)
	return nil
}

// sentinelRatio returns how much of the one-row sentinel after the last
// printed result is inside a viewport starting at row top.
func sentinelRatio(printed, top, rows int, margin float64) float64 {
	line := float64(printed - top)
	return scroll.Intersect(
		scroll.Rect{Top: line, Bottom: line + 1, Right: 1},
		scroll.Rect{Top: 0, Bottom: float64(rows), Right: 1},
		margin,
	)
}

func (s *searchSession) printHeader(query string, st searchclient.State) {
	fmt.Fprintf(s.out, "%d MCP servers for %q\n", st.Total, query)
	if len(st.Recommendations) > 0 {
		fmt.Fprintln(s.out, "\nRecommended:")
		for _, l := range st.Recommendations {
			fmt.Fprintf(s.out, "  * %s (%s)\n", l.Title, l.PackageName)
		}
		if st.Explanation != "" {
			fmt.Fprintf(s.out, "  %s\n", st.Explanation)
		}
	}
	fmt.Fprintln(s.out)
}

func (s *searchSession) printNew(results []models.Listing) {
	for _, l := range results[min(s.printed, len(results)):] {
		fmt.Fprintf(s.out, "%-28s %s\n", l.Title, l.Description)
	}
	s.printed = max(s.printed, len(results))
}
