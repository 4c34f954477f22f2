package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/klauspost/compress/gzip"
	"github.com/urfave/cli/v2"

	"network-monitor/internal/adapters/har"
	"network-monitor/internal/collection"
	"network-monitor/internal/domain"
)

type replayOptions struct {
	Filters []string
	URL     string
	Sort    string
	Desc    bool
}

func replayAction(cc *cli.Context) error {
	if cc.NArg() != 1 {
		return cli.Exit("replay needs exactly one HAR file", 2)
	}
	return replay(cc.App.Writer, cc.Args().First(), replayOptions{
		Filters: cc.StringSlice("filter"),
		URL:     cc.String("url"),
		Sort:    cc.String("sort"),
		Desc:    cc.Bool("desc"),
	})
}

func replay(w io.Writer, path string, opts replayOptions) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	var rd io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return fmt.Errorf("open %s: %w", path, err)
		}
		defer gz.Close()
		rd = gz
	}
	items, err := har.Import(rd)
	if err != nil {
		return fmt.Errorf("import %s: %w", path, err)
	}

	for _, name := range opts.Filters {
		if !collection.ValidFilter(name) {
			return fmt.Errorf("unknown filter %q", name)
		}
	}
	if opts.Sort != "" && !collection.ValidSortKey(opts.Sort) {
		return fmt.Errorf("unknown sort key %q", opts.Sort)
	}

	c := collection.New()
	c.WithBatch(func() {
		for _, d := range items {
			c.Add(d)
		}
	})
	if len(opts.Filters) > 0 {
		c.SetFilters(opts.Filters)
	}
	c.SetURLFilter(opts.URL)
	if opts.Sort != "" {
		c.SortBy(opts.Sort, opts.Desc)
	}

	view := c.Filtered()
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STATUS\tMETHOD\tFILE\tDOMAIN\tTYPE\tTRANSFERRED\tSIZE\tSTART\tTIME")
	for _, r := range view {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			field(r, domain.FieldStatus, strconv.Itoa(r.Status)),
			r.Method,
			domain.FileNameWithQuery(r.URL),
			domain.HostPort(r.URL),
			domain.AbbreviatedMimeType(r.MimeType),
			field(r, domain.FieldTransferredSize, humanBytes(r.TransferredSize)),
			field(r, domain.FieldContentSize, humanBytes(r.ContentSize)),
			field(r, domain.FieldStartedMillis, "+"+strconv.FormatInt(r.StartedDeltaMillis, 10)+"ms"),
			field(r, domain.FieldTotalTime, strconv.FormatInt(r.TotalTime, 10)+"ms"),
		)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	sum := c.Summarize()
	line := fmt.Sprintf("%d of %d requests, %s transferred", len(view), c.Len(), humanBytes(sum.Transferred))
	if sum.HasTimings {
		line += fmt.Sprintf(", finished in %dms", sum.Duration)
	}
	_, err = fmt.Fprintln(w, line)
	return err
}

func field(r *domain.Request, name, value string) string {
	if !r.Has(name) {
		return "-"
	}
	return value
}

func humanBytes(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	}
	return fmt.Sprintf("%d B", n)
}
