package main

import (
	"context"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/rescue-app/rescue/internal/feed"
	"github.com/rescue-app/rescue/internal/geo"
)

// feed pages through posts the same way the TUI does, without the controller.
func (a *cli) feed(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("feed", flag.ContinueOnError)
	modeFlag := fs.String("mode", string(feed.ForYou), "for_you or following")
	lat := fs.Float64("lat", 0, "your latitude")
	lon := fs.Float64("lon", 0, "your longitude")
	radius := fs.Float64("radius", feed.DefaultRadiusKm, "search radius in km")
	cats := fs.String("cat", "", "comma-separated categories")
	cursor := fs.String("cursor", "", "continue after this cursor")
	pages := fs.Int("pages", 1, "pages to fetch, 0 for all")
	if err := fs.Parse(args); err != nil {
		return err
	}

	mode, err := feed.ParseMode(*modeFlag)
	if err != nil {
		return err
	}
	filter := feed.Filter{Mode: mode, RadiusKm: *radius, FirstFetch: *cursor == ""}
	if *lat != 0 || *lon != 0 {
		filter.Position = &geo.Point{Lat: *lat, Lon: *lon}
	}
	if *cats != "" {
		filter.Categories = strings.Split(*cats, ",")
	}
	if mode == feed.ForYou && filter.Position == nil {
		return usageError("feed --mode for_you needs --lat and --lon")
	}

	q := a.c.Feed()
	next := feed.Cursor(*cursor)
	var all []feed.Post
	for n := 0; *pages == 0 || n < *pages; n++ {
		page, err := q.Fetch(ctx, filter, next)
		if err != nil {
			return err
		}
		filter.FirstFetch = false
		all = append(all, page.Posts...)
		next = page.Next
		if next == "" {
			break
		}
	}

	if a.json {
		outputJSON(struct {
			Posts []feed.Post `json:"posts"`
			Next  feed.Cursor `json:"next,omitempty"`
		}{all, next})
		return nil
	}
	if len(all) == 0 {
		fmt.Println("No posts.")
		return nil
	}
	for _, p := range all {
		dist := ""
		if filter.Position != nil {
			dist = fmt.Sprintf("%.1fkm", geo.DistanceKm(*filter.Position, geo.Point{Lat: p.Latitude, Lon: p.Longitude}))
		}
		fmt.Printf("%-36s %-16s %-9s %-8s %7s %s  %s\n",
			p.ID, p.UserName, p.Category, p.Status, dist,
			time.UnixMilli(p.CreatedAt).Format("01/02 15:04"), firstLine(p.Body))
	}
	if next != "" {
		fmt.Printf("\nmore: --cursor %s\n", next)
	}
	return nil
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
