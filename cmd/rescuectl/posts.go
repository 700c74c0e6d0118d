package main

import (
	"context"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/rescue-app/rescue/internal/api"
	"github.com/rescue-app/rescue/internal/feed"
)

type imageList []string

func (l *imageList) String() string     { return strings.Join(*l, ",") }
func (l *imageList) Set(v string) error { *l = append(*l, v); return nil }

func (a *cli) post(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("post <create|get|status|delete|report> ...")
	}
	switch args[0] {
	case "create":
		return a.postCreate(ctx, args[1:])
	case "get":
		if len(args) != 2 {
			return usageError("post get <id>")
		}
		p, err := a.c.GetPost(ctx, args[1])
		if err != nil {
			return err
		}
		a.printPost(p)
		return nil
	case "status":
		if len(args) != 3 {
			return usageError("post status <id> <waiting|rescued|wasted>")
		}
		p, err := a.c.UpdateStatus(ctx, args[1], args[2])
		if err != nil {
			return err
		}
		a.printPost(p)
		return nil
	case "delete":
		if len(args) != 2 {
			return usageError("post delete <id>")
		}
		if err := a.c.DeletePost(ctx, args[1]); err != nil {
			return err
		}
		fmt.Println("Deleted", args[1])
		return nil
	case "report":
		if len(args) < 3 {
			return usageError("post report <id> <reason>")
		}
		if err := a.c.ReportPost(ctx, args[1], strings.Join(args[2:], " ")); err != nil {
			return err
		}
		fmt.Println("Reported", args[1])
		return nil
	}
	return fmt.Errorf("unknown post subcommand: %s", args[0])
}

func (a *cli) postCreate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("post create", flag.ContinueOnError)
	category := fs.String("category", "other", "one of "+strings.Join(feed.Categories, ", "))
	lat := fs.Float64("lat", 0, "latitude of the pickup point")
	lon := fs.Float64("lon", 0, "longitude of the pickup point")
	phone := fs.String("phone", "", "contact phone")
	deliveryRange := fs.Float64("range", 0, "delivery range in km, 0 for pickup only")
	var images imageList
	fs.Var(&images, "image", "uploaded image key, repeatable")
	if err := fs.Parse(args); err != nil {
		return err
	}
	body := strings.Join(fs.Args(), " ")
	if body == "" {
		return usageError("post create [--category c] [--lat x --lon y] <text>")
	}
	p, err := a.c.CreatePost(ctx, &api.CreatePostRequest{
		Body:          body,
		Category:      *category,
		Latitude:      *lat,
		Longitude:     *lon,
		DeliveryRange: *deliveryRange,
		Phone:         *phone,
		Images:        images,
	})
	if err != nil {
		return err
	}
	a.printPost(p)
	return nil
}

func (a *cli) printPost(p *feed.Post) {
	if a.json {
		outputJSON(p)
		return
	}
	fmt.Printf("ID:       %s\n", p.ID)
	fmt.Printf("Author:   %s (%s)\n", p.UserName, p.UserID)
	fmt.Printf("Category: %s\n", p.Category)
	fmt.Printf("Status:   %s\n", p.Status)
	if p.Latitude != 0 || p.Longitude != 0 {
		fmt.Printf("Where:    %.5f, %.5f\n", p.Latitude, p.Longitude)
	}
	if p.Phone != "" {
		fmt.Printf("Phone:    %s\n", p.Phone)
	}
	for _, img := range p.Images {
		fmt.Printf("Image:    %s\n", img)
	}
	fmt.Printf("Posted:   %s\n", time.UnixMilli(p.CreatedAt).Format(time.DateTime))
	fmt.Printf("\n%s\n", p.Body)
}
