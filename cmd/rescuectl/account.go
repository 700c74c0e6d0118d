package main

import (
	"context"
	"flag"
	"fmt"
	"strings"

	qrcode "github.com/skip2/go-qrcode"

	"github.com/rescue-app/rescue/internal/api"
	"github.com/rescue-app/rescue/internal/media"
	"github.com/rescue-app/rescue/internal/profile"
)

func (a *cli) register(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return usageError("register <email> <password> [first] [last]")
	}
	req := &api.RegisterRequest{Email: args[0], Password: args[1]}
	if len(args) > 2 {
		req.FirstName = args[2]
	}
	if len(args) > 3 {
		req.LastName = strings.Join(args[3:], " ")
	}
	resp, err := a.c.Register(ctx, req)
	if err != nil {
		return err
	}
	return a.signedIn(resp)
}

func (a *cli) login(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return usageError("login <email> <password>")
	}
	resp, err := a.c.Login(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	return a.signedIn(resp)
}

func (a *cli) signedIn(resp *api.AuthResponse) error {
	if err := profile.SaveToken(a.profile, resp.Token); err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	if a.json {
		outputJSON(resp.User)
		return nil
	}
	fmt.Printf("Signed in as %s (%s)\n", resp.User.DisplayName(), resp.User.ID)
	return nil
}

func (a *cli) profileCmd(ctx context.Context, args []string) error {
	if len(args) > 0 {
		switch args[0] {
		case "set":
			return a.profileSet(ctx, args[1:])
		case "qr":
			return a.profileQR(ctx, args[1:])
		}
	}
	userID := ""
	if len(args) > 0 {
		userID = args[0]
	}
	p, err := a.c.Profile(ctx, userID)
	if err != nil {
		return err
	}
	a.printProfile(p)
	return nil
}

func (a *cli) printProfile(p *api.UserProfile) {
	if a.json {
		outputJSON(p)
		return
	}
	fmt.Printf("Name:      %s\n", p.DisplayName())
	fmt.Printf("ID:        %s\n", p.ID)
	fmt.Printf("Email:     %s\n", p.Email)
	if p.Phone != "" {
		fmt.Printf("Phone:     %s\n", p.Phone)
	}
	if p.Bio != "" {
		fmt.Printf("Bio:       %s\n", p.Bio)
	}
	fmt.Printf("Following: %d\n", len(p.Following))
}

func (a *cli) profileSet(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("profile set", flag.ContinueOnError)
	first := fs.String("first", "", "first name")
	last := fs.String("last", "", "last name")
	userName := fs.String("username", "", "display name")
	bio := fs.String("bio", "", "bio")
	phone := fs.String("phone", "", "phone number shown on posts")
	image := fs.String("image", "", "avatar object key (see upload-url)")
	cover := fs.String("cover", "", "cover image object key")
	if err := fs.Parse(args); err != nil {
		return err
	}

	me, err := a.c.Profile(ctx, "")
	if err != nil {
		return err
	}
	req := &api.UpdateProfileRequest{
		FirstName:  me.FirstName,
		LastName:   me.LastName,
		UserName:   me.UserName,
		Bio:        me.Bio,
		Phone:      me.Phone,
		Image:      me.Image,
		CoverImage: me.CoverImage,
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "first":
			req.FirstName = *first
		case "last":
			req.LastName = *last
		case "username":
			req.UserName = *userName
		case "bio":
			req.Bio = *bio
		case "phone":
			req.Phone = *phone
		case "image":
			req.Image = *image
		case "cover":
			req.CoverImage = *cover
		}
	})
	p, err := a.c.UpdateProfile(ctx, req)
	if err != nil {
		return err
	}
	a.printProfile(p)
	return nil
}

// profileQR prints a code others can scan to find this account.
func (a *cli) profileQR(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("profile qr", flag.ContinueOnError)
	png := fs.String("png", "", "write a PNG to this file instead of printing")
	size := fs.Int("size", 256, "PNG size in pixels")
	if err := fs.Parse(args); err != nil {
		return err
	}
	me, err := a.c.Profile(ctx, "")
	if err != nil {
		return err
	}
	content := "rescue://user/" + me.ID
	if *png != "" {
		return qrcode.WriteFile(content, qrcode.Medium, *size, *png)
	}
	qr, err := qrcode.New(content, qrcode.Low)
	if err != nil {
		return err
	}
	fmt.Print(qr.ToSmallString(false))
	fmt.Println(content)
	return nil
}

func (a *cli) follow(ctx context.Context, verb string, args []string) error {
	if len(args) != 1 {
		return usageError(verb + " <user-id>")
	}
	var err error
	if verb == "follow" {
		err = a.c.Follow(ctx, args[0])
	} else {
		err = a.c.Unfollow(ctx, args[0])
	}
	if err != nil {
		return err
	}
	fmt.Printf("%sed %s\n", verb, args[0])
	return nil
}

func (a *cli) device(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usageError("device <push-token>")
	}
	if err := a.c.RegisterDevice(ctx, args[0]); err != nil {
		return err
	}
	fmt.Println("Device registered")
	return nil
}

func (a *cli) uploadURL(ctx context.Context, args []string) error {
	if len(args) != 3 {
		return usageError("upload-url <posts|avatars|covers> <file> <content-type>")
	}
	up, err := a.c.UploadURL(ctx, media.Purpose(args[0]), args[1], args[2])
	if err != nil {
		return err
	}
	if a.json {
		outputJSON(up)
		return nil
	}
	fmt.Printf("PUT %s\n", up.URL)
	fmt.Printf("Key:     %s\n", up.Key)
	fmt.Printf("Expires: %s\n", up.ExpiresAt.Local().Format("15:04:05"))
	return nil
}
