// Package tui is the terminal client: a feed of nearby food, post details,
// chats and the signed-in profile, all served by the daemon.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"go.uber.org/zap"

	"github.com/rescue-app/rescue/internal/api"
	"github.com/rescue-app/rescue/internal/chat"
	"github.com/rescue-app/rescue/internal/client"
	"github.com/rescue-app/rescue/internal/config"
	"github.com/rescue-app/rescue/internal/feed"
	"github.com/rescue-app/rescue/internal/geo"
	"github.com/rescue-app/rescue/internal/logging"
	"github.com/rescue-app/rescue/internal/tui/keys"
	"github.com/rescue-app/rescue/internal/tui/model"
	"github.com/rescue-app/rescue/internal/tui/ui"
	"github.com/rescue-app/rescue/internal/tui/views"
)

const (
	pageLogin   = "login"
	pageFeed    = "feed"
	pagePost    = "post"
	pageChats   = "chats"
	pageThread  = "thread"
	pageProfile = "profile"
	pageHelp    = "help"

	requestTimeout = 15 * time.Second
	chatsInterval  = 10 * time.Second
)

// Options configures the TUI.
type Options struct {
	Profile string
	Client  *client.Client
	Config  *config.Config
	Logger  *zap.Logger
	// SaveToken persists the token after login; ForgetToken removes it.
	SaveToken   func(token string) error
	ForgetToken func() error
}

// App is the main TUI application shell.
type App struct {
	app      *tview.Application
	opts     Options
	c        *client.Client
	log      *zap.Logger
	theme    *ui.Theme
	registry *keys.Registry
	pages    *ui.Pages
	root     *tview.Flex
	flash    *ui.FlashModel
	locator  model.StaticLocator
	vm       *model.ViewModel

	info      *ui.ProfileInfo
	menu      *ui.Menu
	prompt    *ui.Prompt
	crumbs    *ui.Crumbs
	flashBar  *ui.FlashBar
	statusBar *views.StatusBar

	login     *views.LoginView
	feedList  *views.FeedList
	detail    *views.PostDetail
	chats     *views.ConversationList
	thread    *views.MessageThread
	profile   *views.ProfileView
	help      *views.HelpView
	startedAt time.Time

	ctx    context.Context
	cancel context.CancelFunc
}

func NewApp(opts Options) *App {
	if opts.Config == nil {
		opts.Config = config.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	theme := ui.DefaultTheme()
	a := &App{
		app:       tview.NewApplication(),
		opts:      opts,
		c:         opts.Client,
		log:       logging.OrNop(opts.Logger).Named("tui"),
		theme:     theme,
		registry:  keys.NewRegistry(),
		pages:     ui.NewPages(),
		flash:     ui.NewFlashModel(),
		info:      ui.NewProfileInfo(theme),
		menu:      ui.NewMenu(theme),
		prompt:    ui.NewPrompt(theme),
		crumbs:    ui.NewCrumbs(theme),
		flashBar:  ui.NewFlashBar(theme),
		statusBar: views.NewStatusBar(),
		login:     views.NewLoginView(theme),
		feedList:  views.NewFeedList(theme),
		detail:    views.NewPostDetail(theme),
		chats:     views.NewConversationList(theme),
		thread:    views.NewMessageThread(theme),
		profile:   views.NewProfileView(theme),
		help:      views.NewHelpView(theme),
		ctx:       ctx,
		cancel:    cancel,
	}
	if fc := opts.Config.Feed; fc.Latitude != 0 || fc.Longitude != 0 {
		a.locator.Point = &geo.Point{Lat: fc.Latitude, Lon: fc.Longitude}
	}

	a.statusBar.SetProfile(opts.Profile)
	a.setupPages()
	a.setupBindings()
	a.setupCallbacks()
	a.setupLayout()
	return a
}

func (a *App) setupPages() {
	a.pages.Add(pageLogin, a.login)
	a.pages.Add(pageFeed, a.feedList)
	a.pages.Add(pagePost, a.detail)
	a.pages.Add(pageChats, a.chats)
	a.pages.Add(pageThread, a.thread)
	a.pages.Add(pageProfile, a.profile)
	a.pages.Add(pageHelp, a.help)
	a.pages.SetOnChange(func(top ui.Component) {
		a.menu.Update(a.registry.Hints(a.pages.Current()))
		a.crumbs.Update(a.pages.Titles())
		a.app.SetFocus(top)
		// Back at a root page: the conversation is no longer stacked.
		if len(a.pages.Titles()) == 1 && a.vm != nil {
			a.vm.CloseChat()
		}
	})
}

func runeKey(r rune, desc string, fn func()) *keys.Action {
	return &keys.Action{Key: tcell.KeyRune, Rune: r, Description: desc, Handler: fn}
}

func (a *App) setupBindings() {
	r := a.registry
	r.AddGlobal(runeKey(':', "Command", func() { a.showPrompt(ui.PromptCommand) }))
	r.AddGlobal(runeKey('n', "Share food", func() { a.showPrompt(ui.PromptPost) }))
	r.AddGlobal(runeKey('1', "Feed", func() { a.pages.Reset(pageFeed) }))
	r.AddGlobal(runeKey('2', "Chats", a.openChats))
	r.AddGlobal(runeKey('p', "Profile", a.openProfile))
	r.AddGlobal(runeKey('?', "Help", a.openHelp))
	r.AddGlobal(runeKey('q', "Quit", a.Stop))
	r.AddGlobal(&keys.Action{Key: tcell.KeyEscape, Description: "Back", Handler: a.back, Hidden: true})

	r.AddView(pageFeed, &keys.Action{Key: tcell.KeyEnter, Description: "Open", Handler: a.openSelectedPost})
	r.AddView(pageFeed, runeKey('r', "Refresh", a.refreshFeed))
	r.AddView(pageFeed, runeKey('m', "Mode", a.toggleMode))
	r.AddView(pageFeed, runeKey('c', "Chat", a.chatWithAuthor))
	r.AddView(pageFeed, runeKey('f', "Follow", a.toggleFollow))

	r.AddView(pagePost, runeKey('c', "Chat", a.chatWithAuthor))
	r.AddView(pagePost, runeKey('f', "Follow", a.toggleFollow))

	r.AddView(pageChats, &keys.Action{Key: tcell.KeyEnter, Description: "Open", Handler: a.openSelectedChat})
	r.AddView(pageChats, runeKey('/', "Filter", func() { a.showPrompt(ui.PromptFilter) }))
	r.AddView(pageChats, runeKey('r', "Reload", a.loadChats))

	r.AddView(pageThread, runeKey('i', "Write", func() { a.app.SetFocus(a.thread.Composer()) }))
}

func (a *App) setupCallbacks() {
	a.login.SetOnLogin(func(cr views.Credentials) {
		a.signIn("login", func(ctx context.Context) (*api.AuthResponse, error) {
			return a.c.Login(ctx, cr.Email, cr.Password)
		})
	})
	a.login.SetOnRegister(func(cr views.Credentials) {
		a.signIn("register", func(ctx context.Context) (*api.AuthResponse, error) {
			return a.c.Register(ctx, &api.RegisterRequest{
				Email:     cr.Email,
				Password:  cr.Password,
				FirstName: cr.FirstName,
				LastName:  cr.LastName,
			})
		})
	})

	a.feedList.SetDistanceFunc(func(p feed.Post) float64 {
		if a.vm == nil {
			return -1
		}
		return a.vm.DistanceKm(p)
	})
	a.feedList.SetOnEndReached(func() {
		a.do("load more", func(ctx context.Context) error {
			return a.vm.Feed.OnScrollEndReached(ctx)
		})
	})

	a.thread.SetOnSend(func(text string) {
		a.do("send", func(ctx context.Context) error {
			return a.vm.Send(ctx, text)
		})
	})
	a.thread.SetOnEscape(func() { a.app.SetFocus(a.thread.Messages()) })

	a.prompt.SetOnSubmit(func(mode ui.PromptMode, text string) {
		a.hidePrompt()
		switch mode {
		case ui.PromptCommand:
			a.runCommand(ParseCommand(text))
		case ui.PromptFilter:
			a.chats.SetFilter(text)
		case ui.PromptPost:
			a.createPost(text)
		}
	})
	a.prompt.SetOnCancel(func() {
		if a.prompt.Mode() == ui.PromptFilter {
			a.chats.ClearFilter()
		}
		a.hidePrompt()
	})
}

func (a *App) setupLayout() {
	header := tview.NewFlex().
		AddItem(ui.NewLogo(a.theme), 22, 0, false).
		AddItem(a.info, 0, 1, false).
		AddItem(a.menu, 0, 2, false)

	footer := tview.NewFlex().
		AddItem(a.crumbs, 0, 1, false).
		AddItem(a.flashBar, 0, 2, false).
		AddItem(a.statusBar, 30, 0, false)

	a.root = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(header, 7, 0, false).
		AddItem(a.pages, 0, 1, true).
		AddItem(a.prompt, 0, 0, false).
		AddItem(footer, 1, 0, false)

	a.app.SetRoot(a.root, true)
	a.app.SetInputCapture(a.handleKey)
}

func (a *App) handleKey(ev *tcell.EventKey) *tcell.EventKey {
	page := a.pages.Current()
	// The login form owns every key.
	if page == pageLogin || page == "" {
		return ev
	}
	// Let text input widgets handle all keys normally.
	switch a.app.GetFocus().(type) {
	case *tview.InputField:
		return ev
	}
	if a.registry.HandleEvent(page, ev) {
		return nil
	}
	return ev
}

// Run starts the TUI and blocks until it exits.
func (a *App) Run() error {
	a.pages.Reset(pageLogin)
	go a.bootstrap()
	go a.tick()
	return a.app.Run()
}

// Stop shuts down the TUI.
func (a *App) Stop() {
	a.cancel()
	if a.vm != nil {
		a.vm.Close()
	}
	a.app.Stop()
}

// bootstrap signs in with the saved token, if any.
func (a *App) bootstrap() {
	ctx, cancel := context.WithTimeout(a.ctx, requestTimeout)
	defer cancel()

	if ping, err := a.c.Ping(ctx); err == nil {
		a.app.QueueUpdate(func() { a.startedAt = ping.StartedAt })
		a.setStatus("connected")
	} else {
		a.setStatus("offline")
		a.flash.Err("daemon", err)
	}

	if a.c.Token() == "" {
		a.draw()
		return
	}
	me, err := a.c.Profile(ctx, "")
	if err != nil {
		a.c.SetToken("")
		a.flash.Warn("Session expired, please sign in again")
		a.draw()
		return
	}
	a.app.QueueUpdateDraw(func() { a.signedIn(me) })
}

func (a *App) signIn(what string, call func(context.Context) (*api.AuthResponse, error)) {
	go func() {
		ctx, cancel := context.WithTimeout(a.ctx, requestTimeout)
		defer cancel()
		resp, err := call(ctx)
		if err != nil {
			a.flash.Err(what, err)
			a.app.QueueUpdateDraw(func() {
				a.login.ClearPassword()
				a.render()
			})
			return
		}
		if a.opts.SaveToken != nil {
			if err := a.opts.SaveToken(resp.Token); err != nil {
				a.log.Warn("could not save token", zap.Error(err))
			}
		}
		me := resp.User
		a.app.QueueUpdateDraw(func() { a.signedIn(&me) })
	}()
}

// signedIn builds the view model for me and shows the feed. Runs on the UI
// goroutine.
func (a *App) signedIn(me *api.UserProfile) {
	if a.vm != nil {
		a.vm.Close()
	}
	cfg := a.opts.Config
	a.vm = model.New(model.Deps{
		Daemon:       a.c,
		Feed:         a.c.Feed(),
		Chat:         a.c.Chat(),
		Rooms:        a.c.Rooms(),
		Me:           me,
		RadiusKm:     cfg.Feed.RadiusKm,
		NoPostsDelay: cfg.Feed.NoPostsDelay.Duration,
		Logger:       a.log,
		OnChange:     a.draw,
		OnNotice:     a.flash.Info,
	})
	a.vm.Start(a.ctx)
	a.profile.Update(me)
	a.flash.Info("Signed in as " + me.DisplayName())
	a.pages.Reset(pageFeed)

	a.do("location", func(ctx context.Context) error {
		err := a.vm.Feed.RequestLocation(ctx, a.locator)
		if errors.Is(err, feed.ErrPermissionDenied) {
			a.flash.Warn("No location set: use :where <lat>,<lon> or :following")
			return nil
		}
		return err
	})
	a.loadChats()
}

func (a *App) signOut() {
	if a.opts.ForgetToken != nil {
		if err := a.opts.ForgetToken(); err != nil {
			a.flash.Err("logout", err)
		}
	}
	a.c.SetToken("")
	if a.vm != nil {
		a.vm.Close()
		a.vm = nil
	}
	a.pages.Reset(pageLogin)
	a.render()
}

// do runs fn off the UI goroutine and reports its error as a flash.
func (a *App) do(what string, fn func(ctx context.Context) error) {
	if a.vm == nil {
		return
	}
	a.statusBar.SetBusy(true)
	go func() {
		ctx, cancel := context.WithTimeout(a.ctx, requestTimeout)
		defer cancel()
		err := fn(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			a.log.Debug("action failed", zap.String("action", what), zap.Error(err))
			a.flash.Err(what, err)
		}
		a.app.QueueUpdateDraw(func() {
			a.statusBar.SetBusy(false)
			a.render()
		})
	}()
}

// draw schedules a render from any goroutine.
func (a *App) draw() {
	a.app.QueueUpdateDraw(a.render)
}

// render copies view model state into the views. Runs on the UI goroutine.
func (a *App) render() {
	a.flashBar.Update(a.flash.Current())
	if a.vm == nil {
		return
	}
	st := a.vm.Feed.State()
	a.feedList.Update(st)
	a.chats.Update(a.vm.Chats())
	if a.pages.Current() == pageThread {
		a.thread.Update(a.vm.Messages())
	}
	if a.pages.Current() == pagePost {
		p := a.detail.Post()
		a.detail.Update(p, a.vm.DistanceKm(p), p.UserID == a.vm.Me().ID, a.vm.IsFollowing(p.UserID))
	}

	loc := ""
	if st.Position != nil {
		loc = fmt.Sprintf("%.4f, %.4f", st.Position.Lat, st.Position.Lon)
	} else if st.PermissionDenied {
		loc = "unavailable"
	}
	var uptime time.Duration
	if !a.startedAt.IsZero() {
		uptime = time.Since(a.startedAt)
	}
	a.info.Update(ui.ProfileData{
		Profile:  a.opts.Profile,
		User:     a.vm.Me().DisplayName(),
		Mode:     string(st.Mode),
		RadiusKm: st.RadiusKm,
		Location: loc,
		Chats:    len(a.vm.Chats()),
		Uptime:   uptime,
	})
}

// tick expires flash messages and keeps the chat list fresh.
func (a *App) tick() {
	flashT := time.NewTicker(time.Second)
	chatsT := time.NewTicker(chatsInterval)
	defer flashT.Stop()
	defer chatsT.Stop()
	for {
		select {
		case <-flashT.C:
			a.app.QueueUpdateDraw(func() {
				a.flashBar.Update(a.flash.Current())
			})
		case <-chatsT.C:
			a.app.QueueUpdate(a.loadChats)
		case <-a.ctx.Done():
			return
		}
	}
}

func (a *App) setStatus(s string) {
	a.app.QueueUpdateDraw(func() { a.statusBar.SetStatus(s) })
}

func (a *App) showPrompt(mode ui.PromptMode) {
	if mode == ui.PromptFilter && a.pages.Current() != pageChats {
		return
	}
	a.prompt.Activate(mode)
	a.root.ResizeItem(a.prompt, 3, 0)
	a.app.SetFocus(a.prompt)
}

func (a *App) hidePrompt() {
	a.root.ResizeItem(a.prompt, 0, 0)
	if top := a.pages.Component(a.pages.Current()); top != nil {
		a.app.SetFocus(top)
	}
}

func (a *App) back() {
	if a.pages.Pop() == "" && a.pages.Current() == pageChats {
		a.chats.ClearFilter()
	}
}

func (a *App) openHelp() {
	a.help.Update([]views.HelpSection{
		{Title: "Keys", Hints: a.registry.Hints("")},
		{Title: "Feed", Hints: a.registry.Hints(pageFeed)},
		{Title: "Post", Hints: a.registry.Hints(pagePost)},
		{Title: "Chats", Hints: a.registry.Hints(pageChats)},
		{Title: "Chat", Hints: append(a.registry.Hints(pageThread), ui.MenuHint{Key: "Esc", Description: "Leave the message box"})},
		{Title: "Commands", Hints: commandHelp},
	})
	a.pages.Push(pageHelp)
}

func (a *App) openProfile() {
	if a.vm == nil {
		return
	}
	a.profile.Update(a.vm.Me())
	a.pages.Push(pageProfile)
}

func (a *App) openChats() {
	a.pages.Reset(pageChats)
	a.loadChats()
}

func (a *App) loadChats() {
	vm := a.vm
	a.do("chats", func(ctx context.Context) error {
		return vm.LoadChats(ctx)
	})
}

func (a *App) refreshFeed() {
	a.do("refresh", func(ctx context.Context) error {
		st := a.vm.Feed.State()
		if st.Mode == feed.ForYou && st.Position == nil {
			return a.vm.Feed.RequestLocation(ctx, a.locator)
		}
		return a.vm.Feed.OnPullToRefresh(ctx)
	})
}

func (a *App) setMode(mode feed.Mode, opts ...feed.Option) {
	a.pages.Reset(pageFeed)
	a.do("feed", func(ctx context.Context) error {
		return a.vm.Feed.SetMode(ctx, mode, opts...)
	})
}

func (a *App) toggleMode() {
	if a.vm.Feed.State().Mode == feed.ForYou {
		a.setMode(feed.Following)
	} else {
		a.setMode(feed.ForYou)
	}
}

func (a *App) openSelectedPost() {
	p, ok := a.feedList.Selected()
	if !ok {
		return
	}
	a.detail.Update(p, a.vm.DistanceKm(p), p.UserID == a.vm.Me().ID, a.vm.IsFollowing(p.UserID))
	a.pages.Push(pagePost)
}

// targetPost is the post a command applies to: the open post, or the one
// selected in the feed.
func (a *App) targetPost() (feed.Post, bool) {
	switch a.pages.Current() {
	case pagePost:
		return a.detail.Post(), true
	case pageFeed:
		return a.feedList.Selected()
	}
	return feed.Post{}, false
}

func (a *App) chatWithAuthor() {
	p, ok := a.targetPost()
	if !ok {
		a.flash.Warn("Select a post first")
		return
	}
	a.openChat(p.UserID, p.UserName)
}

func (a *App) openSelectedChat() {
	ptr, ok := a.chats.Selected()
	if !ok {
		return
	}
	a.openChat(ptr.PeerID, ptr.Receiver)
}

func (a *App) openChat(peerID, name string) {
	if a.vm == nil {
		return
	}
	if peerID == a.vm.Me().ID {
		a.flash.Warn("That is you")
		return
	}
	a.thread.SetPeer(a.vm.Me().ID, peerID, name)
	a.pages.Push(pageThread)
	a.do("chat", func(ctx context.Context) error {
		if _, err := a.vm.OpenChat(ctx, peerID); err != nil {
			if errors.Is(err, chat.ErrClosed) {
				// Left the thread before the room resolved.
				return nil
			}
			return err
		}
		if peer, ok := a.vm.Peer(); ok {
			a.app.QueueUpdate(func() { a.thread.SetPeer(a.vm.Me().ID, peerID, peer.Name) })
		}
		return nil
	})
}

func (a *App) toggleFollow() {
	p, ok := a.targetPost()
	if !ok {
		return
	}
	a.do("follow", func(ctx context.Context) error {
		now, err := a.vm.ToggleFollow(ctx, p.UserID)
		if err != nil {
			return err
		}
		if now {
			a.flash.Info("Following " + p.UserName)
		} else {
			a.flash.Info("Unfollowed " + p.UserName)
		}
		return nil
	})
}

func (a *App) createPost(text string) {
	a.do("post", func(ctx context.Context) error {
		p, err := a.vm.CreatePost(ctx, text)
		if err != nil {
			return err
		}
		a.flash.Info("Shared " + p.Category)
		return nil
	})
}

func (a *App) withPost(what string, fn func(ctx context.Context, p feed.Post) error) {
	p, ok := a.targetPost()
	if !ok {
		a.flash.Warn("Select a post first")
		a.render()
		return
	}
	a.do(what, func(ctx context.Context) error { return fn(ctx, p) })
}

func (a *App) runCommand(cmd Command) {
	if a.vm == nil {
		if cmd.Name == "quit" {
			a.Stop()
		}
		return
	}
	switch cmd.Name {
	case "foryou":
		a.setMode(feed.ForYou)
	case "following":
		a.setMode(feed.Following)
	case "radius":
		km, err := strconv.ParseFloat(cmd.Args, 64)
		if err != nil || km <= 0 {
			a.flash.Warn("Usage: :radius <km>")
			break
		}
		a.setMode(feed.ForYou, feed.WithRadius(km))
	case "cat":
		cats := cmd.Fields()
		for _, c := range cats {
			if !feed.ValidCategory(c) {
				a.flash.Warn(fmt.Sprintf("Unknown category %q, want one of %v", c, feed.Categories))
				a.render()
				return
			}
		}
		a.setMode(feed.ForYou, feed.WithCategories(cats...))
	case "where":
		pt, err := model.ParsePoint(cmd.Args)
		if err != nil {
			a.flash.Err("where", err)
			break
		}
		a.locator.Point = &pt
		a.do("location", func(ctx context.Context) error { return a.vm.Feed.SetPosition(ctx, pt) })
	case "post":
		a.createPost(cmd.Args)
	case "status":
		a.withPost("status", func(ctx context.Context, p feed.Post) error {
			return a.vm.SetStatus(ctx, p.ID, cmd.Args)
		})
	case "delete":
		a.withPost("delete", func(ctx context.Context, p feed.Post) error {
			if err := a.vm.DeletePost(ctx, p.ID); err != nil {
				return err
			}
			a.app.QueueUpdate(func() { a.pages.Reset(pageFeed) })
			return nil
		})
	case "report":
		a.withPost("report", func(ctx context.Context, p feed.Post) error {
			if err := a.vm.Report(ctx, p.ID, cmd.Args); err != nil {
				return err
			}
			a.flash.Info("Reported, thank you")
			return nil
		})
	case "follow", "unfollow":
		p, ok := a.targetPost()
		if !ok {
			a.flash.Warn("Select a post first")
			break
		}
		if a.vm.IsFollowing(p.UserID) == (cmd.Name == "unfollow") {
			a.toggleFollow()
		}
	case "chat":
		if cmd.Args != "" {
			a.openChat(cmd.Args, "")
		} else {
			a.chatWithAuthor()
		}
	case "chats":
		a.openChats()
	case "profile":
		a.openProfile()
	case "help":
		a.openHelp()
	case "logout":
		a.signOut()
		return
	case "quit":
		a.Stop()
		return
	default:
		a.flash.Warn("Unknown command: " + cmd.Name)
	}
	a.render()
}
