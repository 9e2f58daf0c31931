// Command client drives signup and login against a running API from the
// terminal. The session is kept in SESSION_FILE between runs.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/nafee3/nafee3/internal/apiclient"
	"github.com/nafee3/nafee3/internal/apperr"
	"github.com/nafee3/nafee3/internal/config"
	"github.com/nafee3/nafee3/internal/identity"
	"github.com/nafee3/nafee3/internal/logging"
	"github.com/nafee3/nafee3/internal/login"
	"github.com/nafee3/nafee3/internal/media"
	"github.com/nafee3/nafee3/internal/notification"
	"github.com/nafee3/nafee3/internal/profile"
	"github.com/nafee3/nafee3/internal/session"
	"github.com/nafee3/nafee3/internal/signup"
)

const usage = `usage: client <command> [flags]

commands:
  signup   create an account and profile
  login    sign in with a phone code
  whoami   show the signed-in identity
  profile  show a profile (defaults to your own)
  edit     change your profile and add photos
  search   search profiles by service description
  logout   sign out
`

const provisioningAttempts = 3

type app struct {
	cfg      config.ClientConfig
	logger   *slog.Logger
	ids      *identity.Client
	profiles *profile.HTTPGateway
	photos   *media.HTTPStore
	in       *bufio.Scanner
	out      io.Writer
}

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.LoadClient()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	a := newApp(cfg, nil, os.Stdin, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.run(ctx, os.Args[1], os.Args[2:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "%s\n", apperr.UserMessage(err))
		a.logger.Error("command failed", "command", os.Args[1], "error", err)
		os.Exit(1)
	}
}

// newApp wires the gateways; a nil doer uses a plain HTTP client.
func newApp(cfg config.ClientConfig, doer apiclient.Doer, in io.Reader, out io.Writer) *app {
	logger := logging.NewWithWriter(os.Stderr, cfg.LogLevel)
	api := apiclient.New(cfg.APIURL, doer, logger)
	ids := identity.NewClient(identity.NewHTTPBackend(api), identity.NewFileSessionStore(cfg.SessionFile), identity.ClientOptions{
		Logger:        logger,
		RefreshWithin: 24 * time.Hour,
	})
	return &app{
		cfg:      cfg,
		logger:   logger,
		ids:      ids,
		profiles: profile.NewHTTPGateway(api, ids, 2),
		photos:   media.NewHTTPStore(api, ids),
		in:       bufio.NewScanner(in),
		out:      out,
	}
}

func (a *app) run(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "signup":
		return a.signup(ctx, args)
	case "login":
		return a.login(ctx, args)
	case "whoami":
		return a.whoami(ctx)
	case "profile":
		return a.profile(ctx, args)
	case "edit":
		return a.edit(ctx, args)
	case "search":
		return a.search(ctx, args)
	case "logout":
		return a.logout(ctx)
	default:
		fmt.Fprint(os.Stderr, usage)
		return flag.ErrHelp
	}
}

func (a *app) signup(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("signup", flag.ContinueOnError)
	var (
		p         signup.Payload
		channel   string
		photoPath string
	)
	fs.StringVar(&p.Phone, "phone", "", "phone number")
	fs.StringVar(&p.FullName, "name", "", "full name")
	fs.StringVar(&p.DateOfBirth, "dob", "", "date of birth, YYYY-MM-DD")
	fs.StringVar(&p.ServiceCity, "city", "", "service city")
	fs.StringVar(&p.ServiceArea, "area", "", "service area")
	fs.StringVar(&p.ServiceDescription, "desc", "", "service description")
	fs.StringVar(&channel, "channel", "sms", "code delivery channel: sms or whatsapp")
	fs.StringVar(&photoPath, "photo", "", "optional profile photo (JPEG or PNG)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	p.Channel = notification.Channel(channel)
	if photoPath != "" {
		data, err := os.ReadFile(photoPath)
		if err != nil {
			return fmt.Errorf("read photo: %w", err)
		}
		p.Photo = &media.Upload{Name: photoPath, Data: data}
	}

	coord := signup.NewCoordinator(a.ids, a.profiles, a.photos, signup.Options{Region: a.cfg.Region, Logger: a.logger})
	if err := coord.Start(ctx, p); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "code sent via %s\n", p.Channel)

	for coord.State() == signup.StateCodeRequested {
		code, err := a.prompt("code (or \"resend\"): ")
		if err != nil {
			return err
		}
		if code == "resend" {
			if err := coord.ResendCode(ctx); err != nil {
				return err
			}
			continue
		}
		err = coord.ConfirmCode(ctx, code)
		switch {
		case err == nil:
		case coord.State() == signup.StateCodeRequested:
			fmt.Fprintln(a.out, apperr.UserMessage(err))
		case coord.State() == signup.StateProvisioning:
			a.logger.Warn("profile creation failed", "error", err)
		default:
			return err
		}
	}

	for attempt := 1; coord.State() == signup.StateProvisioning; attempt++ {
		if attempt > provisioningAttempts {
			_ = coord.Cancel()
			return coord.Snapshot().Err
		}
		a.logger.Warn("retrying profile creation", "attempt", attempt)
		if err := coord.RetryProvisioning(ctx); err != nil && coord.State() != signup.StateProvisioning {
			return err
		}
	}

	snap := coord.Snapshot()
	if snap.State != signup.StateCompleted {
		return snap.Err
	}
	fmt.Fprintln(a.out, "signup complete")
	return a.print(snap.Profile)
}

func (a *app) login(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	phone := fs.String("phone", "", "phone number")
	channel := fs.String("channel", "sms", "code delivery channel: sms or whatsapp")
	if err := fs.Parse(args); err != nil {
		return err
	}

	coord := login.NewCoordinator(a.ids, login.Options{Region: a.cfg.Region, Logger: a.logger})
	if err := coord.RequestCode(ctx, *phone, notification.Channel(*channel)); err != nil {
		return err
	}
	for coord.State() == login.StateCodeRequested {
		code, err := a.prompt("code: ")
		if err != nil {
			return err
		}
		if err := coord.ConfirmCode(ctx, code); err != nil {
			if coord.State() != login.StateCodeRequested {
				return err
			}
			fmt.Fprintln(a.out, apperr.UserMessage(err))
		}
	}
	snap := coord.Snapshot()
	if snap.State != login.StateAuthenticated {
		return snap.Err
	}
	return a.print(snap.Identity)
}

func (a *app) whoami(ctx context.Context) error {
	m := session.New(a.ids, a.logger)
	defer m.Close()
	if err := m.Start(ctx); err != nil {
		return err
	}
	st := m.State()
	if st.User == nil {
		fmt.Fprintln(a.out, "not signed in")
		return nil
	}
	return a.print(st.User)
}

func (a *app) profile(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("profile", flag.ContinueOnError)
	id := fs.String("id", "", "profile id; defaults to the signed-in identity")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == "" {
		sess, err := a.ids.CurrentSession(ctx)
		if err != nil {
			return err
		}
		if sess == nil {
			return apperr.ErrUnauthorized
		}
		*id = sess.Identity.ID
	}
	p, err := a.profiles.Fetch(ctx, *id)
	if err != nil {
		return err
	}
	return a.print(p)
}

// edit replaces the signed-in user's profile with the changed fields. Photos
// are validated and uploaded before the update is sent.
func (a *app) edit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("edit", flag.ContinueOnError)
	var (
		name, city, area, desc, photoPath string
		portfolio                         []string
	)
	fs.StringVar(&name, "name", "", "full name")
	fs.StringVar(&city, "city", "", "service city")
	fs.StringVar(&area, "area", "", "service area")
	fs.StringVar(&desc, "desc", "", "service description")
	fs.StringVar(&photoPath, "photo", "", "new profile photo (JPEG or PNG)")
	fs.Func("portfolio", "add a portfolio photo; repeatable", func(path string) error {
		portfolio = append(portfolio, path)
		return nil
	})
	if err := fs.Parse(args); err != nil {
		return err
	}

	sess, err := a.ids.CurrentSession(ctx)
	if err != nil {
		return err
	}
	if sess == nil {
		return apperr.ErrUnauthorized
	}
	p, err := a.profiles.Fetch(ctx, sess.Identity.ID)
	if err != nil {
		return err
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "name":
			p.FullName = name
		case "city":
			p.ServiceCity = city
		case "area":
			p.ServiceArea = area
		case "desc":
			p.ServiceDescription = desc
		}
	})
	if photoPath != "" {
		if p.ProfilePhoto, err = a.upload(ctx, media.KindProfile, photoPath); err != nil {
			return err
		}
	}
	for _, path := range portfolio {
		url, err := a.upload(ctx, media.KindPortfolio, path)
		if err != nil {
			return err
		}
		p.PortfolioPhotos = append(p.PortfolioPhotos, url)
	}

	updated, err := a.profiles.Update(ctx, p)
	if err != nil {
		return err
	}
	return a.print(updated)
}

func (a *app) upload(ctx context.Context, kind media.Kind, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read photo: %w", err)
	}
	return a.photos.Put(ctx, kind, data)
}

func (a *app) search(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("search", flag.ContinueOnError)
	var q profile.SearchQuery
	fs.StringVar(&q.Query, "q", "", "what you are looking for")
	fs.StringVar(&q.SearchCity, "city", "", "only this city")
	fs.StringVar(&q.SearchArea, "area", "", "only this area")
	fs.IntVar(&q.TopK, "n", 10, "maximum results")
	if err := fs.Parse(args); err != nil {
		return err
	}
	results, err := a.profiles.Search(ctx, q)
	if err != nil {
		return err
	}
	return a.print(results)
}

func (a *app) logout(ctx context.Context) error {
	m := session.New(a.ids, a.logger)
	defer m.Close()
	if err := m.Start(ctx); err != nil {
		a.logger.Warn("resolve session before logout", "error", err)
	}
	err := m.Logout(ctx)
	fmt.Fprintln(a.out, "signed out")
	return err
}

func (a *app) prompt(label string) (string, error) {
	fmt.Fprint(a.out, label)
	if !a.in.Scan() {
		if err := a.in.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return strings.TrimSpace(a.in.Text()), nil
}

func (a *app) print(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
