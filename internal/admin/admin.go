// Package admin implements the operator commands of bookkeeper-admin:
// registering users from a terminal, inspecting sessions, pruning expired
// refresh tokens and applying migrations.
package admin

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dmitrijs2005/bookkeeper/internal/common"
	"github.com/dmitrijs2005/bookkeeper/internal/server/models"
)

var ErrUsage = errors.New("usage: bookkeeper-admin [-c config.json] <register [name] [email] | sessions <email> | prune | migrate>")

// UserAdmin is the subset of the user service the commands need.
type UserAdmin interface {
	Register(ctx context.Context, name, email, password string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	ListSessions(ctx context.Context, userID string) ([]models.Session, error)
	PruneExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

type App struct {
	users   UserAdmin
	migrate func(ctx context.Context) error
	in      *bufio.Reader
	out     io.Writer
	now     func() time.Time
}

func New(users UserAdmin, migrate func(ctx context.Context) error, in io.Reader, out io.Writer) *App {
	return &App{
		users:   users,
		migrate: migrate,
		in:      bufio.NewReader(in),
		out:     out,
		now:     time.Now,
	}
}

// Run executes the command named by args[0].
func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return ErrUsage
	}

	switch cmd, rest := args[0], args[1:]; cmd {
	case "register":
		return a.register(ctx, rest)
	case "sessions":
		if len(rest) != 1 {
			return ErrUsage
		}
		return a.sessions(ctx, rest[0])
	case "prune":
		return a.prune(ctx)
	case "migrate":
		if err := a.migrate(ctx); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "Migrations applied")
		return nil
	default:
		return fmt.Errorf("unknown command %q: %w", cmd, ErrUsage)
	}
}

func (a *App) register(ctx context.Context, args []string) error {
	if len(args) > 2 {
		return ErrUsage
	}

	var name, email string
	var err error
	if len(args) > 0 {
		name = args[0]
	} else if name, err = promptLine(a.in, a.out, "Name"); err != nil {
		return err
	}
	if len(args) > 1 {
		email = args[1]
	} else if email, err = promptLine(a.in, a.out, "Email"); err != nil {
		return err
	}

	pw, err := promptNewPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(pw)

	u, err := a.users.Register(ctx, name, email, string(pw))
	if err != nil {
		return fmt.Errorf("register: %w", err)
	}
	fmt.Fprintf(a.out, "Registered %s <%s> with id %s\n", u.Name, u.Email, u.ID)
	return nil
}

func (a *App) sessions(ctx context.Context, email string) error {
	u, err := a.users.GetUserByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("lookup %s: %w", email, err)
	}

	list, err := a.users.ListSessions(ctx, u.ID)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Fprintln(a.out, "No active sessions")
		return nil
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CREATED\tTOKEN")
	for _, s := range list {
		fmt.Fprintf(tw, "%s\t%s\n", s.CreatedAt.UTC().Format(time.RFC3339), shorten(s.Token))
	}
	return tw.Flush()
}

func (a *App) prune(ctx context.Context) error {
	n, err := a.users.PruneExpiredSessions(ctx, a.now())
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Pruned %d expired sessions\n", n)
	return nil
}

// shorten masks the middle of a token.
func shorten(token string) string {
	if len(token) <= 16 {
		return token
	}
	return token[:8] + "..." + token[len(token)-8:]
}
