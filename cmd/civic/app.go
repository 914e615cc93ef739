package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"civicconnect.org/internal/auth"
	"civicconnect.org/internal/client"
	"civicconnect.org/internal/guard"
	"civicconnect.org/internal/repository"
	"civicconnect.org/internal/screen"
)

// app is the per-invocation client state shared by every command.
type app struct {
	v        *viper.Viper
	out      io.Writer
	log      zerolog.Logger
	session  *auth.Session
	client   *client.Client
	resolver *auth.RoleResolver
	toaster  *screen.Toaster
	timeout  time.Duration
	loc      *time.Location
}

func newApp(cmd *cobra.Command, v *viper.Viper) (*app, error) {
	level := zerolog.WarnLevel
	if v.GetBool("debug") {
		level = zerolog.DebugLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr(), TimeFormat: time.RFC3339}).
		Level(level).With().Timestamp().Str("component", "civic").Logger()

	session := auth.NewSession()
	c, err := client.New(v.GetString("server"), client.WithSession(session), client.WithLogger(log))
	if err != nil {
		return nil, err
	}
	policy := auth.FailOpen
	if v.GetBool("role-fail-closed") {
		policy = auth.FailClosed
	}
	a := &app{
		v:        v,
		out:      cmd.OutOrStdout(),
		log:      log,
		session:  session,
		client:   c,
		resolver: auth.NewRoleResolver(c, policy, log),
		toaster:  screen.NewToaster(cmd.OutOrStdout()),
		timeout:  v.GetDuration("timeout"),
		loc:      time.Local,
	}
	if err := a.restore(cmd.Context()); err != nil {
		return nil, err
	}
	return a, nil
}

// restore re-opens the session saved by a previous sign-in. A token the
// server no longer accepts is forgotten.
func (a *app) restore(ctx context.Context) error {
	token := a.v.GetString("token")
	if token == "" {
		return nil
	}
	a.session.Begin(auth.Identity{}, token)
	ctx, cancel := a.ctx(ctx)
	defer cancel()
	me, err := a.client.CurrentUser(ctx)
	switch {
	case errors.Is(err, auth.ErrUnauthorized):
		a.session.End()
		a.log.Info().Msg("saved session expired")
		return a.forget()
	case err != nil:
		a.session.End()
		return fmt.Errorf("restore session: %w", err)
	}
	a.session.Begin(me.User, token)
	return nil
}

func (a *app) ctx(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return client.WithTimeout(parent, a.timeout)
}

// state resolves the guard input for the current session.
func (a *app) state(ctx context.Context) guard.State {
	id := a.session.Identity()
	if id == nil {
		return guard.State{}
	}
	ctx, cancel := a.ctx(ctx)
	defer cancel()
	role, err := a.resolver.Resolve(ctx, id)
	if err != nil {
		a.log.Debug().Err(err).Msg("role lookup failed")
	}
	return guard.State{Identity: id, Role: role}
}

func (a *app) repository() (*repository.Repository, error) {
	policy, err := repository.ParseSyncPolicy(a.v.GetString("sync"))
	if err != nil {
		return nil, err
	}
	return repository.New(a.client, a.session,
		repository.WithNotifier(a.toaster),
		repository.WithPolicy(policy),
		repository.WithLogger(a.log),
	), nil
}

// remember persists the session token to the settings file.
func (a *app) remember(grant *auth.SessionGrant) error {
	a.v.Set("token", grant.Token)
	return a.save()
}

func (a *app) forget() error {
	a.v.Set("token", "")
	return a.save()
}

func (a *app) save() error {
	path := a.v.GetString("config")
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	settings := viper.New()
	settings.SetConfigFile(path)
	_ = settings.ReadInConfig()
	settings.Set("server", a.v.GetString("server"))
	settings.Set("token", a.v.GetString("token"))
	if err := settings.WriteConfigAs(path); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return os.Chmod(path, 0o600)
}

func (a *app) home() error {
	return screen.Home(a.out, a.session.Identity())
}

// guarded prints the decision when it does not render and reports whether
// the caller may continue.
func (a *app) guarded(d guard.Decision) (bool, error) {
	if d.Allowed() {
		return true, nil
	}
	return false, screen.RenderDecision(a.out, d)
}
