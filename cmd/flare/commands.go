package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/evanschultz/flare/internal/adapters/identity"
	"github.com/evanschultz/flare/internal/adapters/server"
	"github.com/evanschultz/flare/internal/adapters/server/common"
	"github.com/evanschultz/flare/internal/adapters/storage/sqlite"
	"github.com/evanschultz/flare/internal/app"
	"github.com/evanschultz/flare/internal/config"
	"github.com/evanschultz/flare/internal/domain"
	"github.com/evanschultz/flare/internal/telemetry"
)

// operatorUserID identifies the local admin actor used by inspection commands.
const operatorUserID = "cli-operator"

// defaultActivityRows bounds the ledger rows shown by "events show".
const defaultActivityRows = 20

// newServeCommand serves the REST API and MCP endpoint until interrupted.
func newServeCommand(opts *rootOptions) *cobra.Command {
	var bind string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the REST API and MCP endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := opts.loadRuntime("serve")
			if err != nil {
				return err
			}
			defer rt.close(opts.stderr)
			if bind = strings.TrimSpace(bind); bind != "" {
				rt.cfg.Server.HTTPBind = bind
			}
			if err := runServe(cmd.Context(), rt); err != nil {
				rt.logger.Error("command flow failed", "command", "serve", "err", err)
				return err
			}
			rt.logger.Info("command flow complete", "command", "serve")
			return nil
		},
	}
	cmd.Flags().StringVar(&bind, "bind", "", "listen address, overrides server.http_bind")
	return cmd
}

// runServe wires storage, identity, tracing, and transports, then blocks until ctx ends.
func runServe(ctx context.Context, rt *runtimeEnv) error {
	cfg := rt.cfg
	logger := rt.logger

	idCfg, err := identityConfig(cfg.Identity)
	if err != nil {
		return err
	}
	verifier, err := identity.NewVerifier(idCfg)
	if err != nil {
		return fmt.Errorf("configure token verifier: %w", err)
	}
	shutdownTimeout, err := cfg.Server.ShutdownTimeoutDuration()
	if err != nil {
		return err
	}

	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Options{
		Endpoint:       cfg.Telemetry.OTLPEndpoint,
		Insecure:       cfg.Telemetry.Insecure,
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: version,
	})
	if err != nil {
		return fmt.Errorf("configure telemetry: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("telemetry shutdown failed", "err", err)
		}
	}()
	if endpoint := strings.TrimSpace(cfg.Telemetry.OTLPEndpoint); endpoint != "" {
		logger.Info("tracing enabled", "endpoint", endpoint)
	}

	repo, err := openRepository(rt)
	if err != nil {
		return err
	}
	defer closeRepository(rt, repo)

	svc := app.NewService(repo, uuid.NewString, nil, app.ServiceConfig{})
	logger.Info("command flow start", "command", "serve")
	return server.Run(ctx, server.Config{
		HTTPBind:        cfg.Server.HTTPBind,
		APIEndpoint:     cfg.Server.APIEndpoint,
		MCPEndpoint:     cfg.Server.MCPEndpoint,
		ServerName:      "flare",
		ServerVersion:   version,
		ShutdownTimeout: shutdownTimeout,
	}, server.Dependencies{
		Service:       common.NewAppServiceAdapter(svc),
		Authenticator: verifier,
		Directory:     svc,
		Logger:        logger,
		Ready:         repo.Ping,
	})
}

// newTokenCommand issues a signed bearer token for one actor.
func newTokenCommand(opts *rootOptions) *cobra.Command {
	var (
		userID string
		name   string
		roles  []string
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a signed bearer token",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			if strings.TrimSpace(userID) == "" {
				return errors.New("--user is required")
			}
			if len(roles) == 0 {
				return errors.New("at least one --role is required")
			}
			parsedRoles, err := domain.ParseRoles(roles)
			if err != nil {
				return err
			}
			actor, err := domain.NewActor(userID, name, parsedRoles)
			if err != nil {
				return err
			}

			rt, err := opts.loadRuntime("token")
			if err != nil {
				return err
			}
			defer rt.close(opts.stderr)

			idCfg, err := identityConfig(rt.cfg.Identity)
			if err != nil {
				return err
			}
			issuer, err := identity.NewIssuer(idCfg)
			if err != nil {
				return fmt.Errorf("configure token issuer: %w", err)
			}
			token, err := issuer.Issue(actor)
			if err != nil {
				return fmt.Errorf("issue token: %w", err)
			}
			rt.logger.Debug("token issued", "user_id", actor.UserID, "roles", strings.Join(domain.RoleNames(actor.Roles), ","))
			_, _ = fmt.Fprintln(opts.stdout, token)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id carried in the token subject")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringArrayVar(&roles, "role", nil, "role to grant: admin, organizer, or participant (repeatable)")
	return cmd
}

// newEventsCommand groups read-only event inspection commands.
func newEventsCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Inspect events in the local database",
	}
	cmd.AddCommand(newEventsListCommand(opts), newEventsShowCommand(opts))
	return cmd
}

// newEventsListCommand prints every event as a table.
func newEventsListCommand(opts *rootOptions) *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List events with their confirmed participant counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var filter domain.EventStatus
			if raw := strings.TrimSpace(status); raw != "" && raw != "all" {
				parsed, err := domain.ParseEventStatus(raw)
				if err != nil {
					return err
				}
				filter = parsed
			}
			return withOperatorService(cmd.Context(), opts, "events list", func(ctx context.Context, svc *app.Service, actor domain.Actor) error {
				rosters, err := svc.ListEventsWithParticipants(ctx, actor)
				if err != nil {
					return err
				}
				rows := make([]app.EventRoster, 0, len(rosters))
				for _, roster := range rosters {
					if filter == "" || roster.Event.Status == filter {
						rows = append(rows, roster)
					}
				}
				return renderEventTable(opts.stdout, rows)
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "all", "filter by status: pending, approved, rejected, or all")
	return cmd
}

// newEventsShowCommand prints one event with its recent activity.
func newEventsShowCommand(opts *rootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "show <event-id>",
		Short: "Show one event and its activity ledger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eventID := strings.TrimSpace(args[0])
			return withOperatorService(cmd.Context(), opts, "events show", func(ctx context.Context, svc *app.Service, actor domain.Actor) error {
				event, err := svc.GetEvent(ctx, actor, eventID)
				if err != nil {
					return err
				}
				activity, err := svc.ListEventActivity(ctx, actor, eventID, limit)
				if err != nil {
					return err
				}
				return renderEventDetail(opts.stdout, event, activity)
			})
		},
	}
	cmd.Flags().IntVar(&limit, "activity", defaultActivityRows, "number of activity rows to show")
	return cmd
}

// withOperatorService opens the configured database and runs fn as the local admin operator.
func withOperatorService(ctx context.Context, opts *rootOptions, command string, fn func(context.Context, *app.Service, domain.Actor) error) error {
	rt, err := opts.loadRuntime(command)
	if err != nil {
		return err
	}
	defer rt.close(opts.stderr)

	repo, err := openRepository(rt)
	if err != nil {
		return err
	}
	defer closeRepository(rt, repo)

	actor, err := domain.NewActor(operatorUserID, "flare operator", []domain.Role{domain.RoleAdmin})
	if err != nil {
		return err
	}
	svc := app.NewService(repo, uuid.NewString, nil, app.ServiceConfig{})
	rt.logger.Info("command flow start", "command", command)
	if err := fn(ctx, svc, actor); err != nil {
		rt.logger.Error("command flow failed", "command", command, "err", err)
		return fmt.Errorf("run %s command: %w", command, err)
	}
	rt.logger.Info("command flow complete", "command", command)
	return nil
}

// openRepository opens the sqlite repository named by the runtime config.
func openRepository(rt *runtimeEnv) (*sqlite.Repository, error) {
	dbPath := rt.cfg.Database.Path
	rt.logger.Info("opening sqlite repository", "db_path", dbPath)
	repo, err := sqlite.Open(dbPath)
	if err != nil {
		rt.logger.Error("sqlite open failed", "db_path", dbPath, "err", err)
		return nil, fmt.Errorf("open sqlite repository: %w", err)
	}
	rt.logger.Info("sqlite repository ready", "db_path", dbPath, "migrations", "ensured")
	return repo, nil
}

// closeRepository closes repo and logs failures.
func closeRepository(rt *runtimeEnv, repo *sqlite.Repository) {
	if err := repo.Close(); err != nil {
		rt.logger.Warn("sqlite close failed", "db_path", rt.cfg.Database.Path, "err", err)
	}
}

// identityConfig converts the identity section into signer/verifier settings.
func identityConfig(cfg config.IdentityConfig) (identity.Config, error) {
	key := strings.TrimSpace(cfg.SigningKey)
	if key == "" {
		return identity.Config{}, errors.New("identity.signing_key is required (or set FLARE_SIGNING_KEY)")
	}
	ttl, err := cfg.TTL()
	if err != nil {
		return identity.Config{}, err
	}
	return identity.Config{
		Issuer:     cfg.Issuer,
		Audience:   cfg.Audience,
		SigningKey: []byte(key),
		TTL:        ttl,
	}, nil
}
