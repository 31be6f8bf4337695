package server

import (
	"context"
	"database/sql"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/eskrenkovic/fear-tracker-go/internal/config"
	"github.com/eskrenkovic/fear-tracker-go/internal/docstore"
	"github.com/eskrenkovic/fear-tracker-go/internal/docstore/memstore"
	"github.com/eskrenkovic/fear-tracker-go/internal/docstore/pgstore"
	"github.com/eskrenkovic/fear-tracker-go/internal/modules/auth"
	"github.com/eskrenkovic/fear-tracker-go/internal/modules/core"
	gamesessioncommands "github.com/eskrenkovic/fear-tracker-go/internal/modules/game-session/commands"
	gamesessiondomain "github.com/eskrenkovic/fear-tracker-go/internal/modules/game-session/domain"
	gamesessionqueries "github.com/eskrenkovic/fear-tracker-go/internal/modules/game-session/queries"
	"github.com/eskrenkovic/fear-tracker-go/internal/modules/joincode"
	"github.com/eskrenkovic/fear-tracker-go/internal/modules/participant"
	presencecommands "github.com/eskrenkovic/fear-tracker-go/internal/modules/presence/commands"
	presencedomain "github.com/eskrenkovic/fear-tracker-go/internal/modules/presence/domain"
	presencequeries "github.com/eskrenkovic/fear-tracker-go/internal/modules/presence/queries"
	"github.com/eskrenkovic/fear-tracker-go/internal/modules/relationship"
	relationshipcommands "github.com/eskrenkovic/fear-tracker-go/internal/modules/relationship/commands"
	relationshipdomain "github.com/eskrenkovic/fear-tracker-go/internal/modules/relationship/domain"
	relationshipqueries "github.com/eskrenkovic/fear-tracker-go/internal/modules/relationship/queries"

	"github.com/benbjohnson/clock"
	"github.com/eskrenkovic/mediator-go"
	"github.com/eskrenkovic/migrate-go"
	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

type Server interface {
	Start(ctx context.Context) error
	Stop() error
}

var _ Server = &HTTPServer{}

// HTTPServer acts as the composition root for an application.
type HTTPServer struct {
	server *http.Server
	store  docstore.Store
	db     *sql.DB
	logger *zap.Logger
}

// NewHTTPServer wires the store, the mediator and the routes. The mediator is
// process global, so only one HTTPServer can be built per process.
func NewHTTPServer(cfg config.Config) (*HTTPServer, error) {
	baseCtx := context.Background()

	store, db, err := openStore(baseCtx, cfg)
	if err != nil {
		return nil, err
	}

	s := &HTTPServer{store: store, db: db, logger: cfg.Logger}
	c := newComponents(store, clock.New())

	if err := registerHandlers(cfg, c); err != nil {
		return nil, multierr.Append(err, s.close())
	}

	s.server = &http.Server{
		Addr:    net.JoinHostPort("", strconv.Itoa(cfg.Port)),
		Handler: newRouter(cfg, c),
	}

	return s, nil
}

func openStore(ctx context.Context, cfg config.Config) (docstore.Store, *sql.DB, error) {
	if cfg.StoreDriver != config.StorePostgres {
		return memstore.New(), nil, nil
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}

	if err := migrate.Run(ctx, db, cfg.MigrationsPath); err != nil {
		return nil, nil, multierr.Append(err, db.Close())
	}

	store, err := pgstore.New(db, cfg.DatabaseURL, pgstore.WithLogger(cfg.Logger))
	if err != nil {
		return nil, nil, multierr.Append(err, db.Close())
	}

	return store, db, nil
}

type components struct {
	clock       clock.Clock
	store       docstore.Store
	sessions    *gamesessiondomain.Repository
	friendships *relationshipdomain.Engine[relationshipdomain.Friendship]
	invites     *relationshipdomain.Engine[relationshipdomain.Invite]
}

func newComponents(store docstore.Store, clk clock.Clock) components {
	codes := joincode.NewAllocator(store, joincode.WithClock(clk))

	return components{
		clock:       clk,
		store:       store,
		sessions:    gamesessiondomain.NewRepository(store, codes, clk),
		friendships: relationshipdomain.NewEngine(store, relationshipdomain.Friendships()),
		invites:     relationshipdomain.NewEngine(store, relationshipdomain.Invites()),
	}
}

func registerHandlers(cfg config.Config, c components) error {
	requestLoggingBehavior := core.RequestLoggingBehavior{Logger: cfg.Logger}
	handlerErrorLoggingBehavior := core.HandlerErrorLoggingBehavior{Logger: cfg.Logger}
	requestValidationBehavior := core.RequestValidationBehavior{}

	mediator.RegisterPipelineBehavior(&requestLoggingBehavior)
	mediator.RegisterPipelineBehavior(&handlerErrorLoggingBehavior)
	mediator.RegisterPipelineBehavior(&requestValidationBehavior)

	store, sessions, friendships, invites := c.store, c.sessions, c.friendships, c.invites

	// handler registration

	// game-session

	resumeSessionHandler := gamesessioncommands.NewResumeSessionCommandHandler(sessions)

	err := multierr.Combine(
		mediator.RegisterRequestHandler[gamesessioncommands.CreateSessionCommand, gamesessioncommands.CreateSessionResponse](
			gamesessioncommands.NewCreateSessionCommandHandler(sessions, cfg.Sessions),
		),
		mediator.RegisterRequestHandler[gamesessioncommands.JoinSessionCommand, gamesessioncommands.JoinSessionResponse](
			gamesessioncommands.NewJoinSessionCommandHandler(sessions),
		),
		mediator.RegisterRequestHandler[gamesessioncommands.JoinSessionByCodeCommand, gamesessioncommands.JoinSessionResponse](
			gamesessioncommands.NewJoinSessionByCodeCommandHandler(sessions),
		),
		mediator.RegisterRequestHandler[gamesessioncommands.ResumeSessionCommand, gamesessioncommands.JoinSessionResponse](
			resumeSessionHandler,
		),
		mediator.RegisterRequestHandler[gamesessioncommands.SetFearCommand, gamesessioncommands.SetFearResponse](
			gamesessioncommands.NewSetFearCommandHandler(sessions),
		),
		mediator.RegisterRequestHandler[gamesessioncommands.AddCountdownCommand, gamesessioncommands.AddCountdownResponse](
			gamesessioncommands.NewAddCountdownCommandHandler(sessions),
		),
		mediator.RegisterRequestHandler[gamesessioncommands.UpdateCountdownCommand, gamesessiondomain.Countdown](
			gamesessioncommands.NewUpdateCountdownCommandHandler(sessions),
		),
		mediator.RegisterRequestHandler[gamesessioncommands.RemoveCountdownCommand, core.Unit](
			gamesessioncommands.NewRemoveCountdownCommandHandler(sessions),
		),
		mediator.RegisterRequestHandler[gamesessionqueries.GetSessionQuery, gamesessiondomain.Session](
			gamesessionqueries.NewGetSessionQueryHandler(sessions),
		),
		mediator.RegisterRequestHandler[gamesessionqueries.FindSessionByCodeQuery, gamesessiondomain.Session](
			gamesessionqueries.NewFindSessionByCodeQueryHandler(sessions),
		),
		mediator.RegisterRequestHandler[gamesessionqueries.GetUserSessionsQuery, []gamesessiondomain.SavedSession](
			gamesessionqueries.NewGetUserSessionsQueryHandler(store),
		),
	)
	if err != nil {
		return err
	}

	// presence

	err = multierr.Combine(
		mediator.RegisterRequestHandler[presencecommands.HeartbeatCommand, core.Unit](
			presencecommands.NewHeartbeatCommandHandler(store),
		),
		mediator.RegisterRequestHandler[presencecommands.RemoveStaleMembersCommand, presencecommands.RemoveStaleMembersResponse](
			presencecommands.NewRemoveStaleMembersCommandHandler(sessions, cfg.Presence),
		),
		mediator.RegisterRequestHandler[presencequeries.GetMembersQuery, []presencedomain.MemberPresence](
			presencequeries.NewGetMembersQueryHandler(sessions, cfg.Presence),
		),
	)
	if err != nil {
		return err
	}

	// relationship

	return multierr.Combine(
		mediator.RegisterRequestHandler[relationshipcommands.SendFriendRequestCommand, relationshipdomain.Friendship](
			relationshipcommands.NewSendFriendRequestCommandHandler(friendships),
		),
		mediator.RegisterRequestHandler[relationshipcommands.RespondToFriendRequestCommand, core.Unit](
			relationshipcommands.NewRespondToFriendRequestCommandHandler(friendships),
		),
		mediator.RegisterRequestHandler[relationshipcommands.SendInviteCommand, relationshipdomain.Invite](
			relationshipcommands.NewSendInviteCommandHandler(invites, sessions),
		),
		mediator.RegisterRequestHandler[relationshipcommands.AcceptInviteCommand, gamesessioncommands.JoinSessionResponse](
			relationshipcommands.NewAcceptInviteCommandHandler(invites, resumeSessionHandler),
		),
		mediator.RegisterRequestHandler[relationshipcommands.DeclineInviteCommand, core.Unit](
			relationshipcommands.NewDeclineInviteCommandHandler(invites),
		),
		mediator.RegisterRequestHandler[relationshipcommands.EnsureUserProfileCommand, relationshipdomain.PublicProfile](
			relationshipcommands.NewEnsureUserProfileCommandHandler(store),
		),
		mediator.RegisterRequestHandler[relationshipqueries.GetFriendshipsQuery, relationshipdomain.FriendshipsView](
			relationshipqueries.NewGetFriendshipsQueryHandler(friendships),
		),
		mediator.RegisterRequestHandler[relationshipqueries.GetInvitesQuery, relationshipdomain.InvitesView](
			relationshipqueries.NewGetInvitesQueryHandler(invites),
		),
		mediator.RegisterRequestHandler[relationshipqueries.GetProfileByInviteCodeQuery, relationshipdomain.PublicProfile](
			relationshipqueries.NewGetProfileByInviteCodeQueryHandler(store),
		),
	)
}

func newRouter(cfg config.Config, c components) http.Handler {
	sessionSocket := participant.NewSocketHandler(
		c.store,
		presencecommands.NewHeartbeatCommandHandler(c.store),
		presencecommands.NewRemoveStaleMembersCommandHandler(c.sessions, cfg.Presence),
		participant.WithClock(c.clock),
		participant.WithSettings(cfg.Presence),
	)

	friendshipsSocket := relationship.NewSocketHandler(func(logger *zap.Logger) relationship.LiveFeed {
		return relationship.NewFriendshipsFeed(c.friendships, logger)
	})
	invitesSocket := relationship.NewSocketHandler(func(logger *zap.Logger) relationship.LiveFeed {
		return relationship.NewInvitesFeed(c.invites, logger)
	})

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer,
		core.CorrelationIDHTTPMiddleware,
		core.LoggerHTTPMiddleware(cfg.Logger),
	)

	// http

	r.Get("/healthz", handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(auth.AuthenticationMiddleware(cfg.JWTSecret))

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", gamesessioncommands.HandleCreateSession)
			r.Post("/actions/join", gamesessioncommands.HandleJoinSessionByCode)
			r.Get("/codes/{code}", gamesessionqueries.HandleFindSessionByCode)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", gamesessionqueries.HandleGetSession)
				r.Get("/qr", gamesessionqueries.NewSessionQRCodeHandler(cfg.PublicBaseURL))
				r.Get("/ws", sessionSocket)

				r.Put("/actions/join", gamesessioncommands.HandleResumeSession)
				r.Put("/fear", gamesessioncommands.HandleSetFear)

				r.Post("/countdowns", gamesessioncommands.HandleAddCountdown)
				r.Put("/countdowns/{countdownId}", gamesessioncommands.HandleUpdateCountdown)
				r.Delete("/countdowns/{countdownId}", gamesessioncommands.HandleRemoveCountdown)

				r.Get("/members", presencequeries.HandleGetMembers)
				r.Put("/members/me/heartbeat", presencecommands.HandleHeartbeat)
				r.Delete("/members/stale", presencecommands.HandleRemoveStaleMembers)
			})
		})

		r.Get("/me/sessions", gamesessionqueries.HandleGetUserSessions)
		r.Put("/me/profile", relationshipcommands.HandleEnsureUserProfile)
		r.Get("/profiles/codes/{code}", relationshipqueries.HandleGetProfileByInviteCode)

		r.Route("/friendships", func(r chi.Router) {
			r.Post("/", relationshipcommands.HandleSendFriendRequest)
			r.Get("/", relationshipqueries.HandleGetFriendships)
			r.Get("/ws", friendshipsSocket)
			r.Put("/{id}", relationshipcommands.HandleRespondToFriendRequest)
		})

		r.Route("/invites", func(r chi.Router) {
			r.Post("/", relationshipcommands.HandleSendInvite)
			r.Get("/", relationshipqueries.HandleGetInvites)
			r.Get("/ws", invitesSocket)
			r.Put("/{id}/actions/accept", relationshipcommands.HandleAcceptInvite)
			r.Put("/{id}/actions/decline", relationshipcommands.HandleDeclineInvite)
		})
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	core.WriteOK(w, r, map[string]string{"status": "ok"})
}

// Handler exposes the routes for in-process tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

// Start serves until ctx is cancelled or the listener fails, then shuts the
// server down.
func (s *HTTPServer) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer cancel()

		s.logger.Info("listening", zap.String("addr", s.server.Addr))
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		return s.server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func (s *HTTPServer) Stop() error {
	return multierr.Append(s.server.Close(), s.close())
}

func (s *HTTPServer) close() error {
	err := s.store.Close()
	if s.db != nil {
		err = multierr.Append(err, s.db.Close())
	}
	return err
}
