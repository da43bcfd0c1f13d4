// Package app composes the client daemon: config, logging, lock, store,
// reconciler, transports and the poll scheduler, wired through fx.
package app

import (
	"context"
	"fmt"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/moimapp/moim/internal/action"
	"github.com/moimapp/moim/internal/bus"
	"github.com/moimapp/moim/internal/config"
	"github.com/moimapp/moim/internal/entity"
	"github.com/moimapp/moim/internal/lock"
	"github.com/moimapp/moim/internal/logging"
	"github.com/moimapp/moim/internal/poll"
	"github.com/moimapp/moim/internal/push"
	"github.com/moimapp/moim/internal/recon"
	"github.com/moimapp/moim/internal/rest"
	"github.com/moimapp/moim/internal/session"
	"github.com/moimapp/moim/internal/store"
	"github.com/moimapp/moim/internal/view"
)

// Params holds the resolved account configuration passed to the fx module.
type Params struct {
	Account    string
	ConfigPath string // optional override for testing; empty = use default
}

// Module returns the fx module for the client daemon, composing all providers
// and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("app",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBus,
			provideLock,
			provideStore,
			provideReconciler,
			provideRestClient,
			providePushClient,
			provideScheduler,
			provideProjector,
			provideActions,
			provideSession,
			provideRuntime,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig(p Params) (*config.Config, error) {
	path := p.ConfigPath
	if path == "" {
		path = session.ConfigPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if cfg.Server.BaseURL == "" || cfg.Server.WSURL == "" {
		return nil, fmt.Errorf("config %s: server.base_url and server.ws_url are required", path)
	}
	return cfg, nil
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(session.LogPath(p.Account), p.Account)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := session.EnsureDir(p.Account); err != nil {
		return nil, err
	}
	logger.Info("acquiring account lock", zap.String("account", p.Account))
	l, err := lock.Acquire(session.Dir(p.Account))
	if err != nil {
		return nil, err
	}
	logger.Info("account lock acquired")
	return l, nil
}

func provideStore(b *bus.Bus) *store.Store {
	return store.New(b)
}

func provideReconciler(s *store.Store, b *bus.Bus, logger *zap.Logger) *recon.Reconciler {
	return recon.New(s, b, logger)
}

func provideRestClient(cfg *config.Config, logger *zap.Logger) *rest.Client {
	return rest.NewClient(cfg.Server.BaseURL, logger)
}

func providePushClient(cfg *config.Config, b *bus.Bus, logger *zap.Logger) *push.Client {
	return push.NewClient(cfg.Server.WSURL, b, logger, cfg.ReconnectDelay())
}

func provideScheduler(b *bus.Bus, logger *zap.Logger) *poll.Scheduler {
	return poll.New(b, logger)
}

func provideProjector(s *store.Store) *view.Projector {
	return view.New(s)
}

func provideActions(client *rest.Client, r *recon.Reconciler, s *store.Store, logger *zap.Logger) *action.Actions {
	return action.New(client, r, s, logger)
}

func provideSession() *session.Session {
	return session.NewSession()
}

// runtime holds handles created during OnStart that OnStop must tear down.
type runtime struct {
	notifSub *push.Subscription
}

func provideRuntime() *runtime {
	return &runtime{}
}

// sessionPolicies returns the polls that run for the whole authenticated
// session: drift correction for collections without per-item deltas, plus
// the online-status heartbeat.
func sessionPolicies(cfg *config.Config, client *rest.Client, r *recon.Reconciler) []poll.Policy {
	return []poll.Policy{
		{
			Name:     "friends",
			Kind:     poll.FullReplace,
			Interval: cfg.FriendsInterval(),
			Run: func(ctx context.Context) error {
				edges, err := fetchAllEdges(ctx, client)
				if err != nil {
					return err
				}
				r.ReplaceEdges(edges)
				return nil
			},
		},
		{
			Name:     "presence",
			Kind:     poll.FullReplace,
			Interval: cfg.PresenceInterval(),
			Run: func(ctx context.Context) error {
				ids, err := client.OnlineClassmates(ctx)
				if err != nil {
					return err
				}
				r.ReplacePresence(ids)
				return nil
			},
		},
		{
			Name:     "notifications",
			Kind:     poll.FullReplace,
			Interval: cfg.NotificationsInterval(),
			Run: func(ctx context.Context) error {
				ns, err := client.Notifications(ctx)
				if err != nil {
					return err
				}
				r.ReplaceNotifications(ns)
				return nil
			},
		},
		{
			Name:     "heartbeat",
			Kind:     poll.Heartbeat,
			Interval: cfg.HeartbeatInterval(),
			Run:      client.Heartbeat,
		},
	}
}

// fetchAllEdges combines the backend's three friend lists into the single
// authoritative edge set a friend poll replaces the store with.
func fetchAllEdges(ctx context.Context, client *rest.Client) ([]entity.FriendEdge, error) {
	friends, err := client.Friends(ctx)
	if err != nil {
		return nil, err
	}
	pending, err := client.PendingRequests(ctx)
	if err != nil {
		return nil, err
	}
	sent, err := client.SentRequests(ctx)
	if err != nil {
		return nil, err
	}
	edges := make([]entity.FriendEdge, 0, len(friends)+len(pending)+len(sent))
	edges = append(edges, friends...)
	edges = append(edges, pending...)
	edges = append(edges, sent...)
	return edges, nil
}

// bootstrapRooms fetches both room lists once at startup so the sidebar has
// summaries before any push or poll arrives.
func bootstrapRooms(ctx context.Context, client *rest.Client, r *recon.Reconciler, logger *zap.Logger) {
	if rooms, err := client.Rooms(ctx); err != nil {
		logger.Warn("initial room list fetch failed", zap.Error(err))
	} else {
		r.ReplaceRooms(entity.RoomDirect, rooms)
	}
	if rooms, err := client.GroupRooms(ctx); err != nil {
		logger.Warn("initial group room list fetch failed", zap.Error(err))
	} else {
		r.ReplaceRooms(entity.RoomGroup, rooms)
	}
}

func registerLifecycle(
	lc fx.Lifecycle,
	p Params,
	cfg *config.Config,
	client *rest.Client,
	pushClient *push.Client,
	r *recon.Reconciler,
	sched *poll.Scheduler,
	sess *session.Session,
	lk *lock.Lock,
	rt *runtime,
	logger *zap.Logger,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			auth, err := client.Login(ctx, cfg.Auth.UserID, cfg.Auth.Password)
			if err != nil {
				return fmt.Errorf("login: %w", err)
			}
			sess.Begin(auth.UserID, auth.Name, auth.Token)
			logger.Info("logged in", zap.String("user", auth.UserID))

			// Reconciler first so nothing the transports publish is missed.
			r.Start(context.Background())

			bootstrapRooms(ctx, client, r, logger)

			sched.Start(context.Background(), sessionPolicies(cfg, client, r))

			// The notification topic covers the whole session; per-room
			// topics are subscribed by views when a room opens.
			rt.notifSub = pushClient.Subscribe(push.NotificationTopic(auth.UserID))

			return nil
		},
		OnStop: func(ctx context.Context) error {
			if rt.notifSub != nil {
				rt.notifSub.Close()
			}
			sched.Stop()
			r.Stop()
			if err := client.Logout(ctx); err != nil {
				logger.Warn("logout failed", zap.Error(err))
			}
			sess.End()
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("client stopped")
			return nil
		},
	})
}
