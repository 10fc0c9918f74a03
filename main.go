// Warden attaches to a Bedrock server as a regular player and moderates
// it from the inside: admission checks on every player it sees, session
// tracking, and a chat relay to Discord.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/go-echarts/statsview"
	"github.com/go-echarts/statsview/viewer"
	"github.com/rs/zerolog/log"
	"github.com/sandertv/gophertunnel/minecraft/auth"
	"golang.org/x/oauth2"

	"github.com/warden-ac/warden/clock"
	"github.com/warden-ac/warden/gate"
	"github.com/warden-ac/warden/logger"
	"github.com/warden-ac/warden/notify"
	"github.com/warden-ac/warden/player"
	"github.com/warden-ac/warden/settings"
	"github.com/warden-ac/warden/store"
	"github.com/warden-ac/warden/werror"
	"github.com/warden-ac/warden/worker"
	"github.com/warden-ac/warden/xbl"
)

// version is set at build time via -ldflags.
var version = "devel"

func main() {
	conf := settings.Parse()
	if conf.Version {
		fmt.Println("warden", version)
		return
	}
	logger.Setup(conf.Logger)

	if conf.Sentry.DSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:     conf.Sentry.DSN,
			Release: "warden@" + version,
		})
		if err != nil {
			log.Warn().Err(err).Msg("Sentry init failed, continuing without crash reporting")
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	if os.Getenv("PPROF_ENABLED") != "" {
		viewer.SetConfiguration(viewer.WithTheme(viewer.ThemeWesteros), viewer.WithAddr("localhost:8080"))
		mgr := statsview.New()
		go mgr.Start()
	}

	db, err := store.New(conf.Storage.Path)
	if err != nil {
		log.Fatal().Err(err).Str("path", conf.Storage.Path).Msg("Database open failed")
	}
	defer db.Close()

	clk := clock.New()
	tracker := player.NewTracker(clk, log.Logger, func(s player.Stat) {
		worker.Submit(func() {
			if err := db.UpsertStat(s); err != nil {
				log.Error().Err(err).Str("name", s.Name).Msg("Stat persist failed")
			}
		})
	})
	stats, err := db.LoadStats()
	if err != nil {
		log.Fatal().Err(err).Msg("Session stats load failed")
	}
	tracker.Seed(stats)

	tokens, err := tokenSource(conf.Connection.TokenFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Xbox Live sign-in failed")
	}

	rep := xbl.NewClient(xbl.NewTokenAuthorizer(tokens), log.Logger)
	notifier := notify.NewWebhook(map[string]string{
		notify.ChannelModeration: conf.Discord.ModerationURL,
		notify.ChannelChat:       conf.Discord.ChatURL,
		notify.ChannelStatus:     conf.Discord.StatusURL,
	}, log.Logger)

	g := gate.New(conf, db, rep, notifier, tracker, clk, log.Logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().
		Str("version", version).
		Str("remote", conf.Connection.RemoteAddress).
		Int("known_players", len(stats)).
		Msg("Warden starting")

	err = g.Run(ctx, tokens)

	// Fold every open session before the process goes away so playtime
	// accrued during this run is not lost. The fold only queues the final
	// writes; wait for them to land before the deferred close tears down
	// the database.
	tracker.OnShutdown()
	if !worker.Drain(5 * time.Second) {
		log.Warn().Msg("Shutdown flush timed out, session writes may be lost")
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("Supervisor exited")
	}
	log.Info().Msg("Shutdown complete")
}

// tokenSource loads the cached Live token, or runs the device-auth flow
// when no cache exists, and writes the refreshed token back.
func tokenSource(path string) (oauth2.TokenSource, error) {
	token := new(oauth2.Token)
	if data, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(data, token); err != nil {
			return nil, werror.Wrap("token cache", err)
		}
	} else {
		t, err := auth.RequestLiveToken()
		if err != nil {
			return nil, werror.Wrap("live auth", err)
		}
		token = t
	}

	src := auth.RefreshTokenSource(token)
	fresh, err := src.Token()
	if err != nil {
		return nil, werror.Wrap("token refresh", err)
	}
	data, err := json.Marshal(fresh)
	if err != nil {
		return nil, werror.Wrap("token encode", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("Token cache write failed")
	}
	return src, nil
}
