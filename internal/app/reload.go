package app

import (
	"context"

	"github.com/brianly1003/stockchat/internal/config"
	"github.com/rs/zerolog/log"
)

// startConfigWatcher follows the config file, if one was loaded.
func (a *App) startConfigWatcher(ctx context.Context) {
	if a.cfg.File == "" {
		log.Debug().Msg("no config file in use, hot reload disabled")
		return
	}

	w, err := config.NewWatcher(a.cfg.File, config.DefaultDebounce, a.applyConfig)
	if err != nil {
		log.Warn().Err(err).Msg("failed to watch config file, hot reload disabled")
		return
	}
	go w.Run(ctx)

	log.Info().Str("path", a.cfg.File).Msg("watching config file for changes")
}

// applyConfig swaps in the parts of cfg that can change at runtime. Only the
// credential table is live; everything else needs a restart.
func (a *App) applyConfig(cfg *config.Config) {
	a.auth.SetUsers(usersFromConfig(cfg.Auth.Users))

	log.Info().Int("users", a.auth.UserCount()).Msg("credential table reloaded")

	if cfg.Server.Host != a.cfg.Server.Host || cfg.Server.Port != a.cfg.Server.Port ||
		cfg.Publisher != a.cfg.Publisher || cfg.Hubs != a.cfg.Hubs || cfg.Auth.JWTKey != a.cfg.Auth.JWTKey {
		log.Warn().Msg("settings other than auth.users changed on disk; restart to apply them")
	}
}
