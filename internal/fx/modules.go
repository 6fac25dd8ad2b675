package fx

import (
	"context"
	"database/sql"
	"net/http"

	"valorant-hub/internal/api"
	"valorant-hub/internal/config"
	"valorant-hub/internal/database"
	"valorant-hub/internal/db"
	"valorant-hub/internal/httpapi"
	"valorant-hub/internal/hub"
	"valorant-hub/internal/logger"
	"valorant-hub/internal/repository"
	"valorant-hub/internal/service"
	"valorant-hub/internal/ws"

	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

func ProvideQueries(sqlDB *sql.DB) *db.Queries {
	return db.New(sqlDB)
}

func ProvideHub(lc fx.Lifecycle, log zerolog.Logger) *hub.Hub {
	h := hub.NewHub(context.Background(), hub.DefaultTimings(), log)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			h.Shutdown()
			return nil
		},
	})
	return h
}

func ProvideAccountVerifier(c *api.AccountClient) service.AccountVerifier {
	return c
}

func ProvideWSHandler(matchSvc *service.MatchService, log zerolog.Logger) http.HandlerFunc {
	return ws.Handler(matchSvc, log)
}

var Module = fx.Options(
	fx.Provide(logger.New),
	fx.Provide(config.Load),
	fx.Provide(database.New),
	fx.Provide(ProvideQueries),
	// repos
	fx.Provide(repository.NewUserRepository),
	fx.Provide(repository.NewQueueRepository),
	fx.Provide(repository.NewMatchRepository),
	fx.Provide(repository.NewHistoryRepository),
	// api client
	fx.Provide(api.NewAccountClient),
	fx.Provide(ProvideAccountVerifier),
	// hub
	fx.Provide(ProvideHub),
	// svc
	fx.Provide(service.NewMatchService),
	fx.Provide(service.NewQueueService),
	// http
	fx.Provide(httpapi.NewHandlers),
	fx.Provide(ProvideWSHandler),
)
