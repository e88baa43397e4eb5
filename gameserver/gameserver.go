package gameserver

import (
	"context"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/velvetgames/partyhub/entities"
	"github.com/velvetgames/partyhub/handlers"
	"github.com/velvetgames/partyhub/pkg/logx"
	"github.com/velvetgames/partyhub/repositories"
	"github.com/velvetgames/partyhub/services"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// GameServer wires the session registry, game manager and protocol
// handlers into one servable unit.
type GameServer struct {
	router      *chi.Mux
	registry    *entities.Registry
	gameManager *services.GameManager
	mongoClient *mongo.Client
}

func NewGameServer(config Config) (*GameServer, error) {
	if config.Production {
		logx.NewProductionLogger()
	} else {
		logx.NewLogger()
	}

	mongoClient, err := mongo.Connect(options.Client().ApplyURI(config.Mongo.URI))
	if err != nil {
		return nil, err
	}

	userRepository := repositories.NewMongoUserRepository(
		mongoClient.Database(config.Mongo.Database),
	)

	authService := services.NewAuthService(userRepository, config.JWTSecret)

	publisherService := services.NewPublisherService(
		config.Publisher.Redis.Host,
		config.Publisher.Redis.Port,
		config.Publisher.Redis.Password,
	)

	registry := entities.NewRegistry()

	joinTimeout := config.JoinTimeout
	if joinTimeout <= 0 {
		joinTimeout = 10 * time.Minute
	}

	gameManager := services.NewGameManager(registry, publisherService, joinTimeout)

	router := chi.NewRouter()
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   config.Router.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	handlers.NewSocketHandler(router, authService, registry, gameManager, config.Router.AllowedOrigins)
	handlers.NewRoomHandler(router, gameManager)

	return &GameServer{
		router:      router,
		registry:    registry,
		gameManager: gameManager,
		mongoClient: mongoClient,
	}, nil
}

// Router returns the configured router.
func (gameServer *GameServer) Router() *chi.Mux {
	return gameServer.router
}

// Registry returns the session registry.
func (gameServer *GameServer) Registry() *entities.Registry {
	return gameServer.registry
}

// GameManager returns the room orchestrator.
func (gameServer *GameServer) GameManager() *services.GameManager {
	return gameServer.gameManager
}

// Shutdown releases external connections.
func (gameServer *GameServer) Shutdown(ctx context.Context) error {
	return gameServer.mongoClient.Disconnect(ctx)
}
