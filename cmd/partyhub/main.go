package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/viper"
	"github.com/velvetgames/partyhub/gameserver"
	"github.com/velvetgames/partyhub/pkg/logx"
	"go.uber.org/zap"
)

func main() {
	config, err := loadConfig()
	if err != nil {
		log.Fatalf("could not load config: %v", err)
	}

	server, err := gameserver.NewGameServer(config)
	if err != nil {
		log.Fatalf("could not build game server: %v", err)
	}

	httpServer := &http.Server{
		Addr:    config.ListenAddress,
		Handler: server.Router(),
	}

	go func() {
		logx.Logger.Info("listening", zap.String("address", config.ListenAddress))

		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logx.Logger.Fatal(err.Error(), zap.String("desc", "http server stopped"))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logx.Logger.Error(err.Error(), zap.String("desc", "could not shut down http server"))
	}

	if err := server.Shutdown(ctx); err != nil {
		logx.Logger.Error(err.Error(), zap.String("desc", "could not disconnect mongo"))
	}
}

func loadConfig() (gameserver.Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("/etc/partyhub")

	viper.SetDefault("listen_address", ":8080")
	viper.SetDefault("join_timeout", "10m")
	viper.SetDefault("production", false)
	viper.SetDefault("mongo.uri", "mongodb://localhost:27017")
	viper.SetDefault("mongo.database", "partyhub")
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", "6379")

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// Config file is optional; env vars and defaults suffice.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return gameserver.Config{}, err
		}
	}

	return gameserver.Config{
		ListenAddress: viper.GetString("listen_address"),
		JWTSecret:     viper.GetString("jwt_secret"),
		JoinTimeout:   viper.GetDuration("join_timeout"),
		Production:    viper.GetBool("production"),
		Mongo: gameserver.MongoConfig{
			URI:      viper.GetString("mongo.uri"),
			Database: viper.GetString("mongo.database"),
		},
		Publisher: gameserver.PublisherConfig{
			Redis: gameserver.RedisConfig{
				Host:     viper.GetString("redis.host"),
				Port:     viper.GetString("redis.port"),
				Password: viper.GetString("redis.password"),
			},
		},
		Router: gameserver.RouterConfig{
			AllowedOrigins: viper.GetStringSlice("allowed_origins"),
		},
	}, nil
}
