package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"feelings/api/middleware"
	"feelings/api/routes"
	"feelings/config"
	"feelings/db"
	"feelings/services"

	"github.com/gin-gonic/gin"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "config.yaml", "Path to the configuration file")
	flag.Parse()

	err := config.LoadConfig(configPath)
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}
	log.Println("Starting server...")

	err = db.ConnectDB()
	if err != nil {
		panic("Failed to connect to the database: " + err.Error())
	}

	ctx := context.Background()

	if err := services.InitRedis(); err != nil {
		log.Printf("Redis unavailable, feed cache disabled: %v", err)
	} else {
		services.QueueServiceInstance.StartWorkers(ctx)
	}

	if err := services.InitRabbitMQ(); err != nil {
		log.Printf("RabbitMQ unavailable, broadcasts stay instance-local: %v", err)
	} else {
		queueName := fmt.Sprintf("feed_broadcasts_%s", config.AppConfig.Backend.Host)
		if err := services.StartBroadcastConsumer(ctx, queueName); err != nil {
			log.Printf("Failed to start broadcast consumer: %v", err)
		}
		defer services.CloseRabbitMQ()
	}

	router := gin.Default()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.PrometheusMiddleware("feelings"))

	routes.PublicApi(router)

	addr := fmt.Sprintf(":%d", config.AppConfig.Backend.Port)
	if config.AppConfig.Backend.Port == 0 {
		addr = ":8080"
	}
	if err := router.Run(addr); err != nil {
		panic(err)
	}
}
