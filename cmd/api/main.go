package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/qubdrive/api/internal/config"
	"github.com/qubdrive/api/internal/infrastructure/dynamo"
	jwtinfra "github.com/qubdrive/api/internal/infrastructure/jwt"
	"github.com/qubdrive/api/internal/infrastructure/mail"
	"github.com/qubdrive/api/internal/infrastructure/sns"
	transporthttp "github.com/qubdrive/api/internal/transport/http"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment")
	}

	cfg := config.Load()

	// Bootstrap DynamoDB tables (creates them if they don't exist).
	dynamoClient := dynamo.NewClient(cfg)
	dynamo.Bootstrap(context.Background(), dynamoClient, cfg.DynamoTables)

	jwtProvider := jwtinfra.NewProvider(cfg)

	// SMTP notifier for OTP, welcome and security alert mail.
	notifier := mail.NewNotifier(cfg)

	// SNS SMS sender (optional — graceful fallback).
	var smsSender sns.SMSSender
	if sender, err := sns.NewSender(cfg); err == nil {
		smsSender = sender
	} else {
		log.Printf("WARN: SNS sender not available: %v", err)
	}

	deps := &transporthttp.Deps{
		UserRepo:          dynamo.NewUserRepo(dynamoClient, cfg.DynamoTables.Users),
		SessionRepo:       dynamo.NewSessionRepo(dynamoClient, cfg.DynamoTables.Sessions),
		OtpRepo:           dynamo.NewOtpRepo(dynamoClient, cfg.DynamoTables.OtpCodes),
		RegistrationRepo:  dynamo.NewRegistrationRepo(dynamoClient, cfg.DynamoTables.RegistrationFlows),
		PasswordResetRepo: dynamo.NewPasswordResetRepo(dynamoClient, cfg.DynamoTables.PasswordResetFlows),
		LoginAttemptRepo:  dynamo.NewLoginAttemptRepo(dynamoClient, cfg.DynamoTables.LoginAttempts),
		RevokedTokenRepo:  dynamo.NewRevokedTokenRepo(dynamoClient, cfg.DynamoTables.RevokedTokens),
		Notifier:          notifier,
		SMSSender:         smsSender,
		JWTProvider:       jwtProvider,
	}

	router := transporthttp.NewRouter(cfg, deps)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on :%s (env=%s)", cfg.AppPort, cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("forced shutdown: %v", err)
	}
	log.Println("Server stopped")
}
