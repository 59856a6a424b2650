package main

import (
	"context"
	"log"
	"os"

	"cloud.google.com/go/firestore"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"google.golang.org/api/option"

	fbapp "firebase.google.com/go/v4"

	"talentline/internal/adapter/api"
	"talentline/internal/adapter/api/handler"
	apimiddleware "talentline/internal/adapter/api/middleware"
	"talentline/internal/adapter/api/router"
	"talentline/internal/adapter/repository"
	"talentline/internal/infrastructure/firebase"
	"talentline/internal/infrastructure/storage"
	"talentline/internal/infrastructure/websocket"
	"talentline/internal/usecase"
	"talentline/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()

	var opt option.ClientOption

	// Service account from environment variable (production) or file path
	// (local development).
	serviceAccountPath := ""
	if serviceAccountJSON := os.Getenv("FIREBASE_SERVICE_ACCOUNT_JSON"); serviceAccountJSON != "" {
		log.Printf("Using Firebase service account from environment variable")
		opt = option.WithCredentialsJSON([]byte(serviceAccountJSON))
	} else {
		serviceAccountPath = os.Getenv("FIREBASE_SERVICE_ACCOUNT_PATH")
		if serviceAccountPath == "" {
			serviceAccountPath = "./service-account.json"
		}

		if _, err := os.Stat(serviceAccountPath); os.IsNotExist(err) {
			log.Fatalf("Service account file does not exist: %s", serviceAccountPath)
		}

		log.Printf("Using Firebase service account from file: %s", serviceAccountPath)
		opt = option.WithCredentialsFile(serviceAccountPath)
	}

	firebaseApp, err := fbapp.NewApp(ctx, &fbapp.Config{ProjectID: cfg.FirebaseProject}, opt)
	if err != nil {
		log.Fatalf("Failed to initialize Firebase: %v", err)
	}

	authClient, err := firebaseApp.Auth(ctx)
	if err != nil {
		log.Fatalf("Failed to initialize Firebase Auth: %v", err)
	}
	firebaseAuthClient := firebase.NewFirebaseAuthClient(authClient)

	firestoreClient, err := firestore.NewClient(ctx, cfg.FirebaseProject, opt)
	if err != nil {
		log.Fatalf("Failed to create Firestore client: %v", err)
	}
	defer firestoreClient.Close()

	storageClient, err := storage.NewCloudStorageClient(ctx, cfg.StorageBucket, serviceAccountPath)
	if err != nil {
		log.Fatalf("Failed to initialize Cloud Storage: %v", err)
	}
	defer storageClient.Close()

	convRepo := repository.NewFirestoreConversationRepository(firestoreClient)
	actorRepo := repository.NewFirestoreActorRepository(firestoreClient)

	wsManager := websocket.NewManager()
	wsManager.Start(ctx)

	sessions := usecase.NewSessionManager(ctx, convRepo, wsManager)
	defer sessions.CloseAll()

	chatUseCase := usecase.NewChatUseCase(
		convRepo,
		actorRepo,
		storageClient,
		sessions,
		cfg.UploadTimeout,
		cfg.UploadRetries,
		cfg.MaxUploadBytes,
	)

	e := echo.New()

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	e.Validator = api.NewValidator()

	authMiddleware := apimiddleware.NewAuthMiddleware(authClient)

	chatHandler := handler.NewChatHandler(chatUseCase)
	actorHandler := handler.NewActorHandler(actorRepo, firebaseAuthClient)
	wsHandler := handler.NewWebSocketHandler(wsManager, authClient, chatUseCase, sessions)
	healthHandler := handler.NewHealthHandler()

	router.Setup(e, authMiddleware, chatHandler, actorHandler, wsHandler, healthHandler)

	log.Printf("Starting server on port %s...", cfg.ServerPort)
	e.Logger.Fatal(e.Start(":" + cfg.ServerPort))
}
