package main

import (
	"context"
	"os"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/banddude/voiceid/config"
	"github.com/banddude/voiceid/internal/api/handlers"
	"github.com/banddude/voiceid/internal/api/middleware"
	"github.com/banddude/voiceid/internal/api/routes"
	"github.com/banddude/voiceid/internal/cache"
	"github.com/banddude/voiceid/internal/logger"
	"github.com/banddude/voiceid/internal/providers/diarize"
	"github.com/banddude/voiceid/internal/providers/embed"
	"github.com/banddude/voiceid/internal/providers/llm"
	mongorepo "github.com/banddude/voiceid/internal/repositories/mongo"
	pgrepo "github.com/banddude/voiceid/internal/repositories/postgres"
	"github.com/banddude/voiceid/internal/services"
	"github.com/banddude/voiceid/internal/speakerid"
	"github.com/banddude/voiceid/internal/storage"
	"github.com/banddude/voiceid/internal/vectorindex"
	"github.com/banddude/voiceid/internal/workers"
)

func main() {
	_ = godotenv.Load()
	log := logger.New()
	ctx := context.Background()

	if err := config.InitPostgres(); err != nil {
		log.WithError(err).Fatal("PostgreSQL init failed")
	}
	if err := config.MigratePostgres(); err != nil {
		log.WithError(err).Fatal("PostgreSQL migration failed")
	}
	log.Info("PostgreSQL connected")

	if err := config.InitMongo(); err != nil {
		log.WithError(err).Fatal("MongoDB init failed")
	}
	if err := config.EnsureMongoIndexes(); err != nil {
		log.WithError(err).Fatal("MongoDB index creation failed")
	}
	log.Info("MongoDB connected")

	if err := config.InitRedis(); err != nil {
		log.WithError(err).Fatal("Redis init failed")
	}
	log.Info("Redis connected")

	store, err := newStore(ctx)
	if err != nil {
		log.WithError(err).Fatal("storage init failed")
	}

	embedder := embed.NewHTTPProvider(os.Getenv("EMBED_API_URL"), os.Getenv("EMBED_API_KEY"))

	diarizer, err := diarize.NewGoogleSpeech(ctx)
	if err != nil {
		log.WithError(err).Fatal("speech client init failed")
	}
	defer diarizer.Close()

	var titler llm.Provider
	if project := os.Getenv("VERTEX_PROJECT_ID"); project != "" {
		titler, err = llm.NewVertexGemini(ctx, project, os.Getenv("VERTEX_LOCATION"), os.Getenv("VERTEX_MODEL"))
		if err != nil {
			log.WithError(err).Fatal("vertex client init failed")
		}
		defer titler.Close()
	}

	index := vectorindex.NewPGIndex(config.PostgresDB)
	pipeline := speakerid.New(embedder, index, log, speakerid.Config{
		MatchThreshold:      envFloat("MATCH_THRESHOLD"),
		AutoUpdateThreshold: envFloat("AUTO_UPDATE_THRESHOLD"),
		Workers:             envInt("MATCH_WORKERS"),
	})

	convoRepo := pgrepo.NewConversationRepo(config.PostgresDB)
	uttRepo := pgrepo.NewUtteranceRepo(config.PostgresDB)
	speakerRepo := pgrepo.NewSpeakerRepo(config.PostgresDB)
	userRepo := pgrepo.NewUserRepo(config.PostgresDB)
	jobRepo := mongorepo.NewJobRepo(config.MongoClient.Database(config.MongoDBName()))

	redisCache := cache.NewRedisCache(config.RedisClient)

	convoSvc := services.NewConversationService(convoRepo, uttRepo, jobRepo, store, redisCache, config.RedisClient)
	speakerSvc := services.NewSpeakerService(speakerRepo, uttRepo, index, redisCache)
	refSvc := services.NewReferenceService(embedder, pipeline.Enroller(), index, speakerRepo, redisCache)
	authSvc := services.NewAuthService(userRepo, os.Getenv("JWT_SECRET"), os.Getenv("JWT_ISSUER"))

	pool := &workers.PipelineWorkerPool{
		Redis:      config.RedisClient,
		NumWorkers: envInt("PIPELINE_WORKERS"),
		Jobs:       jobRepo,
		Convos:     convoRepo,
		Utterances: uttRepo,
		Speakers:   speakerRepo,
		Store:      store,
		Diarizer:   diarizer,
		Pipeline:   pipeline,
		LLM:        titler,
		Cache:      redisCache,
		Logger:     log,
		Stream:     services.PipelineStream,
	}
	if err := pool.Start(ctx); err != nil {
		log.WithError(err).Fatal("worker pool start failed")
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(log))

	routes.RegisterRoutes(r, routes.Deps{
		Auth:         handlers.NewAuthHandler(authSvc),
		Conversation: handlers.NewConversationHandler(convoSvc),
		Speaker:      handlers.NewSpeakerHandler(speakerSvc),
		Utterance:    handlers.NewUtteranceHandler(speakerSvc),
		Reference:    handlers.NewReferenceHandler(refSvc),
		WS:           handlers.NewWSHandler(convoSvc, config.RedisClient),
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	if err := r.Run(":" + port); err != nil {
		log.WithError(err).Fatal("server stopped")
	}
}

// newStore picks the object-storage backend from STORAGE_BACKEND: "s3" or
// "gcs" (default).
func newStore(ctx context.Context) (storage.Store, error) {
	switch os.Getenv("STORAGE_BACKEND") {
	case "s3":
		return storage.NewS3Store(ctx, os.Getenv("S3_BUCKET"), os.Getenv("AWS_REGION"))
	default:
		return storage.NewGCSStore(ctx, os.Getenv("GCS_BUCKET"), os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
}

func envFloat(name string) float64 {
	v, _ := strconv.ParseFloat(os.Getenv(name), 64)
	return v
}

func envInt(name string) int {
	v, _ := strconv.Atoi(os.Getenv(name))
	return v
}
