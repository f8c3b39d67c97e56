package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/podgraph/backend/internal/queue"
	mid "github.com/podgraph/backend/internal/server/middleware"
	"github.com/podgraph/backend/internal/storage"
	"github.com/podgraph/backend/internal/util"
	"github.com/podgraph/backend/pkg/graph"
	"github.com/podgraph/backend/pkg/leaselock"
	"github.com/podgraph/backend/pkg/logger"
	"github.com/podgraph/backend/pkg/store"
	"github.com/podgraph/backend/pkg/store/memory"
	graphstorage "github.com/podgraph/backend/pkg/store/pgx"
	"github.com/podgraph/backend/pkg/youtube"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/go-playground/validator"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	pgxvec "github.com/pgvector/pgvector-go/pgx"
)

type CustomValidator struct {
	validator *validator.Validate
}

func (cv *CustomValidator) Validate(i any) error {
	if err := cv.validator.Struct(i); err != nil {
		return err
	}
	return nil
}

// New returns the echo instance serving the API for app.
func New(app *mid.App) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = &CustomValidator{validator: validator.New()}

	e.Use(mid.AppContextMiddleware(app))
	e.Use(middleware.CORS())
	e.Use(middleware.RequestLogger())
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("1M"))

	RegisterRoutes(e)

	return e
}

// NewPool connects to Postgres and registers the pgvector types on every
// connection.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}
	return pgxpool.NewWithConfig(ctx, cfg)
}

func Init() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	aiClient, err := util.NewAIClient()
	if err != nil {
		logger.Fatal("Failed to create AI client", "err", err)
	}
	graphClient, err := graph.NewGraphClient(graph.NewGraphClientParams{
		EmbeddingBatchSize: util.GetEnvInt("EMBED_BATCH_SIZE", store.DefaultEmbeddingBatchSize),
	})
	if err != nil {
		logger.Fatal("Failed to create graph client", "err", err)
	}
	yt := youtube.NewClient()

	app := &mid.App{
		AiClient:     aiClient,
		Graph:        graphClient,
		YouTube:      yt,
		MasterAPIKey: util.GetEnv("MASTER_API_KEY"),
		MasterUserID: util.GetEnv("MASTER_USER_ID"),
		DemoUserID:   util.GetEnv("DEMO_USER_ID"),
	}

	if authURL := util.GetEnv("AUTH_URL"); authURL != "" {
		k, err := keyfunc.NewDefault([]string{authURL + "/jwks"})
		if err != nil {
			logger.Fatal("Failed to load jwks keys", "err", err)
		}
		app.Keyfunc = k.Keyfunc
	} else {
		logger.Warn("AUTH_URL not set, only the master key and demo mode can authenticate")
	}

	switch util.GetEnvString("STORE", "postgres") {
	case "memory":
		logger.Warn("Using in-memory store, data is lost on shutdown")
		s := memory.NewGraphMemoryStorage()
		app.Store = s
		app.Publisher = queue.NewInlinePublisher(ctx, queue.IngestDeps{
			Store:            s,
			AI:               aiClient,
			Cache:            storage.NewMemoryTranscriptCache(),
			YouTube:          yt,
			Locker:           leaselock.NewLocal(),
			Graph:            graphClient,
			CaptionsLang:     util.GetEnvString("CAPTIONS_LANG", "en"),
			MaxCaptionTokens: util.GetEnvInt("CAPTIONS_MAX_TOKENS", 0),
		})
	default:
		databaseURL := util.GetEnv("DATABASE_URL")
		if err := RunMigrations(databaseURL, util.GetEnvString("MIGRATIONS_PATH", "migrations")); err != nil {
			logger.Fatal("Failed to migrate database", "err", err)
		}

		conn, err := NewPool(ctx, databaseURL)
		if err != nil {
			logger.Fatal("Failed to connect to database", "err", err)
		}
		defer conn.Close()
		app.Store = graphstorage.NewGraphDBStorageWithConnection(conn)

		que := queue.Init()
		defer que.Close()
		ch, err := que.Channel()
		if err != nil {
			logger.Fatal("Failed to open channel", "err", err)
		}
		defer ch.Close()
		if err := queue.SetupQueues(ch, []string{queue.IngestQueue}); err != nil {
			logger.Fatal("Failed to setup queues", "err", err)
		}
		app.Publisher = queue.NewChannelPublisher(ch)
	}

	e := New(app)

	go func() {
		port := util.GetEnvString("PORT", "8080")
		logger.Info("Starting server", "port", port)
		if err := e.Start(":" + port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed shutting down server", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to shutdown server", "err", err)
	}
	if p, ok := app.Publisher.(*queue.InlinePublisher); ok {
		p.Wait()
	}
}
