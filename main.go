package main

import (
	"context"
	"crypto/tls"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"boardsync/api"
	"boardsync/board"
	"boardsync/client"
	"boardsync/localstore"
	"boardsync/proposal"
)

func main() {
	_ = godotenv.Load()

	if dbg, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil && dbg {
		log.SetLevel(log.DebugLevel)
	}
	logger := log.New()
	logger.SetLevel(log.GetLevel())

	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			logger.WithError(err).Warn("tracer provider shutdown")
		}
	}()

	boardAPI := newBoardClient(logger)
	store := newLocalStore(logger)

	cache := board.NewEntityCache()
	if statusID := os.Getenv("DEFAULT_STATUS_ID"); statusID != "" {
		settings := cache.Settings()
		settings.DefaultStatusID = statusID
		cache.ReplaceSettings(settings)
	}

	prefs := board.NewPreferenceSynchronizer(boardAPI, store, logger)
	prefs.WatchSettings(cache)
	prefs.EnsureIdentity(context.Background(), os.Getenv("BOARD_USER_ID"))

	refreshCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
	if err := board.RefreshWorkspace(refreshCtx, boardAPI, cache); err != nil {
		logger.WithError(err).Error("initial workspace refresh failed")
	}
	cancel()

	banner := board.NewBanner()
	eng := api.Engine{
		Cache:    cache,
		View:     board.NewView(cache, prefs),
		Prefs:    prefs,
		Importer: board.NewImporter(cache, boardAPI, logger),
		Tracker:  board.NewRequestTracker(banner),
		Banner:   banner,
		Cards:    boardAPI,
		Analyzer: newAnalyzer(logger),
	}

	e := echo.New()
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, "X-User-ID"},
	}))
	e.Use(api.GzipRequestMiddleware())

	api.Register(e, eng, logger)

	listenAddr := ":8080"
	if val := os.Getenv("LISTEN_ADDR"); val != "" {
		listenAddr = val
	}

	e.Logger.Fatal(e.Start(listenAddr))
}

// newBoardClient picks the Board API implementation: the REST client
// when BOARD_API_BASE_URL is set, otherwise direct table storage.
func newBoardClient(logger *log.Logger) client.API {
	if base := os.Getenv("BOARD_API_BASE_URL"); base != "" {
		logger.WithField("base_url", base).Info("using http board client")
		h := client.NewHTTP(base)
		if token := os.Getenv("BOARD_API_TOKEN"); token != "" {
			h = h.WithAuthHeader("Bearer " + token)
		}
		return h
	}

	connStr := os.Getenv("STORAGE_CONNECTION_STRING")
	cardsTable := os.Getenv("CARDS_TABLE")
	configTable := os.Getenv("CONFIG_TABLE")
	preferencesTable := os.Getenv("PREFERENCES_TABLE")
	eventsQueue := os.Getenv("EVENTS_QUEUE")
	boardID := os.Getenv("BOARD_ID")
	if connStr == "" || cardsTable == "" || configTable == "" || preferencesTable == "" || eventsQueue == "" || boardID == "" {
		log.Fatal("missing board client config: set BOARD_API_BASE_URL or the storage variables")
	}
	tables, err := client.NewTables(connStr, cardsTable, configTable, preferencesTable, eventsQueue, boardID)
	if err != nil {
		log.Fatalf("table storage: %v", err)
	}
	logger.WithField("board_id", boardID).Info("using table storage board client")
	return tables
}

// newLocalStore picks the preference cache backend: Redis when
// configured, an embedded SQLite file otherwise.
func newLocalStore(logger *log.Logger) localstore.Store {
	if redisConn := os.Getenv("REDIS_CONNECTION_STRING"); redisConn != "" {
		redisOpts, err := redis.ParseURL(redisConn)
		if err != nil {
			parts := strings.Split(redisConn, ",")
			redisOpts = &redis.Options{Addr: parts[0]}
			for _, p := range parts[1:] {
				kv := strings.SplitN(p, "=", 2)
				if len(kv) != 2 {
					continue
				}
				switch strings.ToLower(kv[0]) {
				case "password":
					redisOpts.Password = kv[1]
				case "ssl":
					if strings.ToLower(kv[1]) == "true" {
						redisOpts.TLSConfig = &tls.Config{}
					}
				}
			}
		}
		ttl := time.Duration(0)
		if v := os.Getenv("LOCAL_STORE_TTL"); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil || d <= 0 {
				log.Fatalf("invalid LOCAL_STORE_TTL: %v", err)
			}
			ttl = d
		}
		logger.Info("using redis preference store")
		return localstore.NewRedis(redis.NewClient(redisOpts), ttl)
	}

	path := os.Getenv("LOCAL_STORE_PATH")
	if path == "" {
		path = "boardsync.db"
	}
	store, err := localstore.OpenSQLite(path)
	if err != nil {
		log.Fatalf("local store: %v", err)
	}
	logger.WithField("path", path).Info("using sqlite preference store")
	return store
}

func newAnalyzer(logger *log.Logger) api.Analyzer {
	cfg := proposal.Config{
		BaseURL: os.Getenv("OPENAI_BASE_URL"),
		APIKey:  os.Getenv("OPENAI_API_KEY"),
		Model:   os.Getenv("OPENAI_MODEL"),
	}
	if v := os.Getenv("OPENAI_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			log.Fatalf("invalid OPENAI_TIMEOUT: %v", err)
		}
		cfg.Timeout = d
	}
	return proposal.NewAnalyzer(cfg, logger)
}
