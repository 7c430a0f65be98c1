package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	appControllers "github.com/luoxh/trainsys/internal/app/controllers"
	appMigrations "github.com/luoxh/trainsys/internal/app/migrations"
	appRepos "github.com/luoxh/trainsys/internal/app/repositories"
	appRoutes "github.com/luoxh/trainsys/internal/app/routes"
	appServices "github.com/luoxh/trainsys/internal/app/services"
	"github.com/luoxh/trainsys/internal/config"
	"github.com/luoxh/trainsys/internal/db"
	appMiddleware "github.com/luoxh/trainsys/internal/middleware"
	pkgAuth "github.com/luoxh/trainsys/internal/pkg/auth"
	"github.com/luoxh/trainsys/internal/pkg/docgen"
	"github.com/luoxh/trainsys/internal/pkg/filestorage"
	"github.com/luoxh/trainsys/internal/pkg/logger"
	"github.com/luoxh/trainsys/internal/pkg/photo"
	"github.com/luoxh/trainsys/internal/pkg/wechat"
)

// Dependencies holds all the application dependencies
type Dependencies struct {
	StudentService    *appServices.StudentService
	ExportService     *appServices.ExportService
	AuthService       *appServices.AuthService
	AuthController    *appControllers.AuthController
	StudentController *appControllers.StudentController
	ExportController  *appControllers.ExportController
	ConfigController  *appControllers.ConfigController
	FileController    *appControllers.FileController
	AuthMiddleware    *appMiddleware.AuthMiddleware
	StudentRepository *appRepos.StudentRepository
	JWTService        *pkgAuth.JWTService
	FileStore         *filestorage.Store
	Logger            zerolog.Logger
}

// LoadConfigAndSetupLogger loads configuration and initializes the logger.
func LoadConfigAndSetupLogger() (*config.Config, zerolog.Logger, error) {
	configPath := filepath.Join("configs", "config.yaml")
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load configuration")
		return nil, zerolog.Logger{}, err
	}

	logLevel := logger.LogLevel(strings.ToLower(cfg.Logging.Level))
	prettyLog := strings.ToLower(cfg.Logging.Format) == "text"

	logger.Configure(logger.Config{
		Level:  logLevel,
		Pretty: prettyLog,
	})

	lgr := logger.WithFields(map[string]interface{}{"app": "trainsys"})
	lgr.Info().Str("logLevel", string(logLevel)).Str("logFormat", cfg.Logging.Format).Msg("Logger configured")
	return cfg, lgr, nil
}

// SetupDatabase opens the students database and brings its schema up to
// date before any request is served.
func SetupDatabase(cfg *config.Config, lgr zerolog.Logger) (*sql.DB, error) {
	dbPath := cfg.DatabasePath()
	lgr.Info().Str("path", dbPath).Msg("Opening students database...")

	database, err := db.NewSQLiteDB(dbPath)
	if err != nil {
		lgr.Error().Err(err).Msg("Failed to open database")
		return nil, err
	}

	lgr.Info().Msg("Running schema migration...")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	migrator := appMigrations.NewMigrator(database, dbPath, appMigrations.Options{})
	report, err := migrator.Run(ctx)
	if err != nil {
		lgr.Error().Err(err).Msg("Schema migration failed")
		database.Close()
		return nil, fmt.Errorf("schema migration failed: %w", err)
	}
	lgr.Info().Bool("rebuilt", report.Rebuilt).Msg("Schema migration complete")

	return database, nil
}

// BuildDependencies initializes repositories, services and controllers.
func BuildDependencies(cfg *config.Config, database *sql.DB, lgr zerolog.Logger) (*Dependencies, error) {
	deps := &Dependencies{Logger: lgr}

	store, err := filestorage.NewStore(cfg.Storage.BaseDir)
	if err != nil {
		lgr.Error().Err(err).Msg("Failed to initialize file storage")
		return nil, fmt.Errorf("failed to initialize file storage: %w", err)
	}
	deps.FileStore = store

	photoOpts := photo.Options{CascadePath: cfg.Imaging.CascadePath}
	if cfg.Imaging.MattingURL != "" {
		photoOpts.Matting = photo.NewHTTPMattingClient(cfg.Imaging.MattingURL)
	}
	photos := photo.NewProcessor(photoOpts)

	templateDir := cfg.Storage.TemplateDir
	if !filepath.IsAbs(templateDir) {
		templateDir = filepath.Join(cfg.Storage.BaseDir, templateDir)
	}
	docs := docgen.NewGenerator(templateDir)

	deps.JWTService = pkgAuth.NewJWTService(
		cfg.Auth.SecretKey,
		time.Duration(cfg.Auth.SessionHours)*time.Hour,
		time.Duration(cfg.Wechat.TokenHours)*time.Hour,
	)

	wechatClient := wechat.NewClient(cfg.Wechat.AppID, cfg.Wechat.Secret)
	if !wechatClient.Configured() {
		lgr.Warn().Msg("WeChat credentials not configured, mini-program login disabled")
	}

	deps.StudentRepository = appRepos.NewStudentRepository(database)

	deps.StudentService = appServices.NewStudentService(deps.StudentRepository, store, photos, docs)
	deps.ExportService = appServices.NewExportService(deps.StudentRepository)
	deps.AuthService = appServices.NewAuthService(cfg, deps.JWTService, wechatClient)

	deps.AuthMiddleware = appMiddleware.NewAuthMiddleware(deps.JWTService, cfg.Auth.APIKey)

	deps.AuthController = appControllers.NewAuthController(deps.AuthService)
	deps.StudentController = appControllers.NewStudentController(deps.StudentService)
	deps.ExportController = appControllers.NewExportController(deps.ExportService)
	deps.ConfigController = appControllers.NewConfigController()
	deps.FileController = appControllers.NewFileController(deps.StudentService, store)

	return deps, nil
}

// SetupRouter configures the Gin engine with middleware and routes.
func SetupRouter(cfg *config.Config, deps *Dependencies, lgr zerolog.Logger) *gin.Engine {
	if strings.ToLower(cfg.Server.Mode) == "production" {
		gin.SetMode(gin.ReleaseMode)
		lgr.Info().Msg("Setting Gin mode to release")
	} else {
		gin.SetMode(gin.DebugMode)
		lgr.Info().Msg("Setting Gin mode to debug")
	}

	router := gin.New()
	router.Use(appMiddleware.RequestLogger(), gin.Recovery())
	router.MaxMultipartMemory = cfg.MaxUploadBytes()

	appRoutes.SetupRouter(router,
		deps.AuthController,
		deps.StudentController,
		deps.ExportController,
		deps.ConfigController,
		deps.FileController,
		deps.AuthMiddleware,
	)

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong", "status": "success"})
	})

	return router
}
