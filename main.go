package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"litbase/config"
	"litbase/disambig"
	"litbase/models"
	"litbase/providers/pubmed"
	"litbase/readers/reach"
	"litbase/services"
	"litbase/store"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	statementsInsertedCounter prometheus.Counter
	refsCreatedCounter        prometheus.Counter
	groundingTierCounter      *prometheus.CounterVec
	readingsStoredCounter     prometheus.Counter
)

func init() {
	statementsInsertedCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "statements_inserted_total",
			Help: "Total number of statements inserted into the database.",
		},
	)
	refsCreatedCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "text_refs_upserted_total",
			Help: "Total number of text reference upserts handled.",
		},
	)
	groundingTierCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grounding_contexts_total",
			Help: "Grounding context lookups, labeled by the tier that served them.",
		},
		[]string{"tier"},
	)
	readingsStoredCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "readings_stored_total",
			Help: "Total number of reader outputs stored by the sweep.",
		},
	)
	prometheus.MustRegister(statementsInsertedCounter, refsCreatedCounter,
		groundingTierCounter, readingsStoredCounter)
}

func apiKeyAuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.APISecretKey == "" {
			c.Next()
			return
		}
		apiKey := c.GetHeader("X-API-KEY")
		if apiKey != cfg.APISecretKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Invalid API Key"})
			return
		}
		c.Next()
	}
}

func main() {
	logging, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logging.Sync()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("Config load error", zap.Error(err))
	}

	// Setup Database Connection
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		logging.Fatal("Failed to connect to database", zap.Error(err))
	}
	logging.Info("Successfully connected to statement database.")

	// Auto-Migration
	if gin.Mode() == gin.DebugMode {
		logging.Info("Debug mode detected. Dropping tables for fresh start.")
		db.Migrator().DropTable(&models.AgentRow{}, &models.StatementRow{}, &models.DBInfo{},
			&models.Reading{}, &models.TextContent{}, &models.TextRef{})
	}
	logging.Info("Running database auto-migration...")
	db.AutoMigrate(&models.TextRef{}, &models.TextContent{}, &models.Reading{},
		&models.DBInfo{}, &models.StatementRow{}, &models.AgentRow{})

	// Setup Stores
	refStore := store.NewRefStore(db, logging)
	contentStore := store.NewContentStore(db, logging)
	readingStore := store.NewReadingStore(db, logging)
	stmtStore := store.NewStmtStore(db, logging)

	// Setup Clients (Lese- und Disambiguierungs-Service sind optional)
	pubmedClient := pubmed.NewClient(cfg, logging)
	reachClient := reach.NewClient(cfg, logging)
	disambigClient := disambig.NewClient(cfg, logging)
	if !reachClient.Available() {
		logging.Info("No reading service configured. Reading sweep disabled.")
	}
	if !disambigClient.Available() {
		logging.Info("No disambiguation service configured. Disambiguation disabled.")
	}

	// Setup Services
	ingestService := services.NewIngestService(refStore, contentStore, logging)
	groundingService := services.NewGroundingService(cfg, refStore, contentStore, pubmedClient, disambigClient, logging)
	readingService := services.NewReadingService(cfg, contentStore, readingStore, reachClient, logging)

	// Setup Router
	router := gin.Default()
	router.Use(gin.Recovery())
	router.Use(apiKeyAuthMiddleware(cfg))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Setup Routes
	setupRefRoutes(router, refStore, ingestService, logging)
	setupAbstractRoutes(router, contentStore, logging)
	setupStatementRoutes(router, stmtStore, logging)
	setupGroundingRoutes(router, groundingService, logging)

	// Setup Cron
	cronScheduler := cron.New()
	cronScheduler.AddFunc(cfg.ReadingCronSchedule, func() {
		logging.Info("Running scheduled reading sweep...")
		count, err := readingService.RunSweep(context.Background())
		if err != nil {
			logging.Error("Reading sweep failed", zap.Error(err))
		} else {
			logging.Info("Reading sweep completed", zap.Int("new_readings", count))
			readingsStoredCounter.Add(float64(count))
		}
	})
	cronScheduler.Start()

	logging.Info("Starting server", zap.String("port", cfg.HTTPPort))
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil {
		logging.Fatal("Failed to run server", zap.Error(err))
	}
}

// setupRefRoutes konfiguriert die Endpoints der Identitäts-Registry.
func setupRefRoutes(router *gin.Engine, refs *store.RefStore, ingest *services.IngestService, log *zap.Logger) {
	rg := router.Group("/refs")

	// POST - Identifier-Satz einspielen (idempotent; Konflikt → 409)
	rg.POST("/", func(c *gin.Context) {
		var ids store.RefIdentifiers
		if err := c.ShouldBindJSON(&ids); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
		refID, err := refs.UpsertRef(c.Request.Context(), ids)
		if err != nil {
			switch {
			case errors.Is(err, store.ErrNoIdentifiers):
				c.JSON(http.StatusBadRequest, gin.H{"error": "at least one identifier required"})
			case errors.Is(err, store.ErrIdentityConflict):
				c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			default:
				log.Error("Ref upsert failed", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			}
			return
		}
		refsCreatedCounter.Inc()
		c.JSON(http.StatusOK, gin.H{"text_ref_id": refID})
	})

	// POST - Batch-Lookup pmid → text_ref_id; unbekannte PMIDs fehlen im Ergebnis
	rg.POST("/by-pmid", func(c *gin.Context) {
		var req struct {
			PMIDs []string `json:"pmids" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body. 'pmids' field is required."})
			return
		}
		found, err := refs.FindRefsByPmid(c.Request.Context(), req.PMIDs)
		if err != nil {
			log.Error("Batch pmid lookup failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"refs": found})
	})

	rg.GET("/by-pmcid/:pmcid", func(c *gin.Context) {
		refID, err := refs.FindRefByPmcid(c.Request.Context(), c.Param("pmcid"))
		if err != nil {
			if errors.Is(err, store.ErrRefNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "text ref not found"})
				return
			}
			log.Error("Pmcid lookup failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"text_ref_id": refID})
	})

	// POST - Identifier und Payload in einem Schritt (Ingestion-Pfad)
	rg.POST("/ingest", func(c *gin.Context) {
		var req struct {
			Identifiers store.RefIdentifiers `json:"identifiers"`
			Source      string               `json:"source" binding:"required"`
			Format      string               `json:"format" binding:"required"`
			TextType    string               `json:"text_type" binding:"required"`
			Text        string               `json:"text" binding:"required"`
			Replace     bool                 `json:"replace"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
		refID, contentID, err := ingest.IngestContent(c.Request.Context(), req.Identifiers,
			req.Source, req.Format, req.TextType, req.Text, req.Replace)
		if err != nil {
			switch {
			case errors.Is(err, store.ErrNoIdentifiers):
				c.JSON(http.StatusBadRequest, gin.H{"error": "at least one identifier required"})
			case errors.Is(err, store.ErrIdentityConflict):
				c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			case errors.Is(err, store.ErrDuplicateContent):
				c.JSON(http.StatusConflict, gin.H{"error": "content already exists for this source and format"})
			default:
				log.Error("Ingest failed", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			}
			return
		}
		refsCreatedCounter.Inc()
		c.JSON(http.StatusCreated, gin.H{"text_ref_id": refID, "text_content_id": contentID})
	})

	// POST - Payload gegen einen bestehenden Ref ablegen
	cg := router.Group("/content")
	cg.POST("/:ref_id", func(c *gin.Context) {
		refID, err := strconv.ParseUint(c.Param("ref_id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid ref id"})
			return
		}
		var req struct {
			Source   string `json:"source" binding:"required"`
			Format   string `json:"format" binding:"required"`
			TextType string `json:"text_type" binding:"required"`
			Text     string `json:"text" binding:"required"`
			Replace  bool   `json:"replace"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
		contentID, err := ingest.Content.PutContent(c.Request.Context(), uint(refID),
			req.Source, req.Format, req.TextType, req.Text)
		if err != nil {
			if errors.Is(err, store.ErrDuplicateContent) {
				if !req.Replace {
					c.JSON(http.StatusConflict, gin.H{"error": "content already exists for this source and format"})
					return
				}
				contentID, err = ingest.Content.ReplaceContent(c.Request.Context(), uint(refID),
					req.Source, req.Format, req.TextType, req.Text)
			}
			if err != nil {
				log.Error("Content ingest failed", zap.Uint64("text_ref_id", refID), zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
				return
			}
		}
		c.JSON(http.StatusCreated, gin.H{"text_content_id": contentID})
	})
}

// setupAbstractRoutes konfiguriert den Batch-Abruf gespeicherter Abstracts.
func setupAbstractRoutes(router *gin.Engine, content *store.ContentStore, log *zap.Logger) {
	rg := router.Group("/abstracts")

	rg.POST("/query", func(c *gin.Context) {
		var req struct {
			PMIDs []string `json:"pmids" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body. 'pmids' field is required."})
			return
		}
		abstracts, err := content.GetAbstractsByPmid(c.Request.Context(), req.PMIDs)
		if err != nil {
			log.Error("Abstract query failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, abstracts)
	})
}

// setupStatementRoutes konfiguriert Batch- und Statement-Endpoints.
func setupStatementRoutes(router *gin.Engine, stmts *store.StmtStore, log *zap.Logger) {
	rg := router.Group("/batches")

	rg.POST("/", func(c *gin.Context) {
		var req struct {
			SourceName string `json:"source_name" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body. 'source_name' field is required."})
			return
		}
		batchID, err := stmts.CreateBatch(c.Request.Context(), req.SourceName)
		if err != nil {
			log.Error("Batch creation failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"batch_id": batchID})
	})

	// POST - Statements einfügen; jedes Statement committet für sich,
	// fehlgeschlagene werden übersprungen und gezählt
	rg.POST("/:id/statements", func(c *gin.Context) {
		batchID, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid batch id"})
			return
		}
		var req struct {
			Statements []*models.Statement `json:"statements" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body. 'statements' field is required."})
			return
		}
		inserted, err := stmts.InsertStatements(c.Request.Context(), uint(batchID), req.Statements)
		if err != nil {
			log.Error("Statement insert failed", zap.Uint64("batch_id", batchID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		statementsInsertedCounter.Add(float64(len(inserted)))
		c.JSON(http.StatusOK, gin.H{
			"inserted": len(inserted),
			"skipped":  len(req.Statements) - len(inserted),
			"ids":      inserted,
		})
	})

	router.GET("/statements", func(c *gin.Context) {
		dbName := c.Query("db_name")
		dbID := c.Query("db_id")
		if dbName == "" || dbID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "db_name and db_id query parameters are required"})
			return
		}
		results, err := stmts.SelectStatementsByAgent(c.Request.Context(), dbName, dbID)
		if err != nil {
			log.Error("Statement query failed",
				zap.String("db_name", dbName), zap.String("db_id", dbID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, results)
	})
}

// setupGroundingRoutes konfiguriert Kontext-Abruf und Disambiguierung.
func setupGroundingRoutes(router *gin.Engine, grounding *services.GroundingService, log *zap.Logger) {
	rg := router.Group("/grounding")

	// POST - bester verfügbarer Text zur Provenienz, mit Stufen-Label
	rg.POST("/context", func(c *gin.Context) {
		var ev models.Evidence
		if err := c.ShouldBindJSON(&ev); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
		text, tier := grounding.GetTextForGrounding(c.Request.Context(), ev)
		groundingTierCounter.WithLabelValues(tier).Inc()
		c.JSON(http.StatusOK, gin.H{"text": text, "tier": tier})
	})

	rg.POST("/disambiguate", func(c *gin.Context) {
		var stmt models.Statement
		if err := c.ShouldBindJSON(&stmt); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
		applied := 0
		for _, agent := range stmt.Agents {
			if agent == nil {
				continue
			}
			if grounding.DisambiguateAgent(c.Request.Context(), &stmt, agent) {
				applied++
			}
		}
		c.JSON(http.StatusOK, gin.H{"statement": stmt, "applied": applied})
	})
}
