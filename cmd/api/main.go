package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Harshita-1964/Virtual-Learning-Platform/internal/capture"
	"github.com/Harshita-1964/Virtual-Learning-Platform/internal/classroom"
	"github.com/Harshita-1964/Virtual-Learning-Platform/internal/config"
	"github.com/Harshita-1964/Virtual-Learning-Platform/internal/httpmiddleware"
	"github.com/Harshita-1964/Virtual-Learning-Platform/internal/notify"
	"github.com/Harshita-1964/Virtual-Learning-Platform/internal/session"
	"github.com/Harshita-1964/Virtual-Learning-Platform/internal/store"
	"github.com/Harshita-1964/Virtual-Learning-Platform/internal/visionclient"
)

func main() {
	cfg := config.Load()

	// Set Gin mode based on environment
	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func runHTTP(cfg config.App) error {
	ctx := context.Background()

	repo, db, err := buildStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if db != nil {
			_ = db.Close()
		}
	}()

	redisClient := store.NewRedis(cfg.RedisAddr)

	if err := seedStore(ctx, cfg, repo); err != nil {
		return err
	}

	vision := visionclient.New(cfg.VisionServiceURL, cfg.VisionSkip)

	var bus notify.Bus
	if cfg.NotifyBackend == "memory" {
		bus = notify.NewInMemory(64)
	} else {
		bus = notify.NewRedisBus(redisClient.Client, "attention:completions")
	}

	// Camera source: a networked snapshot camera when configured, otherwise
	// frames pushed by the browser through /v1/sessions/frame.
	var opener capture.Opener
	var pushOpener *capture.PushOpener
	if cfg.CameraURL != "" {
		opener = capture.HTTPCameraOpener{URL: cfg.CameraURL}
		log.Println("camera source:", cfg.CameraURL)
	} else {
		pushOpener = capture.NewPushOpener()
		opener = pushOpener
		log.Println("camera source: client frame push")
	}

	machine := session.NewMachine(vision, repo, opener, bus, cfg.FrameInterval)
	defer machine.Close()

	poller := session.NewHealthPoller(vision, cfg.HealthPollInterval)
	poller.Start(ctx)
	defer poller.Stop()

	r := gin.New()

	// Recovery middleware
	r.Use(gin.Recovery())

	// Custom logger
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))

	// CORS middleware
	r.Use(corsMiddleware())

	// Security headers
	r.Use(securityHeaders())

	// Rate limiting
	r.Use(httpmiddleware.NewSimpleTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin).GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		redisHealthy := redisClient.Healthy(c.Request.Context())
		dbHealthy := db == nil || db.Client.PingContext(c.Request.Context()) == nil
		visionHealthy := poller.Available()
		status := http.StatusOK
		if !dbHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{
			"status": "ok",
			"redis":  redisHealthy,
			"db":     dbHealthy,
			"vision": visionHealthy,
		})
	})

	r.POST("/v1/users", func(c *gin.Context) {
		var req struct {
			Username   string `json:"username" binding:"required"`
			Email      string `json:"email" binding:"required,email"`
			Credential string `json:"credential" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		user, err := repo.CreateUser(c.Request.Context(), req.Username, req.Email, req.Credential)
		if err != nil {
			if errors.Is(err, classroom.ErrDuplicate) {
				c.JSON(http.StatusConflict, gin.H{"error": "username or email already taken"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, user)
	})

	r.GET("/v1/users/:id", func(c *gin.Context) {
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
			return
		}
		user, err := repo.GetUser(c.Request.Context(), id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if user == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		c.JSON(http.StatusOK, user)
	})

	r.GET("/v1/users/:id/subjects", func(c *gin.Context) {
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
			return
		}
		subjects, err := repo.GetEnrolledSubjectsByUserID(c.Request.Context(), id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"subjects": subjects})
	})

	r.GET("/v1/subjects", func(c *gin.Context) {
		subjects, err := repo.GetAllSubjects(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"subjects": subjects})
	})

	r.POST("/v1/subjects", func(c *gin.Context) {
		var req struct {
			Name        string `json:"name" binding:"required"`
			Code        string `json:"code" binding:"required"`
			FacultyName string `json:"faculty_name"`
			Schedule    string `json:"schedule"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		subject, err := repo.CreateSubject(c.Request.Context(), req.Name, req.Code, req.FacultyName, req.Schedule)
		if err != nil {
			if errors.Is(err, classroom.ErrDuplicate) {
				c.JSON(http.StatusConflict, gin.H{"error": "subject code already taken"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, subject)
	})

	r.POST("/v1/enrollments", func(c *gin.Context) {
		var req struct {
			UserID    int64 `json:"user_id" binding:"required"`
			SubjectID int64 `json:"subject_id" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		user, err := repo.GetUser(c.Request.Context(), req.UserID)
		if err == nil && user == nil {
			err = session.ErrUnknownUser
		}
		if err == nil {
			var subject *classroom.Subject
			subject, err = repo.GetSubject(c.Request.Context(), req.SubjectID)
			if err == nil && subject == nil {
				err = session.ErrUnknownSubject
			}
		}
		if err != nil {
			writeSessionError(c, err)
			return
		}
		enrollment, err := repo.EnrollUserInSubject(c.Request.Context(), req.UserID, req.SubjectID)
		if err != nil {
			if errors.Is(err, classroom.ErrDuplicate) {
				c.JSON(http.StatusConflict, gin.H{"error": "already enrolled"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, enrollment)
	})

	r.POST("/v1/sessions/start", func(c *gin.Context) {
		var req struct {
			UserID    int64 `json:"user_id" binding:"required"`
			SubjectID int64 `json:"subject_id" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		sessionID, err := machine.Start(c.Request.Context(), req.UserID, req.SubjectID)
		if err != nil {
			writeSessionError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"session_id": sessionID, "state": session.StateActive})
	})

	r.POST("/v1/sessions/frame", func(c *gin.Context) {
		if pushOpener == nil {
			c.JSON(http.StatusConflict, gin.H{"error": "server-side camera configured; frame push disabled"})
			return
		}
		var req struct {
			Frame string `json:"frame" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		src := pushOpener.Current()
		if src == nil {
			c.JSON(http.StatusConflict, gin.H{"error": "no active session"})
			return
		}
		src.Push(req.Frame)
		c.Status(http.StatusAccepted)
	})

	r.POST("/v1/sessions/stop", func(c *gin.Context) {
		result, err := machine.Stop(c.Request.Context())
		if err != nil {
			writeSessionError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	})

	r.GET("/v1/sessions/current", func(c *gin.Context) {
		c.JSON(http.StatusOK, machine.Snapshot())
	})

	r.GET("/v1/results", func(c *gin.Context) {
		userID, err := strconv.ParseInt(c.Query("user_id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "user_id required"})
			return
		}
		var results []classroom.TrackingResult
		if rawSubject := c.Query("subject_id"); rawSubject != "" {
			subjectID, err := strconv.ParseInt(rawSubject, 10, 64)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid subject_id"})
				return
			}
			results, err = repo.GetTrackingResultsByUserAndSubject(c.Request.Context(), userID, subjectID)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
		} else {
			results, err = repo.GetTrackingResultsByUserID(c.Request.Context(), userID)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"results": results, "latest": classroom.Latest(results)})
	})

	// Graceful shutdown
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Starting server on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Give outstanding requests 10 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Server exited")
	return nil
}

func buildStore(ctx context.Context, cfg config.App) (classroom.Store, *store.DB, error) {
	if cfg.StoreBackend == "memory" {
		return classroom.NewMemory(), nil, nil
	}
	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if err := store.Migrate(ctx, db.Client); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return classroom.NewPostgres(db.Client), db, nil
}

func seedStore(ctx context.Context, cfg config.App, repo classroom.Store) error {
	if cfg.SeedFile != "" {
		seed, err := classroom.LoadSeedFile(cfg.SeedFile)
		if err != nil {
			return err
		}
		if err := seed.Apply(ctx, repo); err != nil {
			return err
		}
		log.Println("seed applied:", cfg.SeedFile)
		return nil
	}
	if cfg.StoreBackend == "memory" {
		// Demo data so a fresh dev instance is usable immediately.
		if err := demoSeed().Apply(ctx, repo); err != nil {
			return err
		}
		log.Println("demo seed applied")
	}
	return nil
}

func demoSeed() *classroom.Seed {
	var seed classroom.Seed
	seed.Users = append(seed.Users, struct {
		Username   string `json:"username"`
		Email      string `json:"email"`
		Credential string `json:"credential"`
	}{Username: "student1", Email: "student1@example.edu", Credential: "changeme"})
	seed.Subjects = append(seed.Subjects, struct {
		Name        string `json:"name"`
		Code        string `json:"code"`
		FacultyName string `json:"faculty_name"`
		Schedule    string `json:"schedule"`
	}{Name: "Data Structures", Code: "CS201", FacultyName: "Dr. Rao", Schedule: "Mon/Wed 10:00"})
	seed.Enrollments = append(seed.Enrollments, struct {
		Username    string `json:"username"`
		SubjectCode string `json:"subject_code"`
	}{Username: "student1", SubjectCode: "CS201"})
	return &seed
}

func writeSessionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, session.ErrServiceUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	case errors.Is(err, session.ErrSessionActive), errors.Is(err, capture.ErrBusy):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, session.ErrNoActiveSession):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, session.ErrUnknownUser), errors.Is(err, session.ErrUnknownSubject):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, session.ErrNotEnrolled), errors.Is(err, capture.ErrAccessDenied):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, capture.ErrNoCamera):
		c.JSON(http.StatusFailedDependency, gin.H{"error": err.Error()})
	case errors.Is(err, session.ErrAggregateFetch), errors.Is(err, session.ErrPersistence):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// CORS middleware for browser requests
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// Security headers middleware
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		// Only add HSTS in production
		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
