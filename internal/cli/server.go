package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"compliscore/internal/app"
	"compliscore/internal/auth"
	"compliscore/internal/config"
	"compliscore/internal/domain"
	"compliscore/internal/infra/memory"
	pgstore "compliscore/internal/infra/postgres"
	redisstore "compliscore/internal/infra/redis"
	"compliscore/internal/mail"
	"compliscore/internal/report"
	transport "compliscore/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the assessment server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	questionTTL := config.TTLDuration(cfg.Questions.TTL, 10*time.Minute)

	var (
		loader     redisstore.QuestionLoader
		questions  app.QuestionRepository
		admin      app.QuestionAdminStore
		progress   app.ProgressStore
		accounts   auth.AccountStore
		invalidate func()
	)
	if pool != nil {
		store := pgstore.NewQuestionStore(pool)
		loader = store
		admin = store
		progress = pgstore.NewProgressStore(pool)
		accounts = pgstore.NewAccountStore(pool)
	} else {
		log.Printf("no postgres configured, serving the built-in demo question bank")
		static := memory.NewStaticQuestionLoader(sampleQuestions())
		loader = static
		admin = static
		progress = memory.NewProgressStore()
		accounts = memory.NewAccountStore()
	}

	if redisClient != nil {
		cache := redisstore.NewQuestionCache(redisClient, loader, questionTTL)
		questions = cache
		invalidate = func() {
			if err := cache.Invalidate(context.Background()); err != nil {
				log.Printf("invalidate question cache: %v", err)
			}
		}
	} else {
		cache := memory.NewQuestionRepository(loader, questionTTL)
		questions = cache
		invalidate = cache.Invalidate
	}

	secret := cfg.Auth.Secret
	if secret == "" {
		log.Printf("auth secret not configured, using an insecure development secret")
		secret = "dev-secret-do-not-use"
	}
	authSvc := auth.NewService(accounts, []byte(secret), config.TTLDuration(cfg.Auth.TokenTTL, 24*time.Hour))

	renderer, err := report.NewRenderer()
	if err != nil {
		return err
	}
	exporter := report.NewPDFExporter(config.TTLDuration(cfg.Report.PDFTimeout, 30*time.Second))

	var mailer app.Mailer
	if cfg.SMTP.Host != "" {
		mailer = mail.New(mail.Config{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		})
	}

	assessments := app.NewAssessmentService(questions, progress)
	reports := app.NewReportService(progress, renderer, exporter, mailer)
	handler := transport.NewHandler(assessments, reports, authSvc, questions, admin, invalidate)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	handler.Register(mux)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // PDF export can be slow
	}

	go func() {
		log.Printf("starting assessment service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleQuestions provides a minimal demo bank; production deployments seed
// the real bank into postgres via the seed subcommand.
func sampleQuestions() []domain.Question {
	return []domain.Question{
		{
			ID: "pm-1", Text: "How do you store your passwords?",
			Category: "Password Management", Weight: 10,
			Audience: domain.AudienceBoth, Active: true, Version: 1,
			Options: []domain.Option{
				{Label: "a", Text: "In a password manager", Weight: 100},
				{Label: "b", Text: "In a note on my phone", Weight: 40},
				{Label: "c", Text: "I reuse one password everywhere", Weight: 0},
			},
		},
		{
			ID: "pm-2", Text: "Do you enable multi-factor authentication where available?",
			Category: "Password Management", Weight: 8,
			Audience: domain.AudienceBoth, Active: true, Version: 1,
			Options: []domain.Option{
				{Label: "a", Text: "Everywhere it is offered", Weight: 100},
				{Label: "b", Text: "Only on email and banking", Weight: 50},
				{Label: "c", Text: "Never", Weight: 0},
			},
		},
		{
			ID: "ph-1", Text: "What do you do with an unexpected email asking you to reset a password?",
			Category: "Phishing Awareness", Weight: 10,
			Audience: domain.AudienceBoth, Active: true, Version: 1,
			Options: []domain.Option{
				{Label: "a", Text: "Verify the sender through another channel", Weight: 100},
				{Label: "b", Text: "Click the link if it looks legitimate", Weight: 20},
				{Label: "c", Text: "Ignore all such emails", Weight: 60},
			},
		},
		{
			ID: "dp-1", Text: "How is sensitive company data shared with colleagues?",
			Category: "Data Protection", Weight: 12,
			Audience: domain.AudienceCompany, Active: true, Version: 1,
			Options: []domain.Option{
				{Label: "a", Text: "Encrypted, access-controlled storage", Weight: 100},
				{Label: "b", Text: "Email attachments", Weight: 30},
				{Label: "c", Text: "Personal cloud drives", Weight: 10},
			},
		},
		{
			ID: "ir-1", Text: "Who do you notify when you suspect a security incident?",
			Category: "Incident Response", Weight: 9,
			Audience: domain.AudienceCompany, Active: true, Version: 1,
			Options: []domain.Option{
				{Label: "a", Text: "The designated security contact immediately", Weight: 100},
				{Label: "b", Text: "My manager, eventually", Weight: 50},
				{Label: "c", Text: "Nobody, I handle it myself", Weight: 0},
			},
		},
	}
}
