package cli

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"compliscore/internal/auth"
	"compliscore/internal/config"
	"compliscore/internal/domain"
	pgstore "compliscore/internal/infra/postgres"
)

// NewSeedCmd loads a YAML question bank into postgres and optionally creates
// the admin account from config. Seeding is an explicit step, not something
// the server reconciles at startup.
func NewSeedCmd(configPath *string) *cobra.Command {
	var bankPath string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed the question bank (and admin account) into postgres",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd.Context(), *configPath, bankPath)
		},
	}
	cmd.Flags().StringVar(&bankPath, "file", "config/questions.yaml", "path to the YAML question bank")
	return cmd
}

type seedOption struct {
	Label  string  `yaml:"label"`
	Text   string  `yaml:"text"`
	Weight float64 `yaml:"weight"`
}

type seedQuestion struct {
	ID       string       `yaml:"id"`
	Text     string       `yaml:"text"`
	Category string       `yaml:"category"`
	Weight   float64      `yaml:"weight"`
	Audience string       `yaml:"audience"`
	Active   *bool        `yaml:"active"`
	Options  []seedOption `yaml:"options"`
}

func runSeed(ctx context.Context, configPath, bankPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Postgres.URL == "" {
		return fmt.Errorf("postgres url not configured")
	}
	if err := runMigrationsWithConfig(ctx, cfg); err != nil {
		return err
	}

	data, err := os.ReadFile(bankPath)
	if err != nil {
		return err
	}
	var bank []seedQuestion
	if err := yaml.Unmarshal(data, &bank); err != nil {
		return fmt.Errorf("parse question bank: %w", err)
	}

	pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	store := pgstore.NewQuestionStore(pool)
	for _, sq := range bank {
		question := domain.Question{
			ID:       sq.ID,
			Text:     sq.Text,
			Category: sq.Category,
			Weight:   sq.Weight,
			Audience: domain.Audience(sq.Audience),
			Active:   sq.Active == nil || *sq.Active,
		}
		for _, opt := range sq.Options {
			question.Options = append(question.Options, domain.Option{
				Label:  opt.Label,
				Text:   opt.Text,
				Weight: opt.Weight,
			})
		}
		if err := question.Validate(); err != nil {
			return fmt.Errorf("question %q: %w", sq.ID, err)
		}
		if err := store.UpsertQuestion(ctx, question); err != nil {
			return err
		}
	}
	log.Printf("seeded %d questions from %s", len(bank), bankPath)

	if cfg.Admin.Email != "" && cfg.Admin.Password != "" {
		if err := seedAdmin(ctx, cfg, pool); err != nil {
			return err
		}
	}
	return nil
}

func seedAdmin(ctx context.Context, cfg config.Config, pool *pgxpool.Pool) error {
	accounts := pgstore.NewAccountStore(pool)
	secret := cfg.Auth.Secret
	if secret == "" {
		secret = "dev-secret-do-not-use"
	}
	svc := auth.NewService(accounts, []byte(secret), 0)
	result, err := svc.RegisterAdmin(ctx, cfg.Admin.Email, cfg.Admin.Name, cfg.Admin.Password)
	if errors.Is(err, domain.ErrEmailTaken) {
		log.Printf("admin account %s already exists", cfg.Admin.Email)
		return nil
	}
	if err != nil {
		return err
	}
	log.Printf("created admin account %s (%s)", cfg.Admin.Email, result.Principal.UserID)
	return nil
}
