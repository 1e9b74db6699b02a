package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"talentworth/internal/config"
	"talentworth/internal/db"
	"talentworth/internal/domain"
	"talentworth/internal/engine"
	"talentworth/internal/jobs"
	"talentworth/internal/llm"
	"talentworth/internal/migrate"
	"talentworth/internal/repo"
	"talentworth/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "tw",
	Short: "Talentworth CLI",
	Long: `Talentworth estimates the market value of a career profile.
It validates the profile, checks the premium entitlement, asks a language
model for a structured salary analysis, and records every request and
result in a local SQLite workspace.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("TALENTWORTH")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func registerCommands() {
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(profileCmd())
	rootCmd.AddCommand(tokenCmd())
	rootCmd.AddCommand(requestCmd())
	rootCmd.AddCommand(jobsCmd())
	rootCmd.AddCommand(logCmd())
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			cfg, err := config.Load(workspace)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if addr == "" {
				addr = cfg.Server.Addr
			}
			if basePath == "" {
				basePath = cfg.Server.BasePath
			}
			logger, closeLog := config.SetupLogger(cfg.Log.File, config.ParseLogLevel(cfg.Log.Level))
			defer closeLog()

			apiKey := cfg.Model.APIKey()
			if apiKey == "" {
				return fmt.Errorf("model API key not set; export %s", cfg.Model.APIKeyEnv)
			}
			jwtSecret := os.Getenv("TALENTWORTH_JWT_SECRET")
			if jwtSecret == "" {
				return fmt.Errorf("TALENTWORTH_JWT_SECRET is required for bearer auth")
			}

			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}

			model := llm.NewClient(cfg.Model, apiKey)
			e := engine.New(conn, cfg, model, logger)
			handler, err := server.New(server.Config{
				Engine:        e,
				BasePath:      basePath,
				AllowedOrigin: cfg.Server.AllowedOrigin,
				Auth:          server.AuthConfig{JWTSecret: jwtSecret, Logger: logger},
				Logger:        logger,
			})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			logger.Info("serving analysis API", "addr", addr, "base_path", basePath, "model", cfg.Model.Name)
			fmt.Printf("Serving Talentworth API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs)\n", addr, basePath, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (defaults to config)")
	cmd.Flags().StringVar(&basePath, "base-path", "", "API base path (defaults to config)")
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				fmt.Println("migrations applied")
				return nil
			})
		},
	}
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Inspect workspace config",
	}
	cfg.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show loaded config",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := config.Load(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			return printJSONOrTable(c)
		},
	})
	cfg.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate workspace config",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := config.Load(viper.GetString("workspace"))
			if err == nil {
				err = c.Validate()
			}
			if viper.GetBool("json") {
				return printJSON(map[string]any{"ok": err == nil, "error": fmt.Sprint(err)})
			}
			if err != nil {
				return err
			}
			fmt.Println("config OK")
			return nil
		},
	})
	return cfg
}

func profileCmd() *cobra.Command {
	p := &cobra.Command{
		Use:   "profile",
		Short: "Manage user profiles",
	}
	p.AddCommand(profileSetCmd())
	p.AddCommand(profileShowCmd())
	return p
}

func profileSetCmd() *cobra.Command {
	var id, name, email, subscription, expiresAt string
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Create or update a profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			switch subscription {
			case domain.SubscriptionFree, domain.SubscriptionPremium, domain.SubscriptionCancelled:
			default:
				return fmt.Errorf("--subscription must be one of free, premium, cancelled")
			}
			if expiresAt != "" {
				if _, err := time.Parse(time.RFC3339, expiresAt); err != nil {
					return fmt.Errorf("--expires-at must be RFC3339: %w", err)
				}
			}
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				now := time.Now().UTC().Format(time.RFC3339)
				profile := domain.Profile{
					ID:                 id,
					Name:               name,
					Email:              email,
					SubscriptionStatus: subscription,
					CreatedAt:          now,
					UpdatedAt:          now,
				}
				if existing, err := r.GetProfile(ctx, id); err == nil {
					profile.CreatedAt = existing.CreatedAt
					if name == "" {
						profile.Name = existing.Name
					}
					if email == "" {
						profile.Email = existing.Email
					}
				}
				if expiresAt != "" {
					profile.SubscriptionExpiresAt = &expiresAt
					started := now
					profile.SubscriptionStartedAt = &started
				}
				if err := r.UpsertProfile(ctx, profile); err != nil {
					return err
				}
				return printJSONOrTable(profile)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "user id")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().StringVar(&subscription, "subscription", domain.SubscriptionFree, "subscription status (free, premium, cancelled)")
	cmd.Flags().StringVar(&expiresAt, "expires-at", "", "subscription expiry (RFC3339, empty for none)")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func profileShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				p, err := r.GetProfile(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	return cmd
}

func tokenCmd() *cobra.Command {
	t := &cobra.Command{
		Use:   "token",
		Short: "Bearer tokens",
	}
	t.AddCommand(tokenIssueCmd())
	return t
}

func tokenIssueCmd() *cobra.Command {
	var userID string
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue a signed bearer token for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := os.Getenv("TALENTWORTH_JWT_SECRET")
			if secret == "" {
				return fmt.Errorf("TALENTWORTH_JWT_SECRET is required")
			}
			token, err := server.IssueToken(secret, userID, jwt.RegisteredClaims{
				IssuedAt:  jwt.NewNumericDate(time.Now()),
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			})
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(map[string]string{"token": token})
			}
			fmt.Println(token)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id (token subject)")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func requestCmd() *cobra.Command {
	r := &cobra.Command{
		Use:   "requests",
		Short: "Inspect analysis requests",
	}
	r.AddCommand(requestListCmd())
	r.AddCommand(requestShowCmd())
	return r
}

func requestListCmd() *cobra.Command {
	var userID string
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List analysis requests for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				reqs, err := r.ListAnalysisRequests(ctx, userID, limit)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(reqs)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Job", "Years", "Status", "Created"})
				for _, req := range reqs {
					tw.AppendRow(table.Row{req.ID, req.JobTitle, req.YearsOfExperience, req.Status, req.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id")
	cmd.Flags().IntVar(&limit, "limit", 50, "max rows")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func requestShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show an analysis request with its result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				req, err := r.GetAnalysisRequest(ctx, args[0])
				if err != nil {
					return err
				}
				out := map[string]any{"request": req}
				result, err := r.GetAnalysisResultByRequest(ctx, req.ID)
				if err == nil {
					out["result"] = result
				} else if !errors.Is(err, repo.ErrNotFound) {
					return err
				}
				return printJSONOrTable(out)
			})
		},
	}
	return cmd
}

func jobsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List supported job roles",
		RunE: func(cmd *cobra.Command, args []string) error {
			if viper.GetBool("json") {
				return printJSON(map[string]any{
					"roles":            jobs.Roles,
					"education_levels": jobs.EducationLevels,
				})
			}
			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendHeader(table.Row{"ID", "Label", "Category"})
			for _, role := range jobs.Roles {
				tw.AppendRow(table.Row{role.ID, role.Label, role.Category})
			}
			tw.Render()
			return nil
		},
	}
	return cmd
}

func logCmd() *cobra.Command {
	log := &cobra.Command{
		Use:   "log",
		Short: "Event log",
	}
	log.AddCommand(logTailCmd())
	return log
}

func logTailCmd() *cobra.Command {
	var n int
	var evtType, entityKind, entityID string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				events, err := r.LatestEvents(ctx, n, evtType, entityKind, entityID)
				if err != nil {
					return err
				}
				return printJSONOrTable(events)
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().StringVar(&evtType, "type", "", "event type filter")
	cmd.Flags().StringVar(&entityKind, "entity-kind", "", "entity kind")
	cmd.Flags().StringVar(&entityID, "entity-id", "", "entity id")
	return cmd
}

// --- helpers ---

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	return fn(ctx, repo.Repo{DB: conn})
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
