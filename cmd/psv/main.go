package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"prescreen/internal/config"
	"prescreen/internal/db"
	"prescreen/internal/domain"
	"prescreen/internal/engine"
	"prescreen/internal/migrate"
	"prescreen/internal/repo"
	"prescreen/internal/server"
	"prescreen/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "psv",
	Short: "Prescreen CLI",
	Long: `Prescreen persists project intake forms and drives the pre-screening
review workflow: one process instance per project, exactly-once lifecycle
events, and a fixed set of decision payload records evaluated for
completeness.

Without a configured backend, a local SQLite workspace store is used.`,
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
	_ = godotenv.Load()
	viper.SetEnvPrefix("PRESCREEN")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("backend-url", "", "backend base URL (overrides config)")
	rootCmd.PersistentFlags().String("api-key", "", "backend API key (overrides config)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("backend-url", rootCmd.PersistentFlags().Lookup("backend-url"))
	_ = viper.BindPFlag("api-key", rootCmd.PersistentFlags().Lookup("api-key"))
}

func registerCommands() {
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(projectCmd())
	rootCmd.AddCommand(decisionCmd())
	rootCmd.AddCommand(elementsCmd())
	rootCmd.AddCommand(serveCmd())
}

// loadConfig merges the workspace config with env/flag overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadOptional(viper.GetString("workspace"))
	if err != nil {
		return nil, err
	}
	if v := viper.GetString("backend-url"); v != "" {
		cfg.Backend.BaseURL = v
	}
	if v := viper.GetString("api-key"); v != "" {
		cfg.Backend.APIKey = v
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// buildEngine wires the engine to the configured gateway: the REST backend
// when one is configured, otherwise the local workspace store.
func buildEngine(ctx context.Context) (engine.Engine, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return engine.Engine{}, nil, err
	}
	stamp := store.Stamp{Source: cfg.Process.Source}
	if cfg.Remote() {
		client, err := store.NewREST(cfg.Backend.BaseURL, cfg.Backend.APIKey, stamp)
		if err != nil {
			return engine.Engine{}, nil, err
		}
		e := engine.New(client)
		e.ProcessModel = cfg.Process.Model
		return e, func() {}, nil
	}
	conn, err := openLocal(ctx, cfg)
	if err != nil {
		return engine.Engine{}, nil, err
	}
	e := engine.New(repo.Repo{DB: conn, Stamp: stamp})
	e.ProcessModel = cfg.Process.Model
	return e, func() { conn.Close() }, nil
}

func openLocal(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return nil, err
	}
	if err := migrate.Migrate(conn); err != nil {
		conn.Close()
		return nil, err
	}
	r := repo.Repo{DB: conn}
	if err := r.SeedDecisionElements(ctx, cfg.Process.Model, engine.BuilderTitles()); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{Use: "config", Short: "Manage configuration"}
	cfg.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write a starter prescreen.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	})
	return cfg
}

func projectCmd() *cobra.Command {
	prj := &cobra.Command{Use: "project", Short: "Manage project snapshots"}
	prj.AddCommand(projectSaveCmd())
	return prj
}

func projectSaveCmd() *cobra.Command {
	var formPath, geoPath string
	var projectID int64
	cmd := &cobra.Command{
		Use:   "save",
		Short: "Save a project snapshot from a form file",
		RunE: func(cmd *cobra.Command, args []string) error {
			var form domain.FormData
			if err := readJSONFile(formPath, &form); err != nil {
				return err
			}
			var geo domain.GeospatialResults
			if geoPath != "" {
				if err := readJSONFile(geoPath, &geo); err != nil {
					return err
				}
			}
			in := engine.SaveInput{Form: form, Geo: geo}
			if cmd.Flags().Changed("project") {
				in.ProjectID = &projectID
			}
			e, cleanup, err := buildEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()
			res, err := e.SaveProjectSnapshot(cmd.Context(), in)
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(res)
			}
			fmt.Printf("project %d saved; instance %d (%s)\n", *res.Record.ID, res.Instance.ID, res.Instance.Description)
			return nil
		},
	}
	cmd.Flags().StringVar(&formPath, "file", "", "form JSON file")
	cmd.Flags().StringVar(&geoPath, "geo", "", "geospatial results JSON file")
	cmd.Flags().Int64Var(&projectID, "project", 0, "known project id")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func decisionCmd() *cobra.Command {
	dec := &cobra.Command{Use: "decision", Short: "Manage pre-screening decisions"}
	dec.AddCommand(decisionSubmitCmd())
	return dec
}

func decisionSubmitCmd() *cobra.Command {
	var formPath, geoPath, checklistPath string
	var projectID int64
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a decision payload for a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			var form domain.FormData
			if err := readJSONFile(formPath, &form); err != nil {
				return err
			}
			var geo domain.GeospatialResults
			if geoPath != "" {
				if err := readJSONFile(geoPath, &geo); err != nil {
					return err
				}
			}
			var checklist []domain.ChecklistItem
			if checklistPath != "" {
				if err := readJSONFile(checklistPath, &checklist); err != nil {
					return err
				}
			}
			e, cleanup, err := buildEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()
			res, err := e.SubmitDecision(cmd.Context(), engine.SubmitInput{
				ProjectID: &projectID,
				Form:      form,
				Geo:       geo,
				Checklist: checklist,
			})
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(res)
			}
			printEvaluation(res.Evaluation)
			if len(res.MissingTitles) > 0 {
				fmt.Println("missing catalog titles:", strings.Join(res.MissingTitles, ", "))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&formPath, "file", "", "form JSON file")
	cmd.Flags().StringVar(&geoPath, "geo", "", "geospatial results JSON file")
	cmd.Flags().StringVar(&checklistPath, "checklist", "", "permitting checklist JSON file")
	cmd.Flags().Int64Var(&projectID, "project", 0, "project id")
	_ = cmd.MarkFlagRequired("file")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}

func elementsCmd() *cobra.Command {
	el := &cobra.Command{Use: "elements", Short: "Inspect the decision element catalog"}
	el.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List decision elements",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, cleanup, err := buildEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()
			elements, err := e.Store.ListDecisionElements(cmd.Context(), e.ProcessModel)
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(elements)
			}
			t := table.NewWriter()
			t.SetOutputMirror(os.Stdout)
			t.AppendHeader(table.Row{"ID", "Title"})
			for _, el := range elements {
				t.AppendRow(table.Row{el.ID, el.Title})
			}
			t.Render()
			return nil
		},
	})
	return el
}

func serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			e, cleanup, err := buildEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()
			handler, err := server.New(server.Config{
				Engine:   e,
				BasePath: cfg.Server.BasePath,
				Auth: server.AuthConfig{
					APIKey:    cfg.Backend.APIKey,
					JWTSecret: cfg.Server.JWTSecret,
				},
			})
			if err != nil {
				return err
			}
			fmt.Println("listening on", addr)
			return http.ListenAndServe(addr, handler)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	return cmd
}

func readJSONFile(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printEvaluation(eval engine.Evaluation) {
	done := map[string]bool{}
	for _, title := range eval.CompletedTitles {
		done[title] = true
	}
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Decision Element", "Meaningful"})
	for _, title := range engine.BuilderTitles() {
		mark := "no"
		if done[title] {
			mark = "yes"
		}
		t.AppendRow(table.Row{title, mark})
	}
	t.Render()
	if eval.IsComplete {
		fmt.Println("pre-screening complete")
	} else {
		fmt.Printf("%d of %d elements meaningful\n", len(eval.CompletedTitles), eval.Total)
	}
}
