package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/nexxia-ai/pentagon"
	"github.com/nexxia-ai/pentagon/config"
	"github.com/nexxia-ai/pentagon/document"
	"github.com/nexxia-ai/pentagon/export"
	"github.com/nexxia-ai/pentagon/knowledge"
	"github.com/nexxia-ai/pentagon/present"
	"github.com/nexxia-ai/pentagon/server"
	"github.com/nexxia-ai/pentagon/trace"
	"github.com/nexxia-ai/pentagon/tracker"
)

func newPipeline(cfg *config.Config) (*pentagon.Pipeline, error) {
	model, err := cfg.NewModel()
	if err != nil {
		return nil, err
	}
	opts := []pentagon.Option{
		pentagon.WithPersonas(cfg.StagePersonas()),
		pentagon.WithGuard(cfg.NewGuard()),
		pentagon.WithLockout(cfg.NewLockout()),
		pentagon.WithAlerter(cfg.NewAlerter()),
	}
	if cfg.Trace.Directory != "" {
		tr := trace.NewTracer(trace.TraceConfig{Directory: cfg.Trace.Directory, MaxTraceFiles: cfg.Trace.MaxFiles})
		opts = append(opts, pentagon.WithObserver(tr.Observe))
	}
	return pentagon.New(pentagon.NewModelExecutor(model), opts...)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runCmd() *cobra.Command {
	var (
		task    string
		docs    []string
		outDir  string
		archive string
		noPDF   bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the pipeline over a task and documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if task == "" {
				return errors.New("--task is required")
			}
			p, err := newPipeline(cfg)
			if err != nil {
				return err
			}

			t := pentagon.Task{Text: task, Requester: "cli"}
			for _, path := range docs {
				doc, err := document.Load(path)
				if err != nil {
					return err
				}
				t.Documents = append(t.Documents, doc)
			}

			run, runErr := p.Execute(cmd.Context(), t)
			if archive != "" && !run.Blocked() {
				store := document.NewLocalStore(archive)
				for _, doc := range t.Documents {
					if _, err := store.Save(cmd.Context(), run.CaseID, doc); err != nil {
						slog.Warn("archive failed", "file", doc.Filename, "error", err)
					}
				}
			}

			view := present.Render(run)
			if viper.GetBool("json") {
				if err := printJSON(view); err != nil {
					return err
				}
			} else if err := present.Terminal(os.Stdout, view); err != nil {
				return err
			}
			if runErr != nil {
				return runErr
			}

			if noPDF {
				return nil
			}
			dir := outDir
			if dir == "" {
				dir = cfg.Export.Directory
			}
			data, err := export.Verdict(export.VerdictDoc{CaseID: run.CaseID, Text: run.Verdict(), At: run.FinishedAt})
			if err != nil {
				slog.Error("PDF generation failed", "error", err)
				return err
			}
			path := filepath.Join(dir, export.FileName(run.CaseID))
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return err
			}
			if err := os.WriteFile(path, data, 0o644); err != nil {
				return err
			}
			fmt.Fprintln(os.Stderr, "verdict written to", path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&task, "task", "t", "Analyze unfair dismissal claim based on the provided document.", "task or instruction")
	cmd.Flags().StringSliceVarP(&docs, "doc", "d", nil, "document to attach (repeatable)")
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "directory for the verdict PDF")
	cmd.Flags().StringVar(&archive, "archive", "", "archive uploaded documents under this directory")
	cmd.Flags().BoolVar(&noPDF, "no-pdf", false, "skip the verdict PDF")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			p, err := newPipeline(cfg)
			if err != nil {
				return err
			}
			log, err := knowledge.Open(cmd.Context(), cfg.Knowledge.Backend, cfg.Knowledge.Path)
			if err != nil {
				return err
			}
			defer log.Close()

			handler, err := server.New(server.Config{
				Runner:         p,
				Knowledge:      log,
				RecentRuns:     cfg.Server.RecentRuns,
				TrustedProxies: cfg.Server.TrustedProxies,
			})
			if err != nil {
				return err
			}
			if addr == "" {
				addr = cfg.Server.Addr
			}
			srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			errCh := make(chan error, 1)
			go func() {
				slog.Info("listening", "addr", addr)
				errCh <- srv.ListenAndServe()
			}()
			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-ctx.Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			}
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	return cmd
}

func personasCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "personas",
		Short: "Show the stage graph and personas in effect",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			personas := pentagon.DefaultPersonas()
			for id, p := range cfg.StagePersonas() {
				personas[id] = p
			}
			if viper.GetBool("json") {
				return printJSON(personas)
			}
			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendHeader(table.Row{"Stage", "Role", "Reads", "Persona"})
			for _, s := range pentagon.DefaultStages() {
				reads := fmt.Sprint(s.Inputs)
				if s.IncludeTask {
					reads = "task, context"
				}
				tw.AppendRow(table.Row{s.ID, s.Role, reads, personas[s.ID]})
			}
			tw.Render()
			return nil
		},
	}
}

func withKnowledge(ctx context.Context, fn func(cfg *config.Config, log knowledge.Log) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := knowledge.Open(ctx, cfg.Knowledge.Backend, cfg.Knowledge.Path)
	if err != nil {
		return err
	}
	defer log.Close()
	return fn(cfg, log)
}

func knowledgeCmd() *cobra.Command {
	kb := &cobra.Command{Use: "knowledge", Short: "Manage the knowledge log"}
	kb.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List entries in append order",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withKnowledge(cmd.Context(), func(_ *config.Config, log knowledge.Log) error {
				entries, err := log.All(cmd.Context())
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(entries)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"#", "Title", "Created", "Size"})
				for i, e := range entries {
					tw.AppendRow(table.Row{i + 1, e.Title, e.CreatedAt.Format(time.DateTime), len(e.Content)})
				}
				tw.Render()
				return nil
			})
		},
	})

	var title, file string
	add := &cobra.Command{
		Use:   "add",
		Short: "Append an entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			var content []byte
			var err error
			if file == "" || file == "-" {
				content, err = io.ReadAll(os.Stdin)
			} else {
				content, err = os.ReadFile(file)
			}
			if err != nil {
				return err
			}
			return withKnowledge(cmd.Context(), func(_ *config.Config, log knowledge.Log) error {
				e, err := log.Append(cmd.Context(), knowledge.Entry{Title: title, Content: string(content)})
				if err != nil {
					return err
				}
				fmt.Println(e.ID)
				return nil
			})
		},
	}
	add.Flags().StringVar(&title, "title", "", "entry title")
	add.Flags().StringVarP(&file, "file", "f", "", "content file (default stdin)")
	kb.AddCommand(add)
	return kb
}

type draftFile struct {
	Step  int    `yaml:"step"`
	Agent string `yaml:"agent"`
	Text  string `yaml:"text"`
}

func trackerCmd() *cobra.Command {
	var step int
	var draftPath string
	tc := &cobra.Command{Use: "tracker", Short: "Walk the delivery workflow over the knowledge log"}
	tc.PersistentFlags().IntVar(&step, "step", 0, "step to act on (default: after the last baseline)")
	tc.PersistentFlags().StringVar(&draftPath, "draft", "tracker_draft.yml", "draft file")

	withTracker := func(ctx context.Context, fn func(t *tracker.Tracker) error) error {
		return withKnowledge(ctx, func(cfg *config.Config, log knowledge.Log) error {
			var exec pentagon.Executor
			if model, err := cfg.NewModel(); err == nil {
				exec = pentagon.NewModelExecutor(model)
			} else {
				exec = pentagon.ExecutorFunc(func(context.Context, string, string) (string, error) { return "", err })
			}
			t := tracker.New(log, exec)
			if err := t.Resume(ctx); err != nil {
				return err
			}
			if step > 0 {
				if err := t.SetStep(step); err != nil {
					return err
				}
			}
			return fn(t)
		})
	}

	tc.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the workflow and the current step",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTracker(cmd.Context(), func(t *tracker.Tracker) error {
				current, ok := t.Current()
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Step", "Agent", ""})
				for _, s := range tracker.Steps() {
					mark := ""
					switch {
					case !ok || s.Number < current.Number:
						mark = "fixed"
					case s.Number == current.Number:
						mark = "current"
					}
					tw.AppendRow(table.Row{s.Number, s.Agent, mark})
				}
				tw.Render()
				return nil
			})
		},
	})
	tc.AddCommand(&cobra.Command{
		Use:   "generate",
		Short: "Draft the current step and write it to the draft file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTracker(cmd.Context(), func(t *tracker.Tracker) error {
				d, err := t.Generate(cmd.Context())
				if err != nil {
					return err
				}
				data, err := yaml.Marshal(draftFile{Step: d.Step, Agent: d.Agent, Text: d.Text})
				if err != nil {
					return err
				}
				if err := os.WriteFile(draftPath, data, 0o644); err != nil {
					return err
				}
				fmt.Println(d.Text)
				return nil
			})
		},
	})
	tc.AddCommand(&cobra.Command{
		Use:   "fix",
		Short: "Fix the draft as the step's baseline and advance",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(draftPath)
			if err != nil {
				return err
			}
			var df draftFile
			if err := yaml.Unmarshal(data, &df); err != nil {
				return fmt.Errorf("invalid draft file: %w", err)
			}
			return withTracker(cmd.Context(), func(t *tracker.Tracker) error {
				if step == 0 {
					if err := t.SetStep(df.Step); err != nil {
						return err
					}
				}
				e, err := t.Fix(cmd.Context(), tracker.Draft{Step: df.Step, Agent: df.Agent, Text: df.Text})
				if err != nil {
					return err
				}
				fmt.Println("fixed", e.Title)
				return os.Remove(draftPath)
			})
		},
	})
	return tc
}
