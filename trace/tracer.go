package trace

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/nexxia-ai/pentagon/event"
)

type TraceConfig struct {
	Directory         string
	RetentionDuration time.Duration
	MaxTraceFiles     int
}

// Tracer writes one text file per run from pipeline events. Files are named
// after the run id and pruned by age and count when a new run starts.
type Tracer struct {
	config TraceConfig
	mu     sync.Mutex
	logger *slog.Logger
}

const (
	defaultRetentionDuration = 7 * 24 * time.Hour
	defaultMaxTraceFiles     = 10
)

func NewTracer(config ...TraceConfig) *Tracer {
	cfg := TraceConfig{
		Directory:         filepath.Join(os.TempDir(), "pentagon-traces"),
		RetentionDuration: defaultRetentionDuration,
		MaxTraceFiles:     defaultMaxTraceFiles,
	}

	if len(config) > 0 {
		if config[0].Directory != "" {
			cfg.Directory = config[0].Directory
		}
		if config[0].RetentionDuration > 0 {
			cfg.RetentionDuration = config[0].RetentionDuration
		}
		if config[0].MaxTraceFiles > 0 {
			cfg.MaxTraceFiles = config[0].MaxTraceFiles
		}
	}

	if err := os.MkdirAll(cfg.Directory, 0755); err != nil {
		slog.Error("Failed to create trace directory", "dir", cfg.Directory, "error", err)
	}
	return &Tracer{config: cfg, logger: slog.Default().With("component", "trace")}
}

func (tr *Tracer) Directory() string {
	return tr.config.Directory
}

// Filepath returns the trace file of a run.
func (tr *Tracer) Filepath(runID string) string {
	return filepath.Join(tr.config.Directory, fmt.Sprintf("trace-%s.txt", runID))
}

// Observe records one event. It matches pentagon.Observer.
func (tr *Tracer) Observe(e event.Event) {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	if _, ok := e.(*event.RunStartedEvent); ok {
		tr.cleanup()
	}

	tr.writeToFile(tr.Filepath(e.ID()), func(w io.Writer) {
		ts := time.Now().Format("15:04:05")
		switch ev := e.(type) {
		case *event.RunStartedEvent:
			fmt.Fprintf(w, "====> [%s] Start run %s case %s\n", ts, ev.RunID, ev.CaseID)
			if ev.Requester != "" {
				fmt.Fprintf(w, " requester: %s\n", ev.Requester)
			}
			fmt.Fprintf(w, " documents: %d\n", ev.Documents)
			logContent(w, "task", ev.Task)
		case *event.StageStartedEvent:
			fmt.Fprintf(w, "\n⬆️  [%s] %s (%s):\n", ts, ev.Stage, ev.Role)
			logContent(w, "input", ev.Input)
		case *event.StageCompletedEvent:
			fmt.Fprintf(w, "⬇️  [%s] %s in %s:\n", ts, ev.Stage, ev.Duration.Round(time.Millisecond))
			logContent(w, "output", ev.Output)
		case *event.RunBlockedEvent:
			fmt.Fprintf(w, "\n⛔ [%s] Blocked: %s", ts, ev.Reason)
			if ev.Phrase != "" {
				fmt.Fprintf(w, " (%q)", ev.Phrase)
			}
			fmt.Fprintln(w)
		case *event.RunFailedEvent:
			fmt.Fprintf(w, "\n❌ [%s] Failed at %s: %v\n", ts, ev.Stage, ev.Err)
		case *event.RunCompletedEvent:
			fmt.Fprintf(w, "\n====> [%s] Completed in %s\n", ts, ev.Duration.Round(time.Millisecond))
		}
	})
}

func (tr *Tracer) writeToFile(path string, fn func(io.Writer)) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		tr.logger.Error("Failed to open trace file for writing", "file", path, "error", err)
		return
	}
	defer file.Close()

	fn(file)
	file.Sync()
}

func logContent(w io.Writer, name, content string) {
	if content == "" {
		fmt.Fprintf(w, " %s: (empty)\n", name)
		return
	}
	fmt.Fprintf(w, " %s:\n", name)
	for _, line := range strings.Split(content, "\n") {
		fmt.Fprintf(w, "   %s\n", line)
	}
}

func (tr *Tracer) cleanup() {
	entries, err := os.ReadDir(tr.config.Directory)
	if err != nil {
		tr.logger.Error("Failed to read trace directory", "error", err)
		return
	}

	type traceFile struct {
		path    string
		modTime time.Time
	}
	var traceFiles []traceFile
	cutoffTime := time.Now().Add(-tr.config.RetentionDuration)

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), "trace-") || !strings.HasSuffix(entry.Name(), ".txt") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		path := filepath.Join(tr.config.Directory, entry.Name())
		if tr.config.RetentionDuration > 0 && info.ModTime().Before(cutoffTime) {
			if err := os.Remove(path); err != nil {
				tr.logger.Error("Failed to remove old trace file", "file", path, "error", err)
			}
			continue
		}
		traceFiles = append(traceFiles, traceFile{path: path, modTime: info.ModTime()})
	}

	sort.Slice(traceFiles, func(i, j int) bool {
		return traceFiles[i].modTime.Before(traceFiles[j].modTime)
	})

	// leave room for the file about to be created
	if tr.config.MaxTraceFiles > 0 && len(traceFiles) >= tr.config.MaxTraceFiles {
		excess := len(traceFiles) - tr.config.MaxTraceFiles + 1
		for i := 0; i < excess; i++ {
			if err := os.Remove(traceFiles[i].path); err != nil {
				tr.logger.Error("Failed to remove excess trace file", "file", traceFiles[i].path, "error", err)
			} else {
				tr.logger.Debug("Removed excess trace file", "file", filepath.Base(traceFiles[i].path))
			}
		}
	}
}
