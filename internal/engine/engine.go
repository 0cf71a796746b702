package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"

	"modelsync/internal/config"
	"modelsync/internal/gateway"
	"modelsync/internal/model"
	"modelsync/internal/output"
)

func exitCodeForRun(fatal, dirty, cancelled bool) int {
	// Exit code contract:
	// 0 = every planned model synced
	// 1 = some models failed or were skipped
	// 2 = run cancelled
	// 3 = fatal error (run did not complete)
	if fatal {
		return 3
	}
	if cancelled {
		return 2
	}
	if dirty {
		return 1
	}
	return 0
}

func setupOutputManager(cfg *config.Config) (*output.Manager, error) {
	outMgr := output.NewManager()

	// Console Sink
	if !cfg.Output.NoConsole {
		if err := outMgr.AddSink(output.NewConsoleSink(nil, cfg.Output.ConsoleFormat)); err != nil {
			outMgr.Close()
			return nil, err
		}
	}

	// File Sink
	if cfg.Output.Out != "" {
		fs, err := output.NewFileSink(cfg.Output.Out, cfg.Output.OutFormat)
		if err != nil {
			outMgr.Close()
			return nil, err
		}
		if err := outMgr.AddSink(fs); err != nil {
			outMgr.Close()
			return nil, err
		}
	}

	// Report Sink
	if cfg.Output.Report != "" {
		rs, err := output.NewReportSink(cfg.Output.Report)
		if err != nil {
			outMgr.Close()
			return nil, err
		}
		if err := outMgr.AddSink(rs); err != nil {
			outMgr.Close()
			return nil, err
		}
	}

	return outMgr, nil
}

// ResolveSelection maps model GUIDs from the CLI to discovered identities.
// Selection is by model GUID alone; the graph supplies region and project.
func ResolveSelection(g *Graph, guids []string) ([]model.Identity, error) {
	if len(guids) == 0 {
		return nil, nil
	}
	byModel := make(map[uuid.UUID]model.Identity, g.Len())
	for id := range g.Nodes {
		byModel[id.ModelID] = id
	}

	out := make([]model.Identity, 0, len(guids))
	for _, raw := range guids {
		mg, err := uuid.Parse(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("invalid --select value %q: %w", raw, err)
		}
		id, ok := byModel[mg]
		if !ok {
			return nil, fmt.Errorf("selected model %s is not part of the discovered tree", mg)
		}
		out = append(out, id)
	}
	return out, nil
}

// WriteTreePreview renders the discovered tree and the computed sync order.
// Used by --dry-run and the tree command.
func WriteTreePreview(w io.Writer, g *Graph, order []model.Identity, plan *Plan) {
	fmt.Fprintln(w, "Dependency tree:")
	for _, line := range FormatTree(g) {
		marker := ""
		if n := g.Node(line.Identity); n != nil && n.State == StateFailed {
			marker = "  (discovery failed)"
		}
		fmt.Fprintf(w, "%s%s  %s%s\n", strings.Repeat("  ", line.Depth+1), line.Name, line.Identity.Short(), marker)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Sync order (leaves first):")
	inPlan := make(map[model.Identity]PlanEntry, plan.Len())
	for _, e := range plan.Entries {
		inPlan[e.Identity] = e
	}
	pos := 1
	for _, id := range order {
		e, ok := inPlan[id]
		if !ok {
			continue
		}
		tag := ""
		if e.Implicit {
			tag = " [implicit]"
		}
		fmt.Fprintf(w, "%3d. %s  %s%s\n", pos, e.Name, id.Short(), tag)
		pos++
	}
}

type Engine struct {
	Gateway gateway.Gateway
}

func NewEngine(gw gateway.Gateway) *Engine {
	return &Engine{Gateway: gw}
}

// Run drives a full sync: discover, sort, plan, orchestrate, summarize.
// It returns the process exit code.
func (e *Engine) Run(ctx context.Context, cfg *config.Config) int {
	root, err := model.NewIdentity(cfg.Targeting.Region, cfg.Targeting.ProjectGUID, cfg.Targeting.ModelGUID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitCodeForRun(true, false, false)
	}
	rootName := strings.TrimSpace(cfg.Targeting.Name)
	if rootName == "" {
		rootName = "ROOT"
	}

	outMgr, err := setupOutputManager(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating output sinks: %v\n", err)
		return exitCodeForRun(true, false, false)
	}
	defer outMgr.Close()
	emit := func(ev output.Event) { _ = outMgr.Write(ev) }

	emit(output.Event{Type: output.EventRunStarted, Model: root.String(), Name: rootName})

	g, order, err := e.discoverAndSort(ctx, cfg, root, rootName, emit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		// An abort caused by the run context is a cancellation, not a fatal
		// failure of the host or the tree.
		code := exitCodeForRun(true, false, false)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			code = exitCodeForRun(false, false, true)
		}
		emit(output.Event{Type: output.EventRunFinished, ExitCode: code, Cancelled: code == 2})
		return code
	}

	selected, err := ResolveSelection(g, cfg.Selection.Models)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		emit(output.Event{Type: output.EventRunFinished, ExitCode: 3})
		return exitCodeForRun(true, false, false)
	}

	plan, err := BuildPlan(g, order, selected)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error building sync plan: %v\n", err)
		emit(output.Event{Type: output.EventRunFinished, ExitCode: 3})
		return exitCodeForRun(true, false, false)
	}
	emit(output.Event{
		Type:     output.EventPlanCreated,
		Models:   plan.Len(),
		Selected: plan.Len() - plan.ImplicitCount(),
		Implied:  plan.ImplicitCount(),
	})

	if cfg.Runtime.DryRun {
		WriteTreePreview(os.Stdout, g, order, plan)
		emit(output.Event{Type: output.EventRunFinished, ExitCode: 0})
		return 0
	}

	orch, err := NewOrchestrator(e.Gateway, RunConfig{
		Options: gateway.Options{
			WorksetMode: gateway.WorksetMode(cfg.Sync.WorksetMode),
			Worksets:    cfg.Sync.Worksets,
		},
		LinkReloadDelay: cfg.Sync.LinkReloadDelay,
		Concurrency:     cfg.Sync.Concurrency,
		Retry: RetryPolicy{
			MaxAttempts: cfg.Sync.MaxRetryAttempts,
			BackoffBase: cfg.Sync.RetryBackoffBase,
		},
	}, emit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		emit(output.Event{Type: output.EventRunFinished, ExitCode: 3})
		return exitCodeForRun(true, false, false)
	}

	if !cfg.Output.NoConsole {
		fmt.Fprintf(os.Stderr, "Syncing %d model(s) bottom-up...\n", plan.Len())
	}

	summary, runErr := orch.Run(ctx, plan)
	fatal := runErr != nil
	if fatal {
		fmt.Fprintf(os.Stderr, "Error: %v\n", runErr)
	}

	synced, failed, skipped := summary.Counts()
	code := exitCodeForRun(fatal, failed > 0 || skipped > 0, summary.Cancelled)
	emit(output.Event{
		Type:      output.EventRunFinished,
		Synced:    synced,
		Failed:    failed,
		Skipped:   skipped,
		Cancelled: summary.Cancelled,
		ExitCode:  code,
	})
	return code
}

// Discover builds and sorts the dependency graph without syncing anything.
// The tree command uses it directly.
func (e *Engine) Discover(ctx context.Context, cfg *config.Config, emit func(output.Event)) (*Graph, []model.Identity, error) {
	root, err := model.NewIdentity(cfg.Targeting.Region, cfg.Targeting.ProjectGUID, cfg.Targeting.ModelGUID)
	if err != nil {
		return nil, nil, err
	}
	rootName := strings.TrimSpace(cfg.Targeting.Name)
	if rootName == "" {
		rootName = "ROOT"
	}
	return e.discoverAndSort(ctx, cfg, root, rootName, emit)
}

func (e *Engine) discoverAndSort(ctx context.Context, cfg *config.Config, root model.Identity, rootName string, emit func(output.Event)) (*Graph, []model.Identity, error) {
	if !cfg.Output.NoConsole {
		fmt.Fprintln(os.Stderr, "Discovering dependency tree...")
	}
	d, err := NewDiscoverer(e.Gateway, cfg.Sync.DiscoveryConcurrency)
	if err != nil {
		return nil, nil, err
	}
	g, err := d.Discover(ctx, root, rootName, emit)
	if err != nil {
		return nil, nil, err
	}
	if !cfg.Output.NoConsole {
		fmt.Fprintf(os.Stderr, "Found %d model(s).\n", g.Len())
	}

	order, err := SortLeafFirst(g)
	if err != nil {
		var cyc *CycleError
		if errors.As(err, &cyc) {
			return nil, nil, fmt.Errorf("cannot derive a sync order: %w", cyc)
		}
		return nil, nil, err
	}
	return g, order, nil
}
