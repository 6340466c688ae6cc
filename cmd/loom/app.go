package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/loomrun/loom/internal/agentloop"
	"github.com/loomrun/loom/internal/commands"
	"github.com/loomrun/loom/internal/interactor"
	"github.com/loomrun/loom/internal/runtimeconfig"
	"github.com/loomrun/loom/internal/store/sqlitestore"
	"github.com/loomrun/loom/internal/telemetry"
	"github.com/loomrun/loom/internal/thread"
	"github.com/loomrun/loom/pkg/events"
)

const defaultAgentName = "assistant"

type appConfig struct {
	Provider string
	Model    string
	DBPath   string
	Username string
	Debug    bool
}

// App wires one default Agent, a ConversationThread, and the persistence
// stores behind the interactive REPL surface.
type App struct {
	store    *sqlitestore.Store
	prompts  *sqlitestore.ConfigStore
	ia       *interactor.ChanInteractor
	agent    *agentloop.Agent
	thread   *thread.Thread
	username string
	debug    bool

	stopRender     context.CancelFunc
	shutdownTracer func(context.Context) error
}

func newApp(cfg appConfig) (*App, error) {
	provider, err := buildProvider(cfg.Provider, cfg.Model)
	if err != nil {
		return nil, err
	}

	st, err := sqlitestore.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	ia := interactor.NewChanInteractor(256)
	metrics := telemetry.NewMetrics(nil)
	tracer, shutdownTracer := telemetry.NewTracer(telemetry.TraceConfig{ServiceName: "loom"})

	loopCfg := agentloop.LoopConfig{
		RunOptions: runtimeconfig.DefaultRunOptions(),
		Toolbox:    noopToolbox{},
		Registry:   noopRegistry{},
		Interactor: ia,
		Metrics:    metrics,
		Tracer:     tracer,
	}

	app := &App{
		store:          st,
		prompts:        st.Config(),
		ia:             ia,
		agent:          agentloop.New(defaultAgentName, provider, loopCfg),
		thread:         thread.New(cfg.Username, "default"),
		username:       cfg.Username,
		debug:          cfg.Debug,
		shutdownTracer: shutdownTracer,
	}
	return app, nil
}

// Close releases the underlying database handle and flushes any
// in-flight spans.
func (a *App) Close() error {
	if a.shutdownTracer != nil {
		_ = a.shutdownTracer(context.Background())
	}
	return a.store.Close()
}

// noopToolbox is the CLI's zero-tools default; a deployment wiring real
// tools replaces this with toolkit/mcp.Toolbox or a hand-rolled one.
type noopToolbox struct{}

func (noopToolbox) GetTools(ctx context.Context, cc agentloop.CommandContext) []agentloop.ToolDescriptor {
	return nil
}
func (noopToolbox) Lookup(ctx context.Context, cc agentloop.CommandContext, name string) (agentloop.ToolDescriptor, bool) {
	return agentloop.ToolDescriptor{}, false
}

// noopRegistry means delegate/redirect always report the named agent as
// unknown; the CLI runs a single default agent.
type noopRegistry struct{}

func (noopRegistry) Lookup(name string) (*agentloop.Agent, bool) { return nil, false }

// RunREPL reads lines from in until in is exhausted, rendering the
// thread's outbound events to out meanwhile. Cancelling ctx stops the
// rendering and makes agent runs fail; it does not interrupt a pending
// read from in.
func (a *App) RunREPL(ctx context.Context, in io.Reader, out io.Writer) error {
	renderCtx, cancel := context.WithCancel(ctx)
	a.stopRender = cancel
	defer cancel()
	go a.renderLoop(renderCtx, out)

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := a.handleLine(ctx, line, out); err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
		}
	}
	return scanner.Err()
}

func (a *App) renderLoop(ctx context.Context, out io.Writer) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-a.ia.Out():
			if !ok {
				return
			}
			a.render(e, out)
		}
	}
}

func (a *App) render(e events.Event, out io.Writer) {
	switch e.Kind {
	case events.KindDebug:
		if a.debug {
			fmt.Fprintf(out, "[debug] %s\n", e.Text.Text)
		}
	case events.KindWarn:
		fmt.Fprintf(out, "[warn] %s\n", e.Text.Text)
	case events.KindError:
		fmt.Fprintf(out, "[error] %s\n", e.Error.Message)
	case events.KindThinking:
		fmt.Fprintf(out, "[thinking] %s\n", e.Text.Text)
	case events.KindText:
		fmt.Fprint(out, e.Text.Text)
	}
}

// handleLine dispatches one REPL input line: a built-in verb (save,
// thread, debug), or a slash prompt / @agent / default-agent message.
func (a *App) handleLine(ctx context.Context, line string, out io.Writer) error {
	switch {
	case line == "save" || strings.HasPrefix(line, "save "):
		return a.cmdSave(ctx, line, out)
	case strings.HasPrefix(line, "thread "):
		return a.cmdThread(ctx, strings.TrimPrefix(line, "thread "), out)
	case line == "debug true" || line == "debug false":
		a.debug = line == "debug true"
		fmt.Fprintf(out, "debug: %v\n", a.debug)
		return nil
	}

	parsed := commands.Parse(line)
	switch parsed.Kind {
	case commands.KindPrompt:
		return a.runPrompt(ctx, parsed.PromptName, parsed.Args, out)
	default:
		return a.runAgentMessage(ctx, parsed)
	}
}

func (a *App) runAgentMessage(ctx context.Context, line commands.Line) error {
	if line.AgentName != "" && line.AgentName != a.agent.Name {
		a.ia.Warn(fmt.Sprintf("unknown agent %q, using %s", line.AgentName, a.agent.Name))
	}
	return a.agent.Run(ctx, a.thread, line.Text)
}

func (a *App) runPrompt(ctx context.Context, name, args string, out io.Writer) error {
	lines, err := commands.Resolve(promptLookup{store: a.prompts, ctx: ctx}, name, args)
	if err != nil {
		return err
	}
	for _, line := range lines {
		if err := a.runAgentMessage(ctx, line); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) cmdSave(ctx context.Context, line string, out io.Writer) error {
	rest := strings.TrimSpace(strings.TrimPrefix(line, "save"))
	if rest != "" {
		a.thread.SetName(rest)
	}
	if err := a.store.Save(ctx, a.thread); err != nil {
		return err
	}
	fmt.Fprintf(out, "saved thread %s (%s)\n", a.thread.ID(), a.thread.Name())
	return nil
}

func (a *App) cmdThread(ctx context.Context, rest string, out io.Writer) error {
	verb, arg, _ := strings.Cut(rest, " ")
	arg = strings.TrimSpace(arg)

	switch verb {
	case "list":
		snaps, err := a.store.List(ctx)
		if err != nil {
			return err
		}
		for _, s := range snaps {
			fmt.Fprintf(out, "%s\t%s\t%s\n", s.ID, s.Name, s.ModifiedDate.Format("2006-01-02 15:04"))
		}
		return nil
	case "select":
		th, err := a.store.Get(ctx, arg)
		if err != nil {
			return err
		}
		a.thread = th
		fmt.Fprintf(out, "selected thread %s (%s)\n", th.ID(), th.Name())
		return nil
	case "delete":
		return a.store.Delete(ctx, arg)
	default:
		return fmt.Errorf("unknown thread subcommand %q", verb)
	}
}

// promptLookup adapts a ConfigStore to commands.PromptLookup, storing
// each named prompt as a JSON-encoded commands.Prompt under "prompt:<name>".
type promptLookup struct {
	store *sqlitestore.ConfigStore
	ctx   context.Context
}

func (p promptLookup) Lookup(name string) (commands.Prompt, bool) {
	data, err := p.store.Get(p.ctx, "prompt:"+name)
	if err != nil {
		return commands.Prompt{}, false
	}
	var prompt commands.Prompt
	if err := json.Unmarshal(data, &prompt); err != nil {
		return commands.Prompt{}, false
	}
	return prompt, true
}
