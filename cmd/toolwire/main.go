package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/toolwire/toolwire/agent"
	"github.com/toolwire/toolwire/agent/terminal"
	"github.com/toolwire/toolwire/config"
	"github.com/toolwire/toolwire/llm"
	"github.com/toolwire/toolwire/mcp"
	"github.com/toolwire/toolwire/session"
)

func main() {
	// Define flags
	modeFlag := flag.String("m", "", "Execution mode: 'auto' or 'prompt'")
	sessionFlag := flag.String("s", "", "Session name to create or use")
	toolsetFlag := flag.String("t", "", "Toolset to use (defaults to 'default')")
	resumeFlag := flag.String("r", "", "Resume a session by name")
	toolVerbosityFlag := flag.String("tool-verbosity", "", "Tool verbosity level: 'none', 'info', or 'all'")
	traceFlag := flag.Bool("trace", false, "Enable protocol tracing to troubleshoot worker connections")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %+v\n", err)
		os.Exit(1)
	}

	var sess *session.Session
	sessionName := *sessionFlag

	if *resumeFlag != "" {
		// Resume session
		sessionName = *resumeFlag
		sess, err = session.Load(sessionName)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error resuming session '%s': %+v\n", sessionName, err)
			os.Exit(1)
		}
		fmt.Printf("Resuming session: %s\n", sessionName)
		// Apply session flags if not explicitly overridden by user
		if *modeFlag == "" && sess.Mode != "" {
			*modeFlag = sess.Mode
		}
		if *toolsetFlag == "" && sess.Toolset != "" {
			*toolsetFlag = sess.Toolset
		}
		if *toolVerbosityFlag == "" && sess.ToolVerbosity != "" {
			*toolVerbosityFlag = sess.ToolVerbosity
		}
	} else {
		// Start new session
		if sessionName == "" {
			sessionName = defaultSessionName()
		}
		sess, err = session.New(sessionName)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating session '%s': %+v\n", sessionName, err)
			os.Exit(1)
		}
		fmt.Printf("Starting new session: %s\n", sessionName)
	}

	if *modeFlag == "" {
		*modeFlag = "prompt"
	}
	if *toolsetFlag == "" {
		*toolsetFlag = "default"
	}
	if *toolVerbosityFlag == "" {
		*toolVerbosityFlag = "none"
	}

	// Update session with current flag values and save
	sess.Mode = *modeFlag
	sess.Toolset = *toolsetFlag
	sess.ToolVerbosity = *toolVerbosityFlag
	if err := sess.Save(); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving session '%s': %+v\n", sessionName, err)
		os.Exit(1)
	}

	// Validate mode
	var opMode agent.Mode
	switch *modeFlag {
	case "auto":
		opMode = agent.ModeAuto
	case "prompt":
		opMode = agent.ModePrompt
	default:
		fmt.Fprintf(os.Stderr, "Invalid mode '%s'. Must be 'auto' or 'prompt'.\n", *modeFlag)
		os.Exit(1)
	}

	// Validate tool verbosity
	var verbosity agent.ToolVerbosity
	switch *toolVerbosityFlag {
	case "none":
		verbosity = agent.ToolVerbosityNone
	case "info":
		verbosity = agent.ToolVerbosityInfo
	case "all":
		verbosity = agent.ToolVerbosityAll
	default:
		fmt.Fprintf(os.Stderr, "Invalid tool verbosity '%s'. Must be 'none', 'info', or 'all'.\n", *toolVerbosityFlag)
		os.Exit(1)
	}

	ctx := context.Background()

	// Initialize LLM Client
	var client llm.LLMClient
	switch cfg.LLMClient {
	case "gemini":
		client, err = llm.NewGeminiLLMClient(ctx, cfg.Model)
	case "openai":
		client, err = llm.NewOpenAILLMClient(ctx, cfg.Model)
	case "bedrock":
		client, err = llm.NewBedrockLLMClient(ctx, cfg.Model)
	case "anthropic":
		client, err = llm.NewAnthropicLLMClient(ctx, cfg.Model)
	default:
		client = &llm.MockLLMClient{}
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing %s client: %+v\n", cfg.LLMClient, err)
		os.Exit(1)
	}

	trace := traceFunc(*traceFlag)

	// Connect the configured workers; a worker that fails to come up is
	// reported and skipped, the rest of the session continues.
	var workers []*mcp.Client
	for _, wc := range cfg.Workers {
		connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		worker, err := mcp.Connect(connectCtx, wc.Name, wc.Script,
			mcp.WithArgs(wc.Args...), mcp.WithTrace(trace))
		cancel()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not connect worker '%s': %+v\n", wc.Name, err)
			continue
		}
		fmt.Printf("Connected worker '%s' with %d tools.\n", wc.Name, len(worker.Tools()))
		workers = append(workers, worker)
	}
	defer func() {
		for _, w := range workers {
			if err := w.Close(); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: error closing worker '%s': %v\n", w.Name, err)
			}
		}
	}()

	// Create the agent
	toolwireAgent, err := agent.New(cfg, sess, *toolsetFlag, opMode, client, verbosity, workers)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing agent: %+v\n", err)
		os.Exit(1)
	}

	// Get initial prompt from remaining arguments
	initialPrompt := strings.Join(flag.Args(), " ")

	fmt.Println("Toolwire is ready. Type your prompt.")
	term := terminal.New(toolwireAgent)
	if err := term.Run(ctx, initialPrompt); err != nil {
		fmt.Fprintf(os.Stderr, "Agent stopped with an error: %+v\n", err)
		os.Exit(1)
	}
}

// traceFunc returns a protocol trace sink: a no-op unless tracing is
// enabled, in which case lines are appended to toolwire.trace.
func traceFunc(enabled bool) func(string) {
	if !enabled {
		return func(string) {}
	}
	traceFile, err := os.OpenFile("toolwire.trace", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not open trace file: %v\n", err)
		return func(string) {}
	}
	return func(msg string) {
		fmt.Fprintf(traceFile, "[%s] %s\n", time.Now().Format("15:04:05.000"), msg)
	}
}

func defaultSessionName() string {
	wd, err := os.Getwd()
	if err != nil {
		wd = "toolwire"
	}
	dirName := filepath.Base(wd)
	timestamp := time.Now().Format("2006-01-02_15-04-05")
	return fmt.Sprintf("%s_%s", dirName, timestamp)
}
