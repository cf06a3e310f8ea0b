package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"github.com/shx815/simple-openhands/internal/infrastructure/tracing"
	"github.com/shx815/simple-openhands/internal/providers/http/client"
	"github.com/shx815/simple-openhands/internal/shared/id"
	"github.com/shx815/simple-openhands/internal/shared/types"
)

// Exit codes
const (
	exitOK     = 0
	exitFailed = 1
	exitUsage  = 2
)

type options struct {
	url         string
	apiKey      string
	sessionFile string
	timeout     float64
	thought     string
	blocking    bool
	raw         bool
	context     bool
	reset       bool
	job         int
	emitCurl    bool
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("ohrun", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var opts options
	fs.StringVar(&opts.url, "url", "", "Runtime API base URL (e.g. http://127.0.0.1:8000)")
	fs.StringVar(&opts.apiKey, "api-key", "", "Session API key (sent as X-Session-API-Key)")
	fs.StringVar(&opts.sessionFile, "session-file", "", "Path to a .oh-session JSON (overridden by --url/--api-key)")
	fs.Float64Var(&opts.timeout, "timeout", 600, "Client HTTP timeout in seconds")
	fs.StringVar(&opts.thought, "thought", "", "Rationale to attach to the action")
	fs.BoolVar(&opts.blocking, "blocking", false, "Wait for the command to finish instead of returning on a soft timeout")
	fs.BoolVar(&opts.raw, "raw", false, "Print the raw JSON response")
	fs.BoolVar(&opts.context, "context", false, "Print the runtime context (server_info) instead of executing a command")
	fs.BoolVar(&opts.reset, "reset", false, "Reset the shell session")
	fs.IntVar(&opts.job, "job", 0, "Print the state of a background job")
	fs.BoolVar(&opts.emitCurl, "emit-curl", false, "Print the equivalent curl command instead of sending it")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	dir, _ := os.Getwd()
	ep := client.Resolver{
		URL:         opts.url,
		Key:         opts.apiKey,
		SessionFile: opts.sessionFile,
		Dir:         dir,
	}.Resolve()

	command := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if opts.emitCurl {
		if command == "" {
			fmt.Fprintln(stderr, `ohrun: no command provided. Example: ohrun "ls -la"`)
			return exitUsage
		}
		body, err := sonic.MarshalString(client.RunRequest(runArgs(command, opts)))
		if err != nil {
			fmt.Fprintf(stderr, "ohrun: %v\n", err)
			return exitUsage
		}
		fmt.Fprintln(stdout, curlCommand(ep, body))
		return exitOK
	}

	c := client.New(client.Options{
		BaseURL: ep.URL,
		APIKey:  ep.Key,
		Timeout: time.Duration(opts.timeout * float64(time.Second)),
	})
	ctx := tracing.ContextWith(context.Background(), tracing.TraceID(id.NewTraceID()), "")

	switch {
	case opts.context:
		return printContext(ctx, c, opts.raw, stdout, stderr)
	case opts.reset:
		if err := c.Reset(ctx); err != nil {
			fmt.Fprintf(stderr, "ohrun: reset failed: %v\n", err)
			return exitFailed
		}
		fmt.Fprintln(stdout, "Session reset")
		return exitOK
	case opts.job > 0:
		return printJob(ctx, c, opts.job, stdout, stderr)
	}

	if command == "" {
		fmt.Fprintln(stderr, `ohrun: no command provided. Example: ohrun "ls -la"`)
		return exitUsage
	}
	return execute(ctx, c, runArgs(command, opts), opts.raw, stdout, stderr)
}

func runArgs(command string, opts options) types.ActionArgs {
	args := types.ActionArgs{Command: command, Thought: opts.thought}
	if opts.blocking {
		blocking := true
		args.Blocking = &blocking
	}
	return args
}

func execute(ctx context.Context, c *client.Client, args types.ActionArgs, raw bool, stdout, stderr io.Writer) int {
	resp, err := c.Send(ctx, http.MethodPost, "/execute_action", client.RunRequest(args))
	if err != nil {
		fmt.Fprintf(stderr, "ohrun: request failed: %v\n", err)
		return exitUsage
	}

	status := exitOK
	if resp.IsError() {
		status = exitFailed
	}
	if raw {
		fmt.Fprintln(stdout, resp.String())
		return status
	}
	fmt.Fprintln(stdout, render(resp.Body()))
	return status
}

func printContext(ctx context.Context, c *client.Client, raw bool, stdout, stderr io.Writer) int {
	if raw {
		resp, err := c.Send(ctx, http.MethodGet, "/server_info", nil)
		if err != nil {
			fmt.Fprintf(stderr, "ohrun: failed to get context: %v\n", err)
			return exitUsage
		}
		fmt.Fprintln(stdout, resp.String())
		return exitOK
	}

	info, err := c.ServerInfo(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "ohrun: failed to get context: %v\n", err)
		return exitUsage
	}
	return printJSON(info, stdout, stderr)
}

func printJob(ctx context.Context, c *client.Client, id int, stdout, stderr io.Writer) int {
	job, err := c.Job(ctx, id)
	if err != nil {
		fmt.Fprintf(stderr, "ohrun: failed to get job %d: %v\n", id, err)
		return exitFailed
	}
	return printJSON(job, stdout, stderr)
}

func printJSON(v interface{}, stdout, stderr io.Writer) int {
	out, err := sonic.ConfigStd.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(stderr, "ohrun: %v\n", err)
		return exitFailed
	}
	fmt.Fprintln(stdout, string(out))
	return exitOK
}
