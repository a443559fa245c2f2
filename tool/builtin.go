package tool

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// BuiltinOptions configures the built-in capability set.
type BuiltinOptions struct {
	// FileRoot confines read_file/write_file to a directory subtree.
	// Defaults to the process working directory.
	FileRoot string
	// HTTPAllowlist restricts http_request to the listed hosts. Empty means
	// any host (the shipped default, matching a development setup).
	HTTPAllowlist []string
	// HTTPTimeout bounds a single HTTP request.
	HTTPTimeout time.Duration
	// ShellTimeout bounds a single shell command.
	ShellTimeout time.Duration
	// Clock supplies the current time for get_current_time (injectable for tests).
	Clock func() time.Time
	// HTTPClient overrides the HTTP client (injectable for tests).
	HTTPClient *http.Client
}

// Builtins returns the built-in capability set: current time, sandboxed
// calculator, mock web search, rooted file reader/writer, allow-listed HTTP
// requester and deny-listed shell runner. Register the returned tools with a
// Registry to make them available to agent definitions.
func Builtins(optFns ...func(o *BuiltinOptions)) []Tool {
	opts := BuiltinOptions{
		FileRoot:     ".",
		HTTPTimeout:  30 * time.Second,
		ShellTimeout: 30 * time.Second,
		Clock:        time.Now,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.HTTPTimeout}
	}

	return []Tool{
		NewCurrentTimeTool(opts.Clock),
		NewCalculateTool(),
		NewWebSearchTool(),
		NewReadFileTool(opts.FileRoot),
		NewWriteFileTool(opts.FileRoot),
		NewShellCommandTool(opts.ShellTimeout),
		NewHTTPRequestTool(opts.HTTPClient, opts.HTTPAllowlist),
	}
}

// NewCurrentTimeTool returns the get_current_time capability.
func NewCurrentTimeTool(clock func() time.Time) *FunctionTool {
	if clock == nil {
		clock = time.Now
	}
	return NewFunctionTool(
		"get_current_time",
		"Get the current date and time",
		map[string]any{"type": "object", "properties": map[string]any{}},
		func(_ context.Context, _ map[string]any) (any, error) {
			return clock().Format("2006-01-02 15:04:05"), nil
		},
	)
}

// NewCalculateTool returns the sandboxed arithmetic evaluator. Expressions
// may only contain digits, + - * /, decimal points, parentheses and spaces.
func NewCalculateTool() *FunctionTool {
	return NewFunctionTool(
		"calculate",
		"Safely evaluate a mathematical expression",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"expression": map[string]any{
					"type":        "string",
					"description": "Mathematical expression to evaluate",
				},
			},
			"required": []string{"expression"},
		},
		func(_ context.Context, args map[string]any) (any, error) {
			expr, _ := args["expression"].(string)
			v, err := evalExpression(expr)
			if err != nil {
				return nil, NewToolError("calculate", ErrInvalidArguments, err.Error())
			}
			return formatNumber(v), nil
		},
	)
}

// NewWebSearchTool returns a canned web search capability. Swap in a real
// search backend by registering a tool with the same spec.
func NewWebSearchTool() *FunctionTool {
	return NewFunctionTool(
		"web_search",
		"Perform a web search",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "Search query",
				},
				"num_results": map[string]any{
					"type":        "integer",
					"description": "Number of results to return",
				},
			},
			"required": []string{"query"},
		},
		func(_ context.Context, args map[string]any) (any, error) {
			query, _ := args["query"].(string)
			numResults := 5
			if n, ok := args["num_results"].(float64); ok && n > 0 {
				numResults = int(n)
			}
			var b strings.Builder
			fmt.Fprintf(&b, "Search results for %q (top %d results):\n", query, numResults)
			for i := 1; i <= 3; i++ {
				fmt.Fprintf(&b, "%d. Example result %d for %s\n", i, i, query)
			}
			return b.String(), nil
		},
	)
}

// NewReadFileTool returns the read_file capability confined to root.
func NewReadFileTool(root string) *FunctionTool {
	return NewFunctionTool(
		"read_file",
		"Read content from a file",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"file_path": map[string]any{
					"type":        "string",
					"description": "Path to the file to read, relative to the configured root",
				},
			},
			"required": []string{"file_path"},
		},
		func(_ context.Context, args map[string]any) (any, error) {
			path, _ := args["file_path"].(string)
			resolved, err := resolveWithinRoot(root, path)
			if err != nil {
				return nil, NewToolError("read_file", ErrInvalidArguments, err.Error())
			}
			data, err := os.ReadFile(resolved)
			if err != nil {
				return nil, fmt.Errorf("reading file: %w", err)
			}
			return string(data), nil
		},
	)
}

// NewWriteFileTool returns the write_file capability confined to root.
func NewWriteFileTool(root string) *FunctionTool {
	return NewFunctionTool(
		"write_file",
		"Write content to a file",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"file_path": map[string]any{
					"type":        "string",
					"description": "Path to the file to write, relative to the configured root",
				},
				"content": map[string]any{
					"type":        "string",
					"description": "Content to write to the file",
				},
			},
			"required": []string{"file_path", "content"},
		},
		func(_ context.Context, args map[string]any) (any, error) {
			path, _ := args["file_path"].(string)
			content, _ := args["content"].(string)
			resolved, err := resolveWithinRoot(root, path)
			if err != nil {
				return nil, NewToolError("write_file", ErrInvalidArguments, err.Error())
			}
			if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
				return nil, fmt.Errorf("creating directory: %w", err)
			}
			if err := os.WriteFile(resolved, []byte(content), 0o644); err != nil {
				return nil, fmt.Errorf("writing file: %w", err)
			}
			return fmt.Sprintf("Successfully wrote %d bytes to %s", len(content), path), nil
		},
	)
}

// deniedCommands are command tokens rejected before any shell execution.
var deniedCommands = map[string]struct{}{
	"rm": {}, "rmdir": {}, "del": {}, "format": {}, "mkfs": {},
	"dd": {}, "sudo": {}, "su": {}, "chmod": {}, "chown": {},
	"shutdown": {}, "reboot": {},
}

// deniedPatterns are substrings rejected before any shell execution.
var deniedPatterns = []string{"> /dev/", ">/dev/", "rm -", ":(){"}

// NewShellCommandTool returns the execute_shell_command capability. Commands
// matching the destructive deny-list are rejected without being executed; the
// rest run under a bounded timeout with exit code, stdout and stderr captured.
func NewShellCommandTool(timeout time.Duration) *FunctionTool {
	return NewFunctionTool(
		"execute_shell_command",
		"Execute a shell command (with safety restrictions)",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"command": map[string]any{
					"type":        "string",
					"description": "Shell command to execute",
				},
			},
			"required": []string{"command"},
		},
		func(ctx context.Context, args map[string]any) (any, error) {
			command, _ := args["command"].(string)
			if reason := deniedShellReason(command); reason != "" {
				return nil, NewToolError("execute_shell_command", ErrInvalidArguments, reason)
			}

			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			cmd := exec.CommandContext(ctx, "/bin/sh", "-c", command)
			var stdout, stderr strings.Builder
			cmd.Stdout = &stdout
			cmd.Stderr = &stderr

			err := cmd.Run()
			if ctx.Err() == context.DeadlineExceeded {
				return nil, NewToolError("execute_shell_command", ErrTimeout, "command timed out")
			}

			exitCode := 0
			if err != nil {
				if exitErr, ok := err.(*exec.ExitError); ok {
					exitCode = exitErr.ExitCode()
				} else {
					return nil, fmt.Errorf("executing command: %w", err)
				}
			}

			return fmt.Sprintf("Exit code: %d\nOutput: %s\nError: %s", exitCode, stdout.String(), stderr.String()), nil
		},
	)
}

// deniedShellReason returns a non-empty rejection reason when the command
// matches the destructive deny-list.
func deniedShellReason(command string) string {
	lower := strings.ToLower(command)
	for _, pattern := range deniedPatterns {
		if strings.Contains(lower, pattern) {
			return fmt.Sprintf("command contains forbidden pattern %q", pattern)
		}
	}
	for _, field := range strings.Fields(lower) {
		token := filepath.Base(strings.TrimLeft(field, "(;&|"))
		if _, denied := deniedCommands[token]; denied {
			return fmt.Sprintf("command %q is not allowed for security reasons", token)
		}
	}
	return ""
}

// httpBodyLimit caps the response excerpt returned to the model.
const httpBodyLimit = 1000

// NewHTTPRequestTool returns the http_request capability. An empty allowlist
// permits any host; a non-empty one restricts requests to the listed hosts.
func NewHTTPRequestTool(client *http.Client, allowlist []string) *FunctionTool {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	allowed := make(map[string]struct{}, len(allowlist))
	for _, host := range allowlist {
		allowed[strings.ToLower(host)] = struct{}{}
	}

	return NewFunctionTool(
		"http_request",
		"Make an HTTP request",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"url": map[string]any{
					"type":        "string",
					"description": "URL to request",
				},
				"method": map[string]any{
					"type":        "string",
					"description": "HTTP method (GET or POST)",
				},
				"data": map[string]any{
					"type":        "string",
					"description": "Request body for POST requests",
				},
			},
			"required": []string{"url"},
		},
		func(ctx context.Context, args map[string]any) (any, error) {
			rawURL, _ := args["url"].(string)
			method, _ := args["method"].(string)
			data, _ := args["data"].(string)
			if method == "" {
				method = http.MethodGet
			}
			method = strings.ToUpper(method)
			if method != http.MethodGet && method != http.MethodPost {
				return nil, NewToolError("http_request", ErrInvalidArguments, fmt.Sprintf("unsupported HTTP method %q", method))
			}

			u, err := url.Parse(rawURL)
			if err != nil || u.Host == "" {
				return nil, NewToolError("http_request", ErrInvalidArguments, fmt.Sprintf("invalid url %q", rawURL))
			}
			if len(allowed) > 0 {
				if _, ok := allowed[strings.ToLower(u.Hostname())]; !ok {
					return nil, NewToolError("http_request", ErrInvalidArguments, fmt.Sprintf("host %q is not on the allow-list", u.Hostname()))
				}
			}

			var body io.Reader
			if method == http.MethodPost && data != "" {
				body = strings.NewReader(data)
			}
			req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
			if err != nil {
				return nil, fmt.Errorf("building request: %w", err)
			}
			if method == http.MethodPost {
				req.Header.Set("Content-Type", "application/json")
			}

			resp, err := client.Do(req)
			if err != nil {
				return nil, fmt.Errorf("performing request: %w", err)
			}
			defer resp.Body.Close()

			excerpt, err := io.ReadAll(io.LimitReader(resp.Body, httpBodyLimit))
			if err != nil {
				return nil, fmt.Errorf("reading response: %w", err)
			}

			return fmt.Sprintf("Status: %d\nContent: %s", resp.StatusCode, excerpt), nil
		},
	)
}

// resolveWithinRoot joins path onto root and rejects any result escaping the
// root subtree.
func resolveWithinRoot(root, path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("file path is required")
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolving root: %w", err)
	}
	resolved := filepath.Join(absRoot, filepath.Clean("/"+path))
	rel, err := filepath.Rel(absRoot, resolved)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes the configured root", path)
	}
	return resolved, nil
}
