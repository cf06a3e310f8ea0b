package main

import (
	"fmt"
	"strings"

	"github.com/bytedance/sonic"

	"github.com/shx815/simple-openhands/internal/providers/http/client"
)

const emptyOutput = "[empty output]"

// render formats an observation body for a language model. Bodies without a
// string content are pretty printed, and non-JSON bodies are returned as is.
func render(body []byte) string {
	var data map[string]interface{}
	if err := sonic.Unmarshal(body, &data); err != nil {
		return string(body)
	}

	content, ok := data["content"].(string)
	if !ok {
		out, err := sonic.ConfigStd.MarshalIndent(data, "", "  ")
		if err != nil {
			return string(body)
		}
		return string(out)
	}
	if strings.TrimSpace(content) == "" {
		content = emptyOutput
	}
	return fmt.Sprintf("Command ran and generated the following output:\n```\n%s\n```", content)
}

// curlCommand renders the request as a POSIX shell curl invocation
func curlCommand(ep client.Endpoint, body string) string {
	parts := []string{
		"curl", "-s", "-X", "POST",
		shellQuote(strings.TrimRight(ep.URL, "/") + "/execute_action"),
		"-H", shellQuote("Content-Type: application/json"),
	}
	if ep.Key != "" {
		parts = append(parts, "-H", shellQuote(client.HeaderAPIKey+": "+ep.Key))
	}
	parts = append(parts, "-d", shellQuote(body))
	return strings.Join(parts, " ")
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}
