package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	"github.com/toolwire/toolwire/errors"
	"github.com/toolwire/toolwire/mcp"
)

type ExecuteCommandInput struct {
	Command string `json:"command" jsonschema_description:"Shell command line to execute."`
}

// NewExecuteCommandDefinition builds the execute_command tool, limited
// to the given allowlist of command patterns.
func NewExecuteCommandDefinition(allowedCommands []string) Definition {
	description := "Executes a shell command. No commands are currently allowed. Args: command (string)."
	if len(allowedCommands) > 0 {
		var b strings.Builder
		b.WriteString("Executes a shell command. Args: command (string).\nAllowed command patterns:\n")
		for _, cmd := range allowedCommands {
			fmt.Fprintf(&b, "- %s\n", cmd)
		}
		description = b.String()
	}

	return Definition{
		Name:        "execute_command",
		Description: description,
		InputSchema: GenerateSchema[ExecuteCommandInput](),
		Handler: func(ctx context.Context, args json.RawMessage) ([]mcp.Content, error) {
			var in ExecuteCommandInput
			if err := json.Unmarshal(args, &in); err != nil {
				return nil, errors.Wrapf(err, "invalid execute_command arguments")
			}
			if in.Command == "" {
				return nil, errors.New("missing 'command' argument")
			}

			allowed, err := isCommandAllowed(in.Command, allowedCommands)
			if err != nil {
				return nil, err
			}
			if !allowed {
				return nil, errors.New("command '%s' is not in the list of allowed commands", in.Command)
			}

			parts := strings.Fields(in.Command)
			cmd := exec.CommandContext(ctx, parts[0], parts[1:]...)
			output, err := cmd.CombinedOutput()
			if err != nil {
				return nil, errors.Wrapf(err, "command execution failed. Output:\n%s", string(output))
			}
			return textResult(fmt.Sprintf("Command executed successfully. Output:\n%s", string(output))), nil
		},
	}
}
