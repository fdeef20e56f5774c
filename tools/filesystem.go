package tools

import (
	"context"
	"encoding/json"
	"os"

	"github.com/toolwire/toolwire/errors"
	"github.com/toolwire/toolwire/mcp"
)

// FilesystemAccess restricts which workspace paths the file tools may
// touch, as doublestar glob patterns.
type FilesystemAccess struct {
	Hidden   []string
	ReadOnly []string
}

type ReadFileInput struct {
	Path string `json:"path" jsonschema_description:"Path of the file to read, relative to the worker's workspace."`
}

// NewReadFileDefinition builds the read_file tool bound to the given
// access policy.
func NewReadFileDefinition(fsAccess FilesystemAccess) Definition {
	return Definition{
		Name:        "read_file",
		Description: "Read the entire content of a workspace file. Args: path (string).",
		InputSchema: GenerateSchema[ReadFileInput](),
		Handler: func(ctx context.Context, args json.RawMessage) ([]mcp.Content, error) {
			var in ReadFileInput
			if err := json.Unmarshal(args, &in); err != nil {
				return nil, errors.Wrapf(err, "invalid read_file arguments")
			}
			if in.Path == "" {
				return nil, errors.New("missing 'path' argument")
			}

			hidden, err := isPathRestricted(in.Path, fsAccess.Hidden)
			if err != nil {
				return nil, err
			}
			if hidden {
				return nil, errors.New("access denied: path '%s' is hidden", in.Path)
			}

			content, err := os.ReadFile(in.Path)
			if err != nil {
				return nil, errors.Wrapf(err, "failed to read file '%s'", in.Path)
			}
			return textResult(string(content)), nil
		},
	}
}
