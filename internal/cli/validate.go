package cli

import (
	"github.com/spf13/cobra"

	"github.com/petrijr/taskflow/internal/definition"
)

// ValidatedDefinition is the JSON result for one valid file.
type ValidatedDefinition struct {
	File  string `json:"file"`
	Key   string `json:"key"`
	Nodes int    `json:"nodes"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <definition.yaml>...",
		Short: "Validate process definition files",
		Long: `Parse and validate process definition files without running them.

Every file is checked; the command fails if any of them is invalid.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}
	return cmd
}

func runValidate(opts *RootOptions, files []string, cmd *cobra.Command) error {
	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}

	var (
		valid    []ValidatedDefinition
		firstErr error
	)
	for _, file := range files {
		def, err := definition.LoadFile(file, definition.BuiltinActions())
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			if !out.JSON() {
				_ = out.Error(ErrCodeInvalidDefinition, err.Error())
			}
			continue
		}
		valid = append(valid, ValidatedDefinition{File: file, Key: def.Key, Nodes: len(def.Nodes)})
		if !out.JSON() {
			out.Printf("ok %s (%d nodes)\n", def.Key, len(def.Nodes))
		}
	}

	if firstErr != nil {
		if out.JSON() {
			_ = out.Error(ErrCodeInvalidDefinition, firstErr.Error())
		}
		return WrapExitError(ExitFailure, "invalid definition", firstErr)
	}
	if out.JSON() {
		return out.Success(valid)
	}
	return nil
}
