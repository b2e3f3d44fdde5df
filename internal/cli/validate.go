package cli

import (
	"context"

	"github.com/spf13/cobra"

	"clevertap-sync/internal/mapping"
)

type configReport struct {
	SourceEntity string `json:"source_entity"`
	Status       string `json:"status"`
	Mappings     int    `json:"mappings"`
	Usable       bool   `json:"usable"`
	Identifier   string `json:"identifier,omitempty"`
}

// NewValidateCommand checks a seed file of sync configurations without
// dispatching anything.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	var configsPath string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a YAML file of sync configurations",
		Long: `Validate a YAML file of sync configurations.

Each configuration goes through the same checks as the admin API. A
configuration is usable when it maps exactly one mandatory field onto
customer_id.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd.Context(), rootOpts, configsPath, cmd)
		},
	}
	cmd.Flags().StringVarP(&configsPath, "configs", "c", "", "YAML file of sync configurations")
	_ = cmd.MarkFlagRequired("configs")
	return cmd
}

func runValidate(ctx context.Context, opts *RootOptions, configsPath string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	f := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	seed, err := mapping.LoadSeedFile(configsPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "load configs", err)
	}
	resolved, err := seed.Apply(ctx, mapping.NewService(mapping.NewMemoryRepo()))
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configs", err)
	}

	reports := make([]configReport, 0, len(resolved))
	unusable := 0
	for _, rc := range resolved {
		r := configReport{
			SourceEntity: rc.Config.SourceEntity,
			Status:       string(rc.Config.Status),
			Mappings:     len(rc.Mappings),
			Usable:       rc.Usable(),
		}
		if id, ok := rc.Identifier(); ok {
			r.Identifier = id.SourceField
		} else {
			unusable++
		}
		reports = append(reports, r)
	}

	if f.json() {
		if err := f.writeJSON(reports); err != nil {
			return err
		}
	} else {
		for _, r := range reports {
			mark := "ok"
			if !r.Usable {
				mark = "UNUSABLE"
			}
			f.printf("%-8s %-20s %-8s %d mappings\n", mark, r.SourceEntity, r.Status, r.Mappings)
		}
	}
	if unusable > 0 {
		return NewExitError(ExitFailure, "configuration without a single mandatory customer_id mapping")
	}
	return nil
}
