package cli

import (
	"github.com/spf13/cobra"
)

type regionEntry struct {
	Code string `json:"code"`
	URL  string `json:"url"`
}

func NewRegionsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "regions",
		Short:         "List known CleverTap regions and their upload endpoints",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd.OutOrStdout(), cmd.ErrOrStderr())
			table, err := loadRegions(rootOpts)
			if err != nil {
				return err
			}
			out := make([]regionEntry, 0)
			for _, code := range table.Codes() {
				url, _ := table.Lookup(code)
				out = append(out, regionEntry{Code: code, URL: url})
			}
			if f.json() {
				return f.writeJSON(out)
			}
			for _, e := range out {
				f.printf("%-4s %s\n", e.Code, e.URL)
			}
			return nil
		},
	}
}
