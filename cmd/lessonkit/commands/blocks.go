package commands

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/livetemplate/lessonkit/internal/blocks"
)

type blockInfo struct {
	Type        string `json:"type"`
	Label       string `json:"label"`
	Version     int    `json:"version"`
	DefaultData any    `json:"defaultData"`
}

func newBlocksCommand() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "blocks",
		Short: "List the registered block types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg := blocks.Registry()
			out := cmd.OutOrStdout()

			if asJSON {
				infos := make([]blockInfo, 0, reg.Len())
				for _, p := range reg.Plugins() {
					infos = append(infos, blockInfo{
						Type:        p.Type(),
						Label:       p.Label(),
						Version:     p.Version(),
						DefaultData: p.DefaultData(),
					})
				}
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(infos)
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TYPE\tLABEL\tVERSION")
			for _, p := range reg.Plugins() {
				fmt.Fprintf(w, "%s\t%s\t%d\n", p.Type(), p.Label(), p.Version())
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print types with their default data as JSON")
	return cmd
}
