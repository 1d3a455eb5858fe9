package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/davarch/build-notifier/internal/infrastructure/config"
	"github.com/spf13/cobra"
)

var (
	listOnlyTracked   bool
	listOnlyUntracked bool
	listJSON          bool
)

type buildTypeRow struct {
	ID      string `json:"id"`
	Short   string `json:"short"`
	Name    string `json:"name"`
	Tracked bool   `json:"tracked"`
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List build types of the configured TeamCity project",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return err
		}

		types, err := newTeamCity(cfg).BuildTypes(cmd.Context(), cfg.TeamCity.Project)
		if err != nil {
			return err
		}

		wl := cfg.BuildTypeIDs()
		items := make([]buildTypeRow, 0, len(types))
		for _, bt := range types {
			id := config.BuildTypeID(cfg.TeamCity.Project, bt.ID)
			tracked := wl.Allows(id)
			if listOnlyTracked && !tracked {
				continue
			}
			if listOnlyUntracked && tracked {
				continue
			}
			items = append(items, buildTypeRow{
				ID:      bt.ID,
				Short:   config.ShortName(cfg.TeamCity.Project, id),
				Name:    bt.Name,
				Tracked: tracked,
			})
		}

		if listJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(items)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "SHORT\tID\tNAME\tTRACKED")
		for _, it := range items {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%t\n", it.Short, it.ID, it.Name, it.Tracked)
		}
		_ = w.Flush()
		if wl.Empty() {
			_, _ = fmt.Fprintln(os.Stderr, "whitelist is empty: every build type is tracked")
		}
		return nil
	},
}

func init() {
	listCmd.Flags().BoolVar(&listOnlyTracked, "tracked", false, "show only tracked build types")
	listCmd.Flags().BoolVar(&listOnlyUntracked, "untracked", false, "show only untracked build types")
	listCmd.Flags().BoolVar(&listJSON, "json", false, "print JSON")

	listCmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		if listOnlyTracked && listOnlyUntracked {
			return fmt.Errorf("flags --tracked and --untracked are mutually exclusive")
		}
		return nil
	}

	rootCmd.AddCommand(listCmd)
}
