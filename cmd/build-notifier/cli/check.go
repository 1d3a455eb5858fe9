package cli

import (
	"fmt"
	"os"
	"slices"
	"text/tabwriter"

	"github.com/davarch/build-notifier/internal/domain"
	"github.com/davarch/build-notifier/internal/infrastructure/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run one dry cycle: baseline, fetch and resolve without sending anything",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return err
		}

		uc := newUseCase(zap.NewNop(), cfg, newTeamCity(cfg), nil)
		changes, fetched, err := uc.Changes(cmd.Context())
		if err != nil {
			return err
		}

		wm := uc.Watermark()
		types := make([]domain.BuildTypeID, 0, len(wm))
		for t := range wm {
			types = append(types, t)
		}
		slices.Sort(types)

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "BUILD TYPE\tBASELINE")
		for _, t := range types {
			_, _ = fmt.Fprintf(w, "%s\t%d\n", t, wm[t])
		}
		_ = w.Flush()

		fmt.Printf("fetched %d builds, %d would be notified\n", fetched, len(changes))
		for _, b := range changes {
			fmt.Printf("  %s #%s (%d) %s\n", b.BuildTypeID, b.Number, b.ID, b.Status)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
