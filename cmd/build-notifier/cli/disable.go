package cli

import (
	"fmt"
	"slices"

	"github.com/davarch/build-notifier/internal/infrastructure/config"
	"github.com/spf13/cobra"
)

var disableCmd = &cobra.Command{
	Use:   "disable <build_type>",
	Short: "Remove a build type from the whitelist in config.yaml",
	Args:  cobra.MatchAll(cobra.ExactArgs(1)),
	RunE: func(cmd *cobra.Command, args []string) error {
		project, file, err := loadForEdit()
		if err != nil {
			return err
		}

		id := config.BuildTypeID(project, args[0])
		i := indexOf(project, file.Poll.Whitelist, string(id))
		if i < 0 {
			fmt.Printf("no change (%s not whitelisted)\n", id)
			return nil
		}

		file.Poll.Whitelist = slices.Delete(file.Poll.Whitelist, i, i+1)
		if len(file.Poll.Whitelist) == 0 {
			fmt.Println("warning: whitelist is now empty, every build type will be tracked")
		}

		if err := config.Save(cfgPath, file); err != nil {
			return err
		}
		fmt.Printf("disabled: %s\n", id)

		return nil
	},
}

func init() {
	disableCmd.ValidArgsFunction = func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if len(args) > 0 {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		file, err := config.LoadFile(cfgPath)
		if err != nil {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		return file.Poll.Whitelist, cobra.ShellCompDirectiveNoFileComp
	}

	rootCmd.AddCommand(disableCmd)
}
