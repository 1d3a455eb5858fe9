package cli

import (
	"fmt"
	"strings"

	"github.com/davarch/build-notifier/internal/infrastructure/config"
	"github.com/spf13/cobra"
)

var enableCmd = &cobra.Command{
	Use:   "enable <build_type>",
	Short: "Add a build type to the whitelist in config.yaml",
	Args:  cobra.MatchAll(cobra.ExactArgs(1)),
	RunE: func(cmd *cobra.Command, args []string) error {
		project, file, err := loadForEdit()
		if err != nil {
			return err
		}

		id := config.BuildTypeID(project, args[0])
		if id == "" {
			return fmt.Errorf("empty build type")
		}
		if err := config.ValidateBuildType(string(id)); err != nil {
			return err
		}
		if indexOf(project, file.Poll.Whitelist, string(id)) >= 0 {
			fmt.Printf("no change (%s already whitelisted)\n", id)
			return nil
		}

		file.Poll.Whitelist = append(file.Poll.Whitelist, config.ShortName(project, id))
		if err := config.Save(cfgPath, file); err != nil {
			return err
		}

		fmt.Printf("enabled: %s\n", id)
		return nil
	},
}

func init() {
	enableCmd.ValidArgsFunction = func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if len(args) > 0 {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}

		types, err := newTeamCity(cfg).BuildTypes(cmd.Context(), cfg.TeamCity.Project)
		if err != nil {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}

		out := make([]string, 0, len(types))
		for _, bt := range types {
			short := config.ShortName(cfg.TeamCity.Project, config.BuildTypeID(cfg.TeamCity.Project, bt.ID))
			if strings.HasPrefix(short, toComplete) {
				out = append(out, short)
			}
		}

		return out, cobra.ShellCompDirectiveNoFileComp
	}

	rootCmd.AddCommand(enableCmd)
}

// loadForEdit returns the effective project and the file-only config, so the
// saved file never picks up env overrides.
func loadForEdit() (string, config.Config, error) {
	file, err := config.LoadFile(cfgPath)
	if err != nil {
		return "", file, err
	}
	eff, _ := config.Load(cfgPath)
	return eff.TeamCity.Project, file, nil
}

func indexOf(project string, whitelist []string, id string) int {
	for i, name := range whitelist {
		if string(config.BuildTypeID(project, name)) == id {
			return i
		}
	}
	return -1
}
