package cmd

import (
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"logcount/registry"
	"logcount/types"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "Print the effective source list as YAML",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sources, err := loadSources()
		if err != nil {
			return err
		}
		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(struct {
			Sources []types.Source `yaml:"sources"`
		}{registry.Describe(sources)})
	},
}
