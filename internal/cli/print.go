package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/licensebundle/licensebundle/pkg/codec"
)

// printCommand creates the "print" command, which decodes an artifact
// and renders it to stdout.
func (c *CLI) printCommand() *cobra.Command {
	var summary bool

	cmd := &cobra.Command{
		Use:   "print <artifact>",
		Short: "Decode an artifact and print its licenses",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			list, err := codec.Decode(data)
			if err != nil {
				return err
			}

			if summary {
				fmt.Print(list.Summary())
				printDetail("%d packages", list.Len())
				return nil
			}
			fmt.Print(list.String())
			return nil
		},
	}

	cmd.Flags().BoolVar(&summary, "summary", false, "print one line per package instead of full texts")
	return cmd
}
