package main

import (
	"fmt"
	"strings"

	"github.com/Sternrassler/donorschoose-client/pkg/query"
	"github.com/spf13/cobra"
)

func newURLCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "url <keywords...>",
		Short: "Print the request URL for one listing page",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := queryOptionsFromFlags(cmd)
			if err != nil {
				return err
			}
			start, _ := cmd.Flags().GetInt("index")
			size, _ := cmd.Flags().GetInt("max")

			p := a.params(strings.Join(args, " "), opts)
			p.Start = start
			p.PageSize = size

			req, err := query.Build(p)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), req.URL)
			return nil
		},
	}

	addQueryFlags(cmd)
	cmd.Flags().Int("index", 0, "zero-based offset of the first record")
	cmd.Flags().Int("max", query.MaxPageSize, "page size (1-50)")

	return cmd
}
