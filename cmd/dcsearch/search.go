package main

import (
	"fmt"
	"strings"

	"github.com/Sternrassler/donorschoose-client/pkg/results"
	"github.com/spf13/cobra"
)

func newSearchCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <keywords...>",
		Short: "Fetch every listing page matching the keywords",
		Long: `Search requests pages of 50 proposals at offsets 0, 50, 100, ... until the
API returns an empty page, then prints the record count check and a table of
ID, funding status and title. Any failed request aborts the search.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runSearch(cmd, strings.Join(args, " "))
		},
	}

	addQueryFlags(cmd)
	cmd.Flags().Bool("json", false, "output results as JSON")
	cmd.Flags().Bool("check", false, "print only the record count check; fail when counts differ")

	return cmd
}

func (a *app) runSearch(cmd *cobra.Command, keywords string) error {
	opts, err := queryOptionsFromFlags(cmd)
	if err != nil {
		return err
	}
	asJSON, _ := cmd.Flags().GetBool("json")
	checkOnly, _ := cmd.Flags().GetBool("check")

	s, err := a.newSearcher(cmd.Context())
	if err != nil {
		return err
	}
	defer s.Close()

	acc, err := s.Search(cmd.Context(), keywords, opts)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch {
	case asJSON:
		return results.FormatJSON(out, acc)
	case checkOnly:
		fmt.Fprintln(out, acc.CountCheck())
		if !acc.Complete() {
			return fmt.Errorf("record count mismatch: server reported %d, merged %d", acc.TotalAvailable(), acc.Len())
		}
		return nil
	default:
		fmt.Fprintln(out, acc.CountCheck())
		fmt.Fprintln(out, acc.ASCII())
		return nil
	}
}
