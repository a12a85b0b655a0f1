package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	whereArgs []string
	setArgs   []string
)

func init() {
	for _, c := range []*cobra.Command{getCmd, updateCmd, removeCmd} {
		c.Flags().StringArrayVar(&whereArgs, "where", nil, "Match records with name=value (can be repeated, all must match)")
	}
	updateCmd.Flags().StringArrayVar(&setArgs, "set", nil, "Field to merge into matching records (name=value, can be repeated)")
}

// listCmd prints every record of a collection, or the collection names.
var listCmd = &cobra.Command{
	Use:   "list NAME [COLLECTION]",
	Short: "Lists collections or the records of one collection",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		w, _, err := unlockWallet(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		if len(args) == 1 {
			for _, c := range w.Collections() {
				fmt.Fprintln(cmd.OutOrStdout(), c)
			}
			return nil
		}

		records := w.Collection(args[1])
		if records == nil {
			return fmt.Errorf("collection %q not found", args[1])
		}
		return printJSON(cmd, records)
	},
}

// getCmd prints the last record matching --where.
var getCmd = &cobra.Command{
	Use:   "get NAME COLLECTION --where name=value...",
	Short: "Gets the last record matching all --where fields",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := parsePredicate(whereArgs)
		if err != nil {
			return err
		}
		w, _, err := unlockWallet(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		record, ok := w.Get(args[1], p)
		if !ok {
			return fmt.Errorf("no record in %q matches", args[1])
		}
		return printJSON(cmd, record)
	},
}

// addCmd appends a record and locks the wallet.
var addCmd = &cobra.Command{
	Use:   "add NAME COLLECTION name=value...",
	Short: "Adds a record to a collection",
	Args:  cobra.MinimumNArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		record, err := parseAssignments(args[2:])
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		w, password, err := unlockWallet(ctx, args[0])
		if err != nil {
			return err
		}

		if err := w.Add(args[1], record); err != nil {
			return err
		}
		if err := lockWallet(ctx, w, password); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Record added to '%s'\n", args[1])
		return nil
	},
}

// updateCmd merges --set fields into matching records and locks the wallet.
var updateCmd = &cobra.Command{
	Use:   "update NAME COLLECTION --where name=value... --set name=value...",
	Short: "Updates records matching all --where fields",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := parsePredicate(whereArgs)
		if err != nil {
			return err
		}
		if len(setArgs) == 0 {
			return fmt.Errorf("at least one --set name=value is required")
		}
		patch, err := parseAssignments(setArgs)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		w, password, err := unlockWallet(ctx, args[0])
		if err != nil {
			return err
		}

		updated, err := w.Update(args[1], p, patch)
		if err != nil {
			return err
		}
		if !updated {
			fmt.Fprintln(cmd.OutOrStdout(), "No matching records")
			return nil
		}
		if err := lockWallet(ctx, w, password); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Records in '%s' updated\n", args[1])
		return nil
	},
}

// removeCmd deletes matching records and locks the wallet.
var removeCmd = &cobra.Command{
	Use:   "remove NAME COLLECTION --where name=value...",
	Short: "Removes records matching all --where fields",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := parsePredicate(whereArgs)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		w, password, err := unlockWallet(ctx, args[0])
		if err != nil {
			return err
		}

		before := len(w.Collection(args[1]))
		remaining, err := w.Remove(args[1], p)
		if err != nil {
			return err
		}
		if err := lockWallet(ctx, w, password); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %d record(s) from '%s'\n", before-len(remaining), args[1])
		return nil
	},
}
