package main

import (
	"fmt"
	"time"

	"licensekeys-bot/internal/inventory"
	"licensekeys-bot/internal/license"

	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Rebuild the local pool from the license export",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := openApp(cmd, journalNone)
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.inv.Reconcile()
		if err != nil {
			return fmt.Errorf("failed to sync keys: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Monthly keys: %d\nLifetime keys: %d\n", res.Monthly, res.Lifetime)
		return nil
	},
}

var giveTo string

var giveCmd = &cobra.Command{
	Use:   "give <monthly|lifetime>",
	Short: "Take a random key of the given type out of the pool",
	Long: `Take a random key of the given type out of the local pool and mark it
used in the license export.

Example:
  licensebot give monthly --to alice`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := license.ParseClass(args[0])
		if err != nil {
			return err
		}
		a, err := openApp(cmd, journalRequired)
		if err != nil {
			return err
		}
		defer a.Close()

		alloc, err := a.inv.Allocate(c, inventory.Recipient{Name: giveTo})
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), alloc.Key)
		if !alloc.LedgerMarked {
			fmt.Fprintln(cmd.ErrOrStderr(), "warning: key could not be marked used in the export")
		}
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status <key>",
	Short: "Show a key's status and type from the license export",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd, journalOptional)
		if err != nil {
			return err
		}
		defer a.Close()

		st, err := a.inv.Status(args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Key:    %s\nStatus: %s\nType:   %s\n", st.Key, st.Status, st.Class.Title())
		if !st.UsedAt.IsZero() {
			fmt.Fprintf(out, "Used:   %s\n", st.UsedAt.Format(time.RFC3339))
		}
		if d := st.Dispensation; d != nil {
			fmt.Fprintf(out, "Given:  %s to %q\n", d.DispensedAt.Format(time.RFC3339), d.Recipient)
		}
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List every key in the export that is not marked used",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := openApp(cmd, journalNone)
		if err != nil {
			return err
		}
		defer a.Close()

		keys, err := a.inv.ListUnused()
		if err != nil {
			return err
		}
		for i, k := range keys {
			fmt.Fprintf(cmd.OutOrStdout(), "%d. %s\n", i+1, k)
		}
		return nil
	},
}

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recently given keys",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := openApp(cmd, journalRequired)
		if err != nil {
			return err
		}
		defer a.Close()

		list, err := a.inv.Recent(historyLimit)
		if err != nil {
			return err
		}
		for _, d := range list {
			marked := "marked"
			if !d.LedgerMarked {
				marked = "NOT marked: " + d.LedgerError
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s  %-8s  %-20s  %s  (%s)\n",
				d.DispensedAt.Format(time.RFC3339), d.Class, d.Recipient, d.Key, marked)
		}
		return nil
	},
}

func init() {
	giveCmd.Flags().StringVar(&giveTo, "to", "", "recipient recorded in the journal")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "number of entries")
	rootCmd.AddCommand(syncCmd, giveCmd, statusCmd, listCmd, historyCmd)
}
