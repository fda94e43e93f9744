package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"scrimhub/internal/payments"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newStatusCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status <merchant-order-id>",
		Short: "Show the backend status of one payment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			client, err := a.client(store)
			if err != nil {
				return err
			}
			status, err := client.Status(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), status)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", status.MerchantOrderID, status.Status)
			if status.Message != "" {
				fmt.Fprintln(cmd.OutOrStdout(), status.Message)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full status as JSON")
	return cmd
}

func newHistoryCmd(a *app) *cobra.Command {
	return newRecordsCmd(a, "history", "List your payments", func(ctx context.Context, c *payments.Client) ([]payments.PaymentRecord, error) {
		return c.List(ctx)
	})
}

func newPendingCmd(a *app) *cobra.Command {
	return newRecordsCmd(a, "pending", "List your payments that are still pending", func(ctx context.Context, c *payments.Client) ([]payments.PaymentRecord, error) {
		return c.Pending(ctx)
	})
}

func newRecordsCmd(a *app, use, short string, fetch func(context.Context, *payments.Client) ([]payments.PaymentRecord, error)) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			client, err := a.client(store)
			if err != nil {
				return err
			}
			records, err := fetch(cmd.Context(), client)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), records)
			}
			return writeRecords(cmd.OutOrStdout(), records)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func writeRecords(w io.Writer, records []payments.PaymentRecord) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ORDER\tTYPE\tAMOUNT\tSTATUS\tFOR\tCREATED")
	for _, r := range records {
		target := "-"
		switch {
		case r.TournamentID != 0:
			target = fmt.Sprintf("tournament %d", r.TournamentID)
		case r.RegistrationID != 0:
			target = fmt.Sprintf("registration %d", r.RegistrationID)
		}
		created := "-"
		if !r.CreatedAt.IsZero() {
			created = r.CreatedAt.Local().Format("2006-01-02 15:04")
		}
		fmt.Fprintf(tw, "%s\t%s\t₹%.2f\t%s\t%s\t%s\n", r.MerchantOrderID, r.PaymentType, r.Amount, r.Status, target, created)
	}
	return tw.Flush()
}
