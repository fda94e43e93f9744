package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"scrimhub/internal/checkout"
	"scrimhub/internal/common/money"
	"scrimhub/internal/payments"
)

// outcomeError turns a non-successful outcome into a non-zero exit.
type outcomeError struct {
	outcome payments.Outcome
}

func (e *outcomeError) Error() string { return e.outcome.Message() }

func (e *outcomeError) Unwrap() error { return e.outcome.Err }

func reportOutcome(w io.Writer, o payments.Outcome) error {
	if o.Kind != payments.OutcomeSucceeded {
		return &outcomeError{outcome: o}
	}
	fmt.Fprintln(w, o.Message())
	if o.Session != nil {
		fmt.Fprintf(w, "merchant order: %s\n", o.Session.MerchantOrderID)
	}
	return nil
}

// bypassesCallback reports whether an explicit redirect URL sends the user
// somewhere other than the callback server derived from callbackBase.
func bypassesCallback(redirectURL, callbackBase string) (bool, error) {
	if redirectURL == "" {
		return false, nil
	}
	local, err := payments.CallbackURL(callbackBase)
	if err != nil {
		return false, err
	}
	return strings.TrimSuffix(redirectURL, "/") != strings.TrimSuffix(local, "/"), nil
}

func newPayCmd(a *app) *cobra.Command {
	var (
		paymentType    string
		amount         string
		tournamentID   int64
		registrationID int64
		redirectURL    string
	)

	cmd := &cobra.Command{
		Use:   "pay",
		Short: "Start a checkout and wait until the payment is resolved",
		Example: `  paycheck pay --type entry_fee --amount 500 --registration 42
  paycheck pay --type tournament_plan --amount 1999 --tournament 7`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			amt, err := money.ParseMajor(amount, money.INR)
			if err != nil {
				return err
			}
			req := payments.PaymentRequest{
				PaymentType:    payments.PaymentType(paymentType),
				Amount:         amt,
				TournamentID:   tournamentID,
				RegistrationID: registrationID,
				RedirectURL:    redirectURL,
			}

			deps, err := a.flowDeps(ctx)
			if err != nil {
				return err
			}

			if external, err := bypassesCallback(redirectURL, a.cfg.CallbackBaseURL); err != nil {
				return err
			} else if external {
				a.logger.Warn("checkout will not return to this command; finish with paycheck resume or run paycheck serve at the redirect URL",
					"redirect_url", redirectURL)
				fmt.Fprintln(cmd.ErrOrStderr(), "warning: --redirect-url does not point at the local callback server; press Ctrl-C after paying and run paycheck resume")
			}

			out := cmd.OutOrStdout()
			widget := checkout.NewRedirectWidget(func(_ context.Context, tokenURL string) error {
				_, err := fmt.Fprintf(out, "Complete the payment in your browser:\n  %s\n", tokenURL)
				return err
			}, a.logger)
			bridge := checkout.NewBridge(widget, a.logger)

			srv, err := startCallbackServer(ctx, a.cfg.CallbackAddr, checkout.NewCallbackHandler(widget, nil, a.logger), a.health(deps.store), a.logger)
			if err != nil {
				return err
			}
			defer srv.shutdown()

			initiator := payments.NewInitiator(deps.client, deps.store, bridge, a.cfg.CallbackBaseURL, a.logger)
			flow := payments.NewFlow(initiator, bridge, deps.poller, deps.store, deps.publisher, a.logger)

			return reportOutcome(out, flow.Run(ctx, req))
		},
	}

	f := cmd.Flags()
	f.StringVar(&paymentType, "type", "", "payment type: tournament_plan, scrim_plan or entry_fee")
	f.StringVar(&amount, "amount", "", "amount in rupees, e.g. 500 or 499.50")
	f.Int64Var(&tournamentID, "tournament", 0, "tournament ID for plan payments")
	f.Int64Var(&registrationID, "registration", 0, "registration ID for entry fees")
	f.StringVar(&redirectURL, "redirect-url", "", "override the checkout return URL; completion then needs paycheck resume or serve")
	_ = cmd.MarkFlagRequired("type")
	_ = cmd.MarkFlagRequired("amount")

	return cmd
}

func newResumeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "resume",
		Short: "Resume polling the last payment started on this machine",
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := a.flowDeps(cmd.Context())
			if err != nil {
				return err
			}
			flow := payments.NewFlow(nil, nil, deps.poller, deps.store, deps.publisher, a.logger)
			return reportOutcome(cmd.OutOrStdout(), flow.Resume(cmd.Context()))
		},
	}
}
