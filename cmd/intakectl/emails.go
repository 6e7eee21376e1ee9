package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"fsm-intake/internal/client"
	"fsm-intake/internal/interpreter"
	"fsm-intake/internal/model"
)

func init() {
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List retained emails, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd.Context(), newClient(), jsonFlag, os.Stdout)
		},
	}
	rootCmd.AddCommand(listCmd)

	var remote bool
	showCmd := &cobra.Command{
		Use:   "show EMAIL_ID",
		Short: "Show one email with its interpreted status and next action",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(cmd.Context(), newClient(), args[0], remote, jsonFlag, os.Stdout)
		},
	}
	showCmd.Flags().BoolVar(&remote, "remote", false, "Use the server's interpretation for --session instead of interpreting locally")
	rootCmd.AddCommand(showCmd)

	deleteCmd := &cobra.Command{
		Use:   "delete EMAIL_ID",
		Short: "Delete one email and print the refreshed list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDelete(cmd.Context(), client.NewInbox(newClient()), args[0], os.Stdout)
		},
	}
	rootCmd.AddCommand(deleteCmd)

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every retained email",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClear(cmd.Context(), client.NewInbox(newClient()), os.Stdout)
		},
	}
	rootCmd.AddCommand(clearCmd)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runList(ctx context.Context, api *client.Client, asJSON bool, w io.Writer) error {
	emails, err := api.List(ctx)
	if err != nil {
		return err
	}
	if asJSON {
		return printJSON(w, emails)
	}
	printEmails(w, emails)
	return nil
}

func printEmails(w io.Writer, emails []*model.Email) {
	if len(emails) == 0 {
		fmt.Fprintln(w, "No emails.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tRECEIVED\tSTATUS\tFROM\tSUBJECT")
	for _, e := range emails {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			e.ID, e.ReceivedAt.Format(time.RFC3339), e.Status, e.SenderEmail, e.Subject)
	}
	tw.Flush()
}

func runShow(ctx context.Context, api *client.Client, id string, remote, asJSON bool, w io.Writer) error {
	email, err := api.Get(ctx, id)
	if err != nil {
		return err
	}

	var result *interpreter.Result
	if remote {
		result, err = api.Review(ctx, id)
		if err != nil {
			return err
		}
	} else {
		r := interpreter.NewLedger().Interpret(email)
		result = &r
	}

	if asJSON {
		return printJSON(w, map[string]interface{}{"email": email, "review": result})
	}
	printReview(w, email, result)
	return nil
}

func printReview(w io.Writer, email *model.Email, r *interpreter.Result) {
	fmt.Fprintf(w, "Email:    %s\n", email.ID)
	fmt.Fprintf(w, "From:     %s <%s>\n", email.SenderName, email.SenderEmail)
	fmt.Fprintf(w, "Subject:  %s\n", email.Subject)
	fmt.Fprintf(w, "Received: %s\n", email.ReceivedAt.Format(time.RFC3339))
	fmt.Fprintf(w, "Status:   %s\n", r.Status)
	if r.Notice != "" {
		fmt.Fprintf(w, "Notice:   %s\n", r.Notice)
	}
	if len(r.MissingFields) > 0 {
		fmt.Fprintf(w, "Missing:  %s\n", strings.Join(r.MissingFields, ", "))
	}
	fmt.Fprintf(w, "Action:   %s\n", r.Action.Description)
	if r.Action.ReplyRequired && r.Action.ReplyMessage != "" {
		fmt.Fprintf(w, "Reply to: %s\n\n%s\n", r.Action.Recipient, r.Action.ReplyMessage)
	}
	if q := r.Query; q != nil {
		fmt.Fprintln(w)
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintf(tw, "Query\t%s\n", q.QueryID)
		fmt.Fprintf(tw, "Customer\t%s <%s>\n", q.CustomerName, q.CustomerEmail)
		fmt.Fprintf(tw, "Service\t%s\n", orNotSpecified(q.ServiceType))
		fmt.Fprintf(tw, "Brand\t%s\n", orNotSpecified(q.AssetBrand))
		fmt.Fprintf(tw, "Address\t%s\n", orNotSpecified(q.Address))
		fmt.Fprintf(tw, "Urgency\t%s\n", orNotSpecified(q.Urgency))
		fmt.Fprintf(tw, "SLA\t%s\n", q.SLA)
		fmt.Fprintf(tw, "Engineer\t%s\n", q.AssignedEngineer)
		tw.Flush()
	}
}

func orNotSpecified(s string) string {
	if s == "" {
		return interpreter.NotSpecified
	}
	return s
}

func runDelete(ctx context.Context, inbox *client.Inbox, id string, w io.Writer) error {
	res, emails, err := inbox.DeleteAndRefresh(ctx, id)
	if err != nil {
		return err
	}
	if res.NotFound {
		fmt.Fprintf(w, "Email %s not found; nothing deleted.\n", id)
	} else {
		fmt.Fprintf(w, "Deleted email %s.\n", id)
	}
	printEmails(w, emails)
	return nil
}

func runClear(ctx context.Context, inbox *client.Inbox, w io.Writer) error {
	cleared, emails, err := inbox.ClearAndRefresh(ctx)
	if err != nil {
		var te *client.TransportError
		if errors.As(err, &te) && te.Retryable() {
			return fmt.Errorf("%w (the server may be unavailable; try again)", err)
		}
		return err
	}
	fmt.Fprintf(w, "Cleared %d emails.\n", cleared)
	printEmails(w, emails)
	return nil
}
