package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	gocmd "github.com/goliatone/go-command"
	grants "github.com/goliatone/go-grants"
	"github.com/goliatone/go-grants/adapters/gocommand"
	grantscommand "github.com/goliatone/go-grants/command"
	"github.com/goliatone/go-grants/core"
	grantsquery "github.com/goliatone/go-grants/query"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

func newRootCmd(out io.Writer, errOut io.Writer) *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:          "opgrants",
		Short:        "Manage incoming payments on remote Open Payments wallets",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			settings, err := loadCLISettings(commandContext(cmd))
			if err != nil {
				return err
			}
			opts.applySettings(cmd.Flags(), settings)
			return nil
		},
	}
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.driver, "driver", defaultDriver, "database driver (sqlite3|postgres), env GRANTS_DB_DRIVER")
	flags.StringVar(&opts.dsn, "dsn", defaultDSN, "database connection string, env GRANTS_DB_DSN")
	flags.StringVar(&opts.clientWalletAddress, "client", "", "client wallet address sent with grant requests, env GRANTS_CLIENT_WALLET_ADDRESS")
	flags.StringVar(&opts.logLevel, "log-level", defaultLogLevel, "log level (trace|debug|info|warn|error), env GRANTS_LOG_LEVEL")
	flags.StringVar(&opts.tokenKey, "token-key", "", "key used to seal access tokens at rest, env GRANTS_TOKEN_KEY")
	flags.DurationVar(&opts.requestTimeout, "timeout", defaultRequestTimeout, "per request timeout for remote calls")
	flags.BoolVar(&opts.debugSQL, "debug-sql", false, "log SQL statements")

	rootCmd.AddCommand(newGetCmd(opts))
	rootCmd.AddCommand(newCompleteCmd(opts))
	rootCmd.AddCommand(newCreateCmd(opts))

	return rootCmd
}

// applySettings fills flags the caller left unset from the environment.
func (o *rootOptions) applySettings(flags *pflag.FlagSet, settings cliSettings) {
	fill := func(name string, target *string, value string) {
		if value == "" || flags.Changed(name) {
			return
		}
		*target = value
	}
	fill("driver", &o.driver, settings.DBDriver)
	fill("dsn", &o.dsn, settings.DBDSN)
	fill("client", &o.clientWalletAddress, settings.ClientWalletAddress)
	fill("log-level", &o.logLevel, settings.LogLevel)
	fill("token-key", &o.tokenKey, settings.TokenKey)
}

func newGetCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <incoming-payment-url>",
		Short: "Fetch a remote incoming payment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, _ *app) error {
				payment, err := gocommand.Query[grantsquery.GetRemoteIncomingPaymentMessage, grants.IncomingPayment](
					ctx,
					grantsquery.GetRemoteIncomingPaymentMessage{URL: args[0]},
				)
				if err != nil {
					return err
				}
				return printPayment(cmd.OutOrStdout(), payment)
			})
		},
	}
}

func newCompleteCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "complete <incoming-payment-url>",
		Short: "Complete a remote incoming payment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, _ *app) error {
				payment, err := dispatchForPayment(ctx, grantscommand.CompleteRemoteIncomingPaymentMessage{URL: args[0]})
				if err != nil {
					return err
				}
				return printPayment(cmd.OutOrStdout(), payment)
			})
		},
	}
}

type createOptions struct {
	amount      string
	assetCode   string
	assetScale  int
	expiresIn   time.Duration
	description string
	externalRef string
}

func newCreateCmd(opts *rootOptions) *cobra.Command {
	createOpts := &createOptions{}
	cmd := &cobra.Command{
		Use:   "create <wallet-address-url>",
		Short: "Create an incoming payment on a remote wallet address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			msg, err := createOpts.message(args[0], time.Now())
			if err != nil {
				return err
			}
			return withApp(cmd, opts, func(ctx context.Context, _ *app) error {
				payment, err := dispatchForPayment(ctx, msg)
				if err != nil {
					return err
				}
				return printPayment(cmd.OutOrStdout(), payment)
			})
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&createOpts.amount, "amount", "", "incoming amount value in minor units")
	flags.StringVar(&createOpts.assetCode, "asset-code", "", "asset code for --amount")
	flags.IntVar(&createOpts.assetScale, "asset-scale", 2, "asset scale for --amount")
	flags.DurationVar(&createOpts.expiresIn, "expires-in", 0, "expire the incoming payment after this duration")
	flags.StringVar(&createOpts.description, "description", "", "metadata description")
	flags.StringVar(&createOpts.externalRef, "external-ref", "", "metadata external reference")
	return cmd
}

func (o createOptions) message(walletAddressURL string, now time.Time) (grantscommand.CreateRemoteIncomingPaymentMessage, error) {
	args := core.CreateRemoteIncomingPaymentArgs{WalletAddressURL: walletAddressURL}

	amount := strings.TrimSpace(o.amount)
	assetCode := strings.TrimSpace(o.assetCode)
	switch {
	case amount != "" && assetCode == "":
		return grantscommand.CreateRemoteIncomingPaymentMessage{}, fmt.Errorf("opgrants: --asset-code is required with --amount")
	case amount != "":
		args.IncomingAmount = &core.Amount{Value: amount, AssetCode: assetCode, AssetScale: o.assetScale}
	}
	if o.expiresIn > 0 {
		expiresAt := now.Add(o.expiresIn).UTC()
		args.ExpiresAt = &expiresAt
	}

	metadata := map[string]any{}
	if value := strings.TrimSpace(o.description); value != "" {
		metadata["description"] = value
	}
	if value := strings.TrimSpace(o.externalRef); value != "" {
		metadata["externalRef"] = value
	}
	if len(metadata) > 0 {
		args.Metadata = metadata
	}
	return grantscommand.CreateRemoteIncomingPaymentMessage{Args: args}, nil
}

func withApp(cmd *cobra.Command, opts *rootOptions, run func(context.Context, *app) error) error {
	ctx := commandContext(cmd)
	instance, err := openApp(ctx, *opts, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer func() { _ = instance.Close() }()
	return run(ctx, instance)
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// dispatchForPayment sends msg through the dispatcher and returns the payment
// the command stored in its result collector.
func dispatchForPayment[T any](ctx context.Context, msg T) (core.IncomingPayment, error) {
	collector := gocmd.NewResult[core.IncomingPayment]()
	ctx = gocmd.ContextWithResult(ctx, collector)
	if err := gocommand.Dispatch(ctx, msg); err != nil {
		return core.IncomingPayment{}, err
	}
	payment, ok := collector.Load()
	if !ok {
		return core.IncomingPayment{}, fmt.Errorf("opgrants: command produced no incoming payment")
	}
	return payment, nil
}

// printPayment writes the resource server body when one was kept, otherwise
// the typed view.
func printPayment(out io.Writer, payment core.IncomingPayment) error {
	if len(payment.Raw) > 0 {
		var buf bytes.Buffer
		if err := json.Indent(&buf, payment.Raw, "", "  "); err == nil {
			buf.WriteByte('\n')
			_, err = out.Write(buf.Bytes())
			return err
		}
	}
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(payment)
}
