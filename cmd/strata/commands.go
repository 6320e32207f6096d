package main

import (
	"fmt"
	"strings"

	"github.com/kzs0/strata/trace"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newHeadersCmd(vp *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "headers",
		Short: "Print the propagation headers for an outgoing request",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := newSession(cmd, vp)
			if err != nil {
				return err
			}
			defer s.done()

			for _, h := range s.store.TracePropagationHeaders(s.ctx) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", h.Name, h.Value)
			}
			return nil
		},
	}
}

func newEnvCmd(vp *viper.Viper) *cobra.Command {
	var export bool
	cmd := &cobra.Command{
		Use:   "env",
		Short: "Print SENTRY_TRACE and SENTRY_BAGGAGE for child processes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := newSession(cmd, vp)
			if err != nil {
				return err
			}
			defer s.done()

			for _, kv := range s.store.TraceEnv(s.ctx) {
				if export {
					name, value, _ := strings.Cut(kv, "=")
					fmt.Fprintf(cmd.OutOrStdout(), "export %s='%s'\n", name, value)
					continue
				}
				fmt.Fprintln(cmd.OutOrStdout(), kv)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&export, "export", false, "print shell export statements")
	return cmd
}

func newMetaCmd(vp *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "meta",
		Short: "Print HTML meta tags continuing the trace in a browser",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := newSession(cmd, vp)
			if err != nil {
				return err
			}
			defer s.done()

			fmt.Fprintln(cmd.OutOrStdout(), s.store.TracePropagationMeta(s.ctx))
			return nil
		},
	}
}

func newParseCmd() *cobra.Command {
	var baggage string
	cmd := &cobra.Command{
		Use:   "parse <sentry-trace|traceparent>",
		Short: "Decode a trace header",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, format, err := parseTraceHeader(args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "format:         %s\n", format)
			fmt.Fprintf(out, "trace_id:       %s\n", data.TraceID)
			if data.ParentSpanID.IsValid() {
				fmt.Fprintf(out, "parent_span_id: %s\n", data.ParentSpanID)
			}
			if data.ParentSampled.IsDefined() {
				fmt.Fprintf(out, "sampled:        %s\n", data.ParentSampled)
			}

			if baggage != "" {
				b := trace.ParseBaggage(baggage)
				for _, it := range b.Items() {
					fmt.Fprintf(out, "baggage.%s: %s\n", it.Key, it.Value)
				}
				if tp := b.ThirdParty(); tp != "" {
					fmt.Fprintf(out, "third_party:    %s\n", tp)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&baggage, "with-baggage", "", "also decode a baggage header")
	return cmd
}

// parseTraceHeader accepts a W3C traceparent or a sentry-trace value.
func parseTraceHeader(value string) (trace.TraceparentData, string, error) {
	if data, err := trace.ParseTraceparent(value); err == nil {
		return data, "traceparent", nil
	}
	data, err := trace.ParseSentryTrace(value)
	if err != nil {
		return data, "", errors.Wrap(err, "neither traceparent nor sentry-trace")
	}
	return data, "sentry-trace", nil
}
