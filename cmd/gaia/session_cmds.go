package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stxapps/gaia-go/pkg/models"
	"github.com/stxapps/gaia-go/pkg/retry"
)

func (a *app) loginCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "login",
		Short:       "Connect to the hub and store the session",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{annotationKey: "always"},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := a.cache.Invalidate(ctx); err != nil {
				return err
			}
			s, err := retry.DoWithResult(ctx, a.retry, func() (*models.Session, error) {
				return a.cache.GetOrCreate(ctx)
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in to %s as %s\n", s.HubBaseURL, s.StorageAddress)
			return nil
		},
	}
}

func (a *app) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.cache.Invalidate(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}

func (a *app) whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the active session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.client.Session(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Address:  %s\n", s.StorageAddress)
			fmt.Fprintf(out, "Hub:      %s\n", s.HubBaseURL)
			fmt.Fprintf(out, "Read URL: %s%s/\n", s.ReadURLPrefix, s.StorageAddress)
			return nil
		},
	}
}
