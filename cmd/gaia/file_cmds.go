package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/stxapps/gaia-go/pkg/client"
	"github.com/stxapps/gaia-go/pkg/models"
	"github.com/stxapps/gaia-go/pkg/retry"
)

func (a *app) getCmd() *cobra.Command {
	var (
		opts     client.GetOptions
		username string
		origin   string
		output   string
	)
	cmd := &cobra.Command{
		Use:         "get <path>",
		Short:       "Read a file",
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{annotationKey: "decrypt"},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if username != "" {
				if origin == "" {
					origin = a.cfg.AppOrigin
				}
				if origin == "" {
					return errors.New("--app (or app_origin) is required with --user")
				}
				opts.Target = &models.MultiplayerTarget{
					Username:          username,
					AppOrigin:         origin,
					ZoneFileLookupURL: a.cfg.LookupURL,
				}
			}

			content, err := retry.DoWithResult(ctx, a.retry, func() (*models.Content, error) {
				return a.client.GetFile(ctx, args[0], opts)
			})
			if err != nil {
				return err
			}
			if output != "" {
				return os.WriteFile(output, content.Data, 0644)
			}
			_, err = cmd.OutOrStdout().Write(content.Data)
			return err
		},
	}
	cmd.Flags().BoolVar(&opts.Decrypt, "decrypt", false, "decrypt with the identity key")
	cmd.Flags().BoolVar(&opts.Verify, "verify", false, "verify the signature")
	cmd.Flags().StringVar(&username, "user", "", "read from another user's bucket")
	cmd.Flags().StringVar(&origin, "app", "", "app origin for --user")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to file instead of stdout")
	return cmd
}

func (a *app) putCmd() *cobra.Command {
	var (
		opts   client.PutOptions
		binary bool
	)
	cmd := &cobra.Command{
		Use:   "put <path> [source]",
		Short: "Write a file",
		Long: `Write a file. The source is a local file, or "-" (the default) for
stdin. A path of the form file://<local path> uploads that local file.`,
		Args:        cobra.RangeArgs(1, 2),
		Annotations: map[string]string{annotationKey: "always"},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			path := args[0]

			var data []byte
			if !strings.HasPrefix(path, client.FileScheme) {
				src := "-"
				if len(args) == 2 {
					src = args[1]
				}
				var err error
				if data, err = readSource(cmd, src); err != nil {
					return err
				}
			}
			opts.IsText = !binary && utf8.Valid(data)

			url, err := retry.DoWithResult(ctx, a.retry, func() (string, error) {
				return a.client.PutFile(ctx, path, data, opts)
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), url)
			return nil
		},
	}
	cmd.Flags().BoolVar(&opts.Encrypt, "encrypt", false, "encrypt before upload")
	cmd.Flags().StringVar(&opts.EncryptionKey, "recipient", "", "public key to encrypt to (default: own)")
	cmd.Flags().BoolVar(&opts.Sign, "sign", false, "sign the content")
	cmd.Flags().StringVar(&opts.ContentType, "content-type", "", "content type for unencrypted uploads")
	cmd.Flags().BoolVar(&binary, "binary", false, "treat the content as binary")
	return cmd
}

func readSource(cmd *cobra.Command, src string) ([]byte, error) {
	if src == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(src)
}

func (a *app) rmCmd() *cobra.Command {
	var opts client.DeleteOptions
	cmd := &cobra.Command{
		Use:   "rm <path>",
		Short: "Delete a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Not retried: a repeated delete reports the first one's success
			// as not found.
			return a.client.DeleteFile(cmd.Context(), args[0], opts)
		},
	}
	cmd.Flags().BoolVar(&opts.WasSigned, "signed", false, "also delete the .sig file")
	return cmd
}

func (a *app) lsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "ls",
		Short: "List files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			it := a.client.Files(ctx)
			for it.Next() {
				fmt.Fprintln(out, it.Name())
				if limit > 0 && it.Count() >= limit {
					break
				}
			}
			return it.Err()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "stop after n files")
	return cmd
}
