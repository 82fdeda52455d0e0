package main

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/stxapps/gaia-go/pkg/batch"
)

func (a *app) batchCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "batch <tree.json | ->",
		Short: "Submit an operation tree in one request",
		Long: `Submit an operation tree to perform-files. putFile leaves are encrypted
to the identity key before the tree is sent. Leaves without an id get one.`,
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{annotationKey: "always"},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			raw, err := readSource(cmd, args[0])
			if err != nil {
				return err
			}
			tree, err := batch.Decode(raw)
			if err != nil {
				return err
			}
			for _, l := range batch.Leaves(tree) {
				if _, set := l.Extra["id"]; l.ID == "" && !set {
					l.ID = uuid.NewString()
				}
			}

			p := batch.ForClient(a.client)
			out := cmd.OutOrStdout()
			if dryRun {
				pub, err := a.client.PublicKey()
				if err != nil {
					return err
				}
				t, err := p.Transform(tree, pub)
				if err != nil {
					return err
				}
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(t)
			}

			// Not retried: the hub may have applied part of the tree.
			resp, err := p.Perform(ctx, tree)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, resp)
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the transformed tree instead of sending it")
	return cmd
}
