// SPDX-License-Identifier: LGPL-2.1-only

// yconfcli is a thin interactive client for yconfd: one subcommand per RPC
// the dispatcher understands, talking over the daemon's JSON RPC socket
// (a separate listener from the NETCONF-over-socket one, see
// internal/netconf's JSONSession).
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/yconfd/yconfd/internal/tree"
	"github.com/yconfd/yconfd/pkg/client"
)

var (
	socketPath string
	network    string
	sessionID  string
)

func main() {
	root := &cobra.Command{
		Use:   "yconfcli",
		Short: "Interact with a running yconfd daemon",
	}
	root.PersistentFlags().StringVar(&socketPath, "socket", "/run/yconfd/json.sock", "path to the daemon's JSON RPC socket")
	root.PersistentFlags().StringVar(&network, "network", "unix", "socket network (unix|tcp)")
	root.PersistentFlags().StringVar(&sessionID, "session", "", "session identity to present (random if empty)")

	root.AddCommand(
		getCmd(),
		editCmd(),
		commitCmd(),
		validateCmd(),
		discardCmd(),
		lockCmd(),
		unlockCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func dial() (*client.Client, error) {
	return client.Dial(network, socketPath, sessionID)
}

func parseOp(s string) (tree.Op, error) {
	switch s {
	case "merge":
		return tree.OpMerge, nil
	case "replace":
		return tree.OpReplace, nil
	case "create":
		return tree.OpCreate, nil
	case "delete":
		return tree.OpDelete, nil
	case "remove":
		return tree.OpRemove, nil
	case "none":
		return tree.OpNone, nil
	default:
		return tree.OpMerge, fmt.Errorf("unknown edit operation %q", s)
	}
}

func printTree(n *tree.EditNode) {
	out, err := json.MarshalIndent(n, "", "  ")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return
	}
	fmt.Println(string(out))
}

func getCmd() *cobra.Command {
	var source string
	var xpath string
	cmd := &cobra.Command{
		Use:   "get",
		Short: "Retrieve a datastore's configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := dial()
			if err != nil {
				return err
			}
			defer c.Close()
			data, err := c.GetConfig(tree.Name(source), xpath)
			if err != nil {
				return err
			}
			printTree(data)
			return nil
		},
	}
	cmd.Flags().StringVar(&source, "source", "running", "datastore to read from")
	cmd.Flags().StringVar(&xpath, "xpath", "", "restrict the result to this subtree")
	return cmd
}

func editCmd() *cobra.Command {
	var target string
	var op string
	var path string
	var value string
	cmd := &cobra.Command{
		Use:   "edit",
		Short: "Apply a single path=value edit to candidate",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := dial()
			if err != nil {
				return err
			}
			defer c.Close()
			parsedOp, err := parseOp(op)
			if err != nil {
				return err
			}
			payload := tree.BuildEdit(map[string]string{path: value})
			return c.EditConfig(tree.Name(target), parsedOp, payload)
		},
	}
	cmd.Flags().StringVar(&target, "target", "candidate", "datastore to edit")
	cmd.Flags().StringVar(&op, "op", "merge", "edit operation: merge|replace|create|delete|remove|none")
	cmd.Flags().StringVar(&path, "path", "", "slash-separated path to set")
	cmd.Flags().StringVar(&value, "value", "", "leaf value to set at path")
	return cmd
}

func commitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "commit",
		Short: "Commit candidate into running",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := dial()
			if err != nil {
				return err
			}
			defer c.Close()
			return c.Commit()
		},
	}
}

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate candidate without committing",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := dial()
			if err != nil {
				return err
			}
			defer c.Close()
			return c.Validate()
		},
	}
}

func discardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "discard",
		Short: "Discard pending changes in candidate",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := dial()
			if err != nil {
				return err
			}
			defer c.Close()
			return c.DiscardChanges()
		},
	}
}

func lockCmd() *cobra.Command {
	var target string
	cmd := &cobra.Command{
		Use:   "lock",
		Short: "Acquire a datastore's advisory lock",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := dial()
			if err != nil {
				return err
			}
			defer c.Close()
			return c.Lock(tree.Name(target))
		},
	}
	cmd.Flags().StringVar(&target, "target", "candidate", "datastore to lock")
	return cmd
}

func unlockCmd() *cobra.Command {
	var target string
	cmd := &cobra.Command{
		Use:   "unlock",
		Short: "Release a datastore's advisory lock",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := dial()
			if err != nil {
				return err
			}
			defer c.Close()
			return c.Unlock(tree.Name(target))
		},
	}
	cmd.Flags().StringVar(&target, "target", "candidate", "datastore to unlock")
	return cmd
}
