package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"time"

	"github.com/agentuity/go-dbcache/cache"
	"github.com/agentuity/go-dbcache/config"
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newGetCommand(cfg *config.Config) *cobra.Command {
	var maxAge, expiresAt string
	cmd := &cobra.Command{
		Use:   "get KEY (--max-age D | --expires-at T) -- COMMAND [ARGS...]",
		Short: "Print the cached value for KEY, running COMMAND to refresh it when stale",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			policy, err := parsePolicy(maxAge, expiresAt)
			if err != nil {
				return err
			}
			c, closer, err := openController(cmd, cfg)
			if err != nil {
				return err
			}
			defer closer()

			key, command := args[0], args[1:]
			value, src, err := cache.Get(cmd.Context(), c, key, commandAccessor(command), policy)
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Error getting %s: %v\n", key, err)
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), value)
			fmt.Fprintf(cmd.ErrOrStderr(), "source: %s\n", src)
			return nil
		},
	}
	cmd.Flags().StringVar(&maxAge, "max-age", "", "serve the cached value if it is at most this old (e.g. 30s, 5m, 1d)")
	cmd.Flags().StringVar(&expiresAt, "expires-at", "", "serve the cached value only if it was written at or after this RFC3339 time")
	cmd.MarkFlagsMutuallyExclusive("max-age", "expires-at")
	cmd.MarkFlagsOneRequired("max-age", "expires-at")
	return cmd
}

func parsePolicy(maxAge, expiresAt string) (cache.Policy, error) {
	if maxAge != "" {
		d, err := config.ParseDuration(maxAge)
		if err != nil {
			return nil, err
		}
		return cache.MaxAge(d), nil
	}
	if expiresAt != "" {
		t, err := time.Parse(time.RFC3339, expiresAt)
		if err != nil {
			return nil, fmt.Errorf("invalid --expires-at %q: %w", expiresAt, err)
		}
		return cache.AbsoluteExpiry(t), nil
	}
	return nil, fmt.Errorf("one of --max-age or --expires-at is required")
}

// commandAccessor runs command and yields its standard output.
func commandAccessor(command []string) cache.Accessor[string] {
	return func(ctx context.Context) (string, error) {
		var stdout, stderr bytes.Buffer
		c := exec.CommandContext(ctx, command[0], command[1:]...)
		c.Stdout = &stdout
		c.Stderr = &stderr
		if err := c.Run(); err != nil {
			if msg := bytes.TrimSpace(stderr.Bytes()); len(msg) > 0 {
				return "", fmt.Errorf("%s: %w: %s", command[0], err, msg)
			}
			return "", fmt.Errorf("%s: %w", command[0], err)
		}
		return stdout.String(), nil
	}
}

func newQueryCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "query KEY",
		Short: "Print the stored value for KEY without checking its age",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, closer, err := openController(cmd, cfg)
			if err != nil {
				return err
			}
			defer closer()

			value, err := cache.QueryOnly[any](cmd.Context(), c, args[0])
			if errors.Is(err, cache.ErrNotFound) {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s: not found\n", args[0])
				return err
			}
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Error querying %s: %v\n", args[0], err)
				return err
			}
			return printValue(cmd, value)
		},
	}
}

func printValue(cmd *cobra.Command, value any) error {
	if s, ok := value.(string); ok {
		fmt.Fprint(cmd.OutOrStdout(), s)
		return nil
	}
	buf, err := json.Marshal(value)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(buf))
	return nil
}

func newWarmCommand(cfg *config.Config) *cobra.Command {
	var keyField string
	cmd := &cobra.Command{
		Use:   "warm FILE",
		Short: "Store every object of a YAML or JSON list under the value of its key field",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := readItems(args[0], keyField)
			if err != nil {
				return err
			}
			c, closer, err := openController(cmd, cfg)
			if err != nil {
				return err
			}
			defer closer()

			ids, err := cache.SetMany(cmd.Context(), c, items, func(item map[string]any) string {
				return fmt.Sprint(item[keyField])
			})
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Error warming cache: %v\n", err)
				return err
			}
			keys := make([]string, 0, len(ids))
			for k := range ids {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\n", k, ids[k])
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&keyField, "key", "key", "object field whose value is the cache key")
	return cmd
}

// readItems loads a list of objects from a YAML or JSON file and checks that
// each one carries keyField.
func readItems(filename string, keyField string) ([]map[string]any, error) {
	buf, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	var items []map[string]any
	if err := yaml.Unmarshal(buf, &items); err != nil {
		return nil, fmt.Errorf("parse %s: %w", filename, err)
	}
	for i, item := range items {
		v, ok := item[keyField]
		if !ok || v == nil || fmt.Sprint(v) == "" {
			return nil, fmt.Errorf("%s: item %d has no %q field", filename, i, keyField)
		}
	}
	return items, nil
}

func newDeleteCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "delete KEY",
		Short: "Remove the stored value for KEY",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, closer, err := openController(cmd, cfg)
			if err != nil {
				return err
			}
			defer closer()

			if err := c.EnsureReady(cmd.Context()); err != nil {
				return err
			}
			ok, err := c.Store().Delete(cmd.Context(), c.EffectiveKey(args[0]))
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s: not found\n", args[0])
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	}
}
