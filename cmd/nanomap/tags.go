package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/arthur-debert/nanomap/nanomap/typetag"
)

func (cli *CLI) tagsCommand() *cobra.Command {
	tagsCmd := &cobra.Command{
		Use:   "tags",
		Short: "Type tag table tools",
	}

	checkCmd := &cobra.Command{
		Use:   "check FILE",
		Short: "Validate a YAML tag table",
		Long: `Check parses a tag table and reports empty tags, empty type names and
types listed under more than one tag. Type names are not resolved.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return NewValidationError("check tags", "file", args[0], "Verify the tag table path")
			}
			defer func() { _ = f.Close() }()

			tf, err := typetag.LoadTableFile(f)
			if err != nil {
				return &CLIError{
					Operation:   "check tags",
					Cause:       "malformed tag table",
					Details:     err.Error(),
					Suggestions: []string{"Allowed keys are type_key, strict and tags"},
					Underlying:  err,
				}
			}
			if err := tf.Validate(); err != nil {
				return NewConfigError("check tags", err, "Give every type exactly one non-empty tag")
			}
			cli.logger.Debug("tag table valid", "file", args[0], "tags", len(tf.Tags))

			out := cmd.OutOrStdout()
			tags := make([]string, 0, len(tf.Tags))
			for tag := range tf.Tags {
				tags = append(tags, tag)
			}
			sort.Strings(tags)
			for _, tag := range tags {
				if _, err := fmt.Fprintf(out, "%s\t%s\n", tag, tf.Tags[tag]); err != nil {
					return err
				}
			}
			_, err = fmt.Fprintf(out, "ok: %d tags\n", len(tags))
			return err
		},
	}

	tagsCmd.AddCommand(checkCmd)
	return tagsCmd
}

func (cli *CLI) configCommand() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration tools",
	}
	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cli.loadConfig("show config")
			if err != nil {
				return err
			}
			return cli.render(cmd.OutOrStdout(), cfg)
		},
	})
	return configCmd
}
