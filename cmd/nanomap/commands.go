package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/arthur-debert/nanomap/nanomap/reference"
	"github.com/arthur-debert/nanomap/types"
)

func (cli *CLI) putCommand() *cobra.Command {
	var collection string
	cmd := &cobra.Command{
		Use:   "put JSON",
		Short: "Insert a JSON document into a collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var doc types.Document
			dec := json.NewDecoder(strings.NewReader(args[0]))
			dec.UseNumber()
			if err := dec.Decode(&doc); err != nil || doc == nil {
				return NewValidationError("put", "document", args[0],
					`Pass a JSON object, e.g. '{"_id": "u1", "name": "ann"}'`, CommonSuggestions.RunHelp)
			}

			m, err := cli.openMapper("put")
			if err != nil {
				return err
			}
			defer func() { _ = m.Close() }()

			id, err := m.Store().Insert(cmd.Context(), m.Config().DefaultDatabase, collection, normalizeNumbers(doc))
			if err != nil {
				return WrapError("put", err, CommonSuggestions.CheckCollection)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), id)
			return err
		},
	}
	cmd.Flags().StringVar(&collection, "collection", "", "Target collection (required)")
	_ = cmd.MarkFlagRequired("collection")
	return cmd
}

func (cli *CLI) getCommand() *cobra.Command {
	var collection string
	cmd := &cobra.Command{
		Use:   "get ID",
		Short: "Print a document by id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := cli.openMapper("get")
			if err != nil {
				return err
			}
			defer func() { _ = m.Close() }()

			doc, err := m.Store().Get(cmd.Context(), m.Config().DefaultDatabase, collection, args[0])
			if errors.Is(err, types.ErrNotFound) {
				return NewNotFoundError("get", "document", args[0], err, CommonSuggestions.CheckID)
			}
			if err != nil {
				return WrapError("get", err)
			}
			return cli.render(cmd.OutOrStdout(), doc)
		},
	}
	cmd.Flags().StringVar(&collection, "collection", "", "Collection to read (required)")
	_ = cmd.MarkFlagRequired("collection")
	return cmd
}

func (cli *CLI) resolveCommand() *cobra.Command {
	var collection, id, property string
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve a declared reference property of a document",
		Long: `Resolve looks up the property declared for the collection in the
configuration file and prints the referenced documents. Lazy properties are
resolved immediately.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := cli.openMapper("resolve")
			if err != nil {
				return err
			}
			defer func() { _ = m.Close() }()

			ctx := cmd.Context()
			owner, err := m.Store().Get(ctx, m.Config().DefaultDatabase, collection, id)
			if errors.Is(err, types.ErrNotFound) {
				return NewNotFoundError("resolve", "document", id, err, CommonSuggestions.CheckID)
			}
			if err != nil {
				return WrapError("resolve", err)
			}

			if _, err := m.Property(collection, property); err != nil {
				return NewNotFoundError("resolve", "property", collection+"."+property, err,
					"Declare it under properties: with owner: "+collection)
			}
			value, err := m.ResolveNamed(ctx, collection, owner, property)
			if err != nil {
				return WrapError("resolve", err)
			}
			value, err = resolveLazy(ctx, value)
			if err != nil {
				return WrapError("resolve", err)
			}
			return cli.render(cmd.OutOrStdout(), value)
		},
	}
	cmd.Flags().StringVar(&collection, "collection", "", "Collection of the owning document (required)")
	cmd.Flags().StringVar(&id, "id", "", "Id of the owning document (required)")
	cmd.Flags().StringVar(&property, "property", "", "Reference property to resolve (required)")
	for _, name := range []string{"collection", "id", "property"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func resolveLazy(ctx context.Context, value interface{}) (interface{}, error) {
	if lazy, ok := value.(*reference.LazyReference); ok {
		return lazy.Target(ctx)
	}
	return value, nil
}

func (cli *CLI) render(w io.Writer, v interface{}) error {
	switch cli.format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	case "json", "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	default:
		return NewValidationError("render output", "format", cli.format, "Use --format json or --format yaml", CommonSuggestions.RunHelp)
	}
}

// normalizeNumbers turns json.Number values into int64 or float64
func normalizeNumbers(v interface{}) types.Document {
	doc, _ := normalizeValue(v).(types.Document)
	return doc
}

func normalizeValue(v interface{}) interface{} {
	switch t := v.(type) {
	case types.Document:
		out := make(types.Document, len(t))
		for k, item := range t {
			out[k] = normalizeValue(item)
		}
		return out
	case map[string]interface{}:
		return normalizeValue(types.Document(t))
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, item := range t {
			out[i] = normalizeValue(item)
		}
		return out
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		f, _ := t.Float64()
		return f
	default:
		return v
	}
}
