package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/rendergraph/internal/ctxlog"
)

// file mirrors the top-level HCL structure of a graph description.
type file struct {
	Graph    *settingsBlock  `hcl:"graph,block"`
	Nodes    []*nodeBlock    `hcl:"node,block"`
	Connects []*connectBlock `hcl:"connect,block"`
}

type settingsBlock struct {
	ImageCount int `hcl:"image_count,optional"`
	Frames     int `hcl:"frames,optional"`
}

type nodeBlock struct {
	Type   string   `hcl:"type,label"`
	Name   string   `hcl:"name,label"`
	Params hcl.Body `hcl:",remain"`
}

type connectBlock struct {
	From    string  `hcl:"from"`
	To      string  `hcl:"to"`
	Binding *uint32 `hcl:"binding,optional"`
	Role    string  `hcl:"role,optional"`
	Field   string  `hcl:"field,optional"`
}

// Load parses the given path — a single .hcl file or a directory of
// them — into a Model. Files in a directory merge in lexical order.
func Load(ctx context.Context, path string) (*Model, error) {
	logger := ctxlog.FromContext(ctx)

	paths, err := collectFiles(path)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("config: no .hcl files found at %q", path)
	}
	logger.Debug("Loading graph description.", "files", paths)

	model := &Model{}
	parser := hclparse.NewParser()
	for _, p := range paths {
		f, diags := parser.ParseHCLFile(p)
		if diags.HasErrors() {
			return nil, fmt.Errorf("config: parse %s: %w", p, diags)
		}
		var parsed file
		if diags := gohcl.DecodeBody(f.Body, nil, &parsed); diags.HasErrors() {
			return nil, fmt.Errorf("config: decode %s: %w", p, diags)
		}
		if err := mergeFile(model, &parsed); err != nil {
			return nil, fmt.Errorf("config: %s: %w", p, err)
		}
	}
	return model, nil
}

func collectFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".hcl" {
			paths = append(paths, filepath.Join(path, e.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}

func mergeFile(model *Model, parsed *file) error {
	if parsed.Graph != nil {
		if parsed.Graph.ImageCount != 0 {
			model.Settings.ImageCount = parsed.Graph.ImageCount
		}
		if parsed.Graph.Frames != 0 {
			model.Settings.Frames = parsed.Graph.Frames
		}
	}

	for _, nb := range parsed.Nodes {
		params, err := decodeParams(nb.Params)
		if err != nil {
			return fmt.Errorf("node %s.%s: %w", nb.Type, nb.Name, err)
		}
		model.Nodes = append(model.Nodes, &Node{
			Type:   nb.Type,
			Name:   nb.Name,
			Params: params,
		})
	}

	for _, cb := range parsed.Connects {
		if _, err := ParseAddress(cb.From); err != nil {
			return err
		}
		if _, err := ParseAddress(cb.To); err != nil {
			return err
		}
		model.Connects = append(model.Connects, &Connect{
			From:    cb.From,
			To:      cb.To,
			Binding: cb.Binding,
			Role:    cb.Role,
			Field:   cb.Field,
		})
	}
	return nil
}

// decodeParams evaluates the remaining attributes of a node block into
// literal values. Expressions are evaluated with no variables: node
// parameters are static configuration, cross-node data flows through
// slots only.
func decodeParams(body hcl.Body) (map[string]cty.Value, error) {
	attrs, diags := body.JustAttributes()
	if diags.HasErrors() {
		return nil, fmt.Errorf("params: %w", diags)
	}
	params := make(map[string]cty.Value, len(attrs))
	for name, attr := range attrs {
		v, vdiags := attr.Expr.Value(nil)
		if vdiags.HasErrors() {
			return nil, fmt.Errorf("param %q: %w", name, vdiags)
		}
		params[name] = v
	}
	return params, nil
}
