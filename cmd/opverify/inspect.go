package main

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/example/go-opverify/internal/graph"
	"github.com/example/go-opverify/internal/suite"
)

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <scenario>",
		Short: "Build one scenario's graph and print its tensors, operators and serialized form",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := suite.Defaults()
			if err != nil {
				return err
			}

			s, ok := reg.Lookup(args[0])
			if !ok {
				return fmt.Errorf("unknown scenario %q (see 'opverify list')", args[0])
			}

			return inspect(cmd.OutOrStdout(), s)
		},
	}
}

func inspect(w io.Writer, s suite.Scenario) error {
	c, err := s.Build()
	if err != nil {
		return fmt.Errorf("build %s: %w", s.Name, err)
	}

	buf, err := graph.Serialize(c.Graph)
	if err != nil {
		return fmt.Errorf("serialize %s: %w", s.Name, err)
	}

	sum := sha256.Sum256(buf)

	fmt.Fprintf(w, "scenario:    %s\n", s.Name)
	fmt.Fprintf(w, "tags:        %s\n", strings.Join(s.Tags, ","))
	fmt.Fprintf(w, "description: %s\n", c.Graph.Description)
	fmt.Fprintf(w, "serialized:  %s (%s)\n", humanize.IBytes(uint64(len(buf))), hex.EncodeToString(sum[:]))
	fmt.Fprintln(w)

	tensors := tablewriter.NewWriter(w)
	tensors.SetHeader([]string{"#", "Name", "Role", "Type", "Shape", "Quant", "Size"})
	tensors.SetAutoWrapText(false)

	for i := range c.Graph.Tensors {
		t := &c.Graph.Tensors[i]

		quant := ""
		if t.Quant != nil {
			quant = fmt.Sprintf("scale=%g zp=%d", t.Quant.Scale, t.Quant.ZeroPoint)
		}

		tensors.Append([]string{
			strconv.Itoa(i), t.Name, tensorRole(c.Graph, int32(i)), t.Type.String(),
			graph.ShapeString(t.Shape), quant, humanize.IBytes(uint64(max(t.ByteSize(), 0))),
		})
	}

	tensors.Render()
	fmt.Fprintln(w)

	ops := tablewriter.NewWriter(w)
	ops.SetHeader([]string{"#", "Kind", "Inputs", "Outputs", "Activation"})

	for i, op := range c.Graph.Operators {
		ops.Append([]string{strconv.Itoa(i), op.Kind.String(), indices(op.Inputs), indices(op.Outputs), op.Options.Activation.String()})
	}

	ops.Render()

	for i := range c.Expected {
		fmt.Fprintf(w, "output %d rule: %s\n", i, c.RuleFor(i))
	}

	return nil
}

func tensorRole(g *graph.Graph, idx int32) string {
	for _, i := range g.Inputs {
		if i == idx {
			return "input"
		}
	}

	for _, i := range g.Outputs {
		if i == idx {
			return "output"
		}
	}

	t := g.Tensor(idx)

	switch {
	case t.Variable:
		return "variable"
	case t.IsConstant():
		return "constant"
	default:
		return "intermediate"
	}
}

func indices(list []int32) string {
	parts := make([]string, len(list))
	for i, idx := range list {
		if idx == graph.OptionalInput {
			parts[i] = "-"
		} else {
			parts[i] = strconv.Itoa(int(idx))
		}
	}

	return strings.Join(parts, ",")
}
