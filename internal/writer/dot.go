package writer

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"TrafficGraph/internal/config"
	"TrafficGraph/internal/factory"
	"TrafficGraph/internal/model"

	"k8s.io/klog/v2"
)

func init() {
	factory.RegisterWriter("dot", func(def config.WriterDef) (model.Writer, error) {
		return NewDOTWriter(def.RootPath), nil
	})
}

var dotEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)

func quote(s string) string {
	return `"` + dotEscaper.Replace(s) + `"`
}

// WriteDOT renders g as a Graphviz digraph named after the graph.
func WriteDOT(w io.Writer, g *model.Graph) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "digraph %s {\n", quote(g.Name))
	for _, n := range g.Nodes {
		fmt.Fprintf(bw, "\t%s [label=%s, shape=%s, color=%s", quote(n.ID), quote(n.Label), quote(n.Shape), quote(n.Color))
		if n.Country != "" {
			fmt.Fprintf(bw, ", tooltip=%s", quote(n.Country))
		}
		bw.WriteString("];\n")
	}
	for _, e := range g.Edges {
		fmt.Fprintf(bw, "\t%s -> %s [label=%s, color=%s, weight=%d",
			quote(e.Source), quote(e.Destination), quote(e.Label), quote(e.Color), e.Weight)
		if e.Flagged {
			bw.WriteString(", penwidth=2")
		}
		bw.WriteString("];\n")
	}
	bw.WriteString("}\n")
	return bw.Flush()
}

// DOTWriter writes the graph to <root>/<session>.dot.
type DOTWriter struct {
	rootPath string
}

// NewDOTWriter creates a new DOT writer.
func NewDOTWriter(rootPath string) model.Writer {
	return &DOTWriter{rootPath: orCurrentDir(rootPath)}
}

func (w *DOTWriter) Name() string { return "dot" }

func (w *DOTWriter) Write(result *model.Result) error {
	if result == nil || result.Graph == nil {
		return fmt.Errorf("dot writer: result has no graph")
	}
	file, err := createOutput(w.rootPath, result.Graph.Name, ".dot")
	if err != nil {
		return err
	}
	defer file.Close()

	if err := WriteDOT(file, result.Graph); err != nil {
		return fmt.Errorf("failed to write dot file '%s': %w", file.Name(), err)
	}
	klog.Infof("Wrote graph with %d nodes and %d edges to %s", len(result.Graph.Nodes), len(result.Graph.Edges), file.Name())
	return nil
}
