package writer

import (
	"bufio"
	"fmt"
	"io"
	"sort"

	"TrafficGraph/internal/config"
	"TrafficGraph/internal/factory"
	"TrafficGraph/internal/model"

	"k8s.io/klog/v2"
)

func init() {
	factory.RegisterWriter("text", func(def config.WriterDef) (model.Writer, error) {
		return NewTextWriter(def.RootPath), nil
	})
}

// WriteSummary prints the session report: decoder counters, protocol totals,
// one block per flow and the accumulated errors.
func WriteSummary(w io.Writer, s *model.Summary) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "Session: %s", s.SessionName)
	if s.SessionID != "" {
		fmt.Fprintf(bw, " (%s)", s.SessionID)
	}
	bw.WriteString("\n")
	fmt.Fprintf(bw, "Total Packets: %d\n", s.TotalPackets)
	fmt.Fprintf(bw, "Total IP Packets: %d\n", s.IPPackets)

	protos := make([]string, 0, len(s.ProtocolTotals))
	for proto := range s.ProtocolTotals {
		protos = append(protos, proto)
	}
	sort.Strings(protos)
	bw.WriteString("Protocols:\n")
	for _, proto := range protos {
		fmt.Fprintf(bw, "\t%s: %d\n", proto, s.ProtocolTotals[proto])
	}
	fmt.Fprintf(bw, "Flows: %d\n", len(s.Flows))

	for _, flow := range s.Flows {
		fmt.Fprintf(bw, "\n%s -> %s\n",
			endpoint(flow.Key.Source, flow.SourceName),
			endpoint(flow.Key.Destination, flow.DestinationName))
		fmt.Fprintf(bw, "\tCount: %d\n", flow.TotalCount)
		for _, proto := range flow.Protocols() {
			fmt.Fprintf(bw, "\t%s: %d\n", proto, flow.ProtocolCounts[proto])
		}
	}

	if len(s.Errors) > 0 {
		fmt.Fprintf(bw, "\nErrors (%d):\n", len(s.Errors))
		for _, msg := range s.Errors {
			fmt.Fprintf(bw, "\t%s\n", msg)
		}
	}
	return bw.Flush()
}

func endpoint(address, hostname string) string {
	if hostname == "" {
		return address
	}
	return fmt.Sprintf("%s (%s)", address, hostname)
}

// TextWriter writes the session report to <root>/<session>.txt.
type TextWriter struct {
	rootPath string
}

// NewTextWriter creates a new text report writer.
func NewTextWriter(rootPath string) model.Writer {
	return &TextWriter{rootPath: orCurrentDir(rootPath)}
}

func (w *TextWriter) Name() string { return "text" }

func (w *TextWriter) Write(result *model.Result) error {
	if result == nil || result.Summary == nil {
		return fmt.Errorf("text writer: result has no summary")
	}
	file, err := createOutput(w.rootPath, result.Summary.SessionName, ".txt")
	if err != nil {
		return err
	}
	defer file.Close()

	if err := WriteSummary(file, result.Summary); err != nil {
		return fmt.Errorf("failed to write summary to '%s': %w", file.Name(), err)
	}
	klog.Infof("Successfully wrote summary of %d flows to %s", len(result.Summary.Flows), file.Name())
	return nil
}
