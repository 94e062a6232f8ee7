package writer

import (
	"encoding/json"
	"fmt"

	"TrafficGraph/internal/config"
	"TrafficGraph/internal/factory"
	"TrafficGraph/internal/model"

	"k8s.io/klog/v2"
)

func init() {
	factory.RegisterWriter("json", func(def config.WriterDef) (model.Writer, error) {
		return NewJSONWriter(def.RootPath), nil
	})
}

// JSONWriter writes the summary and graph to <root>/<session>.json.
type JSONWriter struct {
	rootPath string
}

// NewJSONWriter creates a new JSON writer.
func NewJSONWriter(rootPath string) model.Writer {
	return &JSONWriter{rootPath: orCurrentDir(rootPath)}
}

func (w *JSONWriter) Name() string { return "json" }

func (w *JSONWriter) Write(result *model.Result) error {
	if result == nil || result.Summary == nil {
		return fmt.Errorf("json writer: result has no summary")
	}
	file, err := createOutput(w.rootPath, result.Summary.SessionName, ".json")
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(result); err != nil {
		return fmt.Errorf("failed to encode result to json: %w", err)
	}
	klog.Infof("Wrote session '%s' to %s", result.Summary.SessionName, file.Name())
	return nil
}
