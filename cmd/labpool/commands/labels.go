package commands

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/labpool/pkg/label"
)

// labelsFile is the mapping form of a labels file.
type labelsFile struct {
	Labels []string `yaml:"labels"`
}

// parseLabelsFile accepts either a YAML list of labels or a mapping with a
// labels key.
func parseLabelsFile(data []byte) ([]string, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("failed to parse labels file: %w", err)
	}
	if len(node.Content) == 0 {
		return nil, nil
	}

	root := node.Content[0]
	switch root.Kind {
	case yaml.SequenceNode:
		var labels []string
		if err := root.Decode(&labels); err != nil {
			return nil, fmt.Errorf("failed to parse labels file: %w", err)
		}
		return label.Clean(labels), nil
	case yaml.MappingNode:
		var f labelsFile
		if err := root.Decode(&f); err != nil {
			return nil, fmt.Errorf("failed to parse labels file: %w", err)
		}
		return label.Clean(f.Labels), nil
	case yaml.ScalarNode:
		return label.ParseList(root.Value), nil
	default:
		return nil, fmt.Errorf("labels file must be a list or contain a labels key")
	}
}

// readLabelsFile loads labels from path.
func readLabelsFile(path string) ([]string, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- CLI tool reads user-specified labels file
	if err != nil {
		return nil, fmt.Errorf("failed to read labels file: %w", err)
	}
	return parseLabelsFile(data)
}

// promptLabels asks for a comma separated label list on a terminal.
// It returns nil without prompting when stdin is not a terminal.
func promptLabels(in *os.File, out io.Writer) ([]string, error) {
	if !term.IsTerminal(int(in.Fd())) {
		return nil, nil
	}
	return readLabelLine(in, out)
}

func readLabelLine(in io.Reader, out io.Writer) ([]string, error) {
	fmt.Fprint(out, "Field labels (comma separated): ")
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to read labels: %w", err)
	}
	return label.ParseList(line), nil
}
