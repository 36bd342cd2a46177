package eval

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

func loadYAML(path string) (*fileDeclaration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("declaration load failed (%s): %w", path, err)
	}
	var fd fileDeclaration
	if err := yaml.Unmarshal(data, &fd); err != nil {
		return nil, fmt.Errorf("declaration parse failed (%s): %w", path, err)
	}
	return &fd, nil
}
