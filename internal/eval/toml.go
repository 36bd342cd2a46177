package eval

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

func loadTOML(path string) (*fileDeclaration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("declaration load failed (%s): %w", path, err)
	}
	var fd fileDeclaration
	if err := toml.Unmarshal(data, &fd); err != nil {
		return nil, fmt.Errorf("declaration parse failed (%s): %w", path, err)
	}
	return &fd, nil
}
