package dict

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

func Load(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var file JSONFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, err
	}
	return FromJSON(file)
}

func EnsureLoaded(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("empty dictionary path")
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("dictionary path %s is a directory", path)
	}
	return Load(path)
}
