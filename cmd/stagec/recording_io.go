package main

import (
	"fmt"

	"staged/internal/capture"
)

func readRecording(path string) (*capture.Recording, error) {
	rec, err := capture.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rec, nil
}

func writeRecording(path string, rec *capture.Recording) error {
	if err := capture.WriteFile(path, rec); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}
