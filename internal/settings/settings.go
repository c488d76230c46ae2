// Package settings holds the user-editable task tracking options and
// hot-reloads them from a YAML file.
package settings

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Settings are the user-editable options controlling completion tracking.
type Settings struct {
	// TaskMarkers is the comma-separated tracked marker vocabulary.
	TaskMarkers string `yaml:"taskMarkers"`
	// TaskMarkersComplete is the comma-separated subset that triggers
	// completion metadata.
	TaskMarkersComplete string `yaml:"taskMarkersComplete"`
	// IncludeDate enables adding the completion date property.
	IncludeDate bool `yaml:"includeDate"`
	// CompletedDateProperty is the property key for the completion date.
	CompletedDateProperty string `yaml:"completedDateProperty"`
	// IncludeTime enables adding the completion time property.
	IncludeTime bool `yaml:"includeTime"`
	// CompletedTimeProperty is the property key for the completion time.
	CompletedTimeProperty string `yaml:"completedTimeProperty"`
	// TimeFormat is the pattern used to format the completion time.
	TimeFormat string `yaml:"timeFormat"`
}

// Default returns the settings used when no file exists or a key is absent.
func Default() Settings {
	return Settings{
		TaskMarkers:           "DONE, NOW, LATER, DOING, TODO, WAITING, CANCELLED",
		TaskMarkersComplete:   "DONE, CANCELLED",
		IncludeDate:           true,
		CompletedDateProperty: "completed",
		IncludeTime:           false,
		CompletedTimeProperty: "time",
		TimeFormat:            "HH:mm",
	}
}

// Load reads settings from path, layered over the defaults. A missing file
// yields the defaults without error; a malformed file yields the defaults
// and the parse error so callers can log and carry on.
func Load(path string) (Settings, error) {
	s := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return s, fmt.Errorf("settings: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Default(), fmt.Errorf("settings: parse %s: %w", path, err)
	}
	return s, nil
}
