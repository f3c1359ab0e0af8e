package script

import (
	"fmt"

	"github.com/openfroyo/pocketcalc/pkg/keypad"
)

// Script is a named sequence of key presses with expected results.
type Script struct {
	// Name identifies the script in reports. Defaults to the file name.
	Name string `yaml:"name" json:"name" validate:"required"`

	// Description is free text shown in verbose reports.
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// Memory seeds the memory register before the first step.
	Memory float64 `yaml:"memory,omitempty" json:"memory,omitempty"`

	// Steps are executed in order on one fresh engine.
	Steps []Step `yaml:"steps" json:"steps" validate:"required,min=1,dive"`

	// Path is the file the script was loaded from.
	Path string `yaml:"-" json:"-"`
}

// Step presses a key sequence and checks the outcome.
type Step struct {
	// Keys is a key sequence such as "2 + 3 =".
	Keys string `yaml:"keys" json:"keys" validate:"required"`

	// Expect holds the checks applied after the keys are pressed.
	Expect Expect `yaml:"expect,omitempty" json:"expect,omitempty"`
}

// Expect lists the values to compare. Nil fields are not checked, so an
// empty memory indicator can be asserted with memory: "".
type Expect struct {
	Display *string `yaml:"display,omitempty" json:"display,omitempty"`
	Memory  *string `yaml:"memory,omitempty" json:"memory,omitempty"`
}

// checkKeys verifies that every step's key sequence parses.
func (s *Script) checkKeys() error {
	for i, step := range s.Steps {
		if _, err := keypad.ParseSequence(step.Keys); err != nil {
			return fmt.Errorf("step %d: %w", i+1, err)
		}
	}
	return nil
}
