package grading

import (
	"fmt"
	"math"
	"strings"

	"github.com/noah-isme/class-record-api/internal/models"
)

// weightTolerance absorbs float noise when weights are checked against 100.
const weightTolerance = 0.001

// CleanComponents drops stored entries that cannot take part in a grade:
// missing name, no items, or a non-positive max score. Names are normalized
// and the class type is stamped on each survivor.
func CleanComponents(classType string, stored []models.GradingComponent) []models.GradingComponent {
	classType = NormalizeClassType(classType)
	cleaned := make([]models.GradingComponent, 0, len(stored))
	for _, comp := range stored {
		name := NormalizeComponent(comp.Name)
		if name == "" || comp.Items <= 0 || comp.MaxScore <= 0 {
			continue
		}
		comp.Name = name
		comp.ClassType = classType
		comp.Position = len(cleaned)
		cleaned = append(cleaned, comp)
	}
	return cleaned
}

// Resolve returns the usable config for a class type. Stored components win
// when at least one survives cleaning; otherwise the built-in default is used.
func Resolve(classType string, stored []models.GradingComponent) models.GradingConfig {
	classType = NormalizeClassType(classType)
	if cleaned := CleanComponents(classType, stored); len(cleaned) > 0 {
		return models.GradingConfig{ClassType: classType, Source: models.ConfigSourceStored, Components: cleaned}
	}
	defaults := DefaultComponents(classType)
	for i := range defaults {
		defaults[i].ClassType = classType
	}
	return models.GradingConfig{ClassType: classType, Source: models.ConfigSourceDefault, Components: defaults}
}

// Lookup finds a component of the config by any of its synonyms.
func Lookup(config models.GradingConfig, component string) (models.GradingComponent, bool) {
	name := NormalizeComponent(component)
	for _, comp := range config.Components {
		if NormalizeComponent(comp.Name) == name {
			return comp, true
		}
	}
	return models.GradingComponent{}, false
}

// TotalWeight sums component weights.
func TotalWeight(components []models.GradingComponent) float64 {
	total := 0.0
	for _, comp := range components {
		total += comp.Weight
	}
	return total
}

// ValidateComponents checks an edited config before it is stored: every entry
// well formed, names unique after normalization, weights summing to 100.
func ValidateComponents(components []models.GradingComponent) error {
	if len(components) == 0 {
		return fmt.Errorf("at least one component required")
	}
	seen := make(map[string]struct{}, len(components))
	for _, comp := range components {
		name := NormalizeComponent(comp.Name)
		switch {
		case strings.TrimSpace(name) == "":
			return fmt.Errorf("component name required")
		case comp.Items <= 0:
			return fmt.Errorf("component %q must have at least one item", name)
		case comp.MaxScore <= 0:
			return fmt.Errorf("component %q must have a positive max score", name)
		case comp.Weight < 0 || comp.Weight > 100:
			return fmt.Errorf("component %q weight must be within 0-100", name)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("duplicate component %q", name)
		}
		seen[name] = struct{}{}
	}
	if total := TotalWeight(components); math.Abs(total-100) > weightTolerance {
		return fmt.Errorf("weights must sum to 100, got %.2f", total)
	}
	return nil
}
