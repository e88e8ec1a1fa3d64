// Package risk reduces matched interaction facts to one risk level.
package risk

import "github.com/Skufu/medsafe/internal/model"

// Aggregate returns the highest severity among facts, or safe when there
// are none. The result does not depend on the order of facts.
func Aggregate(facts []model.InteractionFact) model.Severity {
	level := model.SeveritySafe
	for _, f := range facts {
		level = model.MaxSeverity(level, f.Severity)
	}
	return level
}

// Summarize counts facts per severity.
func Summarize(facts []model.InteractionFact) model.Summary {
	var s model.Summary
	for _, f := range facts {
		switch f.Severity {
		case model.SeverityHigh:
			s.High++
		case model.SeverityModerate:
			s.Moderate++
		case model.SeveritySafe:
			s.Safe++
		}
	}
	return s
}
