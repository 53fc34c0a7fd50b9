// Package catalog holds the fixed checklist every PPF intervention follows.
package catalog

import "github.com/rpma/ppf-workflow/internal/domain/entity"

// PhotosPerZone is the installation photo requirement for each configured zone
const PhotosPerZone = 3

// RequirementTemplate describes one obligation of a step before zones are applied
type RequirementTemplate struct {
	Type        entity.RequirementType
	Description string
	Count       int
	IsMandatory bool
}

// StepTemplate is the static definition of a step type
type StepTemplate struct {
	Type         entity.StepType
	Name         string
	IsMandatory  bool
	Requirements []RequirementTemplate
}

var orderedTypes = []entity.StepType{
	entity.StepTypeInspection,
	entity.StepTypePreparation,
	entity.StepTypeInstallation,
	entity.StepTypeFinalization,
}

var templates = map[entity.StepType]StepTemplate{
	entity.StepTypeInspection: {
		Type:        entity.StepTypeInspection,
		Name:        "Vehicle inspection",
		IsMandatory: true,
		Requirements: []RequirementTemplate{
			{Type: entity.RequirementPhotos, Description: "Photograph vehicle condition before work", Count: 4, IsMandatory: true},
			{Type: entity.RequirementChecklist, Description: "Complete the pre-installation inspection checklist", Count: 1, IsMandatory: true},
			{Type: entity.RequirementNotes, Description: "Record existing damage or defects", Count: 1, IsMandatory: false},
		},
	},
	entity.StepTypePreparation: {
		Type:        entity.StepTypePreparation,
		Name:        "Surface preparation",
		IsMandatory: true,
		Requirements: []RequirementTemplate{
			{Type: entity.RequirementPhotos, Description: "Photograph the cleaned and decontaminated surfaces", Count: 2, IsMandatory: true},
			{Type: entity.RequirementChecklist, Description: "Confirm wash, clay and degrease", Count: 1, IsMandatory: true},
		},
	},
	entity.StepTypeInstallation: {
		Type:        entity.StepTypeInstallation,
		Name:        "Film installation",
		IsMandatory: true,
		Requirements: []RequirementTemplate{
			{Type: entity.RequirementPhotos, Description: "Photograph installed film", Count: PhotosPerZone, IsMandatory: true},
			{Type: entity.RequirementQualityCheck, Description: "Check edges, bubbles and alignment", Count: 1, IsMandatory: true},
			{Type: entity.RequirementNotes, Description: "Note installation issues", Count: 1, IsMandatory: false},
		},
	},
	entity.StepTypeFinalization: {
		Type:        entity.StepTypeFinalization,
		Name:        "Finalization and handover",
		IsMandatory: true,
		Requirements: []RequirementTemplate{
			{Type: entity.RequirementPhotos, Description: "Photograph the finished vehicle", Count: 2, IsMandatory: true},
			{Type: entity.RequirementSignature, Description: "Collect customer signature", Count: 1, IsMandatory: true},
			{Type: entity.RequirementFeedback, Description: "Collect customer feedback", Count: 1, IsMandatory: false},
		},
	},
}

// OrderedStepTypes returns the step types in execution order
func OrderedStepTypes() []entity.StepType {
	out := make([]entity.StepType, len(orderedTypes))
	copy(out, orderedTypes)
	return out
}

// Template returns the static definition of a step type. Unknown types
// yield a zero template with no requirements.
func Template(stepType entity.StepType) StepTemplate {
	t, ok := templates[stepType]
	if !ok {
		return StepTemplate{Type: stepType}
	}
	t.Requirements = append([]RequirementTemplate(nil), t.Requirements...)
	return t
}

// Requirements returns the requirement templates for a step type with
// installation photo counts scaled to the number of zones (at least one).
func Requirements(stepType entity.StepType, zones []string) []RequirementTemplate {
	reqs := Template(stepType).Requirements
	if stepType != entity.StepTypeInstallation {
		return reqs
	}

	n := len(zones)
	if n < 1 {
		n = 1
	}
	for i := range reqs {
		if reqs[i].Type == entity.RequirementPhotos {
			reqs[i].Count *= n
		}
	}
	return reqs
}

// MinPhotos sums the photo requirements of a step type for the given zones
func MinPhotos(stepType entity.StepType, zones []string) int {
	total := 0
	for _, r := range Requirements(stepType, zones) {
		if r.Type == entity.RequirementPhotos {
			total += r.Count
		}
	}
	return total
}
