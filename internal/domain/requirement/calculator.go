// Package requirement resolves the step catalog into concrete steps and
// derives progress, requirement completion and final metrics from step state.
package requirement

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rpma/ppf-workflow/internal/domain/catalog"
	"github.com/rpma/ppf-workflow/internal/domain/entity"
)

// StepCompletionSummary aggregates step statuses for one intervention
type StepCompletionSummary struct {
	TotalSteps           int     `json:"total_steps"`
	CompletedSteps       int     `json:"completed_steps"`
	SkippedSteps         int     `json:"skipped_steps"`
	InProgressSteps      int     `json:"in_progress_steps"`
	CompletionPercentage float64 `json:"completion_percentage"`

	// Mandatory steps, other than finalization, that are neither completed nor skipped
	IncompleteMandatory []*entity.InterventionStep `json:"incomplete_mandatory"`
}

// CanComplete reports whether the completion gate is satisfied
func (s StepCompletionSummary) CanComplete() bool {
	return len(s.IncompleteMandatory) == 0
}

// MissingStepNames lists the blocking steps as "N: name" for error details
func (s StepCompletionSummary) MissingStepNames() []string {
	names := make([]string, 0, len(s.IncompleteMandatory))
	for _, step := range s.IncompleteMandatory {
		names = append(names, fmt.Sprintf("%d: %s", step.StepNumber, step.StepName))
	}
	return names
}

// PlanSteps builds the ordered pending steps for a new intervention.
// Installation is a single step covering every zone unless perZone is set,
// in which case it expands into one step per zone.
func PlanSteps(interventionID string, zones []string, perZone bool) []*entity.InterventionStep {
	var steps []*entity.InterventionStep
	number := 0

	add := func(stepType entity.StepType, name, zone string, stepZones []string) {
		number++
		tpl := catalog.Template(stepType)
		steps = append(steps, &entity.InterventionStep{
			ID:                uuid.NewString(),
			InterventionID:    interventionID,
			StepNumber:        number,
			StepType:          stepType,
			StepName:          name,
			Zone:              zone,
			Status:            entity.StepStatusPending,
			IsMandatory:       tpl.IsMandatory,
			MinPhotosRequired: catalog.MinPhotos(stepType, stepZones),
			CollectedData:     map[string]interface{}{},
		})
	}

	for _, stepType := range catalog.OrderedStepTypes() {
		name := catalog.Template(stepType).Name
		if stepType == entity.StepTypeInstallation && perZone && len(zones) > 0 {
			for _, zone := range zones {
				add(stepType, fmt.Sprintf("%s: %s", name, zone), zone, []string{zone})
			}
			continue
		}
		add(stepType, name, "", zones)
	}

	return steps
}

// BuildInitialRequirements expands every step of an intervention into its requirements
func BuildInitialRequirements(in *entity.Intervention, steps []*entity.InterventionStep) []entity.StepRequirement {
	var reqs []entity.StepRequirement
	for _, step := range steps {
		reqs = append(reqs, RequirementsForStep(step, in.PPFZones)...)
	}
	return reqs
}

// RequirementsForStep returns the concrete requirements of one step with
// completion flags computed from its current data.
func RequirementsForStep(step *entity.InterventionStep, zones []string) []entity.StepRequirement {
	if step.Zone != "" {
		zones = []string{step.Zone}
	}

	done := make(map[entity.RequirementType]bool)
	for _, t := range CalculateCompletedRequirements(step) {
		done[t] = true
	}

	templates := catalog.Requirements(step.StepType, zones)
	reqs := make([]entity.StepRequirement, 0, len(templates))
	for _, tpl := range templates {
		reqs = append(reqs, entity.StepRequirement{
			StepID:          step.ID,
			StepNumber:      step.StepNumber,
			RequirementType: tpl.Type,
			Description:     describe(step.StepType, tpl, zones),
			RequiredCount:   tpl.Count,
			IsMandatory:     tpl.IsMandatory,
			IsCompleted:     done[tpl.Type],
		})
	}
	return reqs
}

func describe(stepType entity.StepType, tpl catalog.RequirementTemplate, zones []string) string {
	if tpl.Type != entity.RequirementPhotos {
		return tpl.Description
	}
	if stepType == entity.StepTypeInstallation && len(zones) > 0 {
		return fmt.Sprintf("Take %d installation photos across zones: %s", tpl.Count, strings.Join(zones, ", "))
	}
	return fmt.Sprintf("%s (%d photos)", tpl.Description, tpl.Count)
}

// Summarize counts step statuses. An intervention without steps counts as 100% complete.
func Summarize(steps []*entity.InterventionStep) StepCompletionSummary {
	s := StepCompletionSummary{
		TotalSteps:          len(steps),
		IncompleteMandatory: []*entity.InterventionStep{},
	}

	for _, step := range steps {
		switch step.Status {
		case entity.StepStatusCompleted:
			s.CompletedSteps++
		case entity.StepStatusSkipped:
			s.SkippedSteps++
		case entity.StepStatusInProgress:
			s.InProgressSteps++
		}

		if step.IsMandatory && step.StepType != entity.StepTypeFinalization && !step.IsDone() {
			s.IncompleteMandatory = append(s.IncompleteMandatory, step)
		}
	}

	if s.TotalSteps == 0 {
		s.CompletionPercentage = 100
	} else {
		s.CompletionPercentage = float64(s.CompletedSteps+s.SkippedSteps) / float64(s.TotalSteps) * 100
	}

	return s
}

// CalculateCompletedRequirements reports which requirement types a step's
// current data satisfies. The result is advisory and never blocks transitions.
func CalculateCompletedRequirements(step *entity.InterventionStep) []entity.RequirementType {
	var done []entity.RequirementType

	if step.PhotoCount >= step.MinPhotosRequired {
		done = append(done, entity.RequirementPhotos)
	}
	if strings.TrimSpace(step.Notes) != "" {
		done = append(done, entity.RequirementNotes)
	}
	if step.GetDataBool(entity.DataChecklistCompleted) {
		done = append(done, entity.RequirementChecklist)
	}
	if step.GetDataBool(entity.DataQualityCheckPassed) {
		done = append(done, entity.RequirementQualityCheck)
	}
	if step.GetDataString(entity.DataCustomerSignature) != "" || step.GetDataBool(entity.DataSignatureCaptured) {
		done = append(done, entity.RequirementSignature)
	}
	if step.GetDataString(entity.DataCustomerFeedback) != "" {
		done = append(done, entity.RequirementFeedback)
	}

	return done
}

// CalculateFinalMetrics computes the metrics attached to an intervention at completion
func CalculateFinalMetrics(in *entity.Intervention, steps []*entity.InterventionStep) entity.InterventionMetrics {
	summary := Summarize(steps)

	m := entity.InterventionMetrics{
		QualityScore:         in.QualityScore,
		CustomerSatisfaction: in.CustomerSatisfaction,
		StepsCompleted:       summary.CompletedSteps,
		StepsSkipped:         summary.SkippedSteps,
		TotalSteps:           summary.TotalSteps,
		ComputedAt:           time.Now().UTC(),
	}
	if in.CompletedAt != nil {
		m.ComputedAt = *in.CompletedAt
	}

	switch {
	case len(steps) > 0:
		m.CompletionRate = summary.CompletionPercentage
	case in.Status == entity.InterventionStatusCompleted:
		m.CompletionRate = 100
	default:
		m.CompletionRate = 0
	}

	switch {
	case in.ActualDurationMinutes != nil:
		m.TotalDurationMinutes = *in.ActualDurationMinutes
	case in.StartedAt != nil && in.CompletedAt != nil:
		m.TotalDurationMinutes = int(in.CompletedAt.Sub(*in.StartedAt).Minutes())
	}

	for _, step := range steps {
		m.PhotosTaken += step.PhotoCount
	}

	return m
}
