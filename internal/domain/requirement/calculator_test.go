package requirement

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rpma/ppf-workflow/internal/domain/entity"
)

func intPtr(v int) *int { return &v }

func TestPlanSteps_SingleInstallation(t *testing.T) {
	steps := PlanSteps("int-1", []string{"front", "rear"}, false)
	require.Len(t, steps, 4)

	wantTypes := []entity.StepType{
		entity.StepTypeInspection,
		entity.StepTypePreparation,
		entity.StepTypeInstallation,
		entity.StepTypeFinalization,
	}
	for i, s := range steps {
		assert.Equal(t, i+1, s.StepNumber)
		assert.Equal(t, wantTypes[i], s.StepType)
		assert.Equal(t, "int-1", s.InterventionID)
		assert.Equal(t, entity.StepStatusPending, s.Status)
		assert.True(t, s.IsMandatory)
		assert.NotEmpty(t, s.ID)
	}
	assert.Equal(t, 6, steps[2].MinPhotosRequired)
	assert.Empty(t, steps[2].Zone)
}

func TestPlanSteps_PerZone(t *testing.T) {
	zones := []string{"hood", "bumper", "mirrors"}
	steps := PlanSteps("int-1", zones, true)
	require.Len(t, steps, 3+len(zones))

	for i, zone := range zones {
		s := steps[2+i]
		assert.Equal(t, entity.StepTypeInstallation, s.StepType)
		assert.Equal(t, zone, s.Zone)
		assert.Equal(t, 3, s.MinPhotosRequired)
		assert.Contains(t, s.StepName, zone)
	}
	for i, s := range steps {
		assert.Equal(t, i+1, s.StepNumber)
	}
	assert.Equal(t, entity.StepTypeFinalization, steps[len(steps)-1].StepType)
}

func TestSummarize_EmptyIsComplete(t *testing.T) {
	s := Summarize(nil)
	assert.Equal(t, 100.0, s.CompletionPercentage)
	assert.True(t, s.CanComplete())
	assert.Equal(t, 0, s.TotalSteps)
}

func TestSummarize_CountsAndGate(t *testing.T) {
	steps := PlanSteps("int-1", []string{"hood"}, false)
	steps[0].Status = entity.StepStatusCompleted
	steps[1].Status = entity.StepStatusInProgress

	s := Summarize(steps)
	assert.Equal(t, 4, s.TotalSteps)
	assert.Equal(t, 1, s.CompletedSteps)
	assert.Equal(t, 1, s.InProgressSteps)
	assert.Equal(t, 25.0, s.CompletionPercentage)
	assert.False(t, s.CanComplete())

	// finalization never blocks the gate
	require.Len(t, s.IncompleteMandatory, 2)
	assert.Equal(t, 2, s.IncompleteMandatory[0].StepNumber)
	assert.Equal(t, 3, s.IncompleteMandatory[1].StepNumber)
	assert.Equal(t, []string{"2: Surface preparation", "3: Film installation"}, s.MissingStepNames())

	steps[1].Status = entity.StepStatusCompleted
	steps[2].Status = entity.StepStatusCompleted
	s = Summarize(steps)
	assert.True(t, s.CanComplete())
	assert.Equal(t, 75.0, s.CompletionPercentage)
}

func TestSummarize_SkippedCountsAsDone(t *testing.T) {
	steps := []*entity.InterventionStep{
		{StepNumber: 1, StepType: entity.StepTypeInspection, IsMandatory: false, Status: entity.StepStatusSkipped},
		{StepNumber: 2, StepType: entity.StepTypeInstallation, IsMandatory: true, Status: entity.StepStatusCompleted},
	}
	s := Summarize(steps)
	assert.Equal(t, 100.0, s.CompletionPercentage)
	assert.Equal(t, 1, s.SkippedSteps)
	assert.True(t, s.CanComplete())
}

func TestCalculateCompletedRequirements(t *testing.T) {
	tests := []struct {
		name string
		step entity.InterventionStep
		want []entity.RequirementType
	}{
		{
			name: "photos short and no data",
			step: entity.InterventionStep{MinPhotosRequired: 4, PhotoCount: 3},
			want: nil,
		},
		{
			name: "photos met with notes and checklist",
			step: entity.InterventionStep{
				MinPhotosRequired: 4,
				PhotoCount:        4,
				Notes:             "scratch on rear door",
				CollectedData:     map[string]interface{}{entity.DataChecklistCompleted: true},
			},
			want: []entity.RequirementType{entity.RequirementPhotos, entity.RequirementNotes, entity.RequirementChecklist},
		},
		{
			name: "signature captured flag and feedback",
			step: entity.InterventionStep{
				MinPhotosRequired: 2,
				PhotoCount:        5,
				CollectedData: map[string]interface{}{
					entity.DataSignatureCaptured: true,
					entity.DataCustomerFeedback:  "great job",
				},
			},
			want: []entity.RequirementType{entity.RequirementPhotos, entity.RequirementSignature, entity.RequirementFeedback},
		},
		{
			name: "signature string and quality check",
			step: entity.InterventionStep{
				MinPhotosRequired: 3,
				CollectedData: map[string]interface{}{
					entity.DataCustomerSignature:  "data:image/png;base64,AAA",
					entity.DataQualityCheckPassed: true,
				},
			},
			want: []entity.RequirementType{entity.RequirementQualityCheck, entity.RequirementSignature},
		},
		{
			name: "blank notes and non-bool checklist",
			step: entity.InterventionStep{
				Notes:         "   ",
				CollectedData: map[string]interface{}{entity.DataChecklistCompleted: "yes"},
			},
			want: []entity.RequirementType{entity.RequirementPhotos},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			step := tt.step
			assert.Equal(t, tt.want, CalculateCompletedRequirements(&step))
		})
	}
}

func TestRequirementsForStep(t *testing.T) {
	steps := PlanSteps("int-1", []string{"front", "rear"}, false)
	install := steps[2]
	install.PhotoCount = 6

	reqs := RequirementsForStep(install, []string{"front", "rear"})
	require.Len(t, reqs, 3)
	assert.Equal(t, entity.RequirementPhotos, reqs[0].RequirementType)
	assert.Equal(t, 6, reqs[0].RequiredCount)
	assert.Equal(t, "Take 6 installation photos across zones: front, rear", reqs[0].Description)
	assert.True(t, reqs[0].IsCompleted)
	assert.False(t, reqs[1].IsCompleted)
	assert.False(t, reqs[2].IsMandatory)
	assert.Equal(t, install.ID, reqs[0].StepID)
}

func TestRequirementsForStep_PerZoneUsesOwnZone(t *testing.T) {
	steps := PlanSteps("int-1", []string{"hood", "roof"}, true)
	reqs := RequirementsForStep(steps[3], []string{"hood", "roof"})
	assert.Equal(t, 3, reqs[0].RequiredCount)
	assert.Equal(t, "Take 3 installation photos across zones: roof", reqs[0].Description)
}

func TestBuildInitialRequirements(t *testing.T) {
	in := &entity.Intervention{ID: "int-1", PPFZones: []string{"hood"}}
	steps := PlanSteps(in.ID, in.PPFZones, false)

	reqs := BuildInitialRequirements(in, steps)
	// 3 + 2 + 3 + 3 requirement templates
	assert.Len(t, reqs, 11)
	for _, r := range reqs {
		if r.RequirementType == entity.RequirementPhotos {
			assert.False(t, r.IsCompleted)
		}
	}
}

func TestCalculateFinalMetrics(t *testing.T) {
	started := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	completed := started.Add(150 * time.Minute)

	steps := PlanSteps("int-1", []string{"hood"}, false)
	for i, s := range steps {
		s.Status = entity.StepStatusCompleted
		s.PhotoCount = i + 2
	}
	steps[3].Status = entity.StepStatusInProgress

	in := &entity.Intervention{
		Status:               entity.InterventionStatusCompleted,
		StartedAt:            &started,
		CompletedAt:          &completed,
		QualityScore:         intPtr(92),
		CustomerSatisfaction: intPtr(5),
	}

	m := CalculateFinalMetrics(in, steps)
	assert.Equal(t, 150, m.TotalDurationMinutes)
	assert.Equal(t, 75.0, m.CompletionRate)
	assert.Equal(t, 3, m.StepsCompleted)
	assert.Equal(t, 4, m.TotalSteps)
	assert.Equal(t, 2+3+4+5, m.PhotosTaken)
	assert.Equal(t, 92, *m.QualityScore)
	assert.Equal(t, 5, *m.CustomerSatisfaction)
	assert.Equal(t, completed, m.ComputedAt)

	in.ActualDurationMinutes = intPtr(120)
	assert.Equal(t, 120, CalculateFinalMetrics(in, steps).TotalDurationMinutes)
}

func TestCalculateFinalMetrics_NoSteps(t *testing.T) {
	completed := &entity.Intervention{Status: entity.InterventionStatusCompleted}
	assert.Equal(t, 100.0, CalculateFinalMetrics(completed, nil).CompletionRate)

	pending := &entity.Intervention{Status: entity.InterventionStatusInProgress}
	m := CalculateFinalMetrics(pending, nil)
	assert.Equal(t, 0.0, m.CompletionRate)
	assert.Equal(t, 0, m.TotalDurationMinutes)
}
