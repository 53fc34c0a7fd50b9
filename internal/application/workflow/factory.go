package workflow

import (
	"context"
	"errors"
	"strings"

	"github.com/rpma/ppf-workflow/internal/domain/entity"
	domainwf "github.com/rpma/ppf-workflow/internal/domain/workflow"
)

var actionTriggers = map[StepAction]domainwf.Trigger{
	ActionStart:    domainwf.TriggerStart,
	ActionComplete: domainwf.TriggerComplete,
	ActionSkip:     domainwf.TriggerSkip,
}

// fireIntervention applies trigger to the intervention's lifecycle and stores the new status
func fireIntervention(ctx context.Context, in *entity.Intervention, trigger domainwf.Trigger) error {
	machine := domainwf.NewInterventionMachine(domainwf.State(in.Status))
	if err := machine.Fire(ctx, trigger); err != nil {
		return domainwf.InvalidState("cannot %s intervention %s in status %s",
			strings.ToLower(string(trigger)), in.ID, in.Status)
	}
	in.Status = machine.State().String()
	return nil
}

// fireStep applies an action to a step's lifecycle and stores the new status
func fireStep(ctx context.Context, step *entity.InterventionStep, action StepAction) error {
	trigger := actionTriggers[action]

	if action == ActionComplete && step.Status == entity.StepStatusPending {
		return domainwf.InvalidState("step %d must be started before completing", step.StepNumber)
	}

	machine := domainwf.NewStepMachine(domainwf.State(step.Status), step.IsMandatory)
	if err := machine.Fire(ctx, trigger); err != nil {
		if errors.Is(err, domainwf.ErrGuardFailed) {
			return domainwf.InvalidState("step %d is mandatory and cannot be skipped", step.StepNumber)
		}
		return domainwf.InvalidState("cannot %s step %d in status %s", action, step.StepNumber, step.Status)
	}

	step.Status = machine.State().String()
	return nil
}
