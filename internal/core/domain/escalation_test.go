package domain

import (
	"errors"
	"testing"
)

func makeStep(order int, wait int64) EscalationStep {
	return EscalationStep{
		Order:       order,
		WaitSeconds: wait,
		Targets:     []EscalationTarget{UserTarget(NewUserID())},
		Channels:    []Channel{ChannelSlack},
	}
}

func TestNewEscalationPolicy_RequiresStep(t *testing.T) {
	_, err := NewEscalationPolicy("empty", nil, 0)
	if !errors.Is(err, ErrPolicyRequiresStep) {
		t.Errorf("expected ErrPolicyRequiresStep, got %v", err)
	}
}

func TestEscalationPolicy_FirstStep(t *testing.T) {
	policy, err := NewEscalationPolicy("p", []EscalationStep{makeStep(0, 0), makeStep(1, 600)}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if policy.FirstStep().Order != 0 || policy.FirstStep().WaitSeconds != 0 {
		t.Errorf("first step = %+v", policy.FirstStep())
	}
}

func TestNextStep(t *testing.T) {
	twoSteps := []EscalationStep{makeStep(0, 0), makeStep(1, 600)}

	cases := []struct {
		name       string
		steps      []EscalationStep
		repeats    int
		current    int
		repetition int
		wantOrder  int
		wantNil    bool
	}{
		{"advance within steps", twoSteps, 0, 0, 0, 1, false},
		{"exhausted without repeats", twoSteps, 0, 1, 0, 0, true},
		{"wraps with repeats", twoSteps, 2, 1, 0, 0, false},
		{"wraps on later repetition", twoSteps, 2, 1, 1, 0, false},
		{"repeats used up", twoSteps, 2, 1, 2, 0, true},
		{"single step exhausts", []EscalationStep{makeStep(0, 0)}, 1, 0, 1, 0, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			policy, err := NewEscalationPolicy("p", tc.steps, tc.repeats)
			if err != nil {
				t.Fatal(err)
			}
			next := policy.NextStep(tc.current, tc.repetition)
			if tc.wantNil {
				if next != nil {
					t.Errorf("NextStep(%d, %d) = %+v, want nil", tc.current, tc.repetition, next)
				}
				return
			}
			if next == nil {
				t.Fatalf("NextStep(%d, %d) = nil", tc.current, tc.repetition)
			}
			if next.Order != tc.wantOrder {
				t.Errorf("next order = %d, want %d", next.Order, tc.wantOrder)
			}
		})
	}
}

func TestAddStep_Validation(t *testing.T) {
	policy, err := NewEscalationPolicy("p", []EscalationStep{makeStep(0, 0)}, 0)
	if err != nil {
		t.Fatal(err)
	}

	noTargets := EscalationStep{Order: 1, WaitSeconds: 600, Channels: []Channel{ChannelSlack}}
	if err := policy.AddStep(noTargets); !errors.Is(err, ErrStepRequiresTarget) {
		t.Errorf("expected ErrStepRequiresTarget, got %v", err)
	}

	noChannels := EscalationStep{Order: 1, WaitSeconds: 600, Targets: []EscalationTarget{UserTarget(NewUserID())}}
	if err := policy.AddStep(noChannels); !errors.Is(err, ErrStepRequiresChannel) {
		t.Errorf("expected ErrStepRequiresChannel, got %v", err)
	}

	valid := makeStep(1, 600)
	if err := policy.AddStep(valid); err != nil {
		t.Errorf("valid step rejected: %v", err)
	}
	if len(policy.Steps) != 2 {
		t.Errorf("steps = %d, want 2", len(policy.Steps))
	}
}

func TestStepAt(t *testing.T) {
	policy, err := NewEscalationPolicy("p", []EscalationStep{makeStep(0, 0), makeStep(1, 600)}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if step := policy.StepAt(1); step == nil || step.WaitSeconds != 600 {
		t.Errorf("StepAt(1) = %+v", step)
	}
	if step := policy.StepAt(9); step != nil {
		t.Errorf("StepAt(9) = %+v, want nil", step)
	}
}

func TestEscalationTargets(t *testing.T) {
	schedID := NewScheduleID()
	target := OnCallTarget(schedID, OnCallNext)
	if target.Kind != TargetOnCall || target.ScheduleID != schedID || target.Modifier != OnCallNext {
		t.Errorf("on-call target = %+v", target)
	}

	if UserTarget(NewUserID()).Kind != TargetUser {
		t.Error("user target kind wrong")
	}
	if TeamTarget(NewTeamID()).Kind != TargetTeam {
		t.Error("team target kind wrong")
	}
}

func TestChannels_Closed(t *testing.T) {
	if len(Channels()) != 8 {
		t.Errorf("channel set = %d, want 8", len(Channels()))
	}
	for _, ch := range Channels() {
		parsed, err := ParseChannel(string(ch))
		if err != nil || parsed != ch {
			t.Errorf("ParseChannel(%s) = %s, %v", ch, parsed, err)
		}
	}
	if _, err := ParseChannel("pager"); err == nil {
		t.Error("unknown channel accepted")
	}
}
