package survey

import "testing"

func TestCatalog_Shape(t *testing.T) {
	steps := Catalog()
	if len(steps) != ClosingStep+1 {
		t.Fatalf("catalog has %d steps, want %d", len(steps), ClosingStep+1)
	}
	for i, st := range steps {
		if st.Index != i {
			t.Errorf("step %d has Index %d", i, st.Index)
		}
	}
	if len(steps[ClosingStep].Questions) != 0 {
		t.Errorf("closing step has %d slider questions, want 0", len(steps[ClosingStep].Questions))
	}
	if !steps[0].AllowOptOut {
		t.Error("step 0 should allow opt-out")
	}
	for _, st := range steps[1:] {
		if st.AllowOptOut {
			t.Errorf("step %d allows opt-out, want only step 0", st.Index)
		}
	}
}

func TestCatalog_IDsAreUniqueAndAvoidReserved(t *testing.T) {
	seen := make(map[QuestionID]bool)
	for _, id := range QuestionIDs() {
		if seen[id] {
			t.Errorf("question id %d appears twice", id)
		}
		seen[id] = true
		if id == TextFeedbackQuestion || id == SatisfactionQuestion {
			t.Errorf("question id %d collides with a reserved id", id)
		}
	}
	for id := QuestionID(1); id <= 8; id++ {
		if !seen[id] {
			t.Errorf("catalog missing question %d", id)
		}
	}
}

func TestStepOf(t *testing.T) {
	tests := []struct {
		id   QuestionID
		want int
		ok   bool
	}{
		{1, 0, true},
		{4, 0, true},
		{5, 1, true},
		{6, 2, true},
		{8, 3, true},
		{9, 0, false},
		{42, 0, false},
	}
	for _, tt := range tests {
		got, ok := StepOf(tt.id)
		if got != tt.want || ok != tt.ok {
			t.Errorf("StepOf(%d) = %d, %v; want %d, %v", tt.id, got, ok, tt.want, tt.ok)
		}
	}
}

func TestCatalog_ReturnsCopies(t *testing.T) {
	steps := Catalog()
	steps[0].Questions[0].Text = "changed"
	if again, _ := StepAt(0); again.Questions[0].Text == "changed" {
		t.Error("Catalog leaked internal slice")
	}
}

func TestSatisfactionValid(t *testing.T) {
	for _, opt := range SatisfactionOptions {
		if !opt.Value.Valid() {
			t.Errorf("%q should be valid", opt.Value)
		}
	}
	for _, bad := range []Satisfaction{"", "happy", "SATISFIED"} {
		if bad.Valid() {
			t.Errorf("%q should be invalid", bad)
		}
	}
}

func TestSteps_SubtitlesFromProfile(t *testing.T) {
	tests := []struct {
		profile      TasteProfile
		wantAmount   string
		wantSpending string
	}{
		{DefaultTasteProfile(), "나의 평소 식사량 : 1인분", "나의 평소 예산 : 만원~2만원"},
		{TasteProfile{MealAmount: 1, MealSpending: 1}, "나의 평소 식사량 : 0.5인분", "나의 평소 예산 : 만원 이하"},
		{TasteProfile{MealAmount: 3, MealSpending: 3}, "나의 평소 식사량 : 1.5인분", "나의 평소 예산 : 2만원 이상"},
	}
	for _, tt := range tests {
		steps := Steps(tt.profile)
		if steps[1].Subtitle != tt.wantAmount {
			t.Errorf("step 1 subtitle = %q, want %q", steps[1].Subtitle, tt.wantAmount)
		}
		if steps[2].Subtitle != tt.wantSpending {
			t.Errorf("step 2 subtitle = %q, want %q", steps[2].Subtitle, tt.wantSpending)
		}
		if steps[0].Subtitle != catalog[0].Subtitle {
			t.Errorf("step 0 subtitle changed to %q", steps[0].Subtitle)
		}
	}
}
