package survey

// TasteProfile is the respondent's self-reported baseline, used only to
// phrase step subtitles. Levels run 1..3.
type TasteProfile struct {
	SpicyLevel   int `json:"spicyLevel"`
	MealAmount   int `json:"mealAmount"`
	MealSpending int `json:"mealSpending"`
}

// DefaultTasteProfile stands in when no profile can be loaded.
func DefaultTasteProfile() TasteProfile {
	return TasteProfile{SpicyLevel: 2, MealAmount: 2, MealSpending: 2}
}

// MealAmountText describes the usual portion.
func (p TasteProfile) MealAmountText() string {
	switch p.MealAmount {
	case 1:
		return "0.5인분"
	case 3:
		return "1.5인분"
	default:
		return "1인분"
	}
}

// MealSpendingText describes the usual budget.
func (p TasteProfile) MealSpendingText() string {
	switch p.MealSpending {
	case 1:
		return "만원 이하"
	case 3:
		return "2만원 이상"
	default:
		return "만원~2만원"
	}
}

// Steps returns the catalog with subtitles phrased for profile. The result
// is for display only.
func Steps(profile TasteProfile) []Step {
	steps := Catalog()
	for i := range steps {
		switch steps[i].Index {
		case 1:
			steps[i].Subtitle = "나의 평소 식사량 : " + profile.MealAmountText()
		case 2:
			steps[i].Subtitle = "나의 평소 예산 : " + profile.MealSpendingText()
		}
	}
	return steps
}
