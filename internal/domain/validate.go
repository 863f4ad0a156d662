package domain

import (
	"fmt"
	"strings"
)

// Simulation bounds enforced at the request boundary.
const (
	MaxTimeHorizonYears     = 10
	DefaultTimeHorizonYears = 5
)

// NormalizeSex folds free-form sex input to the two accepted codes.
// Anything starting with "f"/"F" is female; everything else is male, matching
// the behavior of the association-table loader's source data.
func NormalizeSex(sex string) string {
	if strings.HasPrefix(strings.ToUpper(strings.TrimSpace(sex)), "F") {
		return SexFemale
	}
	return SexMale
}

// ValidateScenarioRequest checks a simulation request before any computation
// starts. known reports whether a condition key belongs to the fixed
// vocabulary. The first offending field produces a ValidationError; a valid
// request is also normalized in place (sex code, default horizon).
func ValidateScenarioRequest(req *ScenarioRequest, known func(string) bool) error {
	if req == nil {
		return NewValidationError("request", "request body is required", nil)
	}

	if req.Profile.Age < 0 {
		return NewValidationError("profile.age", "age must be non-negative", req.Profile.Age)
	}
	req.Profile.Sex = NormalizeSex(req.Profile.Sex)

	if req.Profile.Deductible < 0 {
		return NewValidationError("profile.deductible", "deductible must be non-negative", req.Profile.Deductible)
	}
	if req.Profile.Coinsurance < 0 || req.Profile.Coinsurance > 1 {
		return NewValidationError("profile.coinsurance", "coinsurance must be in [0,1]", req.Profile.Coinsurance)
	}
	if req.Profile.OOPMax < 0 {
		return NewValidationError("profile.oop_max", "out-of-pocket maximum must be non-negative", req.Profile.OOPMax)
	}

	for _, cond := range req.Profile.Conditions {
		if !known(cond) {
			return NewValidationError("profile.conditions",
				fmt.Sprintf("unknown condition key %q", cond), cond)
		}
	}
	for _, sc := range req.SuspectedConditions {
		if !known(sc.Condition) {
			return NewValidationError("suspected_conditions",
				fmt.Sprintf("unknown condition key %q", sc.Condition), sc.Condition)
		}
		if sc.Relevance < 0 || sc.Relevance > 1 {
			return NewValidationError("suspected_conditions",
				fmt.Sprintf("relevance for %q must be in [0,1]", sc.Condition), sc.Relevance)
		}
	}

	if req.TimeHorizonYears == 0 {
		req.TimeHorizonYears = DefaultTimeHorizonYears
	}
	if req.TimeHorizonYears < 1 || req.TimeHorizonYears > MaxTimeHorizonYears {
		return NewValidationError("time_horizon_years",
			fmt.Sprintf("time horizon must be between 1 and %d years", MaxTimeHorizonYears),
			req.TimeHorizonYears)
	}

	return nil
}
