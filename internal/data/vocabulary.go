// Package data loads and serves the pre-processed lookup artifacts the
// simulation engine depends on: the condition vocabulary, the per-stratum
// comorbidity association matrices, and the survey-derived cost tables.
// All stores are loaded once and read-only afterwards.
package data

// The fixed condition vocabulary: canonical key → ICD-10 chapter codes.
// These are the 46 chronic conditions covered by the association dataset,
// aggregated from per-code rows back to condition level at query time.
var conditionToICD = map[string][]string{
	"hypertension":          {"I10", "I11", "I12", "I13", "I15"},
	"high_cholesterol":      {"E78"},
	"back_pain":             {"M54"},
	"vision_loss":           {"H53", "H54"},
	"arthrosis":             {"M15", "M16", "M17", "M18", "M19"},
	"diabetes":              {"E10", "E11", "E13", "E14"},
	"cad":                   {"I20", "I21", "I22", "I23", "I24", "I25"},
	"thyroid_disease":       {"E00", "E01", "E02", "E03", "E04", "E05", "E06", "E07"},
	"arrhythmia":            {"I44", "I45", "I46", "I47", "I48", "I49"},
	"obesity":               {"E66"},
	"gout":                  {"M10"},
	"prostatic_hyperplasia": {"N40"},
	"varicosis":             {"I83"},
	"liver_disease":         {"K70", "K71", "K72", "K73", "K74", "K75", "K76", "K77"},
	"depression":            {"F32", "F33"},
	"asthma_copd":           {"J44", "J45"},
	"gynecological":         {"N80", "N81", "N83", "N84", "N85", "N92", "N93", "N94", "N95"},
	"atherosclerosis":       {"I70", "I73", "I74"},
	"osteoporosis":          {"M80", "M81", "M82"},
	"ckd":                   {"N17", "N18", "N19"},
	"stroke":                {"I60", "I61", "I62", "I63", "I64", "I65", "I66", "I67", "I68", "I69", "G45"},
	"heart_failure":         {"I50"},
	"hearing_loss":          {"H90", "H91"},
	"gallstones":            {"K80"},
	"somatoform":            {"F45"},
	"hemorrhoids":           {"K64"},
	"diverticulosis":        {"K57"},
	"arthritis":             {"M05", "M06", "M08"},
	"valve_disorder":        {"I34", "I35", "I36", "I37", "I38"},
	"neuropathy":            {"G60", "G61", "G62", "G63"},
	"dizziness":             {"H81", "H82"},
	"dementia":              {"F00", "F01", "F02", "F03", "G30", "G31"},
	"urinary_incontinence":  {"N39"},
	"kidney_stones":         {"N20", "N21", "N22", "N23"},
	"anemia":                {"D50", "D51", "D52", "D53", "D55", "D58", "D59", "D61", "D62", "D63", "D64"},
	"anxiety":               {"F40", "F41"},
	"psoriasis":             {"L40"},
	"migraine":              {"G43"},
	"parkinsons":            {"G20", "G21", "G22"},
	"cancer": {
		"C00", "C01", "C02", "C03", "C04", "C05", "C06", "C07", "C08", "C09",
		"C10", "C11", "C12", "C13", "C14", "C15", "C16", "C17", "C18", "C19",
		"C20", "C21", "C22", "C23", "C24", "C25", "C26", "C30", "C31", "C32",
		"C33", "C34", "C37", "C38", "C39", "C40", "C41", "C43", "C44", "C45",
		"C46", "C47", "C48", "C49", "C50", "C51", "C52", "C53", "C54", "C55",
		"C56", "C57", "C58", "C60", "C61", "C62", "C63", "C64", "C65", "C66",
		"C67", "C68", "C69", "C70", "C71", "C72", "C73", "C74", "C75", "C76",
		"C77", "C78", "C79", "C80", "C81", "C82", "C83", "C84", "C85", "C86",
		"C88", "C90", "C91", "C92", "C93", "C94", "C95", "C96",
	},
	"allergy":            {"J30"},
	"gerd":               {"K21", "K29"},
	"sexual_dysfunction": {"N48", "F52"},
	"insomnia":           {"G47"},
	"tobacco_use":        {"F17"},
	"hypotension":        {"I95"},
}

// icdToCondition is the reverse aggregation map, built at init.
var icdToCondition = func() map[string]string {
	m := make(map[string]string)
	for cond, codes := range conditionToICD {
		for _, c := range codes {
			m[c] = cond
		}
	}
	return m
}()

var conditionLabels = map[string]string{
	"hypertension":          "Hypertension",
	"high_cholesterol":      "High Cholesterol",
	"back_pain":             "Chronic Low Back Pain",
	"vision_loss":           "Severe Vision Loss",
	"arthrosis":             "Joint Arthrosis",
	"diabetes":              "Diabetes Mellitus",
	"cad":                   "Coronary Artery Disease",
	"thyroid_disease":       "Thyroid Disease",
	"arrhythmia":            "Cardiac Arrhythmia",
	"obesity":               "Obesity",
	"gout":                  "Gout",
	"prostatic_hyperplasia": "Prostatic Hyperplasia",
	"varicosis":             "Varicose Veins",
	"liver_disease":         "Liver Disease",
	"depression":            "Depression",
	"asthma_copd":           "Asthma / COPD",
	"gynecological":         "Gynecological Problems",
	"atherosclerosis":       "Atherosclerosis / PAOD",
	"osteoporosis":          "Osteoporosis",
	"ckd":                   "Chronic Kidney Disease",
	"stroke":                "Stroke",
	"heart_failure":         "Heart Failure",
	"hearing_loss":          "Hearing Loss",
	"gallstones":            "Gallstones",
	"somatoform":            "Somatoform Disorder",
	"hemorrhoids":           "Hemorrhoids",
	"diverticulosis":        "Diverticulosis",
	"arthritis":             "Rheumatoid Arthritis",
	"valve_disorder":        "Cardiac Valve Disorder",
	"neuropathy":            "Neuropathy",
	"dizziness":             "Dizziness / Vertigo",
	"dementia":              "Dementia",
	"urinary_incontinence":  "Urinary Incontinence",
	"kidney_stones":         "Kidney Stones",
	"anemia":                "Anemia",
	"anxiety":               "Anxiety",
	"psoriasis":             "Psoriasis",
	"migraine":              "Migraine",
	"parkinsons":            "Parkinson's Disease",
	"cancer":                "Cancer",
	"allergy":               "Allergy",
	"gerd":                  "GERD / Gastritis",
	"sexual_dysfunction":    "Sexual Dysfunction",
	"insomnia":              "Insomnia",
	"tobacco_use":           "Tobacco Use Disorder",
	"hypotension":           "Hypotension",
}

// Baseline population prevalence per condition, used by the probability
// calibrator to convert odds ratios into co-occurrence probabilities.
// Values are adult-population point prevalences rounded to two digits;
// conditions absent here fall back to DefaultPrevalence.
var conditionPrevalence = map[string]float64{
	"hypertension":          0.30,
	"high_cholesterol":      0.25,
	"back_pain":             0.20,
	"arthrosis":             0.15,
	"diabetes":              0.10,
	"obesity":               0.30,
	"depression":            0.08,
	"anxiety":               0.07,
	"asthma_copd":           0.09,
	"thyroid_disease":       0.10,
	"cad":                   0.06,
	"arrhythmia":            0.04,
	"ckd":                   0.07,
	"heart_failure":         0.02,
	"stroke":                0.03,
	"cancer":                0.05,
	"osteoporosis":          0.05,
	"gerd":                  0.15,
	"allergy":               0.20,
	"gout":                  0.04,
	"neuropathy":            0.03,
	"dementia":              0.02,
	"parkinsons":            0.003,
	"migraine":              0.12,
	"insomnia":              0.10,
	"tobacco_use":           0.14,
	"liver_disease":         0.02,
	"anemia":                0.06,
	"varicosis":             0.10,
	"atherosclerosis":       0.04,
	"prostatic_hyperplasia": 0.08,
	"urinary_incontinence":  0.07,
	"hearing_loss":          0.08,
	"vision_loss":           0.04,
}

// DefaultPrevalence is used for conditions missing from the prevalence table.
const DefaultPrevalence = 0.05

// KnownCondition reports whether key is part of the fixed vocabulary.
func KnownCondition(key string) bool {
	_, ok := conditionToICD[key]
	return ok
}

// ConditionLabel returns the display label for a condition key, falling back
// to the key itself for unknown input.
func ConditionLabel(key string) string {
	if label, ok := conditionLabels[key]; ok {
		return label
	}
	return key
}

// ConditionCodes returns the ICD-10 codes mapped to a condition key.
func ConditionCodes(key string) []string {
	return conditionToICD[key]
}

// ConditionForCode returns the condition key an ICD-10 code aggregates to.
func ConditionForCode(code string) (string, bool) {
	cond, ok := icdToCondition[code]
	return cond, ok
}

// Prevalence returns the baseline population prevalence for a condition.
func Prevalence(key string) float64 {
	if p, ok := conditionPrevalence[key]; ok {
		return p
	}
	return DefaultPrevalence
}

// AllConditionKeys returns every condition key in the vocabulary.
func AllConditionKeys() []string {
	keys := make([]string, 0, len(conditionToICD))
	for k := range conditionToICD {
		keys = append(keys, k)
	}
	return keys
}

// ConditionMetadata describes one vocabulary entry for API consumers.
type ConditionMetadata struct {
	Label    string   `json:"label"`
	ICDCodes []string `json:"icd_codes"`
}

// ConditionCatalog returns the full vocabulary keyed by condition.
func ConditionCatalog() map[string]ConditionMetadata {
	catalog := make(map[string]ConditionMetadata, len(conditionToICD))
	for key, codes := range conditionToICD {
		catalog[key] = ConditionMetadata{
			Label:    ConditionLabel(key),
			ICDCodes: codes,
		}
	}
	return catalog
}

// AgeBand maps a patient age to the association dataset's age bands 1..8
// (decade cutoffs, 70+ folds into band 8).
func AgeBand(age int) int {
	switch {
	case age < 10:
		return 1
	case age < 20:
		return 2
	case age < 30:
		return 3
	case age < 40:
		return 4
	case age < 50:
		return 5
	case age < 60:
		return 6
	case age < 70:
		return 7
	default:
		return 8
	}
}
