package data

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/caregraph/caregraph-server/internal/domain"
)

// DrugCostMultiplier approximates total cost of care from annual prescription
// spend when no survey-derived cost is available for a condition. Pharmacy
// spend runs a bit under half of total spend for chronic conditions.
const DrugCostMultiplier = 2.1

// DefaultAnnualCost is the last-resort annual cost for conditions absent from
// every table.
const DefaultAnnualCost = 2000.0

// InterventionPlaceholderCost is used for interventions missing from the
// prescription-fill table.
const InterventionPlaceholderCost = 600.0

// fallbackAnnualCosts is the static tier-4 table, literature-rounded annual
// cost-of-care figures for conditions the survey tables tend to miss.
var fallbackAnnualCosts = map[string]float64{
	"hypertension":     1800.0,
	"high_cholesterol": 1400.0,
	"diabetes":         9600.0,
	"ckd":              8400.0,
	"neuropathy":       1900.0,
	"stroke":           28000.0,
	"heart_failure":    14000.0,
	"cad":              7200.0,
	"cancer":           26000.0,
	"arthritis":        5800.0,
	"asthma_copd":      4100.0,
	"depression":       3200.0,
	"dementia":         16000.0,
	"parkinsons":       12000.0,
	"osteoporosis":     2600.0,
	"obesity":          1900.0,
	"liver_disease":    7500.0,
	"anemia":           3400.0,
}

// costAgeGroups are the survey's expenditure age bins. These are coarser than
// the association dataset's decade bands and use labeled ranges.
var costAgeGroups = []struct {
	upper int
	label string
}{
	{30, "<30"},
	{40, "30-39"},
	{50, "40-49"},
	{60, "50-59"},
	{70, "60-69"},
	{80, "70-79"},
}

// CostAgeGroup maps an age to the survey expenditure age bin label.
func CostAgeGroup(age int) string {
	for _, g := range costAgeGroups {
		if age < g.upper {
			return g.label
		}
	}
	return "80+"
}

// NormalizeInsurance folds plan-type input to the survey's three coverage
// classes: private, public, uninsured.
func NormalizeInsurance(insuranceType string) string {
	switch strings.ToLower(strings.TrimSpace(insuranceType)) {
	case "medicare", "medicaid", "public":
		return "public"
	case "none", "uninsured", "":
		return "uninsured"
	default:
		// PPO, HMO, EPO, HDHP, employer plans and anything unrecognized.
		return "private"
	}
}

type conditionSummaryEntry struct {
	N               int     `json:"n"`
	MeanTotalExp    float64 `json:"mean_total_exp"`
	MeanOOP         float64 `json:"mean_oop"`
	MedianTotalExp  float64 `json:"median_total_exp"`
	MedianOOP       float64 `json:"median_oop"`
	IncrementalCost float64 `json:"incremental_cost"`
	IncrementalOOP  float64 `json:"incremental_oop"`
}

type drugCostEntry struct {
	MeanDrugCost   float64 `json:"mean_drug_cost"`
	MeanDrugOOP    float64 `json:"mean_drug_oop"`
	MedianDrugCost float64 `json:"median_drug_cost"`
	NPersons       int     `json:"n_persons"`
}

type interventionCostEntry struct {
	MeanAnnualCost   float64 `json:"mean_annual_cost"`
	MeanAnnualOOP    float64 `json:"mean_annual_oop"`
	MedianAnnualCost float64 `json:"median_annual_cost"`
	NPersons         int     `json:"n_persons"`
}

// CostTables answers tiered annual-cost lookups from the survey-derived
// artifacts. Like NetworkStore it loads once and is read-only afterwards.
type CostTables struct {
	logger *logrus.Logger

	stratifiedPath   string
	summaryPath      string
	drugCostsPath    string
	interventionPath string

	once    sync.Once
	loadErr error

	// condition|ageGroup|sex|insurance → incremental annual cost
	stratified    map[string]float64
	summary       map[string]conditionSummaryEntry
	drugCosts     map[string]drugCostEntry
	interventions map[string]interventionCostEntry
}

// NewCostTables creates the cost store over the given artifacts.
func NewCostTables(stratifiedPath, summaryPath, drugCostsPath, interventionPath string, logger *logrus.Logger) *CostTables {
	return &CostTables{
		logger:           logger,
		stratifiedPath:   stratifiedPath,
		summaryPath:      summaryPath,
		drugCostsPath:    drugCostsPath,
		interventionPath: interventionPath,
	}
}

// Load forces the one-time load of all cost artifacts.
func (t *CostTables) Load() error {
	t.once.Do(t.load)
	return t.loadErr
}

func (t *CostTables) load() {
	if err := t.loadStratified(); err != nil {
		t.loadErr = fmt.Errorf("failed to load stratified cost table: %w", err)
		return
	}
	if err := loadJSONMap(t.summaryPath, &t.summary); err != nil {
		t.loadErr = fmt.Errorf("failed to load condition summary: %w", err)
		return
	}
	if err := loadJSONMap(t.drugCostsPath, &t.drugCosts); err != nil {
		t.loadErr = fmt.Errorf("failed to load drug cost table: %w", err)
		return
	}
	if err := loadJSONMap(t.interventionPath, &t.interventions); err != nil {
		t.loadErr = fmt.Errorf("failed to load intervention cost table: %w", err)
		return
	}

	t.logger.WithFields(logrus.Fields{
		"stratified_cells": len(t.stratified),
		"summary":          len(t.summary),
		"drug_conditions":  len(t.drugCosts),
		"interventions":    len(t.interventions),
	}).Info("Loaded cost tables")
}

func loadJSONMap[V any](path string, dst *map[string]V) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return json.NewDecoder(f).Decode(dst)
}

// loadStratified reads condition_costs.csv. Columns are positional per the
// offline processor: condition, age_group, sex, insurance_type, n, then the
// expenditure statistics, with incremental_cost last.
func (t *CostTables) loadStratified() error {
	f, err := os.Open(t.stratifiedPath)
	if err != nil {
		return err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	header, err := reader.Read()
	if err != nil {
		return fmt.Errorf("missing header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[name] = i
	}
	for _, required := range []string{"condition", "age_group", "sex", "insurance_type", "incremental_cost"} {
		if _, ok := col[required]; !ok {
			return fmt.Errorf("missing column %q", required)
		}
	}

	t.stratified = make(map[string]float64)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		incremental, err := strconv.ParseFloat(record[col["incremental_cost"]], 64)
		if err != nil {
			return fmt.Errorf("bad incremental_cost for %s: %w", record[col["condition"]], err)
		}
		key := costKey(record[col["condition"]], record[col["age_group"]],
			record[col["sex"]], record[col["insurance_type"]])
		t.stratified[key] = incremental
	}
	return nil
}

func costKey(condition, ageGroup, sex, insurance string) string {
	return condition + "|" + ageGroup + "|" + sex + "|" + insurance
}

// AnnualCost resolves the expected annual cost of care for a condition given
// the patient's stratum. Tiers, first strictly positive hit wins:
//
//  1. stratified incremental cost for (condition, age group, sex, insurance)
//  2. unstratified population incremental cost
//  3. mean annual drug cost x DrugCostMultiplier
//  4. static fallback table, else DefaultAnnualCost
func (t *CostTables) AnnualCost(condition string, profile *domain.PatientProfile) float64 {
	t.once.Do(t.load)
	if t.loadErr != nil {
		t.logger.WithError(t.loadErr).Error("Cost tables unavailable")
		return fallbackCost(condition)
	}

	key := costKey(condition, CostAgeGroup(profile.Age),
		domain.NormalizeSex(profile.Sex), NormalizeInsurance(profile.InsuranceType))
	if c, ok := t.stratified[key]; ok && c > 0 {
		return c
	}
	if entry, ok := t.summary[condition]; ok && entry.IncrementalCost > 0 {
		return entry.IncrementalCost
	}
	if entry, ok := t.drugCosts[condition]; ok && entry.MeanDrugCost > 0 {
		return entry.MeanDrugCost * DrugCostMultiplier
	}
	return fallbackCost(condition)
}

func fallbackCost(condition string) float64 {
	if c, ok := fallbackAnnualCosts[condition]; ok {
		return c
	}
	return DefaultAnnualCost
}

// InterventionAnnualCost returns the mean annual prescription cost of an
// intervention, or the placeholder when the fill table has no entry.
func (t *CostTables) InterventionAnnualCost(intervention string) float64 {
	t.once.Do(t.load)
	if t.loadErr == nil {
		if entry, ok := t.interventions[intervention]; ok {
			return entry.MeanAnnualCost
		}
	}
	return InterventionPlaceholderCost
}

// OutOfPocket estimates the patient-paid share of an annual cost under the
// profile's plan terms: full cost below the deductible, deductible plus
// coinsurance above it, capped at the out-of-pocket maximum.
func OutOfPocket(cost float64, profile *domain.PatientProfile) float64 {
	var oop float64
	if cost <= profile.Deductible {
		oop = cost
	} else {
		oop = profile.Deductible + (cost-profile.Deductible)*profile.Coinsurance
	}
	if profile.OOPMax > 0 && oop > profile.OOPMax {
		oop = profile.OOPMax
	}
	if oop < 0 {
		oop = 0
	}
	return oop
}
