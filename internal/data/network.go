package data

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"

	"github.com/caregraph/caregraph-server/internal/domain"
)

// neighborCacheSize bounds the per-process cache of aggregated neighbor
// queries. 46 conditions x 16 strata fits comfortably.
const neighborCacheSize = 1024

// nearestBandOffsets is the fallback order when a stratum is missing from the
// dataset: nearest age band first, same sex always.
var nearestBandOffsets = []int{1, -1, 2, -2}

// icdMappingEntry is one row of the offline ICD mapping artifact.
type icdMappingEntry struct {
	ICDCode     string `json:"icd_code"`
	Index       int    `json:"index"`
	Description string `json:"description"`
}

// NetworkStore serves comorbidity neighbor queries from the per-stratum
// ICD-level odds-ratio matrices. The matrices are loaded once, guarded
// against concurrent first calls, and read-only afterwards.
type NetworkStore struct {
	logger      *logrus.Logger
	mappingPath string
	matrixPath  string

	once    sync.Once
	loadErr error

	codeToIdx map[string]int
	idxToCode []string
	matrices  map[string][][]float64 // "M_6" → dense matrix, row/col by ICD index

	cache *lru.Cache[string, []domain.ComorbidNeighbor]
}

// NewNetworkStore creates a network store over the given artifacts. Loading
// is deferred to the first query or an explicit Load call.
func NewNetworkStore(mappingPath, matrixPath string, logger *logrus.Logger) *NetworkStore {
	cache, _ := lru.New[string, []domain.ComorbidNeighbor](neighborCacheSize)
	return &NetworkStore{
		logger:      logger,
		mappingPath: mappingPath,
		matrixPath:  matrixPath,
		cache:       cache,
	}
}

// Load forces the one-time load of all strata. Call it at startup so missing
// artifacts fail fast instead of surfacing on the first simulation.
func (s *NetworkStore) Load() error {
	s.once.Do(s.load)
	return s.loadErr
}

func (s *NetworkStore) load() {
	mapping, err := s.loadMapping()
	if err != nil {
		s.loadErr = fmt.Errorf("failed to load ICD mapping: %w", err)
		return
	}

	s.codeToIdx = make(map[string]int, len(mapping))
	s.idxToCode = make([]string, len(mapping))
	for _, m := range mapping {
		if m.Index < 0 || m.Index >= len(mapping) {
			s.loadErr = fmt.Errorf("ICD mapping index %d out of range for %s", m.Index, m.ICDCode)
			return
		}
		s.codeToIdx[m.ICDCode] = m.Index
		s.idxToCode[m.Index] = m.ICDCode
	}

	matrices, err := s.loadMatrices(len(mapping))
	if err != nil {
		s.loadErr = fmt.Errorf("failed to load adjacency matrices: %w", err)
		return
	}
	s.matrices = matrices

	s.logger.WithFields(logrus.Fields{
		"icd_codes": len(mapping),
		"strata":    len(matrices),
	}).Info("Loaded comorbidity network")
}

// loadMapping reads the icd_mapping.json artifact.
func (s *NetworkStore) loadMapping() ([]icdMappingEntry, error) {
	f, err := os.Open(s.mappingPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var mapping []icdMappingEntry
	if err := json.NewDecoder(f).Decode(&mapping); err != nil {
		return nil, err
	}
	if len(mapping) == 0 {
		return nil, fmt.Errorf("ICD mapping %s is empty", s.mappingPath)
	}
	return mapping, nil
}

// loadMatrices reads the combined adjacency CSV. The file carries one row per
// ICD index per stratum: sex, age band, then dim weight columns. Rows within
// a stratum are written in index order by the offline processor.
func (s *NetworkStore) loadMatrices(dim int) (map[string][][]float64, error) {
	f, err := os.Open(s.matrixPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = dim + 2

	// Header: sex, age, 0..dim-1
	if _, err := reader.Read(); err != nil {
		return nil, fmt.Errorf("missing header: %w", err)
	}

	matrices := make(map[string][][]float64)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		key := stratumKey(domain.NormalizeSex(record[0]), record[1])
		row := make([]float64, dim)
		for i := 0; i < dim; i++ {
			w, err := strconv.ParseFloat(record[i+2], 64)
			if err != nil {
				return nil, fmt.Errorf("bad weight in stratum %s: %w", key, err)
			}
			row[i] = w
		}
		matrices[key] = append(matrices[key], row)
	}

	if len(matrices) == 0 {
		return nil, fmt.Errorf("adjacency CSV %s contains no strata", s.matrixPath)
	}
	for key, m := range matrices {
		if len(m) != dim {
			return nil, fmt.Errorf("stratum %s has %d rows, expected %d", key, len(m), dim)
		}
	}
	return matrices, nil
}

func stratumKey(sex, band string) string {
	return sex + "_" + band
}

// Neighbors returns the comorbid conditions of condition for the (age, sex)
// stratum, sorted by weight descending. Weights between two conditions are
// the arithmetic mean across all contributing ICD code pairs; using the mean
// instead of the max keeps a single extreme code pair (for example
// hypertensive CKD → CKD) from dominating the aggregate. Missing strata fall
// back to the nearest age band; a total miss yields an empty slice.
func (s *NetworkStore) Neighbors(condition string, age int, sex string) []domain.ComorbidNeighbor {
	s.once.Do(s.load)
	if s.loadErr != nil {
		s.logger.WithError(s.loadErr).Error("Comorbidity network unavailable")
		return nil
	}

	sexCode := domain.NormalizeSex(sex)
	band := AgeBand(age)

	cacheKey := fmt.Sprintf("%s|%s|%d", condition, sexCode, band)
	if cached, ok := s.cache.Get(cacheKey); ok {
		return cached
	}

	codes := ConditionCodes(condition)
	if len(codes) == 0 {
		return nil
	}
	sourceIndices := make([]int, 0, len(codes))
	for _, c := range codes {
		if idx, ok := s.codeToIdx[c]; ok {
			sourceIndices = append(sourceIndices, idx)
		}
	}
	if len(sourceIndices) == 0 {
		return nil
	}

	matrix := s.matrixForStratum(sexCode, band)
	if matrix == nil {
		return nil
	}

	// Collect every non-zero weight per target condition, then average.
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, srcIdx := range sourceIndices {
		row := matrix[srcIdx]
		for tgtIdx, weight := range row {
			if weight == 0 {
				continue
			}
			target, ok := ConditionForCode(s.idxToCode[tgtIdx])
			if !ok || target == condition {
				continue
			}
			sums[target] += weight
			counts[target]++
		}
	}

	neighbors := make([]domain.ComorbidNeighbor, 0, len(sums))
	for target, sum := range sums {
		neighbors = append(neighbors, domain.ComorbidNeighbor{
			Condition: target,
			Weight:    sum / float64(counts[target]),
			Label:     ConditionLabel(target),
		})
	}
	sort.Slice(neighbors, func(i, j int) bool {
		if neighbors[i].Weight != neighbors[j].Weight {
			return neighbors[i].Weight > neighbors[j].Weight
		}
		return neighbors[i].Condition < neighbors[j].Condition
	})

	s.cache.Add(cacheKey, neighbors)
	return neighbors
}

// matrixForStratum resolves the exact stratum or the nearest age band.
func (s *NetworkStore) matrixForStratum(sexCode string, band int) [][]float64 {
	if m, ok := s.matrices[stratumKey(sexCode, strconv.Itoa(band))]; ok {
		return m
	}
	for _, offset := range nearestBandOffsets {
		fallback := band + offset
		if fallback < 1 {
			fallback = 1
		}
		if fallback > 8 {
			fallback = 8
		}
		if m, ok := s.matrices[stratumKey(sexCode, strconv.Itoa(fallback))]; ok {
			s.logger.WithFields(logrus.Fields{
				"sex":           sexCode,
				"age_band":      band,
				"fallback_band": fallback,
			}).Debug("Stratum missing, using nearest age band")
			return m
		}
	}
	return nil
}
