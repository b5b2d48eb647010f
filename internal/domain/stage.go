package domain

import "strings"

// Stage identifies one fixed pipeline phase of an event production.
type Stage string

// Stage values in pipeline order.
const (
	StagePlanning       Stage = "PLANNING"
	StageProduction     Stage = "PRODUCTION"
	StagePostProduction Stage = "POST_PRODUCTION"
	StageDelivery       Stage = "DELIVERY"
)

// stageOrder is the total order used wherever rows are emitted per stage.
var stageOrder = []Stage{StagePlanning, StageProduction, StagePostProduction, StageDelivery}

// legacyStageAliases maps retired category codes onto the current taxonomy.
var legacyStageAliases = map[string]Stage{
	"REVIEW":  StagePostProduction,
	"EDITING": StagePostProduction,
}

var stageLabels = map[Stage]string{
	StagePlanning:       "Planeación",
	StageProduction:     "Producción",
	StagePostProduction: "Postproducción",
	StageDelivery:       "Entrega",
}

var stageColors = map[Stage]string{
	StagePlanning:       "#6C8EEF",
	StageProduction:     "#F2A541",
	StagePostProduction: "#B17FE0",
	StageDelivery:       "#4CB782",
}

// Stages returns the stages in pipeline order.
func Stages() []Stage {
	return append([]Stage(nil), stageOrder...)
}

// NormalizeStage maps a raw stage or category code onto the taxonomy.
// Unknown and empty codes fall back to PLANNING so no task is ever dropped.
func NormalizeStage(code string) Stage {
	code = strings.ToUpper(strings.TrimSpace(code))
	for _, stage := range stageOrder {
		if code == string(stage) {
			return stage
		}
	}
	if stage, ok := legacyStageAliases[code]; ok {
		return stage
	}
	return StagePlanning
}

// IsKnownStage reports whether code names a stage exactly, without aliasing.
func IsKnownStage(code string) bool {
	code = strings.ToUpper(strings.TrimSpace(code))
	for _, stage := range stageOrder {
		if code == string(stage) {
			return true
		}
	}
	return false
}

// Index returns the stage position in pipeline order, or -1.
func (s Stage) Index() int {
	for idx, stage := range stageOrder {
		if stage == s {
			return idx
		}
	}
	return -1
}

// Label returns the display label.
func (s Stage) Label() string {
	if label, ok := stageLabels[s]; ok {
		return label
	}
	return string(s)
}

// Color returns the display color as a hex string.
func (s Stage) Color() string {
	if color, ok := stageColors[s]; ok {
		return color
	}
	return "#888888"
}

// StageKey returns the stable key of one (section, stage) pair.
func StageKey(sectionID string, stage Stage) string {
	return sectionID + "-" + string(stage)
}

// ParseStageKey splits a stage key back into its section id and stage.
func ParseStageKey(key string) (string, Stage, bool) {
	for _, stage := range stageOrder {
		suffix := "-" + string(stage)
		if strings.HasSuffix(key, suffix) && len(key) > len(suffix) {
			return strings.TrimSuffix(key, suffix), stage, true
		}
	}
	return "", "", false
}

// CategoryActivationKey returns the activation key of one category under a stage.
func CategoryActivationKey(stageKey, categoryID string) string {
	return stageKey + "/" + categoryID
}
