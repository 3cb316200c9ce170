package domain

type WorkCategory string

const (
	CategoryMobilization      WorkCategory = "MOBILIZATION"
	CategoryDemolition        WorkCategory = "DEMOLITION"
	CategoryEarthwork         WorkCategory = "EARTHWORK"
	CategoryDrainage          WorkCategory = "DRAINAGE"
	CategorySubstructure      WorkCategory = "SUBSTRUCTURE"
	CategorySuperstructure    WorkCategory = "SUPERSTRUCTURE"
	CategoryDeck              WorkCategory = "DECK"
	CategoryApproachSlabs     WorkCategory = "APPROACH_SLABS"
	CategoryPavement          WorkCategory = "PAVEMENT"
	CategoryGuardrail         WorkCategory = "GUARDRAIL_BARRIER"
	CategorySigningStriping   WorkCategory = "SIGNING_STRIPING"
	CategoryTrafficControl    WorkCategory = "TRAFFIC_CONTROL"
	CategoryEnvironmental     WorkCategory = "ENVIRONMENTAL"
	CategoryUtilities         WorkCategory = "UTILITIES"
	CategoryLandscaping       WorkCategory = "LANDSCAPING"
	CategoryGeneralConditions WorkCategory = "GENERAL_CONDITIONS"
	CategoryOther             WorkCategory = "OTHER"
)

// CategoryOrder is the canonical estimator-facing ordering used by the
// deterministic work-package grouper.
var CategoryOrder = []WorkCategory{
	CategoryMobilization,
	CategoryDemolition,
	CategoryEarthwork,
	CategoryDrainage,
	CategorySubstructure,
	CategorySuperstructure,
	CategoryDeck,
	CategoryApproachSlabs,
	CategoryPavement,
	CategoryGuardrail,
	CategorySigningStriping,
	CategoryTrafficControl,
	CategoryEnvironmental,
	CategoryUtilities,
	CategoryLandscaping,
	CategoryGeneralConditions,
	CategoryOther,
}

// categoryNames maps the enum to the estimator-facing package names.
var categoryNames = map[WorkCategory]string{
	CategoryMobilization:      "Mobilization",
	CategoryDemolition:        "Demolition",
	CategoryEarthwork:         "Earthwork",
	CategoryDrainage:          "Drainage",
	CategorySubstructure:      "Substructure",
	CategorySuperstructure:    "Superstructure",
	CategoryDeck:              "Deck",
	CategoryApproachSlabs:     "Approach Slabs",
	CategoryPavement:          "Pavement",
	CategoryGuardrail:         "Guardrail & Barrier",
	CategorySigningStriping:   "Signing & Striping",
	CategoryTrafficControl:    "Traffic Control",
	CategoryEnvironmental:     "Environmental",
	CategoryUtilities:         "Utilities",
	CategoryLandscaping:       "Landscaping",
	CategoryGeneralConditions: "General Conditions",
	CategoryOther:             "Other",
}

func (c WorkCategory) DisplayName() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return string(c)
}

var validCategories = func() map[WorkCategory]struct{} {
	m := make(map[WorkCategory]struct{}, len(CategoryOrder))
	for _, c := range CategoryOrder {
		m[c] = struct{}{}
	}
	return m
}()

func ValidWorkCategory(c WorkCategory) bool {
	_, ok := validCategories[c]
	return ok
}

type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

var riskRank = map[RiskLevel]int{
	RiskLow:      0,
	RiskMedium:   1,
	RiskHigh:     2,
	RiskCritical: 3,
}

func ValidRiskLevel(r RiskLevel) bool {
	_, ok := riskRank[r]
	return ok
}

// AtLeast raises r to floor if it currently ranks below it.
func (r RiskLevel) AtLeast(floor RiskLevel) RiskLevel {
	if riskRank[r] < riskRank[floor] {
		return floor
	}
	return r
}

// Escalate raises r by one level, capped at CRITICAL.
func (r RiskLevel) Escalate() RiskLevel {
	switch r {
	case RiskLow:
		return RiskMedium
	case RiskMedium:
		return RiskHigh
	default:
		return RiskCritical
	}
}

type OpportunityFlag string

const (
	OpportunityEarlyBuy       OpportunityFlag = "EARLY_BUYOUT"
	OpportunityValueEng       OpportunityFlag = "VALUE_ENGINEERING"
	OpportunitySelfPerform    OpportunityFlag = "SELF_PERFORM"
	OpportunityQuantityReview OpportunityFlag = "QUANTITY_REVIEW"
)

var validOpportunities = map[OpportunityFlag]struct{}{
	OpportunityEarlyBuy:       {},
	OpportunityValueEng:       {},
	OpportunitySelfPerform:    {},
	OpportunityQuantityReview: {},
}

func ValidOpportunityFlag(f OpportunityFlag) bool {
	_, ok := validOpportunities[f]
	return ok
}
