// Package taxonomy defines the closed vocabularies shared by the pipeline
// stages and the capability providers: clause types, risk factors, contract
// types, and amendment types.
package taxonomy

import "slices"

// ClauseType labels a segment of contract text.
type ClauseType string

// Clause types recognized by the extractor. Anything else is ClauseOther.
const (
	ClauseTermination          ClauseType = "termination"
	ClauseConfidentiality      ClauseType = "confidentiality"
	ClauseIndemnification      ClauseType = "indemnification"
	ClauseLiability            ClauseType = "liability"
	ClauseIntellectualProperty ClauseType = "intellectual_property"
	ClauseNonCompete           ClauseType = "non_compete"
	ClauseNonSolicitation      ClauseType = "non_solicitation"
	ClausePayment              ClauseType = "payment"
	ClauseWarranty             ClauseType = "warranty"
	ClauseDisputeResolution    ClauseType = "dispute_resolution"
	ClauseForceMajeure         ClauseType = "force_majeure"
	ClauseGoverningLaw         ClauseType = "governing_law"
	ClauseAssignment           ClauseType = "assignment"
	ClauseAmendment            ClauseType = "amendment"
	ClauseNotices              ClauseType = "notices"
	ClauseEntireAgreement      ClauseType = "entire_agreement"
	ClauseSeverability         ClauseType = "severability"
	ClauseOther                ClauseType = "other"
)

var clauseTypes = []ClauseType{
	ClauseTermination,
	ClauseConfidentiality,
	ClauseIndemnification,
	ClauseLiability,
	ClauseIntellectualProperty,
	ClauseNonCompete,
	ClauseNonSolicitation,
	ClausePayment,
	ClauseWarranty,
	ClauseDisputeResolution,
	ClauseForceMajeure,
	ClauseGoverningLaw,
	ClauseAssignment,
	ClauseAmendment,
	ClauseNotices,
	ClauseEntireAgreement,
	ClauseSeverability,
	ClauseOther,
}

// ClauseTypes returns the full clause taxonomy, ending with ClauseOther.
func ClauseTypes() []ClauseType {
	return slices.Clone(clauseTypes)
}

// ParseClauseType maps s onto the taxonomy. Unknown values become ClauseOther.
func ParseClauseType(s string) ClauseType {
	v := ClauseType(s)
	if slices.Contains(clauseTypes, v) {
		return v
	}
	return ClauseOther
}

// RiskFactor is a short label from the controlled risk vocabulary.
type RiskFactor string

// Default risk factor vocabulary.
const (
	FactorUnboundedLiability      RiskFactor = "unbounded_liability"
	FactorMissingCap              RiskFactor = "missing_cap"
	FactorAutoRenewal             RiskFactor = "auto_renewal"
	FactorUnilateralTermination   RiskFactor = "unilateral_termination"
	FactorBroadIndemnity          RiskFactor = "broad_indemnity"
	FactorOneSidedObligation      RiskFactor = "one_sided_obligation"
	FactorVagueTerms              RiskFactor = "vague_terms"
	FactorExcessivePenalty        RiskFactor = "excessive_penalty"
	FactorPerpetualTerm           RiskFactor = "perpetual_term"
	FactorBroadNonCompete         RiskFactor = "broad_non_compete"
	FactorIPAssignment            RiskFactor = "ip_assignment"
	FactorUnfavorableJurisdiction RiskFactor = "unfavorable_jurisdiction"
	FactorPaymentRisk             RiskFactor = "payment_risk"
	FactorConfidentialityGap      RiskFactor = "confidentiality_gap"
	FactorWaiverOfRights          RiskFactor = "waiver_of_rights"
)

// DefaultRiskFactors returns the built-in controlled vocabulary.
func DefaultRiskFactors() []RiskFactor {
	return []RiskFactor{
		FactorUnboundedLiability,
		FactorMissingCap,
		FactorAutoRenewal,
		FactorUnilateralTermination,
		FactorBroadIndemnity,
		FactorOneSidedObligation,
		FactorVagueTerms,
		FactorExcessivePenalty,
		FactorPerpetualTerm,
		FactorBroadNonCompete,
		FactorIPAssignment,
		FactorUnfavorableJurisdiction,
		FactorPaymentRisk,
		FactorConfidentialityGap,
		FactorWaiverOfRights,
	}
}

// ContractType values suggested to profilers. Contract type is an open string.
var ContractTypes = []string{
	"nda",
	"employment",
	"service",
	"license",
	"lease",
	"purchase",
	"partnership",
	"other",
}

// AmendmentType describes the kind of edit an amendment proposes.
type AmendmentType string

// Amendment types.
const (
	AmendmentModification AmendmentType = "modification"
	AmendmentAddition     AmendmentType = "addition"
	AmendmentDeletion     AmendmentType = "deletion"
	AmendmentReplacement  AmendmentType = "replacement"
)

var amendmentTypes = []AmendmentType{
	AmendmentModification,
	AmendmentAddition,
	AmendmentDeletion,
	AmendmentReplacement,
}

// ParseAmendmentType validates s. Empty input yields AmendmentModification.
func ParseAmendmentType(s string) (AmendmentType, bool) {
	if s == "" {
		return AmendmentModification, true
	}
	v := AmendmentType(s)
	return v, slices.Contains(amendmentTypes, v)
}
