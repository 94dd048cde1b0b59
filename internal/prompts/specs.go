package prompts

const classifySpec = `Respond with a JSON object matching this exact structure:

{
  "clauses": [
    {
      "clause_type": "<type>",
      "title": "<heading>",
      "section_number": "<number>",
      "text": "<verbatim clause text>",
      "key_terms": ["<term>"]
    }
  ]
}

Field constraints:
- clause_type: One of the allowed clause types listed in the prompt.
- title: The clause heading as written, or a short descriptive title when
  the contract has none.
- section_number: The section number as written (e.g., "7.2"). Empty
  string when the clause is unnumbered.
- text: The exact clause text copied from the contract.
- key_terms: Defined terms and notable phrases the clause relies on.

Behavioral constraints:
- Always respond with valid JSON, no markdown fencing
- List clauses in document order
- Do not merge distinct sections into one clause`

const scoreSpec = `Respond with a JSON object matching this exact structure:

{
  "risk_score": 0.0,
  "risk_factors": ["<factor>"],
  "analysis": "<explanation>"
}

Field constraints:
- risk_score: Number between 0 and 1. Below 0.4 is low risk, 0.4 up to
  0.7 is medium, 0.7 and above is high.
- risk_factors: Factors from the allowed vocabulary that apply to this
  clause. Empty array when none apply.
- analysis: Two or three sentences explaining the score with reference
  to specific clause language.

Behavioral constraints:
- Always respond with valid JSON, no markdown fencing
- Assess only the clause provided, not the wider contract`

const draftSpec = `Respond with a JSON object matching this exact structure:

{
  "amendments": [
    {
      "amendment_type": "<modification|addition|deletion|replacement>",
      "proposed_text": "<amended clause language>",
      "rationale": "<why>",
      "risk_mitigation": "<how the risk is reduced>",
      "negotiation_points": ["<point>"]
    }
  ]
}

Field constraints:
- amendment_type: modification edits the clause, addition inserts new
  language, deletion removes language, replacement substitutes the clause.
- proposed_text: Complete contract language ready to insert. Required.
- negotiation_points: Short talking points for the negotiation.

Behavioral constraints:
- Always respond with valid JSON, no markdown fencing
- Propose between one and three amendments
- Address every listed risk factor in at least one amendment`

const profileSpec = `Respond with a JSON object matching this exact structure:

{
  "title": "<title>",
  "contract_type": "<type>",
  "parties": ["<party>"],
  "effective_date": "<YYYY-MM-DD or empty>",
  "expiration_date": "<YYYY-MM-DD or empty>",
  "summary": "<summary>"
}

Field constraints:
- contract_type: Prefer one of the suggested contract types listed in
  the prompt. Use "other" when none fits.
- parties: Legal names of the contracting parties.
- effective_date, expiration_date: ISO dates, or empty strings when the
  contract does not state them.

Behavioral constraints:
- Always respond with valid JSON, no markdown fencing
- Never invent values that the contract does not state`

var specs = map[Stage]string{
	StageClassify: classifySpec,
	StageScore:    scoreSpec,
	StageDraft:    draftSpec,
	StageProfile:  profileSpec,
}

// Spec returns the output specification for a capability stage.
// Specifications are fixed because response parsing depends on them.
func Spec(stage Stage) (string, error) {
	text, ok := specs[stage]
	if !ok {
		return "", ErrInvalidStage
	}
	return text, nil
}
