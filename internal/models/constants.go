package models

const (
	CitationRegex = `\[(\d+(?:\s*,\s*\d+)*)\]`
	ThinkTag      = `(?s)<think>.*?</think>`

	// InsufficientEvidenceMessage is returned verbatim when retrieval finds nothing to cite.
	InsufficientEvidenceMessage = "No relevant evidence was found in the indexed documents."

	// InsufficientEvidenceSignal is the phrase the generator is told to use when the evidence does not support an answer.
	InsufficientEvidenceSignal = "insufficient evidence"

	EvidenceSeparator = "\n\n"
)

var (
	// GroundedPromptTemplate takes the numbered evidence block, the question and the insufficient evidence signal.
	GroundedPromptTemplate = `Answer the question using only the evidence below.
Evidence:
%s

Question: %s
Rules: Use only the listed evidence. If the evidence does not support an answer, reply "%s". Mark every claim with the matching citation number in square brackets, for example [1].`
)
