// Package annotation converts variant annotations into the codes stored by the
// sample index.
package annotation

// ConsequenceType is the effect of a variant on one transcript.
type ConsequenceType struct {
	GeneID          string   `json:"geneId,omitempty"`
	GeneName        string   `json:"geneName,omitempty"`
	TranscriptID    string   `json:"transcriptId,omitempty"`
	Biotype         string   `json:"biotype,omitempty"`
	TranscriptFlags []string `json:"transcriptFlags,omitempty"`
	// SequenceOntologyTerms are SO names such as "missense_variant".
	SequenceOntologyTerms []string `json:"sequenceOntologyTerms"`
}

// InGene reports whether the consequence type belongs to a gene.
func (c ConsequenceType) InGene() bool {
	return c.GeneID != "" || c.GeneName != "" || c.TranscriptID != ""
}

// PopulationFrequency is the alternate allele frequency of one population.
type PopulationFrequency struct {
	Study         string  `json:"study"`
	Population    string  `json:"population"`
	AltAlleleFreq float64 `json:"altAlleleFreq"`
}

// Key returns "study:population".
func (p PopulationFrequency) Key() string { return p.Study + ":" + p.Population }

// Clinical is one clinical assertion of a variant.
type Clinical struct {
	Source       string `json:"source"`
	Significance string `json:"clinicalSignificance,omitempty"`
}

// Annotation is the subset of a variant annotation the index consumes.
type Annotation struct {
	ConsequenceTypes      []ConsequenceType     `json:"consequenceTypes,omitempty"`
	PopulationFrequencies []PopulationFrequency `json:"populationFrequencies,omitempty"`
	Clinical              []Clinical            `json:"clinical,omitempty"`
}

// Well known sequence ontology terms and biotypes.
const (
	IntergenicVariant = "intergenic_variant"
	MissenseVariant   = "missense_variant"
	ProteinCoding     = "protein_coding"
	BasicFlag         = "basic"
)

// LoF lists the loss of function consequence types.
var LoF = []string{
	"frameshift_variant",
	"inframe_deletion",
	"inframe_insertion",
	"start_lost",
	"stop_gained",
	"stop_lost",
	"splice_acceptor_variant",
	"splice_donor_variant",
	"transcript_ablation",
	"transcript_amplification",
	"initiator_codon_variant",
	"splice_region_variant",
	"incomplete_terminal_codon_variant",
}

// LoFExtended is LoF plus missense_variant.
var LoFExtended = append(append([]string(nil), LoF...), MissenseVariant)

// PopFreqAny001Populations are the populations summarized by the
// POP_FREQ_ANY_001 bit.
var PopFreqAny001Populations = []string{"1kG_phase3:ALL", "GNOMAD_GENOMES:ALL"}
