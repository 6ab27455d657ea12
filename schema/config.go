package schema

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/hupe1980/sampleidx/field"
	"github.com/spf13/viper"
)

// DefaultFilePositionBits is the number of bits used to address the file of a
// multi-file sample.
const DefaultFilePositionBits = 3

// ErrInvalidConfiguration is returned when a configuration fails validation.
var ErrInvalidConfiguration = errors.New("invalid sample index configuration")

// Configuration describes every field of a sample index.
type Configuration struct {
	FileIndex       FileIndexConfiguration       `mapstructure:"fileIndex" json:"fileIndex"`
	AnnotationIndex AnnotationIndexConfiguration `mapstructure:"annotationIndex" json:"annotationIndex"`
}

// FileIndexConfiguration describes the per-file bits stored for each variant.
type FileIndexConfiguration struct {
	FilePositionBits int                   `mapstructure:"filePositionBits" json:"filePositionBits"`
	CustomFields     []field.Configuration `mapstructure:"customFields" json:"customFields"`
}

// AnnotationIndexConfiguration describes the annotation sub-indexes.
type AnnotationIndexConfiguration struct {
	ConsequenceType      *field.Configuration              `mapstructure:"consequenceType" json:"consequenceType,omitempty"`
	Biotype              *field.Configuration              `mapstructure:"biotype" json:"biotype,omitempty"`
	TranscriptFlag       *field.Configuration              `mapstructure:"transcriptFlag" json:"transcriptFlag,omitempty"`
	PopulationFrequency  *PopulationFrequencyConfiguration `mapstructure:"populationFrequency" json:"populationFrequency,omitempty"`
	ClinicalSource       *field.Configuration              `mapstructure:"clinicalSource" json:"clinicalSource,omitempty"`
	ClinicalSignificance *field.Configuration              `mapstructure:"clinicalSignificance" json:"clinicalSignificance,omitempty"`
}

// PopulationFrequencyConfiguration shares one set of thresholds across all
// indexed populations.
type PopulationFrequencyConfiguration struct {
	Populations []Population `mapstructure:"populations" json:"populations"`
	Thresholds  []float64    `mapstructure:"thresholds" json:"thresholds"`
}

// Population identifies a population frequency by study and population name.
type Population struct {
	Study      string `mapstructure:"study" json:"study"`
	Population string `mapstructure:"population" json:"population"`
}

// Key returns "study:population".
func (p Population) Key() string { return p.Study + ":" + p.Population }

// ParsePopulation reads "study:population".
func ParsePopulation(s string) (Population, error) {
	study, pop, ok := strings.Cut(s, ":")
	if !ok || study == "" || pop == "" {
		return Population{}, fmt.Errorf("%w: population %q", ErrInvalidConfiguration, s)
	}
	return Population{Study: study, Population: pop}, nil
}

// Fields returns one RangeLT field per population.
func (c *PopulationFrequencyConfiguration) Fields() []field.Configuration {
	out := make([]field.Configuration, len(c.Populations))
	for i, p := range c.Populations {
		out[i] = field.Configuration{
			Source:     field.SourceAnnotation,
			Key:        p.Key(),
			Kind:       field.RangeLT,
			Thresholds: slices.Clone(c.Thresholds),
			Min:        ptr(0.0),
			Max:        ptr(1.0 + field.Delta),
		}
	}
	return out
}

func ptr[T any](v T) *T { return &v }

// Default returns the default configuration.
func Default() Configuration {
	return Configuration{
		FileIndex: FileIndexConfiguration{
			FilePositionBits: DefaultFilePositionBits,
			CustomFields: []field.Configuration{
				{Source: field.SourceFile, Key: "FILTER", Kind: field.Categorical, Values: []string{"PASS"}, Other: "other"},
				{Source: field.SourceFile, Key: "QUAL", Kind: field.RangeLT, Thresholds: []float64{10, 20, 30}, Min: ptr(0.0)},
				{Source: field.SourceSample, Key: "DP", Kind: field.RangeLT, Thresholds: []float64{5, 10, 15, 20, 30, 50}, Min: ptr(0.0), Nullable: true},
			},
		},
		AnnotationIndex: AnnotationIndexConfiguration{
			ConsequenceType: &field.Configuration{
				Source: field.SourceAnnotation,
				Key:    "consequenceType",
				Kind:   field.CategoricalMultiValue,
				Values: []string{
					"missense_variant",
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
					"feature_truncation",
					"synonymous_variant",
					"regulatory_region_variant",
					"TF_binding_site_variant",
					"mature_miRNA_variant",
					"upstream_gene_variant",
					"downstream_gene_variant",
					"3_prime_UTR_variant",
					"5_prime_UTR_variant",
					"intron_variant",
				},
			},
			Biotype: &field.Configuration{
				Source: field.SourceAnnotation,
				Key:    "biotype",
				Kind:   field.CategoricalMultiValue,
				Values: []string{
					"nonsense_mediated_decay",
					"lincRNA",
					"miRNA",
					"retained_intron",
					"snRNA",
					"snoRNA",
					"other_non_pseudo_gene",
					"protein_coding",
				},
				ValuesMapping: map[string][]string{
					"lincRNA": {
						"lncRNA", "non_coding", "macro_lncRNA", "antisense", "sense_intronic",
						"sense_overlapping", "3prime_overlapping_ncrna", "bidirectional_promoter_lncRNA",
					},
					"other_non_pseudo_gene": {
						"processed_transcript", "non_stop_decay", "misc_RNA", "rRNA", "Mt_rRNA", "Mt_tRNA",
						"IG_C_gene", "IG_D_gene", "IG_J_gene", "IG_V_gene", "TR_C_gene", "TR_D_gene",
						"TR_J_gene", "TR_V_gene", "NMD_transcript_variant", "transcribed_unprocessed_pseudogene",
						"ambiguous_orf", "known_ncrna", "retrotransposed", "LRG_gene",
					},
				},
			},
			TranscriptFlag: &field.Configuration{
				Source: field.SourceAnnotation,
				Key:    "transcriptFlag",
				Kind:   field.CategoricalMultiValue,
				Values: []string{"basic", "CCDS", "canonical", "MANE_Select", "MANE_Plus_Clinical", "EGLH_HaemOnc", "TSO500"},
			},
			PopulationFrequency: &PopulationFrequencyConfiguration{
				Populations: []Population{
					{Study: "1kG_phase3", Population: "ALL"},
					{Study: "GNOMAD_GENOMES", Population: "ALL"},
				},
				Thresholds: []float64{0.0000001, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
			},
			ClinicalSource: &field.Configuration{
				Source: field.SourceAnnotation,
				Key:    "clinicalSource",
				Kind:   field.CategoricalMultiValue,
				Values: []string{"clinvar", "cosmic"},
			},
			ClinicalSignificance: &field.Configuration{
				Source: field.SourceAnnotation,
				Key:    "clinicalSignificance",
				Kind:   field.CategoricalMultiValue,
				Values: []string{"benign", "likely_benign", "uncertain_significance", "likely_pathogenic", "pathogenic"},
			},
		},
	}
}

// fieldKinds lists the kinds accepted for well-known keys.
var fieldKinds = map[string][]field.Kind{
	"FILE:FILTER":                     {field.Categorical, field.CategoricalMultiValue},
	"FILE:QUAL":                       {field.RangeLT, field.RangeGT},
	"SAMPLE:DP":                       {field.RangeLT, field.RangeGT},
	"ANNOTATION:consequenceType":      {field.CategoricalMultiValue},
	"ANNOTATION:biotype":              {field.CategoricalMultiValue},
	"ANNOTATION:transcriptFlag":       {field.CategoricalMultiValue},
	"ANNOTATION:clinicalSource":       {field.CategoricalMultiValue},
	"ANNOTATION:clinicalSignificance": {field.CategoricalMultiValue},
}

// AddMissingValues fills every unset section from defaults.
func (c *Configuration) AddMissingValues(defaults Configuration) {
	if c.FileIndex.FilePositionBits == 0 {
		c.FileIndex.FilePositionBits = defaults.FileIndex.FilePositionBits
	}
	if len(c.FileIndex.CustomFields) == 0 {
		c.FileIndex.CustomFields = slices.Clone(defaults.FileIndex.CustomFields)
	}
	a, d := &c.AnnotationIndex, defaults.AnnotationIndex
	if a.PopulationFrequency == nil {
		a.PopulationFrequency = &PopulationFrequencyConfiguration{}
	}
	if a.PopulationFrequency.Thresholds == nil {
		a.PopulationFrequency.Thresholds = slices.Clone(d.PopulationFrequency.Thresholds)
	}
	if len(a.PopulationFrequency.Populations) == 0 {
		a.PopulationFrequency.Populations = slices.Clone(d.PopulationFrequency.Populations)
	}
	if a.ConsequenceType == nil {
		a.ConsequenceType = d.ConsequenceType
	}
	if a.Biotype == nil {
		a.Biotype = d.Biotype
	}
	if a.TranscriptFlag == nil {
		a.TranscriptFlag = d.TranscriptFlag
	}
	if a.ClinicalSource == nil {
		a.ClinicalSource = d.ClinicalSource
	}
	if a.ClinicalSignificance == nil {
		a.ClinicalSignificance = d.ClinicalSignificance
	}
}

// Validate completes the configuration with defaults and checks every field.
func (c *Configuration) Validate() error {
	c.AddMissingValues(Default())

	if c.FileIndex.FilePositionBits < 1 || c.FileIndex.FilePositionBits > 8 {
		return fmt.Errorf("%w: filePositionBits %d out of [1,8]", ErrInvalidConfiguration, c.FileIndex.FilePositionBits)
	}
	seen := make(map[string]bool)
	for _, f := range c.FileIndex.CustomFields {
		if f.Source == field.SourceAnnotation {
			return fmt.Errorf("%w: file index field %s cannot read annotations", ErrInvalidConfiguration, f.ID())
		}
		if seen[f.ID()] {
			return fmt.Errorf("%w: duplicated file index field %s", ErrInvalidConfiguration, f.ID())
		}
		seen[f.ID()] = true
		if err := validateField(f); err != nil {
			return err
		}
	}

	seen = make(map[string]bool)
	for _, p := range c.AnnotationIndex.PopulationFrequency.Populations {
		if seen[p.Key()] {
			return fmt.Errorf("%w: duplicated population %s", ErrInvalidConfiguration, p.Key())
		}
		seen[p.Key()] = true
	}
	for _, f := range c.AnnotationIndex.PopulationFrequency.Fields() {
		if err := validateField(f); err != nil {
			return err
		}
	}

	a := c.AnnotationIndex
	for _, f := range []*field.Configuration{a.ConsequenceType, a.Biotype, a.TranscriptFlag, a.ClinicalSource, a.ClinicalSignificance} {
		if err := validateField(*f); err != nil {
			return err
		}
	}
	return nil
}

func validateField(f field.Configuration) error {
	if err := f.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfiguration, err)
	}
	if kinds, ok := fieldKinds[f.ID()]; ok && !slices.Contains(kinds, f.Kind) {
		return fmt.Errorf("%w: %s cannot be of type %s", ErrInvalidConfiguration, f.ID(), f.Kind)
	}
	return nil
}

// LoadConfiguration reads a YAML or JSON configuration file. Values may be
// overridden with SAMPLEIDX_ prefixed environment variables, for example
// SAMPLEIDX_FILEINDEX_FILEPOSITIONBITS=4. Missing sections are taken from
// Default and the result is validated.
func LoadConfiguration(path string) (Configuration, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("SAMPLEIDX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetDefault("fileIndex.filePositionBits", DefaultFilePositionBits)

	if err := v.ReadInConfig(); err != nil {
		return Configuration{}, fmt.Errorf("read sample index configuration: %w", err)
	}
	return decodeConfiguration(v)
}

func decodeConfiguration(v *viper.Viper) (Configuration, error) {
	var cfg Configuration
	if err := v.Unmarshal(&cfg); err != nil {
		return Configuration{}, fmt.Errorf("%w: %w", ErrInvalidConfiguration, err)
	}
	if err := cfg.Validate(); err != nil {
		return Configuration{}, err
	}
	return cfg, nil
}
