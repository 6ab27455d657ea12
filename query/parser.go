package query

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"github.com/bits-and-blooms/bitset"
	"github.com/hupe1980/sampleidx/annotation"
	"github.com/hupe1980/sampleidx/field"
	"github.com/hupe1980/sampleidx/schema"
	"github.com/hupe1980/sampleidx/variant"
)

// DefaultLoadedGenotypes are the genotypes assumed loaded when the caller
// does not configure them.
var DefaultLoadedGenotypes = []string{
	"0/1", "0|1", "1|0",
	"1/1", "1|1",
	"1/2", "1|2", "2|1",
	"0/2", "0|2", "2|0",
	"./1", "1",
}

// ParserOption configures a Parser.
type ParserOption func(*Parser)

// WithLogger sets the logger of the parser.
func WithLogger(l *slog.Logger) ParserOption {
	return func(p *Parser) { p.logger = l }
}

// WithLoadedGenotypes sets the genotypes present in the index.
func WithLoadedGenotypes(gts ...string) ParserOption {
	return func(p *Parser) { p.loaded = gts }
}

// Parser builds sample index queries from variant queries.
type Parser struct {
	schema   *schema.SampleIndexSchema
	metadata Metadata
	logger   *slog.Logger
	loaded   []string
}

// NewParser returns a parser bound to schema s.
func NewParser(s *schema.SampleIndexSchema, md Metadata, opts ...ParserOption) *Parser {
	p := &Parser{
		schema:   s,
		metadata: md,
		logger:   slog.New(slog.DiscardHandler),
		loaded:   DefaultLoadedGenotypes,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type sampleGenotypes struct {
	sample string
	gts    []string
}

// usable reports whether every genotype is stored in the index.
func (s sampleGenotypes) usable() bool {
	for _, gt := range s.gts {
		if !schema.IsIndexable(gt) {
			return false
		}
	}
	return len(s.gts) > 0
}

func (s sampleGenotypes) negated() bool {
	return slices.ContainsFunc(s.gts, schema.IsNegated)
}

// parseGenotypeFilter parses "s1:gt,gt;s2:gt". The separator in front of a
// sample decides the operation; genotypes of one sample are joined by ",".
func parseGenotypeFilter(raw string) ([]sampleGenotypes, Operation, error) {
	var (
		out []sampleGenotypes
		op  Operation
		sep byte
	)
	start := 0
	for i := 0; i <= len(raw); i++ {
		if i < len(raw) && raw[i] != ',' && raw[i] != ';' {
			continue
		}
		token := strings.TrimSpace(raw[start:i])
		start = i + 1
		if token != "" {
			if sample, gt, ok := strings.Cut(token, ":"); ok {
				if len(out) > 0 {
					tokOp := OpOr
					if sep == ';' {
						tokOp = OpAnd
					}
					if op != "" && op != tokOp {
						return nil, "", fmt.Errorf("%w: genotype filter mixes AND and OR: %q", ErrInvalidQuery, raw)
					}
					op = tokOp
				}
				out = append(out, sampleGenotypes{sample: strings.TrimSpace(sample), gts: []string{strings.TrimSpace(gt)}})
			} else {
				if len(out) == 0 || sep != ',' {
					return nil, "", fmt.Errorf("%w: malformed genotype filter %q", ErrInvalidQuery, raw)
				}
				out[len(out)-1].gts = append(out[len(out)-1].gts, token)
			}
		}
		if i < len(raw) {
			sep = raw[i]
		}
	}
	if len(out) == 0 {
		return nil, "", fmt.Errorf("%w: empty genotype filter", ErrInvalidQuery)
	}
	if op == "" {
		op = OpAnd
	}
	return out, op, nil
}

// expandGenotypes adds the phased forms of unphased diploid genotypes.
func expandGenotypes(gts []string) []string {
	out := make([]string, 0, len(gts)*2)
	add := func(gt string) {
		if !slices.Contains(out, gt) {
			out = append(out, gt)
		}
	}
	for _, gt := range gts {
		add(gt)
		a, b, ok := strings.Cut(gt, "/")
		if !ok || strings.ContainsAny(b, "/|") {
			continue
		}
		add(a + "|" + b)
		add(b + "|" + a)
	}
	return out
}

// Valid reports whether the sample index can answer q.
func (p *Parser) Valid(q VariantQuery) bool {
	switch {
	case q.Has(ParamGenotype):
		sgs, op, err := parseGenotypeFilter(q.Get(ParamGenotype))
		if err != nil {
			return false
		}
		anyValid, allValid := false, true
		for _, sg := range sgs {
			ok := sg.usable()
			anyValid = anyValid || ok
			allValid = allValid && ok
		}
		if op == OpAnd {
			return anyValid
		}
		return allValid
	case q.Has(ParamSample):
		samples, _, ok := q.List(ParamSample)
		return ok && slices.ContainsFunc(samples, func(s string) bool { return !schema.IsNegated(s) })
	case q.Has(ParamMendelianError):
		return true
	}
	return false
}

// sampleSpec is the parsed sample part of a query.
type sampleSpec struct {
	name       string
	gts        []string
	includeAll bool
	mendelian  bool
	father     *ParentFilter
	mother     *ParentFilter
}

// Parse builds the sample index query of q. The returned VariantQuery holds
// the parameters the index does not answer exactly; it must still be applied
// to the variants read from the index. q is not modified.
func (p *Parser) Parse(q VariantQuery) (*SampleIndexQuery, VariantQuery, error) {
	rem := q.Clone()
	study := q.Get(ParamStudy)

	loci, err := p.parseLocus(rem)
	if err != nil {
		return nil, nil, err
	}
	specs, op, err := p.parseSamples(rem, study)
	if err != nil {
		return nil, nil, err
	}

	allAnnotated := true
	out := NewSampleIndexQuery(p.schema, study, op)
	fileCovered := map[Param]bool{}
	for i, spec := range specs {
		id, err := p.metadata.SampleID(study, spec.name)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %w", ErrInvalidQuery, err)
		}
		annotated, err := p.metadata.Annotated(study, spec.name)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %w", ErrInvalidQuery, err)
		}
		allAnnotated = allAnnotated && annotated

		fqs, fileOp, covered, err := p.parseFileQueries(rem, study, spec.name)
		if err != nil {
			return nil, nil, err
		}
		for param, ok := range covered {
			if i == 0 {
				fileCovered[param] = ok
			} else {
				fileCovered[param] = fileCovered[param] && ok
			}
		}
		out.Add(&SingleSampleIndexQuery{
			Schema:              p.schema,
			Study:               study,
			Sample:              spec.name,
			SampleID:            id,
			Genotypes:           spec.gts,
			IncludeAll:          spec.includeAll,
			FileQueries:         fqs,
			FileOp:              fileOp,
			LocusQueries:        loci,
			MendelianErrorsOnly: spec.mendelian,
			FatherFilter:        spec.father,
			MotherFilter:        spec.mother,
		})
	}
	for param, ok := range fileCovered {
		if ok {
			rem.Remove(param)
		}
	}

	aq := p.parseAnnotation(rem, q, allAnnotated)
	for _, sq := range out.Queries() {
		sq.AnnotationQuery = aq
	}

	if rem.Has(ParamSampleData) {
		// sample data filters are applied per sample downstream
		for _, param := range []Param{ParamGenotype, ParamSample} {
			if q.Has(param) {
				rem[param] = q[param]
			}
		}
	}

	p.logger.Debug("sample index query parsed",
		slog.String("study", study),
		slog.Int("samples", out.Len()),
		slog.String("op", string(op)),
		slog.Any("remaining", rem.Params()),
	)
	return out, rem, nil
}

func (p *Parser) parseLocus(q VariantQuery) ([]LocusQuery, error) {
	var regions []variant.Region
	for _, r := range splitAny(q.Get(ParamRegion)) {
		region, err := variant.ParseRegion(r)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidQuery, err)
		}
		regions = append(regions, region)
	}
	var variants []variant.Variant
	for _, id := range splitAny(q.Get(ParamID)) {
		v, err := variant.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidQuery, err)
		}
		variants = append(variants, v)
	}
	q.Remove(ParamRegion, ParamID)
	return BuildLocusQueries(regions, variants), nil
}

func splitAny(raw string) []string {
	return strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == ';' })
}

func (p *Parser) parseSamples(q VariantQuery, study string) ([]sampleSpec, Operation, error) {
	switch {
	case q.Has(ParamGenotype):
		return p.parseGenotypes(q, study)
	case q.Has(ParamSample):
		samples, op, ok := q.List(ParamSample)
		if !ok {
			return nil, "", fmt.Errorf("%w: sample filter mixes AND and OR", ErrInvalidQuery)
		}
		var specs []sampleSpec
		for _, s := range samples {
			if !schema.IsNegated(s) {
				specs = append(specs, sampleSpec{name: s, includeAll: true})
			}
		}
		if len(specs) == 0 {
			return nil, "", fmt.Errorf("%w: only negated samples", ErrInvalidQuery)
		}
		if !q.Has(ParamSampleData) {
			q.Remove(ParamSample)
		}
		return specs, op, nil
	case q.Has(ParamMendelianError):
		samples, op, ok := q.List(ParamMendelianError)
		if !ok {
			return nil, "", fmt.Errorf("%w: mendelian error filter mixes AND and OR", ErrInvalidQuery)
		}
		specs := make([]sampleSpec, len(samples))
		for i, s := range samples {
			specs[i] = sampleSpec{name: s, includeAll: true, mendelian: true}
		}
		q.Remove(ParamMendelianError)
		return specs, op, nil
	}
	return nil, "", fmt.Errorf("%w: no sample, genotype or mendelian error filter", ErrInvalidQuery)
}

func (p *Parser) parseGenotypes(q VariantQuery, study string) ([]sampleSpec, Operation, error) {
	sgs, op, err := parseGenotypeFilter(q.Get(ParamGenotype))
	if err != nil {
		return nil, "", err
	}
	gtMap := make(map[string]sampleGenotypes, len(sgs))
	for _, sg := range sgs {
		if op == OpOr && !sg.usable() {
			return nil, "", fmt.Errorf("%w: genotypes %v of %s are not in the sample index", ErrInvalidQuery, sg.gts, sg.sample)
		}
		gtMap[sg.sample] = sg
	}

	// children are samples with usable genotypes and a parent in the query
	type parents struct{ father, mother string }
	children := map[string]parents{}
	isParent := map[string]bool{}
	if op == OpAnd {
		for _, sg := range sgs {
			if !sg.usable() {
				continue
			}
			father, mother, err := p.metadata.Parents(study, sg.sample)
			if err != nil {
				return nil, "", fmt.Errorf("%w: %w", ErrInvalidQuery, err)
			}
			var pr parents
			if f, ok := gtMap[father]; ok && father != "" && !f.negated() {
				pr.father = father
			}
			if m, ok := gtMap[mother]; ok && mother != "" && !m.negated() {
				pr.mother = mother
			}
			if pr.father != "" || pr.mother != "" {
				children[sg.sample] = pr
				isParent[pr.father] = pr.father != ""
				isParent[pr.mother] = pr.mother != ""
			}
		}
	}

	codec := p.schema.Genotype()
	covered := true
	var specs []sampleSpec
	for _, sg := range sgs {
		_, child := children[sg.sample]
		if isParent[sg.sample] && !child {
			p.logger.Debug("parent filtered through child", slog.String("sample", sg.sample))
			continue
		}
		if !sg.usable() {
			covered = false
			continue
		}
		spec := sampleSpec{name: sg.sample, gts: expandGenotypes(sg.gts)}
		if pr, ok := children[sg.sample]; ok {
			if pr.father != "" {
				f := NewParentFilter(codec, gtMap[pr.father].gts...)
				covered = covered && f.IsExact(codec)
				spec.father = &f
			}
			if pr.mother != "" {
				m := NewParentFilter(codec, gtMap[pr.mother].gts...)
				covered = covered && m.IsExact(codec)
				spec.mother = &m
			}
		}
		specs = append(specs, spec)
	}
	if len(specs) == 0 {
		return nil, "", fmt.Errorf("%w: no sample with indexed genotypes", ErrInvalidQuery)
	}
	if covered {
		q.Remove(ParamGenotype)
	}
	return specs, op, nil
}

// parseFileQueries builds the file index queries of one sample and reports,
// per parameter, whether the index answers it exactly for this sample.
func (p *Parser) parseFileQueries(q VariantQuery, study, sample string) ([]*SampleFileIndexQuery, Operation, map[Param]bool, error) {
	fi := p.schema.FileIndex()
	base := &SampleFileIndexQuery{Sample: sample}
	covered := map[Param]bool{}

	if q.Has(ParamType) {
		types, op, ok := q.List(ParamType)
		names := make([]string, 0, len(types))
		for _, t := range types {
			names = append(names, normalizeVariantType(t))
		}
		known := ok && (op == OpOr || len(names) == 1) && knownValues(fi.VariantTypeField(), names)
		if known {
			base.VariantType = fi.VariantTypeField().BuildFilter(names...)
		}
		covered[ParamType] = known && field.IsExact(base.VariantType)
	}

	if q.Has(ParamFilter) {
		values, op, ok := q.List(ParamFilter)
		covered[ParamFilter] = false
		f, idx, found := fi.CustomField(field.SourceFile, "FILTER")
		if ok && found && (op == OpOr || len(values) == 1) && !slices.ContainsFunc(values, schema.IsNegated) && knownValues(f, values) {
			if flt, ok := categoricalFilter(f, values); ok {
				base.Filters = append(base.Filters, FileFieldFilter{Index: idx, Filter: flt})
				covered[ParamFilter] = flt.IsExactFilter()
			}
		}
	}

	if q.Has(ParamQual) {
		exprs, op, ok := q.List(ParamQual)
		covered[ParamQual] = false
		if ok && (op == OpAnd || len(exprs) == 1) {
			filters, exact := p.fieldFilters(field.SourceFile, exprs, "QUAL")
			base.Filters = append(base.Filters, filters...)
			covered[ParamQual] = exact
		}
	}

	if q.Has(ParamFileData) {
		exprs, op, ok := q.List(ParamFileData)
		covered[ParamFileData] = false
		if ok && (op == OpAnd || len(exprs) == 1) {
			filters, exact := p.fieldFilters(field.SourceFile, exprs, "")
			base.Filters = append(base.Filters, filters...)
			covered[ParamFileData] = exact
		}
	}

	if q.Has(ParamSampleData) {
		exprs, op, ok := q.List(ParamSampleData)
		covered[ParamSampleData] = false
		if ok && (op == OpAnd || len(exprs) == 1) {
			var own []string
			for _, e := range exprs {
				if s, expr, found := strings.Cut(e, ":"); found {
					if s == sample {
						own = append(own, expr)
					}
					continue
				}
				own = append(own, e)
			}
			filters, exact := p.fieldFilters(field.SourceSample, own, "")
			base.Filters = append(base.Filters, filters...)
			covered[ParamSampleData] = exact
		}
	}

	fileOp := OpAnd
	if !q.Has(ParamFile) {
		if base.IsEmpty() {
			return nil, fileOp, covered, nil
		}
		return []*SampleFileIndexQuery{base}, fileOp, covered, nil
	}

	files, op, ok := q.List(ParamFile)
	if !ok {
		covered[ParamFile] = false
		return []*SampleFileIndexQuery{base}, fileOp, covered, nil
	}
	positions := make([]int, 0, len(files))
	for _, file := range files {
		pos, err := p.metadata.FilePosition(study, sample, file)
		switch {
		case errors.Is(err, ErrUnknownFile):
			pos = -1
		case err != nil:
			return nil, "", nil, fmt.Errorf("%w: %w", ErrInvalidQuery, err)
		case pos > fi.MaxFilePosition():
			covered[ParamFile] = false
			return []*SampleFileIndexQuery{base}, fileOp, covered, nil
		}
		positions = append(positions, pos)
	}
	covered[ParamFile] = true
	withPositions := func(ps ...int) *SampleFileIndexQuery {
		fq := *base
		fq.FilePositions = bitset.New(uint(fi.MaxFilePosition() + 1))
		for _, pos := range ps {
			if pos >= 0 {
				fq.FilePositions.Set(uint(pos))
			}
		}
		return &fq
	}
	if op == OpOr {
		return []*SampleFileIndexQuery{withPositions(positions...)}, fileOp, covered, nil
	}
	fqs := make([]*SampleFileIndexQuery, len(positions))
	for i, pos := range positions {
		fqs[i] = withPositions(pos)
	}
	return fqs, fileOp, covered, nil
}

// fieldFilters builds filters of custom fields from "KEY<op>value"
// expressions. When key is set, expressions carry no key and target it.
// exact is false when any expression could not be expressed exactly.
func (p *Parser) fieldFilters(source field.Source, exprs []string, key string) ([]FileFieldFilter, bool) {
	fi := p.schema.FileIndex()
	var out []FileFieldFilter
	exact := len(exprs) > 0
	for _, e := range exprs {
		k, op, value, ok := splitOperator(e)
		if key != "" {
			k = key
		}
		if !ok {
			exact = false
			continue
		}
		f, idx, found := fi.CustomField(source, k)
		if !found {
			exact = false
			continue
		}
		flt, ok := buildFieldFilter(f, op, value)
		if !ok {
			exact = false
			continue
		}
		exact = exact && flt.IsExactFilter()
		out = append(out, FileFieldFilter{Index: idx, Filter: flt})
	}
	return out, exact
}

func buildFieldFilter(f field.Field, op, value string) (field.Filter, bool) {
	switch ff := f.(type) {
	case *field.RangeField:
		x, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, false
		}
		rf, err := ff.BuildFilter(op, x)
		if err != nil {
			return nil, false
		}
		return rf, true
	default:
		if op != "=" && op != "==" {
			return nil, false
		}
		values := strings.Split(value, "|")
		if !knownValues(f, values) {
			return nil, false
		}
		return categoricalFilter(f, values)
	}
}

func categoricalFilter(f field.Field, values []string) (field.Filter, bool) {
	switch ff := f.(type) {
	case *field.CategoricalField:
		return ff.BuildFilter(values...), true
	case *field.CategoricalMultiValuedField:
		return ff.BuildFilter(values...), true
	}
	return nil, false
}

// knownValues reports whether every value has its own code in f.
func knownValues(f field.Field, values []string) bool {
	var known []string
	switch ff := f.(type) {
	case *field.CategoricalField:
		known = ff.Values()
	case *field.CategoricalMultiValuedField:
		known = ff.Values()
	default:
		return false
	}
	for _, v := range values {
		if !slices.Contains(known, v) {
			return false
		}
	}
	return len(values) > 0
}

func normalizeVariantType(t string) string {
	switch t = strings.ToUpper(strings.TrimSpace(t)); t {
	case "SNP":
		return string(variant.SNV)
	case "MNP":
		return string(variant.MNV)
	}
	return t
}

// parseAnnotation builds the annotation query shared by all samples and
// removes the parameters it covers from q. orig is the unmodified query.
func (p *Parser) parseAnnotation(q, orig VariantQuery, allAnnotated bool) *SampleAnnotationIndexQuery {
	s := p.schema
	aq := &SampleAnnotationIndexQuery{PopulationFrequencyOp: OpAnd}

	var intergenic, intergenicKnown bool
	setIntergenic := func(v bool) { intergenic, intergenicKnown = v, true }
	gene := q.Has(ParamGene)
	if !orig.Has(ParamRegion) && gene {
		setIntergenic(false)
	}

	numParams := 0
	for _, param := range []Param{ParamConsequenceType, ParamBiotype, ParamTranscriptFlag} {
		if q.Has(param) {
			numParams++
		}
	}

	var summary byte
	var cts, bts []string
	var ctBySummary, btBySummary, tfBySummary bool
	if q.Has(ParamConsequenceType) {
		cts = p.consequenceTypes(q)
		if !slices.Contains(cts, annotation.IntergenicVariant) {
			setIntergenic(false)
		} else if len(cts) == 1 {
			setIntergenic(true)
		}
		if subset(cts, annotation.LoF) {
			summary |= schema.LofMask
			ctBySummary = len(cts) == len(annotation.LoF)
		}
		if subset(cts, annotation.LoFExtended) {
			summary |= schema.LofExtendedMask
			ctBySummary = ctBySummary || len(cts) == len(annotation.LoFExtended)
		}
		aq.ConsequenceType = s.ConsequenceType().BuildFilter(cts...)
	}
	if q.Has(ParamBiotype) {
		setIntergenic(false)
		bts, _, _ = q.List(ParamBiotype)
		if len(bts) == 1 && bts[0] == annotation.ProteinCoding {
			summary |= schema.ProteinCodingMask
			btBySummary = true
		}
		aq.Biotype = s.Biotype().BuildFilter(bts...)
	}
	if q.Has(ParamTranscriptFlag) {
		setIntergenic(false)
		tfs, _, _ := q.List(ParamTranscriptFlag)
		if len(tfs) == 1 && tfs[0] == annotation.BasicFlag {
			summary |= schema.TranscriptFlagBasicMask
			tfBySummary = true
		}
		aq.TranscriptFlag = s.TranscriptFlag().BuildFilter(tfs...)
	}
	if len(cts) > 0 && subset(cts, annotation.LoFExtended) && btBySummary {
		summary |= schema.LofeProteinCodingMask
	}
	if ps := q.Get(ParamProteinSubstitution); ps != "" && !strings.Contains(ps, "<<") && !strings.Contains(ps, ">>") {
		summary |= schema.LofExtendedMask
	}

	if q.Has(ParamPopulationFreq) {
		summary |= p.parsePopulationFrequency(q, aq, allAnnotated)
	}
	if q.Has(ParamClinicalSource) || q.Has(ParamClinicalSignificance) {
		summary |= p.parseClinical(q, aq, allAnnotated)
	}

	aq.Mask, aq.Value = summary, summary
	if intergenicKnown && !intergenic {
		// the intergenic bit only excludes, some regulatory variants are
		// not flagged intergenic
		aq.Mask |= schema.IntergenicMask
	}
	if !intergenicKnown || intergenic {
		aq.ConsequenceType, aq.Biotype, aq.TranscriptFlag = nil, nil, nil
		return aq
	}

	genic := []field.Filter{aq.ConsequenceType, aq.Biotype, aq.TranscriptFlag}
	used := 0
	for _, f := range genic {
		if !field.IsNoOp(f) {
			used++
		}
	}
	if used > 1 {
		aq.CtBtTf = s.CtBtTf().BuildFilter(aq.ConsequenceType, aq.Biotype, aq.TranscriptFlag)
	}

	if !allAnnotated || gene {
		return aq
	}
	if numParams == 1 {
		switch {
		case q.Has(ParamConsequenceType) && (ctBySummary || exactUsed(aq.ConsequenceType)):
			q.Remove(ParamConsequenceType)
		case q.Has(ParamBiotype) && (btBySummary || exactUsed(aq.Biotype)):
			q.Remove(ParamBiotype)
		case q.Has(ParamTranscriptFlag) && (tfBySummary || exactUsed(aq.TranscriptFlag)):
			q.Remove(ParamTranscriptFlag)
		}
		return aq
	}
	if aq.CtBtTf != nil && used == numParams && aq.CtBtTf.IsExactFilter() {
		q.Remove(ParamConsequenceType, ParamBiotype, ParamTranscriptFlag)
	}
	return aq
}

func exactUsed(f field.Filter) bool {
	return !field.IsNoOp(f) && f.IsExactFilter()
}

// consequenceTypes expands the "lof" alias.
func (p *Parser) consequenceTypes(q VariantQuery) []string {
	values, _, _ := q.List(ParamConsequenceType)
	var out []string
	for _, v := range values {
		if strings.EqualFold(v, "lof") {
			out = append(out, annotation.LoF...)
			continue
		}
		out = append(out, v)
	}
	slices.Sort(out)
	return slices.Compact(out)
}

func subset(values, of []string) bool {
	for _, v := range values {
		if !slices.Contains(of, v) {
			return false
		}
	}
	return len(values) > 0
}

// parsePopulationFrequency adds population frequency filters to aq and
// returns the summary bits implied by the filter.
func (p *Parser) parsePopulationFrequency(q VariantQuery, aq *SampleAnnotationIndexQuery, allAnnotated bool) byte {
	values, op, ok := q.List(ParamPopulationFreq)
	if !ok {
		return 0
	}
	if len(values) == 1 {
		op = OpAnd
	}
	pf := p.schema.PopulationFrequency()
	rare := map[string]bool{}
	allExact := true
	var filters []PopulationFrequencyQuery
	for _, v := range values {
		key, o, raw, ok := splitOperator(v)
		x, err := strconv.ParseFloat(raw, 64)
		if !ok || err != nil || key == "" {
			allExact = false
			continue
		}
		switch o {
		case "<<":
			o = "<"
		case ">>":
			o = ">"
		}
		if o == "<" && x <= schema.PopFreqAny001Threshold {
			rare[key] = true
		}
		f, idx, found := pf.Field(key)
		if !found {
			allExact = false
			continue
		}
		rf, err := f.BuildFilter(o, x)
		if err != nil {
			allExact = false
			continue
		}
		allExact = allExact && rf.IsExactFilter()
		filters = append(filters, PopulationFrequencyQuery{Index: idx, Key: key, Filter: rf})
	}

	var summary byte
	if op == OpOr {
		if len(rare) == len(values) && subsetKeys(annotation.PopFreqAny001Populations, rare) {
			summary = schema.PopFreqAny001Mask
		}
	} else {
		for _, pop := range annotation.PopFreqAny001Populations {
			if rare[pop] {
				summary = schema.PopFreqAny001Mask
			}
		}
	}

	// an unknown population in OR mode may match anything
	if op == OpOr && len(filters) < len(values) {
		return summary
	}
	aq.PopulationFrequency = filters
	aq.PopulationFrequencyOp = op
	if allAnnotated && allExact && len(filters) == len(values) {
		q.Remove(ParamPopulationFreq)
	}
	return summary
}

func subsetKeys(keys []string, set map[string]bool) bool {
	for _, k := range keys {
		if !set[k] {
			return false
		}
	}
	return true
}

// parseClinical adds clinical filters to aq and returns the clinical summary
// bit.
func (p *Parser) parseClinical(q VariantQuery, aq *SampleAnnotationIndexQuery, allAnnotated bool) byte {
	cl := p.schema.Clinical()
	both := q.Has(ParamClinicalSource) && q.Has(ParamClinicalSignificance)
	build := func(param Param, f *field.CategoricalMultiValuedField) (field.Filter, bool) {
		values, op, ok := q.List(param)
		if !ok || (op == OpAnd && len(values) > 1) || !knownValues(f, values) {
			return nil, false
		}
		flt := f.BuildFilter(values...)
		return flt, flt.IsExactFilter()
	}
	if q.Has(ParamClinicalSource) {
		flt, exact := build(ParamClinicalSource, cl.Source())
		aq.ClinicalSource = flt
		if allAnnotated && exact && !both {
			q.Remove(ParamClinicalSource)
		}
	}
	if q.Has(ParamClinicalSignificance) {
		flt, exact := build(ParamClinicalSignificance, cl.Significance())
		aq.ClinicalSignificance = flt
		if allAnnotated && exact && !both {
			q.Remove(ParamClinicalSignificance)
		}
	}
	return schema.ClinicalMask
}
