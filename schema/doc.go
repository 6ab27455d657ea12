// Package schema holds the versioned catalog of index fields that every
// encode and decode operation of the sample index is parameterized by.
//
// A Configuration describes which fields exist; New turns it into an
// immutable SampleIndexSchema. Configurations can be loaded from YAML or JSON
// files with LoadConfiguration, which also honours SAMPLEIDX_ environment
// overrides.
package schema
