package cdxprops

import (
	"slices"

	cdx "github.com/CycloneDX/cyclonedx-go"
)

// Property names used on opener components.
const (
	OpenerFileCommand    = "opener:file:command"
	OpenerFileError      = "opener:file:error"
	OpenerHandlerCommand = "opener:handler:command"
)

// SetComponentProp sets the property name to value, replacing an existing
// value. An empty value leaves c untouched.
func SetComponentProp(c *cdx.Component, name, value string) {
	if value == "" {
		return
	}
	var props []cdx.Property
	if c.Properties != nil {
		props = *c.Properties
	}
	idx := slices.IndexFunc(props, func(p cdx.Property) bool { return p.Name == name })
	if idx >= 0 {
		props[idx].Value = value
	} else {
		props = append(props, cdx.Property{Name: name, Value: value})
	}
	c.Properties = &props
}

// AddEvidenceLocation records loc as an occurrence of c. Empty and already
// recorded locations are ignored.
func AddEvidenceLocation(c *cdx.Component, loc string) {
	if loc == "" {
		return
	}
	if c.Evidence == nil {
		c.Evidence = &cdx.Evidence{}
	}
	var occs []cdx.EvidenceOccurrence
	if c.Evidence.Occurrences != nil {
		occs = *c.Evidence.Occurrences
	}
	if slices.ContainsFunc(occs, func(o cdx.EvidenceOccurrence) bool { return o.Location == loc }) {
		return
	}
	occs = append(occs, cdx.EvidenceOccurrence{Location: loc})
	c.Evidence.Occurrences = &occs
}
