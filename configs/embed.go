// Package configs embeds the configuration template and the mapping tables
// shipped with the binary.
//
// Mapping tables:
//   - mapping_age.txt: age groups with inclusive year ranges (term;id;min age;max age)
//   - mapping_gender.txt: gender MeSH descriptors (term;id)
//   - mapping_<collection>.txt: user field name to backend field name
package configs

import _ "embed"

// ConfigTemplate is written by `variomes config init`.
//
//go:embed config.example.yaml
var ConfigTemplate string

// MappingAge maps ages in years to age-group descriptors.
//
//go:embed mapping_age.txt
var MappingAge string

// MappingGender lists the gender descriptors.
//
//go:embed mapping_gender.txt
var MappingGender string

//go:embed mapping_medline.txt
var mappingMedline string

//go:embed mapping_pmc.txt
var mappingPMC string

//go:embed mapping_ct.txt
var mappingCT string

// FieldMapping returns the field mapping table of a collection, or "" for
// an unknown collection.
func FieldMapping(collection string) string {
	switch collection {
	case "medline":
		return mappingMedline
	case "pmc":
		return mappingPMC
	case "ct":
		return mappingCT
	}
	return ""
}
