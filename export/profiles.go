package export

import (
	"fmt"
	"sort"
)

// Profile determines which OWL assertions are added on export.
type Profile string

const (
	// ProfileMinimal exports the mapped statements as they are.
	ProfileMinimal Profile = "minimal"

	// ProfileOWL adds owl:NamedIndividual typing for every identified
	// individual and declares each used property as an OWL object or
	// datatype property.
	ProfileOWL Profile = "owl"
)

// ProfileConfig contains configuration for an export profile.
type ProfileConfig struct {
	// Name is the profile identifier.
	Name Profile

	// Description describes the profile.
	Description string

	// NamedIndividuals adds "a owl:NamedIndividual" to every typed resource
	// subject. Blank nodes are left alone.
	NamedIndividuals bool

	// PropertyDeclarations adds "a owl:ObjectProperty" or
	// "a owl:DatatypeProperty" for every predicate used.
	PropertyDeclarations bool
}

// Profiles contains the configuration for all available export profiles.
var Profiles = map[Profile]ProfileConfig{
	ProfileMinimal: {
		Name:        ProfileMinimal,
		Description: "Mapped statements only",
	},
	ProfileOWL: {
		Name:                 ProfileOWL,
		Description:          "Mapped statements plus OWL individual and property declarations",
		NamedIndividuals:     true,
		PropertyDeclarations: true,
	},
}

// GetProfileConfig returns the configuration for a profile. Unknown profiles
// fall back to minimal.
func GetProfileConfig(profile Profile) ProfileConfig {
	if config, ok := Profiles[profile]; ok {
		return config
	}
	return Profiles[ProfileMinimal]
}

// ParseProfile validates a profile name. The empty name is minimal.
func ParseProfile(name string) (Profile, error) {
	if name == "" {
		return ProfileMinimal, nil
	}
	p := Profile(name)
	if _, ok := Profiles[p]; !ok {
		return "", fmt.Errorf("unknown export profile %q (want one of %v)", name, ProfileNames())
	}
	return p, nil
}

// ProfileNames returns the registered profile names in sorted order.
func ProfileNames() []string {
	names := make([]string, 0, len(Profiles))
	for p := range Profiles {
		names = append(names, string(p))
	}
	sort.Strings(names)
	return names
}
