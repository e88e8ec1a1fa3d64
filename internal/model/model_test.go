package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestNormalizeName(t *testing.T) {
	cases := map[string]string{
		"  Aspirin ":              "aspirin",
		"Vitamin\t\tD":            "vitamin d",
		"ISOSORBIDE  Mononitrate": "isosorbide mononitrate",
		"   ":                     "",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeName(in), "input %q", in)
	}
	// full-width letters fold under NFKC
	assert.Equal(t, "tylenol", NormalizeName("\uff34\uff59\uff4c\uff45\uff4e\uff4f\uff4c"))
}

func TestParseSeverity(t *testing.T) {
	s, err := ParseSeverity(" HIGH ")
	require.NoError(t, err)
	assert.Equal(t, SeverityHigh, s)

	_, err = ParseSeverity("critical")
	assert.Error(t, err)
	assert.False(t, Severity("LOW").Valid())
}

func TestSeverityOrder(t *testing.T) {
	assert.Less(t, SeveritySafe.Rank(), SeverityModerate.Rank())
	assert.Less(t, SeverityModerate.Rank(), SeverityHigh.Rank())
	assert.Equal(t, SeverityHigh, MaxSeverity(SeverityHigh, SeverityModerate))
	assert.Equal(t, SeverityModerate, MaxSeverity(SeveritySafe, SeverityModerate))
}

func TestSeverityDecodeRejectsUnknown(t *testing.T) {
	var f FactRecord
	err := json.Unmarshal([]byte(`{"drugs":["a","b"],"severity":"severe"}`), &f)
	assert.Error(t, err)

	err = yaml.Unmarshal([]byte("drugs: [a, b]\nseverity: Moderate\n"), &f)
	require.NoError(t, err)
	assert.Equal(t, SeverityModerate, f.Severity)
}

func TestDrugSetIsOrderIndependent(t *testing.T) {
	a := NewDrugSet("Ibuprofen", "aspirin", "ASPIRIN")
	b := NewDrugSet("aspirin", "ibuprofen")

	assert.Equal(t, DrugSet{"aspirin", "ibuprofen"}, a)
	assert.Equal(t, a.Key(), b.Key())
	assert.True(t, a.Contains("ibuprofen"))
	assert.False(t, a.Contains("warfarin"))
	assert.True(t, a.SubsetOf(NewDrugSet("warfarin", "aspirin", "ibuprofen")))
	assert.False(t, NewDrugSet("warfarin", "aspirin").SubsetOf(a))
}

func TestExpandFactsWithClasses(t *testing.T) {
	ds := Dataset{
		Classes: []DrugClass{{Name: "NSAID", Members: []string{"ibuprofen", "naproxen"}}},
		Facts: []FactRecord{
			{Drugs: []string{"warfarin", "class:nsaid"}, Severity: SeverityHigh, Description: "bleeding"},
			{Drugs: []string{"class:nsaid", "class:nsaid"}, Severity: SeverityModerate, Description: "duplicate therapy"},
			{Drugs: []string{"Vitamin D", "calcium"}, Severity: SeveritySafe, Description: "beneficial"},
		},
	}

	facts, err := ds.ExpandFacts()
	require.NoError(t, err)

	var keys []string
	for _, f := range facts {
		keys = append(keys, DrugSet(f.Drugs).String())
	}
	assert.Equal(t, []string{
		"ibuprofen + warfarin",
		"naproxen + warfarin",
		"ibuprofen + naproxen",
		"ibuprofen + naproxen",
		"calcium + vitamin d",
	}, keys)
}

func TestExpandFactsUnknownClass(t *testing.T) {
	ds := Dataset{Facts: []FactRecord{{Drugs: []string{"warfarin", "class:statin"}, Severity: SeverityHigh}}}
	_, err := ds.ExpandFacts()
	assert.ErrorContains(t, err, "statin")
}

func TestMatchResultCloneIsDeep(t *testing.T) {
	r := &MatchResult{
		Resolved:     []ResolvedDrug{{Input: "Aspirin", ID: "aspirin"}},
		Unresolved:   []string{},
		Interactions: []Interaction{{Drugs: []string{"Aspirin", "Ibuprofen"}, DrugIDs: DrugSet{"aspirin", "ibuprofen"}}},
	}
	c := r.Clone()
	c.Interactions[0].Drugs[0] = "changed"
	c.Resolved[0].Input = "changed"

	assert.Equal(t, "Aspirin", r.Interactions[0].Drugs[0])
	assert.Equal(t, "Aspirin", r.Resolved[0].Input)
	assert.NotNil(t, c.Unresolved)
}
