package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEquipmentKeyNormalize(t *testing.T) {
	key := EquipmentKey{Manufacturer: "  ABB ", ModelNumber: "Acs580"}.Normalize()

	assert.Equal(t, "abb", key.Manufacturer)
	assert.Equal(t, "acs580", key.ModelNumber)
}

func TestEquipmentKeyString(t *testing.T) {
	assert.Equal(t, "abb|acs580", EquipmentKey{Manufacturer: "ABB", ModelNumber: "ACS580"}.String())

	// Variant spellings address the same cache row.
	a := EquipmentKey{Manufacturer: "Siemens", ModelNumber: " G120 "}.String()
	b := EquipmentKey{Manufacturer: "siemens", ModelNumber: "g120"}.String()
	assert.Equal(t, a, b)
}

func TestEquipmentKeyIsNormalized(t *testing.T) {
	equipment := Equipment{Manufacturer: "ABB", ModelNumber: " ACS580", ProductFamily: "drives"}
	key := equipment.Key()

	assert.Equal(t, "abb", key.Manufacturer)
	assert.Equal(t, "acs580", key.ModelNumber)
}
