package resolver

import (
	"github.com/ougirez/areametrics/internal/domain"
)

// builtinAliases maps short codes to canonical names per level. Keys are upper case.
var builtinAliases = map[domain.Level]map[string]string{
	domain.LevelCountry: {
		"ZA":           "South Africa",
		"RSA":          "South Africa",
		"SOUTH-AFRICA": "South Africa",
	},
	domain.LevelProvince: {
		"ZA-GP":  "Gauteng",
		"ZA-WC":  "Western Cape",
		"ZA-KZN": "KwaZulu-Natal",
		"ZA-EC":  "Eastern Cape",
		"ZA-MP":  "Mpumalanga",
		"ZA-LP":  "Limpopo",
		"ZA-NW":  "North West",
		"ZA-NC":  "Northern Cape",
		"ZA-FS":  "Free State",
		"GP":     "Gauteng",
		"WC":     "Western Cape",
		"KZN":    "KwaZulu-Natal",
	},
	domain.LevelCity: {
		"JHB": "Johannesburg",
		"CPT": "Cape Town",
		"PTA": "Pretoria",
		"DBN": "Durban",
		"PLZ": "Gqeberha",
	},
	domain.LevelArea: {},
}
