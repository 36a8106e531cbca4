package usecase

// directSubstitutes suggests a gentler ingredient for a risky one.
// Keys are normalized ingredient names.
var directSubstitutes = map[string]string{
	"parabens":               "extracto de romero",
	"methylparaben":          "extracto de romero",
	"ethylparaben":           "extracto de romero",
	"propylparaben":          "extracto de romero",
	"butylparaben":           "extracto de romero",
	"sodium lauryl sulfate":  "coco-glucoside",
	"sodium laureth sulfate": "decyl glucoside",
	"parfum":                 "aceites esenciales naturales",
	"phthalates":             "fragancia libre de ftalatos",
	"diethyl phthalate":      "fragancia libre de ftalatos",
	"triclosan":              "aceite de árbol de té",
	"formaldehyde":           "extracto de semilla de pomelo",
	"dmdm hydantoin":         "extracto de semilla de pomelo",
	"mineral oil":            "aceite de jojoba",
	"paraffinum liquidum":    "aceite de jojoba",
	"petrolatum":             "manteca de karité",
	"oxybenzone":             "óxido de zinc",
	"benzophenone-3":         "óxido de zinc",
	"dimethicone":            "aceite de argán",
	"alcohol denat":          "agua de hamamelis",
	"talc":                   "almidón de arroz",
	"bht":                    "tocopherol",
	"hydroquinone":           "niacinamide",
}

// substituteFor returns the direct substitute for a normalized ingredient,
// or a generic natural-alternative suggestion
func substituteFor(ingredient string) string {
	if s, ok := directSubstitutes[ingredient]; ok {
		return s
	}
	return "Alternativa natural sin " + ingredient
}
