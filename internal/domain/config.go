package domain

// SkinLabels is the native output taxonomy of the skin-lesion classifier, in
// model output order. The trailing space in "chicken pox " is part of the label.
var SkinLabels = []string{
	"Cellulitis (Bacterial)",
	"Athlete's Foot (Fungal)",
	"Ringworm (Fungal)",
	"Nail Fungus (Fungal)",
	"Shingles (Viral)",
	"Impetigo (Bacterial)",
	"chicken pox ",
	"Cutaneous Larva Migrans (Parasitic)",
}

// EngineConfig holds the curated vocabulary shared by the text and image pipelines.
type EngineConfig struct {
	AllowList   []string
	ImageLabels map[string]string // classifier label -> knowledge-base disease name
}

// DefaultEngineConfig returns the production vocabulary.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		AllowList: []string{
			"Malaria",
			"Typhoid",
			"Hepatitis A",
			"Hepatitis E",
			"Tuberculosis",
			"Pneumonia",
			"AIDS",
			"chicken pox",
			"Ringworm",
		},
		ImageLabels: map[string]string{
			"Ringworm (Fungal)": "Ringworm",
			"chicken pox":       "chicken pox",
		},
	}
}
