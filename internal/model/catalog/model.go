package catalog

// Model is one entry of the model-selection control. ID is the name the
// completion provider expects.
type Model struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Description string `json:"description,omitempty"`
}

// Seed provides the models offered when no allow-list is configured.
func Seed() []Model {
	return []Model{
		{
			ID:          "llama-3.3-70b-versatile",
			Label:       "LLaMA 3.3 70B Versatile",
			Description: "Meta's general purpose 70B instruction model.",
		},
		{
			ID:          "gemma2-9b-it",
			Label:       "Gemma 2 9B IT",
			Description: "Google's compact instruction-tuned model.",
		},
		{
			ID:          "compound-beta",
			Label:       "Compound Beta",
			Description: "Groq's compound system with built-in tools.",
		},
	}
}

// FromIDs builds catalog entries for a configured allow-list. Known ids keep
// their seeded labels.
func FromIDs(ids []string) []Model {
	known := make(map[string]Model)
	for _, m := range Seed() {
		known[m.ID] = m
	}

	models := make([]Model, 0, len(ids))
	for _, id := range ids {
		if m, ok := known[id]; ok {
			models = append(models, m)
			continue
		}
		models = append(models, Model{ID: id, Label: id})
	}
	return models
}
