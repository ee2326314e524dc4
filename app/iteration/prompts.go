package iteration

import (
	"fmt"
	"strings"

	"GoEvolveAI/app/models"
	"GoEvolveAI/app/storage"
)

func seedPrompt(inputs []storage.Input, budget int) []models.Message {
	var b strings.Builder
	b.WriteString("Player ideas:\n")
	for i, in := range inputs {
		fmt.Fprintf(&b, "%d. %s\n", i+1, Truncate(in.InputText, budget))
	}
	return models.Prompt(models.SpecSystemPrompt, b.String())
}

func programPrompt(requirements string) []models.Message {
	return models.Prompt(models.ProgramSystemPrompt, "Requirements:\n"+requirements)
}

func featuresPrompt(inputs []storage.Input, budget, max int) []models.Message {
	var b strings.Builder
	b.WriteString("Modification requests:\n")
	for _, in := range inputs {
		fmt.Fprintf(&b, "- %s\n", Truncate(in.InputText, budget))
	}
	return models.Prompt(fmt.Sprintf(models.FeaturesSystemPrompt, max), b.String())
}

func updatePrompt(code, features string) []models.Message {
	user := fmt.Sprintf("Current code:\n```html\n%s\n```\n\nFeatures to apply:\n%s", code, features)
	return models.Prompt(models.UpdateSystemPrompt, user)
}
