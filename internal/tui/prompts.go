package tui

type category struct {
	ID    string
	Label string
}

var categories = []category{
	{ID: "cs", Label: "CS"},
	{ID: "econ", Label: "Econ"},
	{ID: "math", Label: "Math"},
	{ID: "physics", Label: "Physics"},
	{ID: "bio", Label: "Biology"},
	{ID: "finance", Label: "Finance"},
	{ID: "stat", Label: "Statistics"},
}

// Starter prompts shown on an empty conversation. They line up with what the
// backend agents do: ingest, connect, answer.
var promptsByCategory = map[string][]string{
	"cs": {
		"Add the Attention Is All You Need paper",
		"Find connections between my papers",
		"What are the key innovations in transformers?",
	},
	"econ": {
		"Add papers on behavioral economics",
		"Find connections between my papers",
		"Explain game theory fundamentals",
	},
	"math": {
		"Add papers on topology",
		"Find connections between my papers",
		"What is the Riemann hypothesis?",
	},
	"physics": {
		"Add papers on quantum computing",
		"Find connections between my papers",
		"What is quantum entanglement?",
	},
	"bio": {
		"Add papers on protein folding",
		"Find connections between my papers",
		"How does AlphaFold predict structure?",
	},
	"finance": {
		"Add papers on portfolio optimization",
		"Find connections between my papers",
		"Explain modern risk modeling",
	},
	"stat": {
		"Add the Bayesian optimization paper",
		"Find connections between my papers",
		"Explain regularization techniques",
	},
}

func promptsFor(categoryID string) []string {
	return promptsByCategory[categoryID]
}
