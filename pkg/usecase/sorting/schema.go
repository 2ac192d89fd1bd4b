package sorting

import (
	"github.com/google/jsonschema-go/jsonschema"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"
)

// sortingSchema returns the JSON schema of the classifier output for houses
func sortingSchema(houses []houseDef) *jsonschema.Schema {
	names := make([]any, 0, len(houses))
	required := make([]string, 0, len(houses))
	percentages := make(map[string]*jsonschema.Schema, len(houses))
	counters := make(map[string]*jsonschema.Schema, len(houses))

	for _, h := range houses {
		names = append(names, h.Name)
		required = append(required, h.Name)
		percentages[h.Name] = &jsonschema.Schema{
			Type:        "number",
			Description: "Percentage affinity for " + h.Name + " (" + h.Virtues + ").",
		}
		counters[h.Name] = &jsonschema.Schema{
			Type:        "string",
			Description: "Why not primarily " + h.Name + "? Focus on contrasting traits.",
			MaxLength:   jsonschema.Ptr(150),
		}
	}

	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"primaryHouse": {
				Type:        "string",
				Description: "The Hogwarts house that best represents the user based on their traits.",
				Enum:        names,
			},
			"housePercentages": {
				Type:        "object",
				Description: "An estimated percentage affinity for each Hogwarts house (0-100). These represent affinity and do not need to sum to 100.",
				Properties:  percentages,
				Required:    required,
			},
			"summary": {
				Type:        "string",
				Description: "A brief summary explaining the primary house choice and key traits observed, written directly to the user.",
				MaxLength:   jsonschema.Ptr(300),
			},
			"evidence": {
				Type:        "array",
				Description: "Exactly 3 pieces of evidence supporting the house analysis. Each piece links a trait to specific examples.",
				MinItems:    jsonschema.Ptr(3),
				MaxItems:    jsonschema.Ptr(3),
				Items: &jsonschema.Schema{
					Type: "object",
					Properties: map[string]*jsonschema.Schema{
						"trait": {
							Type:        "string",
							Description: "The primary trait observed (e.g., 'Bravery', 'Ambition', 'Loyalty', 'Wit').",
							MaxLength:   jsonschema.Ptr(50),
						},
						"quotes": {
							Type:        "array",
							Description: "1-2 short, direct quotes (max 10 words each) from the user's casts demonstrating this trait.",
							MinItems:    jsonschema.Ptr(1),
							MaxItems:    jsonschema.Ptr(2),
							Items: &jsonschema.Schema{
								Type:        "string",
								Description: "A short, direct quote (max 10 words).",
								MaxLength:   jsonschema.Ptr(60),
							},
						},
						"explanation": {
							Type:        "string",
							Description: "One sentence explaining how these quotes demonstrate the trait, written directly to the user.",
							MaxLength:   jsonschema.Ptr(150),
						},
					},
					Required: []string{"trait", "quotes", "explanation"},
				},
			},
			"counterArguments": {
				Type:        "object",
				Description: "Brief explanations (1-2 sentences each) for why the user doesn't primarily belong to the other three houses, written directly to the user. Keys are house names.",
				Properties:  counters,
			},
		},
		Required: []string{"primaryHouse", "housePercentages", "summary", "evidence", "counterArguments"},
	}
}

// toGenaiSchema converts JSON Schema to Gemini genai.Schema
func toGenaiSchema(schema *jsonschema.Schema) (*genai.Schema, error) {
	if schema == nil {
		return nil, nil
	}

	out := &genai.Schema{
		Description: schema.Description,
		Required:    schema.Required,
	}

	switch schema.Type {
	case "object":
		out.Type = genai.TypeObject
	case "string":
		out.Type = genai.TypeString
	case "number":
		out.Type = genai.TypeNumber
	case "integer":
		out.Type = genai.TypeInteger
	case "boolean":
		out.Type = genai.TypeBoolean
	case "array":
		out.Type = genai.TypeArray
	default:
		return nil, goerr.New("unsupported schema type", goerr.V("type", schema.Type))
	}

	for _, v := range schema.Enum {
		if s, ok := v.(string); ok {
			out.Enum = append(out.Enum, s)
		}
	}

	if schema.MaxLength != nil {
		out.MaxLength = genai.Ptr(int64(*schema.MaxLength))
	}
	if schema.MinItems != nil {
		out.MinItems = genai.Ptr(int64(*schema.MinItems))
	}
	if schema.MaxItems != nil {
		out.MaxItems = genai.Ptr(int64(*schema.MaxItems))
	}

	if len(schema.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(schema.Properties))
		for name, prop := range schema.Properties {
			converted, err := toGenaiSchema(prop)
			if err != nil {
				return nil, goerr.Wrap(err, "failed to convert property schema", goerr.V("property", name))
			}
			out.Properties[name] = converted
		}
	}

	if schema.Items != nil {
		converted, err := toGenaiSchema(schema.Items)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to convert items schema")
		}
		out.Items = converted
	}

	return out, nil
}
