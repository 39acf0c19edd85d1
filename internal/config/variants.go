package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Variant is one deployment flavour of the analysis API. Variants differ only
// in data: the model id, the fixed instruction prompt and the CORS allow-list.
type Variant struct {
	Name           string   `yaml:"name"`
	Model          string   `yaml:"model"`
	Prompt         string   `yaml:"prompt"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

const (
	VariantDetailed = "detailed"
	VariantBasic    = "basic"
)

const detailedPrompt = `Analyze this image and respond naturally, as if you’re explaining to someone in simple terms. Tailor your response based on the type of image:

1. **General Scene**: Describe what is happening, who or what is in the scene, and any key details that stand out.
2. **Math Problem**: Solve it, briefly outline your approach, and explain the answer step-by-step.
3. **Text (Short or Long)**: Summarize the meaning and tone. For longer text, focus on main points and skip less important details.
4. **Chart or Graph**: Describe the type of chart, main trends, and any noticeable peaks or dips.
5. **Diagram**: Explain the components and their relationships in a simple way, clarifying any processes involved.
6. **Drawing, Artwork, or Abstract Image**: Describe the scene, style, or mood, and what it might represent or evoke.
7. **Map**: Identify the location and highlight any specific points, regions, or markers that stand out.
8. **Scientific Data or Formula**: Break down the key elements, explain the variables and operations, and summarize the results or insights in plain language.
9. **Handwritten Notes or Scanned Documents**: Describe the content, any legibility issues, and key takeaways.

Keep your response conversational, clear, and straightforward. Avoid complex language and focus on simplicity, as if explaining to a friend.`

const basicPrompt = "Analyze this image. If it contains mathematical expressions, solve them. If it contains text, interpret it."

// BuiltinVariants returns the variants that ship with the binary.
func BuiltinVariants() map[string]Variant {
	return map[string]Variant{
		VariantDetailed: {
			Name:           VariantDetailed,
			Model:          "gemini-1.5-flash",
			Prompt:         detailedPrompt,
			AllowedOrigins: []string{"http://localhost:3000", "https://smart-note-adi.vercel.app"},
		},
		VariantBasic: {
			Name:           VariantBasic,
			Model:          "gemini-pro-vision",
			Prompt:         basicPrompt,
			AllowedOrigins: []string{"http://localhost:3000"},
		},
	}
}

type variantsFile struct {
	Variants []Variant `yaml:"variants"`
}

// LoadVariantsFile reads additional variants from a YAML document of the form
//
//	variants:
//	  - name: classroom
//	    model: gemini-1.5-pro
//	    prompt: |
//	      ...
//	    allowed_origins: ["https://example.edu"]
//
// Entries with a built-in name replace the built-in.
func LoadVariantsFile(path string) (map[string]Variant, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read variants file: %w", err)
	}
	return parseVariants(data)
}

func parseVariants(data []byte) (map[string]Variant, error) {
	var doc variantsFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse variants file: %w", err)
	}

	out := make(map[string]Variant, len(doc.Variants))
	for i, v := range doc.Variants {
		v.Name = strings.TrimSpace(v.Name)
		if v.Name == "" {
			return nil, fmt.Errorf("variant #%d has no name", i+1)
		}
		if _, dup := out[v.Name]; dup {
			return nil, fmt.Errorf("variant %q defined twice", v.Name)
		}
		v.Model = strings.TrimSpace(v.Model)
		v.Prompt = strings.TrimSpace(v.Prompt)
		out[v.Name] = v
	}
	return out, nil
}
