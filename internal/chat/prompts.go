package chat

import (
	"encoding/json"
	"fmt"
)

const roomPromptTemplate = `You are a renovation expert assistant specializing in %[1]s renovations. Here is the current renovation data:

%[2]s

User question: %[3]s

Provide a helpful response about the %[1]s renovation based on this data. Consider:
- Current items and their costs
- General costs (designer, demolition, materials, labor)
- Specific recommendations for %[1]s improvements
- Cost analysis and budget considerations for %[1]s renovation`

const costAnalysisTemplate = `As a renovation expert, analyze the following renovation costs and provide insights:

%s

Please provide:
1. Total cost breakdown
2. Cost-saving opportunities
3. Budget recommendations
4. Areas that might be over or under budgeted
5. Industry standard comparisons where possible`

const roomRecommendationsTemplate = `As a renovation expert, provide specific recommendations for %s renovation based on:

%s

Please include:
1. Suggested improvements
2. Potential cost optimizations
3. Design considerations
4. Common pitfalls to avoid
5. Material recommendations`

const materialRecommendationsTemplate = `As a renovation expert, recommend materials for %s based on:

%s

Please provide:
1. Recommended materials
2. Pros and cons of each option
3. Cost considerations
4. Durability factors
5. Maintenance requirements`

func buildPrompt(room, contextJSON, question string) string {
	return fmt.Sprintf(roomPromptTemplate, room, contextJSON, question)
}

func indentJSON(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(b)
}
