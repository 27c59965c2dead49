package engine

// LLM prompt templates. Data only, no logic.

// translatePrompt converts transcript lines into the target language.
// Args: target language code, JSON array of source lines.
const translatePrompt = `You are a subtitle translator. Translate every line of the JSON array below into the language with code "%s".

Respond with valid JSON only (no markdown, no ` + "`" + `json` + "`" + ` block): a JSON array of strings with EXACTLY the same number of elements, where element i is the translation of input element i.

Rules:
- Preserve meaning and tone; keep each line roughly as short as the original
- Do NOT merge, split, reorder, or drop lines
- Keep numbers, names, and technical terms intact
- Output the array and nothing else

Lines:
%s`

// analyzePrompt produces the structured analysis of one resource.
// Args: target language code, title, author, description, transcript text.
const analyzePrompt = `You are a content analyst. Analyze the material below and respond in the language with code "%s".

Respond with valid JSON only (no markdown, no ` + "`" + `json` + "`" + ` block):
{
  "summary": "4-6 sentence plain-text summary of the content. No markdown.",
  "score": 0-100 quality/informativeness score as a number,
  "keywords": ["up to 8 topical keywords"],
  "highlights": [
    {"start": seconds_as_number, "label": "short description of a notable moment"}
  ]
}

Rules:
- summary: plain text, no markdown, no citation markers
- score: judge information density, clarity, and credibility
- highlights: only when the transcript has timing worth pointing at; otherwise []
- Do NOT invent information not present in the material

Title: %s
Author: %s
Description: %s

Transcript:
%s`
