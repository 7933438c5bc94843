package ai

const ConceptPrompt = `
# Task Context
You are an assistant that tags concepts in text for a knowledge graph. A concept is a noun phrase or a named entity (person, organization, place, product or event).

# Background Data
%s

# Detailed Task Description & Rules
- Report every noun phrase and named entity found in the text above.
- Keep the order in which the phrases appear in the text.
- Use the exact wording from the text for "label".
- Give the singular, lowercase base form of the phrase as "lemma".
- Skip pronouns, numbers, dates and single letters.
- Skip phrases longer than %d words.
- Do not invent phrases that are not in the text.

# Output Formatting
Return a JSON object with this structure:
{
  "concepts": [
    { "label": "<phrase from the text>", "lemma": "<base form>" }
  ]
}
`

const AnswerSystemPrompt = `You are a helpful assistant that answers questions based on the provided context.
Always cite your sources using the numbered references [1], [2], etc.
Keep your answer concise and factual. If you cannot answer based on the context, say so.`

const AnswerPrompt = `Question: %s

Context:
%s

Please provide a concise answer with citations.`
