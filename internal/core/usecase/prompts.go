package usecase

import (
	"fmt"
	"strings"
)

// Prompts renders the generation prompts for one assistant domain.
// An empty Domain yields domain-neutral wording.
type Prompts struct {
	Domain string
}

func (p Prompts) label(suffix string) string {
	d := strings.TrimSpace(p.Domain)
	if d == "" {
		return ""
	}
	return d + suffix
}

func (p Prompts) Summary(chunk string) string {
	return fmt.Sprintf(`Summarize the following %stext in 2-3 sentences, focusing on the key facts it states.
Keep the summary concise and factual.

%s`, p.label(" "), chunk)
}

func (p Prompts) Relevance(query, context string) string {
	return fmt.Sprintf(`Analyze if this %scontext contains relevant information to answer the query.
Consider both direct and indirect relevant information.
Reply with ONLY 'YES' or 'NO'.

Context: %s

Query: %s

Contains relevant information (YES/NO):`, p.label(" "), context, query)
}

func (p Prompts) Answer(query, context string) string {
	role := "an information assistant"
	if d := p.label(""); d != "" {
		role = "a " + d + " information assistant"
	}
	return fmt.Sprintf(`As %s, provide a comprehensive and accurate answer to the query based on the following context.
Include the relevant details the context gives.

Context: %s

Query: %s

Provide a clear, structured answer that directly addresses the query. Include only information that can be supported by the given context.

Answer:`, role, context, query)
}

func (p Prompts) DomainCheck(query string) string {
	d := p.label("")
	return fmt.Sprintf("Determine if the following query is %s-related. Respond with 'yes' or 'no':\n\nQuery: %s\n\nIs this %s-related?", d, query, d)
}
