package cli

// LineEditor is a Prompter with an in-memory history. *liner.State satisfies it.
type LineEditor interface {
	Prompter
	AppendHistory(item string)
}

// HistoryPrompter records non-empty answers in the editor's history so they
// can be recalled with the arrow keys. History is never written to disk.
type HistoryPrompter struct {
	line LineEditor
}

// NewHistoryPrompter wraps line.
func NewHistoryPrompter(line LineEditor) *HistoryPrompter {
	return &HistoryPrompter{line: line}
}

// Prompt reads one answer and appends it to the history.
func (p *HistoryPrompter) Prompt(prompt string) (string, error) {
	answer, err := p.line.Prompt(prompt)
	if err == nil && answer != "" {
		p.line.AppendHistory(answer)
	}
	return answer, err
}
