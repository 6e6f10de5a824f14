package service

import (
	"strings"

	"semsearch/internal/domain"
)

const missingField = "N/A"

// FormatDocuments renders each document as a four-line block followed by a
// blank line, in the order given. Absent fields become "N/A".
func FormatDocuments(docs []domain.Document) string {
	var b strings.Builder
	for _, d := range docs {
		b.WriteString("Title: ")
		b.WriteString(orMissing(d.Title))
		b.WriteString("\nAuthors: ")
		b.WriteString(orMissing(d.Authors))
		b.WriteString("\nAbstract: ")
		b.WriteString(orMissing(d.Abstract))
		b.WriteString("\nJournal reference: ")
		b.WriteString(orMissing(d.JournalRef))
		b.WriteString("\n\n")
	}
	return b.String()
}

func orMissing(s *string) string {
	if s == nil {
		return missingField
	}
	return *s
}
