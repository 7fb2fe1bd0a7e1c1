package admincmd

import (
	"fmt"
	"sort"
	"strings"

	"msgsort/internal/models"
	"msgsort/pkg/categorizer"
)

var markdownEscaper = strings.NewReplacer("_", `\_`, "*", `\*`, "`", "\\`", "[", `\[`)

// EscapeMarkdown escapes the characters Telegram's legacy Markdown treats as
// entity delimiters.
func EscapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}

// FormatConfidence renders a score in [0,1] as a percentage with one
// decimal, or "N/A" when there is no score.
func FormatConfidence(score *float64) string {
	if score == nil {
		return "N/A"
	}
	return fmt.Sprintf("%.1f%%", *score*100)
}

func FormatCategoryInfo(c categorizer.Category) string {
	return fmt.Sprintf("📁 %s\n🔑 Keywords: %s", EscapeMarkdown(c.Name), EscapeMarkdown(strings.Join(c.Keywords, ", ")))
}

// FormatCategorized is the reply sent for a categorized message.
func FormatCategorized(res categorizer.Result) string {
	confidence := res.Confidence
	return fmt.Sprintf("✅ Categorizado como: *%s*\n🎯 Confianza: %s", EscapeMarkdown(res.Category), FormatConfidence(&confidence))
}

// FormatStats renders message counts by category, largest first, followed by
// the average confidence of each category in name order.
func FormatStats(stats *models.MessageStats) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📊 Total de mensajes: %d\n", stats.Total)

	rows := make([]models.CategoryStat, len(stats.Categories))
	copy(rows, stats.Categories)
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Count > rows[j].Count })
	for _, row := range rows {
		pct := 0.0
		if stats.Total > 0 {
			pct = float64(row.Count) / float64(stats.Total) * 100
		}
		fmt.Fprintf(&b, "\n  • %s: %d (%.1f%%)", EscapeMarkdown(row.Category), row.Count, pct)
	}

	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Category < rows[j].Category })
	b.WriteString("\n\n📈 *Confianza promedio por categoría:*")
	for _, row := range rows {
		if row.AvgConfidence == nil {
			continue
		}
		fmt.Fprintf(&b, "\n  • %s: %s", EscapeMarkdown(row.Category), FormatConfidence(row.AvgConfidence))
	}
	return b.String()
}
