package poll

import (
	"regexp"
	"strings"

	"github.com/lekki-homes/leadflow/internal/model"
	"github.com/lekki-homes/leadflow/internal/scoring"
)

var (
	objectionKeywords = []string{
		"too expensive",
		"price is high",
		"price too high",
		"not sure",
		"concern",
		"objection",
	}
	unqualifiedKeywords = []string{
		"not interested",
		"cannot afford",
		"can't afford",
		"outside budget",
		"stop contacting",
		"not proceeding",
	}
	questionKeywords = []string{"how", "what", "when", "where", "which", "can you", "could you"}
)

var (
	quotedReplyRe  = regexp.MustCompile(`^on .*wrote:$`)
	fromHeaderRe   = regexp.MustCompile(`^from:\s`)
	mobileFooterRe = regexp.MustCompile(`^sent from my`)
)

// CleanInboundBody strips quoted-reply history and signatures: everything
// from the first `>`-quoted line, "On ... wrote:" line, "From:" header,
// mobile footer, or "--" delimiter onward is dropped. Lines keep their
// leading whitespace but lose trailing whitespace.
func CleanInboundBody(body string) string {
	if body == "" {
		return ""
	}
	lines := strings.Split(strings.ReplaceAll(body, "\r\n", "\n"), "\n")
	var kept []string
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		trimmed := strings.ToLower(strings.TrimSpace(line))
		if trimmed == "" {
			kept = append(kept, "")
			continue
		}
		if strings.HasPrefix(trimmed, ">") ||
			quotedReplyRe.MatchString(trimmed) ||
			fromHeaderRe.MatchString(trimmed) ||
			mobileFooterRe.MatchString(trimmed) ||
			trimmed == "--" {
			break
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

func containsAny(content string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(content, kw) {
			return true
		}
	}
	return false
}

// DeriveStatus maps a cleaned inbound body onto the next pipeline status.
// Precedence is fixed: unqualified keywords beat objections, objections
// beat intent, intent beats question cues; no match leaves the status
// unchanged.
func DeriveStatus(cleanedBody string, current model.PipelineStatus) model.PipelineStatus {
	content := strings.ToLower(strings.TrimSpace(cleanedBody))
	if content == "" {
		return current
	}
	if containsAny(content, unqualifiedKeywords) {
		return model.StatusUnqualified
	}
	if containsAny(content, objectionKeywords) {
		return model.StatusObjection
	}
	if scoring.IntentScore(content) >= 25 {
		return model.StatusInterested
	}
	if strings.Contains(content, "?") || containsAny(content, questionKeywords) {
		return model.StatusQuestion
	}
	return current
}
