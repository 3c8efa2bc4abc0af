package ticket

import (
	"fmt"
	"net/url"
	"strings"

	"ambient-quiz-service/internal/domain"
)

const (
	shareIntentURL = "https://twitter.com/intent/tweet"
	shareTargetURL = "https://ambient.xyz"
)

// ToDownloadableFile packages a ticket for download. An empty filename
// becomes ambient-quiz-<username>.png.
func ToDownloadableFile(artifact domain.TicketArtifact, filename string) domain.TicketFile {
	filename = strings.TrimSpace(filename)
	if filename == "" {
		filename = fmt.Sprintf("ambient-quiz-%s.png", artifact.Username)
	}
	contentType := artifact.ContentType
	if contentType == "" {
		contentType = ContentTypePNG
	}
	return domain.TicketFile{Name: filename, ContentType: contentType, Data: artifact.Image}
}

// DefaultCaption is the share text used when the caller supplies none.
func DefaultCaption(result domain.QuizResult) string {
	return fmt.Sprintf("I just scored %d/%d on the Ambient Quiz and achieved %s level! 🚀\n\nTest your knowledge about AI-powered blockchain:\n",
		result.Score, result.Total, result.Tier.Name)
}

// ShareLink builds a tweet-intent URL carrying caption and the Ambient site.
func ShareLink(artifact domain.TicketArtifact, caption string) string {
	if strings.TrimSpace(caption) == "" {
		caption = DefaultCaption(artifact.QuizResult)
	}
	q := url.Values{}
	q.Set("text", caption)
	q.Set("url", shareTargetURL)
	return shareIntentURL + "?" + q.Encode()
}
