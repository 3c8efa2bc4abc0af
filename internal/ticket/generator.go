package ticket

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"ambient-quiz-service/internal/domain"
	"ambient-quiz-service/internal/logging"
	"github.com/sirupsen/logrus"
	_ "golang.org/x/image/webp"
)

const (
	AvatarSourceFetched     = "fetched"
	AvatarSourcePlaceholder = "placeholder"
)

// Generator turns a quiz result into a ticket artifact.
type Generator struct {
	avatars  AvatarSource
	renderer *Renderer
	observe  func(avatarSource string)
}

// NewGenerator wires an avatar source to a renderer. A nil source always
// draws the placeholder.
func NewGenerator(avatars AvatarSource, renderer *Renderer) *Generator {
	return &Generator{avatars: avatars, renderer: renderer}
}

// OnRender registers a hook that receives the avatar source of each ticket.
func (g *Generator) OnRender(fn func(avatarSource string)) {
	g.observe = fn
}

func (g *Generator) Generate(ctx context.Context, result domain.QuizResult) (domain.TicketArtifact, error) {
	if err := domain.ValidateUsername(result.Username); err != nil {
		return domain.TicketArtifact{}, err
	}
	log := logging.WithContext(ctx).WithFields(logrus.Fields{"username": result.Username, "score": result.Score})

	avatar, source := g.avatar(ctx, result.Username, log)
	png, err := g.renderer.Render(ctx, Input{
		Username: result.Username,
		Score:    result.Score,
		Total:    result.Total,
		Tier:     result.Tier,
		Avatar:   avatar,
	})
	if err != nil {
		log.WithError(err).Error("ticket render failed")
		return domain.TicketArtifact{}, err
	}
	if g.observe != nil {
		g.observe(source)
	}
	log.WithField("avatar", source).Info("ticket rendered")
	return domain.TicketArtifact{QuizResult: result, Image: png, ContentType: ContentTypePNG}, nil
}

// avatar never fails: any fetch or decode problem yields the placeholder.
func (g *Generator) avatar(ctx context.Context, username string, log *logrus.Entry) (image.Image, string) {
	placeholder := func() (image.Image, string) {
		return g.renderer.Placeholder(username, 0), AvatarSourcePlaceholder
	}
	if g.avatars == nil {
		return placeholder()
	}

	fetched, err := g.avatars.FetchAvatar(ctx, username)
	if err != nil {
		if !errors.Is(err, domain.ErrAvatarUnavailable) {
			log.WithError(err).Warn("avatar lookup failed")
		} else {
			log.WithError(err).Debug("avatar unavailable, using placeholder")
		}
		return placeholder()
	}

	img, err := DecodeAvatar(fetched)
	if err != nil {
		log.WithError(err).Warn("avatar undecodable, using placeholder")
		return placeholder()
	}
	return img, AvatarSourceFetched
}

// DecodeAvatar decodes jpeg, png, gif or webp avatar bytes.
func DecodeAvatar(avatar domain.Avatar) (image.Image, error) {
	img, format, err := image.Decode(bytes.NewReader(avatar.Data))
	if err != nil {
		return nil, fmt.Errorf("decode %s avatar: %w", avatar.ContentType, err)
	}
	if b := img.Bounds(); b.Dx() == 0 || b.Dy() == 0 {
		return nil, fmt.Errorf("decode %s avatar: empty image", format)
	}
	return img, nil
}
