package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/pilot/api/schemas"
)

// starButtonSelectors are tried in order; the first that matches is clicked.
// They track GitHub's markup and will need updating when it changes.
var starButtonSelectors = []string{
	`button[aria-label^="Star this repository"]`,
	`button[aria-label^="Unstar this repository"]`,
	`.js-social-form button[aria-label*="Star"]`,
}

func repositoryURL(owner, repo string) string {
	return "https://github.com/" + owner + "/" + repo
}

// starRepository toggles the star on a repository page, navigating there
// first when the page is somewhere else.
func (e *Executor) starRepository(ctx context.Context, page schemas.Page, a schemas.StarGithubRepo) (string, error) {
	target := repositoryURL(a.Owner, a.Repo)
	logger := e.logger.With(zap.String("repository", target))

	current, err := page.URL(ctx)
	if err != nil {
		return "", fmt.Errorf("could not read page location: %w", err)
	}
	if !strings.HasPrefix(current, target) {
		logger.Debug("Navigating to repository before starring.", zap.String("from", current))
		if err := page.SetLocation(ctx, target); err != nil {
			return "", fmt.Errorf("navigation to %s failed: %w", target, err)
		}
		if err := e.opts.Sleep(ctx, e.opts.StarSettle); err != nil {
			return "", err
		}
	}

	for _, sel := range starButtonSelectors {
		err := page.Click(ctx, sel)
		if err == nil {
			logger.Debug("Star toggle clicked.", zap.String("selector", sel))
			return "Toggled star on repository", nil
		}
		if !errors.Is(err, schemas.ErrElementNotFound) {
			return "", fmt.Errorf("clicking star button failed: %w", err)
		}
	}
	return "", schemas.ErrStarButtonNotFound
}
